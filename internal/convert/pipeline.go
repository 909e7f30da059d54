// Package convert converts between article HTML and content trees.
//
// ToTree parses an HTML fragment, deserializes it bottom-up through the plugin chain and
// normalizes the result. ToHTML serializes a tree bottom-up through the same chain, dropping
// nodes a plugin omits. For trees in normal form the two are inverse:
// ToTree(ToHTML(t)) equals t.
package convert

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/tdewolff/minify/v2"
	minhtml "github.com/tdewolff/minify/v2/html"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/roboco-io/articlehtml/internal/normalize"
	"github.com/roboco-io/articlehtml/internal/plugin"
	"github.com/roboco-io/articlehtml/internal/schema"
	"github.com/roboco-io/articlehtml/internal/tree"
)

// Pipeline converts HTML to trees and back. A pipeline is safe for concurrent use.
type Pipeline struct {
	chain     *plugin.Chain
	engine    *normalize.Engine
	sanitizer *bluemonday.Policy
	minifier  *minify.M
	logger    *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithEngine sets the normalizer. The default is a normalizer with default settings over
// the pipeline's chain.
func WithEngine(e *normalize.Engine) Option {
	return func(p *Pipeline) {
		p.engine = e
	}
}

// WithSanitizer sanitizes input HTML with the given policy before parsing.
func WithSanitizer(policy *bluemonday.Policy) Option {
	return func(p *Pipeline) {
		p.sanitizer = policy
	}
}

// WithMinify minifies the HTML produced by ToHTML.
func WithMinify() Option {
	return func(p *Pipeline) {
		m := minify.New()
		m.Add("text/html", &minhtml.Minifier{KeepEndTags: true, KeepQuotes: true})
		p.minifier = m
	}
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// New creates a pipeline over the given chain.
func New(chain *plugin.Chain, opts ...Option) *Pipeline {
	p := &Pipeline{
		chain:  chain,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.engine == nil {
		p.engine = normalize.New(chain, normalize.WithLogger(p.logger))
	}
	return p
}

// Engine returns the normalizer used by ToTree.
func (p *Pipeline) Engine() *normalize.Engine {
	return p.engine
}

// ToTree parses HTML into a normalized tree.
func (p *Pipeline) ToTree(s string) (*tree.Node, error) {
	root, err := p.Deserialize(s)
	if err != nil {
		return nil, err
	}
	if _, err := p.engine.Normalize(root); err != nil {
		return nil, fmt.Errorf("failed to normalize: %w", err)
	}
	if err := p.settle(&plugin.SerializeContext{Chain: p.chain}, root); err != nil {
		return nil, err
	}
	return root, nil
}

// settle runs on a normalized tree. The markup captured for an unsupported node is dropped
// when the node renders to it anyway; otherwise it is kept with the digest of the rendered
// children, so that it is only written back while the content is unchanged.
func (p *Pipeline) settle(ctx *plugin.SerializeContext, n *tree.Node) error {
	for i, c := range n.Children {
		child := &plugin.SerializeContext{Chain: p.chain, Parent: n, Index: i, Path: ctx.Path.Child(i)}
		if err := p.settle(child, c); err != nil {
			return err
		}
	}

	raw := n.Prop(schema.PropMarkup)
	if raw == "" || (n.Type != schema.TypeUnsupported && n.Type != schema.TypeUnsupportedInline) {
		return nil
	}
	delete(n.Props, schema.PropMarkup)
	delete(n.Props, schema.PropDigest)

	el, err := p.serialize(ctx, n)
	if err != nil {
		return err
	}
	out, err := plugin.Render([]*html.Node{el})
	if err != nil {
		return err
	}
	if out == raw {
		return nil
	}

	var children []*html.Node
	for c := el.FirstChild; c != nil; c = c.NextSibling {
		children = append(children, c)
	}
	digest, err := plugin.Digest(children)
	if err != nil {
		return err
	}
	n.WithProp(schema.PropMarkup, raw)
	n.WithProp(schema.PropDigest, digest)
	return nil
}

// Deserialize parses HTML into a document without normalizing it. Runs of inline content
// next to blocks are already wrapped in the default block.
func (p *Pipeline) Deserialize(s string) (*tree.Node, error) {
	if p.sanitizer != nil {
		s = p.sanitizer.Sanitize(s)
	}

	body := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(s), body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	ctx := &plugin.DeserializeContext{Chain: p.chain, Logger: p.logger}
	root := tree.NewDocument()
	for _, n := range nodes {
		out, err := p.deserialize(ctx, n)
		if err != nil {
			return nil, err
		}
		root.Children = append(root.Children, out...)
	}
	p.engine.RepairMixed(root)
	return root, nil
}

func (p *Pipeline) deserialize(ctx *plugin.DeserializeContext, n *html.Node) ([]*tree.Node, error) {
	switch n.Type {
	case html.TextNode, html.ElementNode:
	default:
		return nil, nil
	}

	var children []*tree.Node
	if n.Type == html.ElementNode && !p.chain.Opaque(n) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			out, err := p.deserialize(ctx, c)
			if err != nil {
				return nil, err
			}
			children = append(children, out...)
		}
	}

	out, err := p.chain.Deserialize(ctx, n, children)
	if errors.Is(err, plugin.ErrUnhandled) {
		p.logger.Warn("No plugin for element, keeping its content", "tag", n.Data)
		return children, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to deserialize <%s>: %w", n.Data, err)
	}

	for _, c := range out {
		p.engine.RepairMixed(c)
	}
	return out, nil
}

// ToHTML serializes a tree. The children of the document are rendered one after another;
// any other node is rendered on its own.
func (p *Pipeline) ToHTML(root *tree.Node) (string, error) {
	if root == nil {
		return "", fmt.Errorf("cannot serialize nil tree")
	}

	var buf bytes.Buffer
	top := []*tree.Node{root}
	parent := (*tree.Node)(nil)
	if root.Type == tree.TypeDocument {
		top = root.Children
		parent = root
	}

	for i, n := range top {
		var path tree.Path
		if parent != nil {
			path = tree.Path{i}
		}
		out, err := p.serialize(&plugin.SerializeContext{Chain: p.chain, Parent: parent, Index: i, Path: path}, n)
		if errors.Is(err, plugin.ErrOmit) {
			continue
		}
		if err != nil {
			return "", err
		}
		if err := html.Render(&buf, out); err != nil {
			return "", fmt.Errorf("failed to render HTML: %w", err)
		}
	}

	if p.minifier == nil {
		return buf.String(), nil
	}
	out, err := p.minifier.String("text/html", buf.String())
	if err != nil {
		return "", fmt.Errorf("failed to minify HTML: %w", err)
	}
	return out, nil
}

func (p *Pipeline) serialize(ctx *plugin.SerializeContext, n *tree.Node) (*html.Node, error) {
	children := make([]*html.Node, 0, len(n.Children))
	for i, c := range n.Children {
		out, err := p.serialize(&plugin.SerializeContext{
			Chain:  p.chain,
			Parent: n,
			Index:  i,
			Path:   ctx.Path.Child(i),
		}, c)
		if errors.Is(err, plugin.ErrOmit) {
			continue
		}
		if err != nil {
			return nil, err
		}
		children = append(children, out)
	}

	out, err := p.chain.Serialize(ctx, n, children)
	if errors.Is(err, plugin.ErrOmit) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to serialize %s at %v: %w", n.Type, ctx.Path, err)
	}
	return out, nil
}
