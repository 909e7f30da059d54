package plugins

import (
	"bytes"
	"slices"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/roboco-io/articlehtml/internal/plugin"
	"github.com/roboco-io/articlehtml/internal/schema"
	"github.com/roboco-io/articlehtml/internal/tree"
)

// Embed is a void block whose resource metadata lives entirely in data-* attributes.
type Embed struct {
	plugin.Base
}

func (Embed) Name() string { return TypeEmbed }

func (Embed) Types() []plugin.NodeType {
	return []plugin.NodeType{{Name: TypeEmbed, Class: schema.Block | schema.Void, Rules: padded(plugin.Rules{})}}
}

func (Embed) Serialize(_ *plugin.SerializeContext, n *tree.Node, _ []*html.Node) (*html.Node, error) {
	if n.Type != TypeEmbed {
		return nil, plugin.ErrSkip
	}
	return plugin.Element(atom.Embed, n.Data, nil), nil
}

func (Embed) Deserialize(_ *plugin.DeserializeContext, el *html.Node, _ []*tree.Node) ([]*tree.Node, error) {
	if !plugin.IsElement(el, atom.Embed) {
		return nil, plugin.ErrSkip
	}
	return []*tree.Node{{Type: TypeEmbed, Data: plugin.Data(el)}}, nil
}

// linkAttrs are copied between <a> attributes and link props.
var linkAttrs = []string{"href", "target", "rel", "title"}

// Link is an inline anchor. Links without text are removed and links without href unwrapped.
type Link struct {
	plugin.Base
}

func (Link) Name() string { return TypeLink }

func (Link) Types() []plugin.NodeType {
	return []plugin.NodeType{{Name: TypeLink, Class: schema.Inline}}
}

func (Link) Serialize(_ *plugin.SerializeContext, n *tree.Node, children []*html.Node) (*html.Node, error) {
	if n.Type != TypeLink {
		return nil, plugin.ErrSkip
	}
	var attrs []html.Attribute
	for _, key := range linkAttrs {
		if v := n.Prop(key); v != "" {
			attrs = append(attrs, html.Attribute{Key: key, Val: v})
		}
	}
	return plugin.Element(atom.A, n.Data, children, attrs...), nil
}

func (Link) Deserialize(_ *plugin.DeserializeContext, el *html.Node, children []*tree.Node) ([]*tree.Node, error) {
	if !plugin.IsElement(el, atom.A) {
		return nil, plugin.ErrSkip
	}
	n := &tree.Node{Type: TypeLink, Data: plugin.Data(el), Children: children}
	for _, key := range linkAttrs {
		if v := plugin.Attr(el, key); v != "" {
			n.WithProp(key, v)
		}
	}
	return []*tree.Node{n}, nil
}

func (Link) Normalize(ctx *plugin.NormalizeContext) *tree.Op {
	n := ctx.Node
	if n.Type != TypeLink {
		return nil
	}
	if n.TextContent() == "" {
		op := tree.Remove(ctx.Path)
		return &op
	}
	if n.Prop("href") == "" || slices.ContainsFunc(ctx.Ancestors(), func(a *tree.Node) bool {
		return a.Type == TypeLink
	}) {
		op := tree.Unwrap(ctx.Path)
		return &op
	}
	return nil
}

// Math keeps MathML markup verbatim in the innerHTML prop.
type Math struct {
	plugin.Base
}

func (Math) Name() string { return TypeMath }

func (Math) Types() []plugin.NodeType {
	return []plugin.NodeType{{Name: TypeMath, Class: schema.Inline | schema.Void}}
}

// Opaque stops the pipeline from deserializing MathML children.
func (Math) Opaque(el *html.Node) bool {
	return plugin.IsElement(el, atom.Math)
}

func (Math) Serialize(_ *plugin.SerializeContext, n *tree.Node, _ []*html.Node) (*html.Node, error) {
	if n.Type != TypeMath {
		return nil, plugin.ErrSkip
	}
	var attrs []html.Attribute
	if v := n.Prop("display"); v != "" {
		attrs = append(attrs, html.Attribute{Key: "display", Val: v})
	}
	var children []*html.Node
	if inner := n.Prop("innerHTML"); inner != "" {
		children = append(children, plugin.Raw(inner))
	}
	return plugin.Element(atom.Math, n.Data, children, attrs...), nil
}

func (Math) Deserialize(_ *plugin.DeserializeContext, el *html.Node, _ []*tree.Node) ([]*tree.Node, error) {
	if !plugin.IsElement(el, atom.Math) {
		return nil, plugin.ErrSkip
	}

	var buf bytes.Buffer
	for c := el.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&buf, c); err != nil {
			return nil, err
		}
	}
	n := &tree.Node{Type: TypeMath, Data: plugin.Data(el)}
	if buf.Len() > 0 {
		n.WithProp("innerHTML", buf.String())
	}
	if v := plugin.Attr(el, "display"); v != "" {
		n.WithProp("display", v)
	}
	return []*tree.Node{n}, nil
}

// Span keeps language-tagged text runs; other spans are unwrapped.
type Span struct {
	plugin.Base
}

func (Span) Name() string { return TypeSpan }

func (Span) Types() []plugin.NodeType {
	return []plugin.NodeType{{Name: TypeSpan, Class: schema.Inline}}
}

func (Span) Serialize(_ *plugin.SerializeContext, n *tree.Node, children []*html.Node) (*html.Node, error) {
	if n.Type != TypeSpan {
		return nil, plugin.ErrSkip
	}
	return plugin.Element(atom.Span, n.Data, children, html.Attribute{Key: "lang", Val: n.Prop("lang")}), nil
}

func (Span) Deserialize(_ *plugin.DeserializeContext, el *html.Node, children []*tree.Node) ([]*tree.Node, error) {
	if !plugin.IsElement(el, atom.Span) {
		return nil, plugin.ErrSkip
	}
	lang := strings.TrimSpace(plugin.Attr(el, "lang"))
	if lang == "" {
		return children, nil
	}
	n := &tree.Node{Type: TypeSpan, Data: plugin.Data(el), Children: children}
	n.WithProp("lang", lang)
	return []*tree.Node{n}, nil
}

// Normalize removes spans without content and unwraps spans without a language.
func (Span) Normalize(ctx *plugin.NormalizeContext) *tree.Op {
	n := ctx.Node
	if n.Type != TypeSpan {
		return nil
	}
	if !slices.ContainsFunc(n.Children, func(c *tree.Node) bool { return !c.IsText() || c.Text != "" }) {
		op := tree.Remove(ctx.Path)
		return &op
	}
	if n.Prop("lang") != "" {
		return nil
	}
	op := tree.Unwrap(ctx.Path)
	return &op
}

// Div unwraps generic containers. Specific div-based plugins come before it in the chain.
type Div struct {
	plugin.Base
}

func (Div) Name() string { return "div" }

func (Div) Deserialize(_ *plugin.DeserializeContext, el *html.Node, children []*tree.Node) ([]*tree.Node, error) {
	if !plugin.IsElement(el, atom.Div) {
		return nil, plugin.ErrSkip
	}
	return children, nil
}
