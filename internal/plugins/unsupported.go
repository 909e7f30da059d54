package plugins

import (
	"regexp"
	"slices"
	"sort"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/roboco-io/articlehtml/internal/plugin"
	"github.com/roboco-io/articlehtml/internal/schema"
	"github.com/roboco-io/articlehtml/internal/tree"
)

// tagName matches names that are safe to render as an element.
var tagName = regexp.MustCompile(`^[a-z][a-z0-9-]*$`)

// attrName matches attribute names kept as props.
var attrName = regexp.MustCompile(`^[a-z_][a-z0-9_.:-]*$`)

// fallbackTag names unsupported nodes built without a usable element name.
const fallbackTag = "x-unsupported"

var reservedProps = []string{schema.PropTag, schema.PropMarkup, schema.PropDigest}

// Unsupported claims every element no other plugin handled. The node keeps the element name
// and attributes and its children stay editable so they can be lifted out. The markup seen
// when parsing is written back verbatim as long as the rendered children still match its
// digest.
type Unsupported struct {
	plugin.Base
}

func (Unsupported) Name() string { return "unsupported" }

func isUnsupported(n *tree.Node) bool {
	return n.Type == schema.TypeUnsupported || n.Type == schema.TypeUnsupportedInline
}

func (Unsupported) Serialize(_ *plugin.SerializeContext, n *tree.Node, children []*html.Node) (*html.Node, error) {
	if !isUnsupported(n) {
		return nil, plugin.ErrSkip
	}
	if raw := n.Prop(schema.PropMarkup); raw != "" && n.Prop(schema.PropDigest) != "" {
		digest, err := plugin.Digest(children)
		if err != nil {
			return nil, err
		}
		if digest == n.Prop(schema.PropDigest) {
			return plugin.Raw(raw), nil
		}
	}
	return shell(n, children), nil
}

// shell renders n as an element named by its tag prop, with its other props as attributes.
func shell(n *tree.Node, children []*html.Node) *html.Node {
	tag := n.Prop(schema.PropTag)
	if !tagName.MatchString(tag) {
		tag = "span"
		if n.Type == schema.TypeUnsupported {
			tag = "div"
		}
	}

	keys := make([]string, 0, len(n.Props))
	for k := range n.Props {
		if attrName.MatchString(k) && !slices.Contains(reservedProps, k) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	attrs := make([]html.Attribute, 0, len(keys)+len(n.Data))
	for _, k := range keys {
		attrs = append(attrs, html.Attribute{Key: k, Val: n.Props[k]})
	}

	el := &html.Node{
		Type:     html.ElementNode,
		Data:     tag,
		DataAtom: atom.Lookup([]byte(tag)),
		Attr:     append(attrs, plugin.DataAttrs(n.Data)...),
	}
	for _, c := range children {
		if c.Parent != nil {
			c.Parent.RemoveChild(c)
		}
		el.AppendChild(c)
	}
	return el
}

func (Unsupported) Deserialize(ctx *plugin.DeserializeContext, el *html.Node, children []*tree.Node) ([]*tree.Node, error) {
	if el.Type != html.ElementNode {
		return nil, plugin.ErrSkip
	}

	raw, err := plugin.Render([]*html.Node{el})
	if err != nil {
		return nil, err
	}

	typ := schema.TypeUnsupportedInline
	if plugin.IsBlockTag(el.Data) {
		typ = schema.TypeUnsupported
	} else if ctx.Chain != nil {
		for _, c := range children {
			if !c.IsText() && ctx.Chain.Registry().IsBlock(c.Type) {
				typ = schema.TypeUnsupported
				break
			}
		}
	}
	if ctx.Logger != nil {
		ctx.Logger.Warn("Unsupported element", "tag", el.Data, "as", typ)
	}

	n := &tree.Node{Type: typ, Data: plugin.Data(el), Children: children}
	n.WithProp(schema.PropTag, el.Data)
	for _, a := range el.Attr {
		if a.Namespace != "" || strings.HasPrefix(a.Key, "data-") ||
			!attrName.MatchString(a.Key) || slices.Contains(reservedProps, a.Key) {
			continue
		}
		n.WithProp(a.Key, a.Val)
	}
	n.WithProp(schema.PropMarkup, raw)
	return []*tree.Node{n}, nil
}

// Normalize names an unsupported node that lacks a renderable tag, gives an unsupported block
// at least one block child so that it parses back as a block, and empties an unsupported
// inline holding only an empty text.
func (Unsupported) Normalize(ctx *plugin.NormalizeContext) *tree.Op {
	n := ctx.Node
	if isUnsupported(n) && !tagName.MatchString(n.Prop(schema.PropTag)) {
		op := tree.SetProps(ctx.Path, map[string]string{schema.PropTag: fallbackTag})
		return &op
	}
	switch n.Type {
	case schema.TypeUnsupported:
		registry := ctx.Registry()
		if slices.ContainsFunc(n.Children, func(c *tree.Node) bool {
			return !c.IsText() && registry.IsBlock(c.Type)
		}) {
			return nil
		}
		if len(n.Children) == 0 {
			op := tree.Insert(ctx.Path.Child(0), tree.NewElement(TypeParagraph))
			return &op
		}
		op := tree.Wrap(ctx.Path.Child(0), len(n.Children), tree.NewElement(TypeParagraph))
		return &op

	case schema.TypeUnsupportedInline:
		if len(n.Children) == 1 && n.Children[0].IsText() && n.Children[0].Text == "" {
			op := tree.Remove(ctx.Path.Child(0))
			return &op
		}
	}
	return nil
}
