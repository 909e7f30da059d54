package plugins

import (
	"slices"
	"strconv"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/roboco-io/articlehtml/internal/plugin"
	"github.com/roboco-io/articlehtml/internal/schema"
	"github.com/roboco-io/articlehtml/internal/tree"
)

// element maps one node type to one HTML tag and keeps data-* attributes.
type element struct {
	plugin.Base
	name  string
	tag   atom.Atom
	class schema.Class
	rules plugin.Rules
}

func newElement(name string, tag atom.Atom, class schema.Class, rules plugin.Rules) *element {
	return &element{name: name, tag: tag, class: class, rules: rules}
}

func (p *element) Name() string { return p.name }

func (p *element) Types() []plugin.NodeType {
	return []plugin.NodeType{{Name: p.name, Class: p.class, Rules: p.rules}}
}

func (p *element) Serialize(_ *plugin.SerializeContext, n *tree.Node, children []*html.Node) (*html.Node, error) {
	if n.Type != p.name {
		return nil, plugin.ErrSkip
	}
	return plugin.Element(p.tag, n.Data, children), nil
}

func (p *element) Deserialize(_ *plugin.DeserializeContext, el *html.Node, children []*tree.Node) ([]*tree.Node, error) {
	if !plugin.IsElement(el, p.tag) {
		return nil, plugin.ErrSkip
	}
	n := &tree.Node{Type: p.name, Data: plugin.Data(el)}
	if !p.class.Has(schema.Void) {
		n.Children = children
	}
	return []*tree.Node{n}, nil
}

// Section is the top-level container. It also declares the rules of the document root,
// whose children are sections.
type Section struct {
	*element
}

func newSection() *Section {
	return &Section{element: newElement(TypeSection, atom.Section, schema.Block, plugin.Rules{
		Children: plugin.Allow(TypeParagraph, flow...),
	})}
}

func (p *Section) Types() []plugin.NodeType {
	return append(p.element.Types(), plugin.NodeType{
		Name:  tree.TypeDocument,
		Rules: plugin.Rules{Children: plugin.Allow(TypeSection, TypeSection)},
	})
}

func newAside() *element {
	return newElement(TypeAside, atom.Aside, schema.Block, padded(plugin.Rules{
		Children: plugin.Allow(TypeParagraph, plugin.Without(flow, TypeAside, TypeBodybox)...),
	}))
}

func newBlockquote() *element {
	return newElement(TypeBlockquote, atom.Blockquote, schema.Block, plugin.Rules{
		Children: plugin.Allow(TypeParagraph, TypeParagraph, TypeHeading, TypeList, TypeEmbed),
	})
}

func newHR() *element {
	return newElement(TypeHR, atom.Hr, schema.Block|schema.Void, padded(plugin.Rules{}))
}

func newBR() *element {
	return newElement(TypeBR, atom.Br, schema.Inline|schema.Void, plugin.Rules{})
}

// Paragraph omits editor-only padding paragraphs from the output.
type Paragraph struct {
	*element
}

func newParagraph() *Paragraph {
	return &Paragraph{element: newElement(TypeParagraph, atom.P, schema.TextBlock, plugin.Rules{})}
}

func (p *Paragraph) Serialize(ctx *plugin.SerializeContext, n *tree.Node, children []*html.Node) (*html.Node, error) {
	if n.Type != TypeParagraph {
		return nil, plugin.ErrSkip
	}
	if ctx.Chain != nil && ctx.Chain.IsPadding(ctx.Parent, ctx.Index) {
		return nil, plugin.ErrOmit
	}
	return p.element.Serialize(ctx, n, children)
}

const defaultHeadingLevel = 2

var headingTags = []atom.Atom{atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6}

// Heading maps h1-h6 to a heading node with a level prop.
type Heading struct {
	plugin.Base
}

func (Heading) Name() string { return TypeHeading }

func (Heading) Types() []plugin.NodeType {
	return []plugin.NodeType{{Name: TypeHeading, Class: schema.TextBlock}}
}

func (Heading) Serialize(_ *plugin.SerializeContext, n *tree.Node, children []*html.Node) (*html.Node, error) {
	if n.Type != TypeHeading {
		return nil, plugin.ErrSkip
	}
	level := headingLevel(n.Prop("level"))
	return plugin.Element(headingTags[level-1], n.Data, children), nil
}

func (Heading) Deserialize(_ *plugin.DeserializeContext, el *html.Node, children []*tree.Node) ([]*tree.Node, error) {
	if !plugin.IsElement(el, headingTags...) {
		return nil, plugin.ErrSkip
	}
	level := slices.Index(headingTags, el.DataAtom) + 1
	n := &tree.Node{Type: TypeHeading, Data: plugin.Data(el), Children: children}
	n.WithProp("level", strconv.Itoa(level))
	return []*tree.Node{n}, nil
}

// Normalize assigns the default level to headings without a valid one.
func (Heading) Normalize(ctx *plugin.NormalizeContext) *tree.Op {
	n := ctx.Node
	if n.Type != TypeHeading {
		return nil
	}
	want := strconv.Itoa(headingLevel(n.Prop("level")))
	if n.Prop("level") == want {
		return nil
	}
	op := tree.SetProps(ctx.Path, map[string]string{"level": want})
	return &op
}

// headingLevel parses a level, clamped to 1-6. Missing or malformed levels are the default.
func headingLevel(s string) int {
	level, err := strconv.Atoi(s)
	if err != nil {
		return defaultHeadingLevel
	}
	return min(max(level, 1), 6)
}

const bodyboxClass = "c-bodybox"

// Bodybox is a framed box rendered as <div class="c-bodybox">. It must precede Div.
type Bodybox struct {
	plugin.Base
}

func (Bodybox) Name() string { return TypeBodybox }

func (Bodybox) Types() []plugin.NodeType {
	return []plugin.NodeType{{
		Name:  TypeBodybox,
		Class: schema.Block,
		Rules: padded(plugin.Rules{
			Children: plugin.Allow(TypeParagraph, plugin.Without(flow, TypeBodybox, TypeAside)...),
		}),
	}}
}

func (Bodybox) Serialize(_ *plugin.SerializeContext, n *tree.Node, children []*html.Node) (*html.Node, error) {
	if n.Type != TypeBodybox {
		return nil, plugin.ErrSkip
	}
	return plugin.Element(atom.Div, n.Data, children, html.Attribute{Key: "class", Val: bodyboxClass}), nil
}

func (Bodybox) Deserialize(_ *plugin.DeserializeContext, el *html.Node, children []*tree.Node) ([]*tree.Node, error) {
	if !plugin.IsElement(el, atom.Div) || !plugin.HasClass(el, bodyboxClass) {
		return nil, plugin.ErrSkip
	}
	return []*tree.Node{{Type: TypeBodybox, Data: plugin.Data(el), Children: children}}, nil
}

// Details is a collapsible box whose first child is its summary.
type Details struct {
	*element
}

func newDetails() *Details {
	return &Details{element: newElement(TypeDetails, atom.Details, schema.Block, padded(plugin.Rules{
		Children: plugin.Allow(TypeParagraph, append([]string{TypeSummary}, plugin.Without(flow, TypeDetails)...)...),
		First:    plugin.Allow(TypeSummary, TypeSummary),
	}))}
}

// Normalize unwraps details nested at any depth inside another details.
func (p *Details) Normalize(ctx *plugin.NormalizeContext) *tree.Op {
	if ctx.Node.Type != TypeDetails {
		return nil
	}
	for _, a := range ctx.Ancestors() {
		if a.Type == TypeDetails {
			op := tree.Unwrap(ctx.Path)
			return &op
		}
	}
	return nil
}

// Summary is the title of a details box.
type Summary struct {
	*element
}

func newSummary() *Summary {
	return &Summary{element: newElement(TypeSummary, atom.Summary, schema.TextBlock, plugin.Rules{})}
}

// Normalize turns a summary that is not the first child of a details into a paragraph.
func (p *Summary) Normalize(ctx *plugin.NormalizeContext) *tree.Op {
	n := ctx.Node
	if n.Type != TypeSummary {
		return nil
	}
	if ctx.Parent != nil && ctx.Parent.Type == TypeDetails && ctx.Index() == 0 {
		return nil
	}
	op := tree.Replace(ctx.Path, &tree.Node{Type: TypeParagraph, Data: n.Data, Children: n.Children})
	return &op
}
