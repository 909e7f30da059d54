package plugin

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/roboco-io/articlehtml/internal/schema"
	"github.com/roboco-io/articlehtml/internal/tree"
)

// stubPlugin claims one node type and one HTML tag.
type stubPlugin struct {
	Base
	name  string
	types []NodeType
	tag   atom.Atom
	omit  bool
}

func (p *stubPlugin) Name() string      { return p.name }
func (p *stubPlugin) Types() []NodeType { return p.types }

func (p *stubPlugin) Serialize(ctx *SerializeContext, n *tree.Node, children []*html.Node) (*html.Node, error) {
	if len(p.types) == 0 || n.Type != p.types[0].Name {
		return nil, ErrSkip
	}
	if p.omit {
		return nil, ErrOmit
	}
	return Element(p.tag, n.Data, children), nil
}

func (p *stubPlugin) Deserialize(ctx *DeserializeContext, el *html.Node, children []*tree.Node) ([]*tree.Node, error) {
	if !IsElement(el, p.tag) {
		return nil, ErrSkip
	}
	return []*tree.Node{{Type: p.name, Children: children}}, nil
}

func padded() Rules {
	return Rules{
		Previous: Allow("paragraph", "paragraph"),
		Next:     Allow("paragraph", "paragraph"),
	}
}

func testChain(t *testing.T) *Chain {
	t.Helper()
	c, err := NewChain(
		&stubPlugin{name: "section", tag: atom.Section, types: []NodeType{{
			Name: "section", Class: schema.Block,
			Rules: Rules{Children: Allow("paragraph", "paragraph", "box")},
		}}},
		&stubPlugin{name: "paragraph", tag: atom.P, types: []NodeType{{Name: "paragraph", Class: schema.TextBlock}}},
		&stubPlugin{name: "box", tag: atom.Div, types: []NodeType{{Name: "box", Class: schema.Block, Rules: padded()}}},
		&stubPlugin{name: "generic", tag: atom.Div},
	)
	require.NoError(t, err)
	return c
}

func TestNewChain(t *testing.T) {
	c := testChain(t)

	assert.Len(t, c.Plugins(), 4)
	assert.Equal(t, "box", c.Owner("box"))
	assert.True(t, c.Registry().IsTextBlock("paragraph"))
	assert.NotNil(t, c.Rules("section").Children)
	assert.Nil(t, c.Rules("unknown").Children)
}

func TestNewChainErrors(t *testing.T) {
	tests := []struct {
		name    string
		plugins []Plugin
	}{
		{"nil plugin", []Plugin{nil}},
		{"empty name", []Plugin{&stubPlugin{}}},
		{"duplicate plugin", []Plugin{&stubPlugin{name: "a"}, &stubPlugin{name: "a"}}},
		{"duplicate type", []Plugin{
			&stubPlugin{name: "a", types: []NodeType{{Name: "x", Class: schema.Block}}},
			&stubPlugin{name: "b", types: []NodeType{{Name: "x", Class: schema.Block}}},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewChain(tt.plugins...)
			assert.Error(t, err)
		})
	}
}

func TestChainDispatchOrder(t *testing.T) {
	c := testChain(t)

	div := &html.Node{Type: html.ElementNode, Data: "div", DataAtom: atom.Div}
	nodes, err := c.Deserialize(&DeserializeContext{}, div, nil)
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	assert.Equal(t, "box", nodes[0].Type, "the first plugin claiming <div> wins")

	span := &html.Node{Type: html.ElementNode, Data: "span", DataAtom: atom.Span}
	_, err = c.Deserialize(&DeserializeContext{}, span, nil)
	assert.ErrorIs(t, err, ErrUnhandled)

	_, err = c.Serialize(&SerializeContext{}, tree.NewElement("blink"), nil)
	assert.ErrorIs(t, err, ErrUnhandled)
}

func TestChainSerializeOmit(t *testing.T) {
	c, err := NewChain(&stubPlugin{
		name: "padding", tag: atom.P, omit: true,
		types: []NodeType{{Name: "padding", Class: schema.Block}},
	})
	require.NoError(t, err)

	_, err = c.Serialize(&SerializeContext{}, tree.NewElement("padding"), nil)
	assert.True(t, errors.Is(err, ErrOmit))
}

func TestAccepts(t *testing.T) {
	c := testChain(t)

	assert.True(t, c.Accepts("section", "box"))
	assert.False(t, c.Accepts("section", tree.TypeText))
	assert.True(t, c.Accepts("paragraph", tree.TypeText))
	assert.False(t, c.Accepts("paragraph", "box"))
	assert.True(t, c.Accepts("box", "anything"))
}

func TestIsPadding(t *testing.T) {
	c := testChain(t)

	empty := func() *tree.Node { return tree.NewElement("paragraph", tree.NewText("")) }
	text := func() *tree.Node { return tree.NewElement("paragraph", tree.NewText("x")) }
	box := func() *tree.Node { return tree.NewElement("box") }

	tests := []struct {
		name     string
		children []*tree.Node
		index    int
		want     bool
	}{
		{"before first box", []*tree.Node{empty(), box()}, 0, true},
		{"between boxes", []*tree.Node{box(), empty(), box()}, 1, true},
		{"after last box", []*tree.Node{box(), empty()}, 1, true},
		{"sole paragraph", []*tree.Node{empty()}, 0, false},
		{"paragraph with text", []*tree.Node{text(), box()}, 0, false},
		{"two empty paragraphs", []*tree.Node{box(), empty(), empty(), box()}, 1, false},
		{"with data", []*tree.Node{empty().WithData("align", "center"), box()}, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			section := tree.NewElement("section", tt.children...)
			assert.Equal(t, tt.want, c.IsPadding(section, tt.index))
		})
	}
}

func TestDataAttributes(t *testing.T) {
	nodes, err := html.ParseFragment(
		strings.NewReader(`<embed data-resource_id="123" data-alt="x" data-type="image" class="c">`),
		&html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body},
	)
	require.NoError(t, err)
	require.Len(t, nodes, 1)

	data := Data(nodes[0], "type")
	assert.Equal(t, map[string]string{"resource_id": "123", "alt": "x"}, data)
	assert.True(t, HasAttr(nodes[0], "class"))
	assert.True(t, HasClass(nodes[0], "c"))
	assert.Equal(t, "image", Attr(nodes[0], "data-type"))

	attrs := DataAttrs(data)
	require.Len(t, attrs, 2)
	assert.Equal(t, "data-alt", attrs[0].Key, "keys are written sorted")
	assert.Equal(t, "data-resource_id", attrs[1].Key)
}

func TestNormalizeContext(t *testing.T) {
	root := tree.NewDocument(tree.NewElement("section", tree.NewElement("paragraph"), tree.NewElement("box")))
	section := root.Children[0]
	ctx := &NormalizeContext{Root: root, Parent: section, Node: section.Children[1], Path: tree.Path{0, 1}}

	assert.Equal(t, 1, ctx.Index())
	assert.Same(t, section.Children[0], ctx.Previous())
	assert.Nil(t, ctx.Next())
	ancestors := ctx.Ancestors()
	require.Len(t, ancestors, 2)
	assert.Same(t, root, ancestors[0])
	assert.Same(t, section, ancestors[1])
}

func TestChainBuiltinRules(t *testing.T) {
	c, err := NewChain(&stubPlugin{name: "root", types: []NodeType{{
		Name:  tree.TypeDocument,
		Rules: Rules{Children: Allow("section", "section")},
	}}})
	require.NoError(t, err)
	assert.True(t, c.Accepts(tree.TypeDocument, "section"))
	assert.False(t, c.Accepts(tree.TypeDocument, "paragraph"))
	assert.Equal(t, "root", c.Owner(tree.TypeDocument))

	_, err = NewChain(&stubPlugin{name: "bad", types: []NodeType{{Name: "widget"}}})
	assert.Error(t, err, "unknown types need a class")
}
