package plugins

import (
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/roboco-io/articlehtml/internal/plugin"
	"github.com/roboco-io/articlehtml/internal/schema"
	"github.com/roboco-io/articlehtml/internal/tree"
)

// Table maps <table> to a table node of rows. Row groups are flattened.
type Table struct {
	plugin.Base
}

func (Table) Name() string { return TypeTable }

func (Table) Types() []plugin.NodeType {
	return []plugin.NodeType{{
		Name:  TypeTable,
		Class: schema.Block,
		Rules: padded(plugin.Rules{
			Children: plugin.Allow(TypeTableRow, TypeTableRow),
			Empty:    &plugin.EmptyRule{ReplaceWith: TypeParagraph},
		}),
	}}
}

func (Table) Serialize(_ *plugin.SerializeContext, n *tree.Node, children []*html.Node) (*html.Node, error) {
	if n.Type != TypeTable {
		return nil, plugin.ErrSkip
	}
	body := plugin.Element(atom.Tbody, nil, children)
	return plugin.Element(atom.Table, n.Data, []*html.Node{body}), nil
}

func (Table) Deserialize(_ *plugin.DeserializeContext, el *html.Node, children []*tree.Node) ([]*tree.Node, error) {
	switch {
	case plugin.IsElement(el, atom.Table):
		return []*tree.Node{{Type: TypeTable, Data: plugin.Data(el), Children: children}}, nil
	case plugin.IsElement(el, atom.Thead, atom.Tbody, atom.Tfoot):
		return children, nil
	}
	return nil, plugin.ErrSkip
}

func newTableRow() *element {
	return newElement(TypeTableRow, atom.Tr, schema.Block, plugin.Rules{
		Children: plugin.Allow(TypeTableCell, TypeTableCell),
		Parent:   plugin.Allow(TypeTable, TypeTable),
		Empty:    &plugin.EmptyRule{},
	})
}

// cellAttrs are copied between <td>/<th> attributes and cell props.
var cellAttrs = []string{"colspan", "rowspan", "scope"}

// TableCell maps <td> and <th>; header cells carry header=true.
type TableCell struct {
	plugin.Base
}

func (TableCell) Name() string { return TypeTableCell }

func (TableCell) Types() []plugin.NodeType {
	return []plugin.NodeType{{
		Name:  TypeTableCell,
		Class: schema.Block,
		Rules: plugin.Rules{
			Children: plugin.Allow(TypeParagraph, TypeParagraph, TypeList, TypeEmbed, schema.TypeUnsupported),
			Parent:   plugin.Allow(TypeTableRow, TypeTableRow),
		},
	}}
}

func (TableCell) Serialize(_ *plugin.SerializeContext, n *tree.Node, children []*html.Node) (*html.Node, error) {
	if n.Type != TypeTableCell {
		return nil, plugin.ErrSkip
	}
	tag := atom.Td
	if n.Prop("header") == "true" {
		tag = atom.Th
	}
	var attrs []html.Attribute
	for _, key := range cellAttrs {
		if v := n.Prop(key); v != "" {
			attrs = append(attrs, html.Attribute{Key: key, Val: v})
		}
	}
	return plugin.Element(tag, n.Data, children, attrs...), nil
}

func (TableCell) Deserialize(_ *plugin.DeserializeContext, el *html.Node, children []*tree.Node) ([]*tree.Node, error) {
	if !plugin.IsElement(el, atom.Td, atom.Th) {
		return nil, plugin.ErrSkip
	}
	n := &tree.Node{Type: TypeTableCell, Data: plugin.Data(el), Children: children}
	if el.DataAtom == atom.Th {
		n.WithProp("header", "true")
	}
	for _, key := range cellAttrs {
		if v := plugin.Attr(el, key); v != "" {
			n.WithProp(key, v)
		}
	}
	return []*tree.Node{n}, nil
}
