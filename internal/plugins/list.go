package plugins

import (
	"slices"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/roboco-io/articlehtml/internal/plugin"
	"github.com/roboco-io/articlehtml/internal/schema"
	"github.com/roboco-io/articlehtml/internal/tree"
)

// List kinds.
const (
	ListBulleted = "bulleted-list"
	ListNumbered = "numbered-list"
	ListLetters  = "letter-list"
)

var listTypes = []string{ListBulleted, ListNumbered, ListLetters}

// List maps <ul> and <ol> to a list node with a listType prop. Adjacent lists of the same
// kind merge; an empty list turns into a paragraph.
type List struct {
	plugin.Base
}

func (List) Name() string { return TypeList }

func (List) Types() []plugin.NodeType {
	return []plugin.NodeType{{
		Name:  TypeList,
		Class: schema.Block,
		Rules: plugin.Rules{
			Children: plugin.Allow(TypeListItem, TypeListItem),
			Merge:    &plugin.MergeRule{Keys: []string{"listType"}},
			Empty:    &plugin.EmptyRule{ReplaceWith: TypeParagraph},
		},
	}}
}

func (List) Serialize(_ *plugin.SerializeContext, n *tree.Node, children []*html.Node) (*html.Node, error) {
	if n.Type != TypeList {
		return nil, plugin.ErrSkip
	}
	switch n.Prop("listType") {
	case ListNumbered:
		return plugin.Element(atom.Ol, n.Data, children), nil
	case ListLetters:
		return plugin.Element(atom.Ol, n.Data, children, html.Attribute{Key: "data-type", Val: "letters"}), nil
	default:
		return plugin.Element(atom.Ul, n.Data, children), nil
	}
}

func (List) Deserialize(_ *plugin.DeserializeContext, el *html.Node, children []*tree.Node) ([]*tree.Node, error) {
	if !plugin.IsElement(el, atom.Ul, atom.Ol) {
		return nil, plugin.ErrSkip
	}

	listType := ListBulleted
	if el.DataAtom == atom.Ol {
		listType = ListNumbered
		if plugin.Attr(el, "data-type") == "letters" {
			listType = ListLetters
		}
	}
	n := &tree.Node{Type: TypeList, Data: plugin.Data(el, "type"), Children: children}
	n.WithProp("listType", listType)
	return []*tree.Node{n}, nil
}

// Normalize gives lists without a known kind the bulleted kind.
func (List) Normalize(ctx *plugin.NormalizeContext) *tree.Op {
	n := ctx.Node
	if n.Type != TypeList || slices.Contains(listTypes, n.Prop("listType")) {
		return nil
	}
	op := tree.SetProps(ctx.Path, map[string]string{"listType": ListBulleted})
	return &op
}

func newListItem() *element {
	return newElement(TypeListItem, atom.Li, schema.Block, plugin.Rules{
		Children: plugin.Allow(TypeParagraph, TypeParagraph, TypeList, TypeEmbed, schema.TypeUnsupported),
		Parent:   plugin.Allow(TypeList, TypeList),
	})
}
