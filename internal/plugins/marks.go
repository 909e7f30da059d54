package plugins

import (
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/roboco-io/articlehtml/internal/plugin"
	"github.com/roboco-io/articlehtml/internal/tree"
)

// markTags lists the mark wrappers from outermost to innermost. Deserialization also accepts
// the alternative tags.
var markTags = []struct {
	tag  atom.Atom
	alt  atom.Atom
	has  func(tree.Marks) bool
	with func(*tree.Marks)
}{
	{atom.Strong, atom.B, func(m tree.Marks) bool { return m.Bold }, func(m *tree.Marks) { m.Bold = true }},
	{atom.Em, atom.I, func(m tree.Marks) bool { return m.Italic }, func(m *tree.Marks) { m.Italic = true }},
	{atom.U, 0, func(m tree.Marks) bool { return m.Underline }, func(m *tree.Marks) { m.Underline = true }},
	{atom.Sup, 0, func(m tree.Marks) bool { return m.Sup }, func(m *tree.Marks) { m.Sup = true }},
	{atom.Sub, 0, func(m tree.Marks) bool { return m.Sub }, func(m *tree.Marks) { m.Sub = true }},
	{atom.Code, 0, func(m tree.Marks) bool { return m.Code }, func(m *tree.Marks) { m.Code = true }},
}

// Marks converts text leaves and character formatting.
type Marks struct {
	plugin.Base
}

func (Marks) Name() string { return "marks" }

func (Marks) Serialize(_ *plugin.SerializeContext, n *tree.Node, _ []*html.Node) (*html.Node, error) {
	if !n.IsText() {
		return nil, plugin.ErrSkip
	}
	out := plugin.Text(n.Text)
	if n.Text == "" {
		return out, nil
	}
	for i := len(markTags) - 1; i >= 0; i-- {
		if mt := markTags[i]; mt.has(n.Marks) {
			out = plugin.Element(mt.tag, nil, []*html.Node{out})
		}
	}
	return out, nil
}

func (Marks) Deserialize(_ *plugin.DeserializeContext, el *html.Node, children []*tree.Node) ([]*tree.Node, error) {
	if el.Type == html.TextNode {
		return []*tree.Node{tree.NewText(el.Data)}, nil
	}
	if el.Type != html.ElementNode {
		return nil, plugin.ErrSkip
	}
	for _, mt := range markTags {
		if el.DataAtom != mt.tag && (mt.alt == 0 || el.DataAtom != mt.alt) {
			continue
		}
		for _, c := range children {
			tree.Walk(c, func(n *tree.Node, _ tree.Path) bool {
				if n.IsText() {
					mt.with(&n.Marks)
				}
				return true
			})
		}
		return children, nil
	}
	return nil, plugin.ErrSkip
}
