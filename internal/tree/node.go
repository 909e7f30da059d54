// Package tree defines the in-memory content tree of an article.
// A tree is rooted at a document node whose children are sections. Every node is owned by
// exactly one parent through its Children slice; there are no parent back-references, and
// positions are addressed by Path.
package tree

import (
	"maps"
	"strings"
)

const (
	// TypeDocument is the type of the root node.
	TypeDocument = "document"
	// TypeText is the type of text leaves.
	TypeText = "text"
)

// Node is an element or a text leaf of the content tree.
type Node struct {
	ID       string            `json:"id,omitempty"`    // optional stable id for cross-references
	Type     string            `json:"type"`            // element type, or TypeText
	Data     map[string]string `json:"data,omitempty"`  // data-* attributes, without the prefix
	Props    map[string]string `json:"props,omitempty"` // per-type fields (level, listType, href, ...)
	Children []*Node           `json:"children,omitempty"`
	Text     string            `json:"text,omitempty"`
	Marks    Marks             `json:"marks,omitzero"`
}

// Marks contains character-level formatting of a text leaf.
type Marks struct {
	Bold      bool `json:"bold,omitempty"`
	Italic    bool `json:"italic,omitempty"`
	Underline bool `json:"underline,omitempty"`
	Code      bool `json:"code,omitempty"`
	Sup       bool `json:"sup,omitempty"`
	Sub       bool `json:"sub,omitempty"`
}

// IsZero returns true if no mark is set.
func (m Marks) IsZero() bool {
	return m == Marks{}
}

// Union returns the marks set in either m or o.
func (m Marks) Union(o Marks) Marks {
	return Marks{
		Bold:      m.Bold || o.Bold,
		Italic:    m.Italic || o.Italic,
		Underline: m.Underline || o.Underline,
		Code:      m.Code || o.Code,
		Sup:       m.Sup || o.Sup,
		Sub:       m.Sub || o.Sub,
	}
}

// NewDocument creates a document root holding the given sections.
func NewDocument(children ...*Node) *Node {
	return NewElement(TypeDocument, children...)
}

// NewElement creates an element node.
func NewElement(typ string, children ...*Node) *Node {
	return &Node{
		Type:     typ,
		Children: children,
	}
}

// NewText creates a text leaf without marks.
func NewText(text string) *Node {
	return &Node{
		Type: TypeText,
		Text: text,
	}
}

// NewMarkedText creates a text leaf with marks.
func NewMarkedText(text string, marks Marks) *Node {
	return &Node{
		Type:  TypeText,
		Text:  text,
		Marks: marks,
	}
}

// IsText returns true for text leaves.
func (n *Node) IsText() bool {
	return n != nil && n.Type == TypeText
}

// WithData sets a data field and returns the node.
func (n *Node) WithData(key, value string) *Node {
	if n.Data == nil {
		n.Data = make(map[string]string)
	}
	n.Data[key] = value
	return n
}

// WithProp sets a per-type field and returns the node.
func (n *Node) WithProp(key, value string) *Node {
	if n.Props == nil {
		n.Props = make(map[string]string)
	}
	n.Props[key] = value
	return n
}

// Prop returns a per-type field or "".
func (n *Node) Prop(key string) string {
	if n.Props == nil {
		return ""
	}
	return n.Props[key]
}

// TextContent concatenates the text of all descendant leaves.
func (n *Node) TextContent() string {
	if n.IsText() {
		return n.Text
	}
	var sb strings.Builder
	for _, c := range n.Children {
		sb.WriteString(c.TextContent())
	}
	return sb.String()
}

// Clone returns a deep copy of the node, ids included.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	c := &Node{
		ID:    n.ID,
		Type:  n.Type,
		Data:  maps.Clone(n.Data),
		Props: maps.Clone(n.Props),
		Text:  n.Text,
		Marks: n.Marks,
	}
	if n.Children != nil {
		c.Children = make([]*Node, len(n.Children))
		for i, child := range n.Children {
			c.Children[i] = child.Clone()
		}
	}
	return c
}

// Equal reports whether two trees are structurally equal. Ids are ignored and nil maps equal
// empty maps.
func Equal(a, b *Node) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Type != b.Type || a.Text != b.Text || a.Marks != b.Marks {
		return false
	}
	if !maps.Equal(a.Data, b.Data) || !maps.Equal(a.Props, b.Props) {
		return false
	}
	if len(a.Children) != len(b.Children) {
		return false
	}
	for i := range a.Children {
		if !Equal(a.Children[i], b.Children[i]) {
			return false
		}
	}
	return true
}

// Walk visits n and its descendants in pre-order. Returning false from fn skips the
// children of the visited node.
func Walk(n *Node, fn func(n *Node, path Path) bool) {
	walk(n, nil, fn)
}

func walk(n *Node, path Path, fn func(n *Node, path Path) bool) {
	if !fn(n, path) {
		return
	}
	for i, c := range n.Children {
		walk(c, path.Child(i), fn)
	}
}

// Count returns the number of nodes in the tree, root included.
func Count(n *Node) int {
	count := 0
	Walk(n, func(*Node, Path) bool {
		count++
		return true
	})
	return count
}

// AssignIDs gives every element without an id a fresh one from gen.
func AssignIDs(root *Node, gen func() string) {
	Walk(root, func(n *Node, _ Path) bool {
		if !n.IsText() && n.ID == "" {
			n.ID = gen()
		}
		return true
	})
}

// Index maps node ids to their current paths.
func Index(root *Node) map[string]Path {
	idx := make(map[string]Path)
	Walk(root, func(n *Node, path Path) bool {
		if n.ID != "" {
			idx[n.ID] = path
		}
		return true
	})
	return idx
}

// FindByID returns the node with the given id and its path.
func FindByID(root *Node, id string) (*Node, Path, bool) {
	var (
		found *Node
		at    Path
	)
	Walk(root, func(n *Node, path Path) bool {
		if found != nil {
			return false
		}
		if n.ID == id {
			found, at = n, path
			return false
		}
		return true
	})
	return found, at, found != nil
}
