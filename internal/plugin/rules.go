package plugin

import (
	"slices"

	"github.com/roboco-io/articlehtml/internal/tree"
)

// Constraint restricts neighbouring types. A nil constraint allows everything.
type Constraint struct {
	Allowed     []string // allowed types; "" never matches, so a missing neighbour violates
	DefaultType string   // type created to repair a violation; "" means no repair by creation
}

// Allows reports whether typ satisfies the constraint.
func (c *Constraint) Allows(typ string) bool {
	if c == nil {
		return true
	}
	return typ != "" && slices.Contains(c.Allowed, typ)
}

// AllowsNode is Allows for a possibly missing node.
func (c *Constraint) AllowsNode(n *tree.Node) bool {
	if n == nil {
		return c.Allows("")
	}
	return c.Allows(n.Type)
}

// MergeRule merges adjacent siblings of the same type whose Props agree on Keys.
type MergeRule struct {
	Keys []string
}

// Mergeable reports whether b can be merged into a.
func (m *MergeRule) Mergeable(a, b *tree.Node) bool {
	if m == nil || a == nil || b == nil || a.Type != b.Type || a.IsText() {
		return false
	}
	for _, k := range m.Keys {
		if a.Prop(k) != b.Prop(k) {
			return false
		}
	}
	return true
}

// EmptyRule replaces a node left without children by ReplaceWith, or removes it when
// ReplaceWith is empty.
type EmptyRule struct {
	ReplaceWith string
}

// Rules are the declarative normalization constraints of a node type.
type Rules struct {
	Children *Constraint // allowed child types and the wrapper for violations
	First    *Constraint // allowed type of the first child
	Last     *Constraint // allowed type of the last child
	Previous *Constraint // allowed type of the previous sibling
	Next     *Constraint // allowed type of the next sibling
	Parent   *Constraint // allowed parent types and the wrapper for violations
	Merge    *MergeRule
	Empty    *EmptyRule
}

// Allow builds a constraint.
func Allow(defaultType string, allowed ...string) *Constraint {
	return &Constraint{Allowed: allowed, DefaultType: defaultType}
}

// Without returns types minus the excluded ones.
func Without(types []string, exclude ...string) []string {
	return slices.DeleteFunc(slices.Clone(types), func(t string) bool {
		return slices.Contains(exclude, t)
	})
}

// IsBare reports whether n is an element without data, props or content: no children or a
// single empty unmarked text.
func IsBare(n *tree.Node) bool {
	if n == nil || n.IsText() || len(n.Data) > 0 || len(n.Props) > 0 {
		return false
	}
	switch len(n.Children) {
	case 0:
		return true
	case 1:
		c := n.Children[0]
		return c.IsText() && c.Text == "" && c.Marks.IsZero()
	}
	return false
}
