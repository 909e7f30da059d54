package convert

import (
	"github.com/roboco-io/articlehtml/internal/schema"
	"github.com/roboco-io/articlehtml/internal/tree"
)

// Notice describes an unsupported node the user may lift out or remove.
type Notice struct {
	ID     string    `json:"id,omitempty"`
	Path   tree.Path `json:"path"`
	Tag    string    `json:"tag"`
	Inline bool      `json:"inline"`
}

// Unsupported lists the outermost unsupported nodes of a tree in document order.
func Unsupported(root *tree.Node) []Notice {
	var notices []Notice
	tree.Walk(root, func(n *tree.Node, path tree.Path) bool {
		if n.Type != schema.TypeUnsupported && n.Type != schema.TypeUnsupportedInline {
			return true
		}
		notices = append(notices, Notice{
			ID:     n.ID,
			Path:   path,
			Tag:    n.Prop(schema.PropTag),
			Inline: n.Type == schema.TypeUnsupportedInline,
		})
		return false
	})
	return notices
}
