// Package schema classifies content-node types.
// Plugins register the class of every type they own; the normalizer and the conversion
// pipeline consult the registry instead of hardcoding type names.
package schema

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/roboco-io/articlehtml/internal/tree"
)

// Class is a bit set describing the structural role of a node type.
type Class uint8

const (
	Block     Class = 1 << iota // contains blocks or text and inlines
	Inline                      // lives inside a run of text
	Void                        // has no editable content of its own
	TextBlock                   // block whose content is text and inlines; never left empty
)

// Unsupported is the class of unregistered types.
const Unsupported Class = 0

// Marker types standing in for unknown elements.
const (
	TypeUnsupported       = "unsupported"
	TypeUnsupportedInline = "unsupported-inline"
)

// Props of the unsupported markers.
const (
	PropTag    = "type"   // element name the node renders as
	PropMarkup = "html"   // markup captured when the element was parsed
	PropDigest = "digest" // digest of the rendered children the markup belongs to
)

// Has reports whether all bits of o are set in c.
func (c Class) Has(o Class) bool {
	return o != 0 && c&o == o
}

func (c Class) String() string {
	if c == Unsupported {
		return "unsupported"
	}
	var parts []string
	if c.Has(TextBlock) {
		parts = append(parts, "text-block")
	} else if c.Has(Block) {
		parts = append(parts, "block")
	}
	if c.Has(Inline) {
		parts = append(parts, "inline")
	}
	if c.Has(Void) {
		parts = append(parts, "void")
	}
	return strings.Join(parts, "|")
}

// Registry maps node types to their class.
type Registry struct {
	mu      sync.RWMutex
	classes map[string]Class
}

// NewRegistry creates a registry holding the built-in types: document, text and the two
// unsupported markers.
func NewRegistry() *Registry {
	return &Registry{
		classes: map[string]Class{
			tree.TypeDocument:     Block,
			tree.TypeText:         Inline,
			TypeUnsupported:       Block,
			TypeUnsupportedInline: Inline,
		},
	}
}

// Register declares the class of a node type.
func (r *Registry) Register(typ string, class Class) error {
	if typ == "" {
		return fmt.Errorf("node type cannot be empty")
	}
	if class == Unsupported {
		return fmt.Errorf("node type %s: class cannot be empty", typ)
	}
	if class.Has(TextBlock) {
		class |= Block
	}
	if class.Has(Block) && class.Has(Inline) {
		return fmt.Errorf("node type %s: cannot be both block and inline", typ)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.classes[typ]; exists {
		return fmt.Errorf("node type already registered: %s", typ)
	}
	r.classes[typ] = class
	return nil
}

// Lookup returns the class of a type. Unknown types report Unsupported and false.
func (r *Registry) Lookup(typ string) (Class, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.classes[typ]
	return c, ok
}

// Class returns the class of a type, Unsupported for unknown types.
func (r *Registry) Class(typ string) Class {
	c, _ := r.Lookup(typ)
	return c
}

// Known reports whether the type is registered.
func (r *Registry) Known(typ string) bool {
	_, ok := r.Lookup(typ)
	return ok
}

func (r *Registry) IsBlock(typ string) bool     { return r.Class(typ).Has(Block) }
func (r *Registry) IsInline(typ string) bool    { return r.Class(typ).Has(Inline) }
func (r *Registry) IsVoid(typ string) bool      { return r.Class(typ).Has(Void) }
func (r *Registry) IsTextBlock(typ string) bool { return r.Class(typ).Has(TextBlock) }

// IsText reports whether the node is a text leaf.
func (r *Registry) IsText(n *tree.Node) bool {
	return n.IsText()
}

// IsInlineNode reports whether a node belongs to a run of text: text leaves and inline elements.
func (r *Registry) IsInlineNode(n *tree.Node) bool {
	return n.IsText() || r.IsInline(n.Type)
}

// Types returns all registered type names (sorted).
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.classes))
	for name := range r.classes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
