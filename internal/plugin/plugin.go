// Package plugin defines the contract every content type implements and the ordered chain
// the normalizer and the conversion pipeline dispatch through.
package plugin

import (
	"errors"
	"log/slog"

	"golang.org/x/net/html"

	"github.com/roboco-io/articlehtml/internal/schema"
	"github.com/roboco-io/articlehtml/internal/tree"
)

var (
	// ErrSkip means the plugin has no opinion; the chain tries the next plugin.
	ErrSkip = errors.New("plugin: skip")
	// ErrOmit drops the node from the serialized output.
	ErrOmit = errors.New("plugin: omit")
	// ErrUnhandled is returned by the chain when every plugin skipped.
	ErrUnhandled = errors.New("plugin: no plugin handled the node")
)

// NodeType declares a node type owned by a plugin.
type NodeType struct {
	Name  string
	Class schema.Class
	Rules Rules
}

// Plugin is the interface that all content-type plugins must implement.
type Plugin interface {
	// Name returns the plugin identifier (e.g., "paragraph", "marks").
	Name() string

	// Types returns the node types the plugin registers. Plugins that only take part in
	// conversion return nil.
	Types() []NodeType

	// Serialize converts a tree node to HTML. children holds the already serialized children,
	// omitted ones removed. Return ErrSkip to pass, ErrOmit to drop the node.
	Serialize(ctx *SerializeContext, n *tree.Node, children []*html.Node) (*html.Node, error)

	// Deserialize converts an HTML node to zero or more tree nodes. children holds the already
	// deserialized children of el. Return ErrSkip to pass.
	Deserialize(ctx *DeserializeContext, el *html.Node, children []*tree.Node) ([]*tree.Node, error)

	// Normalize returns a single corrective transform for ctx.Node, or nil.
	Normalize(ctx *NormalizeContext) *tree.Op
}

// Opaque is implemented by plugins that read the raw content of some elements themselves.
// The pipeline does not deserialize the children of opaque elements.
type Opaque interface {
	Opaque(el *html.Node) bool
}

// Base answers "no opinion" to every call. Plugins embed it and override what they handle.
type Base struct{}

func (Base) Types() []NodeType { return nil }

func (Base) Serialize(*SerializeContext, *tree.Node, []*html.Node) (*html.Node, error) {
	return nil, ErrSkip
}

func (Base) Deserialize(*DeserializeContext, *html.Node, []*tree.Node) ([]*tree.Node, error) {
	return nil, ErrSkip
}

func (Base) Normalize(*NormalizeContext) *tree.Op { return nil }

// SerializeContext describes the position of the node being serialized.
type SerializeContext struct {
	Chain  *Chain
	Parent *tree.Node // nil for the root
	Index  int        // position within Parent
	Path   tree.Path
}

// DeserializeContext carries shared state of a deserialization run.
type DeserializeContext struct {
	Chain  *Chain
	Logger *slog.Logger
}

// NormalizeContext describes the node being evaluated and its surroundings.
type NormalizeContext struct {
	Chain  *Chain
	Root   *tree.Node
	Parent *tree.Node
	Node   *tree.Node
	Path   tree.Path // path of Node
}

// Index returns the position of the node within its parent.
func (c *NormalizeContext) Index() int {
	return c.Path.Index()
}

// Previous returns the previous sibling or nil.
func (c *NormalizeContext) Previous() *tree.Node {
	i := c.Index()
	if c.Parent == nil || i <= 0 {
		return nil
	}
	return c.Parent.Children[i-1]
}

// Next returns the next sibling or nil.
func (c *NormalizeContext) Next() *tree.Node {
	i := c.Index()
	if c.Parent == nil || i < 0 || i+1 >= len(c.Parent.Children) {
		return nil
	}
	return c.Parent.Children[i+1]
}

// Ancestors returns the nodes from the root down to the parent.
func (c *NormalizeContext) Ancestors() []*tree.Node {
	out := make([]*tree.Node, 0, len(c.Path))
	n := c.Root
	for _, i := range c.Path {
		out = append(out, n)
		n = n.Children[i]
	}
	return out
}

// Registry is a shortcut for the chain's type registry.
func (c *NormalizeContext) Registry() *schema.Registry {
	return c.Chain.Registry()
}
