package plugin

import (
	"errors"
	"fmt"
	"slices"

	"golang.org/x/net/html"

	"github.com/roboco-io/articlehtml/internal/schema"
	"github.com/roboco-io/articlehtml/internal/tree"
)

// Chain is an ordered plugin list. Dispatch walks the list in registration order and the
// first plugin that does not skip wins. A chain is read-only once built and safe to share.
type Chain struct {
	plugins  []Plugin
	registry *schema.Registry
	rules    map[string]Rules
	owners   map[string]string
}

// NewChain registers every node type of the given plugins, in order.
func NewChain(plugins ...Plugin) (*Chain, error) {
	c := &Chain{
		registry: schema.NewRegistry(),
		rules:    make(map[string]Rules),
		owners:   make(map[string]string),
	}

	seen := make(map[string]bool, len(plugins))
	for _, p := range plugins {
		if p == nil {
			return nil, fmt.Errorf("cannot register nil plugin")
		}
		name := p.Name()
		if name == "" {
			return nil, fmt.Errorf("plugin name cannot be empty")
		}
		if seen[name] {
			return nil, fmt.Errorf("plugin already registered: %s", name)
		}
		seen[name] = true

		for _, nt := range p.Types() {
			if err := c.register(name, nt); err != nil {
				return nil, fmt.Errorf("plugin %s: %w", name, err)
			}
		}
		c.plugins = append(c.plugins, p)
	}
	return c, nil
}

// register records a node type. A type declared without a class attaches rules to a type
// that is already known, such as the built-in document.
func (c *Chain) register(plugin string, nt NodeType) error {
	if _, owned := c.owners[nt.Name]; owned {
		return fmt.Errorf("node type already registered: %s", nt.Name)
	}
	if nt.Class == schema.Unsupported {
		if !c.registry.Known(nt.Name) {
			return fmt.Errorf("node type %s: class cannot be empty", nt.Name)
		}
	} else if err := c.registry.Register(nt.Name, nt.Class); err != nil {
		return err
	}
	c.rules[nt.Name] = nt.Rules
	c.owners[nt.Name] = plugin
	return nil
}

// Registry returns the type registry filled by the chain's plugins.
func (c *Chain) Registry() *schema.Registry {
	return c.registry
}

// Plugins returns the plugins in dispatch order.
func (c *Chain) Plugins() []Plugin {
	return slices.Clone(c.plugins)
}

// Owner returns the name of the plugin that registered typ.
func (c *Chain) Owner(typ string) string {
	return c.owners[typ]
}

// Rules returns the normalization rules of a type. Unknown types have none.
func (c *Chain) Rules(typ string) Rules {
	return c.rules[typ]
}

// Accepts reports whether a node of type parent may hold a child of type child.
func (c *Chain) Accepts(parent, child string) bool {
	if r := c.rules[parent]; r.Children != nil {
		return r.Children.Allows(child)
	}
	pc := c.registry.Class(parent)
	if pc.Has(schema.Void) {
		return false
	}
	if pc.Has(schema.TextBlock) || pc.Has(schema.Inline) {
		return c.registry.IsInline(child)
	}
	return true
}

// Serialize dispatches to the first plugin that does not skip.
func (c *Chain) Serialize(ctx *SerializeContext, n *tree.Node, children []*html.Node) (*html.Node, error) {
	if ctx.Chain == nil {
		ctx.Chain = c
	}
	for _, p := range c.plugins {
		out, err := p.Serialize(ctx, n, children)
		if errors.Is(err, ErrSkip) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("plugin %s: %w", p.Name(), err)
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnhandled, n.Type)
}

// Deserialize dispatches to the first plugin that does not skip.
func (c *Chain) Deserialize(ctx *DeserializeContext, el *html.Node, children []*tree.Node) ([]*tree.Node, error) {
	if ctx.Chain == nil {
		ctx.Chain = c
	}
	for _, p := range c.plugins {
		out, err := p.Deserialize(ctx, el, children)
		if errors.Is(err, ErrSkip) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("plugin %s: %w", p.Name(), err)
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: <%s>", ErrUnhandled, el.Data)
}

// Normalize returns the first transform proposed by a plugin hook, or nil.
func (c *Chain) Normalize(ctx *NormalizeContext) *tree.Op {
	if ctx.Chain == nil {
		ctx.Chain = c
	}
	for _, p := range c.plugins {
		if op := p.Normalize(ctx); op != nil {
			return op
		}
	}
	return nil
}

// Opaque reports whether a plugin reads the raw content of el itself.
func (c *Chain) Opaque(el *html.Node) bool {
	for _, p := range c.plugins {
		if o, ok := p.(Opaque); ok && o.Opaque(el) {
			return true
		}
	}
	return false
}

// IsPadding reports whether the child at index is a bare node that normalization would
// recreate from its neighbours' Previous or Next rules if it were removed. Such nodes exist
// only to give the cursor a place between two non-text blocks.
func (c *Chain) IsPadding(parent *tree.Node, index int) bool {
	if parent == nil || index < 0 || index >= len(parent.Children) {
		return false
	}
	n := parent.Children[index]
	if !IsBare(n) || !c.Accepts(parent.Type, n.Type) {
		return false
	}

	var left, right *tree.Node
	if index > 0 {
		left = parent.Children[index-1]
	}
	if index+1 < len(parent.Children) {
		right = parent.Children[index+1]
	}

	if right != nil {
		if r := c.rules[right.Type].Previous; r != nil && r.DefaultType == n.Type && !r.AllowsNode(left) {
			return true
		}
	}
	if left != nil {
		if r := c.rules[left.Type].Next; r != nil && r.DefaultType == n.Type && !r.AllowsNode(right) {
			return true
		}
	}
	return false
}
