// Package normalize brings content trees into normal form.
//
// The engine walks the tree post-order. At each node it evaluates an ordered rule list and
// applies the first transform found, re-visits the children the transform touched, then
// evaluates the node again until no rule fires. Whole-tree passes repeat until a pass applies
// no transform. The number of transforms is capped; exceeding the cap means some rules fight
// each other and the tree must not be used.
package normalize

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"

	"github.com/roboco-io/articlehtml/internal/plugin"
	"github.com/roboco-io/articlehtml/internal/schema"
	"github.com/roboco-io/articlehtml/internal/tree"
)

// ErrNotConverging is returned when normalization exceeds its transform budget.
var ErrNotConverging = errors.New("normalization did not converge")

const (
	DefaultIterationFactor = 10
	DefaultMinIterations   = 100
	DefaultBlock           = "paragraph"
)

// Engine normalizes trees using the rules of a plugin chain. An engine holds no per-tree
// state and may be shared.
type Engine struct {
	chain         *plugin.Chain
	registry      *schema.Registry
	logger        *slog.Logger
	factor        int
	minIterations int
	defaultBlock  string
	unknown       func(*tree.Node) *tree.Node
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithIterationFactor sets the transform budget per node of the input tree.
func WithIterationFactor(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.factor = n
		}
	}
}

// WithMinIterations sets the lower bound of the transform budget.
func WithMinIterations(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.minIterations = n
		}
	}
}

// WithDefaultBlock sets the block that wraps stray inline runs in containers without a
// children rule.
func WithDefaultBlock(typ string) Option {
	return func(e *Engine) {
		if typ != "" {
			e.defaultBlock = typ
		}
	}
}

// WithUnknownHandler replaces the conversion of unknown nodes into unsupported wrappers.
// The handler must return a node of a registered type.
func WithUnknownHandler(fn func(*tree.Node) *tree.Node) Option {
	return func(e *Engine) {
		if fn != nil {
			e.unknown = fn
		}
	}
}

// New creates an engine for the given chain.
func New(chain *plugin.Chain, opts ...Option) *Engine {
	e := &Engine{
		chain:         chain,
		registry:      chain.Registry(),
		logger:        slog.Default(),
		factor:        DefaultIterationFactor,
		minIterations: DefaultMinIterations,
		defaultBlock:  DefaultBlock,
	}
	e.unknown = e.wrapUnknown
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Chain returns the plugin chain the engine dispatches to.
func (e *Engine) Chain() *plugin.Chain {
	return e.chain
}

// Result contains statistics of a normalization run.
type Result struct {
	Passes     int `json:"passes"`
	Transforms int `json:"transforms"`
}

// Normalize mutates root in place until it is in normal form.
func (e *Engine) Normalize(root *tree.Node) (Result, error) {
	if root == nil {
		return Result{}, fmt.Errorf("cannot normalize nil tree")
	}

	r := &run{
		engine: e,
		root:   root,
		limit:  max(e.factor*tree.Count(root), e.minIterations),
	}

	var res Result
	for {
		res.Passes++
		before := r.transforms
		if err := r.visit(root, tree.Path{}); err != nil {
			res.Transforms = r.transforms
			return res, err
		}
		if r.transforms == before {
			break
		}
	}
	res.Transforms = r.transforms

	e.logger.Debug("Normalized tree", "passes", res.Passes, "transforms", res.Transforms)
	return res, nil
}

// run holds the state of one Normalize call.
type run struct {
	engine     *Engine
	root       *tree.Node
	limit      int
	transforms int
}

// visit normalizes the subtree at path: children first, then the node itself until no rule
// fires. Children touched by a transform are queued and re-visited before the node is
// evaluated again.
func (r *run) visit(n *tree.Node, path tree.Path) error {
	if n.IsText() {
		return nil
	}
	for i := 0; i < len(n.Children); i++ {
		if err := r.visit(n.Children[i], path.Child(i)); err != nil {
			return err
		}
	}

	for {
		op := r.engine.evaluate(r.root, n, path)
		if op == nil {
			return nil
		}
		dirty, err := r.apply(n, path, *op)
		if err != nil {
			return err
		}
		for len(dirty) > 0 {
			i := dirty[0]
			dirty = dirty[1:]
			if i < 0 || i >= len(n.Children) {
				continue
			}
			if err := r.visit(n.Children[i], path.Child(i)); err != nil {
				return err
			}
		}
	}
}

// apply applies an op addressed below n and returns the indexes of n's children to re-visit.
func (r *run) apply(n *tree.Node, path tree.Path, op tree.Op) ([]int, error) {
	if !path.IsAncestorOf(op.Path) {
		return nil, fmt.Errorf("normalize %s at %v: %s targets a node outside the subtree", n.Type, path, op)
	}

	i := op.Path[len(path)]
	dirty := []int{i}
	if len(op.Path) == len(path)+1 {
		switch op.Kind {
		case tree.OpInsertNode, tree.OpReplaceNode:
			dirty = span(i, len(op.Nodes))
		case tree.OpRemoveNode:
			dirty = nil
		case tree.OpUnwrapNode:
			if i < len(n.Children) {
				dirty = span(i, len(n.Children[i].Children))
			}
		case tree.OpMergeNode:
			dirty = []int{i - 1}
		case tree.OpSplitNode:
			dirty = []int{i, i + 1}
		}
	}

	if err := tree.Apply(r.root, op); err != nil {
		return nil, fmt.Errorf("normalize %s at %v: %w", n.Type, path, err)
	}

	r.transforms++
	if r.transforms > r.limit {
		return nil, fmt.Errorf("%w: more than %d transforms (last %s on %s at %v)",
			ErrNotConverging, r.limit, op, n.Type, path)
	}
	return dirty, nil
}

func span(start, count int) []int {
	out := make([]int, count)
	for k := range out {
		out[k] = start + k
	}
	return out
}

// wrapUnknown converts a node of an unregistered type into the unsupported wrapper. The
// original type is kept in the tag prop; data, props and children are preserved. Types named
// like a block-level HTML element become block wrappers so the output parses back the same.
func (e *Engine) wrapUnknown(n *tree.Node) *tree.Node {
	typ := schema.TypeUnsupportedInline
	if e.holdsBlocks(n) || plugin.IsBlockTag(n.Type) {
		typ = schema.TypeUnsupported
	}
	e.logger.Warn("Unknown node type", "type", n.Type, "as", typ)

	props := maps.Clone(n.Props)
	if props == nil {
		props = make(map[string]string)
	}
	delete(props, schema.PropMarkup)
	delete(props, schema.PropDigest)
	props[schema.PropTag] = n.Type
	return &tree.Node{ID: n.ID, Type: typ, Data: n.Data, Props: props, Children: n.Children}
}

// holdsBlocks reports whether n has a block child, looking through unknown children.
func (e *Engine) holdsBlocks(n *tree.Node) bool {
	for _, c := range n.Children {
		if c.IsText() {
			continue
		}
		if e.registry.IsBlock(c.Type) {
			return true
		}
		if !e.registry.Known(c.Type) && e.holdsBlocks(c) {
			return true
		}
	}
	return false
}
