package normalize

import (
	"slices"
	"strings"

	"github.com/roboco-io/articlehtml/internal/plugin"
	"github.com/roboco-io/articlehtml/internal/schema"
	"github.com/roboco-io/articlehtml/internal/tree"
)

// maxWrapDepth bounds the search through default child types when looking for a wrapper.
const maxWrapDepth = 4

// evaluate returns the first transform that applies to the children of p, or nil.
// Rules run in a fixed order; type-specific rules come before the global repairs.
func (e *Engine) evaluate(root, p *tree.Node, path tree.Path) *tree.Op {
	rules := []func() *tree.Op{
		func() *tree.Op { return e.unknownChild(p, path) },
		func() *tree.Op { return e.strayWhitespace(p, path) },
		func() *tree.Op { return e.liftBlocks(p, path) },
		func() *tree.Op { return e.liftStranded(p, path) },
		func() *tree.Op { return e.childRules(root, p, path) },
		func() *tree.Op { return e.ownRules(p, path) },
		func() *tree.Op { return e.repair(p, path) },
	}
	for _, rule := range rules {
		if op := rule(); op != nil {
			return op
		}
	}
	return nil
}

func opRef(op tree.Op) *tree.Op {
	return &op
}

// newNode creates an empty node of the given type.
func newNode(typ string) *tree.Node {
	if typ == tree.TypeText {
		return tree.NewText("")
	}
	return tree.NewElement(typ)
}

// unknownChild replaces the first child of an unregistered type with the unsupported wrapper.
func (e *Engine) unknownChild(p *tree.Node, path tree.Path) *tree.Op {
	for i, c := range p.Children {
		if c.IsText() || e.registry.Known(c.Type) {
			continue
		}
		return opRef(tree.Replace(path.Child(i), e.unknown(c)))
	}
	return nil
}

// strayWhitespace removes whitespace-only text from block containers unless it separates two
// inline nodes.
func (e *Engine) strayWhitespace(p *tree.Node, path tree.Path) *tree.Op {
	class := e.registry.Class(p.Type)
	if !class.Has(schema.Block) || class.Has(schema.TextBlock) {
		return nil
	}
	for i, c := range p.Children {
		if !c.IsText() || strings.TrimSpace(c.Text) != "" {
			continue
		}
		if i > 0 && i+1 < len(p.Children) &&
			e.registry.IsInlineNode(p.Children[i-1]) && e.registry.IsInlineNode(p.Children[i+1]) {
			continue
		}
		return opRef(tree.Remove(path.Child(i)))
	}
	return nil
}

// liftBlocks unwraps text blocks and inline elements that hold blocks.
func (e *Engine) liftBlocks(p *tree.Node, path tree.Path) *tree.Op {
	for i, c := range p.Children {
		if c.IsText() {
			continue
		}
		class := e.registry.Class(c.Type)
		if !class.Has(schema.TextBlock) && !class.Has(schema.Inline) {
			continue
		}
		if slices.ContainsFunc(c.Children, e.isBlockNode) {
			return opRef(tree.Unwrap(path.Child(i)))
		}
	}
	return nil
}

// stranded reports whether c is a childless void block that the children rule r rejects and
// no default wrapper can hold. Such a node is lifted out by the grandparent rather than
// removed.
func (e *Engine) stranded(c *tree.Node, r *plugin.Constraint) bool {
	if c.IsText() || len(c.Children) > 0 || r.Allows(c.Type) {
		return false
	}
	class := e.registry.Class(c.Type)
	if !class.Has(schema.Void) || !class.Has(schema.Block) {
		return false
	}
	return r.DefaultType == "" || !e.reaches(r.DefaultType, c.Type)
}

// liftStranded moves the first stranded grandchild up one level: the child holding it is
// split so that the stranded node sits alone in one part, which is then unwrapped.
func (e *Engine) liftStranded(p *tree.Node, path tree.Path) *tree.Op {
	for i, c := range p.Children {
		if c.IsText() {
			continue
		}
		r := e.chain.Rules(c.Type).Children
		if r == nil {
			continue
		}
		for k, g := range c.Children {
			if !e.stranded(g, r) {
				continue
			}
			at := path.Child(i)
			switch {
			case k > 0:
				return opRef(tree.Split(at, k))
			case len(c.Children) > 1:
				return opRef(tree.Split(at, 1))
			default:
				return opRef(tree.Unwrap(at))
			}
		}
	}
	return nil
}

// childRules evaluates the type-specific rules of each child: empty handling, plugin hooks,
// then the Parent, Previous, Next and Merge constraints.
func (e *Engine) childRules(root, p *tree.Node, path tree.Path) *tree.Op {
	for i, c := range p.Children {
		if c.IsText() {
			continue
		}
		at := path.Child(i)
		rules := e.chain.Rules(c.Type)

		if r := rules.Empty; r != nil && len(c.Children) == 0 {
			if r.ReplaceWith == "" {
				return opRef(tree.Remove(at))
			}
			return opRef(tree.Replace(at, newNode(r.ReplaceWith)))
		}

		ctx := &plugin.NormalizeContext{Chain: e.chain, Root: root, Parent: p, Node: c, Path: at}
		if op := e.chain.Normalize(ctx); op != nil {
			return op
		}

		if r := rules.Parent; r != nil && !r.Allows(p.Type) {
			if r.DefaultType != "" && e.chain.Accepts(p.Type, r.DefaultType) {
				j := i + 1
				for j < len(p.Children) && p.Children[j].Type == c.Type {
					j++
				}
				return opRef(tree.Wrap(at, j-i, newNode(r.DefaultType)))
			}
			if len(c.Children) > 0 {
				return opRef(tree.Unwrap(at))
			}
			return opRef(tree.Remove(at))
		}

		// A child the parent rejects is repaired by ownRules; padding it would leave strays.
		if !e.chain.Accepts(p.Type, c.Type) {
			continue
		}

		var prev, next *tree.Node
		if i > 0 {
			prev = p.Children[i-1]
		}
		if i+1 < len(p.Children) {
			next = p.Children[i+1]
		}

		if r := rules.Previous; r != nil && !r.AllowsNode(prev) && e.settled(p, prev) && e.canPad(p, r) {
			return opRef(tree.Insert(at, newNode(r.DefaultType)))
		}
		if r := rules.Next; r != nil && !r.AllowsNode(next) && e.settled(p, next) && e.canPad(p, r) {
			return opRef(tree.Insert(path.Child(i+1), newNode(r.DefaultType)))
		}
		if rules.Merge.Mergeable(prev, c) {
			return opRef(tree.Merge(at))
		}
	}
	return nil
}

// settled reports whether a neighbour keeps its place. Inline neighbours of a block are
// about to be wrapped, and padding next to them would outlive the wrap.
func (e *Engine) settled(p, n *tree.Node) bool {
	return n == nil || (!e.registry.IsInlineNode(n) && e.chain.Accepts(p.Type, n.Type))
}

// canPad reports whether p may receive the default node of a sibling constraint.
func (e *Engine) canPad(p *tree.Node, r *plugin.Constraint) bool {
	return r.DefaultType != "" && e.chain.Accepts(p.Type, r.DefaultType)
}

// ownRules evaluates the Children, First and Last constraints of p.
func (e *Engine) ownRules(p *tree.Node, path tree.Path) *tree.Op {
	rules := e.chain.Rules(p.Type)

	if r := rules.Children; r != nil {
		for i, c := range p.Children {
			if r.Allows(c.Type) {
				continue
			}
			if op := e.childViolation(p, path, i, r); op != nil {
				return op
			}
		}
	}
	if len(p.Children) == 0 {
		return nil
	}
	if r := rules.First; r != nil && r.DefaultType != "" && !r.AllowsNode(p.Children[0]) {
		return opRef(tree.Insert(path.Child(0), newNode(r.DefaultType)))
	}
	if r := rules.Last; r != nil && r.DefaultType != "" && !r.AllowsNode(p.Children[len(p.Children)-1]) {
		return opRef(tree.Insert(path.Child(len(p.Children)), newNode(r.DefaultType)))
	}
	return nil
}

// childViolation repairs the disallowed child at index i. In order of preference: wrap the run
// of disallowed siblings in the default type when it (or its own default, recursively) accepts
// them; convert a text block into the default text block; unwrap; remove. A stranded void
// block below the root is left for the grandparent to lift out.
func (e *Engine) childViolation(p *tree.Node, path tree.Path, i int, r *plugin.Constraint) *tree.Op {
	c := p.Children[i]
	at := path.Child(i)

	if len(path) > 0 && e.stranded(c, r) {
		return nil
	}

	if r.DefaultType != "" && e.reaches(r.DefaultType, c.Type) {
		j := i + 1
		for j < len(p.Children) {
			t := p.Children[j].Type
			if r.Allows(t) || !e.reaches(r.DefaultType, t) {
				break
			}
			j++
		}
		return opRef(tree.Wrap(at, j-i, newNode(r.DefaultType)))
	}

	if !c.IsText() && e.registry.IsTextBlock(c.Type) && e.registry.IsTextBlock(r.DefaultType) {
		return opRef(tree.Replace(at, &tree.Node{ID: c.ID, Type: r.DefaultType, Data: c.Data, Children: c.Children}))
	}
	if !c.IsText() && len(c.Children) > 0 {
		return opRef(tree.Unwrap(at))
	}
	return opRef(tree.Remove(at))
}

// reaches reports whether a node of type typ, or the chain of default children below it,
// accepts a child of type child.
func (e *Engine) reaches(typ, child string) bool {
	for depth := 0; typ != "" && depth < maxWrapDepth; depth++ {
		if e.chain.Accepts(typ, child) {
			return true
		}
		r := e.chain.Rules(typ).Children
		if r == nil {
			return false
		}
		typ = r.DefaultType
	}
	return false
}

// repair applies the global rules: void nodes lose their children, mixed children are
// wrapped, adjacent equal texts merge, empty texts are dropped or cleaned, and empty blocks
// receive content.
func (e *Engine) repair(p *tree.Node, path tree.Path) *tree.Op {
	class := e.registry.Class(p.Type)
	rules := e.chain.Rules(p.Type)
	n := len(p.Children)

	if class.Has(schema.Void) {
		if n > 0 {
			return opRef(tree.Remove(path.Child(0)))
		}
		return nil
	}

	if op := e.wrapInlineRuns(p, path, class, rules); op != nil {
		return op
	}

	for i := 1; i < n; i++ {
		a, b := p.Children[i-1], p.Children[i]
		if a.IsText() && b.IsText() && a.Marks == b.Marks {
			return opRef(tree.Merge(path.Child(i)))
		}
	}

	if n > 1 {
		for i, c := range p.Children {
			if c.IsText() && c.Text == "" {
				return opRef(tree.Remove(path.Child(i)))
			}
		}
	}

	if n == 1 {
		if c := p.Children[0]; c.IsText() && c.Text == "" && !c.Marks.IsZero() {
			return opRef(tree.SetMarks(path.Child(0), tree.Marks{}))
		}
	}

	if n == 0 {
		switch {
		case class.Has(schema.TextBlock):
			return opRef(tree.Insert(path.Child(0), tree.NewText("")))
		case class.Has(schema.Block) && rules.Empty == nil && rules.Children != nil && rules.Children.DefaultType != "":
			return opRef(tree.Insert(path.Child(0), newNode(rules.Children.DefaultType)))
		}
	}
	return nil
}

// wrapInlineRuns wraps the first run of text and inline nodes in the default block when a
// container without a children rule mixes them with blocks.
func (e *Engine) wrapInlineRuns(p *tree.Node, path tree.Path, class schema.Class, rules plugin.Rules) *tree.Op {
	if rules.Children != nil || !class.Has(schema.Block) || class.Has(schema.TextBlock) {
		return nil
	}
	if !slices.ContainsFunc(p.Children, e.isBlockNode) {
		return nil
	}
	for i, c := range p.Children {
		if !e.registry.IsInlineNode(c) {
			continue
		}
		j := i + 1
		for j < len(p.Children) && e.registry.IsInlineNode(p.Children[j]) {
			j++
		}
		return opRef(tree.Wrap(path.Child(i), j-i, newNode(e.defaultBlock)))
	}
	return nil
}

func (e *Engine) isBlockNode(n *tree.Node) bool {
	return !n.IsText() && e.registry.IsBlock(n.Type)
}

// RepairMixed wraps runs of text and inline nodes of a block container in the default block
// when the container also holds blocks. Runs made only of whitespace are dropped. The
// conversion pipeline applies it while building a tree from HTML.
func (e *Engine) RepairMixed(n *tree.Node) {
	if n == nil || n.IsText() {
		return
	}
	class := e.registry.Class(n.Type)
	if !class.Has(schema.Block) || class.Has(schema.TextBlock) {
		return
	}
	if !slices.ContainsFunc(n.Children, e.isBlockNode) {
		return
	}

	out := make([]*tree.Node, 0, len(n.Children))
	var inline []*tree.Node
	flush := func() {
		if slices.ContainsFunc(inline, func(c *tree.Node) bool {
			return !c.IsText() || strings.TrimSpace(c.Text) != ""
		}) {
			out = append(out, tree.NewElement(e.defaultBlock, inline...))
		}
		inline = nil
	}
	for _, c := range n.Children {
		if e.registry.IsInlineNode(c) {
			inline = append(inline, c)
			continue
		}
		flush()
		out = append(out, c)
	}
	flush()
	n.Children = out
}
