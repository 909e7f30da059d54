package tree

import (
	"errors"
	"fmt"
	"slices"
)

// ErrInvalidOp is returned when an operation does not fit the addressed node.
var ErrInvalidOp = errors.New("invalid operation")

// OpKind identifies a tree mutation.
type OpKind string

const (
	OpInsertNode  OpKind = "insert_node"  // Insert Nodes at Path
	OpRemoveNode  OpKind = "remove_node"  // Remove the node at Path
	OpReplaceNode OpKind = "replace_node" // Replace the node at Path with Nodes (zero or more)
	OpWrapNodes   OpKind = "wrap_nodes"   // Wrap Count siblings starting at Path into Nodes[0]
	OpUnwrapNode  OpKind = "unwrap_node"  // Replace the node at Path with its children
	OpMergeNode   OpKind = "merge_node"   // Merge the node at Path into its previous sibling
	OpSplitNode   OpKind = "split_node"   // Split the node at Path at Offset (child index or rune offset)
	OpSetNode     OpKind = "set_node"     // Change Type, Props, Data or Marks of the node at Path
	OpInsertText  OpKind = "insert_text"  // Insert Text at rune Offset
	OpRemoveText  OpKind = "remove_text"  // Remove Count runes at Offset
)

// Op represents an atomic change to the content tree.
type Op struct {
	Kind   OpKind            `json:"kind"`
	Path   Path              `json:"path"`
	Nodes  []*Node           `json:"nodes,omitempty"`
	Count  int               `json:"count,omitempty"`
	Offset int               `json:"offset,omitempty"`
	Text   string            `json:"text,omitempty"`
	Type   string            `json:"type,omitempty"`  // set_node: new type, empty keeps it
	Props  map[string]string `json:"props,omitempty"` // set_node: merged, empty value deletes
	Data   map[string]string `json:"data,omitempty"`  // set_node: merged, empty value deletes
	Marks  *Marks            `json:"marks,omitempty"` // set_node: replaces marks of a text leaf
}

func (op Op) String() string {
	return fmt.Sprintf("%s%v", op.Kind, op.Path)
}

// Insert returns an op inserting nodes at path.
func Insert(path Path, nodes ...*Node) Op {
	return Op{Kind: OpInsertNode, Path: path, Nodes: nodes}
}

// Remove returns an op removing the node at path.
func Remove(path Path) Op {
	return Op{Kind: OpRemoveNode, Path: path}
}

// Replace returns an op replacing the node at path.
func Replace(path Path, nodes ...*Node) Op {
	return Op{Kind: OpReplaceNode, Path: path, Nodes: nodes}
}

// Wrap returns an op moving count siblings starting at path into wrapper.
func Wrap(path Path, count int, wrapper *Node) Op {
	return Op{Kind: OpWrapNodes, Path: path, Count: count, Nodes: []*Node{wrapper}}
}

// Unwrap returns an op lifting the children of the node at path into its parent.
func Unwrap(path Path) Op {
	return Op{Kind: OpUnwrapNode, Path: path}
}

// Merge returns an op merging the node at path into its previous sibling.
func Merge(path Path) Op {
	return Op{Kind: OpMergeNode, Path: path}
}

// Split returns an op splitting the node at path at offset.
func Split(path Path, offset int) Op {
	return Op{Kind: OpSplitNode, Path: path, Offset: offset}
}

// SetType returns an op changing the type of the node at path.
func SetType(path Path, typ string) Op {
	return Op{Kind: OpSetNode, Path: path, Type: typ}
}

// SetProps returns an op merging props into the node at path.
func SetProps(path Path, props map[string]string) Op {
	return Op{Kind: OpSetNode, Path: path, Props: props}
}

// SetMarks returns an op replacing the marks of the text leaf at path.
func SetMarks(path Path, marks Marks) Op {
	return Op{Kind: OpSetNode, Path: path, Marks: &marks}
}

// ApplyAll applies ops in order and stops at the first failure.
func ApplyAll(root *Node, ops []Op) error {
	for i, op := range ops {
		if err := Apply(root, op); err != nil {
			return fmt.Errorf("failed to apply op %d (%s): %w", i, op.Kind, err)
		}
	}
	return nil
}

// Apply mutates the tree rooted at root.
func Apply(root *Node, op Op) error {
	switch op.Kind {
	case OpSetNode:
		node, err := Get(root, op.Path)
		if err != nil {
			return err
		}
		return setNode(node, op)

	case OpInsertText, OpRemoveText:
		node, err := Get(root, op.Path)
		if err != nil {
			return err
		}
		if !node.IsText() {
			return fmt.Errorf("%w: %s on non-text node %q", ErrInvalidOp, op.Kind, node.Type)
		}
		return editText(node, op)
	}

	if len(op.Path) == 0 {
		return fmt.Errorf("%w: %s needs a non-root path", ErrInvalidOp, op.Kind)
	}
	parent, err := Get(root, op.Path.Parent())
	if err != nil {
		return err
	}
	if parent.IsText() {
		return fmt.Errorf("%w: text node has no children", ErrInvalidPath)
	}
	index := op.Path.Index()

	if op.Kind == OpInsertNode {
		if index < 0 || index > len(parent.Children) {
			return fmt.Errorf("%w: insert position %d out of range", ErrInvalidPath, index)
		}
		parent.Children = slices.Insert(parent.Children, index, op.Nodes...)
		return nil
	}

	if index < 0 || index >= len(parent.Children) {
		return fmt.Errorf("%w: %v", ErrInvalidPath, op.Path)
	}
	node := parent.Children[index]

	switch op.Kind {
	case OpRemoveNode:
		parent.Children = slices.Delete(parent.Children, index, index+1)

	case OpReplaceNode:
		parent.Children = slices.Replace(parent.Children, index, index+1, op.Nodes...)

	case OpWrapNodes:
		if len(op.Nodes) != 1 || op.Nodes[0] == nil {
			return fmt.Errorf("%w: wrap needs exactly one wrapper", ErrInvalidOp)
		}
		end := index + max(op.Count, 1)
		if end > len(parent.Children) {
			return fmt.Errorf("%w: wrap range %d..%d out of range", ErrInvalidPath, index, end)
		}
		wrapper := op.Nodes[0]
		wrapper.Children = append(wrapper.Children, parent.Children[index:end]...)
		parent.Children = slices.Replace(parent.Children, index, end, wrapper)

	case OpUnwrapNode:
		if node.IsText() {
			return fmt.Errorf("%w: cannot unwrap a text node", ErrInvalidOp)
		}
		parent.Children = slices.Replace(parent.Children, index, index+1, node.Children...)

	case OpMergeNode:
		if index == 0 {
			return fmt.Errorf("%w: merge needs a previous sibling", ErrInvalidOp)
		}
		prev := parent.Children[index-1]
		switch {
		case prev.IsText() && node.IsText():
			prev.Text += node.Text
		case !prev.IsText() && !node.IsText():
			prev.Children = append(prev.Children, node.Children...)
		default:
			return fmt.Errorf("%w: cannot merge %q into %q", ErrInvalidOp, node.Type, prev.Type)
		}
		parent.Children = slices.Delete(parent.Children, index, index+1)

	case OpSplitNode:
		right, err := splitNode(node, op.Offset)
		if err != nil {
			return err
		}
		parent.Children = slices.Insert(parent.Children, index+1, right)

	default:
		return fmt.Errorf("%w: unknown operation type: %s", ErrInvalidOp, op.Kind)
	}

	return nil
}

func setNode(node *Node, op Op) error {
	if op.Type != "" {
		if node.IsText() || op.Type == TypeText {
			return fmt.Errorf("%w: cannot change type between text and element", ErrInvalidOp)
		}
		node.Type = op.Type
	}
	node.Props = mergeFields(node.Props, op.Props)
	node.Data = mergeFields(node.Data, op.Data)
	if op.Marks != nil {
		if !node.IsText() {
			return fmt.Errorf("%w: marks on element %q", ErrInvalidOp, node.Type)
		}
		node.Marks = *op.Marks
	}
	return nil
}

func mergeFields(dst, src map[string]string) map[string]string {
	for k, v := range src {
		if v == "" {
			delete(dst, k)
			continue
		}
		if dst == nil {
			dst = make(map[string]string)
		}
		dst[k] = v
	}
	if len(dst) == 0 {
		return nil
	}
	return dst
}

func splitNode(node *Node, offset int) (*Node, error) {
	if node.IsText() {
		runes := []rune(node.Text)
		if offset < 0 || offset > len(runes) {
			return nil, fmt.Errorf("%w: text offset %d out of range", ErrInvalidPath, offset)
		}
		right := NewMarkedText(string(runes[offset:]), node.Marks)
		node.Text = string(runes[:offset])
		return right, nil
	}
	if offset < 0 || offset > len(node.Children) {
		return nil, fmt.Errorf("%w: child offset %d out of range", ErrInvalidPath, offset)
	}
	right := &Node{
		Type:     node.Type,
		Data:     cloneFields(node.Data),
		Props:    cloneFields(node.Props),
		Children: slices.Clone(node.Children[offset:]),
	}
	node.Children = slices.Clip(node.Children[:offset])
	return right, nil
}

func cloneFields(m map[string]string) map[string]string {
	if len(m) == 0 {
		return nil
	}
	c := make(map[string]string, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}

func editText(node *Node, op Op) error {
	runes := []rune(node.Text)
	if op.Offset < 0 || op.Offset > len(runes) {
		return fmt.Errorf("%w: text offset %d out of range", ErrInvalidPath, op.Offset)
	}
	if op.Kind == OpInsertText {
		node.Text = string(runes[:op.Offset]) + op.Text + string(runes[op.Offset:])
		return nil
	}
	end := op.Offset + op.Count
	if op.Count < 0 || end > len(runes) {
		return fmt.Errorf("%w: remove range %d..%d out of range", ErrInvalidPath, op.Offset, end)
	}
	node.Text = string(runes[:op.Offset]) + string(runes[end:])
	return nil
}
