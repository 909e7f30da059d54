package tree

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// ErrInvalidPath is returned when a path does not address a node.
var ErrInvalidPath = errors.New("invalid path")

// Path represents the traversal steps from the root to a node.
// Example: [0, 1, 3] means root -> child[0] -> child[1] -> child[3]
type Path []int

// Child returns the path of the i-th child. The receiver is never aliased.
func (p Path) Child(i int) Path {
	c := make(Path, len(p)+1)
	copy(c, p)
	c[len(p)] = i
	return c
}

// Parent returns the path of the parent node. The root has no parent.
func (p Path) Parent() Path {
	if len(p) == 0 {
		return nil
	}
	return slices.Clone(p[:len(p)-1])
}

// Index returns the position of the node within its parent, or -1 for the root.
func (p Path) Index() int {
	if len(p) == 0 {
		return -1
	}
	return p[len(p)-1]
}

// Sibling returns the path of the node at index i under the same parent.
func (p Path) Sibling(i int) Path {
	return p.Parent().Child(i)
}

// Equal reports whether two paths are identical.
func (p Path) Equal(o Path) bool {
	return slices.Equal(p, o)
}

// IsAncestorOf reports whether p is a strict prefix of o.
func (p Path) IsAncestorOf(o Path) bool {
	return len(p) < len(o) && slices.Equal(p, o[:len(p)])
}

func (p Path) String() string {
	parts := make([]string, len(p))
	for i, v := range p {
		parts[i] = strconv.Itoa(v)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

// Get traverses the tree using the provided path to find a specific node.
func Get(root *Node, path Path) (*Node, error) {
	current := root
	for step, index := range path {
		if current.IsText() || index < 0 || index >= len(current.Children) {
			return nil, fmt.Errorf("%w: %v (failed at index %d, step %d)", ErrInvalidPath, path, index, step)
		}
		current = current.Children[index]
	}
	return current, nil
}
