// Package editor holds the state of one editing session: the tree being edited, the
// normalizer that keeps it valid after every mutation batch, and the user's selection.
package editor

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/google/uuid"

	"github.com/roboco-io/articlehtml/internal/normalize"
	"github.com/roboco-io/articlehtml/internal/schema"
	"github.com/roboco-io/articlehtml/internal/tree"
)

var (
	// ErrNodeNotFound is returned when no node has the requested id.
	ErrNodeNotFound = errors.New("node not found")
	// ErrNotUnsupported is returned when a lift or remove targets a supported node.
	ErrNotUnsupported = errors.New("node is not an unsupported element")
)

// Selection is the last cursor position reported by the user. BlockID names the innermost
// block holding the cursor; Path and Offset are re-derived from it after every normalization.
type Selection struct {
	BlockID string    `json:"blockId,omitempty"`
	Path    tree.Path `json:"path,omitempty"`
	Offset  int       `json:"offset"`
}

// Session owns one tree. Sessions are not safe for concurrent use; the engine may be shared.
type Session struct {
	root      *tree.Node
	engine    *normalize.Engine
	newID     func() string
	logger    *slog.Logger
	selection Selection
	within    tree.Path // selection path below the selected block
}

// Option configures a Session.
type Option func(*Session)

// WithIDGenerator sets the generator of node ids. The default generates UUIDs.
func WithIDGenerator(fn func() string) Option {
	return func(s *Session) {
		if fn != nil {
			s.newID = fn
		}
	}
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewSession normalizes root and gives every element an id. A nil root starts an empty
// document.
func NewSession(root *tree.Node, engine *normalize.Engine, opts ...Option) (*Session, error) {
	if engine == nil {
		return nil, fmt.Errorf("engine cannot be nil")
	}
	if root == nil {
		root = tree.NewDocument()
	}
	s := &Session{
		root:   root,
		engine: engine,
		newID:  uuid.NewString,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if _, err := s.normalize(); err != nil {
		return nil, err
	}
	return s, nil
}

// Tree returns the current tree. It must not be mutated outside the session.
func (s *Session) Tree() *tree.Node {
	return s.root
}

// Apply applies a mutation batch and normalizes the result. If an op or the normalization
// fails, the tree is restored to its state before the batch.
func (s *Session) Apply(ops ...tree.Op) (normalize.Result, error) {
	backup := s.root.Clone()

	if err := tree.ApplyAll(s.root, ops); err != nil {
		*s.root = *backup
		return normalize.Result{}, err
	}
	res, err := s.normalize()
	if err != nil {
		*s.root = *backup
		s.restoreSelection()
		return res, err
	}

	s.logger.Debug("Applied mutation batch", "ops", len(ops), "transforms", res.Transforms)
	return res, nil
}

// Reset replaces the tree, as after a submit or a revert, and restores the selection from
// its block id when that block still exists.
func (s *Session) Reset(root *tree.Node) error {
	if root == nil {
		root = tree.NewDocument()
	}
	previous := s.root
	s.root = root
	if _, err := s.normalize(); err != nil {
		s.root = previous
		return err
	}
	return nil
}

func (s *Session) normalize() (normalize.Result, error) {
	res, err := s.engine.Normalize(s.root)
	if err != nil {
		return res, fmt.Errorf("failed to normalize: %w", err)
	}
	tree.AssignIDs(s.root, s.newID)
	s.restoreSelection()
	return res, nil
}

// PathOf returns the current path of the node with the given id.
func (s *Session) PathOf(id string) (tree.Path, error) {
	_, path, ok := tree.FindByID(s.root, id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	return path, nil
}

// Select records the cursor at path and offset.
func (s *Session) Select(path tree.Path, offset int) error {
	if _, err := tree.Get(s.root, path); err != nil {
		return err
	}
	block, at := s.blockAt(path)
	s.selection = Selection{BlockID: block, Path: path, Offset: offset}
	s.within = slices.Clone(path[len(at):])
	return nil
}

// Selection returns the current selection. The zero value means nothing is selected.
func (s *Session) Selection() Selection {
	return s.selection
}

// ClearSelection forgets the selection.
func (s *Session) ClearSelection() {
	s.selection = Selection{}
	s.within = nil
}

// blockAt returns the id and path of the innermost block on path.
func (s *Session) blockAt(path tree.Path) (string, tree.Path) {
	reg := s.engine.Chain().Registry()
	var (
		id string
		at tree.Path
	)
	n := s.root
	for i, step := range path {
		n = n.Children[step]
		if !n.IsText() && n.ID != "" && reg.IsBlock(n.Type) {
			id, at = n.ID, path[:i+1]
		}
	}
	return id, at
}

// restoreSelection moves the selection to where its block is now. The part of the path
// below the block is kept when it still addresses a node; otherwise the cursor moves to the
// start of the block. A selection whose block is gone is cleared.
func (s *Session) restoreSelection() {
	sel := s.selection
	if sel.BlockID == "" {
		return
	}
	_, blockPath, ok := tree.FindByID(s.root, sel.BlockID)
	if !ok {
		s.logger.Debug("Selected block is gone", "id", sel.BlockID)
		s.ClearSelection()
		return
	}

	path := append(slices.Clone(blockPath), s.within...)
	if _, err := tree.Get(s.root, path); err != nil {
		path, sel.Offset, s.within = blockPath, 0, nil
	}
	s.selection = Selection{BlockID: sel.BlockID, Path: path, Offset: sel.Offset}
}

// InsertNodes inserts nodes at path.
func (s *Session) InsertNodes(path tree.Path, nodes ...*tree.Node) error {
	_, err := s.Apply(tree.Insert(path, nodes...))
	return err
}

// RemoveNode removes the node with the given id.
func (s *Session) RemoveNode(id string) error {
	path, err := s.PathOf(id)
	if err != nil {
		return err
	}
	_, err = s.Apply(tree.Remove(path))
	return err
}

// SplitNode splits the node at path: text at a rune offset, elements at a child index.
func (s *Session) SplitNode(path tree.Path, offset int) error {
	_, err := s.Apply(tree.Split(path, offset))
	return err
}

// SplitBlock splits the text leaf at path and the block holding it at the same point, as
// pressing Enter does.
func (s *Session) SplitBlock(path tree.Path, offset int) error {
	if len(path) < 2 {
		return fmt.Errorf("%w: %v is not inside a block", tree.ErrInvalidPath, path)
	}
	_, err := s.Apply(
		tree.Split(path, offset),
		tree.Split(path.Parent(), path.Index()+1),
	)
	return err
}

// MergeNode merges the node at path into its previous sibling.
func (s *Session) MergeNode(path tree.Path) error {
	_, err := s.Apply(tree.Merge(path))
	return err
}

// SetNode changes the type, props and data of the node with the given id. Empty values
// delete a field; an empty type keeps the current one.
func (s *Session) SetNode(id, typ string, props, data map[string]string) error {
	path, err := s.PathOf(id)
	if err != nil {
		return err
	}
	_, err = s.Apply(tree.Op{Kind: tree.OpSetNode, Path: path, Type: typ, Props: props, Data: data})
	return err
}

// InsertText inserts text into the text leaf at path.
func (s *Session) InsertText(path tree.Path, offset int, text string) error {
	_, err := s.Apply(tree.Op{Kind: tree.OpInsertText, Path: path, Offset: offset, Text: text})
	return err
}

// RemoveText removes count runes from the text leaf at path.
func (s *Session) RemoveText(path tree.Path, offset, count int) error {
	_, err := s.Apply(tree.Op{Kind: tree.OpRemoveText, Path: path, Offset: offset, Count: count})
	return err
}

// LiftUnsupported replaces an unsupported element with its editable children.
func (s *Session) LiftUnsupported(id string) error {
	path, err := s.unsupported(id)
	if err != nil {
		return err
	}
	_, err = s.Apply(tree.Unwrap(path))
	return err
}

// RemoveUnsupported removes an unsupported element with its content.
func (s *Session) RemoveUnsupported(id string) error {
	path, err := s.unsupported(id)
	if err != nil {
		return err
	}
	_, err = s.Apply(tree.Remove(path))
	return err
}

func (s *Session) unsupported(id string) (tree.Path, error) {
	n, path, ok := tree.FindByID(s.root, id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	if n.Type != schema.TypeUnsupported && n.Type != schema.TypeUnsupportedInline {
		return nil, fmt.Errorf("%w: %s is %s", ErrNotUnsupported, id, n.Type)
	}
	return path, nil
}
