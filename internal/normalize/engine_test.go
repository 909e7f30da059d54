package normalize

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roboco-io/articlehtml/internal/plugin"
	"github.com/roboco-io/articlehtml/internal/plugins"
	"github.com/roboco-io/articlehtml/internal/schema"
	"github.com/roboco-io/articlehtml/internal/tree"
)

func el(typ string, children ...*tree.Node) *tree.Node {
	return tree.NewElement(typ, children...)
}

func txt(s string) *tree.Node {
	return tree.NewText(s)
}

func para(s string) *tree.Node {
	return el(plugins.TypeParagraph, txt(s))
}

func doc(children ...*tree.Node) *tree.Node {
	return tree.NewDocument(el(plugins.TypeSection, children...))
}

func dump(n *tree.Node) string {
	b, _ := json.MarshalIndent(n, "", "  ")
	return string(b)
}

func newEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	chain, err := plugins.NewChain()
	require.NoError(t, err)
	return New(chain, opts...)
}

func TestNormalizeScenarios(t *testing.T) {
	tests := []struct {
		name  string
		input *tree.Node
		want  *tree.Node
	}{
		{
			name:  "bodyboxes are padded with paragraphs",
			input: doc(el(plugins.TypeBodybox), el(plugins.TypeBodybox), el(plugins.TypeBodybox)),
			want: doc(
				para(""), el(plugins.TypeBodybox, para("")),
				para(""), el(plugins.TypeBodybox, para("")),
				para(""), el(plugins.TypeBodybox, para("")),
				para(""),
			),
		},
		{
			name:  "empty list becomes a paragraph",
			input: doc(el(plugins.TypeList).WithProp("listType", plugins.ListBulleted)),
			want:  doc(para("")),
		},
		{
			name: "adjacent lists of the same kind merge",
			input: doc(
				el(plugins.TypeList, el(plugins.TypeListItem, para("a"))).WithProp("listType", plugins.ListLetters),
				el(plugins.TypeList, el(plugins.TypeListItem, para("b"))).WithProp("listType", plugins.ListLetters),
			),
			want: doc(
				el(plugins.TypeList,
					el(plugins.TypeListItem, para("a")),
					el(plugins.TypeListItem, para("b")),
				).WithProp("listType", plugins.ListLetters),
			),
		},
		{
			name: "lists of different kinds stay apart",
			input: doc(
				el(plugins.TypeList, el(plugins.TypeListItem, para("a"))).WithProp("listType", plugins.ListLetters),
				el(plugins.TypeList, el(plugins.TypeListItem, para("b"))).WithProp("listType", plugins.ListNumbered),
			),
			want: doc(
				el(plugins.TypeList, el(plugins.TypeListItem, para("a"))).WithProp("listType", plugins.ListLetters),
				el(plugins.TypeList, el(plugins.TypeListItem, para("b"))).WithProp("listType", plugins.ListNumbered),
			),
		},
		{
			name:  "heading gets the default level",
			input: doc(el(plugins.TypeHeading, txt("Title"))),
			want:  doc(el(plugins.TypeHeading, txt("Title")).WithProp("level", "2")),
		},
		{
			name:  "heading level is clamped",
			input: doc(el(plugins.TypeHeading, txt("Title")).WithProp("level", "9")),
			want:  doc(el(plugins.TypeHeading, txt("Title")).WithProp("level", "6")),
		},
		{
			name:  "embed is padded",
			input: doc(el(plugins.TypeEmbed).WithData("resource", "image")),
			want:  doc(para(""), el(plugins.TypeEmbed).WithData("resource", "image"), para("")),
		},
		{
			name:  "void node loses its children",
			input: doc(para("a"), el(plugins.TypeHR, txt("x")), para("b")),
			want:  doc(para("a"), el(plugins.TypeHR), para("b")),
		},
		{
			name:  "empty document receives a section and a paragraph",
			input: tree.NewDocument(),
			want:  doc(para("")),
		},
		{
			name:  "text at the root is wrapped",
			input: tree.NewDocument(txt("loose")),
			want:  doc(para("loose")),
		},
		{
			name:  "whitespace between blocks is dropped",
			input: doc(txt("\n  "), para("a"), txt("\n")),
			want:  doc(para("a")),
		},
		{
			name:  "adjacent texts merge and empty texts go",
			input: doc(el(plugins.TypeParagraph, txt("a"), txt("b"), tree.NewMarkedText("c", tree.Marks{Bold: true}), txt(""))),
			want:  doc(el(plugins.TypeParagraph, txt("ab"), tree.NewMarkedText("c", tree.Marks{Bold: true}))),
		},
		{
			name:  "sole empty text loses its marks",
			input: doc(el(plugins.TypeParagraph, tree.NewMarkedText("", tree.Marks{Italic: true}))),
			want:  doc(para("")),
		},
		{
			name:  "paragraph holding a block is unwrapped",
			input: doc(el(plugins.TypeParagraph, txt("a"), el(plugins.TypeParagraph, txt("b")))),
			want:  doc(para("a"), para("b")),
		},
		{
			name:  "list item outside a list is wrapped",
			input: doc(el(plugins.TypeListItem, para("a")), el(plugins.TypeListItem, para("b"))),
			want: doc(el(plugins.TypeList,
				el(plugins.TypeListItem, para("a")),
				el(plugins.TypeListItem, para("b")),
			).WithProp("listType", plugins.ListBulleted)),
		},
		{
			name:  "text inside a list is wrapped twice",
			input: doc(el(plugins.TypeList, txt("a")).WithProp("listType", plugins.ListNumbered)),
			want: doc(el(plugins.TypeList,
				el(plugins.TypeListItem, para("a")),
			).WithProp("listType", plugins.ListNumbered)),
		},
		{
			name:  "details receives a summary",
			input: doc(el(plugins.TypeDetails, para("body"))),
			want: doc(
				para(""),
				el(plugins.TypeDetails, el(plugins.TypeSummary, txt("")), para("body")),
				para(""),
			),
		},
		{
			name: "nested details are unwrapped",
			input: doc(el(plugins.TypeDetails,
				el(plugins.TypeSummary, txt("outer")),
				el(plugins.TypeDetails, el(plugins.TypeSummary, txt("inner")), para("x")),
			)),
			want: doc(
				para(""),
				el(plugins.TypeDetails, el(plugins.TypeSummary, txt("outer")), para("inner"), para("x")),
				para(""),
			),
		},
		{
			name:  "summary outside details becomes a paragraph",
			input: doc(el(plugins.TypeSummary, txt("s"))),
			want:  doc(para("s")),
		},
		{
			name: "empty rows are removed",
			input: doc(el(plugins.TypeTable,
				el(plugins.TypeTableRow),
				el(plugins.TypeTableRow, el(plugins.TypeTableCell, para("a"))),
			)),
			want: doc(
				para(""),
				el(plugins.TypeTable, el(plugins.TypeTableRow, el(plugins.TypeTableCell, para("a")))),
				para(""),
			),
		},
		{
			name:  "table without rows becomes a paragraph",
			input: doc(el(plugins.TypeTable, el(plugins.TypeTableRow))),
			want:  doc(para("")),
		},
		{
			name:  "nested bodybox is unwrapped",
			input: doc(el(plugins.TypeBodybox, el(plugins.TypeBodybox, para("a")))),
			want:  doc(para(""), el(plugins.TypeBodybox, para("a")), para("")),
		},
		{
			name:  "link without href is unwrapped",
			input: doc(el(plugins.TypeParagraph, txt("go "), el(plugins.TypeLink, txt("there")))),
			want:  doc(para("go there")),
		},
		{
			name: "link without text is removed",
			input: doc(el(plugins.TypeParagraph, txt("a"),
				el(plugins.TypeLink, txt("")).WithProp("href", "https://x.test"))),
			want: doc(para("a")),
		},
		{
			name:  "span without lang is unwrapped",
			input: doc(el(plugins.TypeParagraph, el(plugins.TypeSpan, txt("plain")))),
			want:  doc(para("plain")),
		},
		{
			name:  "unknown inline type becomes an unsupported wrapper",
			input: doc(el(plugins.TypeParagraph, el("blink", txt("x")))),
			want: doc(el(plugins.TypeParagraph,
				el(schema.TypeUnsupportedInline, txt("x")).WithProp("type", "blink"),
			)),
		},
		{
			name:  "unknown block type becomes an unsupported wrapper",
			input: doc(el("figure", para("a"))),
			want:  doc(el(schema.TypeUnsupported, para("a")).WithProp("type", "figure")),
		},
		{
			name:  "mixed children of a wrapper are repaired",
			input: doc(el(schema.TypeUnsupported, para("a"), txt("b"))),
			want:  doc(el(schema.TypeUnsupported, para("a"), para("b")).WithProp("type", "x-unsupported")),
		},
		{
			name:  "unknown block-level element stays a block wrapper",
			input: doc(el("figcaption", txt("cap"))),
			want:  doc(el(schema.TypeUnsupported, para("cap")).WithProp("type", "figcaption")),
		},
		{
			name:  "empty wrapper is named and receives a paragraph",
			input: doc(el(schema.TypeUnsupported)),
			want:  doc(el(schema.TypeUnsupported, para("")).WithProp("type", "x-unsupported")),
		},
		{
			name: "nested link is unwrapped",
			input: doc(el(plugins.TypeParagraph,
				el(plugins.TypeLink, txt("a"), el(plugins.TypeLink, txt("b")).WithProp("href", "https://b.test")).WithProp("href", "https://a.test"))),
			want: doc(el(plugins.TypeParagraph, el(plugins.TypeLink, txt("ab")).WithProp("href", "https://a.test"))),
		},
		{
			name:  "empty span is removed",
			input: doc(el(plugins.TypeParagraph, txt("a"), el(plugins.TypeSpan, txt("")).WithProp("lang", "en"))),
			want:  doc(para("a")),
		},
		{
			name: "embed in a list item is kept",
			input: doc(el(plugins.TypeList,
				el(plugins.TypeListItem, el(plugins.TypeEmbed).WithData("resource", "image")),
			).WithProp("listType", plugins.ListBulleted)),
			want: doc(el(plugins.TypeList,
				el(plugins.TypeListItem, para(""), el(plugins.TypeEmbed).WithData("resource", "image"), para("")),
			).WithProp("listType", plugins.ListBulleted)),
		},
		{
			name: "embed in a table cell is kept",
			input: doc(el(plugins.TypeTable, el(plugins.TypeTableRow,
				el(plugins.TypeTableCell, el(plugins.TypeEmbed).WithData("resource", "image")),
			))),
			want: doc(
				para(""),
				el(plugins.TypeTable, el(plugins.TypeTableRow,
					el(plugins.TypeTableCell, para(""), el(plugins.TypeEmbed).WithData("resource", "image"), para("")),
				)),
				para(""),
			),
		},
		{
			name: "rule in a list item is lifted out of the list",
			input: doc(el(plugins.TypeList,
				el(plugins.TypeListItem, para("x"), el(plugins.TypeHR)),
			).WithProp("listType", plugins.ListBulleted)),
			want: doc(
				el(plugins.TypeList, el(plugins.TypeListItem, para("x"))).WithProp("listType", plugins.ListBulleted),
				el(plugins.TypeHR),
				para(""),
			),
		},
		{
			name: "rule in a table cell is lifted out of the table",
			input: doc(el(plugins.TypeTable, el(plugins.TypeTableRow,
				el(plugins.TypeTableCell, para("a"), el(plugins.TypeHR)),
			))),
			want: doc(
				para(""),
				el(plugins.TypeTable, el(plugins.TypeTableRow, el(plugins.TypeTableCell, para("a")))),
				para(""),
				el(plugins.TypeHR),
				para(""),
			),
		},
	}

	e := newEngine(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := tt.input
			_, err := e.Normalize(root)
			require.NoError(t, err)
			require.Truef(t, tree.Equal(tt.want, root), "got %s", dump(root))
			assertInvariants(t, e, root)

			res, err := e.Normalize(root)
			require.NoError(t, err)
			assert.Equal(t, 0, res.Transforms, "normal form must be a fixed point")
			assert.Equal(t, 1, res.Passes)
		})
	}
}

// assertInvariants checks the structural invariants every normalized tree holds.
func assertInvariants(t *testing.T, e *Engine, root *tree.Node) {
	t.Helper()
	reg := e.Chain().Registry()

	require.NotEmpty(t, root.Children)
	for _, s := range root.Children {
		assert.Equal(t, plugins.TypeSection, s.Type)
	}

	tree.Walk(root, func(n *tree.Node, path tree.Path) bool {
		if n.IsText() {
			return false
		}
		var blocks, inlines int
		for _, c := range n.Children {
			if reg.IsInlineNode(c) {
				inlines++
			} else {
				blocks++
			}
		}
		assert.Falsef(t, blocks > 0 && inlines > 0, "mixed children at %v", path)
		if reg.IsTextBlock(n.Type) {
			assert.NotEmptyf(t, n.Children, "empty text block at %v", path)
		}
		if reg.IsVoid(n.Type) {
			assert.Emptyf(t, n.Children, "void node with children at %v", path)
		}
		return true
	})
}

func TestNormalizeKeepsNormalForm(t *testing.T) {
	e := newEngine(t)
	root := doc(
		el(plugins.TypeHeading, txt("Title")).WithProp("level", "1"),
		para("intro"),
		el(plugins.TypeBlockquote, para("quote")),
	)
	want := root.Clone()

	res, err := e.Normalize(root)
	require.NoError(t, err)
	assert.Equal(t, Result{Passes: 1}, res)
	assert.True(t, tree.Equal(want, root))
}

func TestNormalizeNil(t *testing.T) {
	_, err := newEngine(t).Normalize(nil)
	assert.Error(t, err)
}

// flipPlugin owns a type whose hook never settles.
type flipPlugin struct {
	plugin.Base
}

func (flipPlugin) Name() string { return "flip" }

func (flipPlugin) Types() []plugin.NodeType {
	return []plugin.NodeType{{Name: "flip", Class: schema.Block}}
}

func (flipPlugin) Normalize(ctx *plugin.NormalizeContext) *tree.Op {
	if ctx.Node.Type != "flip" {
		return nil
	}
	next := "on"
	if ctx.Node.Prop("state") == "on" {
		next = "off"
	}
	op := tree.SetProps(ctx.Path, map[string]string{"state": next})
	return &op
}

func TestNormalizeNotConverging(t *testing.T) {
	chain, err := plugin.NewChain(flipPlugin{})
	require.NoError(t, err)
	e := New(chain, WithMinIterations(50))

	res, err := e.Normalize(tree.NewDocument(el("flip")))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotConverging))
	assert.Equal(t, 51, res.Transforms)
}

func TestNormalizeIterationCap(t *testing.T) {
	e := newEngine(t, WithIterationFactor(1), WithMinIterations(1))

	_, err := e.Normalize(doc(el(plugins.TypeBodybox), el(plugins.TypeBodybox), el(plugins.TypeBodybox)))
	assert.ErrorIs(t, err, ErrNotConverging)
}

func TestNormalizeDeterministic(t *testing.T) {
	e := newEngine(t)
	build := func() *tree.Node {
		return tree.NewDocument(
			txt("lead"),
			el(plugins.TypeSection,
				el(plugins.TypeListItem, txt("a")),
				el(plugins.TypeEmbed),
				el(plugins.TypeEmbed),
				el(plugins.TypeTable, el(plugins.TypeTableCell, txt("c"))),
			),
		)
	}

	first := build()
	_, err := e.Normalize(first)
	require.NoError(t, err)
	assertInvariants(t, e, first)

	for range 5 {
		again := build()
		_, err := e.Normalize(again)
		require.NoError(t, err)
		require.Truef(t, tree.Equal(first, again), "got %s", dump(again))
	}
}

func TestWithUnknownHandler(t *testing.T) {
	e := newEngine(t, WithUnknownHandler(func(n *tree.Node) *tree.Node {
		return para("replaced " + n.Type)
	}))

	root := doc(el("widget"))
	_, err := e.Normalize(root)
	require.NoError(t, err)
	assert.True(t, tree.Equal(doc(para("replaced widget")), root), dump(root))
}

func TestWithDefaultBlock(t *testing.T) {
	e := newEngine(t, WithDefaultBlock(plugins.TypeHeading))

	root := doc(el(schema.TypeUnsupported, para("a"), txt("b")))
	_, err := e.Normalize(root)
	require.NoError(t, err)

	wrapper := root.Children[0].Children[0]
	require.Len(t, wrapper.Children, 2)
	assert.Equal(t, plugins.TypeHeading, wrapper.Children[1].Type)
	assert.Equal(t, "2", wrapper.Children[1].Prop("level"))
}

func TestRepairMixed(t *testing.T) {
	e := newEngine(t)

	section := el(plugins.TypeSection, txt("\n"), para("a"), txt(" b "), el(plugins.TypeLink, txt("c")), txt("\n"))
	e.RepairMixed(section)

	require.Len(t, section.Children, 2)
	assert.Equal(t, plugins.TypeParagraph, section.Children[1].Type)
	assert.Equal(t, " b c\n", section.Children[1].TextContent())

	inline := el(plugins.TypeSection, txt("only text"))
	e.RepairMixed(inline)
	assert.Len(t, inline.Children, 1, "containers without blocks are left alone")
	assert.True(t, inline.Children[0].IsText())
}
