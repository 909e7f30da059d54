// Package plugins contains the article content types.
package plugins

import (
	"github.com/roboco-io/articlehtml/internal/plugin"
	"github.com/roboco-io/articlehtml/internal/schema"
)

// Node types.
const (
	TypeSection    = "section"
	TypeParagraph  = "paragraph"
	TypeHeading    = "heading"
	TypeList       = "list"
	TypeListItem   = "list-item"
	TypeBodybox    = "bodybox"
	TypeDetails    = "details"
	TypeSummary    = "summary"
	TypeAside      = "aside"
	TypeBlockquote = "blockquote"
	TypeTable      = "table"
	TypeTableRow   = "table-row"
	TypeTableCell  = "table-cell"
	TypeEmbed      = "embed"
	TypeHR         = "hr"
	TypeBR         = "br"
	TypeLink       = "link"
	TypeMath       = "math"
	TypeSpan       = "span"
)

// flow lists the block types allowed directly inside a section.
var flow = []string{
	TypeParagraph,
	TypeHeading,
	TypeList,
	TypeBodybox,
	TypeDetails,
	TypeAside,
	TypeBlockquote,
	TypeTable,
	TypeEmbed,
	TypeHR,
	schema.TypeUnsupported,
}

// textFlow lists the neighbours a non-text block accepts without padding.
var textFlow = []string{TypeParagraph, TypeHeading, TypeList, TypeBlockquote}

// padded returns rules that surround a block with paragraphs unless a text block is next to it.
func padded(r plugin.Rules) plugin.Rules {
	r.Previous = plugin.Allow(TypeParagraph, textFlow...)
	r.Next = plugin.Allow(TypeParagraph, textFlow...)
	return r
}

// Default returns the plugins in dispatch order. The order is significant: generic span and
// div handling comes after every specific plugin, and unsupported claims whatever is left.
func Default() []plugin.Plugin {
	return []plugin.Plugin{
		&Marks{},
		newSection(),
		newParagraph(),
		&Heading{},
		&List{},
		newListItem(),
		&Bodybox{},
		newDetails(),
		newSummary(),
		newAside(),
		newBlockquote(),
		&Table{},
		newTableRow(),
		&TableCell{},
		&Embed{},
		newHR(),
		newBR(),
		&Link{},
		&Math{},
		&Span{},
		&Div{},
		&Unsupported{},
	}
}

// NewChain builds the default chain.
func NewChain() (*plugin.Chain, error) {
	return plugin.NewChain(Default()...)
}
