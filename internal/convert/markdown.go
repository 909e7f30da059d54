package convert

import (
	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"

	"github.com/roboco-io/articlehtml/internal/tree"
)

var markdown = htmltomarkdown.NewConverter(
	htmltomarkdown.WithPlugins(
		base.NewBasePlugin(),
		commonmark.NewCommonmarkPlugin(),
		table.NewTablePlugin(),
	),
)

// ToMarkdown serializes a tree and converts the HTML to Markdown.
func (p *Pipeline) ToMarkdown(root *tree.Node) (string, error) {
	s, err := p.ToHTML(root)
	if err != nil {
		return "", err
	}
	return markdown.ConvertString(s)
}
