package convert

import (
	"regexp"

	"github.com/microcosm-cc/bluemonday"
)

var (
	bodyboxClassRegexp = regexp.MustCompile(`^c-bodybox$`)
	listTypeRegexp     = regexp.MustCompile(`^letters$`)
	spanRegexp         = regexp.MustCompile(`^\d+$`)
	scopeRegexp        = regexp.MustCompile(`^(row|col|rowgroup|colgroup)$`)
	mathDisplayRegexp  = regexp.MustCompile(`^(block|inline)$`)
)

// mathElements is the presentation MathML vocabulary kept inside <math>.
var mathElements = []string{
	"math", "mrow", "mi", "mn", "mo", "ms", "mtext", "mspace",
	"mfrac", "msqrt", "mroot", "msub", "msup", "msubsup", "munder", "mover", "munderover",
	"mtable", "mtr", "mtd", "mstyle", "mpadded", "mphantom", "menclose",
	"semantics", "annotation",
}

// ArticlePolicy returns a policy for inbound article HTML: the UGC policy extended with the
// article vocabulary. data-* attributes are allowed everywhere since embeds keep their
// resource metadata there.
func ArticlePolicy() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()

	p.AllowElements("section", "aside", "details", "summary", "embed")
	p.AllowDataAttributes()

	p.AllowAttrs("class").Matching(bodyboxClassRegexp).OnElements("div")
	p.AllowAttrs("data-type").Matching(listTypeRegexp).OnElements("ol")
	p.AllowAttrs("colspan", "rowspan").Matching(spanRegexp).OnElements("td", "th")
	p.AllowAttrs("scope").Matching(scopeRegexp).OnElements("th", "td")
	p.AllowAttrs("target", "title").OnElements("a")
	p.AllowAttrs("lang").OnElements("span")

	p.AllowElements(mathElements...)
	p.AllowNoAttrs().OnElements(append([]string{"section", "aside", "details", "summary"}, mathElements...)...)
	p.AllowAttrs("display").Matching(mathDisplayRegexp).OnElements("math")
	p.AllowAttrs("mathvariant").OnElements("mi", "mo", "mn", "mtext")
	p.AllowAttrs("encoding").OnElements("annotation")

	return p
}
