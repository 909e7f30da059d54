package plugin

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"slices"
	"sort"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const dataPrefix = "data-"

// Attr returns the value of an attribute or "".
func Attr(el *html.Node, key string) string {
	for _, a := range el.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// HasAttr reports whether el carries the attribute.
func HasAttr(el *html.Node, key string) bool {
	return slices.ContainsFunc(el.Attr, func(a html.Attribute) bool {
		return a.Key == key
	})
}

// HasClass reports whether the class attribute of el lists class.
func HasClass(el *html.Node, class string) bool {
	return slices.Contains(strings.Fields(Attr(el, "class")), class)
}

// IsElement reports whether n is an element with one of the given atoms.
func IsElement(n *html.Node, atoms ...atom.Atom) bool {
	return n != nil && n.Type == html.ElementNode && slices.Contains(atoms, n.DataAtom)
}

// Data collects the data-* attributes of el; the keys keep their literal spelling without
// the prefix. Excluded keys are skipped.
func Data(el *html.Node, exclude ...string) map[string]string {
	var data map[string]string
	for _, a := range el.Attr {
		key, ok := strings.CutPrefix(a.Key, dataPrefix)
		if !ok || key == "" || slices.Contains(exclude, key) {
			continue
		}
		if data == nil {
			data = make(map[string]string)
		}
		data[key] = a.Val
	}
	return data
}

// DataAttrs converts a data map to data-* attributes sorted by key.
func DataAttrs(data map[string]string) []html.Attribute {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	attrs := make([]html.Attribute, 0, len(keys))
	for _, k := range keys {
		attrs = append(attrs, html.Attribute{Key: dataPrefix + k, Val: data[k]})
	}
	return attrs
}

// Element builds an HTML element: attrs first, then the data-* attributes, then children.
func Element(a atom.Atom, data map[string]string, children []*html.Node, attrs ...html.Attribute) *html.Node {
	el := &html.Node{
		Type:     html.ElementNode,
		DataAtom: a,
		Data:     a.String(),
		Attr:     append(attrs, DataAttrs(data)...),
	}
	for _, c := range children {
		if c.Parent != nil {
			c.Parent.RemoveChild(c)
		}
		el.AppendChild(c)
	}
	return el
}

// Text builds an HTML text node.
func Text(s string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: s}
}

// Raw builds a node rendered verbatim.
func Raw(s string) *html.Node {
	return &html.Node{Type: html.RawNode, Data: s}
}

// blockTags are the elements an HTML parser never keeps inside a paragraph.
var blockTags = map[string]bool{
	"address": true, "article": true, "aside": true, "blockquote": true, "center": true,
	"dd": true, "details": true, "dialog": true, "dir": true, "div": true, "dl": true,
	"dt": true, "fieldset": true, "figcaption": true, "figure": true, "footer": true,
	"form": true, "h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"header": true, "hgroup": true, "hr": true, "li": true, "listing": true, "main": true,
	"menu": true, "nav": true, "ol": true, "p": true, "plaintext": true, "pre": true,
	"search": true, "section": true, "summary": true, "table": true, "ul": true, "xmp": true,
}

// IsBlockTag reports whether an element of the given name closes an open paragraph.
func IsBlockTag(name string) bool {
	return blockTags[strings.ToLower(name)]
}

// Render renders nodes one after another.
func Render(nodes []*html.Node) (string, error) {
	var buf bytes.Buffer
	for _, n := range nodes {
		if err := html.Render(&buf, n); err != nil {
			return "", fmt.Errorf("failed to render <%s>: %w", n.Data, err)
		}
	}
	return buf.String(), nil
}

// Digest returns a short fingerprint of the rendered nodes.
func Digest(nodes []*html.Node) (string, error) {
	s, err := Render(nodes)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:8]), nil
}
