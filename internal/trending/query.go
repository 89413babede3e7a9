package trending

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// node is a lookup handle over a parsed document. Every lookup is optional
// and reports absence instead of failing.
type node struct {
	sel *goquery.Selection
}

func parseDocument(body []byte) (node, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return node{}, ErrMalformedDocument
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return node{}, fmt.Errorf("%w: %w", ErrMalformedDocument, err)
	}
	return node{sel: doc.Selection}, nil
}

func (n node) first(selector string) (node, bool) {
	if n.sel == nil {
		return node{}, false
	}
	found := n.sel.Find(selector).First()
	if found.Length() == 0 {
		return node{}, false
	}
	return node{sel: found}, true
}

func (n node) all(selector string) []node {
	if n.sel == nil {
		return nil
	}
	found := n.sel.Find(selector)
	out := make([]node, 0, found.Length())
	found.Each(func(_ int, s *goquery.Selection) {
		out = append(out, node{sel: s})
	})
	return out
}

func (n node) text() string {
	if n.sel == nil {
		return ""
	}
	return strings.TrimSpace(n.sel.Text())
}

func (n node) attr(name string) (string, bool) {
	if n.sel == nil {
		return "", false
	}
	return n.sel.Attr(name)
}

// collapseSpace joins whitespace runs into single spaces.
func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// stripSpace removes every whitespace rune.
func stripSpace(s string) string {
	return strings.Join(strings.Fields(s), "")
}
