// internal/browser/dom.go
package browser

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Document is a parsed snapshot of a rendered page.
type Document struct {
	doc *goquery.Document
}

// ParseDocument parses serialized HTML into a queryable snapshot.
func ParseDocument(html string) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse document: %w", err)
	}
	return &Document{doc: doc}, nil
}

// QueryAll returns all elements matching selector in document order.
func (d *Document) QueryAll(selector string) []Node {
	return wrapSelection(d.doc.Find(selector))
}

// domNode implements Node on top of a single-element goquery selection.
type domNode struct {
	sel *goquery.Selection
}

func (n domNode) Find(selector string) (Node, bool) {
	found := n.sel.Find(selector)
	if found.Length() == 0 {
		return nil, false
	}
	return domNode{sel: found.First()}, true
}

func (n domNode) FindAll(selector string) []Node {
	return wrapSelection(n.sel.Find(selector))
}

func (n domNode) Attr(name string) (string, bool) {
	return n.sel.Attr(name)
}

func (n domNode) Text() string {
	return strings.TrimSpace(n.sel.Text())
}

func wrapSelection(sel *goquery.Selection) []Node {
	nodes := make([]Node, 0, sel.Length())
	sel.Each(func(_ int, s *goquery.Selection) {
		nodes = append(nodes, domNode{sel: s})
	})
	return nodes
}
