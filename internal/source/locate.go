package source

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Locator is one strategy for finding a page element. Every locator can be
// expressed as a CSS selector so the same chain works on a parsed document
// and inside a live browser.
type Locator interface {
	Selector() string
}

// ByID matches the element with the given id attribute.
type ByID string

func (l ByID) Selector() string { return "#" + string(l) }

// ByName matches elements by their name attribute.
type ByName string

func (l ByName) Selector() string { return fmt.Sprintf("[name=%q]", string(l)) }

// ByCSS matches an arbitrary CSS selector.
type ByCSS string

func (l ByCSS) Selector() string { return string(l) }

// ByPosition picks among all matches of Selector by position: the last one
// when Last is set, otherwise the first.
type ByPosition struct {
	CSS  string
	Last bool
}

func (l ByPosition) Selector() string { return l.CSS }

// Chain is a prioritized list of locators; the first that finds something wins.
type Chain []Locator

// Find returns the first element matched by the chain under root.
func (c Chain) Find(root *goquery.Selection) (*goquery.Selection, bool) {
	for _, l := range c {
		sel := root.Find(l.Selector())
		if sel.Length() == 0 {
			continue
		}
		if pos, ok := l.(ByPosition); ok && pos.Last {
			return sel.Last(), true
		}
		return sel.First(), true
	}
	return nil, false
}

// Text returns the trimmed text of the first match, or "" if nothing matched.
func (c Chain) Text(root *goquery.Selection) string {
	sel, ok := c.Find(root)
	if !ok {
		return ""
	}
	return strings.TrimSpace(sel.Text())
}

func (c Chain) String() string {
	parts := make([]string, 0, len(c))
	for _, l := range c {
		parts = append(parts, l.Selector())
	}
	return strings.Join(parts, " | ")
}
