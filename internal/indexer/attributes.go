package indexer

import (
	"strings"

	"golang.org/x/net/html"
)

// AttributeHandler extracts the indexable text of one attribute. The set of
// handlers is closed: TextAttribute, HTMLAttribute and ListAttribute.
type AttributeHandler interface {
	AttributeID() int
	Extract() string
	sealed()
}

// TextAttribute is a plain string field such as a subject or a name.
type TextAttribute struct {
	ID    int
	Value string
}

func (a TextAttribute) AttributeID() int { return a.ID }
func (a TextAttribute) Extract() string  { return a.Value }
func (TextAttribute) sealed()            {}

// HTMLAttribute is a rich-text field such as a mail body; only its text
// nodes are indexed.
type HTMLAttribute struct {
	ID   int
	HTML string
}

func (a HTMLAttribute) AttributeID() int { return a.ID }
func (a HTMLAttribute) Extract() string  { return htmlToText(a.HTML) }
func (HTMLAttribute) sealed()            {}

// ListAttribute is a multi-valued field such as recipients or attachment names.
type ListAttribute struct {
	ID     int
	Values []string
}

func (a ListAttribute) AttributeID() int { return a.ID }
func (a ListAttribute) Extract() string  { return strings.Join(a.Values, " ") }
func (ListAttribute) sealed()            {}

func htmlToText(src string) string {
	z := html.NewTokenizer(strings.NewReader(src))
	var b strings.Builder
	skip := 0
	for {
		switch z.Next() {
		case html.ErrorToken:
			// io.EOF or malformed input: keep what was read
			return strings.TrimSpace(b.String())
		case html.StartTagToken:
			name, _ := z.TagName()
			if isInvisible(name) {
				skip++
			}
			if isBlock(name) {
				b.WriteByte(' ')
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			if isInvisible(name) && skip > 0 {
				skip--
			}
			if isBlock(name) {
				b.WriteByte(' ')
			}
		case html.SelfClosingTagToken:
			b.WriteByte(' ')
		case html.TextToken:
			if skip == 0 {
				b.Write(z.Text())
			}
		}
	}
}

func isInvisible(tag []byte) bool {
	switch string(tag) {
	case "script", "style", "head", "title":
		return true
	}
	return false
}

func isBlock(tag []byte) bool {
	switch string(tag) {
	case "p", "div", "br", "li", "tr", "td", "th", "h1", "h2", "h3", "h4", "h5", "h6", "blockquote", "pre", "table":
		return true
	}
	return false
}
