// Package tokenizer splits attribute values into the word tokens stored in the
// search index. It lower-cases input and splits on every rune that is neither
// a letter nor a digit. A token's offset is its index in the returned slice.
package tokenizer

import (
	"strings"
	"unicode"
)

// Tokenizer turns text into an ordered sequence of words.
type Tokenizer interface {
	Tokenize(text string) []string
}

// Words is the default Tokenizer.
type Words struct{}

func (Words) Tokenize(text string) []string {
	return Tokenize(text)
}

// Tokenize breaks text into lower-cased words. Empty input yields nil.
func Tokenize(text string) []string {
	if text == "" {
		return nil
	}
	text = strings.ToLower(text)
	words := strings.FieldsFunc(text, isSeparator)
	if len(words) == 0 {
		return nil
	}
	return words
}

func isSeparator(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}
