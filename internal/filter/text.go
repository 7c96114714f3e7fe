package filter

import (
	"strings"
	"unicode"

	"github.com/kljensen/snowball/english"
)

// evalText matches when every stemmed token of the search phrase occurs among
// the stemmed tokens of the document's string values. A phrase without any
// word characters has no tokens and matches nothing, which is what the
// forced-empty result mode relies on.
func (f *Filter) evalText(doc Document) bool {
	phrase, ok := f.Value.(string)
	if !ok {
		return false
	}
	queryTokens := stemTokens(phrase)
	if len(queryTokens) == 0 {
		return false
	}

	docTokens := make(map[string]struct{})
	collectTokens(map[string]any(doc), docTokens)

	for _, token := range queryTokens {
		if _, ok := docTokens[token]; !ok {
			return false
		}
	}
	return true
}

// collectTokens walks every string value in the document.
func collectTokens(v any, out map[string]struct{}) {
	if s, ok := v.(string); ok {
		for _, token := range stemTokens(s) {
			out[token] = struct{}{}
		}
		return
	}
	if m, ok := toMap(v); ok {
		for k, child := range m {
			if k == IDField {
				continue
			}
			collectTokens(child, out)
		}
		return
	}
	for _, elem := range toSlice(v) {
		collectTokens(elem, out)
	}
}

// stemTokens lowercases, splits on non word characters and stems each token.
func stemTokens(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !isWordChar(r)
	})
	tokens := make([]string, 0, len(fields))
	for _, field := range fields {
		tokens = append(tokens, english.Stem(field, false))
	}
	return tokens
}

// isWordChar returns true if the rune should be part of a word token.
func isWordChar(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
}
