package spamfilter

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultStopwords are channel markers that appear in most titles of their
// channel and would otherwise dominate every count.
var DefaultStopwords = []string{"속보", "단독", "breaking", "exclusive"}

const minTokenLength = 2

// Tokenize splits a title into distinct lower-case keywords, dropping short
// tokens and stopwords. Order of first appearance is preserved.
func Tokenize(title string, stopwords map[string]struct{}) []string {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return unicode.ToLower(r)
		}
		return ' '
	}, title)

	fields := strings.Fields(cleaned)
	seen := make(map[string]struct{}, len(fields))
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if utf8.RuneCountInString(f) < minTokenLength {
			continue
		}
		if _, stop := stopwords[f]; stop {
			continue
		}
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		tokens = append(tokens, f)
	}
	return tokens
}

// StopwordSet builds a lookup set from words, lower-cased and trimmed
func StopwordSet(words ...[]string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, list := range words {
		for _, w := range list {
			w = strings.ToLower(strings.TrimSpace(w))
			if w != "" {
				set[w] = struct{}{}
			}
		}
	}
	return set
}
