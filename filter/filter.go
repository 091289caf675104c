package filter

import (
	"strings"
	"unicode"
)

// ScopeAll applies a keyword exclusion to every channel
const ScopeAll = "all"

// Rules are the externally loaded exclusion lists
type Rules struct {
	// Keywords maps a scope (a channel name or ScopeAll) to excluded title keywords
	Keywords map[string][]string `yaml:"keywords" json:"keywords"`
	// Publishers lists excluded publisher names
	Publishers []string `yaml:"publishers" json:"publishers"`
}

// Filter answers exclusion questions against an immutable rule set
type Filter struct {
	keywords   map[string][]string
	publishers map[string]struct{}
}

// New compiles rules into a filter. Matching ignores case and whitespace.
func New(rules Rules) *Filter {
	f := &Filter{
		keywords:   make(map[string][]string, len(rules.Keywords)),
		publishers: make(map[string]struct{}, len(rules.Publishers)),
	}
	for scope, words := range rules.Keywords {
		scope = strings.ToLower(strings.TrimSpace(scope))
		for _, w := range words {
			if k := squash(w); k != "" {
				f.keywords[scope] = append(f.keywords[scope], k)
			}
		}
	}
	for _, p := range rules.Publishers {
		if k := squash(p); k != "" {
			f.publishers[k] = struct{}{}
		}
	}
	return f
}

// IsExcluded reports whether the title holds a keyword scoped to the channel
// or to every channel, or whether the publisher is excluded.
func (f *Filter) IsExcluded(title, publisher, channel string) bool {
	if f == nil {
		return false
	}
	if publisher != "" {
		if _, ok := f.publishers[squash(publisher)]; ok {
			return true
		}
	}

	t := squash(title)
	if t == "" {
		return false
	}
	for _, scope := range []string{ScopeAll, strings.ToLower(channel)} {
		for _, k := range f.keywords[scope] {
			if strings.Contains(t, k) {
				return true
			}
		}
	}
	return false
}

// squash lower-cases s and removes all whitespace
func squash(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return unicode.ToLower(r)
	}, s)
}
