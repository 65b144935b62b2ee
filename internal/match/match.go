// Package match decides which site a page URL belongs to.
package match

import (
	"regexp"
	"strings"
)

// Glob reports whether url matches pattern. A '*' in the pattern matches
// any substring, including the empty one and across path, query and
// fragment boundaries. Every other character is matched literally and
// the whole url has to match.
func Glob(pattern, url string) bool {
	parts := strings.Split(pattern, "*")
	for i, p := range parts {
		parts[i] = regexp.QuoteMeta(p)
	}
	re, err := regexp.Compile("^" + strings.Join(parts, ".*") + "$")
	if err != nil {
		// cannot happen with quoted input
		return false
	}
	return re.MatchString(url)
}

// Matches reports whether any of the patterns matches url.
func Matches(patterns []string, url string) bool {
	for _, p := range patterns {
		if Glob(p, url) {
			return true
		}
	}
	return false
}

// Patterned is anything that carries a list of url patterns,
// eg a site definition.
type Patterned interface {
	Patterns() []string
}

// Select returns the index of the first item whose patterns match url
// or -1 if there is none.
func Select[T Patterned](items []T, url string) int {
	for i, it := range items {
		if Matches(it.Patterns(), url) {
			return i
		}
	}
	return -1
}
