package cachecore

import (
	"regexp"
	"strings"
)

// compileGlob translates a glob pattern into an anchored, case-insensitive
// regular expression: `*` matches any run of characters, `?` matches a
// single character, everything else is literal. A pattern without
// metacharacters therefore behaves as an exact (case-insensitive) match.
func compileGlob(pattern string) (*regexp.Regexp, error) {
	var b strings.Builder
	b.WriteString("(?i)^")
	for _, r := range pattern {
		switch r {
		case '*':
			b.WriteString(".*")
		case '?':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString("$")
	return regexp.Compile(b.String())
}
