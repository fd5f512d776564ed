// Package sanitize normalizes untrusted text before it crosses into a
// prompt or a pattern match. Invisible code points are a standard way to
// smuggle instructions past keyword scans, and compatibility variants of
// ordinary letters defeat literal matching.
package sanitize

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// invisible holds the code points stripped outright: zero-width characters,
// directional marks, BOM, soft hyphen, and the line/paragraph separators
// occasionally used as spacing tricks.
var invisible = map[rune]bool{
	'\u200B': true, // zero width space
	'\u200C': true, // zero width non-joiner
	'\u200D': true, // zero width joiner
	'\u200E': true, // left-to-right mark
	'\u200F': true, // right-to-left mark
	'\u202A': true, // left-to-right embedding
	'\u202B': true, // right-to-left embedding
	'\u202C': true, // pop directional formatting
	'\u202D': true, // left-to-right override
	'\u202E': true, // right-to-left override
	'\u2060': true, // word joiner
	'\u2066': true, // left-to-right isolate
	'\u2067': true, // right-to-left isolate
	'\u2068': true, // first strong isolate
	'\u2069': true, // pop directional isolate
	'\u00AD': true, // soft hyphen
	'\uFEFF': true, // byte order mark
	'\u2028': true, // line separator
	'\u2029': true, // paragraph separator
}

// Clean strips invisible code points and applies NFKC normalization so
// that visually identical text always compares equal. Pure and idempotent;
// never fails.
func Clean(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if invisible[r] {
			continue
		}
		b.WriteRune(r)
	}
	return norm.NFKC.String(b.String())
}
