package branch

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// DefaultName is the repository default branch, matching Fossil's trunk.
const DefaultName = "trunk"

// maxNameLength bounds normalized branch names.
const maxNameLength = 64

var foldTransformer = transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Normalize maps an arbitrary branch-name string to its canonical form:
// accents folded away, whitespace runs collapsed to "-", everything outside
// [A-Za-z0-9._-] stripped, truncated to 64 characters. An empty result
// yields DefaultName. Normalize(Normalize(x)) == Normalize(x).
func Normalize(name string) string {
	name = strings.TrimSpace(name)
	if folded, _, err := transform.String(foldTransformer, name); err == nil {
		name = folded
	}

	var b strings.Builder
	b.Grow(len(name))
	lastDash := false
	for _, r := range name {
		switch {
		case unicode.IsSpace(r):
			if !lastDash && b.Len() > 0 {
				b.WriteByte('-')
				lastDash = true
			}
		case r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z', r >= '0' && r <= '9',
			r == '.', r == '_', r == '-':
			b.WriteRune(r)
			lastDash = r == '-'
		}
	}

	result := strings.Trim(b.String(), "-")
	if len(result) > maxNameLength {
		result = strings.Trim(result[:maxNameLength], "-")
	}
	if result == "" {
		return DefaultName
	}
	return result
}
