package resolve

import (
	"strings"
	"unicode"
)

// NormalizeName produces the canonical key form of an entity name: lower-case,
// abbreviation periods folded ("U.S.A." -> "usa"), punctuation stripped,
// hyphens treated as spaces, whitespace collapsed. Two surface forms that
// normalize identically denote the same canonical entity for a given type.
func NormalizeName(name string) string {
	var b strings.Builder
	b.Grow(len(name))

	prevSpace := true
	for _, r := range strings.ToLower(name) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			prevSpace = false
		case r == '-' || r == '–' || r == '/' || unicode.IsSpace(r):
			if !prevSpace {
				b.WriteByte(' ')
				prevSpace = true
			}
		default:
			// Periods inside abbreviations and all other punctuation fold away.
		}
	}

	return strings.TrimRight(b.String(), " ")
}
