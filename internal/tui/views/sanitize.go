package views

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// sanitizeForTerminal removes codepoints that break tcell cell accounting:
// emoji skin tone modifiers, zero width joiners, variation selectors and C0/C1
// control characters other than newline and tab.
func sanitizeForTerminal(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		if !isProblematicRune(r) {
			b.WriteRune(r)
		}
		i += size
	}
	return b.String()
}

// singleLine sanitizes s and folds line breaks into spaces, for table cells.
func singleLine(s string) string {
	s = sanitizeForTerminal(s)
	return strings.Join(strings.Fields(s), " ")
}

func isProblematicRune(r rune) bool {
	switch {
	case r == utf8.RuneError:
		return true
	case r == '\n' || r == '\t':
		return false
	case unicode.IsControl(r):
		return true
	// Skin tone modifiers.
	case r >= 0x1F3FB && r <= 0x1F3FF:
		return true
	// Zero Width Joiner.
	case r == 0x200D:
		return true
	// Variation Selectors.
	case r >= 0xFE00 && r <= 0xFE0F:
		return true
	// Variation Selectors Supplement.
	case r >= 0xE0100 && r <= 0xE01EF:
		return true
	default:
		return false
	}
}
