package views

import (
	"strings"
	"unicode"
)

// sanitizeForTerminal cleans peer-supplied text before it reaches a tview
// cell. Control characters other than newlines are removed, which also
// defuses escape sequences, and so are the codepoints tcell cannot lay out
// in one cell run: skin tone modifiers, the zero width joiner and
// variation selectors. A composed emoji degrades to its base glyph.
func sanitizeForTerminal(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r == '\n':
			return r
		case r == '\t':
			return ' '
		case unicode.IsControl(r), isUnrenderable(r):
			return -1
		default:
			return r
		}
	}, s)
}

// sanitizeLine is sanitizeForTerminal for single-line fields such as names.
func sanitizeLine(s string) string {
	return strings.Join(strings.Fields(sanitizeForTerminal(s)), " ")
}

func isUnrenderable(r rune) bool {
	switch {
	case r >= 0x1F3FB && r <= 0x1F3FF: // skin tones
		return true
	case r == 0x200D: // ZWJ
		return true
	case r >= 0xFE00 && r <= 0xFE0F:
		return true
	case r >= 0xE0100 && r <= 0xE01EF:
		return true
	default:
		return false
	}
}
