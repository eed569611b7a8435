package ui

import (
	"fmt"
	"strings"

	"github.com/rivo/tview"
)

// menuRows is the number of hint lines that fit in the header.
const menuRows = 5

// globalHints are shown after the page's own hints on every page.
var globalHints = []MenuHint{
	{Key: ":", Description: "Command"},
	{Key: "?", Description: "Help"},
}

// Menu lays out the current page's key hints in columns of menuRows lines.
type Menu struct {
	*tview.TextView
	theme *Theme
}

// NewMenu creates an empty hint column.
func NewMenu(theme *Theme) *Menu {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetWrap(false).
		SetTextAlign(tview.AlignLeft)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetBorderPadding(0, 0, 2, 0)

	return &Menu{
		TextView: tv,
		theme:    theme,
	}
}

// Update renders hints followed by the global ones.
func (m *Menu) Update(hints []MenuHint) {
	m.Clear()
	_, _ = fmt.Fprint(m, m.layout(append(append([]MenuHint(nil), hints...), globalHints...)))
}

func (m *Menu) layout(hints []MenuHint) string {
	cols := (len(hints) + menuRows - 1) / menuRows
	width := 0
	for _, h := range hints {
		width = max(width, len(h.Key)+len(h.Description)+3)
	}

	keyColor := colorName(m.theme.MenuKeyColor)
	numColor := colorName(m.theme.NumericKeyColor)

	var b strings.Builder
	for row := range min(menuRows, len(hints)) {
		for col := range cols {
			i := col*menuRows + row
			if i >= len(hints) {
				break
			}
			h := hints[i]
			kc := keyColor
			if h.Numeric {
				kc = numColor
			}
			fmt.Fprintf(&b, "[%s::b]<%s>[-:-:-] %s", kc, tview.Escape(h.Key), h.Description)
			if col < cols-1 {
				b.WriteString(strings.Repeat(" ", width-len(h.Key)-len(h.Description)-1))
			}
		}
		b.WriteByte('\n')
	}
	return b.String()
}
