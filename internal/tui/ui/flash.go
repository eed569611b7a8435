package ui

import (
	"fmt"

	"github.com/matheus3301/chatsync/internal/notify"
	"github.com/rivo/tview"
)

// FlashBar is the UI component that displays flash notifications.
type FlashBar struct {
	*tview.TextView
	theme *Theme
}

// NewFlashBar creates a new flash notification bar.
func NewFlashBar(theme *Theme) *FlashBar {
	tv := tview.NewTextView().
		SetDynamicColors(true)
	tv.SetBackgroundColor(theme.BgColor)

	return &FlashBar{
		TextView: tv,
		theme:    theme,
	}
}

// Update renders a notice on the bar. A nil notice clears it.
func (fb *FlashBar) Update(n *notify.Notice) {
	fb.Clear()
	if n == nil {
		return
	}

	var color string
	switch n.Level {
	case notify.Info:
		color = colorName(fb.theme.FlashInfoColor)
	case notify.Warn:
		color = colorName(fb.theme.FlashWarnColor)
	case notify.Err:
		color = colorName(fb.theme.FlashErrColor)
	}
	_, _ = fmt.Fprintf(fb, " [%s]%s[-]", color, tview.Escape(n.Text))
}
