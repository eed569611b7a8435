package ui

import (
	"fmt"

	"github.com/rivo/tview"
)

// Logo shows the product mark and, underneath, the hub connection state
// colored by whether presence is live.
type Logo struct {
	*tview.TextView
	theme  *Theme
	status string
}

// NewLogo creates the logo with an unknown connection state.
func NewLogo(theme *Theme) *Logo {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignLeft)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetBorderPadding(1, 0, 1, 0)

	l := &Logo{
		TextView: tv,
		theme:    theme,
	}
	l.render()
	return l
}

// SetStatus updates the connection state line. "OPEN" renders as online.
func (l *Logo) SetStatus(status string) {
	if status == l.status {
		return
	}
	l.status = status
	l.render()
}

func (l *Logo) render() {
	l.Clear()
	title := colorName(l.theme.TitleColor)

	state, color := "offline", colorName(l.theme.OfflineColor)
	switch l.status {
	case "OPEN":
		state, color = "online", colorName(l.theme.OnlineColor)
	case "CONNECTING", "RECONNECTING":
		state = "connecting"
	}

	_, _ = fmt.Fprintf(l,
		"[%s::b] ╔═╗╦ ╦╔═╗╔╦╗[-:-:-]\n"+
			"[%s::b] ║  ╠═╣╠═╣ ║ [-:-:-]\n"+
			"[%s::b] ╚═╝╩ ╩╩ ╩ ╩ [-:-:-]\n"+
			" [%s]● %s[-:-:-]",
		title, title, title, color, state,
	)
}
