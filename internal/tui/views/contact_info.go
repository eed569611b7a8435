package views

import (
	"fmt"

	"github.com/matheus3301/chatsync/internal/protocol"
	"github.com/matheus3301/chatsync/internal/tui/ui"
	"github.com/rivo/tview"
)

// ContactInfo displays the details of one contact.
type ContactInfo struct {
	*tview.TextView
	theme *ui.Theme
}

// NewContactInfo creates a new contact details view.
func NewContactInfo(theme *ui.Theme) *ContactInfo {
	tv := tview.NewTextView().
		SetDynamicColors(true)
	tv.SetBorder(true)
	tv.SetBorderColor(theme.BorderColor)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetTextColor(theme.FgColor)
	tv.SetTitle(" Details ")
	tv.SetTitleColor(theme.TitleColor)

	return &ContactInfo{
		TextView: tv,
		theme:    theme,
	}
}

// Name implements ui.Component.
func (ci *ContactInfo) Name() string { return "Details" }

// Hints implements ui.Component.
func (ci *ContactInfo) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "Esc", Description: "Back"},
		{Key: ":", Description: "Command"},
		{Key: "?", Description: "Help"},
	}
}

// Update renders c with its presence and message count.
func (ci *ContactInfo) Update(c protocol.Contact, online bool, messages int) {
	ci.Clear()

	fg := ui.ColorName(ci.theme.FgColor)
	ct := ui.ColorName(ci.theme.CounterColor)

	presence := "offline"
	if online {
		presence = "online"
	}
	pic := c.ProfilePic
	if pic == "" {
		pic = "-"
	} else if len(pic) > 60 {
		pic = imageLabel(pic)
	}

	_, _ = fmt.Fprintf(ci,
		"\n [%s::b]Name:[-:-:-]     [%s]%s[-]\n"+
			" [%s::b]ID:[-:-:-]       [%s]%s[-]\n"+
			" [%s::b]Status:[-:-:-]   [%s]%s[-]\n"+
			" [%s::b]Messages:[-:-:-] [%s]%d[-]\n"+
			" [%s::b]Picture:[-:-:-]  [%s]%s[-]",
		fg, ct, tview.Escape(sanitizeLine(c.FullName)),
		fg, ct, c.ID,
		fg, ct, presence,
		fg, ct, messages,
		fg, ct, tview.Escape(pic),
	)
	ci.SetTitle(fmt.Sprintf(" %s ", tview.Escape(sanitizeLine(c.FullName))))
}
