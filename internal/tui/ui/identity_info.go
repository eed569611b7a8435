package ui

import (
	"fmt"

	"github.com/rivo/tview"
)

// IdentityData holds the header details of the signed-in identity.
type IdentityData struct {
	Profile  string
	Name     string
	Email    string
	Status   string
	Online   int
	Contacts int
}

// IdentityInfo displays identity and connection metadata in the header.
type IdentityInfo struct {
	*tview.TextView
	theme *Theme
}

// NewIdentityInfo creates a new identity info panel.
func NewIdentityInfo(theme *Theme) *IdentityInfo {
	tv := tview.NewTextView().
		SetDynamicColors(true)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetBorderPadding(0, 0, 1, 1)

	return &IdentityInfo{
		TextView: tv,
		theme:    theme,
	}
}

// Update renders the identity info.
func (ii *IdentityInfo) Update(data *IdentityData) {
	ii.Clear()
	if data == nil {
		return
	}

	fgColor := colorName(ii.theme.FgColor)
	counterColor := colorName(ii.theme.CounterColor)

	name := orDash(data.Name)
	email := orDash(data.Email)

	text := fmt.Sprintf(
		"[%s::b]Profile:[-:-:-]  [%s]%s[-]\n"+
			"[%s::b]User:[-:-:-]     [%s]%s[-]\n"+
			"[%s::b]Email:[-:-:-]    [%s]%s[-]\n"+
			"[%s::b]Hub:[-:-:-]      [%s]%s[-]\n"+
			"[%s::b]Online:[-:-:-]   [%s]%d[-]\n"+
			"[%s::b]Contacts:[-:-:-] [%s]%d[-]",
		fgColor, counterColor, tview.Escape(data.Profile),
		fgColor, counterColor, tview.Escape(name),
		fgColor, counterColor, tview.Escape(email),
		fgColor, counterColor, data.Status,
		fgColor, counterColor, data.Online,
		fgColor, counterColor, data.Contacts,
	)

	_, _ = fmt.Fprint(ii, text)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
