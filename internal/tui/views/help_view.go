package views

import (
	"fmt"

	"github.com/matheus3301/chatsync/internal/tui/ui"
	"github.com/rivo/tview"
)

// HelpView displays the key binding and command reference.
type HelpView struct {
	*tview.TextView
	theme *ui.Theme
}

// NewHelpView creates a new help view.
func NewHelpView(theme *ui.Theme) *HelpView {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true)
	tv.SetBorder(true)
	tv.SetBorderColor(theme.BorderColor)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetTextColor(theme.FgColor)
	tv.SetTitle(" Help ")
	tv.SetTitleColor(theme.TitleColor)

	hv := &HelpView{
		TextView: tv,
		theme:    theme,
	}
	hv.render()
	return hv
}

// Name implements ui.Component.
func (hv *HelpView) Name() string { return "Help" }

// Hints implements ui.Component.
func (hv *HelpView) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "Esc", Description: "Back"},
	}
}

type helpEntry struct{ key, text string }

var helpSections = []struct {
	title   string
	entries []helpEntry
}{
	{"Global", []helpEntry{
		{":", "Command mode"},
		{"Esc", "Cancel / go back"},
		{"?", "This help"},
		{"q", "Quit (from the contact list)"},
		{"Ctrl-C", "Quit immediately"},
	}},
	{"Contacts", []helpEntry{
		{"Enter", "Open conversation"},
		{"1-9", "Open the Nth contact"},
		{"/", "Filter by name"},
		{"o", "Toggle online only"},
		{"d", "Contact details"},
		{"r", "Reload contacts"},
		{"j/k", "Move down / up"},
	}},
	{"Conversation", []helpEntry{
		{"i", "Focus composer"},
		{"Enter", "Send (in composer)"},
		{"Esc", "Leave composer"},
		{"d", "Contact details"},
		{"r", "Reload history"},
	}},
	{"Commands", []helpEntry{
		{":chat <name>", "Open a conversation by name"},
		{":image <file|url>", "Send an image to the open conversation"},
		{":name <full name>", "Change your display name"},
		{":avatar <url>", "Change your profile picture"},
		{":theme dark|light", "Switch and save the color theme"},
		{":reload", "Reload contacts and history"},
		{":logout", "End the session"},
		{":help / :h", "Show this help"},
		{":quit / :q", "Quit"},
	}},
}

func (hv *HelpView) render() {
	kc := ui.ColorName(hv.theme.MenuKeyColor)
	for _, s := range helpSections {
		_, _ = fmt.Fprintf(hv, "\n  [::b]%s[-:-:-]\n\n", s.title)
		for _, e := range s.entries {
			_, _ = fmt.Fprintf(hv, "  [%s]%-20s[-:-:-] %s\n", kc, tview.Escape(e.key), e.text)
		}
	}
}
