package views

import (
	"fmt"

	"github.com/gdamore/tcell/v2"
	"github.com/matheus3301/chatsync/internal/protocol"
	"github.com/matheus3301/chatsync/internal/tui/ui"
	"github.com/rivo/tview"
)

// ContactList is the table of people the identity can message, with an
// online marker per row.
type ContactList struct {
	*tview.Table
	theme      *ui.Theme
	contacts   []protocol.Contact
	online     func(id string) bool
	visible    []protocol.Contact
	filter     string
	onlineOnly bool
}

// NewContactList creates an empty contact table.
func NewContactList(theme *ui.Theme) *ContactList {
	table := tview.NewTable().
		SetSelectable(true, false).
		SetBorders(false).
		SetFixed(1, 0)
	table.SetBorder(true)
	table.SetBorderColor(theme.BorderColor)
	table.SetBackgroundColor(theme.BgColor)
	table.SetSelectedStyle(tcell.StyleDefault.
		Foreground(theme.TableCursorFg).
		Background(theme.TableCursorBg))
	table.SetTitleColor(theme.TitleColor)

	cl := &ContactList{
		Table:  table,
		theme:  theme,
		online: func(string) bool { return false },
	}
	cl.render()
	return cl
}

// Name implements ui.Component.
func (cl *ContactList) Name() string { return "Contacts" }

// Hints implements ui.Component.
func (cl *ContactList) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "Enter", Description: "Open"},
		{Key: "d", Description: "Details"},
		{Key: "o", Description: "Online only"},
		{Key: "r", Description: "Reload"},
		{Key: "/", Description: "Filter"},
		{Key: ":", Description: "Command"},
		{Key: "?", Description: "Help"},
		{Key: "q", Description: "Quit"},
		{Key: "1-9", Description: "Jump", Numeric: true},
	}
}

// Update replaces the contacts and the presence lookup.
func (cl *ContactList) Update(contacts []protocol.Contact, online func(id string) bool) {
	selected := cl.Selected()
	cl.contacts = contacts
	if online != nil {
		cl.online = online
	}
	cl.render()
	if selected != nil {
		cl.selectID(selected.ID)
	}
}

// SetFilter sets the active name filter and re-renders.
func (cl *ContactList) SetFilter(filter string) {
	cl.filter = filter
	cl.render()
}

// Filter returns the active name filter.
func (cl *ContactList) Filter() string { return cl.filter }

// ToggleOnlineOnly hides or shows offline contacts.
func (cl *ContactList) ToggleOnlineOnly() {
	cl.onlineOnly = !cl.onlineOnly
	cl.render()
}

// OnlineOnly reports whether offline contacts are hidden.
func (cl *ContactList) OnlineOnly() bool { return cl.onlineOnly }

// Visible returns the contacts currently listed, in display order.
func (cl *ContactList) Visible() []protocol.Contact {
	return append([]protocol.Contact(nil), cl.visible...)
}

// Selected returns the highlighted contact, or nil.
func (cl *ContactList) Selected() *protocol.Contact {
	row, _ := cl.GetSelection()
	return cl.At(row)
}

// At returns the Nth visible contact (1-based), or nil.
func (cl *ContactList) At(n int) *protocol.Contact {
	if n < 1 || n > len(cl.visible) {
		return nil
	}
	c := cl.visible[n-1]
	return &c
}

func (cl *ContactList) selectID(id string) {
	for i, c := range cl.visible {
		if c.ID == id {
			cl.Select(i+1, 0)
			return
		}
	}
}

func (cl *ContactList) render() {
	cl.Clear()

	headers := []struct {
		text string
		exp  int
	}{
		{" ", 0},
		{" NAME", 1},
		{" STATUS", 0},
	}
	for col, h := range headers {
		cl.SetCell(0, col, tview.NewTableCell(h.text).
			SetSelectable(false).
			SetTextColor(cl.theme.TableHeaderFg).
			SetBackgroundColor(cl.theme.TableHeaderBg).
			SetAttributes(tcell.AttrBold).
			SetExpansion(h.exp))
	}

	cl.visible = cl.visible[:0]
	onlineCount := 0
	for _, c := range cl.contacts {
		isOnline := cl.online(c.ID)
		if isOnline {
			onlineCount++
		}
		if cl.filter != "" && !containsFold(c.FullName, cl.filter) {
			continue
		}
		if cl.onlineOnly && !isOnline {
			continue
		}
		cl.visible = append(cl.visible, c)

		row := len(cl.visible)
		marker, state, color := "○", "offline", cl.theme.OfflineColor
		if isOnline {
			marker, state, color = "●", "online", cl.theme.OnlineColor
		}
		cl.SetCell(row, 0, tview.NewTableCell(" "+marker).SetTextColor(color))
		cl.SetCell(row, 1, tview.NewTableCell(" "+tview.Escape(sanitizeLine(c.FullName))).SetExpansion(1).SetTextColor(cl.theme.FgColor))
		cl.SetCell(row, 2, tview.NewTableCell(state+" ").SetTextColor(color).SetAlign(tview.AlignRight))
	}

	title := fmt.Sprintf(" Contacts (%d online of %d) ", onlineCount, len(cl.contacts))
	if cl.filter != "" || cl.onlineOnly {
		title = fmt.Sprintf(" Contacts (%d/%d)", len(cl.visible), len(cl.contacts))
		if cl.onlineOnly {
			title += " online only"
		}
		if cl.filter != "" {
			title += " filter: " + tview.Escape(cl.filter)
		}
		title += " "
	}
	cl.SetTitle(title)
}
