package views

import (
	"fmt"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/matheus3301/chatsync/internal/protocol"
	"github.com/matheus3301/chatsync/internal/tui/ui"
	"github.com/rivo/tview"
)

// ThreadData is everything the thread renders for one conversation.
type ThreadData struct {
	Peer     protocol.Contact
	SelfID   string
	Online   bool
	Messages []protocol.Message
	Loading  bool
	Sending  bool
}

// MessageThread displays the conversation with the selected contact and a
// composer.
type MessageThread struct {
	*tview.Flex
	theme    *ui.Theme
	messages *tview.TextView
	composer *tview.InputField
	peer     protocol.Contact
	onSend   func(text string)
}

// NewMessageThread creates a new message thread view.
func NewMessageThread(theme *ui.Theme) *MessageThread {
	messages := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetWordWrap(true)
	messages.SetBorder(true)
	messages.SetBorderColor(theme.BorderColor)
	messages.SetBackgroundColor(theme.BgColor)
	messages.SetTextColor(theme.FgColor)
	messages.SetTitle(" Messages ")
	messages.SetTitleColor(theme.TitleColor)

	composer := tview.NewInputField().
		SetLabel(" > ").
		SetFieldWidth(0)
	composer.SetBorder(true)
	composer.SetBorderColor(theme.BorderColor)
	composer.SetBackgroundColor(theme.BgColor)
	composer.SetFieldBackgroundColor(theme.BgColor)
	composer.SetFieldTextColor(theme.FgColor)
	composer.SetLabelColor(theme.MenuKeyColor)
	composer.SetTitle(" Compose (i to focus) ")
	composer.SetTitleColor(theme.TitleColor)

	flex := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(messages, 0, 1, true).
		AddItem(composer, 3, 0, false)

	mt := &MessageThread{
		Flex:     flex,
		theme:    theme,
		messages: messages,
		composer: composer,
	}

	composer.SetDoneFunc(func(key tcell.Key) {
		if key != tcell.KeyEnter || mt.onSend == nil {
			return
		}
		text := strings.TrimSpace(composer.GetText())
		if text == "" {
			return
		}
		mt.onSend(text)
		composer.SetText("")
	})

	return mt
}

// Name implements ui.Component.
func (mt *MessageThread) Name() string {
	if mt.peer.FullName != "" {
		return mt.peer.FullName
	}
	return "Messages"
}

// Hints implements ui.Component.
func (mt *MessageThread) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "i", Description: "Compose"},
		{Key: "d", Description: "Details"},
		{Key: "r", Description: "Reload"},
		{Key: "Esc", Description: "Back"},
		{Key: ":", Description: "Command"},
		{Key: "?", Description: "Help"},
	}
}

// SetOnSend sets the callback for a submitted composer line.
func (mt *MessageThread) SetOnSend(fn func(text string)) {
	mt.onSend = fn
}

// Update renders the conversation, oldest message first.
func (mt *MessageThread) Update(d ThreadData) {
	mt.peer = d.Peer

	presence := fmt.Sprintf("[%s]offline[-]", ui.ColorName(mt.theme.OfflineColor))
	if d.Online {
		presence = fmt.Sprintf("[%s]online[-]", ui.ColorName(mt.theme.OnlineColor))
	}
	mt.messages.SetTitle(fmt.Sprintf(" %s %s ", tview.Escape(sanitizeLine(d.Peer.FullName)), presence))

	label := " > "
	if d.Sending {
		label = " … "
	}
	mt.composer.SetLabel(label)

	mt.messages.Clear()
	if d.Loading && len(d.Messages) == 0 {
		_, _ = fmt.Fprint(mt.messages, "\n  [::d]Loading messages...[-:-:-]")
		return
	}
	if len(d.Messages) == 0 {
		_, _ = fmt.Fprint(mt.messages, "\n  [::d]No messages yet. Press i to say hello.[-:-:-]")
		return
	}

	own := ui.ColorName(mt.theme.OwnMessageColor)
	peer := ui.ColorName(mt.theme.PeerMessageColor)
	for _, m := range d.Messages {
		sender, color := tview.Escape(sanitizeLine(d.Peer.FullName)), peer
		if m.SenderID == d.SelfID {
			sender, color = "You", own
		}
		_, _ = fmt.Fprintf(mt.messages, "[%s::b]%s[-:-:-] [::d]%s[-:-:-]\n%s\n\n",
			color, sender, formatTimestamp(m.CreatedAt), body(m))
	}
	mt.messages.ScrollToEnd()
}

// Messages returns the messages text view (for focus management).
func (mt *MessageThread) Messages() *tview.TextView {
	return mt.messages
}

// Composer returns the composer input field (for focus management).
func (mt *MessageThread) Composer() *tview.InputField {
	return mt.composer
}

func body(m protocol.Message) string {
	var parts []string
	if m.Text != "" {
		parts = append(parts, tview.Escape(sanitizeForTerminal(m.Text)))
	}
	if m.Image != "" {
		parts = append(parts, "[::i]"+tview.Escape(imageLabel(m.Image))+"[-:-:-]")
	}
	return strings.Join(parts, "\n")
}

// imageLabel shortens inline data URLs, which can be megabytes long.
func imageLabel(image string) string {
	if strings.HasPrefix(image, "data:") {
		mediaType, _, _ := strings.Cut(strings.TrimPrefix(image, "data:"), ";")
		return "(image " + mediaType + ")"
	}
	return "(image " + image + ")"
}
