package model

import (
	"context"
	"slices"

	"github.com/matheus3301/chatsync/internal/app"
	"github.com/matheus3301/chatsync/internal/conversation"
	"github.com/matheus3301/chatsync/internal/notify"
	"github.com/matheus3301/chatsync/internal/protocol"
	"github.com/matheus3301/chatsync/internal/session"
	"github.com/matheus3301/chatsync/internal/status"
)

// State is a snapshot of everything the terminal client renders.
type State struct {
	Identity  *protocol.Identity
	Status    status.State
	Online    []string
	Contacts  []protocol.Contact
	Selection *protocol.Contact
	Messages  []protocol.Message

	SessionLoading      session.Loading
	ConversationLoading conversation.Loading
	Notice              *notify.Notice
}

// IsOnline reports whether id is in the roster.
func (s State) IsOnline(id string) bool {
	_, found := slices.BinarySearch(s.Online, id)
	return found
}

// Contact returns the contact with id from the snapshot.
func (s State) Contact(id string) (protocol.Contact, bool) {
	i := slices.IndexFunc(s.Contacts, func(c protocol.Contact) bool { return c.ID == id })
	if i < 0 {
		return protocol.Contact{}, false
	}
	return s.Contacts[i], true
}

// ViewModel turns manager events into redraw signals and reads consistent
// snapshots for the views.
type ViewModel struct {
	app       *app.App
	refreshCh chan struct{}
}

// NewViewModel creates a view model over the wired managers.
func NewViewModel(a *app.App) *ViewModel {
	return &ViewModel{
		app:       a,
		refreshCh: make(chan struct{}, 1),
	}
}

// RefreshCh returns the channel that signals UI refresh. Bursts of events
// coalesce into one signal.
func (vm *ViewModel) RefreshCh() <-chan struct{} {
	return vm.refreshCh
}

// Start follows the session, realtime and conversation events and the flash
// notices until ctx is done.
func (vm *ViewModel) Start(ctx context.Context) {
	events, unsub := vm.app.Bus.Subscribe("", 64)
	notices := vm.app.Flash.Watch()
	go func() {
		defer unsub()
		for {
			select {
			case <-events:
				vm.signalRefresh()
			case <-notices:
				vm.signalRefresh()
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (vm *ViewModel) signalRefresh() {
	select {
	case vm.refreshCh <- struct{}{}:
	default:
	}
}

// Snapshot reads the current state of every manager.
func (vm *ViewModel) Snapshot() State {
	s := State{
		Status:              vm.app.Realtime.Status(),
		Online:              vm.app.Realtime.Roster(),
		Contacts:            vm.app.Conversation.Contacts(),
		Messages:            vm.app.Conversation.Messages(),
		SessionLoading:      vm.app.Session.Loading(),
		ConversationLoading: vm.app.Conversation.Loading(),
		Notice:              vm.app.Flash.Current(),
	}
	if id, ok := vm.app.Session.Identity(); ok {
		s.Identity = &id
	}
	if sel, ok := vm.app.Conversation.Selection(); ok {
		s.Selection = &sel
	}
	slices.Sort(s.Online)
	return s
}
