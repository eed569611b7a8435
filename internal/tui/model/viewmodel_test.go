package model

import (
	"context"
	"testing"
	"time"

	"github.com/matheus3301/chatsync/internal/app"
	"github.com/matheus3301/chatsync/internal/protocol"
	"github.com/matheus3301/chatsync/internal/status"
)

func newApp(t *testing.T) *app.App {
	t.Helper()
	// Nothing in these tests reaches the network.
	a, err := app.New(app.Options{BaseURL: "http://127.0.0.1:1"})
	if err != nil {
		t.Fatal(err)
	}
	return a
}

func TestStateIsOnline(t *testing.T) {
	s := State{Online: []string{"a", "c", "e"}}
	for id, want := range map[string]bool{"a": true, "b": false, "e": true, "": false} {
		if got := s.IsOnline(id); got != want {
			t.Errorf("IsOnline(%q) = %v, want %v", id, got, want)
		}
	}
}

func TestStateContact(t *testing.T) {
	s := State{Contacts: []protocol.Contact{{ID: "1", FullName: "Ann"}, {ID: "2", FullName: "Ben"}}}
	c, ok := s.Contact("2")
	if !ok || c.FullName != "Ben" {
		t.Errorf("Contact(2) = %+v, %v", c, ok)
	}
	if _, ok := s.Contact("3"); ok {
		t.Error("Contact(3) found")
	}
}

func TestSnapshotAnonymous(t *testing.T) {
	vm := NewViewModel(newApp(t))
	s := vm.Snapshot()
	if s.Identity != nil {
		t.Errorf("Identity = %+v, want nil", s.Identity)
	}
	if s.Selection != nil {
		t.Errorf("Selection = %+v, want nil", s.Selection)
	}
	if s.Status != status.Idle {
		t.Errorf("Status = %s, want IDLE", s.Status)
	}
	if !s.SessionLoading.Checking {
		t.Error("Checking should be raised before the first session check")
	}
	if len(s.Contacts) != 0 || len(s.Messages) != 0 || len(s.Online) != 0 {
		t.Errorf("non-empty snapshot: %+v", s)
	}
}

func TestRefreshOnNotice(t *testing.T) {
	a := newApp(t)
	vm := NewViewModel(a)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	vm.Start(ctx)

	a.Flash.Error("Failed to load users")

	select {
	case <-vm.RefreshCh():
	case <-time.After(time.Second):
		t.Fatal("no refresh after a notice")
	}
	if n := vm.Snapshot().Notice; n == nil || n.Text != "Failed to load users" {
		t.Errorf("Notice = %+v", n)
	}
}

func TestRefreshOnManagerEvent(t *testing.T) {
	a := newApp(t)
	vm := NewViewModel(a)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	vm.Start(ctx)

	// Without a selection the manager reports the failure and publishes
	// nothing, so drive a selection change instead.
	if _, err := a.Conversation.SendMessage(ctx, protocol.SendRequest{Text: "x"}); err == nil {
		t.Fatal("SendMessage() without selection should fail")
	}
	if err := a.Conversation.Select(ctx, nil); err != nil {
		t.Fatal(err)
	}

	select {
	case <-vm.RefreshCh():
	case <-time.After(time.Second):
		t.Fatal("no refresh after a selection change")
	}
}

func TestRefreshCoalesces(t *testing.T) {
	vm := NewViewModel(newApp(t))
	for range 5 {
		vm.signalRefresh()
	}
	<-vm.RefreshCh()
	select {
	case <-vm.RefreshCh():
		t.Error("refresh signals did not coalesce")
	default:
	}
}
