package hub_test

import (
	"net/http/httptest"
	"slices"
	"testing"
	"time"

	"github.com/matheus3301/chatsync/internal/bus"
	"github.com/matheus3301/chatsync/internal/hub"
	"github.com/matheus3301/chatsync/internal/protocol"
	"github.com/matheus3301/chatsync/internal/realtime"
	"github.com/matheus3301/chatsync/internal/status"
)

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timeout waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestClientsSeeEachOtherAndReceiveDeliveries(t *testing.T) {
	h := hub.New(hub.Options{})
	srv := httptest.NewServer(h)
	defer srv.Close()
	defer h.Close()

	newClient := func() *realtime.Manager {
		m := realtime.NewManager(&realtime.WebSocketDialer{BaseURL: srv.URL}, bus.New())
		t.Cleanup(m.Disconnect)
		return m
	}
	alice, bob := newClient(), newClient()

	alice.Connect(protocol.Identity{ID: "alice"})
	bob.Connect(protocol.Identity{ID: "bob"})
	eventually(t, "alice sees bob", func() bool { return slices.Equal(alice.Roster(), []string{"alice", "bob"}) })
	eventually(t, "bob sees alice", func() bool { return slices.Equal(bob.Roster(), []string{"alice", "bob"}) })

	got := make(chan protocol.Message, 1)
	stop := bob.Connection().Listen(func(msg protocol.Message) { got <- msg })
	defer stop()

	h.Deliver("bob", protocol.Message{ID: "msg3", SenderID: "alice", ReceiverID: "bob", Text: "ping"})
	select {
	case msg := <-got:
		if msg.ID != "msg3" || msg.SenderID != "alice" {
			t.Errorf("bob received %+v", msg)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("delivery never reached bob")
	}

	// Logging out removes alice from everyone's roster, and from her own.
	alice.Disconnect()
	if alice.IsOnline("alice") || alice.Status() != status.Idle {
		t.Errorf("alice after logout: roster=%v status=%s", alice.Roster(), alice.Status())
	}
	eventually(t, "bob sees alice leave", func() bool { return slices.Equal(bob.Roster(), []string{"bob"}) })
	eventually(t, "hub forgets alice", func() bool { return !h.IsOnline("alice") })
}
