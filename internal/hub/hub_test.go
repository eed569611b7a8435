package hub

import (
	"context"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/matheus3301/chatsync/internal/protocol"
)

func startHub(t *testing.T, opts Options) (*Hub, *httptest.Server) {
	t.Helper()
	h := New(opts)
	srv := httptest.NewServer(h)
	t.Cleanup(func() {
		h.Close()
		srv.Close()
	})
	return h, srv
}

func dial(t *testing.T, srv *httptest.Server, identity string) *websocket.Conn {
	t.Helper()
	u := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?userId=" + identity
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", identity, err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) protocol.Event {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	evt, err := protocol.Decode(data)
	if err != nil {
		t.Fatalf("decode %s: %v", data, err)
	}
	return evt
}

// waitRoster reads frames until a roster equal to want arrives.
func waitRoster(t *testing.T, conn *websocket.Conn, want ...string) {
	t.Helper()
	for range 10 {
		if r, ok := readEvent(t, conn).(protocol.RosterUpdate); ok && slices.Equal(r.Online, want) {
			return
		}
	}
	t.Fatalf("roster %v never arrived", want)
}

func waitOnline(t *testing.T, h *Hub, want ...string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if slices.Equal(h.Online(), want) {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("Online() = %v, want %v", h.Online(), want)
}

func TestRosterBroadcastOnJoinAndLeave(t *testing.T) {
	h, srv := startHub(t, Options{})

	alice := dial(t, srv, "alice")
	waitRoster(t, alice, "alice")

	bob := dial(t, srv, "bob")
	waitRoster(t, bob, "alice", "bob")
	waitRoster(t, alice, "alice", "bob")

	_ = bob.Close()
	waitRoster(t, alice, "alice")
	waitOnline(t, h, "alice")
}

func TestIdentityStaysOnlineUntilLastConnectionCloses(t *testing.T) {
	h, srv := startHub(t, Options{})

	first := dial(t, srv, "alice")
	second := dial(t, srv, "alice")
	waitOnline(t, h, "alice")

	_ = first.Close()
	time.Sleep(50 * time.Millisecond)
	if !h.IsOnline("alice") {
		t.Fatal("alice left the roster while a connection remains")
	}

	_ = second.Close()
	waitOnline(t, h)
}

func TestDeliverReachesOnlyTheReceiver(t *testing.T) {
	h, srv := startHub(t, Options{})
	alice := dial(t, srv, "alice")
	bob := dial(t, srv, "bob")
	waitOnline(t, h, "alice", "bob")
	waitRoster(t, alice, "alice", "bob")
	waitRoster(t, bob, "alice", "bob")

	msg := protocol.Message{ID: "m1", SenderID: "alice", ReceiverID: "bob", Text: "hi"}
	if n := h.Deliver("bob", msg); n != 1 {
		t.Fatalf("Deliver() queued on %d connections, want 1", n)
	}

	evt := readEvent(t, bob)
	got, ok := evt.(protocol.MessageDelivered)
	if !ok || got.Message.ID != "m1" {
		t.Fatalf("bob got %#v", evt)
	}

	_ = alice.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	if _, data, err := alice.ReadMessage(); err == nil {
		t.Errorf("sender received %s", data)
	}
}

func TestDeliverToOfflineIdentity(t *testing.T) {
	h, _ := startHub(t, Options{})
	if n := h.Deliver("nobody", protocol.Message{ID: "m1", SenderID: "a"}); n != 0 {
		t.Errorf("Deliver() = %d, want 0", n)
	}
}

func TestMissingUserIDIsRejected(t *testing.T) {
	_, srv := startHub(t, Options{})
	resp, err := http.Get(srv.URL + "/ws")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestOriginAllowList(t *testing.T) {
	_, srv := startHub(t, Options{AllowedOrigins: []string{"http://localhost:5173"}})
	u := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?userId=alice"

	_, resp, err := websocket.DefaultDialer.Dial(u, http.Header{"Origin": {"http://evil.example"}})
	if err == nil {
		t.Fatal("foreign origin accepted")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Errorf("response = %v, want 403", resp)
	}

	conn, _, err := websocket.DefaultDialer.Dial(u, http.Header{"Origin": {"http://localhost:5173"}})
	if err != nil {
		t.Fatalf("allowed origin rejected: %v", err)
	}
	conn.Close()
}

func TestOriginAllowed(t *testing.T) {
	tests := []struct {
		name    string
		origin  string
		host    string
		allowed []string
		want    bool
	}{
		{"no origin header", "", "api:5001", nil, true},
		{"same origin", "http://api:5001", "api:5001", nil, true},
		{"cross origin without list", "http://ui:5173", "api:5001", nil, false},
		{"listed", "http://ui:5173", "api:5001", []string{"http://ui:5173"}, true},
		{"unlisted", "http://ui:9999", "api:5001", []string{"http://ui:5173"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "http://"+tt.host+"/ws", nil)
			r.Host = tt.host
			if tt.origin != "" {
				r.Header.Set("Origin", tt.origin)
			}
			if got := originAllowed(r, tt.allowed); got != tt.want {
				t.Errorf("originAllowed() = %v, want %v", got, tt.want)
			}
		})
	}
}

type recordingMirror struct {
	mu      sync.Mutex
	rosters [][]string
}

func (m *recordingMirror) Mirror(_ context.Context, online []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rosters = append(m.rosters, slices.Clone(online))
	return nil
}

func (m *recordingMirror) last() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.rosters) == 0 {
		return nil
	}
	return m.rosters[len(m.rosters)-1]
}

func TestRosterIsMirrored(t *testing.T) {
	mirror := &recordingMirror{}
	h, srv := startHub(t, Options{Mirror: mirror})

	conn := dial(t, srv, "alice")
	waitOnline(t, h, "alice")
	waitMirror(t, mirror, "alice")

	_ = conn.Close()
	waitOnline(t, h)
	waitMirror(t, mirror)
}

func waitMirror(t *testing.T, m *recordingMirror, want ...string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if got := m.last(); got != nil && slices.Equal(got, want) {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("mirrored %v, want %v", m.last(), want)
}

func TestCloseDisconnectsClients(t *testing.T) {
	h, srv := startHub(t, Options{})
	conn := dial(t, srv, "alice")
	waitRoster(t, conn, "alice")

	h.Close()

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("connection still readable after Close")
	}
	waitOnline(t, h)
}

func newTestClient(identity string) *client {
	return &client{
		id:       uuid.NewString(),
		identity: identity,
		send:     make(chan []byte, 4096),
		done:     make(chan struct{}),
	}
}

// lastRoster drains c's queue and returns the newest roster on it.
func lastRoster(t *testing.T, c *client) []string {
	t.Helper()
	var last []string
	for {
		select {
		case data := <-c.send:
			evt, err := protocol.Decode(data)
			if err != nil {
				t.Fatalf("decode %s: %v", data, err)
			}
			if r, ok := evt.(protocol.RosterUpdate); ok {
				last = r.Online
			}
		default:
			return last
		}
	}
}

func TestConcurrentJoinAndLeaveEndOnCurrentRoster(t *testing.T) {
	mirror := &recordingMirror{}
	h := New(Options{Mirror: mirror})
	t.Cleanup(h.Close)

	observer := newTestClient("observer")
	h.register(observer)

	for range 50 {
		x, y := newTestClient("x"), newTestClient("y")
		h.register(x)

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			h.unregister(x)
		}()
		go func() {
			defer wg.Done()
			h.register(y)
		}()
		wg.Wait()

		if got, want := lastRoster(t, observer), h.Online(); !slices.Equal(got, want) {
			t.Fatalf("observer's last roster = %v, Online() = %v", got, want)
		}
		h.unregister(y)
	}

	waitMirror(t, mirror, h.Online()...)
}
