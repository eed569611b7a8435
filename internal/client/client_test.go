package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/matheus3301/chatsync/internal/notify"
	"github.com/matheus3301/chatsync/internal/protocol"
)

func newTestClient(t *testing.T, h http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := New(srv.URL)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return c
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestLogInStoresSessionCookie(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var req protocol.LogInRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode login body: %v", err)
		}
		if req.Email != "alice@example.com" || req.Password != "secret" {
			t.Errorf("login body = %+v", req)
		}
		http.SetCookie(w, &http.Cookie{Name: protocol.SessionCookie, Value: "tok-1", Path: "/", HttpOnly: true})
		writeJSON(w, http.StatusOK, protocol.Identity{ID: "alice", FullName: "Alice"})
	})
	mux.HandleFunc("GET /api/auth/check", func(w http.ResponseWriter, r *http.Request) {
		ck, err := r.Cookie(protocol.SessionCookie)
		if err != nil || ck.Value != "tok-1" {
			writeJSON(w, http.StatusUnauthorized, protocol.ErrorBody{Message: "Unauthorized - No Token Provided"})
			return
		}
		writeJSON(w, http.StatusOK, protocol.Identity{ID: "alice"})
	})
	c := newTestClient(t, mux)
	ctx := context.Background()

	if _, err := c.CheckSession(ctx); !IsUnauthorized(err) {
		t.Fatalf("CheckSession() before login error = %v, want 401", err)
	}

	id, err := c.LogIn(ctx, protocol.LogInRequest{Email: "alice@example.com", Password: "secret"})
	if err != nil {
		t.Fatalf("LogIn() error: %v", err)
	}
	if id.ID != "alice" || id.FullName != "Alice" {
		t.Errorf("identity = %+v", id)
	}
	if got := c.SessionToken(); got != "tok-1" {
		t.Errorf("SessionToken() = %q, want tok-1", got)
	}

	id, err = c.CheckSession(ctx)
	if err != nil {
		t.Fatalf("CheckSession() after login error: %v", err)
	}
	if id.ID != "alice" {
		t.Errorf("check identity = %+v", id)
	}
}

func TestSetSessionTokenIsSent(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ck, err := r.Cookie(protocol.SessionCookie)
		if err != nil || ck.Value != "saved" {
			writeJSON(w, http.StatusUnauthorized, protocol.ErrorBody{Message: "no token"})
			return
		}
		writeJSON(w, http.StatusOK, protocol.Identity{ID: "bob"})
	}))
	c.SetSessionToken("saved")

	id, err := c.CheckSession(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if id.ID != "bob" {
		t.Errorf("identity = %+v", id)
	}
}

func TestAPIErrorCarriesServiceMessage(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, protocol.ErrorBody{Message: "Invalid credentials"})
	}))

	_, err := c.LogIn(context.Background(), protocol.LogInRequest{Email: "a", Password: "b"})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %v, want *APIError", err)
	}
	if apiErr.Status != http.StatusBadRequest || apiErr.Message != "Invalid credentials" {
		t.Errorf("APIError = %+v", apiErr)
	}
	if got := notify.Message(err, "Login failed"); got != "Invalid credentials" {
		t.Errorf("notify.Message() = %q", got)
	}
}

func TestAPIErrorWithoutBodyFallsBack(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))

	_, err := c.LogIn(context.Background(), protocol.LogInRequest{Email: "a", Password: "b"})
	if got := notify.Message(err, "Login failed"); got != "Login failed" {
		t.Errorf("notify.Message() = %q, want fallback", got)
	}
}

func TestListsNormalizeNonListPayloads(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"object", `{"error":"oops"}`},
		{"null", `null`},
		{"string", `"nope"`},
		{"empty", ``},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(tt.body))
			}))
			contacts, err := c.ListContacts(context.Background())
			if err != nil {
				t.Fatalf("ListContacts() error: %v", err)
			}
			if contacts == nil || len(contacts) != 0 {
				t.Errorf("contacts = %#v, want empty non-nil", contacts)
			}
			msgs, err := c.ListMessages(context.Background(), "bob")
			if err != nil {
				t.Fatalf("ListMessages() error: %v", err)
			}
			if msgs == nil || len(msgs) != 0 {
				t.Errorf("messages = %#v, want empty non-nil", msgs)
			}
		})
	}
}

func TestMessageRoutes(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/messages/users", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, []protocol.Contact{{ID: "bob", FullName: "Bob"}})
	})
	mux.HandleFunc("GET /api/messages/{peer}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("peer") != "bob" {
			t.Errorf("peer = %q", r.PathValue("peer"))
		}
		writeJSON(w, http.StatusOK, []protocol.Message{{ID: "msg1", SenderID: "bob", ReceiverID: "alice", Text: "hi"}})
	})
	mux.HandleFunc("POST /api/messages/send/{peer}", func(w http.ResponseWriter, r *http.Request) {
		var req protocol.SendRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		writeJSON(w, http.StatusCreated, protocol.Message{
			ID: "msg2", SenderID: "alice", ReceiverID: r.PathValue("peer"), Text: req.Text,
		})
	})
	c := newTestClient(t, mux)
	ctx := context.Background()

	contacts, err := c.ListContacts(ctx)
	if err != nil || len(contacts) != 1 || contacts[0].ID != "bob" {
		t.Fatalf("ListContacts() = %+v, %v", contacts, err)
	}
	msgs, err := c.ListMessages(ctx, "bob")
	if err != nil || len(msgs) != 1 || msgs[0].ID != "msg1" {
		t.Fatalf("ListMessages() = %+v, %v", msgs, err)
	}
	sent, err := c.SendMessage(ctx, "bob", protocol.SendRequest{Text: "hello"})
	if err != nil {
		t.Fatal(err)
	}
	if sent.ID != "msg2" || sent.ReceiverID != "bob" || sent.Text != "hello" {
		t.Errorf("sent = %+v", sent)
	}
}

func TestNewRejectsBadScheme(t *testing.T) {
	if _, err := New("ftp://example.com"); err == nil {
		t.Error("expected error for ftp scheme")
	}
}

func TestSendMessageBodyCarriesContent(t *testing.T) {
	body := make(chan map[string]string, 1)
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var raw map[string]string
		_ = json.NewDecoder(r.Body).Decode(&raw)
		body <- raw
		writeJSON(w, http.StatusCreated, map[string]any{"id": 2, "senderId": "alice", "receiverId": "bob", "text": raw["content"]})
	}))

	sent, err := c.SendMessage(context.Background(), "bob", protocol.SendRequest{Text: "hello"})
	if err != nil {
		t.Fatal(err)
	}
	if got := <-body; got["content"] != "hello" || got["text"] != "hello" {
		t.Errorf("request body = %v, want content and text set to hello", got)
	}
	if sent.ID != "2" || sent.Text != "hello" {
		t.Errorf("sent = %+v", sent)
	}
}
