package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/matheus3301/chatsync/internal/client"
	"github.com/matheus3301/chatsync/internal/protocol"
	"github.com/matheus3301/chatsync/internal/store"
	"golang.org/x/crypto/bcrypt"
)

const testSecret = "test-secret-0123456789"

type recordingHub struct {
	mu         sync.Mutex
	deliveries []delivery
}

type delivery struct {
	receiver string
	msg      protocol.Message
}

func (h *recordingHub) Deliver(receiverID string, msg protocol.Message) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.deliveries = append(h.deliveries, delivery{receiverID, msg})
	return 1
}

type testEnv struct {
	srv *httptest.Server
	hub *recordingHub
	db  *store.DB
}

func newEnv(t *testing.T, mutate ...func(*Options)) *testEnv {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "api.db"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	tokens, err := NewTokens(testSecret, 0)
	if err != nil {
		t.Fatal(err)
	}
	hub := &recordingHub{}
	opts := Options{
		DB:             db,
		Tokens:         tokens,
		Hub:            hub,
		AllowedOrigins: []string{"http://localhost:5173"},
		HashCost:       bcrypt.MinCost,
	}
	for _, m := range mutate {
		m(&opts)
	}
	srv := httptest.NewServer(NewServer(opts))
	t.Cleanup(func() {
		srv.Close()
		_ = db.Close()
	})
	return &testEnv{srv: srv, hub: hub, db: db}
}

func (e *testEnv) client(t *testing.T) *client.Client {
	t.Helper()
	c, err := client.New(e.srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func (e *testEnv) signUp(t *testing.T, name, email string) (*client.Client, protocol.Identity) {
	t.Helper()
	c := e.client(t)
	id, err := c.SignUp(context.Background(), protocol.SignUpRequest{FullName: name, Email: email, Password: "secret1"})
	if err != nil {
		t.Fatalf("SignUp(%s): %v", email, err)
	}
	return c, id
}

func apiStatus(t *testing.T, err error) (int, string) {
	t.Helper()
	var apiErr *client.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %v, want *client.APIError", err)
	}
	return apiErr.Status, apiErr.Message
}

func TestSignUpStartsSession(t *testing.T) {
	env := newEnv(t)
	c, id := env.signUp(t, "Alice", "alice@example.com")

	if id.ID == "" || id.FullName != "Alice" || id.Email != "alice@example.com" {
		t.Errorf("identity = %+v", id)
	}
	if id.CreatedAt.IsZero() {
		t.Error("createdAt missing")
	}
	if c.SessionToken() == "" {
		t.Fatal("no session cookie")
	}
	checked, err := c.CheckSession(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if checked.ID != id.ID {
		t.Errorf("check = %+v, want %s", checked, id.ID)
	}
}

func TestSignUpValidation(t *testing.T) {
	env := newEnv(t)
	env.signUp(t, "Alice", "alice@example.com")

	tests := []struct {
		name string
		req  protocol.SignUpRequest
		want string
	}{
		{"missing name", protocol.SignUpRequest{Email: "b@example.com", Password: "secret1"}, "All fields are required"},
		{"bad email", protocol.SignUpRequest{FullName: "B", Email: "nope", Password: "secret1"}, "Invalid email format"},
		{"short password", protocol.SignUpRequest{FullName: "B", Email: "b@example.com", Password: "123"}, "Password must be at least 6 characters"},
		{"duplicate", protocol.SignUpRequest{FullName: "A2", Email: "ALICE@example.com", Password: "secret1"}, "Email already exists"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.client(t).SignUp(context.Background(), tt.req)
			status, msg := apiStatus(t, err)
			if status != http.StatusBadRequest || msg != tt.want {
				t.Errorf("got %d %q, want 400 %q", status, msg, tt.want)
			}
		})
	}
}

func TestLogIn(t *testing.T) {
	env := newEnv(t)
	_, alice := env.signUp(t, "Alice", "alice@example.com")

	c := env.client(t)
	_, err := c.LogIn(context.Background(), protocol.LogInRequest{Email: "alice@example.com", Password: "wrong"})
	if status, msg := apiStatus(t, err); status != http.StatusBadRequest || msg != "Invalid credentials" {
		t.Errorf("wrong password: %d %q", status, msg)
	}
	_, err = c.LogIn(context.Background(), protocol.LogInRequest{Email: "nobody@example.com", Password: "secret1"})
	if status, msg := apiStatus(t, err); status != http.StatusBadRequest || msg != "Invalid credentials" {
		t.Errorf("unknown email: %d %q", status, msg)
	}

	id, err := c.LogIn(context.Background(), protocol.LogInRequest{Email: "Alice@Example.com", Password: "secret1"})
	if err != nil {
		t.Fatal(err)
	}
	if id.ID != alice.ID {
		t.Errorf("logged in as %s, want %s", id.ID, alice.ID)
	}
}

func TestProtectedRoutesRequireSession(t *testing.T) {
	env := newEnv(t)
	c := env.client(t)

	_, err := c.ListContacts(context.Background())
	if status, msg := apiStatus(t, err); status != http.StatusUnauthorized || msg != "Unauthorized - No Token Provided" {
		t.Errorf("no cookie: %d %q", status, msg)
	}

	c.SetSessionToken("garbage")
	_, err = c.CheckSession(context.Background())
	if status, msg := apiStatus(t, err); status != http.StatusUnauthorized || msg != "Unauthorized - Invalid Token" {
		t.Errorf("bad token: %d %q", status, msg)
	}
}

func TestLogOutClearsCookie(t *testing.T) {
	env := newEnv(t)
	c, _ := env.signUp(t, "Alice", "alice@example.com")

	if err := c.LogOut(context.Background()); err != nil {
		t.Fatal(err)
	}
	if c.SessionToken() != "" {
		t.Error("cookie still present after logout")
	}
	if _, err := c.CheckSession(context.Background()); !client.IsUnauthorized(err) {
		t.Errorf("check after logout error = %v, want 401", err)
	}
}

func TestMessagingFlow(t *testing.T) {
	env := newEnv(t)
	aliceC, alice := env.signUp(t, "Alice", "alice@example.com")
	bobC, bob := env.signUp(t, "Bob", "bob@example.com")
	env.signUp(t, "Carol", "carol@example.com")
	ctx := context.Background()

	contacts, err := aliceC.ListContacts(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(contacts) != 2 || contacts[0].FullName != "Bob" || contacts[1].FullName != "Carol" {
		t.Errorf("contacts = %+v, want Bob and Carol", contacts)
	}

	msg1, err := bobC.SendMessage(ctx, alice.ID, protocol.SendRequest{Text: "hey alice"})
	if err != nil {
		t.Fatal(err)
	}
	msg2, err := aliceC.SendMessage(ctx, bob.ID, protocol.SendRequest{Text: "hi bob"})
	if err != nil {
		t.Fatal(err)
	}
	if msg2.SenderID != alice.ID || msg2.ReceiverID != bob.ID || msg2.ID == "" || msg2.CreatedAt.IsZero() {
		t.Errorf("stored message = %+v", msg2)
	}

	history, err := aliceC.ListMessages(ctx, bob.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 2 || history[0].ID != msg1.ID || history[1].ID != msg2.ID {
		t.Errorf("history = %+v", history)
	}

	env.hub.mu.Lock()
	defer env.hub.mu.Unlock()
	if len(env.hub.deliveries) != 2 {
		t.Fatalf("deliveries = %+v", env.hub.deliveries)
	}
	if d := env.hub.deliveries[1]; d.receiver != bob.ID || d.msg.ID != msg2.ID {
		t.Errorf("second delivery = %+v, want to bob", d)
	}
}

func TestSendValidation(t *testing.T) {
	env := newEnv(t)
	aliceC, _ := env.signUp(t, "Alice", "alice@example.com")
	_, bob := env.signUp(t, "Bob", "bob@example.com")
	ctx := context.Background()

	_, err := aliceC.SendMessage(ctx, bob.ID, protocol.SendRequest{Text: "   "})
	if status, _ := apiStatus(t, err); status != http.StatusBadRequest {
		t.Errorf("empty message status = %d", status)
	}
	_, err = aliceC.SendMessage(ctx, "ghost", protocol.SendRequest{Text: "hello?"})
	if status, _ := apiStatus(t, err); status != http.StatusNotFound {
		t.Errorf("unknown receiver status = %d", status)
	}
	_, err = aliceC.SendMessage(ctx, bob.ID, protocol.SendRequest{Image: "data:image/png;base64,aGVsbG8gd29ybGQ="})
	if status, msg := apiStatus(t, err); status != http.StatusBadRequest || msg != "Image must be a valid image file" {
		t.Errorf("fake image: %d %q", status, msg)
	}
	msg, err := aliceC.SendMessage(ctx, bob.ID, protocol.SendRequest{Image: "data:image/png;base64,iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAA="})
	if err != nil || msg.Image == "" {
		t.Errorf("png image send = %+v, %v", msg, err)
	}
}

func TestSendAcceptsContentAlias(t *testing.T) {
	env := newEnv(t)
	aliceC, _ := env.signUp(t, "Alice", "alice@example.com")
	_, bob := env.signUp(t, "Bob", "bob@example.com")

	req, _ := http.NewRequest(http.MethodPost, env.srv.URL+"/api/messages/send/"+bob.ID, strings.NewReader(`{"content":"legacy body"}`))
	req.Header.Set("Content-Type", "application/json")
	req.AddCookie(&http.Cookie{Name: protocol.SessionCookie, Value: aliceC.SessionToken()})
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	history, _ := aliceC.ListMessages(context.Background(), bob.ID)
	if len(history) != 1 || history[0].Text != "legacy body" {
		t.Errorf("history = %+v", history)
	}
}

func TestUpdateProfile(t *testing.T) {
	env := newEnv(t)
	aliceC, _ := env.signUp(t, "Alice", "alice@example.com")
	env.signUp(t, "Bob", "bob@example.com")
	ctx := context.Background()

	id, err := aliceC.UpdateProfile(ctx, protocol.UpdateProfileRequest{FullName: "Alice A.", ProfilePic: "data:image/png;base64,AAAA"})
	if err != nil {
		t.Fatal(err)
	}
	if id.FullName != "Alice A." || id.ProfilePic == "" || id.Email != "alice@example.com" {
		t.Errorf("identity = %+v", id)
	}

	_, err = aliceC.UpdateProfile(ctx, protocol.UpdateProfileRequest{Email: "bob@example.com"})
	if status, msg := apiStatus(t, err); status != http.StatusBadRequest || msg != "Email already exists" {
		t.Errorf("taken email: %d %q", status, msg)
	}
	_, err = aliceC.UpdateProfile(ctx, protocol.UpdateProfileRequest{})
	if status, _ := apiStatus(t, err); status != http.StatusBadRequest {
		t.Errorf("empty update status = %d", status)
	}

	if _, err := aliceC.UpdateProfile(ctx, protocol.UpdateProfileRequest{Password: "newsecret"}); err != nil {
		t.Fatal(err)
	}
	if _, err := env.client(t).LogIn(ctx, protocol.LogInRequest{Email: "alice@example.com", Password: "newsecret"}); err != nil {
		t.Errorf("login with new password: %v", err)
	}
}

func TestCORSPreflight(t *testing.T) {
	env := newEnv(t)

	req, _ := http.NewRequest(http.MethodOptions, env.srv.URL+"/api/auth/login", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", "POST")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("status = %d", resp.StatusCode)
	}
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
		t.Errorf("allow-origin = %q", got)
	}
	if got := resp.Header.Get("Access-Control-Allow-Credentials"); got != "true" {
		t.Errorf("allow-credentials = %q", got)
	}

	req.Header.Set("Origin", "http://evil.example")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("foreign origin granted: %q", got)
	}
}

func TestStaticServingInProduction(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "index.html"), []byte("<html>app</html>"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "app.js"), []byte("console.log(1)"), 0o644); err != nil {
		t.Fatal(err)
	}
	env := newEnv(t, func(o *Options) {
		o.Production = true
		o.StaticDir = dir
	})

	get := func(path string) (int, string) {
		resp, err := http.Get(env.srv.URL + path)
		if err != nil {
			t.Fatal(err)
		}
		defer resp.Body.Close()
		buf := new(strings.Builder)
		_, _ = buf.ReadFrom(resp.Body)
		return resp.StatusCode, buf.String()
	}

	if status, body := get("/app.js"); status != http.StatusOK || body != "console.log(1)" {
		t.Errorf("/app.js = %d %q", status, body)
	}
	if status, body := get("/chat/bob"); status != http.StatusOK || !strings.Contains(body, "app") {
		t.Errorf("client route = %d %q", status, body)
	}
	if status, _ := get("/api/nope"); status != http.StatusNotFound {
		t.Errorf("/api miss = %d, want 404", status)
	}
}

func TestTokens(t *testing.T) {
	if _, err := NewTokens("short", 0); err == nil {
		t.Error("short secret accepted")
	}
	tokens, _ := NewTokens(testSecret, time.Hour)
	raw, err := tokens.Issue("u1")
	if err != nil {
		t.Fatal(err)
	}
	claims, err := tokens.Parse(raw)
	if err != nil || claims.UserID != "u1" {
		t.Fatalf("Parse() = %+v, %v", claims, err)
	}

	other, _ := NewTokens("another-secret-0123456789", time.Hour)
	if _, err := other.Parse(raw); err == nil {
		t.Error("token verified with the wrong secret")
	}
	expired, _ := NewTokens(testSecret, time.Nanosecond)
	old, _ := expired.Issue("u1")
	time.Sleep(time.Millisecond)
	if _, err := tokens.Parse(old); err == nil {
		t.Error("expired token accepted")
	}
}

func TestRealtimeRequiresMatchingSession(t *testing.T) {
	reached := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	env := newEnv(t, func(o *Options) { o.Realtime = reached })
	aliceC, alice := env.signUp(t, "Alice", "alice@example.com")
	_, bob := env.signUp(t, "Bob", "bob@example.com")

	get := func(userID, token string) int {
		t.Helper()
		req, _ := http.NewRequest(http.MethodGet, env.srv.URL+"/ws?userId="+userID, nil)
		if token != "" {
			req.AddCookie(&http.Cookie{Name: protocol.SessionCookie, Value: token})
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		return resp.StatusCode
	}

	tests := []struct {
		name   string
		userID string
		token  string
		want   int
	}{
		{"no cookie", alice.ID, "", http.StatusUnauthorized},
		{"invalid cookie", alice.ID, "garbage", http.StatusUnauthorized},
		{"someone else's identity", bob.ID, aliceC.SessionToken(), http.StatusForbidden},
		{"own identity", alice.ID, aliceC.SessionToken(), http.StatusTeapot},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := get(tt.userID, tt.token); got != tt.want {
				t.Errorf("status = %d, want %d", got, tt.want)
			}
		})
	}
}
