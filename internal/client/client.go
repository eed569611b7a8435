package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/matheus3301/chatsync/internal/logging"
	"github.com/matheus3301/chatsync/internal/protocol"
	"go.uber.org/zap"
)

const maxBody = 8 << 20

// APIError is a non-2xx response from the service.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api: status %d", e.Status)
	}
	return fmt.Sprintf("api: status %d: %s", e.Status, e.Message)
}

// UserMessage returns the service's message verbatim.
func (e *APIError) UserMessage() string { return e.Message }

// IsUnauthorized reports whether err is a 401 from the service.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized
}

// Client talks to the identity and message services over REST. The session
// token lives in the client's cookie jar.
type Client struct {
	base   *url.URL
	api    *url.URL
	http   *http.Client
	logger *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client. A client without a
// cookie jar gets one.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = logging.OrNop(l) }
}

// New creates a client for the service rooted at baseURL, e.g.
// "http://localhost:5001". REST calls go to baseURL + "/api".
func New(baseURL string, opts ...Option) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("base url %q: scheme must be http or https", baseURL)
	}
	c := &Client{
		base:   base,
		api:    base.JoinPath("api"),
		http:   &http.Client{Timeout: 30 * time.Second},
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("cookie jar: %w", err)
		}
		c.http.Jar = jar
	}
	return c, nil
}

// BaseURL returns the service root without the /api suffix.
func (c *Client) BaseURL() string { return c.base.String() }

// SessionToken returns the current session token, or "" when none is held.
func (c *Client) SessionToken() string {
	for _, ck := range c.http.Jar.Cookies(c.api) {
		if ck.Name == protocol.SessionCookie {
			return ck.Value
		}
	}
	return ""
}

// SetSessionToken installs a previously saved session token.
func (c *Client) SetSessionToken(token string) {
	if token == "" {
		return
	}
	c.http.Jar.SetCookies(c.base, []*http.Cookie{{Name: protocol.SessionCookie, Value: token, Path: "/"}})
}

// CheckSession returns the identity bound to the current session.
func (c *Client) CheckSession(ctx context.Context) (protocol.Identity, error) {
	var id protocol.Identity
	if err := c.do(ctx, http.MethodGet, "auth/check", nil, &id); err != nil {
		return protocol.Identity{}, fmt.Errorf("check session: %w", err)
	}
	return id, nil
}

// SignUp creates an account and starts a session for it.
func (c *Client) SignUp(ctx context.Context, req protocol.SignUpRequest) (protocol.Identity, error) {
	var id protocol.Identity
	if err := c.do(ctx, http.MethodPost, "auth/signup", req, &id); err != nil {
		return protocol.Identity{}, fmt.Errorf("sign up: %w", err)
	}
	return id, nil
}

// LogIn starts a session.
func (c *Client) LogIn(ctx context.Context, req protocol.LogInRequest) (protocol.Identity, error) {
	var id protocol.Identity
	if err := c.do(ctx, http.MethodPost, "auth/login", req, &id); err != nil {
		return protocol.Identity{}, fmt.Errorf("log in: %w", err)
	}
	return id, nil
}

// LogOut ends the session on the service side.
func (c *Client) LogOut(ctx context.Context) error {
	if err := c.do(ctx, http.MethodPost, "auth/logout", nil, nil); err != nil {
		return fmt.Errorf("log out: %w", err)
	}
	return nil
}

// UpdateProfile changes the non-empty fields of req.
func (c *Client) UpdateProfile(ctx context.Context, req protocol.UpdateProfileRequest) (protocol.Identity, error) {
	var id protocol.Identity
	if err := c.do(ctx, http.MethodPut, "auth/update-profile", req, &id); err != nil {
		return protocol.Identity{}, fmt.Errorf("update profile: %w", err)
	}
	return id, nil
}

// ListContacts returns every user the caller can message. A response that is
// not a list is treated as empty.
func (c *Client) ListContacts(ctx context.Context) ([]protocol.Contact, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, "messages/users", nil, &raw); err != nil {
		return nil, fmt.Errorf("list contacts: %w", err)
	}
	contacts, ok := protocol.DecodeList[protocol.Contact](raw)
	if !ok {
		c.logger.Warn("contacts response is not a list, using empty list")
	}
	return contacts, nil
}

// ListMessages returns the history between the caller and peerID in creation
// order. A response that is not a list is treated as empty.
func (c *Client) ListMessages(ctx context.Context, peerID string) ([]protocol.Message, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, "messages/"+url.PathEscape(peerID), nil, &raw); err != nil {
		return nil, fmt.Errorf("list messages with %s: %w", peerID, err)
	}
	msgs, ok := protocol.DecodeList[protocol.Message](raw)
	if !ok {
		c.logger.Warn("history response is not a list, using empty list", zap.String("peer", peerID))
	}
	return msgs, nil
}

// SendMessage posts a message to peerID and returns the stored copy.
func (c *Client) SendMessage(ctx context.Context, peerID string, req protocol.SendRequest) (protocol.Message, error) {
	var msg protocol.Message
	if err := c.do(ctx, http.MethodPost, "messages/send/"+url.PathEscape(peerID), req, &msg); err != nil {
		return protocol.Message{}, fmt.Errorf("send message to %s: %w", peerID, err)
	}
	return msg, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.api.JoinPath(path).String(), body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	c.logger.Debug("api call",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("took", time.Since(start)),
	)

	if resp.StatusCode >= 400 {
		apiErr := &APIError{Status: resp.StatusCode}
		var eb protocol.ErrorBody
		if json.Unmarshal(data, &eb) == nil {
			apiErr.Message = eb.Message
		}
		return apiErr
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
