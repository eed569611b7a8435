package realtime

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/matheus3301/chatsync/internal/protocol"
)

// Transport is one open duplex channel to the hub. The client only reads:
// everything it sends goes through the REST service.
type Transport interface {
	// Read blocks until the next frame arrives or the transport fails.
	Read() ([]byte, error)
	// Close releases the transport. It is safe to call more than once.
	Close() error
}

// Dialer opens a transport tagged with an identity id.
type Dialer interface {
	Dial(ctx context.Context, identityID string) (Transport, error)
}

const (
	// pongWait bounds the silence tolerated from the hub; it pings more often.
	pongWait       = 75 * time.Second
	writeWait      = 10 * time.Second
	maxFrameSize   = 16 << 20
	handshakeLimit = 15 * time.Second
)

// WebSocketDialer dials the hub's websocket endpoint at <base>/ws.
type WebSocketDialer struct {
	// BaseURL is the service root, e.g. http://localhost:5001.
	BaseURL string
	// Dialer defaults to a copy of websocket.DefaultDialer.
	Dialer *websocket.Dialer
	// Header is sent with the handshake. Origin is derived from BaseURL when unset.
	Header http.Header
	// SessionToken, when set, supplies the session cookie for the handshake.
	SessionToken func() string
}

// URL returns the websocket URL for identityID.
func (d *WebSocketDialer) URL(identityID string) (string, error) {
	u, err := url.Parse(strings.TrimRight(d.BaseURL, "/"))
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("base url %q: unsupported scheme %q", d.BaseURL, u.Scheme)
	}
	u = u.JoinPath("ws")
	u.RawQuery = url.Values{"userId": {identityID}}.Encode()
	return u.String(), nil
}

// Dial implements Dialer.
func (d *WebSocketDialer) Dial(ctx context.Context, identityID string) (Transport, error) {
	target, err := d.URL(identityID)
	if err != nil {
		return nil, err
	}
	dialer := d.Dialer
	if dialer == nil {
		dd := *websocket.DefaultDialer
		dd.HandshakeTimeout = handshakeLimit
		dialer = &dd
	}
	header := d.Header.Clone()
	if header == nil {
		header = http.Header{}
	}
	if header.Get("Origin") == "" {
		if origin := originOf(d.BaseURL); origin != "" {
			header.Set("Origin", origin)
		}
	}
	if d.SessionToken != nil {
		if token := d.SessionToken(); token != "" {
			header.Add("Cookie", (&http.Cookie{Name: protocol.SessionCookie, Value: token}).String())
		}
	}

	conn, resp, err := dialer.DialContext(ctx, target, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial hub: %w (status %d)", err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial hub: %w", err)
	}
	return newWSTransport(conn), nil
}

func originOf(base string) string {
	u, err := url.Parse(base)
	if err != nil || u.Host == "" {
		return ""
	}
	switch u.Scheme {
	case "ws":
		u.Scheme = "http"
	case "wss":
		u.Scheme = "https"
	}
	return u.Scheme + "://" + u.Host
}

type wsTransport struct {
	conn *websocket.Conn
	once sync.Once
	err  error
}

func newWSTransport(conn *websocket.Conn) *wsTransport {
	conn.SetReadLimit(maxFrameSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPingHandler(func(data string) error {
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		err := conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(writeWait))
		if err == websocket.ErrCloseSent {
			return nil
		}
		return err
	})
	return &wsTransport{conn: conn}
}

func (t *wsTransport) Read() ([]byte, error) {
	for {
		kind, data, err := t.conn.ReadMessage()
		if err != nil {
			return nil, err
		}
		_ = t.conn.SetReadDeadline(time.Now().Add(pongWait))
		if kind == websocket.TextMessage && len(data) > 0 {
			return data, nil
		}
	}
}

func (t *wsTransport) Close() error {
	t.once.Do(func() {
		_ = t.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		t.err = t.conn.Close()
	})
	return t.err
}
