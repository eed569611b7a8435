package hub

import (
	"context"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/matheus3301/chatsync/internal/logging"
	"github.com/matheus3301/chatsync/internal/protocol"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

var (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = int64(4096)
	mirrorTimeout  = 2 * time.Second
)

// Options configures a Hub.
type Options struct {
	// AllowedOrigins lists the browser origins allowed to open a connection.
	// Empty means same-origin only.
	AllowedOrigins []string
	// Mirror, when set, receives the roster after every change.
	Mirror PresenceMirror
	// SendQueue is the per-connection outbound buffer. Default 256.
	SendQueue int
	Logger    *zap.Logger
}

// Hub tracks which identities are connected and relays events to them.
// An identity may hold several connections; it leaves the roster when the
// last one closes.
type Hub struct {
	logger   *zap.Logger
	upgrader websocket.Upgrader
	mirror   PresenceMirror
	queue    int

	mu     sync.RWMutex
	conns  map[string]map[*client]struct{}
	closed bool

	// pending holds the newest roster not yet handed to the mirror.
	pending    []string
	hasRoster  bool
	mirrorWake chan struct{}
	quit       chan struct{}
	mirrorDone chan struct{}
}

type client struct {
	id       string
	identity string
	conn     *websocket.Conn
	send     chan []byte
	done     chan struct{}
	once     sync.Once
}

func (c *client) stop() {
	c.once.Do(func() { close(c.done) })
}

// New creates an empty hub.
func New(opts Options) *Hub {
	h := &Hub{
		logger: logging.OrNop(opts.Logger),
		mirror: opts.Mirror,
		queue:  opts.SendQueue,
		conns:  make(map[string]map[*client]struct{}),
		quit:   make(chan struct{}),
	}
	if h.queue <= 0 {
		h.queue = 256
	}
	if h.mirror != nil {
		h.mirrorWake = make(chan struct{}, 1)
		h.mirrorDone = make(chan struct{})
		go h.mirrorLoop()
	}
	allowed := slices.Clone(opts.AllowedOrigins)
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return originAllowed(r, allowed)
		},
	}
	return h
}

func originAllowed(r *http.Request, allowed []string) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if len(allowed) == 0 {
		u, err := url.Parse(origin)
		return err == nil && strings.EqualFold(u.Host, r.Host)
	}
	return lo.Contains(allowed, strings.TrimRight(origin, "/"))
}

// ServeHTTP upgrades the request and registers the connection under the
// identity named by the userId query parameter.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	identity := strings.TrimSpace(r.URL.Query().Get("userId"))
	if identity == "" {
		http.Error(w, "userId is required", http.StatusBadRequest)
		return
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response.
		h.logger.Info("websocket upgrade failed", zap.String("identity", identity), zap.Error(err))
		return
	}

	c := &client{
		id:       uuid.NewString(),
		identity: identity,
		conn:     conn,
		send:     make(chan []byte, h.queue),
		done:     make(chan struct{}),
	}
	if !h.register(c) {
		_ = conn.Close()
		return
	}
	go h.writePump(c)
	go h.readPump(c)
}

// Online returns the connected identity ids, sorted.
func (h *Hub) Online() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.rosterLocked()
}

// IsOnline reports whether identity has at least one open connection.
func (h *Hub) IsOnline(identity string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns[identity]) > 0
}

// Deliver sends msg to every connection of receiverID and returns how many
// connections it was queued on. The sender is never echoed.
func (h *Hub) Deliver(receiverID string, msg protocol.Message) int {
	data, err := protocol.Encode(protocol.MessageDelivered{Message: msg})
	if err != nil {
		h.logger.Error("encode delivery", zap.Error(err))
		return 0
	}
	h.mu.RLock()
	targets := lo.Keys(h.conns[receiverID])
	h.mu.RUnlock()

	queued := 0
	for _, c := range targets {
		if h.enqueue(c, data) {
			queued++
		}
	}
	h.logger.Debug("delivered message",
		zap.String("message", msg.ID),
		zap.String("receiver", receiverID),
		zap.Int("connections", queued),
	)
	return queued
}

// Close disconnects every client. The hub accepts no connections afterwards.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	close(h.quit)
	all := make([]*client, 0)
	for _, set := range h.conns {
		all = append(all, lo.Keys(set)...)
	}
	h.mu.Unlock()

	for _, c := range all {
		c.stop()
	}
	if h.mirrorDone != nil {
		<-h.mirrorDone
	}
}

func (h *Hub) register(c *client) bool {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return false
	}
	set, ok := h.conns[c.identity]
	if !ok {
		set = make(map[*client]struct{})
		h.conns[c.identity] = set
	}
	set[c] = struct{}{}
	h.logger.Info("client connected",
		zap.String("identity", c.identity),
		zap.String("conn", c.id),
		zap.Int("identity_conns", len(set)),
	)
	h.broadcastRosterLocked()
	h.mu.Unlock()
	return true
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	set, ok := h.conns[c.identity]
	if !ok {
		h.mu.Unlock()
		return
	}
	if _, present := set[c]; !present {
		h.mu.Unlock()
		return
	}
	delete(set, c)
	if len(set) == 0 {
		delete(h.conns, c.identity)
	}
	c.stop()
	h.logger.Info("client disconnected", zap.String("identity", c.identity), zap.String("conn", c.id))
	h.broadcastRosterLocked()
	h.mu.Unlock()
}

// broadcastRosterLocked queues the current roster on every connection and
// hands it to the mirror. The caller holds h.mu for writing, so rosters are
// queued in the order the membership changed.
func (h *Hub) broadcastRosterLocked() {
	roster := h.rosterLocked()
	data, err := protocol.Encode(protocol.RosterUpdate{Online: roster})
	if err != nil {
		h.logger.Error("encode roster", zap.Error(err))
		return
	}
	for _, set := range h.conns {
		for c := range set {
			h.enqueue(c, data)
		}
	}
	if h.mirror == nil {
		return
	}
	h.pending = roster
	h.hasRoster = true
	select {
	case h.mirrorWake <- struct{}{}:
	default:
	}
}

// mirrorLoop writes rosters to the mirror one at a time. Rosters that pile
// up while a write is in flight collapse into the newest one.
func (h *Hub) mirrorLoop() {
	defer close(h.mirrorDone)
	for {
		select {
		case <-h.mirrorWake:
			h.flushMirror()
		case <-h.quit:
			h.flushMirror()
			return
		}
	}
}

func (h *Hub) flushMirror() {
	h.mu.Lock()
	roster, ok := h.pending, h.hasRoster
	h.pending, h.hasRoster = nil, false
	h.mu.Unlock()
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), mirrorTimeout)
	defer cancel()
	if err := h.mirror.Mirror(ctx, roster); err != nil {
		h.logger.Warn("presence mirror failed", zap.Error(err))
	}
}

// enqueue queues data for c. A client whose queue is full is dropped.
func (h *Hub) enqueue(c *client, data []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- data:
		return true
	default:
		h.logger.Warn("send queue full, dropping connection", zap.String("identity", c.identity), zap.String("conn", c.id))
		c.stop()
		return false
	}
}

func (h *Hub) rosterLocked() []string {
	roster := lo.Keys(h.conns)
	slices.Sort(roster)
	return roster
}

func (h *Hub) readPump(c *client) {
	defer func() {
		h.unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		// Clients never send application frames; reading drives the
		// control handlers and notices the close.
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				h.logger.Info("unexpected close", zap.String("identity", c.identity), zap.Error(err))
			}
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				h.logger.Debug("write failed", zap.String("conn", c.id), zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		}
	}
}
