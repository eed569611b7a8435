package realtime

import (
	"context"
	"errors"
	"math/rand/v2"
	"slices"
	"sync"
	"time"

	"github.com/matheus3301/chatsync/internal/bus"
	"github.com/matheus3301/chatsync/internal/logging"
	"github.com/matheus3301/chatsync/internal/protocol"
	"github.com/matheus3301/chatsync/internal/session"
	"github.com/matheus3301/chatsync/internal/status"
	"go.uber.org/zap"
	"google.golang.org/grpc/backoff"
)

// Bus event kinds published by the Manager, next to status.KindChanged.
const (
	// KindConnected carries the *Connection after every successful (re)open.
	KindConnected = "realtime.connected"
	// KindDisconnected carries the identity id of a connection that dropped or was closed.
	KindDisconnected = "realtime.disconnected"
	// KindRoster carries the new roster as a []string.
	KindRoster = "realtime.roster"
)

// DefaultBackoff is the redial schedule after a transport failure.
var DefaultBackoff = backoff.Config{
	BaseDelay:  500 * time.Millisecond,
	Multiplier: 2,
	MaxDelay:   15 * time.Second,
}

// Manager owns the single hub connection of this client and the online
// roster it reports. Only the Manager opens and closes connections.
type Manager struct {
	dialer  Dialer
	bus     *bus.Bus
	logger  *zap.Logger
	backoff backoff.Config
	machine *status.Machine

	mu     sync.Mutex
	conn   *Connection
	roster []string
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(m *Manager) { m.logger = logging.OrNop(l) }
}

// WithBackoff replaces DefaultBackoff.
func WithBackoff(cfg backoff.Config) Option {
	return func(m *Manager) { m.backoff = cfg }
}

// NewManager creates an idle connection manager.
func NewManager(d Dialer, b *bus.Bus, opts ...Option) *Manager {
	m := &Manager{
		dialer:  d,
		bus:     b,
		logger:  zap.NewNop(),
		backoff: DefaultBackoff,
		// Transitions are published by the manager itself, outside its lock.
		machine: status.NewMachine(nil),
		roster:  []string{},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start ties the connection to the session: authenticated connects,
// unauthenticated disconnects. The returned function undoes the binding.
func (m *Manager) Start() (stop func()) {
	if m.bus == nil {
		return func() {}
	}
	return m.bus.Handle("session.", func(evt bus.Event) {
		switch evt.Kind {
		case session.KindAuthenticated:
			id, ok := evt.Payload.(protocol.Identity)
			if !ok {
				m.logger.Error("authenticated event without identity", zap.Any("payload", evt.Payload))
				return
			}
			m.Connect(id)
		case session.KindUnauthenticated:
			m.Disconnect()
		}
	})
}

// Connect opens a connection tagged with identity.ID unless one for the same
// identity is already live. A live connection for another identity is closed
// first. Connect does not wait for the transport to open.
func (m *Manager) Connect(identity protocol.Identity) {
	if identity.ID == "" {
		m.logger.Warn("connect without identity id ignored")
		return
	}

	m.mu.Lock()
	old := m.conn
	m.mu.Unlock()
	if old != nil {
		if old.identityID == identity.ID {
			m.logger.Debug("connect ignored, connection already live", zap.String("identity", identity.ID))
			return
		}
		m.Disconnect()
	}

	m.mu.Lock()
	if m.conn != nil {
		m.mu.Unlock()
		return
	}
	c := newConnection(context.Background(), identity.ID)
	m.conn = c
	m.mu.Unlock()

	m.logger.Info("connecting to hub", zap.String("identity", identity.ID))
	go m.run(c)
}

// Disconnect closes and discards the current connection and clears the
// roster. It is a no-op without a connection.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	c := m.conn
	if c == nil {
		m.mu.Unlock()
		return
	}
	m.conn = nil
	m.roster = []string{}
	from := m.machine.Current()
	_ = m.machine.Transition(status.Idle)
	m.mu.Unlock()

	c.close()
	m.logger.Info("disconnected from hub", zap.String("identity", c.identityID))
	m.publishStatus(from, status.Idle)
	m.publish(KindDisconnected, c.identityID)
	m.publish(KindRoster, []string{})
}

// Connection returns the live connection, or nil.
func (m *Manager) Connection() *Connection {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.conn
}

// Roster returns a copy of the last roster received from the hub.
func (m *Manager) Roster() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.roster)
}

// IsOnline reports whether id is in the roster.
func (m *Manager) IsOnline(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Contains(m.roster, id)
}

// Status returns the connection state.
func (m *Manager) Status() status.State {
	return m.machine.Current()
}

func (m *Manager) run(c *Connection) {
	defer close(c.done)
	log := m.logger.With(zap.String("identity", c.identityID))
	delay := m.backoff.BaseDelay

	for {
		if !m.advance(c, status.Connecting) {
			return
		}
		t, err := m.dialer.Dial(c.ctx, c.identityID)
		if err != nil {
			if c.ctx.Err() != nil {
				return
			}
			log.Warn("hub dial failed", zap.Error(err), zap.Duration("retry_in", delay))
			if !m.advance(c, status.Reconnecting) || !sleep(c.ctx, delay) {
				return
			}
			delay = m.next(delay)
			continue
		}
		if !c.attach(t) {
			_ = t.Close()
			return
		}
		if !m.advance(c, status.Open) {
			c.detach(t)
			return
		}
		delay = m.backoff.BaseDelay
		log.Info("hub connection open")
		m.publish(KindConnected, c)

		err = m.read(c, t)
		c.detach(t)
		if c.ctx.Err() != nil {
			return
		}
		log.Warn("hub connection dropped", zap.Error(err), zap.Duration("retry_in", delay))
		if !m.dropped(c) {
			return
		}
		if !sleep(c.ctx, delay) {
			return
		}
		delay = m.next(delay)
	}
}

func (m *Manager) read(c *Connection, t Transport) error {
	for {
		data, err := t.Read()
		if err != nil {
			return err
		}
		evt, err := protocol.Decode(data)
		if errors.Is(err, protocol.ErrUnknownEvent) {
			m.logger.Debug("ignoring hub event", zap.Error(err))
			continue
		}
		if err != nil {
			m.logger.Warn("rejected hub frame", zap.Error(err))
			continue
		}
		switch e := evt.(type) {
		case protocol.RosterUpdate:
			m.setRoster(c, e.Online)
		case protocol.MessageDelivered:
			c.dispatch(e.Message)
		}
	}
}

// advance moves the state machine on behalf of c, provided c is still the
// current connection.
func (m *Manager) advance(c *Connection, to status.State) bool {
	m.mu.Lock()
	if m.conn != c {
		m.mu.Unlock()
		return false
	}
	from := m.machine.Current()
	err := m.machine.Transition(to)
	m.mu.Unlock()
	if err != nil {
		m.logger.Error("connection state", zap.Error(err))
		return false
	}
	m.publishStatus(from, to)
	return true
}

// dropped records a transport loss for c: the roster is stale until the hub
// sends a fresh one.
func (m *Manager) dropped(c *Connection) bool {
	m.mu.Lock()
	if m.conn != c {
		m.mu.Unlock()
		return false
	}
	m.roster = []string{}
	from := m.machine.Current()
	err := m.machine.Transition(status.Reconnecting)
	m.mu.Unlock()
	if err != nil {
		m.logger.Error("connection state", zap.Error(err))
		return false
	}
	m.publishStatus(from, status.Reconnecting)
	m.publish(KindDisconnected, c.identityID)
	m.publish(KindRoster, []string{})
	return true
}

func (m *Manager) setRoster(c *Connection, online []string) {
	m.mu.Lock()
	if m.conn != c {
		m.mu.Unlock()
		return
	}
	m.roster = slices.Clone(online)
	if m.roster == nil {
		m.roster = []string{}
	}
	snapshot := slices.Clone(m.roster)
	m.mu.Unlock()

	m.logger.Debug("roster replaced", zap.Int("online", len(snapshot)))
	m.publish(KindRoster, snapshot)
}

func (m *Manager) next(d time.Duration) time.Duration {
	mult := m.backoff.Multiplier
	if mult < 1 {
		mult = 1
	}
	n := time.Duration(float64(d) * mult)
	if m.backoff.Jitter > 0 {
		n = time.Duration(float64(n) * (1 + m.backoff.Jitter*(rand.Float64()*2-1)))
	}
	if ceiling := m.backoff.MaxDelay; ceiling > 0 && n > ceiling {
		n = ceiling
	}
	if n <= 0 {
		n = m.backoff.BaseDelay
	}
	return n
}

func (m *Manager) publishStatus(from, to status.State) {
	if from != to {
		m.publish(status.KindChanged, status.StatusChange{From: from, To: to})
	}
}

func (m *Manager) publish(kind string, payload any) {
	if m.bus != nil {
		m.bus.Publish(bus.NewEvent(kind, payload))
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
