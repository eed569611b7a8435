package conversation

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"

	"github.com/matheus3301/chatsync/internal/bus"
	"github.com/matheus3301/chatsync/internal/logging"
	"github.com/matheus3301/chatsync/internal/notify"
	"github.com/matheus3301/chatsync/internal/protocol"
	"github.com/matheus3301/chatsync/internal/realtime"
	"github.com/matheus3301/chatsync/internal/session"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// Bus event kinds published by the Manager. Payloads are snapshots.
const (
	KindContacts  = "conversation.contacts"
	KindMessages  = "conversation.messages"
	KindSelection = "conversation.selection"
)

var (
	// ErrNoRecipient is returned by SendMessage when no contact is selected.
	ErrNoRecipient = errors.New("no contact selected")
	// ErrEmptyMessage is returned by SendMessage for a message without text or image.
	ErrEmptyMessage = errors.New("message has no text or image")
)

// MessageService is the remote message service.
type MessageService interface {
	ListContacts(ctx context.Context) ([]protocol.Contact, error)
	ListMessages(ctx context.Context, peerID string) ([]protocol.Message, error)
	SendMessage(ctx context.Context, peerID string, req protocol.SendRequest) (protocol.Message, error)
}

// Feed delivers live messages to attached listeners, e.g. a *realtime.Connection.
type Feed interface {
	Listen(fn func(protocol.Message)) (stop func())
}

// FeedSource yields the current feed, or nil when there is no connection.
type FeedSource interface {
	CurrentFeed() Feed
}

type realtimeSource struct{ m *realtime.Manager }

func (s realtimeSource) CurrentFeed() Feed {
	if c := s.m.Connection(); c != nil {
		return c
	}
	return nil
}

// FromRealtime adapts a connection manager into a FeedSource.
func FromRealtime(m *realtime.Manager) FeedSource {
	return realtimeSource{m: m}
}

// Loading reports which fetches are in flight.
type Loading struct {
	Users    bool
	Messages bool
	Sending  bool
}

// Manager owns the contact list, the selected contact and the message list
// of that conversation.
//
// Every selection change bumps a generation counter. Network results carry
// the generation they were started under and are dropped when it no longer
// matches, so a slow answer for a previous contact never lands in the current
// conversation.
type Manager struct {
	svc      MessageService
	feeds    FeedSource
	bus      *bus.Bus
	notifier notify.Notifier
	logger   *zap.Logger

	mu        sync.Mutex
	contacts  []protocol.Contact
	messages  []protocol.Message
	selection *protocol.Contact
	gen       uint64
	stop      func()

	// While holds > 0 a history fetch is in flight for gen. Live deliveries
	// wait in held and are appended after the fetched history.
	holds int
	held  []protocol.Message

	usersInFlight    int
	messagesInFlight int
	sendsInFlight    int
}

// NewManager creates a conversation manager with no selection.
func NewManager(svc MessageService, feeds FeedSource, b *bus.Bus, notifier notify.Notifier, logger *zap.Logger) *Manager {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return &Manager{
		svc:      svc,
		feeds:    feeds,
		bus:      b,
		notifier: notifier,
		logger:   logging.OrNop(logger),
		contacts: []protocol.Contact{},
		messages: []protocol.Message{},
	}
}

// Start re-subscribes the selected conversation whenever the hub connection
// (re)opens and refreshes its history, and resets all state on logout.
func (m *Manager) Start() (stop func()) {
	if m.bus == nil {
		return func() {}
	}
	offConnected := m.bus.Handle(realtime.KindConnected, func(evt bus.Event) {
		feed, ok := evt.Payload.(Feed)
		if !ok {
			return
		}
		m.resubscribe(feed)
	})
	offLogout := m.bus.Handle(session.KindUnauthenticated, func(bus.Event) {
		m.Reset()
	})
	return func() {
		offConnected()
		offLogout()
	}
}

// Contacts returns a copy of the contact list.
func (m *Manager) Contacts() []protocol.Contact {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.contacts)
}

// Messages returns a copy of the current conversation.
func (m *Manager) Messages() []protocol.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.messages)
}

// Selection returns the selected contact, if any.
func (m *Manager) Selection() (protocol.Contact, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.selection == nil {
		return protocol.Contact{}, false
	}
	return *m.selection, true
}

// Loading returns a snapshot of the loading flags.
func (m *Manager) Loading() Loading {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Loading{
		Users:    m.usersInFlight > 0,
		Messages: m.messagesInFlight > 0,
		Sending:  m.sendsInFlight > 0,
	}
}

// LoadContacts replaces the contact list with the service's answer.
func (m *Manager) LoadContacts(ctx context.Context) error {
	m.mu.Lock()
	m.usersInFlight++
	m.mu.Unlock()

	contacts, err := m.svc.ListContacts(ctx)

	m.mu.Lock()
	m.usersInFlight--
	if err != nil {
		m.mu.Unlock()
		m.logger.Warn("load contacts failed", zap.Error(err))
		m.notifier.Error(notify.Message(err, "Failed to load users"))
		return err
	}
	if contacts == nil {
		contacts = []protocol.Contact{}
	}
	m.contacts = contacts
	snapshot := slices.Clone(contacts)
	m.mu.Unlock()

	m.publish(KindContacts, snapshot)
	return nil
}

// LoadHistory replaces the conversation with the history shared with peerID.
// The answer is discarded if peerID is no longer selected when it arrives.
func (m *Manager) LoadHistory(ctx context.Context, peerID string) error {
	m.mu.Lock()
	if m.selection == nil || m.selection.ID != peerID {
		m.mu.Unlock()
		m.logger.Debug("history load for unselected peer ignored", zap.String("peer", peerID))
		return nil
	}
	gen := m.gen
	m.holds++
	m.mu.Unlock()

	return m.load(ctx, gen, peerID)
}

// Select makes c the current conversation, or clears the selection when c
// is nil. The previous delivery listener is detached before the new
// selection becomes visible; the new one is attached before history is
// fetched so no delivery falls between the two.
func (m *Manager) Select(ctx context.Context, c *protocol.Contact) error {
	m.mu.Lock()
	m.detachLocked()
	m.gen++
	gen := m.gen
	m.messages = []protocol.Message{}
	m.holds = 0
	m.held = nil
	if c == nil {
		m.selection = nil
		m.mu.Unlock()
		m.publish(KindSelection, nil)
		m.publish(KindMessages, []protocol.Message{})
		return nil
	}
	sel := *c
	m.selection = &sel
	m.holds++
	if feed := m.currentFeed(); feed != nil {
		m.stop = feed.Listen(m.deliver(gen))
	}
	m.mu.Unlock()

	m.logger.Debug("contact selected", zap.String("peer", sel.ID))
	m.publish(KindSelection, sel)
	m.publish(KindMessages, []protocol.Message{})
	return m.load(ctx, gen, sel.ID)
}

// Subscribe attaches a delivery listener for the selected contact to the
// current connection. Without a connection or selection it does nothing.
func (m *Manager) Subscribe() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.detachLocked()
	if m.selection == nil {
		return
	}
	if feed := m.currentFeed(); feed != nil {
		m.stop = feed.Listen(m.deliver(m.gen))
	}
}

// Unsubscribe detaches the delivery listener, if one is attached.
func (m *Manager) Unsubscribe() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.detachLocked()
}

// SendMessage posts req to the selected contact. The stored message returned
// by the service is appended to the conversation; nothing is shown before
// the service confirms.
func (m *Manager) SendMessage(ctx context.Context, req protocol.SendRequest) (protocol.Message, error) {
	m.mu.Lock()
	if m.selection == nil {
		m.mu.Unlock()
		m.notifier.Error("No user selected")
		return protocol.Message{}, ErrNoRecipient
	}
	peer := m.selection.ID
	gen := m.gen
	m.mu.Unlock()

	req.Text = strings.TrimSpace(req.Text)
	if req.Text == "" && req.Image == "" {
		return protocol.Message{}, ErrEmptyMessage
	}

	m.mu.Lock()
	m.sendsInFlight++
	m.mu.Unlock()

	msg, err := m.svc.SendMessage(ctx, peer, req)

	m.mu.Lock()
	m.sendsInFlight--
	if err != nil {
		m.mu.Unlock()
		m.logger.Warn("send failed", zap.String("peer", peer), zap.Error(err))
		m.notifier.Error(notify.Message(err, "Failed to send message"))
		return protocol.Message{}, err
	}
	if gen != m.gen {
		m.mu.Unlock()
		m.logger.Debug("sent message belongs to a previous selection", zap.String("peer", peer))
		return msg, nil
	}
	if m.holds > 0 {
		// A refetch is running; keep the message across the replacement.
		m.held = append(m.held, msg)
	}
	appended := m.appendLocked(msg)
	snapshot := slices.Clone(m.messages)
	m.mu.Unlock()

	if appended {
		m.publish(KindMessages, snapshot)
	}
	return msg, nil
}

// Reset drops the selection, the conversation and the contact list.
func (m *Manager) Reset() {
	m.mu.Lock()
	m.detachLocked()
	m.gen++
	m.selection = nil
	m.messages = []protocol.Message{}
	m.contacts = []protocol.Contact{}
	m.holds = 0
	m.held = nil
	m.mu.Unlock()

	m.publish(KindSelection, nil)
	m.publish(KindMessages, []protocol.Message{})
	m.publish(KindContacts, []protocol.Contact{})
}

// resubscribe moves the listener of the selected conversation onto feed and
// refetches history to cover anything missed while disconnected.
func (m *Manager) resubscribe(feed Feed) {
	m.mu.Lock()
	m.detachLocked()
	if m.selection == nil {
		m.mu.Unlock()
		return
	}
	gen := m.gen
	peer := m.selection.ID
	m.holds++
	m.stop = feed.Listen(m.deliver(gen))
	m.mu.Unlock()

	m.logger.Debug("resubscribed after connect", zap.String("peer", peer))
	go func() { _ = m.load(context.Background(), gen, peer) }()
}

// load fetches history for peerID under generation gen. The caller has
// already taken a hold for gen.
func (m *Manager) load(ctx context.Context, gen uint64, peerID string) error {
	m.mu.Lock()
	m.messagesInFlight++
	m.mu.Unlock()

	msgs, err := m.svc.ListMessages(ctx, peerID)

	m.mu.Lock()
	m.messagesInFlight--
	if gen != m.gen {
		m.mu.Unlock()
		m.logger.Debug("discarding stale history", zap.String("peer", peerID))
		return nil
	}
	if err == nil {
		m.messages = lo.UniqBy(msgs, func(msg protocol.Message) string { return msg.ID })
	}
	for _, msg := range m.held {
		m.appendLocked(msg)
	}
	m.holds--
	if m.holds <= 0 {
		m.holds = 0
		m.held = nil
	}
	snapshot := slices.Clone(m.messages)
	m.mu.Unlock()

	if err != nil {
		m.logger.Warn("load history failed", zap.String("peer", peerID), zap.Error(err))
		m.notifier.Error(notify.Message(err, "Failed to load messages"))
	}
	m.publish(KindMessages, snapshot)
	return err
}

// deliver builds the listener for generation gen.
func (m *Manager) deliver(gen uint64) func(protocol.Message) {
	return func(msg protocol.Message) {
		m.mu.Lock()
		if gen != m.gen || m.selection == nil || msg.SenderID != m.selection.ID {
			m.mu.Unlock()
			return
		}
		if m.holds > 0 {
			m.held = append(m.held, msg)
			m.mu.Unlock()
			return
		}
		appended := m.appendLocked(msg)
		snapshot := slices.Clone(m.messages)
		m.mu.Unlock()

		if appended {
			m.publish(KindMessages, snapshot)
		}
	}
}

func (m *Manager) appendLocked(msg protocol.Message) bool {
	if lo.ContainsBy(m.messages, func(have protocol.Message) bool { return have.ID == msg.ID }) {
		return false
	}
	m.messages = append(m.messages, msg)
	return true
}

func (m *Manager) detachLocked() {
	if m.stop != nil {
		m.stop()
		m.stop = nil
	}
}

func (m *Manager) currentFeed() Feed {
	if m.feeds == nil {
		return nil
	}
	return m.feeds.CurrentFeed()
}

func (m *Manager) publish(kind string, payload any) {
	if m.bus != nil {
		m.bus.Publish(bus.NewEvent(kind, payload))
	}
}
