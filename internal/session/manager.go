package session

import (
	"context"
	"sync"

	"github.com/matheus3301/chatsync/internal/bus"
	"github.com/matheus3301/chatsync/internal/logging"
	"github.com/matheus3301/chatsync/internal/notify"
	"github.com/matheus3301/chatsync/internal/protocol"
	"go.uber.org/zap"
)

// Bus event kinds published by the Manager.
const (
	// KindAuthenticated carries the protocol.Identity that became current.
	KindAuthenticated = "session.authenticated"
	// KindUnauthenticated is published when a present identity is cleared.
	KindUnauthenticated = "session.unauthenticated"
	// KindIdentityUpdated carries the identity returned by a profile update.
	KindIdentityUpdated = "session.identity_updated"
)

// IdentityService is the remote identity service.
type IdentityService interface {
	CheckSession(ctx context.Context) (protocol.Identity, error)
	SignUp(ctx context.Context, req protocol.SignUpRequest) (protocol.Identity, error)
	LogIn(ctx context.Context, req protocol.LogInRequest) (protocol.Identity, error)
	LogOut(ctx context.Context) error
	UpdateProfile(ctx context.Context, req protocol.UpdateProfileRequest) (protocol.Identity, error)
}

// Loading reports which auth operations are in flight.
type Loading struct {
	Checking        bool
	SigningUp       bool
	LoggingIn       bool
	UpdatingProfile bool
}

// Manager owns the current identity. It is the only writer of that state and
// announces every transition on the bus; it never talks to the connection
// directly.
type Manager struct {
	svc      IdentityService
	bus      *bus.Bus
	notifier notify.Notifier
	logger   *zap.Logger

	mu       sync.RWMutex
	identity *protocol.Identity
	loading  Loading
}

// NewManager creates a session manager. The checking flag starts raised
// because no session check has completed yet.
func NewManager(svc IdentityService, b *bus.Bus, notifier notify.Notifier, logger *zap.Logger) *Manager {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return &Manager{
		svc:      svc,
		bus:      b,
		notifier: notifier,
		logger:   logging.OrNop(logger),
		loading:  Loading{Checking: true},
	}
}

// Identity returns the current identity, if any.
func (m *Manager) Identity() (protocol.Identity, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.identity == nil {
		return protocol.Identity{}, false
	}
	return *m.identity, true
}

// Loading returns a snapshot of the loading flags.
func (m *Manager) Loading() Loading {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.loading
}

// CheckSession asks the identity service who we are. A failure means the
// visitor is anonymous; it is not reported to the user.
func (m *Manager) CheckSession(ctx context.Context) error {
	done := m.begin(func(l *Loading) *bool { return &l.Checking })
	defer done()

	id, err := m.svc.CheckSession(ctx)
	if err != nil {
		m.logger.Debug("session check failed, continuing anonymous", zap.Error(err))
		m.clearIdentity()
		return nil
	}
	m.setIdentity(id)
	return nil
}

// SignUp creates an account and makes it the current identity.
func (m *Manager) SignUp(ctx context.Context, req protocol.SignUpRequest) error {
	done := m.begin(func(l *Loading) *bool { return &l.SigningUp })
	defer done()

	if err := requireFields(req); err != nil {
		m.notifier.Error(notify.Message(err, "Signup failed"))
		return err
	}
	id, err := m.svc.SignUp(ctx, req)
	if err != nil {
		m.logger.Info("signup failed", zap.Error(err))
		m.notifier.Error(notify.Message(err, "Signup failed"))
		return err
	}
	m.setIdentity(id)
	m.notifier.Success("Account created successfully!")
	return nil
}

// LogIn authenticates with email and password.
func (m *Manager) LogIn(ctx context.Context, req protocol.LogInRequest) error {
	done := m.begin(func(l *Loading) *bool { return &l.LoggingIn })
	defer done()

	if err := requireFields(req); err != nil {
		m.notifier.Error(notify.Message(err, "Login failed"))
		return err
	}
	id, err := m.svc.LogIn(ctx, req)
	if err != nil {
		m.logger.Info("login failed", zap.Error(err))
		m.notifier.Error(notify.Message(err, "Login failed"))
		return err
	}
	m.setIdentity(id)
	m.notifier.Success("Logged in successfully")
	return nil
}

// LogOut ends the session. The local identity is cleared whatever the
// service answers; a transport error is logged and returned for information.
func (m *Manager) LogOut(ctx context.Context) error {
	err := m.svc.LogOut(ctx)
	m.clearIdentity()
	if err != nil {
		m.logger.Warn("logout request failed, local session cleared anyway", zap.Error(err))
		m.notifier.Error(notify.Message(err, "Logout failed"))
		return err
	}
	m.notifier.Success("Logged out successfully")
	return nil
}

// UpdateProfile replaces the identity with the service's updated copy. The
// hub connection is not touched.
func (m *Manager) UpdateProfile(ctx context.Context, req protocol.UpdateProfileRequest) error {
	done := m.begin(func(l *Loading) *bool { return &l.UpdatingProfile })
	defer done()

	id, err := m.svc.UpdateProfile(ctx, req)
	if err != nil {
		m.logger.Info("profile update failed", zap.Error(err))
		m.notifier.Error(notify.Message(err, "Profile update failed"))
		return err
	}
	m.mu.Lock()
	m.identity = &id
	m.mu.Unlock()
	m.publish(KindIdentityUpdated, id)
	m.notifier.Success("Profile updated successfully")
	return nil
}

// begin raises a loading flag and returns the function that lowers it.
func (m *Manager) begin(flag func(*Loading) *bool) func() {
	m.mu.Lock()
	*flag(&m.loading) = true
	m.mu.Unlock()
	return func() {
		m.mu.Lock()
		*flag(&m.loading) = false
		m.mu.Unlock()
	}
}

func (m *Manager) setIdentity(id protocol.Identity) {
	m.mu.Lock()
	m.identity = &id
	m.mu.Unlock()
	m.logger.Info("authenticated", zap.String("identity", id.ID))
	m.publish(KindAuthenticated, id)
}

func (m *Manager) clearIdentity() {
	m.mu.Lock()
	had := m.identity != nil
	m.identity = nil
	m.mu.Unlock()
	if had {
		m.logger.Info("unauthenticated")
		m.publish(KindUnauthenticated, nil)
	}
}

func (m *Manager) publish(kind string, payload any) {
	if m.bus != nil {
		m.bus.Publish(bus.NewEvent(kind, payload))
	}
}
