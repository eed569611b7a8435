// Package app wires the client-side managers for one profile: the REST
// client, the event bus, the session, realtime and conversation managers
// and the flash notifier every front end reads from.
package app

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/matheus3301/chatsync/internal/bus"
	"github.com/matheus3301/chatsync/internal/client"
	"github.com/matheus3301/chatsync/internal/conversation"
	"github.com/matheus3301/chatsync/internal/logging"
	"github.com/matheus3301/chatsync/internal/notify"
	"github.com/matheus3301/chatsync/internal/protocol"
	"github.com/matheus3301/chatsync/internal/realtime"
	"github.com/matheus3301/chatsync/internal/session"
	"go.uber.org/zap"
	"google.golang.org/grpc/backoff"
)

// Options configures an App.
type Options struct {
	// BaseURL is the service root, e.g. http://localhost:5001.
	BaseURL string
	// TokenPath persists the session token across runs. Empty keeps it in
	// memory only.
	TokenPath string
	// Backoff overrides realtime.DefaultBackoff.
	Backoff *backoff.Config
	Logger  *zap.Logger
}

// App holds the wired managers. Front ends read state from the managers and
// follow changes through Bus.
type App struct {
	Client       *client.Client
	Bus          *bus.Bus
	Flash        *notify.Flash
	Session      *session.Manager
	Realtime     *realtime.Manager
	Conversation *conversation.Manager

	tokenPath string
	logger    *zap.Logger
	stops     []func()
}

// New builds the managers. Nothing talks to the network until Start.
func New(opts Options) (*App, error) {
	logger := logging.OrNop(opts.Logger)

	c, err := client.New(opts.BaseURL, client.WithLogger(logger.Named("client")))
	if err != nil {
		return nil, err
	}
	if opts.TokenPath != "" {
		token, err := loadToken(opts.TokenPath)
		if err != nil {
			return nil, err
		}
		c.SetSessionToken(token)
	}

	b := bus.New()
	flash := notify.NewFlash()

	rtOpts := []realtime.Option{realtime.WithLogger(logger.Named("realtime"))}
	if opts.Backoff != nil {
		rtOpts = append(rtOpts, realtime.WithBackoff(*opts.Backoff))
	}
	rt := realtime.NewManager(&realtime.WebSocketDialer{BaseURL: c.BaseURL(), SessionToken: c.SessionToken}, b, rtOpts...)

	return &App{
		Client:       c,
		Bus:          b,
		Flash:        flash,
		Session:      session.NewManager(c, b, flash, logger.Named("session")),
		Realtime:     rt,
		Conversation: conversation.NewManager(c, conversation.FromRealtime(rt), b, flash, logger.Named("conversation")),
		tokenPath:    opts.TokenPath,
		logger:       logger,
	}, nil
}

// Start binds the managers to each other through the bus. Call it once
// before the first session operation.
func (a *App) Start() {
	a.stops = append(a.stops,
		a.Realtime.Start(),
		a.Conversation.Start(),
		a.Bus.Handle("session.", a.persistToken),
	)
}

// Resume checks the stored session and reports the identity it belongs
// to. A rejected or missing token leaves the app anonymous; the stale token
// is overwritten by the next login.
func (a *App) Resume(ctx context.Context) (protocol.Identity, bool) {
	_ = a.Session.CheckSession(ctx)
	return a.Session.Identity()
}

// Close unbinds the managers and closes the hub connection. The stored
// session token is kept so the next run resumes the session.
func (a *App) Close() {
	for i := len(a.stops) - 1; i >= 0; i-- {
		a.stops[i]()
	}
	a.stops = nil
	a.Realtime.Disconnect()
}

func (a *App) persistToken(evt bus.Event) {
	if a.tokenPath == "" {
		return
	}
	var err error
	switch evt.Kind {
	case session.KindAuthenticated, session.KindIdentityUpdated:
		err = saveToken(a.tokenPath, a.Client.SessionToken())
	case session.KindUnauthenticated:
		err = os.Remove(a.tokenPath)
		if errors.Is(err, fs.ErrNotExist) {
			err = nil
		}
	}
	if err != nil {
		a.logger.Warn("session token not persisted", zap.String("path", a.tokenPath), zap.Error(err))
	}
}

func loadToken(path string) (string, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read session token: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

func saveToken(path, token string) error {
	if token == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(token+"\n"), 0600)
}
