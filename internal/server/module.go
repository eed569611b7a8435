package server

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/matheus3301/chatsync/internal/api"
	"github.com/matheus3301/chatsync/internal/config"
	"github.com/matheus3301/chatsync/internal/hub"
	"github.com/matheus3301/chatsync/internal/lock"
	"github.com/matheus3301/chatsync/internal/logging"
	"github.com/matheus3301/chatsync/internal/session"
	"github.com/matheus3301/chatsync/internal/store"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Params holds the resolved daemon configuration passed to the fx module.
type Params struct {
	Server config.Server
	// Console mirrors the log file on stderr.
	Console bool
	Debug   bool
}

// DataDir returns the configured data directory or the default one.
func (p Params) DataDir() string {
	if p.Server.DataDir != "" {
		return p.Server.DataDir
	}
	return session.ServerDataDir()
}

// Module returns the fx module for chatd, composing all providers and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("server",
		fx.Supply(p),
		fx.Provide(
			provideLogger,
			provideLock,
			provideStore,
			provideTokens,
			providePresence,
			provideHub,
			provideAPI,
			NewHTTPServer,
			NewHealthServer,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideLogger(p Params) (*zap.Logger, error) {
	return logging.New(logging.Options{
		Path:      session.ServerLogPath(p.DataDir()),
		Component: "chatd",
		Console:   p.Console,
		Debug:     p.Debug,
	})
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	logger.Info("acquiring data directory lock", zap.String("dir", p.DataDir()))
	l, err := lock.Acquire(p.DataDir())
	if err != nil {
		return nil, err
	}
	logger.Info("data directory lock acquired")
	return l, nil
}

// provideStore depends on the lock so no second daemon migrates a database
// this one is serving.
func provideStore(p Params, _ *lock.Lock, logger *zap.Logger) (*store.DB, error) {
	dbPath := session.ServerDBPath(p.DataDir())
	db, err := store.Open(dbPath)
	if err != nil {
		return nil, err
	}
	from, err := db.SchemaVersion()
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", dbPath, err)
	}
	result, err := db.Migrate()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if result.Changed {
		logger.Info("migrations applied", zap.Uint("from", from), zap.Uint("version", result.Version))
	} else {
		logger.Info("migrations up to date", zap.Uint("version", result.Version))
	}
	logger.Info("store initialized", zap.String("path", dbPath))
	return db, nil
}

func provideTokens(p Params, logger *zap.Logger) (*api.Tokens, error) {
	secret := p.Server.JWTSecret
	if secret == "" {
		buf := make([]byte, 32)
		if _, err := rand.Read(buf); err != nil {
			return nil, err
		}
		secret = hex.EncodeToString(buf)
		logger.Warn("jwt_secret not configured, sessions will not survive a restart")
	}
	return api.NewTokens(secret, api.DefaultTokenTTL)
}

// providePresence returns nil when no Redis URL is configured.
func providePresence(p Params, logger *zap.Logger) (*hub.RedisPresence, error) {
	if p.Server.RedisURL == "" {
		return nil, nil
	}
	rp, err := hub.NewRedisPresence(context.Background(), p.Server.RedisURL)
	if err != nil {
		return nil, err
	}
	logger.Info("presence mirror enabled", zap.String("key", hub.DefaultPresenceKey))
	return rp, nil
}

func provideHub(p Params, rp *hub.RedisPresence, logger *zap.Logger) *hub.Hub {
	opts := hub.Options{
		AllowedOrigins: p.Server.AllowedOrigins,
		Logger:         logger.Named("hub"),
	}
	if rp != nil {
		opts.Mirror = rp
	}
	return hub.New(opts)
}

func provideAPI(p Params, db *store.DB, tokens *api.Tokens, h *hub.Hub, logger *zap.Logger) *api.Server {
	return api.NewServer(api.Options{
		DB:             db,
		Tokens:         tokens,
		Hub:            h,
		Realtime:       h,
		AllowedOrigins: p.Server.AllowedOrigins,
		Production:     p.Server.Production,
		StaticDir:      p.Server.StaticDir,
		Logger:         logger.Named("api"),
	})
}

func registerLifecycle(
	lc fx.Lifecycle,
	httpSrv *HTTPServer,
	health *HealthServer,
	h *hub.Hub,
	rp *hub.RedisPresence,
	db *store.DB,
	lk *lock.Lock,
	logger *zap.Logger,
) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			go func() {
				if err := httpSrv.Start(); err != nil {
					logger.Error("http server error", zap.Error(err))
				}
			}()
			if health != nil {
				go func() {
					if err := health.Start(); err != nil {
						logger.Error("grpc server error", zap.Error(err))
					}
				}()
				health.SetServing(true)
			}
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if health != nil {
				health.SetServing(false)
			}
			var errs []error
			if err := httpSrv.Stop(ctx); err != nil {
				errs = append(errs, err)
			}
			h.Close()
			if health != nil {
				health.Stop()
			}
			if rp != nil {
				if err := rp.Close(); err != nil {
					logger.Warn("error closing presence mirror", zap.Error(err))
				}
			}
			if err := db.Close(); err != nil {
				errs = append(errs, err)
			}
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("daemon stopped")
			_ = logger.Sync()
			return errors.Join(errs...)
		},
	})
}
