package console

import (
	"context"
	"errors"

	"github.com/matheus3301/wppcrm/internal/api"
	"github.com/matheus3301/wppcrm/internal/bus"
	"github.com/matheus3301/wppcrm/internal/config"
	"github.com/matheus3301/wppcrm/internal/lock"
	"github.com/matheus3301/wppcrm/internal/logging"
	"github.com/matheus3301/wppcrm/internal/observability"
	"github.com/matheus3301/wppcrm/internal/outbox"
	"github.com/matheus3301/wppcrm/internal/realtime"
	"github.com/matheus3301/wppcrm/internal/session"
	"github.com/matheus3301/wppcrm/internal/status"
	"github.com/matheus3301/wppcrm/internal/store"
	intsync "github.com/matheus3301/wppcrm/internal/sync"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

// Params holds the resolved session configuration passed to the fx module.
type Params struct {
	SessionName string
	// Binary names the log file, e.g. "crmtui".
	Binary string
	// Config overrides loading ~/.wppcrm/config.toml. Used by tests.
	Config *config.Config
	// Exclusive takes the session lock. The interactive console holds it;
	// one-shot commands do not.
	Exclusive bool
	// AutoConnect opens the realtime socket on start when credentials exist.
	AutoConnect bool
	// Stderr tees log output to stderr.
	Stderr bool
}

// App is the composed console handed to the binaries.
type App struct {
	Session  string
	Config   *config.Config
	Logger   *zap.Logger
	Bus      *bus.Bus
	Machine  *status.Machine
	Store    *store.DB
	API      *api.Client
	Realtime *realtime.Client
	Engine   *intsync.Engine
	Sender   *outbox.Sender
}

// Module returns the fx module for the console, composing all providers and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("console",
		fx.Supply(p),
		fx.Provide(
			provideConfig,
			provideLogger,
			provideBus,
			provideStateMachine,
			provideLock,
			provideStore,
			provideAPIClient,
			provideRealtime,
			provideTimeline,
			provideContactBook,
			provideSyncEngine,
			provideSender,
			provideMetrics,
			provideApp,
		),
		fx.Invoke(registerLifecycle),
	)
}

// FxLogger routes fx's own lifecycle events into the session log instead of
// stderr, which the interactive console owns.
func FxLogger() fx.Option {
	return fx.WithLogger(func(logger *zap.Logger) fxevent.Logger {
		return &fxevent.ZapLogger{Logger: logger.Named("fx")}
	})
}

func provideConfig(p Params) (*config.Config, error) {
	if p.Config != nil {
		return p.Config, nil
	}
	return config.LoadOrDefault(session.ConfigPath())
}

func provideLogger(p Params, cfg *config.Config) (*zap.Logger, error) {
	binary := p.Binary
	if binary == "" {
		binary = "crmtui"
	}
	return logging.New(session.LogPath(p.SessionName, binary), p.SessionName, logging.Options{
		Level:  cfg.LogLevel,
		Stderr: p.Stderr,
	})
}

func provideBus() *bus.Bus {
	return bus.New(bus.WithDropHook(func(e bus.Event) {
		observability.IncEventDropped(e.Kind)
	}))
}

func provideStateMachine(b *bus.Bus) *status.Machine {
	return status.NewMachine(b)
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	if err := session.EnsureDir(p.SessionName); err != nil {
		return nil, err
	}
	if !p.Exclusive {
		return nil, nil
	}
	logger.Info("acquiring session lock", zap.String("session", p.SessionName))
	l, err := lock.Acquire(session.Dir(p.SessionName), p.Binary)
	if err != nil {
		return nil, err
	}
	logger.Info("session lock acquired")
	return l, nil
}

func provideStore(p Params, logger *zap.Logger) (*store.DB, error) {
	dbPath := session.DBPath(p.SessionName)
	db, err := store.Open(dbPath)
	if err != nil {
		return nil, err
	}
	result, err := db.Migrate()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if result.Changed() {
		logger.Info("migrations applied", zap.Uint("from", result.From), zap.Uint("version", result.Version))
	} else {
		logger.Debug("migrations up to date", zap.Uint("version", result.Version))
	}
	logger.Info("store initialized", zap.String("path", dbPath))
	return db, nil
}

func provideAPIClient(cfg *config.Config, db *store.DB, b *bus.Bus, logger *zap.Logger) *api.Client {
	return api.NewClient(api.Options{
		BaseURL:   cfg.APIBaseURL,
		Timeout:   cfg.RequestTimeout.Duration,
		RateLimit: cfg.RateLimit,
		RateBurst: cfg.RateBurst,
		OnAuthFailed: func() {
			b.Publish(bus.NewEvent(bus.KindAuthExpired, nil))
		},
	}, db, logger.Named("api"))
}

func provideRealtime(cfg *config.Config, client *api.Client, m *status.Machine, logger *zap.Logger) *realtime.Client {
	return realtime.NewClient(realtime.Options{
		URL:         cfg.WSURL,
		BaseDelay:   cfg.ReconnectBaseDelay.Duration,
		MaxAttempts: cfg.MaxReconnectAttempts,
	}, client.AccessToken, m, logger.Named("realtime"))
}

func provideTimeline(cfg *config.Config, client *api.Client, logger *zap.Logger) *intsync.Timeline {
	return intsync.NewTimeline(client, cfg.PageSize, cfg.RequestTimeout.Duration, logger.Named("timeline"))
}

func provideContactBook(cfg *config.Config, client *api.Client) *intsync.ContactBook {
	return intsync.NewContactBook(client, cfg.ContactsPageSize, cfg.RequestTimeout.Duration)
}

func provideSyncEngine(rt *realtime.Client, tl *intsync.Timeline, book *intsync.ContactBook, db *store.DB, logger *zap.Logger) *intsync.Engine {
	return intsync.NewEngine(rt, tl, book, db, logger.Named("sync"))
}

func provideSender(client *api.Client, db *store.DB, tl *intsync.Timeline, b *bus.Bus, logger *zap.Logger) *outbox.Sender {
	return outbox.NewSender(client, db, tl, b, logger.Named("outbox"))
}

func provideMetrics(cfg *config.Config, logger *zap.Logger) *observability.Server {
	return observability.NewServer(cfg.MetricsAddr, logger)
}

type appDeps struct {
	fx.In

	Params   Params
	Config   *config.Config
	Logger   *zap.Logger
	Bus      *bus.Bus
	Machine  *status.Machine
	Store    *store.DB
	API      *api.Client
	Realtime *realtime.Client
	Engine   *intsync.Engine
	Sender   *outbox.Sender
}

func provideApp(d appDeps) *App {
	return &App{
		Session:  d.Params.SessionName,
		Config:   d.Config,
		Logger:   d.Logger,
		Bus:      d.Bus,
		Machine:  d.Machine,
		Store:    d.Store,
		API:      d.API,
		Realtime: d.Realtime,
		Engine:   d.Engine,
		Sender:   d.Sender,
	}
}

// Connect opens the realtime socket for the current credentials.
func (a *App) Connect(ctx context.Context) error {
	return a.Realtime.Connect(ctx)
}

func registerLifecycle(lc fx.Lifecycle, p Params, app *App, lk *lock.Lock, metrics *observability.Server) {
	logger := app.Logger
	authDone := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			if err := metrics.Start(); err != nil {
				logger.Warn("metrics listener disabled", zap.Error(err))
			}

			// Start sync engine (subscribes to realtime events).
			app.Engine.Start(context.Background())

			// A failed refresh ends the session: drop the socket.
			authCh, unsub := app.Bus.Subscribe(bus.KindAuthExpired, 4)
			go func() {
				defer unsub()
				for {
					select {
					case <-authCh:
						logger.Warn("session expired, disconnecting realtime")
						app.Realtime.Disconnect()
						_ = app.Machine.Transition(status.AuthRequired)
					case <-authDone:
						return
					}
				}
			}()

			if !app.API.HasCredentials() {
				logger.Info("no credentials found, auth required")
				_ = app.Machine.Transition(status.AuthRequired)
				return nil
			}
			if p.AutoConnect {
				if err := app.Realtime.Connect(context.Background()); err != nil && !errors.Is(err, realtime.ErrNoToken) {
					logger.Error("auto-connect failed", zap.Error(err))
				}
			}
			return nil
		},
		OnStop: func(ctx context.Context) error {
			close(authDone)
			app.Realtime.Disconnect()
			app.Engine.Stop()
			if err := metrics.Stop(ctx); err != nil {
				logger.Warn("error stopping metrics", zap.Error(err))
			}
			if err := app.Store.Close(); err != nil {
				logger.Warn("error closing store", zap.Error(err))
			}
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("console stopped")
			_ = logger.Sync()
			return nil
		},
	})
}
