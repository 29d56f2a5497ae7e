// Package app wires all voxcal subsystems into a running application.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run serves the voice session loop alongside the health and
// metrics endpoint, and Shutdown tears everything down in reverse order.
//
// For testing, inject mock implementations via functional options
// (WithProvider, WithPlatform, etc.). When an option is not provided, New
// creates real implementations from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/MrWong99/voxcal/internal/booking"
	"github.com/MrWong99/voxcal/internal/config"
	"github.com/MrWong99/voxcal/internal/funcs"
	"github.com/MrWong99/voxcal/internal/funcs/bookevent"
	"github.com/MrWong99/voxcal/internal/funcs/endsession"
	"github.com/MrWong99/voxcal/internal/health"
	"github.com/MrWong99/voxcal/internal/observe"
	"github.com/MrWong99/voxcal/pkg/audio"
	"github.com/MrWong99/voxcal/pkg/audio/portaudio"
	"github.com/MrWong99/voxcal/pkg/calendar"
	"github.com/MrWong99/voxcal/pkg/calendar/google"
	"github.com/MrWong99/voxcal/pkg/ledger"
	"github.com/MrWong99/voxcal/pkg/ledger/postgres"
	"github.com/MrWong99/voxcal/pkg/provider/voice"
	"github.com/MrWong99/voxcal/pkg/provider/voice/deepgram"
)

// serverShutdownTimeout bounds the health server drain when Run exits.
const serverShutdownTimeout = 5 * time.Second

// App owns all subsystem lifetimes and orchestrates the voxcal booking
// assistant.
type App struct {
	cfg      *config.Config
	cfgPath  string
	logLevel *slog.LevelVar

	// Subsystems initialised in New and torn down in Shutdown.
	metrics  *observe.Metrics
	creds    calendar.CredentialSource
	cal      calendar.Writer
	rec      ledger.Recorder
	svc      *booking.Service
	registry *funcs.Registry
	provider voice.Provider
	platform audio.Platform
	httpSrv  *health.Server
	watcher  *config.Watcher
	manager  *SessionManager

	// closers are called in reverse order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithProvider injects a voice agent provider instead of creating one from
// the config and the API key environment variable.
func WithProvider(p voice.Provider) Option {
	return func(a *App) { a.provider = p }
}

// WithPlatform injects an audio platform instead of initialising PortAudio.
func WithPlatform(p audio.Platform) Option {
	return func(a *App) { a.platform = p }
}

// WithCalendar injects the credential source and event writer instead of
// creating a Google Calendar client from the token file.
func WithCalendar(creds calendar.CredentialSource, w calendar.Writer) Option {
	return func(a *App) {
		a.creds = creds
		a.cal = w
	}
}

// WithRecorder injects a booking ledger instead of connecting to the
// configured PostgreSQL DSN.
func WithRecorder(r ledger.Recorder) Option {
	return func(a *App) { a.rec = r }
}

// WithMetrics overrides the metrics instance. Defaults to
// [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithLogLevel hands the process log level to the app so config reloads can
// adjust it.
func WithLogLevel(lv *slog.LevelVar) Option {
	return func(a *App) { a.logLevel = lv }
}

// WithConfigFile enables hot reloading of the given config file while Run is
// active.
func WithConfigFile(path string) Option {
	return func(a *App) { a.cfgPath = path }
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New creates an App by wiring all subsystems together. Use Option functions
// to inject test doubles for any subsystem.
//
// New performs all initialisation synchronously: calendar client and
// credential probe, ledger connection, booking service and function registry,
// agent provider, audio platform, and the health server. A missing Google
// token is a warning, not an error: the assistant starts and refuses
// bookings until the token appears.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	a := &App{cfg: cfg}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	// ── 1. Calendar client ───────────────────────────────────────────────
	a.initCalendar()

	// ── 2. Booking ledger ────────────────────────────────────────────────
	if err := a.initLedger(ctx); err != nil {
		return nil, fmt.Errorf("app: init ledger: %w", err)
	}

	// ── 3. Booking service + agent functions ─────────────────────────────
	if err := a.initBooking(); err != nil {
		return nil, fmt.Errorf("app: init booking: %w", err)
	}

	// ── 4. Voice agent provider ──────────────────────────────────────────
	if err := a.initProvider(); err != nil {
		return nil, fmt.Errorf("app: init agent provider: %w", err)
	}

	// ── 5. Audio platform ────────────────────────────────────────────────
	if err := a.initPlatform(); err != nil {
		return nil, fmt.Errorf("app: init audio platform: %w", err)
	}

	// ── 6. Health + metrics server ───────────────────────────────────────
	a.initServer()

	// ── 7. Session manager ───────────────────────────────────────────────
	a.manager = NewSessionManager(SessionManagerConfig{
		Config:   cfg,
		Provider: a.provider,
		Platform: a.platform,
		Registry: a.registry,
		Booking:  a.svc,
		Metrics:  a.metrics,
	})

	return a, nil
}

// ─── Init helpers ────────────────────────────────────────────────────────────

// initCalendar sets up the Google Calendar client and probes the token once.
func (a *App) initCalendar() {
	if a.creds == nil || a.cal == nil {
		client := google.New(a.cfg.Calendar.TokenFile)
		if a.creds == nil {
			a.creds = client
		}
		if a.cal == nil {
			a.cal = client
		}
	}

	if err := a.creds.Check(); err != nil {
		slog.Warn("Google Calendar credentials not usable, bookings will be refused until fixed", "error", err)
	}
}

// initLedger connects the PostgreSQL booking ledger when a DSN is configured.
// Without one, bookings are simply not recorded.
func (a *App) initLedger(ctx context.Context) error {
	if a.rec != nil {
		return nil
	}
	dsn := a.cfg.Ledger.DSN
	if dsn == "" {
		a.rec = ledger.Noop{}
		return nil
	}

	store, err := postgres.New(ctx, dsn)
	if err != nil {
		return err
	}
	a.rec = store
	a.closers = append(a.closers, func() error {
		store.Close()
		return nil
	})
	slog.Info("booking ledger connected")
	return nil
}

// initBooking creates the booking service and registers the agent functions.
func (a *App) initBooking() error {
	a.svc = booking.New(a.creds, a.cal,
		booking.WithRecorder(a.rec),
		booking.WithMetrics(a.metrics),
		booking.WithCalendarID(a.cfg.Calendar.CalendarID),
		booking.WithTimeZone(a.cfg.Calendar.TimeZone),
	)

	a.registry = funcs.NewRegistry(funcs.WithMetrics(a.metrics))
	if err := a.registry.Register(bookevent.New(a.svc)); err != nil {
		return err
	}
	if err := a.registry.Register(endsession.New(a.svc)); err != nil {
		return err
	}
	return nil
}

// initProvider creates the voice agent provider from the configured endpoint
// and the API key environment variable.
func (a *App) initProvider() error {
	if a.provider != nil {
		return nil
	}
	key := os.Getenv(a.cfg.Agent.APIKeyEnv)
	if key == "" {
		return fmt.Errorf("environment variable %s is not set; it must hold the voice agent API key", a.cfg.Agent.APIKeyEnv)
	}

	p, err := deepgram.New(key, deepgram.WithEndpoint(a.cfg.Agent.URL))
	if err != nil {
		return err
	}
	a.provider = p
	return nil
}

// initPlatform initialises PortAudio for the host's default devices.
func (a *App) initPlatform() error {
	if a.platform != nil {
		return nil
	}
	p, err := portaudio.New()
	if err != nil {
		return err
	}
	a.platform = p
	a.closers = append(a.closers, p.Close)
	return nil
}

// initServer assembles the health server. Readiness mirrors bookability: the
// calendar token check always, the ledger ping when a real ledger is wired.
func (a *App) initServer() {
	checkers := []health.Checker{health.CalendarCheck(a.creds)}
	if p, ok := a.rec.(health.Pinger); ok {
		checkers = append(checkers, health.LedgerCheck(p))
	}
	a.httpSrv = health.NewServer(a.cfg.Server.ListenAddr, observe.Middleware(a.metrics), checkers...)
}

// ─── Run ─────────────────────────────────────────────────────────────────────

// Run starts the health server and the voice session loop and blocks until
// the conversation ends (returns nil), a subsystem fails fatally, or ctx is
// cancelled (returns the context error).
//
// When a config file path was provided, Run also watches it and applies
// prompt, greeting, speak-model, and log-level changes without a restart.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	serveErr, err := a.httpSrv.Start()
	if err != nil {
		return fmt.Errorf("app: start health server: %w", err)
	}
	slog.Info("health server listening", "addr", a.httpSrv.Addr())
	defer func() {
		sctx, scancel := context.WithTimeout(context.Background(), serverShutdownTimeout)
		defer scancel()
		if err := a.httpSrv.Shutdown(sctx); err != nil {
			slog.Warn("health server shutdown error", "error", err)
		}
	}()

	if a.cfgPath != "" {
		w, err := config.NewWatcher(a.cfgPath, a.applyConfigChange)
		if err != nil {
			slog.Warn("config watcher disabled", "path", a.cfgPath, "error", err)
		} else {
			a.watcher = w
			defer w.Stop()
		}
	}

	slog.Info("voxcal running",
		"agent_url", a.cfg.Agent.URL,
		"calendar_id", a.cfg.Calendar.CalendarID,
		"time_zone", a.cfg.Calendar.TimeZone,
	)

	runErr := make(chan error, 1)
	go func() { runErr <- a.manager.Run(ctx) }()

	select {
	case err := <-serveErr:
		cancel()
		<-runErr
		if err != nil {
			return fmt.Errorf("app: health server failed: %w", err)
		}
		return errors.New("app: health server stopped")
	case err := <-runErr:
		return err
	}
}

// applyConfigChange is the watcher callback: it maps a config diff onto the
// live process.
func (a *App) applyConfigChange(old, new *config.Config) {
	d := config.Diff(old, new)
	if !d.Changed() {
		return
	}

	if d.LogLevelChanged && a.logLevel != nil {
		a.logLevel.Set(d.NewLogLevel.Level())
		slog.Info("log level changed", "level", string(d.NewLogLevel))
	}

	a.manager.ApplyConfig(d, new)

	if d.RestartRequired {
		slog.Warn("config change outside the hot-reloadable set, restart required to apply it")
	}
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown tears down all subsystems in reverse-init order. It respects the
// context deadline: if ctx expires before all closers finish, remaining
// closers are skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))

		for i := len(a.closers) - 1; i >= 0; i-- {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", i+1)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := a.closers[i](); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}

		slog.Info("shutdown complete")
	})
	return shutdownErr
}
