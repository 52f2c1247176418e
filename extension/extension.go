// Package extension provides the Forge extension adapter for vigil.
//
// It implements the forge.Extension interface so the queue monitor can be
// mounted into a Forge application: the monitor API is registered on the
// app router and failure listeners run between Start and Stop. The host
// app is responsible for authenticating the routes.
//
// Configuration can be provided programmatically via ExtOption functions
// or via YAML configuration files under "extensions.vigil" or "vigil" keys.
package extension

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/xraph/forge"

	"github.com/xraph/vigil"
	"github.com/xraph/vigil/api"
	"github.com/xraph/vigil/backoff"
	"github.com/xraph/vigil/discovery"
	"github.com/xraph/vigil/ext"
	mw "github.com/xraph/vigil/middleware"
	"github.com/xraph/vigil/monitor"
	"github.com/xraph/vigil/notify"
	"github.com/xraph/vigil/observability"
	"github.com/xraph/vigil/payload"
)

// ExtensionName is the name registered with Forge.
const ExtensionName = "vigil"

// ExtensionDescription is the human-readable description.
const ExtensionDescription = "Job queue monitor with failure notifications"

// ExtensionVersion is the semantic version.
const ExtensionVersion = "0.1.0"

var _ forge.Extension = (*Extension)(nil)

// listener is implemented by adapters that stream failures from their
// store instead of observing them in-process.
type listener interface {
	Listen(ctx context.Context) error
}

// pinger is implemented by adapters that can check their connection.
type pinger interface {
	Ping(ctx context.Context) error
}

// Extension adapts vigil as a Forge extension.
type Extension struct {
	*forge.BaseExtension

	config     Config
	registry   *discovery.Registry
	extensions *ext.Registry
	svc        *monitor.Service
	apiHandler *api.API
	logger     *slog.Logger

	backends []backendReg
	exts     []ext.Extension
	mws      []mw.Middleware
	mailer   notify.Mailer
	settings vigil.SettingsSource
	payloads *payload.Registry
	bo       backoff.Strategy

	mu          sync.Mutex
	cancel      context.CancelFunc
	unsubscribe func()
	wg          sync.WaitGroup
}

// New creates a vigil Forge extension with the given options.
func New(opts ...ExtOption) *Extension {
	e := &Extension{
		BaseExtension: forge.NewBaseExtension(ExtensionName, ExtensionVersion, ExtensionDescription),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Service returns the monitor service. Nil until Register is called.
func (e *Extension) Service() *monitor.Service { return e.svc }

// Registry returns the discovery registry. Nil until Register is called.
func (e *Extension) Registry() *discovery.Registry { return e.registry }

// API returns the API handler.
func (e *Extension) API() *api.API { return e.apiHandler }

// Register implements [forge.Extension]. It builds the registry, the
// monitor service and the notification trigger, and registers HTTP routes
// unless disabled.
func (e *Extension) Register(fapp forge.App) error {
	if err := e.BaseExtension.Register(fapp); err != nil {
		return err
	}

	if err := e.loadConfiguration(); err != nil {
		return err
	}

	return e.init(fapp)
}

func (e *Extension) init(fapp forge.App) error {
	if len(e.backends) == 0 {
		return errors.New("vigil: no backends configured")
	}

	logger := e.logger
	if logger == nil {
		logger = slog.Default()
	}

	settings := e.settings
	if settings == nil {
		s := e.config.Settings()
		if err := s.Validate(); err != nil {
			return fmt.Errorf("vigil: %w", err)
		}
		settings = vigil.StaticSettings(s)
	}

	mws := make([]mw.Middleware, 0, len(e.mws)+1)
	mws = append(mws, mw.Recover(logger))
	mws = append(mws, e.mws...)

	e.registry = discovery.New(
		discovery.WithLogger(logger),
		discovery.WithDefaultID(e.config.DefaultBackendID),
		discovery.WithMiddleware(mws...),
	)
	for _, b := range e.backends {
		e.registry.RegisterAdapter(b.id, b.adapter, b.opts...)
	}

	mailer := e.mailer
	if mailer == nil {
		mailer = &notify.LogMailer{Logger: logger}
	}

	e.extensions = ext.NewRegistry(logger)
	e.extensions.Register(notify.NewTrigger(settings, mailer,
		notify.WithLogger(logger),
		notify.WithConfig(e.config.Vigil()),
	))
	e.extensions.Register(observability.NewMetricsExtension())
	for _, x := range e.exts {
		e.extensions.Register(x)
	}

	svcOpts := []monitor.Option{
		monitor.WithLogger(logger),
		monitor.WithExtensions(e.extensions),
	}
	if e.payloads != nil {
		svcOpts = append(svcOpts, monitor.WithPayloads(e.payloads))
	}
	e.svc = monitor.New(e.registry, settings, svcOpts...)

	e.apiHandler = api.New(e.svc, fapp.Router(), api.WithLogger(logger))

	if !e.config.DisableRoutes {
		e.apiHandler.RegisterRoutes(fapp.Router().Group(e.config.BasePath))
	}

	return nil
}

// Start subscribes the notification pipeline to every backend and starts
// supervised failure listeners for adapters that stream from their store.
func (e *Extension) Start(ctx context.Context) error {
	if e.svc == nil {
		return errors.New("vigil: extension not initialized")
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cancel != nil {
		return nil
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	e.cancel = cancel
	e.unsubscribe = e.registry.Subscribe(runCtx, e.extensions.EmitJobFailed)

	bo := e.bo
	if bo == nil {
		bo = backoff.DefaultStrategy()
	}
	// Several backends may share one adapter. Each stream is listened to
	// once; the registry routes events to backends by channel.
	listening := make(map[listener]struct{}, len(e.backends))
	for _, b := range e.backends {
		l, ok := b.adapter.(listener)
		if !ok {
			continue
		}
		if _, dup := listening[l]; dup {
			continue
		}
		listening[l] = struct{}{}
		e.wg.Add(1)
		go func(id string, l listener) {
			defer e.wg.Done()
			_ = backoff.Supervise(runCtx, bo, l.Listen, func(attempt int, err error, delay time.Duration) {
				e.Logger().Warn("vigil: failure listener restarting",
					forge.F("backend", id),
					forge.F("attempt", attempt),
					forge.F("delay", delay.String()),
					forge.F("error", fmt.Sprint(err)),
				)
			})
		}(b.id, l)
	}

	e.MarkStarted()
	return nil
}

// Stop cancels the failure listeners and waits for them to return, or for
// ctx to expire.
func (e *Extension) Stop(ctx context.Context) error {
	e.mu.Lock()
	cancel, unsubscribe := e.cancel, e.unsubscribe
	e.cancel, e.unsubscribe = nil, nil
	e.mu.Unlock()

	if cancel == nil {
		e.MarkStopped()
		return nil
	}

	cancel()
	unsubscribe()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
	case <-ctx.Done():
		err = fmt.Errorf("vigil: stop: %w", ctx.Err())
	}

	e.extensions.EmitShutdown(ctx)
	e.MarkStopped()
	return err
}

// Health implements [forge.Extension]. It pings every discovered backend
// whose adapter supports it.
func (e *Extension) Health(ctx context.Context) error {
	if e.svc == nil {
		return errors.New("vigil: extension not initialized")
	}

	var errs []error
	for _, b := range e.backends {
		if b.id == e.registry.DefaultID() {
			continue
		}
		p, ok := b.adapter.(pinger)
		if !ok {
			continue
		}
		if err := p.Ping(ctx); err != nil {
			errs = append(errs, fmt.Errorf("vigil: backend %q: %w", b.id, err))
		}
	}
	return errors.Join(errs...)
}

// Handler returns the HTTP handler for all API routes.
// Convenience for standalone use outside Forge.
func (e *Extension) Handler() http.Handler {
	if e.apiHandler == nil {
		return http.NotFoundHandler()
	}
	return e.apiHandler.Handler()
}

// RegisterRoutes registers all monitor API routes into a Forge router.
func (e *Extension) RegisterRoutes(router forge.Router) {
	if e.apiHandler != nil {
		e.apiHandler.RegisterRoutes(router)
	}
}

// ──────────────────────────────────────────────────
// Config loading
// ──────────────────────────────────────────────────

func (e *Extension) loadConfiguration() error {
	programmaticConfig := e.config

	fileConfig, configLoaded := e.tryLoadFromConfigFile()

	if !configLoaded {
		if programmaticConfig.RequireConfig {
			return errors.New("vigil: configuration is required but not found in config files; " +
				"ensure 'extensions.vigil' or 'vigil' key exists in your config")
		}
		e.config = e.mergeWithDefaults(programmaticConfig)
	} else {
		e.config = e.mergeConfigurations(fileConfig, programmaticConfig)
	}

	e.Logger().Debug("vigil: configuration loaded",
		forge.F("disable_routes", e.config.DisableRoutes),
		forge.F("base_path", e.config.BasePath),
		forge.F("default_backend_id", e.config.DefaultBackendID),
		forge.F("notifications", e.config.EnableEmailNotifications),
	)

	return nil
}

func (e *Extension) tryLoadFromConfigFile() (Config, bool) {
	cm := e.App().Config()

	for _, key := range []string{"extensions.vigil", "vigil"} {
		if !cm.IsSet(key) {
			continue
		}
		var cfg Config
		if err := cm.Bind(key, &cfg); err == nil {
			e.Logger().Debug("vigil: loaded config from file", forge.F("key", key))
			return cfg, true
		}
		e.Logger().Warn("vigil: failed to bind config",
			forge.F("key", key),
			forge.F("error", "bind failed"),
		)
	}

	return Config{}, false
}

// mergeWithDefaults fills zero-valued fields with defaults.
func (e *Extension) mergeWithDefaults(cfg Config) Config {
	defaults := DefaultConfig()
	if cfg.BasePath == "" {
		cfg.BasePath = defaults.BasePath
	}
	if cfg.DefaultBackendID == "" {
		cfg.DefaultBackendID = defaults.DefaultBackendID
	}
	if cfg.MonitorURL == "" {
		cfg.MonitorURL = defaults.MonitorURL
	}
	if cfg.RefreshInterval == 0 {
		cfg.RefreshInterval = defaults.RefreshInterval
	}
	if cfg.JobsPerPage == 0 {
		cfg.JobsPerPage = defaults.JobsPerPage
	}
	return cfg
}

// mergeConfigurations merges YAML config with programmatic options.
// YAML takes precedence; programmatic values fill gaps.
func (e *Extension) mergeConfigurations(yamlConfig, programmaticConfig Config) Config {
	if programmaticConfig.DisableRoutes {
		yamlConfig.DisableRoutes = true
	}
	if programmaticConfig.EnableEmailNotifications {
		yamlConfig.EnableEmailNotifications = true
	}

	if yamlConfig.BasePath == "" {
		yamlConfig.BasePath = programmaticConfig.BasePath
	}
	if yamlConfig.DefaultBackendID == "" {
		yamlConfig.DefaultBackendID = programmaticConfig.DefaultBackendID
	}
	if yamlConfig.MonitorURL == "" {
		yamlConfig.MonitorURL = programmaticConfig.MonitorURL
	}
	if yamlConfig.NotificationEmail == "" {
		yamlConfig.NotificationEmail = programmaticConfig.NotificationEmail
	}
	if yamlConfig.RefreshInterval == 0 {
		yamlConfig.RefreshInterval = programmaticConfig.RefreshInterval
	}
	if yamlConfig.JobsPerPage == 0 {
		yamlConfig.JobsPerPage = programmaticConfig.JobsPerPage
	}

	return e.mergeWithDefaults(yamlConfig)
}
