package app

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/km-arc/go-ioc/framework/config"
	"github.com/km-arc/go-ioc/framework/container"
	"github.com/km-arc/go-ioc/framework/diagnostics"
	"github.com/km-arc/go-ioc/framework/providers"
	"github.com/km-arc/go-ioc/framework/routing"
)

// ShutdownTimeout bounds graceful shutdown in Run and Serve.
const ShutdownTimeout = 10 * time.Second

// Application is the top-level application. It embeds the Container and
// ProviderRegistry so user code can call app.Register() and app.Verify()
// directly.
//
//	cfg := config.Load()
//	application, err := app.New(cfg)
//	application.Register(ctx, &events.Provider{})
//	application.Run(ctx)
type Application struct {
	*container.Container
	Providers *container.ProviderRegistry

	config   *config.Config
	logger   *zap.Logger
	registry *prometheus.Registry
	routing  *providers.RoutingServiceProvider
}

// Option configures an Application.
type Option func(*Application)

// WithLogger replaces the logger built from cfg.Log.
func WithLogger(l *zap.Logger) Option {
	return func(a *Application) { a.logger = l }
}

// WithRegistry replaces the Prometheus registry the container reports to.
func WithRegistry(r *prometheus.Registry) Option {
	return func(a *Application) { a.registry = r }
}

// New validates cfg, creates the container and registers the framework core
// providers.
func New(cfg *config.Config, opts ...Option) (*Application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	a := &Application{config: cfg}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		l, err := cfg.Log.Logger()
		if err != nil {
			return nil, err
		}
		a.logger = l
	}
	if a.registry == nil {
		a.registry = prometheus.NewRegistry()
	}

	copts, err := cfg.Container.Options()
	if err != nil {
		return nil, err
	}
	copts = append(copts,
		container.WithLogger(a.logger),
		container.WithMetrics(container.NewMetrics(a.registry, cfg.Metrics.Namespace)),
	)
	a.Container = container.New(copts...)
	a.Providers = container.NewProviderRegistry(a.Container)
	a.routing = &providers.RoutingServiceProvider{Diagnostics: cfg.App.Debug}

	ctx := context.Background()
	for _, p := range []container.ServiceProvider{
		&providers.ConfigServiceProvider{Config: cfg},
		&providers.LogServiceProvider{Logger: a.logger},
		&providers.MetricsServiceProvider{Registry: a.registry},
		&providers.ContainerServiceProvider{},
		a.routing,
	} {
		if err := a.Providers.Register(ctx, p); err != nil {
			return nil, err
		}
	}
	return a, nil
}

// Register adds a ServiceProvider. Providers that implement
// providers.RouteRegistrar get their routes mounted on the router.
func (a *Application) Register(ctx context.Context, provider container.ServiceProvider) error {
	if err := a.Providers.Register(ctx, provider); err != nil {
		return err
	}
	if rr, ok := provider.(providers.RouteRegistrar); ok {
		a.routing.Add(rr)
	}
	return nil
}

// Boot runs the Boot phase of every provider, then verifies the container
// when CONTAINER_VERIFY_ON_BOOT is set. Diagnostics are logged at their
// severity; they do not fail the boot.
func (a *Application) Boot(ctx context.Context) error {
	if err := a.Providers.Boot(ctx); err != nil {
		return err
	}
	if !a.config.Container.VerifyOnBoot {
		return nil
	}
	if err := a.Verify(ctx); err != nil {
		return err
	}
	for _, r := range diagnostics.Analyze(a.Container) {
		level := zap.WarnLevel
		if r.Severity == diagnostics.Info {
			level = zap.InfoLevel
		}
		a.logger.Log(level, r.Message,
			zap.String("kind", string(r.Kind)),
			zap.String("service", r.Service),
			zap.String("dependency", r.Dependency))
	}
	return nil
}

// Config returns the validated configuration.
func (a *Application) Config() *config.Config { return a.config }

// Logger returns the application logger.
func (a *Application) Logger() *zap.Logger { return a.logger }

// Registry returns the Prometheus registry of the application.
func (a *Application) Registry() *prometheus.Registry { return a.registry }

// Router resolves the HTTP router. The first call locks the container.
func (a *Application) Router(ctx context.Context) (*routing.Router, error) {
	return container.Resolve[*routing.Router](ctx, a.Container, providers.RouterD)
}

// ── Serving ───────────────────────────────────────────────────────────────────

// Run boots the application (if needed) and serves HTTP on APP_PORT until
// ctx is done.
func (a *Application) Run(ctx context.Context) error {
	l, err := net.Listen("tcp", ":"+a.config.App.Port)
	if err != nil {
		return err
	}
	return a.Serve(ctx, l)
}

// Serve boots the application (if needed) and serves HTTP on l until ctx is
// done. On return the server is shut down and the container disposed.
func (a *Application) Serve(ctx context.Context, l net.Listener) error {
	if !a.Providers.Booted() {
		if err := a.Boot(ctx); err != nil {
			_ = l.Close()
			return err
		}
	}
	router, err := a.Router(ctx)
	if err != nil {
		_ = l.Close()
		return err
	}

	srv := &http.Server{
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	a.logger.Info("server started",
		zap.String("app", a.config.App.Name),
		zap.String("env", a.config.App.Env),
		zap.String("addr", l.Addr().String()))

	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(l) }()

	var serveErr error
	select {
	case serveErr = <-errc:
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		serveErr = srv.Shutdown(shutdownCtx)
		<-errc
	}
	if errors.Is(serveErr, http.ErrServerClosed) {
		serveErr = nil
	}
	a.logger.Info("server stopped")
	return errors.Join(serveErr, a.Shutdown(context.Background()))
}

// Shutdown disposes the container and flushes the logger.
func (a *Application) Shutdown(ctx context.Context) error {
	err := a.Dispose(ctx)
	_ = a.logger.Sync()
	return err
}

// ── Environment ───────────────────────────────────────────────────────────────

// Environment returns APP_ENV value.
func (a *Application) Environment() string { return a.config.App.Env }
func (a *Application) IsLocal() bool       { return a.Environment() == "local" }
func (a *Application) IsProduction() bool  { return a.Environment() == "production" }
func (a *Application) IsTesting() bool     { return a.Environment() == "testing" }
func (a *Application) IsDebug() bool       { return a.config.App.Debug }
func (a *Application) Version() string     { return Version }

// Version is the go-ioc release.
const Version = "0.1.0"
