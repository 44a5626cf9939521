package providers

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/km-arc/go-ioc/framework/config"
	"github.com/km-arc/go-ioc/framework/container"
	"github.com/km-arc/go-ioc/framework/routing"
)

// Descriptors of the services the framework providers register.
var (
	ConfigD     = container.TypeOf[*config.Config]()
	LoggerD     = container.TypeOf[*zap.Logger]()
	RegistererD = container.TypeOf[prometheus.Registerer]()
	GathererD   = container.TypeOf[prometheus.Gatherer]()
	ContainerD  = container.TypeOf[*container.Container]()
	RouterD     = container.TypeOf[*routing.Router]()
)

// ── ConfigServiceProvider ─────────────────────────────────────────────────────

// ConfigServiceProvider binds the loaded configuration.
//
// Bound services:
//   - ConfigD → *config.Config
type ConfigServiceProvider struct {
	container.BaseProvider
	Config *config.Config
}

func (p *ConfigServiceProvider) Register(app *container.Container) error {
	if p.Config == nil {
		return fmt.Errorf("%w: ConfigServiceProvider has no config", container.ErrInvalidRegistration)
	}
	return app.RegisterInstance(ConfigD, p.Config)
}

func (p *ConfigServiceProvider) Provides() []container.Descriptor {
	return []container.Descriptor{ConfigD}
}

// ── LogServiceProvider ────────────────────────────────────────────────────────

// LogServiceProvider binds the application logger. A nil Logger binds a
// no-op logger.
//
// Bound services:
//   - LoggerD → *zap.Logger
type LogServiceProvider struct {
	container.BaseProvider
	Logger *zap.Logger
}

func (p *LogServiceProvider) Register(app *container.Container) error {
	if p.Logger == nil {
		p.Logger = zap.NewNop()
	}
	return app.RegisterInstance(LoggerD, p.Logger)
}

func (p *LogServiceProvider) Provides() []container.Descriptor {
	return []container.Descriptor{LoggerD}
}

// ── MetricsServiceProvider ────────────────────────────────────────────────────

// MetricsServiceProvider binds the Prometheus registry the container reports
// to, as both Registerer and Gatherer.
//
// Bound services:
//   - RegistererD → prometheus.Registerer
//   - GathererD   → prometheus.Gatherer
type MetricsServiceProvider struct {
	container.BaseProvider
	Registry *prometheus.Registry
}

func (p *MetricsServiceProvider) Register(app *container.Container) error {
	if p.Registry == nil {
		p.Registry = prometheus.NewRegistry()
	}
	if err := app.RegisterInstance(RegistererD, prometheus.Registerer(p.Registry)); err != nil {
		return err
	}
	return app.RegisterInstance(GathererD, prometheus.Gatherer(p.Registry))
}

func (p *MetricsServiceProvider) Provides() []container.Descriptor {
	return []container.Descriptor{RegistererD, GathererD}
}

// ── ContainerServiceProvider ──────────────────────────────────────────────────

// ContainerServiceProvider binds the container to itself, for services that
// resolve lazily at runtime.
//
// Bound services:
//   - ContainerD → *container.Container
type ContainerServiceProvider struct {
	container.BaseProvider
}

func (p *ContainerServiceProvider) Register(app *container.Container) error {
	return app.RegisterInstance(ContainerD, app)
}

func (p *ContainerServiceProvider) Provides() []container.Descriptor {
	return []container.Descriptor{ContainerD}
}

// ── RoutingServiceProvider ────────────────────────────────────────────────────

// RouteRegistrar is implemented by providers that add HTTP routes. Routes
// runs once, when the router is first constructed.
type RouteRegistrar interface {
	Routes(r *routing.Router, c *container.Container)
}

// RoutingServiceProvider registers the HTTP router as a singleton. The router
// opens a container scope per request and serves /metrics; with Diagnostics
// set it also mounts the /_container routes.
//
// Bound services:
//   - RouterD → *routing.Router
//
// Depends on LoggerD, ContainerD and GathererD.
type RoutingServiceProvider struct {
	container.BaseProvider
	Diagnostics bool
	MetricsPath string // default: "/metrics"

	registrars []RouteRegistrar
}

// Add queues r to run when the router is built. Call it before the first
// resolution of RouterD.
func (p *RoutingServiceProvider) Add(r RouteRegistrar) {
	p.registrars = append(p.registrars, r)
}

func (p *RoutingServiceProvider) Register(app *container.Container) error {
	metricsPath := p.MetricsPath
	if metricsPath == "" {
		metricsPath = "/metrics"
	}
	return app.Register(RouterD, container.Implementation{
		Name: RouterD,
		Deps: []container.Dependency{
			container.Need(LoggerD),
			container.Need(ContainerD),
			container.Need(GathererD),
		},
		New: func(a container.Args) (any, error) {
			logger := container.Arg[*zap.Logger](a, 0)
			c := container.Arg[*container.Container](a, 1)

			r := routing.New(logger)
			r.Middleware(routing.ScopeMiddleware(c, logger))
			if p.Diagnostics {
				r.Diagnostics(c)
			}
			r.Metrics(metricsPath, container.Arg[prometheus.Gatherer](a, 2))
			for _, reg := range p.registrars {
				reg.Routes(r, c)
			}
			return r, nil
		},
	}, container.WithLifestyle(container.Singleton))
}

func (p *RoutingServiceProvider) Provides() []container.Descriptor {
	return []container.Descriptor{RouterD}
}

