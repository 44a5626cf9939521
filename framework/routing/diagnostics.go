package routing

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/km-arc/go-ioc/framework/container"
	"github.com/km-arc/go-ioc/framework/diagnostics"
	gohttp "github.com/km-arc/go-ioc/framework/http"
	"github.com/km-arc/go-ioc/framework/http/validation"
)

// DiagnosticsPrefix is where Diagnostics mounts its routes.
const DiagnosticsPrefix = "/_container"

var registrationQuery = validation.Rules{
	"lifestyle": "nullable|in:transient,singleton,scoped",
	"service":   "nullable|max:512",
}

// Diagnostics registers read-only container routes:
//
//	GET  /_container/registrations?service=Handler&lifestyle=singleton
//	GET  /_container/diagnostics
//	POST /_container/verify
//
// Verify locks the container, so expose these routes only where that is
// acceptable.
func (r *Router) Diagnostics(c *container.Container) {
	r.Prefix(DiagnosticsPrefix, func(api *Router) {
		api.Get("/registrations", func(w http.ResponseWriter, raw *http.Request) {
			req, res := gohttp.NewRequest(raw), gohttp.NewResponse(w)
			if v := req.Validate(registrationQuery); v.Fails() {
				res.ValidationError(v.Errors())
				return
			}
			entries := diagnostics.Filter(diagnostics.Report(c), req.Query("service"), req.Query("lifestyle"))
			if entries == nil {
				entries = []diagnostics.Entry{}
			}
			res.Success(entries)
		})

		api.Get("/diagnostics", func(w http.ResponseWriter, raw *http.Request) {
			results := diagnostics.Analyze(c)
			if results == nil {
				results = []diagnostics.Result{}
			}
			gohttp.NewResponse(w).Success(results)
		})

		api.Post("/verify", func(w http.ResponseWriter, raw *http.Request) {
			res := gohttp.NewResponse(w)
			if err := c.Verify(raw.Context()); err != nil {
				r.logger.Warn("container verification failed",
					zap.String("outcome", container.Outcome(err)), zap.Error(err))
				res.ContainerError(err)
				return
			}
			res.Success(map[string]any{
				"verified":      true,
				"registrations": len(c.Registrations()),
			})
		})
	})
}

// Metrics serves the gatherer in the Prometheus exposition format at path.
func (r *Router) Metrics(path string, g prometheus.Gatherer) {
	r.Handle(path, promhttp.HandlerFor(g, promhttp.HandlerOpts{
		ErrorHandling: promhttp.ContinueOnError,
	}))
}
