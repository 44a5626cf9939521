package routing

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/km-arc/go-ioc/framework/container"
)

// ScopeMiddleware opens a container scope per request and ends it when the
// handler returns. Scoped plans invoked with the request context share one
// instance per request; closers they produced run at End.
func ScopeMiddleware(c *container.Container, logger *zap.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			scope := c.BeginScope()
			defer func() {
				if err := scope.End(); err != nil {
					logger.Warn("scope end failed",
						zap.String("scope", scope.ID().String()),
						zap.String("path", req.URL.Path),
						zap.Error(err))
				}
			}()
			next.ServeHTTP(w, req.WithContext(container.WithScope(req.Context(), scope)))
		})
	}
}
