package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/km-arc/go-ioc/framework/container"
	"github.com/km-arc/go-ioc/framework/http/validation"
)

// Request wraps *http.Request with container-aware helpers.
type Request struct {
	raw *http.Request
}

// NewRequest wraps a standard *http.Request.
func NewRequest(r *http.Request) *Request {
	return &Request{raw: r}
}

// Raw returns the underlying *http.Request.
func (req *Request) Raw() *http.Request { return req.raw }

// Context returns the request context. Behind routing.ScopeMiddleware it
// carries the request's container scope.
func (req *Request) Context() context.Context { return req.raw.Context() }

// Scope returns the container scope bound to this request, or nil.
func (req *Request) Scope() *container.Scope {
	return container.ScopeFrom(req.raw.Context())
}

// ── Binding ──────────────────────────────────────────────────────────────────

// Bind decodes a JSON body into v.
func (req *Request) Bind(v any) error {
	if !strings.Contains(req.ContentType(), "application/json") {
		return errors.New("expected an application/json body")
	}
	defer req.raw.Body.Close()
	body, err := io.ReadAll(req.raw.Body)
	if err != nil {
		return err
	}
	if len(body) == 0 {
		return errors.New("empty request body")
	}
	return json.Unmarshal(body, v)
}

// ── Input helpers ────────────────────────────────────────────────────────────

// Query returns a query-string value.
func (req *Request) Query(key string, fallback ...string) string {
	v := req.raw.URL.Query().Get(key)
	if v == "" && len(fallback) > 0 {
		return fallback[0]
	}
	return v
}

// QueryBool returns a boolean query value. A bare ?key counts as true.
func (req *Request) QueryBool(key string) bool {
	q := req.raw.URL.Query()
	if !q.Has(key) {
		return false
	}
	v := q.Get(key)
	if v == "" {
		return true
	}
	b, _ := strconv.ParseBool(v)
	return b
}

// All returns the query string as a flat map.
func (req *Request) All() map[string]string {
	out := make(map[string]string)
	for k, v := range req.raw.URL.Query() {
		if len(v) > 0 {
			out[k] = v[0]
		}
	}
	return out
}

// Validate checks the query string against rules.
func (req *Request) Validate(rules validation.Rules) *validation.Validator {
	return validation.Make(req.All(), rules)
}

// RouteParam returns a URL route parameter (chi).
func (req *Request) RouteParam(key string) string {
	return chi.URLParam(req.raw, key)
}

// Header returns a request header value.
func (req *Request) Header(key string) string {
	return req.raw.Header.Get(key)
}

// Method returns the HTTP method.
func (req *Request) Method() string { return req.raw.Method }

// Path returns the URL path.
func (req *Request) Path() string { return req.raw.URL.Path }

// ContentType returns the Content-Type header value.
func (req *Request) ContentType() string {
	return req.raw.Header.Get("Content-Type")
}
