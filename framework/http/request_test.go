package http_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/km-arc/go-ioc/framework/container"
	gohttp "github.com/km-arc/go-ioc/framework/http"
	"github.com/km-arc/go-ioc/framework/http/validation"
)

// ── helpers ──────────────────────────────────────────────────────────────────

func newJSONRequest(t *testing.T, body string) *gohttp.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return gohttp.NewRequest(req)
}

func newGetRequest(t *testing.T, rawQuery string) *gohttp.Request {
	t.Helper()
	return gohttp.NewRequest(httptest.NewRequest(http.MethodGet, "/?"+rawQuery, nil))
}

// ── Bind ─────────────────────────────────────────────────────────────────────

func TestRequest_BindJSON(t *testing.T) {
	var body struct {
		Service string `json:"service"`
	}
	if err := newJSONRequest(t, `{"service":"Logger"}`).Bind(&body); err != nil {
		t.Fatalf("Bind error: %v", err)
	}
	if body.Service != "Logger" {
		t.Errorf("Service: got %q want Logger", body.Service)
	}
}

func TestRequest_BindJSON_Errors(t *testing.T) {
	var v map[string]any
	if err := newJSONRequest(t, "").Bind(&v); err == nil {
		t.Error("expected error for empty body")
	}
	if err := newJSONRequest(t, `{bad json}`).Bind(&v); err == nil {
		t.Error("expected error for invalid JSON")
	}

	form := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("a=b"))
	form.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if err := gohttp.NewRequest(form).Bind(&v); err == nil {
		t.Error("expected error for a non-JSON body")
	}
}

// ── Query ────────────────────────────────────────────────────────────────────

func TestRequest_Query(t *testing.T) {
	req := newGetRequest(t, "service=Logger&lifestyle=")

	if got := req.Query("service"); got != "Logger" {
		t.Errorf("Query(service): got %q", got)
	}
	if got := req.Query("lifestyle", "any"); got != "any" {
		t.Errorf("Query fallback: got %q want any", got)
	}
	if got := req.All(); got["service"] != "Logger" || len(got) != 2 {
		t.Errorf("All(): got %v", got)
	}
}

func TestRequest_QueryBool(t *testing.T) {
	tests := []struct {
		query string
		want  bool
	}{
		{"", false},
		{"open", true},
		{"open=true", true},
		{"open=1", true},
		{"open=false", false},
		{"open=nope", false},
	}
	for _, tt := range tests {
		if got := newGetRequest(t, tt.query).QueryBool("open"); got != tt.want {
			t.Errorf("QueryBool(%q): got %v want %v", tt.query, got, tt.want)
		}
	}
}

func TestRequest_Validate(t *testing.T) {
	rules := validation.Rules{"lifestyle": "nullable|in:transient,singleton,scoped"}

	if v := newGetRequest(t, "lifestyle=scoped").Validate(rules); v.Fails() {
		t.Errorf("scoped should pass: %v", v.Errors().Bag)
	}
	if v := newGetRequest(t, "").Validate(rules); v.Fails() {
		t.Errorf("absent should pass: %v", v.Errors().Bag)
	}
	if v := newGetRequest(t, "lifestyle=pooled").Validate(rules); v.Passes() {
		t.Error("pooled should fail")
	}
}

// ── Context ──────────────────────────────────────────────────────────────────

func TestRequest_Scope(t *testing.T) {
	c := container.New()
	scope := c.BeginScope()
	defer scope.End()

	raw := httptest.NewRequest(http.MethodGet, "/", nil)
	if gohttp.NewRequest(raw).Scope() != nil {
		t.Error("Scope() should be nil without middleware")
	}

	raw = raw.WithContext(container.WithScope(context.Background(), scope))
	if got := gohttp.NewRequest(raw).Scope(); got != scope {
		t.Errorf("Scope(): got %v want %v", got, scope)
	}
}

func TestRequest_RouteParamAndHeaders(t *testing.T) {
	r := chi.NewRouter()
	var got, header, method, path string
	r.Get("/plans/{service}", func(w http.ResponseWriter, raw *http.Request) {
		req := gohttp.NewRequest(raw)
		got = req.RouteParam("service")
		header = req.Header("X-Request-Id")
		method, path = req.Method(), req.Path()
	})

	raw := httptest.NewRequest(http.MethodGet, "/plans/Logger", nil)
	raw.Header.Set("X-Request-Id", "abc")
	r.ServeHTTP(httptest.NewRecorder(), raw)

	if got != "Logger" {
		t.Errorf("RouteParam: got %q want Logger", got)
	}
	if header != "abc" {
		t.Errorf("Header: got %q want abc", header)
	}
	if method != http.MethodGet || path != "/plans/Logger" {
		t.Errorf("Method/Path: got %s %s", method, path)
	}
}
