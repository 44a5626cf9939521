package http_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/km-arc/go-ioc/framework/container"
	gohttp "github.com/km-arc/go-ioc/framework/http"
	"github.com/km-arc/go-ioc/framework/http/validation"
)

// ── helpers ──────────────────────────────────────────────────────────────────

func newResponse(t *testing.T) (*gohttp.Response, *httptest.ResponseRecorder) {
	t.Helper()
	rr := httptest.NewRecorder()
	return gohttp.NewResponse(rr), rr
}

func decodeJSON(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.NewDecoder(rr.Body).Decode(&m); err != nil {
		t.Fatalf("decodeJSON: %v", err)
	}
	return m
}

// ── JSON ──────────────────────────────────────────────────────────────────────

func TestResponse_JSON(t *testing.T) {
	res, rr := newResponse(t)
	res.JSON(http.StatusAccepted, map[string]any{"key": "val"})

	if rr.Code != http.StatusAccepted {
		t.Errorf("status: got %d want 202", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type: got %q want application/json", ct)
	}
	if m := decodeJSON(t, rr); m["key"] != "val" {
		t.Errorf("body key: got %v want val", m["key"])
	}
}

func TestResponse_Success(t *testing.T) {
	res, rr := newResponse(t)
	res.Success([]string{"Logger"})

	m := decodeJSON(t, rr)
	data, ok := m["data"].([]any)
	if !ok || len(data) != 1 || data[0] != "Logger" {
		t.Errorf("data envelope: got %v", m["data"])
	}
}

func TestResponse_Errors(t *testing.T) {
	tests := []struct {
		name    string
		write   func(*gohttp.Response)
		status  int
		message string
	}{
		{"Error", func(r *gohttp.Response) { r.Error(http.StatusBadRequest, "bad input") }, 400, "bad input"},
		{"NotFound default", func(r *gohttp.Response) { r.NotFound() }, 404, "Not found."},
		{"NotFound custom", func(r *gohttp.Response) { r.NotFound("no plan") }, 404, "no plan"},
		{"ServerError", func(r *gohttp.Response) { r.ServerError() }, 500, "Server Error."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, rr := newResponse(t)
			tt.write(res)
			if rr.Code != tt.status {
				t.Errorf("status: got %d want %d", rr.Code, tt.status)
			}
			if m := decodeJSON(t, rr); m["message"] != tt.message {
				t.Errorf("message: got %v want %q", m["message"], tt.message)
			}
		})
	}
}

func TestResponse_ValidationError(t *testing.T) {
	v := validation.Make(map[string]string{}, validation.Rules{"service": "required"})
	_ = v.Fails()

	res, rr := newResponse(t)
	res.ValidationError(v.Errors())

	if rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("status: got %d want 422", rr.Code)
	}
	errs, ok := decodeJSON(t, rr)["errors"].(map[string]any)
	if !ok || errs["service"] == nil {
		t.Errorf("errors envelope: got %v", errs)
	}
}

// ── ContainerError ────────────────────────────────────────────────────────────

func TestResponse_ContainerError_Missing(t *testing.T) {
	c := container.New()
	_ = c.Register(container.Type("Service"), container.Implementation{
		Name: container.Type("Service"),
		Deps: []container.Dependency{container.Need(container.Type("Repository"))},
		New:  func(container.Args) (any, error) { return "svc", nil },
	})
	_, err := c.GetInstance(context.Background(), container.Type("Service"))

	res, rr := newResponse(t)
	res.ContainerError(err)

	if rr.Code != http.StatusNotFound {
		t.Errorf("status: got %d want 404", rr.Code)
	}
	m := decodeJSON(t, rr)
	if m["outcome"] != "missing" {
		t.Errorf("outcome: got %v want missing", m["outcome"])
	}
	chain, _ := m["chain"].([]any)
	if len(chain) != 2 || chain[0] != "Service" || chain[1] != "Repository" {
		t.Errorf("chain: got %v want [Service Repository]", m["chain"])
	}
}

func TestResponse_ContainerError_Status(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{fmt.Errorf("register: %w", container.ErrContainerLocked), http.StatusConflict},
		{&container.VerificationError{Root: container.Type("A"), Err: container.ErrMissingRegistration}, http.StatusUnprocessableEntity},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		res, rr := newResponse(t)
		res.ContainerError(tt.err)
		if rr.Code != tt.status {
			t.Errorf("%v: got %d want %d", tt.err, rr.Code, tt.status)
		}
	}
}
