package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/km-arc/go-ioc/framework/container"
	"github.com/km-arc/go-ioc/framework/http/validation"
)

// Response wraps http.ResponseWriter with JSON helpers.
type Response struct {
	w http.ResponseWriter
}

// NewResponse wraps a standard http.ResponseWriter.
func NewResponse(w http.ResponseWriter) *Response {
	return &Response{w: w}
}

// Raw returns the underlying http.ResponseWriter.
func (res *Response) Raw() http.ResponseWriter { return res.w }

// ── JSON ─────────────────────────────────────────────────────────────────────

// JSON writes data as JSON with the given status.
func (res *Response) JSON(status int, data any) {
	res.w.Header().Set("Content-Type", "application/json")
	res.w.WriteHeader(status)
	_ = json.NewEncoder(res.w).Encode(data)
}

// Success writes 200 {"data": v}.
func (res *Response) Success(v any) {
	res.JSON(http.StatusOK, envelope{"data": v})
}

// Error writes {"message": message} with the given status.
func (res *Response) Error(status int, message string) {
	res.JSON(status, envelope{"message": message})
}

// NotFound writes 404.
func (res *Response) NotFound(message ...string) {
	res.Error(http.StatusNotFound, first(message, "Not found."))
}

// ServerError writes 500.
func (res *Response) ServerError(message ...string) {
	res.Error(http.StatusInternalServerError, first(message, "Server Error."))
}

// ValidationError writes 422 {"errors": {"field": ["msg"]}}.
func (res *Response) ValidationError(errs *validation.Errors) {
	res.JSON(http.StatusUnprocessableEntity, errs)
}

// ── Container errors ─────────────────────────────────────────────────────────

// ContainerError writes err with a status chosen from its sentinel and an
// "outcome" field matching the metrics label.
//
//	{"message": "...", "outcome": "missing", "chain": ["Service", "Repository"]}
func (res *Response) ContainerError(err error) {
	body := envelope{
		"message": err.Error(),
		"outcome": container.Outcome(err),
	}
	var re *container.ResolutionError
	if errors.As(err, &re) {
		chain := make([]string, 0, len(re.Chain)+1)
		for _, d := range re.Chain {
			chain = append(chain, d.String())
		}
		body["chain"] = append(chain, re.Service.String())
	}
	res.JSON(statusOf(err), body)
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, container.ErrVerificationFailed):
		return http.StatusUnprocessableEntity
	case errors.Is(err, container.ErrMissingRegistration):
		return http.StatusNotFound
	case errors.Is(err, container.ErrContainerLocked):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// ── Internal ─────────────────────────────────────────────────────────────────

type envelope map[string]any

func first(ss []string, fallback string) string {
	if len(ss) > 0 && ss[0] != "" {
		return ss[0]
	}
	return fallback
}
