package testutils

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/phrazzld/functest/internal/platform/logger"
)

type recorderKey struct{}

// ErrorRecorder keeps the last error raised while handling a request. It is
// cleared at the start of every request.
type ErrorRecorder struct {
	mu     sync.Mutex
	last   error
	logger *slog.Logger
}

// NewErrorRecorder creates an ErrorRecorder.
func NewErrorRecorder(log *slog.Logger) *ErrorRecorder {
	return &ErrorRecorder{logger: logger.OrDefault(log)}
}

// Record stores err as the last error.
func (r *ErrorRecorder) Record(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.last = err
}

// LastError returns the last recorded error, or nil.
func (r *ErrorRecorder) LastError() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}

// Clear forgets the last error.
func (r *ErrorRecorder) Clear() {
	r.Record(nil)
}

// Middleware clears the recorder, exposes it to handlers through the request
// context and turns panics into a JSON 500 response.
func (r *ErrorRecorder) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		r.Clear()

		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			err, ok := rec.(error)
			if !ok {
				err = fmt.Errorf("panic: %v", rec)
			}
			r.Record(err)
			r.logger.Error("handler panicked",
				slog.String("method", req.Method),
				slog.String("path", req.URL.Path),
				slog.String("error", err.Error()))
			WriteError(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError), err)
		}()

		ctx := context.WithValue(req.Context(), recorderKey{}, r)
		next.ServeHTTP(w, req.WithContext(ctx))
	})
}

// RecordError stores err in the recorder of the current request, if any.
// Handlers call it before writing an error response.
func RecordError(ctx context.Context, err error) {
	if r, ok := ctx.Value(recorderKey{}).(*ErrorRecorder); ok {
		r.Record(err)
	}
}

// WriteError writes a JSON error body with message and code. When err is not
// nil it is described under "exception".
func WriteError(w http.ResponseWriter, status int, message string, err error) {
	body := map[string]any{
		"message": message,
		"code":    status,
	}
	if err != nil {
		body["exception"] = []map[string]string{{
			"class":   fmt.Sprintf("%T", err),
			"message": err.Error(),
		}}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// CollectingValidator validates structs and keeps the errors of the last
// validation so they can be reported when a request fails.
type CollectingValidator struct {
	validate *validator.Validate

	mu   sync.Mutex
	last validator.ValidationErrors
}

// NewCollectingValidator wraps v, or a new validator when v is nil.
func NewCollectingValidator(v *validator.Validate) *CollectingValidator {
	if v == nil {
		v = validator.New()
	}
	return &CollectingValidator{validate: v}
}

// Struct validates s and remembers its validation errors.
func (c *CollectingValidator) Struct(s any) error {
	err := c.validate.Struct(s)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.last = nil
	if verrs, ok := err.(validator.ValidationErrors); ok {
		c.last = verrs
	}
	return err
}

// Var validates a single value. Its errors are not remembered.
func (c *CollectingValidator) Var(field any, tag string) error {
	return c.validate.Var(field, tag)
}

// LastErrors returns the errors of the last Struct call.
func (c *CollectingValidator) LastErrors() validator.ValidationErrors {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

// ClearLastErrors forgets the last validation errors.
func (c *CollectingValidator) ClearLastErrors() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.last = nil
}

// Middleware clears the last validation errors at the start of a request.
func (c *CollectingValidator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		c.ClearLastErrors()
		next.ServeHTTP(w, req)
	})
}
