package validation

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// DefaultBodyLimit caps decoded request bodies.
const DefaultBodyLimit = 256 << 20

// Middleware decodes and validates HTTP request bodies and writes
// validation failures in one JSON shape.
type Middleware struct {
	config *ValidationConfig
	limit  int64
}

// NewMiddleware creates a new validation middleware
func NewMiddleware(config *ValidationConfig) *Middleware {
	if config == nil {
		config = DefaultValidationConfig()
	}
	return &Middleware{config: config, limit: DefaultBodyLimit}
}

// WithBodyLimit returns a copy reading at most n bytes per body.
func (m *Middleware) WithBodyLimit(n int64) *Middleware {
	c := *m
	c.limit = n
	return &c
}

// Decode reads the JSON body of r into v and validates it. The returned
// errors are nil when v is ready to use.
func (m *Middleware) Decode(r *http.Request, v any) ValidationErrors {
	defer r.Body.Close()
	if err := json.NewDecoder(io.LimitReader(r.Body, m.limit)).Decode(v); err != nil {
		return ValidationErrors{{
			Field:   "request_body",
			Message: fmt.Sprintf("invalid JSON: %v", err),
		}}
	}
	err := ValidateWithConfig(v, m.config)
	if err == nil {
		return nil
	}
	var verrs ValidationErrors
	if errors.As(err, &verrs) {
		return verrs
	}
	return ValidationErrors{{Field: "request_body", Message: err.Error()}}
}

// WriteErrors writes validation errors as a JSON response. The "error"
// field carries the first message for clients that only read that.
func (m *Middleware) WriteErrors(w http.ResponseWriter, statusCode int, errs ValidationErrors) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	first := "validation failed"
	if len(errs) > 0 {
		first = errs[0].Field + ": " + errs[0].Message
	}
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error":  first,
		"errors": errs,
		"count":  len(errs),
	})
}
