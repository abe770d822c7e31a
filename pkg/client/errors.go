package client

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrInvalidArgument is returned, wrapped, when a call is rejected before any
// request is sent.
var ErrInvalidArgument = errors.New("invalid argument")

// APIError is returned when the renter answers with a status other than the
// one the endpoint signals success with. Body holds the raw response body;
// JSON holds it decoded when it parses.
type APIError struct {
	Method     string
	Endpoint   string
	StatusCode int
	Body       []byte
	JSON       any
}

func (e *APIError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%s %s: unexpected status %d: %s", e.Method, e.Endpoint, e.StatusCode, string(e.Body))
}

// Message returns the "error" field of a JSON error body, or the raw body.
func (e *APIError) Message() string {
	if m, ok := e.JSON.(map[string]any); ok {
		if s, ok := m["error"].(string); ok && s != "" {
			return s
		}
	}
	return string(e.Body)
}

// AsAPIError checks if an error is an APIError and returns it.
func AsAPIError(err error) (*APIError, bool) {
	var ae *APIError
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

// IsStatus reports whether err is an APIError with the given status code.
func IsStatus(err error, status int) bool {
	ae, ok := AsAPIError(err)
	return ok && ae.StatusCode == status
}

func newAPIError(method, endpoint string, status int, body []byte) *APIError {
	ae := &APIError{
		Method:     method,
		Endpoint:   endpoint,
		StatusCode: status,
		Body:       body,
	}
	if len(body) > 0 {
		var payload any
		if json.Unmarshal(body, &payload) == nil {
			ae.JSON = payload
		}
	}
	return ae
}

func invalidArgument(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}
