package apiclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// TransportError is a request that never produced an HTTP response
type TransportError struct {
	Method  string
	Path    string
	Timeout bool
	Err     error
}

func newTransportError(method, path string, err error) *TransportError {
	var netErr net.Error
	timeout := errors.As(err, &netErr) && netErr.Timeout()
	return &TransportError{Method: method, Path: path, Timeout: timeout, Err: err}
}

func (e *TransportError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("%s %s: request timed out", e.Method, e.Path)
	}
	return fmt.Sprintf("%s %s: %v", e.Method, e.Path, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// APIError is a non-2xx response. Message is the server's text, suitable
// for showing to the user verbatim.
type APIError struct {
	Method  string
	Path    string
	Status  int
	Message string
	Body    []byte
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.Status, e.Message)
}

// IsUnauthorized reports whether err is a 401 response
func IsUnauthorized(err error) bool {
	return hasStatus(err, http.StatusUnauthorized)
}

// IsNotFound reports whether err is a 404 response
func IsNotFound(err error) bool {
	return hasStatus(err, http.StatusNotFound)
}

// IsTransport reports whether err is a network or timeout failure
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

func hasStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}

// Message returns the text a view should show for err
func Message(err error) string {
	if err == nil {
		return ""
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	var te *TransportError
	if errors.As(err, &te) {
		if te.Timeout {
			return "Request timed out"
		}
		return "Network error"
	}
	return err.Error()
}

// extractMessage finds the human-readable message in an error body: a
// plain or JSON string, then the message, error and status fields.
func extractMessage(status int, body []byte) string {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return http.StatusText(status)
	}

	var text string
	if err := json.Unmarshal(body, &text); err == nil {
		return text
	}

	var fields map[string]any
	if err := json.Unmarshal(body, &fields); err != nil {
		return trimmed
	}
	if msg, ok := fields["message"].(string); ok && msg != "" {
		return msg
	}
	if msg, ok := fields["error"].(string); ok && msg != "" {
		return msg
	}
	if s, ok := fields["status"]; ok && s != nil {
		return fmt.Sprintf("Error %v", s)
	}
	return http.StatusText(status)
}
