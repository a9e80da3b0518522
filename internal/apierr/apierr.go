// Package apierr defines the errors surfaced by the auth and intent
// packages. Callers match them with errors.As.
package apierr

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"
)

// ValidationError reports malformed local input. It is always returned
// before any network call is made.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("invalid %q: value must be provided", e.Field)
}

// StateMismatchError means the state returned with an authorization
// callback does not match the one issued with the authorization URL.
type StateMismatchError struct {
	Expected string
	Got      string
}

func (e *StateMismatchError) Error() string {
	if e.Expected == "" {
		return "OAuth state mismatch (possible CSRF): no authorization is pending"
	}
	return "OAuth state mismatch (possible CSRF)"
}

// AuthorizationError is returned when the authorization server redirects
// back with an error instead of a code.
type AuthorizationError struct {
	Code        string
	Description string
}

func (e *AuthorizationError) Error() string {
	if e.Description == "" {
		return "OAuth error: " + e.Code
	}
	return fmt.Sprintf("OAuth error: %s: %s", e.Code, e.Description)
}

// NoServiceFoundError is returned when an intent has no candidate service.
type NoServiceFoundError struct {
	Action string
	Type   string
}

func (e *NoServiceFoundError) Error() string {
	return fmt.Sprintf("Unable to find a service for action %s on doctype %s", e.Action, e.Type)
}

// UnexpectedHandshakeError is a protocol violation by the intent service.
type UnexpectedHandshakeError struct {
	Data any
}

func (e *UnexpectedHandshakeError) Error() string {
	return "Unexpected handshake message from intent service"
}

// IntentError is the failure signaled by an intent service.
type IntentError struct{}

func (e *IntentError) Error() string { return "Intent error" }

// AlreadyTerminatedError is returned by a second terminate on a service.
type AlreadyTerminatedError struct{}

func (e *AlreadyTerminatedError) Error() string {
	return "Intent service has already been terminated"
}

// StatusError is a non-2xx answer from the remote server.
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Detail     string
}

func (e *StatusError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s %s returned %d", e.Method, e.URL, e.StatusCode)
	}
	return fmt.Sprintf("%s %s returned %d: %s", e.Method, e.URL, e.StatusCode, e.Detail)
}

// IsStatus reports whether err is a StatusError with the given code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == code
}

// FromResponse builds a StatusError from resp, consuming its body. The
// detail is taken from a JSON:API error document, an OAuth error body, or
// the raw text, in that order.
func FromResponse(resp *http.Response) *StatusError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	se := &StatusError{StatusCode: resp.StatusCode}
	if resp.Request != nil {
		se.Method = resp.Request.Method
		se.URL = resp.Request.URL.String()
	}
	se.Detail = detail(body)
	return se
}

func detail(body []byte) string {
	if gjson.ValidBytes(body) {
		doc := gjson.ParseBytes(body)
		for _, path := range []string{"errors.0.detail", "errors.0.title", "error_description", "error"} {
			if v := doc.Get(path); v.Exists() && v.String() != "" {
				return v.String()
			}
		}
	}
	return strings.TrimSpace(string(body))
}
