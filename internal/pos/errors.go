package pos

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ValidationError is raised before any network call is made (empty cart,
// failed modifier constraints). It is surfaced as a single toast.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// PermissionError maps HTTP 403. Not retried.
type PermissionError struct {
	Operation string
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("no permission to %s", e.Operation)
}

// AuthError maps HTTP 401. Fatal to the session: credentials are cleared
// wholesale and the user is sent back to sign-in.
type AuthError struct {
	Operation string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("session expired during %s", e.Operation)
}

// ConflictError maps a 4xx with a message body (for example "table already
// has unbilled orders"). The message is surfaced verbatim and local state is
// re-synchronized from the server rather than guessed at.
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string {
	return e.Message
}

// TransportError covers socket and connection failures. Non-fatal; the UI
// continues in polling-only mode.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport failure: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func IsPermissionError(err error) bool {
	var pe *PermissionError
	return errors.As(err, &pe)
}

func IsAuthError(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae)
}

func IsConflictError(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}

// errorFromStatus maps a non-2xx service response to the taxonomy. The body
// may carry the message under "error" or "message"; whichever is present is
// kept verbatim.
func errorFromStatus(operation string, status int, body []byte) error {
	switch {
	case status == http.StatusUnauthorized:
		return &AuthError{Operation: operation}
	case status == http.StatusForbidden:
		return &PermissionError{Operation: operation}
	case status >= 400 && status < 500:
		msg := extractMessage(body)
		if msg == "" {
			msg = fmt.Sprintf("%s rejected (status %d)", operation, status)
		}
		return &ConflictError{Message: msg}
	default:
		return fmt.Errorf("%s failed: unexpected status %d", operation, status)
	}
}

func extractMessage(body []byte) string {
	if len(body) == 0 {
		return ""
	}

	var envelope struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil {
		if envelope.Error != "" {
			return envelope.Error
		}
		if envelope.Message != "" {
			return envelope.Message
		}
	}

	text := strings.TrimSpace(string(body))
	if len(text) > 0 && text[0] != '{' && text[0] != '[' {
		return text
	}
	return ""
}
