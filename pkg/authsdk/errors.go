package authsdk

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// ============================================================================
// Sentinel Errors
// ============================================================================

var (
	// ErrNoCredential is returned when an authorized call is attempted with
	// nothing stored. No request reaches the network.
	ErrNoCredential = errors.New("authsdk: no credential")

	// ErrSessionExpired matches every *SessionExpiredError via errors.Is.
	ErrSessionExpired = errors.New("authsdk: session expired")

	// ErrUnsupportedProvider is returned for identity providers the backend
	// does not offer.
	ErrUnsupportedProvider = errors.New("authsdk: unsupported identity provider")

	// ErrSuperseded is returned when a credential was replaced by a newer one
	// while its profile was still being fetched.
	ErrSuperseded = errors.New("authsdk: credential superseded")

	// ErrIncompleteCallback is returned when a redirect carries neither an
	// error nor both of token and provider.
	ErrIncompleteCallback = errors.New("authsdk: callback is missing token or provider")
)

// ============================================================================
// Typed Errors
// ============================================================================

// ValidationError is returned when the backend (or the client-side check
// before it) rejects registration fields.
type ValidationError struct {
	// StatusCode is the HTTP status, 0 when the check failed locally
	StatusCode int

	// Message is a human-readable summary
	Message string

	// Fields maps field names to messages when the backend reported them
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return fmt.Sprintf("validation failed: %s", e.Message)
	}

	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+": "+e.Fields[name])
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(parts, "; "))
}

// InvalidCredentialsError is returned by Login for a rejected email/password.
type InvalidCredentialsError struct {
	StatusCode int
	Message    string
}

func (e *InvalidCredentialsError) Error() string {
	return fmt.Sprintf("invalid credentials: %s", e.Message)
}

// SessionExpiredError is returned after the active credential was found to be
// invalid. By the time it is returned the credential has been erased.
type SessionExpiredError struct {
	// Reason is a short machine-friendly description (e.g. "unauthorized", "inactivity")
	Reason string

	// Cause is the failure that revealed the expiry, if any
	Cause error
}

func (e *SessionExpiredError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("session expired (%s): %v", e.Reason, e.Cause)
	}
	return fmt.Sprintf("session expired (%s)", e.Reason)
}

func (e *SessionExpiredError) Unwrap() error { return e.Cause }

// Is makes errors.Is(err, ErrSessionExpired) hold for every SessionExpiredError.
func (e *SessionExpiredError) Is(target error) bool { return target == ErrSessionExpired }

// RemoteError is any other non-2xx response.
type RemoteError struct {
	StatusCode int
	Message    string
}

func (e *RemoteError) Error() string {
	return e.Message
}

// NetworkError wraps a transport failure verbatim.
type NetworkError struct {
	// Op is the request that failed, e.g. "POST /auth/login"
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ProviderError is an error reported by the identity provider in the redirect.
type ProviderError struct {
	Provider string
	Code     string
}

func (e *ProviderError) Error() string {
	if e.Provider == "" {
		return fmt.Sprintf("identity provider error: %s", e.Code)
	}
	return fmt.Sprintf("identity provider %s error: %s", e.Provider, e.Code)
}

// ============================================================================
// Error Parsing Helpers
// ============================================================================

// errorMessage extracts a human-readable message from an error body. The
// "message" field is preferred over "detail"; absent or unparsable bodies
// fall back to "HTTP <status>".
func errorMessage(statusCode int, body []byte) string {
	var eb errorBody
	if len(body) > 0 && json.Unmarshal(body, &eb) == nil {
		if eb.Message != "" {
			return eb.Message
		}
		if msg, _ := parseDetail(eb.Detail); msg != "" {
			return msg
		}
	}
	return fmt.Sprintf("HTTP %d", statusCode)
}

// parseDetail decodes a "detail" value that is either a string or a list of
// {loc, msg} field errors. Field errors are keyed by the last element of loc.
func parseDetail(raw json.RawMessage) (string, map[string]string) {
	if len(raw) == 0 {
		return "", nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}

	var list []fieldError
	if err := json.Unmarshal(raw, &list); err != nil || len(list) == 0 {
		return "", nil
	}

	fields := make(map[string]string, len(list))
	msgs := make([]string, 0, len(list))
	for _, fe := range list {
		msgs = append(msgs, fe.Msg)
		if len(fe.Loc) > 0 {
			fields[fmt.Sprint(fe.Loc[len(fe.Loc)-1])] = fe.Msg
		}
	}
	return strings.Join(msgs, "; "), fields
}

// parseSignupError maps a failed signup response onto the error taxonomy.
func parseSignupError(statusCode int, body []byte) error {
	switch statusCode {
	case http.StatusBadRequest, http.StatusConflict, http.StatusUnprocessableEntity:
		var eb errorBody
		_ = json.Unmarshal(body, &eb)
		msg, fields := parseDetail(eb.Detail)
		if msg == "" {
			msg = errorMessage(statusCode, body)
		}
		return &ValidationError{StatusCode: statusCode, Message: msg, Fields: fields}
	default:
		return &RemoteError{StatusCode: statusCode, Message: errorMessage(statusCode, body)}
	}
}

// parseLoginError maps a failed login response onto the error taxonomy.
func parseLoginError(statusCode int, body []byte) error {
	switch statusCode {
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden:
		return &InvalidCredentialsError{StatusCode: statusCode, Message: errorMessage(statusCode, body)}
	default:
		return &RemoteError{StatusCode: statusCode, Message: errorMessage(statusCode, body)}
	}
}

// parseProfileError maps a failed /auth/me response onto the error taxonomy.
func parseProfileError(statusCode int, body []byte) error {
	if statusCode == http.StatusUnauthorized {
		return &SessionExpiredError{
			Reason: "unauthorized",
			Cause:  &RemoteError{StatusCode: statusCode, Message: errorMessage(statusCode, body)},
		}
	}
	return &RemoteError{StatusCode: statusCode, Message: errorMessage(statusCode, body)}
}

// parseGenericError maps any other failed response onto RemoteError.
func parseGenericError(statusCode int, body []byte) error {
	return &RemoteError{StatusCode: statusCode, Message: errorMessage(statusCode, body)}
}
