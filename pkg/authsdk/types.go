package authsdk

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// ============================================================================
// Profile Types
// ============================================================================

// UserID is the backend's user identifier. The backend may send it as a JSON
// number or a string; both decode to the same value.
type UserID string

// UnmarshalJSON accepts both numeric and string identifiers.
func (id *UserID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}

	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = UserID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("user id must be a string or number: %w", err)
	}
	*id = UserID(n.String())
	return nil
}

// Int64 returns the identifier as an integer when it is numeric.
func (id UserID) Int64() (int64, bool) {
	n, err := strconv.ParseInt(string(id), 10, 64)
	return n, err == nil
}

// User is the cached profile of the authenticated account.
type User struct {
	ID    UserID `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// ============================================================================
// Request / Response Types
// ============================================================================

// SignupRequest carries the registration fields sent to POST /auth/signup.
type SignupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse is returned by the signup and login endpoints.
type AuthResponse struct {
	// AccessToken is the opaque bearer credential
	AccessToken string `json:"access_token"`

	// TokenType is "bearer" when present
	TokenType string `json:"token_type,omitempty"`

	// User is the profile of the account that was authenticated
	User User `json:"user"`
}

// PasswordResetRequest is the body of POST /auth/reset-password.
type PasswordResetRequest struct {
	Email string `json:"email"`
}

// ConfirmPasswordResetRequest is the body of POST /auth/confirm-reset-password.
type ConfirmPasswordResetRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

// MessageResponse is the acknowledgement body of the password recovery endpoints.
type MessageResponse struct {
	Message string `json:"message"`
}

// errorBody is the union of error shapes the backend produces: {"message": ...}
// from the list endpoints and {"detail": ...} from the auth endpoints, where
// detail is either a string or a list of field errors.
type errorBody struct {
	Message string          `json:"message"`
	Detail  json.RawMessage `json:"detail"`
}

// fieldError is one element of a list-shaped detail.
type fieldError struct {
	Loc []any  `json:"loc"`
	Msg string `json:"msg"`
}
