package authsdk

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

// Provider identifies an external identity provider offered by the backend.
type Provider string

const (
	ProviderGoogle Provider = "google"
	ProviderGitHub Provider = "github"
)

// ParseProvider validates a provider name (case-insensitive).
func ParseProvider(s string) (Provider, error) {
	switch p := Provider(strings.ToLower(strings.TrimSpace(s))); p {
	case ProviderGoogle, ProviderGitHub:
		return p, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedProvider, s)
	}
}

// SDKClient talks to the backend's /auth endpoints. It holds no credential;
// the Manager owns that.
type SDKClient struct {
	BaseURL string

	// HTTPClient performs requests. No timeout is set by default; network
	// failures surface as whatever the transport reports.
	HTTPClient *http.Client
}

// NewSDKClient creates a client for the backend at baseURL.
func NewSDKClient(baseURL string) *SDKClient {
	return &SDKClient{
		BaseURL:    strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{},
	}
}

// Signup registers a new account. Fields are checked locally first.
func (c *SDKClient) Signup(ctx context.Context, req SignupRequest) (*AuthResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var resp AuthResponse
	if err := c.postJSON(ctx, "/auth/signup", req, &resp, parseSignupError); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Login authenticates an existing account.
func (c *SDKClient) Login(ctx context.Context, email, password string) (*AuthResponse, error) {
	var resp AuthResponse
	err := c.postJSON(ctx, "/auth/login", LoginRequest{Email: email, Password: password}, &resp, parseLoginError)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// Me fetches the profile belonging to token. A 401 is reported as
// *SessionExpiredError.
func (c *SDKClient) Me(ctx context.Context, token string) (*User, error) {
	headers := map[string]string{"Authorization": "Bearer " + token}

	resp, err := c.doRequest(ctx, http.MethodGet, "/auth/me", nil, headers)
	if err != nil {
		return nil, err
	}

	var user User
	if err := decodeJSON(resp, &user, parseProfileError); err != nil {
		return nil, err
	}
	return &user, nil
}

// RequestPasswordReset asks the backend to email a reset link.
func (c *SDKClient) RequestPasswordReset(ctx context.Context, email string) (*MessageResponse, error) {
	var resp MessageResponse
	err := c.postJSON(ctx, "/auth/reset-password", PasswordResetRequest{Email: email}, &resp, parseGenericError)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// ConfirmPasswordReset sets a new password using the token from the reset email.
func (c *SDKClient) ConfirmPasswordReset(ctx context.Context, token, newPassword string) (*MessageResponse, error) {
	body := ConfirmPasswordResetRequest{Token: token, NewPassword: newPassword}

	var resp MessageResponse
	if err := c.postJSON(ctx, "/auth/confirm-reset-password", body, &resp, parseSignupError); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ExternalAuthURL returns the backend URL that starts the provider's OAuth
// flow. It is meant for full navigation, not for an API call.
func (c *SDKClient) ExternalAuthURL(provider Provider) (string, error) {
	p, err := ParseProvider(string(provider))
	if err != nil {
		return "", err
	}
	return c.url("/auth/" + string(p)), nil
}
