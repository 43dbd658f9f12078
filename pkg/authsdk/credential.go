package authsdk

import (
	"time"

	"github.com/aussiebroadwan/tickerwatch/pkg/credstore"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
)

// Credential is the active bearer token and how it is stored.
type Credential struct {
	// AccessToken is opaque to the client
	AccessToken string

	// Remember selects the persistent lifetime; otherwise the credential is
	// dropped when the process exits and the inactivity timer applies
	Remember bool

	// ExpiresAt is a hint taken from the token's exp claim when the token is a
	// JWT. Zero when unknown. It is never used to reject a token.
	ExpiresAt time.Time
}

// NewCredential builds a Credential and derives its expiry hint.
func NewCredential(token string, remember bool) Credential {
	return Credential{
		AccessToken: token,
		Remember:    remember,
		ExpiresAt:   expiryHint(token),
	}
}

// Lifetime returns the storage lifetime this credential belongs in.
func (c Credential) Lifetime() credstore.Lifetime {
	if c.Remember {
		return credstore.Persistent
	}
	return credstore.Ephemeral
}

// OAuth2Token converts the credential for oauth2-aware transports.
func (c Credential) OAuth2Token() *oauth2.Token {
	return &oauth2.Token{
		AccessToken: c.AccessToken,
		TokenType:   "Bearer",
		Expiry:      c.ExpiresAt,
	}
}

// expiryHint reads exp from a JWT without verifying it. Signature checks are
// the backend's job; opaque tokens simply yield the zero time.
func expiryHint(token string) time.Time {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}
	}
	if claims.ExpiresAt == nil {
		return time.Time{}
	}
	return claims.ExpiresAt.Time
}
