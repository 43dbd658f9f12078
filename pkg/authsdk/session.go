package authsdk

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aussiebroadwan/tickerwatch/pkg/credstore"
	"github.com/aussiebroadwan/tickerwatch/pkg/cryptox"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

// State is the lifecycle position of the Manager's session.
type State int

const (
	StateAnonymous State = iota
	StateAuthenticating
	StateAuthenticated
	StateExpired
	StateLoggedOut
)

func (s State) String() string {
	switch s {
	case StateAnonymous:
		return "anonymous"
	case StateAuthenticating:
		return "authenticating"
	case StateAuthenticated:
		return "authenticated"
	case StateExpired:
		return "expired"
	case StateLoggedOut:
		return "logged_out"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// AuthEndpoint is the backend contract the Manager consumes. *SDKClient
// implements it.
type AuthEndpoint interface {
	Signup(ctx context.Context, req SignupRequest) (*AuthResponse, error)
	Login(ctx context.Context, email, password string) (*AuthResponse, error)
	Me(ctx context.Context, token string) (*User, error)
	RequestPasswordReset(ctx context.Context, email string) (*MessageResponse, error)
	ConfirmPasswordReset(ctx context.Context, token, newPassword string) (*MessageResponse, error)
	ExternalAuthURL(provider Provider) (string, error)
}

// ManagerConfig wires a Manager's collaborators.
type ManagerConfig struct {
	Endpoint  AuthEndpoint     // required
	Store     *credstore.Store // required
	Navigator Navigator        // default: no-op
	Scheduler Scheduler        // default: SystemScheduler
	Logger    *slog.Logger     // default: slog.Default()
}

// Manager owns the single active credential of the application. Build one at
// startup and pass it to every consumer.
//
// Credential changes are serialized in call order: every new credential bumps
// a generation counter, and work that started under an older generation
// (profile fetches, inactivity timers) never touches a newer credential.
type Manager struct {
	endpoint AuthEndpoint
	store    *credstore.Store
	nav      Navigator
	sched    Scheduler
	logger   *slog.Logger

	// completions collapses duplicate deliveries of the same OAuth token
	completions singleflight.Group

	mu       sync.Mutex
	cred     *Credential
	user     *User
	state    State
	gen      uint64
	idle     time.Duration
	timer    Timer
	timerSeq uint64
	deadline time.Time
}

// NewManager builds a Manager and restores any credential already held by the
// store, so a remembered session survives a restart.
func NewManager(ctx context.Context, cfg ManagerConfig) (*Manager, error) {
	if cfg.Endpoint == nil {
		return nil, errors.New("authsdk: manager requires an endpoint")
	}
	if cfg.Store == nil {
		return nil, errors.New("authsdk: manager requires a credential store")
	}

	m := &Manager{
		endpoint: cfg.Endpoint,
		store:    cfg.Store,
		nav:      cfg.Navigator,
		sched:    cfg.Scheduler,
		logger:   cfg.Logger,
	}
	if m.nav == nil {
		m.nav = nopNavigator{}
	}
	if m.sched == nil {
		m.sched = SystemScheduler{}
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	m.logger = m.logger.With("component", "session")

	m.restore(ctx)
	return m, nil
}

// restore loads the stored credential and cached profile. A credential that
// cannot be read is invalid: it is erased and the Manager starts anonymous.
func (m *Manager) restore(ctx context.Context) {
	token, err := m.store.Read(ctx, credstore.KeyAccessToken)
	if errors.Is(err, credstore.ErrNotFound) || (err == nil && token == "") {
		return
	}
	if err != nil {
		m.logger.Warn("discarding unreadable stored credential", "error", err)
		if err := m.eraseStored(ctx); err != nil {
			m.logger.Error("failed to erase unreadable credential", "error", err)
		}
		return
	}

	remember, _ := m.store.Read(ctx, credstore.KeyRememberMe)
	cred := NewCredential(token, remember == "true")

	var user *User
	if raw, err := m.store.Read(ctx, credstore.KeyUser); err == nil && raw != "" {
		var u User
		if json.Unmarshal([]byte(raw), &u) == nil {
			user = &u
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.gen++
	m.cred = &cred
	m.user = user
	m.state = StateAuthenticating
	if user != nil {
		m.state = StateAuthenticated
	}

	m.logger.Debug("session restored",
		"token_fp", cryptox.ShortFingerprint(token),
		"remember", cred.Remember,
		"state", m.state.String(),
	)
}

// ============================================================================
// Authentication
// ============================================================================

// Signup registers an account and starts a session for it.
func (m *Manager) Signup(ctx context.Context, req SignupRequest, remember bool) (*User, error) {
	prev := m.begin()

	resp, err := m.endpoint.Signup(ctx, req)
	if err != nil {
		m.abort(prev)
		return nil, err
	}

	return m.establish(ctx, prev, resp, remember, "signup")
}

// Login authenticates with email and password and starts a session.
func (m *Manager) Login(ctx context.Context, email, password string, remember bool) (*User, error) {
	prev := m.begin()

	resp, err := m.endpoint.Login(ctx, email, password)
	if err != nil {
		m.abort(prev)
		return nil, err
	}

	return m.establish(ctx, prev, resp, remember, "login")
}

// establish stores the credential and profile from a signup or login response.
func (m *Manager) establish(ctx context.Context, prev State, resp *AuthResponse, remember bool, via string) (*User, error) {
	if resp.AccessToken == "" {
		m.abort(prev)
		return nil, &RemoteError{Message: "response did not include an access token"}
	}

	user := resp.User
	if _, err := m.setCredential(ctx, NewCredential(resp.AccessToken, remember), &user); err != nil {
		return nil, err
	}

	m.logger.Info("session established",
		"via", via,
		"user_id", string(user.ID),
		"remember", remember,
		"token_fp", cryptox.ShortFingerprint(resp.AccessToken),
	)

	out := user
	return &out, nil
}

// InitiateExternalAuth navigates to the provider's authorization flow. The
// application is re-entered through the OAuth callback.
func (m *Manager) InitiateExternalAuth(provider Provider) error {
	target, err := m.endpoint.ExternalAuthURL(provider)
	if err != nil {
		return err
	}

	m.logger.Info("starting external auth", "provider", string(provider))
	m.nav.Navigate(target)
	return nil
}

// CompleteExternalAuth stores a token delivered by an OAuth redirect and
// validates it by fetching the profile. A token that cannot fetch a profile is
// invalid: it is erased and a *SessionExpiredError is returned.
//
// Concurrent calls with the same token share one completion; the first caller
// wins and the others receive its result. Different tokens follow
// last-write-wins.
func (m *Manager) CompleteExternalAuth(ctx context.Context, token string, provider Provider, remember bool) (*User, error) {
	if token == "" {
		return nil, ErrNoCredential
	}

	v, err, shared := m.completions.Do(token, func() (any, error) {
		return m.completeExternalAuth(ctx, token, provider, remember)
	})
	if shared {
		m.logger.Debug("external auth completion shared", "provider", string(provider))
	}
	if err != nil {
		return nil, err
	}

	user := *(v.(*User))
	return &user, nil
}

func (m *Manager) completeExternalAuth(ctx context.Context, token string, provider Provider, remember bool) (*User, error) {
	prev := m.begin()

	gen, err := m.setCredential(ctx, NewCredential(token, remember), nil)
	if err != nil {
		m.abort(prev)
		return nil, err
	}

	user, err := m.endpoint.Me(ctx, token)
	if err != nil {
		m.discard(ctx, gen, StateAnonymous)
		m.logger.Warn("external auth token rejected",
			"provider", string(provider),
			"error", err,
		)
		return nil, &SessionExpiredError{Reason: "profile fetch failed", Cause: err}
	}

	if err := m.commitUser(ctx, gen, user); err != nil {
		return nil, err
	}

	m.logger.Info("session established",
		"via", "oauth",
		"provider", string(provider),
		"user_id", string(user.ID),
		"remember", remember,
		"token_fp", cryptox.ShortFingerprint(token),
	)
	return user, nil
}

// ============================================================================
// Profile
// ============================================================================

// CurrentUser returns the cached profile, fetching it with the stored
// credential when nothing is cached. A failed fetch expires the session.
func (m *Manager) CurrentUser(ctx context.Context) (*User, error) {
	m.mu.Lock()
	if m.user != nil && m.cred != nil {
		u := *m.user
		m.mu.Unlock()
		return &u, nil
	}
	m.mu.Unlock()

	return m.fetchUser(ctx)
}

// RefreshUser re-fetches the profile, bypassing the cache.
func (m *Manager) RefreshUser(ctx context.Context) (*User, error) {
	return m.fetchUser(ctx)
}

func (m *Manager) fetchUser(ctx context.Context) (*User, error) {
	m.mu.Lock()
	cred, gen := m.cred, m.gen
	m.mu.Unlock()

	if cred == nil {
		return nil, &SessionExpiredError{Reason: "no credential", Cause: ErrNoCredential}
	}

	user, err := m.endpoint.Me(ctx, cred.AccessToken)
	if err != nil {
		var expired *SessionExpiredError
		if !errors.As(err, &expired) {
			expired = &SessionExpiredError{Reason: "profile fetch failed", Cause: err}
		}
		if err := m.expireGen(ctx, gen, expired.Reason); err != nil {
			m.logger.Error("failed to clear expired session", "error", err)
		}
		return nil, expired
	}

	if err := m.commitUser(ctx, gen, user); err != nil {
		return nil, err
	}

	out := *user
	return &out, nil
}

// ============================================================================
// Logout / Expiry
// ============================================================================

// Logout erases the credential and profile from both lifetimes and cancels
// the inactivity timer. Calling it again is harmless.
func (m *Manager) Logout(ctx context.Context) error {
	m.mu.Lock()
	wasActive := m.cred != nil
	m.clearLocked(StateLoggedOut)
	m.mu.Unlock()

	if wasActive {
		m.logger.Info("logged out")
	}
	return m.eraseStored(ctx)
}

// Expire forces the session into the expired state, erases everything stored
// and navigates to the login surface.
func (m *Manager) Expire(ctx context.Context, reason string) error {
	m.mu.Lock()
	gen := m.gen
	m.mu.Unlock()

	return m.expireGen(ctx, gen, reason)
}

// ExpireToken expires the session only while token is still the active
// credential. A rejection of a credential that has since been replaced is
// ignored and reports false.
func (m *Manager) ExpireToken(ctx context.Context, token, reason string) (bool, error) {
	m.mu.Lock()
	if m.cred == nil || token == "" || m.cred.AccessToken != token {
		m.mu.Unlock()
		m.logger.Debug("ignoring rejection of replaced credential",
			"reason", reason,
			"token_fp", cryptox.ShortFingerprint(token),
		)
		return false, nil
	}
	m.clearLocked(StateExpired)
	m.mu.Unlock()

	return true, m.finishExpiry(ctx, reason)
}

// expireGen expires the session only if no newer credential has been set
// since gen was observed.
func (m *Manager) expireGen(ctx context.Context, gen uint64, reason string) error {
	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		return nil
	}
	m.clearLocked(StateExpired)
	m.mu.Unlock()

	return m.finishExpiry(ctx, reason)
}

// finishExpiry runs after the in-memory session has been cleared.
func (m *Manager) finishExpiry(ctx context.Context, reason string) error {
	m.logger.Warn("session expired", "reason", reason)

	err := m.eraseStored(ctx)
	m.nav.Navigate(LoginSurface)
	return err
}

// discard drops a credential that never became authenticated.
func (m *Manager) discard(ctx context.Context, gen uint64, next State) {
	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		return
	}
	m.clearLocked(next)
	m.mu.Unlock()

	if err := m.eraseStored(ctx); err != nil {
		m.logger.Error("failed to erase rejected credential", "error", err)
	}
}

// clearLocked forgets the in-memory session. Caller holds m.mu.
func (m *Manager) clearLocked(next State) {
	m.cancelTimerLocked()
	m.gen++
	m.cred = nil
	m.user = nil
	if m.state != StateAnonymous || next != StateLoggedOut {
		m.state = next
	}
}

func (m *Manager) eraseStored(ctx context.Context) error {
	var errs []error
	for _, key := range []string{credstore.KeyAccessToken, credstore.KeyUser, credstore.KeyRememberMe} {
		if err := m.store.Erase(ctx, key); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ============================================================================
// Credential bookkeeping
// ============================================================================

// begin moves into authenticating and returns the state to fall back to.
func (m *Manager) begin() State {
	m.mu.Lock()
	defer m.mu.Unlock()

	prev := m.state
	m.state = StateAuthenticating
	return prev
}

// abort restores the state saved by begin after a failed attempt.
func (m *Manager) abort(prev State) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == StateAuthenticating {
		m.state = prev
	}
}

// setCredential replaces the active credential, writing it to its lifetime
// and clearing the other lifetime's copy. A nil user leaves the session in
// authenticating until a profile is committed.
func (m *Manager) setCredential(ctx context.Context, cred Credential, user *User) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.cancelTimerLocked()
	m.gen++

	if err := m.persistLocked(ctx, cred, user); err != nil {
		m.cred = nil
		m.user = nil
		m.state = StateAnonymous
		if eraseErr := m.eraseStored(ctx); eraseErr != nil {
			m.logger.Error("failed to erase partially written credential", "error", eraseErr)
		}
		return 0, err
	}

	m.cred = &cred
	m.user = user
	m.state = StateAuthenticating
	if user != nil {
		m.state = StateAuthenticated
	}

	m.armLocked()
	return m.gen, nil
}

func (m *Manager) persistLocked(ctx context.Context, cred Credential, user *User) error {
	lifetime := cred.Lifetime()
	other := credstore.Other(lifetime)

	for _, key := range []string{credstore.KeyAccessToken, credstore.KeyUser, credstore.KeyRememberMe} {
		if err := m.store.EraseFrom(ctx, other, key); err != nil {
			return err
		}
	}

	if err := m.store.Write(ctx, lifetime, credstore.KeyAccessToken, cred.AccessToken); err != nil {
		return err
	}

	if cred.Remember {
		if err := m.store.Write(ctx, credstore.Persistent, credstore.KeyRememberMe, "true"); err != nil {
			return err
		}
	}

	if user == nil {
		return m.store.EraseFrom(ctx, lifetime, credstore.KeyUser)
	}
	return m.writeUserLocked(ctx, lifetime, user)
}

func (m *Manager) writeUserLocked(ctx context.Context, lifetime credstore.Lifetime, user *User) error {
	raw, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("failed to encode profile: %w", err)
	}
	return m.store.Write(ctx, lifetime, credstore.KeyUser, string(raw))
}

// commitUser caches a fetched profile for the credential of generation gen.
func (m *Manager) commitUser(ctx context.Context, gen uint64, user *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if gen != m.gen || m.cred == nil {
		return ErrSuperseded
	}

	if err := m.writeUserLocked(ctx, m.cred.Lifetime(), user); err != nil {
		return err
	}

	u := *user
	m.user = &u
	m.state = StateAuthenticated
	return nil
}

// ============================================================================
// Accessors
// ============================================================================

// IsAuthenticated reports whether a non-empty credential is held.
func (m *Manager) IsAuthenticated() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cred != nil && m.cred.AccessToken != ""
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Credential returns a copy of the active credential.
func (m *Manager) Credential() (Credential, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cred == nil {
		return Credential{}, false
	}
	return *m.cred, true
}

// Token implements oauth2.TokenSource over the active credential. It returns
// ErrNoCredential when nothing is held.
func (m *Manager) Token() (*oauth2.Token, error) {
	cred, ok := m.Credential()
	if !ok || cred.AccessToken == "" {
		return nil, ErrNoCredential
	}
	return cred.OAuth2Token(), nil
}

var _ oauth2.TokenSource = (*Manager)(nil)

// ============================================================================
// Password recovery
// ============================================================================

// RequestPasswordReset asks the backend to email a reset link.
func (m *Manager) RequestPasswordReset(ctx context.Context, email string) (*MessageResponse, error) {
	return m.endpoint.RequestPasswordReset(ctx, email)
}

// ConfirmPasswordReset completes the recovery flow. It does not log in.
func (m *Manager) ConfirmPasswordReset(ctx context.Context, token, newPassword string) (*MessageResponse, error) {
	return m.endpoint.ConfirmPasswordReset(ctx, token, newPassword)
}
