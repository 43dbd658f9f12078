package authsdk_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aussiebroadwan/tickerwatch/pkg/authsdk"
	"github.com/aussiebroadwan/tickerwatch/pkg/credstore"
	"github.com/aussiebroadwan/tickerwatch/pkg/slogx"
	"github.com/stretchr/testify/require"
)

const (
	adaEmail    = "ada@example.com"
	adaPassword = "correct horse battery"
	adaToken    = "tok-ada"
	oauthToken  = "tok-oauth"
	slowToken   = "tok-slow"
)

// ============================================================================
// Scheduler
// ============================================================================

// fakeScheduler runs scheduled functions only when Advance moves its clock.
type fakeScheduler struct {
	mu    sync.Mutex
	now   time.Duration
	tasks []*fakeTimer
}

type fakeTimer struct {
	s       *fakeScheduler
	at      time.Duration
	f       func()
	stopped bool
	fired   bool
}

func (s *fakeScheduler) AfterFunc(d time.Duration, f func()) authsdk.Timer {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := &fakeTimer{s: s, at: s.now + d, f: f}
	s.tasks = append(s.tasks, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	pending := !t.stopped && !t.fired
	t.stopped = true
	return pending
}

// Advance moves the clock forward and runs every task that became due, in
// deadline order, outside the scheduler's lock.
func (s *fakeScheduler) Advance(d time.Duration) {
	s.mu.Lock()
	s.now += d

	var due []*fakeTimer
	for _, t := range s.tasks {
		if !t.stopped && !t.fired && t.at <= s.now {
			t.fired = true
			due = append(due, t)
		}
	}
	s.mu.Unlock()

	sort.SliceStable(due, func(i, j int) bool { return due[i].at < due[j].at })
	for _, t := range due {
		t.f()
	}
}

// Fire runs the i-th scheduled task now, even if it was stopped.
func (s *fakeScheduler) Fire(i int) {
	s.mu.Lock()
	t := s.tasks[i]
	t.fired = true
	s.mu.Unlock()

	t.f()
}

// Pending returns how many tasks are still scheduled.
func (s *fakeScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, t := range s.tasks {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

// ============================================================================
// Navigator
// ============================================================================

type recordingNavigator struct {
	mu      sync.Mutex
	targets []string
}

func (n *recordingNavigator) Navigate(target string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.targets = append(n.targets, target)
}

func (n *recordingNavigator) Targets() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.targets...)
}

// ============================================================================
// Backend
// ============================================================================

// fakeBackend serves the /auth endpoints and a few data endpoints.
type fakeBackend struct {
	srv *httptest.Server

	meCalls   atomic.Int32
	dataCalls atomic.Int32

	// release unblocks /auth/me for slowToken
	release chan struct{}

	mu      sync.Mutex
	users   map[string]authsdk.User // token -> profile
	emails  map[string]bool
	lastReq *http.Request
}

func newFakeBackend(t *testing.T) *fakeBackend {
	t.Helper()

	b := &fakeBackend{
		release: make(chan struct{}),
		users: map[string]authsdk.User{
			adaToken:   {ID: "1", Name: "Ada", Email: adaEmail},
			oauthToken: {ID: "2", Name: "Grace", Email: "grace@example.com"},
			slowToken:  {ID: "3", Name: "Linus", Email: "linus@example.com"},
		},
		emails: map[string]bool{adaEmail: true},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/login", b.handleLogin)
	mux.HandleFunc("POST /auth/signup", b.handleSignup)
	mux.HandleFunc("GET /auth/me", b.handleMe)
	mux.HandleFunc("POST /auth/reset-password", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"message": "If the email exists, a reset link was sent"})
	})
	mux.HandleFunc("POST /auth/confirm-reset-password", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "Invalid or expired token"})
	})
	mux.HandleFunc("/data/", b.handleData)

	b.srv = httptest.NewServer(mux)
	t.Cleanup(b.srv.Close)
	return b
}

func (b *fakeBackend) URL() string { return b.srv.URL }

func (b *fakeBackend) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req authsdk.LoginRequest
	_ = json.NewDecoder(r.Body).Decode(&req)

	if req.Email != adaEmail || req.Password != adaPassword {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Incorrect email or password"})
		return
	}

	// Numeric id, as the backend sends it.
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"access_token":"tok-ada","token_type":"bearer","user":{"id":1,"name":"Ada","email":"ada@example.com"}}`))
}

func (b *fakeBackend) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req authsdk.SignupRequest
	_ = json.NewDecoder(r.Body).Decode(&req)

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.emails[req.Email] {
		writeJSON(w, http.StatusConflict, map[string]string{"detail": "Email already registered"})
		return
	}
	b.emails[req.Email] = true

	token := "tok-" + strings.SplitN(req.Email, "@", 2)[0]
	user := authsdk.User{ID: authsdk.UserID("10"), Name: req.Name, Email: req.Email}
	b.users[token] = user

	writeJSON(w, http.StatusCreated, authsdk.AuthResponse{AccessToken: token, TokenType: "bearer", User: user})
}

func (b *fakeBackend) handleMe(w http.ResponseWriter, r *http.Request) {
	b.meCalls.Add(1)

	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	if token == slowToken {
		<-b.release
	}

	b.mu.Lock()
	user, ok := b.users[token]
	b.mu.Unlock()

	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Could not validate credentials"})
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (b *fakeBackend) handleData(w http.ResponseWriter, r *http.Request) {
	b.dataCalls.Add(1)

	b.mu.Lock()
	b.lastReq = r.Clone(context.Background())
	b.mu.Unlock()

	switch r.URL.Path {
	case "/data/tickers":
		writeJSON(w, http.StatusOK, []map[string]any{
			{"symbol": "ACME", "price": 12.5},
			{"symbol": "INIT", "price": 3.25},
		})
	case "/data/echo":
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		writeJSON(w, http.StatusOK, map[string]any{
			"method": r.Method,
			"query":  r.URL.Query().Get("q"),
			"body":   body,
		})
	case "/data/revoked":
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Token revoked"})
	case "/data/empty":
		w.WriteHeader(http.StatusNoContent)
	case "/data/raw":
		status := http.StatusInternalServerError
		if s := r.URL.Query().Get("status"); s == "502" {
			status = http.StatusBadGateway
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(r.URL.Query().Get("body")))
	default:
		http.NotFound(w, r)
	}
}

func (b *fakeBackend) LastRequest() *http.Request {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastReq
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// ============================================================================
// Manager fixture
// ============================================================================

type fixture struct {
	backend    *fakeBackend
	client     *authsdk.SDKClient
	persistent *credstore.MemoryBackend
	ephemeral  *credstore.MemoryBackend
	store      *credstore.Store
	nav        *recordingNavigator
	sched      *fakeScheduler
	manager    *authsdk.Manager
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		backend:    newFakeBackend(t),
		persistent: credstore.NewMemoryBackend(),
		ephemeral:  credstore.NewMemoryBackend(),
		nav:        &recordingNavigator{},
		sched:      &fakeScheduler{},
	}
	f.client = authsdk.NewSDKClient(f.backend.URL())
	f.store = credstore.New(f.persistent, f.ephemeral)
	f.manager = f.newManager(t, f.store)
	return f
}

func (f *fixture) newManager(t *testing.T, store *credstore.Store) *authsdk.Manager {
	t.Helper()

	m, err := authsdk.NewManager(context.Background(), authsdk.ManagerConfig{
		Endpoint:  f.client,
		Store:     store,
		Navigator: f.nav,
		Scheduler: f.sched,
		Logger:    slogx.Discard(),
	})
	require.NoError(t, err)
	return m
}

// restart simulates a new process: same persistent medium, fresh ephemeral one.
func (f *fixture) restart(t *testing.T) *authsdk.Manager {
	t.Helper()
	return f.newManager(t, credstore.New(f.persistent, credstore.NewMemoryBackend()))
}

func (f *fixture) login(t *testing.T, remember bool) *authsdk.User {
	t.Helper()

	user, err := f.manager.Login(context.Background(), adaEmail, adaPassword, remember)
	require.NoError(t, err)
	return user
}

func (f *fixture) gateway(t *testing.T) *authsdk.Gateway {
	t.Helper()

	gw, err := authsdk.NewGateway(authsdk.GatewayConfig{
		BaseURL: f.backend.URL() + "/data",
		Session: f.manager,
		Logger:  slogx.Discard(),
	})
	require.NoError(t, err)
	return gw
}

// requireStoreEmpty asserts no session key is left in either lifetime.
func requireStoreEmpty(t *testing.T, store *credstore.Store) {
	t.Helper()

	ctx := context.Background()
	for _, key := range []string{credstore.KeyAccessToken, credstore.KeyUser, credstore.KeyRememberMe} {
		require.False(t, store.Has(ctx, key), "key %q should be erased", key)
	}
}
