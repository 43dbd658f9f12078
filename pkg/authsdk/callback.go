package authsdk

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"
)

// Redirect delays after a callback reaches a terminal status.
const (
	CallbackSuccessDelay = 1000 * time.Millisecond
	CallbackErrorDelay   = 2000 * time.Millisecond
)

// CallbackStatus is the progress of one OAuth exchange. It only moves forward.
type CallbackStatus int

const (
	CallbackProcessing CallbackStatus = iota
	CallbackAuthenticating
	CallbackSuccess
	CallbackError
)

func (s CallbackStatus) String() string {
	switch s {
	case CallbackProcessing:
		return "processing"
	case CallbackAuthenticating:
		return "authenticating"
	case CallbackSuccess:
		return "success"
	case CallbackError:
		return "error"
	default:
		return fmt.Sprintf("callback_status(%d)", int(s))
	}
}

// Terminal reports whether s is success or error.
func (s CallbackStatus) Terminal() bool {
	return s == CallbackSuccess || s == CallbackError
}

// OAuthExchange is the one-time payload of a provider redirect. It is never
// persisted.
type OAuthExchange struct {
	Token    string
	Provider string
	Error    string
}

// ParseOAuthExchange extracts token, provider and error from a redirect URL.
func ParseOAuthExchange(u *url.URL) OAuthExchange {
	q := u.Query()
	return OAuthExchange{
		Token:    q.Get("token"),
		Provider: q.Get("provider"),
		Error:    q.Get("error"),
	}
}

// DelayedTransition is an effect: navigate to Target once After has elapsed.
// The handler only describes it; RunTransition (or the caller) executes it.
type DelayedTransition struct {
	Target string
	After  time.Duration
}

// CallbackResult is the terminal outcome of Handle.
type CallbackResult struct {
	Status     CallbackStatus
	User       *User
	Err        error
	Transition DelayedTransition
}

// ExternalAuthCompleter is the part of the Manager the callback needs.
type ExternalAuthCompleter interface {
	CompleteExternalAuth(ctx context.Context, token string, provider Provider, remember bool) (*User, error)
}

// CallbackOptions configures a CallbackHandler.
type CallbackOptions struct {
	// Remember stores the resulting credential in the persistent lifetime
	Remember bool

	// LoginTarget and LandingTarget default to LoginSurface and LandingSurface
	LoginTarget   string
	LandingTarget string

	// OnStatus is called on every status change, outside the handler's lock
	OnStatus func(CallbackStatus)
}

// CallbackHandler drives a single OAuth exchange to success or error.
type CallbackHandler struct {
	session ExternalAuthCompleter
	opts    CallbackOptions

	mu      sync.Mutex
	status  CallbackStatus
	claimed bool
	result  *CallbackResult
	done    chan struct{}
}

// NewCallbackHandler creates a handler in the processing status.
func NewCallbackHandler(session ExternalAuthCompleter, opts CallbackOptions) *CallbackHandler {
	if opts.LoginTarget == "" {
		opts.LoginTarget = LoginSurface
	}
	if opts.LandingTarget == "" {
		opts.LandingTarget = LandingSurface
	}
	return &CallbackHandler{
		session: session,
		opts:    opts,
		status:  CallbackProcessing,
		done:    make(chan struct{}),
	}
}

// Status returns the current status.
func (h *CallbackHandler) Status() CallbackStatus {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.status
}

// Done is closed once the handler has reached a terminal status.
func (h *CallbackHandler) Done() <-chan struct{} {
	return h.done
}

// Result returns the terminal result, or false while still running.
func (h *CallbackHandler) Result() (CallbackResult, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.result == nil {
		return CallbackResult{}, false
	}
	return *h.result, true
}

// advance moves to next if that is forward and the current status is not
// terminal. It reports whether the transition happened.
func (h *CallbackHandler) advance(next CallbackStatus) bool {
	h.mu.Lock()
	if h.status.Terminal() || next <= h.status {
		h.mu.Unlock()
		return false
	}
	h.status = next
	h.mu.Unlock()

	if h.opts.OnStatus != nil {
		h.opts.OnStatus(next)
	}
	return true
}

// claim marks the exchange as taken. Only the first caller gets true.
func (h *CallbackHandler) claim() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.claimed {
		return false
	}
	h.claimed = true
	return true
}

// Handle consumes ex. The exchange is handled once: later calls wait for and
// return the first call's result without touching the session again.
func (h *CallbackHandler) Handle(ctx context.Context, ex OAuthExchange) CallbackResult {
	if !h.claim() {
		select {
		case <-h.done:
		case <-ctx.Done():
			return CallbackResult{Status: h.Status(), Err: ctx.Err()}
		}
		res, _ := h.Result()
		return res
	}

	switch {
	case ex.Error != "":
		return h.fail(&ProviderError{Provider: ex.Provider, Code: ex.Error})
	case ex.Token == "" || ex.Provider == "":
		return h.fail(ErrIncompleteCallback)
	}

	h.advance(CallbackAuthenticating)

	user, err := h.session.CompleteExternalAuth(ctx, ex.Token, Provider(ex.Provider), h.opts.Remember)
	if err != nil {
		return h.fail(err)
	}

	return h.finish(CallbackResult{
		Status:     CallbackSuccess,
		User:       user,
		Transition: DelayedTransition{Target: h.opts.LandingTarget, After: CallbackSuccessDelay},
	})
}

func (h *CallbackHandler) fail(err error) CallbackResult {
	return h.finish(CallbackResult{
		Status:     CallbackError,
		Err:        err,
		Transition: DelayedTransition{Target: h.opts.LoginTarget, After: CallbackErrorDelay},
	})
}

func (h *CallbackHandler) finish(res CallbackResult) CallbackResult {
	h.advance(res.Status)

	h.mu.Lock()
	h.result = &res
	h.mu.Unlock()
	close(h.done)

	return res
}

// RunTransition executes t: nav.Navigate(t.Target) after t.After, unless ctx
// is cancelled first. The returned Timer cancels the pending navigation.
func RunTransition(ctx context.Context, sched Scheduler, nav Navigator, t DelayedTransition) Timer {
	return sched.AfterFunc(t.After, func() {
		if ctx.Err() != nil {
			return
		}
		nav.Navigate(t.Target)
	})
}
