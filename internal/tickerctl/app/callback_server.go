package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/aussiebroadwan/tickerwatch/pkg/authsdk"
	"github.com/aussiebroadwan/tickerwatch/pkg/httpx"
	"github.com/aussiebroadwan/tickerwatch/pkg/slogx"
)

// CallbackPath is where the backend redirects after the provider flow.
const CallbackPath = "/callback"

// callbackServer receives the identity provider redirect on a loopback
// address and feeds it to a CallbackHandler.
type callbackServer struct {
	handler *authsdk.CallbackHandler
	logger  *slog.Logger

	server   *http.Server
	listener net.Listener
}

func newCallbackServer(addr string, handler *authsdk.CallbackHandler, logger *slog.Logger) (*callbackServer, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	cs := &callbackServer{
		handler:  handler,
		logger:   logger,
		listener: ln,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET "+CallbackPath, cs.handleCallback)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": cs.handler.Status().String()})
	})

	cs.server = &http.Server{
		Handler:           slogx.HTTPMiddleware(logger)(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return cs, nil
}

// URL is the callback address to configure on the backend.
func (cs *callbackServer) URL() string {
	return "http://" + cs.listener.Addr().String() + CallbackPath
}

func (cs *callbackServer) Start() {
	go func() {
		if err := cs.server.Serve(cs.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			cs.logger.Error("callback listener failed", "error", err)
		}
	}()
}

func (cs *callbackServer) Shutdown(ctx context.Context) error {
	return cs.server.Shutdown(ctx)
}

func (cs *callbackServer) handleCallback(w http.ResponseWriter, r *http.Request) {
	res := cs.handler.Handle(r.Context(), authsdk.ParseOAuthExchange(r.URL))

	if res.Status == authsdk.CallbackSuccess {
		httpx.WriteStatusPage(w, http.StatusOK, httpx.StatusPage{
			Title:   "Signed in",
			Message: fmt.Sprintf("Welcome, %s. You can close this tab and return to the terminal.", res.User.Name),
		})
		return
	}

	slogx.FromContext(r.Context()).Warn("oauth callback failed", "error", res.Err)
	httpx.WriteStatusPage(w, http.StatusBadRequest, httpx.StatusPage{
		Title:   "Sign-in failed",
		Message: callbackFailureMessage(res.Err),
	})
}

func callbackFailureMessage(err error) string {
	var perr *authsdk.ProviderError
	switch {
	case errors.As(err, &perr):
		return "The identity provider reported: " + perr.Code
	case errors.Is(err, authsdk.ErrIncompleteCallback):
		return "The redirect did not include a token."
	case errors.Is(err, authsdk.ErrSessionExpired):
		return "The token from the identity provider was not accepted."
	default:
		return "Authentication failed. Return to the terminal for details."
	}
}
