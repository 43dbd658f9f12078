package authsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aussiebroadwan/tickerwatch/pkg/idx"
	"github.com/aussiebroadwan/tickerwatch/pkg/slogx"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

const tracerName = "github.com/aussiebroadwan/tickerwatch/pkg/authsdk"

// SessionAuthority is the part of the Manager the Gateway needs: a token
// source and a way to expire the session when the backend rejects the token
// a request was sent with. ExpireToken must leave a newer credential alone.
type SessionAuthority interface {
	oauth2.TokenSource
	ExpireToken(ctx context.Context, token, reason string) (bool, error)
}

// GatewayConfig wires a Gateway.
type GatewayConfig struct {
	BaseURL    string
	HTTPClient *http.Client     // default: a client with no timeout
	Session    SessionAuthority // required

	// RequestsPerSecond paces outbound calls. Zero disables pacing.
	RequestsPerSecond float64
	Burst             int

	Logger *slog.Logger

	// TracerProvider and Propagator default to the otel globals
	TracerProvider trace.TracerProvider
	Propagator     propagation.TextMapPropagator
}

// Gateway performs authorized requests against the data API. It attaches the
// active credential, and a 401 from the backend ends the session. Requests
// are never retried.
type Gateway struct {
	baseURL    string
	httpClient *http.Client
	session    SessionAuthority
	limiter    *rate.Limiter
	logger     *slog.Logger
	tracer     trace.Tracer
	propagator propagation.TextMapPropagator
}

// NewGateway creates a Gateway.
func NewGateway(cfg GatewayConfig) (*Gateway, error) {
	if cfg.Session == nil {
		return nil, fmt.Errorf("authsdk: gateway requires a session")
	}

	g := &Gateway{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: cfg.HTTPClient,
		session:    cfg.Session,
		logger:     cfg.Logger,
	}
	if g.httpClient == nil {
		g.httpClient = &http.Client{}
	}
	if g.logger == nil {
		g.logger = slog.Default()
	}
	g.logger = g.logger.With("component", "gateway")

	tp := cfg.TracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	g.tracer = tp.Tracer(tracerName)
	g.propagator = cfg.Propagator
	if g.propagator == nil {
		g.propagator = otel.GetTextMapPropagator()
	}

	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		g.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	return g, nil
}

// RequestOptions describes one authorized request.
type RequestOptions struct {
	// Method defaults to GET
	Method string

	// Header values override the defaults, Authorization included
	Header http.Header

	Query url.Values

	// Body is encoded as JSON when non-nil
	Body any
}

// Do sends an authorized request to endpoint (a path relative to the base
// URL) and decodes a 2xx JSON body into out, which may be nil.
//
// With no credential held it returns ErrNoCredential without touching the
// network. A 401 response logs the session out, navigates to the login
// surface and returns a *SessionExpiredError. Any other non-2xx status
// returns a *RemoteError carrying the body's message.
func (g *Gateway) Do(ctx context.Context, endpoint string, opts RequestOptions, out any) (err error) {
	method := opts.Method
	if method == "" {
		method = http.MethodGet
	}

	ctx, span := g.tracer.Start(ctx, "gateway "+method,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", method),
			attribute.String("tickerwatch.endpoint", endpoint),
		),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	return g.do(ctx, span, endpoint, opts, out)
}

func (g *Gateway) do(ctx context.Context, span trace.Span, endpoint string, opts RequestOptions, out any) error {
	tok, err := g.session.Token()
	if err != nil {
		return err
	}
	if tok == nil || tok.AccessToken == "" {
		return ErrNoCredential
	}

	req, err := g.newRequest(ctx, endpoint, opts, tok)
	if err != nil {
		return err
	}

	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	reqID := req.Header.Get("X-Request-ID")
	logger := slogx.Traced(ctx, g.logger).With("req_id", reqID, "method", req.Method, "endpoint", endpoint)

	start := time.Now()
	resp, err := g.httpClient.Do(req)
	if err != nil {
		logger.Debug("request failed", "error", err)
		return &NetworkError{Op: req.Method + " " + endpoint, Err: err}
	}
	defer resp.Body.Close()

	logger.Debug("request completed",
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	if resp.StatusCode == http.StatusUnauthorized {
		// The caller's context may already be done; the logout must still run.
		expired, err := g.session.ExpireToken(context.WithoutCancel(ctx), tok.AccessToken, "unauthorized")
		if err != nil {
			logger.Error("failed to clear rejected session", "error", err)
		}
		span.SetAttributes(attribute.Bool("tickerwatch.session_expired", expired))

		body, _ := io.ReadAll(resp.Body)
		cause := &RemoteError{StatusCode: resp.StatusCode, Message: errorMessage(resp.StatusCode, body)}
		return &SessionExpiredError{Reason: "unauthorized", Cause: cause}
	}

	body, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		return fmt.Errorf("failed to read response body: %w", readErr)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &RemoteError{StatusCode: resp.StatusCode, Message: errorMessage(resp.StatusCode, body)}
	}

	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (g *Gateway) newRequest(ctx context.Context, endpoint string, opts RequestOptions, tok *oauth2.Token) (*http.Request, error) {
	method := opts.Method
	if method == "" {
		method = http.MethodGet
	}

	target := g.baseURL + "/" + strings.TrimLeft(endpoint, "/")
	if len(opts.Query) > 0 {
		target += "?" + opts.Query.Encode()
	}

	var body io.Reader
	if opts.Body != nil {
		payload, err := json.Marshal(opts.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", idx.New().String())
	tok.SetAuthHeader(req)
	g.propagator.Inject(ctx, propagation.HeaderCarrier(req.Header))

	for key, values := range opts.Header {
		req.Header.Del(key)
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}

	return req, nil
}

// Call is Do with a typed result.
func Call[T any](ctx context.Context, g *Gateway, endpoint string, opts RequestOptions) (T, error) {
	var out T
	err := g.Do(ctx, endpoint, opts, &out)
	return out, err
}
