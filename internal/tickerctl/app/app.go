package app

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/aussiebroadwan/tickerwatch/internal/tickerctl/tickers"
	"github.com/aussiebroadwan/tickerwatch/pkg/authsdk"
	"github.com/aussiebroadwan/tickerwatch/pkg/credstore"
	"github.com/aussiebroadwan/tickerwatch/pkg/idx"
	"github.com/aussiebroadwan/tickerwatch/pkg/slogx"
	"github.com/aussiebroadwan/tickerwatch/pkg/tracex"
)

const (
	// BuildVersion should be set at build time via ldflags.
	BuildVersion = "v0.1.0"
)

// Streams are the terminal the CLI talks to.
type Streams struct {
	In  io.Reader
	Out io.Writer
	Err io.Writer
}

// StdStreams returns the process's standard streams.
func StdStreams() Streams {
	return Streams{In: os.Stdin, Out: os.Stdout, Err: os.Stderr}
}

// Application holds the client's wired dependencies for one invocation.
type Application struct {
	cfg    Config
	io     Streams
	reader *bufio.Reader
	logger *slog.Logger

	store      *credstore.Store
	closeStore func() error

	shutdownTracing tracex.ShutdownFunc

	nav     *terminalNavigator
	client  *authsdk.SDKClient
	manager *authsdk.Manager
	gateway *authsdk.Gateway
	tickers *tickers.Service

	// scheduler drives the inactivity timer and callback transitions
	scheduler authsdk.Scheduler
}

// New wires an Application. The returned Application must be closed.
func New(ctx context.Context, cfg Config, streams Streams) (*Application, error) {
	logger := slogx.New(slogx.Config{
		Service: "tickerctl",
		Version: BuildVersion,
		Env:     cfg.Env,
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
		Output:  streams.Err,
	}).With("invocation", idx.New().String())

	app := &Application{
		cfg:       cfg,
		io:        streams,
		logger:    logger,
		scheduler: authsdk.SystemScheduler{},
	}

	shutdown, err := tracex.Setup(ctx, tracex.Config{
		ServiceName: "tickerctl",
		Version:     BuildVersion,
		Endpoint:    cfg.OTLPEndpoint,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to set up tracing: %w", err)
	}
	app.shutdownTracing = shutdown

	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		_ = shutdown(ctx)
		return nil, err
	}
	app.store, app.closeStore = store, closeStore

	if err := app.initSession(ctx); err != nil {
		_ = app.Close()
		return nil, err
	}

	return app, nil
}

// initSession builds the SDK client, the session manager and the gateway.
func (app *Application) initSession(ctx context.Context) error {
	httpClient := &http.Client{Timeout: app.cfg.RequestTimeout}

	app.nav = newTerminalNavigator(app.io.Out, app.logger)

	app.client = authsdk.NewSDKClient(app.cfg.APIURL)
	app.client.HTTPClient = httpClient

	manager, err := authsdk.NewManager(ctx, authsdk.ManagerConfig{
		Endpoint:  app.client,
		Store:     app.store,
		Navigator: app.nav,
		Scheduler: app.scheduler,
		Logger:    app.logger,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize session: %w", err)
	}
	app.manager = manager
	app.manager.ArmInactivityTimer(app.cfg.InactivityTimeout)

	gateway, err := authsdk.NewGateway(authsdk.GatewayConfig{
		BaseURL:           app.cfg.APIURL,
		HTTPClient:        httpClient,
		Session:           manager,
		RequestsPerSecond: app.cfg.RequestsPerSecond,
		Burst:             1,
		Logger:            app.logger,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize gateway: %w", err)
	}
	app.gateway = gateway
	app.tickers = &tickers.Service{Gateway: gateway}

	return nil
}

// Close releases the credential store and flushes pending spans.
func (app *Application) Close() error {
	var errs []error
	if app.closeStore != nil {
		errs = append(errs, app.closeStore())
	}
	if app.shutdownTracing != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		errs = append(errs, app.shutdownTracing(ctx))
	}
	return errors.Join(errs...)
}

// Manager exposes the session manager, mainly for tests.
func (app *Application) Manager() *authsdk.Manager { return app.manager }
