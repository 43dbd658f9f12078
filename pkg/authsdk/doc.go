/*
Package authsdk manages the client side of a tickerwatch login: obtaining a
bearer credential, keeping it in a credential store, and attaching it to
requests against the data API.

# SDKClient vs Manager vs Gateway

The package is organized around three types:

  - SDKClient: unauthenticated calls to the backend's /auth endpoints
  - Manager: owns the single active credential and the session lifecycle
  - Gateway: performs authorized requests on behalf of the Manager

Build one Manager at startup and hand it to every consumer:

	client := authsdk.NewSDKClient("https://api.example.com")
	store := credstore.New(persistent, credstore.NewMemoryBackend())

	manager, err := authsdk.NewManager(ctx, authsdk.ManagerConfig{
		Endpoint:  client,
		Store:     store,
		Navigator: nav,
	})

	user, err := manager.Login(ctx, "ada@example.com", "correct horse", true)

# Credential Lifetimes

A credential is stored either persistently (remember me) or for the lifetime
of the process. Only one lifetime holds the token at a time: storing a token
clears the other lifetime's copy. A Manager built over a persistent store that
already holds a token restores that session.

# External Identity Providers

InitiateExternalAuth navigates to the provider flow. The redirect back to the
client is handled by a CallbackHandler, which walks

	processing -> authenticating -> success | error

and describes the follow-up navigation as a DelayedTransition: the landing
surface after CallbackSuccessDelay or the login surface after
CallbackErrorDelay.

	handler := authsdk.NewCallbackHandler(manager, authsdk.CallbackOptions{})
	res := handler.Handle(ctx, authsdk.ParseOAuthExchange(redirectURL))
	authsdk.RunTransition(ctx, authsdk.SystemScheduler{}, nav, res.Transition)

# Inactivity

ArmInactivityTimer expires a non-remembered session after a period without
activity. The caller reports activity with ResetInactivityTimer.

# Authorized Requests

	gw, err := authsdk.NewGateway(authsdk.GatewayConfig{BaseURL: api, Session: manager})
	tickers, err := authsdk.Call[[]Ticker](ctx, gw, "/tickers", authsdk.RequestOptions{})

A 401 from the backend ends the session that sent the request: the credential
is erased, the client navigates to the login surface and the call returns
*SessionExpiredError. A 401 for a credential that has since been replaced
leaves the newer session alone.
Requests are never retried.

Each request runs in a client span and carries the trace context in its
headers. Set GatewayConfig.TracerProvider to use a provider other than the
otel global.

# Error Handling

The SDK returns typed errors:

  - ValidationError: signup fields rejected (locally or by the backend)
  - InvalidCredentialsError: login rejected
  - SessionExpiredError: the credential is gone; matches ErrSessionExpired
  - RemoteError: any other non-2xx response
  - NetworkError: transport failure, unwrapping to the transport's error
  - ProviderError: the identity provider reported an error in the redirect

ErrNoCredential is returned, without a request, when nothing is stored.

# Thread Safety

Manager, Gateway and CallbackHandler are safe for concurrent use.
*/
package authsdk
