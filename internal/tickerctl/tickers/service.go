// Package tickers calls the data API's list and notification endpoints
// through the authorized request gateway.
package tickers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/aussiebroadwan/tickerwatch/pkg/authsdk"
)

// Kind names one of the two ticker lists.
type Kind string

const (
	Watch   Kind = "watch"
	Reserve Kind = "reserve"
)

var (
	ErrUnknownKind   = errors.New("tickers: unknown list")
	ErrInvalidSymbol = errors.New("tickers: invalid symbol")
)

var symbolPattern = regexp.MustCompile(`^[A-Z0-9][A-Z0-9.\-]{0,9}$`)

// ParseKind accepts "watch" or "reserve", case-insensitive.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case Watch, Reserve:
		return k, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
	}
}

// NormalizeSymbol upper-cases s and checks it looks like an exchange symbol.
func NormalizeSymbol(s string) (string, error) {
	sym := strings.ToUpper(strings.TrimSpace(s))
	if !symbolPattern.MatchString(sym) {
		return "", fmt.Errorf("%w: %q", ErrInvalidSymbol, s)
	}
	return sym, nil
}

// List is the body of the list endpoints.
type List struct {
	Kind    Kind     `json:"kind"`
	Symbols []string `json:"symbols"`
}

// NotifyResponse acknowledges an email trigger.
type NotifyResponse struct {
	Message string `json:"message"`
}

type Service struct {
	Gateway *authsdk.Gateway
}

// List returns the symbols held in the kind list.
func (s *Service) List(ctx context.Context, kind Kind) (List, error) {
	list, err := authsdk.Call[List](ctx, s.Gateway, listPath(kind), authsdk.RequestOptions{})
	if err != nil {
		return List{}, err
	}
	if list.Kind == "" {
		list.Kind = kind
	}
	return list, nil
}

// Add appends symbol to the kind list and returns the updated list.
func (s *Service) Add(ctx context.Context, kind Kind, symbol string) (List, error) {
	sym, err := NormalizeSymbol(symbol)
	if err != nil {
		return List{}, err
	}

	list, err := authsdk.Call[List](ctx, s.Gateway, listPath(kind), authsdk.RequestOptions{
		Method: http.MethodPost,
		Body:   map[string]string{"symbol": sym},
	})
	if err != nil {
		return List{}, err
	}
	if list.Kind == "" {
		list.Kind = kind
	}
	return list, nil
}

// Remove deletes symbol from the kind list.
func (s *Service) Remove(ctx context.Context, kind Kind, symbol string) error {
	sym, err := NormalizeSymbol(symbol)
	if err != nil {
		return err
	}

	endpoint := listPath(kind) + "/" + url.PathEscape(sym)
	return s.Gateway.Do(ctx, endpoint, authsdk.RequestOptions{Method: http.MethodDelete}, nil)
}

// Notify asks the backend to email the user about the kind list.
func (s *Service) Notify(ctx context.Context, kind Kind) (*NotifyResponse, error) {
	resp, err := authsdk.Call[NotifyResponse](ctx, s.Gateway, "/notify/"+string(kind), authsdk.RequestOptions{
		Method: http.MethodPost,
	})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

func listPath(kind Kind) string {
	return "/lists/" + string(kind)
}
