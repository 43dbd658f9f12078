package credstore

import (
	"context"
	"fmt"
)

// Sealer encrypts values before they reach a backend. *cryptox.Sealer
// satisfies it.
type Sealer interface {
	Seal(plaintext string) (string, error)
	Open(sealed string) (string, error)
}

type sealedBackend struct {
	next   Backend
	sealer Sealer
}

// Sealed wraps a backend so values are encrypted at rest.
func Sealed(next Backend, sealer Sealer) Backend {
	return &sealedBackend{next: next, sealer: sealer}
}

func (s *sealedBackend) Get(ctx context.Context, key string) (string, error) {
	sealed, err := s.next.Get(ctx, key)
	if err != nil {
		return "", err
	}

	value, err := s.sealer.Open(sealed)
	if err != nil {
		return "", fmt.Errorf("open %q: %w", key, err)
	}
	return value, nil
}

func (s *sealedBackend) Set(ctx context.Context, key, value string) error {
	sealed, err := s.sealer.Seal(value)
	if err != nil {
		return fmt.Errorf("seal %q: %w", key, err)
	}
	return s.next.Set(ctx, key, sealed)
}

func (s *sealedBackend) Delete(ctx context.Context, key string) error {
	return s.next.Delete(ctx, key)
}
