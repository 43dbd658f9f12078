// Package credstore persists the client credential under two lifetimes.
//
// The persistent lifetime survives process restarts and is normally backed by
// the sqlite driver (or redis on shared machines). The ephemeral lifetime lives
// only for the current run and is backed by an in-memory map.
package credstore

import (
	"context"
	"errors"
	"fmt"
)

// Keys used by the session manager. Each lifetime holds at most one copy of each.
const (
	KeyAccessToken = "access_token"
	KeyUser        = "user"
	KeyRememberMe  = "remember_me"
)

// ErrNotFound is returned when no lifetime holds the requested key.
var ErrNotFound = errors.New("credstore: not found")

// Lifetime selects which storage medium a value is written to.
type Lifetime int

const (
	// Persistent values survive application restarts.
	Persistent Lifetime = iota + 1
	// Ephemeral values are dropped when the process exits.
	Ephemeral
)

func (l Lifetime) String() string {
	switch l {
	case Persistent:
		return "persistent"
	case Ephemeral:
		return "ephemeral"
	default:
		return fmt.Sprintf("lifetime(%d)", int(l))
	}
}

// Backend is a single key/value medium. Get returns ErrNotFound for missing keys
// and Delete of a missing key is not an error.
type Backend interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// StoreError describes a failure of the underlying medium.
type StoreError struct {
	Operation string // "read", "write", "erase"
	Lifetime  Lifetime
	Key       string
	Cause     error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("credstore: %s %q (%s): %v", e.Operation, e.Key, e.Lifetime, e.Cause)
}

func (e *StoreError) Unwrap() error { return e.Cause }

// Store combines a persistent and an ephemeral backend.
//
// The store has no locking of its own; the session manager is its only writer.
type Store struct {
	persistent Backend
	ephemeral  Backend
}

// New returns a Store over the two backends.
func New(persistent, ephemeral Backend) *Store {
	return &Store{
		persistent: persistent,
		ephemeral:  ephemeral,
	}
}

// NewMemory returns a Store whose lifetimes are both held in memory.
func NewMemory() *Store {
	return New(NewMemoryBackend(), NewMemoryBackend())
}

func (s *Store) backend(l Lifetime) (Backend, error) {
	switch l {
	case Persistent:
		return s.persistent, nil
	case Ephemeral:
		return s.ephemeral, nil
	default:
		return nil, fmt.Errorf("credstore: unknown lifetime %d", int(l))
	}
}

// Write stores value under key in the given lifetime, overwriting any previous
// value. Only failures of the medium itself are reported.
func (s *Store) Write(ctx context.Context, lifetime Lifetime, key, value string) error {
	b, err := s.backend(lifetime)
	if err != nil {
		return err
	}

	if err := b.Set(ctx, key, value); err != nil {
		return &StoreError{Operation: "write", Lifetime: lifetime, Key: key, Cause: err}
	}
	return nil
}

// Read returns the value held for key, preferring the persistent lifetime when
// both hold one.
func (s *Store) Read(ctx context.Context, key string) (string, error) {
	for _, l := range []Lifetime{Persistent, Ephemeral} {
		b, _ := s.backend(l)

		value, err := b.Get(ctx, key)
		if err == nil {
			return value, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return "", &StoreError{Operation: "read", Lifetime: l, Key: key, Cause: err}
		}
	}
	return "", ErrNotFound
}

// Has reports whether any lifetime holds a non-empty value for key.
// Medium failures are treated as absence.
func (s *Store) Has(ctx context.Context, key string) bool {
	value, err := s.Read(ctx, key)
	return err == nil && value != ""
}

// Erase removes key from both lifetimes. Erasing a missing key is a no-op.
func (s *Store) Erase(ctx context.Context, key string) error {
	var errs []error
	for _, l := range []Lifetime{Persistent, Ephemeral} {
		b, _ := s.backend(l)
		if err := b.Delete(ctx, key); err != nil && !errors.Is(err, ErrNotFound) {
			errs = append(errs, &StoreError{Operation: "erase", Lifetime: l, Key: key, Cause: err})
		}
	}
	return errors.Join(errs...)
}

// EraseFrom removes key from a single lifetime.
func (s *Store) EraseFrom(ctx context.Context, lifetime Lifetime, key string) error {
	b, err := s.backend(lifetime)
	if err != nil {
		return err
	}
	if err := b.Delete(ctx, key); err != nil && !errors.Is(err, ErrNotFound) {
		return &StoreError{Operation: "erase", Lifetime: lifetime, Key: key, Cause: err}
	}
	return nil
}

// Other returns the lifetime that is not l.
func Other(l Lifetime) Lifetime {
	if l == Persistent {
		return Ephemeral
	}
	return Persistent
}
