package repository

import (
	"sync"

	"github.com/spec-kit/servicedesk/internal/clock"
	"github.com/spec-kit/servicedesk/internal/domain"
)

// Store is the single source of truth for tickets and incidents during a
// process lifetime. Collections are kept most-recent-first. Every read
// returns a deep copy, every write happens under the store lock, so
// delayed callers always merge into current state.
type Store struct {
	clock clock.Clock
	ids   *IDGenerator

	mu        sync.RWMutex
	tickets   []domain.Ticket
	incidents []domain.Incident
}

// Option configures a Store.
type Option func(*Store)

// WithClock sets the clock used for timestamps and ticket ID dates.
func WithClock(c clock.Clock) Option {
	return func(s *Store) {
		if c != nil {
			s.clock = c
		}
	}
}

// NewStore creates an empty store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		clock: clock.Real(),
		ids:   &IDGenerator{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ptr returns a pointer to v, for building patches.
func Ptr[T any](v T) *T {
	return &v
}
