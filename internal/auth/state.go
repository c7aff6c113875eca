package auth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/musicshare/server/internal/shared"
)

const (
	// DefaultStateTTL is how long a pending login may wait for its callback.
	DefaultStateTTL = 15 * time.Minute
	// DefaultSweepInterval is the period of the background eviction sweep.
	DefaultSweepInterval = 5 * time.Minute

	stateTokenBytes = 16 // 128 bits
)

// PendingLogin is the server-side record behind a CSRF state token.
type PendingLogin struct {
	SessionID string
	Verifier  string // PKCE code verifier, empty when PKCE is disabled
	CreatedAt time.Time
}

// StateStore maps one-time CSRF state tokens to pending logins.
//
// Redeem consumes the state: at most one caller may redeem a given token.
type StateStore interface {
	// Create generates a fresh random state token for the session and stores
	// the pending login under it.
	Create(sessionID, verifier string) (string, error)

	// Redeem looks up and atomically removes the pending login for the state.
	// Returns [shared.ErrInvalidState] if the state never existed, was already
	// redeemed, or was evicted.
	Redeem(state string) (*PendingLogin, error)

	// Sweep removes entries older than the TTL relative to now and returns the
	// number evicted.
	Sweep(now time.Time) int
}

// MemoryStateStore is a mutex-guarded in-memory [StateStore].
type MemoryStateStore struct {
	mu      sync.Mutex
	pending map[string]PendingLogin
	ttl     time.Duration
	now     func() time.Time
}

// NewMemoryStateStore creates a state store with the given TTL.
// A non-positive TTL falls back to [DefaultStateTTL].
func NewMemoryStateStore(ttl time.Duration) *MemoryStateStore {
	if ttl <= 0 {
		ttl = DefaultStateTTL
	}
	return &MemoryStateStore{
		pending: make(map[string]PendingLogin),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Create implements [StateStore].
func (s *MemoryStateStore) Create(sessionID, verifier string) (string, error) {
	if sessionID == "" {
		return "", fmt.Errorf("%w: session id required", shared.ErrInvalidArgument)
	}

	state, err := shared.RandomToken(stateTokenBytes)
	if err != nil {
		return "", fmt.Errorf("failed to generate state token: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.pending[state] = PendingLogin{
		SessionID: sessionID,
		Verifier:  verifier,
		CreatedAt: s.now(),
	}

	return state, nil
}

// Redeem implements [StateStore]. Lookup and delete happen under one lock so
// concurrent redemptions of the same state cannot both succeed.
func (s *MemoryStateStore) Redeem(state string) (*PendingLogin, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pending, ok := s.pending[state]
	if !ok {
		return nil, shared.ErrInvalidState
	}
	delete(s.pending, state)

	return &pending, nil
}

// Sweep implements [StateStore].
func (s *MemoryStateStore) Sweep(now time.Time) int {
	cutoff := now.Add(-s.ttl)

	s.mu.Lock()
	defer s.mu.Unlock()

	evicted := 0
	for state, pending := range s.pending {
		if pending.CreatedAt.Before(cutoff) {
			delete(s.pending, state)
			evicted++
		}
	}

	return evicted
}

// Len returns the number of pending logins currently stored.
func (s *MemoryStateStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// StartSweeper runs store.Sweep on the given interval until ctx is cancelled.
// Eviction runs independently of request traffic.
func StartSweeper(ctx context.Context, store StateStore, interval time.Duration, logger *log.Logger) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				if evicted := store.Sweep(now); evicted > 0 && logger != nil {
					logger.Debug("swept expired login states", "evicted", evicted)
				}
			}
		}
	}()
}
