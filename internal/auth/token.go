package auth

import (
	"fmt"
	"sync"
	"time"

	"github.com/musicshare/server/internal/shared"
)

// TokenRecord holds the credentials issued for one session.
//
// A record never exists without both tokens; ExpiresAt is derived from the
// issuer's expires_in relative to the exchange or refresh instant.
type TokenRecord struct {
	SessionID    string
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// TokenStore maps session ids to token records.
//
// Implementations must make Get/Put/Delete safe for concurrent use. Delete is
// idempotent.
type TokenStore interface {
	// Get retrieves the record for a session, or [shared.ErrSessionNotFound].
	Get(sessionID string) (TokenRecord, error)

	// Put stores or replaces the record keyed by its SessionID.
	Put(rec TokenRecord) error

	// Delete removes the record for a session; a no-op if absent.
	Delete(sessionID string) error
}

// MemoryTokenStore is a mutex-guarded in-memory [TokenStore].
type MemoryTokenStore struct {
	mu      sync.RWMutex
	records map[string]TokenRecord
}

// NewMemoryTokenStore creates an empty in-memory token store.
func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{records: make(map[string]TokenRecord)}
}

// Get implements [TokenStore].
func (s *MemoryTokenStore) Get(sessionID string) (TokenRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[sessionID]
	if !ok {
		return TokenRecord{}, shared.ErrSessionNotFound
	}
	return rec, nil
}

// Put implements [TokenStore].
func (s *MemoryTokenStore) Put(rec TokenRecord) error {
	if rec.SessionID == "" {
		return fmt.Errorf("%w: session id required", shared.ErrInvalidArgument)
	}
	if rec.AccessToken == "" || rec.RefreshToken == "" {
		return fmt.Errorf("%w: token record requires both tokens", shared.ErrInvalidArgument)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.SessionID] = rec
	return nil
}

// Delete implements [TokenStore].
func (s *MemoryTokenStore) Delete(sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, sessionID)
	return nil
}
