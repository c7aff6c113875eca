package auth

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/musicshare/server/internal/shared"
)

// SQLiteTokenStore persists token records in SQLite so sessions survive a
// process restart. It implements [TokenStore] behind the same interface as
// the in-memory store; the schema lives in the shared migration set.
type SQLiteTokenStore struct {
	db *sql.DB
}

// NewSQLiteTokenStore wraps an open database. The token_records table must
// exist (run [shared.RunMigrations] first).
func NewSQLiteTokenStore(db *sql.DB) *SQLiteTokenStore {
	return &SQLiteTokenStore{db: db}
}

// Get implements [TokenStore].
func (s *SQLiteTokenStore) Get(sessionID string) (TokenRecord, error) {
	var rec TokenRecord
	var expiresAt int64

	row := s.db.QueryRow(
		"SELECT session_id, access_token, refresh_token, expires_at FROM token_records WHERE session_id = ?",
		sessionID,
	)
	err := row.Scan(&rec.SessionID, &rec.AccessToken, &rec.RefreshToken, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return TokenRecord{}, shared.ErrSessionNotFound
	}
	if err != nil {
		return TokenRecord{}, fmt.Errorf("failed to read token record: %w", err)
	}

	rec.ExpiresAt = time.Unix(expiresAt, 0)
	return rec, nil
}

// Put implements [TokenStore].
func (s *SQLiteTokenStore) Put(rec TokenRecord) error {
	if rec.SessionID == "" {
		return fmt.Errorf("%w: session id required", shared.ErrInvalidArgument)
	}
	if rec.AccessToken == "" || rec.RefreshToken == "" {
		return fmt.Errorf("%w: token record requires both tokens", shared.ErrInvalidArgument)
	}

	_, err := s.db.Exec(
		`INSERT INTO token_records (session_id, access_token, refresh_token, expires_at, updated_at)
		 VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(session_id) DO UPDATE SET
		   access_token = excluded.access_token,
		   refresh_token = excluded.refresh_token,
		   expires_at = excluded.expires_at,
		   updated_at = CURRENT_TIMESTAMP`,
		rec.SessionID, rec.AccessToken, rec.RefreshToken, rec.ExpiresAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to write token record: %w", err)
	}
	return nil
}

// Delete implements [TokenStore].
func (s *SQLiteTokenStore) Delete(sessionID string) error {
	if _, err := s.db.Exec("DELETE FROM token_records WHERE session_id = ?", sessionID); err != nil {
		return fmt.Errorf("failed to delete token record: %w", err)
	}
	return nil
}
