package repository

import (
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// DraftRow is one persisted review draft. The payload is an opaque
// JSON-safe blob owned by the draft package.
type DraftRow struct {
	Token     string
	State     string
	Payload   []byte
	CreatedAt time.Time
	ExpiresAt time.Time
}

// DraftRepository persists review drafts outside the process so an upload
// session survives restarts until it expires.
type DraftRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewDraftRepository creates a new draft repository.
func NewDraftRepository(db *sql.DB, logger *zap.Logger) *DraftRepository {
	return &DraftRepository{
		db:     db,
		logger: logger,
	}
}

// Save inserts or replaces a draft row.
func (r *DraftRepository) Save(row *DraftRow) error {
	_, err := r.db.Exec(`
		INSERT INTO drafts (token, state, payload, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(token) DO UPDATE SET
			state = excluded.state,
			payload = excluded.payload,
			expires_at = excluded.expires_at`,
		row.Token, row.State, string(row.Payload), row.CreatedAt.UTC(), row.ExpiresAt.UTC())
	if err != nil {
		r.logger.Error("Failed to save draft", zap.String("token", row.Token), zap.Error(err))
		return fmt.Errorf("failed to save draft: %w", err)
	}
	return nil
}

// Get loads a draft; nil when the token is unknown.
func (r *DraftRepository) Get(token string) (*DraftRow, error) {
	var row DraftRow
	var payload string
	err := r.db.QueryRow(`
		SELECT token, state, payload, created_at, expires_at
		FROM drafts WHERE token = ?`, token).
		Scan(&row.Token, &row.State, &payload, &row.CreatedAt, &row.ExpiresAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get draft: %w", err)
	}
	row.Payload = []byte(payload)
	return &row, nil
}

// Delete removes a draft. Deleting an unknown token is not an error.
func (r *DraftRepository) Delete(token string) error {
	if _, err := r.db.Exec(`DELETE FROM drafts WHERE token = ?`, token); err != nil {
		return fmt.Errorf("failed to delete draft: %w", err)
	}
	return nil
}

// DeleteExpired sweeps drafts past their expiry and reports how many went.
func (r *DraftRepository) DeleteExpired(now time.Time) (int64, error) {
	result, err := r.db.Exec(`DELETE FROM drafts WHERE expires_at < ?`, now.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired drafts: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count expired drafts: %w", err)
	}
	return n, nil
}
