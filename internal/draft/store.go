package draft

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/barcontrol/barcontrol/internal/repository"
)

var (
	// ErrNotFound means the token is unknown or the draft expired.
	ErrNotFound = errors.New("draft not found")

	// ErrBadTransition means the requested state change is not allowed
	// from the draft's stored state.
	ErrBadTransition = errors.New("invalid draft state transition")
)

// Store persists drafts through the draft repository, enforcing token
// issuance, expiry and the state machine.
type Store struct {
	drafts *repository.DraftRepository
	ttl    time.Duration
	logger *zap.Logger

	now func() time.Time // test hook
}

// NewStore creates a draft store. Drafts expire ttl after creation.
func NewStore(drafts *repository.DraftRepository, ttl time.Duration, logger *zap.Logger) *Store {
	return &Store{
		drafts: drafts,
		ttl:    ttl,
		logger: logger,
		now:    time.Now,
	}
}

// Create issues a token for a fresh draft and persists it in uploaded
// state.
func (s *Store) Create(d *Draft) error {
	d.Token = uuid.NewString()
	d.State = StateUploaded
	d.CreatedAt = s.now().UTC()
	d.ExpiresAt = d.CreatedAt.Add(s.ttl)

	if err := s.save(d); err != nil {
		return err
	}
	s.logger.Info("Draft created",
		zap.String("token", d.Token),
		zap.String("file", d.FileName),
		zap.Time("expires_at", d.ExpiresAt))
	return nil
}

// Get loads a live draft. Expired drafts are deleted lazily and reported
// as not found.
func (s *Store) Get(token string) (*Draft, error) {
	row, err := s.drafts.Get(token)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, ErrNotFound
	}
	if !s.now().Before(row.ExpiresAt) {
		if err := s.drafts.Delete(token); err != nil {
			s.logger.Warn("Failed to delete expired draft", zap.String("token", token), zap.Error(err))
		}
		return nil, ErrNotFound
	}

	var d Draft
	if err := json.Unmarshal(row.Payload, &d); err != nil {
		return nil, fmt.Errorf("failed to decode draft payload: %w", err)
	}
	d.Token = row.Token
	d.State = State(row.State)
	d.CreatedAt = row.CreatedAt
	d.ExpiresAt = row.ExpiresAt
	return &d, nil
}

// Update saves a modified draft, validating the state change against the
// stored state. The expiry never moves on update.
func (s *Store) Update(d *Draft) error {
	current, err := s.Get(d.Token)
	if err != nil {
		return err
	}
	if !CanTransition(current.State, d.State) {
		return fmt.Errorf("%w: %s -> %s", ErrBadTransition, current.State, d.State)
	}
	d.CreatedAt = current.CreatedAt
	d.ExpiresAt = current.ExpiresAt
	return s.save(d)
}

// Delete drops a draft regardless of state.
func (s *Store) Delete(token string) error {
	return s.drafts.Delete(token)
}

// Sweep removes expired drafts, returning how many were dropped.
func (s *Store) Sweep() (int64, error) {
	n, err := s.drafts.DeleteExpired(s.now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.Info("Swept expired drafts", zap.Int64("count", n))
	}
	return n, nil
}

func (s *Store) save(d *Draft) error {
	payload, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("failed to encode draft payload: %w", err)
	}
	return s.drafts.Save(&repository.DraftRow{
		Token:     d.Token,
		State:     string(d.State),
		Payload:   payload,
		CreatedAt: d.CreatedAt,
		ExpiresAt: d.ExpiresAt,
	})
}
