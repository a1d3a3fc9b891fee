package repository

import (
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/barcontrol/barcontrol/internal/models"
)

// DocumentTypeRepository reads the immutable fiscal document-type lookup
// (seeded by migration).
type DocumentTypeRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewDocumentTypeRepository creates a new document type repository.
func NewDocumentTypeRepository(db *sql.DB, logger *zap.Logger) *DocumentTypeRepository {
	return &DocumentTypeRepository{
		db:     db,
		logger: logger,
	}
}

// GetByCode resolves a short code ("A", "B", ...) case-insensitively.
// Nil when the code is unknown.
func (r *DocumentTypeRepository) GetByCode(code string) (*models.DocumentType, error) {
	if code == "" {
		return nil, nil
	}
	var dt models.DocumentType
	err := r.db.QueryRow(`
		SELECT id, code, name FROM document_types
		WHERE code = ? COLLATE NOCASE`, code).Scan(&dt.ID, &dt.Code, &dt.Name)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document type: %w", err)
	}
	return &dt, nil
}

// List returns all document types.
func (r *DocumentTypeRepository) List() ([]models.DocumentType, error) {
	rows, err := r.db.Query(`SELECT id, code, name FROM document_types ORDER BY code`)
	if err != nil {
		return nil, fmt.Errorf("failed to list document types: %w", err)
	}
	defer rows.Close()

	var types []models.DocumentType
	for rows.Next() {
		var dt models.DocumentType
		if err := rows.Scan(&dt.ID, &dt.Code, &dt.Name); err != nil {
			return nil, fmt.Errorf("failed to scan document type: %w", err)
		}
		types = append(types, dt)
	}
	return types, rows.Err()
}
