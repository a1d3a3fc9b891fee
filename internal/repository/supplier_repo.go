package repository

import (
	"database/sql"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/barcontrol/barcontrol/internal/models"
	"github.com/barcontrol/barcontrol/internal/textnorm"
)

// SupplierRepository handles supplier database operations.
type SupplierRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSupplierRepository creates a new supplier repository.
func NewSupplierRepository(db *sql.DB, logger *zap.Logger) *SupplierRepository {
	return &SupplierRepository{
		db:     db,
		logger: logger,
	}
}

// NormalizeTaxID strips hyphens and whitespace from a CUIT so lookups
// compare the same form ("30-71234567-1" == "30712345671").
func NormalizeTaxID(taxID string) string {
	return strings.TrimSpace(strings.ReplaceAll(taxID, "-", ""))
}

const supplierColumns = `id, name, tax_id, address, email, phone, payment_terms, created_at, updated_at`

func scanSupplier(row interface{ Scan(...any) error }) (*models.Supplier, error) {
	var s models.Supplier
	err := row.Scan(&s.ID, &s.Name, &s.TaxID, &s.Address, &s.Email, &s.Phone,
		&s.PaymentTerms, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// FindByNameOrTaxID resolves a supplier by normalized name or tax id.
// Returns nil without error when no supplier matches.
func (r *SupplierRepository) FindByNameOrTaxID(name, taxID string) (*models.Supplier, error) {
	nameNorm := textnorm.Normalize(name)
	taxID = NormalizeTaxID(taxID)
	if nameNorm == "" && taxID == "" {
		return nil, nil
	}

	query := `SELECT ` + supplierColumns + ` FROM suppliers
		WHERE (name_norm = ? AND name_norm != '') OR (tax_id = ? AND tax_id != '')
		LIMIT 1`

	supplier, err := scanSupplier(r.db.QueryRow(query, nameNorm, taxID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to look up supplier", zap.Error(err))
		return nil, fmt.Errorf("failed to look up supplier: %w", err)
	}
	return supplier, nil
}

// GetByID loads one supplier.
func (r *SupplierRepository) GetByID(id int64) (*models.Supplier, error) {
	supplier, err := scanSupplier(r.db.QueryRow(
		`SELECT `+supplierColumns+` FROM suppliers WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get supplier: %w", err)
	}
	return supplier, nil
}

// FindOrCreate returns the supplier matching the (normalized name, tax id)
// identity, creating it when absent. When the stored record has no address
// and the caller provides one, the address is backfilled without touching
// other fields. Runs inside the caller's transaction.
func (r *SupplierRepository) FindOrCreate(tx *sql.Tx, supplier *models.Supplier) (*models.Supplier, bool, error) {
	nameNorm := textnorm.Normalize(supplier.Name)
	taxID := NormalizeTaxID(supplier.TaxID)

	query := `SELECT ` + supplierColumns + ` FROM suppliers
		WHERE (name_norm = ? AND name_norm != '') OR (tax_id = ? AND tax_id != '')
		LIMIT 1`
	existing, err := scanSupplier(tx.QueryRow(query, nameNorm, taxID))
	if err != nil && err != sql.ErrNoRows {
		return nil, false, fmt.Errorf("failed to look up supplier: %w", err)
	}

	if existing != nil {
		if existing.Address == "" && supplier.Address != "" {
			if _, err := tx.Exec(
				`UPDATE suppliers SET address = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
				supplier.Address, existing.ID); err != nil {
				return nil, false, fmt.Errorf("failed to backfill supplier address: %w", err)
			}
			existing.Address = supplier.Address
		}
		return existing, false, nil
	}

	result, err := tx.Exec(`
		INSERT INTO suppliers (name, name_norm, tax_id, address, email, phone, payment_terms)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		supplier.Name, nameNorm, taxID, supplier.Address, supplier.Email,
		supplier.Phone, supplier.PaymentTerms)
	if err != nil {
		r.logger.Error("Failed to create supplier", zap.Error(err))
		return nil, false, fmt.Errorf("failed to create supplier: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, false, fmt.Errorf("failed to get last insert id: %w", err)
	}
	supplier.ID = id
	supplier.TaxID = taxID
	return supplier, true, nil
}

// List returns suppliers ordered by name.
func (r *SupplierRepository) List() ([]models.Supplier, error) {
	rows, err := r.db.Query(`SELECT ` + supplierColumns + ` FROM suppliers ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list suppliers: %w", err)
	}
	defer rows.Close()

	var suppliers []models.Supplier
	for rows.Next() {
		s, err := scanSupplier(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan supplier: %w", err)
		}
		suppliers = append(suppliers, *s)
	}
	return suppliers, rows.Err()
}
