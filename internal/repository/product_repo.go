package repository

import (
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/barcontrol/barcontrol/internal/models"
)

// ProductRepository handles catalog database operations.
type ProductRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewProductRepository creates a new product repository.
func NewProductRepository(db *sql.DB, logger *zap.Logger) *ProductRepository {
	return &ProductRepository{
		db:     db,
		logger: logger,
	}
}

const productColumns = `id, name, internal_code, supplier_code, barcode, category, brand, base_unit, active, created_at, updated_at`

func scanProduct(row interface{ Scan(...any) error }) (*models.Product, error) {
	var p models.Product
	err := row.Scan(&p.ID, &p.Name, &p.InternalCode, &p.SupplierCode, &p.Barcode,
		&p.Category, &p.Brand, &p.BaseUnit, &p.Active, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Create inserts a new product.
func (r *ProductRepository) Create(product *models.Product) error {
	result, err := r.db.Exec(`
		INSERT INTO products (name, internal_code, supplier_code, barcode, category, brand, base_unit, active)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		product.Name, product.InternalCode, product.SupplierCode, product.Barcode,
		product.Category, product.Brand, product.BaseUnit, product.Active)
	if err != nil {
		r.logger.Error("Failed to create product", zap.Error(err))
		return fmt.Errorf("failed to create product: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	product.ID = id
	return nil
}

// Update rewrites every editable field of a product.
func (r *ProductRepository) Update(product *models.Product) error {
	_, err := r.db.Exec(`
		UPDATE products
		SET name = ?, internal_code = ?, supplier_code = ?, barcode = ?,
		    category = ?, brand = ?, base_unit = ?, active = ?,
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`,
		product.Name, product.InternalCode, product.SupplierCode, product.Barcode,
		product.Category, product.Brand, product.BaseUnit, product.Active, product.ID)
	if err != nil {
		r.logger.Error("Failed to update product", zap.Int64("id", product.ID), zap.Error(err))
		return fmt.Errorf("failed to update product: %w", err)
	}
	return nil
}

// Delete removes a product and, through the FK cascade, its embedding.
func (r *ProductRepository) Delete(id int64) error {
	if _, err := r.db.Exec(`DELETE FROM products WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}
	return nil
}

// GetByID loads one product; nil when absent.
func (r *ProductRepository) GetByID(id int64) (*models.Product, error) {
	p, err := scanProduct(r.db.QueryRow(`SELECT `+productColumns+` FROM products WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	return p, nil
}

// FindByCode matches the internal or the supplier-specific code,
// case-insensitively. Nil when nothing matches.
func (r *ProductRepository) FindByCode(code string) (*models.Product, error) {
	if code == "" {
		return nil, nil
	}
	p, err := scanProduct(r.db.QueryRow(`
		SELECT `+productColumns+` FROM products
		WHERE internal_code != '' AND internal_code = ? COLLATE NOCASE
		   OR supplier_code != '' AND supplier_code = ? COLLATE NOCASE
		LIMIT 1`, code, code))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find product by code: %w", err)
	}
	return p, nil
}

// FindByName matches the product name exactly, case-insensitively.
func (r *ProductRepository) FindByName(name string) (*models.Product, error) {
	if name == "" {
		return nil, nil
	}
	p, err := scanProduct(r.db.QueryRow(`
		SELECT `+productColumns+` FROM products
		WHERE name = ? COLLATE NOCASE
		LIMIT 1`, name))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find product by name: %w", err)
	}
	return p, nil
}

// List returns the catalog ordered by name, optionally only active entries.
func (r *ProductRepository) List(activeOnly bool) ([]models.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products`
	if activeOnly {
		query += ` WHERE active = 1`
	}
	query += ` ORDER BY name`

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	var products []models.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, *p)
	}
	return products, rows.Err()
}
