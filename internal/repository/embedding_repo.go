package repository

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/barcontrol/barcontrol/internal/models"
)

// EmbeddingRepository stores product description vectors. Vectors are
// derived data: one row per product, overwritten on recompute.
type EmbeddingRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewEmbeddingRepository creates a new embedding repository.
func NewEmbeddingRepository(db *sql.DB, logger *zap.Logger) *EmbeddingRepository {
	return &EmbeddingRepository{
		db:     db,
		logger: logger,
	}
}

// Upsert atomically replaces the vector for a product, so a concurrent
// matcher read sees either the old row or the new one, never a mix.
func (r *EmbeddingRepository) Upsert(emb *models.ProductEmbedding) error {
	vector, err := json.Marshal(emb.Vector)
	if err != nil {
		return fmt.Errorf("failed to encode vector: %w", err)
	}

	_, err = r.db.Exec(`
		INSERT INTO product_embeddings (product_id, model, dimensions, vector, updated_at)
		VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(product_id) DO UPDATE SET
			model = excluded.model,
			dimensions = excluded.dimensions,
			vector = excluded.vector,
			updated_at = CURRENT_TIMESTAMP`,
		emb.ProductID, emb.Model, emb.Dimensions, string(vector))
	if err != nil {
		r.logger.Error("Failed to upsert embedding",
			zap.Int64("product_id", emb.ProductID), zap.Error(err))
		return fmt.Errorf("failed to upsert embedding: %w", err)
	}
	return nil
}

// GetByProductID loads the vector of one product; nil when absent.
func (r *EmbeddingRepository) GetByProductID(productID int64) (*models.ProductEmbedding, error) {
	var emb models.ProductEmbedding
	var vector string
	err := r.db.QueryRow(`
		SELECT product_id, model, dimensions, vector, updated_at
		FROM product_embeddings WHERE product_id = ?`, productID).
		Scan(&emb.ProductID, &emb.Model, &emb.Dimensions, &vector, &emb.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get embedding: %w", err)
	}
	if err := json.Unmarshal([]byte(vector), &emb.Vector); err != nil {
		return nil, fmt.Errorf("failed to decode vector: %w", err)
	}
	return &emb, nil
}

// ProductVector pairs an active product with its current vector, as loaded
// into the in-memory matching snapshot.
type ProductVector struct {
	Product models.Product
	Vector  []float32
	Model   string
}

// ListActiveVectors returns every active product that has a current vector.
func (r *EmbeddingRepository) ListActiveVectors() ([]ProductVector, error) {
	rows, err := r.db.Query(`
		SELECT p.id, p.name, p.internal_code, p.supplier_code, p.barcode,
		       p.category, p.brand, p.base_unit, p.active, p.created_at, p.updated_at,
		       e.vector, e.model
		FROM products p
		JOIN product_embeddings e ON e.product_id = p.id
		WHERE p.active = 1
		ORDER BY p.id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list product vectors: %w", err)
	}
	defer rows.Close()

	var out []ProductVector
	for rows.Next() {
		var pv ProductVector
		var vector string
		p := &pv.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.InternalCode, &p.SupplierCode, &p.Barcode,
			&p.Category, &p.Brand, &p.BaseUnit, &p.Active, &p.CreatedAt, &p.UpdatedAt,
			&vector, &pv.Model); err != nil {
			return nil, fmt.Errorf("failed to scan product vector: %w", err)
		}
		if err := json.Unmarshal([]byte(vector), &pv.Vector); err != nil {
			r.logger.Warn("Skipping undecodable vector",
				zap.Int64("product_id", p.ID), zap.Error(err))
			continue
		}
		out = append(out, pv)
	}
	return out, rows.Err()
}
