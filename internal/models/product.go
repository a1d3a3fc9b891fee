package models

import "time"

// Product is a catalog entry with a lifecycle independent from invoices.
type Product struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	InternalCode string    `json:"internal_code"` // internal SKU
	SupplierCode string    `json:"supplier_code"` // code suppliers print on invoices
	Barcode      string    `json:"barcode"`
	Category     string    `json:"category"`
	Brand        string    `json:"brand"`
	BaseUnit     string    `json:"base_unit"` // un, kg, lt
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// EmbeddingText is the canonical text a product vector is computed from.
// Callers normalize it before embedding.
func (p *Product) EmbeddingText() string {
	s := p.Name
	if p.Brand != "" {
		s += " " + p.Brand
	}
	if p.Category != "" {
		s += " " + p.Category
	}
	return s
}

// ProductEmbedding is the derived vector for one product. It is fully
// regenerable from the product it describes and carries the id of the
// model that produced it so a model swap can be detected.
type ProductEmbedding struct {
	ProductID  int64     `json:"product_id"`
	Model      string    `json:"model"`
	Dimensions int       `json:"dimensions"`
	Vector     []float32 `json:"vector"`
	UpdatedAt  time.Time `json:"updated_at"`
}
