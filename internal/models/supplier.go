package models

import "time"

// Supplier is a vendor extracted from invoices. Identity is the
// (normalized name, tax id) pair; records are created idempotently
// during invoice assembly.
type Supplier struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	TaxID        string    `json:"tax_id"`        // CUIT, hyphens stripped
	Address      string    `json:"address"`
	Email        string    `json:"email"`
	Phone        string    `json:"phone"`
	PaymentTerms string    `json:"payment_terms"` // e.g. "30 días"
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
