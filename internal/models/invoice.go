package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// DocumentType is an immutable fiscal document class (Factura A, B, ...),
// keyed by its short AFIP letter code.
type DocumentType struct {
	ID   int64  `json:"id"`
	Code string `json:"code"` // "A", "B", "C", "E", "M", "NC"
	Name string `json:"name"`
}

// ItemKind classifies one invoice line.
type ItemKind string

const (
	ItemKindProduct ItemKind = "product"
	ItemKindTax     ItemKind = "tax"
	ItemKindSummary ItemKind = "summary"
)

// Invoice is a persisted fiscal document. The duplicate-detection key is
// (supplier, document type, point of sale, number).
type Invoice struct {
	ID             int64           `json:"id"`
	SupplierID     int64           `json:"supplier_id"`
	SupplierName   string          `json:"supplier_name,omitempty"` // joined for listings
	SupplierTaxID  string          `json:"supplier_tax_id,omitempty"`
	DocumentTypeID int64           `json:"document_type_id"`
	DocumentType   string          `json:"document_type,omitempty"`
	PointOfSale    string          `json:"point_of_sale"` // zero-padded to 4 digits
	Number         string          `json:"number"`
	IssueDate      *time.Time      `json:"issue_date"`
	DueDate        *time.Time      `json:"due_date"`
	ServiceFrom    *time.Time      `json:"service_from"`
	ServiceUntil   *time.Time      `json:"service_until"`
	Currency       string          `json:"currency"` // ISO-ish, default ARS
	ExchangeRate   decimal.Decimal `json:"exchange_rate"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	TaxTotal       decimal.Decimal `json:"tax_total"`
	Total          decimal.Decimal `json:"total"`
	CustomerName   string          `json:"customer_name"`   // extracted snapshot, free text
	CustomerTaxID  string          `json:"customer_tax_id"`
	CustomerAddr   string          `json:"customer_address"`
	PaymentTerm    string          `json:"payment_term"`
	AuthCode       string          `json:"auth_code"` // CAE
	AuthExpiry     *time.Time      `json:"auth_expiry"`
	FileRef        string          `json:"file_ref"` // object-store reference of the original
	CreatedBy      string          `json:"created_by"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`

	Items []InvoiceItem `json:"items,omitempty"`
}

// InvoiceItem is one line of an invoice. ProductID is set only for lines
// classified as products that were matched or manually assigned.
type InvoiceItem struct {
	ID          int64           `json:"id"`
	InvoiceID   int64           `json:"invoice_id"`
	ProductID   *int64          `json:"product_id"`
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	Unit        string          `json:"unit"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Amount      decimal.Decimal `json:"amount"`
	ProductCode string          `json:"product_code"` // code as printed on the invoice
	ItemDate    *time.Time      `json:"item_date"`
	Kind        ItemKind        `json:"kind"`
}
