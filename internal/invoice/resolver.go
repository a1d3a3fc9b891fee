// Package invoice turns a reviewed draft into persisted invoice records.
package invoice

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/barcontrol/barcontrol/internal/models"
	"github.com/barcontrol/barcontrol/internal/repository"
)

var (
	// ErrDuplicateInvoice means an invoice with the same (supplier,
	// document type, point of sale, number) tuple is already persisted.
	ErrDuplicateInvoice = errors.New("invoice already registered")

	// ErrUnknownDocumentType means the submitted document type code has no
	// row in the document_types lookup.
	ErrUnknownDocumentType = errors.New("unknown document type")
)

// PadPointOfSale left-pads the point of sale to four digits so "2" and
// "0002" compare equal in the duplicate key.
func PadPointOfSale(pos string) string {
	pos = strings.TrimSpace(pos)
	if pos == "" || len(pos) >= 4 {
		return pos
	}
	return strings.Repeat("0", 4-len(pos)) + pos
}

// Resolution is the identity of an incoming document against existing
// records, computed at preview time. Supplier is nil when no existing
// supplier matches (one would be created on confirm).
type Resolution struct {
	Supplier     *models.Supplier     `json:"supplier"`
	DocumentType *models.DocumentType `json:"document_type"`
	PointOfSale  string               `json:"point_of_sale"`
	Number       string               `json:"number"`
	Duplicate    bool                 `json:"duplicate"`
}

// Resolver checks an extracted header against stored suppliers and
// invoices so the review screen can warn about duplicates before the
// user confirms anything.
type Resolver struct {
	suppliers     *repository.SupplierRepository
	documentTypes *repository.DocumentTypeRepository
	invoices      *repository.InvoiceRepository
	logger        *zap.Logger
}

// NewResolver creates a resolver.
func NewResolver(suppliers *repository.SupplierRepository, documentTypes *repository.DocumentTypeRepository, invoices *repository.InvoiceRepository, logger *zap.Logger) *Resolver {
	return &Resolver{
		suppliers:     suppliers,
		documentTypes: documentTypes,
		invoices:      invoices,
		logger:        logger,
	}
}

// Resolve looks up supplier and document type for the extracted identity
// fields and reports whether the invoice already exists. Lookups are
// advisory: the authoritative duplicate check runs again inside the
// confirm transaction.
func (r *Resolver) Resolve(vendorName, vendorTaxID, docTypeCode, pointOfSale, number string) (*Resolution, error) {
	res := &Resolution{
		PointOfSale: PadPointOfSale(pointOfSale),
		Number:      strings.TrimSpace(number),
	}

	supplier, err := r.suppliers.FindByNameOrTaxID(vendorName, vendorTaxID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve supplier: %w", err)
	}
	res.Supplier = supplier

	docType, err := r.documentTypes.GetByCode(strings.TrimSpace(docTypeCode))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve document type: %w", err)
	}
	res.DocumentType = docType

	// A duplicate needs all four key parts; a new supplier cannot collide.
	if supplier == nil || docType == nil || res.Number == "" {
		return res, nil
	}

	exists, err := r.invoices.Exists(supplier.ID, docType.ID, res.PointOfSale, res.Number)
	if err != nil {
		return nil, err
	}
	res.Duplicate = exists
	if exists {
		r.logger.Info("Duplicate invoice detected at preview",
			zap.String("supplier", supplier.Name),
			zap.String("document_type", docType.Code),
			zap.String("point_of_sale", res.PointOfSale),
			zap.String("number", res.Number))
	}
	return res, nil
}
