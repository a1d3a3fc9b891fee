package invoice

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/barcontrol/barcontrol/internal/models"
	"github.com/barcontrol/barcontrol/internal/repository"
	"github.com/barcontrol/barcontrol/pkg/database"
)

// ErrMissingNumber means the confirmed header carries no invoice number,
// without which the duplicate key is meaningless.
var ErrMissingNumber = errors.New("invoice number is required")

// Input is a reviewed, corrected invoice ready to persist. Supplier holds
// the identity fields as confirmed on the review screen; the matching
// stored supplier is reused or a new one created.
type Input struct {
	Supplier         models.Supplier
	DocumentTypeCode string
	Invoice          models.Invoice
	Items            []models.InvoiceItem
}

// Assembler persists a confirmed invoice. The supplier upsert, the
// duplicate re-check, the header insert and every line item run in one
// transaction, so a failure anywhere leaves no partial invoice behind.
type Assembler struct {
	db            *database.DB
	suppliers     *repository.SupplierRepository
	documentTypes *repository.DocumentTypeRepository
	invoices      *repository.InvoiceRepository
	logger        *zap.Logger
}

// NewAssembler creates an assembler.
func NewAssembler(db *database.DB, suppliers *repository.SupplierRepository, documentTypes *repository.DocumentTypeRepository, invoices *repository.InvoiceRepository, logger *zap.Logger) *Assembler {
	return &Assembler{
		db:            db,
		suppliers:     suppliers,
		documentTypes: documentTypes,
		invoices:      invoices,
		logger:        logger,
	}
}

// Assemble writes the invoice and its items atomically and returns the
// persisted header. Returns ErrDuplicateInvoice when the duplicate key is
// already taken, ErrUnknownDocumentType or ErrMissingNumber on bad input.
func (a *Assembler) Assemble(in *Input) (*models.Invoice, error) {
	number := strings.TrimSpace(in.Invoice.Number)
	if number == "" {
		return nil, ErrMissingNumber
	}

	docType, err := a.documentTypes.GetByCode(strings.TrimSpace(in.DocumentTypeCode))
	if err != nil {
		return nil, err
	}
	if docType == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDocumentType, in.DocumentTypeCode)
	}

	inv := in.Invoice
	inv.Number = number
	inv.DocumentTypeID = docType.ID
	inv.DocumentType = docType.Code
	inv.PointOfSale = PadPointOfSale(inv.PointOfSale)
	if inv.Currency == "" {
		inv.Currency = "ARS"
	}

	err = a.db.WithTransaction(func(tx *sql.Tx) error {
		supplier, created, err := a.suppliers.FindOrCreate(tx, &in.Supplier)
		if err != nil {
			return err
		}
		if created {
			a.logger.Info("Created supplier from invoice",
				zap.Int64("supplier_id", supplier.ID),
				zap.String("name", supplier.Name))
		}
		inv.SupplierID = supplier.ID
		inv.SupplierName = supplier.Name

		// The preview warning is advisory; this check is the binding one.
		exists, err := a.invoices.ExistsTx(tx, supplier.ID, docType.ID, inv.PointOfSale, inv.Number)
		if err != nil {
			return err
		}
		if exists {
			return ErrDuplicateInvoice
		}

		if err := a.invoices.Create(tx, &inv); err != nil {
			return err
		}

		for i := range in.Items {
			item := in.Items[i]
			item.InvoiceID = inv.ID
			// Product linkage only makes sense on product lines.
			if item.Kind == "" {
				item.Kind = models.ItemKindProduct
			}
			if item.Kind != models.ItemKindProduct {
				item.ProductID = nil
			}
			if err := a.invoices.CreateItem(tx, &item); err != nil {
				return err
			}
			in.Items[i] = item
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	inv.Items = in.Items
	a.logger.Info("Invoice registered",
		zap.Int64("invoice_id", inv.ID),
		zap.String("supplier", inv.SupplierName),
		zap.String("number", inv.Number),
		zap.Int("items", len(inv.Items)))
	return &inv, nil
}
