package repository

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/barcontrol/barcontrol/internal/models"
)

// InvoiceRepository handles invoice and line-item database operations.
// Monetary columns are stored as exact decimal strings, never floats.
type InvoiceRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewInvoiceRepository creates a new invoice repository.
func NewInvoiceRepository(db *sql.DB, logger *zap.Logger) *InvoiceRepository {
	return &InvoiceRepository{
		db:     db,
		logger: logger,
	}
}

func decStr(d decimal.Decimal) string {
	return d.String()
}

func scanDec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func dateStr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format("2006-01-02")
}

func scanDate(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	t, err := time.Parse("2006-01-02", s.String)
	if err != nil {
		return nil
	}
	return &t
}

// Exists reports whether an invoice with the duplicate-detection tuple
// (supplier, document type, point of sale, number) is already persisted.
func (r *InvoiceRepository) Exists(supplierID, documentTypeID int64, pointOfSale, number string) (bool, error) {
	var n int
	err := r.db.QueryRow(`
		SELECT COUNT(1) FROM invoices
		WHERE supplier_id = ? AND document_type_id = ? AND point_of_sale = ? AND number = ?`,
		supplierID, documentTypeID, pointOfSale, number).Scan(&n)
	if err != nil {
		r.logger.Error("Failed to check invoice existence", zap.Error(err))
		return false, fmt.Errorf("failed to check invoice existence: %w", err)
	}
	return n > 0, nil
}

// ExistsTx is the same check inside a transaction, used for the re-check
// immediately before the atomic write.
func (r *InvoiceRepository) ExistsTx(tx *sql.Tx, supplierID, documentTypeID int64, pointOfSale, number string) (bool, error) {
	var n int
	err := tx.QueryRow(`
		SELECT COUNT(1) FROM invoices
		WHERE supplier_id = ? AND document_type_id = ? AND point_of_sale = ? AND number = ?`,
		supplierID, documentTypeID, pointOfSale, number).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check invoice existence: %w", err)
	}
	return n > 0, nil
}

// Create inserts the invoice header inside the caller's transaction.
func (r *InvoiceRepository) Create(tx *sql.Tx, inv *models.Invoice) error {
	result, err := tx.Exec(`
		INSERT INTO invoices (
			supplier_id, document_type_id, point_of_sale, number,
			issue_date, due_date, service_from, service_until,
			currency, exchange_rate, subtotal, tax_total, total,
			customer_name, customer_tax_id, customer_address,
			payment_term, auth_code, auth_expiry, file_ref, created_by
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		inv.SupplierID, inv.DocumentTypeID, inv.PointOfSale, inv.Number,
		dateStr(inv.IssueDate), dateStr(inv.DueDate), dateStr(inv.ServiceFrom), dateStr(inv.ServiceUntil),
		inv.Currency, decStr(inv.ExchangeRate), decStr(inv.Subtotal), decStr(inv.TaxTotal), decStr(inv.Total),
		inv.CustomerName, inv.CustomerTaxID, inv.CustomerAddr,
		inv.PaymentTerm, inv.AuthCode, dateStr(inv.AuthExpiry), inv.FileRef, inv.CreatedBy)
	if err != nil {
		r.logger.Error("Failed to create invoice", zap.Error(err))
		return fmt.Errorf("failed to create invoice: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	inv.ID = id
	return nil
}

// CreateItem inserts one line item inside the caller's transaction.
func (r *InvoiceRepository) CreateItem(tx *sql.Tx, item *models.InvoiceItem) error {
	var productID any
	if item.ProductID != nil {
		productID = *item.ProductID
	}

	result, err := tx.Exec(`
		INSERT INTO invoice_items (
			invoice_id, product_id, description, quantity, unit,
			unit_price, amount, product_code, item_date, kind
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.InvoiceID, productID, item.Description, decStr(item.Quantity), item.Unit,
		decStr(item.UnitPrice), decStr(item.Amount), item.ProductCode,
		dateStr(item.ItemDate), string(item.Kind))
	if err != nil {
		r.logger.Error("Failed to create invoice item", zap.Error(err))
		return fmt.Errorf("failed to create invoice item: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	item.ID = id
	return nil
}

const invoiceSelect = `
	SELECT i.id, i.supplier_id, s.name, s.tax_id, i.document_type_id, t.code,
	       i.point_of_sale, i.number,
	       i.issue_date, i.due_date, i.service_from, i.service_until,
	       i.currency, i.exchange_rate, i.subtotal, i.tax_total, i.total,
	       i.customer_name, i.customer_tax_id, i.customer_address,
	       i.payment_term, i.auth_code, i.auth_expiry, i.file_ref,
	       i.created_by, i.created_at, i.updated_at
	FROM invoices i
	JOIN suppliers s ON s.id = i.supplier_id
	JOIN document_types t ON t.id = i.document_type_id`

func scanInvoice(row interface{ Scan(...any) error }) (*models.Invoice, error) {
	var inv models.Invoice
	var issue, due, from, until, authExp sql.NullString
	var rate, subtotal, taxTotal, total string

	err := row.Scan(&inv.ID, &inv.SupplierID, &inv.SupplierName, &inv.SupplierTaxID, &inv.DocumentTypeID, &inv.DocumentType,
		&inv.PointOfSale, &inv.Number,
		&issue, &due, &from, &until,
		&inv.Currency, &rate, &subtotal, &taxTotal, &total,
		&inv.CustomerName, &inv.CustomerTaxID, &inv.CustomerAddr,
		&inv.PaymentTerm, &inv.AuthCode, &authExp, &inv.FileRef,
		&inv.CreatedBy, &inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		return nil, err
	}

	inv.IssueDate = scanDate(issue)
	inv.DueDate = scanDate(due)
	inv.ServiceFrom = scanDate(from)
	inv.ServiceUntil = scanDate(until)
	inv.AuthExpiry = scanDate(authExp)
	inv.ExchangeRate = scanDec(rate)
	inv.Subtotal = scanDec(subtotal)
	inv.TaxTotal = scanDec(taxTotal)
	inv.Total = scanDec(total)
	return &inv, nil
}

// GetByID loads an invoice with its line items; nil when absent.
func (r *InvoiceRepository) GetByID(id int64) (*models.Invoice, error) {
	inv, err := scanInvoice(r.db.QueryRow(invoiceSelect+` WHERE i.id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get invoice: %w", err)
	}

	rows, err := r.db.Query(`
		SELECT id, invoice_id, product_id, description, quantity, unit,
		       unit_price, amount, product_code, item_date, kind
		FROM invoice_items WHERE invoice_id = ? ORDER BY id`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load invoice items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item models.InvoiceItem
		var productID sql.NullInt64
		var qty, unitPrice, amount string
		var itemDate sql.NullString
		var kind string
		if err := rows.Scan(&item.ID, &item.InvoiceID, &productID, &item.Description,
			&qty, &item.Unit, &unitPrice, &amount, &item.ProductCode, &itemDate, &kind); err != nil {
			return nil, fmt.Errorf("failed to scan invoice item: %w", err)
		}
		if productID.Valid {
			id := productID.Int64
			item.ProductID = &id
		}
		item.Quantity = scanDec(qty)
		item.UnitPrice = scanDec(unitPrice)
		item.Amount = scanDec(amount)
		item.ItemDate = scanDate(itemDate)
		item.Kind = models.ItemKind(kind)
		inv.Items = append(inv.Items, item)
	}
	return inv, rows.Err()
}

// ListFilter narrows the invoice register listing.
type ListFilter struct {
	Supplier string
	Number   string
	DateFrom *time.Time
	DateTo   *time.Time
	TotalMin *decimal.Decimal
	TotalMax *decimal.Decimal
	ItemText string
	Page     int
	PageSize int
}

// List returns a filtered, paginated page of invoices plus the total count.
func (r *InvoiceRepository) List(filter ListFilter) ([]models.Invoice, int, error) {
	where := ` WHERE 1=1`
	var args []any

	if filter.Supplier != "" {
		where += ` AND s.name LIKE ? COLLATE NOCASE`
		args = append(args, "%"+filter.Supplier+"%")
	}
	if filter.Number != "" {
		where += ` AND i.number LIKE ?`
		args = append(args, "%"+filter.Number+"%")
	}
	if filter.DateFrom != nil {
		where += ` AND i.issue_date >= ?`
		args = append(args, filter.DateFrom.Format("2006-01-02"))
	}
	if filter.DateTo != nil {
		where += ` AND i.issue_date <= ?`
		args = append(args, filter.DateTo.Format("2006-01-02"))
	}
	if filter.TotalMin != nil {
		where += ` AND CAST(i.total AS REAL) >= ?`
		args = append(args, filter.TotalMin.InexactFloat64())
	}
	if filter.TotalMax != nil {
		where += ` AND CAST(i.total AS REAL) <= ?`
		args = append(args, filter.TotalMax.InexactFloat64())
	}
	if filter.ItemText != "" {
		where += ` AND EXISTS (
			SELECT 1 FROM invoice_items it
			WHERE it.invoice_id = i.id
			  AND (it.description LIKE ? COLLATE NOCASE OR it.product_code LIKE ? COLLATE NOCASE))`
		args = append(args, "%"+filter.ItemText+"%", "%"+filter.ItemText+"%")
	}

	var total int
	countQuery := `SELECT COUNT(1) FROM invoices i JOIN suppliers s ON s.id = i.supplier_id` + where
	if err := r.db.QueryRow(countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count invoices: %w", err)
	}

	if filter.PageSize <= 0 {
		filter.PageSize = 15
	}
	if filter.Page <= 0 {
		filter.Page = 1
	}
	query := invoiceSelect + where + ` ORDER BY i.issue_date DESC, i.id DESC LIMIT ? OFFSET ?`
	args = append(args, filter.PageSize, (filter.Page-1)*filter.PageSize)

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list invoices: %w", err)
	}
	defer rows.Close()

	var invoices []models.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan invoice: %w", err)
		}
		invoices = append(invoices, *inv)
	}
	return invoices, total, rows.Err()
}
