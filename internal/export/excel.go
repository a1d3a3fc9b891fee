// Package export renders the invoice register as a spreadsheet.
package export

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/barcontrol/barcontrol/internal/models"
)

// ExcelExporter writes invoice listings to xlsx workbooks.
type ExcelExporter struct {
	logger *zap.Logger
}

// NewExcelExporter creates an exporter.
func NewExcelExporter(logger *zap.Logger) *ExcelExporter {
	return &ExcelExporter{logger: logger}
}

var registerHeaders = []string{
	"Fecha", "Tipo", "Punto de Venta", "Número", "Proveedor", "CUIT",
	"Moneda", "Neto", "IVA", "Total",
}

// InvoiceRegister renders one row per invoice in listing order and
// returns the workbook bytes. Amounts are written as numbers so the
// sheet stays sortable and summable.
func (e *ExcelExporter) InvoiceRegister(invoices []models.Invoice) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheet := "Facturas"
	f.SetSheetName(f.GetSheetName(0), sheet)

	for col, h := range registerHeaders {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return nil, fmt.Errorf("failed to write header: %w", err)
		}
	}

	for i, inv := range invoices {
		row := i + 2
		issue := ""
		if inv.IssueDate != nil {
			issue = inv.IssueDate.Format("2006-01-02")
		}
		values := []any{
			issue,
			inv.DocumentType,
			inv.PointOfSale,
			inv.Number,
			inv.SupplierName,
			inv.SupplierTaxID,
			inv.Currency,
			inv.Subtotal.InexactFloat64(),
			inv.TaxTotal.InexactFloat64(),
			inv.Total.InexactFloat64(),
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return nil, fmt.Errorf("failed to write row %d: %w", row, err)
			}
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}

	e.logger.Info("Exported invoice register",
		zap.Int("invoices", len(invoices)),
		zap.Int("bytes", buf.Len()))
	return buf.Bytes(), nil
}
