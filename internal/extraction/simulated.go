package extraction

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// SimulatedProvider returns a fixed Argentine invoice without calling any
// external service. Used in development mode and tests.
type SimulatedProvider struct {
	logger *zap.Logger
}

// NewSimulatedProvider creates a simulated extraction provider.
func NewSimulatedProvider(logger *zap.Logger) *SimulatedProvider {
	return &SimulatedProvider{logger: logger}
}

// Analyze ignores the input and returns the fixture document.
func (p *SimulatedProvider) Analyze(_ context.Context, _ []byte, url string) (*AnalyzeResult, error) {
	p.logger.Info("Simulated extraction mode active, skipping provider call",
		zap.String("url", url))

	items := []struct {
		desc      string
		qty       float64
		unitPrice float64
		amount    float64
	}{
		{"Aceite Natura 1L", 6, 1300, 7800},
		{"Yerba M. Playadito 1kg", 3, 2100, 6300},
		{"Harina Pureza 000", 10, 950, 9500},
		{"Spaghetti Lucchetti 500g", 12, 750, 9000},
		{"Coca Cola 1.5L", 8, 1800, 14400},
	}

	itemFields := make([]Field, 0, len(items))
	subtotal := 0.0
	for _, it := range items {
		subtotal += it.amount
		itemFields = append(itemFields, Field{Object: map[string]Field{
			"Description": simString(it.desc),
			"Quantity":    simNumber(it.qty),
			"UnitPrice":   simCurrency(it.unitPrice),
			"Amount":      simCurrency(it.amount),
		}})
	}

	totalTax := 9870.0 // 21% of the fixture subtotal
	fields := map[string]Field{
		"VendorName":    simString("Distribuidora Río Cuarto SRL"),
		"VendorTaxId":   simString("30-71234567-1"),
		"VendorAddress": {Address: &Address{Road: "Av. Sabattini", HouseNumber: "1250", City: "Río Cuarto"}, Confidence: 0.99},
		"CustomerName":  simString("Bar El Andén"),
		"InvoiceId":     simString("000456"),
		"InvoiceDate":   {Date: isoDate(2025, time.August, 14), Confidence: 0.99},
		"SubTotal":      simCurrency(subtotal),
		"TotalTax":      simCurrency(totalTax),
		"InvoiceTotal":  simCurrency(subtotal + totalTax),
		"InvoiceType":   simString("B"),
		"PointOfSale":   simString("0002"),
		"CAE":           simString("75123456789012"),
		"CAEDueDate":    {Date: isoDate(2025, time.August, 24), Confidence: 0.99},
		"Currency":      simString("ARS"),
		"Items":         {Array: itemFields},
	}

	return &AnalyzeResult{Documents: []Document{{Fields: fields}}}, nil
}

func simString(s string) Field {
	return Field{String: &s, Confidence: 0.99}
}

func simNumber(n float64) Field {
	return Field{Number: &n, Confidence: 0.99}
}

func simCurrency(amount float64) Field {
	return Field{Currency: &Currency{Amount: amount, Code: "ARS"}, Confidence: 0.99}
}
