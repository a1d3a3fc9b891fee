package extraction

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/barcontrol/barcontrol/internal/models"
)

func strPtr(s string) *string   { return &s }
func numPtr(n float64) *float64 { return &n }

func TestMapResultEmpty(t *testing.T) {
	assert.Empty(t, MapResult(nil).Items)
	assert.Nil(t, MapResult(nil).Header.VendorName)
	assert.Empty(t, MapResult(&AnalyzeResult{}).Items)
}

func TestMapResultMissingFieldsYieldNil(t *testing.T) {
	// A document with only a vendor name: every other header field must be
	// nil, and mapping must not panic.
	result := &AnalyzeResult{Documents: []Document{{Fields: map[string]Field{
		"VendorName": {String: strPtr("Distribuidora Río Cuarto SRL"), Confidence: 0.87},
	}}}}

	mapped := MapResult(result)

	require.NotNil(t, mapped.Header.VendorName)
	assert.Equal(t, "Distribuidora Río Cuarto SRL", *mapped.Header.VendorName)
	require.NotNil(t, mapped.Header.VendorNameConfidence)
	assert.InDelta(t, 0.87, *mapped.Header.VendorNameConfidence, 1e-9)

	assert.Nil(t, mapped.Header.VendorTaxID)
	assert.Nil(t, mapped.Header.InvoiceDate)
	assert.Nil(t, mapped.Header.Subtotal)
	assert.Nil(t, mapped.Header.InvoiceTotal)
	assert.Nil(t, mapped.Header.DocumentType)
	assert.Empty(t, mapped.Items)
}

func TestMapResultTypeMismatchYieldsNil(t *testing.T) {
	// InvoiceTotal typed as a plain string instead of a currency must map to nil.
	result := &AnalyzeResult{Documents: []Document{{Fields: map[string]Field{
		"InvoiceTotal": {String: strPtr("56870")},
	}}}}

	assert.Nil(t, MapResult(result).Header.InvoiceTotal)
}

func TestMapResultCurrencyAndDates(t *testing.T) {
	issued := time.Date(2025, time.August, 14, 0, 0, 0, 0, time.UTC)
	result := &AnalyzeResult{Documents: []Document{{Fields: map[string]Field{
		"SubTotal":     {Currency: &Currency{Amount: 47000, Code: "ARS"}},
		"InvoiceTotal": {Currency: &Currency{Amount: 56870}, Confidence: 0.93},
		"InvoiceDate":  {Date: &issued},
	}}}}

	mapped := MapResult(result)

	require.NotNil(t, mapped.Header.Subtotal)
	assert.Equal(t, 47000.0, *mapped.Header.Subtotal)
	require.NotNil(t, mapped.Header.InvoiceTotal)
	assert.Equal(t, 56870.0, *mapped.Header.InvoiceTotal)
	require.NotNil(t, mapped.Header.TotalConfidence)
	assert.InDelta(t, 0.93, *mapped.Header.TotalConfidence, 1e-9)
	require.NotNil(t, mapped.Header.InvoiceDate)
	assert.Equal(t, "2025-08-14", *mapped.Header.InvoiceDate)
}

func TestMapResultAddressFlattening(t *testing.T) {
	tests := []struct {
		name     string
		address  Address
		expected string
	}{
		{
			name:     "structured parts in display order",
			address:  Address{HouseNumber: "1250", Road: "Av. Sabattini", City: "Río Cuarto", Unit: "Local 3"},
			expected: "1250 Av. Sabattini Río Cuarto Local 3",
		},
		{
			name:     "partial parts skip gaps",
			address:  Address{Road: "Av. Sabattini", City: "Río Cuarto"},
			expected: "Av. Sabattini Río Cuarto",
		},
		{
			name:     "fallback to street address",
			address:  Address{StreetAddress: "Av. Sabattini 1250, Río Cuarto"},
			expected: "Av. Sabattini 1250, Río Cuarto",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			addr := tt.address
			result := &AnalyzeResult{Documents: []Document{{Fields: map[string]Field{
				"VendorAddress": {Address: &addr},
			}}}}
			got := MapResult(result).Header.VendorAddress
			require.NotNil(t, got)
			assert.Equal(t, tt.expected, *got)
		})
	}
}

func TestMapResultEmptyAddressYieldsNil(t *testing.T) {
	result := &AnalyzeResult{Documents: []Document{{Fields: map[string]Field{
		"VendorAddress": {Address: &Address{}},
	}}}}
	assert.Nil(t, MapResult(result).Header.VendorAddress)
}

func TestMapResultItems(t *testing.T) {
	result := &AnalyzeResult{Documents: []Document{{Fields: map[string]Field{
		"Items": {Array: []Field{
			{Object: map[string]Field{
				"Description": {String: strPtr("Aceite Natura 1L")},
				"Quantity":    {Number: numPtr(6)},
				"UnitPrice":   {Currency: &Currency{Amount: 1300}},
				"Amount":      {Currency: &Currency{Amount: 7800}},
				"ProductCode": {String: strPtr("AC-100")},
			}},
			{Object: map[string]Field{
				"Description": {String: strPtr("IVA 21%")},
				"Amount":      {Currency: &Currency{Amount: 9870}},
			}},
			{Object: map[string]Field{
				// no description at all: still a product line
				"Amount": {Currency: &Currency{Amount: 100}},
			}},
			{}, // malformed entry without an object is skipped
		}},
	}}}}

	mapped := MapResult(result)
	require.Len(t, mapped.Items, 3)

	first := mapped.Items[0]
	assert.Equal(t, "Aceite Natura 1L", *first.Description)
	assert.Equal(t, 6.0, *first.Quantity)
	assert.Equal(t, 1300.0, *first.UnitPrice)
	assert.Equal(t, 7800.0, *first.Amount)
	assert.Equal(t, "AC-100", *first.ProductCode)
	assert.Equal(t, models.ItemKindProduct, first.Kind)

	assert.Equal(t, models.ItemKindTax, mapped.Items[1].Kind)
	assert.Nil(t, mapped.Items[1].Quantity)

	assert.Nil(t, mapped.Items[2].Description)
	assert.Equal(t, models.ItemKindProduct, mapped.Items[2].Kind)
}

func TestMapResultNumericUnitFallback(t *testing.T) {
	result := &AnalyzeResult{Documents: []Document{{Fields: map[string]Field{
		"Items": {Array: []Field{
			{Object: map[string]Field{
				"Description": {String: strPtr("Harina Pureza 000")},
				"Unit":        {Number: numPtr(10)},
			}},
		}},
	}}}}

	items := MapResult(result).Items
	require.Len(t, items, 1)
	require.NotNil(t, items[0].Unit)
	assert.Equal(t, "10", *items[0].Unit)
}

func TestSimulatedProviderMapsToFixture(t *testing.T) {
	provider := NewSimulatedProvider(zap.NewNop())
	result, err := provider.Analyze(context.Background(), nil, "")
	require.NoError(t, err)

	mapped := MapResult(result)

	require.NotNil(t, mapped.Header.VendorName)
	assert.Equal(t, "Distribuidora Río Cuarto SRL", *mapped.Header.VendorName)
	assert.Equal(t, "000456", *mapped.Header.InvoiceID)
	assert.Equal(t, "B", *mapped.Header.DocumentType)
	assert.Equal(t, "0002", *mapped.Header.PointOfSale)
	assert.Equal(t, 47000.0, *mapped.Header.Subtotal)
	assert.Equal(t, 9870.0, *mapped.Header.TotalTax)
	assert.Equal(t, 56870.0, *mapped.Header.InvoiceTotal)

	require.Len(t, mapped.Items, 5)
	sum := 0.0
	for _, it := range mapped.Items {
		require.NotNil(t, it.Amount)
		sum += *it.Amount
		assert.Equal(t, models.ItemKindProduct, it.Kind)
	}
	assert.Equal(t, 47000.0, sum)
}
