package extraction

import (
	"time"

	"github.com/barcontrol/barcontrol/internal/classify"
	"github.com/barcontrol/barcontrol/internal/models"
)

// Header holds the flattened invoice-level fields. Every field is optional:
// the provider schema is not stable, and a missing or mistyped field maps to
// nil rather than an error. All values are JSON primitives so a draft can be
// stored outside the process.
type Header struct {
	VendorName           *string  `json:"vendor_name"`
	VendorNameConfidence *float64 `json:"vendor_name_confidence"`
	VendorTaxID          *string  `json:"vendor_tax_id"`
	VendorAddress        *string  `json:"vendor_address"`
	VendorAddressee      *string  `json:"vendor_address_recipient"`
	CustomerName         *string  `json:"customer_name"`
	CustomerTaxID        *string  `json:"customer_tax_id"`
	CustomerAddress      *string  `json:"customer_address"`
	CustomerAddressee    *string  `json:"customer_address_recipient"`
	InvoiceID            *string  `json:"invoice_id"`
	InvoiceDate          *string  `json:"invoice_date"` // ISO YYYY-MM-DD
	DueDate              *string  `json:"due_date"`
	Subtotal             *float64 `json:"subtotal"`
	TotalTax             *float64 `json:"total_tax"`
	InvoiceTotal         *float64 `json:"invoice_total"`
	TotalConfidence      *float64 `json:"invoice_total_confidence"`
	PaymentTerm          *string  `json:"payment_term"`
	ServiceStartDate     *string  `json:"service_start_date"`
	ServiceEndDate       *string  `json:"service_end_date"`
	DocumentType         *string  `json:"document_type"` // AFIP letter code
	PointOfSale          *string  `json:"point_of_sale"`
	AuthCode             *string  `json:"auth_code"` // CAE
	AuthExpiry           *string  `json:"auth_expiry"`
	Currency             *string  `json:"currency"`
	ExchangeRate         *float64 `json:"exchange_rate"`
}

// Item is one flattened line item plus its heuristic classification.
type Item struct {
	Description *string         `json:"description"`
	Quantity    *float64        `json:"quantity"`
	Unit        *string         `json:"unit"`
	UnitPrice   *float64        `json:"unit_price"`
	Amount      *float64        `json:"amount"`
	ProductCode *string         `json:"product_code"`
	Date        *string         `json:"date"`
	Tax         *string         `json:"tax"`
	Kind        models.ItemKind `json:"kind"`
}

// MappedInvoice is the adapter output held by a review draft.
type MappedInvoice struct {
	Header Header `json:"header"`
	Items  []Item `json:"items"`
}

// MapResult flattens a provider result into a MappedInvoice. Only the first
// recognized document is considered. A nil or empty result maps to an empty
// invoice, never an error.
func MapResult(result *AnalyzeResult) *MappedInvoice {
	mapped := &MappedInvoice{Items: []Item{}}
	if result == nil || len(result.Documents) == 0 {
		return mapped
	}
	fields := result.Documents[0].Fields

	h := &mapped.Header
	h.VendorName, h.VendorNameConfidence = stringField(fields, "VendorName")
	h.VendorTaxID, _ = stringField(fields, "VendorTaxId")
	h.VendorAddress, _ = addressField(fields, "VendorAddress")
	h.VendorAddressee, _ = stringField(fields, "VendorAddressRecipient")

	h.CustomerName, _ = stringField(fields, "CustomerName")
	h.CustomerTaxID, _ = stringField(fields, "CustomerTaxId")
	h.CustomerAddress, _ = addressField(fields, "CustomerAddress")
	h.CustomerAddressee, _ = stringField(fields, "CustomerAddressRecipient")

	h.InvoiceID, _ = stringField(fields, "InvoiceId")
	h.InvoiceDate, _ = dateField(fields, "InvoiceDate")
	h.DueDate, _ = dateField(fields, "DueDate")
	h.Subtotal, _ = currencyField(fields, "SubTotal")
	h.TotalTax, _ = currencyField(fields, "TotalTax")
	h.InvoiceTotal, h.TotalConfidence = currencyField(fields, "InvoiceTotal")
	h.PaymentTerm, _ = stringField(fields, "PaymentTerm")
	h.ServiceStartDate, _ = dateField(fields, "ServiceStartDate")
	h.ServiceEndDate, _ = dateField(fields, "ServiceEndDate")

	h.DocumentType, _ = stringField(fields, "InvoiceType")
	h.PointOfSale, _ = stringField(fields, "PointOfSale")
	h.AuthCode, _ = stringField(fields, "CAE")
	h.AuthExpiry, _ = dateField(fields, "CAEDueDate")
	h.Currency, _ = stringField(fields, "Currency")
	h.ExchangeRate, _ = currencyField(fields, "ExchangeRate")

	items, ok := fields["Items"]
	if !ok {
		return mapped
	}
	for _, entry := range items.Array {
		obj := entry.Object
		if obj == nil {
			continue
		}

		it := Item{
			Description: objString(obj, "Description"),
			Quantity:    objNumber(obj, "Quantity"),
			Unit:        objString(obj, "Unit"),
			UnitPrice:   objCurrency(obj, "UnitPrice"),
			Amount:      objCurrency(obj, "Amount"),
			ProductCode: objString(obj, "ProductCode"),
			Date:        objDate(obj, "Date"),
			Tax:         objString(obj, "Tax"),
		}

		desc := ""
		if it.Description != nil {
			desc = *it.Description
		}
		it.Kind = classify.Classify(desc)

		mapped.Items = append(mapped.Items, it)
	}

	return mapped
}

func stringField(fields map[string]Field, name string) (*string, *float64) {
	f, ok := fields[name]
	if !ok {
		return nil, nil
	}
	v, ok := f.StringValue()
	if !ok {
		return nil, nil
	}
	conf := f.Confidence
	return &v, &conf
}

func currencyField(fields map[string]Field, name string) (*float64, *float64) {
	f, ok := fields[name]
	if !ok {
		return nil, nil
	}
	amt, ok := f.CurrencyAmount()
	if !ok {
		return nil, nil
	}
	conf := f.Confidence
	return &amt, &conf
}

func dateField(fields map[string]Field, name string) (*string, *float64) {
	f, ok := fields[name]
	if !ok {
		return nil, nil
	}
	d, ok := f.DateValue()
	if !ok {
		return nil, nil
	}
	iso := d.Format("2006-01-02")
	conf := f.Confidence
	return &iso, &conf
}

func addressField(fields map[string]Field, name string) (*string, *float64) {
	f, ok := fields[name]
	if !ok || f.Address == nil {
		return nil, nil
	}
	s := flattenAddress(f.Address)
	if s == "" {
		return nil, nil
	}
	conf := f.Confidence
	return &s, &conf
}

// flattenAddress joins the structured parts in display order, falling back
// to the unstructured street address when no parts are present.
func flattenAddress(a *Address) string {
	out := ""
	for _, part := range []string{a.HouseNumber, a.Road, a.City, a.Unit} {
		if part == "" {
			continue
		}
		if out != "" {
			out += " "
		}
		out += part
	}
	if out == "" {
		return a.StreetAddress
	}
	return out
}

func objString(obj map[string]Field, key string) *string {
	f, ok := obj[key]
	if !ok {
		return nil
	}
	if v, ok := f.StringValue(); ok {
		return &v
	}
	return nil
}

func objNumber(obj map[string]Field, key string) *float64 {
	f, ok := obj[key]
	if !ok {
		return nil
	}
	if v, ok := f.NumberValue(); ok {
		return &v
	}
	return nil
}

func objCurrency(obj map[string]Field, key string) *float64 {
	f, ok := obj[key]
	if !ok {
		return nil
	}
	if v, ok := f.CurrencyAmount(); ok {
		return &v
	}
	return nil
}

func objDate(obj map[string]Field, key string) *string {
	f, ok := obj[key]
	if !ok {
		return nil
	}
	if d, ok := f.DateValue(); ok {
		iso := d.Format("2006-01-02")
		return &iso
	}
	return nil
}

// helper shared by tests and the simulated provider
func isoDate(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}
