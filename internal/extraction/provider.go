// Package extraction wraps the document-understanding provider and flattens
// its loosely-typed result into a JSON-safe structure the review flow can
// hold in a draft.
package extraction

import (
	"context"
	"strconv"
	"time"
)

// Provider analyzes an uploaded document and returns a semi-structured
// field bag. Implementations may use the raw bytes, the stored-object URL,
// or both. Errors are transport/model failures and abort the upload.
type Provider interface {
	Analyze(ctx context.Context, data []byte, url string) (*AnalyzeResult, error)
}

// AnalyzeResult is the provider's raw output. The schema is not guaranteed
// stable across documents: any field, sub-value or array element may be
// absent, so consumers go through the optional accessors on Field.
type AnalyzeResult struct {
	Documents []Document `json:"documents"`
}

// Document is one recognized document with its named fields.
type Document struct {
	Fields map[string]Field `json:"fields"`
}

// Field is a tagged union of the value kinds the provider emits. Exactly
// zero or one of the value slots is set.
type Field struct {
	String     *string          `json:"string,omitempty"`
	Number     *float64         `json:"number,omitempty"`
	Currency   *Currency        `json:"currency,omitempty"`
	Date       *time.Time       `json:"date,omitempty"`
	Address    *Address         `json:"address,omitempty"`
	Array      []Field          `json:"array,omitempty"`
	Object     map[string]Field `json:"object,omitempty"`
	Confidence float64          `json:"confidence"`
}

// Currency is a monetary sub-field; only the amount is consumed.
type Currency struct {
	Amount float64 `json:"amount"`
	Code   string  `json:"code,omitempty"`
}

// Address is a structured postal address sub-field.
type Address struct {
	HouseNumber   string `json:"house_number,omitempty"`
	Road          string `json:"road,omitempty"`
	City          string `json:"city,omitempty"`
	Unit          string `json:"unit,omitempty"`
	StreetAddress string `json:"street_address,omitempty"`
}

// StringValue returns the string slot, falling back to a numeric slot
// rendered as text (providers sometimes type codes as numbers).
func (f Field) StringValue() (string, bool) {
	if f.String != nil {
		return *f.String, true
	}
	if f.Number != nil {
		return strconv.FormatFloat(*f.Number, 'f', -1, 64), true
	}
	return "", false
}

// NumberValue returns the numeric slot.
func (f Field) NumberValue() (float64, bool) {
	if f.Number != nil {
		return *f.Number, true
	}
	return 0, false
}

// CurrencyAmount returns the amount of the currency slot.
func (f Field) CurrencyAmount() (float64, bool) {
	if f.Currency != nil {
		return f.Currency.Amount, true
	}
	return 0, false
}

// DateValue returns the date slot.
func (f Field) DateValue() (time.Time, bool) {
	if f.Date != nil {
		return *f.Date, true
	}
	return time.Time{}, false
}
