// Package classify labels extracted invoice lines as products, tax charges
// or subtotal/total rows.
package classify

import (
	"strings"

	"github.com/barcontrol/barcontrol/internal/models"
	"github.com/barcontrol/barcontrol/internal/textnorm"
)

// Keyword sets are matched as substrings of the normalized description,
// so accented variants collapse onto these forms.
var (
	taxKeywords     = []string{"iva", "vat", "impuesto", "tax", "retencion", "withholding", "percepcion", "perception"}
	summaryKeywords = []string{"subtotal", "total", "saldo", "balance"}
)

// Classify returns the kind of an invoice line based on its description.
// This is a keyword heuristic: a product literally named "Total Cleaner"
// will be mislabeled, which is an accepted limitation. Empty descriptions
// fail open to product so the line still reaches manual review.
func Classify(description string) models.ItemKind {
	desc := textnorm.Normalize(description)
	if desc == "" {
		return models.ItemKindProduct
	}

	for _, kw := range taxKeywords {
		if strings.Contains(desc, kw) {
			return models.ItemKindTax
		}
	}
	for _, kw := range summaryKeywords {
		if strings.Contains(desc, kw) {
			return models.ItemKindSummary
		}
	}
	return models.ItemKindProduct
}
