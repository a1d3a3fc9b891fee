package utils

import (
	"fmt"
	"regexp"
	"strings"
)

// cuitWeights is the AFIP mod-11 weight sequence.
var cuitWeights = [10]int{5, 4, 3, 2, 7, 6, 5, 4, 3, 2}

// ValidateCUIT validates an Argentine CUIT/CUIL. Hyphens and spaces are
// ignored ("30-71234567-1" and "30712345671" both pass).
func ValidateCUIT(cuit string) error {
	digits := strings.NewReplacer("-", "", " ", "").Replace(cuit)
	if len(digits) != 11 {
		return fmt.Errorf("CUIT must have 11 digits: %s", cuit)
	}

	sum := 0
	for i, weight := range cuitWeights {
		d := digits[i]
		if d < '0' || d > '9' {
			return fmt.Errorf("CUIT must be numeric: %s", cuit)
		}
		sum += int(d-'0') * weight
	}

	check := 11 - sum%11
	switch check {
	case 11:
		check = 0
	case 10:
		check = 9
	}
	if digits[10] != byte('0'+check) {
		return fmt.Errorf("CUIT check digit mismatch: %s", cuit)
	}
	return nil
}

// SanitizeString removes potentially harmful characters
func SanitizeString(s string) string {
	// Remove control characters and potential SQL injection patterns
	sanitized := regexp.MustCompile(`[\x00-\x1f\x7f]`).ReplaceAllString(s, "")
	return sanitized
}
