package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateCUIT(t *testing.T) {
	valid := []string{
		"20-12345678-6",
		"20123456786",
		"27-23456789-1",
		"30-71234567-1",
		"30 71122233 9",
	}
	for _, cuit := range valid {
		assert.NoError(t, ValidateCUIT(cuit), cuit)
	}

	invalid := []string{
		"",
		"1234",
		"20-12345678-5", // wrong check digit
		"2012345678a",
		"201234567865", // too long
	}
	for _, cuit := range invalid {
		assert.Error(t, ValidateCUIT(cuit), cuit)
	}
}

func TestSanitizeString(t *testing.T) {
	assert.Equal(t, "hola", SanitizeString("ho\x00la"))
	assert.Equal(t, "Río Cuarto", SanitizeString("Río Cuarto"))
}
