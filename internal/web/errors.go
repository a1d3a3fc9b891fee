package web

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/barcontrol/barcontrol/internal/draft"
	"github.com/barcontrol/barcontrol/internal/invoice"
	"github.com/barcontrol/barcontrol/internal/storage"
)

// errValidation marks user-correctable input problems so they map to 422.
type errValidation struct{ msg string }

func (e errValidation) Error() string { return e.msg }

func validationError(msg string) error { return errValidation{msg: msg} }

// handleError maps domain errors onto HTTP statuses. Anything unexpected
// logs at error level and surfaces as a bare 500.
func (s *Server) handleError(c *gin.Context, err error) {
	var ve errValidation
	switch {
	case errors.Is(err, draft.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "draft not found or expired"})
	case errors.Is(err, invoice.ErrDuplicateInvoice):
		c.JSON(http.StatusConflict, gin.H{"error": "invoice already registered", "code": "duplicate_invoice"})
	case errors.Is(err, draft.ErrBadTransition):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, invoice.ErrUnknownDocumentType),
		errors.Is(err, invoice.ErrMissingNumber):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.As(err, &ve):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": ve.msg})
	case errors.Is(err, storage.ErrBadSignature):
		c.JSON(http.StatusForbidden, gin.H{"error": "invalid download signature"})
	case errors.Is(err, storage.ErrLinkExpired):
		c.JSON(http.StatusForbidden, gin.H{"error": "download link expired"})
	default:
		s.logger.Error("Request failed", zap.String("path", c.Request.URL.Path), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
