package web

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/barcontrol/barcontrol/internal/repository"
)

// listInvoices serves the filtered, paginated invoice register.
func (s *Server) listInvoices(c *gin.Context) {
	filter, err := listFilterFromQuery(c)
	if err != nil {
		s.handleError(c, err)
		return
	}

	invoices, total, err := s.deps.Invoices.List(filter)
	if err != nil {
		s.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"invoices":  invoices,
		"total":     total,
		"page":      filter.Page,
		"page_size": filter.PageSize,
	})
}

func listFilterFromQuery(c *gin.Context) (repository.ListFilter, error) {
	filter := repository.ListFilter{
		Supplier: c.Query("supplier"),
		Number:   c.Query("number"),
		ItemText: c.Query("item"),
	}

	var err error
	if filter.Page, err = intQuery(c, "page", 1); err != nil {
		return filter, err
	}
	if filter.PageSize, err = intQuery(c, "page_size", 15); err != nil {
		return filter, err
	}

	if v := c.Query("date_from"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return filter, validationError("date_from must be YYYY-MM-DD")
		}
		filter.DateFrom = &t
	}
	if v := c.Query("date_to"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return filter, validationError("date_to must be YYYY-MM-DD")
		}
		filter.DateTo = &t
	}
	if v := c.Query("total_min"); v != "" {
		d, err := decimal.NewFromString(v)
		if err != nil {
			return filter, validationError("total_min must be a number")
		}
		filter.TotalMin = &d
	}
	if v := c.Query("total_max"); v != "" {
		d, err := decimal.NewFromString(v)
		if err != nil {
			return filter, validationError("total_max must be a number")
		}
		filter.TotalMax = &d
	}
	return filter, nil
}

func intQuery(c *gin.Context, name string, fallback int) (int, error) {
	v := c.Query(name)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, validationError(name + " must be a positive integer")
	}
	return n, nil
}

// getInvoice serves one invoice with its line items.
func (s *Server) getInvoice(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid invoice id"})
		return
	}
	inv, err := s.deps.Invoices.GetByID(id)
	if err != nil {
		s.handleError(c, err)
		return
	}
	if inv == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "invoice not found"})
		return
	}
	c.JSON(http.StatusOK, inv)
}

// invoiceOriginal answers a short-lived signed link to the stored
// original document.
func (s *Server) invoiceOriginal(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid invoice id"})
		return
	}
	inv, err := s.deps.Invoices.GetByID(id)
	if err != nil {
		s.handleError(c, err)
		return
	}
	if inv == nil || inv.FileRef == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "original document not available"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": s.deps.Signer.Sign(inv.FileRef)})
}

// exportInvoices streams the filtered register as an xlsx workbook.
func (s *Server) exportInvoices(c *gin.Context) {
	filter, err := listFilterFromQuery(c)
	if err != nil {
		s.handleError(c, err)
		return
	}
	// The export ignores pagination and takes the whole filtered set.
	filter.Page = 1
	filter.PageSize = 10000

	invoices, _, err := s.deps.Invoices.List(filter)
	if err != nil {
		s.handleError(c, err)
		return
	}
	content, err := s.deps.Exporter.InvoiceRegister(invoices)
	if err != nil {
		s.handleError(c, err)
		return
	}

	filename := fmt.Sprintf("facturas_%s.xlsx", time.Now().Format("20060102"))
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK,
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", content)
}

// downloadFile serves a stored original through a signed link.
func (s *Server) downloadFile(c *gin.Context) {
	key := strings.TrimPrefix(c.Param("key"), "/")
	if err := s.deps.Signer.Verify(key, c.Query("expires"), c.Query("signature")); err != nil {
		s.handleError(c, err)
		return
	}

	content, err := s.deps.Objects.Get(key)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "file not found"})
		return
	}

	contentType := "application/octet-stream"
	switch {
	case strings.HasSuffix(key, ".pdf"):
		contentType = "application/pdf"
	case strings.HasSuffix(key, ".png"):
		contentType = "image/png"
	case strings.HasSuffix(key, ".jpg"), strings.HasSuffix(key, ".jpeg"):
		contentType = "image/jpeg"
	}
	c.Data(http.StatusOK, contentType, content)
}

// listSuppliers serves the supplier directory for review-screen pickers.
func (s *Server) listSuppliers(c *gin.Context) {
	suppliers, err := s.deps.Suppliers.List()
	if err != nil {
		s.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"suppliers": suppliers})
}

// listDocumentTypes serves the fiscal document-type lookup.
func (s *Server) listDocumentTypes(c *gin.Context) {
	types, err := s.deps.DocumentTypes.List()
	if err != nil {
		s.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"document_types": types})
}
