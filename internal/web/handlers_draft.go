package web

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/barcontrol/barcontrol/internal/draft"
	"github.com/barcontrol/barcontrol/internal/extraction"
	"github.com/barcontrol/barcontrol/internal/invoice"
	"github.com/barcontrol/barcontrol/internal/matching"
	"github.com/barcontrol/barcontrol/internal/models"
	"github.com/barcontrol/barcontrol/internal/storage"
	"github.com/barcontrol/barcontrol/pkg/utils"
)

var allowedUploadTypes = map[string]bool{
	"application/pdf": true,
	"image/png":       true,
	"image/jpeg":      true,
}

// uploadInvoice stores the original, runs extraction and matching, and
// answers with a fresh review draft.
func (s *Server) uploadInvoice(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "multipart field 'file' is required"})
		return
	}
	defer file.Close()

	if header.Size > s.cfg.MaxUploadSize {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large"})
		return
	}
	contentType := header.Header.Get("Content-Type")
	if !allowedUploadTypes[contentType] {
		c.JSON(http.StatusUnsupportedMediaType, gin.H{"error": "only PDF, PNG and JPEG uploads are accepted"})
		return
	}

	data, err := io.ReadAll(io.LimitReader(file, s.cfg.MaxUploadSize+1))
	if err != nil {
		s.handleError(c, err)
		return
	}
	if int64(len(data)) > s.cfg.MaxUploadSize {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large"})
		return
	}

	key := storage.InvoiceKey(time.Now(), header.Filename)
	if err := s.deps.Objects.Put(key, data); err != nil {
		s.handleError(c, err)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), s.cfg.ExtractionTimeout)
	defer cancel()

	result, err := s.deps.Provider.Analyze(ctx, data, "")
	if err != nil {
		s.logger.Error("Document extraction failed",
			zap.String("file", header.Filename), zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "document extraction failed"})
		return
	}

	d := &draft.Draft{
		FileRef:     key,
		FileName:    header.Filename,
		ContentType: contentType,
		Mapped:      extraction.MapResult(result),
	}
	s.matchDraftItems(ctx, d)
	if err := s.resolveDraft(d); err != nil {
		s.handleError(c, err)
		return
	}

	if err := s.deps.Drafts.Create(d); err != nil {
		s.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, d)
}

// matchDraftItems runs the product matcher over every product line and
// records the automatic assignments. Matching failures leave lines
// unassigned, they never fail the upload.
func (s *Server) matchDraftItems(ctx context.Context, d *draft.Draft) {
	snap, err := matching.LoadSnapshot(s.deps.Embeddings)
	if err != nil {
		s.logger.Warn("Failed to load embedding snapshot, matching degraded", zap.Error(err))
		snap = nil
	}

	assignments := make(map[int]draft.Assignment)
	for i, item := range d.Mapped.Items {
		if item.Kind != models.ItemKindProduct {
			continue
		}
		match, err := s.deps.Matcher.Match(ctx, snap, deref(item.Description), deref(item.ProductCode))
		if err != nil {
			s.logger.Warn("Product matching failed for line",
				zap.Int("line", i), zap.Error(err))
			continue
		}
		if match == nil {
			continue
		}
		assignments[i] = draft.Assignment{
			ProductID:   match.Product.ID,
			ProductName: match.Product.Name,
			Method:      match.Method,
			Score:       match.Score,
		}
	}
	if len(assignments) > 0 {
		d.Assignments = assignments
	}
}

// resolveDraft refreshes the supplier/duplicate resolution from the
// draft's current header.
func (s *Server) resolveDraft(d *draft.Draft) error {
	h := &d.Mapped.Header
	res, err := s.deps.Resolver.Resolve(
		deref(h.VendorName), deref(h.VendorTaxID),
		deref(h.DocumentType), deref(h.PointOfSale), deref(h.InvoiceID))
	if err != nil {
		return err
	}
	d.Resolution = res
	return nil
}

// getDraft returns a draft for review. First sight moves it from
// uploaded to previewed. Supplier and duplicate advisories are
// recomputed on every read: an invoice confirmed since the upload
// must surface as a duplicate here.
func (s *Server) getDraft(c *gin.Context) {
	d, err := s.deps.Drafts.Get(c.Param("token"))
	if err != nil {
		s.handleError(c, err)
		return
	}
	if !d.State.Terminal() {
		if err := s.resolveDraft(d); err != nil {
			s.handleError(c, err)
			return
		}
		if d.State == draft.StateUploaded {
			d.State = draft.StatePreviewed
		}
		if err := s.deps.Drafts.Update(d); err != nil {
			s.handleError(c, err)
			return
		}
	}
	c.JSON(http.StatusOK, d)
}

type draftUpdateRequest struct {
	Mapped      *extraction.MappedInvoice `json:"mapped"`
	Assignments map[int]draft.Assignment  `json:"assignments"`
}

// updateDraft applies review-screen corrections: edited header fields,
// edited lines and manual product assignments.
func (s *Server) updateDraft(c *gin.Context) {
	var req draftUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	d, err := s.deps.Drafts.Get(c.Param("token"))
	if err != nil {
		s.handleError(c, err)
		return
	}

	if req.Mapped != nil {
		d.Mapped = req.Mapped
	}
	if req.Assignments != nil {
		for line, a := range req.Assignments {
			if line < 0 || line >= len(d.Mapped.Items) {
				s.handleError(c, validationError("assignment references a line that does not exist"))
				return
			}
			product, err := s.deps.Products.GetByID(a.ProductID)
			if err != nil {
				s.handleError(c, err)
				return
			}
			if product == nil {
				s.handleError(c, validationError("assignment references an unknown product"))
				return
			}
			a.ProductName = product.Name
			req.Assignments[line] = a
		}
		d.Assignments = req.Assignments
	}
	if err := s.resolveDraft(d); err != nil {
		s.handleError(c, err)
		return
	}

	d.State = draft.StatePreviewed
	if err := s.deps.Drafts.Update(d); err != nil {
		s.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

// confirmDraft persists the reviewed invoice and finalizes the draft.
func (s *Server) confirmDraft(c *gin.Context) {
	d, err := s.deps.Drafts.Get(c.Param("token"))
	if err != nil {
		s.handleError(c, err)
		return
	}
	if !draft.CanTransition(d.State, draft.StateConfirmed) {
		s.handleError(c, draft.ErrBadTransition)
		return
	}

	input, err := confirmInput(d)
	if err != nil {
		s.handleError(c, err)
		return
	}

	inv, err := s.deps.Assembler.Assemble(input)
	if err != nil {
		s.handleError(c, err)
		return
	}

	d.State = draft.StateConfirmed
	if err := s.deps.Drafts.Update(d); err != nil {
		// The invoice is in; losing the terminal draft state is survivable.
		s.logger.Warn("Failed to finalize draft after confirm",
			zap.String("token", d.Token), zap.Error(err))
	}
	c.JSON(http.StatusCreated, gin.H{"invoice": inv, "draft_token": d.Token})
}

// rejectDraft discards a draft.
func (s *Server) rejectDraft(c *gin.Context) {
	d, err := s.deps.Drafts.Get(c.Param("token"))
	if err != nil {
		s.handleError(c, err)
		return
	}
	d.State = draft.StateRejected
	if err := s.deps.Drafts.Update(d); err != nil {
		s.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "rejected"})
}

// confirmInput converts a reviewed draft into the assembler's input.
func confirmInput(d *draft.Draft) (*invoice.Input, error) {
	if d.Mapped == nil {
		return nil, validationError("draft carries no extracted data")
	}
	h := &d.Mapped.Header

	supplierName := utils.SanitizeString(deref(h.VendorName))
	supplierTaxID := deref(h.VendorTaxID)
	if supplierName == "" && supplierTaxID == "" {
		return nil, validationError("supplier name or tax id is required")
	}
	if supplierTaxID != "" {
		if err := utils.ValidateCUIT(supplierTaxID); err != nil {
			return nil, validationError("supplier tax id is not a valid CUIT")
		}
	}

	for i, item := range d.Mapped.Items {
		if item.Kind != models.ItemKindProduct {
			continue
		}
		if _, ok := d.Assignments[i]; !ok {
			return nil, validationError("every product line must be assigned to a catalog product")
		}
	}

	in := &invoice.Input{
		Supplier: models.Supplier{
			Name:         supplierName,
			TaxID:        supplierTaxID,
			Address:      deref(h.VendorAddress),
			PaymentTerms: deref(h.PaymentTerm),
		},
		DocumentTypeCode: deref(h.DocumentType),
		Invoice: models.Invoice{
			PointOfSale:   deref(h.PointOfSale),
			Number:        deref(h.InvoiceID),
			IssueDate:     parseISO(h.InvoiceDate),
			DueDate:       parseISO(h.DueDate),
			ServiceFrom:   parseISO(h.ServiceStartDate),
			ServiceUntil:  parseISO(h.ServiceEndDate),
			Currency:      deref(h.Currency),
			ExchangeRate:  decFrom(h.ExchangeRate),
			Subtotal:      decFrom(h.Subtotal),
			TaxTotal:      decFrom(h.TotalTax),
			Total:         decFrom(h.InvoiceTotal),
			CustomerName:  deref(h.CustomerName),
			CustomerTaxID: deref(h.CustomerTaxID),
			CustomerAddr:  deref(h.CustomerAddress),
			PaymentTerm:   deref(h.PaymentTerm),
			AuthCode:      deref(h.AuthCode),
			AuthExpiry:    parseISO(h.AuthExpiry),
			FileRef:       d.FileRef,
		},
	}

	for i, item := range d.Mapped.Items {
		line := models.InvoiceItem{
			Description: deref(item.Description),
			Quantity:    decFrom(item.Quantity),
			Unit:        deref(item.Unit),
			UnitPrice:   decFrom(item.UnitPrice),
			Amount:      decFrom(item.Amount),
			ProductCode: deref(item.ProductCode),
			ItemDate:    parseISO(item.Date),
			Kind:        item.Kind,
		}
		if a, ok := d.Assignments[i]; ok && line.Kind == models.ItemKindProduct {
			id := a.ProductID
			line.ProductID = &id
		}
		in.Items = append(in.Items, line)
	}

	return in, nil
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func decFrom(p *float64) decimal.Decimal {
	if p == nil {
		return decimal.Zero
	}
	return decimal.NewFromFloat(*p)
}

func parseISO(p *string) *time.Time {
	if p == nil || *p == "" {
		return nil
	}
	t, err := time.Parse("2006-01-02", *p)
	if err != nil {
		return nil
	}
	return &t
}
