package web

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/barcontrol/barcontrol/internal/draft"
	"github.com/barcontrol/barcontrol/internal/export"
	"github.com/barcontrol/barcontrol/internal/extraction"
	"github.com/barcontrol/barcontrol/internal/invoice"
	"github.com/barcontrol/barcontrol/internal/matching"
	"github.com/barcontrol/barcontrol/internal/models"
	"github.com/barcontrol/barcontrol/internal/repository"
	"github.com/barcontrol/barcontrol/internal/storage"
	"github.com/barcontrol/barcontrol/pkg/database"
)

type testApp struct {
	router   *gin.Engine
	db       *database.DB
	products *repository.ProductRepository
	invoices *repository.InvoiceRepository
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := zap.NewNop()

	db, err := database.New(database.Config{
		Path:         ":memory:",
		MaxOpenConns: 1,
		MaxIdleConns: 1,
	}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, database.NewMigrator(db, logger).RunMigrations("../../migrations"))

	suppliers := repository.NewSupplierRepository(db.DB, logger)
	products := repository.NewProductRepository(db.DB, logger)
	embeddings := repository.NewEmbeddingRepository(db.DB, logger)
	docTypes := repository.NewDocumentTypeRepository(db.DB, logger)
	invoices := repository.NewInvoiceRepository(db.DB, logger)
	drafts := repository.NewDraftRepository(db.DB, logger)

	srv := NewServer(Config{
		MaxUploadSize:     1 << 20,
		ExtractionTimeout: 5 * time.Second,
	}, Deps{
		Provider:      extraction.NewSimulatedProvider(logger),
		Matcher:       matching.NewMatcher(products, nil, 0.75, logger),
		Embeddings:    embeddings,
		Drafts:        draft.NewStore(drafts, time.Hour, logger),
		Resolver:      invoice.NewResolver(suppliers, docTypes, invoices, logger),
		Assembler:     invoice.NewAssembler(db, suppliers, docTypes, invoices, logger),
		Invoices:      invoices,
		Products:      products,
		Suppliers:     suppliers,
		DocumentTypes: docTypes,
		Objects:       storage.NewLocalObjectStore(t.TempDir(), logger),
		Signer:        storage.NewURLSigner("test-secret", 15*time.Minute),
		Exporter:      export.NewExcelExporter(logger),
		Logger:        logger,
	})

	return &testApp{router: srv.Router(), db: db, products: products, invoices: invoices}
}

func (a *testApp) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func (a *testApp) upload(t *testing.T) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", `form-data; name="file"; filename="factura.pdf"`)
	header.Set("Content-Type", "application/pdf")
	part, err := mw.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write([]byte("%PDF-1.4 fixture"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/invoices/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func decodeDraft(t *testing.T, w *httptest.ResponseRecorder) *draft.Draft {
	t.Helper()
	var d draft.Draft
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &d))
	return &d
}

// fixtureNames are the five line descriptions the simulated extractor emits.
var fixtureNames = []string{
	"Aceite Natura 1L",
	"Yerba M. Playadito 1kg",
	"Harina Pureza 000",
	"Spaghetti Lucchetti 500g",
	"Coca Cola 1.5L",
}

// seedCatalog creates one active product per fixture line so name matching
// assigns every line during upload.
func seedCatalog(t *testing.T, app *testApp) []*models.Product {
	t.Helper()
	out := make([]*models.Product, 0, len(fixtureNames))
	for _, name := range fixtureNames {
		p := &models.Product{Name: name, Active: true}
		require.NoError(t, app.products.Create(p))
		out = append(out, p)
	}
	return out
}

func TestUploadReviewConfirmFlow(t *testing.T) {
	app := newTestApp(t)
	catalog := seedCatalog(t, app)
	aceite := catalog[0]

	w := app.upload(t)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	d := decodeDraft(t, w)
	require.NotEmpty(t, d.Token)
	assert.Equal(t, draft.StateUploaded, d.State)
	require.NotNil(t, d.Mapped)
	require.Len(t, d.Mapped.Items, 5)
	require.NotNil(t, d.Mapped.Header.VendorName)
	assert.Equal(t, "Distribuidora Río Cuarto SRL", *d.Mapped.Header.VendorName)

	// Every line was matched by exact name during upload.
	require.Len(t, d.Assignments, 5)
	assert.Equal(t, aceite.ID, d.Assignments[0].ProductID)
	assert.Equal(t, matching.MethodName, d.Assignments[0].Method)

	require.NotNil(t, d.Resolution)
	assert.False(t, d.Resolution.Duplicate)
	assert.Nil(t, d.Resolution.Supplier, "supplier does not exist yet")

	// First view flips the draft to previewed.
	w = app.do(t, http.MethodGet, "/api/v1/drafts/"+d.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	d = decodeDraft(t, w)
	assert.Equal(t, draft.StatePreviewed, d.State)

	// Confirm persists the invoice.
	w = app.do(t, http.MethodPost, "/api/v1/drafts/"+d.Token+"/confirm", nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var confirmed struct {
		Invoice models.Invoice `json:"invoice"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &confirmed))
	inv := confirmed.Invoice
	require.NotZero(t, inv.ID)
	assert.Equal(t, "000456", inv.Number)
	assert.Equal(t, "0002", inv.PointOfSale)
	assert.Equal(t, "B", inv.DocumentType)
	assert.True(t, inv.Total.Equal(decimal.RequireFromString("56870")), "total is %s", inv.Total)
	require.Len(t, inv.Items, 5)
	for i, item := range inv.Items {
		require.NotNil(t, item.ProductID, "line %d", i)
	}
	assert.Equal(t, aceite.ID, *inv.Items[0].ProductID)
	assert.Equal(t, catalog[1].ID, *inv.Items[1].ProductID)

	// A confirmed draft cannot be confirmed again.
	w = app.do(t, http.MethodPost, "/api/v1/drafts/"+d.Token+"/confirm", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	// Re-uploading the same document flags and then blocks the duplicate.
	w = app.upload(t)
	require.Equal(t, http.StatusCreated, w.Code)
	dup := decodeDraft(t, w)
	require.NotNil(t, dup.Resolution)
	assert.True(t, dup.Resolution.Duplicate)
	require.NotNil(t, dup.Resolution.Supplier)

	w = app.do(t, http.MethodGet, "/api/v1/drafts/"+dup.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = app.do(t, http.MethodPost, "/api/v1/drafts/"+dup.Token+"/confirm", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "duplicate_invoice")
}

func TestDraftCorrectionsApply(t *testing.T) {
	app := newTestApp(t)
	seedCatalog(t, app)

	w := app.upload(t)
	require.Equal(t, http.StatusCreated, w.Code)
	d := decodeDraft(t, w)

	// Correct the invoice number on review, then confirm.
	number := "000999"
	d.Mapped.Header.InvoiceID = &number
	w = app.do(t, http.MethodPut, "/api/v1/drafts/"+d.Token, gin.H{"mapped": d.Mapped})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	d = decodeDraft(t, w)
	assert.Equal(t, draft.StatePreviewed, d.State)

	w = app.do(t, http.MethodPost, "/api/v1/drafts/"+d.Token+"/confirm", nil)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), "000999")
}

func TestConfirmRequiresAssignments(t *testing.T) {
	app := newTestApp(t)

	// Only the oil line has a catalog entry, the other four stay unassigned.
	aceite := &models.Product{Name: "Aceite Natura 1L", Active: true}
	require.NoError(t, app.products.Create(aceite))

	w := app.upload(t)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	d := decodeDraft(t, w)
	app.do(t, http.MethodGet, "/api/v1/drafts/"+d.Token, nil)

	w = app.do(t, http.MethodPost, "/api/v1/drafts/"+d.Token+"/confirm", nil)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code, w.Body.String())

	var count int
	require.NoError(t, app.db.DB.QueryRow(`SELECT COUNT(*) FROM invoices`).Scan(&count))
	assert.Zero(t, count, "a blocked confirmation must not persist an invoice")

	// Assign the remaining lines by hand, then confirm.
	assignments := gin.H{"0": gin.H{"product_id": aceite.ID, "manual": true}}
	for i, name := range fixtureNames[1:] {
		p := &models.Product{Name: name, Active: true}
		require.NoError(t, app.products.Create(p))
		assignments[fmt.Sprintf("%d", i+1)] = gin.H{"product_id": p.ID, "manual": true}
	}
	w = app.do(t, http.MethodPut, "/api/v1/drafts/"+d.Token, gin.H{"assignments": assignments})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = app.do(t, http.MethodPost, "/api/v1/drafts/"+d.Token+"/confirm", nil)
	assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())
}

func TestConfirmValidatesSupplierCUIT(t *testing.T) {
	app := newTestApp(t)
	seedCatalog(t, app)

	w := app.upload(t)
	d := decodeDraft(t, w)

	bad := "30-71234567-8" // check digit should be 1
	d.Mapped.Header.VendorTaxID = &bad
	w = app.do(t, http.MethodPut, "/api/v1/drafts/"+d.Token, gin.H{"mapped": d.Mapped})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = app.do(t, http.MethodPost, "/api/v1/drafts/"+d.Token+"/confirm", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code, w.Body.String())
}

func TestDraftAdvisoriesRefreshOnRead(t *testing.T) {
	app := newTestApp(t)
	seedCatalog(t, app)

	w := app.upload(t)
	first := decodeDraft(t, w)
	w = app.upload(t)
	second := decodeDraft(t, w)
	require.NotNil(t, second.Resolution)
	assert.False(t, second.Resolution.Duplicate)

	// Confirming the first upload turns the second into a duplicate; a
	// later read of the second draft must pick that up.
	app.do(t, http.MethodGet, "/api/v1/drafts/"+first.Token, nil)
	w = app.do(t, http.MethodPost, "/api/v1/drafts/"+first.Token+"/confirm", nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = app.do(t, http.MethodGet, "/api/v1/drafts/"+second.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	second = decodeDraft(t, w)
	require.NotNil(t, second.Resolution)
	assert.True(t, second.Resolution.Duplicate)
	require.NotNil(t, second.Resolution.Supplier)
}

func TestManualAssignmentValidated(t *testing.T) {
	app := newTestApp(t)

	w := app.upload(t)
	d := decodeDraft(t, w)

	w = app.do(t, http.MethodPut, "/api/v1/drafts/"+d.Token, gin.H{
		"assignments": gin.H{"0": gin.H{"product_id": 9999, "manual": true}},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	product := &models.Product{Name: "Aceite Natura 1L", Active: true}
	require.NoError(t, app.products.Create(product))

	w = app.do(t, http.MethodPut, "/api/v1/drafts/"+d.Token, gin.H{
		"assignments": gin.H{"0": gin.H{"product_id": product.ID, "manual": true}},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	d = decodeDraft(t, w)
	assert.Equal(t, "Aceite Natura 1L", d.Assignments[0].ProductName)
}

func TestRejectDraft(t *testing.T) {
	app := newTestApp(t)

	w := app.upload(t)
	d := decodeDraft(t, w)

	w = app.do(t, http.MethodPost, "/api/v1/drafts/"+d.Token+"/reject", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = app.do(t, http.MethodPost, "/api/v1/drafts/"+d.Token+"/confirm", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestUploadRejectsBadRequests(t *testing.T) {
	app := newTestApp(t)

	// No file field.
	w := app.do(t, http.MethodPost, "/api/v1/invoices/upload", gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Wrong content type.
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", `form-data; name="file"; filename="notas.txt"`)
	header.Set("Content-Type", "text/plain")
	part, err := mw.CreatePart(header)
	require.NoError(t, err)
	_, _ = part.Write([]byte("not an invoice"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/invoices/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	app.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

func TestInvoiceEndpoints(t *testing.T) {
	app := newTestApp(t)
	seedCatalog(t, app)

	w := app.upload(t)
	d := decodeDraft(t, w)
	app.do(t, http.MethodGet, "/api/v1/drafts/"+d.Token, nil)
	w = app.do(t, http.MethodPost, "/api/v1/drafts/"+d.Token+"/confirm", nil)
	require.Equal(t, http.StatusCreated, w.Code)

	// Listing.
	w = app.do(t, http.MethodGet, "/api/v1/invoices?supplier=rio", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Invoices []models.Invoice `json:"invoices"`
		Total    int              `json:"total"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Equal(t, 1, list.Total)
	id := list.Invoices[0].ID

	// Filter that misses.
	w = app.do(t, http.MethodGet, "/api/v1/invoices?number=777777", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Zero(t, list.Total)

	// Detail.
	w = app.do(t, http.MethodGet, fmt.Sprintf("/api/v1/invoices/%d", id), nil)
	require.Equal(t, http.StatusOK, w.Code)
	var inv models.Invoice
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &inv))
	assert.Len(t, inv.Items, 5)

	w = app.do(t, http.MethodGet, "/api/v1/invoices/424242", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	// Signed original link round-trips through the file endpoint.
	w = app.do(t, http.MethodGet, fmt.Sprintf("/api/v1/invoices/%d/original", id), nil)
	require.Equal(t, http.StatusOK, w.Code)
	var signed struct {
		URL string `json:"url"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &signed))
	require.NotEmpty(t, signed.URL)

	w = app.do(t, http.MethodGet, signed.URL, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))

	// Tampered signature is refused.
	w = app.do(t, http.MethodGet, signed.URL+"tampered", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	// Export.
	w = app.do(t, http.MethodGet, "/api/v1/invoices/export", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), ".xlsx")
	assert.NotEmpty(t, w.Body.Bytes())
}

func TestProductEndpoints(t *testing.T) {
	app := newTestApp(t)

	w := app.do(t, http.MethodPost, "/api/v1/products", gin.H{
		"name": "Harina Pureza 000", "brand": "Pureza", "category": "Almacén",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var product models.Product
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &product))
	assert.True(t, product.Active, "products default to active")

	// Missing name.
	w = app.do(t, http.MethodPost, "/api/v1/products", gin.H{"brand": "X"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = app.do(t, http.MethodPut, fmt.Sprintf("/api/v1/products/%d", product.ID), gin.H{
		"name": "Harina Pureza 0000", "brand": "Pureza",
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = app.do(t, http.MethodPut, "/api/v1/products/9999", gin.H{"name": "X"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = app.do(t, http.MethodGet, "/api/v1/products?active=true", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Products []models.Product `json:"products"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list.Products, 1)
	assert.Equal(t, "Harina Pureza 0000", list.Products[0].Name)

	// No embedder configured in this setup.
	w = app.do(t, http.MethodPost, "/api/v1/products/embeddings/rebuild", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = app.do(t, http.MethodDelete, fmt.Sprintf("/api/v1/products/%d", product.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestLookupEndpoints(t *testing.T) {
	app := newTestApp(t)

	w := app.do(t, http.MethodGet, "/api/v1/document-types", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Factura B")

	w = app.do(t, http.MethodGet, "/api/v1/suppliers", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = app.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "healthy")
}
