// Package web exposes the invoice ingestion flow over HTTP.
package web

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/barcontrol/barcontrol/internal/draft"
	"github.com/barcontrol/barcontrol/internal/embedding"
	"github.com/barcontrol/barcontrol/internal/export"
	"github.com/barcontrol/barcontrol/internal/extraction"
	"github.com/barcontrol/barcontrol/internal/invoice"
	"github.com/barcontrol/barcontrol/internal/matching"
	"github.com/barcontrol/barcontrol/internal/repository"
	"github.com/barcontrol/barcontrol/internal/storage"
)

// Config holds request-handling limits.
type Config struct {
	MaxUploadSize     int64
	ExtractionTimeout time.Duration
}

// Deps bundles everything the handlers need.
type Deps struct {
	Provider      extraction.Provider
	Matcher       *matching.Matcher
	Embeddings    *repository.EmbeddingRepository
	EmbedService  *embedding.Service // nil when no embedder is configured
	Drafts        *draft.Store
	Resolver      *invoice.Resolver
	Assembler     *invoice.Assembler
	Invoices      *repository.InvoiceRepository
	Products      *repository.ProductRepository
	Suppliers     *repository.SupplierRepository
	DocumentTypes *repository.DocumentTypeRepository
	Objects       storage.ObjectStore
	Signer        *storage.URLSigner
	Exporter      *export.ExcelExporter
	Logger        *zap.Logger
}

// Server wires the HTTP surface.
type Server struct {
	cfg    Config
	deps   Deps
	logger *zap.Logger
}

// NewServer creates a server.
func NewServer(cfg Config, deps Deps) *Server {
	return &Server{
		cfg:    cfg,
		deps:   deps,
		logger: deps.Logger,
	}
}

// Router builds the gin engine with all routes attached.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(loggingMiddleware(s.logger))
	router.Use(corsMiddleware())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "barcontrol",
			"time":    time.Now().Format(time.RFC3339),
		})
	})

	router.GET("/files/*key", s.downloadFile)

	api := router.Group("/api/v1")
	{
		api.POST("/invoices/upload", s.uploadInvoice)

		api.GET("/drafts/:token", s.getDraft)
		api.PUT("/drafts/:token", s.updateDraft)
		api.POST("/drafts/:token/confirm", s.confirmDraft)
		api.POST("/drafts/:token/reject", s.rejectDraft)

		api.GET("/invoices", s.listInvoices)
		api.GET("/invoices/export", s.exportInvoices)
		api.GET("/invoices/:id", s.getInvoice)
		api.GET("/invoices/:id/original", s.invoiceOriginal)

		api.GET("/products", s.listProducts)
		api.POST("/products", s.createProduct)
		api.PUT("/products/:id", s.updateProduct)
		api.DELETE("/products/:id", s.deleteProduct)
		api.POST("/products/embeddings/rebuild", s.rebuildEmbeddings)

		api.GET("/suppliers", s.listSuppliers)
		api.GET("/document-types", s.listDocumentTypes)
	}

	return router
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)

		logger.Info("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("query", query),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", latency),
			zap.String("ip", c.ClientIP()),
		)
	}
}

// corsMiddleware adds CORS headers
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
