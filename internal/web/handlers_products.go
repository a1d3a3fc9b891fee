package web

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/barcontrol/barcontrol/internal/models"
)

type productRequest struct {
	Name         string `json:"name" binding:"required"`
	InternalCode string `json:"internal_code"`
	SupplierCode string `json:"supplier_code"`
	Barcode      string `json:"barcode"`
	Category     string `json:"category"`
	Brand        string `json:"brand"`
	BaseUnit     string `json:"base_unit"`
	Active       *bool  `json:"active"`
}

func (r *productRequest) apply(p *models.Product) {
	p.Name = r.Name
	p.InternalCode = r.InternalCode
	p.SupplierCode = r.SupplierCode
	p.Barcode = r.Barcode
	p.Category = r.Category
	p.Brand = r.Brand
	p.BaseUnit = r.BaseUnit
	p.Active = r.Active == nil || *r.Active
}

// listProducts serves the catalog; ?active=true narrows to active entries.
func (s *Server) listProducts(c *gin.Context) {
	activeOnly := c.Query("active") == "true"
	products, err := s.deps.Products.List(activeOnly)
	if err != nil {
		s.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"products": products})
}

// createProduct adds a catalog entry and refreshes its vector.
func (s *Server) createProduct(c *gin.Context) {
	var req productRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}

	var product models.Product
	req.apply(&product)
	if err := s.deps.Products.Create(&product); err != nil {
		s.handleError(c, err)
		return
	}

	if s.deps.EmbedService != nil {
		s.deps.EmbedService.ProductWritten(c.Request.Context(), &product, nil)
	}
	c.JSON(http.StatusCreated, product)
}

// updateProduct rewrites a catalog entry; the vector is recomputed only
// when the embedded text actually changed.
func (s *Server) updateProduct(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid product id"})
		return
	}

	var req productRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}

	prev, err := s.deps.Products.GetByID(id)
	if err != nil {
		s.handleError(c, err)
		return
	}
	if prev == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "product not found"})
		return
	}

	product := *prev
	req.apply(&product)
	if err := s.deps.Products.Update(&product); err != nil {
		s.handleError(c, err)
		return
	}

	if s.deps.EmbedService != nil {
		s.deps.EmbedService.ProductWritten(c.Request.Context(), &product, prev)
	}
	c.JSON(http.StatusOK, product)
}

// deleteProduct removes a catalog entry; the FK cascade drops its vector.
func (s *Server) deleteProduct(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid product id"})
		return
	}
	if err := s.deps.Products.Delete(id); err != nil {
		s.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

// rebuildEmbeddings recomputes every active product vector.
func (s *Server) rebuildEmbeddings(c *gin.Context) {
	if s.deps.EmbedService == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no embedding backend configured"})
		return
	}
	count, err := s.deps.EmbedService.RebuildAll(c.Request.Context())
	if err != nil {
		s.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rebuilt": count})
}
