package embedding

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/barcontrol/barcontrol/internal/models"
	"github.com/barcontrol/barcontrol/internal/repository"
	"github.com/barcontrol/barcontrol/internal/textnorm"
)

// Service maintains one description vector per active catalog product.
type Service struct {
	embeddings *repository.EmbeddingRepository
	products   *repository.ProductRepository
	embedder   Embedder
	logger     *zap.Logger
}

// NewService creates an embedding maintenance service.
func NewService(embeddings *repository.EmbeddingRepository, products *repository.ProductRepository, embedder Embedder, logger *zap.Logger) *Service {
	return &Service{
		embeddings: embeddings,
		products:   products,
		embedder:   embedder,
		logger:     logger,
	}
}

// EnsureEmbedding computes and upserts the vector for one product. The
// (product, vector) pair is replaced in a single atomic upsert so matcher
// reads never observe a half-updated row.
func (s *Service) EnsureEmbedding(ctx context.Context, product *models.Product) error {
	if s.embedder == nil {
		return fmt.Errorf("no embedder configured")
	}

	text := textnorm.Normalize(product.EmbeddingText())
	vector, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return fmt.Errorf("failed to embed product %d: %w", product.ID, err)
	}

	return s.embeddings.Upsert(&models.ProductEmbedding{
		ProductID:  product.ID,
		Model:      s.embedder.ModelID(),
		Dimensions: len(vector),
		Vector:     vector,
	})
}

// ProductWritten is the post-write hook invoked synchronously by the
// catalog write path. The recompute is best-effort: a failure is logged
// and leaves the product without a current vector, it never propagates to
// the product write. Vectors are only recomputed when the embedding text
// actually changed (or on create, when prev is nil).
func (s *Service) ProductWritten(ctx context.Context, product, prev *models.Product) {
	if !product.Active {
		return
	}
	if prev != nil && prev.EmbeddingText() == product.EmbeddingText() {
		return
	}

	if err := s.EnsureEmbedding(ctx, product); err != nil {
		s.logger.Warn("Product embedding recompute failed, will retry on next write or rebuild",
			zap.Int64("product_id", product.ID),
			zap.String("name", product.Name),
			zap.Error(err))
		return
	}
	s.logger.Info("Product embedding updated",
		zap.Int64("product_id", product.ID),
		zap.String("model", s.embedder.ModelID()))
}

// RebuildAll unconditionally recomputes vectors for every active product,
// overwriting existing ones. Used for cold start or after a model swap.
// Inactive products are untouched. Returns the number of rebuilt vectors.
func (s *Service) RebuildAll(ctx context.Context) (int, error) {
	products, err := s.products.List(true)
	if err != nil {
		return 0, fmt.Errorf("failed to list active products: %w", err)
	}

	rebuilt := 0
	for i := range products {
		if err := s.EnsureEmbedding(ctx, &products[i]); err != nil {
			return rebuilt, err
		}
		rebuilt++
	}

	s.logger.Info("Rebuilt product embeddings",
		zap.Int("count", rebuilt),
		zap.String("model", s.embedder.ModelID()))
	return rebuilt, nil
}
