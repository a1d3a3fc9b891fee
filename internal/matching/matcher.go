package matching

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/barcontrol/barcontrol/internal/embedding"
	"github.com/barcontrol/barcontrol/internal/models"
	"github.com/barcontrol/barcontrol/internal/textnorm"
)

// MatchMethod records which resolution step produced a match.
type MatchMethod string

const (
	MethodCode     MatchMethod = "code"
	MethodName     MatchMethod = "name"
	MethodSemantic MatchMethod = "semantic"
)

// Match is a resolved catalog product with the score and step that found it.
// Exact matches carry score 1.
type Match struct {
	Product models.Product `json:"product"`
	Score   float64        `json:"score"`
	Method  MatchMethod    `json:"method"`
}

// ProductLookup is the slice of the catalog repository the matcher needs.
type ProductLookup interface {
	FindByCode(code string) (*models.Product, error)
	FindByName(name string) (*models.Product, error)
}

// Matcher resolves a line description (and optional external code) to a
// catalog product. Resolution order: exact code, exact name, then semantic
// similarity against the snapshot; the first hit wins. Matching is
// read-only: unmatched lines are the caller's to surface for manual
// assignment.
type Matcher struct {
	products  ProductLookup
	embedder  embedding.Embedder // nil disables semantic matching
	threshold float64
	logger    *zap.Logger
}

// NewMatcher creates a matcher. A nil embedder degrades matching to the
// exact steps only.
func NewMatcher(products ProductLookup, embedder embedding.Embedder, threshold float64, logger *zap.Logger) *Matcher {
	return &Matcher{
		products:  products,
		embedder:  embedder,
		threshold: threshold,
		logger:    logger,
	}
}

// Match resolves one line against the catalog using the given snapshot.
// Returns nil (with no error) when nothing matches: an unavailable
// embedding backend or an empty snapshot downgrades to exact-only matching
// with a warning, never an error.
func (m *Matcher) Match(ctx context.Context, snap *Snapshot, description, code string) (*Match, error) {
	if code != "" {
		product, err := m.products.FindByCode(code)
		if err != nil {
			return nil, fmt.Errorf("failed code lookup: %w", err)
		}
		if product != nil {
			return &Match{Product: *product, Score: 1, Method: MethodCode}, nil
		}
	}

	if description == "" {
		return nil, nil
	}

	product, err := m.products.FindByName(description)
	if err != nil {
		return nil, fmt.Errorf("failed name lookup: %w", err)
	}
	if product != nil {
		return &Match{Product: *product, Score: 1, Method: MethodName}, nil
	}

	if m.embedder == nil {
		m.logger.Warn("Semantic matching disabled, no embedder configured",
			zap.String("description", description))
		return nil, nil
	}
	if snap.Empty() {
		m.logger.Warn("Semantic matching skipped, no product vectors available",
			zap.String("description", description))
		return nil, nil
	}

	query, err := m.embedder.Embed(ctx, textnorm.Normalize(description))
	if err != nil {
		// Degrade, don't abort: the invoice still flows to manual review.
		m.logger.Warn("Embedding backend unavailable, falling back to exact matching",
			zap.String("description", description), zap.Error(err))
		return nil, nil
	}

	best, score := snap.Best(query)
	if best == nil || score < m.threshold {
		m.logger.Debug("No semantic match above threshold",
			zap.String("description", description),
			zap.Float64("best_score", score),
			zap.Float64("threshold", m.threshold))
		return nil, nil
	}

	m.logger.Info("Semantic product match",
		zap.String("description", description),
		zap.String("product", best.Name),
		zap.Float64("score", score))
	return &Match{Product: *best, Score: score, Method: MethodSemantic}, nil
}
