// Package matching resolves free-text invoice lines to catalog products.
package matching

import (
	"fmt"
	"math"

	"github.com/barcontrol/barcontrol/internal/models"
	"github.com/barcontrol/barcontrol/internal/repository"
)

// Snapshot is a read-only, in-memory fork of the active catalog vectors
// taken for one matching session. It does not observe writes that happen
// during its lifetime; callers load a fresh one per session.
type Snapshot struct {
	entries []repository.ProductVector
}

// LoadSnapshot reads every active product with a current vector.
func LoadSnapshot(repo *repository.EmbeddingRepository) (*Snapshot, error) {
	entries, err := repo.ListActiveVectors()
	if err != nil {
		return nil, fmt.Errorf("failed to load embedding snapshot: %w", err)
	}
	return &Snapshot{entries: entries}, nil
}

// Empty reports whether the snapshot holds no vectors, in which case
// semantic matching is unavailable.
func (s *Snapshot) Empty() bool {
	return s == nil || len(s.entries) == 0
}

// Len returns the number of products in the snapshot.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.entries)
}

// Best returns the product whose vector is most similar to the query,
// along with the cosine similarity. Nil when the snapshot is empty.
func (s *Snapshot) Best(query []float32) (*models.Product, float64) {
	if s.Empty() {
		return nil, 0
	}

	var best *models.Product
	bestScore := -1.0
	for i := range s.entries {
		score := cosine(query, s.entries[i].Vector)
		if score > bestScore {
			bestScore = score
			best = &s.entries[i].Product
		}
	}
	return best, bestScore
}

func cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
