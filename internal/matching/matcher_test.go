package matching

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/barcontrol/barcontrol/internal/models"
	"github.com/barcontrol/barcontrol/internal/repository"
)

type stubLookup struct {
	products []models.Product
}

func (s *stubLookup) FindByCode(code string) (*models.Product, error) {
	for i := range s.products {
		p := s.products[i]
		if strings.EqualFold(p.InternalCode, code) || strings.EqualFold(p.SupplierCode, code) {
			return &p, nil
		}
	}
	return nil, nil
}

func (s *stubLookup) FindByName(name string) (*models.Product, error) {
	for i := range s.products {
		p := s.products[i]
		if strings.EqualFold(p.Name, name) {
			return &p, nil
		}
	}
	return nil, nil
}

// stubEmbedder maps known phrases to fixed unit vectors.
type stubEmbedder struct {
	vectors map[string][]float32
	calls   int
	fail    bool
}

func (e *stubEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	e.calls++
	if e.fail {
		return nil, fmt.Errorf("embedding backend down")
	}
	if v, ok := e.vectors[text]; ok {
		return v, nil
	}
	return []float32{0, 0, 1}, nil
}

func (e *stubEmbedder) ModelID() string { return "stub-embedding-3" }
func (e *stubEmbedder) Dimensions() int { return 3 }

func catalog() *stubLookup {
	return &stubLookup{products: []models.Product{
		{ID: 1, Name: "Aceite Natura 1L", InternalCode: "AC-100", Active: true},
		{ID: 2, Name: "Yerba Playadito 1kg", SupplierCode: "YP-001", Active: true},
	}}
}

func snapshotFor(products []models.Product, vectors [][]float32) *Snapshot {
	entries := make([]repository.ProductVector, len(products))
	for i := range products {
		entries[i] = repository.ProductVector{Product: products[i], Vector: vectors[i]}
	}
	return &Snapshot{entries: entries}
}

func TestMatchExactNameShortCircuits(t *testing.T) {
	emb := &stubEmbedder{}
	m := NewMatcher(catalog(), emb, 0.75, zap.NewNop())

	match, err := m.Match(context.Background(), &Snapshot{}, "Aceite Natura 1L", "")
	require.NoError(t, err)
	require.NotNil(t, match)
	assert.Equal(t, int64(1), match.Product.ID)
	assert.Equal(t, MethodName, match.Method)
	assert.Equal(t, 1.0, match.Score)
	assert.Zero(t, emb.calls, "exact match must not compute embeddings")
}

func TestMatchByCode(t *testing.T) {
	m := NewMatcher(catalog(), &stubEmbedder{}, 0.75, zap.NewNop())

	tests := []struct {
		name string
		code string
		want int64
	}{
		{"internal code", "AC-100", 1},
		{"internal code case-insensitive", "ac-100", 1},
		{"supplier code", "yp-001", 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			match, err := m.Match(context.Background(), &Snapshot{}, "anything at all", tt.code)
			require.NoError(t, err)
			require.NotNil(t, match)
			assert.Equal(t, tt.want, match.Product.ID)
			assert.Equal(t, MethodCode, match.Method)
		})
	}
}

func TestMatchSemantic(t *testing.T) {
	products := catalog().products
	snap := snapshotFor(products, [][]float32{{1, 0, 0}, {0, 1, 0}})

	emb := &stubEmbedder{vectors: map[string][]float32{
		// Normalized query text close to product 2's vector.
		"yerba mate playadito paquete 1kg": {0.1, 0.99, 0},
	}}
	m := NewMatcher(catalog(), emb, 0.75, zap.NewNop())

	match, err := m.Match(context.Background(), snap, "Yerba Mate Playadito paquete 1kg", "")
	require.NoError(t, err)
	require.NotNil(t, match)
	assert.Equal(t, int64(2), match.Product.ID)
	assert.Equal(t, MethodSemantic, match.Method)
	assert.Greater(t, match.Score, 0.75)
}

func TestMatchBelowThresholdReturnsNil(t *testing.T) {
	snap := snapshotFor(catalog().products, [][]float32{{1, 0, 0}, {0, 1, 0}})
	emb := &stubEmbedder{} // unknown text embeds orthogonally
	m := NewMatcher(catalog(), emb, 0.75, zap.NewNop())

	match, err := m.Match(context.Background(), snap, "Destapador de pared", "")
	require.NoError(t, err)
	assert.Nil(t, match)
}

func TestMatchDegradesWithoutEmbedder(t *testing.T) {
	m := NewMatcher(catalog(), nil, 0.75, zap.NewNop())

	match, err := m.Match(context.Background(), nil, "Destapador de pared", "")
	require.NoError(t, err)
	assert.Nil(t, match)

	// Exact steps still work.
	match, err = m.Match(context.Background(), nil, "Aceite Natura 1L", "")
	require.NoError(t, err)
	require.NotNil(t, match)
}

func TestMatchDegradesOnEmbedderFailure(t *testing.T) {
	snap := snapshotFor(catalog().products, [][]float32{{1, 0, 0}, {0, 1, 0}})
	m := NewMatcher(catalog(), &stubEmbedder{fail: true}, 0.75, zap.NewNop())

	match, err := m.Match(context.Background(), snap, "Galletitas surtidas", "")
	require.NoError(t, err, "embedder failure must degrade, not abort")
	assert.Nil(t, match)
}

func TestMatchEmptyInputs(t *testing.T) {
	m := NewMatcher(catalog(), nil, 0.75, zap.NewNop())
	match, err := m.Match(context.Background(), nil, "", "")
	require.NoError(t, err)
	assert.Nil(t, match)
}

func TestCosine(t *testing.T) {
	assert.InDelta(t, 1.0, cosine([]float32{1, 2, 3}, []float32{1, 2, 3}), 1e-9)
	assert.InDelta(t, 0.0, cosine([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.Equal(t, 0.0, cosine([]float32{1, 0}, []float32{1, 0, 0}), "length mismatch scores zero")
	assert.Equal(t, 0.0, cosine(nil, nil))
}

func TestSnapshotBest(t *testing.T) {
	snap := snapshotFor(catalog().products, [][]float32{{1, 0, 0}, {0, 1, 0}})

	best, score := snap.Best([]float32{0.9, 0.1, 0})
	require.NotNil(t, best)
	assert.Equal(t, int64(1), best.ID)
	assert.Greater(t, score, 0.9)

	empty := &Snapshot{}
	best, _ = empty.Best([]float32{1})
	assert.Nil(t, best)
	assert.True(t, empty.Empty())
}
