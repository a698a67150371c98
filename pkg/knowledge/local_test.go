package knowledge

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTempIndex(t *testing.T) (Index, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "index.json")
	idx, err := NewLocalIndex(path)
	require.NoError(t, err)
	return idx, path
}

func seedItems() ([]Item, [][]float32) {
	items := []Item{
		{ID: "a", Title: "Paper A", Content: "about transformers"},
		{ID: "b", Title: "Paper B", Content: "about databases"},
		{ID: "c", Title: "Paper C", Content: "about robotics"},
	}
	vectors := [][]float32{
		{1, 0, 0},
		{0, 1, 0},
		{0.9, 0.1, 0},
	}
	return items, vectors
}

func TestLocalIndexAddAndSearch(t *testing.T) {
	idx, _ := newTempIndex(t)
	ctx := context.Background()

	items, vectors := seedItems()
	require.NoError(t, idx.Add(ctx, items, vectors))

	results, err := idx.Search(ctx, []float32{1, 0, 0}, SearchOptions{TopK: 2})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "a", results[0].ID)
	assert.InDelta(t, 1.0, results[0].Score, 1e-6)
	assert.Equal(t, "c", results[1].ID)
	assert.Greater(t, results[0].Score, results[1].Score)
}

func TestLocalIndexThresholdFilters(t *testing.T) {
	idx, _ := newTempIndex(t)
	ctx := context.Background()

	items, vectors := seedItems()
	require.NoError(t, idx.Add(ctx, items, vectors))

	results, err := idx.Search(ctx, []float32{1, 0, 0}, SearchOptions{TopK: 10, Threshold: 0.95})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a", results[0].ID)
}

func TestLocalIndexDeduplicatesByID(t *testing.T) {
	idx, _ := newTempIndex(t)
	ctx := context.Background()

	items, vectors := seedItems()
	require.NoError(t, idx.Add(ctx, items, vectors))
	require.NoError(t, idx.Add(ctx, items, vectors))

	count, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestLocalIndexPersistsAcrossReopen(t *testing.T) {
	idx, path := newTempIndex(t)
	ctx := context.Background()

	items, vectors := seedItems()
	require.NoError(t, idx.Add(ctx, items, vectors))

	reopened, err := NewLocalIndex(path)
	require.NoError(t, err)

	count, err := reopened.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	results, err := reopened.Search(ctx, []float32{0, 1, 0}, SearchOptions{TopK: 1})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "b", results[0].ID)
}

func TestLocalIndexCorruptFileStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	idx, err := NewLocalIndex(path)
	require.NoError(t, err)

	count, err := idx.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestLocalIndexEmptySearch(t *testing.T) {
	idx, _ := newTempIndex(t)

	results, err := idx.Search(context.Background(), []float32{1, 0, 0}, SearchOptions{TopK: 5})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestLocalIndexLengthMismatch(t *testing.T) {
	idx, _ := newTempIndex(t)

	err := idx.Add(context.Background(), []Item{{ID: "x"}}, nil)
	assert.Error(t, err)
}

func TestNormalizeUnitLength(t *testing.T) {
	out := normalize([]float32{3, 4})
	assert.InDelta(t, 0.6, float64(out[0]), 1e-6)
	assert.InDelta(t, 0.8, float64(out[1]), 1e-6)
	assert.InDelta(t, 1.0, dot(out, out), 1e-6)
}

func TestFactoryCachesIndexes(t *testing.T) {
	factory := NewFactory(FactoryConfig{
		IndexPath: filepath.Join(t.TempDir(), "index.json"),
	})
	ctx := context.Background()

	first, err := factory.GetIndex(ctx, ProviderLocal)
	require.NoError(t, err)
	second, err := factory.GetIndex(ctx, ProviderLocal)
	require.NoError(t, err)
	assert.Same(t, first, second)

	// 空 provider 走默认
	third, err := factory.GetIndex(ctx, "")
	require.NoError(t, err)
	assert.Same(t, first, third)

	_, err = factory.GetIndex(ctx, "bogus")
	assert.Error(t, err)
}
