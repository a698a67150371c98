package agent

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/code-100-precent/ResearchEcho/pkg/arxiv"
	"github.com/code-100-precent/ResearchEcho/pkg/knowledge"
	"github.com/code-100-precent/ResearchEcho/pkg/websearch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testQuery() *StructuredQuery {
	return &StructuredQuery{
		MainTopic: "graph neural networks",
		FocusArea: "molecule property prediction",
		KeyTerms:  []string{"gnn", "molecules"},
		Summary:   "graph neural networks for molecule property prediction",
	}
}

func newTestCoordinator(academic AcademicSearcher, web websearch.Searcher, index knowledge.Index) *SearchCoordinator {
	return NewSearchCoordinator(academic, web, index, &fakeEmbedder{}, SearchOptions{
		MaxPerSource:        10,
		SourceTimeout:       2 * time.Second,
		SimilarityThreshold: 0.5,
	}, nil)
}

func TestSearchAggregatesInSourceOrder(t *testing.T) {
	academic := &fakeAcademic{papers: []arxiv.Paper{
		{Title: "GNN paper", URL: "https://arxiv.org/abs/1", Abstract: "about gnns", Score: 1.0},
	}}
	web := &fakeWeb{results: []websearch.Result{
		{Title: "GNN blog", URL: "https://example.com", Snippet: "a blog"},
	}}
	index := &fakeIndex{matches: []knowledge.SearchResult{
		{Item: knowledge.Item{Title: "Indexed GNN", Content: "indexed"}, Score: 0.9},
	}}

	items, sources := newTestCoordinator(academic, web, index).Search(context.Background(), testQuery())

	require.Len(t, items, 3)
	assert.Equal(t, SourceAcademic, items[0].Source)
	assert.Equal(t, SourceWeb, items[1].Source)
	assert.Equal(t, SourceVector, items[2].Source)
	assert.Equal(t, []string{"academic", "web", "vector"}, sources)
}

func TestSearchOneSourceFailing(t *testing.T) {
	academic := &fakeAcademic{err: errors.New("arxiv down")}
	web := &fakeWeb{results: []websearch.Result{
		{Title: "web result", URL: "https://example.com"},
	}}
	index := &fakeIndex{matches: []knowledge.SearchResult{
		{Item: knowledge.Item{Title: "vector result"}, Score: 0.8},
	}}

	items, sources := newTestCoordinator(academic, web, index).Search(context.Background(), testQuery())

	require.Len(t, items, 2)
	assert.Equal(t, []string{"web", "vector"}, sources)
}

func TestSearchAllSourcesFailing(t *testing.T) {
	coordinator := newTestCoordinator(
		&fakeAcademic{err: errors.New("down")},
		&fakeWeb{err: errors.New("down")},
		&fakeIndex{err: errors.New("down")},
	)

	items, sources := coordinator.Search(context.Background(), testQuery())

	assert.Empty(t, items)
	assert.Empty(t, sources)
}

func TestSearchDisabledSourcesSkipped(t *testing.T) {
	academic := &fakeAcademic{papers: []arxiv.Paper{{Title: "only paper"}}}

	items, sources := newTestCoordinator(academic, nil, nil).Search(context.Background(), testQuery())

	require.Len(t, items, 1)
	assert.Equal(t, []string{"academic"}, sources)
}

func TestSearchVectorDeduplicatesTitles(t *testing.T) {
	index := &fakeIndex{matches: []knowledge.SearchResult{
		{Item: knowledge.Item{Title: "Same Paper"}, Score: 0.95},
		{Item: knowledge.Item{Title: "same paper"}, Score: 0.90},
		{Item: knowledge.Item{Title: "Other Paper"}, Score: 0.85},
	}}

	items, _ := newTestCoordinator(nil, nil, index).Search(context.Background(), testQuery())

	require.Len(t, items, 2)
	assert.Equal(t, "Same Paper", items[0].Title)
	assert.Equal(t, "Other Paper", items[1].Title)
}

func TestSearchWebPositionScores(t *testing.T) {
	web := &fakeWeb{results: []websearch.Result{
		{Title: "first"}, {Title: "second"}, {Title: "third"},
	}}

	items, _ := newTestCoordinator(nil, web, nil).Search(context.Background(), testQuery())

	require.Len(t, items, 3)
	assert.Equal(t, 1.0, items[0].Score)
	assert.Greater(t, items[0].Score, items[1].Score)
	assert.Greater(t, items[1].Score, items[2].Score)
}

func TestEnrichIndexAcademicOnly(t *testing.T) {
	index := &fakeIndex{}
	coordinator := newTestCoordinator(nil, nil, index)

	err := coordinator.EnrichIndex(context.Background(), []ResultItem{
		{Source: SourceAcademic, Title: "paper", URL: "https://arxiv.org/abs/1", Snippet: "abs"},
		{Source: SourceWeb, Title: "blog", URL: "https://example.com"},
	})

	require.NoError(t, err)
	require.Len(t, index.added, 1)
	assert.Equal(t, "https://arxiv.org/abs/1", index.added[0].ID)
}

func TestEnrichIndexNoIndexIsNoop(t *testing.T) {
	coordinator := newTestCoordinator(nil, nil, nil)

	assert.NoError(t, coordinator.EnrichIndex(context.Background(), []ResultItem{
		{Source: SourceAcademic, Title: "paper"},
	}))
}
