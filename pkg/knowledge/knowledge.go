package knowledge

import (
	"context"
)

const (
	// ProviderLocal file-backed in-process index
	ProviderLocal = "local"
	// ProviderMilvus Milvus/Zilliz vector database
	ProviderMilvus = "milvus"
)

var DefaultProvider = ProviderLocal

// Item one indexed document
type Item struct {
	// ID stable identifier (e.g. arXiv id)
	ID string `json:"id"`
	// Title document title
	Title string `json:"title"`
	// URL canonical location
	URL string `json:"url"`
	// Content indexed text (abstract or snippet)
	Content string `json:"content"`
	// Metadata optional extra fields
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// SearchResult similarity search result
type SearchResult struct {
	Item
	// Score cosine similarity in [0,1], higher is closer
	Score float64 `json:"score"`
}

// SearchOptions similarity search options
type SearchOptions struct {
	// TopK returns top K most similar items
	TopK int `json:"top_k"`
	// Threshold minimum similarity, results below it are filtered
	Threshold float64 `json:"threshold,omitempty"`
}

// Index unified vector index interface.
// Embeddings are produced by the caller; the index only stores and
// compares vectors.
type Index interface {
	// Provider returns the index provider name
	Provider() string

	// Add stores items with their embedding vectors. Items whose ID is
	// already present are skipped.
	Add(ctx context.Context, items []Item, vectors [][]float32) error

	// Search returns items most similar to the query vector, sorted by
	// descending score and filtered by options.Threshold.
	Search(ctx context.Context, vector []float32, options SearchOptions) ([]SearchResult, error)

	// Count returns the number of indexed items.
	Count(ctx context.Context) (int, error)
}
