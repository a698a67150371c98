package knowledge

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/code-100-precent/ResearchEcho/pkg/logger"
	"go.uber.org/zap"
)

// localIndex file-backed in-process vector index. Vectors are normalized
// on insert so the inner product equals cosine similarity.
type localIndex struct {
	mu      sync.RWMutex
	path    string
	items   []Item
	vectors [][]float32
	ids     map[string]struct{}
}

// indexFile on-disk layout
type indexFile struct {
	Items   []Item      `json:"items"`
	Vectors [][]float32 `json:"vectors"`
}

// NewLocalIndex opens (or creates) a file-backed index at path.
// A corrupt or missing file starts an empty index rather than failing.
func NewLocalIndex(path string) (Index, error) {
	idx := &localIndex{
		path: path,
		ids:  make(map[string]struct{}),
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating index directory: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("reading index file: %w", err)
		}
		return idx, nil
	}

	var file indexFile
	if err := json.Unmarshal(data, &file); err != nil || len(file.Items) != len(file.Vectors) {
		logger.Warn("vector index file is corrupt, starting empty", zap.String("path", path))
		return idx, nil
	}

	idx.items = file.Items
	idx.vectors = file.Vectors
	for _, item := range file.Items {
		idx.ids[item.ID] = struct{}{}
	}
	logger.Info("loaded vector index", zap.String("path", path), zap.Int("items", len(idx.items)))
	return idx, nil
}

func (l *localIndex) Provider() string {
	return ProviderLocal
}

func (l *localIndex) Add(ctx context.Context, items []Item, vectors [][]float32) error {
	if len(items) != len(vectors) {
		return fmt.Errorf("items/vectors length mismatch: %d != %d", len(items), len(vectors))
	}
	if len(items) == 0 {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	added := 0
	for i, item := range items {
		if item.ID == "" {
			continue
		}
		if _, exists := l.ids[item.ID]; exists {
			continue
		}
		l.items = append(l.items, item)
		l.vectors = append(l.vectors, normalize(vectors[i]))
		l.ids[item.ID] = struct{}{}
		added++
	}
	if added == 0 {
		return nil
	}
	return l.save()
}

func (l *localIndex) Search(ctx context.Context, vector []float32, options SearchOptions) ([]SearchResult, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if len(l.items) == 0 {
		return nil, nil
	}

	topK := options.TopK
	if topK <= 0 {
		topK = 10
	}

	query := normalize(vector)
	results := make([]SearchResult, 0, len(l.items))
	for i, vec := range l.vectors {
		score := dot(query, vec)
		if score < options.Threshold {
			continue
		}
		results = append(results, SearchResult{Item: l.items[i], Score: score})
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

func (l *localIndex) Count(ctx context.Context) (int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.items), nil
}

// save writes the index atomically: temp file then rename.
func (l *localIndex) save() error {
	data, err := json.Marshal(indexFile{Items: l.items, Vectors: l.vectors})
	if err != nil {
		return fmt.Errorf("encoding index: %w", err)
	}
	tmp := l.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing index: %w", err)
	}
	return os.Rename(tmp, l.path)
}

func normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	norm := float32(math.Sqrt(sum))
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = x / norm
	}
	return out
}

func dot(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
