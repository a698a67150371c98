package knowledge

import (
	"context"
	"fmt"
	"sync"
)

// Factory creates and caches Index instances per provider, so repeated
// lookups with the same configuration reuse one connection.
type Factory struct {
	mu    sync.Mutex
	cache map[string]Index

	indexPath string
	milvus    MilvusConfig
}

// FactoryConfig configuration for all supported providers
type FactoryConfig struct {
	IndexPath string
	Milvus    MilvusConfig
}

// NewFactory creates an index factory
func NewFactory(cfg FactoryConfig) *Factory {
	return &Factory{
		cache:     make(map[string]Index),
		indexPath: cfg.IndexPath,
		milvus:    cfg.Milvus,
	}
}

// GetIndex returns the index for provider, creating it on first use.
// Supported providers: local, milvus.
func (f *Factory) GetIndex(ctx context.Context, provider string) (Index, error) {
	if provider == "" {
		provider = DefaultProvider
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if idx, ok := f.cache[provider]; ok {
		return idx, nil
	}

	var (
		idx Index
		err error
	)
	switch provider {
	case ProviderLocal:
		idx, err = NewLocalIndex(f.indexPath)
	case ProviderMilvus:
		idx, err = NewMilvusIndex(ctx, f.milvus)
	default:
		return nil, fmt.Errorf("unsupported vector index provider: %s", provider)
	}
	if err != nil {
		return nil, err
	}

	f.cache[provider] = idx
	return idx, nil
}
