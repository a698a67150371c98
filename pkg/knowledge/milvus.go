package knowledge

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
)

// milvusIndex Milvus/Zilliz 向量数据库实现
type milvusIndex struct {
	client     client.Client
	collection string
	dimension  int
}

// MilvusConfig Milvus 连接配置
type MilvusConfig struct {
	Address    string // 服务器地址（默认 localhost:19530）
	Username   string
	Password   string
	Collection string // 集合名称（必需）
	Dimension  int    // 向量维度（默认 1536）
}

// NewMilvusIndex 创建 Milvus 索引实例，集合不存在时自动创建
func NewMilvusIndex(ctx context.Context, cfg MilvusConfig) (Index, error) {
	if cfg.Collection == "" {
		return nil, fmt.Errorf("collection name is required")
	}
	if cfg.Address == "" {
		cfg.Address = "localhost:19530"
	}
	if cfg.Dimension == 0 {
		cfg.Dimension = 1536
	}

	milvusClient, err := client.NewClient(ctx, client.Config{
		Address:  cfg.Address,
		Username: cfg.Username,
		Password: cfg.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create milvus client: %w", err)
	}

	idx := &milvusIndex{
		client:     milvusClient,
		collection: cfg.Collection,
		dimension:  cfg.Dimension,
	}
	if err := idx.ensureCollection(ctx); err != nil {
		return nil, err
	}
	return idx, nil
}

func (m *milvusIndex) Provider() string {
	return ProviderMilvus
}

func (m *milvusIndex) ensureCollection(ctx context.Context) error {
	exists, err := m.client.HasCollection(ctx, m.collection)
	if err != nil {
		return fmt.Errorf("checking collection: %w", err)
	}
	if exists {
		return m.client.LoadCollection(ctx, m.collection, false)
	}

	schema := entity.NewSchema().
		WithName(m.collection).
		WithField(entity.NewField().WithName("id").WithDataType(entity.FieldTypeVarChar).WithMaxLength(256).WithIsPrimaryKey(true)).
		WithField(entity.NewField().WithName("title").WithDataType(entity.FieldTypeVarChar).WithMaxLength(1024)).
		WithField(entity.NewField().WithName("url").WithDataType(entity.FieldTypeVarChar).WithMaxLength(1024)).
		WithField(entity.NewField().WithName("content").WithDataType(entity.FieldTypeVarChar).WithMaxLength(65535)).
		WithField(entity.NewField().WithName("metadata").WithDataType(entity.FieldTypeVarChar).WithMaxLength(65535)).
		WithField(entity.NewField().WithName("embedding").WithDataType(entity.FieldTypeFloatVector).WithDim(int64(m.dimension)))

	if err := m.client.CreateCollection(ctx, schema, 1); err != nil {
		return fmt.Errorf("creating collection: %w", err)
	}

	index, err := entity.NewIndexIvfFlat(entity.IP, 128)
	if err != nil {
		return fmt.Errorf("building index description: %w", err)
	}
	if err := m.client.CreateIndex(ctx, m.collection, "embedding", index, false); err != nil {
		return fmt.Errorf("creating vector index: %w", err)
	}
	return m.client.LoadCollection(ctx, m.collection, false)
}

func (m *milvusIndex) Add(ctx context.Context, items []Item, vectors [][]float32) error {
	if len(items) != len(vectors) {
		return fmt.Errorf("items/vectors length mismatch: %d != %d", len(items), len(vectors))
	}
	if len(items) == 0 {
		return nil
	}

	ids := make([]string, len(items))
	titles := make([]string, len(items))
	urls := make([]string, len(items))
	contents := make([]string, len(items))
	metas := make([]string, len(items))
	embeddings := make([][]float32, len(items))
	for i, item := range items {
		ids[i] = item.ID
		titles[i] = item.Title
		urls[i] = item.URL
		contents[i] = item.Content
		embeddings[i] = normalize(vectors[i])
		if item.Metadata != nil {
			if raw, err := json.Marshal(item.Metadata); err == nil {
				metas[i] = string(raw)
			}
		}
	}

	_, err := m.client.Upsert(ctx, m.collection, "",
		entity.NewColumnVarChar("id", ids),
		entity.NewColumnVarChar("title", titles),
		entity.NewColumnVarChar("url", urls),
		entity.NewColumnVarChar("content", contents),
		entity.NewColumnVarChar("metadata", metas),
		entity.NewColumnFloatVector("embedding", m.dimension, embeddings),
	)
	if err != nil {
		return fmt.Errorf("milvus upsert failed: %w", err)
	}
	return nil
}

func (m *milvusIndex) Search(ctx context.Context, vector []float32, options SearchOptions) ([]SearchResult, error) {
	topK := options.TopK
	if topK <= 0 {
		topK = 10
	}

	sp, err := entity.NewIndexIvfFlatSearchParam(16)
	if err != nil {
		return nil, fmt.Errorf("building search params: %w", err)
	}

	searchResults, err := m.client.Search(ctx, m.collection, nil, "",
		[]string{"id", "title", "url", "content", "metadata"},
		[]entity.Vector{entity.FloatVector(normalize(vector))},
		"embedding", entity.IP, topK, sp,
	)
	if err != nil {
		return nil, fmt.Errorf("milvus search failed: %w", err)
	}

	var results []SearchResult
	for _, sr := range searchResults {
		for i := 0; i < sr.ResultCount; i++ {
			item := Item{
				ID:      columnString(sr.Fields.GetColumn("id"), i),
				Title:   columnString(sr.Fields.GetColumn("title"), i),
				URL:     columnString(sr.Fields.GetColumn("url"), i),
				Content: columnString(sr.Fields.GetColumn("content"), i),
			}
			if meta := columnString(sr.Fields.GetColumn("metadata"), i); meta != "" {
				var parsed map[string]interface{}
				if err := json.Unmarshal([]byte(meta), &parsed); err == nil {
					item.Metadata = parsed
				}
			}

			// IP over normalized vectors is cosine similarity
			score := 0.0
			if i < len(sr.Scores) {
				score = float64(sr.Scores[i])
			}
			if score < options.Threshold {
				continue
			}
			results = append(results, SearchResult{Item: item, Score: score})
		}
	}
	return results, nil
}

func (m *milvusIndex) Count(ctx context.Context) (int, error) {
	stats, err := m.client.GetCollectionStatistics(ctx, m.collection)
	if err != nil {
		return 0, fmt.Errorf("milvus statistics failed: %w", err)
	}
	count, err := strconv.Atoi(stats["row_count"])
	if err != nil {
		return 0, fmt.Errorf("parsing row_count: %w", err)
	}
	return count, nil
}

func columnString(col entity.Column, i int) string {
	if col == nil {
		return ""
	}
	s, err := col.GetAsString(i)
	if err != nil {
		return ""
	}
	return s
}
