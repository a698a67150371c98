package llm

import "context"

// Provider 统一的 LLM 提供者接口
// Agent 只依赖这个接口，便于在测试中替换为 fake 实现
type Provider interface {
	// Complete 执行一次非流式补全，返回生成的文本
	Complete(ctx context.Context, prompt string) (string, error)

	// CompleteStream 执行流式补全，segment 为增量文本
	CompleteStream(ctx context.Context, prompt string, callback func(segment string, done bool) error) (string, error)
}

// Embedder 文本向量化接口
type Embedder interface {
	// EmbedTexts 批量向量化文本
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedQuery 向量化单条查询
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Usage 使用统计信息（统一格式）
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}
