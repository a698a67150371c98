package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/code-100-precent/ResearchEcho/pkg/arxiv"
	"github.com/code-100-precent/ResearchEcho/pkg/knowledge"
	"github.com/code-100-precent/ResearchEcho/pkg/llm"
	"github.com/code-100-precent/ResearchEcho/pkg/websearch"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	snippetLimit = 500
)

// AcademicSearcher 学术检索接口，pkg/arxiv 的 Client 是默认实现
type AcademicSearcher interface {
	Search(ctx context.Context, topic string, keyTerms []string, maxResults int) ([]arxiv.Paper, error)
}

// SearchOptions 检索协调器配置
type SearchOptions struct {
	// MaxPerSource 每个来源最多返回的条数
	MaxPerSource int

	// SourceTimeout 单个来源的超时时间
	SourceTimeout time.Duration

	// SimilarityThreshold 向量检索的相似度下限
	SimilarityThreshold float64
}

// SearchCoordinator 并发调度三个独立来源并聚合结果。
// 任何来源失败或超时只贡献零条结果，不影响整个请求。
type SearchCoordinator struct {
	academic AcademicSearcher   // 可为 nil
	web      websearch.Searcher // 可为 nil
	index    knowledge.Index    // 可为 nil
	embedder llm.Embedder       // 向量来源依赖
	opts     SearchOptions
	logger   *zap.Logger
}

// NewSearchCoordinator 创建检索协调器，nil 的来源视为未启用
func NewSearchCoordinator(
	academic AcademicSearcher,
	web websearch.Searcher,
	index knowledge.Index,
	embedder llm.Embedder,
	opts SearchOptions,
	logger *zap.Logger,
) *SearchCoordinator {
	if opts.MaxPerSource <= 0 {
		opts.MaxPerSource = 10
	}
	if opts.SourceTimeout <= 0 {
		opts.SourceTimeout = 15 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SearchCoordinator{
		academic: academic,
		web:      web,
		index:    index,
		embedder: embedder,
		opts:     opts,
		logger:   logger,
	}
}

type sourceResult struct {
	source Source
	items  []ResultItem
	err    error
}

// Search 并发检索所有启用的来源，聚合顺序固定为 academic、web、vector。
// 返回聚合结果和实际产出结果的来源名称。
func (c *SearchCoordinator) Search(ctx context.Context, query *StructuredQuery) ([]ResultItem, []string) {
	type sourceFunc struct {
		source Source
		run    func(ctx context.Context) ([]ResultItem, error)
	}

	var sources []sourceFunc
	if c.academic != nil {
		sources = append(sources, sourceFunc{SourceAcademic, func(ctx context.Context) ([]ResultItem, error) {
			return c.searchAcademic(ctx, query)
		}})
	}
	if c.web != nil {
		sources = append(sources, sourceFunc{SourceWeb, func(ctx context.Context) ([]ResultItem, error) {
			return c.searchWeb(ctx, query)
		}})
	}
	if c.index != nil && c.embedder != nil {
		sources = append(sources, sourceFunc{SourceVector, func(ctx context.Context) ([]ResultItem, error) {
			return c.searchVector(ctx, query)
		}})
	}

	results := make(chan sourceResult, len(sources))
	for _, sf := range sources {
		sf := sf
		go func() {
			sctx, cancel := context.WithTimeout(ctx, c.opts.SourceTimeout)
			defer cancel()

			items, err := sf.run(sctx)
			results <- sourceResult{source: sf.source, items: items, err: err}
		}()
	}

	bySource := make(map[Source][]ResultItem, len(sources))
	for range sources {
		r := <-results
		if r.err != nil {
			c.logger.Warn("检索来源失败，跳过",
				zap.String("source", string(r.source)),
				zap.Error(r.err),
			)
			continue
		}
		bySource[r.source] = r.items
	}

	var items []ResultItem
	var used []string
	for _, source := range []Source{SourceAcademic, SourceWeb, SourceVector} {
		got := bySource[source]
		if len(got) == 0 {
			continue
		}
		items = append(items, got...)
		used = append(used, string(source))
	}

	c.logger.Info("多来源检索完成",
		zap.Int("total", len(items)),
		zap.Strings("sources", used),
	)
	return items, used
}

// searchAcademic 通过 ArXiv 检索论文
func (c *SearchCoordinator) searchAcademic(ctx context.Context, query *StructuredQuery) ([]ResultItem, error) {
	papers, err := c.academic.Search(ctx, query.MainTopic, query.KeyTerms, c.opts.MaxPerSource)
	if err != nil {
		return nil, err
	}

	items := make([]ResultItem, 0, len(papers))
	for _, paper := range papers {
		items = append(items, ResultItem{
			Source:  SourceAcademic,
			Title:   paper.Title,
			URL:     paper.URL,
			Snippet: truncate(paper.Abstract, snippetLimit),
			Score:   paper.Score,
		})
	}
	return items, nil
}

// searchWeb 通过 MCP web_search 工具检索
func (c *SearchCoordinator) searchWeb(ctx context.Context, query *StructuredQuery) ([]ResultItem, error) {
	results, err := c.web.Search(ctx, query.Summary, c.opts.MaxPerSource)
	if err != nil {
		return nil, err
	}

	items := make([]ResultItem, 0, len(results))
	for i, r := range results {
		items = append(items, ResultItem{
			Source:  SourceWeb,
			Title:   r.Title,
			URL:     r.URL,
			Snippet: truncate(r.Snippet, snippetLimit),
			// 位置打分，与学术来源同样的策略
			Score: positionScore(i, len(results)),
		})
	}
	return items, nil
}

// searchVector 用查询摘要的 embedding 在知识索引上做相似度检索。
// 只在本来源内按标题去重，不跨来源去重。
func (c *SearchCoordinator) searchVector(ctx context.Context, query *StructuredQuery) ([]ResultItem, error) {
	vector, err := c.embedder.EmbedQuery(ctx, query.Summary)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	matches, err := c.index.Search(ctx, vector, knowledge.SearchOptions{
		TopK:      c.opts.MaxPerSource,
		Threshold: c.opts.SimilarityThreshold,
	})
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(matches))
	items := make([]ResultItem, 0, len(matches))
	for _, m := range matches {
		titleKey := strings.ToLower(strings.TrimSpace(m.Item.Title))
		if titleKey != "" && seen[titleKey] {
			continue
		}
		seen[titleKey] = true

		items = append(items, ResultItem{
			Source:  SourceVector,
			Title:   m.Item.Title,
			URL:     m.Item.URL,
			Snippet: truncate(m.Item.Content, snippetLimit),
			Score:   m.Score,
		})
	}
	return items, nil
}

// EnrichIndex 把学术检索结果追加进知识索引，供后续相似度检索使用。
// 由调用方在响应之后异步触发，失败只记日志。
func (c *SearchCoordinator) EnrichIndex(ctx context.Context, items []ResultItem) error {
	if c.index == nil || c.embedder == nil {
		return nil
	}

	var knowledgeItems []knowledge.Item
	var texts []string
	for _, item := range items {
		if item.Source != SourceAcademic {
			continue
		}
		id := item.URL
		if id == "" {
			id = uuid.NewString()
		}
		knowledgeItems = append(knowledgeItems, knowledge.Item{
			ID:      id,
			Title:   item.Title,
			URL:     item.URL,
			Content: item.Snippet,
			Metadata: map[string]interface{}{
				"source": string(item.Source),
			},
		})
		texts = append(texts, item.Title+"\n"+item.Snippet)
	}
	if len(knowledgeItems) == 0 {
		return nil
	}

	vectors, err := c.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		return fmt.Errorf("embedding papers: %w", err)
	}
	if err := c.index.Add(ctx, knowledgeItems, vectors); err != nil {
		return fmt.Errorf("adding papers to index: %w", err)
	}

	c.logger.Info("论文已追加进知识索引", zap.Int("count", len(knowledgeItems)))
	return nil
}

// positionScore 按位置给出 1.0 到 0.1 的递减分
func positionScore(index, total int) float64 {
	if total <= 1 {
		return 1.0
	}
	score := 1.0 - float64(index)*0.9/float64(total-1)
	if score < 0.1 {
		score = 0.1
	}
	return score
}

func truncate(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit]) + "..."
}
