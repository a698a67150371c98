package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/code-100-precent/ResearchEcho/pkg/llm"
	"go.uber.org/zap"
)

// summaryTopN 进入摘要提示词的结果条数上限
const summaryTopN = 10

// Summarizer 把检索结果综合成研究摘要。
// 不安全路径和空结果路径都不会调用 LLM。
type Summarizer struct {
	llm    llm.Provider
	logger *zap.Logger
}

// NewSummarizer 创建摘要 agent
func NewSummarizer(provider llm.Provider, logger *zap.Logger) *Summarizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Summarizer{llm: provider, logger: logger}
}

// Summarize 根据状态生成最终结果。Result.Query 始终是原始查询文本。
func (s *Summarizer) Summarize(ctx context.Context, state *ResearchState) *ResearchResult {
	result := &ResearchResult{
		Query:          state.Input,
		Items:          state.Items,
		Sources:        state.SearchSources,
		TotalFound:     len(state.Items),
		SuggestedQuery: state.SuggestedQuery,
	}

	switch {
	case !state.Verdict.Safe:
		// 不安全输入：固定的拒绝型结果，不做任何综合
		result.Summary = fmt.Sprintf(
			"Security analysis detected a %s level threat in the query. "+
				"The query has been sanitized and processed safely. "+
				"No research results were generated due to security concerns.",
			state.Verdict.Level,
		)
		result.Items = nil
		result.TotalFound = 0
		result.Sources = []string{"security_screen"}

	case len(state.Items) == 0:
		// 空结果：确定性模板，不调用 LLM
		result.Summary = fmt.Sprintf("No results found for %q.", state.Input)

	default:
		result.Summary = s.synthesize(ctx, state)
	}

	return result
}

// synthesize 请求 LLM 综合 top-N 结果，失败时退回列出标题的降级模板。
// 状态带有 SummaryStream 回调时走流式补全，增量段实时推给观察者。
func (s *Summarizer) synthesize(ctx context.Context, state *ResearchState) string {
	if s.llm == nil {
		return degradedSummary(state)
	}

	prompt := buildSummaryPrompt(state)

	var summary string
	var err error
	if state.SummaryStream != nil {
		summary, err = s.llm.CompleteStream(ctx, prompt, func(segment string, done bool) error {
			if segment != "" {
				state.SummaryStream(segment)
			}
			return nil
		})
	} else {
		summary, err = s.llm.Complete(ctx, prompt)
	}
	if err != nil {
		s.logger.Warn("摘要生成失败，退回降级模板", zap.Error(err))
		return degradedSummary(state)
	}

	s.logger.Info("摘要生成完成", zap.Int("items", len(state.Items)))
	return strings.TrimSpace(summary)
}

// buildSummaryPrompt 构造摘要提示词，结果正文截断后拼入
func buildSummaryPrompt(state *ResearchState) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Please create a comprehensive research summary for the query: %q\n\n", state.Input)

	items := state.Items
	if len(items) > summaryTopN {
		items = items[:summaryTopN]
	}
	fmt.Fprintf(&sb, "Results found (%d total, top %d shown):\n", len(state.Items), len(items))
	for i, item := range items {
		fmt.Fprintf(&sb, "\nResult %d [%s]:\nTitle: %s\nContent: %s\n",
			i+1, item.Source, item.Title, truncate(item.Snippet, 300))
	}

	sb.WriteString(`
Please provide a comprehensive summary that:
1. Synthesizes findings from all sources
2. Identifies key research themes and trends
3. Highlights important contributions and methodologies
4. Discusses implications and future directions
5. Provides actionable insights relevant to the query

Structure the summary with clear sections and make it informative and accessible.`)
	return sb.String()
}

// degradedSummary LLM 不可用时的确定性模板，列出结果标题
func degradedSummary(state *ResearchState) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d results for %q:\n", len(state.Items), state.Input)
	for i, item := range state.Items {
		if i >= summaryTopN {
			break
		}
		fmt.Fprintf(&sb, "%d. [%s] %s\n", i+1, item.Source, item.Title)
	}
	return strings.TrimSpace(sb.String())
}
