package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/code-100-precent/ResearchEcho/pkg/llm"
	"go.uber.org/zap"
)

// QueryAnalyzer 把清洗后的查询转换为结构化查询。
// 只在安全路径上运行，调用方保证输入非空。
type QueryAnalyzer struct {
	llm    llm.Provider
	logger *zap.Logger
}

// NewQueryAnalyzer 创建查询分析 agent
func NewQueryAnalyzer(provider llm.Provider, logger *zap.Logger) *QueryAnalyzer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QueryAnalyzer{llm: provider, logger: logger}
}

const analysisPromptTemplate = `SYSTEM:
You are a query summarizer. Your job is to analyze user queries and provide
a clear, concise summary in JSON format.

USER QUERY TO SUMMARIZE:
%s

Please analyze this query and provide a JSON object that summarizes:
- The main topic or subject
- The specific aspect or focus area
- Any key terms or concepts mentioned

Return ONLY a JSON object with this structure:
{
    "main_topic": "primary subject area",
    "focus_area": "specific aspect being asked about",
    "key_terms": ["term1", "term2", "term3"],
    "query_summary": "concise summary of what the user is asking"
}

Do not include any other text, explanations, or additional data.`

// Analyze 分析查询。LLM 输出不合法时重试一次，仍失败则退回确定性的关键词启发式。
func (a *QueryAnalyzer) Analyze(ctx context.Context, query string) *StructuredQuery {
	prompt := fmt.Sprintf(analysisPromptTemplate, query)

	for attempt := 0; attempt < 2; attempt++ {
		if a.llm == nil {
			break
		}
		response, err := a.llm.Complete(ctx, prompt)
		if err != nil {
			a.logger.Warn("查询分析 LLM 调用失败", zap.Int("attempt", attempt), zap.Error(err))
			break
		}

		structured, err := parseStructuredQuery(response)
		if err == nil {
			a.logger.Info("查询分析完成",
				zap.String("mainTopic", structured.MainTopic),
				zap.Strings("keyTerms", structured.KeyTerms),
			)
			return structured
		}

		a.logger.Warn("查询分析响应不合法，重试", zap.Int("attempt", attempt), zap.Error(err))
		// 重试时附带错误提示，要求严格输出 JSON
		prompt = fmt.Sprintf(analysisPromptTemplate, query) +
			"\n\nYour previous response was not valid JSON. Respond with the JSON object only."
	}

	a.logger.Info("查询分析退回关键词启发式", zap.String("query", query))
	return heuristicQuery(query)
}

// SuggestImprovedQuery 生成改进后的查询建议，失败时返回空串
func (a *QueryAnalyzer) SuggestImprovedQuery(ctx context.Context, query string, structured *StructuredQuery) string {
	if a.llm == nil {
		return ""
	}

	contextInfo := ""
	if structured != nil {
		contextInfo = fmt.Sprintf(`
Analysis Context:
- Main Topic: %s
- Focus Area: %s
- Key Terms: %s`, structured.MainTopic, structured.FocusArea, strings.Join(structured.KeyTerms, ", "))
	}

	prompt := fmt.Sprintf(`SYSTEM:
You are an expert at refining research queries to improve search results.
Take the user's query and suggest an improved, more specific version that
would yield better academic research results.

ORIGINAL QUERY:
%s
%s

Generate an improved version of this query that:
- Is more specific and focused
- Uses appropriate academic/technical terminology
- Maintains the user's intent

Return ONLY the improved query text, without any explanations or additional text.`, query, contextInfo)

	improved, err := a.llm.Complete(ctx, prompt)
	if err != nil {
		a.logger.Warn("改进查询建议生成失败", zap.Error(err))
		return ""
	}
	return strings.TrimSpace(improved)
}

// parseStructuredQuery 解析并校验 LLM 返回的结构化查询
func parseStructuredQuery(response string) (*StructuredQuery, error) {
	var structured StructuredQuery
	if err := json.Unmarshal([]byte(extractJSON(response)), &structured); err != nil {
		return nil, fmt.Errorf("parsing analysis response: %w", err)
	}
	structured.MainTopic = strings.TrimSpace(structured.MainTopic)
	structured.Summary = strings.TrimSpace(structured.Summary)
	if structured.MainTopic == "" || structured.Summary == "" {
		return nil, fmt.Errorf("analysis response missing main_topic or query_summary")
	}
	return &structured, nil
}

// extractJSON 从可能带 markdown 代码块的响应中取出 JSON 对象
func extractJSON(response string) string {
	text := strings.TrimSpace(response)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
		text = strings.TrimSpace(text)
	}
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		return text[start : end+1]
	}
	return text
}

// stopwords 启发式回退时过滤的常见虚词
var stopwords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "about": true,
	"as": true, "at": true, "be": true, "by": true, "can": true,
	"do": true, "does": true, "for": true, "from": true, "how": true,
	"in": true, "is": true, "it": true, "of": true, "on": true,
	"or": true, "that": true, "the": true, "this": true, "to": true,
	"was": true, "what": true, "when": true, "where": true, "which": true,
	"who": true, "why": true, "will": true, "with": true, "you": true,
	"your": true, "their": true, "there": true, "these": true, "those": true,
	"i": true, "me": true, "my": true, "we": true, "our": true,
	"latest": true, "recent": true, "find": true, "search": true, "please": true,
}

// heuristicQuery 确定性的关键词抽取回退：按词频取前几个非虚词作为 key_terms
func heuristicQuery(query string) *StructuredQuery {
	freq := make(map[string]int)
	var order []string
	for _, word := range strings.Fields(strings.ToLower(query)) {
		word = strings.Trim(word, ".,;:!?\"'()[]{}")
		if len(word) < 3 || stopwords[word] {
			continue
		}
		if freq[word] == 0 {
			order = append(order, word)
		}
		freq[word]++
	}

	// 频率降序，同频保持出现顺序
	sort.SliceStable(order, func(i, j int) bool {
		return freq[order[i]] > freq[order[j]]
	})

	terms := order
	if len(terms) > 5 {
		terms = terms[:5]
	}

	mainTopic := query
	if len(terms) > 0 {
		mainTopic = terms[0]
	}

	return &StructuredQuery{
		MainTopic: mainTopic,
		FocusArea: "general",
		KeyTerms:  terms,
		Summary:   query,
	}
}
