package agent

import (
	"time"
)

// ThreatLevel 威胁等级
type ThreatLevel string

const (
	ThreatNone     ThreatLevel = "none"
	ThreatLow      ThreatLevel = "low"
	ThreatMedium   ThreatLevel = "medium"
	ThreatHigh     ThreatLevel = "high"
	ThreatCritical ThreatLevel = "critical"
)

var threatRank = map[ThreatLevel]int{
	ThreatNone:     0,
	ThreatLow:      1,
	ThreatMedium:   2,
	ThreatHigh:     3,
	ThreatCritical: 4,
}

// Rank 返回威胁等级的序数，未知等级按 none 处理
func (l ThreatLevel) Rank() int {
	return threatRank[l]
}

// MaxLevel 返回两个威胁等级中较高的一个
func MaxLevel(a, b ThreatLevel) ThreatLevel {
	if b.Rank() > a.Rank() {
		return b
	}
	return a
}

// Verdict 安全筛查结论
type Verdict struct {
	// Safe 输入是否可以进入正常研究流程
	Safe bool `json:"safe"`

	// Level 综合威胁等级
	Level ThreatLevel `json:"level"`

	// Threats 检测到的威胁列表（形如 "critical:<pattern>" 或 "suspicious_keyword:<word>"）
	Threats []string `json:"threats,omitempty"`

	// Sanitized 清洗后的输入文本
	Sanitized string `json:"sanitized"`
}

// StructuredQuery 查询分析产出的结构化查询，分析完成后不再修改
type StructuredQuery struct {
	MainTopic string   `json:"main_topic"`
	FocusArea string   `json:"focus_area"`
	KeyTerms  []string `json:"key_terms"`
	Summary   string   `json:"query_summary"`
}

// Source 检索结果来源
type Source string

const (
	SourceAcademic Source = "academic"
	SourceWeb      Source = "web"
	SourceVector   Source = "vector"
)

// ResultItem 一条检索结果。Score 是各来源自己的尺度，不做跨来源归一化
type ResultItem struct {
	Source  Source  `json:"source"`
	Title   string  `json:"title"`
	URL     string  `json:"url,omitempty"`
	Snippet string  `json:"snippet,omitempty"`
	Score   float64 `json:"score"`
}

// ResearchResult 最终研究结果，生成后不再修改
type ResearchResult struct {
	// Query 用户的原始查询文本，原样保留
	Query string `json:"query"`

	// Summary 综合摘要
	Summary string `json:"summary"`

	// Items 聚合后的检索结果
	Items []ResultItem `json:"items"`

	// Sources 实际产出结果的来源名称
	Sources []string `json:"sources"`

	// TotalFound 聚合结果总数
	TotalFound int `json:"totalFound"`

	// SuggestedQuery 改进后的查询建议（可能为空）
	SuggestedQuery string `json:"suggestedQuery,omitempty"`

	// Elapsed 整个流水线耗时
	Elapsed time.Duration `json:"elapsed"`
}

// Stage 流水线阶段
type Stage string

const (
	StageSecurity Stage = "security"
	StageAnalysis Stage = "analysis"
	StageSearch   Stage = "search"
	StageSummary  Stage = "summary"
	StageDone     Stage = "done"
)

// ResearchState 贯穿整个流水线的请求级状态。
// 每个阶段只写入自己负责的字段，请求结束后即丢弃。
type ResearchState struct {
	// Input 原始输入
	Input string `json:"input"`

	// Sanitized 安全筛查后的输入
	Sanitized string `json:"sanitized,omitempty"`

	// Verdict 安全筛查结论
	Verdict Verdict `json:"verdict"`

	// Query 结构化查询，分析阶段前为 nil
	Query *StructuredQuery `json:"query,omitempty"`

	// SuggestedQuery 改进查询建议
	SuggestedQuery string `json:"suggestedQuery,omitempty"`

	// Items 检索阶段聚合的结果
	Items []ResultItem `json:"items,omitempty"`

	// SearchSources 实际产出结果的来源
	SearchSources []string `json:"searchSources,omitempty"`

	// Result 最终结果，摘要阶段前为 nil
	Result *ResearchResult `json:"result,omitempty"`

	// SummaryStream 摘要增量回调，流式接口在 Run 之前设置；非流式为 nil
	SummaryStream func(segment string) `json:"-"`

	// Stage 当前阶段
	Stage Stage `json:"stage"`

	// Notes 各阶段的降级/错误备注
	Notes map[Stage]string `json:"notes,omitempty"`

	// StartedAt 流水线开始时间
	StartedAt time.Time `json:"startedAt"`
}

// NewResearchState 创建初始状态
func NewResearchState(input string) *ResearchState {
	return &ResearchState{
		Input:     input,
		Verdict:   Verdict{Safe: true, Level: ThreatNone},
		Stage:     StageSecurity,
		Notes:     make(map[Stage]string),
		StartedAt: time.Now(),
	}
}

// note 记录阶段备注
func (s *ResearchState) note(stage Stage, msg string) {
	if s.Notes == nil {
		s.Notes = make(map[Stage]string)
	}
	s.Notes[stage] = msg
}

// StageEvent 每完成一个阶段后发给流式观察者的事件
type StageEvent struct {
	Stage Stage          `json:"stage"`
	State *ResearchState `json:"state"`
}
