package agent

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// transitionKey 转移表的键：当前阶段 + 安全结论
type transitionKey struct {
	stage Stage
	safe  bool
}

// transitions 固定的阶段转移表。唯一的条件边是
// security 在不安全时直接跳到 summary。无环，无图级重试。
var transitions = map[transitionKey]Stage{
	{StageSecurity, true}:  StageAnalysis,
	{StageSecurity, false}: StageSummary,
	{StageAnalysis, true}:  StageSearch,
	{StageSearch, true}:    StageSummary,
	{StageSummary, true}:   StageDone,
	{StageSummary, false}:  StageDone,
}

// EmitFunc 每完成一个阶段后的回调，供流式接口推送中间状态
type EmitFunc func(StageEvent)

// Orchestrator 按固定四阶段流水线驱动各 agent。
// 对任何输入都保证返回非 nil 的 Result。
type Orchestrator struct {
	security    *SecurityAgent
	analyzer    *QueryAnalyzer
	coordinator *SearchCoordinator
	summarizer  *Summarizer
	logger      *zap.Logger
}

// NewOrchestrator 创建编排器
func NewOrchestrator(
	security *SecurityAgent,
	analyzer *QueryAnalyzer,
	coordinator *SearchCoordinator,
	summarizer *Summarizer,
	logger *zap.Logger,
) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		security:    security,
		analyzer:    analyzer,
		coordinator: coordinator,
		summarizer:  summarizer,
		logger:      logger,
	}
}

// Run 执行流水线。emit 可为 nil。
// ctx 取消时在阶段之间立即停止并返回 ctx 错误；
// 正常返回时 state.Result 一定非 nil。
func (o *Orchestrator) Run(ctx context.Context, state *ResearchState, emit EmitFunc) error {
	if state == nil {
		return fmt.Errorf("%w: nil state", ErrInternalInconsistency)
	}
	if state.StartedAt.IsZero() {
		state.StartedAt = time.Now()
	}
	if state.Stage == "" {
		state.Stage = StageSecurity
	}

	for state.Stage != StageDone {
		if err := ctx.Err(); err != nil {
			return err
		}

		stage := state.Stage
		o.runNode(ctx, stage, state)

		next, ok := transitions[transitionKey{stage, state.Verdict.Safe}]
		if !ok {
			return fmt.Errorf("%w: no transition from stage %s", ErrInternalInconsistency, stage)
		}
		state.Stage = next

		if emit != nil {
			emit(StageEvent{Stage: stage, State: state})
		}
	}

	// 完备性保证：无论走哪条路径都要有结果
	if state.Result == nil {
		state.Result = o.summarizer.Summarize(ctx, state)
	}
	state.Result.Elapsed = time.Since(state.StartedAt)

	o.logger.Info("研究流水线完成",
		zap.String("query", state.Input),
		zap.Bool("safe", state.Verdict.Safe),
		zap.Int("items", state.Result.TotalFound),
		zap.Duration("elapsed", state.Result.Elapsed),
	)
	return nil
}

// runNode 执行单个阶段节点，panic 被捕获并转为该阶段的降级备注
func (o *Orchestrator) runNode(ctx context.Context, stage Stage, state *ResearchState) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("阶段节点发生panic",
				zap.String("stage", string(stage)),
				zap.Any("panic", r),
			)
			state.note(stage, fmt.Sprintf("stage panic: %v", r))
			o.degrade(stage, state)
		}
	}()

	start := time.Now()
	switch stage {
	case StageSecurity:
		state.Verdict = o.security.Screen(ctx, state.Input)
		state.Sanitized = state.Verdict.Sanitized

	case StageAnalysis:
		input := state.Sanitized
		if input == "" {
			input = state.Input
		}
		state.Query = o.analyzer.Analyze(ctx, input)
		state.SuggestedQuery = o.analyzer.SuggestImprovedQuery(ctx, input, state.Query)

	case StageSearch:
		if state.Query == nil {
			// 分析阶段保证产出结构化查询，防御性兜底
			state.note(stage, "missing structured query")
			state.Query = heuristicQuery(state.Input)
		}
		state.Items, state.SearchSources = o.coordinator.Search(ctx, state.Query)

	case StageSummary:
		state.Result = o.summarizer.Summarize(ctx, state)
	}

	o.logger.Debug("阶段节点完成",
		zap.String("stage", string(stage)),
		zap.Duration("elapsed", time.Since(start)),
	)
}

// degrade 阶段 panic 后把状态补成下一阶段可以消费的形态
func (o *Orchestrator) degrade(stage Stage, state *ResearchState) {
	switch stage {
	case StageSecurity:
		state.Verdict = Verdict{
			Safe:      false,
			Level:     ThreatCritical,
			Threats:   []string{"security_analysis_error"},
			Sanitized: FallbackTopic,
		}
		state.Sanitized = FallbackTopic
	case StageAnalysis:
		if state.Query == nil {
			state.Query = heuristicQuery(state.Input)
		}
	case StageSummary:
		if state.Result == nil {
			state.Result = &ResearchResult{
				Query:      state.Input,
				Summary:    fmt.Sprintf("No results found for %q.", state.Input),
				Items:      state.Items,
				Sources:    state.SearchSources,
				TotalFound: len(state.Items),
			}
		}
	}
}

// Research 便捷入口：从原始输入跑完整个流水线
func (o *Orchestrator) Research(ctx context.Context, input string) (*ResearchState, error) {
	state := NewResearchState(input)
	if err := o.Run(ctx, state, nil); err != nil {
		return state, err
	}
	return state, nil
}
