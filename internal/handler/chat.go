package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/code-100-precent/ResearchEcho/internal/models"
	"github.com/code-100-precent/ResearchEcho/pkg/agent"
	"github.com/code-100-precent/ResearchEcho/pkg/response"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// enrichTimeout 响应后异步追加索引的超时
const enrichTimeout = 30 * time.Second

// ChatRequest 研究请求
type ChatRequest struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversationId,omitempty"`
	MaxResults     int    `json:"maxResults,omitempty"`
}

// Chat 处理一次完整的研究请求
func (h *Handlers) Chat(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.failRequest(c, fmt.Errorf("%w: %s", agent.ErrValidation, err.Error()))
		return
	}

	// 空消息在安全筛查之前直接拒绝
	if strings.TrimSpace(req.Message) == "" {
		h.failRequest(c, fmt.Errorf("%w: message must not be empty", agent.ErrValidation))
		return
	}

	state := agent.NewResearchState(req.Message)
	if err := h.orchestrator.Run(c.Request.Context(), state, nil); err != nil {
		h.failRequest(c, err)
		return
	}

	conversationID := h.recordConversation(req.ConversationID, req.Message, state)
	h.enrichAsync(state)

	payload := h.buildChatPayload(state, conversationID, req.MaxResults)
	if !state.Verdict.Safe {
		// 安全拒绝是业务失败而不是 HTTP 错误：HTTP 200，拒绝型结果
		response.Fail(c, "query rejected by security screening", payload)
		return
	}
	response.Success(c, "research completed", payload)
}

// ChatStream 以 SSE 推送每个阶段的中间状态，最后推送完整结果。
// 客户端断开时请求上下文取消，流水线随之停止。
func (h *Handlers) ChatStream(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.failRequest(c, fmt.Errorf("%w: %s", agent.ErrValidation, err.Error()))
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		h.failRequest(c, fmt.Errorf("%w: message must not be empty", agent.ErrValidation))
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Flush()

	state := agent.NewResearchState(req.Message)
	// 摘要阶段的 LLM 增量直接推成 summary 事件
	state.SummaryStream = func(segment string) {
		c.SSEvent("summary", gin.H{"delta": segment})
		c.Writer.Flush()
	}
	err := h.orchestrator.Run(c.Request.Context(), state, func(ev agent.StageEvent) {
		c.SSEvent("stage", gin.H{
			"stage":   ev.Stage,
			"safe":    ev.State.Verdict.Safe,
			"level":   ev.State.Verdict.Level,
			"items":   len(ev.State.Items),
			"sources": ev.State.SearchSources,
		})
		c.Writer.Flush()
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			h.logger.Info("流式请求被客户端取消")
			return
		}
		c.SSEvent("error", gin.H{"message": err.Error()})
		c.Writer.Flush()
		return
	}

	conversationID := h.recordConversation(req.ConversationID, req.Message, state)
	h.enrichAsync(state)

	c.SSEvent("result", h.buildChatPayload(state, conversationID, req.MaxResults))
	c.Writer.Flush()
}

// buildChatPayload 构造聊天响应数据
func (h *Handlers) buildChatPayload(state *agent.ResearchState, conversationID string, maxResults int) gin.H {
	result := state.Result

	items := result.Items
	if maxResults > 0 && len(items) > maxResults {
		items = items[:maxResults]
	}

	payload := gin.H{
		"query":          result.Query,
		"summary":        result.Summary,
		"items":          items,
		"sources":        result.Sources,
		"totalFound":     result.TotalFound,
		"elapsedMs":      result.Elapsed.Milliseconds(),
		"conversationId": conversationID,
		"verdict": gin.H{
			"safe":  state.Verdict.Safe,
			"level": state.Verdict.Level,
		},
	}
	if result.SuggestedQuery != "" {
		payload["suggestedQuery"] = result.SuggestedQuery
	}

	if h.store != nil {
		if history, err := h.store.History(conversationID); err == nil {
			payload["history"] = history
		}
	}
	return payload
}

// recordConversation 追加会话历史，返回（可能新生成的）会话 ID
func (h *Handlers) recordConversation(conversationID, message string, state *agent.ResearchState) string {
	if conversationID == "" {
		conversationID = models.NewConversationID()
	}
	if h.store == nil {
		return conversationID
	}

	if err := h.store.Append(conversationID, models.RoleUser, message); err != nil {
		h.logger.Warn("会话历史写入失败", zap.Error(err))
		return conversationID
	}
	if err := h.store.Append(conversationID, models.RoleAssistant, state.Result.Summary); err != nil {
		h.logger.Warn("会话历史写入失败", zap.Error(err))
	}
	return conversationID
}

// enrichAsync 响应后把学术结果异步追加进知识索引
func (h *Handlers) enrichAsync(state *agent.ResearchState) {
	if h.coordinator == nil || len(state.Items) == 0 {
		return
	}
	items := state.Items
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), enrichTimeout)
		defer cancel()
		if err := h.coordinator.EnrichIndex(ctx, items); err != nil {
			h.logger.Warn("知识索引追加失败", zap.Error(err))
		}
	}()
}

// failRequest 把错误按分类映射到 HTTP 状态码，所有 handler 共用
func (h *Handlers) failRequest(c *gin.Context, err error) {
	switch {
	case errors.Is(err, context.Canceled):
		// 客户端已断开，无需响应
	case errors.Is(err, agent.ErrValidation):
		response.FailWithStatus(c, http.StatusBadRequest, err.Error(), nil)
	case errors.Is(err, agent.ErrUpstreamUnavailable):
		response.FailWithStatus(c, http.StatusBadGateway, err.Error(), nil)
	case errors.Is(err, agent.ErrInternalInconsistency):
		response.FailWithStatus(c, http.StatusInternalServerError, "internal error", nil)
	default:
		h.logger.Error("请求处理失败", zap.Error(err))
		response.FailWithStatus(c, http.StatusInternalServerError, "internal error", nil)
	}
}
