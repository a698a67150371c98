package handlers

import (
	"fmt"
	"strings"

	"github.com/code-100-precent/ResearchEcho/pkg/agent"
	"github.com/code-100-precent/ResearchEcho/pkg/knowledge"
	"github.com/code-100-precent/ResearchEcho/pkg/response"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// PapersCount 返回知识索引中的条目数
func (h *Handlers) PapersCount(c *gin.Context) {
	if h.index == nil {
		h.failRequest(c, fmt.Errorf("%w: vector index not configured", agent.ErrUpstreamUnavailable))
		return
	}

	count, err := h.index.Count(c.Request.Context())
	if err != nil {
		h.logger.Error("知识索引计数失败", zap.Error(err))
		h.failRequest(c, fmt.Errorf("%w: vector index", agent.ErrUpstreamUnavailable))
		return
	}

	response.Success(c, "papers count", gin.H{
		"count":    count,
		"provider": h.index.Provider(),
	})
}

// PapersSearchRequest 直接相似度检索请求
type PapersSearchRequest struct {
	Query     string  `json:"query"`
	Limit     int     `json:"limit,omitempty"`
	Threshold float64 `json:"threshold,omitempty"`
}

// PapersSearch 绕过流水线，直接在知识索引上做相似度检索
func (h *Handlers) PapersSearch(c *gin.Context) {
	var req PapersSearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.failRequest(c, fmt.Errorf("%w: %s", agent.ErrValidation, err.Error()))
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		h.failRequest(c, fmt.Errorf("%w: query must not be empty", agent.ErrValidation))
		return
	}
	if h.index == nil || h.embedder == nil {
		h.failRequest(c, fmt.Errorf("%w: vector index not configured", agent.ErrUpstreamUnavailable))
		return
	}
	if req.Limit <= 0 {
		req.Limit = 10
	}

	vector, err := h.embedder.EmbedQuery(c.Request.Context(), req.Query)
	if err != nil {
		h.logger.Error("查询向量化失败", zap.Error(err))
		h.failRequest(c, fmt.Errorf("%w: embedding service", agent.ErrUpstreamUnavailable))
		return
	}

	matches, err := h.index.Search(c.Request.Context(), vector, knowledge.SearchOptions{
		TopK:      req.Limit,
		Threshold: req.Threshold,
	})
	if err != nil {
		h.logger.Error("相似度检索失败", zap.Error(err))
		h.failRequest(c, fmt.Errorf("%w: vector index", agent.ErrUpstreamUnavailable))
		return
	}

	response.Success(c, "similarity search", gin.H{
		"query":   req.Query,
		"results": matches,
		"count":   len(matches),
	})
}
