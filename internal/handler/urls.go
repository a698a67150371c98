package handlers

import (
	"time"

	"github.com/code-100-precent/ResearchEcho/internal/models"
	"github.com/code-100-precent/ResearchEcho/pkg/agent"
	"github.com/code-100-precent/ResearchEcho/pkg/config"
	"github.com/code-100-precent/ResearchEcho/pkg/knowledge"
	"github.com/code-100-precent/ResearchEcho/pkg/llm"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Version 服务版本号
const Version = "1.0.0"

// Handlers 聚合所有 HTTP/SSE/WebSocket 处理器的依赖
type Handlers struct {
	orchestrator *agent.Orchestrator
	coordinator  *agent.SearchCoordinator
	store        *models.ConversationStore
	index        knowledge.Index // 可为 nil
	embedder     llm.Embedder    // 可为 nil
	logger       *zap.Logger
	startedAt    time.Time
}

// NewHandlers 创建处理器集合
func NewHandlers(
	orchestrator *agent.Orchestrator,
	coordinator *agent.SearchCoordinator,
	store *models.ConversationStore,
	index knowledge.Index,
	embedder llm.Embedder,
	logger *zap.Logger,
) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{
		orchestrator: orchestrator,
		coordinator:  coordinator,
		store:        store,
		index:        index,
		embedder:     embedder,
		logger:       logger,
		startedAt:    time.Now(),
	}
}

// Register 注册所有路由
func (h *Handlers) Register(engine *gin.Engine) {
	engine.GET("/health", h.HealthCheck)

	prefix := "/api"
	if config.GlobalConfig != nil && config.GlobalConfig.APIPrefix != "" {
		prefix = config.GlobalConfig.APIPrefix
	}

	api := engine.Group(prefix)
	{
		api.POST("/chat", h.Chat)
		api.POST("/chat/stream", h.ChatStream)
		api.GET("/ws", h.HandleWebSocket)
		api.GET("/papers/count", h.PapersCount)
		api.POST("/papers/search", h.PapersSearch)
	}
}
