package handlers

import (
	"net/http"
	"strings"

	"github.com/code-100-precent/ResearchEcho/internal/models"
	"github.com/code-100-precent/ResearchEcho/pkg/agent"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true // 允许所有来源
	},
}

// wsRequest WebSocket 入站消息
type wsRequest struct {
	Action     string `json:"action"`
	Message    string `json:"message"`
	MaxResults int    `json:"maxResults,omitempty"`
}

// HandleWebSocket 处理实时研究通道。
// 每个连接分配一个会话 ID，action 为 chat 的消息走完整流水线，
// 阶段事件与最终结果都推回同一连接。
func (h *Handlers) HandleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("WebSocket 升级失败", zap.Error(err))
		return
	}
	defer conn.Close()

	conversationID := models.NewConversationID()
	if err := conn.WriteJSON(gin.H{
		"type":           "connected",
		"conversationId": conversationID,
	}); err != nil {
		return
	}

	for {
		var req wsRequest
		if err := conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("WebSocket 读取失败", zap.Error(err))
			}
			return
		}

		switch req.Action {
		case "chat":
			h.handleWSChat(c, conn, conversationID, req)
		default:
			_ = conn.WriteJSON(gin.H{
				"type":    "error",
				"message": "unknown action: " + req.Action,
			})
		}
	}
}

// handleWSChat 在连接上执行一次研究请求
func (h *Handlers) handleWSChat(c *gin.Context, conn *websocket.Conn, conversationID string, req wsRequest) {
	if strings.TrimSpace(req.Message) == "" {
		_ = conn.WriteJSON(gin.H{
			"type":    "error",
			"message": "message must not be empty",
		})
		return
	}

	state := agent.NewResearchState(req.Message)
	state.SummaryStream = func(segment string) {
		_ = conn.WriteJSON(gin.H{
			"type":  "summary",
			"delta": segment,
		})
	}
	err := h.orchestrator.Run(c.Request.Context(), state, func(ev agent.StageEvent) {
		_ = conn.WriteJSON(gin.H{
			"type":    "stage",
			"stage":   ev.Stage,
			"safe":    ev.State.Verdict.Safe,
			"level":   ev.State.Verdict.Level,
			"items":   len(ev.State.Items),
			"sources": ev.State.SearchSources,
		})
	})
	if err != nil {
		_ = conn.WriteJSON(gin.H{
			"type":    "error",
			"message": err.Error(),
		})
		return
	}

	h.recordConversation(conversationID, req.Message, state)
	h.enrichAsync(state)

	payload := h.buildChatPayload(state, conversationID, req.MaxResults)
	payload["type"] = "result"
	_ = conn.WriteJSON(payload)
}
