package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
	"gorm.io/gorm"
)

// 消息角色
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ConversationMessage 一条对话消息，按会话追加，不做更新
type ConversationMessage struct {
	ID             uint      `json:"id" gorm:"primaryKey"`
	CreatedAt      time.Time `json:"createdAt" gorm:"autoCreateTime"`
	ConversationID string    `json:"conversationId" gorm:"size:64;index"`
	Role           string    `json:"role" gorm:"size:16"`
	Content        string    `json:"content"`
}

// ConversationStore 会话历史存储。
// 热会话缓存在内存里并带过期时间，落库保证重启后可恢复。
type ConversationStore struct {
	db         *gorm.DB
	hot        *gocache.Cache
	maxHistory int
}

// ConversationStoreOptions 存储配置
type ConversationStoreOptions struct {
	// MaxHistory 每个会话返回的最近消息条数上限
	MaxHistory int
	// TTL 热会话缓存过期时间
	TTL time.Duration
}

// NewConversationStore 创建会话存储并迁移表结构
func NewConversationStore(db *gorm.DB, opts ConversationStoreOptions) (*ConversationStore, error) {
	if opts.MaxHistory <= 0 {
		opts.MaxHistory = 10
	}
	if opts.TTL <= 0 {
		opts.TTL = time.Hour
	}

	if err := db.AutoMigrate(&ConversationMessage{}); err != nil {
		return nil, fmt.Errorf("migrating conversation schema: %w", err)
	}

	return &ConversationStore{
		db:         db,
		hot:        gocache.New(opts.TTL, opts.TTL/2),
		maxHistory: opts.MaxHistory,
	}, nil
}

// NewConversationID 生成新的会话 ID
func NewConversationID() string {
	return uuid.NewString()
}

// Append 向会话追加一条消息，并发安全
func (s *ConversationStore) Append(conversationID, role, content string) error {
	if conversationID == "" {
		return fmt.Errorf("empty conversation id")
	}

	msg := ConversationMessage{
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
	}
	if err := s.db.Create(&msg).Error; err != nil {
		return fmt.Errorf("appending conversation message: %w", err)
	}

	// 追加后让热缓存失效，下次读取时重建
	s.hot.Delete(conversationID)
	return nil
}

// History 返回会话最近的消息，按时间升序
func (s *ConversationStore) History(conversationID string) ([]ConversationMessage, error) {
	if cached, ok := s.hot.Get(conversationID); ok {
		return cached.([]ConversationMessage), nil
	}

	var messages []ConversationMessage
	err := s.db.
		Where("conversation_id = ?", conversationID).
		Order("id DESC").
		Limit(s.maxHistory).
		Find(&messages).Error
	if err != nil {
		return nil, fmt.Errorf("loading conversation history: %w", err)
	}

	// 倒序查询取最近 N 条，再翻回时间升序
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	s.hot.SetDefault(conversationID, messages)
	return messages, nil
}
