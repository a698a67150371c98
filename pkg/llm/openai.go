package llm

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"

	"github.com/code-100-precent/ResearchEcho/pkg/logger"
	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// OpenAIHandler 基于 OpenAI 兼容接口的 Provider/Embedder 实现
type OpenAIHandler struct {
	client         *openai.Client
	model          string
	embeddingModel string
	systemMsg      string
	temperature    float32

	mutex          sync.Mutex
	lastUsage      openai.Usage
	lastUsageValid bool
}

// Options OpenAIHandler 的创建参数
type Options struct {
	APIKey         string
	BaseURL        string
	Model          string
	EmbeddingModel string
	SystemPrompt   string
	Temperature    float32
}

// NewOpenAIHandler 创建 OpenAI 兼容的 LLM 处理器
func NewOpenAIHandler(opts Options) *OpenAIHandler {
	cfg := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = opts.BaseURL
	}

	model := opts.Model
	if model == "" {
		model = openai.GPT4o
	}
	embeddingModel := opts.EmbeddingModel
	if embeddingModel == "" {
		embeddingModel = string(openai.SmallEmbedding3)
	}
	temperature := opts.Temperature
	if temperature == 0 {
		temperature = 0.3
	}

	return &OpenAIHandler{
		client:         openai.NewClientWithConfig(cfg),
		model:          model,
		embeddingModel: embeddingModel,
		systemMsg:      opts.SystemPrompt,
		temperature:    temperature,
	}
}

// Complete 执行一次非流式补全
func (h *OpenAIHandler) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := h.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       h.model,
		Messages:    h.buildMessages(prompt),
		Temperature: h.temperature,
	})
	if err != nil {
		logger.Error("chat completion failed", zap.String("model", h.model), zap.Error(err))
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion returned no choices")
	}

	h.mutex.Lock()
	h.lastUsage = resp.Usage
	h.lastUsageValid = true
	h.mutex.Unlock()

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// CompleteStream 执行流式补全，callback 按增量段回调
func (h *OpenAIHandler) CompleteStream(ctx context.Context, prompt string, callback func(segment string, done bool) error) (string, error) {
	stream, err := h.client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model:       h.model,
		Messages:    h.buildMessages(prompt),
		Temperature: h.temperature,
		Stream:      true,
	})
	if err != nil {
		logger.Error("chat completion stream failed", zap.String("model", h.model), zap.Error(err))
		return "", err
	}
	defer stream.Close()

	var full strings.Builder
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return full.String(), err
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		segment := chunk.Choices[0].Delta.Content
		if segment == "" {
			continue
		}
		full.WriteString(segment)
		if callback != nil {
			if err := callback(segment, false); err != nil {
				return full.String(), err
			}
		}
	}
	if callback != nil {
		if err := callback("", true); err != nil {
			return full.String(), err
		}
	}
	return full.String(), nil
}

// EmbedTexts 批量向量化文本
func (h *OpenAIHandler) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	resp, err := h.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(h.embeddingModel),
		Input: texts,
	})
	if err != nil {
		logger.Error("embedding request failed", zap.Int("texts", len(texts)), zap.Error(err))
		return nil, err
	}

	vectors := make([][]float32, len(resp.Data))
	for i, item := range resp.Data {
		vectors[i] = item.Embedding
	}
	return vectors, nil
}

// EmbedQuery 向量化单条查询
func (h *OpenAIHandler) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := h.EmbedTexts(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, errors.New("embedding response is empty")
	}
	return vectors[0], nil
}

// GetLastUsage 获取最后一次调用的使用统计信息
func (h *OpenAIHandler) GetLastUsage() (Usage, bool) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	if !h.lastUsageValid {
		return Usage{}, false
	}
	return Usage{
		PromptTokens:     h.lastUsage.PromptTokens,
		CompletionTokens: h.lastUsage.CompletionTokens,
		TotalTokens:      h.lastUsage.TotalTokens,
	}, true
}

func (h *OpenAIHandler) buildMessages(prompt string) []openai.ChatCompletionMessage {
	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if h.systemMsg != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: h.systemMsg,
		})
	}
	return append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: prompt,
	})
}
