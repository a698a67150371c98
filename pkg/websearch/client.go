package websearch

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/code-100-precent/ResearchEcho/pkg/logger"
	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"
)

// ToolName web 检索工具在 MCP 服务器上注册的名称
const ToolName = "web_search"

// Result 一条 web 检索结果
type Result struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
	Source  string `json:"source,omitempty"`
}

// Searcher web 检索接口，便于测试替换
type Searcher interface {
	Search(ctx context.Context, query string, maxResults int) ([]Result, error)
}

// Client 通过 MCP SSE 传输调用 web_search 工具的客户端
type Client struct {
	serverURL string

	mu        sync.Mutex
	mcpClient *client.Client
}

// NewClient 创建 MCP web 检索客户端，连接延迟到首次调用
func NewClient(serverURL string) *Client {
	// SSE 传输要求 URL 以 /sse 结尾
	if !strings.HasSuffix(serverURL, "/sse") {
		serverURL = strings.TrimSuffix(serverURL, "/") + "/sse"
	}
	return &Client{serverURL: serverURL}
}

// connect 建立并初始化 MCP 连接（幂等）
func (c *Client) connect(ctx context.Context) (*client.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.mcpClient != nil {
		return c.mcpClient, nil
	}

	sseTransport, err := transport.NewSSE(c.serverURL)
	if err != nil {
		return nil, fmt.Errorf("creating sse transport: %w", err)
	}

	mcpClient := client.NewClient(sseTransport)
	if err := mcpClient.Start(ctx); err != nil {
		return nil, fmt.Errorf("starting mcp client: %w", err)
	}

	initRequest := mcp.InitializeRequest{}
	initRequest.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initRequest.Params.Capabilities = mcp.ClientCapabilities{}
	initRequest.Params.ClientInfo = mcp.Implementation{Name: "ResearchEcho", Version: "1.0.0"}

	serverInfo, err := mcpClient.Initialize(ctx, initRequest)
	if err != nil {
		_ = mcpClient.Close()
		return nil, fmt.Errorf("initializing mcp session: %w", err)
	}

	logger.Info("connected to web search server",
		zap.String("name", serverInfo.ServerInfo.Name),
		zap.String("version", serverInfo.ServerInfo.Version),
	)

	c.mcpClient = mcpClient
	return mcpClient, nil
}

// Search 调用 web_search 工具并解析结果
func (c *Client) Search(ctx context.Context, query string, maxResults int) ([]Result, error) {
	mcpClient, err := c.connect(ctx)
	if err != nil {
		return nil, err
	}

	request := mcp.CallToolRequest{}
	request.Params.Name = ToolName
	request.Params.Arguments = map[string]any{
		"query":       query,
		"max_results": maxResults,
	}

	callResult, err := mcpClient.CallTool(ctx, request)
	if err != nil {
		// 连接可能已失效，丢弃并让下次调用重连
		c.mu.Lock()
		_ = c.mcpClient.Close()
		c.mcpClient = nil
		c.mu.Unlock()
		return nil, fmt.Errorf("calling %s: %w", ToolName, err)
	}
	if callResult.IsError {
		return nil, fmt.Errorf("%s returned an error: %s", ToolName, flattenText(callResult))
	}

	var results []Result
	if err := json.Unmarshal([]byte(flattenText(callResult)), &results); err != nil {
		return nil, fmt.Errorf("parsing %s response: %w", ToolName, err)
	}
	return results, nil
}

// Close 关闭底层 MCP 连接
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.mcpClient == nil {
		return nil
	}
	err := c.mcpClient.Close()
	c.mcpClient = nil
	return err
}

func flattenText(result *mcp.CallToolResult) string {
	var sb strings.Builder
	for _, content := range result.Content {
		if tc, ok := mcp.AsTextContent(content); ok {
			sb.WriteString(tc.Text)
		}
	}
	return sb.String()
}
