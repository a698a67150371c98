package mcp

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"
)

// ServerOption 是 server 包的 Option 类型别名
type ServerOption = server.ServerOption

// MCPServer 封装 MCP 服务器，提供工具注册功能
type MCPServer struct {
	server  *server.MCPServer
	logger  *zap.Logger
	tools   map[string]ToolHandler
	version string
	name    string
}

// Config MCP 服务器配置
type Config struct {
	Name    string // 服务器名称，默认 "ResearchEcho/websearch"
	Version string // 版本号，默认 "1.0.0"
	Logger  *zap.Logger
}

// NewMCPServer 创建新的 MCP 服务器实例
func NewMCPServer(cfg *Config) *MCPServer {
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Name == "" {
		cfg.Name = "ResearchEcho/websearch"
	}
	if cfg.Version == "" {
		cfg.Version = "1.0.0"
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	mcpServer := server.NewMCPServer(
		cfg.Name,
		cfg.Version,
		server.WithToolCapabilities(true),
		server.WithHooks(getHooks(cfg.Logger)),
		server.WithLogging(),
	)

	return &MCPServer{
		server:  mcpServer,
		logger:  cfg.Logger,
		tools:   make(map[string]ToolHandler),
		version: cfg.Version,
		name:    cfg.Name,
	}
}

// GetServer 获取底层的 MCP 服务器实例
func (s *MCPServer) GetServer() *server.MCPServer {
	return s.server
}

// RegisterTool 注册一个工具
func (s *MCPServer) RegisterTool(
	name string,
	description string,
	handler ToolHandler,
	params ...mcp.ToolOption,
) {
	s.tools[name] = handler

	options := append([]mcp.ToolOption{mcp.WithDescription(description)}, params...)
	tool := mcp.NewTool(name, options...)

	s.server.AddTool(tool, SafeToolHandler(name, s.logger, handler))

	s.logger.Info("MCP 工具已注册",
		zap.String("name", name),
		zap.String("description", description),
	)
}

// RegisteredTools 获取所有已注册的工具名称
func (s *MCPServer) RegisteredTools() []string {
	tools := make([]string, 0, len(s.tools))
	for name := range s.tools {
		tools = append(tools, name)
	}
	return tools
}

// CallToolInternal 进程内调用工具（跳过传输层，供测试使用）
func (s *MCPServer) CallToolInternal(ctx context.Context, toolName string, arguments map[string]any) (*mcp.CallToolResult, error) {
	handler, exists := s.tools[toolName]
	if !exists {
		return ErrorResponse(404, fmt.Sprintf("tool %s not found", toolName)), nil
	}

	request := mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      toolName,
			Arguments: arguments,
		},
	}
	return SafeToolHandler(toolName, s.logger, handler)(ctx, request)
}

// ServeSSE 以 SSE 传输启动服务器并阻塞
func (s *MCPServer) ServeSSE(addr string) error {
	sseServer := server.NewSSEServer(s.server)
	s.logger.Info("MCP SSE 服务器启动", zap.String("addr", addr))
	return sseServer.Start(addr)
}

// getHooks 创建 MCP 服务器钩子
func getHooks(logger *zap.Logger) *server.Hooks {
	hooks := &server.Hooks{}

	hooks.AddBeforeCallTool(func(ctx context.Context, id any, message *mcp.CallToolRequest) {
		logger.Debug("工具调用开始",
			zap.Any("id", id),
			zap.String("tool", message.Params.Name),
		)
	})
	hooks.AddAfterCallTool(func(ctx context.Context, id any, message *mcp.CallToolRequest, result *mcp.CallToolResult) {
		logger.Debug("工具调用完成",
			zap.Any("id", id),
			zap.String("tool", message.Params.Name),
		)
	})

	return hooks
}
