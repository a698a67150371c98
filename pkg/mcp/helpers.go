package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"

	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"
)

// ToolHandler 定义工具处理函数的类型
type ToolHandler func(arguments map[string]any) (*mcp.CallToolResult, error)

// SafeGetString 安全地从参数中获取字符串值
func SafeGetString(arguments map[string]any, key string, required bool) (string, error) {
	value, exists := arguments[key]
	if !exists || value == nil {
		if required {
			return "", fmt.Errorf("缺少必需参数: %s", key)
		}
		return "", nil
	}

	strValue, ok := value.(string)
	if !ok {
		return "", fmt.Errorf("参数 %s 类型错误,期望 string,实际 %T", key, value)
	}
	return strValue, nil
}

// SafeGetNumber 安全地从参数中获取数字值
func SafeGetNumber(arguments map[string]any, key string, required bool, defaultValue float64) (float64, error) {
	value, exists := arguments[key]
	if !exists || value == nil {
		if required {
			return 0, fmt.Errorf("缺少必需参数: %s", key)
		}
		return defaultValue, nil
	}

	switch v := value.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case int32:
		return float64(v), nil
	default:
		return 0, fmt.Errorf("参数 %s 类型错误,期望 number,实际 %T", key, value)
	}
}

// ErrorResponse 创建错误响应
func ErrorResponse(code int, message string, details ...string) *mcp.CallToolResult {
	response := map[string]interface{}{
		"code": code,
		"msg":  message,
	}
	if len(details) > 0 {
		response["details"] = details[0]
	}
	jsonBytes, _ := json.Marshal(response)

	result := TextResponse(string(jsonBytes))
	result.IsError = true
	return result
}

// JSONResponse 创建 JSON 编码的文本响应
func JSONResponse(data interface{}) *mcp.CallToolResult {
	jsonBytes, err := json.Marshal(data)
	if err != nil {
		return ErrorResponse(500, "编码响应失败", err.Error())
	}
	return TextResponse(string(jsonBytes))
}

// TextResponse 创建简单的文本响应
func TextResponse(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{
				Type: "text",
				Text: text,
			},
		},
	}
}

// SafeToolHandler 包装工具函数,捕获panic并返回友好错误
func SafeToolHandler(toolName string, logger *zap.Logger, handler ToolHandler) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest) (result *mcp.CallToolResult, err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("工具调用发生panic",
					zap.String("tool", toolName),
					zap.Any("panic", r),
					zap.String("stack", string(debug.Stack())),
				)
				result = ErrorResponse(500, fmt.Sprintf("工具内部错误: %v", r))
				err = nil
			}
		}()

		result, err = handler(request.GetArguments())
		if err != nil {
			logger.Error("工具调用失败",
				zap.String("tool", toolName),
				zap.Error(err),
			)
			result = ErrorResponse(500, "工具调用失败", err.Error())
			err = nil
		}
		return result, err
	}
}
