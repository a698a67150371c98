package mcp

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	mcpgo "github.com/mark3labs/mcp-go/mcp"
)

// duckduckgoAPI DuckDuckGo instant answer 接口
var duckduckgoAPI = "https://api.duckduckgo.com/"

// webResult web_search 工具返回的单条结果
type webResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
	Source  string `json:"source,omitempty"`
}

// ddgResponse DuckDuckGo 响应的相关字段
type ddgResponse struct {
	Heading       string `json:"Heading"`
	Abstract      string `json:"Abstract"`
	AbstractURL   string `json:"AbstractURL"`
	RelatedTopics []struct {
		Text     string `json:"Text"`
		FirstURL string `json:"FirstURL"`
	} `json:"RelatedTopics"`
}

// RegisterSearchTools 注册检索相关的工具
func RegisterSearchTools(server *MCPServer) {
	httpClient := resty.New().SetTimeout(10 * time.Second)

	server.RegisterTool(
		ToolWebSearch,
		"搜索 web 上与研究主题相关的信息，返回结果列表的 JSON",
		func(arguments map[string]any) (*mcpgo.CallToolResult, error) {
			query, err := SafeGetString(arguments, "query", true)
			if err != nil {
				return ErrorResponse(400, err.Error()), nil
			}
			maxResults, err := SafeGetNumber(arguments, "max_results", false, 5)
			if err != nil {
				return ErrorResponse(400, err.Error()), nil
			}

			results, err := searchDuckDuckGo(httpClient, query, int(maxResults))
			if err != nil {
				return ErrorResponse(502, "web 搜索失败", err.Error()), nil
			}
			return JSONResponse(results), nil
		},
		mcpgo.WithString(
			"query",
			mcpgo.Description("搜索查询"),
			mcpgo.Required(),
		),
		mcpgo.WithNumber(
			"max_results",
			mcpgo.Description("最大结果数，默认 5"),
		),
	)

	server.RegisterTool(
		"echo",
		"回显输入的文本（连通性检查）",
		func(arguments map[string]any) (*mcpgo.CallToolResult, error) {
			text, err := SafeGetString(arguments, "text", true)
			if err != nil {
				return ErrorResponse(400, err.Error()), nil
			}
			return TextResponse(text), nil
		},
		mcpgo.WithString(
			"text",
			mcpgo.Description("要回显的文本"),
			mcpgo.Required(),
		),
	)
}

// ToolWebSearch web 检索工具名称
const ToolWebSearch = "web_search"

// searchDuckDuckGo 调用 DuckDuckGo instant answer 接口
func searchDuckDuckGo(httpClient *resty.Client, query string, maxResults int) ([]webResult, error) {
	if maxResults <= 0 {
		maxResults = 5
	}

	var ddg ddgResponse
	resp, err := httpClient.R().
		SetQueryParams(map[string]string{
			"q":             query,
			"format":        "json",
			"no_html":       "1",
			"skip_disambig": "1",
		}).
		SetResult(&ddg).
		Get(duckduckgoAPI)
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, fmt.Errorf("duckduckgo returned HTTP %d", resp.StatusCode())
	}

	results := make([]webResult, 0, maxResults)
	if ddg.Abstract != "" {
		title := ddg.Heading
		if title == "" {
			title = "DuckDuckGo Instant Answer"
		}
		results = append(results, webResult{
			Title:   title,
			URL:     ddg.AbstractURL,
			Snippet: ddg.Abstract,
			Source:  "duckduckgo_instant_answer",
		})
	}

	for _, topic := range ddg.RelatedTopics {
		if len(results) >= maxResults {
			break
		}
		if topic.Text == "" {
			continue
		}
		title := topic.Text
		if idx := strings.Index(title, " - "); idx > 0 {
			title = title[:idx]
		}
		results = append(results, webResult{
			Title:   title,
			URL:     topic.FirstURL,
			Snippet: topic.Text,
			Source:  "duckduckgo_related_topics",
		})
	}

	return results, nil
}
