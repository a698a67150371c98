package websearch

import (
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
)

func TestNewClientNormalizesURL(t *testing.T) {
	assert.Equal(t, "http://localhost:3001/sse", NewClient("http://localhost:3001").serverURL)
	assert.Equal(t, "http://localhost:3001/sse", NewClient("http://localhost:3001/").serverURL)
	assert.Equal(t, "http://localhost:3001/sse", NewClient("http://localhost:3001/sse").serverURL)
}

func TestFlattenText(t *testing.T) {
	result := &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: `[{"title":"a"}`},
			mcp.TextContent{Type: "text", Text: `]`},
		},
	}

	assert.Equal(t, `[{"title":"a"}]`, flattenText(result))
}
