package main

import (
	"flag"
	"os"

	"github.com/code-100-precent/ResearchEcho/pkg/config"
	"github.com/code-100-precent/ResearchEcho/pkg/logger"
	researchMCP "github.com/code-100-precent/ResearchEcho/pkg/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"
)

func main() {
	// 1. Parse command line arguments
	var transport string
	var port string
	var mode string

	flag.StringVar(&transport, "transport", "sse", "Transport type (stdio or sse)")
	flag.StringVar(&port, "port", "3001", "Port to run the MCP server on (only for SSE transport)")
	flag.StringVar(&mode, "mode", "", "Running environment (development, test, production)")
	flag.Parse()

	// 2. Set environment variables
	if mode != "" {
		os.Setenv("APP_ENV", mode)
	}

	// 3. Load configuration
	if err := config.Load(); err != nil {
		panic("config load failed: " + err.Error())
	}

	// 4. Initialize logging
	if err := logger.Init(&config.GlobalConfig.Log, config.GlobalConfig.Mode); err != nil {
		panic(err)
	}
	defer logger.Sync()

	logger.Info("Starting MCP server",
		zap.String("transport", transport),
		zap.String("port", port),
		zap.String("mode", config.GlobalConfig.Mode),
	)

	// 5. Create MCP server
	mcpServer := researchMCP.NewMCPServer(&researchMCP.Config{
		Name:    "ResearchEcho/websearch",
		Version: "1.0.0",
		Logger:  logger.L(),
	})

	// 6. Register search tools
	researchMCP.RegisterSearchTools(mcpServer)

	// 7. Start server
	if transport == "sse" {
		if err := mcpServer.ServeSSE(":" + port); err != nil {
			logger.L().Fatal("Server error", zap.Error(err))
		}
	} else {
		logger.Info("Starting stdio server")
		if err := server.ServeStdio(mcpServer.GetServer()); err != nil {
			logger.L().Fatal("Server error", zap.Error(err))
		}
	}
}
