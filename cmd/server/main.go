package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"time"

	handlers "github.com/code-100-precent/ResearchEcho/internal/handler"
	"github.com/code-100-precent/ResearchEcho/internal/models"
	"github.com/code-100-precent/ResearchEcho/pkg/agent"
	"github.com/code-100-precent/ResearchEcho/pkg/arxiv"
	"github.com/code-100-precent/ResearchEcho/pkg/config"
	"github.com/code-100-precent/ResearchEcho/pkg/knowledge"
	"github.com/code-100-precent/ResearchEcho/pkg/llm"
	"github.com/code-100-precent/ResearchEcho/pkg/logger"
	"github.com/code-100-precent/ResearchEcho/pkg/middleware"
	"github.com/code-100-precent/ResearchEcho/pkg/websearch"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func main() {
	// 1. Parse Command Line Parameters
	mode := flag.String("mode", "", "running environment (development, test, production)")
	flag.Parse()
	if *mode != "" {
		os.Setenv("APP_ENV", *mode)
	}

	// 2. Load Global Configuration
	if err := config.Load(); err != nil {
		panic("config load failed: " + err.Error())
	}
	cfg := config.GlobalConfig

	// 3. Load Log Configuration
	if err := logger.Init(&cfg.Log, cfg.Mode); err != nil {
		panic(err)
	}
	defer logger.Sync()

	logger.Info("checked config",
		zap.String("addr", cfg.Addr),
		zap.String("mode", cfg.Mode),
		zap.String("llmModel", cfg.LLMModel),
		zap.String("vectorProvider", cfg.VectorProvider),
		zap.Bool("webSearchEnabled", cfg.WebSearchEnabled),
	)

	// 4. Load Data Source
	db, err := gorm.Open(sqlite.Open(cfg.DSN), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		logger.Error("database setup failed", zap.Error(err))
		return
	}

	store, err := models.NewConversationStore(db, models.ConversationStoreOptions{
		MaxHistory: cfg.ConversationMaxHistory,
		TTL:        time.Duration(cfg.ConversationTTLSec) * time.Second,
	})
	if err != nil {
		logger.Error("conversation store setup failed", zap.Error(err))
		return
	}

	// 5. Load LLM Provider
	var provider llm.Provider
	var embedder llm.Embedder
	if cfg.LLMApiKey != "" {
		handler := llm.NewOpenAIHandler(llm.Options{
			APIKey:         cfg.LLMApiKey,
			BaseURL:        cfg.LLMBaseURL,
			Model:          cfg.LLMModel,
			EmbeddingModel: cfg.EmbeddingModel,
		})
		provider = handler
		embedder = handler
	} else {
		// 没有 API Key 时各阶段走确定性降级路径
		logger.Warn("LLM_API_KEY is empty, running with heuristic fallbacks only")
	}

	// 6. Load Vector Index
	var index knowledge.Index
	factory := knowledge.NewFactory(knowledge.FactoryConfig{
		IndexPath: cfg.VectorIndexPath,
		Milvus: knowledge.MilvusConfig{
			Address:    cfg.MilvusAddress,
			Username:   cfg.MilvusUsername,
			Password:   cfg.MilvusPassword,
			Collection: cfg.MilvusCollection,
			Dimension:  cfg.VectorDimension,
		},
	})
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	index, err = factory.GetIndex(ctx, cfg.VectorProvider)
	cancel()
	if err != nil {
		logger.Warn("vector index unavailable, vector source disabled", zap.Error(err))
		index = nil
	}

	// 7. Load Web Search Client
	var web websearch.Searcher
	if cfg.WebSearchEnabled {
		web = websearch.NewClient(cfg.WebSearchURL)
	}

	// 8. Assemble Pipeline
	coordinator := agent.NewSearchCoordinator(
		arxiv.NewClient(arxiv.WithTimeout(time.Duration(cfg.SourceTimeoutSec)*time.Second)),
		web,
		index,
		embedder,
		agent.SearchOptions{
			MaxPerSource:        cfg.MaxResultsPerSource,
			SourceTimeout:       time.Duration(cfg.SourceTimeoutSec) * time.Second,
			SimilarityThreshold: cfg.SimilarityThreshold,
		},
		logger.L(),
	)
	orchestrator := agent.NewOrchestrator(
		agent.NewSecurityAgent(provider, logger.L()),
		agent.NewQueryAnalyzer(provider, logger.L()),
		coordinator,
		agent.NewSummarizer(provider, logger.L()),
		logger.L(),
	)

	// 9. Initialize Gin Routing
	if cfg.Mode == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(middleware.RecoveryMiddleware(logger.L()))
	r.Use(middleware.LoggerMiddleware(logger.L()))

	h := handlers.NewHandlers(orchestrator, coordinator, store, index, embedder, logger.L())
	h.Register(r)

	// 10. Start HTTP Server
	httpServer := &http.Server{
		Addr:           cfg.Addr,
		Handler:        r,
		ReadTimeout:    30 * time.Second,
		WriteTimeout:   120 * time.Second, // SSE 流式响应需要更长的写超时
		IdleTimeout:    120 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	logger.Info("Starting HTTP server", zap.String("addr", cfg.Addr))
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("HTTP server run failed", zap.Error(err))
	}
}
