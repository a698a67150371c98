package config

import (
	"log"
	"os"
	"strconv"

	"github.com/code-100-precent/ResearchEcho/pkg/logger"
	"github.com/joho/godotenv"
)

// Config 全局配置
type Config struct {
	ServerName string `env:"SERVER_NAME"`
	Addr       string `env:"ADDR"`
	Mode       string `env:"MODE"`
	APIPrefix  string `env:"API_PREFIX"`
	DBDriver   string `env:"DB_DRIVER"`
	DSN        string `env:"DSN"`
	Log        logger.LogConfig

	// LLM 配置
	LLMApiKey      string `env:"LLM_API_KEY"`
	LLMBaseURL     string `env:"LLM_BASE_URL"`
	LLMModel       string `env:"LLM_MODEL"`
	EmbeddingModel string `env:"EMBEDDING_MODEL"`

	// 检索配置
	MaxResultsPerSource int     `env:"MAX_RESULTS_PER_SOURCE"` // 每个来源的最大结果数
	SourceTimeoutSec    int     `env:"SOURCE_TIMEOUT_SECONDS"` // 单个来源的超时时间（秒）
	SimilarityThreshold float64 `env:"SIMILARITY_THRESHOLD"`   // 向量检索的相似度下限

	// 向量索引配置
	VectorProvider  string `env:"VECTOR_PROVIDER"` // local, milvus
	VectorIndexPath string `env:"VECTOR_INDEX_PATH"`
	VectorDimension int    `env:"VECTOR_DIMENSION"`

	// Milvus 配置
	MilvusAddress    string `env:"MILVUS_ADDRESS"`
	MilvusUsername   string `env:"MILVUS_USERNAME"`
	MilvusPassword   string `env:"MILVUS_PASSWORD"`
	MilvusCollection string `env:"MILVUS_COLLECTION"`

	// Web 检索配置
	WebSearchEnabled bool   `env:"WEB_SEARCH_ENABLED"`
	WebSearchURL     string `env:"WEB_SEARCH_URL"` // MCP 服务器 SSE 地址

	// 会话配置
	ConversationMaxHistory int `env:"CONVERSATION_MAX_HISTORY"`
	ConversationTTLSec     int `env:"CONVERSATION_TTL_SECONDS"`
}

var GlobalConfig *Config

// Load 加载全局配置，所有配置都有默认值，确保无 .env 文件也能启动
func Load() error {
	env := os.Getenv("APP_ENV")
	if err := loadEnvFile(env); err != nil {
		log.Printf("Note: .env file not found or failed to load: %v (using default values)", err)
	}

	GlobalConfig = &Config{
		ServerName: getStringOrDefault("SERVER_NAME", "ResearchEcho"),
		Addr:       getStringOrDefault("ADDR", ":8000"),
		Mode:       getStringOrDefault("MODE", "development"),
		APIPrefix:  getStringOrDefault("API_PREFIX", "/api"),
		DBDriver:   getStringOrDefault("DB_DRIVER", "sqlite"),
		DSN:        getStringOrDefault("DSN", "./research.db"),
		Log: logger.LogConfig{
			Level:      getStringOrDefault("LOG_LEVEL", "info"),
			Filename:   getStringOrDefault("LOG_FILENAME", ""),
			MaxSize:    getIntOrDefault("LOG_MAX_SIZE", 100),
			MaxAge:     getIntOrDefault("LOG_MAX_AGE", 30),
			MaxBackups: getIntOrDefault("LOG_MAX_BACKUPS", 5),
		},
		LLMApiKey:      getStringOrDefault("LLM_API_KEY", ""),
		LLMBaseURL:     getStringOrDefault("LLM_BASE_URL", "https://api.openai.com/v1"),
		LLMModel:       getStringOrDefault("LLM_MODEL", "gpt-4o"),
		EmbeddingModel: getStringOrDefault("EMBEDDING_MODEL", "text-embedding-3-small"),

		MaxResultsPerSource: getIntOrDefault("MAX_RESULTS_PER_SOURCE", 10),
		SourceTimeoutSec:    getIntOrDefault("SOURCE_TIMEOUT_SECONDS", 15),
		SimilarityThreshold: getFloatOrDefault("SIMILARITY_THRESHOLD", 0.7),

		VectorProvider:  getStringOrDefault("VECTOR_PROVIDER", "local"),
		VectorIndexPath: getStringOrDefault("VECTOR_INDEX_PATH", "./data/index.json"),
		VectorDimension: getIntOrDefault("VECTOR_DIMENSION", 1536),

		MilvusAddress:    getStringOrDefault("MILVUS_ADDRESS", "localhost:19530"),
		MilvusUsername:   getStringOrDefault("MILVUS_USERNAME", ""),
		MilvusPassword:   getStringOrDefault("MILVUS_PASSWORD", ""),
		MilvusCollection: getStringOrDefault("MILVUS_COLLECTION", "papers"),

		WebSearchEnabled: getBoolOrDefault("WEB_SEARCH_ENABLED", true),
		WebSearchURL:     getStringOrDefault("WEB_SEARCH_URL", "http://localhost:3001/sse"),

		ConversationMaxHistory: getIntOrDefault("CONVERSATION_MAX_HISTORY", 10),
		ConversationTTLSec:     getIntOrDefault("CONVERSATION_TTL_SECONDS", 3600),
	}

	return nil
}

// loadEnvFile 按环境加载 .env 文件：.env.<env> 优先，回退到 .env
func loadEnvFile(env string) error {
	if env != "" {
		if err := godotenv.Load(".env." + env); err == nil {
			return nil
		}
	}
	return godotenv.Load()
}

func getStringOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getIntOrDefault(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getFloatOrDefault(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getBoolOrDefault(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}
