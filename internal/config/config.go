// Package config defines the application configuration and its defaults.
package config

import (
	"fmt"
	"os"
)

// Config is the full application configuration.
type Config struct {
	AI      AIConfig      `mapstructure:"ai" json:"ai"`
	Index   IndexConfig   `mapstructure:"index" json:"index"`
	Session SessionConfig `mapstructure:"session" json:"session"`
	Server  ServerConfig  `mapstructure:"server" json:"server"`
	Logging LoggingConfig `mapstructure:"logging" json:"logging"`

	// DataDir is the root for the database, sessions, and logs.
	DataDir string `mapstructure:"data_dir" json:"data_dir"`
	// DocsPath is the folder of course documents to index.
	DocsPath string `mapstructure:"docs_path" json:"docs_path"`
}

// AIConfig holds the model provider settings.
type AIConfig struct {
	AnthropicAPIKey string `mapstructure:"anthropic_api_key" json:"anthropic_api_key"`
	AnthropicModel  string `mapstructure:"anthropic_model" json:"anthropic_model"`
	OpenAIAPIKey    string `mapstructure:"openai_api_key" json:"openai_api_key"`
	EmbeddingModel  string `mapstructure:"embedding_model" json:"embedding_model"`
	MaxTokens       int    `mapstructure:"max_tokens" json:"max_tokens"`
	MaxRounds       int    `mapstructure:"max_rounds" json:"max_rounds"`
}

// IndexConfig holds chunking and search settings.
type IndexConfig struct {
	ChunkSize    int    `mapstructure:"chunk_size" json:"chunk_size"`
	ChunkOverlap int    `mapstructure:"chunk_overlap" json:"chunk_overlap"`
	MaxResults   int    `mapstructure:"max_results" json:"max_results"`
	WatchDocs    bool   `mapstructure:"watch_docs" json:"watch_docs"`
	ReindexCron  string `mapstructure:"reindex_cron" json:"reindex_cron"`
}

// SessionConfig holds conversation history settings.
type SessionConfig struct {
	MaxHistory int `mapstructure:"max_history" json:"max_history"`
}

// ServerConfig holds the HTTP server settings.
type ServerConfig struct {
	Host           string   `mapstructure:"host" json:"host"`
	Port           int      `mapstructure:"port" json:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins" json:"allowed_origins"`
	RateLimit      int      `mapstructure:"rate_limit" json:"rate_limit"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `mapstructure:"level" json:"level"`
	File    string `mapstructure:"file" json:"file"`
	Console bool   `mapstructure:"console" json:"console"`
	Pretty  bool   `mapstructure:"pretty" json:"pretty"`
}

// DefaultConfig returns the configuration defaults. API keys come from the
// environment when the config file leaves them empty.
func DefaultConfig() *Config {
	return &Config{
		AI: AIConfig{
			AnthropicAPIKey: os.Getenv("ANTHROPIC_API_KEY"),
			AnthropicModel:  "claude-3-5-sonnet-20241022",
			OpenAIAPIKey:    os.Getenv("OPENAI_API_KEY"),
			EmbeddingModel:  "text-embedding-3-small",
			MaxTokens:       800,
			MaxRounds:       2,
		},
		Index: IndexConfig{
			ChunkSize:    800,
			ChunkOverlap: 100,
			MaxResults:   5,
			WatchDocs:    true,
		},
		Session: SessionConfig{
			MaxHistory: 2,
		},
		Server: ServerConfig{
			Host:           "0.0.0.0",
			Port:           8000,
			AllowedOrigins: []string{"*"},
			RateLimit:      30,
		},
		Logging: LoggingConfig{
			Level:   "info",
			Console: true,
			Pretty:  true,
		},
		DocsPath: "docs",
	}
}

// Validate checks the configuration for values that cannot work.
func (c *Config) Validate() error {
	if c.AI.AnthropicAPIKey == "" {
		return fmt.Errorf("anthropic api key is required (set ai.anthropic_api_key or ANTHROPIC_API_KEY)")
	}
	if c.AI.OpenAIAPIKey == "" {
		return fmt.Errorf("openai api key is required (set ai.openai_api_key or OPENAI_API_KEY)")
	}
	if c.AI.MaxRounds <= 0 {
		return fmt.Errorf("ai.max_rounds must be positive")
	}
	if c.Index.ChunkSize <= 0 {
		return fmt.Errorf("index.chunk_size must be positive")
	}
	if c.Index.ChunkOverlap < 0 || c.Index.ChunkOverlap >= c.Index.ChunkSize {
		return fmt.Errorf("index.chunk_overlap must be smaller than index.chunk_size")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be a valid port")
	}
	return nil
}
