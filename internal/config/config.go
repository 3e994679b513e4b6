package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

type Config struct {
	Server    ServerConfig
	OpenAI    OpenAIConfig
	Storage   StorageConfig
	RateLimit RateLimitConfig
	Memory    MemoryConfig
	Retrieval RetrievalConfig
	Query     QueryConfig
	Log       LogConfig
}

type ServerConfig struct {
	Port           int
	APIKey         string
	AdminToken     string
	AllowedOrigins string
}

type OpenAIConfig struct {
	APIKey     string
	BaseURL    string
	ChatModel  string
	EmbedModel string
}

type StorageConfig struct {
	DataDir     string
	SalesDBPath string
}

type RateLimitConfig struct {
	Enabled    bool
	DailyLimit int
	FailOpen   bool
}

type MemoryConfig struct {
	SessionTTL string
	MaxTurns   int
}

type RetrievalConfig struct {
	TopK int
}

type QueryConfig struct {
	MaxRows int
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	dataDir := defaultDataDir()
	return Config{
		Server: ServerConfig{
			Port:           8080,
			AllowedOrigins: "*",
		},
		OpenAI: OpenAIConfig{
			ChatModel:  "gpt-4o-mini",
			EmbedModel: "text-embedding-3-small",
		},
		Storage: StorageConfig{
			DataDir:     dataDir,
			SalesDBPath: filepath.Join(dataDir, "sales.db"),
		},
		RateLimit: RateLimitConfig{
			Enabled:    true,
			DailyLimit: 100,
			FailOpen:   true,
		},
		Memory: MemoryConfig{
			SessionTTL: "30m",
			MaxTurns:   5,
		},
		Retrieval: RetrievalConfig{
			TopK: 4,
		},
		Query: QueryConfig{
			MaxRows: 50,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load builds the configuration from defaults and ASKBRIDGE_* environment
// variables. The OpenAI API key is the only required value.
func Load() (Config, error) {
	cfg := defaults()
	applyEnvOverrides(&cfg)

	if cfg.OpenAI.APIKey == "" {
		return Config{}, fmt.Errorf("missing required config: OpenAI API key. Set it via environment variable ASKBRIDGE_OPENAI_API_KEY")
	}

	if _, err := time.ParseDuration(cfg.Memory.SessionTTL); err != nil {
		return Config{}, fmt.Errorf("parsing memory.session_ttl: %w", err)
	}

	if cfg.Retrieval.TopK < 1 {
		return Config{}, fmt.Errorf("retrieval.top_k must be at least 1, got %d", cfg.Retrieval.TopK)
	}

	return cfg, nil
}

// ParsedTTL returns the session time-to-live as a duration. Load validates the
// value, so an unparseable string only happens on a hand-built Config; the
// default is returned in that case.
func (c MemoryConfig) ParsedTTL() time.Duration {
	d, err := time.ParseDuration(c.SessionTTL)
	if err != nil {
		return 30 * time.Minute
	}
	return d
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".askbridge"
	}
	return filepath.Join(home, ".askbridge")
}
