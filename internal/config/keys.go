package config

import (
	"fmt"
	"os"
	"strconv"
)

type keyType int

const (
	kString keyType = iota
	kInt
	kBool
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	secret  bool
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "server.port", typ: kInt, env: "ASKBRIDGE_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "server.api_key", typ: kString, env: "ASKBRIDGE_SERVER_API_KEY",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Server.APIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.Server.APIKey },
	},
	{
		key: "server.admin_token", typ: kString, env: "ASKBRIDGE_ADMIN_TOKEN",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Server.AdminToken = v.(string) },
		extract: func(cfg Config) any { return cfg.Server.AdminToken },
	},
	{
		key: "server.allowed_origins", typ: kString, env: "ASKBRIDGE_ALLOWED_ORIGINS",
		apply:   func(cfg *Config, v any) { cfg.Server.AllowedOrigins = v.(string) },
		extract: func(cfg Config) any { return cfg.Server.AllowedOrigins },
	},
	{
		key: "openai.api_key", typ: kString, env: "ASKBRIDGE_OPENAI_API_KEY",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.OpenAI.APIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.OpenAI.APIKey },
	},
	{
		key: "openai.base_url", typ: kString, env: "ASKBRIDGE_OPENAI_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.OpenAI.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.OpenAI.BaseURL },
	},
	{
		key: "openai.chat_model", typ: kString, env: "ASKBRIDGE_OPENAI_CHAT_MODEL",
		apply:   func(cfg *Config, v any) { cfg.OpenAI.ChatModel = v.(string) },
		extract: func(cfg Config) any { return cfg.OpenAI.ChatModel },
	},
	{
		key: "openai.embed_model", typ: kString, env: "ASKBRIDGE_OPENAI_EMBED_MODEL",
		apply:   func(cfg *Config, v any) { cfg.OpenAI.EmbedModel = v.(string) },
		extract: func(cfg Config) any { return cfg.OpenAI.EmbedModel },
	},
	{
		key: "storage.data_dir", typ: kString, env: "ASKBRIDGE_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "storage.sales_db_path", typ: kString, env: "ASKBRIDGE_SALES_DB_PATH",
		apply:   func(cfg *Config, v any) { cfg.Storage.SalesDBPath = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.SalesDBPath },
	},
	{
		key: "ratelimit.enabled", typ: kBool, env: "ASKBRIDGE_RATELIMIT_ENABLED",
		apply:   func(cfg *Config, v any) { cfg.RateLimit.Enabled = v.(bool) },
		extract: func(cfg Config) any { return cfg.RateLimit.Enabled },
	},
	{
		key: "ratelimit.daily_limit", typ: kInt, env: "ASKBRIDGE_RATELIMIT_DAILY_LIMIT",
		apply:   func(cfg *Config, v any) { cfg.RateLimit.DailyLimit = v.(int) },
		extract: func(cfg Config) any { return cfg.RateLimit.DailyLimit },
	},
	{
		key: "ratelimit.fail_open", typ: kBool, env: "ASKBRIDGE_RATELIMIT_FAIL_OPEN",
		apply:   func(cfg *Config, v any) { cfg.RateLimit.FailOpen = v.(bool) },
		extract: func(cfg Config) any { return cfg.RateLimit.FailOpen },
	},
	{
		key: "memory.session_ttl", typ: kString, env: "ASKBRIDGE_MEMORY_SESSION_TTL",
		apply:   func(cfg *Config, v any) { cfg.Memory.SessionTTL = v.(string) },
		extract: func(cfg Config) any { return cfg.Memory.SessionTTL },
	},
	{
		key: "memory.max_turns", typ: kInt, env: "ASKBRIDGE_MEMORY_MAX_TURNS",
		apply:   func(cfg *Config, v any) { cfg.Memory.MaxTurns = v.(int) },
		extract: func(cfg Config) any { return cfg.Memory.MaxTurns },
	},
	{
		key: "retrieval.top_k", typ: kInt, env: "ASKBRIDGE_RETRIEVAL_TOP_K",
		apply:   func(cfg *Config, v any) { cfg.Retrieval.TopK = v.(int) },
		extract: func(cfg Config) any { return cfg.Retrieval.TopK },
	},
	{
		key: "query.max_rows", typ: kInt, env: "ASKBRIDGE_QUERY_MAX_ROWS",
		apply:   func(cfg *Config, v any) { cfg.Query.MaxRows = v.(int) },
		extract: func(cfg Config) any { return cfg.Query.MaxRows },
	},
	{
		key: "log.level", typ: kString, env: "ASKBRIDGE_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		if s.env == "" {
			continue
		}
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		switch s.typ {
		case kString:
			s.apply(cfg, raw)
		case kInt:
			if i, err := strconv.Atoi(raw); err == nil {
				s.apply(cfg, i)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse integer from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		case kBool:
			if b, err := strconv.ParseBool(raw); err == nil {
				s.apply(cfg, b)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse bool from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		}
	}
}
