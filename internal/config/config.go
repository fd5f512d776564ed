package config

import (
	"os"
	"strconv"
)

// Default request budgets, in characters. Total bounds the whole formatted
// corpus per run; Chunk bounds one extraction request.
const (
	DefaultTotalBudget = 400_000
	DefaultChunkBudget = 48_000
)

type Config struct {
	Port     int
	LogLevel string

	Provider        string
	AnthropicAPIKey string
	AnthropicModel  string
	OpenAIAPIKey    string
	OpenAIBaseURL   string
	OpenAIModel     string

	StorageEngine string
	SQLitePath    string
	DatabaseURL   string

	NatsURL   string
	NatsToken string

	TotalBudget int
	ChunkBudget int
}

func Load() Config {
	return Config{
		Port:     envInt("LIFEBOAT_PORT", 8780),
		LogLevel: envStr("LOG_LEVEL", "info"),

		Provider:        envStr("LIFEBOAT_PROVIDER", "anthropic"),
		AnthropicAPIKey: envStr("ANTHROPIC_API_KEY", ""),
		AnthropicModel:  envStr("LIFEBOAT_ANTHROPIC_MODEL", "claude-sonnet-4-20250514"),
		OpenAIAPIKey:    envStr("OPENAI_API_KEY", ""),
		OpenAIBaseURL:   envStr("OPENAI_BASE_URL", ""),
		OpenAIModel:     envStr("LIFEBOAT_OPENAI_MODEL", "gpt-4o"),

		StorageEngine: envStr("LIFEBOAT_STORAGE", "sqlite"),
		SQLitePath:    envStr("LIFEBOAT_SQLITE_PATH", "data/profiles.db"),
		DatabaseURL:   envStr("DATABASE_URL", ""),

		NatsURL:   envStr("NATS_URL", ""),
		NatsToken: envStr("NATS_TOKEN", ""),

		TotalBudget: envInt("LIFEBOAT_TOTAL_BUDGET", DefaultTotalBudget),
		ChunkBudget: envInt("LIFEBOAT_CHUNK_BUDGET", DefaultChunkBudget),
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
