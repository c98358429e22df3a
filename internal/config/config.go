package config

import (
	"fmt"
	"os"
	"strconv"
)

type Config struct {
	Port     int
	DBPath   string
	LogLevel string
	APIKey   string
	// Memory tuning
	ShortTermTTLHours int
	EpisodeCapacity   int
	ConsolidateCron   string
	// Episode similarity: "substring" or "vector"
	EpisodeSimilarity string
	EmbedBaseURL      string
	EmbedModel        string
	EmbedCacheSize    int
	// Generative text upstream
	GentextBaseURL        string
	GentextTimeoutSeconds int
	GentextMaxRetries     int
	// Role rule overrides
	RulesPath string
}

func Load() (*Config, error) {
	cfg := &Config{
		Port:                  envInt("PORT", 8750),
		DBPath:                envStr("DB_PATH", "/data/leadmesh.db"),
		LogLevel:              envStr("LOG_LEVEL", "info"),
		APIKey:                envStr("API_KEY", ""),
		ShortTermTTLHours:     envInt("SHORT_TERM_TTL_HOURS", 24),
		EpisodeCapacity:       envInt("EPISODE_CAPACITY", 1000),
		ConsolidateCron:       envStr("CONSOLIDATE_CRON", "@hourly"),
		EpisodeSimilarity:     envStr("EPISODE_SIMILARITY", "substring"),
		EmbedBaseURL:          envStr("EMBED_BASE_URL", "http://localhost:11434"),
		EmbedModel:            envStr("EMBED_MODEL", "nomic-embed-text"),
		EmbedCacheSize:        envInt("EMBED_CACHE_SIZE", 10000),
		GentextBaseURL:        envStr("GENTEXT_BASE_URL", ""),
		GentextTimeoutSeconds: envInt("GENTEXT_TIMEOUT_SECONDS", 30),
		GentextMaxRetries:     envInt("GENTEXT_MAX_RETRIES", 3),
		RulesPath:             envStr("RULES_PATH", ""),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535, got %d", c.Port)
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH must not be empty")
	}
	if c.ShortTermTTLHours < 1 {
		return fmt.Errorf("SHORT_TERM_TTL_HOURS must be positive, got %d", c.ShortTermTTLHours)
	}
	if c.EpisodeCapacity < 1 {
		return fmt.Errorf("EPISODE_CAPACITY must be positive, got %d", c.EpisodeCapacity)
	}
	switch c.EpisodeSimilarity {
	case "substring", "vector":
	default:
		return fmt.Errorf("EPISODE_SIMILARITY must be substring or vector, got %q", c.EpisodeSimilarity)
	}
	if c.EpisodeSimilarity == "vector" && c.EmbedBaseURL == "" {
		return fmt.Errorf("EMBED_BASE_URL must not be empty when EPISODE_SIMILARITY is vector")
	}
	if c.GentextMaxRetries < 0 {
		return fmt.Errorf("GENTEXT_MAX_RETRIES must not be negative, got %d", c.GentextMaxRetries)
	}
	return nil
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}
