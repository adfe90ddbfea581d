// Package config loads service configuration from an optional YAML file
// overlaid with environment variables. Environment wins over file wins
// over defaults.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Port     int    `yaml:"port"`
	DBPath   string `yaml:"dbPath"`
	APIKey   string `yaml:"apiKey"`
	LogLevel string `yaml:"logLevel"`

	// Vector index
	QdrantURL    string `yaml:"qdrantUrl"`
	EmbeddingDim int    `yaml:"embeddingDim"`

	// Providers
	AnthropicAPIKey string `yaml:"anthropicApiKey"`
	SummaryModel    string `yaml:"summaryModel"`
	OpenAIAPIKey    string `yaml:"openaiApiKey"`
	EmbeddingModel  string `yaml:"embeddingModel"`

	// Ingestion
	Workers int `yaml:"workers"`

	// Relation mesh maintenance
	CleanupIntervalHours int `yaml:"cleanupIntervalHours"`
}

func defaults() *Config {
	return &Config{
		Port:                 8632,
		DBPath:               "data/recallmesh.db",
		LogLevel:             "info",
		QdrantURL:            "http://localhost:6333",
		EmbeddingDim:         1536,
		SummaryModel:         "claude-3-5-haiku-latest",
		EmbeddingModel:       "text-embedding-3-small",
		Workers:              2,
		CleanupIntervalHours: 24,
	}
}

// Load reads the YAML file at path (skipped when path is empty or the
// file does not exist), then applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	cfg.Port = envInt("PORT", cfg.Port)
	cfg.DBPath = envStr("RECALLMESH_DB_PATH", cfg.DBPath)
	cfg.APIKey = envStr("RECALLMESH_API_KEY", cfg.APIKey)
	cfg.LogLevel = envStr("LOG_LEVEL", cfg.LogLevel)
	cfg.QdrantURL = envStr("QDRANT_URL", cfg.QdrantURL)
	cfg.EmbeddingDim = envInt("EMBEDDING_DIM", cfg.EmbeddingDim)
	cfg.AnthropicAPIKey = envStr("ANTHROPIC_API_KEY", cfg.AnthropicAPIKey)
	cfg.SummaryModel = envStr("SUMMARY_MODEL", cfg.SummaryModel)
	cfg.OpenAIAPIKey = envStr("OPENAI_API_KEY", cfg.OpenAIAPIKey)
	cfg.EmbeddingModel = envStr("EMBEDDING_MODEL", cfg.EmbeddingModel)
	cfg.Workers = envInt("INGEST_WORKERS", cfg.Workers)
	cfg.CleanupIntervalHours = envInt("CLEANUP_INTERVAL_HOURS", cfg.CleanupIntervalHours)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}
	if c.DBPath == "" {
		return fmt.Errorf("dbPath must not be empty")
	}
	if c.EmbeddingDim < 1 {
		return fmt.Errorf("embeddingDim must be positive, got %d", c.EmbeddingDim)
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be positive, got %d", c.Workers)
	}
	if c.CleanupIntervalHours < 1 {
		return fmt.Errorf("cleanupIntervalHours must be positive, got %d", c.CleanupIntervalHours)
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
