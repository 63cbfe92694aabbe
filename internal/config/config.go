// Package config provides configuration management for Liaison.
// It loads settings from an optional YAML file and environment variables
// with the LIAISON_ prefix, and provides sensible defaults for all options.
// Precedence: environment variable > config file > default.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration settings for the Liaison agent service.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	LLM     LLMConfig     `yaml:"llm"`
	Agent   AgentConfig   `yaml:"agent"`
	Extract ExtractConfig `yaml:"extract"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Port      int     `yaml:"port"`       // Server port (default: 7070)
	Host      string  `yaml:"host"`       // Server host (default: 127.0.0.1)
	RateLimit float64 `yaml:"rate_limit"` // Requests per second per server (default: 25)
	RateBurst int     `yaml:"rate_burst"` // Rate limiter burst (default: 50)
}

// StorageConfig contains database configuration.
type StorageConfig struct {
	Engine   string `yaml:"engine"`    // Storage engine: sqlite, postgres (default: sqlite)
	DataPath string `yaml:"data_path"` // SQLite data directory (default: ./data)
	DSN      string `yaml:"dsn"`       // Postgres DSN, required when engine is postgres
}

// LLMConfig contains language model provider configuration.
type LLMConfig struct {
	Provider           string `yaml:"provider"`            // Text provider: anthropic, openai (default: anthropic)
	AnthropicAPIKey    string `yaml:"anthropic_api_key"`   // Anthropic API key
	AnthropicModel     string `yaml:"anthropic_model"`     // Anthropic model name
	OpenAIAPIKey       string `yaml:"openai_api_key"`      // OpenAI API key (also used for embeddings)
	OpenAIModel        string `yaml:"openai_model"`        // OpenAI model name
	EmbeddingModel     string `yaml:"embedding_model"`     // Embedding model (default: text-embedding-3-small)
	EmbeddingCacheSize int    `yaml:"embedding_cache_size"` // LRU cache entries (default: 1024)
}

// AgentConfig contains orchestrator behavior settings.
type AgentConfig struct {
	AutoExecute bool   `yaml:"auto_execute"` // Execute actions immediately when a request omits the flag (default: true)
	ExpirySweep string `yaml:"expiry_sweep"` // Memory expiry sweep interval (default: 1h)
}

// ExtractConfig contains extraction queue settings.
type ExtractConfig struct {
	QueueSize int    `yaml:"queue_size"` // Backlog capacity (default: 256)
	Workers   int    `yaml:"workers"`    // Worker goroutines (default: 2)
	JobTimeout string `yaml:"job_timeout"` // Per-job timeout (default: 2m)
}

// LoadConfig loads configuration. When LIAISON_CONFIG names a YAML file its
// values overlay the defaults, and environment variables override both.
func LoadConfig() (*Config, error) {
	cfg := defaultConfig()

	if path := os.Getenv("LIAISON_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: failed to read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: failed to parse %s: %w", path, err)
		}
	}

	applyEnv(cfg)

	if cfg.Storage.Engine == "postgres" && cfg.Storage.DSN == "" {
		return nil, fmt.Errorf("config: LIAISON_STORAGE_DSN is required when engine is postgres")
	}
	return cfg, nil
}

// ExpirySweepInterval parses the sweep interval, falling back to hourly.
func (c *Config) ExpirySweepInterval() time.Duration {
	d, err := time.ParseDuration(c.Agent.ExpirySweep)
	if err != nil || d <= 0 {
		return time.Hour
	}
	return d
}

// ExtractJobTimeout parses the extraction job timeout, falling back to 2m.
func (c *Config) ExtractJobTimeout() time.Duration {
	d, err := time.ParseDuration(c.Extract.JobTimeout)
	if err != nil || d <= 0 {
		return 2 * time.Minute
	}
	return d
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:      7070,
			Host:      "127.0.0.1",
			RateLimit: 25,
			RateBurst: 50,
		},
		Storage: StorageConfig{
			Engine:   "sqlite",
			DataPath: "./data",
		},
		LLM: LLMConfig{
			Provider:           "anthropic",
			EmbeddingModel:     "text-embedding-3-small",
			EmbeddingCacheSize: 1024,
		},
		Agent: AgentConfig{
			AutoExecute: true,
			ExpirySweep: "1h",
		},
		Extract: ExtractConfig{
			QueueSize:  256,
			Workers:    2,
			JobTimeout: "2m",
		},
	}
}

// applyEnv overrides config fields from LIAISON_ environment variables.
func applyEnv(cfg *Config) {
	cfg.Server.Port = getEnvInt("LIAISON_PORT", cfg.Server.Port)
	cfg.Server.Host = getEnv("LIAISON_HOST", cfg.Server.Host)
	cfg.Server.RateLimit = getEnvFloat("LIAISON_RATE_LIMIT", cfg.Server.RateLimit)
	cfg.Server.RateBurst = getEnvInt("LIAISON_RATE_BURST", cfg.Server.RateBurst)

	cfg.Storage.Engine = getEnv("LIAISON_STORAGE_ENGINE", cfg.Storage.Engine)
	cfg.Storage.DataPath = getEnv("LIAISON_DATA_PATH", cfg.Storage.DataPath)
	cfg.Storage.DSN = getEnv("LIAISON_STORAGE_DSN", cfg.Storage.DSN)

	cfg.LLM.Provider = getEnv("LIAISON_LLM_PROVIDER", cfg.LLM.Provider)
	cfg.LLM.AnthropicAPIKey = getEnv("LIAISON_ANTHROPIC_API_KEY", cfg.LLM.AnthropicAPIKey)
	cfg.LLM.AnthropicModel = getEnv("LIAISON_ANTHROPIC_MODEL", cfg.LLM.AnthropicModel)
	cfg.LLM.OpenAIAPIKey = getEnv("LIAISON_OPENAI_API_KEY", cfg.LLM.OpenAIAPIKey)
	cfg.LLM.OpenAIModel = getEnv("LIAISON_OPENAI_MODEL", cfg.LLM.OpenAIModel)
	cfg.LLM.EmbeddingModel = getEnv("LIAISON_EMBEDDING_MODEL", cfg.LLM.EmbeddingModel)
	cfg.LLM.EmbeddingCacheSize = getEnvInt("LIAISON_EMBEDDING_CACHE_SIZE", cfg.LLM.EmbeddingCacheSize)

	cfg.Agent.AutoExecute = getEnvBool("LIAISON_AUTO_EXECUTE", cfg.Agent.AutoExecute)
	cfg.Agent.ExpirySweep = getEnv("LIAISON_EXPIRY_SWEEP", cfg.Agent.ExpirySweep)

	cfg.Extract.QueueSize = getEnvInt("LIAISON_EXTRACT_QUEUE_SIZE", cfg.Extract.QueueSize)
	cfg.Extract.Workers = getEnvInt("LIAISON_EXTRACT_WORKERS", cfg.Extract.Workers)
	cfg.Extract.JobTimeout = getEnv("LIAISON_EXTRACT_JOB_TIMEOUT", cfg.Extract.JobTimeout)
}

// getEnv retrieves a string environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an integer environment variable or returns a default
// value. An unparseable value falls back to the default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvFloat retrieves a float environment variable or returns a default
// value.
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvBool retrieves a boolean environment variable or returns a default
// value. It recognizes "true", "1", "yes" and "false", "0", "no".
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		switch value {
		case "true", "1", "yes", "True", "TRUE", "Yes", "YES":
			return true
		case "false", "0", "no", "False", "FALSE", "No", "NO":
			return false
		}
	}
	return defaultValue
}
