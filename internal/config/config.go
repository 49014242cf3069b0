package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config represents runtime configuration for the service.
type Config struct {
	BasicConfig BasicConfig               `json:"basic_config"`
	Databases   map[string]DatabaseConfig `json:"databases"`
	Redis       RedisConfig               `json:"redis"`
	Providers   map[string]ProviderConfig `json:"providers"`
	Models      ModelsConfig              `json:"models"`
	Fallback    FallbackConfig            `json:"fallback"`
}

type BasicConfig struct {
	ServerAddress     string `json:"server_address"`
	MinWorkers        int    `json:"min_workers"`
	MaxWorkers        int    `json:"max_workers"`
	QueueSize         int    `json:"queue_size"`
	WorkerIdleTimeout int    `json:"worker_idle_timeout"` // minutes
}

type DatabaseConfig struct {
	DSN      string `json:"dsn"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	DBName   string `json:"db_name"`
	Params   string `json:"params"`
}

type RedisConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

// ProviderConfig holds per-provider connection settings (openai, gemini, claude).
type ProviderConfig struct {
	BaseURL string `json:"base_url"`
	APIKey  string `json:"api_key"`
}

// ModelConfig describes one completion backend tier.
type ModelConfig struct {
	Provider           string  `json:"provider"`
	Model              string  `json:"model"`
	ContextWindow      int     `json:"context_window"`
	MaxOutputTokens    int     `json:"max_output_tokens"`
	InputRatePer1K     float64 `json:"input_rate_per_1k"`  // USD per 1K input tokens
	OutputRatePer1K    float64 `json:"output_rate_per_1k"` // USD per 1K output tokens
	LatencyThresholdMs int64   `json:"latency_threshold_ms"`
}

// ModelsConfig pairs the primary (quality) and fallback (cost/speed) tiers.
type ModelsConfig struct {
	Primary  ModelConfig `json:"primary"`
	Fallback ModelConfig `json:"fallback"`
}

// FallbackConfig carries the decision strategy and retry policy knobs.
type FallbackConfig struct {
	Strategy                  string  `json:"strategy"`
	MaxRetries                int     `json:"max_retries"`
	BaseDelayMs               int64   `json:"base_delay_ms"`
	BackoffMultiplier         float64 `json:"backoff_multiplier"`
	MaxDelayMs                int64   `json:"max_delay_ms"`
	CostThresholdUSD          float64 `json:"cost_threshold_usd"`
	ComplexTokenCeiling       int     `json:"complex_token_ceiling"`
	MaxCustomInstructionChars int     `json:"max_custom_instruction_chars"`
	MaxResponseChars          int     `json:"max_response_chars"`
	HistoryWindow             int     `json:"history_window"`
}

const (
	DefaultMaxRetries                = 3
	DefaultBaseDelayMs               = 500
	DefaultBackoffMultiplier         = 2.0
	DefaultMaxDelayMs                = 30_000
	DefaultComplexTokenCeiling       = 10_000
	DefaultCostThresholdUSD          = 0.25
	DefaultMaxCustomInstructionChars = 2_000
	DefaultMaxResponseChars          = 50_000
	DefaultHistoryWindow             = 10
)

// Load reads configuration from the provided path (defaults to config.json).
func Load(path string) (*Config, error) {
	if path == "" {
		path = "config.json"
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}

	file, err := os.Open(absPath)
	if err != nil {
		return nil, fmt.Errorf("open config %s: %w", absPath, err)
	}
	defer file.Close()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if dbCfg, ok := cfg.Databases["sqlite3"]; ok && dbCfg.DSN != "" && dbCfg.DSN != ":memory:" {
		if !filepath.IsAbs(dbCfg.DSN) {
			dbCfg.DSN = filepath.Join(filepath.Dir(absPath), dbCfg.DSN)
			cfg.Databases["sqlite3"] = dbCfg
		}
	}

	cfg.Fallback.ApplyDefaults()

	if cfg.Models.Primary.Model == "" || cfg.Models.Fallback.Model == "" {
		return nil, fmt.Errorf("models.primary and models.fallback must be configured")
	}
	if cfg.Models.Primary.ContextWindow <= 0 || cfg.Models.Fallback.ContextWindow <= 0 {
		return nil, fmt.Errorf("model context_window must be positive")
	}

	return &cfg, nil
}

// ApplyDefaults fills zero-valued retry and threshold knobs.
func (f *FallbackConfig) ApplyDefaults() {
	if f.Strategy == "" {
		f.Strategy = "smart"
	}
	if f.MaxRetries <= 0 {
		f.MaxRetries = DefaultMaxRetries
	}
	if f.BaseDelayMs <= 0 {
		f.BaseDelayMs = DefaultBaseDelayMs
	}
	if f.BackoffMultiplier <= 1 {
		f.BackoffMultiplier = DefaultBackoffMultiplier
	}
	if f.MaxDelayMs <= 0 {
		f.MaxDelayMs = DefaultMaxDelayMs
	}
	if f.CostThresholdUSD <= 0 {
		f.CostThresholdUSD = DefaultCostThresholdUSD
	}
	if f.ComplexTokenCeiling <= 0 {
		f.ComplexTokenCeiling = DefaultComplexTokenCeiling
	}
	if f.MaxCustomInstructionChars <= 0 {
		f.MaxCustomInstructionChars = DefaultMaxCustomInstructionChars
	}
	if f.MaxResponseChars <= 0 {
		f.MaxResponseChars = DefaultMaxResponseChars
	}
	if f.HistoryWindow <= 0 {
		f.HistoryWindow = DefaultHistoryWindow
	}
}
