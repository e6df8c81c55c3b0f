package config

import (
	"time"

	"github.com/karouh/molehunt/internal/logger"
)

// Config represents the main molehunt configuration
type Config struct {
	// Logging
	Logging logger.Config `json:"logging" mapstructure:"logging"`

	// AI provider profiles
	Providers []ProviderProfile `json:"providers" mapstructure:"providers"`

	// Runner
	Runner RunnerConfig `json:"runner" mapstructure:"runner"`

	// Detection
	Detection DetectionConfig `json:"detection" mapstructure:"detection"`

	// Store
	Store StoreConfig `json:"store" mapstructure:"store"`

	// Janitor
	Janitor JanitorConfig `json:"janitor" mapstructure:"janitor"`

	// Data directory
	DataDir string `json:"data_dir" mapstructure:"data_dir"`

	// CatalogOverridePath points at an optional sabotage strategy
	// override file watched for changes.
	CatalogOverridePath string `json:"catalog_override_path" mapstructure:"catalog_override_path"`
}

// ProviderProfile represents an AI provider profile
type ProviderProfile struct {
	Provider string `json:"provider" mapstructure:"provider"` // anthropic, openai
	APIKey   string `json:"api_key" mapstructure:"api_key"`
	BaseURL  string `json:"base_url" mapstructure:"base_url"`
}

// RunnerConfig holds turn runner settings
type RunnerConfig struct {
	Model             string        `json:"model" mapstructure:"model"`
	Temperature       float64       `json:"temperature" mapstructure:"temperature"`
	MaxTokens         int           `json:"max_tokens" mapstructure:"max_tokens"`
	MaxTurns          int           `json:"max_turns" mapstructure:"max_turns"`
	MaxRetries        int           `json:"max_retries" mapstructure:"max_retries"`
	RetryBackoff      time.Duration `json:"retry_backoff" mapstructure:"retry_backoff"`
	PausePollInterval time.Duration `json:"pause_poll_interval" mapstructure:"pause_poll_interval"`
	TurnTimeout       time.Duration `json:"turn_timeout" mapstructure:"turn_timeout"`
}

// DetectionConfig holds detection engine settings
type DetectionConfig struct {
	// Weights for the four rule signals; must sum to 1.
	ToolUsageWeight          float64 `json:"tool_usage_weight" mapstructure:"tool_usage_weight"`
	TimingWeight             float64 `json:"timing_weight" mapstructure:"timing_weight"`
	MessageAnomalyWeight     float64 `json:"message_anomaly_weight" mapstructure:"message_anomaly_weight"`
	InformationQualityWeight float64 `json:"information_quality_weight" mapstructure:"information_quality_weight"`

	// Direction: flag_low_success or flag_high_success.
	Direction string `json:"direction" mapstructure:"direction"`

	// Judgment pass settings; an empty model disables it.
	JudgeModel       string  `json:"judge_model" mapstructure:"judge_model"`
	JudgeTemperature float64 `json:"judge_temperature" mapstructure:"judge_temperature"`
	JudgeMaxTokens   int     `json:"judge_max_tokens" mapstructure:"judge_max_tokens"`
}

// StoreConfig holds transcript store settings
type StoreConfig struct {
	DBPath string `json:"db_path" mapstructure:"db_path"`
}

// JanitorConfig holds session retention settings
type JanitorConfig struct {
	ArchiveDir string        `json:"archive_dir" mapstructure:"archive_dir"`
	Retention  time.Duration `json:"retention" mapstructure:"retention"`
	Schedule   string        `json:"schedule" mapstructure:"schedule"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Logging: logger.DefaultConfig(),
		Runner: RunnerConfig{
			Model:             "claude-3-5-sonnet-20241022",
			Temperature:       0.7,
			MaxTokens:         1024,
			MaxTurns:          10,
			MaxRetries:        2,
			RetryBackoff:      500 * time.Millisecond,
			PausePollInterval: 250 * time.Millisecond,
			TurnTimeout:       60 * time.Second,
		},
		Detection: DetectionConfig{
			ToolUsageWeight:          0.25,
			TimingWeight:             0.30,
			MessageAnomalyWeight:     0.20,
			InformationQualityWeight: 0.25,
			Direction:                "flag_low_success",
			JudgeTemperature:         0.3,
			JudgeMaxTokens:           500,
		},
		Janitor: JanitorConfig{
			Retention: 24 * time.Hour,
			Schedule:  "@every 1h",
		},
	}
}
