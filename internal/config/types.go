// Package config loads solver settings from defaults, an optional YAML file,
// the environment and command-line flags, in increasing precedence.
package config

import (
	"time"

	"solver/internal/agents"
	solvererrors "solver/internal/errors"
	"solver/internal/llm"
	"solver/internal/observability"
	"solver/internal/orchestrator"
	"solver/internal/sandbox"
)

// Profiles. Outside production a missing API key falls back to the offline
// mock provider.
const (
	ProfileDevelopment = "development"
	ProfileProduction  = "production"
)

const (
	DefaultBaseURL       = "https://openrouter.ai/api/v1"
	DefaultModel         = "openai/gpt-4.1"
	DefaultFallbackModel = "openai/gpt-4o-mini"
)

// Config is the complete runtime configuration.
type Config struct {
	Profile      string                      `mapstructure:"profile" yaml:"profile" validate:"oneof=development production test"`
	LLM          llm.Config                  `mapstructure:"llm" yaml:"llm"`
	Models       agents.Models               `mapstructure:"models" yaml:"models"`
	Orchestrator orchestrator.Config         `mapstructure:"orchestrator" yaml:"orchestrator"`
	Sandbox      sandbox.Limits              `mapstructure:"sandbox" yaml:"sandbox"`
	Prompts      PromptConfig                `mapstructure:"prompts" yaml:"prompts"`
	Log          observability.LoggingConfig `mapstructure:"log" yaml:"log"`
	Tracing      observability.TracingConfig `mapstructure:"tracing" yaml:"tracing"`
	Server       ServerConfig                `mapstructure:"server" yaml:"server"`
	Batch        BatchConfig                 `mapstructure:"batch" yaml:"batch"`
}

// PromptConfig bounds prompt sizes.
type PromptConfig struct {
	// FeedbackTokens caps critique feedback repeated to the generator. Zero
	// disables truncation.
	FeedbackTokens int `mapstructure:"feedback_tokens" yaml:"feedback_tokens" validate:"gte=0"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Addr           string        `mapstructure:"addr" yaml:"addr" validate:"required"`
	AllowedOrigins []string      `mapstructure:"allowed_origins" yaml:"allowed_origins"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" yaml:"request_timeout" validate:"gte=0"`
	MaxQueryBytes  int           `mapstructure:"max_query_bytes" yaml:"max_query_bytes" validate:"gt=0"`
}

// BatchConfig configures the batch runner.
type BatchConfig struct {
	Concurrency int `mapstructure:"concurrency" yaml:"concurrency" validate:"gte=1"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Profile: ProfileDevelopment,
		LLM: llm.Config{
			Provider:      llm.ProviderOpenRouter,
			BaseURL:       DefaultBaseURL,
			FallbackModel: DefaultFallbackModel,
			Timeout:       60 * time.Second,
			Retry:         solvererrors.DefaultRetryConfig(),
			Cache:         llm.CacheConfig{Size: 256, TTL: 10 * time.Minute},
		},
		Models:       agents.DefaultModels(DefaultModel),
		Orchestrator: orchestrator.DefaultConfig(),
		Sandbox:      sandbox.DefaultLimits(),
		Prompts:      PromptConfig{FeedbackTokens: 512},
		Log:          observability.DefaultLoggingConfig(),
		Tracing:      observability.DefaultTracingConfig(),
		Server: ServerConfig{
			Addr:           ":8080",
			AllowedOrigins: []string{"*"},
			RequestTimeout: 2 * time.Minute,
			MaxQueryBytes:  8 * 1024,
		},
		Batch: BatchConfig{Concurrency: 4},
	}
}
