package llm

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/time/rate"

	solvererrors "solver/internal/errors"
	"solver/internal/logging"
)

// Provider names accepted by Build.
const (
	ProviderOpenRouter = "openrouter"
	ProviderOpenAI     = "openai"
	ProviderMock       = "mock"
)

// RateLimitConfig bounds outgoing completion requests.
type RateLimitConfig struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second" yaml:"requests_per_second" validate:"gte=0"`
	Burst             int     `mapstructure:"burst" yaml:"burst" validate:"gte=0"`
}

// Config selects and tunes the provider stack.
type Config struct {
	Provider      string                   `mapstructure:"provider" yaml:"provider" validate:"oneof=openrouter openai mock"`
	APIKey        string                   `mapstructure:"api_key" yaml:"api_key"`
	BaseURL       string                   `mapstructure:"base_url" yaml:"base_url" validate:"omitempty,url"`
	Referer       string                   `mapstructure:"referer" yaml:"referer"`
	Title         string                   `mapstructure:"title" yaml:"title"`
	FallbackModel string                   `mapstructure:"fallback_model" yaml:"fallback_model"`
	Temperature   float32                  `mapstructure:"temperature" yaml:"temperature" validate:"gte=0,lte=2"`
	MaxTokens     int                      `mapstructure:"max_tokens" yaml:"max_tokens" validate:"gte=0"`
	Timeout       time.Duration            `mapstructure:"timeout" yaml:"timeout" validate:"gte=0"`
	Retry         solvererrors.RetryConfig `mapstructure:"retry" yaml:"retry"`
	RateLimit     RateLimitConfig          `mapstructure:"rate_limit" yaml:"rate_limit"`
	Cache         CacheConfig              `mapstructure:"cache" yaml:"cache"`
}

// Build composes the configured provider with its decorators. From the
// outside in: cache, retry, rate limit, transport. Cached replies skip the
// limiter and every retry waits for a token.
func Build(config Config, logger logging.Logger) (Provider, error) {
	logger = logging.OrNop(logger)

	var base Provider
	switch strings.ToLower(strings.TrimSpace(config.Provider)) {
	case ProviderMock:
		logger.Info("using offline mock provider")
		return WithCache(NewMock(), config.Cache), nil
	case ProviderOpenRouter, ProviderOpenAI, "":
		if config.APIKey == "" {
			return nil, fmt.Errorf("provider %q requires an API key", config.Provider)
		}
		base = NewOpenAIProvider(config, logger)
	default:
		return nil, fmt.Errorf("unknown provider %q", config.Provider)
	}

	p := WithRateLimit(base, rate.Limit(config.RateLimit.RequestsPerSecond), config.RateLimit.Burst)
	p = WithRetry(p, config.Retry, config.FallbackModel, logger)
	p = WithCache(p, config.Cache)
	return p, nil
}
