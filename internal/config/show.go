package config

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"solver/internal/observability"
)

// Redacted returns a copy safe to print.
func (c Config) Redacted() Config {
	c.LLM.APIKey = observability.SanitizeAPIKey(c.LLM.APIKey)
	c.Server.AllowedOrigins = append([]string(nil), c.Server.AllowedOrigins...)
	return c
}

// RenderYAML renders the redacted configuration as YAML.
func RenderYAML(cfg Config) (string, error) {
	out, err := yaml.Marshal(cfg.Redacted())
	if err != nil {
		return "", fmt.Errorf("encode config: %w", err)
	}
	return string(out), nil
}
