package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"solver/internal/llm"
)

const envPrefix = "SOLVER"

// Metadata describes where the loaded configuration came from.
type Metadata struct {
	// ConfigFile is the YAML file that was read, if any.
	ConfigFile string
	// ProviderFallback is set when a missing API key switched the provider
	// to the offline mock.
	ProviderFallback bool
}

// Option customises Load.
type Option func(*loadOptions)

type loadOptions struct {
	file        string
	searchPaths []string
	flags       *pflag.FlagSet
	flagKeys    map[string]string
}

// WithFile reads the given YAML file instead of searching for one. A missing
// file is an error.
func WithFile(path string) Option {
	return func(o *loadOptions) {
		o.file = strings.TrimSpace(path)
	}
}

// WithSearchPaths replaces the candidate config file locations.
func WithSearchPaths(paths ...string) Option {
	return func(o *loadOptions) {
		o.searchPaths = append([]string(nil), paths...)
	}
}

// WithFlags layers command-line flags over everything else. keys maps a
// config key such as "orchestrator.max_retries" to a flag name. Only flags
// the user actually set take effect.
func WithFlags(flags *pflag.FlagSet, keys map[string]string) Option {
	return func(o *loadOptions) {
		o.flags = flags
		o.flagKeys = keys
	}
}

// DefaultSearchPaths are tried in order when no file is given.
func DefaultSearchPaths() []string {
	paths := []string{"solver.yaml"}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".solver", "config.yaml"))
	}
	return paths
}

// Load builds the configuration: defaults, then the YAML file, then
// environment variables, then flags.
func Load(opts ...Option) (Config, Metadata, error) {
	options := loadOptions{searchPaths: DefaultSearchPaths()}
	for _, opt := range opts {
		opt(&options)
	}

	v := viper.New()
	if err := setDefaults(v, Default()); err != nil {
		return Config{}, Metadata{}, err
	}

	meta := Metadata{}
	file, err := resolveFile(options)
	if err != nil {
		return Config{}, Metadata{}, err
	}
	if file != "" {
		v.SetConfigFile(file)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, Metadata{}, fmt.Errorf("read config %s: %w", file, err)
		}
		meta.ConfigFile = file
	}

	if err := bindEnv(v); err != nil {
		return Config{}, Metadata{}, err
	}
	if err := bindFlags(v, options); err != nil {
		return Config{}, Metadata{}, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, Metadata{}, fmt.Errorf("decode config: %w", err)
	}
	normalize(&cfg)

	if cfg.LLM.APIKey == "" && cfg.LLM.Provider != llm.ProviderMock && cfg.Profile != ProfileProduction {
		cfg.LLM.Provider = llm.ProviderMock
		meta.ProviderFallback = true
	}
	if err := Validate(cfg); err != nil {
		return Config{}, Metadata{}, err
	}
	return cfg, meta, nil
}

// setDefaults registers every field of defaults so that environment
// variables can override keys that no file mentions.
func setDefaults(v *viper.Viper, defaults Config) error {
	raw, err := yaml.Marshal(defaults)
	if err != nil {
		return fmt.Errorf("encode defaults: %w", err)
	}
	var tree map[string]any
	if err := yaml.Unmarshal(raw, &tree); err != nil {
		return fmt.Errorf("decode defaults: %w", err)
	}
	for key, value := range flatten("", tree) {
		v.SetDefault(key, value)
	}
	return nil
}

func flatten(prefix string, tree map[string]any) map[string]any {
	out := make(map[string]any)
	for key, value := range tree {
		full := key
		if prefix != "" {
			full = prefix + "." + key
		}
		if nested, ok := value.(map[string]any); ok {
			for k, val := range flatten(full, nested) {
				out[k] = val
			}
			continue
		}
		out[full] = value
	}
	return out
}

func resolveFile(options loadOptions) (string, error) {
	if options.file != "" {
		if _, err := os.Stat(options.file); err != nil {
			return "", fmt.Errorf("config file %s: %w", options.file, err)
		}
		return options.file, nil
	}
	for _, candidate := range options.searchPaths {
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
	}
	return "", nil
}

func bindEnv(v *viper.Viper) error {
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	keys := make([]string, 0, len(envAliases))
	for key := range envAliases {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		names := append([]string{envName(key)}, envAliases[key]...)
		if err := v.BindEnv(append([]string{key}, names...)...); err != nil {
			return fmt.Errorf("bind env for %s: %w", key, err)
		}
	}
	return nil
}

// envName is the prefixed variable for a key: llm.api_key -> SOLVER_LLM_API_KEY.
func envName(key string) string {
	return envPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

func bindFlags(v *viper.Viper, options loadOptions) error {
	if options.flags == nil {
		return nil
	}
	for key, name := range options.flagKeys {
		flag := options.flags.Lookup(name)
		if flag == nil {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return fmt.Errorf("bind flag --%s: %w", name, err)
		}
	}
	return nil
}

func normalize(cfg *Config) {
	cfg.Profile = strings.ToLower(strings.TrimSpace(cfg.Profile))
	cfg.LLM.Provider = strings.ToLower(strings.TrimSpace(cfg.LLM.Provider))
	cfg.LLM.APIKey = strings.TrimSpace(cfg.LLM.APIKey)
	cfg.LLM.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.LLM.BaseURL), "/")
	cfg.Models.Planner = strings.TrimSpace(cfg.Models.Planner)
	cfg.Models.Generator = strings.TrimSpace(cfg.Models.Generator)
	cfg.Models.Critic = strings.TrimSpace(cfg.Models.Critic)
	cfg.Models.Synthesizer = strings.TrimSpace(cfg.Models.Synthesizer)
	cfg.Log.Level = strings.ToLower(strings.TrimSpace(cfg.Log.Level))
	cfg.Log.Format = strings.ToLower(strings.TrimSpace(cfg.Log.Format))
}

var validate = validator.New()

// Validate checks field constraints and cross-field rules.
func Validate(cfg Config) error {
	if err := validate.Struct(cfg); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			msgs := make([]string, 0, len(fieldErrs))
			for _, fe := range fieldErrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	if cfg.LLM.Provider != llm.ProviderMock && cfg.LLM.APIKey == "" {
		return fmt.Errorf("invalid config: provider %q requires llm.api_key (set OPENROUTER_API_KEY)", cfg.LLM.Provider)
	}
	return nil
}
