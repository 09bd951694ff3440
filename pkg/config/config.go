// Package config centralizes pipeline configuration: LLM provider
// selection, record/replay behavior, and the Wolfi package-index disk
// cache, loaded from an optional YAML file and overridden by environment
// variables.
//
// The dot-notation Provider wraps Config for callers that want a single
// typed-access surface instead of field access, mirroring the teacher's
// provider over a fixed struct rather than a schemaless map.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// RecordingMode controls how pkg/llmreplay persists or replays LLM calls.
type RecordingMode string

const (
	RecordingModeRecord RecordingMode = "record"
	RecordingModeReplay RecordingMode = "replay"
	RecordingModeAuto   RecordingMode = "auto"
)

// LLMConfig holds provider selection and connection settings for the
// tool-calling fallback loop.
type LLMConfig struct {
	Provider         string        `yaml:"provider"`
	Model            string        `yaml:"model"`
	ModelSize        string        `yaml:"model_size"`
	OllamaHost       string        `yaml:"ollama_host"`
	RequestTimeout   time.Duration `yaml:"request_timeout"`
	MaxContextSize   int           `yaml:"max_context_size"`
	OpenAIAPIKey     string        `yaml:"-"`
	AnthropicAPIKey  string        `yaml:"-"`
	GroqAPIKey       string        `yaml:"-"`
}

// RecordingConfig controls the LLM record/replay layer.
type RecordingConfig struct {
	Mode RecordingMode `yaml:"mode"`
	Dir  string        `yaml:"dir"`
}

// CacheConfig controls the Wolfi package-index disk cache.
type CacheConfig struct {
	Enabled bool   `yaml:"enabled"`
	Dir     string `yaml:"dir"`
}

// Config is the root pipeline configuration.
type Config struct {
	LLM       LLMConfig       `yaml:"llm"`
	Recording RecordingConfig `yaml:"recording"`
	Cache     CacheConfig     `yaml:"cache"`
	LogLevel  string          `yaml:"log_level"`
}

// Default returns a Config with the same defaults the embedded LLM and
// on-disk caches fall back to when no file or environment override is
// present.
func Default() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		LLM: LLMConfig{
			Provider:       "embedded",
			ModelSize:      "medium",
			RequestTimeout: 60 * time.Second,
			MaxContextSize: 32000,
		},
		Recording: RecordingConfig{
			Mode: RecordingModeAuto,
			Dir:  fmt.Sprintf("%s/.repostack/recordings", home),
		},
		Cache: CacheConfig{
			Enabled: true,
			Dir:     fmt.Sprintf("%s/.repostack/wolfi-cache", home),
		},
		LogLevel: "info",
	}
}

// Load reads path as YAML into Default()'s base, then applies environment
// variable overrides. A missing file is not an error: the caller is meant
// to be able to run with environment variables alone.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("reading config file %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("OLLAMA_HOST"); v != "" {
		cfg.LLM.OllamaHost = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.LLM.OpenAIAPIKey = v
	}
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
		cfg.LLM.AnthropicAPIKey = v
	}
	if v := os.Getenv("GROQ_API_KEY"); v != "" {
		cfg.LLM.GroqAPIKey = v
	}
	if v := os.Getenv("AIPACK_PROVIDER"); v != "" {
		cfg.LLM.Provider = v
	}
	if v := os.Getenv("AIPACK_MODEL"); v != "" {
		cfg.LLM.Model = v
	}
	if v := os.Getenv("AIPACK_MODEL_SIZE"); v != "" {
		cfg.LLM.ModelSize = v
	}
	if v := os.Getenv("AIPACK_REQUEST_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.LLM.RequestTimeout = d
		}
	}
	if v := os.Getenv("AIPACK_MAX_CONTEXT_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.LLM.MaxContextSize = n
		}
	}
	if v := os.Getenv("AIPACK_RECORDING_MODE"); v != "" {
		cfg.Recording.Mode = RecordingMode(v)
	}
	if v := os.Getenv("AIPACK_RECORDINGS_DIR"); v != "" {
		cfg.Recording.Dir = v
	}
	if v := os.Getenv("AIPACK_CACHE_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Cache.Enabled = b
		}
	}
	if v := os.Getenv("AIPACK_CACHE_DIR"); v != "" {
		cfg.Cache.Dir = v
	}
	if v := os.Getenv("AIPACK_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
}
