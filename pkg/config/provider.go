package config

import (
	"fmt"
	"strings"
)

// Provider gives dot-notation, type-safe access to a Config, e.g.
// "llm.provider" or "cache.dir", for callers that want a single lookup
// surface instead of reaching into nested struct fields directly.
type Provider struct {
	config *Config
}

func NewProvider(cfg *Config) *Provider {
	return &Provider{config: cfg}
}

func (p *Provider) Get(key string) (interface{}, error) {
	parts := strings.Split(key, ".")
	if len(parts) != 2 {
		return nil, fmt.Errorf("config key %q must have exactly one dot (section.field)", key)
	}
	section, field := parts[0], parts[1]

	switch section {
	case "llm":
		switch field {
		case "provider":
			return p.config.LLM.Provider, nil
		case "model":
			return p.config.LLM.Model, nil
		case "model_size":
			return p.config.LLM.ModelSize, nil
		case "ollama_host":
			return p.config.LLM.OllamaHost, nil
		case "request_timeout":
			return p.config.LLM.RequestTimeout, nil
		case "max_context_size":
			return p.config.LLM.MaxContextSize, nil
		}
	case "recording":
		switch field {
		case "mode":
			return p.config.Recording.Mode, nil
		case "dir":
			return p.config.Recording.Dir, nil
		}
	case "cache":
		switch field {
		case "enabled":
			return p.config.Cache.Enabled, nil
		case "dir":
			return p.config.Cache.Dir, nil
		}
	case "log_level":
		return p.config.LogLevel, nil
	}
	return nil, fmt.Errorf("unknown configuration key %q", key)
}

func (p *Provider) Has(key string) bool {
	_, err := p.Get(key)
	return err == nil
}

func (p *Provider) GetString(key string) (string, error) {
	v, err := p.Get(key)
	if err != nil {
		return "", err
	}
	if s, ok := v.(string); ok {
		return s, nil
	}
	return "", fmt.Errorf("configuration key %s is not a string (got %T)", key, v)
}

func (p *Provider) GetStringWithDefault(key, def string) string {
	s, err := p.GetString(key)
	if err != nil || s == "" {
		return def
	}
	return s
}

func (p *Provider) GetBool(key string) (bool, error) {
	v, err := p.Get(key)
	if err != nil {
		return false, err
	}
	if b, ok := v.(bool); ok {
		return b, nil
	}
	return false, fmt.Errorf("configuration key %s is not a bool (got %T)", key, v)
}
