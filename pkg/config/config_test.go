package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWithoutFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "embedded", cfg.LLM.Provider)
	assert.Equal(t, RecordingModeAuto, cfg.Recording.Mode)
	assert.True(t, cfg.Cache.Enabled)
}

func TestLoadMissingFileIsNotAnError(t *testing.T) {
	cfg, err := Load("/nonexistent/path/to/config.yaml")
	require.NoError(t, err)
	assert.Equal(t, "embedded", cfg.LLM.Provider)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("AIPACK_PROVIDER", "openai")
	t.Setenv("AIPACK_MODEL", "gpt-4o-mini")
	t.Setenv("AIPACK_RECORDING_MODE", "replay")
	t.Setenv("AIPACK_CACHE_ENABLED", "false")
	t.Setenv("AIPACK_REQUEST_TIMEOUT", "15s")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, "gpt-4o-mini", cfg.LLM.Model)
	assert.Equal(t, RecordingModeReplay, cfg.Recording.Mode)
	assert.False(t, cfg.Cache.Enabled)
	assert.Equal(t, 15*time.Second, cfg.LLM.RequestTimeout)
	assert.Equal(t, "sk-test", cfg.LLM.OpenAIAPIKey)
}

func TestProviderDotNotation(t *testing.T) {
	cfg := Default()
	p := NewProvider(cfg)

	provider, err := p.GetString("llm.provider")
	require.NoError(t, err)
	assert.Equal(t, "embedded", provider)

	enabled, err := p.GetBool("cache.enabled")
	require.NoError(t, err)
	assert.True(t, enabled)

	_, err = p.Get("llm.nonexistent")
	assert.Error(t, err)

	_, err = p.Get("nosuchsection.field")
	assert.Error(t, err)
}

func TestProviderGetStringWithDefault(t *testing.T) {
	cfg := Default()
	cfg.LLM.Model = ""
	p := NewProvider(cfg)
	assert.Equal(t, "fallback", p.GetStringWithDefault("llm.model", "fallback"))
}

func TestLoadParsesYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/config.yaml"
	content := []byte("llm:\n  provider: groq\n  model_size: large\ncache:\n  enabled: false\nlog_level: debug\n")
	require.NoError(t, os.WriteFile(path, content, 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "groq", cfg.LLM.Provider)
	assert.Equal(t, "large", cfg.LLM.ModelSize)
	assert.False(t, cfg.Cache.Enabled)
	assert.Equal(t, "debug", cfg.LogLevel)
}
