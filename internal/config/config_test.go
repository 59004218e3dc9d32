package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 6000, cfg.Pipeline.MaxConversationTokens)
	assert.Equal(t, 5, cfg.Pipeline.PriorityMessages)
	assert.Equal(t, 1000, cfg.Pipeline.SummaryTokenThreshold)
	assert.Equal(t, 30*time.Minute, cfg.Pipeline.ContextCacheTTL)
	assert.Equal(t, time.Hour, cfg.Pipeline.ProductCacheTTL)
	assert.Equal(t, 30*time.Second, cfg.OpenAI.Timeout)
	assert.Equal(t, 10*time.Second, cfg.Search.Timeout)
	assert.Equal(t, "gpt-4o-mini", cfg.OpenAI.Model)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	yaml := []byte("server:\n  port: 9000\nopenai:\n  model: gpt-4o\npipeline:\n  priority_messages: 7\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), yaml, 0o600))

	t.Setenv("OPENAI_MODEL_CHAT", "gpt-4-turbo")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, 7, cfg.Pipeline.PriorityMessages)
	assert.Equal(t, "gpt-4-turbo", cfg.OpenAI.Model)
	assert.Equal(t, "sk-test", cfg.OpenAI.APIKey)
}
