package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	cfg := DefaultConfig()
	cfg.AI.AnthropicAPIKey = "sk-ant-test"
	cfg.AI.OpenAIAPIKey = "sk-test"
	return cfg
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 2, cfg.AI.MaxRounds)
	assert.Equal(t, 800, cfg.Index.ChunkSize)
	assert.Equal(t, 100, cfg.Index.ChunkOverlap)
	assert.Equal(t, 5, cfg.Index.MaxResults)
	assert.Equal(t, 2, cfg.Session.MaxHistory)
	assert.Equal(t, 8000, cfg.Server.Port)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		shouldErr bool
	}{
		{"valid", func(*Config) {}, false},
		{"missing anthropic key", func(c *Config) { c.AI.AnthropicAPIKey = "" }, true},
		{"missing openai key", func(c *Config) { c.AI.OpenAIAPIKey = "" }, true},
		{"zero rounds", func(c *Config) { c.AI.MaxRounds = 0 }, true},
		{"zero chunk size", func(c *Config) { c.Index.ChunkSize = 0 }, true},
		{"overlap too large", func(c *Config) { c.Index.ChunkOverlap = c.Index.ChunkSize }, true},
		{"bad port", func(c *Config) { c.Server.Port = 70000 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.shouldErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.AI.MaxRounds)
	assert.NotEmpty(t, cfg.DataDir)
	assert.NotEmpty(t, cfg.Logging.File)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "syllabot.json")
	content := `{
		"ai": {"max_rounds": 4, "anthropic_model": "claude-test"},
		"index": {"chunk_size": 400},
		"server": {"port": 9001},
		"data_dir": "` + filepath.ToSlash(t.TempDir()) + `"
	}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.AI.MaxRounds)
	assert.Equal(t, "claude-test", cfg.AI.AnthropicModel)
	assert.Equal(t, 400, cfg.Index.ChunkSize)
	assert.Equal(t, 9001, cfg.Server.Port)

	// Untouched values keep their defaults.
	assert.Equal(t, 100, cfg.Index.ChunkOverlap)
}

func TestDerivedPaths(t *testing.T) {
	cfg := validConfig()
	cfg.DataDir = "/tmp/syllabot-test"

	assert.Equal(t, filepath.Join("/tmp/syllabot-test", "courses.db"), cfg.DBPath())
	assert.Equal(t, filepath.Join("/tmp/syllabot-test", "sessions"), cfg.SessionsDir())
}
