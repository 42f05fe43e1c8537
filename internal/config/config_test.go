// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/research-assistant/internal/secrets"
	"github.com/pdiddy/research-assistant/pkg/types"
)

// isolate keeps the developer's home config, .env and environment out of a
// test.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	for _, names := range envAliases {
		for _, name := range names {
			unsetenv(t, name)
		}
	}
	for _, kv := range os.Environ() {
		if name, _, _ := strings.Cut(kv, "="); strings.HasPrefix(name, EnvPrefix+"_") {
			unsetenv(t, name)
		}
	}
	old := DotEnvPath
	DotEnvPath = filepath.Join(dir, ".env")
	t.Cleanup(func() { DotEnvPath = old })
	return dir
}

// unsetenv removes name for the duration of the test. t.Setenv records the
// value to restore.
func unsetenv(t *testing.T, name string) {
	t.Helper()
	t.Setenv(name, "")
	require.NoError(t, os.Unsetenv(name))
}

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	p := filepath.Join(dir, "research-assistant.yaml")
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestLoadDefaults(t *testing.T) {
	isolate(t)

	cfg, err := Load(viper.New(), "", nil)
	require.NoError(t, err)
	assert.Equal(t, types.DefaultConfig(), cfg)
}

func TestLoadFile(t *testing.T) {
	dir := isolate(t)
	path := writeConfig(t, dir, `
debug: true
models:
  timeout: 5s
  embedding_backend: ollama
  embedding_dim: 384
processing:
  supported_formats: [".pdf"]
database:
  vector_db_type: memory
api:
  port: 9100
  rate_limit_window: 10m
research:
  section_patterns:
    - type: abstract
      keywords: [abstract]
    - type: methods
      keywords: [methods, approach]
`)

	cfg, err := Load(viper.New(), path, nil)
	require.NoError(t, err)

	assert.True(t, cfg.Debug)
	assert.Equal(t, 5*time.Second, cfg.Models.Timeout)
	assert.Equal(t, types.EmbeddingOllama, cfg.Models.EmbeddingBackend)
	assert.Equal(t, 384, cfg.Models.EmbeddingDim)
	assert.Equal(t, []string{".pdf"}, cfg.Processing.SupportedFormats)
	assert.Equal(t, types.VectorMemory, cfg.Database.VectorDBType)
	assert.Equal(t, 9100, cfg.API.Port)
	assert.Equal(t, 10*time.Minute, cfg.API.RateLimitWindow)
	require.Len(t, cfg.Research.SectionPatterns, 2)
	assert.Equal(t, types.SectionPattern{Type: "methods", Keywords: []string{"methods", "approach"}}, cfg.Research.SectionPatterns[1])

	// Untouched keys keep their defaults.
	assert.Equal(t, "./data/papers.db", cfg.Database.MetadataDBPath)
	assert.Equal(t, 8501, cfg.API.WebPort)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	dir := isolate(t)
	_, err := Load(viper.New(), filepath.Join(dir, "nope.yaml"), nil)
	assert.Error(t, err)
}

func TestLoadEnvironment(t *testing.T) {
	isolate(t)
	t.Setenv("RESEARCH_API_PORT", "9000")
	t.Setenv("RESEARCH_WEB_PORT", "9501")
	t.Setenv("RESEARCH_SCIENTIFIC_MODEL", "allenai/specter")
	t.Setenv("RESEARCH_LOG_LEVEL", "debug")
	t.Setenv("VECTOR_DB_PATH", "/srv/vectors")
	t.Setenv("METADATA_DB_PATH", "/srv/papers.db")
	t.Setenv("RESEARCH_DATABASE_MAX_RESULTS", "5")
	t.Setenv("RESEARCH_PROCESSING_WATCH_DEBOUNCE", "2s")

	cfg, err := Load(viper.New(), "", nil)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.API.Port)
	assert.Equal(t, 9501, cfg.API.WebPort)
	assert.Equal(t, "allenai/specter", cfg.Models.ScientificEmbeddings)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "/srv/vectors", cfg.Database.VectorDBPath)
	assert.Equal(t, "/srv/papers.db", cfg.Database.MetadataDBPath)
	assert.Equal(t, 5, cfg.Database.MaxResults)
	assert.Equal(t, 2*time.Second, cfg.Processing.WatchDebounce)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := isolate(t)
	path := writeConfig(t, dir, "api:\n  port: 7000\n")
	t.Setenv("RESEARCH_API_PORT", "7100")

	cfg, err := Load(viper.New(), path, nil)
	require.NoError(t, err)
	assert.Equal(t, 7100, cfg.API.Port)
}

func TestLoadDotEnv(t *testing.T) {
	isolate(t)
	require.NoError(t, os.WriteFile(DotEnvPath, []byte("RESEARCH_TELEMETRY_SERVICE_NAME=from-dotenv\n"), 0o644))
	t.Cleanup(func() { os.Unsetenv("RESEARCH_TELEMETRY_SERVICE_NAME") })

	cfg, err := Load(viper.New(), "", nil)
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", cfg.Telemetry.ServiceName)
}

func TestLoadSecrets(t *testing.T) {
	dir := isolate(t)
	path := writeConfig(t, dir, "api:\n  jwt_secret: from-file\n")

	cfg, err := Load(viper.New(), path, map[string]string{
		secrets.AnthropicAPIKey: "sk-ant",
		secrets.OpenAlexEmail:   "me@example.org",
		secrets.JWTSecret:       "from-secrets",
	})
	require.NoError(t, err)

	assert.Equal(t, "sk-ant", cfg.Models.QA.APIKey)
	assert.Equal(t, "me@example.org", cfg.Research.OpenAlexEmail)
	assert.Equal(t, "from-file", cfg.API.JWTSecret, "configured values win over secrets")
	assert.Empty(t, cfg.Database.WeaviateAPIKey)
}

func TestLoadIgnoresAmbientEnvironment(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "sk-ambient")
	t.Setenv("API_PORT", "9999")
	t.Setenv("RESEARCH_LOG_LEVEL", "error")
	isolate(t)

	cfg, err := Load(viper.New(), "", map[string]string{secrets.AnthropicAPIKey: "sk-ant"})
	require.NoError(t, err)
	assert.Equal(t, "sk-ant", cfg.Models.QA.APIKey)
	assert.Equal(t, types.DefaultConfig().API.Port, cfg.API.Port)
	assert.Equal(t, types.DefaultConfig().LogLevel, cfg.LogLevel)
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		errMsg  string
	}{
		{"unknown embedding backend", "models:\n  embedding_backend: bert\n", "embedding_backend"},
		{"threshold out of range", "research:\n  qa_confidence_threshold: 1.5\n", "qa_confidence_threshold"},
		{"s3 without bucket", "archive:\n  backend: s3\n", "archive.bucket"},
		{"auth without secret", "api:\n  auth_enabled: true\n", "jwt_secret"},
		{"zero file size", "processing:\n  max_file_size: 0\n", "max_file_size"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := isolate(t)
			_, err := Load(viper.New(), writeConfig(t, dir, tt.content), nil)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestEnsureDirs(t *testing.T) {
	dir := t.TempDir()
	cfg := types.DefaultConfig()
	cfg.Processing.TempDir = filepath.Join(dir, "temp")
	cfg.Processing.UploadDir = filepath.Join(dir, "uploads")
	cfg.Processing.ProcessedDir = filepath.Join(dir, "processed")
	cfg.Database.MetadataDBPath = filepath.Join(dir, "db", "papers.db")
	cfg.Database.VectorDBPath = filepath.Join(dir, "vectors")

	require.NoError(t, cfg.EnsureDirs())
	for _, sub := range []string{"temp", "uploads", "processed", "db", "vectors"} {
		info, err := os.Stat(filepath.Join(dir, sub))
		require.NoError(t, err, sub)
		assert.True(t, info.IsDir())
	}
}
