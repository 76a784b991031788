package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func env(vars map[string]string) func(string) string {
	return func(k string) string { return vars[k] }
}

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, []string{".md"}, cfg.Vault.Extensions)
	assert.Equal(t, "RAGsody_created", cfg.Vault.DefaultFolder)
	assert.Equal(t, "tfidf", cfg.Embedder.Type)
	assert.Equal(t, "memory", cfg.VectorStore.Type)
	assert.Equal(t, "gpt-4o-mini", cfg.Generator.OpenAI.Model)
	assert.Equal(t, "API_KEY", cfg.Generator.OpenAI.APIKeyEnv)
	assert.Equal(t, 5, cfg.Retrieval.AnswerTopK)
	require.NotNil(t, cfg.Generator.OpenAI.Temperature)
	assert.Equal(t, 0.1, *cfg.Generator.OpenAI.Temperature)
	assert.Equal(t, 0, cfg.Revision.MaxRevisions)
}

func TestLoad_AppliesSectionDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
vault:
  path: /notes
embedder:
  type: openai
vector_store:
  type: qdrant
  qdrant:
    host: qdrant.internal
revision:
  max_revisions: 4
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/notes", cfg.Vault.Path)
	require.NotNil(t, cfg.Embedder.OpenAI)
	assert.Equal(t, "text-embedding-3-small", cfg.Embedder.OpenAI.Model)
	assert.Equal(t, "https://api.openai.com/v1", cfg.Embedder.OpenAI.BaseURL)
	require.NotNil(t, cfg.VectorStore.Qdrant)
	assert.Equal(t, "qdrant.internal", cfg.VectorStore.Qdrant.Host)
	assert.Equal(t, 6334, cfg.VectorStore.Qdrant.Port)
	assert.Equal(t, "ragsody_vault", cfg.VectorStore.Qdrant.Collection)
	assert.Equal(t, 4, cfg.Revision.MaxRevisions)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_KeepsExplicitZeroTemperature(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
vault:
  path: /notes
generator:
  openai:
    temperature: 0
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	require.NotNil(t, cfg.Generator.OpenAI.Temperature)
	assert.Zero(t, *cfg.Generator.OpenAI.Temperature)
	assert.NoError(t, cfg.Validate())
}

func TestValidate_TemperatureRange(t *testing.T) {
	cfg := defaultConfig()
	cfg.Vault.Path = "/vault"
	hot := 2.5
	cfg.Generator.OpenAI.Temperature = &hot

	assert.Error(t, cfg.Validate())
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("vault: [unterminated"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := defaultConfig()
	cfg.Vault.Path = "/vault"
	cfg.Revision.MaxRevisions = 7

	require.NoError(t, Save(path, cfg))
	got, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, cfg, got)
}

func TestValidate(t *testing.T) {
	cfg := defaultConfig()
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AppConfig.Vault.Path")

	cfg.Vault.Path = "/vault"
	require.NoError(t, cfg.Validate())

	cfg.Embedder.Type = "word2vec"
	cfg.Vault.DefaultFolder = "a/b"
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AppConfig.Embedder.Type failed on 'oneof' tag")
	assert.Contains(t, err.Error(), "AppConfig.Vault.DefaultFolder failed on 'excludesall' tag")
}

func TestApplyEnv(t *testing.T) {
	cfg := defaultConfig()
	cfg.Vault.Path = "/from/file"

	cfg.ApplyEnv(env(nil))
	assert.Equal(t, "/from/file", cfg.Vault.Path)

	cfg.ApplyEnv(env(map[string]string{VaultPathEnv: " /from/env "}))
	assert.Equal(t, "/from/env", cfg.Vault.Path)
}

func TestAPIKey(t *testing.T) {
	assert.Equal(t, "primary", APIKey("API_KEY", env(map[string]string{"API_KEY": "primary", "OPENAI_API_KEY": "fallback"})))
	assert.Equal(t, "fallback", APIKey("API_KEY", env(map[string]string{"OPENAI_API_KEY": "fallback"})))
	assert.Equal(t, "", APIKey("API_KEY", env(nil)))
}
