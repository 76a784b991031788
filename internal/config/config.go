package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

const (
	// VaultPathEnv overrides the vault path from the config file.
	VaultPathEnv = "OBSIDIAN_VAULT_PATH"
	// FallbackAPIKeyEnv is consulted when the configured key variable is empty.
	FallbackAPIKeyEnv = "OPENAI_API_KEY"

	defaultAPIKeyEnv   = "API_KEY"
	defaultBaseURL     = "https://api.openai.com/v1"
	defaultTemperature = 0.1
)

// VaultConfig locates the notes vault.
type VaultConfig struct {
	Path          string   `yaml:"path" validate:"required"`
	Extensions    []string `yaml:"extensions"`
	DefaultFolder string   `yaml:"default_folder" validate:"required,excludesall=/\\"`
}

// OpenAIEmbedderConfig holds configuration for the OpenAI-compatible embedder.
type OpenAIEmbedderConfig struct {
	BaseURL     string `yaml:"base_url" validate:"required,url"`
	APIKeyEnv   string `yaml:"api_key_env" validate:"required"`
	Model       string `yaml:"model" validate:"required"`
	TimeoutSecs int    `yaml:"timeout_secs" validate:"min=1"`
	MaxRetries  int    `yaml:"max_retries" validate:"min=0"`
}

// EmbedderConfig selects and configures the text embedder implementation.
type EmbedderConfig struct {
	Type   string                `yaml:"type" validate:"oneof=tfidf openai"`
	OpenAI *OpenAIEmbedderConfig `yaml:"openai,omitempty"`
}

// OpenAIGeneratorConfig configures the OpenAI-compatible chat model.
type OpenAIGeneratorConfig struct {
	BaseURL     string   `yaml:"base_url" validate:"required,url"`
	APIKeyEnv   string   `yaml:"api_key_env" validate:"required"`
	Model       string   `yaml:"model" validate:"required"`
	// Temperature is a pointer so an explicit 0 survives defaulting.
	Temperature *float64 `yaml:"temperature,omitempty" validate:"omitempty,min=0,max=2"`
	TimeoutSecs int      `yaml:"timeout_secs" validate:"min=1"`
	MaxRetries  int      `yaml:"max_retries" validate:"min=0"`
}

// GeneratorConfig selects and configures the text generator.
type GeneratorConfig struct {
	Type   string                `yaml:"type" validate:"oneof=openai"`
	OpenAI OpenAIGeneratorConfig `yaml:"openai"`
}

// VectorStoreConfig selects and configures the vector store implementation.
type VectorStoreConfig struct {
	Type   string        `yaml:"type" validate:"oneof=memory qdrant"`
	Qdrant *QdrantConfig `yaml:"qdrant,omitempty"`
}

// QdrantConfig contains connection details for a Qdrant vector store.
type QdrantConfig struct {
	Host       string `yaml:"host" validate:"required"`
	Port       int    `yaml:"port" validate:"min=1,max=65535"`
	APIKey     string `yaml:"api_key"`
	Collection string `yaml:"collection" validate:"required"`
	UseTLS     bool   `yaml:"use_tls"`
}

// RetrievalConfig tunes how many notes are retrieved and how much is sent to the model.
type RetrievalConfig struct {
	AnswerTopK       int `yaml:"answer_top_k" validate:"min=1"`
	MaxContextTokens int `yaml:"max_context_tokens" validate:"min=0"`
}

// RevisionConfig bounds the draft review loop. Zero means unbounded.
type RevisionConfig struct {
	MaxRevisions int `yaml:"max_revisions" validate:"min=0"`
}

// ScraperConfig configures web page fetching.
type ScraperConfig struct {
	TimeoutSecs int    `yaml:"timeout_secs" validate:"min=1"`
	MaxChars    int    `yaml:"max_chars" validate:"min=1"`
	UserAgent   string `yaml:"user_agent"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Vault       VaultConfig       `yaml:"vault"`
	Embedder    EmbedderConfig    `yaml:"embedder"`
	Generator   GeneratorConfig   `yaml:"generator"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	Retrieval   RetrievalConfig   `yaml:"retrieval"`
	Revision    RevisionConfig    `yaml:"revision"`
	Scraper     ScraperConfig     `yaml:"scraper"`
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return defaultConfig(), nil
		}
		return nil, err
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	applyConfigDefaults(&cfg)
	return &cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/ragsody/config.yaml.
// If neither exists, it writes defaults to ~/.config/ragsody/config.yaml and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := defaultConfig()
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	return cfg, userPath, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// ApplyEnv applies environment overrides using getenv.
func (c *AppConfig) ApplyEnv(getenv func(string) string) {
	if v := strings.TrimSpace(getenv(VaultPathEnv)); v != "" {
		c.Vault.Path = v
	}
}

// Validate checks the config and reports every invalid field.
func (c *AppConfig) Validate() error {
	err := validator.New().Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, e := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed on '%s' tag", e.Namespace(), e.Tag()))
	}
	return fmt.Errorf("config: invalid: %s", strings.Join(msgs, "; "))
}

// APIKey returns the key from the variable envName, falling back to
// OPENAI_API_KEY.
func APIKey(envName string, getenv func(string) string) string {
	if envName != "" {
		if v := strings.TrimSpace(getenv(envName)); v != "" {
			return v
		}
	}
	return strings.TrimSpace(getenv(FallbackAPIKeyEnv))
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "ragsody", "config.yaml"), nil
}

func defaultConfig() *AppConfig {
	cfg := &AppConfig{}
	applyConfigDefaults(cfg)
	return cfg
}

func applyConfigDefaults(cfg *AppConfig) {
	if len(cfg.Vault.Extensions) == 0 {
		cfg.Vault.Extensions = []string{".md"}
	}
	if cfg.Vault.DefaultFolder == "" {
		cfg.Vault.DefaultFolder = "RAGsody_created"
	}
	if cfg.Embedder.Type == "" {
		cfg.Embedder.Type = "tfidf"
	}
	if cfg.Embedder.Type == "openai" {
		if cfg.Embedder.OpenAI == nil {
			cfg.Embedder.OpenAI = &OpenAIEmbedderConfig{}
		}
		e := cfg.Embedder.OpenAI
		if e.BaseURL == "" {
			e.BaseURL = defaultBaseURL
		}
		if e.APIKeyEnv == "" {
			e.APIKeyEnv = defaultAPIKeyEnv
		}
		if e.Model == "" {
			e.Model = "text-embedding-3-small"
		}
		if e.TimeoutSecs == 0 {
			e.TimeoutSecs = 30
		}
		if e.MaxRetries == 0 {
			e.MaxRetries = 2
		}
	}
	if cfg.Generator.Type == "" {
		cfg.Generator.Type = "openai"
	}
	g := &cfg.Generator.OpenAI
	if g.BaseURL == "" {
		g.BaseURL = defaultBaseURL
	}
	if g.APIKeyEnv == "" {
		g.APIKeyEnv = defaultAPIKeyEnv
	}
	if g.Model == "" {
		g.Model = "gpt-4o-mini"
	}
	if g.Temperature == nil {
		t := defaultTemperature
		g.Temperature = &t
	}
	if g.TimeoutSecs == 0 {
		g.TimeoutSecs = 120
	}
	if g.MaxRetries == 0 {
		g.MaxRetries = 2
	}
	if cfg.VectorStore.Type == "" {
		cfg.VectorStore.Type = "memory"
	}
	if cfg.VectorStore.Type == "qdrant" {
		if cfg.VectorStore.Qdrant == nil {
			cfg.VectorStore.Qdrant = &QdrantConfig{}
		}
		q := cfg.VectorStore.Qdrant
		if q.Host == "" {
			q.Host = "localhost"
		}
		if q.Port == 0 {
			q.Port = 6334
		}
		if q.Collection == "" {
			q.Collection = "ragsody_vault"
		}
	}
	if cfg.Retrieval.AnswerTopK == 0 {
		cfg.Retrieval.AnswerTopK = 5
	}
	if cfg.Retrieval.MaxContextTokens == 0 {
		cfg.Retrieval.MaxContextTokens = 6000
	}
	if cfg.Scraper.TimeoutSecs == 0 {
		cfg.Scraper.TimeoutSecs = 10
	}
	if cfg.Scraper.MaxChars == 0 {
		cfg.Scraper.MaxChars = 12000
	}
}
