package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the ragcore API configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Ollama    OllamaConfig    `yaml:"ollama"`
	Qdrant    QdrantConfig    `yaml:"qdrant"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Cache     CacheConfig     `yaml:"cache"`
	Export    ExportConfig    `yaml:"export"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// OllamaConfig holds Ollama endpoint and decoding settings.
type OllamaConfig struct {
	BaseURL         string  `yaml:"base_url"`
	EmbedModel      string  `yaml:"embed_model"`
	GenModel        string  `yaml:"gen_model"`
	EmbedTimeoutSec int     `yaml:"embed_timeout_sec"`
	GenTimeoutSec   int     `yaml:"gen_timeout_sec"`
	Temperature     float64 `yaml:"temperature"`
	TopP            float64 `yaml:"top_p"`
	NumPredict      int     `yaml:"num_predict"`
}

// QdrantConfig holds Qdrant endpoint and collection settings.
type QdrantConfig struct {
	BaseURL    string `yaml:"base_url"`
	Collection string `yaml:"collection"`
	TimeoutSec int    `yaml:"timeout_sec"`
	VectorSize int    `yaml:"vector_size"`
	Distance   string `yaml:"distance"`
}

// EmbeddingConfig selects the embedding provider.
type EmbeddingConfig struct {
	Provider string       `yaml:"provider"` // ollama (default), openai
	OpenAI   OpenAIConfig `yaml:"openai"`
}

// OpenAIConfig holds settings for the OpenAI-compatible embedding provider.
type OpenAIConfig struct {
	APIKey     string `yaml:"api_key"`
	BaseURL    string `yaml:"base_url"`
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
}

// CacheConfig holds the embedding cache connection settings. Empty addrs
// disables the cache.
type CacheConfig struct {
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// ExportConfig holds the upstream source export settings. Empty
// source_url disables the export endpoint.
type ExportConfig struct {
	SourceURL      string `yaml:"source_url"`
	TimeoutSec     int    `yaml:"timeout_sec"`
	MaxPromptChars int    `yaml:"max_prompt_chars"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		// Generation can take minutes on CPU-only hosts.
		c.HTTP.WriteTimeoutSec = 960
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Ollama.BaseURL == "" {
		c.Ollama.BaseURL = "http://127.0.0.1:11434"
	}
	if c.Ollama.EmbedModel == "" {
		c.Ollama.EmbedModel = "nomic-embed-text"
	}
	if c.Ollama.GenModel == "" {
		c.Ollama.GenModel = "qwen2.5:7b-instruct-q4_K_M"
	}
	if c.Ollama.EmbedTimeoutSec <= 0 {
		c.Ollama.EmbedTimeoutSec = 220
	}
	if c.Ollama.GenTimeoutSec <= 0 {
		c.Ollama.GenTimeoutSec = 900
	}
	if c.Ollama.Temperature <= 0 {
		c.Ollama.Temperature = 0.2
	}
	if c.Ollama.TopP <= 0 {
		c.Ollama.TopP = 0.9
	}
	if c.Ollama.NumPredict <= 0 {
		c.Ollama.NumPredict = 280
	}
	if c.Qdrant.BaseURL == "" {
		c.Qdrant.BaseURL = "http://127.0.0.1:6333"
	}
	if c.Qdrant.Collection == "" {
		c.Qdrant.Collection = "dw_text"
	}
	if c.Qdrant.TimeoutSec <= 0 {
		c.Qdrant.TimeoutSec = 90
	}
	if c.Qdrant.VectorSize <= 0 {
		c.Qdrant.VectorSize = 768
	}
	if c.Qdrant.Distance == "" {
		c.Qdrant.Distance = "Cosine"
	}
	if c.Embedding.Provider == "" {
		c.Embedding.Provider = "ollama"
	}
	if c.Cache.ReadinessTimeout <= 0 {
		c.Cache.ReadinessTimeout = 10
	}
	if c.Export.TimeoutSec <= 0 {
		c.Export.TimeoutSec = 180
	}
	if c.Export.MaxPromptChars <= 0 {
		c.Export.MaxPromptChars = 6000
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	switch c.Embedding.Provider {
	case "ollama":
	case "openai":
		if c.Embedding.OpenAI.APIKey == "" {
			return fmt.Errorf("embedding.openai.api_key is required when embedding.provider is openai")
		}
	default:
		return fmt.Errorf("embedding.provider must be \"ollama\" or \"openai\", got %q", c.Embedding.Provider)
	}
	if c.Ollama.Temperature > 2 {
		return fmt.Errorf("ollama.temperature must be at most 2, got %v", c.Ollama.Temperature)
	}
	if c.Ollama.TopP > 1 {
		return fmt.Errorf("ollama.top_p must be at most 1, got %v", c.Ollama.TopP)
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
