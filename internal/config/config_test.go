package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestValidate_InvalidProvider(t *testing.T) {
	cfg := Config{
		HTTP:      HTTPConfig{Port: 8080},
		Embedding: EmbeddingConfig{Provider: "anthropic"},
	}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for unknown embedding provider")
	}

	expected := `embedding.provider must be "ollama" or "openai", got "anthropic"`
	if err.Error() != expected {
		t.Errorf("unexpected error message:\ngot:  %q\nwant: %q", err.Error(), expected)
	}
}

func TestValidate_OpenAIRequiresKey(t *testing.T) {
	cfg := Config{
		HTTP:      HTTPConfig{Port: 8080},
		Embedding: EmbeddingConfig{Provider: "openai"},
	}

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for openai provider without api key")
	}

	cfg.Embedding.OpenAI.APIKey = "test-key"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error with api key set: %v", err)
	}
}

func TestValidate_InvalidPort(t *testing.T) {
	cfg := Config{
		HTTP:      HTTPConfig{Port: 0},
		Embedding: EmbeddingConfig{Provider: "ollama"},
	}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for invalid port")
	}
}

func TestValidate_DecodingBounds(t *testing.T) {
	cfg := Config{
		HTTP:      HTTPConfig{Port: 8080},
		Embedding: EmbeddingConfig{Provider: "ollama"},
		Ollama:    OllamaConfig{TopP: 1.5},
	}

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for top_p above 1")
	}

	cfg.Ollama.TopP = 0.9
	cfg.Ollama.Temperature = 3
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for temperature above 2")
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()

	if cfg.HTTP.ReadTimeoutSec != 10 {
		t.Errorf("expected ReadTimeoutSec=10, got %d", cfg.HTTP.ReadTimeoutSec)
	}
	if cfg.HTTP.WriteTimeoutSec != 960 {
		t.Errorf("expected WriteTimeoutSec=960, got %d", cfg.HTTP.WriteTimeoutSec)
	}
	if cfg.Ollama.EmbedModel != "nomic-embed-text" {
		t.Errorf("expected EmbedModel=nomic-embed-text, got %q", cfg.Ollama.EmbedModel)
	}
	if cfg.Ollama.Temperature != 0.2 {
		t.Errorf("expected Temperature=0.2, got %v", cfg.Ollama.Temperature)
	}
	if cfg.Ollama.TopP != 0.9 {
		t.Errorf("expected TopP=0.9, got %v", cfg.Ollama.TopP)
	}
	if cfg.Ollama.NumPredict != 280 {
		t.Errorf("expected NumPredict=280, got %d", cfg.Ollama.NumPredict)
	}
	if cfg.Qdrant.Collection != "dw_text" {
		t.Errorf("expected Collection=dw_text, got %q", cfg.Qdrant.Collection)
	}
	if cfg.Qdrant.VectorSize != 768 {
		t.Errorf("expected VectorSize=768, got %d", cfg.Qdrant.VectorSize)
	}
	if cfg.Qdrant.Distance != "Cosine" {
		t.Errorf("expected Distance=Cosine, got %q", cfg.Qdrant.Distance)
	}
	if cfg.Embedding.Provider != "ollama" {
		t.Errorf("expected Provider=ollama, got %q", cfg.Embedding.Provider)
	}
	if cfg.Export.MaxPromptChars != 6000 {
		t.Errorf("expected MaxPromptChars=6000, got %d", cfg.Export.MaxPromptChars)
	}
}

func TestApplyDefaults_NoOverride(t *testing.T) {
	cfg := Config{
		HTTP:   HTTPConfig{ReadTimeoutSec: 30, WriteTimeoutSec: 60, ShutdownSec: 5},
		Ollama: OllamaConfig{EmbedModel: "custom-embed", GenModel: "custom-gen", NumPredict: 64},
		Qdrant: QdrantConfig{Collection: "docs", VectorSize: 384},
	}
	cfg.ApplyDefaults()

	if cfg.HTTP.WriteTimeoutSec != 60 {
		t.Errorf("expected WriteTimeoutSec=60, got %d", cfg.HTTP.WriteTimeoutSec)
	}
	if cfg.Ollama.EmbedModel != "custom-embed" {
		t.Errorf("expected EmbedModel=custom-embed, got %q", cfg.Ollama.EmbedModel)
	}
	if cfg.Ollama.NumPredict != 64 {
		t.Errorf("expected NumPredict=64, got %d", cfg.Ollama.NumPredict)
	}
	if cfg.Qdrant.VectorSize != 384 {
		t.Errorf("expected VectorSize=384, got %d", cfg.Qdrant.VectorSize)
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("RAGCORE_TEST_URL", "http://qdrant:6333")

	in := []byte("base_url: ${RAGCORE_TEST_URL}\ncollection: ${RAGCORE_TEST_COLLECTION:-dw_text}\n")
	out := string(expandEnvVars(in))

	want := "base_url: http://qdrant:6333\ncollection: dw_text\n"
	if out != want {
		t.Errorf("expanded config mismatch:\ngot:  %q\nwant: %q", out, want)
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.Mkdir(filepath.Join(dir, "config"), 0o755); err != nil {
		t.Fatal(err)
	}
	yaml := `
http:
  port: 8000
ollama:
  base_url: http://ollama:11434
qdrant:
  collection: dw_text
`
	if err := os.WriteFile(filepath.Join(dir, "config", "test.yaml"), []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}

	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })

	cfg, err := Load("test")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTP.Port != 8000 {
		t.Errorf("expected Port=8000, got %d", cfg.HTTP.Port)
	}
	if cfg.Ollama.BaseURL != "http://ollama:11434" {
		t.Errorf("expected ollama base url, got %q", cfg.Ollama.BaseURL)
	}
	if cfg.Ollama.GenTimeoutSec != 900 {
		t.Errorf("expected GenTimeoutSec default 900, got %d", cfg.Ollama.GenTimeoutSec)
	}
}
