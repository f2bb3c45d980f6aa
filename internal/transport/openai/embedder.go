// Package openai is an alternative embedding provider speaking the
// OpenAI-compatible embeddings API (OpenAI, Nebius, vLLM and friends).
// Selected via embedding.provider in the configuration; the default
// provider is the Ollama client.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/warehouse-ai/ragcore/internal/domain"
	"github.com/warehouse-ai/ragcore/internal/metrics"
)

const service = "openai"

// Embedder is an embedding provider using the OpenAI-compatible API.
type Embedder struct {
	client     *openai.Client
	model      string
	dimensions int
	logger     *zap.Logger
}

var _ domain.Embedder = (*Embedder)(nil)

// Config holds the embedding provider settings.
type Config struct {
	APIKey     string
	BaseURL    string
	Model      string
	Dimensions int
	Logger     *zap.Logger
}

// NewEmbedder creates an OpenAI-compatible embedding provider.
func NewEmbedder(cfg *Config) *Embedder {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Embedder{
		client:     openai.NewClientWithConfig(clientCfg),
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
		logger:     logger,
	}
}

// Embed implements domain.Embedder. An empty model falls back to the
// configured default.
func (e *Embedder) Embed(ctx context.Context, model, text string) ([]float32, error) {
	if model == "" {
		model = e.model
	}

	req := openai.EmbeddingRequest{
		Input:          []string{text},
		Model:          openai.EmbeddingModel(model),
		EncodingFormat: openai.EmbeddingEncodingFormatFloat,
	}
	if e.dimensions > 0 {
		req.Dimensions = e.dimensions
	}

	start := time.Now()
	resp, err := e.client.CreateEmbeddings(ctx, req)
	duration := time.Since(start)

	if err != nil {
		metrics.ObserveUpstream(service, "embeddings", "error", duration.Seconds())
		return nil, parseAPIError(err)
	}

	if len(resp.Data) == 0 {
		metrics.ObserveUpstream(service, "embeddings", "error", duration.Seconds())
		return nil, domain.Rejected(service, "embeddings", 200, errors.New("empty embedding response"))
	}

	metrics.ObserveUpstream(service, "embeddings", "success", duration.Seconds())
	return resp.Data[0].Embedding, nil
}

// parseAPIError maps a go-openai error onto the upstream taxonomy,
// keeping the unreachable/rejected distinction.
func parseAPIError(err error) error {
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		detail := extractDetail(reqErr.Body)
		if detail == "" {
			detail = string(reqErr.Body)
		}
		return domain.Rejected(service, "embeddings", reqErr.HTTPStatusCode, errors.New(detail))
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return domain.Rejected(service, "embeddings", apiErr.HTTPStatusCode, errors.New(apiErr.Message))
	}

	return domain.Unreachable(service, "embeddings", fmt.Errorf("embedding request failed: %w", err))
}

// extractDetail pulls the "detail" field out of a JSON error body.
func extractDetail(body []byte) string {
	var parsed struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &parsed) == nil && parsed.Detail != "" {
		return parsed.Detail
	}
	return ""
}
