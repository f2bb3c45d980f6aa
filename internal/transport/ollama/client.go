// Package ollama is a raw-HTTP client for the Ollama embedding and
// generation endpoints. One attempt per call, no retries; a bounded
// per-call timeout is the only failure containment.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/warehouse-ai/ragcore/internal/domain"
	"github.com/warehouse-ai/ragcore/internal/metrics"
)

const service = "ollama"

// maxErrorBody bounds how much of an upstream error body is read back.
const maxErrorBody = 4 << 10

// Config holds the Ollama client settings.
type Config struct {
	BaseURL      string
	EmbedModel   string
	GenModel     string
	EmbedTimeout time.Duration
	GenTimeout   time.Duration
	Temperature  float64
	TopP         float64
	NumPredict   int
	Logger       *zap.Logger
}

// Client calls the Ollama HTTP API.
type Client struct {
	baseURL     string
	embedModel  string
	genModel    string
	temperature float64
	topP        float64
	numPredict  int
	embedHTTP   *http.Client
	genHTTP     *http.Client
	logger      *zap.Logger
}

var (
	_ domain.Embedder  = (*Client)(nil)
	_ domain.Generator = (*Client)(nil)
)

// NewClient creates an Ollama client.
func NewClient(cfg *Config) *Client {
	embedTimeout := cfg.EmbedTimeout
	if embedTimeout <= 0 {
		embedTimeout = 120 * time.Second
	}
	genTimeout := cfg.GenTimeout
	if genTimeout <= 0 {
		genTimeout = 900 * time.Second
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		embedModel:  cfg.EmbedModel,
		genModel:    cfg.GenModel,
		temperature: cfg.Temperature,
		topP:        cfg.TopP,
		numPredict:  cfg.NumPredict,
		embedHTTP:   &http.Client{Timeout: embedTimeout},
		genHTTP:     &http.Client{Timeout: genTimeout},
		logger:      logger,
	}
}

// EmbedModel returns the configured default embedding model.
func (c *Client) EmbedModel() string { return c.embedModel }

type embedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type embedResponse struct {
	Embedding []float32 `json:"embedding"`
}

// Embed implements domain.Embedder. An empty model falls back to the
// configured default.
func (c *Client) Embed(ctx context.Context, model, text string) ([]float32, error) {
	if model == "" {
		model = c.embedModel
	}

	body, status, err := c.post(ctx, c.embedHTTP, "embeddings", "/api/embeddings",
		embedRequest{Model: model, Prompt: text})
	if err != nil {
		return nil, err
	}

	var parsed embedResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, domain.Rejected(service, "embeddings", status,
			fmt.Errorf("decode response: %w", err))
	}
	if len(parsed.Embedding) == 0 {
		return nil, domain.Rejected(service, "embeddings", status,
			errors.New("response missing 'embedding'"))
	}
	return parsed.Embedding, nil
}

type generateOptions struct {
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"top_p"`
	NumPredict  int     `json:"num_predict"`
}

type generateRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	Stream  bool            `json:"stream"`
	Options generateOptions `json:"options"`
}

type generateResponse struct {
	Response string `json:"response"`
}

// Generate implements domain.Generator with the fixed decoding
// configuration. An empty response text is a valid, if unhelpful,
// answer rather than an error.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	req := generateRequest{
		Model:  c.genModel,
		Prompt: prompt,
		Stream: false,
		Options: generateOptions{
			Temperature: c.temperature,
			TopP:        c.topP,
			NumPredict:  c.numPredict,
		},
	}

	body, status, err := c.post(ctx, c.genHTTP, "generate", "/api/generate", req)
	if err != nil {
		return "", err
	}

	var parsed generateResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", domain.Rejected(service, "generate", status,
			fmt.Errorf("decode response: %w", err))
	}
	return strings.TrimSpace(parsed.Response), nil
}

// post issues one JSON round-trip and returns the raw success body.
func (c *Client) post(
	ctx context.Context, client *http.Client, op, path string, payload any,
) ([]byte, int, error) {
	reqBody, err := json.Marshal(payload)
	if err != nil {
		return nil, 0, fmt.Errorf("marshal %s request: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(reqBody))
	if err != nil {
		return nil, 0, fmt.Errorf("new %s request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := client.Do(req)
	duration := time.Since(start)

	if err != nil {
		metrics.ObserveUpstream(service, op, "error", duration.Seconds())
		return nil, 0, domain.Unreachable(service, op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		metrics.ObserveUpstream(service, op, "error", duration.Seconds())
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		c.logger.Warn("ollama request rejected",
			zap.String("op", op),
			zap.Int("status", resp.StatusCode),
		)
		return nil, resp.StatusCode, domain.Rejected(service, op, resp.StatusCode,
			errors.New(strings.TrimSpace(string(detail))))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.ObserveUpstream(service, op, "error", duration.Seconds())
		return nil, resp.StatusCode, domain.Unreachable(service, op, err)
	}

	metrics.ObserveUpstream(service, op, "success", duration.Seconds())
	return body, resp.StatusCode, nil
}
