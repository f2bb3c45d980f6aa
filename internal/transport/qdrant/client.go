// Package qdrant is a minimal REST client for the Qdrant points API.
// Writes are synchronous (wait=true) so an upsert is observable by the
// next search once it returns.
package qdrant

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

const service = "qdrant"

const maxErrorBody = 4 << 10

// Config holds the Qdrant client settings.
type Config struct {
	BaseURL    string
	Collection string
	Timeout    time.Duration
	VectorSize int
	Distance   string
	Logger     *zap.Logger
}

// Client calls the Qdrant HTTP API against one default collection.
type Client struct {
	baseURL    string
	collection string
	vectorSize int
	distance   string
	http       *http.Client
	logger     *zap.Logger
}

// NewClient creates a Qdrant client.
func NewClient(cfg *Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	vectorSize := cfg.VectorSize
	if vectorSize <= 0 {
		vectorSize = 768
	}
	distance := cfg.Distance
	if distance == "" {
		distance = "Cosine"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		collection: cfg.Collection,
		vectorSize: vectorSize,
		distance:   distance,
		http:       &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// Collection returns the configured default collection name.
func (c *Client) Collection() string { return c.collection }

type searchRequest struct {
	Vector      []float32 `json:"vector"`
	Limit       int       `json:"limit"`
	WithPayload bool      `json:"with_payload"`
	WithVector  bool      `json:"with_vector"`
}

type searchResponse struct {
	Result []domain.SearchHit `json:"result"`
}

// Search runs a Top-K similarity search. An empty result list is the
// valid "no knowledge" outcome, never an error.
func (c *Client) Search(ctx context.Context, vector []float32, limit int) ([]domain.SearchHit, error) {
	if limit <= 0 {
		limit = domain.DefaultTopK
	}

	var parsed searchResponse
	err := c.do(ctx, http.MethodPost, "search",
		fmt.Sprintf("/collections/%s/points/search", c.collection),
		searchRequest{Vector: vector, Limit: limit, WithPayload: true, WithVector: false},
		&parsed)
	if err != nil {
		return nil, err
	}
	if parsed.Result == nil {
		return []domain.SearchHit{}, nil
	}
	return parsed.Result, nil
}

type upsertPoint struct {
	ID      string         `json:"id"`
	Vector  []float32      `json:"vector"`
	Payload map[string]any `json:"payload"`
}

type upsertRequest struct {
	Points []upsertPoint `json:"points"`
}

// Upsert stores one vector+payload point, waiting for the store to
// acknowledge durability before returning. An empty collection falls
// back to the configured default.
func (c *Client) Upsert(
	ctx context.Context, collection, id string, vector []float32, payload map[string]any,
) error {
	if collection == "" {
		collection = c.collection
	}
	return c.do(ctx, http.MethodPut, "upsert",
		fmt.Sprintf("/collections/%s/points?wait=true", collection),
		upsertRequest{Points: []upsertPoint{{ID: id, Vector: vector, Payload: payload}}},
		nil)
}

type scrollRequest struct {
	Limit       int  `json:"limit"`
	WithPayload bool `json:"with_payload"`
	WithVectors bool `json:"with_vectors"`
	Offset      any  `json:"offset,omitempty"`
}

type scrollResponse struct {
	Result struct {
		Points         []domain.ScrollPoint `json:"points"`
		NextPageOffset any                  `json:"next_page_offset"`
	} `json:"result"`
}

// ScrollAll pages through every point of the collection. Stops only
// when the store reports no further page.
func (c *Client) ScrollAll(ctx context.Context, batchSize int) ([]domain.ScrollPoint, error) {
	if batchSize <= 0 {
		batchSize = 200
	}

	var all []domain.ScrollPoint
	var offset any

	for {
		req := scrollRequest{Limit: batchSize, WithPayload: true, WithVectors: false, Offset: offset}

		var parsed scrollResponse
		err := c.do(ctx, http.MethodPost, "scroll",
			fmt.Sprintf("/collections/%s/points/scroll", c.collection), req, &parsed)
		if err != nil {
			return nil, err
		}

		all = append(all, parsed.Result.Points...)

		offset = parsed.Result.NextPageOffset
		if offset == nil || len(parsed.Result.Points) == 0 {
			break
		}
	}
	return all, nil
}

type collectionInfoResponse struct {
	Result struct {
		PointsCount int64 `json:"points_count"`
	} `json:"result"`
}

// PointsCount returns the total number of stored points.
func (c *Client) PointsCount(ctx context.Context) (int64, error) {
	var parsed collectionInfoResponse
	err := c.do(ctx, http.MethodGet, "collection_info",
		"/collections/"+c.collection, nil, &parsed)
	if err != nil {
		return 0, err
	}
	return parsed.Result.PointsCount, nil
}

// CollectionInfo returns the raw collection description document.
func (c *Client) CollectionInfo(ctx context.Context) (map[string]any, error) {
	var parsed map[string]any
	err := c.do(ctx, http.MethodGet, "collection_info",
		"/collections/"+c.collection, nil, &parsed)
	if err != nil {
		return nil, err
	}
	return parsed, nil
}

type createCollectionRequest struct {
	Vectors struct {
		Size     int    `json:"size"`
		Distance string `json:"distance"`
	} `json:"vectors"`
}

// CreateCollection creates the default collection with the configured
// vector size and distance.
func (c *Client) CreateCollection(ctx context.Context) error {
	var req createCollectionRequest
	req.Vectors.Size = c.vectorSize
	req.Vectors.Distance = c.distance
	return c.do(ctx, http.MethodPut, "create_collection",
		"/collections/"+c.collection, req, nil)
}

// DeleteCollection drops the default collection. A missing collection
// is not an error.
func (c *Client) DeleteCollection(ctx context.Context) error {
	err := c.do(ctx, http.MethodDelete, "delete_collection",
		"/collections/"+c.collection, nil, nil)
	var ue *domain.UpstreamError
	if errors.As(err, &ue) && ue.Status == http.StatusNotFound {
		return nil
	}
	return err
}

// RecreateCollection drops and recreates the default collection.
func (c *Client) RecreateCollection(ctx context.Context) error {
	if err := c.DeleteCollection(ctx); err != nil {
		return err
	}
	return c.CreateCollection(ctx)
}

// do issues one JSON round-trip and decodes the success body into out.
func (c *Client) do(ctx context.Context, method, op, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal %s request: %w", op, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("new %s request: %w", op, err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	duration := time.Since(start)

	if err != nil {
		metrics.ObserveUpstream(service, op, "error", duration.Seconds())
		return domain.Unreachable(service, op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		metrics.ObserveUpstream(service, op, "error", duration.Seconds())
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		c.logger.Warn("qdrant request rejected",
			zap.String("op", op),
			zap.Int("status", resp.StatusCode),
		)
		return domain.Rejected(service, op, resp.StatusCode,
			errors.New(strings.TrimSpace(string(detail))))
	}

	metrics.ObserveUpstream(service, op, "success", duration.Seconds())

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return domain.Rejected(service, op, resp.StatusCode,
			fmt.Errorf("decode response: %w", err))
	}
	return nil
}
