// Package export pulls records from an upstream source API and renders
// them as ingestion-ready JSONL: a flattened prompt built from every
// non-empty field plus a stable identifier, so re-exports upsert onto
// the same points instead of duplicating them.
package export

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/warehouse-ai/ragcore/internal/domain"
	"github.com/warehouse-ai/ragcore/internal/metrics"
)

const service = "source"

// DefaultMaxPromptChars bounds the flattened prompt length.
const DefaultMaxPromptChars = 6000

// sourceTag marks exported lines with their origin.
const sourceTag = "source_export"

// Config holds the export settings.
type Config struct {
	SourceURL      string
	Timeout        time.Duration
	MaxPromptChars int
	Logger         *zap.Logger
}

// Service streams source records as JSONL.
type Service struct {
	sourceURL      string
	maxPromptChars int
	http           *http.Client
	logger         *zap.Logger
}

// New creates an export service.
func New(cfg *Config) *Service {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 180 * time.Second
	}
	maxChars := cfg.MaxPromptChars
	if maxChars <= 0 {
		maxChars = DefaultMaxPromptChars
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		sourceURL:      cfg.SourceURL,
		maxPromptChars: maxChars,
		http:           &http.Client{Timeout: timeout},
		logger:         logger,
	}
}

// Lines fetches all source records and renders the ingestion-ready
// export lines. Fetch failures surface before anything is written, so
// callers can still answer with a proper error status.
func (s *Service) Lines(ctx context.Context) ([]map[string]any, error) {
	records, err := s.fetch(ctx)
	if err != nil {
		return nil, err
	}

	lines := make([]map[string]any, 0, len(records))
	for _, obj := range records {
		lines = append(lines, map[string]any{
			"id":     StableID(obj),
			"prompt": BuildPrompt(obj, s.maxPromptChars),
			"source": sourceTag,
		})
	}

	s.logger.Info("exported records", zap.Int("count", len(lines)))
	return lines, nil
}

// WriteJSONL fetches all source records and streams one JSONL line per
// record to w.
func (s *Service) WriteJSONL(ctx context.Context, w io.Writer) error {
	lines, err := s.Lines(ctx)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(w)
	for _, line := range lines {
		if err := enc.Encode(line); err != nil {
			return fmt.Errorf("write export line: %w", err)
		}
	}
	return nil
}

// fetch retrieves the source documents. A single object is treated as a
// one-element list; non-object entries are dropped.
func (s *Service) fetch(ctx context.Context) ([]map[string]any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.sourceURL, nil)
	if err != nil {
		return nil, fmt.Errorf("new export request: %w", err)
	}

	start := time.Now()
	resp, err := s.http.Do(req)
	duration := time.Since(start)

	if err != nil {
		metrics.ObserveUpstream(service, "export", "error", duration.Seconds())
		return nil, domain.Unreachable(service, "export", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		metrics.ObserveUpstream(service, "export", "error", duration.Seconds())
		return nil, domain.Rejected(service, "export", resp.StatusCode, errors.New("source API error"))
	}
	metrics.ObserveUpstream(service, "export", "success", duration.Seconds())

	var raw any
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, domain.Rejected(service, "export", resp.StatusCode,
			fmt.Errorf("decode response: %w", err))
	}

	var list []any
	switch t := raw.(type) {
	case []any:
		list = t
	case map[string]any:
		list = []any{t}
	}

	records := make([]map[string]any, 0, len(list))
	for _, item := range list {
		if obj, ok := item.(map[string]any); ok && len(obj) > 0 {
			records = append(records, obj)
		}
	}
	return records, nil
}

// BuildPrompt flattens a record into "k: v | k: v" form, skipping nil
// and blank values, with nested values rendered as JSON. Keys are
// sorted so the output is deterministic. Truncated at maxChars runes
// with a marker.
func BuildPrompt(obj map[string]any, maxChars int) string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		v := obj[k]
		if v == nil {
			continue
		}
		var rendered string
		switch t := v.(type) {
		case string:
			if strings.TrimSpace(t) == "" {
				continue
			}
			rendered = t
		case map[string]any, []any:
			data, err := json.Marshal(t)
			if err != nil {
				continue
			}
			rendered = string(data)
		default:
			data, _ := json.Marshal(t)
			rendered = string(data)
		}
		parts = append(parts, k+": "+rendered)
	}

	prompt := strings.Join(parts, " | ")
	// Truncate on a rune boundary so a multi-byte character is never
	// split into invalid UTF-8.
	if r := []rune(prompt); len(r) > maxChars {
		prompt = string(r[:maxChars]) + " &(truncated)"
	}
	return prompt
}

// StableID derives a deterministic UUID for a record: name-based on the
// employee id when present, else on the record's canonical JSON. The
// same record always maps to the same point id.
func StableID(obj map[string]any) string {
	var base string
	if emp, ok := obj["EMPLOYEEID"]; ok && emp != nil {
		if s := strings.TrimSpace(fmt.Sprint(emp)); s != "" {
			base = "employee:" + s
		}
	}
	if base == "" {
		// json.Marshal sorts map keys, giving a canonical form.
		data, _ := json.Marshal(obj)
		base = string(data)
	}
	return uuid.NewSHA1(uuid.NameSpaceDNS, []byte(base)).String()
}
