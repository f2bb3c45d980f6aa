// Package ingest runs the JSONL upload pipeline: parse each line,
// validate, embed, upsert. Failures are isolated per line so one bad
// row never aborts the batch.
package ingest

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/warehouse-ai/ragcore/internal/domain"
	"github.com/warehouse-ai/ragcore/internal/metrics"
)

// MaxErrors caps the collected per-line errors; once reached, a
// sentinel entry is appended and processing stops early.
const MaxErrors = 30

// maxLineBytes bounds a single JSONL line.
const maxLineBytes = 1 << 20

// LineError records one failed line of an upload.
type LineError struct {
	Line  int    `json:"line"`
	Error string `json:"error"`
}

// Report is the aggregated outcome of one uploaded batch.
type Report struct {
	Success    int         `json:"success"`
	Failed     int         `json:"failed"`
	Errors     []LineError `json:"errors"`
	Collection string      `json:"collection"`
	EmbedModel string      `json:"embed_model"`
}

// Service ingests JSONL batches into the vector store.
type Service struct {
	embed             domain.Embedder
	store             Upserter
	defaultCollection string
	defaultModel      string
	maxErrors         int
	logger            *zap.Logger
}

// New creates an ingest service.
func New(embed domain.Embedder, store Upserter, defaultCollection, defaultModel string, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		embed:             embed,
		store:             store,
		defaultCollection: defaultCollection,
		defaultModel:      defaultModel,
		maxErrors:         MaxErrors,
		logger:            logger,
	}
}

// WithMaxErrors overrides the error cap. Intended for tests.
func (s *Service) WithMaxErrors(n int) *Service {
	if n > 0 {
		s.maxErrors = n
	}
	return s
}

// UploadBatch processes JSONL lines from r strictly in file order.
// Blank lines are skipped but still advance the line numbering used in
// error reports. Per-line failures are recorded and processing
// continues; only a read failure of the stream itself aborts the batch.
func (s *Service) UploadBatch(ctx context.Context, r io.Reader, collection, embedModel string) (Report, error) {
	collection = strings.TrimSpace(collection)
	if collection == "" {
		collection = s.defaultCollection
	}
	embedModel = strings.TrimSpace(embedModel)
	if embedModel == "" {
		embedModel = s.defaultModel
	}

	report := Report{
		Errors:     []LineError{},
		Collection: collection,
		EmbedModel: embedModel,
	}

	br := bufio.NewReaderSize(r, 64*1024)

	ln := 0
	for {
		raw, tooLong, readErr := readLine(br)
		if readErr != nil && !errors.Is(readErr, io.EOF) {
			return report, fmt.Errorf("read upload: %w", readErr)
		}
		atEOF := errors.Is(readErr, io.EOF)
		if atEOF && len(raw) == 0 && !tooLong {
			break
		}
		ln++

		var lineErr error
		if tooLong {
			lineErr = fmt.Errorf("line exceeds %d bytes", maxLineBytes)
		} else {
			line := strings.TrimSpace(string(raw))
			if line == "" {
				if atEOF {
					break
				}
				continue
			}
			lineErr = s.processLine(ctx, line, collection, embedModel)
		}

		if lineErr != nil {
			report.Failed++
			metrics.IngestLinesTotal.WithLabelValues("failed").Inc()
			report.Errors = append(report.Errors, LineError{Line: ln, Error: lineErr.Error()})
			if len(report.Errors) >= s.maxErrors {
				report.Errors = append(report.Errors, LineError{Line: ln, Error: "too many errors; truncated"})
				break
			}
		} else {
			report.Success++
			metrics.IngestLinesTotal.WithLabelValues("ok").Inc()
		}

		if atEOF {
			break
		}
	}

	s.logger.Info("batch ingested",
		zap.String("collection", collection),
		zap.Int("success", report.Success),
		zap.Int("failed", report.Failed),
	)
	return report, nil
}

// readLine reads one line, bounded by maxLineBytes. An oversized line
// is drained to its newline and reported via tooLong instead of
// aborting the stream, so it counts as one failed line.
func readLine(br *bufio.Reader) (line []byte, tooLong bool, err error) {
	for {
		chunk, err := br.ReadSlice('\n')
		if !tooLong {
			line = append(line, chunk...)
			if len(line) > maxLineBytes {
				line = nil
				tooLong = true
			}
		}
		switch {
		case err == nil:
			return line, tooLong, nil
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		default:
			return line, tooLong, err
		}
	}
}

// processLine handles one JSONL record: parse, validate, embed, upsert.
func (s *Service) processLine(ctx context.Context, line, collection, embedModel string) error {
	var doc map[string]any
	if err := json.Unmarshal([]byte(line), &doc); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}

	text, _ := doc["prompt"].(string)
	text = strings.TrimSpace(text)
	if text == "" {
		return errors.New("missing 'prompt'")
	}

	model := embedModel
	if m, _ := doc["model"].(string); strings.TrimSpace(m) != "" {
		model = strings.TrimSpace(m)
	}

	id := recordID(doc)

	vec, err := s.embed.Embed(ctx, model, text)
	if err != nil {
		return err
	}

	if err := s.store.Upsert(ctx, collection, id, vec, doc); err != nil {
		return err
	}
	return nil
}

// recordID takes the record's own id (or dw_id), else generates a fresh
// random one so repeated uploads without explicit ids never overwrite
// each other.
func recordID(doc map[string]any) string {
	for _, key := range []string{"id", "dw_id"} {
		if v, ok := doc[key]; ok {
			if id := scalarString(v); id != "" {
				return id
			}
		}
	}
	return uuid.NewString()
}

func scalarString(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	default:
		return ""
	}
}
