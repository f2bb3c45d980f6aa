// Package answer orchestrates the question-answering pipelines: free
// chat, grounded (RAG) asking, and the math-first path for aggregation
// questions. Stages run strictly sequentially within a request.
package answer

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/warehouse-ai/ragcore/internal/domain"
	"github.com/warehouse-ai/ragcore/internal/domain/salary"
	"github.com/warehouse-ai/ragcore/internal/prompt"
)

// Flow labels reported alongside an answer.
const (
	FlowRAGOnly   = "RAG_ONLY"
	FlowMathFirst = "FULL_SCAN_MATH_THEN_RAG"
)

// Result is the outcome of Ask.
type Result struct {
	Answer  string
	Sources []domain.Source
	Flow    string
	Stats   *salary.Summary
}

// Service answers questions against the corpus.
type Service struct {
	embed      domain.Embedder
	search     Searcher
	generate   domain.Generator
	stats      Aggregator
	embedModel string
	logger     *zap.Logger
}

// New creates an answer service.
func New(embed domain.Embedder, search Searcher, generate domain.Generator, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{embed: embed, search: search, generate: generate, logger: logger}
}

// WithAggregator enables the full-scan math path for aggregation questions.
func (s *Service) WithAggregator(a Aggregator) *Service {
	s.stats = a
	return s
}

// WithEmbedModel pins the embedding model used for questions. The
// model must be resolved here, above any caching decorator, so cache
// entries are keyed by the actual model rather than by "".
func (s *Service) WithEmbedModel(model string) *Service {
	s.embedModel = model
	return s
}

// Chat answers a free-chat message without retrieval. History beyond
// the last six turns is silently dropped.
func (s *Service) Chat(ctx context.Context, message string, history []domain.ChatTurn) (string, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return "", fmt.Errorf("message is required: %w", domain.ErrValidation)
	}

	text, err := s.generate.Generate(ctx, prompt.Chat(message, history))
	if err != nil {
		return "", fmt.Errorf("generate: %w", err)
	}
	return text, nil
}

// Ask answers a question grounded in retrieved context. Aggregation
// questions take the math-first path when an Aggregator is wired.
func (s *Service) Ask(ctx context.Context, question string, topK int) (Result, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return Result{}, fmt.Errorf("question is required: %w", domain.ErrValidation)
	}
	if topK <= 0 {
		topK = domain.DefaultTopK
	}

	if s.stats != nil && salary.LooksLikeAggregation(question) {
		return s.askMathFirst(ctx, question, topK)
	}

	hits, err := s.retrieve(ctx, question, topK)
	if err != nil {
		return Result{}, err
	}

	ragPrompt, sources := prompt.Grounded(question, hits)
	text, err := s.generate.Generate(ctx, ragPrompt)
	if err != nil {
		return Result{}, fmt.Errorf("generate: %w", err)
	}

	return Result{Answer: text, Sources: sources, Flow: FlowRAGOnly}, nil
}

// askMathFirst computes the exact aggregate locally, then uses Top-K
// retrieval only to let the model explain the number with examples.
func (s *Service) askMathFirst(ctx context.Context, question string, topK int) (Result, error) {
	op := salary.PickOp(question)

	summary, err := s.stats.Compute(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("compute stats: %w", err)
	}
	statement := summary.Statement(op)

	hits, err := s.retrieve(ctx, question, topK)
	if err != nil {
		return Result{}, err
	}

	mathPrompt, sources := prompt.MathGrounded(statement, question, hits)
	explanation, err := s.generate.Generate(ctx, mathPrompt)
	if err != nil {
		return Result{}, fmt.Errorf("generate: %w", err)
	}

	s.logger.Debug("answered via math-first flow",
		zap.String("op", string(op)),
		zap.Int("points_scanned", summary.PointsScanned),
	)

	final := fmt.Sprintf("%s\n\nExplanation/examples (Top-%d):\n%s", statement, topK, explanation)
	return Result{Answer: final, Sources: sources, Flow: FlowMathFirst, Stats: &summary}, nil
}

// retrieve embeds the question, searches, and deduplicates the hits.
func (s *Service) retrieve(ctx context.Context, question string, topK int) ([]domain.SearchHit, error) {
	vec, err := s.embed.Embed(ctx, s.embedModel, question)
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}

	hits, err := s.search.Search(ctx, vec, topK)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	return domain.Dedupe(hits), nil
}
