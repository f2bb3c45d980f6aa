// Package httpapi exposes the RAG pipeline over a small JSON HTTP API.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/warehouse-ai/ragcore/internal/domain"
	"github.com/warehouse-ai/ragcore/internal/domain/salary"
	logpkg "github.com/warehouse-ai/ragcore/internal/logger"
	answeruc "github.com/warehouse-ai/ragcore/internal/usecase/answer"
	exportuc "github.com/warehouse-ai/ragcore/internal/usecase/export"
	ingestuc "github.com/warehouse-ai/ragcore/internal/usecase/ingest"
	statsuc "github.com/warehouse-ai/ragcore/internal/usecase/stats"
)

const maxUploadBytes = 64 << 20

// Admin manages the backing vector collection lifecycle.
type Admin interface {
	Collection() string
	CollectionInfo(ctx context.Context) (map[string]any, error)
	CreateCollection(ctx context.Context) error
	DeleteCollection(ctx context.Context) error
	RecreateCollection(ctx context.Context) error
}

// Server wires the use case services into HTTP handlers.
type Server struct {
	answers *answeruc.Service
	ingest  *ingestuc.Service
	stats   *statsuc.Service
	export  *exportuc.Service
	admin   Admin
	logger  *zap.Logger
}

// NewServer creates an HTTP API server. stats, export and admin may be
// nil; the matching endpoints then answer 503.
func NewServer(
	answers *answeruc.Service,
	ingest *ingestuc.Service,
	stats *statsuc.Service,
	export *exportuc.Service,
	admin Admin,
	logger *zap.Logger,
) *Server {
	return &Server{
		answers: answers,
		ingest:  ingest,
		stats:   stats,
		export:  export,
		admin:   admin,
		logger:  logger,
	}
}

// Register mounts all API routes on r.
func (s *Server) Register(r chi.Router) {
	r.Post("/api/chat", s.handleChat)
	r.Post("/api/ask", s.handleAsk)
	r.Post("/api/math", s.handleMath)
	r.Post("/api/upload", s.handleUpload)
	r.Get("/api/export/records.jsonl", s.handleExport)
	r.Get("/api/collection", s.handleCollectionInfo)
	r.Post("/api/collection", s.handleCollectionAction)
	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
}

type chatRequest struct {
	Message string            `json:"message"`
	History []domain.ChatTurn `json:"history"`
}

type chatResponse struct {
	Answer string `json:"answer"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid request body: "+err.Error())
		return
	}

	answer, err := s.answers.Chat(r.Context(), req.Message, req.History)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, chatResponse{Answer: answer})
}

type askRequest struct {
	Question string `json:"question"`
	Message  string `json:"message"`
	TopK     int    `json:"top_k"`
}

type askResponse struct {
	Answer   string          `json:"answer"`
	Sources  []domain.Source `json:"sources"`
	AutoFlow string          `json:"auto_flow"`
	Math     *salary.Summary `json:"math,omitempty"`
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid request body: "+err.Error())
		return
	}

	question := req.Question
	if strings.TrimSpace(question) == "" {
		question = req.Message
	}

	res, err := s.answers.Ask(r.Context(), question, req.TopK)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, askResponse{
		Answer:   res.Answer,
		Sources:  res.Sources,
		AutoFlow: res.Flow,
		Math:     res.Stats,
	})
}

type mathRequest struct {
	Op string `json:"op"`
}

func (s *Server) handleMath(w http.ResponseWriter, r *http.Request) {
	if s.stats == nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", "statistics service is not configured")
		return
	}

	var req mathRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid request body: "+err.Error())
		return
	}
	op := salary.ParseOp(req.Op)

	summary, err := s.stats.Compute(r.Context())
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"op":     string(op),
		"result": summary.Statement(op),
		"stats":  summary,
	})
}

type uploadResponse struct {
	Success    int                  `json:"success"`
	Failed     int                  `json:"failed"`
	Errors     []ingestuc.LineError `json:"errors"`
	Collection string               `json:"collection"`
	EmbedModel string               `json:"embed_model"`
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "multipart field 'file' is required")
		return
	}
	defer file.Close()

	if !strings.HasSuffix(strings.ToLower(header.Filename), ".jsonl") {
		writeError(w, http.StatusBadRequest, "validation_failed", "only .jsonl files are accepted")
		return
	}

	collection := r.FormValue("collection")
	embedModel := r.FormValue("embed_model")

	report, err := s.ingest.UploadBatch(r.Context(), file, collection, embedModel)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	logpkg.FromContext(r.Context()).Info("upload processed",
		zap.String("filename", header.Filename),
		zap.Int("success", report.Success),
		zap.Int("failed", report.Failed),
	)
	writeJSON(w, http.StatusOK, uploadResponse{
		Success:    report.Success,
		Failed:     report.Failed,
		Errors:     report.Errors,
		Collection: report.Collection,
		EmbedModel: report.EmbedModel,
	})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	if s.export == nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", "export service is not configured")
		return
	}

	lines, err := s.export.Lines(r.Context())
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/x-ndjson; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="records_for_rag.jsonl"`)
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)

	enc := json.NewEncoder(w)
	for _, line := range lines {
		if err := enc.Encode(line); err != nil {
			s.logger.Warn("export stream aborted", zap.Error(err))
			return
		}
	}
}

func (s *Server) handleCollectionInfo(w http.ResponseWriter, r *http.Request) {
	if s.admin == nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", "collection admin is not configured")
		return
	}

	info, err := s.admin.CollectionInfo(r.Context())
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"collection": s.admin.Collection(),
		"info":       info,
	})
}

type collectionActionRequest struct {
	Action  string `json:"action"`
	Confirm string `json:"confirm"`
}

func (s *Server) handleCollectionAction(w http.ResponseWriter, r *http.Request) {
	if s.admin == nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", "collection admin is not configured")
		return
	}

	var req collectionActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid request body: "+err.Error())
		return
	}

	name := s.admin.Collection()
	if req.Confirm != name {
		writeError(w, http.StatusBadRequest, "validation_failed",
			fmt.Sprintf("confirm must match collection name %q", name))
		return
	}

	var err error
	switch req.Action {
	case "create":
		err = s.admin.CreateCollection(r.Context())
	case "delete":
		err = s.admin.DeleteCollection(r.Context())
	case "recreate":
		err = s.admin.RecreateCollection(r.Context())
	default:
		writeError(w, http.StatusBadRequest, "validation_failed", "action must be create, delete or recreate")
		return
	}
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":    req.Action + " completed",
		"collection": name,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	var ue *domain.UpstreamError
	switch {
	case errors.Is(err, domain.ErrValidation):
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
	case errors.As(err, &ue):
		s.logger.Error("upstream failure",
			zap.String("service", ue.Service),
			zap.String("op", ue.Op),
			zap.Int("status", ue.Status),
			zap.Error(err))
		writeError(w, http.StatusBadGateway, "upstream_error", ue.Error())
	default:
		s.logger.Error("internal error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
	}
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}
