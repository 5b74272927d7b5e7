package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kalambet/salesiq/internal/pipeline"
	"github.com/kalambet/salesiq/internal/storage"
)

const (
	maxRequestBodySize = 1 << 20 // 1MB
	maxBatchQuestions  = 50
)

// AskLog reads the ask audit log.
type AskLog interface {
	RecentAsks(ctx context.Context, limit int) ([]storage.Ask, error)
	GetAsk(ctx context.Context, id string) (storage.Ask, error)
}

// Stats reports table row counts.
type Stats interface {
	SalesCounts(ctx context.Context) (map[string]int64, error)
}

type Deps struct {
	Analyzer *pipeline.Analyzer
	Asks     AskLog
	Stats    Stats // optional; without it /v1/stats is not served
	Token    string
}

type AskRequest struct {
	Text    string   `json:"text"`
	History []string `json:"history,omitempty"`
}

type BatchRequest struct {
	Questions []AskRequest `json:"questions"`
}

type BatchResponse struct {
	Answers []pipeline.Answer `json:"answers"`
}

type ExplainRequest struct {
	Text string `json:"text"`
}

// NewHandler returns the HTTP API. /health and /metrics are public; the
// /v1 routes require the bearer token when one is configured.
func NewHandler(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Use(BearerAuth(deps.Token))
		r.Post("/ask", handleAsk(deps))
		r.Post("/ask/batch", handleAskBatch(deps))
		r.Post("/explain", handleExplain(deps))
		r.Get("/asks", handleListAsks(deps))
		r.Get("/asks/{id}", handleGetAsk(deps))
		if deps.Stats != nil {
			r.Get("/stats", handleStats(deps))
		}
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func handleAsk(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req AskRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if strings.TrimSpace(req.Text) == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "text is required")
			return
		}

		ans, err := deps.Analyzer.Answer(r.Context(), pipeline.Query{Text: req.Text, History: req.History})
		if err != nil {
			failureError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, ans)
	}
}

func handleAskBatch(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req BatchRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if len(req.Questions) == 0 {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "questions is required and must not be empty")
			return
		}
		if len(req.Questions) > maxBatchQuestions {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "at most %d questions per batch", maxBatchQuestions)
			return
		}

		qs := make([]pipeline.Query, len(req.Questions))
		for i, q := range req.Questions {
			qs[i] = pipeline.Query{Text: q.Text, History: q.History}
		}
		answers, err := deps.Analyzer.AnswerBatch(r.Context(), qs)
		if err != nil {
			httpError(w, http.StatusServiceUnavailable, "api_error", "batch interrupted: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, BatchResponse{Answers: answers})
	}
}

func handleExplain(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ExplainRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if strings.TrimSpace(req.Text) == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "text is required")
			return
		}

		ex, err := deps.Analyzer.Explain(req.Text)
		if err != nil {
			failureError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, ex)
	}
}

func handleListAsks(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := parseIntParam(r, "limit", 20, 100)

		asks, err := deps.Asks.RecentAsks(r.Context(), limit)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list asks: %v", err)
			return
		}
		if asks == nil {
			asks = []storage.Ask{}
		}
		writeJSON(w, http.StatusOK, asks)
	}
}

func handleGetAsk(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ask, err := deps.Asks.GetAsk(r.Context(), chi.URLParam(r, "id"))
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "ask not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get ask: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, ask)
	}
}

func handleStats(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		counts, err := deps.Stats.SalesCounts(r.Context())
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to count rows: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, counts)
	}
}

// failureError maps a pipeline failure onto a status code: plan failures
// are the caller's question (422), execution failures the store's (502).
func failureError(w http.ResponseWriter, err error) {
	var f *pipeline.Failure
	if !errors.As(err, &f) {
		httpError(w, http.StatusInternalServerError, "api_error", "%v", err)
		return
	}
	switch f.Kind {
	case pipeline.FailurePlan:
		httpError(w, http.StatusUnprocessableEntity, "plan_error", "%s", f.Message)
	default:
		httpError(w, http.StatusBadGateway, "execution_error", "%s", f.Message)
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	defer r.Body.Close()

	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}

func parseIntParam(r *http.Request, key string, defaultVal, maxVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil || v <= 0 {
		return defaultVal
	}
	if maxVal > 0 && v > maxVal {
		return maxVal
	}
	return v
}
