package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/transitguard/transitguard-kg/engine/cypherqa"
	"github.com/transitguard/transitguard-kg/engine/domain"
	"github.com/transitguard/transitguard-kg/engine/graph"
	"github.com/transitguard/transitguard-kg/pkg/metrics"
	"github.com/transitguard/transitguard-kg/pkg/mid"
	"github.com/transitguard/transitguard-kg/pkg/repo"
	"golang.org/x/time/rate"
)

// API is what the handlers need from the service.
type API interface {
	State() domain.State
	Ask(ctx context.Context, question string) (*cypherqa.Answer, error)
	Schema(ctx context.Context) (graph.Schema, error)
	Counts(ctx context.Context) (graph.Counts, error)
	SafetyIndex(ctx context.Context, date string) (domain.SafetyIndex, error)
	ListSafetyIndex(ctx context.Context, offset, limit int) ([]domain.SafetyIndex, error)
}

var validate = validator.New()

// QueryRequest is the JSON body for POST /query.
type QueryRequest struct {
	Question *string `json:"question" validate:"required"`
}

// QueryResponse is the JSON response for POST /query.
type QueryResponse struct {
	Answer *cypherqa.Answer `json:"answer"`
}

// SchemaResponse is the JSON response for GET /schema.
type SchemaResponse struct {
	Schema string `json:"schema"`
}

// ListResponse is the JSON response for GET /safety-index.
type ListResponse struct {
	Items  []domain.SafetyIndex `json:"items"`
	Offset int                  `json:"offset"`
	Limit  int                  `json:"limit"`
}

type errorResponse struct {
	Detail string `json:"detail"`
	Kind   string `json:"kind,omitempty"`
}

func newHandler(api API, m *metrics.Collector, limiter *rate.Limiter, corsOrigin string, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()
	route := func(pattern string, h http.Handler, mw ...mid.Middleware) {
		mux.Handle(pattern, mid.Chain(h, append([]mid.Middleware{mid.Metrics(m)}, mw...)...))
	}
	route("POST /query", handleQuery(api, logger), mid.RateLimit(limiter))
	route("GET /schema", handleSchema(api, logger))
	route("GET /health", handleHealth(api, logger))
	route("GET /stats", handleStats(api, logger))
	route("GET /safety-index", handleListSafetyIndex(api, logger))
	route("GET /safety-index/{date}", handleGetSafetyIndex(api, logger))
	mux.Handle("GET /metrics", m.Handler())

	return mid.Chain(mux,
		mid.Recover(logger),
		mid.RequestID(),
		mid.Logger(logger),
		mid.CORS(corsOrigin),
		mid.OTel("transitguard-api"),
	)
}

func handleQuery(api API, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req QueryRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			var typeErr *json.UnmarshalTypeError
			if errors.As(err, &typeErr) {
				writeJSON(w, logger, http.StatusUnprocessableEntity, errorResponse{Detail: "question must be a string"})
				return
			}
			writeJSON(w, logger, http.StatusBadRequest, errorResponse{Detail: "invalid request body"})
			return
		}
		if err := validate.Struct(req); err != nil {
			writeJSON(w, logger, http.StatusUnprocessableEntity, errorResponse{Detail: "question is required"})
			return
		}

		ans, err := api.Ask(r.Context(), *req.Question)
		if err != nil {
			writeError(w, logger, "query", err)
			return
		}
		writeJSON(w, logger, http.StatusOK, QueryResponse{Answer: ans})
	}
}

func handleSchema(api API, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := api.Schema(r.Context())
		if err != nil {
			writeError(w, logger, "schema", err)
			return
		}
		writeJSON(w, logger, http.StatusOK, SchemaResponse{Schema: s.String()})
	}
}

func handleHealth(api API, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		state := api.State()
		status := http.StatusOK
		if state != domain.StateReady {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, logger, status, map[string]string{"status": state.String()})
	}
}

func handleStats(api API, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := api.Counts(r.Context())
		if err != nil {
			writeError(w, logger, "stats", err)
			return
		}
		writeJSON(w, logger, http.StatusOK, c)
	}
}

func handleListSafetyIndex(api API, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		offset, err := queryInt(r, "offset", 0)
		if err != nil {
			writeJSON(w, logger, http.StatusBadRequest, errorResponse{Detail: "offset must be a non-negative integer"})
			return
		}
		limit, err := queryInt(r, "limit", 100)
		if err != nil || limit == 0 {
			writeJSON(w, logger, http.StatusBadRequest, errorResponse{Detail: "limit must be a positive integer"})
			return
		}

		items, err := api.ListSafetyIndex(r.Context(), offset, limit)
		if err != nil {
			writeError(w, logger, "list safety index", err)
			return
		}
		if items == nil {
			items = []domain.SafetyIndex{}
		}
		writeJSON(w, logger, http.StatusOK, ListResponse{Items: items, Offset: offset, Limit: limit})
	}
}

func handleGetSafetyIndex(api API, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := api.SafetyIndex(r.Context(), r.PathValue("date"))
		if err != nil {
			writeError(w, logger, "get safety index", err)
			return
		}
		writeJSON(w, logger, http.StatusOK, s)
	}
}

func queryInt(r *http.Request, key string, fallback int) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, errors.New("negative")
	}
	return n, nil
}

// writeJSON encodes v after the header is sent, so an encoding failure can
// only be logged.
func writeJSON(w http.ResponseWriter, logger *slog.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("encode response failed", "status", status, "err", err)
	}
}

// writeError maps err onto a status: not ready is 503, a missing node is
// 404, everything else is 500 with the error message as detail.
func writeError(w http.ResponseWriter, logger *slog.Logger, op string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, repo.ErrNotFound):
		status = http.StatusNotFound
	case domain.KindOf(err) == domain.KindUnavailable:
		status = http.StatusServiceUnavailable
	}
	if status == http.StatusInternalServerError {
		logger.Error(op+" failed", "err", err)
	}
	writeJSON(w, logger, status, errorResponse{Detail: err.Error(), Kind: domain.KindOf(err).String()})
}
