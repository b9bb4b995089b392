package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/Angella-Mulikatete/AmplystV2-sub001/internal/matching"
	"github.com/Angella-Mulikatete/AmplystV2-sub001/internal/metrics"
)

// Ranker ranks one decoded request. *matching.Ranker implements it.
type Ranker interface {
	Rank(ctx context.Context, raw matching.RawRequest) (matching.Result, error)
}

// Options tune the HTTP layer.
type Options struct {
	// RequestTimeout bounds a whole /match call. Zero disables it.
	RequestTimeout time.Duration
	// MaxBodyBytes caps the request body. Zero or less means 1 MiB.
	MaxBodyBytes int64
}

const defaultMaxBodyBytes = 1 << 20

// Handler serves the matching API.
type Handler struct {
	ranker Ranker
	opts   Options
	logger *zap.Logger
}

// NewHandler creates a handler around ranker.
func NewHandler(ranker Ranker, opts Options, logger *zap.Logger) *Handler {
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = defaultMaxBodyBytes
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{ranker: ranker, opts: opts, logger: logger}
}

// NewRouter wires routes and middleware.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(h.logger))
	r.Use(recoverMiddleware(h.logger))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", metrics.Handler())
	r.Post("/match", h.match)

	return r
}
