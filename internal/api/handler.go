// Package api implements the hosted Breathescope REST API.
// It provides score, history, and recommendation endpoints backed by the
// per-user engines and Postgres.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/breathescope/breathescope/internal/archive"
	"github.com/breathescope/breathescope/internal/store"
	"github.com/breathescope/breathescope/pkg/engine"
	"github.com/breathescope/breathescope/pkg/score"
)

// UserStore is the slice of the persistence layer the API needs beyond
// what the engines own. *store.Service satisfies it.
type UserStore interface {
	UpsertUser(ctx context.Context, user *score.User, profile *score.HealthProfile) error
	GetUser(ctx context.Context, userID string) (*score.User, *score.HealthProfile, error)
	ListTriggerEvents(ctx context.Context, userID string, limit int) ([]store.TriggerEventRow, error)
}

// Handler is the top-level API handler for the hosted Breathescope service.
type Handler struct {
	manager  *engine.Manager
	storeSvc UserStore
	exporter *archive.Exporter
	cache    *ExportCache
	log      zerolog.Logger
}

// NewHandler creates a new API handler.
func NewHandler(manager *engine.Manager, storeSvc UserStore, exporter *archive.Exporter, cache *ExportCache, log zerolog.Logger) *Handler {
	if cache == nil {
		cache = NewExportCacheFromEnv()
	}
	return &Handler{
		manager:  manager,
		storeSvc: storeSvc,
		exporter: exporter,
		cache:    cache,
		log:      log,
	}
}

// RegisterRoutes registers all API routes on the given ServeMux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Write endpoints (auth-protected)
	mux.HandleFunc("POST /api/v1/users", h.handleRegisterUser)
	mux.HandleFunc("POST /api/v1/users/{userID}/score", h.handleComputeScore)
	mux.HandleFunc("POST /api/v1/users/{userID}/refresh", h.handleRefresh)
	mux.HandleFunc("POST /api/v1/users/{userID}/merge", h.handleMerge)
	mux.HandleFunc("POST /api/v1/users/{userID}/recommendations/{recID}/dismiss", h.handleDismiss)
	mux.HandleFunc("POST /api/v1/users/{userID}/recommendations/{recID}/complete", h.handleComplete)
	mux.HandleFunc("POST /api/v1/users/{userID}/exports", h.handleCreateExport)

	// Read endpoints
	mux.HandleFunc("GET /api/v1/users/{userID}/score", h.handleCurrentScore)
	mux.HandleFunc("GET /api/v1/users/{userID}/state", h.handleState)
	mux.HandleFunc("GET /api/v1/users/{userID}/history", h.handleHistory)
	mux.HandleFunc("GET /api/v1/users/{userID}/trend", h.handleTrend)
	mux.HandleFunc("GET /api/v1/users/{userID}/attention", h.handleAttention)
	mux.HandleFunc("GET /api/v1/users/{userID}/alerts", h.handleAlerts)
	mux.HandleFunc("GET /api/v1/users/{userID}/recommendations", h.handleListRecommendations)
	mux.HandleFunc("GET /api/v1/users/{userID}/exports/{exportID}", h.handleGetExport)
	mux.HandleFunc("POST /api/v1/users/{userID}/reports", h.handleCreateReport)

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
}

// engineFor resolves the per-user engine, writing the error response on
// failure.
func (h *Handler) engineFor(w http.ResponseWriter, userID string) (*engine.Engine, bool) {
	eng, err := h.manager.ForUser(userID)
	if err != nil {
		writeEngineError(w, err)
		return nil, false
	}
	return eng, true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeEngineError maps engine and scoring errors to HTTP statuses.
func writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, score.ErrMissingInput), errors.Is(err, score.ErrInvalidWeights):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, engine.ErrNotReady):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, score.ErrDataUnavailable):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, engine.ErrTimeout):
		writeError(w, http.StatusGatewayTimeout, err.Error())
	case errors.Is(err, engine.ErrClosed):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
