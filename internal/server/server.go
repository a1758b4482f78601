// Package server hosts the planning engine over HTTP. It is a thin adapter:
// all projection, override, and scoring semantics live in the engine
// packages; the server only decodes requests, holds the in-memory override
// and run state, and encodes results.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/planning-cli/internal/config"
	"github.com/sells-group/planning-cli/internal/levelscore"
	"github.com/sells-group/planning-cli/internal/model"
	"github.com/sells-group/planning-cli/internal/store"
)

// Server carries the store, the level-score registry, and the planner's
// working override state. Override state is per-process; restarting the
// server resets it.
type Server struct {
	store store.Store
	cfg   *config.Config
	reg   *levelscore.Registry

	mu             sync.Mutex
	rowOverrides   model.RowOverrides
	priceOverrides model.PriceOverrides
}

// New builds a server around an opened store.
func New(st store.Store, cfg *config.Config) *Server {
	reg := levelscore.NewRegistry(levelscore.SourceFunc(func(ctx context.Context) ([]model.HistoricalRecord, error) {
		return st.ListRecords(ctx, store.Filter{})
	}), cfg.LevelScore.Lambda)

	return &Server{
		store:          st,
		cfg:            cfg,
		reg:            reg,
		rowOverrides:   make(model.RowOverrides),
		priceOverrides: make(model.PriceOverrides),
	}
}

// Router assembles the chi route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Get("/filters", s.handleFilters)
		r.Get("/records", s.handleRecords)
		r.Get("/totals", s.handleTotals)
		r.Get("/combinations", s.handleCombinations)

		r.Post("/forecast", s.handleForecast)
		r.Post("/prices", s.handlePrices)

		r.Get("/overrides", s.handleGetOverrides)
		r.Post("/overrides", s.handleSetOverride)
		r.Delete("/overrides", s.handleDeleteOverride)
		r.Post("/price-overrides", s.handleSetPriceOverride)
		r.Delete("/price-overrides", s.handleDeletePriceOverride)

		r.Route("/levelscore/runs", func(r chi.Router) {
			r.Post("/", s.handleStartRun)
			r.Get("/{runID}", s.handleRunStatus)
			r.Post("/{runID}/process", s.handleProcessRun)
			r.Get("/{runID}/results", s.handleRunResults)
		})
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Error("server: encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	if status >= http.StatusInternalServerError {
		zap.L().Error("server: request failed", zap.Error(err))
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
