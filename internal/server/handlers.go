package server

import (
	"encoding/json"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/planning-cli/internal/forecast"
	"github.com/sells-group/planning-cli/internal/levelscore"
	"github.com/sells-group/planning-cli/internal/model"
	"github.com/sells-group/planning-cli/internal/override"
	"github.com/sells-group/planning-cli/internal/pricing"
	"github.com/sells-group/planning-cli/internal/scenario"
	"github.com/sells-group/planning-cli/internal/series"
	"github.com/sells-group/planning-cli/internal/store"
)

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	latency, err := s.store.Ping(r.Context())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, eris.Wrap(err, "store unavailable"))
		return
	}
	count, err := s.store.CountRecords(r.Context(), store.Filter{})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"store":   s.cfg.Store.Driver,
		"ping_ms": float64(latency.Microseconds()) / 1000,
		"records": count,
	})
}

func (s *Server) handleFilters(w http.ResponseWriter, r *http.Request) {
	options, err := s.store.FilterOptions(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, options)
}

func (s *Server) handleRecords(w http.ResponseWriter, r *http.Request) {
	filter, err := filterFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	records, err := s.store.ListRecords(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count":   len(records),
		"records": records,
	})
}

func (s *Server) handleTotals(w http.ResponseWriter, r *http.Request) {
	filter, err := filterFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	totals, err := s.store.YearlyTotals(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	if r.URL.Query().Get("scenarios") != "true" {
		writeJSON(w, http.StatusOK, map[string]any{"totals": totals})
		return
	}

	total := &model.YearSeries{History: totals}
	forecast.Project(total, model.ForecastSettings{
		Variable:       model.Variable(s.cfg.Forecast.Variable),
		Method:         model.MethodCAGR,
		SmoothingYears: s.cfg.Forecast.SmoothingYears,
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"totals":    totals,
		"scenarios": scenario.Overlay(totals, total.Baseline),
	})
}

func (s *Server) handleCombinations(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, eris.Errorf("invalid limit %q", raw))
			return
		}
		limit = n
	}
	combos, err := s.store.ListCombinations(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count":        len(combos),
		"combinations": combos,
	})
}

type forecastRequest struct {
	Dimensions []string               `json:"dimensions"`
	Settings   model.ForecastSettings `json:"settings"`
	Filter     map[string][]string    `json:"filter,omitempty"`
	Years      []int                  `json:"years,omitempty"`
	WithPrices bool                   `json:"with_prices,omitempty"`
	Price      *model.PriceSettings   `json:"price,omitempty"`
}

// handleForecast projects the requested grouping, applies the server's
// current row overrides, and returns effective series plus bottom-up
// rollups. Price derivation is opt-in and only meaningful for volume runs.
func (s *Server) handleForecast(w http.ResponseWriter, r *http.Request) {
	var req forecastRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, eris.Wrap(err, "decode request"))
		return
	}

	dims := make([]model.Level, 0, len(req.Dimensions))
	for _, d := range req.Dimensions {
		l, err := model.ParseLevel(d)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		dims = append(dims, l)
	}

	settings := req.Settings
	if settings.Variable == "" {
		settings.Variable = model.Variable(s.cfg.Forecast.Variable)
	}
	if settings.Method == "" {
		settings.Method = model.Method(s.cfg.Forecast.Method)
	}
	if settings.SmoothingYears == 0 {
		settings.SmoothingYears = s.cfg.Forecast.SmoothingYears
	}

	filter, err := filterFromBody(req.Filter, req.Years)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	records, err := s.store.ListRecords(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	grouped, err := forecast.ProjectSeries(records, dims, settings)
	if err != nil {
		status := http.StatusInternalServerError
		if eris.Is(err, series.ErrEmptyDataset) || eris.Is(err, model.ErrInvalidSettings) {
			status = http.StatusUnprocessableEntity
		}
		writeError(w, status, err)
		return
	}

	if req.WithPrices && settings.Variable == model.VariableVolume {
		prices, err := s.resolvePrices(records, req.Price)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, err)
			return
		}
		pricing.ApplyToBaselines(grouped, prices)
	}

	s.mu.Lock()
	result := override.Apply(grouped, s.rowOverrides)
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, result)
}

type pricesRequest struct {
	Settings *model.PriceSettings `json:"settings,omitempty"`
	Filter   map[string][]string  `json:"filter,omitempty"`
}

func (s *Server) handlePrices(w http.ResponseWriter, r *http.Request) {
	var req pricesRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, eris.Wrap(err, "decode request"))
			return
		}
	}

	filter, err := filterFromBody(req.Filter, nil)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	records, err := s.store.ListRecords(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	prices, err := s.resolvePrices(records, req.Settings)
	if err != nil {
		status := http.StatusUnprocessableEntity
		if eris.Is(err, series.ErrEmptyDataset) {
			status = http.StatusNotFound
		}
		writeError(w, status, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"prices": prices})
}

// resolvePrices aggregates records by productType and resolves the per-year
// price matrix under the server's current price overrides.
func (s *Server) resolvePrices(records []model.HistoricalRecord, settings *model.PriceSettings) (map[string]map[int]float64, error) {
	byType, err := series.Aggregate(records, []model.Level{model.LevelProductType}, series.Options{})
	if err != nil {
		return nil, eris.Wrap(err, "aggregate product types")
	}
	baselines := make(map[string]*model.YearSeries, len(byType))
	for _, sr := range byType {
		baselines[sr.Values[model.LevelProductType]] = sr
	}

	ps := model.PriceSettings{
		Mode:            model.PriceMode(s.cfg.Price.Mode),
		AnnualGrowthPct: s.cfg.Price.AnnualGrowthPct,
		BasePriceYear:   s.cfg.Price.BasePriceYear,
	}
	if settings != nil {
		ps = *settings
	}

	s.mu.Lock()
	overrides := clonePriceOverrides(s.priceOverrides)
	s.mu.Unlock()

	return pricing.Resolve(baselines, ps, overrides)
}

func (s *Server) handleGetOverrides(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{
		"rows":   s.rowOverrides,
		"prices": s.priceOverrides,
	})
}

type overrideRequest struct {
	Key  string `json:"key"`
	Year int    `json:"year"`
	model.OverridePatch
}

func (s *Server) handleSetOverride(w http.ResponseWriter, r *http.Request) {
	var req overrideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, eris.Wrap(err, "decode request"))
		return
	}
	if req.Key == "" {
		writeError(w, http.StatusBadRequest, eris.New("key is required"))
		return
	}
	if req.Year < model.FirstForecastYear || req.Year > model.LastForecastYear {
		writeError(w, http.StatusBadRequest,
			eris.Errorf("year %d outside forecast range %d-%d", req.Year, model.FirstForecastYear, model.LastForecastYear))
		return
	}

	s.mu.Lock()
	override.Set(s.rowOverrides, model.DimensionKey(req.Key), req.Year, req.OverridePatch)
	remaining := len(s.rowOverrides)
	s.mu.Unlock()

	zap.L().Debug("override set", zap.String("key", req.Key), zap.Int("year", req.Year))
	writeJSON(w, http.StatusOK, map[string]any{"overridden_keys": remaining})
}

func (s *Server) handleDeleteOverride(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	if key == "" {
		writeError(w, http.StatusBadRequest, eris.New("key query parameter is required"))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if raw := r.URL.Query().Get("year"); raw != "" {
		year, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, eris.Errorf("invalid year %q", raw))
			return
		}
		override.ClearYear(s.rowOverrides, model.DimensionKey(key), year)
	} else {
		override.Clear(s.rowOverrides, model.DimensionKey(key))
	}
	writeJSON(w, http.StatusOK, map[string]any{"overridden_keys": len(s.rowOverrides)})
}

type priceOverrideRequest struct {
	ProductType string  `json:"product_type"`
	Year        int     `json:"year"`
	GrowthPct   float64 `json:"growth_pct"`
}

func (s *Server) handleSetPriceOverride(w http.ResponseWriter, r *http.Request) {
	var req priceOverrideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, eris.Wrap(err, "decode request"))
		return
	}
	if req.ProductType == "" {
		writeError(w, http.StatusBadRequest, eris.New("product_type is required"))
		return
	}
	if req.Year < model.FirstForecastYear || req.Year > model.LastForecastYear {
		writeError(w, http.StatusBadRequest,
			eris.Errorf("year %d outside forecast range %d-%d", req.Year, model.FirstForecastYear, model.LastForecastYear))
		return
	}

	s.mu.Lock()
	if s.priceOverrides[req.ProductType] == nil {
		s.priceOverrides[req.ProductType] = make(map[int]float64)
	}
	s.priceOverrides[req.ProductType][req.Year] = req.GrowthPct
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleDeletePriceOverride(w http.ResponseWriter, r *http.Request) {
	productType := r.URL.Query().Get("product_type")
	if productType == "" {
		writeError(w, http.StatusBadRequest, eris.New("product_type query parameter is required"))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if raw := r.URL.Query().Get("year"); raw != "" {
		year, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, eris.Errorf("invalid year %q", raw))
			return
		}
		delete(s.priceOverrides[productType], year)
		if len(s.priceOverrides[productType]) == 0 {
			delete(s.priceOverrides, productType)
		}
	} else {
		delete(s.priceOverrides, productType)
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type startRunRequest struct {
	Levels [][]string `json:"levels,omitempty"`
}

func (s *Server) handleStartRun(w http.ResponseWriter, r *http.Request) {
	var req startRunRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, eris.Wrap(err, "decode request"))
			return
		}
	}

	levels := levelscore.DefaultLevels
	if len(req.Levels) > 0 {
		levels = make([][]model.Level, 0, len(req.Levels))
		for _, set := range req.Levels {
			parsed := make([]model.Level, 0, len(set))
			for _, name := range set {
				l, err := model.ParseLevel(name)
				if err != nil {
					writeError(w, http.StatusBadRequest, err)
					return
				}
				parsed = append(parsed, l)
			}
			if len(parsed) == 0 {
				writeError(w, http.StatusBadRequest, eris.New("empty level set"))
				return
			}
			levels = append(levels, parsed)
		}
	}

	run, err := s.reg.Start(r.Context(), levels)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusCreated, run)
}

func (s *Server) handleProcessRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.reg.ProcessNext(r.Context(), chi.URLParam(r, "runID"))
	if err != nil {
		if eris.Is(err, levelscore.ErrUnknownRun) {
			writeError(w, http.StatusNotFound, err)
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *Server) handleRunStatus(w http.ResponseWriter, r *http.Request) {
	run, err := s.reg.Status(chi.URLParam(r, "runID"))
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *Server) handleRunResults(w http.ResponseWriter, r *http.Request) {
	results, err := s.reg.Results(chi.URLParam(r, "runID"))
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

// filterFromQuery builds a store filter from ?year= and per-level query
// parameters, each accepting comma-separated values.
func filterFromQuery(r *http.Request) (store.Filter, error) {
	f := store.Filter{Values: make(map[model.Level][]string)}
	q := r.URL.Query()

	for _, raw := range splitParams(q["year"]) {
		year, err := strconv.Atoi(raw)
		if err != nil {
			return f, eris.Errorf("invalid year %q", raw)
		}
		f.Years = append(f.Years, year)
	}
	sort.Ints(f.Years)

	for _, level := range model.HierarchyLevels {
		if vals := splitParams(q[string(level)]); len(vals) > 0 {
			f.Values[level] = vals
		}
	}
	return f, f.Validate()
}

// filterFromBody builds a store filter from a JSON level->values map.
func filterFromBody(values map[string][]string, years []int) (store.Filter, error) {
	f := store.Filter{Years: years, Values: make(map[model.Level][]string)}
	for name, vals := range values {
		level, err := model.ParseLevel(name)
		if err != nil {
			return f, err
		}
		if len(vals) > 0 {
			f.Values[level] = vals
		}
	}
	return f, f.Validate()
}

func splitParams(raw []string) []string {
	var out []string
	for _, item := range raw {
		for _, v := range strings.Split(item, ",") {
			if v = strings.TrimSpace(v); v != "" {
				out = append(out, v)
			}
		}
	}
	return out
}

func clonePriceOverrides(o model.PriceOverrides) model.PriceOverrides {
	cp := make(model.PriceOverrides, len(o))
	for pt, years := range o {
		cp[pt] = make(map[int]float64, len(years))
		for y, p := range years {
			cp[pt][y] = p
		}
	}
	return cp
}
