package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/planning-cli/internal/config"
	"github.com/sells-group/planning-cli/internal/model"
	"github.com/sells-group/planning-cli/internal/store"
)

func testConfig() *config.Config {
	return &config.Config{
		Store:      config.StoreConfig{Driver: "sqlite"},
		Forecast:   config.ForecastConfig{Variable: "volume", Method: "cagr", SmoothingYears: 3},
		Price:      config.PriceConfig{Mode: "fixed", AnnualGrowthPct: 3, BasePriceYear: 2026},
		LevelScore: config.LevelScoreConfig{Lambda: 0.05},
	}
}

func seededServer(t *testing.T) *httptest.Server {
	t.Helper()

	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "planning.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck

	ctx := context.Background()
	require.NoError(t, st.Migrate(ctx))

	var records []model.HistoricalRecord
	for year := 2024; year <= 2026; year++ {
		for _, c := range []struct {
			director, productType string
			volume                float64
		}{
			{"North", "Pasta", 100},
			{"South", "Rice", 50},
		} {
			records = append(records, model.HistoricalRecord{
				Year: year,
				Dimensions: map[model.Level]string{
					model.LevelDirector:         c.director,
					model.LevelState:            "SP",
					model.LevelProductType:      c.productType,
					model.LevelFamily:           "F",
					model.LevelProductionFamily: "PF",
					model.LevelBrand:            "B",
					model.LevelProductCode:      "C",
					model.LevelProductName:      "N",
				},
				VolumeKg:   c.volume + float64(year-2024)*10,
				RevenueCur: (c.volume + float64(year-2024)*10) * 2,
			})
		}
	}
	_, err = st.UpsertRecords(ctx, records)
	require.NoError(t, err)
	_, err = st.RebuildCombinations(ctx)
	require.NoError(t, err)

	srv := httptest.NewServer(New(st, testConfig()).Router())
	t.Cleanup(srv.Close)
	return srv
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	return resp.StatusCode
}

func postJSON(t *testing.T, url string, body, out any) int {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestServer_HealthAndStatus(t *testing.T) {
	srv := seededServer(t)

	var health map[string]string
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/health", &health))
	assert.Equal(t, "ok", health["status"])

	var status map[string]any
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/status", &status))
	assert.Equal(t, float64(6), status["records"])
}

func TestServer_FiltersAndRecords(t *testing.T) {
	srv := seededServer(t)

	var filters map[string][]string
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/filters", &filters))
	assert.Equal(t, []string{"North", "South"}, filters["director"])

	var records struct {
		Count int `json:"count"`
	}
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/records?director=North&year=2024,2025", &records))
	assert.Equal(t, 2, records.Count)

	var bad map[string]string
	code := getJSON(t, srv.URL+"/api/records?year=abc", &bad)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestServer_TotalsWithScenarios(t *testing.T) {
	srv := seededServer(t)

	var out struct {
		Totals    []model.YearPoint `json:"totals"`
		Scenarios []struct {
			Definition struct {
				ID string `json:"id"`
			} `json:"definition"`
			Totals []model.YearPoint `json:"totals"`
		} `json:"scenarios"`
	}
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/totals?scenarios=true", &out))
	require.Len(t, out.Totals, 3)
	assert.Equal(t, 150.0, out.Totals[0].Volume)
	require.Len(t, out.Scenarios, 3)
	// 3 historical + 4 projected years per scenario.
	assert.Len(t, out.Scenarios[0].Totals, 7)
}

func TestServer_ForecastWithOverride(t *testing.T) {
	srv := seededServer(t)

	code := postJSON(t, srv.URL+"/api/overrides", map[string]any{
		"key":        "director=North",
		"year":       2027,
		"volume_pct": 10,
	}, nil)
	require.Equal(t, http.StatusOK, code)

	var result struct {
		Effective map[string]struct {
			Baseline []model.YearPoint `json:"baseline"`
		} `json:"effective"`
		GrandTotal []model.YearPoint `json:"grand_total"`
	}
	code = postJSON(t, srv.URL+"/api/forecast", map[string]any{
		"dimensions": []string{"director"},
	}, &result)
	require.Equal(t, http.StatusOK, code)
	require.Len(t, result.Effective, 2)

	north, ok := result.Effective["director=North"]
	require.True(t, ok)
	require.Len(t, north.Baseline, 4)
	// 7 distinct years in the grand total: 3 history + 4 forecast.
	assert.Len(t, result.GrandTotal, 7)

	// Clearing the override restores the pure baseline.
	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/api/overrides?key=director%3DNorth", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestServer_ForecastRejectsBadDimension(t *testing.T) {
	srv := seededServer(t)

	var out map[string]string
	code := postJSON(t, srv.URL+"/api/forecast", map[string]any{
		"dimensions": []string{"warehouse"},
	}, &out)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, out["error"], "warehouse")
}

func TestServer_Prices(t *testing.T) {
	srv := seededServer(t)

	var out struct {
		Prices map[string]map[string]float64 `json:"prices"`
	}
	code := postJSON(t, srv.URL+"/api/prices", map[string]any{}, &out)
	require.Equal(t, http.StatusOK, code)
	require.Contains(t, out.Prices, "Pasta")
	// Fixed mode carries the 2026 unit price (revenue/volume = 2) forward.
	assert.InDelta(t, 2.0, out.Prices["Pasta"]["2027"], 1e-9)
}

func TestServer_PriceOverrideLifecycle(t *testing.T) {
	srv := seededServer(t)

	// A negative growth delta is a valid per-step override; the resolver
	// clamps at zero, not the API.
	code := postJSON(t, srv.URL+"/api/price-overrides", map[string]any{
		"product_type": "Pasta",
		"year":         2027,
		"growth_pct":   -10,
	}, nil)
	require.Equal(t, http.StatusOK, code)

	var overrides struct {
		Prices map[string]map[string]float64 `json:"prices"`
	}
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/overrides", &overrides))
	assert.Equal(t, -10.0, overrides.Prices["Pasta"]["2027"])

	var priced struct {
		Prices map[string]map[string]float64 `json:"prices"`
	}
	require.Equal(t, http.StatusOK, postJSON(t, srv.URL+"/api/prices", map[string]any{}, &priced))
	assert.InDelta(t, 1.8, priced.Prices["Pasta"]["2027"], 1e-9)

	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/api/price-overrides?product_type=Pasta", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestServer_PriceOverrideRejectsOutOfRangeYear(t *testing.T) {
	srv := seededServer(t)

	var out map[string]string
	code := postJSON(t, srv.URL+"/api/price-overrides", map[string]any{
		"product_type": "Pasta",
		"year":         2026,
		"growth_pct":   5,
	}, &out)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, out["error"], "2026")
}

func TestServer_LevelScoreRunLifecycle(t *testing.T) {
	srv := seededServer(t)

	var run model.LevelScoreRun
	code := postJSON(t, srv.URL+"/api/levelscore/runs", map[string]any{
		"levels": [][]string{{"director"}, {"director", "productType"}},
	}, &run)
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, model.RunStatusRunning, run.Status)
	assert.Equal(t, 2, run.TotalLevels)

	for !run.Status.Terminal() {
		code = postJSON(t, fmt.Sprintf("%s/api/levelscore/runs/%s/process", srv.URL, run.ID), nil, &run)
		require.Equal(t, http.StatusOK, code)
	}
	assert.Equal(t, model.RunStatusCompleted, run.Status)

	var status model.LevelScoreRun
	require.Equal(t, http.StatusOK, getJSON(t, fmt.Sprintf("%s/api/levelscore/runs/%s", srv.URL, run.ID), &status))
	assert.Equal(t, run.ProcessedCombinations, status.TotalCombinations)

	var results struct {
		Results []model.LevelScore `json:"results"`
	}
	require.Equal(t, http.StatusOK, getJSON(t, fmt.Sprintf("%s/api/levelscore/runs/%s/results", srv.URL, run.ID), &results))
	require.Len(t, results.Results, 2)

	code = getJSON(t, srv.URL+"/api/levelscore/runs/nope", &status)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestServer_Combinations(t *testing.T) {
	srv := seededServer(t)

	var out struct {
		Count int `json:"count"`
	}
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/combinations?limit=10", &out))
	assert.Equal(t, 2, out.Count)
}
