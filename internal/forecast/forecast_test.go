package forecast

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/planning-cli/internal/model"
)

func historySeries(points ...model.YearPoint) *model.YearSeries {
	return &model.YearSeries{
		Key:     "productType=Pasta",
		Levels:  []model.Level{model.LevelProductType},
		Values:  map[model.Level]string{model.LevelProductType: "Pasta"},
		History: points,
	}
}

func cagrSettings(smoothing int) model.ForecastSettings {
	return model.ForecastSettings{
		Variable:       model.VariableVolume,
		Method:         model.MethodCAGR,
		SmoothingYears: smoothing,
	}
}

func TestProject_CAGRDoubling(t *testing.T) {
	// 100 -> 200 over two periods: rate = 2^(1/2) - 1 ~ 41.42%.
	s := historySeries(
		model.YearPoint{Year: 2024, Volume: 100, Revenue: 100},
		model.YearPoint{Year: 2025, Volume: 140, Revenue: 140},
		model.YearPoint{Year: 2026, Volume: 200, Revenue: 200},
	)

	Project(s, cagrSettings(3))

	require.Len(t, s.Baseline, 4)
	assert.Equal(t, model.FirstForecastYear, s.Baseline[0].Year)
	assert.Equal(t, model.LastForecastYear, s.Baseline[3].Year)
	assert.InDelta(t, 282.84, s.Baseline[0].Volume, 0.01)
	assert.InDelta(t, 400.0, s.Baseline[1].Volume, 0.01)
	// Revenue compounds at the same rate.
	assert.InDelta(t, 282.84, s.Baseline[0].Revenue, 0.01)
}

func TestProject_CAGRSmoothingWindow(t *testing.T) {
	// With smoothing 2 only 2025 and 2026 matter: 50 -> 100 is +100%/yr.
	s := historySeries(
		model.YearPoint{Year: 2023, Volume: 1000},
		model.YearPoint{Year: 2024, Volume: 900},
		model.YearPoint{Year: 2025, Volume: 50},
		model.YearPoint{Year: 2026, Volume: 100},
	)

	Project(s, cagrSettings(2))

	require.Len(t, s.Baseline, 4)
	assert.InDelta(t, 200, s.Baseline[0].Volume, 1e-9)
	assert.InDelta(t, 400, s.Baseline[1].Volume, 1e-9)
}

func TestProject_CAGRNonPositiveEndpointIsFlat(t *testing.T) {
	s := historySeries(
		model.YearPoint{Year: 2025, Volume: 0, Revenue: 10},
		model.YearPoint{Year: 2026, Volume: 80, Revenue: 40},
	)

	Project(s, cagrSettings(3))

	require.Len(t, s.Baseline, 4)
	for _, p := range s.Baseline {
		assert.Equal(t, 80.0, p.Volume)
		assert.Equal(t, 40.0, p.Revenue)
	}
}

func TestProject_CAGRSinglePointIsFlat(t *testing.T) {
	s := historySeries(model.YearPoint{Year: 2026, Volume: 70, Revenue: 35})

	Project(s, cagrSettings(3))

	require.Len(t, s.Baseline, 4)
	assert.Equal(t, 70.0, s.Baseline[3].Volume)
}

func TestProject_TrendLinearGrowth(t *testing.T) {
	// Perfect line: volume = 10*(year-2014). Projection continues it exactly.
	s := historySeries(
		model.YearPoint{Year: 2024, Volume: 100},
		model.YearPoint{Year: 2025, Volume: 110},
		model.YearPoint{Year: 2026, Volume: 120},
	)

	Project(s, model.ForecastSettings{Variable: model.VariableVolume, Method: model.MethodTrend, SmoothingYears: 3})

	require.Len(t, s.Baseline, 4)
	assert.InDelta(t, 130, s.Baseline[0].Volume, 1e-6)
	assert.InDelta(t, 160, s.Baseline[3].Volume, 1e-6)
}

func TestProject_TrendClampsNegative(t *testing.T) {
	// Steep decline crosses zero inside the horizon.
	s := historySeries(
		model.YearPoint{Year: 2024, Volume: 100},
		model.YearPoint{Year: 2025, Volume: 60},
		model.YearPoint{Year: 2026, Volume: 20},
	)

	Project(s, model.ForecastSettings{Variable: model.VariableVolume, Method: model.MethodTrend, SmoothingYears: 3})

	require.Len(t, s.Baseline, 4)
	assert.Equal(t, 0.0, s.Baseline[1].Volume)
	assert.Equal(t, 0.0, s.Baseline[3].Volume)
}

func TestProject_ManualRuleApplies(t *testing.T) {
	s := historySeries(
		model.YearPoint{Year: 2025, Volume: 100, Revenue: 200},
		model.YearPoint{Year: 2026, Volume: 100, Revenue: 200},
	)

	settings := model.ForecastSettings{
		Variable:       model.VariableVolume,
		Method:         model.MethodManual,
		SmoothingYears: 3,
		ManualRules: []model.ManualRule{
			{Scope: model.LevelProductType, Key: "Pasta", GrowthPct: 4.5},
		},
	}

	Project(s, settings)

	require.Len(t, s.Baseline, 4)
	assert.InDelta(t, 104.5, s.Baseline[0].Volume, 1e-9)
	assert.InDelta(t, 209.0, s.Baseline[0].Revenue, 1e-9)
	assert.InDelta(t, 100*1.045*1.045, s.Baseline[1].Volume, 1e-9)
}

func TestProject_ManualFallsBackToCAGR(t *testing.T) {
	s := historySeries(
		model.YearPoint{Year: 2025, Volume: 100},
		model.YearPoint{Year: 2026, Volume: 110},
	)

	settings := model.ForecastSettings{
		Variable:       model.VariableVolume,
		Method:         model.MethodManual,
		SmoothingYears: 3,
		ManualRules: []model.ManualRule{
			{Scope: model.LevelProductType, Key: "Rice", GrowthPct: 9},
		},
	}

	Project(s, settings)

	// No rule matches Pasta, so the 10% CAGR drives the projection.
	require.Len(t, s.Baseline, 4)
	assert.InDelta(t, 121, s.Baseline[0].Volume, 1e-9)
}

func TestProjectSeries_ValidatesSettings(t *testing.T) {
	records := []model.HistoricalRecord{{
		Year:       2026,
		Dimensions: map[model.Level]string{model.LevelProductType: "Pasta"},
		VolumeKg:   10,
	}}

	_, err := ProjectSeries(records, []model.Level{model.LevelProductType}, model.ForecastSettings{
		Variable: "units", Method: model.MethodCAGR, SmoothingYears: 3,
	})
	assert.Error(t, err)
}

func TestProjectSeries_ProjectsEveryCombination(t *testing.T) {
	records := []model.HistoricalRecord{
		{Year: 2025, Dimensions: map[model.Level]string{model.LevelProductType: "Pasta"}, VolumeKg: 100},
		{Year: 2026, Dimensions: map[model.Level]string{model.LevelProductType: "Pasta"}, VolumeKg: 110},
		{Year: 2025, Dimensions: map[model.Level]string{model.LevelProductType: "Rice"}, VolumeKg: 50},
		{Year: 2026, Dimensions: map[model.Level]string{model.LevelProductType: "Rice"}, VolumeKg: 55},
	}

	grouped, err := ProjectSeries(records, []model.Level{model.LevelProductType}, cagrSettings(3))
	require.NoError(t, err)
	require.Len(t, grouped, 2)
	for _, s := range grouped {
		assert.Len(t, s.Baseline, 4)
	}
}

func TestLinearFit_DegenerateSpread(t *testing.T) {
	slope, intercept := linearFit([]float64{2026, 2026}, []float64{10, 30})
	assert.Equal(t, 0.0, slope)
	assert.Equal(t, 20.0, intercept)
}
