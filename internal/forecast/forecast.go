// Package forecast produces baseline projections for 2027-2030 from
// historical year series, using CAGR, linear trend, or manual growth rules.
package forecast

import (
	"math"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/planning-cli/internal/model"
	"github.com/sells-group/planning-cli/internal/series"
)

// ProjectSeries aggregates records by dims and projects a baseline for every
// resulting combination. Output always carries exactly 4 future points
// (2027-2030) per series regardless of method. Negative projections are
// clamped to zero at projection time.
func ProjectSeries(records []model.HistoricalRecord, dims []model.Level, settings model.ForecastSettings) (map[model.DimensionKey]*model.YearSeries, error) {
	if err := settings.Validate(); err != nil {
		return nil, eris.Wrap(err, "forecast: settings")
	}

	grouped, err := series.Aggregate(records, dims, series.Options{})
	if err != nil {
		return nil, eris.Wrap(err, "forecast: aggregate")
	}

	for _, s := range grouped {
		Project(s, settings)
	}

	zap.L().Info("forecast: baseline projected",
		zap.String("method", string(settings.Method)),
		zap.String("variable", string(settings.Variable)),
		zap.Int("combinations", len(grouped)),
	)
	return grouped, nil
}

// Project fills s.Baseline in place for the configured method. Settings must
// already be validated.
func Project(s *model.YearSeries, settings model.ForecastSettings) {
	switch settings.Method {
	case model.MethodTrend:
		projectTrend(s, settings)
	case model.MethodManual:
		if pct, ok := settings.RuleFor(s.Values); ok {
			projectCompounding(s, settings, pct/100)
			return
		}
		// Series with no matching rule fall back to CAGR.
		projectCompounding(s, settings, cagrRate(s, settings))
	default:
		projectCompounding(s, settings, cagrRate(s, settings))
	}
}

// cagrRate computes the compound annual growth rate over the last
// SmoothingYears historical points, clamped to available data. Fewer than 2
// points, or a non-positive endpoint, yields rate 0 (flat continuation).
func cagrRate(s *model.YearSeries, settings model.ForecastSettings) float64 {
	points := s.History
	n := settings.SmoothingYears
	if n < 2 {
		n = 2
	}
	if len(points) > n {
		points = points[len(points)-n:]
	}
	if len(points) < 2 {
		return 0
	}

	first := points[0]
	last := points[len(points)-1]
	firstV := value(first, settings.Variable)
	lastV := value(last, settings.Variable)
	if firstV <= 0 || lastV <= 0 {
		return 0
	}

	periods := last.Year - first.Year
	if periods <= 0 {
		periods = 1
	}
	return math.Pow(lastV/firstV, 1/float64(periods)) - 1
}

// projectCompounding chains value(year) = value(year-1) * (1+rate) from the
// final historical value. Both measures grow at the same rate; the chosen
// variable only controls which measure the rate was derived from.
func projectCompounding(s *model.YearSeries, settings model.ForecastSettings, rate float64) {
	var lastVolume, lastRevenue float64
	if n := len(s.History); n > 0 {
		lastVolume = s.History[n-1].Volume
		lastRevenue = s.History[n-1].Revenue
	}

	s.Baseline = s.Baseline[:0]
	for _, year := range model.ForecastYears() {
		lastVolume = clampNonNegative(lastVolume * (1 + rate))
		lastRevenue = clampNonNegative(lastRevenue * (1 + rate))
		s.Baseline = append(s.Baseline, model.YearPoint{
			Year:    year,
			Volume:  lastVolume,
			Revenue: lastRevenue,
		})
	}
}

// projectTrend fits ordinary least squares over all available history and
// projects forward on both measures.
func projectTrend(s *model.YearSeries, settings model.ForecastSettings) {
	if len(s.History) < 2 {
		// Not enough points for a slope; behave like rate-0 compounding.
		projectCompounding(s, settings, 0)
		return
	}

	years := make([]float64, len(s.History))
	volumes := make([]float64, len(s.History))
	revenues := make([]float64, len(s.History))
	for i, p := range s.History {
		years[i] = float64(p.Year)
		volumes[i] = p.Volume
		revenues[i] = p.Revenue
	}

	volSlope, volIntercept := linearFit(years, volumes)
	revSlope, revIntercept := linearFit(years, revenues)

	s.Baseline = s.Baseline[:0]
	for _, year := range model.ForecastYears() {
		s.Baseline = append(s.Baseline, model.YearPoint{
			Year:    year,
			Volume:  clampNonNegative(volIntercept + volSlope*float64(year)),
			Revenue: clampNonNegative(revIntercept + revSlope*float64(year)),
		})
	}
}

// linearFit returns the OLS slope and intercept. A degenerate x spread falls
// back to a flat line at the mean.
func linearFit(xs, ys []float64) (slope, intercept float64) {
	n := float64(len(xs))
	var sumX, sumY, sumXY, sumX2 float64
	for i := range xs {
		sumX += xs[i]
		sumY += ys[i]
		sumXY += xs[i] * ys[i]
		sumX2 += xs[i] * xs[i]
	}
	denom := n*sumX2 - sumX*sumX
	if denom == 0 {
		return 0, sumY / n
	}
	slope = (n*sumXY - sumX*sumY) / denom
	intercept = (sumY - slope*sumX) / n
	return slope, intercept
}

func value(p model.YearPoint, v model.Variable) float64 {
	if v == model.VariableRevenue {
		return p.Revenue
	}
	return p.Volume
}

func clampNonNegative(v float64) float64 {
	if v < 0 || math.IsNaN(v) {
		return 0
	}
	return v
}
