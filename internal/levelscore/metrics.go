package levelscore

import (
	"math"
	"sort"

	"github.com/sells-group/planning-cli/internal/model"
	"github.com/sells-group/planning-cli/internal/series"
)

// countCombinations returns the number of distinct dimension-value
// combinations the records produce at the given level.
func countCombinations(records []model.HistoricalRecord, dims []model.Level) int {
	seen := make(map[model.DimensionKey]struct{})
	for _, rec := range records {
		seen[model.KeyFor(rec.Dimensions, dims)] = struct{}{}
	}
	return len(seen)
}

// levelMetrics groups history at the level and returns the volume-weighted
// mean coefficient of variation across combinations plus the combination
// count. Combinations with fewer than two periods or no volume are skipped
// when averaging; all arithmetic edge cases resolve to 0.
func levelMetrics(records []model.HistoricalRecord, dims []model.Level) (float64, int) {
	grouped, err := series.Aggregate(records, dims, series.Options{})
	if err != nil {
		return 0, 0
	}

	var weightedCov, totalVolume float64
	for _, s := range grouped {
		cov, volume := combinationCov(s.History)
		if volume <= 0 {
			continue
		}
		weightedCov += cov * volume
		totalVolume += volume
	}

	covLevel := 0.0
	if totalVolume > 0 {
		covLevel = weightedCov / totalVolume
	}
	return covLevel, len(grouped)
}

// combinationCov computes stddev/mean of the yearly volume series, returning
// the CoV and the total volume used as its weight. Series with fewer than
// two periods contribute no weight.
func combinationCov(points []model.YearPoint) (cov, totalVolume float64) {
	if len(points) < 2 {
		return 0, 0
	}
	var sum, sumSq float64
	for _, p := range points {
		sum += p.Volume
		sumSq += p.Volume * p.Volume
	}
	if sum <= 0 {
		return 0, 0
	}
	n := float64(len(points))
	mean := sum / n
	variance := sumSq/n - mean*mean
	if variance < 0 {
		variance = 0
	}
	if mean > 0 {
		cov = math.Sqrt(variance) / mean
	}
	return cov, sum
}

// finalize fills the min-max normalized ranking components once every level
// has been scored. When all values coincide the normalized score is 0.5.
func finalize(run *model.LevelScoreRun) {
	if len(run.Results) == 0 {
		return
	}

	minCov, maxCov := run.Results[0].CoV, run.Results[0].CoV
	minCombo, maxCombo := run.Results[0].Combinations, run.Results[0].Combinations
	for _, res := range run.Results[1:] {
		minCov = math.Min(minCov, res.CoV)
		maxCov = math.Max(maxCov, res.CoV)
		if res.Combinations < minCombo {
			minCombo = res.Combinations
		}
		if res.Combinations > maxCombo {
			maxCombo = res.Combinations
		}
	}

	normalize := func(v, lo, hi float64) float64 {
		if hi == lo {
			return 0.5
		}
		return (v - lo) / (hi - lo)
	}

	for i := range run.Results {
		res := &run.Results[i]
		res.CovScore = round4(1 - normalize(res.CoV, minCov, maxCov))
		res.ComplexityScore = round4(1 - normalize(float64(res.Combinations), float64(minCombo), float64(maxCombo)))
		res.FinalScore = round4((res.CovScore + res.ComplexityScore) / 2)
	}
}

// rankResults orders results best-first: by FinalScore once finalized, by the
// raw score otherwise.
func rankResults(results []model.LevelScore, finalized bool) {
	sort.SliceStable(results, func(i, j int) bool {
		if finalized {
			return results[i].FinalScore > results[j].FinalScore
		}
		return results[i].Score > results[j].Score
	})
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
