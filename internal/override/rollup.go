package override

import (
	"sort"

	"go.uber.org/zap"

	"github.com/sells-group/planning-cli/internal/model"
)

// Share is a node's percentage of a year's grand total, per measure.
type Share struct {
	VolumePct  float64 `json:"volume_pct"`
	RevenuePct float64 `json:"revenue_pct"`
}

// Rollup holds re-aggregated totals for one ancestor depth of the grouping
// hierarchy. Depth 0 aggregates to the coarsest grouping dimension.
type Rollup struct {
	Levels []model.Level                        `json:"levels"`
	Totals map[model.DimensionKey][]model.YearPoint `json:"totals"`
	Shares map[model.DimensionKey]map[int]Share `json:"shares"`
}

// Result is the outcome of applying overrides: effective leaf series plus
// bottom-up totals and shares for every ancestor depth.
type Result struct {
	Effective  map[model.DimensionKey]*model.YearSeries `json:"effective"`
	Rollups    []Rollup                                 `json:"rollups"`
	GrandTotal []model.YearPoint                        `json:"grand_total"`
	Shares     map[model.DimensionKey]map[int]Share     `json:"shares"`
}

// Apply computes effective values for every leaf series and re-aggregates
// ancestor totals from the effective leaves. Overrides apply only to future
// (baseline) years; ancestor totals are always sums of descendants, never
// directly overridden. Overrides referencing unknown keys are inert.
func Apply(grouped map[model.DimensionKey]*model.YearSeries, overrides model.RowOverrides) *Result {
	res := &Result{
		Effective: make(map[model.DimensionKey]*model.YearSeries, len(grouped)),
		Shares:    make(map[model.DimensionKey]map[int]Share, len(grouped)),
	}
	if len(grouped) == 0 {
		return res
	}

	var leafLevels []model.Level
	for _, s := range grouped {
		leafLevels = s.Levels
		break
	}

	// Effective leaf series: history untouched, baseline adjusted and clamped.
	for key, s := range grouped {
		eff := &model.YearSeries{
			Key:     key,
			Levels:  s.Levels,
			Values:  s.Values,
			History: append([]model.YearPoint(nil), s.History...),
		}
		for _, p := range s.Baseline {
			eff.Baseline = append(eff.Baseline, effectivePoint(p, overrides, key))
		}
		res.Effective[key] = eff
	}

	dangling := 0
	for key := range overrides {
		if _, ok := grouped[key]; !ok {
			dangling++
		}
	}
	if dangling > 0 {
		zap.L().Debug("override: dangling keys ignored", zap.Int("count", dangling))
	}

	// Grand total across all leaves, history and future.
	grand := make(map[int]*model.YearPoint)
	for _, s := range res.Effective {
		accumulate(grand, s.History)
		accumulate(grand, s.Baseline)
	}
	res.GrandTotal = sortedPoints(grand)

	// Ancestor rollups for every strict prefix of the leaf grouping.
	for depth := 1; depth < len(leafLevels); depth++ {
		prefix := leafLevels[:depth]
		r := Rollup{
			Levels: append([]model.Level(nil), prefix...),
			Totals: make(map[model.DimensionKey][]model.YearPoint),
			Shares: make(map[model.DimensionKey]map[int]Share),
		}
		byNode := make(map[model.DimensionKey]map[int]*model.YearPoint)
		for _, s := range res.Effective {
			nodeKey := model.KeyFor(s.Values, prefix)
			years, ok := byNode[nodeKey]
			if !ok {
				years = make(map[int]*model.YearPoint)
				byNode[nodeKey] = years
			}
			accumulate(years, s.History)
			accumulate(years, s.Baseline)
		}
		for nodeKey, years := range byNode {
			r.Totals[nodeKey] = sortedPoints(years)
			r.Shares[nodeKey] = shares(r.Totals[nodeKey], grand)
		}
		res.Rollups = append(res.Rollups, r)
	}

	// Leaf shares of the grand total.
	for key, s := range res.Effective {
		combined := append(append([]model.YearPoint(nil), s.History...), s.Baseline...)
		res.Shares[key] = shares(combined, grand)
	}

	return res
}

func accumulate(into map[int]*model.YearPoint, points []model.YearPoint) {
	for _, p := range points {
		t, ok := into[p.Year]
		if !ok {
			t = &model.YearPoint{Year: p.Year}
			into[p.Year] = t
		}
		t.Volume += p.Volume
		t.Revenue += p.Revenue
	}
}

func sortedPoints(byYear map[int]*model.YearPoint) []model.YearPoint {
	out := make([]model.YearPoint, 0, len(byYear))
	for _, p := range byYear {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Year < out[j].Year })
	return out
}

// shares computes percentage-of-grand-total per year, defined as 0 when the
// grand total is 0.
func shares(points []model.YearPoint, grand map[int]*model.YearPoint) map[int]Share {
	out := make(map[int]Share, len(points))
	for _, p := range points {
		var s Share
		if g, ok := grand[p.Year]; ok {
			if g.Volume != 0 {
				s.VolumePct = p.Volume / g.Volume * 100
			}
			if g.Revenue != 0 {
				s.RevenuePct = p.Revenue / g.Revenue * 100
			}
		}
		out[p.Year] = s
	}
	return out
}
