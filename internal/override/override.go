// Package override applies planner percentage deltas to baseline projections
// and re-aggregates hierarchy totals bottom-up.
package override

import (
	"go.uber.org/zap"

	"github.com/sells-group/planning-cli/internal/model"
)

// Set merges a patch into the stored delta for (key, year). Clear flags
// remove individual fields; when no fields remain the (key, year) entry is
// deleted, and when the key has no more years the key is deleted entirely.
// Unrelated keys and years are never touched. Historical years are ignored.
func Set(o model.RowOverrides, key model.DimensionKey, year int, patch model.OverridePatch) {
	if year < model.FirstForecastYear || year > model.LastForecastYear {
		zap.L().Debug("override: ignoring non-forecast year", zap.Int("year", year))
		return
	}

	years := o[key]
	delta := years[year]

	switch {
	case patch.ClearVolume:
		delta.VolumePct = nil
	case patch.VolumePct != nil:
		delta.VolumePct = patch.VolumePct
	}
	switch {
	case patch.ClearRevenue:
		delta.RevenuePct = nil
	case patch.RevenuePct != nil:
		delta.RevenuePct = patch.RevenuePct
	}

	if delta.Empty() {
		if years != nil {
			delete(years, year)
			if len(years) == 0 {
				delete(o, key)
			}
		}
		return
	}

	if years == nil {
		years = make(map[int]model.OverrideDelta)
		o[key] = years
	}
	years[year] = delta
}

// Clear removes every override stored for key.
func Clear(o model.RowOverrides, key model.DimensionKey) {
	delete(o, key)
}

// ClearYear removes the override stored for (key, year), pruning the key when
// no years remain.
func ClearYear(o model.RowOverrides, key model.DimensionKey, year int) {
	years, ok := o[key]
	if !ok {
		return
	}
	delete(years, year)
	if len(years) == 0 {
		delete(o, key)
	}
}

// Prune drops overrides whose keys do not exist in the given series set and
// returns the number removed. Dangling overrides are inert during Apply; this
// is the explicit re-validation pass for callers that want storage cleaned up.
func Prune(o model.RowOverrides, grouped map[model.DimensionKey]*model.YearSeries) int {
	removed := 0
	for key := range o {
		if _, ok := grouped[key]; !ok {
			delete(o, key)
			removed++
		}
	}
	return removed
}

// effectivePoint applies the delta for (key, year) to a baseline point,
// truncating negative results to zero.
func effectivePoint(p model.YearPoint, o model.RowOverrides, key model.DimensionKey) model.YearPoint {
	years, ok := o[key]
	if !ok {
		return p
	}
	delta, ok := years[p.Year]
	if !ok {
		return p
	}
	if delta.VolumePct != nil {
		p.Volume *= 1 + *delta.VolumePct/100
		if p.Volume < 0 {
			p.Volume = 0
		}
	}
	if delta.RevenuePct != nil {
		p.Revenue *= 1 + *delta.RevenuePct/100
		if p.Revenue < 0 {
			p.Revenue = 0
		}
	}
	return p
}
