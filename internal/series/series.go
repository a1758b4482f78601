// Package series groups historical records into per-dimension-key year series.
package series

import (
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/planning-cli/internal/model"
)

// ErrEmptyDataset signals that no records matched the requested grouping.
// Recoverable: callers surface it as an empty result set, not a hard failure.
var ErrEmptyDataset = eris.New("empty dataset")

// Options adjusts aggregation behavior.
type Options struct {
	// FromYear/ToYear, when both set, force every series to cover the fixed
	// range with missing years zero-filled. Otherwise absent years stay absent.
	FromYear int
	ToYear   int
}

// Aggregate groups records by the chosen dimensions, summing volume and
// revenue per year. Every distinct combination of grouping-dimension values
// present in the data yields exactly one series.
func Aggregate(records []model.HistoricalRecord, dims []model.Level, opts Options) (map[model.DimensionKey]*model.YearSeries, error) {
	if len(records) == 0 {
		return nil, eris.Wrap(ErrEmptyDataset, "series: no records to aggregate")
	}
	if len(dims) == 0 {
		return nil, eris.New("series: at least one grouping dimension is required")
	}
	for _, d := range dims {
		if d.Rank() < 0 {
			return nil, eris.Errorf("series: unknown grouping dimension %q", d)
		}
	}

	ordered := make([]model.Level, len(dims))
	copy(ordered, dims)
	model.SortLevels(ordered)

	type bucket struct {
		values map[model.Level]string
		years  map[int]*model.YearPoint
	}
	buckets := make(map[model.DimensionKey]*bucket)

	for _, rec := range records {
		key := model.KeyFor(rec.Dimensions, ordered)
		b, ok := buckets[key]
		if !ok {
			values := make(map[model.Level]string, len(ordered))
			for _, l := range ordered {
				values[l] = rec.Dimensions[l]
			}
			b = &bucket{values: values, years: make(map[int]*model.YearPoint)}
			buckets[key] = b
		}
		p, ok := b.years[rec.Year]
		if !ok {
			p = &model.YearPoint{Year: rec.Year}
			b.years[rec.Year] = p
		}
		p.Volume += rec.VolumeKg
		p.Revenue += rec.RevenueCur
	}

	out := make(map[model.DimensionKey]*model.YearSeries, len(buckets))
	for key, b := range buckets {
		s := &model.YearSeries{
			Key:    key,
			Levels: ordered,
			Values: b.values,
		}
		if opts.FromYear != 0 && opts.ToYear != 0 {
			for y := opts.FromYear; y <= opts.ToYear; y++ {
				p, ok := b.years[y]
				if !ok {
					p = &model.YearPoint{Year: y}
				}
				s.History = append(s.History, *p)
			}
		} else {
			for _, p := range b.years {
				s.History = append(s.History, *p)
			}
			sort.Slice(s.History, func(i, j int) bool {
				return s.History[i].Year < s.History[j].Year
			})
		}
		out[key] = s
	}

	zap.L().Debug("series: aggregated",
		zap.Int("records", len(records)),
		zap.Int("combinations", len(out)),
		zap.Int("dimensions", len(ordered)),
	)
	return out, nil
}

// YearlyTotals collapses records into one (year, volume, revenue) list across
// all dimensions, ordered by year.
func YearlyTotals(records []model.HistoricalRecord) []model.YearPoint {
	byYear := make(map[int]*model.YearPoint)
	for _, rec := range records {
		p, ok := byYear[rec.Year]
		if !ok {
			p = &model.YearPoint{Year: rec.Year}
			byYear[rec.Year] = p
		}
		p.Volume += rec.VolumeKg
		p.Revenue += rec.RevenueCur
	}
	out := make([]model.YearPoint, 0, len(byYear))
	for _, p := range byYear {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Year < out[j].Year })
	return out
}
