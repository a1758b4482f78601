// Package pricing derives per-product-type unit price paths and applies them
// to projected volumes to obtain revenue.
package pricing

import (
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/planning-cli/internal/model"
)

// Resolve computes the unit price per product type for every forecast year.
// The base price is revenue/volume at the base price year (default 2026); a
// zero volume propagates a zero price rather than erroring. Prices chain
// year over year; a per-type override replaces the global growth percentage
// for that single compounding step only. Prices never go negative.
func Resolve(baselines map[string]*model.YearSeries, settings model.PriceSettings, overrides model.PriceOverrides) (map[string]map[int]float64, error) {
	if err := settings.Validate(); err != nil {
		return nil, eris.Wrap(err, "pricing: settings")
	}
	baseYear := settings.BasePriceYear
	if baseYear == 0 {
		baseYear = model.BaselineYear
	}

	globalPct := 0.0
	if settings.Mode == model.PriceModeAnnualGrowth {
		globalPct = settings.AnnualGrowthPct
	}

	out := make(map[string]map[int]float64, len(baselines))
	for productType, s := range baselines {
		price := basePrice(s, baseYear)
		path := make(map[int]float64, model.LastForecastYear-model.FirstForecastYear+1)
		for _, year := range model.ForecastYears() {
			pct := globalPct
			if byYear, ok := overrides[productType]; ok {
				if o, ok := byYear[year]; ok {
					pct = o
				}
			}
			price *= 1 + pct/100
			if price < 0 {
				price = 0
			}
			path[year] = price
		}
		out[productType] = path
	}

	zap.L().Debug("pricing: resolved price paths",
		zap.Int("product_types", len(out)),
		zap.String("mode", string(settings.Mode)),
		zap.Int("base_year", baseYear),
	)
	return out, nil
}

// basePrice returns revenue/volume at the base year, or 0 when the year is
// absent or has no volume.
func basePrice(s *model.YearSeries, baseYear int) float64 {
	p, ok := s.HistoryPoint(baseYear)
	if !ok || p.Volume == 0 {
		return 0
	}
	return p.Revenue / p.Volume
}

// ApplyToBaselines rewrites baseline revenue as volume x resolved price for
// every series whose productType has a price path. Series without a matching
// path keep their projected revenue.
func ApplyToBaselines(grouped map[model.DimensionKey]*model.YearSeries, prices map[string]map[int]float64) {
	for _, s := range grouped {
		path, ok := prices[s.Values[model.LevelProductType]]
		if !ok {
			continue
		}
		for i, p := range s.Baseline {
			if price, ok := path[p.Year]; ok {
				s.Baseline[i].Revenue = p.Volume * price
			}
		}
	}
}
