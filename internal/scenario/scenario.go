// Package scenario overlays fixed planning scenarios on baseline projections.
package scenario

import (
	"github.com/sells-group/planning-cli/internal/model"
)

// Definition is one scenario overlay. Multipliers apply to projected years
// only; historical years pass through unchanged.
type Definition struct {
	ID                string  `json:"id"`
	Label             string  `json:"label"`
	Description       string  `json:"description"`
	VolumeMultiplier  float64 `json:"volume_multiplier"`
	RevenueMultiplier float64 `json:"revenue_multiplier"`
}

// Definitions is the built-in scenario set.
var Definitions = []Definition{
	{
		ID:                "base",
		Label:             "Base 2030",
		Description:       "Automatic CAGR projection over the filtered history.",
		VolumeMultiplier:  1.0,
		RevenueMultiplier: 1.0,
	},
	{
		ID:                "optimistic",
		Label:             "Optimistic",
		Description:       "+5% volume and +4% revenue on projected years.",
		VolumeMultiplier:  1.05,
		RevenueMultiplier: 1.04,
	},
	{
		ID:                "pessimistic",
		Label:             "Pessimistic",
		Description:       "-3% volume and revenue on projected years.",
		VolumeMultiplier:  0.97,
		RevenueMultiplier: 0.97,
	},
}

// Series is one scenario's combined historical plus projected totals.
type Series struct {
	Definition Definition        `json:"definition"`
	Totals     []model.YearPoint `json:"totals"`
}

// Overlay builds the combined series for every definition from historical
// totals and the projected baseline.
func Overlay(historical, baseline []model.YearPoint) []Series {
	out := make([]Series, 0, len(Definitions))
	for _, def := range Definitions {
		totals := append([]model.YearPoint(nil), historical...)
		for _, p := range baseline {
			totals = append(totals, model.YearPoint{
				Year:    p.Year,
				Volume:  p.Volume * def.VolumeMultiplier,
				Revenue: p.Revenue * def.RevenueMultiplier,
			})
		}
		out = append(out, Series{Definition: def, Totals: totals})
	}
	return out
}
