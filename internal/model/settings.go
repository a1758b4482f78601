package model

import "github.com/rotisserie/eris"

// ErrInvalidSettings rejects malformed forecast or price settings before any
// computation happens.
var ErrInvalidSettings = eris.New("invalid settings")

// Variable selects which measure a forecast method operates on.
type Variable string

const (
	VariableVolume  Variable = "volume"
	VariableRevenue Variable = "revenue"
)

// Method selects the growth extrapolation strategy.
type Method string

const (
	MethodCAGR   Method = "cagr"
	MethodTrend  Method = "trend"
	MethodManual Method = "manual"
)

// ManualRule pins a growth percentage to every series matching (Scope, Key).
// One rule per pair; last write wins.
type ManualRule struct {
	Scope     Level   `json:"scope"`
	Key       string  `json:"key"`
	GrowthPct float64 `json:"growth_pct"`
}

// ForecastSettings configures the growth projector.
type ForecastSettings struct {
	Variable       Variable     `json:"variable"`
	Method         Method       `json:"method"`
	SmoothingYears int          `json:"smoothing_years"`
	ManualRules    []ManualRule `json:"manual_rules,omitempty"`
}

// Validate checks the settings against the closed enumerations. SmoothingYears
// must sit in [1,5]; manual rules may only scope productType or family.
func (s ForecastSettings) Validate() error {
	switch s.Variable {
	case VariableVolume, VariableRevenue:
	default:
		return eris.Wrapf(ErrInvalidSettings, "unknown variable %q", s.Variable)
	}
	switch s.Method {
	case MethodCAGR, MethodTrend, MethodManual:
	default:
		return eris.Wrapf(ErrInvalidSettings, "unknown method %q", s.Method)
	}
	if s.SmoothingYears < 1 || s.SmoothingYears > 5 {
		return eris.Wrapf(ErrInvalidSettings, "smoothing years %d outside [1,5]", s.SmoothingYears)
	}
	for _, r := range s.ManualRules {
		if r.Scope != LevelProductType && r.Scope != LevelFamily {
			return eris.Wrapf(ErrInvalidSettings, "manual rule scope %q not allowed", r.Scope)
		}
	}
	return nil
}

// RuleFor returns the growth percentage for the finest-scoped rule matching
// the series values. Later rules win over earlier rules at the same scope.
func (s ForecastSettings) RuleFor(values map[Level]string) (float64, bool) {
	bestRank := -1
	var pct float64
	found := false
	for _, r := range s.ManualRules {
		if values[r.Scope] != r.Key {
			continue
		}
		if rank := r.Scope.Rank(); rank >= bestRank {
			bestRank = rank
			pct = r.GrowthPct
			found = true
		}
	}
	return pct, found
}

// PriceMode selects how unit prices evolve across the forecast horizon.
type PriceMode string

const (
	PriceModeFixed        PriceMode = "fixed"
	PriceModeAnnualGrowth PriceMode = "annualGrowthPct"
)

// PriceSettings configures the price resolver.
type PriceSettings struct {
	Mode            PriceMode `json:"mode"`
	AnnualGrowthPct float64   `json:"annual_growth_pct"`
	BasePriceYear   int       `json:"base_price_year"`
}

// Validate checks the price mode and defaults BasePriceYear handling to the
// caller (zero means BaselineYear).
func (p PriceSettings) Validate() error {
	switch p.Mode {
	case PriceModeFixed, PriceModeAnnualGrowth:
		return nil
	default:
		return eris.Wrapf(ErrInvalidSettings, "unknown price mode %q", p.Mode)
	}
}
