package model

// OverrideDelta holds the stored percentage deltas for one (key, year).
// A nil field means the field is not overridden.
type OverrideDelta struct {
	VolumePct  *float64 `json:"volume_pct,omitempty"`
	RevenuePct *float64 `json:"revenue_pct,omitempty"`
}

// Empty reports whether no fields remain set.
func (d OverrideDelta) Empty() bool {
	return d.VolumePct == nil && d.RevenuePct == nil
}

// OverridePatch describes a merge into a stored delta. Non-nil values set the
// field; Clear flags remove it. A clear wins over a value in the same patch.
type OverridePatch struct {
	VolumePct    *float64 `json:"volume_pct,omitempty"`
	RevenuePct   *float64 `json:"revenue_pct,omitempty"`
	ClearVolume  bool     `json:"clear_volume,omitempty"`
	ClearRevenue bool     `json:"clear_revenue,omitempty"`
}

// RowOverrides maps DimensionKey -> future year -> stored delta. Entries with
// no remaining fields are pruned rather than stored empty.
type RowOverrides map[DimensionKey]map[int]OverrideDelta

// PriceOverrides maps productType -> future year -> percentage delta applied
// compounding to the previous year's already-adjusted price.
type PriceOverrides map[string]map[int]float64
