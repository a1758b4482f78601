package model

// Forecast horizon. 2026 is the last planned historical year; 2027-2030 are
// always computed.
const (
	BaselineYear      = 2026
	FirstForecastYear = 2027
	LastForecastYear  = 2030
)

// ForecastYears returns the projected horizon in order.
func ForecastYears() []int {
	years := make([]int, 0, LastForecastYear-FirstForecastYear+1)
	for y := FirstForecastYear; y <= LastForecastYear; y++ {
		years = append(years, y)
	}
	return years
}

// HistoricalRecord is one ingested per-SKU sales row. Immutable once ingested.
type HistoricalRecord struct {
	Year       int              `json:"year" db:"year"`
	Dimensions map[Level]string `json:"dimensions" db:"-"`
	VolumeKg   float64          `json:"volume_kg" db:"volume_kg"`
	RevenueCur float64          `json:"revenue_currency" db:"revenue_currency"`
}

// YearPoint is one (year, volume, revenue) observation or projection.
type YearPoint struct {
	Year    int     `json:"year"`
	Volume  float64 `json:"volume"`
	Revenue float64 `json:"revenue"`
}

// YearSeries carries the historical facts and computed baseline for one
// dimension combination. History is ordered by year; Baseline always covers
// exactly 2027-2030 once projected.
type YearSeries struct {
	Key      DimensionKey     `json:"key"`
	Levels   []Level          `json:"levels"`
	Values   map[Level]string `json:"values"`
	History  []YearPoint      `json:"history"`
	Baseline []YearPoint      `json:"baseline,omitempty"`
}

// HistoryPoint returns the historical observation for a year.
func (s *YearSeries) HistoryPoint(year int) (YearPoint, bool) {
	for _, p := range s.History {
		if p.Year == year {
			return p, true
		}
	}
	return YearPoint{}, false
}

// LastHistoryYear returns the final historical year, or 0 for empty history.
func (s *YearSeries) LastHistoryYear() int {
	if len(s.History) == 0 {
		return 0
	}
	return s.History[len(s.History)-1].Year
}
