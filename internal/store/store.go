// Package store persists historical planning records behind a driver-neutral
// interface with SQLite and Postgres implementations.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/planning-cli/internal/model"
)

// Filter scopes record queries by years and recognized dimension values.
// Unrecognized levels are rejected at the boundary, not passed through.
type Filter struct {
	Years  []int                    `json:"years,omitempty"`
	Values map[model.Level][]string `json:"values,omitempty"`
}

// Validate checks that every filtered level belongs to the closed hierarchy.
func (f Filter) Validate() error {
	for level := range f.Values {
		if level.Rank() < 0 {
			return eris.Errorf("store: unknown filter level %q", level)
		}
	}
	return nil
}

// Combination is one distinct full-hierarchy combination snapshot row.
type Combination struct {
	Dimensions   map[model.Level]string `json:"dimensions"`
	Records      int                    `json:"records"`
	FirstYear    int                    `json:"first_year"`
	LastYear     int                    `json:"last_year"`
	VolumeTotal  float64                `json:"volume_total"`
	RevenueTotal float64                `json:"revenue_total"`
}

// UpsertSummary reports the outcome of a record upsert batch.
type UpsertSummary struct {
	Inserted int `json:"inserted"`
	Updated  int `json:"updated"`
}

// Store defines persistence operations for historical planning records.
type Store interface {
	UpsertRecords(ctx context.Context, records []model.HistoricalRecord) (UpsertSummary, error)
	ListRecords(ctx context.Context, f Filter) ([]model.HistoricalRecord, error)
	CountRecords(ctx context.Context, f Filter) (int, error)
	YearlyTotals(ctx context.Context, f Filter) ([]model.YearPoint, error)
	FilterOptions(ctx context.Context) (map[model.Level][]string, error)
	DeleteRecords(ctx context.Context) (int64, error)

	// Combination snapshot
	RebuildCombinations(ctx context.Context) (int, error)
	ListCombinations(ctx context.Context, limit int) ([]Combination, error)

	// Lifecycle
	Ping(ctx context.Context) (time.Duration, error)
	Migrate(ctx context.Context) error
	Close() error
}

// dimensionColumns maps hierarchy levels to their column names in canonical
// order. SQLite and Postgres share the schema.
var dimensionColumns = []struct {
	Level  model.Level
	Column string
}{
	{model.LevelDirector, "director"},
	{model.LevelState, "state"},
	{model.LevelProductType, "product_type"},
	{model.LevelFamily, "family"},
	{model.LevelProductionFamily, "production_family"},
	{model.LevelBrand, "brand"},
	{model.LevelProductCode, "product_code"},
	{model.LevelProductName, "product_name"},
}

func columnFor(level model.Level) (string, bool) {
	for _, dc := range dimensionColumns {
		if dc.Level == level {
			return dc.Column, true
		}
	}
	return "", false
}
