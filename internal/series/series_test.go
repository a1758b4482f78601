package series

import (
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/planning-cli/internal/model"
)

func rec(year int, director, state string, volume, revenue float64) model.HistoricalRecord {
	return model.HistoricalRecord{
		Year: year,
		Dimensions: map[model.Level]string{
			model.LevelDirector:    director,
			model.LevelState:       state,
			model.LevelProductType: "Pasta",
		},
		VolumeKg:   volume,
		RevenueCur: revenue,
	}
}

func TestAggregate_SumsPerKeyAndYear(t *testing.T) {
	records := []model.HistoricalRecord{
		rec(2024, "North", "SP", 100, 500),
		rec(2024, "North", "SP", 50, 250),
		rec(2025, "North", "SP", 80, 400),
		rec(2024, "South", "RS", 30, 90),
	}

	grouped, err := Aggregate(records, []model.Level{model.LevelDirector, model.LevelState}, Options{})
	require.NoError(t, err)
	require.Len(t, grouped, 2)

	north := grouped[model.DimensionKey("director=North|state=SP")]
	require.NotNil(t, north)
	require.Len(t, north.History, 2)
	assert.Equal(t, model.YearPoint{Year: 2024, Volume: 150, Revenue: 750}, north.History[0])
	assert.Equal(t, model.YearPoint{Year: 2025, Volume: 80, Revenue: 400}, north.History[1])
	assert.Equal(t, "North", north.Values[model.LevelDirector])

	south := grouped[model.DimensionKey("director=South|state=RS")]
	require.NotNil(t, south)
	assert.Len(t, south.History, 1)
}

func TestAggregate_DimensionOrderDoesNotMatter(t *testing.T) {
	records := []model.HistoricalRecord{rec(2024, "North", "SP", 10, 20)}

	a, err := Aggregate(records, []model.Level{model.LevelState, model.LevelDirector}, Options{})
	require.NoError(t, err)
	b, err := Aggregate(records, []model.Level{model.LevelDirector, model.LevelState}, Options{})
	require.NoError(t, err)

	for key := range a {
		assert.Contains(t, b, key)
	}
}

func TestAggregate_ZeroFillRange(t *testing.T) {
	records := []model.HistoricalRecord{
		rec(2022, "North", "SP", 10, 20),
		rec(2024, "North", "SP", 30, 60),
	}

	grouped, err := Aggregate(records, []model.Level{model.LevelDirector}, Options{FromYear: 2021, ToYear: 2024})
	require.NoError(t, err)

	s := grouped[model.DimensionKey("director=North")]
	require.NotNil(t, s)
	require.Len(t, s.History, 4)
	assert.Equal(t, model.YearPoint{Year: 2021}, s.History[0])
	assert.Equal(t, model.YearPoint{Year: 2023}, s.History[2])
	assert.Equal(t, 30.0, s.History[3].Volume)
}

func TestAggregate_Errors(t *testing.T) {
	_, err := Aggregate(nil, []model.Level{model.LevelDirector}, Options{})
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrEmptyDataset))

	_, err = Aggregate([]model.HistoricalRecord{rec(2024, "North", "SP", 1, 1)}, nil, Options{})
	assert.Error(t, err)

	_, err = Aggregate([]model.HistoricalRecord{rec(2024, "North", "SP", 1, 1)}, []model.Level{"warehouse"}, Options{})
	assert.Error(t, err)
}

func TestYearlyTotals(t *testing.T) {
	records := []model.HistoricalRecord{
		rec(2025, "North", "SP", 80, 400),
		rec(2024, "North", "SP", 100, 500),
		rec(2024, "South", "RS", 30, 90),
	}

	totals := YearlyTotals(records)
	require.Len(t, totals, 2)
	assert.Equal(t, model.YearPoint{Year: 2024, Volume: 130, Revenue: 590}, totals[0])
	assert.Equal(t, model.YearPoint{Year: 2025, Volume: 80, Revenue: 400}, totals[1])
}
