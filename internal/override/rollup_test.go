package override

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/planning-cli/internal/model"
)

func leafSeries(director, state string, volume float64) *model.YearSeries {
	values := map[model.Level]string{
		model.LevelDirector: director,
		model.LevelState:    state,
	}
	levels := []model.Level{model.LevelDirector, model.LevelState}
	return &model.YearSeries{
		Key:    model.KeyFor(values, levels),
		Levels: levels,
		Values: values,
		History: []model.YearPoint{
			{Year: 2026, Volume: volume, Revenue: volume * 2},
		},
		Baseline: []model.YearPoint{
			{Year: 2027, Volume: volume, Revenue: volume * 2},
			{Year: 2028, Volume: volume, Revenue: volume * 2},
		},
	}
}

func groupedFixture() map[model.DimensionKey]*model.YearSeries {
	leaves := []*model.YearSeries{
		leafSeries("North", "SP", 100),
		leafSeries("North", "RJ", 50),
		leafSeries("South", "RS", 25),
	}
	out := make(map[model.DimensionKey]*model.YearSeries, len(leaves))
	for _, s := range leaves {
		out[s.Key] = s
	}
	return out
}

func TestApply_NoOverridesKeepsBaseline(t *testing.T) {
	res := Apply(groupedFixture(), make(model.RowOverrides))

	require.Len(t, res.Effective, 3)
	north := res.Effective["director=North|state=SP"]
	assert.Equal(t, 100.0, north.Baseline[0].Volume)

	require.Len(t, res.GrandTotal, 3)
	assert.Equal(t, model.YearPoint{Year: 2027, Volume: 175, Revenue: 350}, res.GrandTotal[1])
}

func TestApply_AncestorTotalsEqualLeafSums(t *testing.T) {
	o := make(model.RowOverrides)
	Set(o, "director=North|state=SP", 2027, model.OverridePatch{VolumePct: pct(10)})

	res := Apply(groupedFixture(), o)

	// Leaf adjusted: 100 * 1.10 = 110. History untouched.
	sp := res.Effective["director=North|state=SP"]
	assert.InDelta(t, 110.0, sp.Baseline[0].Volume, 1e-9)
	assert.Equal(t, 100.0, sp.History[0].Volume)
	assert.Equal(t, 100.0, sp.Baseline[1].Volume)

	// Director rollup re-aggregates from effective leaves: 110 + 50.
	require.Len(t, res.Rollups, 1)
	directorRollup := res.Rollups[0]
	assert.Equal(t, []model.Level{model.LevelDirector}, directorRollup.Levels)

	north := directorRollup.Totals["director=North"]
	require.Len(t, north, 3)
	assert.InDelta(t, 160.0, north[1].Volume, 1e-9)
	assert.Equal(t, 150.0, north[0].Volume)

	// Grand total follows: 110 + 50 + 25.
	assert.InDelta(t, 185.0, res.GrandTotal[1].Volume, 1e-9)
}

func TestApply_SharesSumToHundred(t *testing.T) {
	res := Apply(groupedFixture(), make(model.RowOverrides))

	var volSum, revSum float64
	for _, byYear := range res.Shares {
		volSum += byYear[2027].VolumePct
		revSum += byYear[2027].RevenuePct
	}
	assert.InDelta(t, 100, volSum, 1e-9)
	assert.InDelta(t, 100, revSum, 1e-9)
}

func TestApply_ZeroGrandTotalSharesAreZero(t *testing.T) {
	grouped := map[model.DimensionKey]*model.YearSeries{}
	for _, s := range []*model.YearSeries{leafSeries("North", "SP", 0), leafSeries("South", "RS", 0)} {
		grouped[s.Key] = s
	}

	res := Apply(grouped, make(model.RowOverrides))
	for _, byYear := range res.Shares {
		assert.Equal(t, Share{}, byYear[2027])
	}
}

func TestApply_DanglingOverrideIsInert(t *testing.T) {
	o := make(model.RowOverrides)
	Set(o, "director=Gone|state=XX", 2027, model.OverridePatch{VolumePct: pct(500)})

	res := Apply(groupedFixture(), o)
	assert.Equal(t, 175.0, res.GrandTotal[1].Volume)
}

func TestApply_EmptyInput(t *testing.T) {
	res := Apply(map[model.DimensionKey]*model.YearSeries{}, make(model.RowOverrides))
	assert.Empty(t, res.Effective)
	assert.Empty(t, res.GrandTotal)
	assert.Empty(t, res.Rollups)
}
