package store

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/planning-cli/internal/model"
)

func TestWhereClause_Empty(t *testing.T) {
	where, args := whereClause(Filter{}, sqlitePlaceholders())
	assert.Empty(t, where)
	assert.Empty(t, args)
}

func TestWhereClause_CanonicalDimensionOrder(t *testing.T) {
	f := Filter{
		Years: []int{2025, 2026},
		Values: map[model.Level][]string{
			model.LevelBrand:    {"Acme"},
			model.LevelDirector: {"North", "South"},
		},
	}

	where, args := whereClause(f, postgresPlaceholders())
	assert.Equal(t, " WHERE year IN ($1, $2) AND director IN ($3, $4) AND brand IN ($5)", where)
	assert.Equal(t, []any{2025, 2026, "North", "South", "Acme"}, args)
}

func TestColumnFor(t *testing.T) {
	col, ok := columnFor(model.LevelProductionFamily)
	assert.True(t, ok)
	assert.Equal(t, "production_family", col)

	_, ok = columnFor("warehouse")
	assert.False(t, ok)
}
