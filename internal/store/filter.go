package store

import (
	"fmt"
	"strings"
)

// placeholderFunc returns the next SQL placeholder ("?" for SQLite,
// "$1", "$2", ... for Postgres).
type placeholderFunc func() string

func sqlitePlaceholders() placeholderFunc {
	return func() string { return "?" }
}

func postgresPlaceholders() placeholderFunc {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("$%d", n)
	}
}

// whereClause builds the WHERE fragment for a filter. Dimension conditions
// follow the canonical level order so generated SQL is deterministic.
func whereClause(f Filter, next placeholderFunc) (string, []any) {
	var conds []string
	var args []any

	if len(f.Years) > 0 {
		ph := make([]string, len(f.Years))
		for i, y := range f.Years {
			ph[i] = next()
			args = append(args, y)
		}
		conds = append(conds, fmt.Sprintf("year IN (%s)", strings.Join(ph, ", ")))
	}

	for _, dc := range dimensionColumns {
		values := f.Values[dc.Level]
		if len(values) == 0 {
			continue
		}
		ph := make([]string, len(values))
		for i, v := range values {
			ph[i] = next()
			args = append(args, v)
		}
		conds = append(conds, fmt.Sprintf("%s IN (%s)", dc.Column, strings.Join(ph, ", ")))
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func dimensionColumnList() string {
	cols := make([]string, len(dimensionColumns))
	for i, dc := range dimensionColumns {
		cols[i] = dc.Column
	}
	return strings.Join(cols, ", ")
}
