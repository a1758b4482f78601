package ingest

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/planning-cli/internal/model"
)

var fullHeader = []string{
	"Year", "Director", "State", "Product Type", "Family",
	"Production Family", "Brand", "Product Code", "Product",
	"Volume (kg)", "Revenue", "Status",
}

func row(year, director, volume, revenue, status string) []string {
	return []string{
		year, director, "SP", "Pasta", "Long Cut",
		"Dry", "Acme", "P-001", "Spaghetti 500g",
		volume, revenue, status,
	}
}

func createWorkbook(t *testing.T, sheets map[string][][]string) string {
	t.Helper()
	f := xlsx.NewFile()
	for name, rows := range sheets {
		sheet, err := f.AddSheet(name)
		require.NoError(t, err)
		for _, rowData := range rows {
			r := sheet.AddRow()
			for _, cellData := range rowData {
				r.AddCell().SetString(cellData)
			}
		}
	}
	path := filepath.Join(t.TempDir(), "plan.xlsx")
	require.NoError(t, f.Save(path))
	return path
}

func TestReadWorkbook_ParsesActiveRows(t *testing.T) {
	path := createWorkbook(t, map[string][][]string{
		"Data": {
			fullHeader,
			row("2025", "North", "1,500.5", "3000", "Active"),
			row("2026", "North", "1600", "3,200.75", ""),
		},
	})

	records, summary, err := ReadWorkbook(path, Options{})
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, 2, summary.Parsed)
	assert.Equal(t, 0, summary.Skipped)
	assert.Empty(t, summary.Errors)

	rec := records[0]
	assert.Equal(t, 2025, rec.Year)
	assert.Equal(t, 1500.5, rec.VolumeKg)
	assert.Equal(t, 3000.0, rec.RevenueCur)
	assert.Equal(t, "North", rec.Dimensions[model.LevelDirector])
	assert.Equal(t, "Spaghetti 500g", rec.Dimensions[model.LevelProductName])
	assert.Len(t, rec.Dimensions, 8)

	assert.Equal(t, 3200.75, records[1].RevenueCur)
}

func TestReadWorkbook_SkipsInactiveRows(t *testing.T) {
	path := createWorkbook(t, map[string][][]string{
		"Data": {
			fullHeader,
			row("2025", "North", "100", "200", "Discontinued"),
			row("2025", "South", "50", "90", "active"),
		},
	})

	records, summary, err := ReadWorkbook(path, Options{})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "South", records[0].Dimensions[model.LevelDirector])
	assert.Equal(t, 1, summary.Skipped)
}

func TestReadWorkbook_RecordsRowErrors(t *testing.T) {
	path := createWorkbook(t, map[string][][]string{
		"Data": {
			fullHeader,
			row("twenty", "North", "100", "200", "active"),
			row("2025", "North", "not-a-number", "200", "active"),
			row("2025", "South", "50", "90", "active"),
		},
	})

	records, summary, err := ReadWorkbook(path, Options{})
	require.NoError(t, err)
	assert.Len(t, records, 1)
	assert.Equal(t, 2, summary.Skipped)
	require.Len(t, summary.Errors, 2)
	assert.Contains(t, summary.Errors[0], "row 2")
}

func TestReadWorkbook_ClampsNegatives(t *testing.T) {
	path := createWorkbook(t, map[string][][]string{
		"Data": {
			fullHeader,
			row("2025", "North", "-10", "-5", "active"),
		},
	})

	records, _, err := ReadWorkbook(path, Options{})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 0.0, records[0].VolumeKg)
	assert.Equal(t, 0.0, records[0].RevenueCur)
}

func TestReadWorkbook_MissingColumns(t *testing.T) {
	path := createWorkbook(t, map[string][][]string{
		"Data": {
			{"Year", "Volume (kg)", "Revenue"},
			{"2025", "100", "200"},
		},
	})

	_, _, err := ReadWorkbook(path, Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing required columns")
}

func TestReadWorkbook_SheetSelection(t *testing.T) {
	path := createWorkbook(t, map[string][][]string{
		"Planning": {
			fullHeader,
			row("2025", "North", "100", "200", "active"),
		},
	})

	records, _, err := ReadWorkbook(path, Options{SheetName: "Planning"})
	require.NoError(t, err)
	assert.Len(t, records, 1)

	_, _, err = ReadWorkbook(path, Options{SheetName: "Missing"})
	require.Error(t, err)

	_, _, err = ReadWorkbook(path, Options{SheetIndex: 5})
	require.Error(t, err)
}
