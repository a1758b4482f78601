// Package ingest loads historical planning records from XLSX workbooks.
package ingest

import (
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/sells-group/planning-cli/internal/model"
)

// Required workbook columns. Header matching is case-insensitive and ignores
// surrounding whitespace.
const (
	colYear    = "year"
	colVolume  = "volume (kg)"
	colRevenue = "revenue"
	colStatus  = "status"
)

// dimensionHeaders maps workbook headers to hierarchy levels.
var dimensionHeaders = map[string]model.Level{
	"director":          model.LevelDirector,
	"state":             model.LevelState,
	"product type":      model.LevelProductType,
	"family":            model.LevelFamily,
	"production family": model.LevelProductionFamily,
	"brand":             model.LevelBrand,
	"product code":      model.LevelProductCode,
	"product":           model.LevelProductName,
}

// activeStatus is the only row status ingested when a status column exists.
const activeStatus = "active"

// Options configures workbook parsing.
type Options struct {
	SheetIndex int    // default 0
	SheetName  string // if set, overrides SheetIndex
}

// Summary reports the outcome of a workbook parse.
type Summary struct {
	Parsed  int      `json:"parsed"`
	Skipped int      `json:"skipped"`
	Errors  []string `json:"errors,omitempty"`
}

// ReadWorkbook parses an XLSX file into historical records. The first row
// must carry the required headers; rows with an inactive status are skipped,
// and rows with malformed numerics are skipped with a recorded error.
// Negative volumes and revenues clamp to zero.
func ReadWorkbook(path string, opts Options) ([]model.HistoricalRecord, *Summary, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, nil, eris.Wrap(err, "ingest: open workbook")
	}

	sheet, err := getSheet(f, opts)
	if err != nil {
		return nil, nil, err
	}
	if len(sheet.Rows) == 0 {
		return nil, nil, eris.New("ingest: workbook sheet is empty")
	}

	header, err := mapHeader(rowToStrings(sheet.Rows[0]))
	if err != nil {
		return nil, nil, err
	}

	summary := &Summary{}
	var records []model.HistoricalRecord
	for i, row := range sheet.Rows[1:] {
		cells := rowToStrings(row)
		if blankRow(cells) {
			continue
		}

		rec, skip, parseErr := parseRow(cells, header)
		if parseErr != nil {
			summary.Skipped++
			summary.Errors = append(summary.Errors, eris.Wrapf(parseErr, "row %d", i+2).Error())
			continue
		}
		if skip {
			summary.Skipped++
			continue
		}
		records = append(records, rec)
		summary.Parsed++
	}

	zap.L().Info("ingest: workbook parsed",
		zap.String("path", path),
		zap.Int("parsed", summary.Parsed),
		zap.Int("skipped", summary.Skipped),
		zap.Int("errors", len(summary.Errors)),
	)
	return records, summary, nil
}

// header holds resolved column indexes.
type headerIndex struct {
	year    int
	volume  int
	revenue int
	status  int // -1 when absent
	dims    map[model.Level]int
}

func mapHeader(cells []string) (*headerIndex, error) {
	idx := &headerIndex{year: -1, volume: -1, revenue: -1, status: -1, dims: make(map[model.Level]int)}
	for i, raw := range cells {
		name := strings.ToLower(strings.TrimSpace(raw))
		switch name {
		case colYear:
			idx.year = i
		case colVolume:
			idx.volume = i
		case colRevenue:
			idx.revenue = i
		case colStatus:
			idx.status = i
		default:
			if level, ok := dimensionHeaders[name]; ok {
				idx.dims[level] = i
			}
		}
	}

	var missing []string
	if idx.year < 0 {
		missing = append(missing, colYear)
	}
	if idx.volume < 0 {
		missing = append(missing, colVolume)
	}
	if idx.revenue < 0 {
		missing = append(missing, colRevenue)
	}
	for name, level := range dimensionHeaders {
		if _, ok := idx.dims[level]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, eris.Errorf("ingest: workbook is missing required columns: %s", strings.Join(missing, ", "))
	}
	return idx, nil
}

func parseRow(cells []string, idx *headerIndex) (model.HistoricalRecord, bool, error) {
	var rec model.HistoricalRecord

	if idx.status >= 0 {
		status := strings.ToLower(strings.TrimSpace(cell(cells, idx.status)))
		if status != "" && status != activeStatus {
			return rec, true, nil
		}
	}

	year, err := strconv.Atoi(strings.TrimSpace(cell(cells, idx.year)))
	if err != nil {
		return rec, false, eris.Wrapf(err, "parse year %q", cell(cells, idx.year))
	}
	volume, err := parseNumber(cell(cells, idx.volume))
	if err != nil {
		return rec, false, eris.Wrapf(err, "parse volume %q", cell(cells, idx.volume))
	}
	revenue, err := parseNumber(cell(cells, idx.revenue))
	if err != nil {
		return rec, false, eris.Wrapf(err, "parse revenue %q", cell(cells, idx.revenue))
	}

	rec.Year = year
	rec.VolumeKg = clampNonNegative(volume)
	rec.RevenueCur = clampNonNegative(revenue)
	rec.Dimensions = make(map[model.Level]string, len(idx.dims))
	for level, i := range idx.dims {
		rec.Dimensions[level] = strings.TrimSpace(cell(cells, i))
	}
	return rec, false, nil
}

func parseNumber(raw string) (float64, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, nil
	}
	s = strings.ReplaceAll(s, ",", "")
	return strconv.ParseFloat(s, 64)
}

func clampNonNegative(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}

func cell(cells []string, i int) string {
	if i < 0 || i >= len(cells) {
		return ""
	}
	return cells[i]
}

func blankRow(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func getSheet(f *xlsx.File, opts Options) (*xlsx.Sheet, error) {
	if opts.SheetName != "" {
		sheet, ok := f.Sheet[opts.SheetName]
		if !ok {
			return nil, eris.Errorf("ingest: sheet %q not found", opts.SheetName)
		}
		return sheet, nil
	}
	if opts.SheetIndex >= len(f.Sheets) {
		return nil, eris.Errorf("ingest: sheet index %d out of range (file has %d sheets)", opts.SheetIndex, len(f.Sheets))
	}
	return f.Sheets[opts.SheetIndex], nil
}

func rowToStrings(row *xlsx.Row) []string {
	cells := make([]string, len(row.Cells))
	for j, c := range row.Cells {
		cells[j] = c.String()
	}
	return cells
}
