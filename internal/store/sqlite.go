package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/planning-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS historical_records (
	year              INTEGER NOT NULL,
	director          TEXT NOT NULL DEFAULT '',
	state             TEXT NOT NULL DEFAULT '',
	product_type      TEXT NOT NULL DEFAULT '',
	family            TEXT NOT NULL DEFAULT '',
	production_family TEXT NOT NULL DEFAULT '',
	brand             TEXT NOT NULL DEFAULT '',
	product_code      TEXT NOT NULL DEFAULT '',
	product_name      TEXT NOT NULL DEFAULT '',
	volume_kg         REAL NOT NULL DEFAULT 0,
	revenue_currency  REAL NOT NULL DEFAULT 0,
	PRIMARY KEY (year, director, state, product_type, family, production_family, brand, product_code, product_name)
);

CREATE TABLE IF NOT EXISTS planning_combinations (
	director          TEXT NOT NULL DEFAULT '',
	state             TEXT NOT NULL DEFAULT '',
	product_type      TEXT NOT NULL DEFAULT '',
	family            TEXT NOT NULL DEFAULT '',
	production_family TEXT NOT NULL DEFAULT '',
	brand             TEXT NOT NULL DEFAULT '',
	product_code      TEXT NOT NULL DEFAULT '',
	product_name      TEXT NOT NULL DEFAULT '',
	records           INTEGER NOT NULL DEFAULT 0,
	first_year        INTEGER NOT NULL DEFAULT 0,
	last_year         INTEGER NOT NULL DEFAULT 0,
	volume_total      REAL NOT NULL DEFAULT 0,
	revenue_total     REAL NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_records_year ON historical_records(year);
CREATE INDEX IF NOT EXISTS idx_records_product_type ON historical_records(product_type);
CREATE INDEX IF NOT EXISTS idx_combinations_director ON planning_combinations(director);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := s.db.PingContext(ctx); err != nil {
		return 0, eris.Wrap(err, "sqlite: ping")
	}
	return time.Since(start), nil
}

func (s *SQLiteStore) UpsertRecords(ctx context.Context, records []model.HistoricalRecord) (UpsertSummary, error) {
	var summary UpsertSummary
	if len(records) == 0 {
		return summary, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return summary, eris.Wrap(err, "sqlite: begin upsert")
	}
	defer tx.Rollback() //nolint:errcheck

	existsQ := `SELECT COUNT(1) FROM historical_records WHERE year = ? AND ` + dimensionEquals()
	upsertQ := fmt.Sprintf(
		`INSERT INTO historical_records (year, %s, volume_kg, revenue_currency)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT DO UPDATE SET volume_kg = excluded.volume_kg, revenue_currency = excluded.revenue_currency`,
		dimensionColumnList(),
	)

	for _, rec := range records {
		args := recordArgs(rec)

		var count int
		if err := tx.QueryRowContext(ctx, existsQ, args[:9]...).Scan(&count); err != nil {
			return summary, eris.Wrap(err, "sqlite: check record")
		}
		if _, err := tx.ExecContext(ctx, upsertQ, args...); err != nil {
			return summary, eris.Wrap(err, "sqlite: upsert record")
		}
		if count > 0 {
			summary.Updated++
		} else {
			summary.Inserted++
		}
	}

	if err := tx.Commit(); err != nil {
		return summary, eris.Wrap(err, "sqlite: commit upsert")
	}
	return summary, nil
}

func (s *SQLiteStore) ListRecords(ctx context.Context, f Filter) ([]model.HistoricalRecord, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	where, args := whereClause(f, sqlitePlaceholders())
	query := fmt.Sprintf(
		`SELECT year, %s, volume_kg, revenue_currency FROM historical_records%s ORDER BY year`,
		dimensionColumnList(), where,
	)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list records")
	}
	defer rows.Close()

	var out []model.HistoricalRecord
	for rows.Next() {
		rec, err := scanRecord(rows.Scan)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan record")
		}
		out = append(out, rec)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list records iterate")
}

func (s *SQLiteStore) CountRecords(ctx context.Context, f Filter) (int, error) {
	if err := f.Validate(); err != nil {
		return 0, err
	}
	where, args := whereClause(f, sqlitePlaceholders())
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM historical_records`+where, args...).Scan(&count)
	return count, eris.Wrap(err, "sqlite: count records")
}

func (s *SQLiteStore) YearlyTotals(ctx context.Context, f Filter) ([]model.YearPoint, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	where, args := whereClause(f, sqlitePlaceholders())
	query := `SELECT year, COALESCE(SUM(volume_kg), 0), COALESCE(SUM(revenue_currency), 0)
		FROM historical_records` + where + ` GROUP BY year ORDER BY year`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: yearly totals")
	}
	defer rows.Close()

	var out []model.YearPoint
	for rows.Next() {
		var p model.YearPoint
		if err := rows.Scan(&p.Year, &p.Volume, &p.Revenue); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan yearly total")
		}
		out = append(out, p)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: yearly totals iterate")
}

func (s *SQLiteStore) FilterOptions(ctx context.Context) (map[model.Level][]string, error) {
	out := make(map[model.Level][]string, len(dimensionColumns))
	for _, dc := range dimensionColumns {
		query := fmt.Sprintf(
			`SELECT DISTINCT %s FROM historical_records WHERE %s <> '' ORDER BY %s`,
			dc.Column, dc.Column, dc.Column,
		)
		rows, err := s.db.QueryContext(ctx, query)
		if err != nil {
			return nil, eris.Wrapf(err, "sqlite: filter options %s", dc.Column)
		}
		var values []string
		for rows.Next() {
			var v string
			if err := rows.Scan(&v); err != nil {
				rows.Close()
				return nil, eris.Wrapf(err, "sqlite: scan filter option %s", dc.Column)
			}
			values = append(values, v)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, eris.Wrapf(err, "sqlite: filter options %s iterate", dc.Column)
		}
		rows.Close()
		out[dc.Level] = values
	}
	return out, nil
}

func (s *SQLiteStore) DeleteRecords(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM historical_records`)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: delete records")
	}
	n, err := res.RowsAffected()
	return n, eris.Wrap(err, "sqlite: rows affected")
}

func (s *SQLiteStore) RebuildCombinations(ctx context.Context) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin rebuild")
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM planning_combinations`); err != nil {
		return 0, eris.Wrap(err, "sqlite: clear combinations")
	}

	cols := dimensionColumnList()
	insert := fmt.Sprintf(`INSERT INTO planning_combinations (%s, records, first_year, last_year, volume_total, revenue_total)
		SELECT %s, COUNT(1), MIN(year), MAX(year), COALESCE(SUM(volume_kg), 0), COALESCE(SUM(revenue_currency), 0)
		FROM historical_records GROUP BY %s`, cols, cols, cols)

	res, err := tx.ExecContext(ctx, insert)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: rebuild combinations")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: rows affected")
	}
	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit rebuild")
	}
	return int(n), nil
}

func (s *SQLiteStore) ListCombinations(ctx context.Context, limit int) ([]Combination, error) {
	if limit <= 0 {
		limit = 500
	}
	query := fmt.Sprintf(
		`SELECT %s, records, first_year, last_year, volume_total, revenue_total
		 FROM planning_combinations ORDER BY %s LIMIT ?`,
		dimensionColumnList(), dimensionColumnList(),
	)
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list combinations")
	}
	defer rows.Close()

	var out []Combination
	for rows.Next() {
		c, err := scanCombination(rows.Scan)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan combination")
		}
		out = append(out, c)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list combinations iterate")
}

// helpers shared across drivers

func dimensionEquals() string {
	parts := make([]string, len(dimensionColumns))
	for i, dc := range dimensionColumns {
		parts[i] = dc.Column + " = ?"
	}
	return strings.Join(parts, " AND ")
}

func recordArgs(rec model.HistoricalRecord) []any {
	args := make([]any, 0, 11)
	args = append(args, rec.Year)
	for _, dc := range dimensionColumns {
		args = append(args, rec.Dimensions[dc.Level])
	}
	return append(args, rec.VolumeKg, rec.RevenueCur)
}

func scanRecord(scan func(...any) error) (model.HistoricalRecord, error) {
	rec := model.HistoricalRecord{Dimensions: make(map[model.Level]string, len(dimensionColumns))}
	dims := make([]string, len(dimensionColumns))
	dest := make([]any, 0, 11)
	dest = append(dest, &rec.Year)
	for i := range dims {
		dest = append(dest, &dims[i])
	}
	dest = append(dest, &rec.VolumeKg, &rec.RevenueCur)
	if err := scan(dest...); err != nil {
		return rec, err
	}
	for i, dc := range dimensionColumns {
		rec.Dimensions[dc.Level] = dims[i]
	}
	return rec, nil
}

func scanCombination(scan func(...any) error) (Combination, error) {
	c := Combination{Dimensions: make(map[model.Level]string, len(dimensionColumns))}
	dims := make([]string, len(dimensionColumns))
	dest := make([]any, 0, 13)
	for i := range dims {
		dest = append(dest, &dims[i])
	}
	dest = append(dest, &c.Records, &c.FirstYear, &c.LastYear, &c.VolumeTotal, &c.RevenueTotal)
	if err := scan(dest...); err != nil {
		return c, err
	}
	for i, dc := range dimensionColumns {
		c.Dimensions[dc.Level] = dims[i]
	}
	return c, nil
}
