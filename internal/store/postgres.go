package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/planning-cli/internal/db"
	"github.com/sells-group/planning-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	cfg.MaxConns = 10
	cfg.MinConns = 2
	cfg.MaxConnLifetime = 30 * time.Minute
	cfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: connect")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresWithPool wraps an existing pool. Used by tests with pgxmock.
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
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
	volume_kg         DOUBLE PRECISION NOT NULL DEFAULT 0,
	revenue_currency  DOUBLE PRECISION NOT NULL DEFAULT 0,
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
	volume_total      DOUBLE PRECISION NOT NULL DEFAULT 0,
	revenue_total     DOUBLE PRECISION NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_records_year ON historical_records(year);
CREATE INDEX IF NOT EXISTS idx_records_product_type ON historical_records(product_type);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := s.pool.Ping(ctx); err != nil {
		return 0, eris.Wrap(err, "postgres: ping")
	}
	return time.Since(start), nil
}

func (s *PostgresStore) UpsertRecords(ctx context.Context, records []model.HistoricalRecord) (UpsertSummary, error) {
	var summary UpsertSummary
	if len(records) == 0 {
		return summary, nil
	}

	placeholders := make([]string, 11)
	for i := range placeholders {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	conflictCols := "year, " + dimensionColumnList()
	query := fmt.Sprintf(
		`INSERT INTO historical_records (year, %s, volume_kg, revenue_currency)
		 VALUES (%s)
		 ON CONFLICT (%s) DO UPDATE SET volume_kg = EXCLUDED.volume_kg, revenue_currency = EXCLUDED.revenue_currency
		 RETURNING (xmax = 0) AS inserted`,
		dimensionColumnList(), strings.Join(placeholders, ", "), conflictCols,
	)

	for _, rec := range records {
		var inserted bool
		if err := s.pool.QueryRow(ctx, query, recordArgs(rec)...).Scan(&inserted); err != nil {
			return summary, eris.Wrap(err, "postgres: upsert record")
		}
		if inserted {
			summary.Inserted++
		} else {
			summary.Updated++
		}
	}
	return summary, nil
}

// BulkLoadRecords inserts records via COPY. Intended for initial loads into
// an empty table; duplicate keys fail the copy.
func (s *PostgresStore) BulkLoadRecords(ctx context.Context, records []model.HistoricalRecord) (int64, error) {
	columns := append([]string{"year"}, strings.Split(dimensionColumnList(), ", ")...)
	columns = append(columns, "volume_kg", "revenue_currency")

	rows := make([][]any, len(records))
	for i, rec := range records {
		rows[i] = recordArgs(rec)
	}
	return db.CopyFrom(ctx, s.pool, "historical_records", columns, rows)
}

func (s *PostgresStore) ListRecords(ctx context.Context, f Filter) ([]model.HistoricalRecord, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	where, args := whereClause(f, postgresPlaceholders())
	query := fmt.Sprintf(
		`SELECT year, %s, volume_kg, revenue_currency FROM historical_records%s ORDER BY year`,
		dimensionColumnList(), where,
	)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list records")
	}
	defer rows.Close()

	var out []model.HistoricalRecord
	for rows.Next() {
		rec, err := scanRecord(rows.Scan)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan record")
		}
		out = append(out, rec)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list records iterate")
}

func (s *PostgresStore) CountRecords(ctx context.Context, f Filter) (int, error) {
	if err := f.Validate(); err != nil {
		return 0, err
	}
	where, args := whereClause(f, postgresPlaceholders())
	var count int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(1) FROM historical_records`+where, args...).Scan(&count)
	return count, eris.Wrap(err, "postgres: count records")
}

func (s *PostgresStore) YearlyTotals(ctx context.Context, f Filter) ([]model.YearPoint, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	where, args := whereClause(f, postgresPlaceholders())
	query := `SELECT year, COALESCE(SUM(volume_kg), 0), COALESCE(SUM(revenue_currency), 0)
		FROM historical_records` + where + ` GROUP BY year ORDER BY year`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: yearly totals")
	}
	defer rows.Close()

	var out []model.YearPoint
	for rows.Next() {
		var p model.YearPoint
		if err := rows.Scan(&p.Year, &p.Volume, &p.Revenue); err != nil {
			return nil, eris.Wrap(err, "postgres: scan yearly total")
		}
		out = append(out, p)
	}
	return out, eris.Wrap(rows.Err(), "postgres: yearly totals iterate")
}

func (s *PostgresStore) FilterOptions(ctx context.Context) (map[model.Level][]string, error) {
	out := make(map[model.Level][]string, len(dimensionColumns))
	for _, dc := range dimensionColumns {
		query := fmt.Sprintf(
			`SELECT DISTINCT %s FROM historical_records WHERE %s <> '' ORDER BY %s`,
			dc.Column, dc.Column, dc.Column,
		)
		rows, err := s.pool.Query(ctx, query)
		if err != nil {
			return nil, eris.Wrapf(err, "postgres: filter options %s", dc.Column)
		}
		var values []string
		for rows.Next() {
			var v string
			if err := rows.Scan(&v); err != nil {
				rows.Close()
				return nil, eris.Wrapf(err, "postgres: scan filter option %s", dc.Column)
			}
			values = append(values, v)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, eris.Wrapf(err, "postgres: filter options %s iterate", dc.Column)
		}
		rows.Close()
		out[dc.Level] = values
	}
	return out, nil
}

func (s *PostgresStore) DeleteRecords(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM historical_records`)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: delete records")
	}
	return tag.RowsAffected(), nil
}

func (s *PostgresStore) RebuildCombinations(ctx context.Context) (int, error) {
	if _, err := s.pool.Exec(ctx, `DELETE FROM planning_combinations`); err != nil {
		return 0, eris.Wrap(err, "postgres: clear combinations")
	}

	cols := dimensionColumnList()
	insert := fmt.Sprintf(`INSERT INTO planning_combinations (%s, records, first_year, last_year, volume_total, revenue_total)
		SELECT %s, COUNT(1), MIN(year), MAX(year), COALESCE(SUM(volume_kg), 0), COALESCE(SUM(revenue_currency), 0)
		FROM historical_records GROUP BY %s`, cols, cols, cols)

	tag, err := s.pool.Exec(ctx, insert)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: rebuild combinations")
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) ListCombinations(ctx context.Context, limit int) ([]Combination, error) {
	if limit <= 0 {
		limit = 500
	}
	query := fmt.Sprintf(
		`SELECT %s, records, first_year, last_year, volume_total, revenue_total
		 FROM planning_combinations ORDER BY %s LIMIT $1`,
		dimensionColumnList(), dimensionColumnList(),
	)
	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list combinations")
	}
	defer rows.Close()

	var out []Combination
	for rows.Next() {
		c, err := scanCombination(rows.Scan)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan combination")
		}
		out = append(out, c)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list combinations iterate")
}
