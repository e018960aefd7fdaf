package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const (
	upsertIndexSQL = `INSERT INTO composite_indexes (
        index_date,
        index_value,
        change_pct_1d,
        change_pct_7d,
        change_pct_30d,
        components
    ) VALUES (
        $1,$2,$3,$4,$5,$6
    )
    ON CONFLICT (index_date) DO UPDATE
    SET index_value    = EXCLUDED.index_value,
        change_pct_1d  = EXCLUDED.change_pct_1d,
        change_pct_7d  = EXCLUDED.change_pct_7d,
        change_pct_30d = EXCLUDED.change_pct_30d,
        components     = EXCLUDED.components;`

	indexAtSQL = `SELECT
        index_date,
        index_value,
        change_pct_1d,
        change_pct_7d,
        change_pct_30d,
        components,
        created_at
    FROM composite_indexes
    WHERE index_date = $1;`

	listIndexesBetweenSQL = `SELECT
        index_date,
        index_value,
        change_pct_1d,
        change_pct_7d,
        change_pct_30d,
        components,
        created_at
    FROM composite_indexes
    WHERE index_date >= $1
      AND index_date < $2
    ORDER BY index_date;`
)

// IndexStore persists composite index values, one row per date.
type IndexStore interface {
	UpsertIndex(ctx context.Context, row CompositeIndexRow) error
	IndexAt(ctx context.Context, date time.Time) (*CompositeIndexRow, error)
	ListIndexesBetween(ctx context.Context, from, to time.Time) ([]CompositeIndexRow, error)
}

// UpsertIndex writes or overwrites the index row for a date.
func (s *Store) UpsertIndex(ctx context.Context, row CompositeIndexRow) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	components, marshalErr := json.Marshal(row.Components)
	if marshalErr != nil {
		return fmt.Errorf("marshal index components: %w", marshalErr)
	}

	_, execErr := pool.Exec(ctx, upsertIndexSQL,
		row.Date,
		row.Value.String(),
		nullableDecimal(row.Change1D),
		nullableDecimal(row.Change7D),
		nullableDecimal(row.Change30D),
		components,
	)
	if execErr != nil {
		return fmt.Errorf("upsert composite index: %w", execErr)
	}
	return nil
}

// IndexAt returns the persisted index row for a date, or nil when absent.
func (s *Store) IndexAt(ctx context.Context, date time.Time) (*CompositeIndexRow, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, indexAtSQL, date)
	if queryErr != nil {
		return nil, fmt.Errorf("query composite index: %w", queryErr)
	}
	defer rows.Close()

	if !rows.Next() {
		if rows.Err() != nil && !errors.Is(rows.Err(), pgx.ErrNoRows) {
			return nil, rows.Err()
		}
		return nil, nil
	}

	row, scanErr := scanIndexRow(rows)
	if scanErr != nil {
		return nil, scanErr
	}
	return &row, nil
}

// ListIndexesBetween lists index rows within [from, to) ordered by date.
func (s *Store) ListIndexesBetween(ctx context.Context, from, to time.Time) ([]CompositeIndexRow, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listIndexesBetweenSQL, from, to)
	if queryErr != nil {
		return nil, fmt.Errorf("list composite indexes: %w", queryErr)
	}
	defer rows.Close()

	result := make([]CompositeIndexRow, 0)
	for rows.Next() {
		row, scanErr := scanIndexRow(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		result = append(result, row)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return result, nil
}

func scanIndexRow(rows pgx.Rows) (CompositeIndexRow, error) {
	var (
		row        CompositeIndexRow
		valueStr   string
		change1d   sql.NullString
		change7d   sql.NullString
		change30d  sql.NullString
		components []byte
	)
	if err := rows.Scan(
		&row.Date,
		&valueStr,
		&change1d,
		&change7d,
		&change30d,
		&components,
		&row.CreatedAt,
	); err != nil {
		return CompositeIndexRow{}, err
	}

	value, err := decimal.NewFromString(valueStr)
	if err != nil {
		return CompositeIndexRow{}, fmt.Errorf("parse index value: %w", err)
	}
	row.Value = value

	if row.Change1D, err = parseNullableDecimal(change1d); err != nil {
		return CompositeIndexRow{}, err
	}
	if row.Change7D, err = parseNullableDecimal(change7d); err != nil {
		return CompositeIndexRow{}, err
	}
	if row.Change30D, err = parseNullableDecimal(change30d); err != nil {
		return CompositeIndexRow{}, err
	}

	if len(components) > 0 {
		if err := json.Unmarshal(components, &row.Components); err != nil {
			return CompositeIndexRow{}, fmt.Errorf("unmarshal index components: %w", err)
		}
	}
	return row, nil
}

func nullableDecimal(d *decimal.Decimal) any {
	if d == nil {
		return nil
	}
	return d.String()
}

func parseNullableDecimal(v sql.NullString) (*decimal.Decimal, error) {
	if !v.Valid {
		return nil, nil
	}
	parsed, err := decimal.NewFromString(v.String)
	if err != nil {
		return nil, fmt.Errorf("parse change pct: %w", err)
	}
	return &parsed, nil
}
