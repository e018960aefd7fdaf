package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const (
	latestPriceSQL = `SELECT material_id, ts, price, source
    FROM price_points
    WHERE material_id = $1
    ORDER BY ts DESC
    LIMIT 1;`

	priceAtSQL = `SELECT material_id, ts, price, source
    FROM price_points
    WHERE material_id = $1
      AND ts <= $2
    ORDER BY ts DESC
    LIMIT 1;`

	priceNearSQL = `SELECT material_id, ts, price, source
    FROM price_points
    WHERE material_id = $1
      AND ts >= $2
      AND ts <= $3
    ORDER BY ABS(EXTRACT(EPOCH FROM (ts - $4))) ASC
    LIMIT 1;`

	earliestPriceSQL = `SELECT material_id, ts, price, source
    FROM price_points
    WHERE material_id = $1
    ORDER BY ts ASC
    LIMIT 1;`

	seriesSQL = `SELECT material_id, ts, price, source
    FROM price_points
    WHERE material_id = $1
    ORDER BY ts DESC
    LIMIT $2;`

	listActiveMaterialsSQL = `SELECT id, name, category, is_active
    FROM materials
    WHERE is_active
    ORDER BY name;`
)

// PriceStore reads the append-only price history. All reads; the subsystem
// never writes price points.
type PriceStore interface {
	LatestPrice(ctx context.Context, materialID string) (*PricePoint, error)
	PriceAt(ctx context.Context, materialID string, asOf time.Time) (*PricePoint, error)
	PriceNear(ctx context.Context, materialID string, target time.Time, window time.Duration) (*PricePoint, error)
	EarliestPrice(ctx context.Context, materialID string) (*PricePoint, error)
	Series(ctx context.Context, materialID string, limit int) ([]PricePoint, error)
	ListActiveMaterials(ctx context.Context) ([]Material, error)
}

// LatestPrice returns the most recent observation, or nil when the material
// has no price history.
func (s *Store) LatestPrice(ctx context.Context, materialID string) (*PricePoint, error) {
	return s.queryOnePrice(ctx, latestPriceSQL, materialID)
}

// PriceAt returns the nearest observation at or before asOf, or nil.
func (s *Store) PriceAt(ctx context.Context, materialID string, asOf time.Time) (*PricePoint, error) {
	return s.queryOnePrice(ctx, priceAtSQL, materialID, asOf)
}

// PriceNear returns the observation closest to target within ±window, or
// nil when none falls inside the window.
func (s *Store) PriceNear(ctx context.Context, materialID string, target time.Time, window time.Duration) (*PricePoint, error) {
	return s.queryOnePrice(ctx, priceNearSQL, materialID, target.Add(-window), target.Add(window), target)
}

// EarliestPrice returns the first observation ever stored, or nil.
func (s *Store) EarliestPrice(ctx context.Context, materialID string) (*PricePoint, error) {
	return s.queryOnePrice(ctx, earliestPriceSQL, materialID)
}

// Series returns up to limit observations, newest first.
func (s *Store) Series(ctx context.Context, materialID string, limit int) ([]PricePoint, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, seriesSQL, materialID, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list price series: %w", queryErr)
	}
	defer rows.Close()

	points := make([]PricePoint, 0, limit)
	for rows.Next() {
		point, scanErr := scanPricePoint(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		points = append(points, point)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return points, nil
}

// ListActiveMaterials lists tracked materials ordered by name.
func (s *Store) ListActiveMaterials(ctx context.Context) ([]Material, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listActiveMaterialsSQL)
	if queryErr != nil {
		return nil, fmt.Errorf("list active materials: %w", queryErr)
	}
	defer rows.Close()

	materials := make([]Material, 0)
	for rows.Next() {
		var m Material
		if err := rows.Scan(&m.ID, &m.Name, &m.Category, &m.IsActive); err != nil {
			return nil, err
		}
		materials = append(materials, m)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return materials, nil
}

func (s *Store) queryOnePrice(ctx context.Context, sql string, args ...any) (*PricePoint, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, sql, args...)
	if queryErr != nil {
		return nil, fmt.Errorf("query price point: %w", queryErr)
	}
	defer rows.Close()

	if !rows.Next() {
		if rows.Err() != nil && !errors.Is(rows.Err(), pgx.ErrNoRows) {
			return nil, rows.Err()
		}
		return nil, nil
	}

	point, scanErr := scanPricePoint(rows)
	if scanErr != nil {
		return nil, scanErr
	}
	return &point, nil
}

func scanPricePoint(rows pgx.Rows) (PricePoint, error) {
	var (
		point    PricePoint
		priceStr string
	)
	if err := rows.Scan(&point.MaterialID, &point.Timestamp, &priceStr, &point.Source); err != nil {
		return PricePoint{}, err
	}

	price, err := decimal.NewFromString(priceStr)
	if err != nil {
		return PricePoint{}, fmt.Errorf("parse price: %w", err)
	}
	point.Price = price
	return point, nil
}
