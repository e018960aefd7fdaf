package index

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"matpulse/internal/storage"
)

// Base is the index value when every category ratio equals 1.0.
var Base = decimal.NewFromInt(1000)

// PriceSource is the subset of price reads the calculator needs.
type PriceSource interface {
	ListActiveMaterials(ctx context.Context) ([]storage.Material, error)
	EarliestPrice(ctx context.Context, materialID string) (*storage.PricePoint, error)
	PriceNear(ctx context.Context, materialID string, target time.Time, window time.Duration) (*storage.PricePoint, error)
}

// IndexStore persists computed index rows and serves historical lookups.
type IndexStore interface {
	UpsertIndex(ctx context.Context, row storage.CompositeIndexRow) error
	IndexAt(ctx context.Context, date time.Time) (*storage.CompositeIndexRow, error)
}

// Calculator aggregates per-material price ratios into one weighted index
// value per date.
type Calculator struct {
	prices  PriceSource
	store   IndexStore
	weights map[string]decimal.Decimal
	window  time.Duration
	logger  zerolog.Logger
}

// New constructs a Calculator. Weights must already be validated to sum to
// 1.0; window bounds how far from the target date a material's price may be.
func New(prices PriceSource, store IndexStore, weights map[string]float64, window time.Duration, logger zerolog.Logger) *Calculator {
	converted := make(map[string]decimal.Decimal, len(weights))
	for category, weight := range weights {
		converted[category] = decimal.NewFromFloat(weight)
	}
	return &Calculator{
		prices:  prices,
		store:   store,
		weights: converted,
		window:  window,
		logger:  logger.With().Str("component", "index").Logger(),
	}
}

// Compute builds and persists the composite index for date. Recomputing an
// already-stored date overwrites the existing row.
func (c *Calculator) Compute(ctx context.Context, date time.Time) (storage.CompositeIndexRow, error) {
	date = date.UTC().Truncate(24 * time.Hour)

	materials, err := c.prices.ListActiveMaterials(ctx)
	if err != nil {
		return storage.CompositeIndexRow{}, fmt.Errorf("list materials: %w", err)
	}

	ratios := make(map[string][]decimal.Decimal)
	included := make(map[string][]string)
	for _, material := range materials {
		ratio, ok, ratioErr := c.materialRatio(ctx, material.ID, date)
		if ratioErr != nil {
			return storage.CompositeIndexRow{}, ratioErr
		}
		if !ok {
			c.logger.Debug().Str("material", material.ID).Time("date", date).
				Msg("material excluded: no price within window")
			continue
		}
		ratios[material.Category] = append(ratios[material.Category], ratio)
		included[material.Category] = append(included[material.Category], material.ID)
	}

	value := decimal.Zero
	components := make(map[string]storage.IndexComponent, len(c.weights))
	for category, weight := range c.weights {
		ratio := decimal.NewFromInt(1)
		if rs := ratios[category]; len(rs) > 0 {
			ratio = decimal.Avg(rs[0], rs[1:]...)
		}
		value = value.Add(weight.Mul(ratio))

		names := included[category]
		sort.Strings(names)
		components[category] = storage.IndexComponent{
			Weight:    weight,
			Ratio:     ratio,
			Materials: names,
		}
	}

	row := storage.CompositeIndexRow{
		Date:       date,
		Value:      Base.Mul(value).Round(2),
		Components: components,
	}

	row.Change1D, err = c.changeSince(ctx, row.Value, date.AddDate(0, 0, -1))
	if err != nil {
		return storage.CompositeIndexRow{}, err
	}
	row.Change7D, err = c.changeSince(ctx, row.Value, date.AddDate(0, 0, -7))
	if err != nil {
		return storage.CompositeIndexRow{}, err
	}
	row.Change30D, err = c.changeSince(ctx, row.Value, date.AddDate(0, 0, -30))
	if err != nil {
		return storage.CompositeIndexRow{}, err
	}

	if err := c.store.UpsertIndex(ctx, row); err != nil {
		return storage.CompositeIndexRow{}, fmt.Errorf("persist index: %w", err)
	}

	c.logger.Info().Time("date", date).Str("value", row.Value.String()).
		Int("materials", countIncluded(included)).Msg("composite index computed")
	return row, nil
}

// materialRatio returns price(date)/price(baseline) for one material. The
// second return is false when the material has no observation within the
// window around date, or its baseline price is zero.
func (c *Calculator) materialRatio(ctx context.Context, materialID string, date time.Time) (decimal.Decimal, bool, error) {
	baseline, err := c.prices.EarliestPrice(ctx, materialID)
	if err != nil {
		return decimal.Decimal{}, false, fmt.Errorf("earliest price for %s: %w", materialID, err)
	}
	if baseline == nil || baseline.Price.IsZero() {
		return decimal.Decimal{}, false, nil
	}

	current, err := c.prices.PriceNear(ctx, materialID, date, c.window)
	if err != nil {
		return decimal.Decimal{}, false, fmt.Errorf("price near %s for %s: %w", date.Format("2006-01-02"), materialID, err)
	}
	if current == nil {
		return decimal.Decimal{}, false, nil
	}

	return current.Price.Div(baseline.Price), true, nil
}

// changeSince computes the percent change of value against the persisted
// index at a past date; nil when that date is missing or stored as zero.
func (c *Calculator) changeSince(ctx context.Context, value decimal.Decimal, past time.Time) (*decimal.Decimal, error) {
	previous, err := c.store.IndexAt(ctx, past)
	if err != nil {
		return nil, fmt.Errorf("historical index at %s: %w", past.Format("2006-01-02"), err)
	}
	if previous == nil || previous.Value.IsZero() {
		return nil, nil
	}
	change := value.Sub(previous.Value).
		Div(previous.Value).
		Mul(decimal.NewFromInt(100)).
		Round(2)
	return &change, nil
}

func countIncluded(included map[string][]string) int {
	total := 0
	for _, names := range included {
		total += len(names)
	}
	return total
}
