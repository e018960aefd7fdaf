package index

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"matpulse/internal/storage"
)

type fakePrices struct {
	materials []storage.Material
	earliest  map[string]*storage.PricePoint
	near      map[string]*storage.PricePoint
}

func (f *fakePrices) ListActiveMaterials(ctx context.Context) ([]storage.Material, error) {
	return f.materials, nil
}

func (f *fakePrices) EarliestPrice(ctx context.Context, materialID string) (*storage.PricePoint, error) {
	return f.earliest[materialID], nil
}

func (f *fakePrices) PriceNear(ctx context.Context, materialID string, target time.Time, window time.Duration) (*storage.PricePoint, error) {
	return f.near[materialID], nil
}

type fakeIndexStore struct {
	rows     map[string]storage.CompositeIndexRow
	upserted []storage.CompositeIndexRow
}

func newFakeIndexStore() *fakeIndexStore {
	return &fakeIndexStore{rows: make(map[string]storage.CompositeIndexRow)}
}

func (f *fakeIndexStore) UpsertIndex(ctx context.Context, row storage.CompositeIndexRow) error {
	f.upserted = append(f.upserted, row)
	f.rows[row.Date.Format("2006-01-02")] = row
	return nil
}

func (f *fakeIndexStore) IndexAt(ctx context.Context, date time.Time) (*storage.CompositeIndexRow, error) {
	row, ok := f.rows[date.Format("2006-01-02")]
	if !ok {
		return nil, nil
	}
	return &row, nil
}

func point(id string, price float64) *storage.PricePoint {
	return &storage.PricePoint{
		MaterialID: id,
		Timestamp:  time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
		Price:      decimal.NewFromFloat(price),
		Source:     "test",
	}
}

var testWeights = map[string]float64{
	"metals":      0.4,
	"energy":      0.3,
	"agriculture": 0.3,
}

func testMaterials() []storage.Material {
	return []storage.Material{
		{ID: "copper", Name: "Copper", Category: "metals", IsActive: true},
		{ID: "steel", Name: "Steel", Category: "metals", IsActive: true},
		{ID: "diesel", Name: "Diesel", Category: "energy", IsActive: true},
	}
}

func TestComputeAllRatiosOneYieldsBase(t *testing.T) {
	prices := &fakePrices{
		materials: testMaterials(),
		earliest: map[string]*storage.PricePoint{
			"copper": point("copper", 100),
			"steel":  point("steel", 50),
			"diesel": point("diesel", 2),
		},
		near: map[string]*storage.PricePoint{
			"copper": point("copper", 100),
			"steel":  point("steel", 50),
			"diesel": point("diesel", 2),
		},
	}
	store := newFakeIndexStore()
	calc := New(prices, store, testWeights, 7*24*time.Hour, zerolog.Nop())

	row, err := calc.Compute(context.Background(), time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}

	if row.Value.StringFixed(2) != "1000.00" {
		t.Fatalf("unchanged prices should yield exactly 1000.00, got %s", row.Value)
	}
	if len(store.upserted) != 1 {
		t.Fatalf("expected one upsert, got %d", len(store.upserted))
	}
	// agriculture has no materials and must default to ratio 1.0.
	agri, ok := row.Components["agriculture"]
	if !ok {
		t.Fatal("agriculture component missing")
	}
	if !agri.Ratio.Equal(decimal.NewFromInt(1)) {
		t.Fatalf("empty category ratio should default to 1.0, got %s", agri.Ratio)
	}
}

func TestComputeWeightedMovement(t *testing.T) {
	prices := &fakePrices{
		materials: testMaterials(),
		earliest: map[string]*storage.PricePoint{
			"copper": point("copper", 100),
			"steel":  point("steel", 100),
			"diesel": point("diesel", 100),
		},
		near: map[string]*storage.PricePoint{
			"copper": point("copper", 110), // ratio 1.1
			"steel":  point("steel", 130),  // ratio 1.3
			"diesel": point("diesel", 90),  // ratio 0.9
		},
	}
	store := newFakeIndexStore()
	calc := New(prices, store, testWeights, 7*24*time.Hour, zerolog.Nop())

	row, err := calc.Compute(context.Background(), time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}

	// metals mean 1.2*0.4 + energy 0.9*0.3 + agriculture 1.0*0.3 = 1.05
	if row.Value.StringFixed(2) != "1050.00" {
		t.Fatalf("expected 1050.00, got %s", row.Value)
	}
}

func TestComputeExcludesMaterialOutsideWindow(t *testing.T) {
	prices := &fakePrices{
		materials: testMaterials(),
		earliest: map[string]*storage.PricePoint{
			"copper": point("copper", 100),
			"steel":  point("steel", 100),
			"diesel": point("diesel", 100),
		},
		near: map[string]*storage.PricePoint{
			"copper": point("copper", 150), // ratio 1.5
			// steel and diesel have no price within the window
		},
	}
	store := newFakeIndexStore()
	calc := New(prices, store, testWeights, 7*24*time.Hour, zerolog.Nop())

	row, err := calc.Compute(context.Background(), time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}

	// metals mean = 1.5 (copper only); energy defaults to 1.0.
	// 1.5*0.4 + 1.0*0.3 + 1.0*0.3 = 1.2
	if row.Value.StringFixed(2) != "1200.00" {
		t.Fatalf("expected 1200.00, got %s", row.Value)
	}
	metals := row.Components["metals"]
	if len(metals.Materials) != 1 || metals.Materials[0] != "copper" {
		t.Fatalf("metals component should list only copper, got %v", metals.Materials)
	}
}

func TestComputePercentChanges(t *testing.T) {
	date := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	prices := &fakePrices{
		materials: testMaterials(),
		earliest: map[string]*storage.PricePoint{
			"copper": point("copper", 100),
			"steel":  point("steel", 100),
			"diesel": point("diesel", 100),
		},
		near: map[string]*storage.PricePoint{
			"copper": point("copper", 100),
			"steel":  point("steel", 100),
			"diesel": point("diesel", 100),
		},
	}
	store := newFakeIndexStore()
	store.rows["2026-02-28"] = storage.CompositeIndexRow{
		Date:  date.AddDate(0, 0, -1),
		Value: decimal.NewFromInt(800),
	}

	calc := New(prices, store, testWeights, 7*24*time.Hour, zerolog.Nop())
	row, err := calc.Compute(context.Background(), date)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}

	if row.Change1D == nil {
		t.Fatal("1d change should be present")
	}
	if row.Change1D.StringFixed(2) != "25.00" {
		t.Fatalf("800 -> 1000 should be +25.00%%, got %s", row.Change1D)
	}
	if row.Change7D != nil || row.Change30D != nil {
		t.Fatal("missing history should yield nil 7d/30d changes")
	}
}

func TestComputeIdempotentOverwrite(t *testing.T) {
	date := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	prices := &fakePrices{
		materials: testMaterials(),
		earliest: map[string]*storage.PricePoint{
			"copper": point("copper", 100),
			"steel":  point("steel", 100),
			"diesel": point("diesel", 100),
		},
		near: map[string]*storage.PricePoint{
			"copper": point("copper", 100),
			"steel":  point("steel", 100),
			"diesel": point("diesel", 100),
		},
	}
	store := newFakeIndexStore()
	calc := New(prices, store, testWeights, 7*24*time.Hour, zerolog.Nop())

	first, err := calc.Compute(context.Background(), date)
	if err != nil {
		t.Fatalf("first Compute: %v", err)
	}
	second, err := calc.Compute(context.Background(), date)
	if err != nil {
		t.Fatalf("second Compute: %v", err)
	}

	if !first.Value.Equal(second.Value) {
		t.Fatalf("recomputation changed the value: %s vs %s", first.Value, second.Value)
	}
	if len(store.rows) != 1 {
		t.Fatalf("recomputation should overwrite, not append; have %d rows", len(store.rows))
	}
}
