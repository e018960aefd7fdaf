package forecast

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"matpulse/internal/storage"
)

// seriesFromPrices builds a newest-first series; prices[0] is the latest.
func seriesFromPrices(prices ...float64) []storage.PricePoint {
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	points := make([]storage.PricePoint, len(prices))
	for i, p := range prices {
		points[i] = storage.PricePoint{
			MaterialID: "copper",
			Timestamp:  base.Add(-time.Duration(i) * 24 * time.Hour),
			Price:      decimal.NewFromFloat(p),
			Source:     "test",
		}
	}
	return points
}

func TestComputeEmptySeries(t *testing.T) {
	b := Compute(nil)

	if !b.MA7.IsZero() || !b.MA30.IsZero() {
		t.Fatalf("empty series should yield zero averages, got ma7=%s ma30=%s", b.MA7, b.MA30)
	}
	if b.Confidence != 0 {
		t.Fatalf("empty series should yield zero confidence, got %d", b.Confidence)
	}
	if !b.Forecast7D.IsZero() || !b.Forecast30.IsZero() || !b.Forecast90.IsZero() {
		t.Fatal("empty series should yield zero forecasts")
	}
}

func TestComputeSinglePoint(t *testing.T) {
	b := Compute(seriesFromPrices(120))

	want := decimal.NewFromInt(120)
	if !b.MA7.Equal(want) || !b.MA30.Equal(want) {
		t.Fatalf("single point should set ma7=ma30=price, got ma7=%s ma30=%s", b.MA7, b.MA30)
	}
	if b.Slope != 0 {
		t.Fatalf("single point slope should be 0, got %f", b.Slope)
	}
	if b.Confidence != 20 {
		t.Fatalf("single point confidence should be 20, got %d", b.Confidence)
	}
	if !b.Forecast30.Equal(want) {
		t.Fatalf("flat single-point forecast should equal price, got %s", b.Forecast30)
	}
}

func TestComputeMonotonicIncrease(t *testing.T) {
	// Newest first: 40 down to 1 oldest, i.e. strictly rising over time.
	prices := make([]float64, 40)
	for i := range prices {
		prices[i] = float64(40 - i)
	}
	b := Compute(seriesFromPrices(prices...))

	if b.Slope <= 0 {
		t.Fatalf("rising series should fit positive slope, got %f", b.Slope)
	}
	if !b.Forecast30.GreaterThan(b.Forecast7D) {
		t.Fatalf("longer horizon should forecast higher on a rising series: 7d=%s 30d=%s", b.Forecast7D, b.Forecast30)
	}
	if b.R2 < 0.99 {
		t.Fatalf("perfectly linear series should fit r2≈1, got %f", b.R2)
	}
}

func TestComputeClampOnSteepDecline(t *testing.T) {
	// 50 oldest falling to 1 newest.
	prices := make([]float64, 50)
	for i := range prices {
		prices[i] = float64(i + 1) // newest first: 1, 2, ... 50
	}
	b := Compute(seriesFromPrices(prices...))

	floor := decimal.NewFromFloat(0.5) // 50% of latest price 1
	for _, f := range []decimal.Decimal{b.Forecast7D, b.Forecast30, b.Forecast90} {
		if f.LessThan(floor) {
			t.Fatalf("forecast %s fell below half the latest price", f)
		}
	}
}

func TestConfidenceLadder(t *testing.T) {
	flat := func(n int) []storage.PricePoint {
		prices := make([]float64, n)
		for i := range prices {
			prices[i] = 100
		}
		return seriesFromPrices(prices...)
	}

	cases := []struct {
		n    int
		want int
	}{
		{1, 20},
		{6, 20},
		{7, 30},
		{29, 30},
		{30, 45},
		{60, 55},
	}
	prev := 0
	for _, tc := range cases {
		b := Compute(flat(tc.n))
		if b.Confidence != tc.want {
			t.Fatalf("n=%d: confidence %d, want %d", tc.n, b.Confidence, tc.want)
		}
		if b.Confidence < prev {
			t.Fatalf("confidence decreased with series length at n=%d", tc.n)
		}
		prev = b.Confidence
	}
}

func TestConfidenceCap(t *testing.T) {
	// Long, perfectly linear rising series hits every bonus.
	prices := make([]float64, 120)
	for i := range prices {
		prices[i] = float64(120 - i)
	}
	b := Compute(seriesFromPrices(prices...))

	if b.Confidence != 75 {
		t.Fatalf("confidence should cap at 75, got %d", b.Confidence)
	}
}

func TestConstantSeriesR2Zero(t *testing.T) {
	prices := make([]float64, 10)
	for i := range prices {
		prices[i] = 55
	}
	b := Compute(seriesFromPrices(prices...))

	if b.R2 != 0 {
		t.Fatalf("constant series has SStot=0 and must report r2=0, got %f", b.R2)
	}
	if b.Slope != 0 {
		t.Fatalf("constant series slope should be 0, got %f", b.Slope)
	}
}

func TestMovingAverageShortSeries(t *testing.T) {
	b := Compute(seriesFromPrices(10, 20, 30))

	want := decimal.NewFromInt(20)
	if !b.MA7.Equal(want) {
		t.Fatalf("ma7 over 3 points should average all of them, got %s", b.MA7)
	}
	if !b.MA30.Equal(want) {
		t.Fatalf("ma30 over 3 points should average all of them, got %s", b.MA30)
	}
}
