package forecast

import (
	"github.com/shopspring/decimal"

	"matpulse/internal/storage"
)

// Horizons, in stored observations ahead of the last one. One observation
// is treated as one day, which only holds while ingestion stores a single
// sample per material per day.
const (
	Horizon7  = 7
	Horizon30 = 30
	Horizon90 = 90
)

const maxConfidence = 75

// Baseline carries moving averages, the fitted linear trend, and clamped
// forecasts for one material. It is derived on demand and never persisted.
type Baseline struct {
	MA7        decimal.Decimal
	MA30       decimal.Decimal
	Slope      float64
	Intercept  float64
	R2         float64
	Forecast7D decimal.Decimal
	Forecast30 decimal.Decimal
	Forecast90 decimal.Decimal
	Confidence int
}

// Compute fits a baseline forecast over a price series ordered newest
// first. It is a pure function and safe to call concurrently. An empty
// series yields the zero Baseline.
func Compute(series []storage.PricePoint) Baseline {
	if len(series) == 0 {
		return Baseline{}
	}

	n := len(series)
	latest := series[0].Price

	// Oldest-first values for the regression, x = 0 at the first observation.
	values := make([]float64, n)
	for i, point := range series {
		values[n-1-i] = point.Price.InexactFloat64()
	}

	slope, intercept, r2 := fitLine(values)

	baseline := Baseline{
		MA7:        movingAverage(series, 7),
		MA30:       movingAverage(series, 30),
		Slope:      slope,
		Intercept:  intercept,
		R2:         r2,
		Forecast7D: forecastAt(slope, intercept, n+Horizon7, latest),
		Forecast30: forecastAt(slope, intercept, n+Horizon30, latest),
		Forecast90: forecastAt(slope, intercept, n+Horizon90, latest),
		Confidence: confidence(n, r2),
	}
	return baseline
}

func movingAverage(series []storage.PricePoint, window int) decimal.Decimal {
	if window > len(series) {
		window = len(series)
	}
	sum := decimal.Zero
	for _, point := range series[:window] {
		sum = sum.Add(point.Price)
	}
	return sum.Div(decimal.NewFromInt(int64(window)))
}

// fitLine runs ordinary least squares over values indexed 0..n-1.
func fitLine(values []float64) (slope, intercept, r2 float64) {
	n := float64(len(values))
	if len(values) < 2 {
		if len(values) == 1 {
			return 0, values[0], 0
		}
		return 0, 0, 0
	}

	var sumX, sumY, sumXY, sumXX float64
	for i, y := range values {
		x := float64(i)
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}

	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return 0, sumY / n, 0
	}
	slope = (n*sumXY - sumX*sumY) / denom
	intercept = (sumY - slope*sumX) / n

	mean := sumY / n
	var ssRes, ssTot float64
	for i, y := range values {
		fitted := slope*float64(i) + intercept
		ssRes += (y - fitted) * (y - fitted)
		ssTot += (y - mean) * (y - mean)
	}
	if ssTot == 0 {
		return slope, intercept, 0
	}
	return slope, intercept, 1 - ssRes/ssTot
}

// forecastAt evaluates the fitted line at x, clamped so a steep downward
// trend never forecasts below half of the latest observed price.
func forecastAt(slope, intercept float64, x int, latest decimal.Decimal) decimal.Decimal {
	value := decimal.NewFromFloat(slope*float64(x) + intercept)
	floor := latest.Div(decimal.NewFromInt(2))
	if value.LessThan(floor) {
		value = floor
	}
	return value.Round(2)
}

func confidence(n int, r2 float64) int {
	score := 20
	if n >= 7 {
		score += 10
	}
	if n >= 30 {
		score += 15
	}
	if n >= 60 {
		score += 10
	}
	if r2 > 0.5 {
		score += 10
	}
	if r2 > 0.8 {
		score += 10
	}
	if score > maxConfidence {
		score = maxConfidence
	}
	return score
}
