package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"matpulse/internal/forecast"
)

// Forecast prints the baseline forecast for one material.
func (a *App) Forecast(ctx context.Context, opts ForecastOptions) error {
	if opts.MaterialID == "" {
		return errors.New("--material is required")
	}

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot forecast")
	}
	defer closeStore()

	lookback := opts.Lookback
	if lookback <= 0 {
		lookback = a.Config.Forecast.MaxLookback
	}

	series, err := store.Series(ctx, opts.MaterialID, lookback)
	if err != nil {
		return err
	}
	if len(series) == 0 {
		fmt.Fprintf(os.Stdout, "no price data for material %s\n", opts.MaterialID)
		return nil
	}

	baseline := forecast.Compute(series)

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(writer, "Material\t%s\n", opts.MaterialID)
	fmt.Fprintf(writer, "Observations\t%d\n", len(series))
	fmt.Fprintf(writer, "Latest price\t%s\n", series[0].Price.StringFixed(2))
	fmt.Fprintf(writer, "MA7\t%s\n", baseline.MA7.StringFixed(2))
	fmt.Fprintf(writer, "MA30\t%s\n", baseline.MA30.StringFixed(2))
	fmt.Fprintf(writer, "Trend slope\t%.4f\n", baseline.Slope)
	fmt.Fprintf(writer, "R-squared\t%.4f\n", baseline.R2)
	fmt.Fprintf(writer, "Forecast 7d\t%s\n", baseline.Forecast7D.StringFixed(2))
	fmt.Fprintf(writer, "Forecast 30d\t%s\n", baseline.Forecast30.StringFixed(2))
	fmt.Fprintf(writer, "Forecast 90d\t%s\n", baseline.Forecast90.StringFixed(2))
	fmt.Fprintf(writer, "Confidence\t%d%%\n", baseline.Confidence)
	return writer.Flush()
}
