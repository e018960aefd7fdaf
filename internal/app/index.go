package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"
)

// ComputeIndex calculates and persists the composite index for a single
// date or for every day in a range. Re-running a date overwrites the
// stored row.
func (a *App) ComputeIndex(ctx context.Context, opts ComputeIndexOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot compute index")
	}
	defer closeStore()

	calculator := a.newCalculator(store)

	dates, err := resolveIndexDates(opts)
	if err != nil {
		return err
	}

	failed := 0
	for _, date := range dates {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		row, computeErr := calculator.Compute(ctx, date)
		if computeErr != nil {
			failed++
			a.Logger.Error().Err(computeErr).Time("date", date).Msg("index computation failed")
			continue
		}
		fmt.Fprintf(os.Stdout, "%s\t%s\n", row.Date.Format("2006-01-02"), row.Value.StringFixed(2))
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d dates failed; see logs", failed, len(dates))
	}
	return nil
}

func resolveIndexDates(opts ComputeIndexOptions) ([]time.Time, error) {
	if opts.From != nil || opts.To != nil {
		if opts.From == nil || opts.To == nil {
			return nil, errors.New("--from and --to must be given together")
		}
		from := opts.From.UTC().Truncate(24 * time.Hour)
		to := opts.To.UTC().Truncate(24 * time.Hour)
		if to.Before(from) {
			return nil, errors.New("--to must not precede --from")
		}
		var dates []time.Time
		for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
			dates = append(dates, d)
		}
		return dates, nil
	}

	date := time.Now().UTC()
	if opts.Date != nil {
		date = opts.Date.UTC()
	}
	return []time.Time{date.Truncate(24 * time.Hour)}, nil
}
