package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"matpulse/internal/app"
)

const indexDateLayout = "2006-01-02"

var (
	indexDate string
	indexFrom string
	indexTo   string
)

var indexCmd = &cobra.Command{
	Use:   "compute-index",
	Short: "Compute and store the composite index for a date or date range",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.ComputeIndexOptions{}

		if indexDate != "" {
			if indexFrom != "" || indexTo != "" {
				return fmt.Errorf("--date cannot be combined with --from/--to")
			}
			date, err := time.Parse(indexDateLayout, indexDate)
			if err != nil {
				return fmt.Errorf("invalid --date value: %w", err)
			}
			opts.Date = &date
		}

		if indexFrom != "" {
			from, err := time.Parse(indexDateLayout, indexFrom)
			if err != nil {
				return fmt.Errorf("invalid --from value: %w", err)
			}
			opts.From = &from
		}

		if indexTo != "" {
			to, err := time.Parse(indexDateLayout, indexTo)
			if err != nil {
				return fmt.Errorf("invalid --to value: %w", err)
			}
			opts.To = &to
		}

		return getApp().ComputeIndex(cmd.Context(), opts)
	},
}

func init() {
	indexCmd.Flags().StringVar(&indexDate, "date", "", "Target date (YYYY-MM-DD, defaults to today)")
	indexCmd.Flags().StringVar(&indexFrom, "from", "", "Range start date (YYYY-MM-DD, inclusive)")
	indexCmd.Flags().StringVar(&indexTo, "to", "", "Range end date (YYYY-MM-DD, inclusive)")
}
