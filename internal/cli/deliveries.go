package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"matpulse/internal/app"
)

var (
	deliveriesLimit int
)

var deliveriesCmd = &cobra.Command{
	Use:   "deliveries",
	Short: "Display recent alert deliveries",
	RunE: func(cmd *cobra.Command, args []string) error {
		if deliveriesLimit <= 0 {
			return fmt.Errorf("--limit must be greater than zero")
		}

		opts := app.DeliveriesOptions{
			Limit: deliveriesLimit,
		}

		return getApp().Deliveries(cmd.Context(), opts)
	},
}

func init() {
	deliveriesCmd.Flags().IntVar(&deliveriesLimit, "limit", 20, "Number of deliveries to display")
}
