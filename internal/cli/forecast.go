package cli

import (
	"github.com/spf13/cobra"

	"matpulse/internal/app"
)

var (
	forecastMaterial string
	forecastLookback int
)

var forecastCmd = &cobra.Command{
	Use:   "forecast",
	Short: "Print the baseline price forecast for a material",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.ForecastOptions{
			MaterialID: forecastMaterial,
			Lookback:   forecastLookback,
		}
		return getApp().Forecast(cmd.Context(), opts)
	},
}

func init() {
	forecastCmd.Flags().StringVar(&forecastMaterial, "material", "", "Material identifier")
	forecastCmd.Flags().IntVar(&forecastLookback, "lookback", 0, "Maximum observations to fit (defaults to config)")
}
