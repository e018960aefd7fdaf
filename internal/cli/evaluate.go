package cli

import (
	"github.com/spf13/cobra"
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate-alerts",
	Short: "Run a single alert evaluation pass and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().EvaluateAlerts(cmd.Context())
	},
}
