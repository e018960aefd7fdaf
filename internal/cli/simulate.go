package cli

import (
	"errors"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"matpulse/internal/app"
)

var (
	simulateMaterial  string
	simulateName      string
	simulatePrice     float64
	simulatePrev      float64
	simulateRuleType  string
	simulateThreshold float64
	simulateWindow    string
	simulateChannel   string
	simulateEmail     string
	simulateChatID    string
	simulatePhone     string
)

var simulateCmd = &cobra.Command{
	Use:   "simulate-alert",
	Short: "Trigger one synthetic alert through the configured transports",
	RunE: func(cmd *cobra.Command, args []string) error {
		if simulatePrice <= 0 {
			return errors.New("--price must be greater than 0")
		}

		opts := app.SimulateAlertOptions{
			MaterialID:     simulateMaterial,
			MaterialName:   simulateName,
			Price:          decimal.NewFromFloat(simulatePrice),
			RuleType:       simulateRuleType,
			Threshold:      decimal.NewFromFloat(simulateThreshold),
			TimeWindow:     simulateWindow,
			Channel:        simulateChannel,
			Email:          simulateEmail,
			TelegramChatID: simulateChatID,
			WhatsAppPhone:  simulatePhone,
		}

		if simulatePrev > 0 {
			prev := decimal.NewFromFloat(simulatePrev)
			opts.PrevPrice = &prev
		}

		return getApp().SimulateAlert(cmd.Context(), opts)
	},
}

func init() {
	simulateCmd.Flags().StringVar(&simulateMaterial, "material", "simulated", "Material identifier")
	simulateCmd.Flags().StringVar(&simulateName, "name", "", "Material display name")
	simulateCmd.Flags().Float64Var(&simulatePrice, "price", 0, "Current price")
	simulateCmd.Flags().Float64Var(&simulatePrev, "prev-price", 0, "Previous price for percent-change rules")
	simulateCmd.Flags().StringVar(&simulateRuleType, "rule-type", "price_change", "Rule type (price_change, price_above, price_below, daily_summary)")
	simulateCmd.Flags().Float64Var(&simulateThreshold, "threshold", 5, "Rule threshold (percent or currency)")
	simulateCmd.Flags().StringVar(&simulateWindow, "window", "24h", "Comparison window for price_change rules")
	simulateCmd.Flags().StringVar(&simulateChannel, "channel", "all", "Channel selector (email, telegram, whatsapp, both, all)")
	simulateCmd.Flags().StringVar(&simulateEmail, "email", "", "Destination email address")
	simulateCmd.Flags().StringVar(&simulateChatID, "chat-id", "", "Destination Telegram chat id")
	simulateCmd.Flags().StringVar(&simulatePhone, "phone", "", "Destination WhatsApp phone number")
}
