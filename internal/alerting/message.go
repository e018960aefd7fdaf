package alerting

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// summaryLimit caps how many materials a daily digest lists.
const summaryLimit = 15

// renderPriceChange formats the trigger message for a percent-move rule.
func renderPriceChange(materialName string, current, previous, changePct, threshold decimal.Decimal, window time.Duration) string {
	direction := "up"
	if changePct.IsNegative() {
		direction = "down"
	}
	return fmt.Sprintf(
		"%s moved %s %s%% over the last %s (threshold %s%%): %s -> %s",
		materialName,
		direction,
		changePct.Abs().StringFixed(2),
		formatWindow(window),
		threshold.StringFixed(2),
		previous.StringFixed(2),
		current.StringFixed(2),
	)
}

// renderThreshold formats the trigger message for price_above/price_below.
func renderThreshold(materialName string, current, threshold decimal.Decimal, above bool) string {
	relation := "above"
	if !above {
		relation = "below"
	}
	return fmt.Sprintf(
		"%s is at %s, %s your threshold of %s",
		materialName,
		current.StringFixed(2),
		relation,
		threshold.StringFixed(2),
	)
}

// SummaryEntry is one material's line in a daily digest.
type SummaryEntry struct {
	MaterialName string
	Price        decimal.Decimal
	ChangePct24h *decimal.Decimal
}

// renderDailySummary formats the once-a-day digest message.
func renderDailySummary(date time.Time, entries []SummaryEntry) string {
	builder := strings.Builder{}
	builder.WriteString(fmt.Sprintf("Daily price summary for %s\n", date.UTC().Format("2006-01-02")))

	if len(entries) == 0 {
		builder.WriteString("No tracked materials have price data yet.")
		return builder.String()
	}

	shown := entries
	if len(shown) > summaryLimit {
		shown = shown[:summaryLimit]
	}
	for _, entry := range shown {
		change := "n/a"
		if entry.ChangePct24h != nil {
			sign := "+"
			if entry.ChangePct24h.IsNegative() {
				sign = ""
			}
			change = sign + entry.ChangePct24h.StringFixed(2) + "% 24h"
		}
		builder.WriteString(fmt.Sprintf("%s: %s (%s)\n", entry.MaterialName, entry.Price.StringFixed(2), change))
	}
	if len(entries) > summaryLimit {
		builder.WriteString(fmt.Sprintf("... and %d more materials", len(entries)-summaryLimit))
	}
	return strings.TrimRight(builder.String(), "\n")
}

func formatWindow(window time.Duration) string {
	if window >= 24*time.Hour && window%(24*time.Hour) == 0 {
		days := int(window / (24 * time.Hour))
		if days == 1 {
			return "24h"
		}
		return fmt.Sprintf("%dd", days)
	}
	return fmt.Sprintf("%dh", int(window/time.Hour))
}
