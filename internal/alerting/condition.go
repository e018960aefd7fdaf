package alerting

import (
	"time"

	"github.com/shopspring/decimal"

	"matpulse/internal/storage"
)

// Channel is one concrete delivery transport.
type Channel string

const (
	ChannelEmail    Channel = "email"
	ChannelTelegram Channel = "telegram"
	ChannelWhatsApp Channel = "whatsapp"
)

// Condition is the typed trigger carried by a rule. The stored rule row
// overloads one numeric threshold column; mapping it into a variant per
// rule type keeps the unit (percent vs currency) unambiguous from here on.
type Condition interface {
	conditionKind() string
}

// PercentChange triggers when the absolute percent move over Window
// reaches Pct.
type PercentChange struct {
	Pct    decimal.Decimal
	Window time.Duration
}

// AbovePrice triggers when the current price exceeds Amount.
type AbovePrice struct {
	Amount decimal.Decimal
}

// BelowPrice triggers when the current price falls under Amount.
type BelowPrice struct {
	Amount decimal.Decimal
}

// DailySummary always triggers once per calendar day.
type DailySummary struct{}

func (PercentChange) conditionKind() string { return storage.RuleTypePriceChange }
func (AbovePrice) conditionKind() string    { return storage.RuleTypePriceAbove }
func (BelowPrice) conditionKind() string    { return storage.RuleTypePriceBelow }
func (DailySummary) conditionKind() string  { return storage.RuleTypeDailySummary }

// defaultChangeWindow applies when a price_change rule carries an
// unrecognised time_window value.
const defaultChangeWindow = 24 * time.Hour

var changeWindows = map[string]time.Duration{
	"1h":  time.Hour,
	"6h":  6 * time.Hour,
	"12h": 12 * time.Hour,
	"24h": 24 * time.Hour,
	"7d":  7 * 24 * time.Hour,
}

// ConditionFor maps a stored rule onto its typed condition. Unknown rule
// types come back as nil and are skipped by the evaluator.
func ConditionFor(rule storage.AlertRule) Condition {
	switch rule.RuleType {
	case storage.RuleTypePriceChange:
		window, ok := changeWindows[rule.TimeWindow]
		if !ok {
			window = defaultChangeWindow
		}
		return PercentChange{Pct: rule.Threshold, Window: window}
	case storage.RuleTypePriceAbove:
		return AbovePrice{Amount: rule.Threshold}
	case storage.RuleTypePriceBelow:
		return BelowPrice{Amount: rule.Threshold}
	case storage.RuleTypeDailySummary:
		return DailySummary{}
	default:
		return nil
	}
}

// Cooldown is the per-rule-type re-trigger policy. Since bounds the
// idempotency lookback from now; Bucket labels the window a delivery
// belongs to, backing the (rule_id, window_bucket) uniqueness constraint.
type Cooldown interface {
	Since(now time.Time) time.Time
	Bucket(now time.Time) time.Time
}

// rollingCooldown suppresses re-delivery within a fixed duration.
type rollingCooldown struct {
	d time.Duration
}

func (c rollingCooldown) Since(now time.Time) time.Time  { return now.Add(-c.d) }
func (c rollingCooldown) Bucket(now time.Time) time.Time { return now.UTC().Truncate(c.d) }

// calendarDayCooldown suppresses re-delivery within the current UTC day.
type calendarDayCooldown struct{}

func (calendarDayCooldown) Since(now time.Time) time.Time {
	return now.UTC().Truncate(24 * time.Hour)
}

func (calendarDayCooldown) Bucket(now time.Time) time.Time {
	return now.UTC().Truncate(24 * time.Hour)
}

// CooldownFor returns the re-trigger policy for a rule type: a rolling
// hour for threshold and change rules, the calendar day for summaries.
func CooldownFor(ruleType string) Cooldown {
	if ruleType == storage.RuleTypeDailySummary {
		return calendarDayCooldown{}
	}
	return rollingCooldown{d: time.Hour}
}

// ResolveChannels expands a rule's channel selector into concrete
// channels. "both" covers email and telegram, "all" adds whatsapp, and any
// other literal is taken as a single channel name.
func ResolveChannels(selector string) []Channel {
	switch selector {
	case "both":
		return []Channel{ChannelEmail, ChannelTelegram}
	case "all":
		return []Channel{ChannelEmail, ChannelTelegram, ChannelWhatsApp}
	default:
		return []Channel{Channel(selector)}
	}
}
