package alerting

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"matpulse/internal/storage"
)

// PriceSource is the subset of price reads the evaluator needs.
type PriceSource interface {
	LatestPrice(ctx context.Context, materialID string) (*storage.PricePoint, error)
	PriceAt(ctx context.Context, materialID string, asOf time.Time) (*storage.PricePoint, error)
	ListActiveMaterials(ctx context.Context) ([]storage.Material, error)
}

// RuleSource lists rules eligible for evaluation.
type RuleSource interface {
	ListActiveRules(ctx context.Context) ([]storage.AlertRule, error)
}

// DeliveryLog reads and appends the delivery audit log.
type DeliveryLog interface {
	HasRecentDelivery(ctx context.Context, ruleID string, since time.Time) (bool, error)
	InsertDelivery(ctx context.Context, delivery storage.AlertDelivery) (bool, error)
}

// Directory resolves per-organisation notification destinations.
type Directory interface {
	Destinations(ctx context.Context, orgID string) (storage.Destinations, error)
}

// Result summarises one evaluation pass. Errors collects rule- and
// channel-level failures that did not stop the batch.
type Result struct {
	Checked   int
	Triggered int
	Errors    []string
}

// Evaluator walks active alert rules, evaluates their trigger conditions
// against stored prices, dispatches notifications, and records exactly one
// delivery row per triggered rule.
type Evaluator struct {
	rules       RuleSource
	prices      PriceSource
	deliveries  DeliveryLog
	directory   Directory
	notifiers   map[Channel]Notifier
	sendTimeout time.Duration
	logger      zerolog.Logger
	now         func() time.Time
}

// NewEvaluator constructs an Evaluator.
func NewEvaluator(
	rules RuleSource,
	prices PriceSource,
	deliveries DeliveryLog,
	directory Directory,
	notifiers map[Channel]Notifier,
	sendTimeout time.Duration,
	logger zerolog.Logger,
) *Evaluator {
	if sendTimeout <= 0 {
		sendTimeout = 10 * time.Second
	}
	return &Evaluator{
		rules:       rules,
		prices:      prices,
		deliveries:  deliveries,
		directory:   directory,
		notifiers:   notifiers,
		sendTimeout: sendTimeout,
		logger:      logger.With().Str("component", "evaluator").Logger(),
		now:         time.Now,
	}
}

// Run executes one batch pass. Only a failure to read the rule set or the
// material catalog is fatal; every per-rule failure is recorded on the
// Result and evaluation continues.
func (e *Evaluator) Run(ctx context.Context) (Result, error) {
	rules, err := e.rules.ListActiveRules(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("list active rules: %w", err)
	}

	materials, err := e.prices.ListActiveMaterials(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("list active materials: %w", err)
	}
	names := make(map[string]string, len(materials))
	for _, m := range materials {
		names[m.ID] = m.Name
	}

	result := Result{}
	for _, rule := range rules {
		result.Checked++

		triggered, ruleErr := e.evaluateRule(ctx, rule, materials, names, &result)
		if ruleErr != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("rule %s: %v", rule.ID, ruleErr))
			e.logger.Error().Err(ruleErr).Str("rule_id", rule.ID).Msg("rule evaluation failed")
			continue
		}
		if triggered {
			result.Triggered++
		}
	}

	e.logger.Info().
		Int("checked", result.Checked).
		Int("triggered", result.Triggered).
		Int("errors", len(result.Errors)).
		Msg("alert pass complete")
	return result, nil
}

func (e *Evaluator) evaluateRule(ctx context.Context, rule storage.AlertRule, materials []storage.Material, names map[string]string, result *Result) (bool, error) {
	condition := ConditionFor(rule)
	if condition == nil {
		return false, fmt.Errorf("unknown rule type %q", rule.RuleType)
	}

	now := e.now()
	cooldown := CooldownFor(rule.RuleType)
	recent, err := e.deliveries.HasRecentDelivery(ctx, rule.ID, cooldown.Since(now))
	if err != nil {
		return false, fmt.Errorf("check recent delivery: %w", err)
	}
	if recent {
		e.logger.Debug().Str("rule_id", rule.ID).Msg("skipped: delivery within re-trigger window")
		return false, nil
	}

	triggered, message, materialID, err := e.trigger(ctx, rule, condition, materials, names, now)
	if err != nil {
		return false, err
	}
	if !triggered {
		return false, nil
	}

	status := e.dispatch(ctx, rule, message, result)

	delivery := storage.AlertDelivery{
		ID:           uuid.NewString(),
		RuleID:       rule.ID,
		OrgID:        rule.OrgID,
		MaterialID:   materialID,
		Message:      message,
		Channel:      rule.Channel,
		Status:       status,
		WindowBucket: cooldown.Bucket(now),
		SentAt:       now,
	}
	inserted, err := e.deliveries.InsertDelivery(ctx, delivery)
	if err != nil {
		// The notification may already be out; at-least-once delivery with
		// best-effort logging.
		result.Errors = append(result.Errors, fmt.Sprintf("rule %s: delivered but not recorded: %v", rule.ID, err))
	} else if !inserted {
		e.logger.Warn().Str("rule_id", rule.ID).Msg("delivery window already claimed by a concurrent pass")
	}
	return true, nil
}

// trigger evaluates the rule's condition and renders the channel-agnostic
// message. For rules without a material, threshold conditions are checked
// against every active material and the first match wins.
func (e *Evaluator) trigger(ctx context.Context, rule storage.AlertRule, condition Condition, materials []storage.Material, names map[string]string, now time.Time) (bool, string, *string, error) {
	if _, ok := condition.(DailySummary); ok {
		message, triggered, err := e.buildSummary(ctx, rule, materials, names, now)
		return triggered, message, rule.MaterialID, err
	}

	if rule.MaterialID != nil {
		id := *rule.MaterialID
		triggered, message, err := e.evaluateCondition(ctx, condition, id, materialName(names, id), now)
		return triggered, message, rule.MaterialID, err
	}

	for _, material := range materials {
		triggered, message, err := e.evaluateCondition(ctx, condition, material.ID, material.Name, now)
		if err != nil {
			return false, "", nil, err
		}
		if triggered {
			id := material.ID
			return true, message, &id, nil
		}
	}
	return false, "", nil, nil
}

// evaluateCondition checks one material against one condition. A material
// with no price history never triggers.
func (e *Evaluator) evaluateCondition(ctx context.Context, condition Condition, materialID, name string, now time.Time) (bool, string, error) {
	latest, err := e.prices.LatestPrice(ctx, materialID)
	if err != nil {
		return false, "", fmt.Errorf("latest price for %s: %w", materialID, err)
	}
	if latest == nil {
		return false, "", nil
	}

	switch c := condition.(type) {
	case AbovePrice:
		if latest.Price.GreaterThan(c.Amount) {
			return true, renderThreshold(name, latest.Price, c.Amount, true), nil
		}
	case BelowPrice:
		if latest.Price.LessThan(c.Amount) {
			return true, renderThreshold(name, latest.Price, c.Amount, false), nil
		}
	case PercentChange:
		previous, err := e.prices.PriceAt(ctx, materialID, now.Add(-c.Window))
		if err != nil {
			return false, "", fmt.Errorf("price %s ago for %s: %w", c.Window, materialID, err)
		}
		if previous == nil || previous.Price.IsZero() {
			return false, "", nil
		}
		change := latest.Price.Sub(previous.Price).
			Div(previous.Price).
			Mul(decimal.NewFromInt(100))
		if change.Abs().GreaterThanOrEqual(c.Pct) {
			return true, renderPriceChange(name, latest.Price, previous.Price, change, c.Pct, c.Window), nil
		}
	}
	return false, "", nil
}

// buildSummary renders the daily digest. A summary rule scoped to one
// material is skipped when that material has no price data; the
// all-materials digest always triggers.
func (e *Evaluator) buildSummary(ctx context.Context, rule storage.AlertRule, materials []storage.Material, names map[string]string, now time.Time) (string, bool, error) {
	targets := materials
	if rule.MaterialID != nil {
		targets = []storage.Material{{ID: *rule.MaterialID, Name: materialName(names, *rule.MaterialID)}}
	}

	entries := make([]SummaryEntry, 0, len(targets))
	for _, material := range targets {
		latest, err := e.prices.LatestPrice(ctx, material.ID)
		if err != nil {
			return "", false, fmt.Errorf("latest price for %s: %w", material.ID, err)
		}
		if latest == nil {
			continue
		}

		entry := SummaryEntry{MaterialName: material.Name, Price: latest.Price}
		previous, err := e.prices.PriceAt(ctx, material.ID, now.Add(-24*time.Hour))
		if err != nil {
			return "", false, fmt.Errorf("24h price for %s: %w", material.ID, err)
		}
		if previous != nil && !previous.Price.IsZero() {
			change := latest.Price.Sub(previous.Price).
				Div(previous.Price).
				Mul(decimal.NewFromInt(100)).
				Round(2)
			entry.ChangePct24h = &change
		}
		entries = append(entries, entry)
	}

	if rule.MaterialID != nil && len(entries) == 0 {
		return "", false, nil
	}
	return renderDailySummary(now, entries), true, nil
}

// dispatch fans the message out to every resolved channel. One channel's
// failure never blocks another; the returned status reflects how many
// sends succeeded.
func (e *Evaluator) dispatch(ctx context.Context, rule storage.AlertRule, message string, result *Result) string {
	destinations, err := e.directory.Destinations(ctx, rule.OrgID)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("rule %s: resolve destinations: %v", rule.ID, err))
	}

	channels := ResolveChannels(rule.Channel)
	sent := 0
	failed := 0
	for _, channel := range channels {
		destination := destinationFor(channel, destinations)
		if destination == "" {
			failed++
			result.Errors = append(result.Errors, fmt.Sprintf("rule %s: channel %s has no destination configured", rule.ID, channel))
			continue
		}

		notifier, ok := e.notifiers[channel]
		if !ok {
			failed++
			result.Errors = append(result.Errors, fmt.Sprintf("rule %s: no transport configured for channel %s", rule.ID, channel))
			continue
		}

		sendCtx, cancel := context.WithTimeout(ctx, e.sendTimeout)
		sendErr := notifier.Send(sendCtx, destination, message)
		cancel()
		if sendErr != nil {
			failed++
			result.Errors = append(result.Errors, fmt.Sprintf("rule %s: channel %s: %v", rule.ID, channel, sendErr))
			continue
		}
		sent++
	}

	switch {
	case failed == 0 && sent > 0:
		return storage.DeliverySent
	case sent > 0:
		return storage.DeliveryPartial
	default:
		return storage.DeliveryFailed
	}
}

func destinationFor(channel Channel, destinations storage.Destinations) string {
	switch channel {
	case ChannelEmail:
		return destinations.Email
	case ChannelTelegram:
		return destinations.TelegramChatID
	case ChannelWhatsApp:
		return destinations.WhatsAppPhone
	default:
		return ""
	}
}

func materialName(names map[string]string, materialID string) string {
	if name, ok := names[materialID]; ok {
		return name
	}
	return materialID
}
