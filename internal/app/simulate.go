package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"

	"matpulse/internal/alerting"
	"matpulse/internal/storage"
)

// SimulateAlertOptions describe one synthetic rule and price scenario.
type SimulateAlertOptions struct {
	MaterialID     string
	MaterialName   string
	Price          decimal.Decimal
	PrevPrice      *decimal.Decimal
	RuleType       string
	Threshold      decimal.Decimal
	TimeWindow     string
	Channel        string
	Email          string
	TelegramChatID string
	WhatsAppPhone  string
}

// SimulateAlert runs one evaluation pass against a synthetic rule and
// in-memory price data, dispatching through the real transports. Nothing
// is written to the database.
func (a *App) SimulateAlert(ctx context.Context, opts SimulateAlertOptions) error {
	if !a.Config.Alerting.Enabled {
		return errors.New("alerting is disabled in configuration")
	}

	notifiers := a.newNotifiers()
	if len(notifiers) == 0 {
		return errors.New("no alert transports configured")
	}

	if opts.MaterialID == "" {
		opts.MaterialID = "simulated"
	}
	if opts.MaterialName == "" {
		opts.MaterialName = opts.MaterialID
	}
	if opts.RuleType == "" {
		opts.RuleType = storage.RuleTypePriceChange
	}
	if opts.Channel == "" {
		opts.Channel = "all"
	}

	materialID := opts.MaterialID
	rule := storage.AlertRule{
		ID:         "simulated-rule",
		OrgID:      "simulated-org",
		MaterialID: &materialID,
		RuleType:   opts.RuleType,
		Threshold:  opts.Threshold,
		TimeWindow: opts.TimeWindow,
		Channel:    opts.Channel,
		Priority:   "normal",
		IsActive:   true,
		CreatedAt:  time.Now().UTC(),
	}

	scenario := &simulatedBackend{
		rule: rule,
		material: storage.Material{
			ID:       opts.MaterialID,
			Name:     opts.MaterialName,
			Category: "simulated",
			IsActive: true,
		},
		price:     opts.Price,
		prevPrice: opts.PrevPrice,
		destinations: storage.Destinations{
			Email:          opts.Email,
			TelegramChatID: opts.TelegramChatID,
			WhatsAppPhone:  opts.WhatsAppPhone,
		},
	}

	evaluator := alerting.NewEvaluator(
		scenario,
		scenario,
		scenario,
		scenario,
		notifiers,
		a.Config.Alerting.SendTimeout,
		a.Logger,
	)

	result, err := evaluator.Run(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "checked %d rule(s), triggered %d\n", result.Checked, result.Triggered)
	for _, msg := range result.Errors {
		fmt.Fprintf(os.Stdout, "error: %s\n", msg)
	}
	if len(scenario.recorded) > 0 {
		last := scenario.recorded[len(scenario.recorded)-1]
		fmt.Fprintf(os.Stdout, "delivery status: %s\nmessage:\n%s\n", last.Status, last.Message)
	}
	return nil
}

// simulatedBackend satisfies the evaluator's store interfaces from fixed
// in-memory data.
type simulatedBackend struct {
	rule         storage.AlertRule
	material     storage.Material
	price        decimal.Decimal
	prevPrice    *decimal.Decimal
	destinations storage.Destinations
	recorded     []storage.AlertDelivery
}

func (s *simulatedBackend) ListActiveRules(ctx context.Context) ([]storage.AlertRule, error) {
	return []storage.AlertRule{s.rule}, nil
}

func (s *simulatedBackend) ListActiveMaterials(ctx context.Context) ([]storage.Material, error) {
	return []storage.Material{s.material}, nil
}

func (s *simulatedBackend) LatestPrice(ctx context.Context, materialID string) (*storage.PricePoint, error) {
	if materialID != s.material.ID {
		return nil, nil
	}
	return &storage.PricePoint{
		MaterialID: materialID,
		Timestamp:  time.Now().UTC(),
		Price:      s.price,
		Source:     "simulated",
	}, nil
}

func (s *simulatedBackend) PriceAt(ctx context.Context, materialID string, asOf time.Time) (*storage.PricePoint, error) {
	if materialID != s.material.ID || s.prevPrice == nil {
		return nil, nil
	}
	return &storage.PricePoint{
		MaterialID: materialID,
		Timestamp:  asOf,
		Price:      *s.prevPrice,
		Source:     "simulated",
	}, nil
}

func (s *simulatedBackend) HasRecentDelivery(ctx context.Context, ruleID string, since time.Time) (bool, error) {
	return false, nil
}

func (s *simulatedBackend) InsertDelivery(ctx context.Context, delivery storage.AlertDelivery) (bool, error) {
	s.recorded = append(s.recorded, delivery)
	return true, nil
}

func (s *simulatedBackend) Destinations(ctx context.Context, orgID string) (storage.Destinations, error) {
	return s.destinations, nil
}
