package storage

import (
	"time"

	"github.com/shopspring/decimal"
)

// Rule types understood by the evaluator.
const (
	RuleTypePriceChange  = "price_change"
	RuleTypePriceAbove   = "price_above"
	RuleTypePriceBelow   = "price_below"
	RuleTypeDailySummary = "daily_summary"
)

// Delivery outcomes recorded on the audit log.
const (
	DeliverySent    = "sent"
	DeliveryPartial = "partial"
	DeliveryFailed  = "failed"
)

// PricePoint is one immutable price observation for a material.
type PricePoint struct {
	MaterialID string
	Timestamp  time.Time
	Price      decimal.Decimal
	Source     string
}

// Material couples a tracked material with its composite-index category.
type Material struct {
	ID       string
	Name     string
	Category string
	IsActive bool
}

// AlertRule is user-configured alert criteria. Rules are created and
// toggled by an external CRUD layer; this service only reads them.
type AlertRule struct {
	ID         string
	OrgID      string
	MaterialID *string // nil means the rule covers every active material
	RuleType   string
	Threshold  decimal.Decimal // percent for price_change, currency otherwise
	TimeWindow string          // price_change only: 1h, 6h, 12h, 24h, 7d
	Channel    string          // selector: email, telegram, whatsapp, both, all
	Priority   string
	IsActive   bool
	CreatedAt  time.Time
}

// AlertDelivery is one row of the append-only delivery audit log. Exactly
// one row is written per triggered rule per evaluation pass; Channel keeps
// the rule's original selector, not the per-channel resolved names.
type AlertDelivery struct {
	ID           string
	RuleID       string
	OrgID        string
	MaterialID   *string
	Message      string
	Channel      string
	Status       string
	WindowBucket time.Time
	SentAt       time.Time
}

// IndexComponent describes one category's contribution to a composite index value.
type IndexComponent struct {
	Weight    decimal.Decimal `json:"weight"`
	Ratio     decimal.Decimal `json:"ratio"`
	Materials []string        `json:"materials"`
}

// CompositeIndexRow is the persisted composite index for one date.
type CompositeIndexRow struct {
	Date       time.Time
	Value      decimal.Decimal
	Change1D   *decimal.Decimal
	Change7D   *decimal.Decimal
	Change30D  *decimal.Decimal
	Components map[string]IndexComponent
	CreatedAt  time.Time
}

// Destinations holds an organisation's per-channel notification targets.
// An empty field means the channel has no configured destination.
type Destinations struct {
	Email          string
	TelegramChatID string
	WhatsAppPhone  string
}
