package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const (
	// Rules of organisations past their trial or cancelled are excluded at
	// the query level; they never reach the evaluator.
	listActiveRulesSQL = `SELECT
        r.id,
        r.org_id,
        r.material_id,
        r.rule_type,
        r.threshold,
        r.time_window,
        r.channel,
        r.priority,
        r.is_active,
        r.created_at
    FROM alert_rules r
    JOIN organizations o ON o.id = r.org_id
    WHERE r.is_active
      AND o.subscription_status <> 'cancelled'
      AND NOT (o.subscription_status = 'trial' AND o.trial_ends_at < now())
    ORDER BY r.created_at;`

	hasRecentDeliverySQL = `SELECT EXISTS (
        SELECT 1 FROM alert_deliveries
        WHERE rule_id = $1
          AND sent_at >= $2
    );`

	insertDeliverySQL = `INSERT INTO alert_deliveries (
        id,
        rule_id,
        org_id,
        material_id,
        message_text,
        channel,
        delivery_status,
        window_bucket,
        sent_at
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8,$9
    )
    ON CONFLICT (rule_id, window_bucket) DO NOTHING;`

	listRecentDeliveriesSQL = `SELECT
        id,
        rule_id,
        org_id,
        material_id,
        message_text,
        channel,
        delivery_status,
        window_bucket,
        sent_at
    FROM alert_deliveries
    ORDER BY sent_at DESC
    LIMIT $1;`
)

// RuleStore lists alert rules eligible for evaluation.
type RuleStore interface {
	ListActiveRules(ctx context.Context) ([]AlertRule, error)
}

// DeliveryStore records and inspects the delivery audit log.
type DeliveryStore interface {
	HasRecentDelivery(ctx context.Context, ruleID string, since time.Time) (bool, error)
	InsertDelivery(ctx context.Context, delivery AlertDelivery) (bool, error)
	ListRecentDeliveries(ctx context.Context, limit int) ([]AlertDelivery, error)
}

// ListActiveRules returns active rules whose organisation is in good standing.
func (s *Store) ListActiveRules(ctx context.Context) ([]AlertRule, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listActiveRulesSQL)
	if queryErr != nil {
		return nil, fmt.Errorf("list active rules: %w", queryErr)
	}
	defer rows.Close()

	rules := make([]AlertRule, 0)
	for rows.Next() {
		rule, scanErr := scanAlertRule(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		rules = append(rules, rule)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return rules, nil
}

// HasRecentDelivery reports whether a delivery exists for the rule at or
// after since.
func (s *Store) HasRecentDelivery(ctx context.Context, ruleID string, since time.Time) (bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return false, err
	}

	var exists bool
	if scanErr := pool.QueryRow(ctx, hasRecentDeliverySQL, ruleID, since).Scan(&exists); scanErr != nil {
		return false, fmt.Errorf("check recent delivery: %w", scanErr)
	}
	return exists, nil
}

// InsertDelivery appends one audit row. The (rule_id, window_bucket) unique
// index makes a concurrent duplicate a no-op; the returned bool reports
// whether this call actually inserted the row.
func (s *Store) InsertDelivery(ctx context.Context, delivery AlertDelivery) (bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return false, err
	}

	var materialID any
	if delivery.MaterialID != nil {
		materialID = *delivery.MaterialID
	}

	tag, execErr := pool.Exec(ctx, insertDeliverySQL,
		delivery.ID,
		delivery.RuleID,
		delivery.OrgID,
		materialID,
		delivery.Message,
		delivery.Channel,
		delivery.Status,
		delivery.WindowBucket,
		delivery.SentAt,
	)
	if execErr != nil {
		return false, fmt.Errorf("insert delivery: %w", execErr)
	}
	return tag.RowsAffected() > 0, nil
}

// ListRecentDeliveries lists the newest audit rows.
func (s *Store) ListRecentDeliveries(ctx context.Context, limit int) ([]AlertDelivery, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentDeliveriesSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent deliveries: %w", queryErr)
	}
	defer rows.Close()

	deliveries := make([]AlertDelivery, 0, limit)
	for rows.Next() {
		var (
			d          AlertDelivery
			materialID sql.NullString
		)
		if err := rows.Scan(
			&d.ID,
			&d.RuleID,
			&d.OrgID,
			&materialID,
			&d.Message,
			&d.Channel,
			&d.Status,
			&d.WindowBucket,
			&d.SentAt,
		); err != nil {
			return nil, err
		}
		if materialID.Valid {
			value := materialID.String
			d.MaterialID = &value
		}
		deliveries = append(deliveries, d)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return deliveries, nil
}

func scanAlertRule(rows pgx.Rows) (AlertRule, error) {
	var (
		rule         AlertRule
		materialID   sql.NullString
		thresholdStr string
		timeWindow   sql.NullString
	)
	if err := rows.Scan(
		&rule.ID,
		&rule.OrgID,
		&materialID,
		&rule.RuleType,
		&thresholdStr,
		&timeWindow,
		&rule.Channel,
		&rule.Priority,
		&rule.IsActive,
		&rule.CreatedAt,
	); err != nil {
		return AlertRule{}, err
	}

	threshold, err := decimal.NewFromString(thresholdStr)
	if err != nil {
		return AlertRule{}, fmt.Errorf("parse threshold: %w", err)
	}
	rule.Threshold = threshold

	if materialID.Valid {
		value := materialID.String
		rule.MaterialID = &value
	}
	if timeWindow.Valid {
		rule.TimeWindow = timeWindow.String
	}
	return rule, nil
}
