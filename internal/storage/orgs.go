package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

const destinationsSQL = `SELECT
    owner_email,
    telegram_chat_id,
    whatsapp_phone
FROM organizations
WHERE id = $1;`

// DirectoryStore resolves an organisation's notification destinations.
type DirectoryStore interface {
	Destinations(ctx context.Context, orgID string) (Destinations, error)
}

// Destinations returns the organisation's stored channel targets. Missing
// columns come back empty; an unknown organisation yields all-empty
// destinations rather than an error so a stale rule degrades to
// per-channel failures instead of aborting the pass.
func (s *Store) Destinations(ctx context.Context, orgID string) (Destinations, error) {
	pool, err := s.getPool()
	if err != nil {
		return Destinations{}, err
	}

	var email, chatID, phone sql.NullString
	scanErr := pool.QueryRow(ctx, destinationsSQL, orgID).Scan(&email, &chatID, &phone)
	if scanErr != nil {
		if errors.Is(scanErr, pgx.ErrNoRows) {
			return Destinations{}, nil
		}
		return Destinations{}, fmt.Errorf("resolve destinations: %w", scanErr)
	}

	return Destinations{
		Email:          email.String,
		TelegramChatID: chatID.String,
		WhatsAppPhone:  phone.String,
	}, nil
}
