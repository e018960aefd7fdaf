package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// MailRelayNotifier delivers messages through an HTTP mail relay API.
type MailRelayNotifier struct {
	relayURL string
	apiKey   string
	from     string
	subject  string
	client   *http.Client
	logger   zerolog.Logger
}

// NewMailRelayNotifier constructs the email transport.
func NewMailRelayNotifier(relayURL, apiKey, from, subject string, timeout time.Duration, logger zerolog.Logger) *MailRelayNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if subject == "" {
		subject = "Price alert"
	}

	return &MailRelayNotifier{
		relayURL: strings.TrimRight(relayURL, "/"),
		apiKey:   apiKey,
		from:     from,
		subject:  subject,
		client:   &http.Client{Timeout: timeout},
		logger:   logger.With().Str("component", "notify_email").Logger(),
	}
}

// Send posts a plain-text message addressed to destination.
func (n *MailRelayNotifier) Send(ctx context.Context, destination, body string) error {
	payload := map[string]string{
		"from":    n.from,
		"to":      destination,
		"subject": n.subject,
		"text":    body,
	}

	encoded, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal mail payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.relayURL+"/messages", bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("create mail request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+n.apiKey)

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send mail request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("mail relay responded with status %d", resp.StatusCode)
	}

	n.logger.Debug().Str("to", destination).Msg("email delivered to relay")
	return nil
}

var _ Notifier = (*MailRelayNotifier)(nil)
