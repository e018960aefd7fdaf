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

// WhatsAppNotifier delivers messages through a WhatsApp gateway API.
type WhatsAppNotifier struct {
	gatewayURL string
	token      string
	client     *http.Client
	logger     zerolog.Logger
}

// NewWhatsAppNotifier constructs the WhatsApp transport.
func NewWhatsAppNotifier(gatewayURL, token string, timeout time.Duration, logger zerolog.Logger) *WhatsAppNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &WhatsAppNotifier{
		gatewayURL: strings.TrimRight(gatewayURL, "/"),
		token:      token,
		client:     &http.Client{Timeout: timeout},
		logger:     logger.With().Str("component", "notify_whatsapp").Logger(),
	}
}

// Send posts the body to the destination phone number.
func (n *WhatsAppNotifier) Send(ctx context.Context, destination, body string) error {
	payload := map[string]string{
		"phone":   destination,
		"message": body,
	}

	encoded, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal whatsapp payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.gatewayURL+"/send", bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("create whatsapp request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+n.token)

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send whatsapp request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("whatsapp gateway responded with status %d", resp.StatusCode)
	}

	n.logger.Debug().Str("phone", destination).Msg("whatsapp message delivered")
	return nil
}

var _ Notifier = (*WhatsAppNotifier)(nil)
