// Package notification delivers emitted signals to external channels.
// Each notifier implements the scanner sink interface, so delivery rides
// the same fan-out as persistence.
package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"crypto-signal-engine/internal/engine"
)

// WebhookNotifier POSTs each signal as JSON to a configured endpoint
type WebhookNotifier struct {
	url        string
	httpClient *http.Client
	log        zerolog.Logger
}

// NewWebhookNotifier creates a webhook notifier
func NewWebhookNotifier(url string, timeout time.Duration, logger zerolog.Logger) *WebhookNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WebhookNotifier{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
		log:        logger,
	}
}

// webhookPayload is the delivery envelope
type webhookPayload struct {
	Event  string         `json:"event"`
	Signal *engine.Signal `json:"signal"`
	SentAt time.Time      `json:"sent_at"`
}

// Publish delivers the signal. Delivery failures are reported to the
// caller but never retried here; the signal already exists regardless.
func (n *WebhookNotifier) Publish(ctx context.Context, signal *engine.Signal) error {
	payload, err := json.Marshal(webhookPayload{
		Event:  "signal",
		Signal: signal,
		SentAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("deliver signal webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook endpoint returned %d", resp.StatusCode)
	}

	n.log.Debug().Str("symbol", signal.Symbol).Str("url", n.url).Msg("signal webhook delivered")
	return nil
}
