package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Notification is the webhook body the notify bridge sends for each event.
type Notification struct {
	Kind       string    `json:"kind"`
	Type       string    `json:"type"`
	PaymentID  *int64    `json:"payment_id,omitempty"`
	Recipients []string  `json:"recipients"`
	Reconcile  bool      `json:"reconcile,omitempty"`
	Event      any       `json:"event"`
	SentAt     time.Time `json:"sent_at"`
}

// WebhookClient delivers notifications to the platform notification service.
type WebhookClient struct {
	url        string
	httpClient *http.Client
	log        *zap.Logger
}

func NewWebhookClient(url string, timeout time.Duration, log *zap.Logger) *WebhookClient {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &WebhookClient{
		url: strings.TrimRight(url, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		log: log,
	}
}

func (c *WebhookClient) Notify(ctx context.Context, n Notification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("notification service unavailable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("notification service returned %d: %s", resp.StatusCode, string(msg))
	}
	return nil
}
