package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// RenderCompleted describes a finished render for downstream delivery (email
// dispatch, CRM hooks). Dispatch is explicitly best effort: a failure here
// never changes the job's terminal state.
type RenderCompleted struct {
	TenantID      string `json:"tenant_id"`
	QuoteID       string `json:"quote_id"`
	JobID         string `json:"job_id"`
	ImageURL      string `json:"image_url"`
	CustomerName  string `json:"customer_name,omitempty"`
	CustomerEmail string `json:"customer_email,omitempty"`
	Locale        string `json:"locale,omitempty"`
}

// Notifier delivers render-completed events.
type Notifier interface {
	RenderCompleted(ctx context.Context, event RenderCompleted) error
}

// WebhookNotifier posts events as JSON to a configured endpoint.
type WebhookNotifier struct {
	endpoint string
	http     *http.Client
}

func NewWebhookNotifier(endpoint string, client *http.Client) *WebhookNotifier {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &WebhookNotifier{endpoint: strings.TrimSpace(endpoint), http: client}
}

func (n *WebhookNotifier) RenderCompleted(ctx context.Context, event RenderCompleted) error {
	if n.endpoint == "" {
		return errors.New("notify: no webhook endpoint configured")
	}
	payload, err := json.Marshal(map[string]any{
		"event": "render.completed",
		"data":  event,
	})
	if err != nil {
		return fmt.Errorf("notify: encode event: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("notify: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := n.http.Do(req)
	if err != nil {
		return fmt.Errorf("notify: deliver event: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("notify: endpoint returned status %d", resp.StatusCode)
	}
	return nil
}

// NoopNotifier is used when no delivery endpoint is configured.
type NoopNotifier struct{}

func (NoopNotifier) RenderCompleted(context.Context, RenderCompleted) error { return nil }

var (
	_ Notifier = (*WebhookNotifier)(nil)
	_ Notifier = NoopNotifier{}
)
