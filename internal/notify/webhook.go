// Package notify posts domain events to an outbound webhook.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const EventLeadConverted = "lead.converted"

type payload struct {
	ID     string    `json:"id"`
	Event  string    `json:"event"`
	Data   any       `json:"data"`
	SentAt time.Time `json:"sentAt"`
}

// Webhook sends one POST per event. An empty URL disables it.
type Webhook struct {
	URL    string
	Client *http.Client
	Log    logrus.FieldLogger
	Now    func() time.Time
}

func NewWebhook(url string, log logrus.FieldLogger) *Webhook {
	return &Webhook{
		URL:    url,
		Client: &http.Client{Timeout: 5 * time.Second},
		Log:    log,
		Now:    func() time.Time { return time.Now().UTC() },
	}
}

// Send delivers the event once. Failures are logged and returned; nothing is retried.
func (w *Webhook) Send(ctx context.Context, event string, data any) error {
	if w == nil || w.URL == "" {
		return nil
	}
	err := w.send(ctx, event, data)
	if err != nil {
		w.Log.WithError(err).WithField("event", event).Warn("webhook delivery failed")
	}
	return err
}

func (w *Webhook) send(ctx context.Context, event string, data any) error {
	body, err := json.Marshal(payload{ID: uuid.NewString(), Event: event, Data: data, SentAt: w.Now()})
	if err != nil {
		return fmt.Errorf("encode webhook: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.Client.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook responded %d", resp.StatusCode)
	}
	return nil
}
