package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// WebhookMailer posts composed notifications to an HTTP endpoint instead of
// a mail relay. A non-2xx response counts as a failed delivery so the worker
// retries it.
type WebhookMailer struct {
	url        string
	httpClient *http.Client
}

// NewWebhookMailer builds a mailer targeting the given endpoint.
func NewWebhookMailer(url string) *WebhookMailer {
	return &WebhookMailer{
		url:        url,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

type webhookPayload struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	Body    string   `json:"body"`
}

// Send implements Mailer.
func (m *WebhookMailer) Send(ctx context.Context, from string, to []string, subject, body string) error {
	payload, err := json.Marshal(webhookPayload{
		From:    from,
		To:      to,
		Subject: subject,
		Body:    body,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := m.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return fmt.Errorf("notification webhook: HTTP %d", res.StatusCode)
	}
	return nil
}
