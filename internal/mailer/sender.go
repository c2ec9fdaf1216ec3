// Package mailer renders account emails and dispatches them through a transactional provider.
package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// DefaultResendURL is the Resend send endpoint.
const DefaultResendURL = "https://api.resend.com/emails"

// ErrSendFailed wraps every provider-side failure.
var ErrSendFailed = errors.New("email send failed")

// Message is a single HTML email.
type Message struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	HTML    string `json:"html"`
}

// Sender delivers a message and returns the provider's message id.
type Sender interface {
	Send(ctx context.Context, m Message) (string, error)
}

// ResendSender posts messages to the Resend HTTP API.
type ResendSender struct {
	url    string
	apiKey string
	client *http.Client
}

// NewResendSender builds a sender. Empty url means DefaultResendURL.
func NewResendSender(url, apiKey string, client *http.Client, timeout time.Duration) *ResendSender {
	if url == "" {
		url = DefaultResendURL
	}
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	return &ResendSender{url: url, apiKey: apiKey, client: client}
}

// Send implements Sender.
func (s *ResendSender) Send(ctx context.Context, m Message) (string, error) {
	body, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("encode message: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSendFailed, err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("%w: status %d: %s", ErrSendFailed, resp.StatusCode, bytes.TrimSpace(raw))
	}
	var out struct {
		ID string `json:"id"`
	}
	_ = json.Unmarshal(raw, &out)
	return out.ID, nil
}

// LogSender only logs messages. Used when no provider key is configured.
type LogSender struct{ Log *zap.Logger }

// Send implements Sender.
func (s LogSender) Send(_ context.Context, m Message) (string, error) {
	s.Log.Info("email not sent, no provider configured",
		zap.String("to", m.To), zap.String("subject", m.Subject))
	return "", nil
}
