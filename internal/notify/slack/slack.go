// Package slack posts new-message alerts to Slack via incoming webhooks.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/linnemanlabs/confide/internal/message"
	"github.com/linnemanlabs/go-core/log"
)

const httpTimeout = 10 * time.Second

// Notifier sends a short alert for each new message to a Slack webhook.
// The message body is never posted; HR reads it from the mail or the API.
type Notifier struct {
	webhookURL string
	client     *http.Client
	logger     log.Logger
}

// New creates a new Slack notifier. If webhookURL is empty, Notify is a no-op.
func New(webhookURL string, logger log.Logger) *Notifier {
	if logger == nil {
		logger = log.Nop()
	}
	return &Notifier{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: httpTimeout},
		logger:     logger,
	}
}

// Notify posts an alert for n to the configured webhook.
func (n *Notifier) Notify(ctx context.Context, nt *message.Notification) error {
	if n.webhookURL == "" {
		return nil
	}

	body, err := json.Marshal(buildMessage(nt))
	if err != nil {
		return fmt.Errorf("slack: marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("slack: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req) //nolint:gosec // G704: webhookURL is from trusted config, not user input
	if err != nil {
		return fmt.Errorf("slack: post webhook: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("slack: webhook returned %d: %s", resp.StatusCode, string(respBody))
	}
	n.logger.Info(ctx, "slack alert posted", "message_id", nt.MessageID)
	return nil
}

func buildMessage(nt *message.Notification) map[string]any {
	return map[string]any{
		"blocks": []map[string]any{
			headerBlock(nt),
			fieldsBlock(nt),
			contextBlock(nt),
		},
	}
}

func headerBlock(nt *message.Notification) map[string]any {
	return map[string]any{
		"type": "header",
		"text": map[string]any{
			"type": "plain_text",
			"text": fmt.Sprintf("%s New anonymous message", priorityEmoji(nt.Priority)),
		},
	}
}

func fieldsBlock(nt *message.Notification) map[string]any {
	return map[string]any{
		"type": "section",
		"fields": []map[string]any{
			{"type": "mrkdwn", "text": fmt.Sprintf("*Category:* %s", nt.Category.Label())},
			{"type": "mrkdwn", "text": fmt.Sprintf("*Priority:* %s", nt.Priority.Label())},
		},
	}
}

func contextBlock(nt *message.Notification) map[string]any {
	return map[string]any{
		"type": "context",
		"elements": []map[string]any{
			{
				"type": "mrkdwn",
				"text": fmt.Sprintf("confide • message %s • %s", nt.MessageID, nt.SubmittedAt.UTC().Format("2006-01-02 15:04 UTC")),
			},
		},
	}
}

func priorityEmoji(p message.Priority) string {
	switch p {
	case message.PriorityUrgent:
		return "\U0001f534" // red circle
	case message.PriorityHigh:
		return "\U0001f7e0" // orange circle
	case message.PriorityLow:
		return "⚪" // white circle
	default:
		return "\U0001f7e1" // yellow circle
	}
}
