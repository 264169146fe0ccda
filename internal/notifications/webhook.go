package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Channel is a configured notification destination.
type Channel struct {
	Type string // discord, slack or generic
	URL  string
}

// WebhookSender posts messages to notification channels.
type WebhookSender struct {
	client *http.Client
	now    func() time.Time
}

// NewWebhookSender creates a new sender with a timeout.
func NewWebhookSender() *WebhookSender {
	return &WebhookSender{
		client: &http.Client{Timeout: 10 * time.Second},
		now:    time.Now,
	}
}

// Send dispatches a message to the given channel.
func (w *WebhookSender) Send(ctx context.Context, channel Channel, title, message string) error {
	if channel.URL == "" {
		return fmt.Errorf("channel %s has no webhook url", channel.Type)
	}
	switch channel.Type {
	case "discord":
		return w.sendDiscord(ctx, channel.URL, title, message)
	case "slack":
		return w.sendSlack(ctx, channel.URL, title, message)
	case "generic", "":
		return w.sendGeneric(ctx, channel.URL, title, message)
	default:
		return fmt.Errorf("unknown channel type: %s", channel.Type)
	}
}

func (w *WebhookSender) sendDiscord(ctx context.Context, url, title, message string) error {
	payload := map[string]interface{}{
		"embeds": []map[string]interface{}{
			{
				"title":       title,
				"description": message,
				"color":       15158332,
				"footer": map[string]string{
					"text": "StoryDraw",
				},
				"timestamp": w.now().UTC().Format(time.RFC3339),
			},
		},
	}
	return w.postJSON(ctx, url, payload)
}

func (w *WebhookSender) sendSlack(ctx context.Context, url, title, message string) error {
	payload := map[string]interface{}{
		"blocks": []map[string]interface{}{
			{
				"type": "header",
				"text": map[string]string{"type": "plain_text", "text": title},
			},
			{
				"type": "section",
				"text": map[string]string{"type": "mrkdwn", "text": message},
			},
		},
	}
	return w.postJSON(ctx, url, payload)
}

func (w *WebhookSender) sendGeneric(ctx context.Context, url, title, message string) error {
	payload := map[string]interface{}{
		"title":     title,
		"message":   message,
		"source":    "storydraw",
		"timestamp": w.now().UTC().Format(time.RFC3339),
	}
	return w.postJSON(ctx, url, payload)
}

func (w *WebhookSender) postJSON(ctx context.Context, url string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("post: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
