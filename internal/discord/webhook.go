package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

var (
	ErrNotDiscordURL = errors.New("URL must be a Discord webhook URL")
	ErrRejected      = errors.New("discord webhook rejected the message")
)

type Embed struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Color       int    `json:"color"`
	Timestamp   string `json:"timestamp"`
}

type Message struct {
	Content string  `json:"content"`
	Embeds  []Embed `json:"embeds,omitempty"`
}

type Client struct {
	HTTP *http.Client
}

func NewClient() *Client {
	return &Client{HTTP: &http.Client{Timeout: 10 * time.Second}}
}

// ValidateWebhookURL rejects anything that is not a well-formed Discord
// webhook endpoint before any request is made.
func ValidateWebhookURL(webhookURL string) error {
	if _, err := url.ParseRequestURI(webhookURL); err != nil {
		return fmt.Errorf("invalid webhook URL format: %w", err)
	}
	if !strings.Contains(webhookURL, "discord.com/api/webhooks") {
		return ErrNotDiscordURL
	}
	return nil
}

func (c *Client) Send(ctx context.Context, webhookURL string, msg Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("discord: marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("discord: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("discord: send: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return fmt.Errorf("%w: %d %s", ErrRejected, res.StatusCode, http.StatusText(res.StatusCode))
	}
	return nil
}

func (c *Client) SendTest(ctx context.Context, webhookURL string) error {
	return c.Send(ctx, webhookURL, Message{
		Content: "✅ **Test Notification**\n\nThis is a test message from SQLBots Dashboard. Your webhook is working correctly!",
		Embeds: []Embed{{
			Title:       "Webhook Test",
			Description: "Your Discord webhook integration is successfully configured.",
			Color:       0x00ff00,
			Timestamp:   time.Now().UTC().Format(time.RFC3339),
		}},
	})
}

func (c *Client) NotifyTaskCreated(ctx context.Context, webhookURL, taskID, title string) error {
	return c.Send(ctx, webhookURL, Message{
		Content: fmt.Sprintf("🚀 Task **%s** (%s) has been created and is now running.", title, taskID),
	})
}
