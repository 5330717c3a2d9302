// Package whatsapp sends outbound messages through the WhatsApp Cloud API.
// Sends are fire-and-forget from the caller's perspective: the client reports
// success or failure and never blocks past its configured timeout.
package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/medifast-dev/medifast-backend/pkg/config"
	"github.com/medifast-dev/medifast-backend/pkg/logger"
)

// Sender is the surface domain code depends on. SendText returns true only
// when the API accepted the message.
type Sender interface {
	SendText(ctx context.Context, phone, body string) bool
}

type Client struct {
	cfg    config.WhatsAppConfig
	http   *http.Client
	logg   *logger.Logger
	sendFn func(ctx context.Context, phone, body string) error
}

func NewClient(cfg config.WhatsAppConfig, logg *logger.Logger) *Client {
	c := &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
		logg: logg,
	}
	c.sendFn = c.post
	return c
}

type textPayload struct {
	MessagingProduct string      `json:"messaging_product"`
	To               string      `json:"to"`
	Type             string      `json:"type"`
	Text             textContent `json:"text"`
}

type textContent struct {
	Body string `json:"body"`
}

// SendText delivers a plain text message. Failures are logged and reported as
// false; callers decide whether a failed send aborts their flow.
func (c *Client) SendText(ctx context.Context, phone, body string) bool {
	if strings.TrimSpace(phone) == "" || strings.TrimSpace(body) == "" {
		return false
	}
	if err := c.sendFn(ctx, phone, body); err != nil {
		if c.logg != nil {
			logCtx := c.logg.WithField(ctx, "phone", maskPhone(phone))
			c.logg.Error(logCtx, "whatsapp send failed", err)
		}
		return false
	}
	return true
}

func (c *Client) post(ctx context.Context, phone, body string) error {
	if c.cfg.PhoneID == "" || c.cfg.AccessToken == "" {
		return fmt.Errorf("whatsapp credentials not configured")
	}

	payload := textPayload{
		MessagingProduct: "whatsapp",
		To:               phone,
		Type:             "text",
		Text:             textContent{Body: body},
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/%s/messages", strings.TrimSuffix(c.cfg.BaseURL, "/"), c.cfg.PhoneID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.AccessToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("whatsapp api status %d: %s", resp.StatusCode, string(snippet))
	}
	return nil
}

func maskPhone(phone string) string {
	if len(phone) <= 4 {
		return "****"
	}
	return strings.Repeat("*", len(phone)-4) + phone[len(phone)-4:]
}
