// Package notify posts operational alerts to a Discord webhook.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"trivia_backend/internal/logger"
)

const (
	ColorInfo    = 0x3498db
	ColorWarning = 0xf1c40f
	ColorError   = 0xe74c3c

	maxFields      = 25
	maxDescription = 4000
)

type Field struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

type Message struct {
	Title       string
	Description string
	Color       int
	Fields      []Field
}

type Notifier interface {
	Notify(ctx context.Context, m Message) error
}

// Discord sends messages as webhook embeds. An empty URL turns it into a no-op.
type Discord struct {
	url        string
	username   string
	httpClient *http.Client
}

func NewDiscord(url string) *Discord {
	return &Discord{
		url:        url,
		username:   "Bet Mode",
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

type embed struct {
	Title       string  `json:"title"`
	Description string  `json:"description,omitempty"`
	Color       int     `json:"color"`
	Fields      []Field `json:"fields,omitempty"`
	Timestamp   string  `json:"timestamp"`
}

type payload struct {
	Username string  `json:"username"`
	Embeds   []embed `json:"embeds"`
}

func (d *Discord) Notify(ctx context.Context, m Message) error {
	if d == nil || d.url == "" {
		logger.Debug("discord webhook not configured, dropping message", "title", m.Title)
		return nil
	}

	fields := m.Fields
	if len(fields) > maxFields {
		fields = fields[:maxFields]
	}
	desc := m.Description
	if len(desc) > maxDescription {
		desc = desc[:maxDescription] + "..."
	}
	color := m.Color
	if color == 0 {
		color = ColorInfo
	}

	body, err := json.Marshal(payload{
		Username: d.username,
		Embeds: []embed{{
			Title:       m.Title,
			Description: desc,
			Color:       color,
			Fields:      fields,
			Timestamp:   time.Now().UTC().Format(time.RFC3339),
		}},
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("discord webhook status %d: %s", resp.StatusCode, string(b))
	}
	return nil
}
