// Package notify delivers pipeline status messages to a human
// operator. Delivery is strictly best-effort: a failed or unconfigured
// notifier never affects pipeline outcomes.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"
)

// Notifier delivers one message. The bool reports delivery, never an
// error: callers treat notification as fire-and-forget.
type Notifier interface {
	Notify(ctx context.Context, text string) bool
}

// Progress formats the standard per-stage status line.
func Progress(taskID, stage, details string) string {
	msg := fmt.Sprintf("Task %s - %s", taskID, stage)
	if details != "" {
		msg += "\n" + details
	}
	return msg
}

// Telegram posts messages to the Bot API sendMessage endpoint.
type Telegram struct {
	token   string
	chatID  string
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

func NewTelegram(token, chatID string, logger *slog.Logger) *Telegram {
	return &Telegram{
		token:   token,
		chatID:  chatID,
		baseURL: "https://api.telegram.org",
		client:  &http.Client{Timeout: 10 * time.Second},
		logger:  logger,
	}
}

// Configured reports whether both credentials are present.
func (t *Telegram) Configured() bool {
	return t.token != "" && t.chatID != ""
}

func (t *Telegram) Notify(ctx context.Context, text string) bool {
	if !t.Configured() {
		t.logger.Warn("telegram credentials not configured")
		return false
	}

	payload, err := json.Marshal(map[string]string{
		"chat_id":    t.chatID,
		"text":       text,
		"parse_mode": "Markdown",
	})
	if err != nil {
		return false
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return false
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		t.logger.Error("notification delivery failed", "error", err)
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.logger.Error("telegram API error", "status", resp.StatusCode)
		return false
	}
	return true
}

// LogNotifier writes messages to the structured log. It backs
// deployments without Telegram credentials so pipeline events are
// still visible somewhere.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (l *LogNotifier) Notify(_ context.Context, text string) bool {
	l.logger.Info("notification", "message", text)
	return true
}

// EventLog appends one JSON object per line to a file, recording
// pipeline events for later inspection.
type EventLog struct {
	path   string
	logger *slog.Logger
}

func NewEventLog(path string, logger *slog.Logger) *EventLog {
	return &EventLog{path: path, logger: logger}
}

type event struct {
	Timestamp time.Time      `json:"timestamp"`
	Type      string         `json:"type"`
	Data      map[string]any `json:"data,omitempty"`
}

// Append records one event. Failures are logged and swallowed.
func (e *EventLog) Append(eventType string, data map[string]any) {
	raw, err := json.Marshal(event{
		Timestamp: time.Now().UTC(),
		Type:      eventType,
		Data:      data,
	})
	if err != nil {
		e.logger.Error("event marshal failed", "type", eventType, "error", err)
		return
	}

	f, err := os.OpenFile(e.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		e.logger.Error("event log open failed", "error", err)
		return
	}
	defer f.Close()

	if _, err := f.Write(append(raw, '\n')); err != nil {
		e.logger.Error("event log write failed", "error", err)
	}
}
