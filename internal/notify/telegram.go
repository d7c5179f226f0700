package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const defaultTelegramBaseURL = "https://api.telegram.org"

// TelegramDispatcher delivers messages through the Telegram Bot API.
type TelegramDispatcher struct {
	baseURL string
	token   string
	http    *http.Client
}

func NewTelegramDispatcher(token string) *TelegramDispatcher {
	return &TelegramDispatcher{
		baseURL: defaultTelegramBaseURL,
		token:   strings.TrimSpace(token),
		http: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

// NewTelegramDispatcherWithBaseURL exists for tests pointing at a stub server.
func NewTelegramDispatcherWithBaseURL(token, baseURL string) *TelegramDispatcher {
	d := NewTelegramDispatcher(token)
	d.baseURL = strings.TrimRight(baseURL, "/")
	return d
}

func (d *TelegramDispatcher) Deliver(ctx context.Context, chatID int64, text string) error {
	if d.token == "" {
		return fmt.Errorf("telegram bot token not configured")
	}

	payload, err := json.Marshal(map[string]any{
		"chat_id": chatID,
		"text":    text,
	})
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", d.baseURL, d.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	var apiErr struct {
		Description string `json:"description"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&apiErr)

	// 403 means the user blocked the bot or never started it; the chat will
	// never become deliverable again.
	if resp.StatusCode == http.StatusForbidden {
		return fmt.Errorf("chat %d: %s: %w", chatID, apiErr.Description, ErrUnreachable)
	}
	return fmt.Errorf("telegram sendMessage status %d: %s", resp.StatusCode, apiErr.Description)
}
