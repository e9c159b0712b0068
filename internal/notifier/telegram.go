package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/phuslu/log"
)

const telegramAPI = "https://api.telegram.org"

// TelegramNotifier talks to one chat through the Bot API.
type TelegramNotifier struct {
	BotToken string
	ChatID   string
	APIBase  string // overridden in tests
	Client   *http.Client
}

// NewTelegramNotifier builds a notifier, routing through proxyURL when set.
func NewTelegramNotifier(botToken, chatID, proxyURL string) *TelegramNotifier {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	return &TelegramNotifier{
		BotToken: botToken,
		ChatID:   chatID,
		APIBase:  telegramAPI,
		Client:   &http.Client{Timeout: 40 * time.Second, Transport: transport},
	}
}

// apiResponse is the envelope every Bot API method answers with.
type apiResponse struct {
	OK          bool            `json:"ok"`
	Description string          `json:"description"`
	Result      json.RawMessage `json:"result"`
}

// call posts params as JSON to a Bot API method and decodes the result into out (may be nil).
func (t *TelegramNotifier) call(ctx context.Context, name string, params interface{}, out interface{}) error {
	body, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("%s: marshal: %w", name, err)
	}
	endpoint := t.APIBase + "/bot" + t.BotToken + "/" + name
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.Client.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	defer resp.Body.Close()

	var env apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("%s: status %d: %w", name, resp.StatusCode, err)
	}
	if !env.OK || resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: status %d: %s", name, resp.StatusCode, env.Description)
	}
	if out != nil && len(env.Result) > 0 {
		if err := json.Unmarshal(env.Result, out); err != nil {
			return fmt.Errorf("%s: decode result: %w", name, err)
		}
	}
	return nil
}

// Send posts an HTML message to the configured chat.
func (t *TelegramNotifier) Send(ctx context.Context, text string) error {
	return t.call(ctx, "sendMessage", map[string]interface{}{
		"chat_id":                  t.ChatID,
		"text":                     text,
		"parse_mode":               "HTML",
		"disable_web_page_preview": true,
	}, nil)
}

// SendWithRetry retries Send with 1s, 2s, 4s... backoff. It gives up early when ctx ends.
func (t *TelegramNotifier) SendWithRetry(ctx context.Context, text string, maxRetries int) error {
	var err error
	for attempt := 0; ; attempt++ {
		if err = t.Send(ctx, text); err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if attempt == maxRetries {
			break
		}
		backoff := time.Second << uint(attempt)
		log.Warn().Err(err).Int("attempt", attempt+1).Dur("backoff", backoff).Msg("telegram send failed, retrying")
		if !sleep(ctx, backoff) {
			return ctx.Err()
		}
	}
	return fmt.Errorf("telegram: %d attempts failed: %w", maxRetries+1, err)
}

// sleep waits d and reports false if ctx ended first.
func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
