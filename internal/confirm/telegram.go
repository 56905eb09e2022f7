package confirm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// Telegram asks for confirmation through a Telegram chat. It posts the
// prompt with an inline keyboard and polls getUpdates until a button is
// pressed.
type Telegram struct {
	token  string
	chatID string
	client *http.Client
	// poll is how often getUpdates is retried between empty responses.
	poll time.Duration
}

func NewTelegram(token, chatID string) *Telegram {
	return &Telegram{
		token:  token,
		chatID: chatID,
		client: &http.Client{Timeout: 35 * time.Second},
		poll:   2 * time.Second,
	}
}

type inlineButton struct {
	Text         string `json:"text"`
	CallbackData string `json:"callback_data"`
}

type telegramUpdate struct {
	UpdateID      int64 `json:"update_id"`
	CallbackQuery *struct {
		ID   string `json:"id"`
		Data string `json:"data"`
	} `json:"callback_query"`
}

// Confirm sends the prompt and blocks until the operator picks an option or
// the context expires. Callback payloads carry a per-prompt token so stale
// button presses from earlier prompts are ignored.
func (t *Telegram) Confirm(ctx context.Context, prompt string) (Response, error) {
	nonce := uuid.NewString()
	keyboard := [][]inlineButton{
		{
			{Text: "Do Nothing", CallbackData: nonce + ":none"},
			{Text: "Resolve to Default", CallbackData: nonce + ":default"},
		},
		{
			{Text: "Cancel Market", CallbackData: nonce + ":cancel"},
		},
	}
	if err := t.call(ctx, "sendMessage", map[string]any{
		"chat_id":      t.chatID,
		"text":         prompt,
		"reply_markup": map[string]any{"inline_keyboard": keyboard},
	}, nil); err != nil {
		return NoAction, err
	}

	var offset int64
	for {
		select {
		case <-ctx.Done():
			return NoAction, ctx.Err()
		default:
		}

		var result struct {
			Result []telegramUpdate `json:"result"`
		}
		err := t.call(ctx, "getUpdates", map[string]any{
			"offset":          offset,
			"timeout":         30,
			"allowed_updates": []string{"callback_query"},
		}, &result)
		if err != nil {
			return NoAction, err
		}

		for _, update := range result.Result {
			if update.UpdateID >= offset {
				offset = update.UpdateID + 1
			}
			cb := update.CallbackQuery
			if cb == nil {
				continue
			}
			// Acknowledge regardless of relevance so clients stop spinning.
			_ = t.call(ctx, "answerCallbackQuery", map[string]any{"callback_query_id": cb.ID}, nil)

			switch cb.Data {
			case nonce + ":default":
				return UseDefault, nil
			case nonce + ":cancel":
				return Cancel, nil
			case nonce + ":none":
				return NoAction, nil
			}
		}

		select {
		case <-ctx.Done():
			return NoAction, ctx.Err()
		case <-time.After(t.poll):
		}
	}
}

func (t *Telegram) call(ctx context.Context, method string, payload map[string]any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("telegram: marshal payload: %w", err)
	}

	url := fmt.Sprintf("https://api.telegram.org/bot%s/%s", t.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("telegram: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("telegram: %s: %w", method, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("telegram: %s: reading response: %w", method, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("telegram: %s: unexpected status %d: %s", method, resp.StatusCode, string(data))
	}
	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("telegram: %s: decoding response: %w", method, err)
		}
	}
	return nil
}
