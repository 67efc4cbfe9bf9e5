// Package notify reports progress through a Telegram bot and answers a
// small set of commands. The Bot API is two JSON endpoints, spoken
// directly over net/http.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

type Telegram struct {
	token   string
	chatID  int64
	baseURL string
	hc      *http.Client
}

func NewTelegram(token string, chatID int64) *Telegram {
	return &Telegram{
		token:   token,
		chatID:  chatID,
		baseURL: "https://api.telegram.org",
		hc:      &http.Client{Timeout: 40 * time.Second},
	}
}

// WithBaseURL points the client at a different server. Test hook.
func (t *Telegram) WithBaseURL(u string) *Telegram {
	t.baseURL = u
	return t
}

func (t *Telegram) api(method string) string {
	return fmt.Sprintf("%s/bot%s/%s", t.baseURL, t.token, method)
}

// Send posts a message to the configured chat.
func (t *Telegram) Send(ctx context.Context, text string) error {
	body, _ := json.Marshal(map[string]any{
		"chat_id": t.chatID,
		"text":    text,
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.api("sendMessage"), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := t.hc.Do(req)
	if err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode >= 400 {
		b, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return fmt.Errorf("telegram send status %d: %s", res.StatusCode, b)
	}
	return nil
}

type update struct {
	UpdateID int64 `json:"update_id"`
	Message  *struct {
		Text string `json:"text"`
		Chat struct {
			ID int64 `json:"id"`
		} `json:"chat"`
	} `json:"message"`
}

type updatesResponse struct {
	OK     bool     `json:"ok"`
	Result []update `json:"result"`
}

// Handler maps a command ("/status") to a reply. Empty reply sends nothing.
type Handler func(cmd string) string

// Listen long-polls getUpdates until ctx is done. Messages from other
// chats are ignored — this bot serves exactly one user.
func (t *Telegram) Listen(ctx context.Context, pollSeconds int, handle Handler) {
	if pollSeconds <= 0 {
		pollSeconds = 30
	}
	var offset int64

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		ups, err := t.getUpdates(ctx, offset, pollSeconds)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("[telegram] poll error: %v", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(10 * time.Second):
			}
			continue
		}

		for _, up := range ups {
			if up.UpdateID >= offset {
				offset = up.UpdateID + 1
			}
			if up.Message == nil || up.Message.Chat.ID != t.chatID {
				continue
			}
			reply := handle(up.Message.Text)
			if reply == "" {
				continue
			}
			if err := t.Send(ctx, reply); err != nil {
				log.Printf("[telegram] reply error: %v", err)
			}
		}
	}
}

func (t *Telegram) getUpdates(ctx context.Context, offset int64, pollSeconds int) ([]update, error) {
	body, _ := json.Marshal(map[string]any{
		"offset":  offset,
		"timeout": pollSeconds,
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.api("getUpdates"), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := t.hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	if res.StatusCode >= 400 {
		return nil, fmt.Errorf("getUpdates status %d", res.StatusCode)
	}

	var parsed updatesResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, err
	}
	if !parsed.OK {
		return nil, fmt.Errorf("getUpdates not ok")
	}
	return parsed.Result, nil
}
