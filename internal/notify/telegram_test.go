package notify_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"applypilot/internal/notify"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendPostsToConfiguredChat(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/bottok123/sendMessage", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	tg := notify.NewTelegram("tok123", 777).WithBaseURL(srv.URL)
	require.NoError(t, tg.Send(context.Background(), "hello"))
	assert.Equal(t, float64(777), got["chat_id"])
	assert.Equal(t, "hello", got["text"])
}

func TestSendErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"ok":false,"description":"bad token"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	tg := notify.NewTelegram("bad", 777).WithBaseURL(srv.URL)
	err := tg.Send(context.Background(), "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestListenAnswersCommandsAndIgnoresStrangers(t *testing.T) {
	var mu sync.Mutex
	var sent atomic.Int32
	var sentText string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/getUpdates"):
			var req map[string]any
			_ = json.NewDecoder(r.Body).Decode(&req)
			if req["offset"].(float64) == 0 {
				w.Write([]byte(`{"ok":true,"result":[
					{"update_id":1,"message":{"text":"/status","chat":{"id":777}}},
					{"update_id":2,"message":{"text":"/status","chat":{"id":999}}}
				]}`))
				return
			}
			// after the first batch, block-ish then return empty
			w.Write([]byte(`{"ok":true,"result":[]}`))
		case strings.HasSuffix(r.URL.Path, "/sendMessage"):
			var req map[string]any
			_ = json.NewDecoder(r.Body).Decode(&req)
			mu.Lock()
			sentText = req["text"].(string)
			mu.Unlock()
			sent.Add(1)
			w.Write([]byte(`{"ok":true}`))
		}
	}))
	defer srv.Close()

	tg := notify.NewTelegram("tok", 777).WithBaseURL(srv.URL)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		tg.Listen(ctx, 1, func(cmd string) string {
			if cmd == "/status" {
				return "running"
			}
			return ""
		})
		close(done)
	}()

	assert.Eventually(t, func() bool { return sent.Load() == 1 }, 2*time.Second, 20*time.Millisecond)
	cancel()
	<-done

	// only the configured chat got an answer
	assert.Equal(t, int32(1), sent.Load())
	mu.Lock()
	assert.Equal(t, "running", sentText)
	mu.Unlock()
}

func TestCycleReportString(t *testing.T) {
	r := notify.CycleReport{
		Duration: 95 * time.Second,
		Found:    12,
		Screened: 8,
		Applied:  3,
		Failed:   1,
		Drafted:  3,
		SpentUSD: 0.0421,
		Errors:   []string{"alerts: imap timeout"},
	}
	s := r.String()
	assert.Contains(t, s, "1m35s")
	assert.Contains(t, s, "found 12 new")
	assert.Contains(t, s, "applied 3")
	assert.Contains(t, s, "failed 1")
	assert.Contains(t, s, "3 outreach draft(s)")
	assert.Contains(t, s, "$0.0421")
	assert.Contains(t, s, "imap timeout")
}
