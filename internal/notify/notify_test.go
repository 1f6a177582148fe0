package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"futuresbot/internal/store"
)

func TestTelegramSendsMessage(t *testing.T) {
	var gotPath string
	var gotBody map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	NewTelegram(srv.URL, "123:abc", "42").Notify(context.Background(), "Loss streak pause")

	if gotPath != "/bot123:abc/sendMessage" {
		t.Errorf("Expected sendMessage path, got %s", gotPath)
	}
	if gotBody["chat_id"] != "42" || gotBody["text"] != "Loss streak pause" {
		t.Errorf("Unexpected body %v", gotBody)
	}
}

func TestTelegramFailureDoesNotPanic(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"ok":false,"description":"chat not found"}`))
	}))
	defer srv.Close()

	NewTelegram(srv.URL, "t", "c").Notify(context.Background(), "x")
	NewTelegram("http://127.0.0.1:1", "t", "c").Notify(context.Background(), "x")
}

func TestFromConfig(t *testing.T) {
	cfg := store.Default()
	if _, ok := FromConfig(cfg).(logNotifier); !ok {
		t.Error("Expected log-only notifier when telegram is disabled")
	}

	cfg.Telegram.Enabled = true
	cfg.Telegram.BotToken, cfg.Telegram.ChatID = "t", "c"
	if _, ok := FromConfig(cfg).(*Telegram); !ok {
		t.Error("Expected telegram notifier when enabled")
	}
}
