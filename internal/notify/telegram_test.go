package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

func newTestTelegramClient(t *testing.T, handler http.HandlerFunc) *TelegramClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	var buf bytes.Buffer
	client := NewTelegramClient(server.Client(), "test-token", newTestLogger(&buf))
	client.endpoint = server.URL
	return client
}

func TestSendMessage_Success(t *testing.T) {
	var gotPath string
	var gotBody sendMessageRequest

	client := newTestTelegramClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("リクエストボディのデコードに失敗: %v", err)
		}
		w.Write([]byte(`{"ok": true}`))
	})

	err := client.SendMessage(context.Background(), 12345, "hello")
	if err != nil {
		t.Fatalf("SendMessage returned error: %v", err)
	}

	if gotPath != "/bottest-token/sendMessage" {
		t.Errorf("path = %q, want %q", gotPath, "/bottest-token/sendMessage")
	}
	if gotBody.ChatID != 12345 || gotBody.Text != "hello" {
		t.Errorf("body = %+v", gotBody)
	}
}

func TestSendMessage_APIErrorStatus(t *testing.T) {
	client := newTestTelegramClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"ok": false, "description": "bot was blocked by the user"}`))
	})

	if err := client.SendMessage(context.Background(), 12345, "hello"); err == nil {
		t.Error("非200レスポンスはエラーを返すべき")
	}
}

func TestSendMessage_OKFalseIsError(t *testing.T) {
	// HTTP 200でもok=falseは失敗として扱う
	client := newTestTelegramClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ok": false, "description": "chat not found"}`))
	})

	if err := client.SendMessage(context.Background(), 12345, "hello"); err == nil {
		t.Error("ok=falseのレスポンスはエラーを返すべき")
	}
}

func TestSendMessage_MalformedResponse(t *testing.T) {
	client := newTestTelegramClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	})

	if err := client.SendMessage(context.Background(), 12345, "hello"); err == nil {
		t.Error("不正なレスポンスJSONはエラーを返すべき")
	}
}
