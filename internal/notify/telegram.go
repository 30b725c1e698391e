// Package notify は通知メッセージの組み立て・配信・監査記録を提供する。
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
)

// defaultTelegramEndpoint はTelegram Bot APIのベースURL。
const defaultTelegramEndpoint = "https://api.telegram.org"

// TelegramClient はTelegram Bot APIのsendMessageクライアント。
// プロセス起動時に1回生成し、全配信で共有する。
type TelegramClient struct {
	httpClient *http.Client
	token      string
	logger     *slog.Logger
	endpoint   string // テスト用にエンドポイントを差し替え可能
}

// NewTelegramClient はTelegramClientを生成する。
func NewTelegramClient(httpClient *http.Client, token string, logger *slog.Logger) *TelegramClient {
	return &TelegramClient{
		httpClient: httpClient,
		token:      token,
		logger:     logger,
		endpoint:   defaultTelegramEndpoint,
	}
}

// sendMessageRequest はsendMessage APIのリクエストボディ。
type sendMessageRequest struct {
	ChatID int64  `json:"chat_id"`
	Text   string `json:"text"`
}

// sendMessageResponse はTelegram APIの共通レスポンス形式。
type sendMessageResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// SendMessage は指定チャネルにテキストメッセージを1件送信する。
// 失敗は呼び出し元が再試行の要否を判断する（このクライアントは再試行しない）。
func (c *TelegramClient) SendMessage(ctx context.Context, chatID int64, text string) error {
	payload, err := json.Marshal(sendMessageRequest{ChatID: chatID, Text: text})
	if err != nil {
		return fmt.Errorf("リクエストボディの作成に失敗しました: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", c.endpoint, c.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("Telegram APIの呼び出しに失敗しました",
			slog.Int64("chat_id", chatID),
			slog.String("error", err.Error()),
		)
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err)
	}

	var result sendMessageResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return fmt.Errorf("レスポンスJSONのパースに失敗しました: %w", err)
	}

	if resp.StatusCode != http.StatusOK || !result.OK {
		c.logger.Error("Telegram APIがエラーを返しました",
			slog.Int64("chat_id", chatID),
			slog.Int("http_status", resp.StatusCode),
			slog.String("description", result.Description),
		)
		return fmt.Errorf("telegram APIがエラーを返しました (status %d): %s", resp.StatusCode, result.Description)
	}

	return nil
}
