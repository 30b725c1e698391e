// Package handler は運用者向け管理APIのHTTPハンドラーを提供する。
// ポーリングの手動トリガーと購読の即時再チェックのためのトリガー面で、
// エンドユーザー向けのプロダクト面ではない。
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/railwatch/internal/model"
	"github.com/hitoshi/railwatch/internal/poller"
	"github.com/hitoshi/railwatch/internal/station"
	"github.com/hitoshi/railwatch/internal/timetable"
)

// HealthChecker はヘルスチェック対象（DB接続）のインターフェース。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// PollRunner はポーリング1パスの実行インターフェース。
type PollRunner interface {
	RunOnce(ctx context.Context) (poller.PassResult, error)
}

// SubscriptionChecker は購読1件の即時チェックインターフェース。
type SubscriptionChecker interface {
	CheckSubscription(ctx context.Context, id string) (model.TripStatus, int, error)
}

// TimetableLister は日単位の時刻表取得インターフェース。
type TimetableLister interface {
	GetTrainTimes(ctx context.Context, origin, destination, dayOfWeek int) ([]timetable.Entry, error)
	CacheStats() timetable.Stats
}

// AdminHandler は管理APIのハンドラー。
type AdminHandler struct {
	db        HealthChecker
	pollers   PollRunner
	checker   SubscriptionChecker
	timetable TimetableLister
	logger    *slog.Logger
}

// NewAdminHandler はAdminHandlerを生成する。
func NewAdminHandler(db HealthChecker, pollers PollRunner, checker SubscriptionChecker, tt TimetableLister, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		db:        db,
		pollers:   pollers,
		checker:   checker,
		timetable: tt,
		logger:    logger,
	}
}

// Health はDB接続を確認してサービスの稼働状態を返す。
func (h *AdminHandler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.db.PingContext(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// RunPoll はポーリング1パスをオンデマンドで実行する。
func (h *AdminHandler) RunPoll(w http.ResponseWriter, r *http.Request) {
	result, err := h.pollers.RunOnce(r.Context())
	if err != nil {
		h.logger.Error("オンデマンドのポーリングパスに失敗しました",
			slog.String("error", err.Error()),
		)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "poll pass failed"})
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// checkResponse は手動チェックのレスポンスボディ。
type checkResponse struct {
	Status            model.TripStatus `json:"status"`
	NotificationsSent int              `json:"notifications_sent"`
}

// CheckSubscription は購読1件を適格性ゲートを無視して即時チェックする。
func (h *AdminHandler) CheckSubscription(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	status, sent, err := h.checker.CheckSubscription(r.Context(), id)
	if err != nil {
		if errors.Is(err, poller.ErrSubscriptionNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "subscription not found"})
			return
		}
		h.logger.Error("購読の手動チェックに失敗しました",
			slog.String("subscription_id", id),
			slog.String("error", err.Error()),
		)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "check failed"})
		return
	}

	writeJSON(w, http.StatusOK, checkResponse{Status: status, NotificationsSent: sent})
}

// Timetable は指定駅間・指定曜日の時刻表を返す。
func (h *AdminHandler) Timetable(w http.ResponseWriter, r *http.Request) {
	origin, err1 := strconv.Atoi(r.URL.Query().Get("origin"))
	destination, err2 := strconv.Atoi(r.URL.Query().Get("destination"))
	dayOfWeek, err3 := strconv.Atoi(r.URL.Query().Get("day"))
	if err1 != nil || err2 != nil || err3 != nil || dayOfWeek < 0 || dayOfWeek > 6 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "origin, destination and day (0-6) query parameters are required"})
		return
	}

	entries, err := h.timetable.GetTrainTimes(r.Context(), origin, destination, dayOfWeek)
	if err != nil {
		h.logger.Error("時刻表の取得に失敗しました",
			slog.Int("origin", origin),
			slog.Int("destination", destination),
			slog.String("error", err.Error()),
		)
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "timetable fetch failed"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

// CacheStats は時刻表キャッシュの利用統計を返す。
func (h *AdminHandler) CacheStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.timetable.CacheStats())
}

// Stations は購読作成時に指定可能な駅の一覧を返す。
func (h *AdminHandler) Stations(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"stations": station.All()})
}

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
