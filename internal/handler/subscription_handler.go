package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hitoshi/railwatch/internal/model"
	"github.com/hitoshi/railwatch/internal/repository"
	"github.com/hitoshi/railwatch/internal/station"
	"github.com/hitoshi/railwatch/internal/timetable"
)

// SubscriptionStore は購読管理操作のインターフェース。
type SubscriptionStore interface {
	Create(ctx context.Context, sub *model.Subscription) error
	FindWithUserByID(ctx context.Context, id string) (*repository.SubscriptionWithUser, error)
	Cancel(ctx context.Context, id string) error
}

// UserStore はユーザー管理操作のインターフェース。
type UserStore interface {
	GetOrCreate(ctx context.Context, user *model.User) (*model.User, error)
	FindByChatID(ctx context.Context, chatID int64) (*model.User, error)
	UpdateNotificationPrefs(ctx context.Context, id string, beforeDeparture, delayThreshold int, paused bool) error
}

// SubscriptionHandler は購読と通知設定の管理APIハンドラー。
type SubscriptionHandler struct {
	subs   SubscriptionStore
	users  UserStore
	logger *slog.Logger
}

// NewSubscriptionHandler はSubscriptionHandlerを生成する。
func NewSubscriptionHandler(subs SubscriptionStore, users UserStore, logger *slog.Logger) *SubscriptionHandler {
	return &SubscriptionHandler{
		subs:   subs,
		users:  users,
		logger: logger,
	}
}

// createSubscriptionRequest は購読作成のリクエストボディ。
type createSubscriptionRequest struct {
	ChatID             int64  `json:"chat_id"`
	Username           string `json:"username"`
	FirstName          string `json:"first_name"`
	OriginStation      int    `json:"origin_station"`
	DestinationStation int    `json:"destination_station"`
	DayOfWeek          int    `json:"day_of_week"` // 0=日曜日
	DepartureTime      string `json:"departure_time"`
}

// validate はリクエストの内容を検証し、不正な場合はエラーメッセージを返す。
func (req *createSubscriptionRequest) validate() string {
	switch {
	case req.ChatID == 0:
		return "chat_id is required"
	case station.Name(req.OriginStation) == station.UnknownName:
		return "origin_station is not a known station id"
	case station.Name(req.DestinationStation) == station.UnknownName:
		return "destination_station is not a known station id"
	case req.OriginStation == req.DestinationStation:
		return "origin_station and destination_station must differ"
	case req.DayOfWeek < 0 || req.DayOfWeek > 6:
		return "day_of_week must be between 0 (Sunday) and 6"
	}
	if _, _, err := timetable.ParseTimeOfDay(req.DepartureTime); err != nil {
		return "departure_time must be in HH:MM format"
	}
	return ""
}

// Create は新しい週次購読を作成する。
// ユーザーはchat_idで検索され、未登録の場合はデフォルト設定で作成される。
func (h *SubscriptionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createSubscriptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if msg := req.validate(); msg != "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
		return
	}

	user, err := h.users.GetOrCreate(r.Context(), &model.User{
		ChatID:    req.ChatID,
		Username:  req.Username,
		FirstName: req.FirstName,
	})
	if err != nil {
		h.logger.Error("ユーザーの取得または作成に失敗しました",
			slog.Int64("chat_id", req.ChatID),
			slog.String("error", err.Error()),
		)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to resolve user"})
		return
	}

	sub := &model.Subscription{
		ID:                 uuid.NewString(),
		UserID:             user.ID,
		OriginStation:      req.OriginStation,
		DestinationStation: req.DestinationStation,
		DayOfWeek:          req.DayOfWeek,
		DepartureTime:      req.DepartureTime,
		Active:             true,
		CreatedAt:          time.Now(),
	}
	if err := h.subs.Create(r.Context(), sub); err != nil {
		h.logger.Error("購読の作成に失敗しました",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to create subscription"})
		return
	}

	h.logger.Info("購読を作成しました",
		slog.String("subscription_id", sub.ID),
		slog.String("user_id", user.ID),
		slog.Int("origin", sub.OriginStation),
		slog.Int("destination", sub.DestinationStation),
	)

	writeJSON(w, http.StatusCreated, map[string]string{"id": sub.ID})
}

// Cancel は購読を論理削除する。レコードは監査のため物理削除しない。
func (h *SubscriptionHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	sub, err := h.subs.FindWithUserByID(r.Context(), id)
	if err != nil {
		h.logger.Error("購読の検索に失敗しました",
			slog.String("subscription_id", id),
			slog.String("error", err.Error()),
		)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to find subscription"})
		return
	}
	if sub == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "subscription not found"})
		return
	}

	if err := h.subs.Cancel(r.Context(), id); err != nil {
		h.logger.Error("購読のキャンセルに失敗しました",
			slog.String("subscription_id", id),
			slog.String("error", err.Error()),
		)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to cancel subscription"})
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// updatePrefsRequest は通知設定更新のリクエストボディ。
type updatePrefsRequest struct {
	NotificationBeforeDeparture int  `json:"notification_before_departure"`
	NotificationDelayThreshold  int  `json:"notification_delay_threshold"`
	NotificationsPaused         bool `json:"notifications_paused"`
}

// UpdatePrefs は指定チャネルIDのユーザーの通知設定を更新する。
func (h *SubscriptionHandler) UpdatePrefs(w http.ResponseWriter, r *http.Request) {
	chatID, err := strconv.ParseInt(chi.URLParam(r, "chatID"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "chat id must be an integer"})
		return
	}

	var req updatePrefsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.NotificationBeforeDeparture <= 0 || req.NotificationDelayThreshold <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "notification_before_departure and notification_delay_threshold must be positive"})
		return
	}

	user, err := h.users.FindByChatID(r.Context(), chatID)
	if err != nil {
		h.logger.Error("ユーザーの検索に失敗しました",
			slog.Int64("chat_id", chatID),
			slog.String("error", err.Error()),
		)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to find user"})
		return
	}
	if user == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "user not found"})
		return
	}

	if err := h.users.UpdateNotificationPrefs(r.Context(), user.ID,
		req.NotificationBeforeDeparture, req.NotificationDelayThreshold, req.NotificationsPaused); err != nil {
		h.logger.Error("通知設定の更新に失敗しました",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to update preferences"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}
