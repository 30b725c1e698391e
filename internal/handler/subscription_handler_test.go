package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/hitoshi/railwatch/internal/model"
	"github.com/hitoshi/railwatch/internal/repository"
)

// --- モック定義 ---

type mockSubscriptionStore struct {
	createFunc   func(ctx context.Context, sub *model.Subscription) error
	findFunc     func(ctx context.Context, id string) (*repository.SubscriptionWithUser, error)
	cancelFunc   func(ctx context.Context, id string) error
	cancelCalled bool
}

func (m *mockSubscriptionStore) Create(ctx context.Context, sub *model.Subscription) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, sub)
	}
	return nil
}

func (m *mockSubscriptionStore) FindWithUserByID(ctx context.Context, id string) (*repository.SubscriptionWithUser, error) {
	if m.findFunc != nil {
		return m.findFunc(ctx, id)
	}
	return nil, nil
}

func (m *mockSubscriptionStore) Cancel(ctx context.Context, id string) error {
	m.cancelCalled = true
	if m.cancelFunc != nil {
		return m.cancelFunc(ctx, id)
	}
	return nil
}

type mockUserStore struct {
	getOrCreateFunc func(ctx context.Context, user *model.User) (*model.User, error)
	findByChatFunc  func(ctx context.Context, chatID int64) (*model.User, error)
	updatePrefsFunc func(ctx context.Context, id string, beforeDeparture, delayThreshold int, paused bool) error
}

func (m *mockUserStore) GetOrCreate(ctx context.Context, user *model.User) (*model.User, error) {
	if m.getOrCreateFunc != nil {
		return m.getOrCreateFunc(ctx, user)
	}
	user.ID = "user-1"
	return user, nil
}

func (m *mockUserStore) FindByChatID(ctx context.Context, chatID int64) (*model.User, error) {
	if m.findByChatFunc != nil {
		return m.findByChatFunc(ctx, chatID)
	}
	return nil, nil
}

func (m *mockUserStore) UpdateNotificationPrefs(ctx context.Context, id string, beforeDeparture, delayThreshold int, paused bool) error {
	if m.updatePrefsFunc != nil {
		return m.updatePrefsFunc(ctx, id, beforeDeparture, delayThreshold, paused)
	}
	return nil
}

// doJSONRequest はJSONボディ付きのリクエストをルーター経由で実行する。
func doJSONRequest(t *testing.T, deps *RouterDeps, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	router := NewRouter(deps)
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.RemoteAddr = "10.0.0.1:12345"
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

// --- 購読作成 ---

func validCreateBody() string {
	return `{
		"chat_id": 12345,
		"username": "dan",
		"first_name": "Dan",
		"origin_station": 3600,
		"destination_station": 680,
		"day_of_week": 0,
		"departure_time": "08:30"
	}`
}

func TestCreateSubscription_Success(t *testing.T) {
	deps := testDeps(t)

	var createdSub *model.Subscription
	var gotUser *model.User
	deps.Users = &mockUserStore{
		getOrCreateFunc: func(ctx context.Context, user *model.User) (*model.User, error) {
			gotUser = user
			user.ID = "user-7"
			return user, nil
		},
	}
	deps.Subscriptions = &mockSubscriptionStore{
		createFunc: func(ctx context.Context, sub *model.Subscription) error {
			createdSub = sub
			return nil
		},
	}

	rec := doJSONRequest(t, deps, http.MethodPost, "/api/subscriptions", validCreateBody())
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
	}

	if gotUser == nil || gotUser.ChatID != 12345 || gotUser.Username != "dan" {
		t.Errorf("user = %+v", gotUser)
	}

	if createdSub == nil {
		t.Fatal("Createが呼ばれていません")
	}
	if createdSub.UserID != "user-7" {
		t.Errorf("UserID = %q, want %q", createdSub.UserID, "user-7")
	}
	if createdSub.OriginStation != 3600 || createdSub.DestinationStation != 680 {
		t.Errorf("stations = (%d, %d)", createdSub.OriginStation, createdSub.DestinationStation)
	}
	if !createdSub.Active {
		t.Error("新規購読はActiveであるべき")
	}
	if _, err := uuid.Parse(createdSub.ID); err != nil {
		t.Errorf("ID %q がUUIDではありません: %v", createdSub.ID, err)
	}
	if createdSub.CreatedAt.IsZero() {
		t.Error("CreatedAtが設定されていません")
	}

	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("レスポンスのパースに失敗: %v", err)
	}
	if resp["id"] != createdSub.ID {
		t.Errorf("レスポンスのid = %q, want %q", resp["id"], createdSub.ID)
	}
}

func TestCreateSubscription_Validation(t *testing.T) {
	deps := testDeps(t)

	tests := []struct {
		name string
		body string
	}{
		{"不正なJSON", `{not json`},
		{"chat_id欠落", `{"origin_station": 3600, "destination_station": 680, "day_of_week": 0, "departure_time": "08:30"}`},
		{"未知の出発駅", `{"chat_id": 1, "origin_station": 99, "destination_station": 680, "day_of_week": 0, "departure_time": "08:30"}`},
		{"未知の到着駅", `{"chat_id": 1, "origin_station": 3600, "destination_station": 99, "day_of_week": 0, "departure_time": "08:30"}`},
		{"同一の駅", `{"chat_id": 1, "origin_station": 3600, "destination_station": 3600, "day_of_week": 0, "departure_time": "08:30"}`},
		{"曜日が範囲外", `{"chat_id": 1, "origin_station": 3600, "destination_station": 680, "day_of_week": 7, "departure_time": "08:30"}`},
		{"出発時刻の形式不正", `{"chat_id": 1, "origin_station": 3600, "destination_station": 680, "day_of_week": 0, "departure_time": "8時30分"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSONRequest(t, deps, http.MethodPost, "/api/subscriptions", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400: %s", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestCreateSubscription_UserResolveFailure(t *testing.T) {
	deps := testDeps(t)
	deps.Users = &mockUserStore{
		getOrCreateFunc: func(ctx context.Context, user *model.User) (*model.User, error) {
			return nil, errors.New("db down")
		},
	}

	rec := doJSONRequest(t, deps, http.MethodPost, "/api/subscriptions", validCreateBody())
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func TestCreateSubscription_StoreFailure(t *testing.T) {
	deps := testDeps(t)
	deps.Subscriptions = &mockSubscriptionStore{
		createFunc: func(ctx context.Context, sub *model.Subscription) error {
			return errors.New("insert failed")
		},
	}

	rec := doJSONRequest(t, deps, http.MethodPost, "/api/subscriptions", validCreateBody())
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

// --- 購読キャンセル ---

func TestCancelSubscription_Success(t *testing.T) {
	deps := testDeps(t)
	store := &mockSubscriptionStore{
		findFunc: func(ctx context.Context, id string) (*repository.SubscriptionWithUser, error) {
			if id != "sub-1" {
				t.Errorf("id = %q, want %q", id, "sub-1")
			}
			return &repository.SubscriptionWithUser{
				Subscription: model.Subscription{ID: "sub-1", Active: true},
			}, nil
		},
	}
	deps.Subscriptions = store

	rec := doRequest(t, deps, http.MethodDelete, "/api/subscriptions/sub-1")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204: %s", rec.Code, rec.Body.String())
	}
	if !store.cancelCalled {
		t.Error("Cancelが呼ばれていません")
	}
}

func TestCancelSubscription_NotFound(t *testing.T) {
	deps := testDeps(t)
	store := &mockSubscriptionStore{}
	deps.Subscriptions = store

	rec := doRequest(t, deps, http.MethodDelete, "/api/subscriptions/missing")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
	if store.cancelCalled {
		t.Error("存在しない購読に対してCancelが呼ばれました")
	}
}

func TestCancelSubscription_StoreFailure(t *testing.T) {
	deps := testDeps(t)
	deps.Subscriptions = &mockSubscriptionStore{
		findFunc: func(ctx context.Context, id string) (*repository.SubscriptionWithUser, error) {
			return &repository.SubscriptionWithUser{
				Subscription: model.Subscription{ID: id},
			}, nil
		},
		cancelFunc: func(ctx context.Context, id string) error {
			return errors.New("update failed")
		},
	}

	rec := doRequest(t, deps, http.MethodDelete, "/api/subscriptions/sub-1")
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

// --- 通知設定更新 ---

func TestUpdatePrefs_Success(t *testing.T) {
	deps := testDeps(t)

	var gotID string
	var gotBefore, gotThreshold int
	var gotPaused bool
	deps.Users = &mockUserStore{
		findByChatFunc: func(ctx context.Context, chatID int64) (*model.User, error) {
			if chatID != 12345 {
				t.Errorf("chatID = %d, want 12345", chatID)
			}
			return &model.User{ID: "user-3", ChatID: chatID}, nil
		},
		updatePrefsFunc: func(ctx context.Context, id string, beforeDeparture, delayThreshold int, paused bool) error {
			gotID = id
			gotBefore = beforeDeparture
			gotThreshold = delayThreshold
			gotPaused = paused
			return nil
		},
	}

	body := `{"notification_before_departure": 30, "notification_delay_threshold": 10, "notifications_paused": true}`
	rec := doJSONRequest(t, deps, http.MethodPut, "/api/users/12345/preferences", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	if gotID != "user-3" || gotBefore != 30 || gotThreshold != 10 || !gotPaused {
		t.Errorf("update args = (%q, %d, %d, %v)", gotID, gotBefore, gotThreshold, gotPaused)
	}
}

func TestUpdatePrefs_InvalidChatID(t *testing.T) {
	deps := testDeps(t)

	body := `{"notification_before_departure": 30, "notification_delay_threshold": 10}`
	rec := doJSONRequest(t, deps, http.MethodPut, "/api/users/abc/preferences", body)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestUpdatePrefs_InvalidValues(t *testing.T) {
	deps := testDeps(t)

	tests := []struct {
		name string
		body string
	}{
		{"不正なJSON", `{`},
		{"事前通知がゼロ", `{"notification_before_departure": 0, "notification_delay_threshold": 10}`},
		{"閾値が負数", `{"notification_before_departure": 30, "notification_delay_threshold": -1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSONRequest(t, deps, http.MethodPut, "/api/users/12345/preferences", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400: %s", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestUpdatePrefs_UserNotFound(t *testing.T) {
	deps := testDeps(t)

	body := `{"notification_before_departure": 30, "notification_delay_threshold": 10}`
	rec := doJSONRequest(t, deps, http.MethodPut, "/api/users/999/preferences", body)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestUpdatePrefs_StoreFailure(t *testing.T) {
	deps := testDeps(t)
	deps.Users = &mockUserStore{
		findByChatFunc: func(ctx context.Context, chatID int64) (*model.User, error) {
			return &model.User{ID: "user-3", ChatID: chatID}, nil
		},
		updatePrefsFunc: func(ctx context.Context, id string, beforeDeparture, delayThreshold int, paused bool) error {
			return errors.New("update failed")
		},
	}

	body := `{"notification_before_departure": 30, "notification_delay_threshold": 10}`
	rec := doJSONRequest(t, deps, http.MethodPut, "/api/users/12345/preferences", body)
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}
