// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/railwatch/internal/model"
)

// SubscriptionWithUser は購読と所有ユーザーの通知設定を結合した読み取りビュー。
// ポーリング1パスの入力単位として使用する。
type SubscriptionWithUser struct {
	model.Subscription

	ChatID                      int64
	NotificationBeforeDeparture int
	NotificationDelayThreshold  int
	NotificationsPaused         bool
}

// SubscriptionRepository は購読データの永続化インターフェース。
type SubscriptionRepository interface {
	// ListActiveWithUsers はactive=trueの全購読を所有ユーザーの通知設定付きで返す。
	ListActiveWithUsers(ctx context.Context) ([]*SubscriptionWithUser, error)

	// FindWithUserByID は指定IDの購読をユーザー設定付きで取得する。見つからない場合はnilを返す。
	FindWithUserByID(ctx context.Context, id string) (*SubscriptionWithUser, error)

	// Create は購読を作成する。
	Create(ctx context.Context, sub *model.Subscription) error

	// UpdateStatus は指定購読のlast_statusとlast_checkedを更新する。
	UpdateStatus(ctx context.Context, id string, rawStatus string, checkedAt time.Time) error

	// Cancel は購読を論理削除する（active=false）。レコードは物理削除しない。
	Cancel(ctx context.Context, id string) error
}

// UserRepository はユーザーデータの永続化インターフェース。
// 通知設定の更新は外部の設定フローが行い、通知エンジンは読み取りのみ。
type UserRepository interface {
	// FindByChatID は指定チャネルIDのユーザーを取得する。見つからない場合はnilを返す。
	FindByChatID(ctx context.Context, chatID int64) (*model.User, error)

	// GetOrCreate はチャネルIDでユーザーを検索し、存在しなければ作成して返す。
	GetOrCreate(ctx context.Context, user *model.User) (*model.User, error)

	// UpdateNotificationPrefs は通知設定（リマインダー分数・遅延閾値・一時停止）を更新する。
	UpdateNotificationPrefs(ctx context.Context, id string, beforeDeparture, delayThreshold int, paused bool) error
}

// NotificationRepository は送信済み通知の監査ログの永続化インターフェース。
// 追記専用で、更新・削除の操作は提供しない。
type NotificationRepository interface {
	// Insert は通知監査レコードを追記する。
	Insert(ctx context.Context, n *model.Notification) error
}
