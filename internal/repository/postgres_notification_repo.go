package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/railwatch/internal/model"
)

// PostgresNotificationRepo はPostgreSQLを使用した通知監査ログリポジトリ。
// 追記専用で、既存レコードの更新・削除は行わない。
type PostgresNotificationRepo struct {
	db *sql.DB
}

// NewPostgresNotificationRepo はPostgresNotificationRepoを生成する。
func NewPostgresNotificationRepo(db *sql.DB) *PostgresNotificationRepo {
	return &PostgresNotificationRepo{db: db}
}

// Insert は通知監査レコードを追記する。
// IDとSentAtが未設定の場合はここで補完する。
func (r *PostgresNotificationRepo) Insert(ctx context.Context, n *model.Notification) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.SentAt.IsZero() {
		n.SentAt = time.Now()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO notifications (id, subscription_id, notification_type, message, sent_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		n.ID, n.SubscriptionID, n.Type, n.Message, n.SentAt,
	)
	if err != nil {
		return &model.PersistenceError{Op: "insert_notification", Err: err}
	}
	return nil
}
