package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/railwatch/internal/model"
)

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

// FindByChatID は指定チャネルIDのユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByChatID(ctx context.Context, chatID int64) (*model.User, error) {
	user := &model.User{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, chat_id, username, first_name, language_code,
		        notification_before_departure, notification_delay_threshold, notifications_paused, created_at
		 FROM users WHERE chat_id = $1`,
		chatID,
	).Scan(
		&user.ID, &user.ChatID, &user.Username, &user.FirstName, &user.LanguageCode,
		&user.NotificationBeforeDeparture, &user.NotificationDelayThreshold, &user.NotificationsPaused, &user.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, &model.PersistenceError{Op: "find_user", Err: err}
	}

	return user, nil
}

// GetOrCreate はチャネルIDでユーザーを検索し、存在しなければ作成して返す。
func (r *PostgresUserRepo) GetOrCreate(ctx context.Context, user *model.User) (*model.User, error) {
	existing, err := r.FindByChatID(ctx, user.ChatID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	created := *user
	if created.ID == "" {
		created.ID = uuid.NewString()
	}
	if created.NotificationBeforeDeparture == 0 {
		created.NotificationBeforeDeparture = model.DefaultNotificationBeforeDeparture
	}
	if created.NotificationDelayThreshold == 0 {
		created.NotificationDelayThreshold = model.DefaultNotificationDelayThreshold
	}
	created.CreatedAt = time.Now()

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO users
		 (id, chat_id, username, first_name, language_code,
		  notification_before_departure, notification_delay_threshold, notifications_paused, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		created.ID, created.ChatID, created.Username, created.FirstName, created.LanguageCode,
		created.NotificationBeforeDeparture, created.NotificationDelayThreshold, created.NotificationsPaused, created.CreatedAt,
	)
	if err != nil {
		return nil, &model.PersistenceError{Op: "create_user", Err: err}
	}

	return &created, nil
}

// UpdateNotificationPrefs は通知設定を更新する。
func (r *PostgresUserRepo) UpdateNotificationPrefs(ctx context.Context, id string, beforeDeparture, delayThreshold int, paused bool) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users
		 SET notification_before_departure = $2,
		     notification_delay_threshold = $3,
		     notifications_paused = $4
		 WHERE id = $1`,
		id, beforeDeparture, delayThreshold, paused,
	)
	if err != nil {
		return &model.PersistenceError{Op: "update_notification_prefs", Err: err}
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return &model.PersistenceError{Op: "update_notification_prefs", Err: err}
	}
	if rowsAffected == 0 {
		return &model.PersistenceError{Op: "update_notification_prefs", Err: sql.ErrNoRows}
	}
	return nil
}
