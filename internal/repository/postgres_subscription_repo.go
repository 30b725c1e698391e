package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/hitoshi/railwatch/internal/model"
)

// PostgresSubscriptionRepo はPostgreSQLを使用した購読リポジトリ。
type PostgresSubscriptionRepo struct {
	db *sql.DB
}

// NewPostgresSubscriptionRepo はPostgresSubscriptionRepoを生成する。
func NewPostgresSubscriptionRepo(db *sql.DB) *PostgresSubscriptionRepo {
	return &PostgresSubscriptionRepo{db: db}
}

const subscriptionWithUserColumns = `
	s.id, s.user_id, s.origin_station, s.destination_station,
	s.day_of_week, s.departure_time, s.active, s.last_status, s.last_checked, s.created_at,
	u.chat_id, u.notification_before_departure, u.notification_delay_threshold, u.notifications_paused`

// ListActiveWithUsers はactive=trueの全購読を所有ユーザーの通知設定付きで返す。
func (r *PostgresSubscriptionRepo) ListActiveWithUsers(ctx context.Context) ([]*SubscriptionWithUser, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+subscriptionWithUserColumns+`
		 FROM subscriptions s
		 JOIN users u ON s.user_id = u.id
		 WHERE s.active
		 ORDER BY s.created_at ASC`,
	)
	if err != nil {
		return nil, &model.PersistenceError{Op: "list_active_subscriptions", Err: err}
	}
	defer rows.Close()

	var subs []*SubscriptionWithUser
	for rows.Next() {
		sub, err := scanSubscriptionWithUser(rows)
		if err != nil {
			return nil, &model.PersistenceError{Op: "scan_subscription", Err: err}
		}
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, &model.PersistenceError{Op: "list_active_subscriptions", Err: err}
	}
	return subs, nil
}

// FindWithUserByID は指定IDの購読をユーザー設定付きで取得する。見つからない場合はnilを返す。
func (r *PostgresSubscriptionRepo) FindWithUserByID(ctx context.Context, id string) (*SubscriptionWithUser, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+subscriptionWithUserColumns+`
		 FROM subscriptions s
		 JOIN users u ON s.user_id = u.id
		 WHERE s.id = $1`,
		id,
	)

	sub, err := scanSubscriptionWithUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, &model.PersistenceError{Op: "find_subscription", Err: err}
	}
	return sub, nil
}

// Create は購読を作成する。
func (r *PostgresSubscriptionRepo) Create(ctx context.Context, sub *model.Subscription) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO subscriptions
		 (id, user_id, origin_station, destination_station, day_of_week, departure_time, active, last_status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		sub.ID, sub.UserID, sub.OriginStation, sub.DestinationStation,
		sub.DayOfWeek, sub.DepartureTime, sub.Active, sub.LastStatusRaw, sub.CreatedAt,
	)
	if err != nil {
		return &model.PersistenceError{Op: "create_subscription", Err: err}
	}
	return nil
}

// UpdateStatus は指定購読のlast_statusとlast_checkedを更新する。
func (r *PostgresSubscriptionRepo) UpdateStatus(ctx context.Context, id string, rawStatus string, checkedAt time.Time) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE subscriptions SET last_status = $2, last_checked = $3 WHERE id = $1`,
		id, rawStatus, checkedAt,
	)
	if err != nil {
		return &model.PersistenceError{Op: "update_status", Err: err}
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return &model.PersistenceError{Op: "update_status", Err: err}
	}
	if rowsAffected == 0 {
		return &model.PersistenceError{Op: "update_status", Err: sql.ErrNoRows}
	}
	return nil
}

// Cancel は購読を論理削除する（active=false）。
func (r *PostgresSubscriptionRepo) Cancel(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE subscriptions SET active = FALSE WHERE id = $1`,
		id,
	)
	if err != nil {
		return &model.PersistenceError{Op: "cancel_subscription", Err: err}
	}
	return nil
}

// rowScanner はsql.Rowとsql.Rowsの共通Scanインターフェース。
type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubscriptionWithUser(row rowScanner) (*SubscriptionWithUser, error) {
	sub := &SubscriptionWithUser{}
	var lastChecked sql.NullTime

	err := row.Scan(
		&sub.ID, &sub.UserID, &sub.OriginStation, &sub.DestinationStation,
		&sub.DayOfWeek, &sub.DepartureTime, &sub.Active, &sub.LastStatusRaw, &lastChecked, &sub.CreatedAt,
		&sub.ChatID, &sub.NotificationBeforeDeparture, &sub.NotificationDelayThreshold, &sub.NotificationsPaused,
	)
	if err != nil {
		return nil, err
	}

	if lastChecked.Valid {
		t := lastChecked.Time
		sub.LastChecked = &t
	}
	return sub, nil
}
