package model

import "time"

// NotificationType は送信済み通知の種別を表す。
type NotificationType string

const (
	// NotificationStatusChange はステータス変化通知。
	NotificationStatusChange NotificationType = "status_change"
	// NotificationDepartureReminder は出発前リマインダー通知。
	NotificationDepartureReminder NotificationType = "departure_reminder"
)

// Notification は送信済み通知の監査レコードを表す。
// 追記専用で、一度書き込まれた後は変更されない。
type Notification struct {
	ID             string
	SubscriptionID string
	Type           NotificationType
	Message        string
	SentAt         time.Time
}
