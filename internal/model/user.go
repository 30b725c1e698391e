package model

import "time"

// DefaultNotificationBeforeDeparture は出発前リマインダーのデフォルト分数。
const DefaultNotificationBeforeDeparture = 15

// DefaultNotificationDelayThreshold は通知を発火する遅延変化量のデフォルト閾値（分）。
const DefaultNotificationDelayThreshold = 5

// User はサービス利用ユーザーを表す。
// 通知設定は外部の設定フローが更新し、通知エンジンからは読み取り専用。
type User struct {
	ID           string
	ChatID       int64 // メッセージ配信先のチャネル識別子
	Username     string
	FirstName    string
	LanguageCode string

	NotificationBeforeDeparture int // 出発何分前にリマインダーを送るか
	NotificationDelayThreshold  int // 通知を発火する遅延変化量の閾値（分）
	NotificationsPaused         bool

	CreatedAt time.Time
}
