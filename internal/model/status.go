package model

import (
	"encoding/json"
	"time"
)

// StatusKind は列車の運行ステータスの種別を表す。
type StatusKind string

const (
	// StatusUnknown はまだチェックされていない、または不明なステータス。
	StatusUnknown StatusKind = "unknown"
	// StatusOnTime は定刻運行。
	StatusOnTime StatusKind = "on-time"
	// StatusDelayed は遅延発生中。
	StatusDelayed StatusKind = "delayed"
	// StatusNotFound は時刻表レスポンスに該当列車が存在しない状態。
	StatusNotFound StatusKind = "not_found"
)

// TripStatus は購読1件の直近チェック結果を表す永続化レコード。
// subscriptions.last_statusカラムにJSONとして保存される。
type TripStatus struct {
	Status                 StatusKind `json:"status"`
	DelayMinutes           int        `json:"delay_minutes"`
	UpdatedDeparture       string     `json:"updated_departure,omitempty"`
	UpdatedArrival         string     `json:"updated_arrival,omitempty"`
	SwitchStations         []string   `json:"switch_stations,omitempty"`
	DepartureReminderSent  bool       `json:"departure_reminder_sent,omitempty"`
	LastNotificationSentAt *time.Time `json:"last_notification_sent_at,omitempty"`
}

// UnknownTripStatus はデフォルトの未チェックステータスを返す。
func UnknownTripStatus() TripStatus {
	return TripStatus{Status: StatusUnknown, DelayMinutes: 0}
}

// DecodeTripStatus は永続化JSONをTripStatusにデコードする。
// 空文字列・パース失敗・status欠落はunknown/0にフォールバックする。
func DecodeTripStatus(raw string) TripStatus {
	if raw == "" {
		return UnknownTripStatus()
	}

	var st TripStatus
	if err := json.Unmarshal([]byte(raw), &st); err != nil {
		return UnknownTripStatus()
	}

	if st.Status == "" {
		st.Status = StatusUnknown
	}

	return st
}

// Encode はTripStatusを永続化用JSON文字列にエンコードする。
func (s TripStatus) Encode() string {
	b, err := json.Marshal(s)
	if err != nil {
		// 全フィールドがJSON化可能な型のためここには到達しない
		return `{"status":"unknown","delay_minutes":0}`
	}
	return string(b)
}
