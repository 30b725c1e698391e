// Package model はドメインモデルを定義する。
package model

import "time"

// Subscription はユーザーが追跡を希望する毎週定期の列車旅程を表す。
// 1レコードが固定の曜日・出発時刻のスロット1つに対応する。
type Subscription struct {
	ID                 string
	UserID             string
	OriginStation      int
	DestinationStation int
	DayOfWeek          int    // 0=日曜日の週番号規約（0..6）
	DepartureTime      string // 出発時刻（"HH:MM"形式）
	Active             bool   // falseは論理削除（物理削除は行わない）
	LastStatusRaw      string // 直近ステータスの永続化JSON。空は未チェックを意味する
	LastChecked        *time.Time
	CreatedAt          time.Time
}

// LastStatus は永続化された直近ステータスをデコードして返す。
// 空文字列・不正JSONはunknownステータスとして扱う。
func (s *Subscription) LastStatus() TripStatus {
	return DecodeTripStatus(s.LastStatusRaw)
}
