package model

import (
	"errors"
	"fmt"
)

// UpstreamError は上流時刻表APIの呼び出し失敗を表す。
// ネットワーク障害とレスポンスのパース失敗の両方を含む一時的エラーで、
// 評価側は前回ステータスを保持して次回ポーリングで再試行する。
type UpstreamError struct {
	Op  string // 失敗した操作（例: "timetable", "decode"）
	Err error
}

// Error はerrorインターフェースを実装する。
func (e *UpstreamError) Error() string {
	return fmt.Sprintf("上流APIエラー (%s): %v", e.Op, e.Err)
}

// Unwrap はラップされたエラーを返す。
func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// NewUpstreamError はUpstreamErrorを生成する。
func NewUpstreamError(op string, err error) *UpstreamError {
	return &UpstreamError{Op: op, Err: err}
}

// TrainNotFoundError は時刻表レスポンスに指定出発時刻の列車が存在しないことを表す。
// 一般の失敗ではなく区別された正常系の結果で、ステータスはnot_foundに遷移する。
type TrainNotFoundError struct {
	Departure string // 検索した出発時刻（ISO形式）
}

// Error はerrorインターフェースを実装する。
func (e *TrainNotFoundError) Error() string {
	return fmt.Sprintf("指定時刻の列車が時刻表に見つかりません: %s", e.Departure)
}

// IsTrainNotFound はエラーがTrainNotFoundErrorかどうかを判定する。
func IsTrainNotFound(err error) bool {
	var notFound *TrainNotFoundError
	return errors.As(err, &notFound)
}

// DeliveryError は通知メッセージの配信失敗を表す。
// 同一ポーリングサイクル内では再試行せず、次回のポーリングが再試行となる。
type DeliveryError struct {
	Err error
}

// Error はerrorインターフェースを実装する。
func (e *DeliveryError) Error() string {
	return fmt.Sprintf("通知の配信に失敗しました: %v", e.Err)
}

// Unwrap はラップされたエラーを返す。
func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// PersistenceError は永続化操作の失敗を表す。
// 当該購読の書き込みのみを中断し、ポーリングパス全体は継続する。
type PersistenceError struct {
	Op  string
	Err error
}

// Error はerrorインターフェースを実装する。
func (e *PersistenceError) Error() string {
	return fmt.Sprintf("永続化エラー (%s): %v", e.Op, e.Err)
}

// Unwrap はラップされたエラーを返す。
func (e *PersistenceError) Unwrap() error {
	return e.Err
}
