// Package poller は購読のステータス変化検知とポーリング実行を提供する。
// 購読1件を評価するEvaluatorと、全購読を1パスで駆動するSchedulerを含む。
package poller

import (
	"context"
	"log/slog"
	"time"

	"github.com/hitoshi/railwatch/internal/model"
	"github.com/hitoshi/railwatch/internal/repository"
	"github.com/hitoshi/railwatch/internal/timetable"
)

const (
	// checkWindow はステータスチェックを実行する出発前の時間幅。
	// この窓の外では上流APIを呼ばず、前回ステータスをそのまま返す。
	checkWindow = time.Hour
	// reminderWindowSlack はリマインダー窓の幅（分）。
	// [before, before+slack] の間に評価が1回走ればリマインダーが送られる。
	reminderWindowSlack = 5
)

// DelayLookup は特定列車の遅延照会インターフェース。
type DelayLookup interface {
	GetDelay(ctx context.Context, origin, destination int, departure string) (*timetable.TrainTimes, error)
}

// Notifier は通知送信のインターフェース。送信成功時に監査レコードの記録まで行う。
type Notifier interface {
	NotifyStatusChange(ctx context.Context, sub *repository.SubscriptionWithUser, status model.TripStatus) error
	NotifyDepartureReminder(ctx context.Context, sub *repository.SubscriptionWithUser, status model.TripStatus) error
}

// Evaluator は購読1件のステータス評価を行う状態機械の中核。
// 評価は(新しいステータスレコード, 送信済み通知数)を返す純粋な計算で、
// 永続化は呼び出し元（Scheduler）が行う。
type Evaluator struct {
	delays   DelayLookup
	notifier Notifier
	logger   *slog.Logger

	now func() time.Time // テストで時刻を固定するために差し替え可能
}

// NewEvaluator はEvaluatorを生成する。
func NewEvaluator(delays DelayLookup, notifier Notifier, logger *slog.Logger) *Evaluator {
	return &Evaluator{
		delays:   delays,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
	}
}

// Evaluate は購読1件を通常のポーリング規則で評価する。
//
// 評価規則:
//   - 今日が購読の曜日か、その前日の場合のみ評価する（それ以外はno-op）
//   - 今日が当日で列車が既に出発済みの場合はスキップ
//   - 出発まで1時間を超える場合は上流を呼ばず前回ステータスを返す
//   - 窓内では遅延照会を行い、ステータス変化・リマインダーの通知判定をする
//
// 一時的な照会失敗では前回ステータスを保持する（不明なデータで上書きしない）。
func (e *Evaluator) Evaluate(ctx context.Context, sub *repository.SubscriptionWithUser) (model.TripStatus, int) {
	return e.evaluate(ctx, sub, false)
}

// CheckNow は購読1件を手動で即時評価する。曜日と1時間前の適格性ゲートを
// 無視して次回の運行日を対象にチェックする。手動再チェック用。
func (e *Evaluator) CheckNow(ctx context.Context, sub *repository.SubscriptionWithUser) (model.TripStatus, int) {
	return e.evaluate(ctx, sub, true)
}

func (e *Evaluator) evaluate(ctx context.Context, sub *repository.SubscriptionWithUser, force bool) (model.TripStatus, int) {
	last := sub.LastStatus()
	now := e.now()

	hour, minute, err := timetable.ParseTimeOfDay(sub.DepartureTime)
	if err != nil {
		e.logger.Error("購読の出発時刻が不正です",
			slog.String("subscription_id", sub.ID),
			slog.String("departure_time", sub.DepartureTime),
		)
		return last, 0
	}

	currentWeekday := int(now.Weekday()) // 0=日曜日
	isSubscriptionDay := currentWeekday == sub.DayOfWeek
	isDayBefore := (currentWeekday+1)%7 == sub.DayOfWeek

	// 週7日のうち5日はここで終わる通常のno-op
	var trainDate time.Time
	switch {
	case isSubscriptionDay:
		trainDate = now
	case isDayBefore:
		trainDate = now.AddDate(0, 0, 1)
	case force:
		trainDate = timetable.NextWeekday(now, sub.DayOfWeek)
	default:
		return last, 0
	}

	trainDateTime := timetable.CombineDateTime(trainDate, hour, minute)

	// 当日で既に出発済みの列車はチェック不要
	if !force && isSubscriptionDay && trainDateTime.Before(now) {
		return last, 0
	}

	untilDeparture := trainDateTime.Sub(now)

	// 出発1時間前までは高コストなステータスチェックを行わない
	if !force && untilDeparture > checkWindow {
		return last, 0
	}

	departure := timetable.FormatAPITime(trainDateTime)

	e.logger.Info("購読のステータスをチェックします",
		slog.String("subscription_id", sub.ID),
		slog.String("departure", departure),
	)

	times, err := e.delays.GetDelay(ctx, sub.OriginStation, sub.DestinationStation, departure)
	if err != nil {
		if model.IsTrainNotFound(err) {
			// 区別された正常系の結果。通知は送らない
			e.logger.Warn("列車が時刻表に見つかりません",
				slog.String("subscription_id", sub.ID),
				slog.String("departure", departure),
			)
			cur := model.TripStatus{Status: model.StatusNotFound, DelayMinutes: 0}
			cur.DepartureReminderSent = last.DepartureReminderSent
			cur.LastNotificationSentAt = last.LastNotificationSentAt
			return cur, 0
		}

		// 一時的エラー: 前回ステータスを不明なデータで上書きしない
		e.logger.Error("遅延照会に失敗したため前回ステータスを保持します",
			slog.String("subscription_id", sub.ID),
			slog.String("error", err.Error()),
		)
		return last, 0
	}

	cur := model.TripStatus{
		Status:         model.StatusOnTime,
		DelayMinutes:   times.DelayMinutes,
		SwitchStations: times.SwitchStations,
	}
	if times.DelayMinutes > 0 {
		cur.Status = model.StatusDelayed
	}
	if t, uerr := times.UpdatedDeparture(); uerr == nil {
		cur.UpdatedDeparture = timetable.FormatAPITime(t)
	}
	if t, uerr := times.UpdatedArrival(); uerr == nil {
		cur.UpdatedArrival = timetable.FormatAPITime(t)
	}

	// 前回レコードから触れていないフィールドを引き継ぐ
	cur.DepartureReminderSent = last.DepartureReminderSent
	cur.LastNotificationSentAt = last.LastNotificationSentAt

	minutesUntil := untilDeparture.Minutes()
	before := float64(sub.NotificationBeforeDeparture)

	// 週次の新しいインスタンス: フラグが立ったままリマインダー窓より手前に
	// 到達した場合、前週の送信済みフラグをリセットする
	if cur.DepartureReminderSent && minutesUntil > before+reminderWindowSlack {
		cur.DepartureReminderSent = false
	}

	sent := 0

	// ステータス変化通知: ラベルの変化、または遅延変化量（絶対値）が閾値以上
	delayDelta := cur.DelayMinutes - last.DelayMinutes
	if delayDelta < 0 {
		delayDelta = -delayDelta
	}
	statusChanged := cur.Status != last.Status || delayDelta >= sub.NotificationDelayThreshold

	e.logger.Info("ステータスを比較しました",
		slog.String("subscription_id", sub.ID),
		slog.String("prev_status", string(last.Status)),
		slog.String("curr_status", string(cur.Status)),
		slog.Int("delay_minutes", cur.DelayMinutes),
	)

	if statusChanged {
		if sub.NotificationsPaused {
			e.logger.Info("通知が一時停止中のためステータス変化通知を送信しません",
				slog.String("subscription_id", sub.ID),
			)
		} else if nerr := e.notifier.NotifyStatusChange(ctx, sub, cur); nerr != nil {
			// 配信失敗はこのサイクルでは再試行しない。次回ポーリングが再試行となる
			e.logger.Error("ステータス変化通知の送信に失敗しました",
				slog.String("subscription_id", sub.ID),
				slog.String("error", nerr.Error()),
			)
		} else {
			sent++
			t := now
			cur.LastNotificationSentAt = &t
		}
	}

	// 出発前リマインダー: 窓内で未送信の場合のみ1回発火する
	inReminderWindow := minutesUntil >= before && minutesUntil <= before+reminderWindowSlack
	if inReminderWindow && !cur.DepartureReminderSent {
		if sub.NotificationsPaused {
			// 停止中でも処理済みとして記録し、窓の経過後に再試行させない
			e.logger.Info("通知が一時停止中のためリマインダーを送信せず、送信済みとして記録します",
				slog.String("subscription_id", sub.ID),
			)
			cur.DepartureReminderSent = true
		} else if nerr := e.notifier.NotifyDepartureReminder(ctx, sub, cur); nerr != nil {
			// フラグは立てない: 窓内であれば次回ポーリングが再試行する
			e.logger.Error("出発前リマインダーの送信に失敗しました",
				slog.String("subscription_id", sub.ID),
				slog.String("error", nerr.Error()),
			)
		} else {
			sent++
			cur.DepartureReminderSent = true
			t := now
			cur.LastNotificationSentAt = &t
		}
	}

	return cur, sent
}
