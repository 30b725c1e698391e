package poller

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hitoshi/railwatch/internal/model"
	"github.com/hitoshi/railwatch/internal/repository"
)

// ErrSubscriptionNotFound は手動チェック対象の購読が存在しないことを表す。
var ErrSubscriptionNotFound = errors.New("subscription not found")

// SubscriptionEvaluator は購読1件の評価インターフェース。
type SubscriptionEvaluator interface {
	Evaluate(ctx context.Context, sub *repository.SubscriptionWithUser) (model.TripStatus, int)
	CheckNow(ctx context.Context, sub *repository.SubscriptionWithUser) (model.TripStatus, int)
}

// PollMetrics はポーリングパスのメトリクスを記録するインターフェース。
type PollMetrics interface {
	RecordPollCycle(duration time.Duration)
	RecordSubscriptionsChecked(count int)
}

// PassResult はポーリング1パスの集計結果を表す。
type PassResult struct {
	Checked           int `json:"subscriptions_checked"`
	NotificationsSent int `json:"notifications_sent"`
}

// Scheduler は全アクティブ購読に対するポーリングパスを駆動する。
// 購読ごとに評価→永続化を順次行い、1件の失敗が残りの購読の評価を
// 妨げないよう分離する。
type Scheduler struct {
	subRepo   repository.SubscriptionRepository
	evaluator SubscriptionEvaluator
	logger    *slog.Logger
	metrics   PollMetrics

	now func() time.Time
}

// NewScheduler はSchedulerを生成する。metricsはnilでもよい。
func NewScheduler(subRepo repository.SubscriptionRepository, evaluator SubscriptionEvaluator, metrics PollMetrics, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		subRepo:   subRepo,
		evaluator: evaluator,
		logger:    logger,
		metrics:   metrics,
		now:       time.Now,
	}
}

// Start は固定間隔のティッカーでポーリングループを起動する。
// 起動直後に1回実行し、以降はコンテキストがキャンセルされるまで継続する。
// タイマー駆動と外部トリガーの1パスは同一の入力状態に対して同一の結果を生む。
func (s *Scheduler) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("ポーリングスケジューラを開始しました",
		slog.Duration("interval", interval),
	)

	if _, err := s.RunOnce(ctx); err != nil {
		s.logger.Error("ポーリングパスの実行に失敗しました",
			slog.String("error", err.Error()),
		)
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("ポーリングスケジューラを停止しました")
			return
		case <-ticker.C:
			if _, err := s.RunOnce(ctx); err != nil {
				s.logger.Error("ポーリングパスの実行に失敗しました",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// RunOnce はポーリング1パスを実行する。
// 全アクティブ購読をユーザー設定付きで読み込み、順次評価して結果を購読ごとに
// 永続化する。1件の評価・永続化の失敗はログに記録して残りを継続する。
func (s *Scheduler) RunOnce(ctx context.Context) (PassResult, error) {
	start := time.Now()

	subs, err := s.subRepo.ListActiveWithUsers(ctx)
	if err != nil {
		return PassResult{}, err
	}

	s.logger.Info("ポーリングパスを開始します",
		slog.Int("subscription_count", len(subs)),
	)

	result := PassResult{Checked: len(subs)}

	for _, sub := range subs {
		status, sent := s.evaluator.Evaluate(ctx, sub)
		result.NotificationsSent += sent

		// 各購読の結果は次の購読に移る前に永続化する。
		// 書き込み失敗は当該購読のみを中断し、前回ステータスが保持される
		if perr := s.subRepo.UpdateStatus(ctx, sub.ID, status.Encode(), s.now()); perr != nil {
			s.logger.Error("購読ステータスの永続化に失敗しました",
				slog.String("subscription_id", sub.ID),
				slog.String("error", perr.Error()),
			)
		}
	}

	duration := time.Since(start)
	if s.metrics != nil {
		s.metrics.RecordPollCycle(duration)
		s.metrics.RecordSubscriptionsChecked(result.Checked)
	}

	s.logger.Info("ポーリングパスが完了しました",
		slog.Int("subscription_count", result.Checked),
		slog.Int("notifications_sent", result.NotificationsSent),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return result, nil
}

// CheckSubscription は購読1件を適格性ゲートを無視して即時チェックする。
// 手動再チェックのトリガー面として使用する。結果は通常パスと同様に永続化される。
func (s *Scheduler) CheckSubscription(ctx context.Context, id string) (model.TripStatus, int, error) {
	sub, err := s.subRepo.FindWithUserByID(ctx, id)
	if err != nil {
		return model.UnknownTripStatus(), 0, err
	}
	if sub == nil {
		return model.UnknownTripStatus(), 0, ErrSubscriptionNotFound
	}

	status, sent := s.evaluator.CheckNow(ctx, sub)

	if perr := s.subRepo.UpdateStatus(ctx, sub.ID, status.Encode(), s.now()); perr != nil {
		s.logger.Error("購読ステータスの永続化に失敗しました",
			slog.String("subscription_id", sub.ID),
			slog.String("error", perr.Error()),
		)
		return status, sent, perr
	}

	return status, sent, nil
}
