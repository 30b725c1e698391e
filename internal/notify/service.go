package notify

import (
	"context"
	"log/slog"

	"github.com/hitoshi/railwatch/internal/model"
	"github.com/hitoshi/railwatch/internal/repository"
)

// MessageSender はメッセージ配信チャネルのインターフェース。
type MessageSender interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
}

// NotifyMetrics は通知送信のメトリクスを記録するインターフェース。
type NotifyMetrics interface {
	RecordNotificationSent(notificationType string)
}

// Service は通知の組み立て・配信・監査記録をまとめたディスパッチャ。
// 配信成功時のみ監査レコードを追記する。配信失敗はエラーとして返し、
// 同一サイクル内での再試行は行わない。
type Service struct {
	sender  MessageSender
	audits  repository.NotificationRepository
	logger  *slog.Logger
	metrics NotifyMetrics
}

// NewService はServiceを生成する。metricsはnilでもよい。
func NewService(sender MessageSender, audits repository.NotificationRepository, metrics NotifyMetrics, logger *slog.Logger) *Service {
	return &Service{
		sender:  sender,
		audits:  audits,
		logger:  logger,
		metrics: metrics,
	}
}

// NotifyStatusChange はステータス変化通知を配信する。
func (s *Service) NotifyStatusChange(ctx context.Context, sub *repository.SubscriptionWithUser, status model.TripStatus) error {
	message := FormatStatusChange(sub, status)
	return s.deliver(ctx, sub, model.NotificationStatusChange, message)
}

// NotifyDepartureReminder は出発前リマインダーを配信する。
func (s *Service) NotifyDepartureReminder(ctx context.Context, sub *repository.SubscriptionWithUser, status model.TripStatus) error {
	message := FormatDepartureReminder(sub, status)
	return s.deliver(ctx, sub, model.NotificationDepartureReminder, message)
}

func (s *Service) deliver(ctx context.Context, sub *repository.SubscriptionWithUser, notificationType model.NotificationType, message string) error {
	if err := s.sender.SendMessage(ctx, sub.ChatID, message); err != nil {
		return &model.DeliveryError{Err: err}
	}

	s.logger.Info("通知を送信しました",
		slog.String("subscription_id", sub.ID),
		slog.String("type", string(notificationType)),
		slog.Int64("chat_id", sub.ChatID),
	)

	if s.metrics != nil {
		s.metrics.RecordNotificationSent(string(notificationType))
	}

	// 監査ログの書き込み失敗は配信の成功を覆さない
	n := &model.Notification{
		SubscriptionID: sub.ID,
		Type:           notificationType,
		Message:        message,
	}
	if err := s.audits.Insert(ctx, n); err != nil {
		s.logger.Error("通知監査レコードの書き込みに失敗しました",
			slog.String("subscription_id", sub.ID),
			slog.String("error", err.Error()),
		)
	}

	return nil
}
