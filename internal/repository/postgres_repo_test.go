package repository

import (
	"testing"
)

// 各Postgres実装がインターフェースを満たすことを検証
func TestPostgresSubscriptionRepo_ImplementsInterface(t *testing.T) {
	var _ SubscriptionRepository = (*PostgresSubscriptionRepo)(nil)
}

func TestPostgresUserRepo_ImplementsInterface(t *testing.T) {
	var _ UserRepository = (*PostgresUserRepo)(nil)
}

func TestPostgresNotificationRepo_ImplementsInterface(t *testing.T) {
	var _ NotificationRepository = (*PostgresNotificationRepo)(nil)
}

func TestNewPostgresSubscriptionRepo_Initializes(t *testing.T) {
	repo := NewPostgresSubscriptionRepo(nil)
	if repo == nil {
		t.Fatal("expected non-nil repo")
	}
}

func TestNewPostgresUserRepo_Initializes(t *testing.T) {
	repo := NewPostgresUserRepo(nil)
	if repo == nil {
		t.Fatal("expected non-nil repo")
	}
}

func TestNewPostgresNotificationRepo_Initializes(t *testing.T) {
	repo := NewPostgresNotificationRepo(nil)
	if repo == nil {
		t.Fatal("expected non-nil repo")
	}
}
