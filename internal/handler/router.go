package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/railwatch/internal/metrics"
	"github.com/hitoshi/railwatch/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	HealthChecker HealthChecker
	PollRunner    PollRunner
	Checker       SubscriptionChecker
	Timetable     TimetableLister
	Subscriptions SubscriptionStore
	Users         UserStore
	Gatherer      prometheus.Gatherer
	RateLimiter   *middleware.RateLimiter
	Logger        *slog.Logger
}

// NewRouter は管理APIの全ルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Logging → RateLimit
//
// /health と /metrics は監視システムからのスクレイプ対象のためレート制限の外に置く。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))

	h := NewAdminHandler(deps.HealthChecker, deps.PollRunner, deps.Checker, deps.Timetable, deps.Logger)
	sh := NewSubscriptionHandler(deps.Subscriptions, deps.Users, deps.Logger)

	r.Get("/health", h.Health)
	r.Method(http.MethodGet, "/metrics", metrics.Handler(deps.Gatherer))

	r.Group(func(r chi.Router) {
		r.Use(deps.RateLimiter.Middleware())

		r.Route("/api", func(r chi.Router) {
			r.Post("/poll/run", h.RunPoll)
			r.Post("/subscriptions", sh.Create)
			r.Post("/subscriptions/{id}/check", h.CheckSubscription)
			r.Delete("/subscriptions/{id}", sh.Cancel)
			r.Put("/users/{chatID}/preferences", sh.UpdatePrefs)
			r.Get("/stations", h.Stations)
			r.Get("/timetable", h.Timetable)
			r.Get("/cache/stats", h.CacheStats)
		})
	})

	return r
}
