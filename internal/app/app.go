// Package app はアプリケーションの起動とワイヤリングを担当する。
package app

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/hitoshi/railwatch/internal/config"
	"github.com/hitoshi/railwatch/internal/database"
	"github.com/hitoshi/railwatch/internal/handler"
	"github.com/hitoshi/railwatch/internal/logger"
	"github.com/hitoshi/railwatch/internal/metrics"
	"github.com/hitoshi/railwatch/internal/middleware"
	"github.com/hitoshi/railwatch/internal/notify"
	"github.com/hitoshi/railwatch/internal/poller"
	"github.com/hitoshi/railwatch/internal/repository"
	"github.com/hitoshi/railwatch/internal/timetable"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.Duration("poll_interval", cfg.PollInterval),
	)

	switch cmd {
	case CommandServe:
		return runServe(cfg)
	case CommandWorker:
		return runWorker(cfg)
	case CommandPoll:
		return runPoll(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// pollStack はポーリングに必要な依存関係一式。
// serve / worker / poll の各モードで共有するワイヤリングの成果物。
type pollStack struct {
	db        *sql.DB
	registry  *prometheus.Registry
	timetable *timetable.Client
	scheduler *poller.Scheduler
	subRepo   *repository.PostgresSubscriptionRepo
	userRepo  *repository.PostgresUserRepo
}

// buildPollStack はDB接続を開き、ポーリングに必要な全依存関係をワイヤリングする。
// 呼び出し側はdbのCloseに責任を持つ。
func buildPollStack(cfg *config.Config) (*pollStack, error) {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	// 2. リポジトリの初期化
	subRepo := repository.NewPostgresSubscriptionRepo(db)
	userRepo := repository.NewPostgresUserRepo(db)
	notifRepo := repository.NewPostgresNotificationRepo(db)

	// 3. メトリクスの初期化
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 4. 時刻表クライアントの初期化
	cache := timetable.NewCache(cfg.CacheTTL, cfg.CacheCapacity, collector)
	limiter := rate.NewLimiter(rate.Limit(cfg.UpstreamRate), cfg.UpstreamBurst)
	ttClient := timetable.NewClient(
		&http.Client{Timeout: cfg.UpstreamTimeout},
		cache,
		cfg.RailAPIBaseURL, cfg.RailAPIKey,
		limiter, collector, slog.Default(),
	)

	// 5. 通知サービスの初期化
	// Telegramクライアントは起動時に1つだけ生成し、全購読で共有する
	telegram := notify.NewTelegramClient(
		&http.Client{Timeout: 10 * time.Second},
		cfg.TelegramBotToken,
		slog.Default(),
	)
	notifySvc := notify.NewService(telegram, notifRepo, collector, slog.Default())

	// 6. 評価器とスケジューラの初期化
	evaluator := poller.NewEvaluator(ttClient, notifySvc, slog.Default())
	scheduler := poller.NewScheduler(subRepo, evaluator, collector, slog.Default())

	return &pollStack{
		db:        db,
		registry:  registry,
		timetable: ttClient,
		scheduler: scheduler,
		subRepo:   subRepo,
		userRepo:  userRepo,
	}, nil
}

// runServe は管理APIサーバーモードで起動する。
// ポーリングスタックをワイヤリングし、HTTPサーバーを起動する。
// ポーリングループ自体は起動しない（workerモードの責務）。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	stack, err := buildPollStack(cfg)
	if err != nil {
		return err
	}
	defer stack.db.Close()

	rateLimiter := middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig())
	defer rateLimiter.Stop()

	router := handler.NewRouter(&handler.RouterDeps{
		HealthChecker: stack.db,
		PollRunner:    stack.scheduler,
		Checker:       stack.scheduler,
		Timetable:     stack.timetable,
		Subscriptions: stack.subRepo,
		Users:         stack.userRepo,
		Gatherer:      stack.registry,
		RateLimiter:   rateLimiter,
		Logger:        slog.Default(),
	})

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("admin API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down admin API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("admin API server stopped gracefully")
	return nil
}

// runWorker はポーリングワーカーモードで起動する。
// 設定された間隔で全アクティブ購読の再評価ループを実行する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	stack, err := buildPollStack(cfg)
	if err != nil {
		return err
	}
	defer stack.db.Close()

	// グレースフルシャットダウンのためのシグナルハンドリング
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-stop
		slog.Info("shutting down worker...")
		cancel()
	}()

	slog.Info("worker starting",
		slog.Duration("poll_interval", cfg.PollInterval),
	)

	// ポーリングスケジューラをメインgoroutineで実行（ブロッキング）
	stack.scheduler.Start(ctx, cfg.PollInterval)

	slog.Info("worker stopped gracefully")
	return nil
}

// runPoll はポーリング1パスだけを実行して終了する。
// cronからのワンショット実行や動作確認用。
func runPoll(cfg *config.Config) error {
	stack, err := buildPollStack(cfg)
	if err != nil {
		return err
	}
	defer stack.db.Close()

	result, err := stack.scheduler.RunOnce(context.Background())
	if err != nil {
		return fmt.Errorf("poll pass failed: %w", err)
	}

	slog.Info("poll pass completed",
		slog.Int("subscriptions_checked", result.Checked),
		slog.Int("notifications_sent", result.NotificationsSent),
	)
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
