package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Upstream rail API
	RailAPIBaseURL  string
	RailAPIKey      string
	UpstreamTimeout time.Duration
	UpstreamRate    float64 // 上流APIへのリクエストレート（req/sec）
	UpstreamBurst   int

	// Timetable cache
	CacheTTL      time.Duration
	CacheCapacity int

	// Poller
	PollInterval time.Duration

	// Telegram
	TelegramBotToken string

	// Server
	ServerPort string
}

// Load は環境変数からConfigを読み込む。
// カレントディレクトリに.envファイルがあれば先に読み込む（未存在は無視）。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	// .envは開発環境向けの補助。本番では環境変数を直接設定する
	_ = godotenv.Load()

	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.RailAPIKey = os.Getenv("RAIL_API_KEY")
	if cfg.RailAPIKey == "" {
		missing = append(missing, "RAIL_API_KEY")
	}

	cfg.TelegramBotToken = os.Getenv("TELEGRAM_BOT_TOKEN")
	if cfg.TelegramBotToken == "" {
		missing = append(missing, "TELEGRAM_BOT_TOKEN")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.RailAPIBaseURL = getEnvString("RAIL_API_BASE_URL", "https://israelrail.azurefd.net/rjpa-prod/api/v1")
	cfg.UpstreamTimeout = getEnvDuration("UPSTREAM_TIMEOUT", 10*time.Second)
	cfg.UpstreamRate = getEnvFloat("UPSTREAM_RATE", 5)
	cfg.UpstreamBurst = getEnvInt("UPSTREAM_BURST", 10)
	cfg.CacheTTL = getEnvDuration("CACHE_TTL", 10*time.Second)
	cfg.CacheCapacity = getEnvInt("CACHE_CAPACITY", 100)
	cfg.PollInterval = getEnvDuration("POLL_INTERVAL", time.Minute)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvFloat(key string, defaultVal float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return defaultVal
	}
	return f
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
