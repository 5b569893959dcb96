package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
// アプリケーションごとのWebhookシークレットは登録数が動的なため
// ここには含めず、リクエスト時にWebhookSecretで解決する。
type Config struct {
	// Database
	DatabaseURL string

	// Transaction (user.updatedの原子的更新で使用)
	TxMaxWait time.Duration // ロック待ちの上限
	TxTimeout time.Duration // トランザクション全体の上限

	// Rate Limit (req/min)
	RateLimitGeneral int
	RateLimitWebhook int

	// Server
	ServerPort string

	// CORS
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.TxMaxWait = getEnvDuration("TX_MAX_WAIT", 5*time.Second)
	cfg.TxTimeout = getEnvDuration("TX_TIMEOUT", 10*time.Second)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitWebhook = getEnvInt("RATE_LIMIT_WEBHOOK", 300)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	return cfg, nil
}

// WebhookSecret はアプリケーション名に対応するWebhookシークレットを解決する。
// 環境変数名は WEBHOOK_SECRET_<アプリケーション名を大文字化したもの>。
// 未設定の場合は空文字列を返す（呼び出し側で設定不備として扱う）。
func WebhookSecret(appName string) string {
	return os.Getenv("WEBHOOK_SECRET_" + strings.ToUpper(appName))
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
