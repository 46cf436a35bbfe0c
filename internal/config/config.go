// Package config は環境変数からのアプリケーション設定の読み込みを提供する。
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
type Config struct {
	// Database
	DatabaseURL string

	// Admin
	AdminKey string

	// Sweep（指値マッチングスイープ）
	SweepInterval time.Duration

	// B2Bバッチジョブ
	OfferSyncInterval time.Duration
	ReportInterval    time.Duration

	// Webhook通知
	WebhookTimeout time.Duration
	WebhookMaxSize int64

	// Rate Limit
	RateLimitGeneral int
	RateLimitPlace   int

	// Server
	ServerPort string

	// CORS
	CORSAllowedOrigin string

	// Seed
	ResetDB bool
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

	cfg.AdminKey = os.Getenv("ADMIN_KEY")
	if cfg.AdminKey == "" {
		missing = append(missing, "ADMIN_KEY")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.SweepInterval = getEnvDuration("SWEEP_INTERVAL", 5*time.Second)
	cfg.OfferSyncInterval = getEnvDuration("OFFER_SYNC_INTERVAL", 30*time.Second)
	cfg.ReportInterval = getEnvDuration("REPORT_INTERVAL", time.Minute)
	cfg.WebhookTimeout = getEnvDuration("WEBHOOK_TIMEOUT", 10*time.Second)
	cfg.WebhookMaxSize = getEnvInt64("WEBHOOK_MAX_SIZE", 65536)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitPlace = getEnvInt("RATE_LIMIT_PLACE", 30)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")
	cfg.ResetDB = strings.EqualFold(os.Getenv("RESET_DB"), "true")

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

func getEnvInt64(key string, defaultVal int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(v, 10, 64)
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
