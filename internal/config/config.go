package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Backend
	JobSeekerAPIURL string
	EmployerAPIURL  string
	HTTPTimeout     time.Duration

	// Client state
	StateDir                 string
	DatabaseURL              string
	ClientStateRetentionDays int

	// Profile
	ResumeLinkCheck bool

	// Rate Limit（req/min）
	RateLimitGeneral int
	RateLimitLogin   int

	// Server
	ServerPort string

	// Cookie
	CookieSecure bool
	CookieDomain string

	// CORS
	CORSAllowedOrigin string

	// Logging
	LogLevel string

	// Tracing
	OTLPEndpoint string
	OTLPInsecure bool
	ServiceName  string
}

// Load は環境変数からConfigを読み込む。
// カレントディレクトリに.envがあれば先に読み込む（既存の環境変数は上書きしない）。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	return LoadFrom(".env")
}

// LoadFrom はenvFileを読み込んでからConfigを組み立てる。
// envFileが存在しない場合は環境変数だけを使う。
func LoadFrom(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}

	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.JobSeekerAPIURL = strings.TrimRight(os.Getenv("JOBSEEKER_API_URL"), "/")
	if cfg.JobSeekerAPIURL == "" {
		missing = append(missing, "JOBSEEKER_API_URL")
	}

	cfg.EmployerAPIURL = strings.TrimRight(os.Getenv("EMPLOYER_API_URL"), "/")
	if cfg.EmployerAPIURL == "" {
		missing = append(missing, "EMPLOYER_API_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.HTTPTimeout = getEnvDuration("HTTP_TIMEOUT", 10*time.Second)
	cfg.StateDir = getEnvString("STATE_DIR", ".jobportal")
	cfg.DatabaseURL = getEnvString("DATABASE_URL", "")
	cfg.ClientStateRetentionDays = getEnvInt("CLIENT_STATE_RETENTION_DAYS", 30)
	cfg.ResumeLinkCheck = getEnvBool("RESUME_LINK_CHECK", false)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitLogin = getEnvInt("RATE_LIMIT_LOGIN", 10)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CookieSecure = getEnvBool("COOKIE_SECURE", false)
	cfg.CookieDomain = getEnvString("COOKIE_DOMAIN", "")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")
	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")
	cfg.OTLPEndpoint = getEnvString("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	cfg.OTLPInsecure = getEnvBool("OTEL_EXPORTER_OTLP_INSECURE", false)
	cfg.ServiceName = getEnvString("OTEL_SERVICE_NAME", "jobportal")

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

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
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
