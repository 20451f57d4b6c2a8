package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

// AppConfig holds environment driven configuration values.
// Sensitive data should never have defaults inside code and must be provided via env files or the environment.
type AppConfig struct {
	AppPort            string   `env:"APP_PORT" envDefault:"8080"`
	RateLimitPerMinute int      `env:"RATE_LIMIT_PER_MINUTE" envDefault:"60"`
	AllowedOrigins     []string `env:"ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`
	// TrustedProxies lists proxy IPs/CIDRs whose X-Forwarded-For is honoured; empty trusts none
	TrustedProxies []string `env:"TRUSTED_PROXIES" envSeparator:","`
	// Gin framework configuration
	GinMode    string `env:"GIN_MODE" envDefault:"release"`
	GinLogPath string `env:"GIN_LOG_PATH" envDefault:"logs/go_gin.log"`
	// Session cookie and token signing
	SessionSecret string        `env:"SESSION_SECRET"`
	SessionTTL    time.Duration `env:"SESSION_TTL" envDefault:"12h"`
	SessionCookie string        `env:"SESSION_COOKIE" envDefault:"SESSION"`
	CookieSecure  bool          `env:"COOKIE_SECURE"`
	// Database
	DBDriver    string `env:"DB_DRIVER" envDefault:"mysql"`
	DatabaseURI string `env:"DATABASE_URI"`
	DBHost      string `env:"DB_HOST" envDefault:"127.0.0.1"`
	DBPort      string `env:"DB_PORT" envDefault:"3306"`
	DBUser      string `env:"DB_USER" envDefault:"root"`
	DBPassword  string `env:"DB_PASSWORD"`
	DBName      string `env:"DB_NAME" envDefault:"secureboard"`
	// Redis holds revoked sessions; without it revocations live in process memory
	RedisEnabled  bool   `env:"REDIS_ENABLED"`
	RedisHost     string `env:"REDIS_HOST" envDefault:"127.0.0.1"`
	RedisPort     int    `env:"REDIS_PORT" envDefault:"6379"`
	RedisDB       int    `env:"REDIS_DB"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	// Logging configuration
	LogLevel      string `env:"LOG_LEVEL" envDefault:"info"`
	LogPath       string `env:"LOG_PATH" envDefault:"logs/app.log"`
	LogMaxSizeMB  int    `env:"LOG_MAX_SIZE_MB" envDefault:"100"`
	LogMaxBackups int    `env:"LOG_MAX_BACKUPS" envDefault:"3"`
	LogMaxAgeDays int    `env:"LOG_MAX_AGE_DAYS" envDefault:"7"`
	LogCompress   bool   `env:"LOG_COMPRESS"`
	// Attachment storage
	StorageDriver string `env:"STORAGE_DRIVER" envDefault:"local"`
	UploadDir     string `env:"UPLOAD_DIR" envDefault:"uploads"`
	MaxUploadMB   int64  `env:"MAX_UPLOAD_MB" envDefault:"50"`
	S3            S3Config
}

// S3Config configures the S3-compatible attachment backend (AWS S3, MinIO).
type S3Config struct {
	Endpoint        string `env:"S3_ENDPOINT"`
	Region          string `env:"S3_REGION" envDefault:"us-east-1"`
	Bucket          string `env:"S3_BUCKET"`
	AccessKeyID     string `env:"S3_ACCESS_KEY_ID"`
	SecretAccessKey string `env:"S3_SECRET_ACCESS_KEY"`
	UseSSL          bool   `env:"S3_USE_SSL"`
}

// Load reads configuration from the environment, loading a .env file first when one exists.
func Load() (AppConfig, error) {
	var cfg AppConfig
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return cfg, fmt.Errorf("load .env: %w", err)
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks values that have no safe default.
func (c AppConfig) Validate() error {
	if c.SessionSecret == "" {
		return fmt.Errorf("SESSION_SECRET must be set in environment variables")
	}
	switch strings.ToLower(c.DBDriver) {
	case "mysql", "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}
	switch strings.ToLower(c.StorageDriver) {
	case "local":
	case "s3":
		if c.S3.Bucket == "" || c.S3.Endpoint == "" {
			return fmt.Errorf("S3_BUCKET and S3_ENDPOINT must be set when STORAGE_DRIVER=s3")
		}
	default:
		return fmt.Errorf("unsupported STORAGE_DRIVER %q", c.StorageDriver)
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be positive")
	}
	return nil
}

// MaxUploadBytes returns the per-file upload limit.
func (c AppConfig) MaxUploadBytes() int64 {
	if c.MaxUploadMB <= 0 {
		return 50 << 20
	}
	return c.MaxUploadMB << 20
}
