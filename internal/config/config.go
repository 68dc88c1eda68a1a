package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

// Config хранит все конфигурационные параметры приложения.
type Config struct {
	ServerPort     string        `env:"SERVER_PORT"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT"`
	ShareTimeout   time.Duration `env:"SHARE_TIMEOUT"`
	LogLevel       string        `env:"LOG_LEVEL"`
	LogFormat      string        `env:"LOG_FORMAT"`

	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:","`

	// Настройки Flickr API
	Flickr struct {
		APIKey               string        `env:"FLICKR_API_KEY,required"`
		APIBaseURL           string        `env:"FLICKR_API_BASE_URL"`
		ThumbnailConcurrency int           `env:"THUMBNAIL_CONCURRENCY"`
		BreakerMaxFailures   uint32        `env:"BREAKER_MAX_FAILURES"`
		BreakerOpenTimeout   time.Duration `env:"BREAKER_OPEN_TIMEOUT"`
	}

	DatabaseURL string `env:"DATABASE_URL,required"`

	// Настройки для MinIO
	MinioEndpoint        string `env:"MINIO_ENDPOINT,required"`
	MinioAccessKeyID     string `env:"MINIO_ACCESS_KEY_ID,required"`
	MinioSecretAccessKey string `env:"MINIO_SECRET_ACCESS_KEY,required"`
	MinioUseSSL          bool   `env:"MINIO_USE_SSL"`
	MinioBucketName      string `env:"MINIO_BUCKET_NAME,required"`
	MinioRegion          string `env:"MINIO_REGION,required"`
	MinioPublicURL       string `env:"MINIO_PUBLIC_URL"`

	RabbitMQ struct {
		RabbitMQURL       string `env:"RABBITMQ_URL,required"`
		RabbitMQQueueName string `env:"RABBITMQ_QUEUE_NAME" envDefault:"share_events"`
	}
}

// LoadConfig загружает конфигурацию из переменных окружения.
// В режиме разработки пытается загрузить .env файл.
func LoadConfig() (*Config, error) {
	if _, err := os.Stat(".env"); !os.IsNotExist(err) {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("ошибка загрузки .env файла: %w", err)
		}
	}

	cfg := Config{}
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("ошибка парсинга конфигурации из окружения: %w", err)
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

// applyDefaults вручную выставляет значения по умолчанию для незаданных полей
func applyDefaults(cfg *Config) {
	if cfg.ServerPort == "" {
		cfg.ServerPort = "8080"
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 60 * time.Second
	}
	if cfg.ShareTimeout <= 0 {
		cfg.ShareTimeout = 30 * time.Second
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = "json"
	}
	if len(cfg.CORSAllowedOrigins) == 0 {
		cfg.CORSAllowedOrigins = []string{"http://localhost:*"}
	}

	if cfg.Flickr.APIBaseURL == "" {
		cfg.Flickr.APIBaseURL = "https://api.flickr.com"
	}
	if cfg.Flickr.ThumbnailConcurrency <= 0 {
		cfg.Flickr.ThumbnailConcurrency = 5
	}
	if cfg.Flickr.BreakerMaxFailures == 0 {
		cfg.Flickr.BreakerMaxFailures = 5
	}
	if cfg.Flickr.BreakerOpenTimeout <= 0 {
		cfg.Flickr.BreakerOpenTimeout = 30 * time.Second
	}

	if cfg.MinioPublicURL == "" {
		scheme := "http"
		if cfg.MinioUseSSL {
			scheme = "https"
		}
		cfg.MinioPublicURL = fmt.Sprintf("%s://%s", scheme, cfg.MinioEndpoint)
	}
}
