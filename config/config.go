package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port            string
	DatabaseURL     string
	JWTSecret       string
	AdminAPIKey     string
	LogLevel        string
	ShutdownTimeout time.Duration

	RedisAddr       string
	CatalogCacheTTL time.Duration

	Broker             string // kafka, rabbitmq or none
	KafkaBrokers       string
	RabbitMQURL        string
	OutboxPollInterval time.Duration
	OutboxBatchSize    int

	OTLPEndpoint string

	Payment PaymentConfig
}

type PaymentConfig struct {
	BaseURL       string
	ClientID      string
	ClientSecret  string
	ReturnURL     string
	CancelURL     string
	Currency      string
	Timeout       time.Duration
	RetryLimit    int
	WebhookSecret string
}

// Load reads a local .env file when present and builds the Config from the
// process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:               getEnv("PORT", "8080"),
		DatabaseURL:        databaseURL(),
		JWTSecret:          os.Getenv("JWT_SECRET"),
		AdminAPIKey:        os.Getenv("ADMIN_API_KEY"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		RedisAddr:          os.Getenv("REDIS_ADDR"),
		Broker:             strings.ToLower(getEnv("BROKER", "none")),
		KafkaBrokers:       os.Getenv("KAFKA_BROKERS"),
		RabbitMQURL:        os.Getenv("RABBITMQ_URL"),
		OTLPEndpoint:       os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		Payment: PaymentConfig{
			BaseURL:       getEnv("PAYPAL_BASE_URL", "https://api-m.sandbox.paypal.com"),
			ClientID:      os.Getenv("PAYPAL_CLIENT_ID"),
			ClientSecret:  os.Getenv("PAYPAL_CLIENT_SECRET"),
			ReturnURL:     getEnv("PAYPAL_RETURN_URL", "http://localhost:8080/api/v1/order/paypal/execute"),
			CancelURL:     getEnv("PAYPAL_CANCEL_URL", "http://localhost:8080/api/v1/order/paypal/cancel"),
			Currency:      getEnv("PAYMENT_CURRENCY", "USD"),
			WebhookSecret: os.Getenv("PAYMENT_WEBHOOK_SECRET"),
		},
	}

	var err error
	if cfg.ShutdownTimeout, err = getDuration("SHUTDOWN_TIMEOUT", 15*time.Second); err != nil {
		return nil, err
	}
	if cfg.CatalogCacheTTL, err = getDuration("CATALOG_CACHE_TTL", 5*time.Minute); err != nil {
		return nil, err
	}
	if cfg.OutboxPollInterval, err = getDuration("OUTBOX_POLL_INTERVAL", 2*time.Second); err != nil {
		return nil, err
	}
	if cfg.OutboxBatchSize, err = getInt("OUTBOX_BATCH_SIZE", 100); err != nil {
		return nil, err
	}
	if cfg.Payment.Timeout, err = getDuration("PAYMENT_PROVIDER_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.Payment.RetryLimit, err = getInt("PAYMENT_RETRY_LIMIT", 5); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	var errs []error
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET must be set"))
	}
	if c.Payment.WebhookSecret == "" {
		errs = append(errs, errors.New("PAYMENT_WEBHOOK_SECRET must be set"))
	}
	if c.DatabaseURL == "" {
		errs = append(errs, errors.New("DATABASE_URL or DB_HOST must be set"))
	}
	switch c.Broker {
	case "none":
	case "kafka":
		if c.KafkaBrokers == "" {
			errs = append(errs, errors.New("KAFKA_BROKERS must be set when BROKER=kafka"))
		}
	case "rabbitmq":
		if c.RabbitMQURL == "" {
			errs = append(errs, errors.New("RABBITMQ_URL must be set when BROKER=rabbitmq"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown BROKER %q", c.Broker))
	}
	if c.Payment.Timeout <= 0 {
		errs = append(errs, errors.New("PAYMENT_PROVIDER_TIMEOUT must be positive"))
	}
	return errors.Join(errs...)
}

// databaseURL prefers DATABASE_URL and falls back to the discrete DB_* variables.
func databaseURL() string {
	if url := os.Getenv("DATABASE_URL"); url != "" {
		return url
	}
	host := os.Getenv("DB_HOST")
	if host == "" {
		return ""
	}
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		host, os.Getenv("DB_USER"), os.Getenv("DB_PASSWORD"), os.Getenv("DB_NAME"), getEnv("DB_PORT", "5432"),
	)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func getInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}
