// Package config loads storefront settings from the environment.
package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/example/ec-storefront/internal/idle"
	"github.com/example/ec-storefront/internal/storage"
)

var ErrInvalid = errors.New("invalid configuration")

const (
	DefaultAPIURL     = "http://localhost:8080"
	DefaultTimeout    = 10 * time.Second
	DefaultIdleWindow = 15 * time.Minute
	DefaultKafkaTopic = "storefront-events"
	DefaultDevAPIAddr = ":8080"
)

type Config struct {
	APIURL         string
	HTTPTimeout    time.Duration
	IdleWindow     time.Duration
	ActivityEvents []string
	Storage        storage.Options
	KafkaBrokers   []string
	KafkaTopic     string
	DevAPIAddr     string
	JWTSecret      string
}

// KafkaEnabled reports whether bus events should be forwarded to Kafka
func (c Config) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

// Load reads .env when present, then the process environment
func Load() (Config, error) {
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("[Config] Failed to read .env: %v", err)
	}
	return FromEnv()
}

// FromEnv builds a Config from the process environment only
func FromEnv() (Config, error) {
	var errs []error

	timeout, err := getEnvDuration("STOREFRONT_HTTP_TIMEOUT", DefaultTimeout)
	errs = append(errs, err)
	window, err := getEnvDuration("STOREFRONT_IDLE_WINDOW", DefaultIdleWindow)
	errs = append(errs, err)

	cfg := Config{
		APIURL:         strings.TrimRight(getEnv("STOREFRONT_API_URL", DefaultAPIURL), "/"),
		HTTPTimeout:    timeout,
		IdleWindow:     window,
		ActivityEvents: getEnvList("STOREFRONT_ACTIVITY_EVENTS", idle.DefaultEvents),
		Storage: storage.Options{
			Backend:        strings.ToLower(getEnv("STOREFRONT_STORAGE", "memory")),
			Namespace:      getEnv("STOREFRONT_NAMESPACE", storage.DefaultNamespace),
			Path:           getEnv("STOREFRONT_STORAGE_PATH", ""),
			DatabaseURL:    getEnv("DATABASE_URL", ""),
			DynamoTable:    getEnv("DYNAMODB_TABLE", ""),
			DynamoEndpoint: getEnv("DYNAMODB_ENDPOINT", ""),
		},
		KafkaBrokers: getEnvList("KAFKA_BROKERS", nil),
		KafkaTopic:   getEnv("KAFKA_TOPIC", DefaultKafkaTopic),
		DevAPIAddr:   getEnv("DEVAPI_ADDR", DefaultDevAPIAddr),
		JWTSecret:    getEnv("JWT_SECRET", ""),
	}

	errs = append(errs, cfg.Validate())
	if err := errors.Join(errs...); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the settings the storefront cannot run without
func (c Config) Validate() error {
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("%w: http timeout must be positive", ErrInvalid)
	}
	if c.IdleWindow <= 0 {
		return fmt.Errorf("%w: idle window must be positive", ErrInvalid)
	}
	if len(c.ActivityEvents) == 0 {
		return fmt.Errorf("%w: at least one activity event is required", ErrInvalid)
	}
	switch c.Storage.Backend {
	case "", "memory":
	case "file":
		if c.Storage.Path == "" {
			return fmt.Errorf("%w: STOREFRONT_STORAGE_PATH is required for file storage", ErrInvalid)
		}
	case "postgres":
		if c.Storage.DatabaseURL == "" {
			return fmt.Errorf("%w: DATABASE_URL is required for postgres storage", ErrInvalid)
		}
	case "dynamodb":
		if c.Storage.DynamoTable == "" {
			return fmt.Errorf("%w: DYNAMODB_TABLE is required for dynamodb storage", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: unknown storage backend %q", ErrInvalid, c.Storage.Backend)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue, fmt.Errorf("%w: %s=%q is not an integer", ErrInvalid, key, value)
	}
	return n, nil
}

// getEnvDuration accepts Go durations ("90s") or a plain number of seconds
func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d, nil
	}
	secs, err := getEnvInt(key, 0)
	if err != nil {
		return defaultValue, fmt.Errorf("%w: %s=%q is not a duration", ErrInvalid, key, value)
	}
	return time.Duration(secs) * time.Second, nil
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
