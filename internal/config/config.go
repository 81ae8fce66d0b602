package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port               string
	DatabaseURL        string
	LogLevel           string
	RateLimitPerMinute int
	RateLimitBurst     int
	RetryAttempts      int
	RetryBackoff       time.Duration
	PollInterval       time.Duration
	PollBatchSize      int
}

func Load() Config {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	return Config{
		Port:               port,
		DatabaseURL:        os.Getenv("DB_DSN"),
		LogLevel:           os.Getenv("LOG_LEVEL"),
		RateLimitPerMinute: readInt("RATE_LIMIT_PER_MIN", 120),
		RateLimitBurst:     readInt("RATE_LIMIT_BURST", 30),
		RetryAttempts:      readInt("TX_RETRY_ATTEMPTS", 3),
		RetryBackoff:       readDurationMillis("TX_RETRY_BACKOFF_MS", 25),
		PollInterval:       readDurationMillis("OUTBOX_POLL_INTERVAL_MS", 1000),
		PollBatchSize:      readInt("OUTBOX_POLL_BATCH_SIZE", 100),
	}
}

func readDurationMillis(key string, fallback int) time.Duration {
	value := readInt(key, fallback)
	if value <= 0 {
		return 0
	}
	return time.Duration(value) * time.Millisecond
}

func readInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}
