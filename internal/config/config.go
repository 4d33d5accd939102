package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	DBFile       string
	APIAddr      string
	MetricsAddr  string
	LogLevel     string
	HistoryLimit int
	TypingTTL    time.Duration

	// Web Push (optional; push notifications disabled when keys are empty).
	VAPIDPublicKey  string
	VAPIDPrivateKey string
	PushSubscriber  string
}

func Load() (*Config, error) {
	typingTTL, err := time.ParseDuration(getEnv("TYPING_TTL", "45s"))
	if err != nil {
		return nil, fmt.Errorf("invalid TYPING_TTL: %w", err)
	}

	historyLimit, err := strconv.Atoi(getEnv("HISTORY_LIMIT", "200"))
	if err != nil {
		return nil, fmt.Errorf("invalid HISTORY_LIMIT: %w", err)
	}

	cfg := &Config{
		DBFile:          getEnv("PALAVER_DB", "palaver.db"),
		APIAddr:         getEnv("API_ADDR", ":8080"),
		MetricsAddr:     getEnv("METRICS_ADDR", "localhost:9090"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		HistoryLimit:    historyLimit,
		TypingTTL:       typingTTL,
		VAPIDPublicKey:  os.Getenv("VAPID_PUBLIC_KEY"),
		VAPIDPrivateKey: os.Getenv("VAPID_PRIVATE_KEY"),
		PushSubscriber:  getEnv("PUSH_SUBSCRIBER", "mailto:admin@localhost"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.HistoryLimit <= 0 {
		return fmt.Errorf("HISTORY_LIMIT must be greater than 0")
	}

	if c.TypingTTL <= 0 {
		return fmt.Errorf("TYPING_TTL must be greater than 0")
	}

	if (c.VAPIDPublicKey == "") != (c.VAPIDPrivateKey == "") {
		return fmt.Errorf("VAPID_PUBLIC_KEY and VAPID_PRIVATE_KEY must be set together")
	}

	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}
