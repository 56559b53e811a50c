package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config carries everything the binaries read from the environment. Policy
// fields are service-wide defaults; per-definition overrides live in the
// schedule definitions themselves.
type Config struct {
	Env      string // dev, prod
	HTTPPort string // default 8080

	PostgresDSN   string // required
	RedisAddr     string // host:port
	RedisUsername string
	RedisPassword string

	LockTTL         time.Duration // how long a Redis lock lives
	ShutdownTimeout time.Duration // graceful shutdown timeout
	WorkerInterval  time.Duration // how often the slot worker runs

	AdvanceBookingDays int           // generation horizon for definitions that omit it
	MinAdvanceHours    int           // minimum lead time before a slot may be booked
	StatsWindowDays    int           // rolling window for utilization statistics
	ReminderLead       time.Duration // how far ahead of a booked slot the reminder is marked
}

func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Env:             getEnv("APP_ENV", "dev"),
		HTTPPort:        getEnv("HTTP_PORT", "8080"),
		PostgresDSN:     os.Getenv("POSTGRES_DSN"),
		LockTTL:         getDuration("LOCK_TTL", 5*time.Second),
		ShutdownTimeout: getDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		WorkerInterval:  getDuration("WORKER_INTERVAL", time.Minute),

		AdvanceBookingDays: getInt("DEFAULT_ADVANCE_BOOKING_DAYS", 90),
		MinAdvanceHours:    getInt("DEFAULT_MIN_ADVANCE_HOURS", 2),
		StatsWindowDays:    getInt("STATS_WINDOW_DAYS", 30),
		ReminderLead:       getDuration("REMINDER_LEAD", 24*time.Hour),
	}

	if cfg.PostgresDSN == "" {
		return Config{}, errors.New("POSTGRES_DSN is required")
	}
	if cfg.AdvanceBookingDays < 1 {
		return Config{}, errors.New("DEFAULT_ADVANCE_BOOKING_DAYS must be at least 1")
	}
	if cfg.MinAdvanceHours < 0 {
		return Config{}, errors.New("DEFAULT_MIN_ADVANCE_HOURS must not be negative")
	}
	if cfg.StatsWindowDays < 1 {
		return Config{}, errors.New("STATS_WINDOW_DAYS must be at least 1")
	}
	if err := resolveRedis(&cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// resolveRedis fills the Redis fields, preferring a single REDIS_URL over
// the split REDIS_ADDR/REDIS_USERNAME/REDIS_PASSWORD variables.
func resolveRedis(cfg *Config) error {
	raw := os.Getenv("REDIS_URL")
	if raw == "" {
		cfg.RedisAddr = getEnv("REDIS_ADDR", "127.0.0.1:6379")
		cfg.RedisUsername = os.Getenv("REDIS_USERNAME")
		cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")
		return nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid REDIS_URL %q: missing host", raw)
	}
	cfg.RedisAddr = u.Host
	if u.User != nil {
		cfg.RedisUsername = u.User.Username()
		cfg.RedisPassword, _ = u.User.Password()
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getDuration accepts either a bare number of seconds or a Go duration
// string ("90s", "5m").
func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return time.Duration(n) * time.Second
		}
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		fmt.Fprintf(os.Stderr, "invalid duration for %s=%q, using default %s\n", key, v, def)
	}
	return def
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
		fmt.Fprintf(os.Stderr, "invalid integer for %s=%q, using default %d\n", key, v, def)
	}
	return def
}
