package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPHost          string
	HTTPPort          string
	ReadHeaderTimeout time.Duration

	// DatabaseURL selects PostgreSQL. Empty runs on the in-memory store.
	DatabaseURL string
	// RedisURL backs the rate limiter. Empty keeps counters in memory.
	RedisURL  string
	RateLimit string

	SweepInterval    time.Duration
	SweepConcurrency int

	StaffJWTSecret string

	LogLevel string
	LogFile  string

	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	MailFrom     string
	StaffEmail   string

	SeedDemo bool
}

// Load reads an optional .env file and then the environment.
func Load(envFiles ...string) (Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}

	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}

	return FromEnv()
}

func FromEnv() (Config, error) {
	//nolint:exhaustruct
	cfg := Config{
		HTTPHost:       getenv("HTTP_HOST", "0.0.0.0"),
		HTTPPort:       getenv("HTTP_PORT", "8092"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		RedisURL:       os.Getenv("REDIS_URL"),
		RateLimit:      getenv("RATE_LIMIT", "120-M"),
		StaffJWTSecret: os.Getenv("STAFF_JWT_SECRET"),
		LogLevel:       getenv("LOG_LEVEL", "info"),
		LogFile:        os.Getenv("LOG_FILE"),
		SMTPHost:       os.Getenv("SMTP_HOST"),
		SMTPUser:       os.Getenv("SMTP_USER"),
		SMTPPassword:   os.Getenv("SMTP_PASSWORD"),
		MailFrom:       getenv("MAIL_FROM", "reservations@localhost"),
		StaffEmail:     os.Getenv("STAFF_EMAIL"),
	}

	var err error

	if cfg.ReadHeaderTimeout, err = duration("READ_HEADER_TIMEOUT", "20s"); err != nil {
		return Config{}, err
	}

	if cfg.SweepInterval, err = duration("SWEEP_INTERVAL", "15m"); err != nil {
		return Config{}, err
	}

	if cfg.SweepConcurrency, err = positiveInt("SWEEP_CONCURRENCY", "4"); err != nil {
		return Config{}, err
	}

	if cfg.SMTPPort, err = positiveInt("SMTP_PORT", "587"); err != nil {
		return Config{}, err
	}

	if cfg.SeedDemo, err = strconv.ParseBool(getenv("SEED_DEMO", "false")); err != nil {
		return Config{}, fmt.Errorf("invalid SEED_DEMO: %w", err)
	}

	return cfg, nil
}

// MailEnabled reports whether staff notifications can go out by email.
func (c Config) MailEnabled() bool {
	return c.SMTPHost != "" && c.StaffEmail != ""
}

func duration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(getenv(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}

	return d, nil
}

func positiveInt(key, def string) (int, error) {
	n, err := strconv.Atoi(getenv(key, def))
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid %s", key)
	}

	return n, nil
}

func getenv(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}

	return v
}
