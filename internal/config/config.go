// Package config loads server settings from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port          string
	DatabaseURL   string
	RedisURL      string
	MigrationsDir string

	JWTSecret       string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	BcryptCost      int

	// AMQPURL empty disables event publishing.
	AMQPURL string

	UploadDir      string
	PublicBaseURL  string
	MaxUploadBytes int64

	RatingSchedule     string
	StoreTimeout       time.Duration
	RateLimitPerMinute int
	CatalogCacheTTL    time.Duration
}

// Load reads a .env file from the working directory when one exists, then
// the process environment. Variables already set in the environment win.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}
	return FromEnv()
}

// FromEnv builds a Config from the process environment only.
func FromEnv() (*Config, error) {
	var missing []string
	required := func(key string) string {
		v := strings.TrimSpace(os.Getenv(key))
		if v == "" {
			missing = append(missing, key)
		}
		return v
	}

	p := &parser{}
	cfg := &Config{
		DatabaseURL: required("DATABASE_URL"),
		RedisURL:    required("REDIS_URL"),
		JWTSecret:   required("JWT_SECRET"),

		Port:               envStr("PORT", "8080"),
		MigrationsDir:      envStr("MIGRATIONS_DIR", "migrations"),
		AccessTokenTTL:     p.duration("ACCESS_TOKEN_TTL", 15*time.Minute),
		RefreshTokenTTL:    p.duration("REFRESH_TOKEN_TTL", 720*time.Hour),
		BcryptCost:         p.int("BCRYPT_COST", 10),
		AMQPURL:            envStr("AMQP_URL", ""),
		UploadDir:          envStr("UPLOAD_DIR", "uploads"),
		PublicBaseURL:      strings.TrimRight(envStr("PUBLIC_BASE_URL", "http://localhost:8080"), "/"),
		MaxUploadBytes:     int64(p.int("MAX_UPLOAD_BYTES", 2<<20)),
		RatingSchedule:     envStr("RATING_SCHEDULE", "@every 15m"),
		StoreTimeout:       p.duration("STORE_TIMEOUT", 10*time.Second),
		RateLimitPerMinute: p.int("RATE_LIMIT_PER_MINUTE", 120),
		CatalogCacheTTL:    p.duration("CATALOG_CACHE_TTL", time.Hour),
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables not set: %s", strings.Join(missing, ", "))
	}
	if p.err != nil {
		return nil, p.err
	}
	if cfg.StoreTimeout <= 0 {
		return nil, fmt.Errorf("STORE_TIMEOUT must be positive")
	}
	return cfg, nil
}

func envStr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

// parser keeps the first malformed value so Load can report it.
type parser struct {
	err error
}

func (p *parser) int(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.fail(fmt.Errorf("parsing %s: %w", key, err))
		return fallback
	}
	return n
}

func (p *parser) duration(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		p.fail(fmt.Errorf("parsing %s: %w", key, err))
		return fallback
	}
	return d
}

func (p *parser) fail(err error) {
	if p.err == nil {
		p.err = err
	}
}
