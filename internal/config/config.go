// Package config loads server settings from .env, the environment and flags.
//
// Precedence: flags > environment > .env file > defaults.
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds server settings.
type Config struct {
	Env          string // dev or prod
	Addr         string // HTTP API listen address
	HealthAddr   string // gRPC health listen address, empty disables it
	DSN          string // PostgreSQL DSN, empty selects the in-memory store
	RedisAddr    string // empty disables cross-instance invalidation
	RedisChannel string
	JWTKey       string
	TimeZone     string // location used for calendar-day arithmetic
	SessionTTL   time.Duration
	FailWindow   time.Duration // auth failure counting window
	MaxFails     int
	BlockFor     time.Duration
	CORSOrigins  []string // browser origins allowed to call the API
	RateRPS      float64  // per-user API requests per second, 0 disables
	RateBurst    int
}

// Load reads .env (if present) and parses flags from args.
func Load(args []string) (*Config, error) {
	_ = godotenv.Load()

	fs := flag.NewFlagSet("plant-keeper", flag.ContinueOnError)
	c := &Config{}
	fs.StringVar(&c.Env, "env", get("ENV", "dev"), "runtime environment (dev|prod)")
	fs.StringVar(&c.Addr, "addr", get("ADDR", ":8080"), "HTTP listen address")
	fs.StringVar(&c.HealthAddr, "health-addr", get("HEALTH_ADDR", ":8081"), "gRPC health listen address")
	fs.StringVar(&c.DSN, "dsn", get("DATABASE_DSN", ""), "PostgreSQL DSN (empty: in-memory store)")
	fs.StringVar(&c.RedisAddr, "redis-addr", get("REDIS_ADDR", ""), "Redis address for invalidation events")
	fs.StringVar(&c.RedisChannel, "redis-channel", get("REDIS_CHANNEL", "plant-keeper.invalidate"), "Redis pub/sub channel")
	fs.StringVar(&c.JWTKey, "jwt-key", get("JWT_KEY", ""), "HS256 verification key (required)")
	fs.StringVar(&c.TimeZone, "tz", get("TIMEZONE", "UTC"), "IANA time zone for calendar days")
	fs.DurationVar(&c.SessionTTL, "session-ttl", getDuration("SESSION_TTL", 30*time.Minute), "idle session eviction")
	fs.DurationVar(&c.FailWindow, "auth-fail-window", getDuration("AUTH_FAIL_WINDOW", 15*time.Minute), "auth failure window")
	fs.IntVar(&c.MaxFails, "auth-max-fails", getInt("AUTH_MAX_FAILS", 20), "auth failures per window before blocking")
	fs.DurationVar(&c.BlockFor, "auth-block-for", getDuration("AUTH_BLOCK_FOR", 15*time.Minute), "block duration")
	fs.Float64Var(&c.RateRPS, "rate-rps", getFloat("RATE_RPS", 10), "per-user requests per second (0 disables)")
	fs.IntVar(&c.RateBurst, "rate-burst", getInt("RATE_BURST", 20), "per-user request burst")
	origins := fs.String("cors-origins", get("CORS_ORIGINS", "http://localhost:3000"), "comma-separated allowed origins")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	c.CORSOrigins = splitList(*origins)
	return c, c.Validate()
}

// Validate reports missing or inconsistent settings.
func (c *Config) Validate() error {
	var errs []error
	if c.JWTKey == "" {
		errs = append(errs, errors.New("missing jwt key (JWT_KEY or --jwt-key)"))
	}
	if c.Env != "dev" && c.Env != "prod" {
		errs = append(errs, fmt.Errorf("unknown env %q", c.Env))
	}
	if _, err := time.LoadLocation(c.TimeZone); err != nil {
		errs = append(errs, fmt.Errorf("time zone: %w", err))
	}
	if c.SessionTTL <= 0 {
		errs = append(errs, errors.New("session ttl must be positive"))
	}
	if c.RateRPS > 0 && c.RateBurst <= 0 {
		errs = append(errs, errors.New("rate burst must be positive when rate limiting is on"))
	}
	if c.MaxFails <= 0 {
		errs = append(errs, errors.New("auth max fails must be positive"))
	}
	return errors.Join(errs...)
}

// Location returns the configured time zone; Validate guarantees it loads.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func get(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getDuration(k string, def time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(k)); err == nil {
		return d
	}
	return def
}

func getFloat(k string, def float64) float64 {
	if f, err := strconv.ParseFloat(os.Getenv(k), 64); err == nil {
		return f
	}
	return def
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getInt(k string, def int) int {
	if n, err := strconv.Atoi(os.Getenv(k)); err == nil {
		return n
	}
	return def
}
