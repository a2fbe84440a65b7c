package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all runtime settings of the service.
type Config struct {
	AppAddr  string `mapstructure:"APP_ADDR" validate:"required"`
	LogLevel string `mapstructure:"LOG_LEVEL" validate:"required,oneof=debug info warn error"`

	// DBDSN selects the Postgres store; empty means the in-memory store.
	DBDSN     string        `mapstructure:"DB_DSN"`
	DBTimeout time.Duration `mapstructure:"DB_TIMEOUT" validate:"gt=0"`

	// RedisURL selects the Redis cache and recent-task list; empty means in-process.
	RedisURL     string        `mapstructure:"REDIS_URL"`
	CachePageTTL time.Duration `mapstructure:"CACHE_PAGE_TTL" validate:"gt=0"`

	// TaskBrokerURL selects the asynq broker; empty means the in-process worker pool.
	TaskBrokerURL string        `mapstructure:"TASK_BROKER_URL"`
	TaskWorkers   int           `mapstructure:"TASK_WORKERS" validate:"gt=0"`
	TaskQueueSize int           `mapstructure:"TASK_QUEUE_SIZE" validate:"gt=0"`
	TaskResultTTL time.Duration `mapstructure:"TASK_RESULT_TTL" validate:"gt=0"`

	KafkaBrokers string `mapstructure:"KAFKA_BROKERS"`
	EventsTopic  string `mapstructure:"EVENTS_TOPIC" validate:"required"`

	BasicAuthUser     string `mapstructure:"BASIC_AUTH_USER" validate:"required"`
	BasicAuthPassword string `mapstructure:"BASIC_AUTH_PASSWORD" validate:"required"`

	RateLimitRPS   float64 `mapstructure:"RATE_LIMIT_RPS" validate:"gt=0"`
	RateLimitBurst int     `mapstructure:"RATE_LIMIT_BURST" validate:"gt=0"`
}

var defaults = map[string]any{
	"APP_ADDR":         ":8080",
	"LOG_LEVEL":        "info",
	"DB_DSN":           "",
	"DB_TIMEOUT":       "5s",
	"REDIS_URL":        "",
	"CACHE_PAGE_TTL":   "30s",
	"TASK_BROKER_URL":  "",
	"TASK_WORKERS":     4,
	"TASK_QUEUE_SIZE":  100,
	"TASK_RESULT_TTL":  "1h",
	"KAFKA_BROKERS":    "",
	"EVENTS_TOPIC":     "books-events",
	"RATE_LIMIT_RPS":   20,
	"RATE_LIMIT_BURST": 40,
}

var secretKeys = []string{"BASIC_AUTH_USER", "BASIC_AUTH_PASSWORD"}

// Load reads .env files (never overriding the real environment), then binds
// environment variables into a validated Config.
func Load() (*Config, error) {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	v := viper.New()
	v.AutomaticEnv()
	for k, def := range defaults {
		v.SetDefault(k, def)
	}
	for _, k := range secretKeys {
		_ = v.BindEnv(k)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field constraints and reports the offending environment keys.
func (c *Config) Validate() error {
	err := validator.New().Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("invalid config: %w", err)
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fmt.Sprintf("%s (%s)", fe.Field(), fe.Tag()))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(fields, ", "))
}

// KafkaBrokerList splits KAFKA_BROKERS into addresses.
func (c *Config) KafkaBrokerList() []string {
	var out []string
	for _, b := range strings.Split(c.KafkaBrokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

func (c *Config) String() string {
	var sb strings.Builder
	sb.WriteString("\n")
	fmt.Fprintf(&sb, "  AppAddr: %s\n", c.AppAddr)
	fmt.Fprintf(&sb, "  LogLevel: %s\n", c.LogLevel)
	fmt.Fprintf(&sb, "  DBDSN: %s\n", orEmpty(RedactDSN(c.DBDSN)))
	fmt.Fprintf(&sb, "  DBTimeout: %s\n", c.DBTimeout)
	fmt.Fprintf(&sb, "  RedisURL: %s\n", orEmpty(RedactDSN(c.RedisURL)))
	fmt.Fprintf(&sb, "  CachePageTTL: %s\n", c.CachePageTTL)
	fmt.Fprintf(&sb, "  TaskBrokerURL: %s\n", orEmpty(RedactDSN(c.TaskBrokerURL)))
	fmt.Fprintf(&sb, "  TaskWorkers: %d\n", c.TaskWorkers)
	fmt.Fprintf(&sb, "  TaskQueueSize: %d\n", c.TaskQueueSize)
	fmt.Fprintf(&sb, "  TaskResultTTL: %s\n", c.TaskResultTTL)
	fmt.Fprintf(&sb, "  KafkaBrokers: %s\n", orEmpty(c.KafkaBrokers))
	fmt.Fprintf(&sb, "  EventsTopic: %s\n", c.EventsTopic)
	sb.WriteString("  BasicAuthUser: ********\n")
	sb.WriteString("  BasicAuthPassword: ********\n")
	fmt.Fprintf(&sb, "  RateLimit: %.1f rps, burst %d\n", c.RateLimitRPS, c.RateLimitBurst)
	return sb.String()
}

func orEmpty(s string) string {
	if s == "" {
		return "(empty)"
	}
	return s
}

// RedactDSN hides the userinfo part of a connection string.
func RedactDSN(dsn string) string {
	const marker = "://"
	start := strings.Index(dsn, marker)
	if start < 0 {
		return dsn
	}
	start += len(marker)
	end := strings.Index(dsn[start:], "@")
	if end < 0 {
		return dsn
	}
	return dsn[:start] + "***" + dsn[start+end:]
}

// LookupEnv is a small helper for binaries that read a single variable
// before the full config is available.
func LookupEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
