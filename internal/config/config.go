// Package config loads worker settings from .env, the environment and an
// optional YAML file describing the market matrix.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const configPathEnv = "ANALYTICS_CONFIG"

// Config holds application configuration
type Config struct {
	DatabaseURL   string
	RedisURL      string
	BrokerURL     string
	ClickHouseDSN string // optional trend history sink

	WorkerConcurrency int
	TaskTimeout       time.Duration
	QueryTimeout      time.Duration

	DBConnectAttempts  int
	DBConnectBaseDelay time.Duration

	CacheCodec     string
	TrendCacheTTL  time.Duration
	ReportCacheTTL time.Duration

	TrendWindowDays int

	LogLevel    string
	LogPretty   bool
	MetricsAddr string

	Market    MarketConfig    `yaml:"market"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
}

// MarketConfig enumerates the regions and categories swept by the scheduler.
type MarketConfig struct {
	State      string   `yaml:"state"`
	Cities     []string `yaml:"cities"`
	Categories []string `yaml:"categories"`
}

// MarketPair is one (city, category) cell of the sweep matrix.
type MarketPair struct {
	City     string
	Category string
}

// Pairs expands the matrix city-major.
func (m MarketConfig) Pairs() []MarketPair {
	pairs := make([]MarketPair, 0, len(m.Cities)*len(m.Categories))
	for _, city := range m.Cities {
		for _, category := range m.Categories {
			pairs = append(pairs, MarketPair{City: city, Category: category})
		}
	}
	return pairs
}

// SchedulerConfig holds cron expressions for the periodic jobs.
type SchedulerConfig struct {
	Sweep        string        `yaml:"sweep"`
	Hygiene      string        `yaml:"hygiene"`
	PollInterval time.Duration `yaml:"poll_interval"`
}

type fileConfig struct {
	Market    MarketConfig    `yaml:"market"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
}

// Default returns the reference deployment configuration.
func Default() *Config {
	return &Config{
		RedisURL:           "redis://localhost:6379/0",
		WorkerConcurrency:  4,
		TaskTimeout:        5 * time.Minute,
		QueryTimeout:       30 * time.Second,
		DBConnectAttempts:  5,
		DBConnectBaseDelay: time.Second,
		CacheCodec:         "json",
		TrendCacheTTL:      time.Hour,
		ReportCacheTTL:     10 * time.Minute,
		TrendWindowDays:    30,
		LogLevel:           "info",
		MetricsAddr:        ":9090",
		Market: MarketConfig{
			State:      "TX",
			Cities:     []string{"Austin", "Houston", "Dallas", "San Antonio", "Fort Worth"},
			Categories: []string{"residential", "commercial"},
		},
		Scheduler: SchedulerConfig{
			Sweep:        "0 2 * * *",
			Hygiene:      "@hourly",
			PollInterval: time.Minute,
		},
	}
}

// Load reads configuration from .env, the YAML file named by ANALYTICS_CONFIG
// and environment variables, in increasing precedence.
func Load() (*Config, error) {
	return load(true)
}

// LoadBroker is Load for commands that only talk to the broker.
// DATABASE_URL is not required.
func LoadBroker() (*Config, error) {
	return load(false)
}

func load(needDatabase bool) (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := Default()

	if path := os.Getenv(configPathEnv); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	if err := cfg.validate(needDatabase); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	if fc.Market.State != "" {
		c.Market.State = fc.Market.State
	}
	if len(fc.Market.Cities) > 0 {
		c.Market.Cities = fc.Market.Cities
	}
	if len(fc.Market.Categories) > 0 {
		c.Market.Categories = fc.Market.Categories
	}
	if fc.Scheduler.Sweep != "" {
		c.Scheduler.Sweep = fc.Scheduler.Sweep
	}
	if fc.Scheduler.Hygiene != "" {
		c.Scheduler.Hygiene = fc.Scheduler.Hygiene
	}
	if fc.Scheduler.PollInterval > 0 {
		c.Scheduler.PollInterval = fc.Scheduler.PollInterval
	}
	return nil
}

func (c *Config) applyEnv() {
	c.DatabaseURL = getEnv("DATABASE_URL", c.DatabaseURL)
	c.RedisURL = getEnv("REDIS_URL", c.RedisURL)
	c.BrokerURL = getEnv("BROKER_URL", c.RedisURL)
	c.ClickHouseDSN = getEnv("CLICKHOUSE_DSN", c.ClickHouseDSN)

	c.WorkerConcurrency = getEnvAsInt("WORKER_CONCURRENCY", c.WorkerConcurrency)
	c.TaskTimeout = getEnvAsDuration("TASK_TIMEOUT", c.TaskTimeout)
	c.QueryTimeout = getEnvAsDuration("QUERY_TIMEOUT", c.QueryTimeout)

	c.DBConnectAttempts = getEnvAsInt("DB_CONNECT_ATTEMPTS", c.DBConnectAttempts)
	c.DBConnectBaseDelay = getEnvAsDuration("DB_CONNECT_BASE_DELAY", c.DBConnectBaseDelay)

	c.CacheCodec = getEnv("CACHE_CODEC", c.CacheCodec)
	c.TrendCacheTTL = getEnvAsDuration("TREND_CACHE_TTL", c.TrendCacheTTL)
	c.ReportCacheTTL = getEnvAsDuration("REPORT_CACHE_TTL", c.ReportCacheTTL)

	c.TrendWindowDays = getEnvAsInt("MARKET_TREND_WINDOW_DAYS", c.TrendWindowDays)

	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.LogPretty = getEnvAsBool("LOG_PRETTY", c.LogPretty)
	c.MetricsAddr = getEnv("METRICS_ADDR", c.MetricsAddr)

	c.Market.State = getEnv("MARKET_STATE", c.Market.State)
	c.Market.Cities = getEnvAsList("MARKET_CITIES", c.Market.Cities)
	c.Market.Categories = getEnvAsList("MARKET_CATEGORIES", c.Market.Categories)

	c.Scheduler.Sweep = getEnv("SWEEP_SCHEDULE", c.Scheduler.Sweep)
	c.Scheduler.Hygiene = getEnv("HYGIENE_SCHEDULE", c.Scheduler.Hygiene)
	c.Scheduler.PollInterval = getEnvAsDuration("SCHEDULER_POLL_INTERVAL", c.Scheduler.PollInterval)
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	return c.validate(true)
}

func (c *Config) validate(needDatabase bool) error {
	var errs []error
	if needDatabase && c.DatabaseURL == "" {
		errs = append(errs, errors.New("DATABASE_URL is required"))
	}
	if c.WorkerConcurrency < 1 {
		errs = append(errs, fmt.Errorf("WORKER_CONCURRENCY must be at least 1, got %d", c.WorkerConcurrency))
	}
	if c.TrendWindowDays < 1 {
		errs = append(errs, fmt.Errorf("MARKET_TREND_WINDOW_DAYS must be at least 1, got %d", c.TrendWindowDays))
	}
	if c.DBConnectAttempts < 1 {
		errs = append(errs, fmt.Errorf("DB_CONNECT_ATTEMPTS must be at least 1, got %d", c.DBConnectAttempts))
	}
	if c.TrendCacheTTL <= 0 || c.ReportCacheTTL <= 0 {
		errs = append(errs, errors.New("cache TTLs must be positive"))
	}
	if c.QueryTimeout <= 0 || c.TaskTimeout <= 0 {
		errs = append(errs, errors.New("QUERY_TIMEOUT and TASK_TIMEOUT must be positive"))
	}
	switch c.CacheCodec {
	case "json", "msgpack":
	default:
		errs = append(errs, fmt.Errorf("CACHE_CODEC must be json or msgpack, got %q", c.CacheCodec))
	}
	if c.Market.State == "" {
		errs = append(errs, errors.New("market state is required"))
	}
	if len(c.Market.Cities) == 0 || len(c.Market.Categories) == 0 {
		errs = append(errs, errors.New("market matrix needs at least one city and one category"))
	}
	if c.Scheduler.PollInterval <= 0 {
		errs = append(errs, errors.New("SCHEDULER_POLL_INTERVAL must be positive"))
	}
	return errors.Join(errs...)
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

// getEnvAsDuration accepts Go durations ("90s") or bare seconds ("3600").
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
