// Package config loads runtime configuration from the environment, following
// the same mustEnv/getEnv pattern used throughout this codebase's predecessor.
package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every environment-driven setting for the three process images
// (marketdata, gateway, projector). Each binary only reads the fields it needs.
type Config struct {
	// Relational store
	DBHost     string
	DBPort     string
	DBName     string
	DBUser     string
	DBPassword string

	// Redis (pub/sub bus + live cache)
	RedisHost string
	RedisPort string

	// HTTP/WS API
	APIHost string
	APIPort string

	LogLevel string

	WebsocketPingInterval    time.Duration
	WebsocketPongTimeout     time.Duration
	WebsocketCleanupInterval time.Duration
	PeriodicUpdateInterval   time.Duration

	BinanceBaseURL        string
	Symbols               []string
	OrderbookSymbols      []string
	OrderbookLevels       int
	OrderbookUpdateInterval time.Duration
	OrderbookRetryDelay   time.Duration
	OrderbookMaxRetries   int

	Web3Provider    string
	RouterAddress   string
	TradingAddress  string
	OracleAddress   string
	BatchSize       int

	KlinesStartEpochMs int64
	KlinesRetryDelay   time.Duration
	KlinesMaxRetries   int
	KlinesRealtimeInterval time.Duration
}

// Load reads .env (if present) then the process environment. Missing optional
// vars fall back to documented defaults; infra endpoints default to localhost
// so the binaries run against a docker-compose dev stack out of the box.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Printf("[config] no .env file loaded: %v", err)
	}

	return &Config{
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBName:     getEnv("DB_NAME", "linkora"),
		DBUser:     getEnv("DB_USER", "linkora"),
		DBPassword: getEnv("DB_PASSWORD", "linkora"),

		RedisHost: getEnv("REDIS_HOST", "localhost"),
		RedisPort: getEnv("REDIS_PORT", "6379"),

		APIHost: getEnv("API_HOST", "0.0.0.0"),
		APIPort: getEnv("API_PORT", "8000"),

		LogLevel: getEnv("LOG_LEVEL", "info"),

		WebsocketPingInterval:    getEnvSeconds("WEBSOCKET_PING_INTERVAL", 30),
		WebsocketPongTimeout:     getEnvSeconds("WEBSOCKET_PONG_TIMEOUT", 60),
		WebsocketCleanupInterval: getEnvSeconds("WEBSOCKET_CLEANUP_INTERVAL", 120),
		PeriodicUpdateInterval:   5 * time.Second, // always 5; see SPEC_FULL.md design notes

		BinanceBaseURL:          getEnv("BINANCE_BASE_URL", "https://api.binance.com"),
		Symbols:                 splitCSV(getEnv("SYMBOLS", "BTCUSDT,ETHUSDT")),
		OrderbookSymbols:        splitCSV(getEnv("ORDERBOOK_SYMBOLS", "BTCUSDT,ETHUSDT")),
		OrderbookLevels:         getEnvInt("ORDERBOOK_LEVELS", 20),
		OrderbookUpdateInterval: getEnvSeconds("ORDERBOOK_UPDATE_INTERVAL", 1),
		OrderbookRetryDelay:     getEnvSeconds("ORDERBOOK_RETRY_DELAY", 1),
		OrderbookMaxRetries:     getEnvInt("ORDERBOOK_MAX_RETRIES", 3),

		Web3Provider:   getEnv("WEB3_PROVIDER", "http://localhost:8545"),
		RouterAddress:  getEnv("ROUTER_ADDRESS", ""),
		TradingAddress: getEnv("TRADING_ADDRESS", ""),
		OracleAddress:  getEnv("ORACLE_ADDRESS", ""),
		BatchSize:      getEnvInt("BATCH_SIZE", 1000),

		KlinesStartEpochMs: getEnvInt64("KLINES_START_EPOCH_MS", 1735689600000), // 2025-01-01T00:00:00Z
		KlinesRetryDelay:   getEnvSeconds("KLINES_RETRY_DELAY", 1),
		KlinesMaxRetries:   getEnvInt("KLINES_MAX_RETRIES", 5),
		KlinesRealtimeInterval: time.Duration(getEnvInt("KLINES_REALTIME_INTERVAL_MS", 500)) * time.Millisecond,
	}
}

// RedisAddr returns the "host:port" form expected by go-redis.
func (c *Config) RedisAddr() string { return c.RedisHost + ":" + c.RedisPort }

// DSN returns a libpq-style connection string for gorm's postgres driver.
func (c *Config) DSN() string {
	return "host=" + c.DBHost +
		" port=" + c.DBPort +
		" dbname=" + c.DBName +
		" user=" + c.DBUser +
		" password=" + c.DBPassword +
		" sslmode=disable"
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("[config] invalid int for %s=%q, using default %d", key, v, fallback)
		return fallback
	}
	return n
}

func getEnvInt64(key string, fallback int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		log.Printf("[config] invalid int64 for %s=%q, using default %d", key, v, fallback)
		return fallback
	}
	return n
}

func getEnvSeconds(key string, fallbackSeconds int) time.Duration {
	return time.Duration(getEnvInt(key, fallbackSeconds)) * time.Second
}

func mustEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		log.Fatalf("[config] required env var %s not set", key)
	}
	return v
}
