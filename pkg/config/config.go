package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"trading-bot/pkg/exchanges/common"
)

// Config holds environment-driven settings for the trading bot.
type Config struct {
	Port string

	// Binance
	BinanceTestnet   bool
	BinanceFutures   bool // USDT-M futures instead of spot
	BinanceAPIKey    string
	BinanceAPISecret string
	RecvWindow       int64 // ms

	// REST / streaming behaviour
	HTTPTimeout      time.Duration
	RESTRequestsPerS float64
	WSReconnectDelay time.Duration

	// Workspace
	DBPath         string
	StrategiesFile string
	Watchlist      []string

	// API auth; empty disables it
	JWTSecret string

	// Logging
	LogLevel string
	LogFile  string
}

// Load reads environment variables (optionally via .env) into Config.
func Load() (*Config, error) {
	// Ignore error so the app still starts when .env is missing.
	_ = godotenv.Load()

	cfg := &Config{
		Port:             getEnv("PORT", "8080"),
		BinanceTestnet:   getEnv("BINANCE_TESTNET", "false") == "true",
		BinanceFutures:   getEnv("BINANCE_FUTURES", "false") == "true",
		BinanceAPIKey:    os.Getenv("BINANCE_API_KEY"),
		BinanceAPISecret: os.Getenv("BINANCE_API_SECRET"),
		RecvWindow:       int64(getEnvInt("BINANCE_RECV_WINDOW_MS", 5000)),
		HTTPTimeout:      time.Duration(getEnvInt("HTTP_TIMEOUT_MS", 10000)) * time.Millisecond,
		RESTRequestsPerS: getEnvFloat("REST_RPS", 10),
		WSReconnectDelay: time.Duration(getEnvInt("WS_RECONNECT_DELAY_MS", 2000)) * time.Millisecond,
		DBPath:           getEnv("DB_PATH", "./data/workspace.db"),
		StrategiesFile:   getEnv("STRATEGIES_FILE", ""),
		Watchlist:        splitAndTrim(getEnv("WATCHLIST", "")),
		JWTSecret:        os.Getenv("JWT_SECRET"),
		LogLevel:         strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFile:          getEnv("LOG_FILE", ""),
	}
	return cfg, cfg.Validate()
}

// Market returns the venue selected by BINANCE_FUTURES.
func (c *Config) Market() common.MarketType {
	if c.BinanceFutures {
		return common.MarketUSDTFut
	}
	return common.MarketSpot
}

// Validate rejects configurations the bot cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.BinanceAPIKey == "" || c.BinanceAPISecret == "" {
		errs = append(errs, errors.New("BINANCE_API_KEY and BINANCE_API_SECRET are required"))
	}
	if c.HTTPTimeout <= 0 {
		errs = append(errs, errors.New("HTTP_TIMEOUT_MS must be positive"))
	}
	if c.WSReconnectDelay <= 0 {
		errs = append(errs, errors.New("WS_RECONNECT_DELAY_MS must be positive"))
	}
	if c.RESTRequestsPerS <= 0 {
		errs = append(errs, errors.New("REST_RPS must be positive"))
	}
	if c.DBPath == "" {
		errs = append(errs, errors.New("DB_PATH is empty"))
	}
	return errors.Join(errs...)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func splitAndTrim(val string) []string {
	parts := strings.Split(val, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.ToUpper(strings.TrimSpace(p)); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}
