/**
 * @description
 * Configuration loader for the Polyndex indexer.
 * Responsible for reading environment variables, setting defaults, and
 * performing strict validation.
 *
 * @dependencies
 * - github.com/joho/godotenv: For loading .env files
 * - standard "os": For reading env vars
 *
 * @notes
 * - Fails fast if critical variables (DATABASE_URL) are missing.
 * - Upstream base URLs are injected into the respective clients, never read
 *   from the environment at call sites.
 */

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the indexer
type Config struct {
	Server     ServerConfig
	DB         DBConfig
	Redis      RedisConfig
	Polymarket PolymarketConfig
	Sync       SyncConfig
	Realtime   RealtimeConfig
	Retention  RetentionConfig
}

// ServerConfig holds the health/status HTTP server settings
type ServerConfig struct {
	Port string
	Env  string // "development" or "production"
}

// DBConfig holds PostgreSQL settings
type DBConfig struct {
	URL          string
	PoolMax      int
	QueryTimeout time.Duration
}

// RedisConfig holds Redis settings
type RedisConfig struct {
	URL string
}

// PolymarketConfig holds upstream API endpoints and optional CLOB credentials
type PolymarketConfig struct {
	GammaURL   string
	ClobURL    string
	DataAPIURL string
	WSURL      string

	// Optional L2 credentials for signed CLOB requests
	Address    string
	APIKey     string
	APISecret  string
	Passphrase string
}

// SyncConfig holds batch sync cadences and limits
type SyncConfig struct {
	MarketsInterval    time.Duration
	TradesInterval     time.Duration
	EnableTradesSync   bool
	MarketsBatchSize   int
	TradesBatchSize    int
	TradesMarketLimit  int // 0 = unlimited
	ClobAuditInterval  time.Duration
	ClobAuditBatchSize int
	ClobAuditWorkers   int
	StaleThreshold     time.Duration
}

// RealtimeConfig holds WebSocket ingestion settings
type RealtimeConfig struct {
	PriceFlushInterval   time.Duration
	ReconnectInterval    time.Duration
	MaxReconnectAttempts int
	Connections          int
}

// RetentionConfig holds the retention-sweep windows
type RetentionConfig struct {
	PriceHistoryDays int
	TradesDays       int
}

// Load reads .env file and populates the Config struct
func Load() (*Config, error) {
	// Attempt to load .env, but don't crash if it fails (prod injects env vars directly)
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port: getEnv("PORT", "8080"),
			Env:  getEnv("GO_ENV", "development"),
		},
		DB: DBConfig{
			URL:          getEnv("DATABASE_URL", ""),
			PoolMax:      getEnvAsInt("DB_POOL_MAX", 20),
			QueryTimeout: getEnvAsMillis("QUERY_TIMEOUT_MS", 30_000),
		},
		Redis: RedisConfig{
			URL: getEnv("REDIS_URL", "redis://localhost:6379"),
		},
		Polymarket: PolymarketConfig{
			GammaURL:   getEnv("CATALOG_BASE_URL", "https://gamma-api.polymarket.com"),
			ClobURL:    getEnv("CLOB_BASE_URL", "https://clob.polymarket.com"),
			DataAPIURL: getEnv("DATA_BASE_URL", "https://data-api.polymarket.com"),
			WSURL:      getEnv("WS_URL", "wss://ws-subscriptions-clob.polymarket.com/ws/market"),
			Address:    sanitizeCredential(getEnv("POLY_ADDRESS", "")),
			APIKey:     sanitizeCredential(getEnv("POLY_API_KEY", "")),
			APISecret:  sanitizeCredential(getEnv("POLY_API_SECRET", "")),
			Passphrase: sanitizeCredential(getEnv("POLY_PASSPHRASE", "")),
		},
		Sync: SyncConfig{
			MarketsInterval:    getEnvAsMillis("MARKETS_INTERVAL_MS", 5*60*1000),
			TradesInterval:     getEnvAsMillis("TRADES_INTERVAL_MS", 60*1000),
			EnableTradesSync:   getEnvAsBool("ENABLE_TRADES_SYNC", true),
			MarketsBatchSize:   getEnvAsInt("MARKETS_BATCH_SIZE", 500),
			TradesBatchSize:    getEnvAsInt("TRADES_BATCH_SIZE", 500),
			TradesMarketLimit:  getEnvAsInt("TRADES_SYNC_MARKET_LIMIT", 100),
			ClobAuditInterval:  getEnvAsMillis("CLOB_AUDIT_INTERVAL_MS", 30*60*1000),
			ClobAuditBatchSize: getEnvAsInt("CLOB_AUDIT_BATCH_SIZE", 200),
			ClobAuditWorkers:   getEnvAsInt("CLOB_AUDIT_CONCURRENCY", 8),
			StaleThreshold:     getEnvAsMillis("SYNC_STALE_THRESHOLD_MS", 15*60*1000),
		},
		Realtime: RealtimeConfig{
			PriceFlushInterval:   getEnvAsMillis("PRICE_FLUSH_INTERVAL_MS", 1000),
			ReconnectInterval:    getEnvAsMillis("WS_RECONNECT_INTERVAL_MS", 3000),
			MaxReconnectAttempts: getEnvAsInt("WS_MAX_RECONNECT_ATTEMPTS", 10),
			Connections:          getEnvAsInt("WS_CONNECTIONS", 1),
		},
		Retention: RetentionConfig{
			PriceHistoryDays: getEnvAsInt("PRICE_HISTORY_RETENTION_DAYS", 30),
			TradesDays:       getEnvAsInt("TRADES_RETENTION_DAYS", 7),
		},
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validate checks for required variables and sane bounds
func validate(cfg *Config) error {
	if cfg.DB.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.Realtime.Connections < 1 {
		return fmt.Errorf("WS_CONNECTIONS must be >= 1, got %d", cfg.Realtime.Connections)
	}
	if cfg.Sync.MarketsBatchSize < 1 {
		return fmt.Errorf("MARKETS_BATCH_SIZE must be >= 1, got %d", cfg.Sync.MarketsBatchSize)
	}
	if cfg.Sync.ClobAuditWorkers < 1 {
		cfg.Sync.ClobAuditWorkers = 1
	}
	return nil
}

// HasClobCredentials reports whether L2 signing credentials are configured
func (c *PolymarketConfig) HasClobCredentials() bool {
	return c.APIKey != "" && c.APISecret != "" && c.Passphrase != ""
}

// Helper to get env var with default
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func sanitizeCredential(value string) string {
	trimmed := strings.TrimSpace(value)
	return strings.Trim(trimmed, "\"")
}

// Helper to get env var as int
func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return fallback
}

// Helper to get env var as bool
func getEnvAsBool(key string, fallback bool) bool {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return fallback
}

// Helper to read millisecond env vars as durations
func getEnvAsMillis(key string, fallbackMs int) time.Duration {
	return time.Duration(getEnvAsInt(key, fallbackMs)) * time.Millisecond
}
