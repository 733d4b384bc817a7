// Package config loads GraphLite's runtime configuration from environment
// variables.
//
// GraphLite is an embedded library, not a server, so there is no
// connector/port surface to configure — only the knobs the query-execution
// core itself reads: data directory, default schema/graph names,
// transaction timeout, session partitioning, and cache sizing. The loading
// style (GRAPHLITE_-prefixed env vars, getEnv* helpers, LoadFromEnv +
// Validate) follows the teacher's pkg/config/config.go.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all GraphLite configuration.
type Config struct {
	Database DatabaseConfig
	Session  SessionConfig
	Cache    CacheConfig
	Logging  LoggingConfig
}

// DatabaseConfig controls storage and default namespace settings.
type DatabaseConfig struct {
	// DataDir is the directory holding the Badger KV files.
	DataDir string
	// DefaultSchema is the schema installed by Install and used when a
	// session has no current schema set.
	DefaultSchema string
	// DefaultGraph is the graph installed within DefaultSchema.
	DefaultGraph string
	// TransactionTimeout bounds how long an explicit transaction may
	// remain Active with no activity before it is rolled back.
	TransactionTimeout time.Duration
	// MaxConcurrentTransactions limits in-flight transactions across all
	// sessions.
	MaxConcurrentTransactions int
}

// SessionConfig controls the session pool.
type SessionConfig struct {
	// Partitions is the number of independent, separately-locked session
	// pool shards (spec default: 16).
	Partitions int
	// IdleTimeout closes a session that has issued no query for this long.
	IdleTimeout time.Duration
	// Mode selects Instance or Global session-pool scoping.
	Mode string // "instance" | "global"
}

// CacheConfig controls the plan and result caches.
type CacheConfig struct {
	PlanCacheSize    int
	ResultCacheSize  int
	ResultCacheTTL   time.Duration
	Shards           int
}

// LoggingConfig controls the core's logger.
type LoggingConfig struct {
	Level              string
	QueryLogEnabled    bool
	SlowQueryThreshold time.Duration
}

// LoadFromEnv loads configuration from environment variables, applying
// sensible defaults for anything unset. It never fails: call Validate
// afterwards to catch out-of-range values.
func LoadFromEnv() *Config {
	cfg := &Config{}

	cfg.Database.DataDir = getEnv("GRAPHLITE_DATA_DIR", "./data")
	cfg.Database.DefaultSchema = getEnv("GRAPHLITE_DEFAULT_SCHEMA", "/default")
	cfg.Database.DefaultGraph = getEnv("GRAPHLITE_DEFAULT_GRAPH", "default")
	cfg.Database.TransactionTimeout = getEnvDuration("GRAPHLITE_TXN_TIMEOUT", 30*time.Second)
	cfg.Database.MaxConcurrentTransactions = getEnvInt("GRAPHLITE_MAX_CONCURRENT_TXNS", 1000)

	cfg.Session.Partitions = getEnvInt("GRAPHLITE_SESSION_PARTITIONS", 16)
	cfg.Session.IdleTimeout = getEnvDuration("GRAPHLITE_SESSION_IDLE_TIMEOUT", 30*time.Minute)
	cfg.Session.Mode = getEnv("GRAPHLITE_SESSION_MODE", "instance")

	cfg.Cache.PlanCacheSize = getEnvInt("GRAPHLITE_PLAN_CACHE_SIZE", 1000)
	cfg.Cache.ResultCacheSize = getEnvInt("GRAPHLITE_RESULT_CACHE_SIZE", 1000)
	cfg.Cache.ResultCacheTTL = getEnvDuration("GRAPHLITE_RESULT_CACHE_TTL", 5*time.Minute)
	cfg.Cache.Shards = getEnvInt("GRAPHLITE_CACHE_SHARDS", 8)

	cfg.Logging.Level = getEnv("GRAPHLITE_LOG_LEVEL", "INFO")
	cfg.Logging.QueryLogEnabled = getEnvBool("GRAPHLITE_QUERY_LOG_ENABLED", false)
	cfg.Logging.SlowQueryThreshold = getEnvDuration("GRAPHLITE_SLOW_QUERY_THRESHOLD", 5*time.Second)

	return cfg
}

// Validate checks the configuration for out-of-range values.
func (c *Config) Validate() error {
	if c.Database.DataDir == "" {
		return fmt.Errorf("data dir must not be empty")
	}
	if c.Session.Partitions <= 0 {
		return fmt.Errorf("session partitions must be positive, got %d", c.Session.Partitions)
	}
	if c.Session.Mode != "instance" && c.Session.Mode != "global" {
		return fmt.Errorf("session mode must be \"instance\" or \"global\", got %q", c.Session.Mode)
	}
	if c.Cache.Shards <= 0 {
		return fmt.Errorf("cache shards must be positive, got %d", c.Cache.Shards)
	}
	if c.Database.MaxConcurrentTransactions <= 0 {
		return fmt.Errorf("max concurrent transactions must be positive, got %d", c.Database.MaxConcurrentTransactions)
	}
	return nil
}

func (c *Config) String() string {
	return fmt.Sprintf("Config{DataDir: %s, Schema: %s, Graph: %s, Partitions: %d, Mode: %s}",
		c.Database.DataDir, c.Database.DefaultSchema, c.Database.DefaultGraph,
		c.Session.Partitions, c.Session.Mode)
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		val = strings.ToLower(val)
		return val == "true" || val == "1" || val == "yes" || val == "on"
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
		if secs, err := strconv.Atoi(val); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultVal
}
