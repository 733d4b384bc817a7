package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadFromEnvDefaults(t *testing.T) {
	cfg := LoadFromEnv()
	assert.Equal(t, "./data", cfg.Database.DataDir)
	assert.Equal(t, "/default", cfg.Database.DefaultSchema)
	assert.Equal(t, "default", cfg.Database.DefaultGraph)
	assert.Equal(t, 30*time.Second, cfg.Database.TransactionTimeout)
	assert.Equal(t, 1000, cfg.Database.MaxConcurrentTransactions)
	assert.Equal(t, 16, cfg.Session.Partitions)
	assert.Equal(t, "instance", cfg.Session.Mode)
	assert.Equal(t, 1000, cfg.Cache.PlanCacheSize)
	assert.Equal(t, 8, cfg.Cache.Shards)
	assert.Equal(t, "INFO", cfg.Logging.Level)
	assert.False(t, cfg.Logging.QueryLogEnabled)
}

func TestLoadFromEnvOverridesDefaults(t *testing.T) {
	t.Setenv("GRAPHLITE_DATA_DIR", "/var/lib/graphlite")
	t.Setenv("GRAPHLITE_DEFAULT_SCHEMA", "/eng")
	t.Setenv("GRAPHLITE_SESSION_PARTITIONS", "32")
	t.Setenv("GRAPHLITE_SESSION_MODE", "global")
	t.Setenv("GRAPHLITE_QUERY_LOG_ENABLED", "true")
	t.Setenv("GRAPHLITE_TXN_TIMEOUT", "45s")

	cfg := LoadFromEnv()
	assert.Equal(t, "/var/lib/graphlite", cfg.Database.DataDir)
	assert.Equal(t, "/eng", cfg.Database.DefaultSchema)
	assert.Equal(t, 32, cfg.Session.Partitions)
	assert.Equal(t, "global", cfg.Session.Mode)
	assert.True(t, cfg.Logging.QueryLogEnabled)
	assert.Equal(t, 45*time.Second, cfg.Database.TransactionTimeout)
}

func TestGetEnvDurationFallsBackToBareSeconds(t *testing.T) {
	t.Setenv("GRAPHLITE_TXN_TIMEOUT", "90")
	cfg := LoadFromEnv()
	assert.Equal(t, 90*time.Second, cfg.Database.TransactionTimeout)
}

func TestGetEnvDurationIgnoresGarbageAndKeepsDefault(t *testing.T) {
	t.Setenv("GRAPHLITE_TXN_TIMEOUT", "not-a-duration")
	cfg := LoadFromEnv()
	assert.Equal(t, 30*time.Second, cfg.Database.TransactionTimeout)
}

func TestGetEnvIntIgnoresGarbageAndKeepsDefault(t *testing.T) {
	t.Setenv("GRAPHLITE_SESSION_PARTITIONS", "not-a-number")
	cfg := LoadFromEnv()
	assert.Equal(t, 16, cfg.Session.Partitions)
}

func TestGetEnvBoolRecognizesTruthyVariants(t *testing.T) {
	for _, v := range []string{"true", "TRUE", "1", "yes", "on"} {
		t.Setenv("GRAPHLITE_QUERY_LOG_ENABLED", v)
		cfg := LoadFromEnv()
		assert.True(t, cfg.Logging.QueryLogEnabled, "expected %q to be truthy", v)
	}
}

func TestGetEnvBoolFalseOnAnythingElse(t *testing.T) {
	t.Setenv("GRAPHLITE_QUERY_LOG_ENABLED", "nope")
	cfg := LoadFromEnv()
	assert.False(t, cfg.Logging.QueryLogEnabled)
}

func TestValidateRejectsEmptyDataDir(t *testing.T) {
	cfg := LoadFromEnv()
	cfg.Database.DataDir = ""
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsNonPositivePartitions(t *testing.T) {
	cfg := LoadFromEnv()
	cfg.Session.Partitions = 0
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsUnknownSessionMode(t *testing.T) {
	cfg := LoadFromEnv()
	cfg.Session.Mode = "weird"
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsNonPositiveCacheShards(t *testing.T) {
	cfg := LoadFromEnv()
	cfg.Cache.Shards = 0
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsNonPositiveMaxConcurrentTransactions(t *testing.T) {
	cfg := LoadFromEnv()
	cfg.Database.MaxConcurrentTransactions = 0
	assert.Error(t, cfg.Validate())
}

func TestValidateAcceptsDefaults(t *testing.T) {
	cfg := LoadFromEnv()
	assert.NoError(t, cfg.Validate())
}

func TestStringIncludesKeyFields(t *testing.T) {
	cfg := LoadFromEnv()
	s := cfg.String()
	assert.Contains(t, s, cfg.Database.DataDir)
	assert.Contains(t, s, cfg.Session.Mode)
}
