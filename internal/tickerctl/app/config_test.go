package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("TICKERWATCH_API_URL", "https://api.example.com/")
	t.Setenv("TICKERWATCH_STORE_DRIVER", "SQLite")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	require.Equal(t, "https://api.example.com", cfg.APIURL)
	require.Equal(t, DriverSQLite, cfg.StoreDriver)
	require.Equal(t, 30*time.Minute, cfg.InactivityTimeout)
	require.Equal(t, "127.0.0.1:8765", cfg.CallbackAddr)
	require.Zero(t, cfg.RequestTimeout)
	require.NotEmpty(t, cfg.DatabaseFile)
	require.NotEmpty(t, cfg.MasterKeyPath)
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("TICKERWATCH_STORE_DRIVER", "redis")
	t.Setenv("TICKERWATCH_REDIS_ADDR", "cache:6380")
	t.Setenv("TICKERWATCH_INACTIVITY_TIMEOUT", "5m")
	t.Setenv("TICKERWATCH_REQUESTS_PER_SECOND", "2.5")
	t.Setenv("TICKERWATCH_DATABASE_FILE", "/tmp/creds.db")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	require.Equal(t, DriverRedis, cfg.StoreDriver)
	require.Equal(t, "cache:6380", cfg.RedisAddr)
	require.Equal(t, 5*time.Minute, cfg.InactivityTimeout)
	require.InDelta(t, 2.5, cfg.RequestsPerSecond, 0.0001)
	require.Equal(t, "/tmp/creds.db", cfg.DatabaseFile)
}

func TestLoadConfigRejectsBadValues(t *testing.T) {
	t.Setenv("TICKERWATCH_STORE_DRIVER", "etcd")
	_, err := LoadConfig()
	require.ErrorContains(t, err, "unknown store driver")

	t.Setenv("TICKERWATCH_STORE_DRIVER", "memory")
	t.Setenv("TICKERWATCH_INACTIVITY_TIMEOUT", "soon")
	_, err = LoadConfig()
	require.ErrorContains(t, err, "parse env")
}
