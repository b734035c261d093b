package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		"SERVICE_NAME", "HTTP_PORT", "STORE_DRIVER", "POSTGRES_DSN", "SQLITE_PATH", "KAFKA_BROKERS",
		"COUNCIL_ROSTER_PATH", "COUNCIL_DEFAULT_THRESHOLD", "COUNCIL_DEFAULT_SIZE", "COUNCIL_VOTING_WINDOW",
		"WORKER_POLL_INTERVAL", "ENABLE_COUNCIL_CUTOFF_SWEEPER", "ENABLE_COUNCIL_FINALIZATION_CONSUMER",
	} {
		t.Setenv(name, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "coai-council", cfg.ServiceName)
	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, StoreDriverMemory, cfg.StoreDriver)
	assert.Equal(t, []string{"localhost:9092"}, cfg.KafkaBrokers)
	assert.InDelta(t, 0.67, cfg.CouncilDefaultThreshold, 1e-9)
	assert.Zero(t, cfg.CouncilDefaultSize)
	assert.Zero(t, cfg.CouncilVotingWindow)
	assert.Equal(t, 2*time.Second, cfg.WorkerPollInterval)
	assert.True(t, cfg.EnableCouncilCutoffSweeper)
	assert.True(t, cfg.EnableCouncilFinalizationConsumer)
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("STORE_DRIVER", "SQLite")
	t.Setenv("SQLITE_PATH", "/tmp/council.db")
	t.Setenv("KAFKA_BROKERS", "k1:9092, ,k2:9092")
	t.Setenv("COUNCIL_DEFAULT_THRESHOLD", "0.75")
	t.Setenv("COUNCIL_DEFAULT_SIZE", "9")
	t.Setenv("COUNCIL_VOTING_WINDOW", "90")
	t.Setenv("WORKER_POLL_INTERVAL", "500ms")
	t.Setenv("ENABLE_COUNCIL_CUTOFF_SWEEPER", "off")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, StoreDriverSQLite, cfg.StoreDriver)
	assert.Equal(t, "/tmp/council.db", cfg.SQLitePath)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.InDelta(t, 0.75, cfg.CouncilDefaultThreshold, 1e-9)
	assert.Equal(t, 9, cfg.CouncilDefaultSize)
	assert.Equal(t, 90*time.Second, cfg.CouncilVotingWindow)
	assert.Equal(t, 500*time.Millisecond, cfg.WorkerPollInterval)
	assert.False(t, cfg.EnableCouncilCutoffSweeper)
}

func TestLoadPostgresDSNSelectsDriver(t *testing.T) {
	clearEnv(t)
	t.Setenv("POSTGRES_DSN", "postgres://localhost/coai")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, StoreDriverPostgres, cfg.StoreDriver)
}

func TestLoadRejectsMalformedValues(t *testing.T) {
	cases := map[string]string{
		"STORE_DRIVER":              "mongo",
		"COUNCIL_DEFAULT_THRESHOLD": "two-thirds",
		"COUNCIL_DEFAULT_SIZE":      "-3",
		"COUNCIL_VOTING_WINDOW":     "soon",
	}
	for name, value := range cases {
		t.Run(name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(name, value)
			_, err := Load()
			require.Error(t, err)
		})
	}

	t.Run("postgres without dsn", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("STORE_DRIVER", "postgres")
		_, err := Load()
		require.Error(t, err)
	})
}

func TestEnvBoolFallsBackOnUnknownValue(t *testing.T) {
	t.Setenv("ENABLE_COUNCIL_CUTOFF_SWEEPER", "maybe")
	assert.True(t, envBool("ENABLE_COUNCIL_CUTOFF_SWEEPER", true))
	assert.False(t, envBool("ENABLE_COUNCIL_CUTOFF_SWEEPER", false))
}
