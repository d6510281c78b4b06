package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/bidhaus")
	t.Setenv("JWT_SECRET", "secret")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, time.Minute, cfg.SweepInterval)
	assert.Equal(t, 3, cfg.RetryAttempts)
	assert.Equal(t, 25*time.Millisecond, cfg.RetryBaseDelay)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/bidhaus")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("LISTEN_ADDR", ":9999")
	t.Setenv("SWEEP_INTERVAL", "15s")
	t.Setenv("BID_RETRY_ATTEMPTS", "5")
	t.Setenv("BID_RETRY_BASE_DELAY", "50ms")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":9999", cfg.ListenAddr)
	assert.Equal(t, 15*time.Second, cfg.SweepInterval)
	assert.Equal(t, 5, cfg.RetryAttempts)
	assert.Equal(t, 50*time.Millisecond, cfg.RetryBaseDelay)
}

func TestLoad_RequiresDatabaseAndSecret(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("JWT_SECRET", "secret")
	_, err := Load()
	assert.Error(t, err)

	t.Setenv("DATABASE_URL", "postgres://localhost/bidhaus")
	t.Setenv("JWT_SECRET", "")
	_, err = Load()
	assert.Error(t, err)
}

func TestLoad_RejectsBadValues(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/bidhaus")
	t.Setenv("JWT_SECRET", "secret")

	t.Setenv("SWEEP_INTERVAL", "soon")
	_, err := Load()
	assert.Error(t, err)
	t.Setenv("SWEEP_INTERVAL", "")

	t.Setenv("BID_RETRY_ATTEMPTS", "0")
	_, err = Load()
	assert.Error(t, err)
}
