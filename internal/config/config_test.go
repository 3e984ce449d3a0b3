package config

import (
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

const (
	ownerHex     = "0x00000000000000000000000000000000000000aA"
	custodianHex = "0x000000000000000000000000000000000000bA17"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("OWNER_ADDRESS", ownerHex)
	t.Setenv("CUSTODY_ADDRESS", custodianHex)
}

func TestLoadDevDefaults(t *testing.T) {
	setRequired(t)
	t.Setenv("APP_ENV", "development")
	t.Setenv("PORT", "")
	t.Setenv("ACCESS_TOKEN_TTL", "")
	t.Setenv("EVENT_STREAM", "")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("REDIS_URL", "")
	t.Setenv("JWT_SECRET", "")
	t.Setenv("REFRESH_SECRET", "")

	cfg, err := Load()
	require.NoError(t, err)
	require.True(t, cfg.IsDev())
	require.Equal(t, common.HexToAddress(ownerHex), cfg.Owner)
	require.Equal(t, common.HexToAddress(custodianHex), cfg.Custodian)
	require.Equal(t, 15*time.Minute, cfg.AccessTokenTTL)
	require.Equal(t, defaultEventStream, cfg.EventStream)
	require.NotEmpty(t, cfg.JWTSecret)
	require.Equal(t, ":8080", cfg.Address())
}

func TestLoadProductionRequiresBackends(t *testing.T) {
	setRequired(t)
	t.Setenv("APP_ENV", "production")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")

	_, err := Load()
	require.ErrorContains(t, err, "DATABASE_URL")

	t.Setenv("DATABASE_URL", "postgres://localhost/vault")
	t.Setenv("JWT_SECRET", "")
	_, err = Load()
	require.ErrorContains(t, err, "JWT_SECRET")

	t.Setenv("JWT_SECRET", "a")
	t.Setenv("REFRESH_SECRET", "b")
	cfg, err := Load()
	require.NoError(t, err)
	require.False(t, cfg.IsDev())
}

func TestLoadRejectsBadAddresses(t *testing.T) {
	setRequired(t)
	t.Setenv("APP_ENV", "dev")
	t.Setenv("OWNER_ADDRESS", "not-an-address")
	_, err := Load()
	require.ErrorContains(t, err, "OWNER_ADDRESS")

	t.Setenv("OWNER_ADDRESS", "0x0000000000000000000000000000000000000000")
	_, err = Load()
	require.ErrorContains(t, err, "zero address")
}

func TestLoadDurations(t *testing.T) {
	setRequired(t)
	t.Setenv("APP_ENV", "dev")
	t.Setenv("SHUTDOWN_TIMEOUT_SECONDS", "3")
	t.Setenv("IDEMPOTENCY_TTL", "90m")
	t.Setenv("RATE_LIMIT_PER_MINUTE", "7")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 3*time.Second, cfg.ShutdownPeriod)
	require.Equal(t, 90*time.Minute, cfg.IdempotencyTTL)
	require.Equal(t, 7, cfg.RateLimitPerMinute)

	t.Setenv("IDEMPOTENCY_TTL_SECONDS", "abc")
	_, err = Load()
	require.Error(t, err)
}

func TestLoadPoolSizes(t *testing.T) {
	setRequired(t)
	t.Setenv("APP_ENV", "dev")
	t.Setenv("DB_MAX_CONNS", "20")
	t.Setenv("DB_MIN_CONNS", "")
	t.Setenv("REDIS_POOL_SIZE", "16")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 20, cfg.DBMaxConns)
	require.Zero(t, cfg.DBMinConns)
	require.Equal(t, 16, cfg.RedisPoolSize)

	t.Setenv("DB_MAX_CONNS", "-1")
	_, err = Load()
	require.ErrorContains(t, err, "DB_MAX_CONNS")
}
