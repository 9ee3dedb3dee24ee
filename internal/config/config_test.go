package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/marketengine/internal/domain"
)

const authorityHex = "0x0101010101010101010101010101010101010101010101010101010101010101"

func writeTOML(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadMergesFileAndEnv(t *testing.T) {
	path := writeTOML(t, `
log_level = "debug"

[engine]
authority = "`+authorityHex+`"
inactivity_timeout = "48h"
genesis = 2025-03-01T00:00:00Z

[engine.fees]
center_taker_rate = 40000
extreme_taker_rate = 1000
platform_share = 700000
maker_rebate_share = 250000
creator_incentive_share = 50000

[keeper]
interval = "30s"
`)
	t.Setenv("MARKETENGINE_REDIS_ADDR", "redis:6380")
	t.Setenv("MARKETENGINE_ENGINE_TERMINATION_CHECK_FEE", "2500")
	t.Setenv("MARKETENGINE_SERVER_CORS_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 48*time.Hour, cfg.Engine.InactivityTimeout.Duration)
	assert.True(t, cfg.Engine.Genesis.Equal(time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, uint32(40_000), cfg.Engine.Fees.CenterTakerRate)
	assert.Equal(t, 30*time.Second, cfg.Keeper.Interval.Duration)
	assert.Equal(t, "redis:6380", cfg.Redis.Addr)
	assert.Equal(t, uint64(2_500), cfg.Engine.TerminationCheckFee)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
	assert.Equal(t, uint64(domain.DefaultMarketCreationFee), cfg.Engine.MarketCreationFee, "defaults survive")
}

func TestValidateAggregatesProblems(t *testing.T) {
	cfg := Defaults()
	cfg.LogLevel = "loud"
	cfg.Engine.Fees.PlatformShare = 1
	cfg.Engine.Fees.ExtremeTakerRate = cfg.Engine.Fees.CenterTakerRate + 1
	cfg.Engine.Operators = []string{"0x12"}
	cfg.Postgres.PoolMinConns = 50

	err := cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{
		"log_level",
		"engine: authority must be set",
		"shares must sum to 1000000",
		"center_taker_rate must be >= extreme_taker_rate",
		`operator "0x12"`,
		"pool_min_conns must not exceed",
	} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestGlobalConfig(t *testing.T) {
	cfg := Defaults()
	cfg.Engine.Authority = authorityHex
	cfg.Engine.Operators = []string{authorityHex}
	now := time.Unix(1_700_000_000, 0)

	g, err := cfg.GlobalConfig(now)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), g.Version)
	assert.Equal(t, domain.Pubkey{1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1}, g.Authority)
	assert.True(t, g.IsOperator(g.Authority))
	assert.True(t, g.Keeper.IsZero())
	assert.Equal(t, domain.DefaultInactivityTimeout, g.InactivityTimeout)
	assert.Equal(t, now, g.UpdatedAt)

	cfg.Engine.Keeper = "nope"
	_, err = cfg.GlobalConfig(now)
	assert.Error(t, err)
}

func TestRedactedConfig(t *testing.T) {
	cfg := Defaults()
	cfg.Postgres.Password = "pw"
	cfg.Server.APIKey = "key"
	cfg.Wallet.Seed = "0xabc"

	out := RedactedConfig(&cfg)
	assert.Equal(t, "***", out.Postgres.Password)
	assert.Equal(t, "***", out.Server.APIKey)
	assert.Equal(t, "***", out.Wallet.Seed)
	assert.Empty(t, out.Redis.Password)
	assert.Equal(t, "pw", cfg.Postgres.Password)

	out.Server.CORSOrigins[0] = "changed"
	assert.Equal(t, "http://localhost:3000", cfg.Server.CORSOrigins[0])
}

func TestRedactDSN(t *testing.T) {
	assert.Equal(t, "postgres://engine:***@db:5432/engine?sslmode=disable",
		redactDSN("postgres://engine:hunter2@db:5432/engine?sslmode=disable"))
	assert.Equal(t, "postgres://engine:***@db/engine", redactDSN("postgres://engine:p%40ss@db/engine"))
	assert.Equal(t, "postgres://db/engine", redactDSN("postgres://db/engine"))
	assert.Equal(t, "***", redactDSN("host=db password=hunter2"))
	assert.Empty(t, redactDSN(""))
}
