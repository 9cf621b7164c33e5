package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	_ = os.Unsetenv("CYCLARB_CONFIG")
	_ = os.Unsetenv("CYCLARB_LOG_LEVEL")
	_ = os.Unsetenv("CYCLARB_MAX_HOPS")

	c := Load()
	assert.Equal(t, "info", c.Logging.Level)
	assert.Equal(t, 3, c.Discovery.MaxHops)
	assert.Equal(t, 40, c.Discovery.MaxOutDegree)
	assert.Equal(t, "memory", c.Guard.Store.Kind)
	require.NoError(t, c.Validate())
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("CYCLARB_LOG_LEVEL", "debug")
	t.Setenv("CYCLARB_BASE_ASSETS", "SOL,USDC,RAY")
	t.Setenv("CYCLARB_COOLDOWN_SECONDS", "45")
	c := Load()
	assert.Equal(t, "debug", c.Logging.Level)
	assert.Equal(t, []string{"SOL", "USDC", "RAY"}, c.Discovery.BaseAssets)
	assert.Equal(t, 45, c.Guard.CooldownSeconds)
}

func TestValidateRejectsBadHopBounds(t *testing.T) {
	c := Load()
	c.Discovery.MinHops = 3
	c.Discovery.MaxHops = 2
	assert.Error(t, c.Validate())

	c = Load()
	c.Discovery.MaxHops = 5
	assert.Error(t, c.Validate())
}

func TestValidateRejectsBadSizing(t *testing.T) {
	c := Load()
	c.Profit.SizingPolicy = "search"
	c.Profit.MinSize = 100
	c.Profit.MaxSize = 10
	assert.Error(t, c.Validate())

	c = Load()
	c.Profit.SizingPolicy = "sweep"
	c.Profit.TradeSizes = nil
	assert.Error(t, c.Validate())

	c = Load()
	c.Profit.SizingPolicy = "guess"
	assert.Error(t, c.Validate())
}

func TestValidateRejectsBadGuardWindows(t *testing.T) {
	c := Load()
	c.Guard.RetentionSeconds = 5
	c.Guard.CooldownSeconds = 30
	assert.Error(t, c.Validate())

	c = Load()
	c.Guard.MaxSameTokenRepeats = 0
	assert.Error(t, c.Validate())
}

func TestValidateLedgerStore(t *testing.T) {
	c := Load()
	c.Guard.Store.Kind = "sqlite"
	c.Guard.Store.Path = ""
	assert.Error(t, c.Validate())

	c.Guard.Store.Path = "/tmp/ledger.db"
	assert.NoError(t, c.Validate())

	c.Guard.Store.Kind = "redis"
	c.Guard.Store.Addr = ""
	assert.Error(t, c.Validate())
}

func TestOscillationWindowDefaultsToCooldown(t *testing.T) {
	c := Load()
	c.Guard.CooldownSeconds = 30
	c.Guard.OscillationSeconds = 0
	assert.Equal(t, c.CooldownWindow(), c.OscillationWindow())

	c.Guard.OscillationSeconds = 60
	assert.NotEqual(t, c.CooldownWindow(), c.OscillationWindow())
}
