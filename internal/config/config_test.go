package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yolodolo42/amera/internal/testutil"
)

func TestLoadDefaults(t *testing.T) {
	v := viper.New()
	SetDefaults(v)

	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, "ethereum", cfg.Chain)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, []string{"*"}, cfg.Server.CORSOrigins)
	assert.Equal(t, "https://api.coingecko.com/api/v3", cfg.Market.BaseURL)
	assert.Equal(t, 5*time.Minute, cfg.Market.CacheTTL)
	assert.Equal(t, 100*time.Millisecond, cfg.Market.MinInterval)
	assert.True(t, cfg.Session.DemoFallback)
	assert.Equal(t, "10000", cfg.Send.MaxPerTx)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Empty(t, cfg.Banxa.APIURL)
	assert.Equal(t, DefaultDataDir(), cfg.DataDir)
}

func TestLoadFromFile(t *testing.T) {
	dir := testutil.DataDir(t)
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
data_dir: /var/lib/amera
chain: base
server:
  addr: 127.0.0.1:9000
  write_timeout: 30s
banxa:
  partner_id: partner-1
market:
  cache_ttl: 1m
session:
  demo_fallback: false
log:
  level: debug
`), 0600))

	v := viper.New()
	SetDefaults(v)
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())

	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/amera", cfg.DataDir)
	assert.Equal(t, "base", cfg.Chain)
	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Addr)
	assert.Equal(t, 30*time.Second, cfg.Server.WriteTimeout)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, "partner-1", cfg.Banxa.PartnerID)
	assert.Equal(t, time.Minute, cfg.Market.CacheTTL)
	assert.False(t, cfg.Session.DemoFallback)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("AMERA_SERVER_ADDR", ":9999")
	t.Setenv("AMERA_SESSION_DEMO_FALLBACK", "false")

	v := viper.New()
	SetDefaults(v)

	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, ":9999", cfg.Server.Addr)
	assert.False(t, cfg.Session.DemoFallback)
}

func TestLoadRejectsEmptyAddr(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	v.Set("server.addr", "")

	_, err := Load(v)
	assert.Error(t, err)
}
