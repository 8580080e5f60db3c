// Package config turns viper settings into a typed configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"golang.org/x/term"
)

// EnvPrefix is prepended to every environment override (AMERA_SERVER_ADDR).
const EnvPrefix = "AMERA"

type Config struct {
	DataDir string
	Chain   string

	Server  ServerConfig
	Banxa   BanxaConfig
	Market  MarketConfig
	Session SessionConfig
	Send    SendConfig
	Log     LogConfig
}

type ServerConfig struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	CORSOrigins  []string
}

// BanxaConfig is what the config file says. Credentials are finally resolved
// by auth.Manager, which also consults the environment and auth.json.
type BanxaConfig struct {
	APIURL    string
	PartnerID string
	APIKey    string
	Secret    string
}

type MarketConfig struct {
	BaseURL     string
	CacheTTL    time.Duration
	MinInterval time.Duration
}

type SessionConfig struct {
	DemoFallback bool
}

// SendConfig limits outgoing Digital USD transfers. MaxPerTx is in token
// units ("10000"); empty disables the cap.
type SendConfig struct {
	MaxPerTx string
}

type LogConfig struct {
	Level  string
	Pretty bool
}

// DefaultDataDir is $HOME/.amera, or ./.amera when there is no home.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".amera"
	}
	return filepath.Join(home, ".amera")
}

// SetDefaults registers defaults and environment binding on v.
// banxa.api_url has no default: auth.Manager falls back to the stored URL,
// then to the public endpoint.
func SetDefaults(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("data_dir", DefaultDataDir())
	v.SetDefault("chain", "ethereum")

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.cors_origins", []string{"*"})

	v.SetDefault("market.base_url", "https://api.coingecko.com/api/v3")
	v.SetDefault("market.cache_ttl", "5m")
	v.SetDefault("market.min_interval", "100ms")

	v.SetDefault("session.demo_fallback", true)
	v.SetDefault("send.max_per_tx", "10000")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", term.IsTerminal(int(os.Stderr.Fd())))
}

// Load reads the typed configuration out of v.
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		DataDir: v.GetString("data_dir"),
		Chain:   v.GetString("chain"),
		Server: ServerConfig{
			Addr:         v.GetString("server.addr"),
			ReadTimeout:  v.GetDuration("server.read_timeout"),
			WriteTimeout: v.GetDuration("server.write_timeout"),
			CORSOrigins:  v.GetStringSlice("server.cors_origins"),
		},
		Banxa: BanxaConfig{
			APIURL:    v.GetString("banxa.api_url"),
			PartnerID: v.GetString("banxa.partner_id"),
			APIKey:    v.GetString("banxa.api_key"),
			Secret:    v.GetString("banxa.secret"),
		},
		Market: MarketConfig{
			BaseURL:     v.GetString("market.base_url"),
			CacheTTL:    v.GetDuration("market.cache_ttl"),
			MinInterval: v.GetDuration("market.min_interval"),
		},
		Session: SessionConfig{
			DemoFallback: v.GetBool("session.demo_fallback"),
		},
		Send: SendConfig{
			MaxPerTx: v.GetString("send.max_per_tx"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Pretty: v.GetBool("log.pretty"),
		},
	}

	if cfg.DataDir == "" {
		return nil, fmt.Errorf("data_dir must not be empty")
	}
	if cfg.Server.Addr == "" {
		return nil, fmt.Errorf("server.addr must not be empty")
	}
	if cfg.Market.CacheTTL < 0 || cfg.Market.MinInterval < 0 {
		return nil, fmt.Errorf("market durations must not be negative")
	}
	return cfg, nil
}
