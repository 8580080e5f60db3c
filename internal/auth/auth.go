package auth

import (
	"os"
	"regexp"
	"strings"

	"github.com/spf13/viper"
)

// DefaultBanxaURL is used when no API URL is configured anywhere.
const DefaultBanxaURL = "https://api.banxa.com"

// Manager resolves provider credentials from the environment, config and the
// auth store, in that order.
type Manager struct {
	store *Store
	v     *viper.Viper
}

// NewManager opens the store under dataDir. A nil v uses the global viper.
func NewManager(dataDir string, v *viper.Viper) (*Manager, error) {
	store, err := NewStore(dataDir)
	if err != nil {
		return nil, err
	}
	if v == nil {
		v = viper.GetViper()
	}
	return &Manager{store: store, v: v}, nil
}

// Store exposes the underlying file store (it doubles as the session's
// identity store).
func (m *Manager) Store() *Store {
	return m.store
}

// BanxaCredentials is the resolved on-ramp configuration. Missing values are
// left empty; the upstream call fails instead.
type BanxaCredentials struct {
	APIURL    string
	PartnerID string
	APIKey    string
	Secret    string
}

// Complete reports whether every value needed to sign a request is present.
func (c BanxaCredentials) Complete() bool {
	return c.PartnerID != "" && c.APIKey != "" && c.Secret != ""
}

// Banxa returns the on-ramp credentials using priority resolution per field:
// 1. Environment variable
// 2. Config file (with {env:VAR} substitution)
// 3. Stored auth.json
func (m *Manager) Banxa() BanxaCredentials {
	stored, _ := m.store.GetCredential(ProviderBanxa)

	creds := BanxaCredentials{
		APIURL:    m.resolve("NEXT_PUBLIC_BANXA_API_URL", "banxa.api_url", stored.APIURL),
		PartnerID: m.resolve("BANXA_PARTNER_ID", "banxa.partner_id", stored.PartnerID),
		APIKey:    m.resolve("BANXA_API_KEY", "banxa.api_key", stored.APIKey),
		Secret:    m.resolve("BANXA_SECRET", "banxa.secret", stored.Secret),
	}
	if creds.APIURL == "" {
		creds.APIURL = DefaultBanxaURL
	}
	return creds
}

// SetBanxa stores on-ramp credentials in auth.json.
func (m *Manager) SetBanxa(cred Credential) error {
	return m.store.SetCredential(ProviderBanxa, cred)
}

func (m *Manager) resolve(envVar, configKey, stored string) string {
	if val := os.Getenv(envVar); val != "" {
		return val
	}
	if val := m.v.GetString(configKey); val != "" {
		if resolved := resolveEnvSubstitution(val); resolved != "" {
			return resolved
		}
	}
	return stored
}

var envRef = regexp.MustCompile(`\{env:([^}]+)\}`)

// resolveEnvSubstitution replaces {env:VAR_NAME} with environment variable values
func resolveEnvSubstitution(value string) string {
	if !strings.Contains(value, "{env:") {
		return value
	}

	return envRef.ReplaceAllStringFunc(value, func(match string) string {
		varName := match[5 : len(match)-1]
		return os.Getenv(varName)
	})
}
