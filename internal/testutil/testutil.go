// Package testutil holds fixtures shared by package tests.
package testutil

import (
	"os"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
	"github.com/yolodolo42/amera/internal/wallet"
)

// KeyPassword unlocks every account created by Keystore.
const KeyPassword = "correct horse battery"

// BanxaEnv lists the variables that feed partner credentials.
var BanxaEnv = []string{"BANXA_PARTNER_ID", "BANXA_API_KEY", "BANXA_SECRET", "NEXT_PUBLIC_BANXA_API_URL"}

// Unsetenv removes keys for the duration of the test.
func Unsetenv(t *testing.T, keys ...string) {
	t.Helper()
	for _, key := range keys {
		old, had := os.LookupEnv(key)
		require.NoError(t, os.Unsetenv(key))
		t.Cleanup(func() {
			if had {
				_ = os.Setenv(key, old)
			}
		})
	}
}

// ClearBanxaEnv keeps the developer's shell credentials out of a test.
func ClearBanxaEnv(t *testing.T) {
	t.Helper()
	Unsetenv(t, BanxaEnv...)
}

// DataDir returns an isolated data directory with HOME pointed at it, so
// nothing reads or writes the real ~/.amera.
func DataDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	return dir
}

// Keystore opens a cheap-scrypt keystore in a fresh directory holding n
// accounts, all locked with KeyPassword.
func Keystore(t *testing.T, n int) (*wallet.KeystoreManager, []common.Address) {
	t.Helper()
	km, err := wallet.NewKeystoreManager(t.TempDir(), wallet.WithLightScrypt())
	require.NoError(t, err)

	addrs := make([]common.Address, 0, n)
	for i := 0; i < n; i++ {
		acc, err := km.CreateAccount(KeyPassword)
		require.NoError(t, err)
		addrs = append(addrs, acc.Address)
	}
	return km, addrs
}
