package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yolodolo42/amera/internal/session"
)

var addressRe = regexp.MustCompile(`0x[0-9a-fA-F]{40}`)

func TestSession_Demo(t *testing.T) {
	h := newHarness(t)

	out := h.mustRun("session", "connect", "--demo")
	assert.Contains(t, out, session.DemoAddress)
	assert.Contains(t, out, "(demo)")
	assert.Contains(t, out, "Ethereum Mainnet")
	assert.Contains(t, out, "1.5 ETH")

	out = h.mustRun("session", "status", "--json")
	var snap struct {
		ChainID int64 `json:"chain_id"`
		IsMock  bool  `json:"is_mock"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &snap), out)
	assert.True(t, snap.IsMock)
	assert.Equal(t, int64(1), snap.ChainID)

	out = h.mustRun("session", "switch", "base")
	assert.Contains(t, out, "Switched to Base Mainnet")
	out = h.mustRun("session", "status")
	assert.Contains(t, out, "Base Mainnet")

	_, err := h.run("", "session", "switch")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chain argument required")

	out = h.mustRun("portfolio")
	assert.Contains(t, out, "(demo)")
	assert.Contains(t, out, "USD Coin")
	assert.Contains(t, out, "1500.0 USDC")

	_, err = h.run("", "send", "--to", "0x00000000000000000000000000000000000000bb", "--amount", "1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "demo wallet")

	out = h.mustRun("session", "disconnect")
	assert.Contains(t, out, "Wallet disconnected.")
	out = h.mustRun("session", "status")
	assert.Contains(t, out, "disconnected")
	assert.NotContains(t, out, session.DemoAddress)

	_, err = h.run("", "session", "switch", "base")
	assert.ErrorIs(t, err, session.ErrNotConnected)
}

func TestSession_ConnectWithoutWallet(t *testing.T) {
	t.Run("falls back to demo", func(t *testing.T) {
		h := newHarness(t)
		out := h.mustRun("session", "connect")
		assert.Contains(t, out, "Wallet unavailable (no provider)")
		assert.Contains(t, out, session.DemoAddress)
	})

	t.Run("fallback disabled", func(t *testing.T) {
		h := newHarness(t)
		t.Setenv("AMERA_SESSION_DEMO_FALLBACK", "false")
		_, err := h.run("", "session", "connect")
		assert.ErrorIs(t, err, session.ErrNoProvider)

		out := h.mustRun("session", "status")
		assert.Contains(t, out, "disconnected")
	})
}

func TestSession_Login(t *testing.T) {
	h := newHarness(t)

	out := h.mustRun("session", "login", "--email", "ada@example.com", "--name", "Ada")
	assert.Contains(t, out, "Signed in as Ada")
	out = h.mustRun("session", "status")
	assert.Contains(t, out, "Ada <ada@example.com>")
	assert.Contains(t, out, "disconnected")

	h.passwords = []string{"password123", "password123"}
	out = h.mustRun("session", "login", "--email", "ada@example.com", "--name", "Ada", "--create-wallet")
	addr := addressRe.FindString(out)
	require.NotEmpty(t, addr, out)

	out = h.mustRun("session", "status")
	assert.Contains(t, out, addr)
	assert.NotContains(t, out, "(demo)")

	out = h.mustRun("vault", "positions")
	assert.Contains(t, out, "No vault positions.")

	out = h.mustRun("session", "logout")
	assert.Contains(t, out, "Signed out.")
	out = h.mustRun("session", "status")
	assert.NotContains(t, out, "Ada")

	_, err := h.run("", "vault", "positions")
	assert.Error(t, err)

	t.Run("validation", func(t *testing.T) {
		_, err := h.run("", "session", "login")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "--email")

		_, err = h.run("", "session", "login", "--email", "a@b.co", "--address", "0x123")
		assert.ErrorIs(t, err, session.ErrInvalidIdentity)

		_, err = h.run("", "session", "login", "--email", "a@b.co", "--address", addr, "--create-wallet")
		assert.Error(t, err)
	})
}

func TestWalletCommands(t *testing.T) {
	h := newHarness(t)

	out := h.mustRun("wallet", "list")
	assert.Contains(t, out, "No wallets found.")

	h.passwords = []string{"password123", "password123"}
	out = h.mustRun("wallet", "create")
	assert.Contains(t, out, "Wallet created")
	created := addressRe.FindString(out)
	require.NotEmpty(t, created)

	h.passwords = []string{"short"}
	_, err := h.run("", "wallet", "create")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least 8")

	h.passwords = []string{"password123", "password124"}
	_, err = h.run("", "wallet", "create")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "do not match")

	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	keyHex := hexutil.Encode(crypto.FromECDSA(key))
	want := crypto.PubkeyToAddress(key.PublicKey).Hex()

	h.passwords = []string{"password123", "password123"}
	out = h.mustRun("wallet", "import", "--key", keyHex)
	assert.Contains(t, out, want)

	out = h.mustRun("wallet", "list")
	assert.Contains(t, out, "Found 2 wallet(s)")
	assert.Contains(t, out, created)
	assert.Contains(t, out, want)

	t.Run("encrypt and decrypt", func(t *testing.T) {
		h.passwords = []string{"password123", "password123"}
		blob := h.mustRun("wallet", "encrypt", "--key", keyHex)
		assert.Contains(t, blob, strings.ToLower(want[2:]))

		file := filepath.Join(h.dir, "key.json")
		require.NoError(t, os.WriteFile(file, []byte(blob), 0600))

		h.passwords = []string{"password123"}
		out := h.mustRun("wallet", "decrypt", file)
		assert.Equal(t, keyHex, strings.TrimSpace(out))

		h.passwords = []string{"wrong-password"}
		_, err := h.run("", "wallet", "decrypt", file)
		assert.Error(t, err)
	})

	t.Run("export", func(t *testing.T) {
		h.passwords = []string{"password123", "newpassword1", "newpassword1"}
		out := h.mustRun("wallet", "export", want)
		assert.Contains(t, out, strings.ToLower(want[2:]))

		_, err := h.run("", "wallet", "export", "not-an-address")
		assert.Error(t, err)
	})

	t.Run("sign and verify", func(t *testing.T) {
		h.passwords = []string{"password123"}
		sig := strings.TrimSpace(h.mustRun("wallet", "sign", want, "OTC desk check"))
		require.True(t, strings.HasPrefix(sig, "0x"))

		out := h.mustRun("wallet", "verify", want, "OTC desk check", sig)
		assert.Contains(t, out, "Signed by "+want)

		out, err := h.run("", "wallet", "verify", created, "OTC desk check", sig)
		require.Error(t, err)
		assert.Contains(t, out, "does not match")

		h.passwords = []string{"wrong-password"}
		_, err = h.run("", "wallet", "sign", want, "x")
		assert.Error(t, err)
	})
}
