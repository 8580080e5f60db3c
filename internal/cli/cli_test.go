package cli

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yolodolo42/amera/internal/chain"
	"github.com/yolodolo42/amera/internal/otc"
	"github.com/yolodolo42/amera/internal/testutil"
	"github.com/yolodolo42/amera/internal/tx"
	"github.com/yolodolo42/amera/internal/vault"
	"github.com/yolodolo42/amera/internal/wallet"
)

// harness runs commands against one data directory with scripted input.
type harness struct {
	t         *testing.T
	dir       string
	passwords []string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	dir := testutil.DataDir(t)
	testutil.ClearBanxaEnv(t)
	return &harness{t: t, dir: dir}
}

func (h *harness) run(stdin string, args ...string) (string, error) {
	h.t.Helper()

	a := newApp()
	a.stdin = strings.NewReader(stdin)
	a.stderr = io.Discard
	a.interactive = func() bool { return false }
	a.keyOpts = []wallet.Option{wallet.WithLightScrypt()}
	a.encrypter = wallet.Encrypter{ScryptN: keystore.LightScryptN, ScryptP: keystore.LightScryptP}
	a.password = func(string) (string, error) {
		if len(h.passwords) == 0 {
			return "", fmt.Errorf("no scripted password")
		}
		p := h.passwords[0]
		h.passwords = h.passwords[1:]
		return p, nil
	}

	cmd := newRootCmd(a)
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(out)
	cmd.SetArgs(append([]string{"--data-dir", h.dir, "--log-level", "off"}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func (h *harness) mustRun(args ...string) string {
	h.t.Helper()
	out, err := h.run("", args...)
	require.NoError(h.t, err, out)
	return out
}

func TestRootHelp(t *testing.T) {
	h := newHarness(t)
	out := h.mustRun("--help")
	for _, sub := range []string{"serve", "wallet", "session", "portfolio", "otc", "market", "swap", "vault", "send", "transfers", "credentials"} {
		assert.Contains(t, out, sub)
	}
}

func TestBadConfigFile(t *testing.T) {
	h := newHarness(t)
	_, err := h.run("", "--config", h.dir+"/missing.yaml", "vault", "list")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config")
}

func TestResolveChain(t *testing.T) {
	reg := chain.NewRegistry()
	for _, ref := range []string{"base", "BASE", "8453", "0x2105"} {
		cfg, err := resolveChain(reg, ref)
		require.NoError(t, err, ref)
		assert.Equal(t, chain.BaseID, cfg.ChainIDInt)
	}
	_, err := resolveChain(reg, "nope")
	assert.ErrorIs(t, err, chain.ErrUnknownChain)
	_, err = resolveChain(reg, "999999")
	assert.ErrorIs(t, err, chain.ErrUnknownChain)
}

func TestOTCFee(t *testing.T) {
	h := newHarness(t)

	out := h.mustRun("otc", "fee", "150,000")
	assert.Contains(t, out, "0.25%")
	assert.Contains(t, out, "$375.00")
	assert.Contains(t, out, "$149,625.00")
	assert.NotContains(t, out, "Below the desk minimum")

	out = h.mustRun("otc", "fee", "1000")
	assert.Contains(t, out, "0.3%")
	assert.Contains(t, out, "Below the desk minimum")

	_, err := h.run("", "otc", "fee", "-5")
	assert.Error(t, err)
}

var uuidRe = regexp.MustCompile(`[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}`)

func TestOTCQuoteAndAccept(t *testing.T) {
	h := newHarness(t)

	out := h.mustRun("otc", "quote", "--name", "Ada", "--email", "ada@example.com", "--phone", "+1 555 0100", "--amount", "100000")
	assert.Contains(t, out, "99750")
	assert.Contains(t, out, "USDC")
	id := uuidRe.FindString(out)
	require.NotEmpty(t, id, out)

	out = h.mustRun("otc", "accept", id)
	assert.Contains(t, out, "OTC-")

	_, err := h.run("", "otc", "accept", id)
	assert.ErrorIs(t, err, otc.ErrAlreadyAccepted)

	_, err = h.run("", "otc", "accept", "00000000-0000-0000-0000-000000000000")
	assert.ErrorIs(t, err, otc.ErrQuoteNotFound)

	t.Run("validation", func(t *testing.T) {
		_, err := h.run("", "otc", "quote", "--name", "Ada", "--amount", "100000")
		assert.ErrorIs(t, err, otc.ErrInvalidRequest)

		_, err = h.run("", "otc", "quote", "--name", "Ada", "--email", "a@b.co", "--phone", "1", "--amount", "10000")
		assert.ErrorIs(t, err, otc.ErrBelowMinimum)
	})
}

func TestVaultCommands(t *testing.T) {
	h := newHarness(t)
	owner := "0x00000000000000000000000000000000000000aa"

	out := h.mustRun("vault", "list")
	assert.Contains(t, out, "Amera Safe Vault")
	assert.Contains(t, out, "Amera Growth Vault")
	assert.Contains(t, out, "Amera Opportunity Vault")

	out = h.mustRun("vault", "project", "growth", "10000", "--months", "12")
	assert.Contains(t, out, "$5.00")
	assert.Contains(t, out, "$9,995.00")
	assert.Contains(t, out, "12-month yield")

	_, err := h.run("", "vault", "project", "nope", "100")
	assert.ErrorIs(t, err, vault.ErrUnknownVault)

	out = h.mustRun("vault", "history", "safe", "--period", "30d")
	assert.Contains(t, out, "NAV")
	_, err = h.run("", "vault", "history", "safe", "--period", "2d")
	assert.ErrorIs(t, err, vault.ErrUnknownPeriod)

	t.Run("ledger", func(t *testing.T) {
		out := h.mustRun("vault", "deposit", "safe", "1000", "--address", owner, "--yes")
		assert.Contains(t, out, "Deposit recorded")
		assert.Contains(t, out, "$1,000.00")

		_, err := h.run("", "vault", "withdraw", "safe", "1500", "--address", owner, "--yes")
		assert.ErrorIs(t, err, vault.ErrInsufficientBalance)

		out, err = h.run("y\n", "vault", "withdraw", "safe", "400", "--address", owner)
		require.NoError(t, err, out)
		assert.Contains(t, out, "Withdrawal recorded")
		assert.Contains(t, out, "$600.00")

		_, err = h.run("n\n", "vault", "deposit", "safe", "5", "--address", owner)
		assert.EqualError(t, err, "cancelled")

		out = h.mustRun("vault", "positions", "--address", owner)
		assert.Contains(t, out, "Amera Safe Vault")
		assert.Contains(t, out, "$600.00")
		assert.Contains(t, out, "withdrawal")
	})

	t.Run("no owner", func(t *testing.T) {
		_, err := h.run("", "vault", "positions")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no session")
	})
}

func TestSwapCommands(t *testing.T) {
	h := newHarness(t)

	out := h.mustRun("--chain", "base", "swap", "quote", "--from", "USDC", "--to", "WETH", "--amount", "100")
	assert.Contains(t, out, "Uniswap on Base Mainnet")
	assert.Contains(t, out, "100 USDC")
	assert.Contains(t, out, "USDC → WETH")

	out = h.mustRun("--chain", "tron", "swap", "tokens")
	assert.Contains(t, out, "SunSwap")

	_, err := h.run("", "--chain", "arbitrum", "swap", "tokens")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not available")

	_, err = h.run("", "swap", "quote", "--to", "WETH", "--amount", "0")
	assert.Error(t, err)
}

func TestMarketCommands(t *testing.T) {
	h := newHarness(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/simple/price":
			fmt.Fprint(w, `{"bitcoin":{"usd":65000.5},"usd-coin":{"usd":0.9998}}`)
		case "/coins/bitcoin/market_chart":
			assert.Equal(t, "30", r.URL.Query().Get("days"))
			fmt.Fprint(w, `{"prices":[[1700000000000,100],[1700000100000,90],[1700000200000,110]]}`)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	t.Setenv("AMERA_MARKET_BASE_URL", srv.URL)
	t.Setenv("AMERA_MARKET_MIN_INTERVAL", "0s")

	out := h.mustRun("market", "prices", "bitcoin,usd-coin", "nope")
	assert.Contains(t, out, "$65,000.50")
	assert.Contains(t, out, "$0.9998")
	assert.Contains(t, out, "unknown")

	out = h.mustRun("market", "history", "bitcoin", "--range", "30D")
	assert.Contains(t, out, "$100.00")
	assert.Contains(t, out, "$110.00")
	assert.Contains(t, out, "$90.00")
	assert.Contains(t, out, "+10.00%")

	_, err := h.run("", "market", "history", "bitcoin", "--range", "2w")
	assert.Error(t, err)
}

func TestCredentials(t *testing.T) {
	h := newHarness(t)

	out := h.mustRun("credentials", "show")
	assert.Contains(t, out, "(not set)")
	assert.Contains(t, out, "Incomplete")

	h.passwords = []string{"s3cret-value"}
	h.mustRun("credentials", "set", "--partner-id", "p-1", "--api-key", "key-12345678")

	out = h.mustRun("credentials", "show")
	assert.Contains(t, out, "p-1")
	assert.Contains(t, out, "••••••••5678")
	assert.Contains(t, out, "••••••••alue")
	assert.NotContains(t, out, "s3cret-value")
	assert.NotContains(t, out, "Incomplete")

	out = h.mustRun("credentials", "remove")
	assert.Contains(t, out, "removed")
	out = h.mustRun("credentials", "remove")
	assert.Contains(t, out, "No stored")

	_, err := h.run("", "credentials", "set", "--partner-id", "p-1")
	assert.Error(t, err)
}

func TestMask(t *testing.T) {
	assert.Equal(t, "", mask(""))
	assert.Equal(t, "•••", mask("abc"))
	assert.Equal(t, "••••••••6789", mask("123456789"))
}

func TestTransfers(t *testing.T) {
	h := newHarness(t)

	out := h.mustRun("transfers")
	assert.Contains(t, out, "No transfers recorded.")

	store, err := tx.OpenReceiptStore(h.dir)
	require.NoError(t, err)
	require.NoError(t, store.RecordSubmitted(context.Background(), tx.Transfer{
		Chain:  "base",
		TxHash: "0x" + strings.Repeat("ab", 32),
		From:   "0x00000000000000000000000000000000000000aa",
		To:     "0x00000000000000000000000000000000000000bb",
		Token:  "USDC",
		Amount: "12.5",
	}))
	require.NoError(t, store.Close())

	out = h.mustRun("transfers")
	assert.Contains(t, out, "12.5 USDC")
	assert.Contains(t, out, "pending")
	assert.Contains(t, out, "0xababab…abab")
}

func TestAPIHandler(t *testing.T) {
	h := newHarness(t)
	a := newApp()
	a.stderr = io.Discard
	a.v.Set("data_dir", h.dir)
	a.v.Set("log.level", "off")
	require.NoError(t, a.load())

	handler, cleanup, err := a.apiHandler()
	require.NoError(t, err)
	defer cleanup()

	srv := httptest.NewServer(handler)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := `{"name":"Ada","email":"a@b.co","phone":"1","amount":60000,"currency":"USD","targetCurrency":"USDC","direction":"buy"}`
	resp, err = http.Post(srv.URL+"/api/otc/request-quote", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/api/vaults/historical-prices?vaultId=safe")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
