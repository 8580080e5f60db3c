package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yolodolo42/amera/internal/market"
	"github.com/yolodolo42/amera/internal/onramp"
	"github.com/yolodolo42/amera/internal/otc"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type testEnv struct {
	router   http.Handler
	banxa    *http.ServeMux
	gecko    *http.ServeMux
	otcStore *otc.Store
}

func newEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{banxa: http.NewServeMux(), gecko: http.NewServeMux()}

	banxaSrv := httptest.NewServer(env.banxa)
	t.Cleanup(banxaSrv.Close)
	geckoSrv := httptest.NewServer(env.gecko)
	t.Cleanup(geckoSrv.Close)

	store, err := otc.OpenStoreDSN(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	env.otcStore = store

	clock := func() time.Time { return fixedNow }
	env.router = NewRouter(Deps{
		OnRamp: onramp.NewClient(onramp.Config{
			BaseURL:   banxaSrv.URL,
			PartnerID: "partner-1",
			APIKey:    "key-1",
			Secret:    "secret-1",
		}, onramp.WithHTTPClient(banxaSrv.Client())),
		OTC: otc.NewService(store, zerolog.Nop(), otc.WithClock(clock)),
		Market: market.NewClient(
			market.WithBaseURL(geckoSrv.URL),
			market.WithHTTPClient(geckoSrv.Client()),
			market.WithMinInterval(0),
		),
		Log: zerolog.Nop(),
		Now: clock,
	})
	return env
}

func (e *testEnv) do(t *testing.T, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)

	var out map[string]any
	if strings.HasPrefix(strings.TrimSpace(rec.Body.String()), "{") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec, out
}

func TestHealthz(t *testing.T) {
	env := newEnv(t)
	rec, body := env.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])
}

func TestCreateOrder(t *testing.T) {
	env := newEnv(t)
	env.banxa.HandleFunc("/api/orders", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "key-1", r.Header.Get("BX-API-KEY"))
		var payload map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "0xabc", payload["account_reference"])
		fmt.Fprint(w, `{"data":{"order":{"id":"ord-1"},"checkout":{"url":"https://checkout/ord-1"}}}`)
	})

	rec, body := env.do(t, http.MethodPost, "/api/banxa/create-order", map[string]any{
		"source": "USD", "target": "USDC", "sourceAmount": 100, "walletAddress": "0xabc",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "ord-1", body["orderId"])
	assert.Equal(t, "https://checkout/ord-1", body["checkoutUrl"])
}

func TestCreateOrderValidation(t *testing.T) {
	env := newEnv(t)

	rec, body := env.do(t, http.MethodPost, "/api/banxa/create-order", map[string]any{"source": "USD"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Missing required parameters", body["error"])

	rec, body = env.do(t, http.MethodPost, "/api/banxa/create-order", "{not json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid request body", body["error"])
}

func TestBanxaUpstreamErrorForwarded(t *testing.T) {
	env := newEnv(t)
	env.banxa.HandleFunc("/api/currencies", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"errors":{"title":"bad signature"}}`)
	})

	rec, body := env.do(t, http.MethodGet, "/api/banxa/currencies", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Error from Banxa API", body["error"])
	assert.Equal(t, map[string]any{"errors": map[string]any{"title": "bad signature"}}, body["details"])
}

func TestCurrencies(t *testing.T) {
	env := newEnv(t)
	env.banxa.HandleFunc("/api/currencies", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":{"fiats":[{"code":"USD"}],"coins":[{"code":"USDC"}]}}`)
	})

	rec, body := env.do(t, http.MethodGet, "/api/banxa/currencies", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body["fiat"], 1)
	assert.Len(t, body["crypto"], 1)
}

func TestOrderStatus(t *testing.T) {
	env := newEnv(t)
	env.banxa.HandleFunc("/api/orders/ord-9", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":{"order":{"id":"ord-9","status":"complete"}}}`)
	})

	rec, body := env.do(t, http.MethodGet, "/api/banxa/order-status?orderId=ord-9", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "complete", body["order"].(map[string]any)["status"])

	rec, body = env.do(t, http.MethodGet, "/api/banxa/order-status", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Order ID is required", body["error"])
}

func otcRequest(amount float64) map[string]any {
	return map[string]any{
		"name": "Ada", "email": "ada@example.com", "phone": "+1555",
		"amount": amount, "currency": "USD", "targetCurrency": "USDC", "direction": "buy",
	}
}

func TestOTCQuoteAndAccept(t *testing.T) {
	env := newEnv(t)

	rec, quote := env.do(t, http.MethodPost, "/api/otc/request-quote", otcRequest(250000))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 250000.0, quote["amount"])
	assert.Equal(t, 0.25, quote["feePercentage"])
	assert.Equal(t, 625.0, quote["fee"])
	assert.Equal(t, 249375.0, quote["targetAmount"])
	assert.Equal(t, 1.0, quote["exchangeRate"])
	assert.Equal(t, "2026-03-01T12:15:00.000Z", quote["expiresAt"])

	rec, acc := env.do(t, http.MethodPost, "/api/otc/accept-quote", map[string]any{"quoteId": quote["id"]})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, true, acc["success"])
	assert.Equal(t, fmt.Sprintf("OTC-%d", fixedNow.UnixMilli()), acc["reference"])

	rec, body := env.do(t, http.MethodPost, "/api/otc/accept-quote", map[string]any{"quoteId": quote["id"]})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "Quote has already been accepted", body["error"])
}

func TestOTCValidation(t *testing.T) {
	env := newEnv(t)

	rec, body := env.do(t, http.MethodPost, "/api/otc/request-quote", otcRequest(49999))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "OTC service is only available for transactions of $50,000 or more", body["error"])

	req := otcRequest(75000)
	delete(req, "phone")
	rec, body = env.do(t, http.MethodPost, "/api/otc/request-quote", req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Missing required parameters", body["error"])

	rec, body = env.do(t, http.MethodPost, "/api/otc/accept-quote", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Quote ID is required", body["error"])

	rec, body = env.do(t, http.MethodPost, "/api/otc/accept-quote", map[string]any{"quoteId": "missing"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Quote not found", body["error"])
}

func TestVaultRoutes(t *testing.T) {
	env := newEnv(t)

	rec, body := env.do(t, http.MethodGet, "/api/vaults/historical-prices?vaultId=safe", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	data := body["data"].([]any)
	require.Len(t, data, 7)
	assert.Equal(t, "2026-03-01", data[6].(map[string]any)["date"])

	rec, body = env.do(t, http.MethodGet, "/api/vaults/historical-prices", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Vault ID is required", body["error"])

	rec, _ = env.do(t, http.MethodGet, "/api/vaults/historical-prices?vaultId=safe&period=2w", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, body = env.do(t, http.MethodGet, "/api/vaults", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body["vaults"], 3)
}

func TestSwapQuoteRoute(t *testing.T) {
	env := newEnv(t)

	rec, body := env.do(t, http.MethodGet, "/api/swap/quote?chainId=1&from=WETH&to=USDC&amount=2", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "7000", body["toAmount"])
	assert.Equal(t, "Uniswap", body["dex"])

	rec, body = env.do(t, http.MethodGet, "/api/swap/quote?chainId=1&from=NOPE&to=USDC&amount=2", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Token not found", body["error"])

	rec, _ = env.do(t, http.MethodGet, "/api/swap/quote?chainId=1", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMarketRoutes(t *testing.T) {
	env := newEnv(t)
	env.gecko.HandleFunc("/simple/price", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"bitcoin":{"usd":65000}}`)
	})
	env.gecko.HandleFunc("/coins/bitcoin/market_chart", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1", r.URL.Query().Get("days"))
		fmt.Fprint(w, `{"prices":[[1700000000000,65000]]}`)
	})

	rec, body := env.do(t, http.MethodGet, "/api/market/prices?ids=bitcoin", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 65000.0, body["bitcoin"])

	rec, body = env.do(t, http.MethodGet, "/api/market/historical?id=bitcoin&range=24h", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body["prices"], 1)

	rec, body = env.do(t, http.MethodGet, "/api/market/historical?id=bitcoin&range=2w", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Unknown time range", body["error"])
}

func TestMarketRateLimited(t *testing.T) {
	env := newEnv(t)
	env.gecko.HandleFunc("/simple/price", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	rec, body := env.do(t, http.MethodGet, "/api/market/prices", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "Rate limit exceeded", body["error"])
}

func TestUnexpectedErrorIs500(t *testing.T) {
	env := newEnv(t)
	require.NoError(t, env.otcStore.Close())

	rec, body := env.do(t, http.MethodPost, "/api/otc/request-quote", otcRequest(75000))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Internal server error", body["error"])
}

func TestWriteJSONLogsEncodeFailure(t *testing.T) {
	var logs bytes.Buffer
	log := zerolog.New(&logs).Level(zerolog.DebugLevel)

	req := httptest.NewRequest(http.MethodGet, "/api/market/prices", nil)
	req = req.WithContext(log.WithContext(req.Context()))
	rec := httptest.NewRecorder()
	writeJSON(rec, req, http.StatusOK, map[string]any{"price": math.Inf(1)})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, logs.String(), `"level":"debug"`)
	assert.Contains(t, logs.String(), `"message":"write response"`)
	assert.Contains(t, logs.String(), `"path":"/api/market/prices"`)
}

func TestMissingDependenciesLeaveRoutesOut(t *testing.T) {
	router := NewRouter(Deps{Log: zerolog.Nop()})
	req := httptest.NewRequest(http.MethodGet, "/api/banxa/currencies", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
