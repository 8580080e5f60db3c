package onramp

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.UnixMilli(1700000000000)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(Config{
		BaseURL:   srv.URL + "/",
		PartnerID: "partner-1",
		APIKey:    "key-1",
		Secret:    "secret-1",
	}, WithClock(func() time.Time { return fixedNow }))
}

func amount(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func TestSign(t *testing.T) {
	sig := Sign("secret-1", "1700000000000", nil)
	assert.Equal(t, "0f0a22a8ebf773273473f2043ec8d4823881f7e0dcc0d955ed23806fbcea862b", sig)
	assert.Equal(t, sig, Sign("secret-1", "1700000000000", []byte{}))
	assert.NotEqual(t, sig, Sign("secret-2", "1700000000000", nil))
	assert.Equal(t, Sign("s", "1", []byte("{}")), Sign("s", "1{}", nil))
}

func TestCreateOrder(t *testing.T) {
	t.Run("signs payload and returns checkout", func(t *testing.T) {
		var got map[string]any
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/api/orders", r.URL.Path)
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			assert.Equal(t, "1700000000000", r.Header.Get("BX-NONCE"))
			assert.Equal(t, "key-1", r.Header.Get("BX-API-KEY"))

			body, _ := io.ReadAll(r.Body)
			assert.Equal(t, Sign("secret-1", "1700000000000", body), r.Header.Get("BX-SIGNATURE"))
			require.NoError(t, json.Unmarshal(body, &got))

			_, _ = w.Write([]byte(`{"data":{"order":{"id":"ord-9"},"checkout":{"url":"https://checkout.banxa.com/ord-9"}}}`))
		})

		order, err := c.CreateOrder(context.Background(), OrderParams{
			Source:        "USD",
			Target:        "USDC",
			SourceAmount:  amount("250.50"),
			WalletAddress: "0xabc",
		})
		require.NoError(t, err)
		assert.Equal(t, "ord-9", order.OrderID)
		assert.Equal(t, "https://checkout.banxa.com/ord-9", order.CheckoutURL)

		assert.Equal(t, "0xabc", got["account_reference"])
		assert.Equal(t, "250.5", got["source_amount"])
		assert.NotContains(t, got, "target_amount")
		assert.Equal(t, map[string]any{"partner_id": "partner-1"}, got["partner_data"])
	})

	t.Run("checkout nested in order", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"data":{"order":{"id":"o","checkout":{"url":"https://x"}}}}`))
		})
		order, err := c.CreateOrder(context.Background(), OrderParams{
			Source: "EUR", Target: "ETH", TargetAmount: amount("0.1"), WalletAddress: "0xabc", AccountReference: "user-7",
		})
		require.NoError(t, err)
		assert.Equal(t, "https://x", order.CheckoutURL)
	})

	t.Run("validation happens before any request", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			t.Error("unexpected upstream call")
		})
		cases := []OrderParams{
			{Target: "USDC", WalletAddress: "0x1", SourceAmount: amount("1")},
			{Source: "USD", WalletAddress: "0x1", SourceAmount: amount("1")},
			{Source: "USD", Target: "USDC", SourceAmount: amount("1")},
			{Source: "USD", Target: "USDC", WalletAddress: "0x1"},
			{Source: "USD", Target: "USDC", WalletAddress: "0x1", SourceAmount: amount("0")},
		}
		for _, p := range cases {
			_, err := c.CreateOrder(context.Background(), p)
			assert.ErrorIs(t, err, ErrMissingParams)
		}
	})

	t.Run("upstream error is forwarded", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = w.Write([]byte(`{"errors":{"title":"bad wallet"}}`))
		})
		_, err := c.CreateOrder(context.Background(), OrderParams{
			Source: "USD", Target: "USDC", SourceAmount: amount("100"), WalletAddress: "0x1",
		})

		var apiErr *APIError
		require.True(t, errors.As(err, &apiErr))
		assert.Equal(t, http.StatusUnprocessableEntity, apiErr.StatusCode)
		assert.JSONEq(t, `{"errors":{"title":"bad wallet"}}`, string(apiErr.Body))
	})

	t.Run("non-json error body", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "gateway down", http.StatusBadGateway)
		})
		_, err := c.Currencies(context.Background())

		var apiErr *APIError
		require.True(t, errors.As(err, &apiErr))
		assert.Equal(t, `"gateway down\n"`, string(apiErr.Body))
	})
}

func TestCurrencies(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/currencies", r.URL.Path)
		assert.Equal(t, Sign("secret-1", "1700000000000", nil), r.Header.Get("BX-SIGNATURE"))
		_, _ = w.Write([]byte(`{"data":{"fiats":[{"code":"USD"}],"coins":[{"code":"USDC"}]}}`))
	})

	got, err := c.Currencies(context.Background())
	require.NoError(t, err)
	assert.JSONEq(t, `[{"code":"USD"}]`, string(got.Fiat))
	assert.JSONEq(t, `[{"code":"USDC"}]`, string(got.Crypto))
}

func TestOrderStatus(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/orders/ord 1", r.URL.Path)
		_, _ = w.Write([]byte(`{"data":{"order":{"id":"ord 1","status":"complete"}}}`))
	})

	order, err := c.OrderStatus(context.Background(), "ord 1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"ord 1","status":"complete"}`, string(order))

	_, err = c.OrderStatus(context.Background(), "")
	assert.ErrorIs(t, err, ErrOrderIDMissing)
}
