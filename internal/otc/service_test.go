package otc

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct{ t time.Time }

func (c *clock) Now() time.Time { return c.t }

func newService(t *testing.T) (*Service, *Store, *clock) {
	t.Helper()
	store, err := OpenStoreDSN(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	c := &clock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	return NewService(store, zerolog.Nop(), WithClock(c.Now)), store, c
}

func validRequest() Request {
	return Request{
		Name:           "Ada Lovelace",
		Email:          "ada@example.com",
		Phone:          "+44 20 7946 0000",
		Amount:         d("250000"),
		Currency:       "USD",
		TargetCurrency: "BTC",
		Direction:      Buy,
	}
}

func TestRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(r *Request)
		wantErr error
	}{
		{"valid", func(r *Request) {}, nil},
		{"missing name", func(r *Request) { r.Name = "" }, ErrInvalidRequest},
		{"blank email", func(r *Request) { r.Email = "  " }, ErrInvalidRequest},
		{"missing phone", func(r *Request) { r.Phone = "" }, ErrInvalidRequest},
		{"zero amount", func(r *Request) { r.Amount = d("0") }, ErrInvalidRequest},
		{"missing currency", func(r *Request) { r.Currency = "" }, ErrInvalidRequest},
		{"missing target", func(r *Request) { r.TargetCurrency = "" }, ErrInvalidRequest},
		{"missing direction", func(r *Request) { r.Direction = "" }, ErrInvalidRequest},
		{"bad direction", func(r *Request) { r.Direction = "hold" }, ErrInvalidRequest},
		{"below minimum", func(r *Request) { r.Amount = d("49999.99") }, ErrBelowMinimum},
		{"at minimum", func(r *Request) { r.Amount = d("50000") }, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := validRequest()
			tt.mutate(&r)
			err := r.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestService_RequestQuote(t *testing.T) {
	ctx := context.Background()

	t.Run("prices and stores the quote", func(t *testing.T) {
		svc, store, c := newService(t)

		q, err := svc.RequestQuote(ctx, validRequest())
		require.NoError(t, err)

		assert.NotEmpty(t, q.ID)
		assert.True(t, q.FeePercentage.Equal(d("0.25")))
		assert.True(t, q.Fee.Equal(d("625")))
		assert.True(t, q.ExchangeRate.Equal(d("0.000033")))
		// (250000 - 625) * 0.000033
		assert.True(t, q.TargetAmount.Equal(d("8.229375")), q.TargetAmount.String())
		assert.Equal(t, c.t.Add(15*time.Minute), q.ExpiresAt)

		stored, err := store.Get(ctx, q.ID)
		require.NoError(t, err)
		assert.True(t, stored.TargetAmount.Equal(q.TargetAmount))
		assert.Equal(t, q.ExpiresAt, stored.ExpiresAt)
		assert.Equal(t, "ada@example.com", stored.Request.Email)
		assert.Nil(t, stored.AcceptedAt)
	})

	t.Run("target amount follows the formula", func(t *testing.T) {
		svc, _, _ := newService(t)
		req := validRequest()
		req.TargetCurrency = "USDC"
		req.Amount = d("75000")

		q, err := svc.RequestQuote(ctx, req)
		require.NoError(t, err)
		assert.True(t, q.TargetAmount.Equal(q.Amount.Sub(q.Fee).Mul(q.ExchangeRate)))
		assert.True(t, q.TargetAmount.Equal(d("74775")))
	})

	t.Run("below minimum is not stored", func(t *testing.T) {
		svc, _, _ := newService(t)
		req := validRequest()
		req.Amount = d("1000")

		_, err := svc.RequestQuote(ctx, req)
		assert.ErrorIs(t, err, ErrBelowMinimum)
	})
}

func TestService_AcceptQuote(t *testing.T) {
	ctx := context.Background()

	t.Run("accepts once", func(t *testing.T) {
		svc, store, c := newService(t)
		q, err := svc.RequestQuote(ctx, validRequest())
		require.NoError(t, err)

		c.t = c.t.Add(5 * time.Minute)
		acc, err := svc.AcceptQuote(ctx, q.ID)
		require.NoError(t, err)
		assert.True(t, acc.Success)
		assert.Equal(t, "OTC-1772366700000", acc.Reference)
		assert.Contains(t, acc.Message, "accepted")

		stored, err := store.Get(ctx, q.ID)
		require.NoError(t, err)
		require.NotNil(t, stored.AcceptedAt)
		assert.Equal(t, acc.Reference, stored.Reference)

		_, err = svc.AcceptQuote(ctx, q.ID)
		assert.ErrorIs(t, err, ErrAlreadyAccepted)
	})

	t.Run("expired", func(t *testing.T) {
		svc, _, c := newService(t)
		q, err := svc.RequestQuote(ctx, validRequest())
		require.NoError(t, err)

		c.t = c.t.Add(QuoteTTL + time.Second)
		_, err = svc.AcceptQuote(ctx, q.ID)
		assert.ErrorIs(t, err, ErrQuoteExpired)
	})

	t.Run("unknown id", func(t *testing.T) {
		svc, _, _ := newService(t)
		_, err := svc.AcceptQuote(ctx, "does-not-exist")
		assert.ErrorIs(t, err, ErrQuoteNotFound)
	})

	t.Run("empty id", func(t *testing.T) {
		svc, _, _ := newService(t)
		_, err := svc.AcceptQuote(ctx, " ")
		assert.ErrorIs(t, err, ErrQuoteIDRequired)
	})
}

func TestStore_MarkAccepted(t *testing.T) {
	ctx := context.Background()
	svc, store, c := newService(t)
	q, err := svc.RequestQuote(ctx, validRequest())
	require.NoError(t, err)

	require.NoError(t, store.MarkAccepted(ctx, q.ID, "OTC-1", c.t))
	assert.ErrorIs(t, store.MarkAccepted(ctx, q.ID, "OTC-2", c.t), ErrAlreadyAccepted)
	assert.ErrorIs(t, store.MarkAccepted(ctx, "missing", "OTC-3", c.t), ErrQuoteNotFound)
}

func TestOpenStore_File(t *testing.T) {
	dir := t.TempDir()
	store, err := OpenStore(dir)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	reopened, err := OpenStore(dir)
	require.NoError(t, err)
	assert.NoError(t, reopened.Close())
}
