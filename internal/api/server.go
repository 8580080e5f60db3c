// Package api serves the HTTP routes behind the web app: on-ramp
// pass-through, OTC quotes, vault history, swap quotes and market data.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/yolodolo42/amera/internal/market"
	"github.com/yolodolo42/amera/internal/onramp"
	"github.com/yolodolo42/amera/internal/otc"
)

// OnRamp is the Banxa pass-through. *onramp.Client implements it.
type OnRamp interface {
	CreateOrder(ctx context.Context, p onramp.OrderParams) (*onramp.Order, error)
	Currencies(ctx context.Context) (*onramp.Currencies, error)
	OrderStatus(ctx context.Context, orderID string) (json.RawMessage, error)
}

// OTCDesk books large trades. *otc.Service implements it.
type OTCDesk interface {
	RequestQuote(ctx context.Context, req otc.Request) (*otc.Quote, error)
	AcceptQuote(ctx context.Context, id string) (*otc.Acceptance, error)
}

// MarketData is read-only price data. *market.Client implements it.
type MarketData interface {
	CoinPrices(ctx context.Context, ids []string) (map[string]float64, error)
	HistoricalPrices(ctx context.Context, id string, r market.TimeRange, currency string) ([]market.PricePoint, error)
}

// Deps wires the route handlers. Nil dependencies leave their routes
// unregistered.
type Deps struct {
	OnRamp      OnRamp
	OTC         OTCDesk
	Market      MarketData
	Log         zerolog.Logger
	CORSOrigins []string
	Now         func() time.Time
}

type handler struct {
	Deps
}

// NewRouter builds the chi router with every available route.
func NewRouter(d Deps) http.Handler {
	if d.Now == nil {
		d.Now = time.Now
	}
	origins := d.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	h := &handler{Deps: d}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(d.Log))
	r.Use(recoverer(d.Log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		if d.OnRamp != nil {
			r.Route("/banxa", func(r chi.Router) {
				r.Post("/create-order", h.createOrder)
				r.Get("/currencies", h.currencies)
				r.Get("/order-status", h.orderStatus)
			})
		}
		if d.OTC != nil {
			r.Route("/otc", func(r chi.Router) {
				r.Post("/request-quote", h.requestQuote)
				r.Post("/accept-quote", h.acceptQuote)
			})
		}
		r.Route("/vaults", func(r chi.Router) {
			r.Get("/", h.listVaults)
			r.Get("/historical-prices", h.vaultHistory)
		})
		r.Get("/swap/quote", h.swapQuote)
		if d.Market != nil {
			r.Route("/market", func(r chi.Router) {
				r.Get("/prices", h.marketPrices)
				r.Get("/historical", h.marketHistory)
			})
		}
	})
	return r
}

// Serve runs srv until ctx is canceled, then shuts down gracefully.
func Serve(ctx context.Context, srv *http.Server, log zerolog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("api listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	log.Info().Msg("api shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

// decimalFloat renders a decimal as a JSON number.
func decimalFloat(d decimal.Decimal) float64 {
	return d.InexactFloat64()
}
