package api

import (
	"net/http"

	"github.com/yolodolo42/amera/internal/market"
)

func (h *handler) marketPrices(w http.ResponseWriter, r *http.Request) {
	ids := market.ParseIDs(r.URL.Query().Get("ids"))
	if len(ids) == 0 {
		ids = market.DefaultCoins
	}
	prices, err := h.Market.CoinPrices(r.Context(), ids)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, prices)
}

func (h *handler) marketHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	id := q.Get("id")
	if id == "" {
		h.writeError(w, r, invalid("Coin ID is required"))
		return
	}
	rng := market.Range7d
	if s := q.Get("range"); s != "" {
		parsed, err := market.ParseTimeRange(s)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		rng = parsed
	}

	pts, err := h.Market.HistoricalPrices(r.Context(), id, rng, q.Get("currency"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"id": id, "range": rng, "prices": pts})
}
