package api

import (
	"net/http"

	"github.com/yolodolo42/amera/internal/otc"
)

// quoteResponse is the wire shape of a quote; amounts are JSON numbers.
type quoteResponse struct {
	ID             string  `json:"id"`
	Amount         float64 `json:"amount"`
	Currency       string  `json:"currency"`
	TargetAmount   float64 `json:"targetAmount"`
	TargetCurrency string  `json:"targetCurrency"`
	ExchangeRate   float64 `json:"exchangeRate"`
	Fee            float64 `json:"fee"`
	FeePercentage  float64 `json:"feePercentage"`
	ExpiresAt      string  `json:"expiresAt"`
}

const isoMillis = "2006-01-02T15:04:05.000Z07:00"

func newQuoteResponse(q *otc.Quote) quoteResponse {
	return quoteResponse{
		ID:             q.ID,
		Amount:         decimalFloat(q.Amount),
		Currency:       q.Currency,
		TargetAmount:   decimalFloat(q.TargetAmount),
		TargetCurrency: q.TargetCurrency,
		ExchangeRate:   decimalFloat(q.ExchangeRate),
		Fee:            decimalFloat(q.Fee),
		FeePercentage:  decimalFloat(q.FeePercentage),
		ExpiresAt:      q.ExpiresAt.UTC().Format(isoMillis),
	}
}

func (h *handler) requestQuote(w http.ResponseWriter, r *http.Request) {
	var req otc.Request
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	q, err := h.OTC.RequestQuote(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, newQuoteResponse(q))
}

func (h *handler) acceptQuote(w http.ResponseWriter, r *http.Request) {
	var body struct {
		QuoteID string `json:"quoteId"`
	}
	if err := decodeBody(r, &body); err != nil {
		h.writeError(w, r, err)
		return
	}
	acc, err := h.OTC.AcceptQuote(r.Context(), body.QuoteID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, acc)
}

