package api

import (
	"net/http"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/yolodolo42/amera/internal/swap"
	"github.com/yolodolo42/amera/internal/vault"
)

type vaultResponse struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	APY           float64 `json:"apy"`
	DepositFee    float64 `json:"depositFee"`
	WithdrawalFee float64 `json:"withdrawalFee"`
	RiskLevel     string  `json:"riskLevel"`
	LockPeriod    string  `json:"lockPeriod"`
}

func (h *handler) listVaults(w http.ResponseWriter, r *http.Request) {
	vaults := vault.List()
	out := make([]vaultResponse, len(vaults))
	for i, v := range vaults {
		out[i] = vaultResponse{
			ID:            v.ID,
			Name:          v.Name,
			APY:           decimalFloat(v.APY),
			DepositFee:    decimalFloat(v.DepositFee),
			WithdrawalFee: decimalFloat(v.WithdrawalFee),
			RiskLevel:     v.RiskLevel,
			LockPeriod:    v.LockPeriod,
		}
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"vaults": out})
}

func (h *handler) vaultHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	id := q.Get("vaultId")
	if id == "" {
		h.writeError(w, r, invalid("Vault ID is required"))
		return
	}
	pts, err := vault.HistoricalPrices(id, q.Get("period"), h.Now())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"data": pts})
}

type swapQuoteResponse struct {
	ToAmount    string   `json:"toAmount"`
	PriceImpact string   `json:"priceImpact"`
	Route       []string `json:"route"`
	Dex         string   `json:"dex"`
}

func (h *handler) swapQuote(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("chainId") == "" || q.Get("from") == "" || q.Get("to") == "" || q.Get("amount") == "" {
		h.writeError(w, r, invalid("Missing required parameters"))
		return
	}
	chainID, err := strconv.ParseInt(q.Get("chainId"), 10, 64)
	if err != nil {
		h.writeError(w, r, invalid("Invalid chain ID"))
		return
	}
	amount, err := decimal.NewFromString(q.Get("amount"))
	if err != nil {
		h.writeError(w, r, invalid("Invalid amount"))
		return
	}

	quote, err := swap.GetQuote(chainID, q.Get("from"), q.Get("to"), amount)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, swapQuoteResponse{
		ToAmount:    quote.ToAmount.String(),
		PriceImpact: quote.PriceImpactString(),
		Route:       quote.Route,
		Dex:         quote.Dex,
	})
}
