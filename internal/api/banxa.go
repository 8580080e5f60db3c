package api

import (
	"encoding/json"
	"net/http"

	"github.com/yolodolo42/amera/internal/onramp"
)

func (h *handler) createOrder(w http.ResponseWriter, r *http.Request) {
	var p onramp.OrderParams
	if err := decodeBody(r, &p); err != nil {
		h.writeError(w, r, err)
		return
	}
	order, err := h.OnRamp.CreateOrder(r.Context(), p)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, order)
}

func (h *handler) currencies(w http.ResponseWriter, r *http.Request) {
	cur, err := h.OnRamp.Currencies(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, cur)
}

func (h *handler) orderStatus(w http.ResponseWriter, r *http.Request) {
	order, err := h.OnRamp.OrderStatus(r.Context(), r.URL.Query().Get("orderId"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, struct {
		Order json.RawMessage `json:"order"`
	}{order})
}
