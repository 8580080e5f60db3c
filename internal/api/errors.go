package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"
	"github.com/yolodolo42/amera/internal/market"
	"github.com/yolodolo42/amera/internal/onramp"
	"github.com/yolodolo42/amera/internal/otc"
	"github.com/yolodolo42/amera/internal/swap"
	"github.com/yolodolo42/amera/internal/vault"
)

// ValidationError is a bad request; Message is shown to the caller.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func invalid(msg string) error { return &ValidationError{Message: msg} }

type errorBody struct {
	Error   string          `json:"error"`
	Details json.RawMessage `json:"details,omitempty"`
}

// writeJSON sends v with status. The header is already out when encoding
// fails, so the failure is only logged.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zerolog.Ctx(r.Context()).Debug().Err(err).Str("path", r.URL.Path).Msg("write response")
	}
}

// userMessages maps domain sentinels to the messages callers see.
var userMessages = []struct {
	err    error
	status int
	msg    string
}{
	{otc.ErrInvalidRequest, http.StatusBadRequest, "Missing required parameters"},
	{otc.ErrBelowMinimum, http.StatusBadRequest, "OTC service is only available for transactions of $50,000 or more"},
	{otc.ErrQuoteIDRequired, http.StatusBadRequest, "Quote ID is required"},
	{otc.ErrQuoteNotFound, http.StatusNotFound, "Quote not found"},
	{otc.ErrQuoteExpired, http.StatusConflict, "Quote has expired"},
	{otc.ErrAlreadyAccepted, http.StatusConflict, "Quote has already been accepted"},
	{onramp.ErrMissingParams, http.StatusBadRequest, "Missing required parameters"},
	{onramp.ErrOrderIDMissing, http.StatusBadRequest, "Order ID is required"},
	{vault.ErrUnknownVault, http.StatusBadRequest, "Unknown vault"},
	{vault.ErrUnknownPeriod, http.StatusBadRequest, "Unknown period"},
	{market.ErrUnknownRange, http.StatusBadRequest, "Unknown time range"},
	{market.ErrRateLimited, http.StatusTooManyRequests, "Rate limit exceeded"},
	{swap.ErrTokenNotFound, http.StatusBadRequest, "Token not found"},
	{swap.ErrInvalidAmount, http.StatusBadRequest, "Amount must be positive"},
	{swap.ErrSameToken, http.StatusBadRequest, "Cannot swap a token for itself"},
}

// writeError maps err onto the response: validation problems are 400s,
// upstream Banxa errors keep their status and body, anything else is a
// logged 500.
func (h *handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		writeJSON(w, r, http.StatusBadRequest, errorBody{Error: ve.Message})
		return
	}

	var ae *onramp.APIError
	if errors.As(err, &ae) {
		writeJSON(w, r, ae.StatusCode, errorBody{Error: "Error from Banxa API", Details: ae.Body})
		return
	}

	for _, m := range userMessages {
		if errors.Is(err, m.err) {
			writeJSON(w, r, m.status, errorBody{Error: m.msg})
			return
		}
	}

	var se *market.StatusError
	if errors.As(err, &se) {
		writeJSON(w, r, http.StatusBadGateway, errorBody{Error: "Error from market data provider"})
		return
	}

	h.Log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	writeJSON(w, r, http.StatusInternalServerError, errorBody{Error: "Internal server error"})
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	if err := dec.Decode(v); err != nil {
		return invalid("Invalid request body")
	}
	return nil
}
