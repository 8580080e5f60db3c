// Package onramp talks to the Banxa fiat on/off-ramp API.
package onramp

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

var (
	ErrMissingParams  = errors.New("missing required parameters")
	ErrOrderIDMissing = errors.New("order id is required")
)

// APIError is a non-2xx answer from Banxa. Body is the upstream payload,
// forwarded to callers verbatim.
type APIError struct {
	StatusCode int
	Body       json.RawMessage
}

func (e *APIError) Error() string {
	return fmt.Sprintf("banxa api: status %d", e.StatusCode)
}

// Config holds partner credentials.
type Config struct {
	BaseURL   string
	PartnerID string
	APIKey    string
	Secret    string
}

// Client signs and sends Banxa requests.
type Client struct {
	cfg  Config
	http *http.Client
	log  zerolog.Logger
	now  func() time.Time
}

// Option configures a Client.
type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

func WithLogger(log zerolog.Logger) Option {
	return func(c *Client) { c.log = log }
}

func NewClient(cfg Config, opts ...Option) *Client {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	c := &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: 30 * time.Second},
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Sign returns hex(HMAC-SHA256(secret, nonce+body)). GET requests sign the
// nonce alone.
func Sign(secret, nonce string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(nonce))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// OrderParams is a checkout request.
type OrderParams struct {
	AccountReference     string           `json:"accountReference,omitempty"`
	Source               string           `json:"source"`
	Target               string           `json:"target"`
	SourceAmount         *decimal.Decimal `json:"sourceAmount,omitempty"`
	TargetAmount         *decimal.Decimal `json:"targetAmount,omitempty"`
	ReturnURLOnSuccess   string           `json:"returnUrlOnSuccess"`
	ReturnURLOnFailure   string           `json:"returnUrlOnFailure"`
	ReturnURLOnCancelled string           `json:"returnUrlOnCancelled"`
	WalletAddress        string           `json:"walletAddress"`
	WalletAddressTag     string           `json:"walletAddressTag,omitempty"`
	CustomerEmail        string           `json:"customerEmail,omitempty"`
}

func positive(d *decimal.Decimal) bool {
	return d != nil && d.Sign() > 0
}

// Validate requires source, target, wallet and one of the amounts.
func (p OrderParams) Validate() error {
	if p.Source == "" || p.Target == "" || p.WalletAddress == "" {
		return ErrMissingParams
	}
	if !positive(p.SourceAmount) && !positive(p.TargetAmount) {
		return fmt.Errorf("%w: sourceAmount or targetAmount", ErrMissingParams)
	}
	return nil
}

type partnerData struct {
	PartnerID string `json:"partner_id"`
}

// orderPayload is the upstream wire shape.
type orderPayload struct {
	AccountReference     string      `json:"account_reference"`
	Source               string      `json:"source"`
	Target               string      `json:"target"`
	SourceAmount         string      `json:"source_amount,omitempty"`
	TargetAmount         string      `json:"target_amount,omitempty"`
	ReturnURLOnSuccess   string      `json:"return_url_on_success,omitempty"`
	ReturnURLOnFailure   string      `json:"return_url_on_failure,omitempty"`
	ReturnURLOnCancelled string      `json:"return_url_on_cancelled,omitempty"`
	WalletAddress        string      `json:"wallet_address"`
	WalletAddressTag     string      `json:"wallet_address_tag,omitempty"`
	CustomerEmail        string      `json:"customer_email,omitempty"`
	PartnerData          partnerData `json:"partner_data"`
}

func (c *Client) payload(p OrderParams) orderPayload {
	out := orderPayload{
		AccountReference:     p.AccountReference,
		Source:               p.Source,
		Target:               p.Target,
		ReturnURLOnSuccess:   p.ReturnURLOnSuccess,
		ReturnURLOnFailure:   p.ReturnURLOnFailure,
		ReturnURLOnCancelled: p.ReturnURLOnCancelled,
		WalletAddress:        p.WalletAddress,
		WalletAddressTag:     p.WalletAddressTag,
		CustomerEmail:        p.CustomerEmail,
		PartnerData:          partnerData{PartnerID: c.cfg.PartnerID},
	}
	if out.AccountReference == "" {
		out.AccountReference = p.WalletAddress
	}
	if positive(p.SourceAmount) {
		out.SourceAmount = p.SourceAmount.String()
	}
	if positive(p.TargetAmount) {
		out.TargetAmount = p.TargetAmount.String()
	}
	return out
}

// Order is a created checkout.
type Order struct {
	OrderID     string `json:"orderId"`
	CheckoutURL string `json:"checkoutUrl"`
}

// Currencies lists supported fiat and crypto currencies as Banxa returns them.
type Currencies struct {
	Fiat   json.RawMessage `json:"fiat"`
	Crypto json.RawMessage `json:"crypto"`
}

// CreateOrder opens a checkout and returns its URL.
func (c *Client) CreateOrder(ctx context.Context, p OrderParams) (*Order, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	body, err := json.Marshal(c.payload(p))
	if err != nil {
		return nil, fmt.Errorf("marshal order: %w", err)
	}

	var resp struct {
		Data struct {
			Order struct {
				ID       string `json:"id"`
				Checkout struct {
					URL string `json:"url"`
				} `json:"checkout"`
			} `json:"order"`
			Checkout struct {
				URL string `json:"url"`
			} `json:"checkout"`
		} `json:"data"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/orders", body, &resp); err != nil {
		return nil, err
	}

	// Checkout has been seen both beside and inside the order object.
	checkout := resp.Data.Checkout.URL
	if checkout == "" {
		checkout = resp.Data.Order.Checkout.URL
	}
	c.log.Info().Str("order_id", resp.Data.Order.ID).Str("target", p.Target).Msg("banxa order created")
	return &Order{OrderID: resp.Data.Order.ID, CheckoutURL: checkout}, nil
}

// Currencies fetches supported currencies.
func (c *Client) Currencies(ctx context.Context) (*Currencies, error) {
	var resp struct {
		Data struct {
			Fiats json.RawMessage `json:"fiats"`
			Coins json.RawMessage `json:"coins"`
		} `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/currencies", nil, &resp); err != nil {
		return nil, err
	}
	return &Currencies{Fiat: orNull(resp.Data.Fiats), Crypto: orNull(resp.Data.Coins)}, nil
}

// OrderStatus returns the upstream order object for orderID.
func (c *Client) OrderStatus(ctx context.Context, orderID string) (json.RawMessage, error) {
	if strings.TrimSpace(orderID) == "" {
		return nil, ErrOrderIDMissing
	}
	var resp struct {
		Data struct {
			Order json.RawMessage `json:"order"`
		} `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/orders/"+url.PathEscape(orderID), nil, &resp); err != nil {
		return nil, err
	}
	return orNull(resp.Data.Order), nil
}

func orNull(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 {
		return json.RawMessage("null")
	}
	return raw
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, out any) error {
	nonce := strconv.FormatInt(c.now().UnixMilli(), 10)

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("BX-NONCE", nonce)
	req.Header.Set("BX-API-KEY", c.cfg.APIKey)
	req.Header.Set("BX-SIGNATURE", Sign(c.cfg.Secret, nonce, body))

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("banxa %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("read banxa response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.log.Warn().Int("status", resp.StatusCode).Str("path", path).Msg("banxa api error")
		details := json.RawMessage(data)
		if !json.Valid(data) {
			quoted, _ := json.Marshal(string(data))
			details = quoted
		}
		return &APIError{StatusCode: resp.StatusCode, Body: details}
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode banxa response: %w", err)
	}
	return nil
}
