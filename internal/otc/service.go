package otc

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

var (
	ErrInvalidRequest  = errors.New("missing required parameters")
	ErrBelowMinimum    = errors.New("otc service is only available for transactions of $50,000 or more")
	ErrQuoteIDRequired = errors.New("quote id is required")
	ErrQuoteNotFound   = errors.New("quote not found")
	ErrQuoteExpired    = errors.New("quote has expired")
	ErrAlreadyAccepted = errors.New("quote already accepted")
)

// QuoteTTL is how long a quote can be accepted.
const QuoteTTL = 15 * time.Minute

const acceptedMessage = "Your OTC request has been accepted. Our team will contact you shortly to complete the transaction."

// Direction is the side of the trade from the client's view.
type Direction string

const (
	Buy  Direction = "buy"
	Sell Direction = "sell"
)

// Request is a client's ask for a quote.
type Request struct {
	Name           string          `json:"name"`
	Email          string          `json:"email"`
	Phone          string          `json:"phone"`
	Amount         decimal.Decimal `json:"amount"`
	Currency       string          `json:"currency"`
	TargetCurrency string          `json:"targetCurrency"`
	Direction      Direction       `json:"direction"`
	AdditionalInfo string          `json:"additionalInfo,omitempty"`
}

// Validate checks required fields and the desk minimum.
func (r Request) Validate() error {
	if strings.TrimSpace(r.Name) == "" || strings.TrimSpace(r.Email) == "" || strings.TrimSpace(r.Phone) == "" ||
		r.Amount.IsZero() || r.Currency == "" || r.TargetCurrency == "" || r.Direction == "" {
		return ErrInvalidRequest
	}
	if r.Direction != Buy && r.Direction != Sell {
		return fmt.Errorf("%w: direction must be buy or sell", ErrInvalidRequest)
	}
	if r.Amount.LessThan(MinimumAmount) {
		return ErrBelowMinimum
	}
	return nil
}

// Quote is a priced, time-limited offer.
type Quote struct {
	ID             string
	Amount         decimal.Decimal
	Currency       string
	TargetAmount   decimal.Decimal
	TargetCurrency string
	ExchangeRate   decimal.Decimal
	Fee            decimal.Decimal
	FeePercentage  decimal.Decimal
	ExpiresAt      time.Time

	Request    Request
	CreatedAt  time.Time
	AcceptedAt *time.Time
	Reference  string
}

// Acceptance confirms a booked quote.
type Acceptance struct {
	Success   bool   `json:"success"`
	Reference string `json:"reference"`
	Message   string `json:"message"`
}

// Repository stores quotes. *Store is the sqlite implementation.
type Repository interface {
	Save(ctx context.Context, q *Quote) error
	Get(ctx context.Context, id string) (*Quote, error)
	MarkAccepted(ctx context.Context, id, reference string, at time.Time) error
}

// Service runs the OTC desk.
type Service struct {
	repo Repository
	log  zerolog.Logger
	now  func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(repo Repository, log zerolog.Logger, opts ...Option) *Service {
	s := &Service{repo: repo, log: log, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Price builds a quote for req without storing it.
func (s *Service) Price(req Request) (*Quote, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	id, err := uuid.NewRandom()
	if err != nil {
		return nil, fmt.Errorf("quote id: %w", err)
	}

	fee := CalculateFee(req.Amount)
	rate := ExchangeRate(req.Currency, req.TargetCurrency)
	now := s.now().UTC()

	return &Quote{
		ID:             id.String(),
		Amount:         req.Amount,
		Currency:       req.Currency,
		TargetAmount:   fee.Net.Mul(rate),
		TargetCurrency: req.TargetCurrency,
		ExchangeRate:   rate,
		Fee:            fee.Fee,
		FeePercentage:  fee.Percentage,
		ExpiresAt:      now.Add(QuoteTTL),
		Request:        req,
		CreatedAt:      now,
	}, nil
}

// RequestQuote prices, stores and announces a quote.
func (s *Service) RequestQuote(ctx context.Context, req Request) (*Quote, error) {
	q, err := s.Price(req)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Save(ctx, q); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("quote_id", q.ID).
		Str("name", req.Name).
		Str("email", req.Email).
		Str("amount", req.Amount.String()).
		Str("currency", req.Currency).
		Str("direction", string(req.Direction)).
		Msg("OTC request received")
	return q, nil
}

// AcceptQuote books a stored, unexpired quote. A quote can be accepted once.
func (s *Service) AcceptQuote(ctx context.Context, id string) (*Acceptance, error) {
	if strings.TrimSpace(id) == "" {
		return nil, ErrQuoteIDRequired
	}
	q, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if q.AcceptedAt != nil {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyAccepted, id)
	}

	now := s.now()
	if now.After(q.ExpiresAt) {
		return nil, fmt.Errorf("%w: %s", ErrQuoteExpired, id)
	}

	ref := fmt.Sprintf("OTC-%d", now.UnixMilli())
	if err := s.repo.MarkAccepted(ctx, id, ref, now); err != nil {
		return nil, err
	}

	s.log.Info().Str("quote_id", id).Str("reference", ref).Msg("OTC quote accepted")
	return &Acceptance{Success: true, Reference: ref, Message: acceptedMessage}, nil
}
