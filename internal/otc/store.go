package otc

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"

	_ "modernc.org/sqlite"
)

// Store persists quotes in sqlite, keyed by quote ID.
type Store struct {
	db *sql.DB
}

// OpenStore opens (or creates) the quote DB under dataDir/otc.db.
func OpenStore(dataDir string) (*Store, error) {
	return OpenStoreDSN(filepath.Join(dataDir, "otc.db"))
}

// OpenStoreDSN opens a quote DB using the given sqlite DSN/path.
// Tests may pass ":memory:" to avoid touching disk.
func OpenStoreDSN(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open otc db: %w", err)
	}
	// Each :memory: connection is its own database.
	db.SetMaxOpenConns(1)

	if err := ensureSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func ensureSchema(db *sql.DB) error {
	_, err := db.Exec(`
CREATE TABLE IF NOT EXISTS quotes (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	email TEXT NOT NULL,
	phone TEXT NOT NULL,
	direction TEXT NOT NULL,
	additional_info TEXT,
	amount TEXT NOT NULL,
	currency TEXT NOT NULL,
	target_amount TEXT NOT NULL,
	target_currency TEXT NOT NULL,
	exchange_rate TEXT NOT NULL,
	fee TEXT NOT NULL,
	fee_percentage TEXT NOT NULL,
	expires_at INTEGER NOT NULL,
	created_at INTEGER NOT NULL,
	accepted_at INTEGER,
	reference TEXT
);
`)
	if err != nil {
		return fmt.Errorf("create quotes table: %w", err)
	}
	return nil
}

// Close closes the underlying DB.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Save inserts a new quote.
func (s *Store) Save(ctx context.Context, q *Quote) error {
	if q == nil || q.ID == "" {
		return fmt.Errorf("quote id is required")
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO quotes (id, name, email, phone, direction, additional_info, amount, currency,
	target_amount, target_currency, exchange_rate, fee, fee_percentage, expires_at, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`,
		q.ID, q.Request.Name, q.Request.Email, q.Request.Phone, q.Request.Direction, q.Request.AdditionalInfo,
		q.Amount.String(), q.Currency, q.TargetAmount.String(), q.TargetCurrency,
		q.ExchangeRate.String(), q.Fee.String(), q.FeePercentage.String(),
		q.ExpiresAt.UnixMilli(), q.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("persist quote: %w", err)
	}
	return nil
}

// Get loads a quote by ID.
func (s *Store) Get(ctx context.Context, id string) (*Quote, error) {
	var q Quote
	var amount, target, rate, fee, pct string
	var expires, created int64
	var accepted sql.NullInt64
	var reference, info sql.NullString

	row := s.db.QueryRowContext(ctx, `
SELECT id, name, email, phone, direction, additional_info, amount, currency, target_amount,
	target_currency, exchange_rate, fee, fee_percentage, expires_at, created_at, accepted_at, reference
FROM quotes WHERE id = ?`, id)
	err := row.Scan(&q.ID, &q.Request.Name, &q.Request.Email, &q.Request.Phone, &q.Request.Direction, &info,
		&amount, &q.Currency, &target, &q.TargetCurrency, &rate, &fee, &pct,
		&expires, &created, &accepted, &reference)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrQuoteNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("load quote: %w", err)
	}

	for _, f := range []struct {
		dst *decimal.Decimal
		src string
	}{
		{&q.Amount, amount}, {&q.TargetAmount, target}, {&q.ExchangeRate, rate},
		{&q.Fee, fee}, {&q.FeePercentage, pct},
	} {
		if *f.dst, err = decimal.NewFromString(f.src); err != nil {
			return nil, fmt.Errorf("quote %s: corrupt decimal %q: %w", id, f.src, err)
		}
	}

	q.Request.Amount = q.Amount
	q.Request.Currency = q.Currency
	q.Request.TargetCurrency = q.TargetCurrency
	q.Request.AdditionalInfo = info.String
	q.ExpiresAt = time.UnixMilli(expires).UTC()
	q.CreatedAt = time.UnixMilli(created).UTC()
	if accepted.Valid {
		at := time.UnixMilli(accepted.Int64).UTC()
		q.AcceptedAt = &at
		q.Reference = reference.String
	}
	return &q, nil
}

// MarkAccepted records acceptance once; a second call fails with
// ErrAlreadyAccepted.
func (s *Store) MarkAccepted(ctx context.Context, id, reference string, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE quotes SET accepted_at = ?, reference = ? WHERE id = ? AND accepted_at IS NULL`,
		at.UnixMilli(), reference, id)
	if err != nil {
		return fmt.Errorf("accept quote: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("accept quote: %w", err)
	}
	if n == 1 {
		return nil
	}
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	return fmt.Errorf("%w: %s", ErrAlreadyAccepted, id)
}
