package vault

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	_ "modernc.org/sqlite"
)

var ErrInsufficientBalance = errors.New("insufficient vault balance")

// Kind of ledger movement.
type Kind string

const (
	KindDeposit    Kind = "deposit"
	KindWithdrawal Kind = "withdrawal"
)

// Movement is one deposit or withdrawal. For deposits Net is what the vault
// credits; for withdrawals Amount is debited and Net is paid out.
type Movement struct {
	ID        string
	Owner     string
	VaultID   string
	Kind      Kind
	Amount    decimal.Decimal
	Fee       decimal.Decimal
	Net       decimal.Decimal
	CreatedAt time.Time
}

// Position is an owner's holding in one vault.
type Position struct {
	Vault           Vault
	Balance         decimal.Decimal
	MonthlyEarnings decimal.Decimal
}

// Ledger records vault movements in sqlite.
type Ledger struct {
	db  *sql.DB
	now func() time.Time
}

// OpenLedger opens (or creates) the ledger under dataDir/vaults.db.
func OpenLedger(dataDir string) (*Ledger, error) {
	return OpenLedgerDSN(filepath.Join(dataDir, "vaults.db"))
}

// OpenLedgerDSN opens a ledger using the given sqlite DSN/path.
func OpenLedgerDSN(dsn string) (*Ledger, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open vault db: %w", err)
	}
	// Serializes balance checks with the writes that depend on them.
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`
CREATE TABLE IF NOT EXISTS movements (
	id TEXT PRIMARY KEY,
	owner TEXT NOT NULL,
	vault_id TEXT NOT NULL,
	kind TEXT NOT NULL,
	amount TEXT NOT NULL,
	fee TEXT NOT NULL,
	net TEXT NOT NULL,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS movements_owner ON movements (owner, vault_id);
`)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create movements table: %w", err)
	}
	return &Ledger{db: db, now: time.Now}, nil
}

// SetClock overrides the ledger's time source.
func (l *Ledger) SetClock(now func() time.Time) { l.now = now }

func (l *Ledger) Close() error {
	if l == nil || l.db == nil {
		return nil
	}
	return l.db.Close()
}

func normalizeOwner(owner string) string {
	return strings.ToLower(strings.TrimSpace(owner))
}

// Deposit credits amount less the vault's deposit fee.
func (l *Ledger) Deposit(ctx context.Context, owner, vaultID string, amount decimal.Decimal) (*Movement, error) {
	v, err := Get(vaultID)
	if err != nil {
		return nil, err
	}
	if !amount.IsPositive() {
		return nil, fmt.Errorf("deposit amount must be positive")
	}
	fee := v.DepositFeeFor(amount)
	m := &Movement{
		Owner:   normalizeOwner(owner),
		VaultID: v.ID,
		Kind:    KindDeposit,
		Amount:  amount,
		Fee:     fee,
		Net:     amount.Sub(fee),
	}
	return m, l.insert(ctx, l.db, m)
}

// Withdraw debits amount and pays it out less the withdrawal fee.
func (l *Ledger) Withdraw(ctx context.Context, owner, vaultID string, amount decimal.Decimal) (*Movement, error) {
	v, err := Get(vaultID)
	if err != nil {
		return nil, err
	}
	if !amount.IsPositive() {
		return nil, fmt.Errorf("withdrawal amount must be positive")
	}

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin withdrawal: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	bal, err := balance(ctx, tx, normalizeOwner(owner), v.ID)
	if err != nil {
		return nil, err
	}
	if amount.GreaterThan(bal) {
		return nil, fmt.Errorf("%w: have %s, want %s", ErrInsufficientBalance, bal.StringFixed(2), amount.StringFixed(2))
	}

	fee := v.WithdrawalFeeFor(amount)
	m := &Movement{
		Owner:   normalizeOwner(owner),
		VaultID: v.ID,
		Kind:    KindWithdrawal,
		Amount:  amount,
		Fee:     fee,
		Net:     amount.Sub(fee),
	}
	if err := l.insert(ctx, tx, m); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit withdrawal: %w", err)
	}
	return m, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (l *Ledger) insert(ctx context.Context, db execer, m *Movement) error {
	m.ID = uuid.NewString()
	m.CreatedAt = l.now().UTC()
	_, err := db.ExecContext(ctx, `
INSERT INTO movements (id, owner, vault_id, kind, amount, fee, net, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.Owner, m.VaultID, string(m.Kind),
		m.Amount.String(), m.Fee.String(), m.Net.String(), m.CreatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("record %s: %w", m.Kind, err)
	}
	return nil
}

func balance(ctx context.Context, db querier, owner, vaultID string) (decimal.Decimal, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT kind, amount, net FROM movements WHERE owner = ? AND vault_id = ?`, owner, vaultID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("query balance: %w", err)
	}
	defer rows.Close()

	bal := decimal.Zero
	for rows.Next() {
		var kind, amount, net string
		if err := rows.Scan(&kind, &amount, &net); err != nil {
			return decimal.Zero, fmt.Errorf("scan movement: %w", err)
		}
		switch Kind(kind) {
		case KindDeposit:
			d, err := decimal.NewFromString(net)
			if err != nil {
				return decimal.Zero, err
			}
			bal = bal.Add(d)
		case KindWithdrawal:
			d, err := decimal.NewFromString(amount)
			if err != nil {
				return decimal.Zero, err
			}
			bal = bal.Sub(d)
		}
	}
	return bal, rows.Err()
}

// Balance returns owner's current balance in vaultID.
func (l *Ledger) Balance(ctx context.Context, owner, vaultID string) (decimal.Decimal, error) {
	if _, err := Get(vaultID); err != nil {
		return decimal.Zero, err
	}
	return balance(ctx, l.db, normalizeOwner(owner), vaultID)
}

// Positions returns owner's non-empty positions in catalog order.
func (l *Ledger) Positions(ctx context.Context, owner string) ([]Position, error) {
	var out []Position
	for _, v := range catalog {
		bal, err := balance(ctx, l.db, normalizeOwner(owner), v.ID)
		if err != nil {
			return nil, err
		}
		if !bal.IsPositive() {
			continue
		}
		out = append(out, Position{Vault: v, Balance: bal, MonthlyEarnings: v.MonthlyEarnings(bal)})
	}
	return out, nil
}

// History returns owner's movements, oldest first.
func (l *Ledger) History(ctx context.Context, owner string) ([]Movement, error) {
	rows, err := l.db.QueryContext(ctx, `
SELECT id, owner, vault_id, kind, amount, fee, net, created_at
FROM movements WHERE owner = ? ORDER BY created_at, rowid`, normalizeOwner(owner))
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var out []Movement
	for rows.Next() {
		var m Movement
		var kind, amount, fee, net string
		var created int64
		if err := rows.Scan(&m.ID, &m.Owner, &m.VaultID, &kind, &amount, &fee, &net, &created); err != nil {
			return nil, fmt.Errorf("scan movement: %w", err)
		}
		m.Kind = Kind(kind)
		m.Amount = decimal.RequireFromString(amount)
		m.Fee = decimal.RequireFromString(fee)
		m.Net = decimal.RequireFromString(net)
		m.CreatedAt = time.UnixMilli(created).UTC()
		out = append(out, m)
	}
	return out, rows.Err()
}
