package tx

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/ethereum/go-ethereum/core/types"

	_ "modernc.org/sqlite"
)

var ErrTransferNotFound = errors.New("transfer not found")

// Transfer is one submitted send and, once mined, its receipt summary.
type Transfer struct {
	Chain     string
	TxHash    string
	From      string
	To        string
	Token     string // empty for native sends
	Amount    string // display units
	Status    *uint64
	GasUsed   uint64
	RawJSON   string
	CreatedAt time.Time
}

// Mined reports whether a receipt has been recorded.
func (t *Transfer) Mined() bool { return t.Status != nil }

// ReceiptStore keeps a local history of sends keyed by chain and tx hash.
type ReceiptStore struct {
	db  *sql.DB
	now func() time.Time
}

// OpenReceiptStore opens (or creates) the DB under dataDir/transfers.db.
func OpenReceiptStore(dataDir string) (*ReceiptStore, error) {
	return OpenReceiptStoreDSN(filepath.Join(dataDir, "transfers.db"))
}

// OpenReceiptStoreDSN opens a store using the given sqlite DSN/path.
// Tests may pass ":memory:" to avoid touching disk.
func OpenReceiptStoreDSN(dsn string) (*ReceiptStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open transfers db: %w", err)
	}
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`
CREATE TABLE IF NOT EXISTS transfers (
	chain TEXT NOT NULL,
	tx_hash TEXT NOT NULL,
	from_addr TEXT NOT NULL,
	to_addr TEXT NOT NULL,
	token TEXT NOT NULL DEFAULT '',
	amount TEXT NOT NULL,
	status INTEGER,
	gas_used INTEGER,
	raw_json TEXT,
	created_at INTEGER NOT NULL,
	PRIMARY KEY (chain, tx_hash)
);
`)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create transfers table: %w", err)
	}
	return &ReceiptStore{db: db, now: time.Now}, nil
}

// Close closes the underlying DB.
func (s *ReceiptStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// RecordSubmitted stores a send right after broadcast.
func (s *ReceiptStore) RecordSubmitted(ctx context.Context, t Transfer) error {
	if t.Chain == "" || t.TxHash == "" {
		return fmt.Errorf("chain and tx hash are required")
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO transfers (chain, tx_hash, from_addr, to_addr, token, amount, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(chain, tx_hash) DO NOTHING`,
		t.Chain, t.TxHash, t.From, t.To, t.Token, t.Amount, s.now().UnixMilli())
	if err != nil {
		return fmt.Errorf("persist transfer: %w", err)
	}
	return nil
}

// RecordReceipt attaches a mined receipt to a previously submitted send.
func (s *ReceiptStore) RecordReceipt(ctx context.Context, chain string, receipt *types.Receipt) error {
	if chain == "" {
		return fmt.Errorf("chain is required")
	}
	if receipt == nil {
		return fmt.Errorf("receipt is required")
	}

	raw, err := json.Marshal(receipt)
	if err != nil {
		return fmt.Errorf("marshal receipt: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
UPDATE transfers SET status = ?, gas_used = ?, raw_json = ?
WHERE chain = ? AND tx_hash = ?`,
		receipt.Status, receipt.GasUsed, string(raw), chain, receipt.TxHash.Hex())
	if err != nil {
		return fmt.Errorf("persist receipt: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrTransferNotFound, receipt.TxHash.Hex())
	}
	return nil
}

const transferColumns = `chain, tx_hash, from_addr, to_addr, token, amount, status, COALESCE(gas_used, 0), COALESCE(raw_json, ''), created_at`

func scanTransfer(row interface{ Scan(...any) error }) (*Transfer, error) {
	var t Transfer
	var status sql.NullInt64
	var created int64
	if err := row.Scan(&t.Chain, &t.TxHash, &t.From, &t.To, &t.Token, &t.Amount, &status, &t.GasUsed, &t.RawJSON, &created); err != nil {
		return nil, err
	}
	if status.Valid {
		st := uint64(status.Int64)
		t.Status = &st
	}
	t.CreatedAt = time.UnixMilli(created).UTC()
	return &t, nil
}

// Get returns one send.
func (s *ReceiptStore) Get(ctx context.Context, chain, txHash string) (*Transfer, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+transferColumns+` FROM transfers WHERE chain = ? AND tx_hash = ?`, chain, txHash)
	t, err := scanTransfer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrTransferNotFound, txHash)
	}
	if err != nil {
		return nil, fmt.Errorf("read transfer: %w", err)
	}
	return t, nil
}

// List returns the most recent sends first.
func (s *ReceiptStore) List(ctx context.Context, limit int) ([]Transfer, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+transferColumns+` FROM transfers ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list transfers: %w", err)
	}
	defer rows.Close()

	var out []Transfer
	for rows.Next() {
		t, err := scanTransfer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transfer: %w", err)
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}
