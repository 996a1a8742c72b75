package db

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var schemaSQL string

// Transaction statuses. pending is the only non-terminal status.
const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusFailed    = "failed"
)

// Transaction types.
const (
	TypeTransfer = "transfer"
	TypeSwap     = "swap"
)

// Sentinel errors returned by the store. Callers map these to their own
// error taxonomy.
var (
	// ErrDuplicateSignature is returned when a create hits the unique
	// constraint on signature.
	ErrDuplicateSignature = errors.New("transaction signature already exists")

	// ErrNotFound is returned when no transaction matches the signature.
	ErrNotFound = errors.New("transaction not found")
)

// TokenChange is one net token delta observed by the client for a
// transaction, e.g. {-1.5 SOL, +150 USDC} is two entries.
// The JSON field names are part of the API contract.
type TokenChange struct {
	Amount      float64 `json:"amount"`
	TokenSymbol string  `json:"tokenSymbol"`
}

// Transaction represents a recorded dapp transaction in our system.
// This is the domain model; the store maps it to and from the transactions table.
type Transaction struct {
	ID            int64
	Signature     string
	WalletAddress string
	Type          string // "transfer" or "swap"
	TokenChanges  []TokenChange
	Status        string // "pending", "confirmed", or "failed"
	Timestamp     int64  // seconds since epoch, client-observed submission time
	ExplorerURL   string
	FromAddress   *string  // enriched: authoritative sender
	ToAddress     *string  // enriched: authoritative receiver
	Value         *float64 // enriched: net SOL moved
	Fee           *float64
	PriceImpact   *string
	InputMint     *string
	OutputMint    *string
	CreatedAt     time.Time
}

// CreateTransactionParams contains the parameters for recording a transaction.
type CreateTransactionParams struct {
	Signature     string
	WalletAddress string
	Type          string
	TokenChanges  []TokenChange
	Status        string
	Timestamp     int64
	ExplorerURL   string
	FromAddress   *string
	ToAddress     *string
	Value         *float64
	Fee           *float64
	PriceImpact   *string
	InputMint     *string
	OutputMint    *string
}

// Store provides database operations for the service.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a new Store with the given database connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// EnsureSchema creates the transactions table and indexes if they don't exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

const transactionColumns = `id, signature, wallet_address, type, token_changes, status,
	timestamp, explorer_url, from_address, to_address, value, fee,
	price_impact, input_mint, output_mint, created_at`

// CreateTransaction inserts a new transaction record.
// Returns ErrDuplicateSignature if the signature is already recorded.
func (s *Store) CreateTransaction(ctx context.Context, params CreateTransactionParams) (*Transaction, error) {
	changes, err := json.Marshal(params.TokenChanges)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal token changes: %w", err)
	}

	row := s.pool.QueryRow(ctx, `
		INSERT INTO transactions (
			signature, wallet_address, type, token_changes, status,
			timestamp, explorer_url, from_address, to_address, value, fee,
			price_impact, input_mint, output_mint
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING `+transactionColumns,
		params.Signature,
		params.WalletAddress,
		params.Type,
		changes,
		params.Status,
		params.Timestamp,
		params.ExplorerURL,
		pgtextFromStringPtr(params.FromAddress),
		pgtextFromStringPtr(params.ToAddress),
		pgfloatFromFloatPtr(params.Value),
		pgfloatFromFloatPtr(params.Fee),
		pgtextFromStringPtr(params.PriceImpact),
		pgtextFromStringPtr(params.InputMint),
		pgtextFromStringPtr(params.OutputMint),
	)

	txn, err := scanTransaction(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateSignature
		}
		return nil, err
	}
	return txn, nil
}

// GetTransaction retrieves a transaction by its signature.
func (s *Store) GetTransaction(ctx context.Context, signature string) (*Transaction, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE signature = $1`,
		signature,
	)

	txn, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return txn, nil
}

// UpdateTransactionStatus applies a status transition to a pending record.
// Terminal statuses (confirmed, failed) are never overwritten: if the record
// exists but is already terminal, the unchanged record is returned with
// changed=false. Returns ErrNotFound if no record matches the signature.
//
// The transition guard lives in the WHERE clause so that concurrent
// reconcilers cannot double-apply a transition.
func (s *Store) UpdateTransactionStatus(ctx context.Context, signature string, status string) (txn *Transaction, changed bool, err error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE transactions
		SET status = $2
		WHERE signature = $1 AND status = 'pending'
		RETURNING `+transactionColumns,
		signature, status,
	)

	txn, err = scanTransaction(row)
	if err == nil {
		return txn, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, err
	}

	// Nothing was pending: either the record is terminal (no-op) or absent.
	txn, err = s.GetTransaction(ctx, signature)
	if err != nil {
		return nil, false, err
	}
	return txn, false, nil
}

// ListTransactionsByWallet retrieves all transactions for a wallet,
// most recent first, ties broken by insertion order.
func (s *Store) ListTransactionsByWallet(ctx context.Context, walletAddress string) ([]*Transaction, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE wallet_address = $1
		ORDER BY timestamp DESC, id DESC`,
		walletAddress,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanTransactions(rows)
}

// ListPendingTransactions retrieves pending records created before the given
// cutoff, oldest first, up to limit. Used by the reconciliation poller.
func (s *Store) ListPendingTransactions(ctx context.Context, before time.Time, limit int32) ([]*Transaction, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE status = 'pending' AND created_at < $1
		ORDER BY created_at ASC
		LIMIT $2`,
		pgtype.Timestamptz{Time: before, Valid: true}, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanTransactions(rows)
}

// CountTransactionsByWallet counts recorded transactions for a wallet.
func (s *Store) CountTransactionsByWallet(ctx context.Context, walletAddress string) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM transactions WHERE wallet_address = $1`,
		walletAddress,
	).Scan(&count)
	return count, err
}

// scanTransaction scans a single transaction row into the domain model.
func scanTransaction(row pgx.Row) (*Transaction, error) {
	var (
		txn         Transaction
		changes     []byte
		fromAddr    pgtype.Text
		toAddr      pgtype.Text
		value       pgtype.Float8
		fee         pgtype.Float8
		priceImpact pgtype.Text
		inputMint   pgtype.Text
		outputMint  pgtype.Text
		createdAt   pgtype.Timestamptz
	)

	err := row.Scan(
		&txn.ID,
		&txn.Signature,
		&txn.WalletAddress,
		&txn.Type,
		&changes,
		&txn.Status,
		&txn.Timestamp,
		&txn.ExplorerURL,
		&fromAddr,
		&toAddr,
		&value,
		&fee,
		&priceImpact,
		&inputMint,
		&outputMint,
		&createdAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(changes, &txn.TokenChanges); err != nil {
		return nil, fmt.Errorf("failed to unmarshal token changes: %w", err)
	}

	txn.FromAddress = stringPtrFromPgtext(fromAddr)
	txn.ToAddress = stringPtrFromPgtext(toAddr)
	txn.Value = floatPtrFromPgfloat(value)
	txn.Fee = floatPtrFromPgfloat(fee)
	txn.PriceImpact = stringPtrFromPgtext(priceImpact)
	txn.InputMint = stringPtrFromPgtext(inputMint)
	txn.OutputMint = stringPtrFromPgtext(outputMint)
	txn.CreatedAt = createdAt.Time

	return &txn, nil
}

func scanTransactions(rows pgx.Rows) ([]*Transaction, error) {
	transactions := make([]*Transaction, 0)
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, txn)
	}
	return transactions, rows.Err()
}

// isUniqueViolation reports whether err is a Postgres unique-constraint
// violation (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// Helper functions to convert between pgtype values and domain types.

func pgtextFromStringPtr(s *string) pgtype.Text {
	if s == nil {
		return pgtype.Text{Valid: false}
	}
	return pgtype.Text{String: *s, Valid: true}
}

func stringPtrFromPgtext(t pgtype.Text) *string {
	if !t.Valid {
		return nil
	}
	return &t.String
}

func pgfloatFromFloatPtr(f *float64) pgtype.Float8 {
	if f == nil {
		return pgtype.Float8{Valid: false}
	}
	return pgtype.Float8{Float64: *f, Valid: true}
}

func floatPtrFromPgfloat(f pgtype.Float8) *float64 {
	if !f.Valid {
		return nil
	}
	return &f.Float64
}
