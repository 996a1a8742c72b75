package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/soldash/soldash/service/db"
	"github.com/soldash/soldash/service/metrics"
	"github.com/soldash/soldash/service/nats"
	sol "github.com/soldash/soldash/service/solana"
)

// Store is the persistence surface the ledger needs.
// *db.Store satisfies it; tests substitute an in-memory fake.
type Store interface {
	CreateTransaction(ctx context.Context, params db.CreateTransactionParams) (*db.Transaction, error)
	GetTransaction(ctx context.Context, signature string) (*db.Transaction, error)
	UpdateTransactionStatus(ctx context.Context, signature, status string) (*db.Transaction, bool, error)
	ListTransactionsByWallet(ctx context.Context, walletAddress string) ([]*db.Transaction, error)
}

// ChainReader supplies best-effort transfer details for a signature.
// *solana.Client satisfies it.
type ChainReader interface {
	LookupTransfer(ctx context.Context, signature string) sol.TransferDetails
}

// Service implements the transaction recording, reconciliation, and
// history operations over a store and a chain reader.
type Service struct {
	store     Store
	chain     ChainReader
	publisher nats.Publisher
	metrics   *metrics.Metrics
	logger    *slog.Logger
	cluster   string
}

// NewService creates a ledger service. The chain reader and publisher may be
// nil, in which case enrichment and event publishing are skipped. If metrics
// is nil, no metrics are recorded.
func NewService(store Store, chain ChainReader, publisher nats.Publisher, m *metrics.Metrics, logger *slog.Logger, cluster string) *Service {
	return &Service{
		store:     store,
		chain:     chain,
		publisher: publisher,
		metrics:   m,
		logger:    logger,
		cluster:   cluster,
	}
}

// RecordParams is a candidate transaction record submitted by a client.
type RecordParams struct {
	Signature     string
	WalletAddress string
	Type          string
	TokenChanges  []db.TokenChange
	Status        string
	Timestamp     *int64

	// Optional details; transfers missing from/to/value are enriched
	// from chain data.
	FromAddress *string
	ToAddress   *string
	Value       *float64
	Fee         *float64
	PriceImpact *string
	InputMint   *string
	OutputMint  *string
}

func validTxnType(t string) bool {
	return t == db.TypeTransfer || t == db.TypeSwap
}

func validStatus(s string) bool {
	return s == db.StatusPending || s == db.StatusConfirmed || s == db.StatusFailed
}

func (p *RecordParams) validate() error {
	if p.Signature == "" {
		return &ValidationError{Field: "signature", Reason: "must not be empty"}
	}
	if p.WalletAddress == "" {
		return &ValidationError{Field: "walletAddress", Reason: "must not be empty"}
	}
	if !validTxnType(p.Type) {
		return &ValidationError{Field: "type", Reason: fmt.Sprintf("must be %q or %q", db.TypeTransfer, db.TypeSwap)}
	}
	if !validStatus(p.Status) {
		return &ValidationError{Field: "status", Reason: "must be pending, confirmed, or failed"}
	}
	if p.Status == db.StatusConfirmed && len(p.TokenChanges) == 0 {
		return &ValidationError{Field: "tokenChanges", Reason: "must not be empty for a confirmed record"}
	}
	if p.Timestamp != nil && *p.Timestamp < 0 {
		return &ValidationError{Field: "timestamp", Reason: "must not be negative"}
	}
	return nil
}

// Record validates and persists a candidate transaction record. Transfers
// missing sender, recipient, or value are enriched from chain data; fields
// the client supplied are never overwritten. The explorer URL is always
// derived server-side. A duplicate signature returns ErrConflict.
func (s *Service) Record(ctx context.Context, params RecordParams) (*db.Transaction, error) {
	if err := params.validate(); err != nil {
		if s.metrics != nil {
			s.metrics.RecordRecordCreateError("validation")
		}
		return nil, err
	}

	timestamp := time.Now().UTC().Unix()
	if params.Timestamp != nil {
		timestamp = *params.Timestamp
	}

	create := db.CreateTransactionParams{
		Signature:     params.Signature,
		WalletAddress: params.WalletAddress,
		Type:          params.Type,
		TokenChanges:  params.TokenChanges,
		Status:        params.Status,
		Timestamp:     timestamp,
		ExplorerURL:   sol.ExplorerTxURL(s.cluster, params.Signature),
		FromAddress:   params.FromAddress,
		ToAddress:     params.ToAddress,
		Value:         params.Value,
		Fee:           params.Fee,
		PriceImpact:   params.PriceImpact,
		InputMint:     params.InputMint,
		OutputMint:    params.OutputMint,
	}

	if s.chain != nil && params.Type == db.TypeTransfer &&
		(create.FromAddress == nil || create.ToAddress == nil || create.Value == nil) {
		details := s.chain.LookupTransfer(ctx, params.Signature)
		if create.FromAddress == nil {
			create.FromAddress = details.From
		}
		if create.ToAddress == nil {
			create.ToAddress = details.To
		}
		if create.Value == nil {
			create.Value = details.Value
		}
		if create.Fee == nil {
			create.Fee = details.Fee
		}
	}

	txn, err := s.store.CreateTransaction(ctx, create)
	if err != nil {
		if errors.Is(err, db.ErrDuplicateSignature) {
			if s.metrics != nil {
				s.metrics.RecordRecordCreateError("conflict")
			}
			return nil, fmt.Errorf("%w: signature %s", ErrConflict, params.Signature)
		}
		if s.metrics != nil {
			s.metrics.RecordRecordCreateError("store")
		}
		s.logger.ErrorContext(ctx, "failed to persist record",
			"signature", params.Signature, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	if s.metrics != nil {
		s.metrics.RecordRecordCreated(txn.Type, txn.Status)
	}
	s.logger.InfoContext(ctx, "recorded transaction",
		"signature", txn.Signature,
		"wallet", txn.WalletAddress,
		"type", txn.Type,
		"status", txn.Status,
	)

	s.publish(ctx, nats.EventKindCreated, txn)
	return txn, nil
}

// Reconcile applies a status transition to an existing record. Only
// confirmed and failed are valid targets. A record already in a terminal
// status is left untouched and returned as-is; only pending records
// transition. Unknown signatures return ErrNotFound.
func (s *Service) Reconcile(ctx context.Context, signature, status string) (*db.Transaction, error) {
	if signature == "" {
		return nil, &ValidationError{Field: "signature", Reason: "must not be empty"}
	}
	if status != db.StatusConfirmed && status != db.StatusFailed {
		return nil, &ValidationError{Field: "status", Reason: "must be confirmed or failed"}
	}

	txn, changed, err := s.store.UpdateTransactionStatus(ctx, signature, status)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			if s.metrics != nil {
				s.metrics.RecordReconciliation("not_found")
			}
			return nil, fmt.Errorf("%w: signature %s", ErrNotFound, signature)
		}
		if s.metrics != nil {
			s.metrics.RecordReconciliation("error")
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	if !changed {
		if s.metrics != nil {
			s.metrics.RecordReconciliation("noop")
		}
		s.logger.DebugContext(ctx, "reconcile left terminal status untouched",
			"signature", signature, "status", txn.Status, "requested", status)
		return txn, nil
	}

	if s.metrics != nil {
		s.metrics.RecordReconciliation("applied")
	}
	s.logger.InfoContext(ctx, "reconciled transaction status",
		"signature", signature, "status", txn.Status)

	s.publish(ctx, nats.EventKindStatusChanged, txn)
	return txn, nil
}

// History filters accepted by History.
const (
	FilterAll      = "all"
	FilterTransfer = db.TypeTransfer
	FilterSwap     = db.TypeSwap
)

// History returns all records for a wallet, newest first. An empty or "all"
// filter returns everything; "transfer" and "swap" narrow by type. The
// filter is applied after retrieval so it stays consistent with the stored
// ordering. An unknown wallet yields an empty slice, not an error.
func (s *Service) History(ctx context.Context, walletAddress, filter string) ([]*db.Transaction, error) {
	if walletAddress == "" {
		return nil, &ValidationError{Field: "walletAddress", Reason: "must not be empty"}
	}
	if filter == "" {
		filter = FilterAll
	}
	if filter != FilterAll && filter != FilterTransfer && filter != FilterSwap {
		return nil, &ValidationError{Field: "filter", Reason: "must be all, transfer, or swap"}
	}

	start := time.Now()
	txns, err := s.store.ListTransactionsByWallet(ctx, walletAddress)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	if filter != FilterAll {
		filtered := make([]*db.Transaction, 0, len(txns))
		for _, txn := range txns {
			if txn.Type == filter {
				filtered = append(filtered, txn)
			}
		}
		txns = filtered
	}

	if s.metrics != nil {
		s.metrics.RecordHistoryQuery(filter, time.Since(start).Seconds())
	}
	return txns, nil
}

// publish sends a record event best-effort. Publish failures are logged and
// never surface to the caller; the record is already durable.
func (s *Service) publish(ctx context.Context, kind string, txn *db.Transaction) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishRecordEvent(ctx, nats.FromDBTransaction(kind, txn)); err != nil {
		if s.metrics != nil {
			s.metrics.RecordNATSPublish(kind, "error")
		}
		s.logger.WarnContext(ctx, "failed to publish record event",
			"kind", kind, "signature", txn.Signature, "error", err)
		return
	}
	if s.metrics != nil {
		s.metrics.RecordNATSPublish(kind, "success")
	}
}
