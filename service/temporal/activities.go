package temporal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/soldash/soldash/service/db"
	"github.com/soldash/soldash/service/ledger"
	"github.com/soldash/soldash/service/metrics"
	solana "github.com/soldash/soldash/service/solana"
)

// ReconcilePendingInput contains the parameters for one reconcile pass.
type ReconcilePendingInput struct {
	// MinAge is how long a record must have been pending before the poller
	// probes it, giving the cluster time to confirm normally.
	MinAge time.Duration `json:"min_age"`

	// BatchSize caps how many pending records one pass examines.
	BatchSize int32 `json:"batch_size"`
}

// ReconcilePendingResult summarizes one reconcile pass.
type ReconcilePendingResult struct {
	Checked      int       `json:"checked"`
	Confirmed    int       `json:"confirmed"`
	Failed       int       `json:"failed"`
	StillPending int       `json:"still_pending"`
	Errors       int       `json:"errors"`
	RunTime      time.Time `json:"run_time"`
}

// ListPendingInput contains parameters for the ListPendingTransactions activity.
type ListPendingInput struct {
	Before time.Time `json:"before"`
	Limit  int32     `json:"limit"`
}

// ListPendingResult contains the signatures of pending records to probe.
type ListPendingResult struct {
	Signatures []string `json:"signatures"`
}

// CheckTransactionStatusInput contains parameters for the CheckTransactionStatus activity.
type CheckTransactionStatusInput struct {
	Signature string `json:"signature"`
}

// CheckTransactionStatusResult contains the on-chain status of a signature.
type CheckTransactionStatusResult struct {
	Status string `json:"status"` // "pending", "confirmed", or "failed"
}

// ApplyStatusTransitionInput contains parameters for the ApplyStatusTransition activity.
type ApplyStatusTransitionInput struct {
	Signature string `json:"signature"`
	Status    string `json:"status"` // "confirmed" or "failed"
}

// ApplyStatusTransitionResult contains the outcome of a status transition.
type ApplyStatusTransitionResult struct {
	// Applied reports whether the record ended up in the requested status.
	// It is false when the record was already terminal in another status
	// or was deleted out from under the poller.
	Applied bool   `json:"applied"`
	Status  string `json:"status"` // status after the call, empty if the record is gone
}

// StoreInterface defines the database operations needed by activities.
// This allows for easy mocking in tests.
type StoreInterface interface {
	ListPendingTransactions(ctx context.Context, before time.Time, limit int32) ([]*db.Transaction, error)
}

// ChainStatusChecker defines the chain probe needed by activities.
// This allows for easy mocking in tests.
type ChainStatusChecker interface {
	CheckStatus(ctx context.Context, signature string) (solana.TxStatus, error)
}

// LedgerInterface defines the reconcile operation needed by activities.
// This allows for easy mocking in tests.
type LedgerInterface interface {
	Reconcile(ctx context.Context, signature, status string) (*db.Transaction, error)
}

// Activities holds the dependencies needed by Temporal activities.
// All dependencies are explicit.
type Activities struct {
	store   StoreInterface
	chain   ChainStatusChecker
	ledger  LedgerInterface
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewActivities creates a new Activities instance with explicit dependencies.
// If metrics is nil, no metrics will be recorded.
func NewActivities(store StoreInterface, chain ChainStatusChecker, svc LedgerInterface, m *metrics.Metrics, logger *slog.Logger) *Activities {
	if logger == nil {
		logger = slog.Default()
	}
	return &Activities{
		store:   store,
		chain:   chain,
		ledger:  svc,
		metrics: m,
		logger:  logger,
	}
}

// ListPendingTransactions returns the signatures of records still pending
// that were created before the cutoff.
func (a *Activities) ListPendingTransactions(ctx context.Context, input ListPendingInput) (*ListPendingResult, error) {
	start := time.Now()
	defer a.recordDuration("ListPendingTransactions", start)

	txns, err := a.store.ListPendingTransactions(ctx, input.Before, input.Limit)
	if err != nil {
		a.logger.ErrorContext(ctx, "failed to list pending transactions",
			"before", input.Before, "error", err)
		return nil, fmt.Errorf("failed to list pending transactions: %w", err)
	}

	signatures := make([]string, len(txns))
	for i, txn := range txns {
		signatures[i] = txn.Signature
	}

	if a.metrics != nil {
		a.metrics.SetPendingBacklog(len(signatures))
	}
	a.logger.DebugContext(ctx, "listed pending transactions",
		"count", len(signatures), "before", input.Before)

	return &ListPendingResult{Signatures: signatures}, nil
}

// CheckTransactionStatus probes the cluster for a signature's status.
// RPC failures are returned so Temporal retries the probe.
func (a *Activities) CheckTransactionStatus(ctx context.Context, input CheckTransactionStatusInput) (*CheckTransactionStatusResult, error) {
	start := time.Now()
	defer a.recordDuration("CheckTransactionStatus", start)

	status, err := a.chain.CheckStatus(ctx, input.Signature)
	if err != nil {
		a.logger.WarnContext(ctx, "status probe failed",
			"signature", input.Signature, "error", err)
		return nil, fmt.Errorf("failed to check status of %s: %w", input.Signature, err)
	}

	return &CheckTransactionStatusResult{Status: string(status)}, nil
}

// ApplyStatusTransition applies a pending→confirmed or pending→failed
// transition through the standard reconcile rules. A record that is already
// terminal or has disappeared is reported rather than retried.
func (a *Activities) ApplyStatusTransition(ctx context.Context, input ApplyStatusTransitionInput) (*ApplyStatusTransitionResult, error) {
	start := time.Now()
	defer a.recordDuration("ApplyStatusTransition", start)

	txn, err := a.ledger.Reconcile(ctx, input.Signature, input.Status)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			a.logger.WarnContext(ctx, "record vanished before reconcile",
				"signature", input.Signature)
			return &ApplyStatusTransitionResult{Applied: false}, nil
		}
		a.logger.ErrorContext(ctx, "failed to apply status transition",
			"signature", input.Signature, "status", input.Status, "error", err)
		return nil, fmt.Errorf("failed to reconcile %s: %w", input.Signature, err)
	}

	return &ApplyStatusTransitionResult{
		Applied: txn.Status == input.Status,
		Status:  txn.Status,
	}, nil
}

func (a *Activities) recordDuration(activity string, start time.Time) {
	if a.metrics != nil {
		a.metrics.RecordActivityDuration(activity, time.Since(start).Seconds())
	}
}
