package temporal

import (
	"time"

	"github.com/soldash/soldash/service/db"
	temporalsdk "go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

var a *Activities // for type-safe activity invocation

// ReconcilePendingWorkflow reconciles pending transaction records against
// on-chain state. It is triggered by a Temporal schedule at a configured
// interval.
//
// The workflow performs these steps:
// 1. List pending records older than the grace period (ListPendingTransactions)
// 2. Probe each signature's on-chain status (CheckTransactionStatus)
// 3. Apply pending→confirmed / pending→failed transitions (ApplyStatusTransition)
//
// A probe or transition failure for one signature never aborts the pass;
// the remaining signatures are still processed.
func ReconcilePendingWorkflow(ctx workflow.Context, input ReconcilePendingInput) (*ReconcilePendingResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("ReconcilePendingWorkflow started",
		"min_age", input.MinAge, "batch_size", input.BatchSize)

	result := &ReconcilePendingResult{
		RunTime: workflow.Now(ctx),
	}

	if input.BatchSize <= 0 {
		input.BatchSize = 100
	}

	activityOptions := workflow.ActivityOptions{
		StartToCloseTimeout: 60 * time.Second,
		RetryPolicy: &temporalsdk.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    30 * time.Second,
			MaximumAttempts:    3,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, activityOptions)

	// Step 1: List pending records past the grace period.
	cutoff := workflow.Now(ctx).Add(-input.MinAge)
	var pending *ListPendingResult
	err := workflow.ExecuteActivity(ctx, a.ListPendingTransactions, ListPendingInput{
		Before: cutoff,
		Limit:  input.BatchSize,
	}).Get(ctx, &pending)
	if err != nil {
		return result, err
	}

	if len(pending.Signatures) == 0 {
		logger.Debug("no pending transactions to reconcile")
		return result, nil
	}

	logger.Info("reconciling pending transactions", "count", len(pending.Signatures))

	// Steps 2+3: probe each signature and apply the observed status.
	for _, signature := range pending.Signatures {
		result.Checked++

		var check *CheckTransactionStatusResult
		err := workflow.ExecuteActivity(ctx, a.CheckTransactionStatus, CheckTransactionStatusInput{
			Signature: signature,
		}).Get(ctx, &check)
		if err != nil {
			logger.Warn("status probe exhausted retries", "signature", signature, "error", err)
			result.Errors++
			continue
		}

		if check.Status == db.StatusPending {
			result.StillPending++
			continue
		}

		var applied *ApplyStatusTransitionResult
		err = workflow.ExecuteActivity(ctx, a.ApplyStatusTransition, ApplyStatusTransitionInput{
			Signature: signature,
			Status:    check.Status,
		}).Get(ctx, &applied)
		if err != nil {
			logger.Warn("status transition failed", "signature", signature, "error", err)
			result.Errors++
			continue
		}

		switch check.Status {
		case db.StatusConfirmed:
			result.Confirmed++
		case db.StatusFailed:
			result.Failed++
		}
	}

	logger.Info("ReconcilePendingWorkflow finished",
		"checked", result.Checked,
		"confirmed", result.Confirmed,
		"failed", result.Failed,
		"still_pending", result.StillPending,
		"errors", result.Errors,
	)

	return result, nil
}
