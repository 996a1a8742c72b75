package temporal

import (
	"context"
	"time"
)

// Scheduler manages the Temporal schedule that periodically reconciles
// pending transaction records against on-chain state.
type Scheduler interface {
	// EnsureReconcileSchedule creates the reconcile schedule or updates its
	// interval if it already exists.
	EnsureReconcileSchedule(ctx context.Context, interval, minAge time.Duration, batchSize int32) error

	// DeleteReconcileSchedule deletes the reconcile schedule.
	DeleteReconcileSchedule(ctx context.Context) error
}

// reconcileScheduleID is the fixed Temporal schedule ID for the reconcile
// poller. There is exactly one schedule per deployment.
const reconcileScheduleID = "reconcile-pending-transactions"
