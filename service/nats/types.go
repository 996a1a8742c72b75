package nats

import (
	"time"

	"github.com/soldash/soldash/service/db"
)

// Event kinds published to the record stream.
const (
	EventKindCreated       = "created"
	EventKindStatusChanged = "status_changed"
)

// RecordEvent is a ledger record lifecycle event published to NATS.
// Events are published to the subject "txrecords.{wallet_address}".
type RecordEvent struct {
	// Kind is "created" or "status_changed".
	Kind string `json:"kind"`

	// Record identifiers
	Signature     string `json:"signature"`
	WalletAddress string `json:"wallet_address"`

	// Record details
	Type         string           `json:"type"`
	Status       string           `json:"status"`
	TokenChanges []db.TokenChange `json:"token_changes,omitempty"`
	FromAddress  *string          `json:"from_address,omitempty"`
	ToAddress    *string          `json:"to_address,omitempty"`
	Value        *float64         `json:"value,omitempty"`
	ExplorerURL  string           `json:"explorer_url"`

	// Timing information
	Timestamp   int64     `json:"timestamp"`
	PublishedAt time.Time `json:"published_at"`
}

// FromDBTransaction converts a stored record into a RecordEvent for publishing.
func FromDBTransaction(kind string, txn *db.Transaction) *RecordEvent {
	return &RecordEvent{
		Kind:          kind,
		Signature:     txn.Signature,
		WalletAddress: txn.WalletAddress,
		Type:          txn.Type,
		Status:        txn.Status,
		TokenChanges:  txn.TokenChanges,
		FromAddress:   txn.FromAddress,
		ToAddress:     txn.ToAddress,
		Value:         txn.Value,
		ExplorerURL:   txn.ExplorerURL,
		Timestamp:     txn.Timestamp,
		PublishedAt:   time.Now().UTC(),
	}
}
