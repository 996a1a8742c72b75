package solana

// TxStatus is the on-chain status of a transaction as reported by RPC.
type TxStatus string

const (
	// TxStatusPending means the transaction is not yet visible on chain.
	TxStatusPending TxStatus = "pending"
	// TxStatusConfirmed means the transaction landed and executed successfully.
	TxStatusConfirmed TxStatus = "confirmed"
	// TxStatusFailed means the transaction landed but its execution errored.
	TxStatusFailed TxStatus = "failed"
)

// TransferDetails holds the fields we can recover from a confirmed
// transaction's balance changes. Any field may be nil if the transaction
// could not be fetched or the balance deltas were inconclusive.
type TransferDetails struct {
	From  *string  // account whose lamport balance decreased first
	To    *string  // account whose lamport balance increased first
	Value *float64 // SOL received by To
	Fee   *float64 // transaction fee in SOL
}

// Balance is a wallet's balance in a single asset.
type Balance struct {
	Amount   float64 `json:"amount"`
	Decimals uint8   `json:"decimals"`
	Mint     string  `json:"mint,omitempty"` // empty for native SOL
}
