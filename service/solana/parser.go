package solana

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

const lamportsPerSol = 1_000_000_000

// lamportsToSol converts a lamport amount to SOL.
func lamportsToSol(lamports uint64) float64 {
	return float64(lamports) / lamportsPerSol
}

// extractTransferDetails recovers sender, recipient, and transferred value
// from a transaction's pre/post lamport balances. The sender is the first
// account whose balance decreased (the fee payer in a simple transfer) and
// the recipient is the first account whose balance increased. The value is
// the recipient's balance increase in SOL.
//
// Returns a zero-valued TransferDetails when the result carries no meta or
// when the balance deltas are inconclusive (e.g. a transfer to self).
func extractTransferDetails(result *rpc.GetTransactionResult) TransferDetails {
	var details TransferDetails
	if result == nil || result.Meta == nil {
		return details
	}
	meta := result.Meta

	fee := lamportsToSol(meta.Fee)
	details.Fee = &fee

	tx, err := result.Transaction.GetTransaction()
	if err != nil || tx == nil {
		return details
	}
	accountKeys := tx.Message.AccountKeys

	n := len(meta.PreBalances)
	if len(meta.PostBalances) < n {
		n = len(meta.PostBalances)
	}
	if len(accountKeys) < n {
		n = len(accountKeys)
	}

	for i := 0; i < n; i++ {
		pre, post := meta.PreBalances[i], meta.PostBalances[i]
		switch {
		case post < pre && details.From == nil:
			from := accountKeys[i].String()
			details.From = &from
		case post > pre && details.To == nil:
			to := accountKeys[i].String()
			details.To = &to
			value := lamportsToSol(post - pre)
			details.Value = &value
		}
	}
	return details
}

// statusFromResult maps a GetTransaction result to a TxStatus.
// A nil result means the transaction is not yet visible on chain.
func statusFromResult(result *rpc.GetTransactionResult) TxStatus {
	if result == nil {
		return TxStatusPending
	}
	if result.Meta != nil && result.Meta.Err != nil {
		return TxStatusFailed
	}
	return TxStatusConfirmed
}

// ExplorerTxURL builds the Solana Explorer URL for a transaction signature.
// Non-mainnet clusters are appended as a query parameter, matching explorer
// URL conventions.
func ExplorerTxURL(cluster, signature string) string {
	if cluster == "" || cluster == "mainnet-beta" {
		return fmt.Sprintf("https://explorer.solana.com/tx/%s", signature)
	}
	return fmt.Sprintf("https://explorer.solana.com/tx/%s?cluster=%s", signature, cluster)
}

// ValidAddress reports whether s parses as a Solana public key.
func ValidAddress(s string) bool {
	_, err := solana.PublicKeyFromBase58(s)
	return err == nil
}
