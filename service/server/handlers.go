package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/soldash/soldash/service/config"
	"github.com/soldash/soldash/service/db"
	"github.com/soldash/soldash/service/ledger"
	sol "github.com/soldash/soldash/service/solana"
	"github.com/soldash/soldash/service/swap"
)

const (
	maxRequestBodySize = 1 << 20 // 1MB - plenty for a transaction record
	maxAddressLength   = 100     // Solana addresses are 44 chars, give buffer
	maxSignatureLength = 120     // signatures are 87-88 chars base58
)

var (
	// Valid Solana address characters: base58 (no 0, O, I, l)
	validBase58Regex = regexp.MustCompile(`^[1-9A-HJ-NP-Za-km-z]+$`)
)

// Ledger is the recording surface the handlers need.
// *ledger.Service satisfies it; tests substitute a stub.
type Ledger interface {
	Record(ctx context.Context, params ledger.RecordParams) (*db.Transaction, error)
	Reconcile(ctx context.Context, signature, status string) (*db.Transaction, error)
	History(ctx context.Context, walletAddress, filter string) ([]*db.Transaction, error)
}

// BalanceReader reads wallet balances from the chain.
// *solana.Client satisfies it.
type BalanceReader interface {
	GetSolBalance(ctx context.Context, wallet string) (sol.Balance, error)
	GetTokenBalance(ctx context.Context, wallet, mint string) (sol.Balance, error)
}

// handleCreateTransaction returns a handler that records a transaction.
// POST /api/v1/transactions
func handleCreateTransaction(svc Ledger, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

		var req transactionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			logger.Debug("failed to decode create request", "error", err)
			if strings.Contains(err.Error(), "http: request body too large") {
				writeError(w, "request body too large: maximum size is 1MB", http.StatusBadRequest)
				return
			}
			writeError(w, "invalid request body: must be valid JSON", http.StatusBadRequest)
			return
		}

		if err := validateAddress(req.WalletAddress); err != nil {
			logger.Debug("invalid wallet address", "address", req.WalletAddress, "error", err)
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := validateSignature(req.Signature); err != nil {
			logger.Debug("invalid signature", "signature", req.Signature, "error", err)
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		txn, err := svc.Record(r.Context(), req.toParams())
		if err != nil {
			writeLedgerError(w, r, err, logger)
			return
		}

		writeJSON(w, transactionToResponse(txn), http.StatusCreated)
	})
}

// handleUpdateTransactionStatus returns a handler that reconciles a
// record's status.
// PATCH /api/v1/transactions/{signature}
func handleUpdateTransactionStatus(svc Ledger, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

		signature := r.PathValue("signature")
		if err := validateSignature(signature); err != nil {
			logger.Debug("invalid signature", "signature", signature, "error", err)
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		var req struct {
			Status string `json:"status"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			logger.Debug("failed to decode status request", "error", err)
			writeError(w, "invalid request body: must be valid JSON", http.StatusBadRequest)
			return
		}

		txn, err := svc.Reconcile(r.Context(), signature, req.Status)
		if err != nil {
			writeLedgerError(w, r, err, logger)
			return
		}

		writeJSON(w, transactionToResponse(txn), http.StatusOK)
	})
}

// handleListTransactions returns a handler that serves a wallet's history.
// GET /api/v1/transactions/{walletAddress}?filter={all|transfer|swap}
func handleListTransactions(svc Ledger, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		walletAddress := r.PathValue("walletAddress")
		filter := r.URL.Query().Get("filter")

		if err := validateAddress(walletAddress); err != nil {
			logger.Debug("invalid wallet address", "address", walletAddress, "error", err)
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		txns, err := svc.History(r.Context(), walletAddress, filter)
		if err != nil {
			writeLedgerError(w, r, err, logger)
			return
		}

		resp := make([]transactionResponse, len(txns))
		for i, txn := range txns {
			resp[i] = transactionToResponse(txn)
		}

		writeJSON(w, map[string]interface{}{
			"transactions": resp,
			"count":        len(resp),
		}, http.StatusOK)
	})
}

// handleGetBalance returns a handler that reads a wallet balance.
// GET /api/v1/balances/{address}?token_mint={mint}
func handleGetBalance(balances BalanceReader, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		address := r.PathValue("address")
		mint := r.URL.Query().Get("token_mint")

		if err := validateAddress(address); err != nil {
			logger.Debug("invalid address", "address", address, "error", err)
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		var (
			bal sol.Balance
			err error
		)
		if mint == "" {
			bal, err = balances.GetSolBalance(r.Context(), address)
		} else {
			if verr := validateAddress(mint); verr != nil {
				writeError(w, fmt.Sprintf("invalid token_mint: %v", verr), http.StatusBadRequest)
				return
			}
			bal, err = balances.GetTokenBalance(r.Context(), address, mint)
		}
		if err != nil {
			logger.Error("failed to fetch balance", "address", address, "mint", mint, "error", err)
			writeError(w, "failed to fetch balance", http.StatusInternalServerError)
			return
		}

		writeJSON(w, map[string]interface{}{
			"address": address,
			"balance": bal,
		}, http.StatusOK)
	})
}

// handleSwapQuote returns a handler that quotes a trade via a provider.
// POST /api/v1/swap/quote
func handleSwapQuote(swaps *swap.Registry, cfg *config.Config, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

		var req struct {
			Provider string `json:"provider"`
			swap.QuoteParams
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			logger.Debug("failed to decode quote request", "error", err)
			writeError(w, "invalid request body: must be valid JSON", http.StatusBadRequest)
			return
		}
		if req.SlippageBps == 0 {
			req.SlippageBps = cfg.SwapSlippageBps
		}

		provider, err := swaps.Get(req.Provider)
		if err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		quote, err := provider.GetQuote(r.Context(), req.QuoteParams)
		if err != nil {
			logger.Error("quote failed", "provider", req.Provider, "error", err)
			writeError(w, err.Error(), http.StatusBadGateway)
			return
		}

		writeJSON(w, quote, http.StatusOK)
	})
}

// handleBuildSwapTransaction returns a handler that builds an unsigned swap
// transaction from a previously obtained quote.
// POST /api/v1/swap/transaction
func handleBuildSwapTransaction(swaps *swap.Registry, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

		var req struct {
			Provider      string      `json:"provider"`
			Quote         *swap.Quote `json:"quote"`
			UserPublicKey string      `json:"user_public_key"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			logger.Debug("failed to decode swap request", "error", err)
			writeError(w, "invalid request body: must be valid JSON", http.StatusBadRequest)
			return
		}
		if req.Quote == nil {
			writeError(w, "quote is required", http.StatusBadRequest)
			return
		}
		if err := validateAddress(req.UserPublicKey); err != nil {
			writeError(w, fmt.Sprintf("invalid user_public_key: %v", err), http.StatusBadRequest)
			return
		}

		provider, err := swaps.Get(req.Provider)
		if err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		swapTx, err := provider.BuildSwapTransaction(r.Context(), req.Quote, req.UserPublicKey)
		if err != nil {
			logger.Error("swap transaction build failed", "provider", req.Provider, "error", err)
			writeError(w, err.Error(), http.StatusBadGateway)
			return
		}

		writeJSON(w, swapTx, http.StatusOK)
	})
}

// transactionRequest is the JSON request format for creating a record.
type transactionRequest struct {
	Signature     string           `json:"signature"`
	WalletAddress string           `json:"walletAddress"`
	Type          string           `json:"type"`
	TokenChanges  []db.TokenChange `json:"tokenChanges"`
	Status        string           `json:"status"`
	Timestamp     *int64           `json:"timestamp"`
	From          *string          `json:"from"`
	To            *string          `json:"to"`
	Value         *float64         `json:"value"`
	Fee           *float64         `json:"fee"`
	PriceImpact   *string          `json:"priceImpact"`
	InputMint     *string          `json:"inputMint"`
	OutputMint    *string          `json:"outputMint"`
}

func (req *transactionRequest) toParams() ledger.RecordParams {
	return ledger.RecordParams{
		Signature:     req.Signature,
		WalletAddress: req.WalletAddress,
		Type:          req.Type,
		TokenChanges:  req.TokenChanges,
		Status:        req.Status,
		Timestamp:     req.Timestamp,
		FromAddress:   req.From,
		ToAddress:     req.To,
		Value:         req.Value,
		Fee:           req.Fee,
		PriceImpact:   req.PriceImpact,
		InputMint:     req.InputMint,
		OutputMint:    req.OutputMint,
	}
}

// transactionResponse is the JSON response format for a record.
type transactionResponse struct {
	Signature     string           `json:"signature"`
	WalletAddress string           `json:"walletAddress"`
	Type          string           `json:"type"`
	TokenChanges  []db.TokenChange `json:"tokenChanges"`
	Status        string           `json:"status"`
	Timestamp     int64            `json:"timestamp"`
	ExplorerURL   string           `json:"explorerUrl"`
	From          *string          `json:"from,omitempty"`
	To            *string          `json:"to,omitempty"`
	Value         *float64         `json:"value,omitempty"`
	Fee           *float64         `json:"fee,omitempty"`
	PriceImpact   *string          `json:"priceImpact,omitempty"`
	InputMint     *string          `json:"inputMint,omitempty"`
	OutputMint    *string          `json:"outputMint,omitempty"`
	CreatedAt     time.Time        `json:"createdAt"`
}

// transactionToResponse converts a domain record to a response format.
func transactionToResponse(txn *db.Transaction) transactionResponse {
	return transactionResponse{
		Signature:     txn.Signature,
		WalletAddress: txn.WalletAddress,
		Type:          txn.Type,
		TokenChanges:  txn.TokenChanges,
		Status:        txn.Status,
		Timestamp:     txn.Timestamp,
		ExplorerURL:   txn.ExplorerURL,
		From:          txn.FromAddress,
		To:            txn.ToAddress,
		Value:         txn.Value,
		Fee:           txn.Fee,
		PriceImpact:   txn.PriceImpact,
		InputMint:     txn.InputMint,
		OutputMint:    txn.OutputMint,
		CreatedAt:     txn.CreatedAt,
	}
}

// writeLedgerError maps ledger errors to HTTP status codes.
func writeLedgerError(w http.ResponseWriter, r *http.Request, err error, logger *slog.Logger) {
	switch {
	case ledger.IsValidation(err):
		writeError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, ledger.ErrConflict):
		writeError(w, err.Error(), http.StatusConflict)
	case errors.Is(err, ledger.ErrNotFound):
		writeError(w, err.Error(), http.StatusNotFound)
	default:
		logger.Error("request failed", "path", r.URL.Path, "error", err)
		writeError(w, "internal server error", http.StatusInternalServerError)
	}
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{
		"error": message,
	})
}

// validateAddress validates a wallet address for security and format.
func validateAddress(address string) error {
	if address == "" {
		return fmt.Errorf("address is required")
	}
	if len(address) > maxAddressLength {
		return fmt.Errorf("address too long: maximum length is %d characters", maxAddressLength)
	}
	for _, r := range address {
		if r == 0 || unicode.IsControl(r) {
			return fmt.Errorf("invalid characters in address: control characters not allowed")
		}
	}
	if !validBase58Regex.MatchString(address) {
		return fmt.Errorf("invalid address format: must contain only valid base58 characters")
	}
	return nil
}

// validateSignature validates a transaction signature path/body value.
func validateSignature(signature string) error {
	if signature == "" {
		return fmt.Errorf("signature is required")
	}
	if len(signature) > maxSignatureLength {
		return fmt.Errorf("signature too long: maximum length is %d characters", maxSignatureLength)
	}
	if !validBase58Regex.MatchString(signature) {
		return fmt.Errorf("invalid signature format: must contain only valid base58 characters")
	}
	return nil
}
