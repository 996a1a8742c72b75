package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soldash/soldash/service/config"
	"github.com/soldash/soldash/service/db"
	"github.com/soldash/soldash/service/ledger"
	sol "github.com/soldash/soldash/service/solana"
	"github.com/soldash/soldash/service/swap"
)

const (
	testWallet    = "9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin"
	testSignature = "5UfDuX94A1QfqkQvg5WBvM3WUgfjQRGvZtGWeTqGXtBpWyFW7SBkPVqk6DrgxjHcuZZDsZXkh2rvhiKB44S6rYUU"
)

type stubLedger struct {
	record    func(ctx context.Context, params ledger.RecordParams) (*db.Transaction, error)
	reconcile func(ctx context.Context, signature, status string) (*db.Transaction, error)
	history   func(ctx context.Context, walletAddress, filter string) ([]*db.Transaction, error)
}

func (s *stubLedger) Record(ctx context.Context, params ledger.RecordParams) (*db.Transaction, error) {
	return s.record(ctx, params)
}

func (s *stubLedger) Reconcile(ctx context.Context, signature, status string) (*db.Transaction, error) {
	return s.reconcile(ctx, signature, status)
}

func (s *stubLedger) History(ctx context.Context, walletAddress, filter string) ([]*db.Transaction, error) {
	return s.history(ctx, walletAddress, filter)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sampleTxn() *db.Transaction {
	return &db.Transaction{
		ID:            1,
		Signature:     testSignature,
		WalletAddress: testWallet,
		Type:          db.TypeTransfer,
		TokenChanges:  []db.TokenChange{{Amount: -1.5, TokenSymbol: "SOL"}},
		Status:        db.StatusConfirmed,
		Timestamp:     1700000000,
		ExplorerURL:   "https://explorer.solana.com/tx/" + testSignature + "?cluster=devnet",
	}
}

func TestHandleCreateTransaction(t *testing.T) {
	t.Run("created", func(t *testing.T) {
		var got ledger.RecordParams
		svc := &stubLedger{
			record: func(_ context.Context, params ledger.RecordParams) (*db.Transaction, error) {
				got = params
				return sampleTxn(), nil
			},
		}
		handler := handleCreateTransaction(svc, testLogger())

		body := fmt.Sprintf(`{
			"signature": %q,
			"walletAddress": %q,
			"type": "transfer",
			"tokenChanges": [{"amount": -1.5, "tokenSymbol": "SOL"}],
			"status": "confirmed",
			"timestamp": 1700000000
		}`, testSignature, testWallet)

		req := httptest.NewRequest(http.MethodPost, "/api/v1/transactions", strings.NewReader(body))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusCreated, rec.Code)
		assert.Equal(t, testSignature, got.Signature)
		assert.Equal(t, db.TypeTransfer, got.Type)
		require.Len(t, got.TokenChanges, 1)
		assert.Equal(t, "SOL", got.TokenChanges[0].TokenSymbol)

		var resp transactionResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, testSignature, resp.Signature)
		assert.Contains(t, resp.ExplorerURL, "cluster=devnet")
	})

	t.Run("malformed body", func(t *testing.T) {
		svc := &stubLedger{}
		handler := handleCreateTransaction(svc, testLogger())

		req := httptest.NewRequest(http.MethodPost, "/api/v1/transactions", strings.NewReader("{not json"))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		var resp map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Contains(t, resp["error"], "invalid request body")
	})

	t.Run("invalid wallet address", func(t *testing.T) {
		svc := &stubLedger{}
		handler := handleCreateTransaction(svc, testLogger())

		body := fmt.Sprintf(`{"signature": %q, "walletAddress": "bad address!", "type": "transfer", "status": "pending"}`, testSignature)
		req := httptest.NewRequest(http.MethodPost, "/api/v1/transactions", strings.NewReader(body))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("validation error from ledger", func(t *testing.T) {
		svc := &stubLedger{
			record: func(context.Context, ledger.RecordParams) (*db.Transaction, error) {
				return nil, &ledger.ValidationError{Field: "tokenChanges", Reason: "must not be empty for a confirmed record"}
			},
		}
		handler := handleCreateTransaction(svc, testLogger())

		body := fmt.Sprintf(`{"signature": %q, "walletAddress": %q, "type": "transfer", "status": "confirmed"}`, testSignature, testWallet)
		req := httptest.NewRequest(http.MethodPost, "/api/v1/transactions", strings.NewReader(body))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("duplicate signature", func(t *testing.T) {
		svc := &stubLedger{
			record: func(context.Context, ledger.RecordParams) (*db.Transaction, error) {
				return nil, fmt.Errorf("%w: signature %s", ledger.ErrConflict, testSignature)
			},
		}
		handler := handleCreateTransaction(svc, testLogger())

		body := fmt.Sprintf(`{"signature": %q, "walletAddress": %q, "type": "transfer", "status": "pending"}`, testSignature, testWallet)
		req := httptest.NewRequest(http.MethodPost, "/api/v1/transactions", strings.NewReader(body))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("store unavailable", func(t *testing.T) {
		svc := &stubLedger{
			record: func(context.Context, ledger.RecordParams) (*db.Transaction, error) {
				return nil, fmt.Errorf("%w: pool closed", ledger.ErrUnavailable)
			},
		}
		handler := handleCreateTransaction(svc, testLogger())

		body := fmt.Sprintf(`{"signature": %q, "walletAddress": %q, "type": "transfer", "status": "pending"}`, testSignature, testWallet)
		req := httptest.NewRequest(http.MethodPost, "/api/v1/transactions", strings.NewReader(body))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

func TestHandleUpdateTransactionStatus(t *testing.T) {
	newRequest := func(signature, body string) *http.Request {
		req := httptest.NewRequest(http.MethodPatch, "/api/v1/transactions/"+url.PathEscape(signature), strings.NewReader(body))
		req.SetPathValue("signature", signature)
		return req
	}

	t.Run("applied", func(t *testing.T) {
		svc := &stubLedger{
			reconcile: func(_ context.Context, signature, status string) (*db.Transaction, error) {
				assert.Equal(t, testSignature, signature)
				assert.Equal(t, db.StatusConfirmed, status)
				return sampleTxn(), nil
			},
		}
		handler := handleUpdateTransactionStatus(svc, testLogger())

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, newRequest(testSignature, `{"status": "confirmed"}`))

		assert.Equal(t, http.StatusOK, rec.Code)
		var resp transactionResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, db.StatusConfirmed, resp.Status)
	})

	t.Run("unknown signature", func(t *testing.T) {
		svc := &stubLedger{
			reconcile: func(context.Context, string, string) (*db.Transaction, error) {
				return nil, fmt.Errorf("%w: signature %s", ledger.ErrNotFound, testSignature)
			},
		}
		handler := handleUpdateTransactionStatus(svc, testLogger())

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, newRequest(testSignature, `{"status": "confirmed"}`))

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("invalid target status", func(t *testing.T) {
		svc := &stubLedger{
			reconcile: func(context.Context, string, string) (*db.Transaction, error) {
				return nil, &ledger.ValidationError{Field: "status", Reason: "must be confirmed or failed"}
			},
		}
		handler := handleUpdateTransactionStatus(svc, testLogger())

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, newRequest(testSignature, `{"status": "pending"}`))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("malformed signature", func(t *testing.T) {
		svc := &stubLedger{}
		handler := handleUpdateTransactionStatus(svc, testLogger())

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, newRequest("not base58!", `{"status": "confirmed"}`))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestHandleListTransactions(t *testing.T) {
	newRequest := func(wallet, filter string) *http.Request {
		target := "/api/v1/transactions/" + wallet
		if filter != "" {
			target += "?filter=" + filter
		}
		req := httptest.NewRequest(http.MethodGet, target, nil)
		req.SetPathValue("walletAddress", wallet)
		return req
	}

	t.Run("returns transactions with count", func(t *testing.T) {
		svc := &stubLedger{
			history: func(_ context.Context, walletAddress, filter string) ([]*db.Transaction, error) {
				assert.Equal(t, testWallet, walletAddress)
				assert.Equal(t, "transfer", filter)
				return []*db.Transaction{sampleTxn()}, nil
			},
		}
		handler := handleListTransactions(svc, testLogger())

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, newRequest(testWallet, "transfer"))

		assert.Equal(t, http.StatusOK, rec.Code)
		var resp struct {
			Transactions []transactionResponse `json:"transactions"`
			Count        int                   `json:"count"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, 1, resp.Count)
		require.Len(t, resp.Transactions, 1)
		assert.Equal(t, testSignature, resp.Transactions[0].Signature)
	})

	t.Run("empty wallet yields empty array", func(t *testing.T) {
		svc := &stubLedger{
			history: func(context.Context, string, string) ([]*db.Transaction, error) {
				return []*db.Transaction{}, nil
			},
		}
		handler := handleListTransactions(svc, testLogger())

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, newRequest(testWallet, ""))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"transactions":[]`)
		assert.Contains(t, rec.Body.String(), `"count":0`)
	})
}

type stubBalances struct {
	solBalance   sol.Balance
	tokenBalance sol.Balance
	err          error
}

func (s *stubBalances) GetSolBalance(context.Context, string) (sol.Balance, error) {
	return s.solBalance, s.err
}

func (s *stubBalances) GetTokenBalance(context.Context, string, string) (sol.Balance, error) {
	return s.tokenBalance, s.err
}

func TestHandleGetBalance(t *testing.T) {
	newRequest := func(address, mint string) *http.Request {
		target := "/api/v1/balances/" + address
		if mint != "" {
			target += "?token_mint=" + mint
		}
		req := httptest.NewRequest(http.MethodGet, target, nil)
		req.SetPathValue("address", address)
		return req
	}

	t.Run("sol balance", func(t *testing.T) {
		balances := &stubBalances{solBalance: sol.Balance{Amount: 2.5, Decimals: 9}}
		handler := handleGetBalance(balances, testLogger())

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, newRequest(testWallet, ""))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"amount":2.5`)
	})

	t.Run("token balance", func(t *testing.T) {
		balances := &stubBalances{tokenBalance: sol.Balance{Amount: 10, Decimals: 6, Mint: swap.USDCMint}}
		handler := handleGetBalance(balances, testLogger())

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, newRequest(testWallet, swap.USDCMint))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), swap.USDCMint)
	})

	t.Run("rpc failure", func(t *testing.T) {
		balances := &stubBalances{err: errors.New("rpc down")}
		handler := handleGetBalance(balances, testLogger())

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, newRequest(testWallet, ""))

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

func TestHandleSwapQuote(t *testing.T) {
	cfg := &config.Config{SwapSlippageBps: 50}
	registry := swap.NewRegistry(swap.NewManual(100, testLogger()))

	t.Run("manual quote", func(t *testing.T) {
		handler := handleSwapQuote(registry, cfg, testLogger())

		body := fmt.Sprintf(`{
			"provider": "manual",
			"input_mint": %q,
			"output_mint": %q,
			"amount": 1000000000
		}`, swap.SolMint, swap.USDCMint)
		req := httptest.NewRequest(http.MethodPost, "/api/v1/swap/quote", strings.NewReader(body))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		var quote swap.Quote
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &quote))
		assert.Equal(t, uint64(100_000_000), quote.OutAmount)
		assert.Equal(t, 50, quote.SlippageBps, "default slippage applied")
	})

	t.Run("unknown provider", func(t *testing.T) {
		handler := handleSwapQuote(registry, cfg, testLogger())

		body := fmt.Sprintf(`{"provider": "orca", "input_mint": %q, "output_mint": %q, "amount": 1}`, swap.SolMint, swap.USDCMint)
		req := httptest.NewRequest(http.MethodPost, "/api/v1/swap/quote", strings.NewReader(body))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestHandleBuildSwapTransaction(t *testing.T) {
	registry := swap.NewRegistry(swap.NewManual(100, testLogger()))
	handler := handleBuildSwapTransaction(registry, testLogger())

	t.Run("manual transaction", func(t *testing.T) {
		quote := swap.Quote{
			Provider:   "manual",
			InputMint:  swap.SolMint,
			OutputMint: swap.USDCMint,
			InAmount:   1_000_000_000,
			OutAmount:  100_000_000,
		}
		quoteJSON, err := json.Marshal(quote)
		require.NoError(t, err)

		body := fmt.Sprintf(`{"provider": "manual", "quote": %s, "user_public_key": %q}`, quoteJSON, testWallet)
		req := httptest.NewRequest(http.MethodPost, "/api/v1/swap/transaction", strings.NewReader(body))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		var resp swap.SwapTransaction
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.NotEmpty(t, resp.SwapTransaction)
	})

	t.Run("missing quote", func(t *testing.T) {
		body := fmt.Sprintf(`{"provider": "manual", "user_public_key": %q}`, testWallet)
		req := httptest.NewRequest(http.MethodPost, "/api/v1/swap/transaction", strings.NewReader(body))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestCORSMiddleware(t *testing.T) {
	handler := corsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("headers on normal requests", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("preflight short-circuits", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/api/v1/transactions", nil))
		assert.Equal(t, http.StatusNoContent, rec.Code)
	})
}
