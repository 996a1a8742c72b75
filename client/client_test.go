package client

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soldash/soldash/service/swap"
)

const (
	testWallet    = "7xKXtg2CW87d97TXJSDpbD5jBkheTqA83TZRuJosgAsU"
	testSignature = "5VERv8NMvzbJMEkV8xnrLkEaWRtSz9CosKDYjCJjBRnbJLgp8uirBgmQpjKhoR4tjF3ZpRzrFmBV6UjKdiSZkQUW"
)

func TestCreateTransaction_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "/api/v1/transactions", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]interface{}
		err := json.NewDecoder(r.Body).Decode(&body)
		require.NoError(t, err)

		assert.Equal(t, testSignature, body["signature"])
		assert.Equal(t, testWallet, body["walletAddress"])
		assert.Equal(t, "transfer", body["type"])

		response := map[string]interface{}{
			"signature":     testSignature,
			"walletAddress": testWallet,
			"type":          "transfer",
			"tokenChanges":  []map[string]interface{}{{"amount": -1.5, "tokenSymbol": "SOL"}},
			"status":        "pending",
			"timestamp":     1700000000,
			"explorerUrl":   "https://explorer.solana.com/tx/" + testSignature,
			"createdAt":     time.Now(),
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(response)
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, nil)
	txn, err := client.CreateTransaction(context.Background(), CreateTransactionParams{
		Signature:     testSignature,
		WalletAddress: testWallet,
		Type:          "transfer",
		TokenChanges:  []TokenChange{{Amount: -1.5, TokenSymbol: "SOL"}},
		Status:        "pending",
	})
	require.NoError(t, err)
	require.NotNil(t, txn)

	assert.Equal(t, testSignature, txn.Signature)
	assert.Equal(t, "pending", txn.Status)
	assert.Equal(t, int64(1700000000), txn.Timestamp)
	assert.Contains(t, txn.ExplorerURL, testSignature)
}

func TestCreateTransaction_Conflict(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(map[string]string{
			"error": "transaction already recorded",
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, nil)
	_, err := client.CreateTransaction(context.Background(), CreateTransactionParams{
		Signature:     testSignature,
		WalletAddress: testWallet,
		Type:          "transfer",
		Status:        "pending",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already recorded")
}

func TestUpdateTransactionStatus_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "PATCH", r.Method)
		assert.Equal(t, "/api/v1/transactions/"+testSignature, r.URL.Path)

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "confirmed", body["status"])

		response := map[string]interface{}{
			"signature":     testSignature,
			"walletAddress": testWallet,
			"type":          "transfer",
			"status":        "confirmed",
			"timestamp":     1700000000,
			"explorerUrl":   "https://explorer.solana.com/tx/" + testSignature,
			"createdAt":     time.Now(),
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(response)
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, nil)
	txn, err := client.UpdateTransactionStatus(context.Background(), testSignature, "confirmed")
	require.NoError(t, err)
	assert.Equal(t, "confirmed", txn.Status)
}

func TestUpdateTransactionStatus_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{
			"error": "transaction not found",
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, nil)
	_, err := client.UpdateTransactionStatus(context.Background(), testSignature, "confirmed")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestListTransactions_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "GET", r.Method)
		assert.Equal(t, "/api/v1/transactions/"+testWallet, r.URL.Path)
		assert.Equal(t, "swap", r.URL.Query().Get("filter"))

		response := map[string]interface{}{
			"transactions": []map[string]interface{}{
				{
					"signature":     testSignature,
					"walletAddress": testWallet,
					"type":          "swap",
					"status":        "confirmed",
					"timestamp":     1700000100,
					"explorerUrl":   "https://explorer.solana.com/tx/" + testSignature,
					"createdAt":     time.Now(),
				},
			},
			"count": 1,
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(response)
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, nil)
	txns, err := client.ListTransactions(context.Background(), testWallet, "swap")
	require.NoError(t, err)
	require.Len(t, txns, 1)
	assert.Equal(t, "swap", txns[0].Type)
}

func TestListTransactions_Empty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.URL.Query().Get("filter"))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"transactions": []interface{}{},
			"count":        0,
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, nil)
	txns, err := client.ListTransactions(context.Background(), testWallet, "")
	require.NoError(t, err)
	assert.Empty(t, txns)
}

func TestGetBalance_Sol(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/balances/"+testWallet, r.URL.Path)
		assert.Empty(t, r.URL.Query().Get("token_mint"))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"address": testWallet,
			"balance": map[string]interface{}{"amount": 2.5, "decimals": 9},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, nil)
	bal, err := client.GetBalance(context.Background(), testWallet, "")
	require.NoError(t, err)
	assert.Equal(t, 2.5, bal.Amount)
	assert.Equal(t, uint8(9), bal.Decimals)
}

func TestGetBalance_Token(t *testing.T) {
	usdcMint := "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, usdcMint, r.URL.Query().Get("token_mint"))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"address": testWallet,
			"balance": map[string]interface{}{"amount": 150.0, "decimals": 6, "mint": usdcMint},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, nil)
	bal, err := client.GetBalance(context.Background(), testWallet, usdcMint)
	require.NoError(t, err)
	assert.Equal(t, 150.0, bal.Amount)
	assert.Equal(t, usdcMint, bal.Mint)
}

func TestGetSwapQuote_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "/api/v1/swap/quote", r.URL.Path)

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "jupiter", body["provider"])

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"provider":      "jupiter",
			"input_mint":    "So11111111111111111111111111111111111111112",
			"output_mint":   "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v",
			"in_amount":     1000000000,
			"out_amount":    150000000,
			"exchange_rate":    150.0,
			"price_impact_pct": "0.05",
			"slippage_bps":     50,
			"raw":              map[string]interface{}{"inAmount": "1000000000"},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, nil)
	quote, err := client.GetSwapQuote(context.Background(), QuoteParams{
		Provider:    "jupiter",
		InputMint:   "So11111111111111111111111111111111111111112",
		OutputMint:  "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v",
		Amount:      1_000_000_000,
		SlippageBps: 50,
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(150_000_000), quote.OutAmount)
	assert.Equal(t, "0.05", quote.PriceImpactPct)
	assert.NotEmpty(t, quote.Raw)
}

// The SwapQuote wire type must stay decode-compatible with the quote struct
// the service encodes, and the build request must round-trip it back intact.
func TestSwapQuote_RoundTripsServiceEncoding(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	manual := swap.NewManual(100, logger)
	serverQuote, err := manual.GetQuote(context.Background(), swap.QuoteParams{
		InputMint:   swap.SolMint,
		OutputMint:  swap.USDCMint,
		Amount:      1_000_000_000,
		SlippageBps: 50,
	})
	require.NoError(t, err)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/swap/quote":
			w.Header().Set("Content-Type", "application/json")
			require.NoError(t, json.NewEncoder(w).Encode(serverQuote))
		case "/api/v1/swap/transaction":
			var body struct {
				Provider      string     `json:"provider"`
				Quote         swap.Quote `json:"quote"`
				UserPublicKey string     `json:"user_public_key"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, serverQuote.PriceImpactPct, body.Quote.PriceImpactPct)
			assert.Equal(t, serverQuote.OutAmount, body.Quote.OutAmount)

			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]string{
				"provider":         "manual",
				"swap_transaction": "dHg=",
			})
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	}))
	defer server.Close()

	cl := NewClient(server.URL, nil, nil)
	quote, err := cl.GetSwapQuote(context.Background(), QuoteParams{
		Provider:    "manual",
		InputMint:   swap.SolMint,
		OutputMint:  swap.USDCMint,
		Amount:      1_000_000_000,
		SlippageBps: 50,
	})
	require.NoError(t, err)
	assert.Equal(t, serverQuote.PriceImpactPct, quote.PriceImpactPct)
	assert.Equal(t, serverQuote.OutAmount, quote.OutAmount)

	tx, err := cl.BuildSwapTransaction(context.Background(), quote, testWallet)
	require.NoError(t, err)
	assert.Equal(t, "dHg=", tx.SwapTransaction)
}

func TestBuildSwapTransaction_RoundTripsQuote(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/swap/transaction", r.URL.Path)

		var body struct {
			Provider      string    `json:"provider"`
			Quote         SwapQuote `json:"quote"`
			UserPublicKey string    `json:"user_public_key"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "jupiter", body.Provider)
		assert.Equal(t, testWallet, body.UserPublicKey)
		assert.JSONEq(t, `{"inAmount":"1000000000"}`, string(body.Quote.Raw))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"provider":         "jupiter",
			"swap_transaction": "AQID",
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, nil)
	swapTx, err := client.BuildSwapTransaction(context.Background(), &SwapQuote{
		Provider: "jupiter",
		Raw:      json.RawMessage(`{"inAmount":"1000000000"}`),
	}, testWallet)
	require.NoError(t, err)
	assert.Equal(t, "AQID", swapTx.SwapTransaction)
}

func TestHealth(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, nil)
	assert.NoError(t, client.Health(context.Background()))
}

func TestParseErrorResponse_NonJSONBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("upstream exploded"))
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, nil)
	_, err := client.ListTransactions(context.Background(), testWallet, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 502")
}
