package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

// TokenChange is one net token delta observed for a transaction.
type TokenChange struct {
	Amount      float64 `json:"amount"`
	TokenSymbol string  `json:"tokenSymbol"`
}

// Transaction is a recorded dapp transaction as returned by the server.
type Transaction struct {
	Signature     string        `json:"signature"`
	WalletAddress string        `json:"walletAddress"`
	Type          string        `json:"type"` // transfer, swap
	TokenChanges  []TokenChange `json:"tokenChanges"`
	Status        string        `json:"status"` // pending, confirmed, failed
	Timestamp     int64         `json:"timestamp"`
	ExplorerURL   string        `json:"explorerUrl"`
	From          *string       `json:"from,omitempty"`
	To            *string       `json:"to,omitempty"`
	Value         *float64      `json:"value,omitempty"`
	Fee           *float64      `json:"fee,omitempty"`
	PriceImpact   *string       `json:"priceImpact,omitempty"`
	InputMint     *string       `json:"inputMint,omitempty"`
	OutputMint    *string       `json:"outputMint,omitempty"`
	CreatedAt     time.Time     `json:"createdAt"`
}

// CreateTransactionParams contains the client-observed facts for a new record.
// Signature, WalletAddress, Type, and Status are required; the rest are
// optional and the server fills in what it can from the chain.
type CreateTransactionParams struct {
	Signature     string        `json:"signature"`
	WalletAddress string        `json:"walletAddress"`
	Type          string        `json:"type"`
	TokenChanges  []TokenChange `json:"tokenChanges"`
	Status        string        `json:"status"`
	Timestamp     *int64        `json:"timestamp,omitempty"`
	From          *string       `json:"from,omitempty"`
	To            *string       `json:"to,omitempty"`
	Value         *float64      `json:"value,omitempty"`
	Fee           *float64      `json:"fee,omitempty"`
	PriceImpact   *string       `json:"priceImpact,omitempty"`
	InputMint     *string       `json:"inputMint,omitempty"`
	OutputMint    *string       `json:"outputMint,omitempty"`
}

// Balance is a wallet's balance in one asset.
type Balance struct {
	Amount   float64 `json:"amount"`
	Decimals uint8   `json:"decimals"`
	Mint     string  `json:"mint,omitempty"`
}

// SwapQuote is a provider quote for a token swap. Raw holds the provider's
// quote payload and must be passed back unchanged to BuildSwapTransaction.
type SwapQuote struct {
	Provider       string          `json:"provider"`
	InputMint      string          `json:"input_mint"`
	OutputMint     string          `json:"output_mint"`
	InAmount       uint64          `json:"in_amount"`
	OutAmount      uint64          `json:"out_amount"`
	ExchangeRate   float64         `json:"exchange_rate"`
	PriceImpactPct string          `json:"price_impact_pct,omitempty"`
	SlippageBps    int             `json:"slippage_bps"`
	Raw            json.RawMessage `json:"raw,omitempty"`
}

// QuoteParams are the parameters for requesting a swap quote.
type QuoteParams struct {
	Provider    string `json:"provider"`
	InputMint   string `json:"input_mint"`
	OutputMint  string `json:"output_mint"`
	Amount      uint64 `json:"amount"`
	SlippageBps int    `json:"slippage_bps,omitempty"`
}

// SwapTransaction is an unsigned, base64-encoded swap transaction for the
// user's wallet to sign and send.
type SwapTransaction struct {
	Provider        string `json:"provider"`
	SwapTransaction string `json:"swap_transaction"`
}

// Client is the HTTP client for the soldash transaction service.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a new transaction service client.
func NewClient(baseURL string, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     logger,
	}
}

// CreateTransaction records a new transaction on the server.
func (c *Client) CreateTransaction(ctx context.Context, params CreateTransactionParams) (*Transaction, error) {
	body, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/api/v1/transactions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return nil, c.parseErrorResponse(resp)
	}

	var txn Transaction
	if err := json.NewDecoder(resp.Body).Decode(&txn); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	c.logger.Debug("transaction recorded", "signature", txn.Signature, "status", txn.Status)
	return &txn, nil
}

// UpdateTransactionStatus moves a pending record to confirmed or failed.
// Updating an already terminal record is a no-op and returns the record as is.
func (c *Client) UpdateTransactionStatus(ctx context.Context, signature, status string) (*Transaction, error) {
	body, err := json.Marshal(map[string]string{"status": status})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	u := fmt.Sprintf("%s/api/v1/transactions/%s", c.baseURL, url.PathEscape(signature))
	req, err := http.NewRequestWithContext(ctx, "PATCH", u, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.parseErrorResponse(resp)
	}

	var txn Transaction
	if err := json.NewDecoder(resp.Body).Decode(&txn); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	c.logger.Debug("transaction status updated", "signature", signature, "status", txn.Status)
	return &txn, nil
}

// ListTransactions retrieves a wallet's transaction history, newest first.
// filter is "all", "transfer", or "swap"; empty means all.
func (c *Client) ListTransactions(ctx context.Context, walletAddress, filter string) ([]*Transaction, error) {
	u := fmt.Sprintf("%s/api/v1/transactions/%s", c.baseURL, url.PathEscape(walletAddress))
	if filter != "" {
		u += "?filter=" + url.QueryEscape(filter)
	}

	req, err := http.NewRequestWithContext(ctx, "GET", u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.parseErrorResponse(resp)
	}

	var response struct {
		Transactions []*Transaction `json:"transactions"`
		Count        int            `json:"count"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return response.Transactions, nil
}

// GetBalance retrieves a wallet's balance. With an empty tokenMint it
// returns the native SOL balance, otherwise the SPL token balance.
func (c *Client) GetBalance(ctx context.Context, address, tokenMint string) (*Balance, error) {
	u := fmt.Sprintf("%s/api/v1/balances/%s", c.baseURL, url.PathEscape(address))
	if tokenMint != "" {
		u += "?token_mint=" + url.QueryEscape(tokenMint)
	}

	req, err := http.NewRequestWithContext(ctx, "GET", u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.parseErrorResponse(resp)
	}

	var response struct {
		Address string  `json:"address"`
		Balance Balance `json:"balance"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &response.Balance, nil
}

// GetSwapQuote requests a swap quote from the named provider.
func (c *Client) GetSwapQuote(ctx context.Context, params QuoteParams) (*SwapQuote, error) {
	body, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/api/v1/swap/quote", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.parseErrorResponse(resp)
	}

	var quote SwapQuote
	if err := json.NewDecoder(resp.Body).Decode(&quote); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &quote, nil
}

// BuildSwapTransaction builds an unsigned swap transaction from a quote
// previously obtained with GetSwapQuote.
func (c *Client) BuildSwapTransaction(ctx context.Context, quote *SwapQuote, userPublicKey string) (*SwapTransaction, error) {
	body, err := json.Marshal(map[string]interface{}{
		"provider":        quote.Provider,
		"quote":           quote,
		"user_public_key": userPublicKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/api/v1/swap/transaction", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.parseErrorResponse(resp)
	}

	var swapTx SwapTransaction
	if err := json.NewDecoder(resp.Body).Decode(&swapTx); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &swapTx, nil
}

// Health checks the server's health endpoint.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

// parseErrorResponse attempts to parse an error response from the server.
func (c *Client) parseErrorResponse(resp *http.Response) error {
	var errResp struct {
		Error string `json:"error"`
	}

	body, _ := io.ReadAll(resp.Body)
	if err := json.Unmarshal(body, &errResp); err != nil || errResp.Error == "" {
		return fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(body))
	}

	return fmt.Errorf("request failed: %s", errResp.Error)
}
