package solana

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/soldash/soldash/service/metrics"
)

// RPCClient is an interface for the Solana RPC operations we need.
// This allows us to mock the RPC layer in tests without hitting real Solana nodes.
type RPCClient interface {
	GetTransaction(
		ctx context.Context,
		signature solana.Signature,
		opts *rpc.GetTransactionOpts,
	) (*rpc.GetTransactionResult, error)

	GetBalance(
		ctx context.Context,
		account solana.PublicKey,
		commitment rpc.CommitmentType,
	) (*rpc.GetBalanceResult, error)

	GetTokenAccountBalance(
		ctx context.Context,
		account solana.PublicKey,
		commitment rpc.CommitmentType,
	) (*rpc.GetTokenAccountBalanceResult, error)
}

// NewRPCClient creates a real RPC client for the given endpoint URL.
func NewRPCClient(endpoint string) RPCClient {
	return rpc.New(endpoint)
}

// Client reads transaction and balance state from a Solana cluster.
// It wraps the RPC client with domain-specific operations.
type Client struct {
	rpc      RPCClient
	logger   *slog.Logger
	metrics  *metrics.Metrics
	endpoint string // RPC endpoint identifier for metrics (e.g., "mainnet", "devnet", rpc host)
	timeout  time.Duration
}

// NewClient creates a new Solana client.
// The endpoint parameter is used for metrics labeling (e.g., "mainnet", "devnet", or RPC hostname).
// If metrics is nil, no metrics will be recorded.
func NewClient(rpcClient RPCClient, endpoint string, timeout time.Duration, m *metrics.Metrics, logger *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		rpc:      rpcClient,
		logger:   logger,
		metrics:  m,
		endpoint: endpoint,
		timeout:  timeout,
	}
}

// LookupTransfer fetches a transaction and extracts transfer details from
// its balance changes. It is best-effort: RPC failures, unknown signatures,
// and unparseable transactions all yield an empty TransferDetails rather
// than an error, so callers can persist whatever the client supplied.
func (c *Client) LookupTransfer(ctx context.Context, signature string) TransferDetails {
	sig, err := solana.SignatureFromBase58(signature)
	if err != nil {
		c.logger.DebugContext(ctx, "skipping enrichment for malformed signature",
			"signature", signature, "error", err)
		return TransferDetails{}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	result, err := c.getTransaction(ctx, sig)
	if err != nil {
		c.logger.WarnContext(ctx, "transfer enrichment lookup failed",
			"signature", signature, "error", err)
		if c.metrics != nil {
			c.metrics.RecordEnrichmentLookup("degraded")
		}
		return TransferDetails{}
	}
	if result == nil {
		if c.metrics != nil {
			c.metrics.RecordEnrichmentLookup("miss")
		}
		return TransferDetails{}
	}

	details := extractTransferDetails(result)
	if c.metrics != nil {
		c.metrics.RecordEnrichmentLookup("hit")
	}
	return details
}

// CheckStatus queries the cluster for the current status of a signature.
// A transaction that is not yet visible on chain reports as pending.
// RPC failures are returned to the caller so retries can be scheduled.
func (c *Client) CheckStatus(ctx context.Context, signature string) (TxStatus, error) {
	sig, err := solana.SignatureFromBase58(signature)
	if err != nil {
		return "", fmt.Errorf("invalid signature %q: %w", signature, err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	result, err := c.getTransaction(ctx, sig)
	if err != nil {
		// RPC reports unknown signatures as an error on some providers
		// and as a nil result on others.
		if strings.Contains(err.Error(), "not found") {
			return TxStatusPending, nil
		}
		return "", fmt.Errorf("failed to fetch transaction: %w", err)
	}
	return statusFromResult(result), nil
}

// GetSolBalance returns the native SOL balance of a wallet.
func (c *Client) GetSolBalance(ctx context.Context, wallet string) (Balance, error) {
	pubkey, err := solana.PublicKeyFromBase58(wallet)
	if err != nil {
		return Balance{}, fmt.Errorf("invalid wallet address %q: %w", wallet, err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	out, err := c.rpc.GetBalance(ctx, pubkey, rpc.CommitmentConfirmed)
	c.recordRPC("GetBalance", err, time.Since(start))
	if err != nil {
		return Balance{}, fmt.Errorf("failed to fetch balance: %w", err)
	}
	return Balance{Amount: lamportsToSol(out.Value), Decimals: 9}, nil
}

// GetTokenBalance returns the wallet's balance in the given SPL token mint,
// read from the wallet's associated token account. A wallet with no token
// account for the mint has a zero balance.
func (c *Client) GetTokenBalance(ctx context.Context, wallet, mint string) (Balance, error) {
	owner, err := solana.PublicKeyFromBase58(wallet)
	if err != nil {
		return Balance{}, fmt.Errorf("invalid wallet address %q: %w", wallet, err)
	}
	mintKey, err := solana.PublicKeyFromBase58(mint)
	if err != nil {
		return Balance{}, fmt.Errorf("invalid mint address %q: %w", mint, err)
	}
	ata, _, err := solana.FindAssociatedTokenAddress(owner, mintKey)
	if err != nil {
		return Balance{}, fmt.Errorf("failed to derive token account: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	out, err := c.rpc.GetTokenAccountBalance(ctx, ata, rpc.CommitmentConfirmed)
	c.recordRPC("GetTokenAccountBalance", err, time.Since(start))
	if err != nil {
		if strings.Contains(err.Error(), "could not find account") {
			return Balance{Mint: mint}, nil
		}
		return Balance{}, fmt.Errorf("failed to fetch token balance: %w", err)
	}
	if out == nil || out.Value == nil {
		return Balance{Mint: mint}, nil
	}

	bal := Balance{Decimals: out.Value.Decimals, Mint: mint}
	if out.Value.UiAmount != nil {
		bal.Amount = *out.Value.UiAmount
	}
	return bal, nil
}

// getTransaction fetches full transaction details, retrying without version
// support when the node rejects the versioned encoding.
func (c *Client) getTransaction(ctx context.Context, sig solana.Signature) (*rpc.GetTransactionResult, error) {
	maxVersion := uint64(0)
	opts := &rpc.GetTransactionOpts{
		Encoding:                       solana.EncodingBase64,
		Commitment:                     rpc.CommitmentConfirmed,
		MaxSupportedTransactionVersion: &maxVersion,
	}

	start := time.Now()
	result, err := c.rpc.GetTransaction(ctx, sig, opts)
	c.recordRPC("GetTransaction", err, time.Since(start))
	if err != nil && strings.Contains(err.Error(), "expects '\"' or 'n', but found '{'") {
		// Some nodes return legacy transactions in a shape the versioned
		// decoder rejects.
		legacyOpts := &rpc.GetTransactionOpts{
			Encoding:   solana.EncodingBase64,
			Commitment: rpc.CommitmentConfirmed,
		}
		start = time.Now()
		result, err = c.rpc.GetTransaction(ctx, sig, legacyOpts)
		c.recordRPC("GetTransaction", err, time.Since(start))
	}
	return result, err
}

func (c *Client) recordRPC(method string, err error, elapsed time.Duration) {
	if c.metrics == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	c.metrics.RecordRPCCall(method, status, c.endpoint, elapsed.Seconds())
}
