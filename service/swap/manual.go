package swap

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
)

// manualMarkerLamports is transferred back to the user in the placeholder
// transaction so the signed result still lands on chain.
const manualMarkerLamports = 1000

// Decimals assumed by the fixed-rate math.
const (
	solDecimals   = 9
	tokenDecimals = 6
)

// Manual is a fixed-rate demo provider. It quotes at a configured
// SOL-per-token rate and builds a tiny self-transfer as a stand-in for a
// real swap, which lets the full record/reconcile flow run on devnet
// without a live AMM.
type Manual struct {
	rate   float64 // output tokens per SOL
	logger *slog.Logger
}

// NewManual creates the fixed-rate provider. rate is how many output tokens
// one SOL buys.
func NewManual(rate float64, logger *slog.Logger) *Manual {
	return &Manual{rate: rate, logger: logger}
}

func (m *Manual) Name() string { return "manual" }

// GetQuote converts at the fixed rate. SOL as input multiplies by the rate;
// SOL as output divides. One side of the trade must be SOL.
func (m *Manual) GetQuote(_ context.Context, params QuoteParams) (*Quote, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}

	var inUI, outUI float64
	switch {
	case params.InputMint == SolMint:
		inUI = float64(params.Amount) / pow10(solDecimals)
		outUI = inUI * m.rate
	case params.OutputMint == SolMint:
		inUI = float64(params.Amount) / pow10(tokenDecimals)
		outUI = inUI / m.rate
	default:
		return nil, fmt.Errorf("manual provider only quotes pairs involving SOL")
	}

	outDecimals := tokenDecimals
	if params.OutputMint == SolMint {
		outDecimals = solDecimals
	}

	return &Quote{
		Provider:       m.Name(),
		InputMint:      params.InputMint,
		OutputMint:     params.OutputMint,
		InAmount:       params.Amount,
		OutAmount:      uint64(outUI * pow10(outDecimals)),
		ExchangeRate:   outUI / inUI,
		PriceImpactPct: "0",
		SlippageBps:    params.SlippageBps,
	}, nil
}

// BuildSwapTransaction builds an unsigned self-transfer of a marker amount.
// The recent blockhash is left zeroed; the signing client sets a fresh one.
func (m *Manual) BuildSwapTransaction(_ context.Context, quote *Quote, userPublicKey string) (*SwapTransaction, error) {
	if quote == nil {
		return nil, fmt.Errorf("quote is required")
	}
	user, err := solana.PublicKeyFromBase58(userPublicKey)
	if err != nil {
		return nil, fmt.Errorf("invalid user public key %q: %w", userPublicKey, err)
	}

	ix := system.NewTransferInstruction(manualMarkerLamports, user, user).Build()
	tx, err := solana.NewTransaction(
		[]solana.Instruction{ix},
		solana.Hash{},
		solana.TransactionPayer(user),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build transaction: %w", err)
	}

	raw, err := tx.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize transaction: %w", err)
	}

	m.logger.Debug("built manual swap transaction",
		"user", userPublicKey,
		"in_amount", quote.InAmount,
		"out_amount", quote.OutAmount,
	)

	return &SwapTransaction{
		Provider:        m.Name(),
		SwapTransaction: base64.StdEncoding.EncodeToString(raw),
	}, nil
}

func pow10(n int) float64 {
	out := 1.0
	for i := 0; i < n; i++ {
		out *= 10
	}
	return out
}
