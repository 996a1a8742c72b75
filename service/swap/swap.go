// Package swap wraps external swap providers behind a common quoting and
// transaction-building interface. Every provider returns base64-encoded
// unsigned transactions; signing always happens client-side.
package swap

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrUnknownProvider is returned when a requested provider is not registered.
var ErrUnknownProvider = errors.New("unknown swap provider")

// Well-known mint addresses.
const (
	SolMint  = "So11111111111111111111111111111111111111112"
	USDCMint = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
)

// QuoteParams describes the trade to quote. Amount is in the input mint's
// base units (lamports for SOL).
type QuoteParams struct {
	InputMint   string `json:"input_mint"`
	OutputMint  string `json:"output_mint"`
	Amount      uint64 `json:"amount"`
	SlippageBps int    `json:"slippage_bps"`
}

func (p *QuoteParams) validate() error {
	if p.InputMint == "" || p.OutputMint == "" {
		return fmt.Errorf("input_mint and output_mint are required")
	}
	if p.InputMint == p.OutputMint {
		return fmt.Errorf("input_mint and output_mint must differ")
	}
	if p.Amount == 0 {
		return fmt.Errorf("amount must be positive")
	}
	if p.SlippageBps < 0 || p.SlippageBps > 10000 {
		return fmt.Errorf("slippage_bps must be between 0 and 10000")
	}
	return nil
}

// Quote is a provider's answer to a QuoteParams. Amounts are in base units.
// Raw carries the provider's full quote payload; BuildSwapTransaction needs
// it verbatim, so callers must round-trip it untouched.
type Quote struct {
	Provider       string          `json:"provider"`
	InputMint      string          `json:"input_mint"`
	OutputMint     string          `json:"output_mint"`
	InAmount       uint64          `json:"in_amount"`
	OutAmount      uint64          `json:"out_amount"`
	ExchangeRate   float64         `json:"exchange_rate,omitempty"`
	PriceImpactPct string          `json:"price_impact_pct,omitempty"`
	SlippageBps    int             `json:"slippage_bps"`
	Raw            json.RawMessage `json:"raw,omitempty"`
}

// SwapTransaction is an unsigned transaction ready for client-side signing.
type SwapTransaction struct {
	Provider        string `json:"provider"`
	SwapTransaction string `json:"swap_transaction"` // base64
}

// Swapper is the capability every provider implements.
type Swapper interface {
	// Name identifies the provider ("manual", "jupiter", "raydium").
	Name() string

	// GetQuote returns the provider's quote for the trade.
	GetQuote(ctx context.Context, params QuoteParams) (*Quote, error)

	// BuildSwapTransaction turns a previously obtained quote into an
	// unsigned transaction paid for by userPublicKey.
	BuildSwapTransaction(ctx context.Context, quote *Quote, userPublicKey string) (*SwapTransaction, error)
}

// Registry holds the configured providers by name.
type Registry struct {
	providers map[string]Swapper
}

// NewRegistry builds a registry from the given providers.
func NewRegistry(providers ...Swapper) *Registry {
	r := &Registry{providers: make(map[string]Swapper, len(providers))}
	for _, p := range providers {
		r.providers[p.Name()] = p
	}
	return r
}

// Get returns the named provider or ErrUnknownProvider.
func (r *Registry) Get(name string) (Swapper, error) {
	p, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, name)
	}
	return p, nil
}

// Names lists the registered provider names.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	return names
}
