package swap

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Raydium quotes and builds swaps through the hosted Raydium trade API
// (compute/swap-base-in + transaction/swap-base-in).
type Raydium struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewRaydium creates a Raydium provider against the given trade API base URL
// (e.g. "https://transaction-v1.raydium.io").
func NewRaydium(baseURL string, logger *slog.Logger) *Raydium {
	return &Raydium{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		logger:     logger,
	}
}

func (r *Raydium) Name() string { return "raydium" }

type raydiumComputeResponse struct {
	ID      string `json:"id"`
	Success bool   `json:"success"`
	Msg     string `json:"msg"`
	Data    struct {
		InputAmount    string  `json:"inputAmount"`
		OutputAmount   string  `json:"outputAmount"`
		PriceImpactPct float64 `json:"priceImpactPct"`
	} `json:"data"`
}

// GetQuote fetches a fixed-input quote from compute/swap-base-in.
func (r *Raydium) GetQuote(ctx context.Context, params QuoteParams) (*Quote, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("inputMint", params.InputMint)
	q.Set("outputMint", params.OutputMint)
	q.Set("amount", strconv.FormatUint(params.Amount, 10))
	q.Set("slippageBps", strconv.Itoa(params.SlippageBps))
	q.Set("txVersion", "V0")

	body, err := r.get(ctx, r.baseURL+"/compute/swap-base-in?"+q.Encode())
	if err != nil {
		return nil, err
	}

	var resp raydiumComputeResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode raydium quote: %w", err)
	}
	if !resp.Success {
		return nil, fmt.Errorf("raydium quote rejected: %s", resp.Msg)
	}

	inAmount, err := strconv.ParseUint(resp.Data.InputAmount, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("unexpected raydium inputAmount %q: %w", resp.Data.InputAmount, err)
	}
	outAmount, err := strconv.ParseUint(resp.Data.OutputAmount, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("unexpected raydium outputAmount %q: %w", resp.Data.OutputAmount, err)
	}

	return &Quote{
		Provider:       r.Name(),
		InputMint:      params.InputMint,
		OutputMint:     params.OutputMint,
		InAmount:       inAmount,
		OutAmount:      outAmount,
		PriceImpactPct: strconv.FormatFloat(resp.Data.PriceImpactPct, 'f', -1, 64),
		SlippageBps:    params.SlippageBps,
		Raw:            json.RawMessage(body),
	}, nil
}

// BuildSwapTransaction posts the retained compute payload to
// transaction/swap-base-in and returns the first unsigned transaction.
func (r *Raydium) BuildSwapTransaction(ctx context.Context, quote *Quote, userPublicKey string) (*SwapTransaction, error) {
	if quote == nil || len(quote.Raw) == 0 {
		return nil, fmt.Errorf("quote with provider payload is required")
	}
	if userPublicKey == "" {
		return nil, fmt.Errorf("user public key is required")
	}

	reqBody, err := json.Marshal(map[string]any{
		"wallet":                        userPublicKey,
		"computeUnitPriceMicroLamports": "auto",
		"swapResponse":                  quote.Raw,
		"txVersion":                     "V0",
		"wrapSol":                       quote.InputMint == SolMint,
		"unwrapSol":                     quote.OutputMint == SolMint,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode swap request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/transaction/swap-base-in", bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create swap request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	body, err := r.do(req)
	if err != nil {
		return nil, err
	}

	var resp struct {
		ID      string `json:"id"`
		Success bool   `json:"success"`
		Msg     string `json:"msg"`
		Data    []struct {
			Transaction string `json:"transaction"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode raydium swap response: %w", err)
	}
	if !resp.Success || len(resp.Data) == 0 || resp.Data[0].Transaction == "" {
		return nil, fmt.Errorf("raydium returned no swap transaction: %s", resp.Msg)
	}
	if len(resp.Data) > 1 {
		r.logger.Warn("raydium returned multiple transactions, using the first",
			"count", len(resp.Data))
	}

	return &SwapTransaction{
		Provider:        r.Name(),
		SwapTransaction: resp.Data[0].Transaction,
	}, nil
}

func (r *Raydium) get(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	return r.do(req)
}

func (r *Raydium) do(req *http.Request) ([]byte, error) {
	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("raydium request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read raydium response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("raydium API returned %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}
	return body, nil
}
