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

// Jupiter quotes and builds swaps through the Jupiter v6 HTTP API.
type Jupiter struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewJupiter creates a Jupiter provider against the given API base URL
// (e.g. "https://quote-api.jup.ag/v6").
func NewJupiter(baseURL string, logger *slog.Logger) *Jupiter {
	return &Jupiter{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		logger:     logger,
	}
}

func (j *Jupiter) Name() string { return "jupiter" }

// jupiterQuoteResponse is the subset of the /quote payload we read; the raw
// body is retained for the /swap request.
type jupiterQuoteResponse struct {
	InAmount       string `json:"inAmount"`
	OutAmount      string `json:"outAmount"`
	PriceImpactPct string `json:"priceImpactPct"`
	Error          string `json:"error"`
}

// GetQuote fetches a route quote from /quote.
func (j *Jupiter) GetQuote(ctx context.Context, params QuoteParams) (*Quote, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("inputMint", params.InputMint)
	q.Set("outputMint", params.OutputMint)
	q.Set("amount", strconv.FormatUint(params.Amount, 10))
	q.Set("slippageBps", strconv.Itoa(params.SlippageBps))
	q.Set("onlyDirectRoutes", "false")
	q.Set("asLegacyTransaction", "false")

	body, err := j.get(ctx, j.baseURL+"/quote?"+q.Encode())
	if err != nil {
		return nil, err
	}

	var resp jupiterQuoteResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode jupiter quote: %w", err)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("jupiter quote rejected: %s", resp.Error)
	}

	inAmount, err := strconv.ParseUint(resp.InAmount, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("unexpected jupiter inAmount %q: %w", resp.InAmount, err)
	}
	outAmount, err := strconv.ParseUint(resp.OutAmount, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("unexpected jupiter outAmount %q: %w", resp.OutAmount, err)
	}

	return &Quote{
		Provider:       j.Name(),
		InputMint:      params.InputMint,
		OutputMint:     params.OutputMint,
		InAmount:       inAmount,
		OutAmount:      outAmount,
		PriceImpactPct: resp.PriceImpactPct,
		SlippageBps:    params.SlippageBps,
		Raw:            json.RawMessage(body),
	}, nil
}

// BuildSwapTransaction posts the retained quote payload to /swap and
// returns the unsigned transaction Jupiter builds.
func (j *Jupiter) BuildSwapTransaction(ctx context.Context, quote *Quote, userPublicKey string) (*SwapTransaction, error) {
	if quote == nil || len(quote.Raw) == 0 {
		return nil, fmt.Errorf("quote with provider payload is required")
	}
	if userPublicKey == "" {
		return nil, fmt.Errorf("user public key is required")
	}

	reqBody, err := json.Marshal(map[string]any{
		"quoteResponse":             quote.Raw,
		"userPublicKey":             userPublicKey,
		"wrapAndUnwrapSol":          true,
		"dynamicComputeUnitLimit":   true,
		"prioritizationFeeLamports": "auto",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode swap request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, j.baseURL+"/swap", bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create swap request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	body, err := j.do(req)
	if err != nil {
		return nil, err
	}

	var resp struct {
		SwapTransaction string `json:"swapTransaction"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode jupiter swap response: %w", err)
	}
	if resp.SwapTransaction == "" {
		return nil, fmt.Errorf("jupiter returned no swap transaction")
	}

	return &SwapTransaction{
		Provider:        j.Name(),
		SwapTransaction: resp.SwapTransaction,
	}, nil
}

func (j *Jupiter) get(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	return j.do(req)
}

func (j *Jupiter) do(req *http.Request) ([]byte, error) {
	resp, err := j.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("jupiter request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read jupiter response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("jupiter API returned %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}
	return body, nil
}
