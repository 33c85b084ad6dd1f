package polymarket

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/alanyoungcy/hedgebot/internal/domain"
)

// Compile-time interface checks.
var (
	_ domain.ExecutionGateway = (*ClobClient)(nil)
	_ domain.BookProvider     = (*ClobClient)(nil)
)

// ClobConfig holds CLOB connection parameters.
type ClobConfig struct {
	BaseURL    string // e.g. "https://clob.polymarket.com"
	APIKey     string
	Passphrase string
}

// ClobClient talks to the CLOB API for order submission and order books.
type ClobClient struct {
	cfg        ClobConfig
	httpClient *http.Client
}

// NewClobClient creates a CLOB API client.
func NewClobClient(cfg ClobConfig) *ClobClient {
	return &ClobClient{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// SubmitOrder posts a limit order. Venue rejections come back as a failed
// OrderResult with a classified reason rather than an error; errors are
// reserved for transport and decoding problems.
func (c *ClobClient) SubmitOrder(ctx context.Context, order domain.Order) (domain.OrderResult, error) {
	payload := map[string]any{
		"order": map[string]any{
			"tokenID": order.TokenID,
			"price":   strconv.FormatFloat(order.Price, 'f', -1, 64),
			"size":    strconv.FormatFloat(order.Shares, 'f', -1, 64),
			"side":    string(order.Side),
		},
		"clientOrderID": order.ID,
		"orderType":     "FOK",
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return domain.OrderResult{}, fmt.Errorf("polymarket/clob: marshal order %s: %w", order.ID, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/order", bytes.NewReader(body))
	if err != nil {
		return domain.OrderResult{}, fmt.Errorf("polymarket/clob: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("POLY-API-KEY", c.cfg.APIKey)
		req.Header.Set("POLY-PASSPHRASE", c.cfg.Passphrase)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.OrderResult{}, fmt.Errorf("polymarket/clob: post order %s: %w", order.ID, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.OrderResult{}, fmt.Errorf("polymarket/clob: read response: %w", err)
	}

	// Rate limits and server errors are transient; surface them as
	// retryable results so the executor backs off and resubmits.
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return domain.OrderResult{
			Success:   false,
			Reason:    domain.RejectUnknown,
			Message:   fmt.Sprintf("HTTP %d: %s", resp.StatusCode, respBody),
			Retryable: true,
		}, nil
	}

	var apiResult APIOrderResult
	if err := json.Unmarshal(respBody, &apiResult); err != nil {
		return domain.OrderResult{}, fmt.Errorf("polymarket/clob: decode order result: %w", err)
	}
	return apiResult.ToDomainResult(), nil
}

// EstimateSlippage walks the book for the requested size and reports the
// volume-weighted fill price against the top of book. An empty or missing
// book yields HasData false, not an error.
func (c *ClobClient) EstimateSlippage(ctx context.Context, tokenID string, side domain.OrderSide, shares float64) (domain.SlippageEstimate, error) {
	book, err := c.book(ctx, tokenID)
	if err != nil {
		return domain.SlippageEstimate{}, err
	}

	levels := book.Asks
	if side == domain.OrderSideSell {
		levels = book.Bids
	}
	if len(levels) == 0 || shares <= 0 {
		return domain.SlippageEstimate{HasData: false}, nil
	}

	best, err := strconv.ParseFloat(levels[0].Price, 64)
	if err != nil || best <= 0 {
		return domain.SlippageEstimate{HasData: false}, nil
	}

	var (
		remaining = shares
		cost      float64
		filled    float64
	)
	for _, lvl := range levels {
		price, errP := strconv.ParseFloat(lvl.Price, 64)
		size, errS := strconv.ParseFloat(lvl.Size, 64)
		if errP != nil || errS != nil || size <= 0 {
			continue
		}
		take := size
		if take > remaining {
			take = remaining
		}
		cost += take * price
		filled += take
		remaining -= take
		if remaining <= 0 {
			break
		}
	}
	if remaining > 0 || filled <= 0 {
		// Book too thin for the requested size.
		return domain.SlippageEstimate{HasData: false}, nil
	}

	avg := cost / filled
	pct := (avg - best) / best
	if side == domain.OrderSideSell {
		pct = (best - avg) / best
	}
	return domain.SlippageEstimate{
		AvgPrice:    avg,
		SlippagePct: pct,
		HasData:     true,
	}, nil
}

func (c *ClobClient) book(ctx context.Context, tokenID string) (APIBook, error) {
	params := url.Values{}
	params.Set("token_id", tokenID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/book?"+params.Encode(), nil)
	if err != nil {
		return APIBook{}, fmt.Errorf("polymarket/clob: build book request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return APIBook{}, fmt.Errorf("polymarket/clob: get book %s: %w", tokenID, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return APIBook{}, fmt.Errorf("polymarket/clob: read book response: %w", err)
	}
	if resp.StatusCode == http.StatusNotFound {
		return APIBook{}, fmt.Errorf("polymarket/clob: book %s: %w", tokenID, domain.ErrNoOrderBook)
	}
	if err := checkHTTPStatus(resp.StatusCode, body); err != nil {
		return APIBook{}, err
	}

	var book APIBook
	if err := json.Unmarshal(body, &book); err != nil {
		return APIBook{}, fmt.Errorf("polymarket/clob: decode book %s: %w", tokenID, err)
	}
	return book, nil
}
