// Package polymarket provides REST clients for the Gamma (market discovery)
// and CLOB (orders and books) APIs.
package polymarket

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/alanyoungcy/hedgebot/internal/domain"
)

// APIMarket mirrors the Gamma API market payload. Numeric fields arrive as
// strings and list fields arrive as JSON-encoded strings, so everything is
// decoded defensively.
type APIMarket struct {
	ID            string  `json:"id"`
	ConditionID   string  `json:"conditionId"`
	Question      string  `json:"question"`
	Slug          string  `json:"slug"`
	Active        bool    `json:"active"`
	Closed        bool    `json:"closed"`
	EndDate       string  `json:"endDate"`
	Liquidity     string  `json:"liquidity"`
	Volume24hr    float64 `json:"volume24hr"`
	OutcomePrices string  `json:"outcomePrices"` // JSON array of decimal strings
	ClobTokenIDs  string  `json:"clobTokenIds"`  // JSON array of token IDs
	Outcomes      string  `json:"outcomes"`      // JSON array, e.g. ["Up","Down"]
	UMAResolution string  `json:"umaResolutionStatus"`
}

// ToSnapshot converts the API payload into a MarketSnapshot. Markets with
// missing or unparsable fields return an error so the caller can skip them;
// one malformed market must never fail a whole scan.
func (m *APIMarket) ToSnapshot(now time.Time) (domain.MarketSnapshot, error) {
	prices, err := decodeStringArray(m.OutcomePrices)
	if err != nil || len(prices) < 2 {
		return domain.MarketSnapshot{}, fmt.Errorf("polymarket: market %s: bad outcome prices %q", m.ID, m.OutcomePrices)
	}
	tokens, err := decodeStringArray(m.ClobTokenIDs)
	if err != nil || len(tokens) < 2 {
		return domain.MarketSnapshot{}, fmt.Errorf("polymarket: market %s: bad token ids %q", m.ID, m.ClobTokenIDs)
	}

	yesPrice, err := strconv.ParseFloat(prices[0], 64)
	if err != nil {
		return domain.MarketSnapshot{}, fmt.Errorf("polymarket: market %s: parse yes price: %w", m.ID, err)
	}
	noPrice, err := strconv.ParseFloat(prices[1], 64)
	if err != nil {
		return domain.MarketSnapshot{}, fmt.Errorf("polymarket: market %s: parse no price: %w", m.ID, err)
	}

	endTime, err := time.Parse(time.RFC3339, m.EndDate)
	if err != nil {
		return domain.MarketSnapshot{}, fmt.Errorf("polymarket: market %s: parse end date %q: %w", m.ID, m.EndDate, err)
	}

	asset := assetFromQuestion(m.Question)
	if asset == "" {
		return domain.MarketSnapshot{}, fmt.Errorf("polymarket: market %s: no recognized asset in %q", m.ID, m.Question)
	}

	liquidity, _ := strconv.ParseFloat(m.Liquidity, 64)
	// Gamma reports one pooled liquidity figure for the market; apportion it
	// across the outcome tokens by price weight, since depth concentrates on
	// the side holding most of the probability mass.
	yesLiq, noLiq := liquidity/2, liquidity/2
	if combined := yesPrice + noPrice; combined > 0 {
		yesLiq = liquidity * yesPrice / combined
		noLiq = liquidity - yesLiq
	}

	return domain.MarketSnapshot{
		MarketID:     m.ID,
		Question:     m.Question,
		Asset:        asset,
		YesPrice:     yesPrice,
		NoPrice:      noPrice,
		YesTokenID:   tokens[0],
		NoTokenID:    tokens[1],
		YesLiquidity: yesLiq,
		NoLiquidity:  noLiq,
		Volume24h:    m.Volume24hr,
		EndTime:      endTime.UTC(),
		FetchedAt:    now,
	}, nil
}

// decodeStringArray handles the Gamma habit of nesting JSON arrays inside
// string fields.
func decodeStringArray(raw string) ([]string, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, fmt.Errorf("empty array field")
	}
	var out []string
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, err
	}
	return out, nil
}

var assetAliases = map[string]string{
	"BTC": "BTC", "BITCOIN": "BTC",
	"ETH": "ETH", "ETHEREUM": "ETH",
	"SOL": "SOL", "SOLANA": "SOL",
	"XRP": "XRP", "RIPPLE": "XRP",
	"DOGE": "DOGE", "DOGECOIN": "DOGE",
}

// assetFromQuestion extracts the underlying asset symbol from a market
// question like "Bitcoin Up or Down - March 1, 3:45PM ET".
func assetFromQuestion(question string) string {
	upper := strings.ToUpper(question)
	for _, word := range strings.FieldsFunc(upper, func(r rune) bool {
		return (r < 'A' || r > 'Z') && (r < '0' || r > '9')
	}) {
		if asset, ok := assetAliases[word]; ok {
			return asset
		}
	}
	return ""
}

// APIOrderResult mirrors the CLOB order response.
type APIOrderResult struct {
	Success      bool   `json:"success"`
	ErrorMsg     string `json:"errorMsg"`
	OrderID      string `json:"orderID"`
	Status       string `json:"status"`
	TakingAmount string `json:"takingAmount"`
	MakingAmount string `json:"makingAmount"`
}

// ToDomainResult maps the venue response onto the rejection taxonomy.
// takingAmount is the filled share count and makingAmount the dollars spent.
func (r *APIOrderResult) ToDomainResult() domain.OrderResult {
	result := domain.OrderResult{
		Success: r.Success,
		OrderID: r.OrderID,
		Message: r.ErrorMsg,
	}
	if r.Success {
		shares, _ := strconv.ParseFloat(r.TakingAmount, 64)
		spent, _ := strconv.ParseFloat(r.MakingAmount, 64)
		result.FilledShares = shares
		if shares > 0 {
			result.FilledPrice = spent / shares
		}
		return result
	}

	result.Reason, result.Retryable = classifyRejection(r.ErrorMsg)
	return result
}

// classifyRejection maps the venue's free-text error onto a stable reason.
// Only transient conditions are retryable; a balance or size problem will not
// fix itself on resubmission.
func classifyRejection(msg string) (domain.RejectReason, bool) {
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "balance") || strings.Contains(lower, "allowance"):
		return domain.RejectInsufficientBalance, false
	case strings.Contains(lower, "minimum") || strings.Contains(lower, "min size") || strings.Contains(lower, "order size"):
		return domain.RejectBelowMinimumSize, false
	case strings.Contains(lower, "signature") || strings.Contains(lower, "auth"):
		return domain.RejectInvalidSignature, false
	case strings.Contains(lower, "closed") || strings.Contains(lower, "not accepting") || strings.Contains(lower, "resolved"):
		return domain.RejectMarketClosed, false
	case strings.Contains(lower, "invalid"):
		return domain.RejectInvalidOrder, false
	default:
		return domain.RejectUnknown, true
	}
}

// APIBook mirrors the CLOB order book payload.
type APIBook struct {
	Bids []APIBookLevel `json:"bids"`
	Asks []APIBookLevel `json:"asks"`
}

// APIBookLevel is a single price level.
type APIBookLevel struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}
