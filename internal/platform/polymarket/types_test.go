package polymarket

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/hedgebot/internal/domain"
)

func validAPIMarket() APIMarket {
	return APIMarket{
		ID:            "514750",
		Question:      "Bitcoin Up or Down - March 1, 3:45PM ET",
		Slug:          "bitcoin-up-or-down-march-1-345pm-et",
		Active:        true,
		EndDate:       "2026-03-01T20:45:00Z",
		Liquidity:     "12345.67",
		Volume24hr:    98765.4,
		OutcomePrices: `["0.42","0.59"]`,
		ClobTokenIDs:  `["tok-up","tok-down"]`,
	}
}

func TestToSnapshotMapsFields(t *testing.T) {
	now := time.Date(2026, 3, 1, 20, 40, 0, 0, time.UTC)
	m := validAPIMarket()
	snap, err := m.ToSnapshot(now)
	require.NoError(t, err)

	assert.Equal(t, "514750", snap.MarketID)
	assert.Equal(t, "BTC", snap.Asset)
	assert.InDelta(t, 0.42, snap.YesPrice, 1e-9)
	assert.InDelta(t, 0.59, snap.NoPrice, 1e-9)
	assert.Equal(t, "tok-up", snap.YesTokenID)
	assert.Equal(t, "tok-down", snap.NoTokenID)
	// Pooled liquidity splits by price weight across the two tokens.
	assert.InDelta(t, 12345.67, snap.YesLiquidity+snap.NoLiquidity, 1e-9)
	assert.InDelta(t, 12345.67*0.42/1.01, snap.YesLiquidity, 1e-9)
	assert.Greater(t, snap.NoLiquidity, snap.YesLiquidity)
	assert.InDelta(t, 5.0, snap.MinutesToResolution(now), 1e-9)
}

func TestToSnapshotRejectsMalformedMarkets(t *testing.T) {
	now := time.Now().UTC()

	cases := []struct {
		name   string
		mutate func(*APIMarket)
	}{
		{"empty prices", func(m *APIMarket) { m.OutcomePrices = "" }},
		{"invalid prices json", func(m *APIMarket) { m.OutcomePrices = `[0.42` }},
		{"non-numeric price", func(m *APIMarket) { m.OutcomePrices = `["abc","0.5"]` }},
		{"missing tokens", func(m *APIMarket) { m.ClobTokenIDs = `["only-one"]` }},
		{"bad end date", func(m *APIMarket) { m.EndDate = "tomorrow" }},
		{"unknown asset", func(m *APIMarket) { m.Question = "Will it rain Up or Down" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m := validAPIMarket()
			tc.mutate(&m)
			_, err := m.ToSnapshot(now)
			assert.Error(t, err)
		})
	}
}

func TestAssetFromQuestionAliases(t *testing.T) {
	cases := map[string]string{
		"Bitcoin Up or Down":        "BTC",
		"BTC Up or Down - 4:00PM":   "BTC",
		"Ethereum Up or Down":       "ETH",
		"Solana Up or Down":         "SOL",
		"XRP Up or Down":            "XRP",
		"Will the Fed cut rates?":   "",
	}
	for q, want := range cases {
		assert.Equal(t, want, assetFromQuestion(q), q)
	}
}

func TestToDomainResultClassifiesRejections(t *testing.T) {
	cases := []struct {
		msg       string
		reason    domain.RejectReason
		retryable bool
	}{
		{"not enough balance / allowance", domain.RejectInsufficientBalance, false},
		{"order size below minimum", domain.RejectBelowMinimumSize, false},
		{"invalid signature", domain.RejectInvalidSignature, false},
		{"market is closed and not accepting orders", domain.RejectMarketClosed, false},
		{"invalid order payload", domain.RejectInvalidOrder, false},
		{"internal server hiccup", domain.RejectUnknown, true},
	}
	for _, tc := range cases {
		t.Run(tc.msg, func(t *testing.T) {
			r := APIOrderResult{Success: false, ErrorMsg: tc.msg}
			res := r.ToDomainResult()
			assert.False(t, res.Success)
			assert.Equal(t, tc.reason, res.Reason)
			assert.Equal(t, tc.retryable, res.Retryable)
		})
	}
}

func TestToDomainResultComputesFillPrice(t *testing.T) {
	r := APIOrderResult{Success: true, OrderID: "o1", TakingAmount: "10", MakingAmount: "4.2"}
	res := r.ToDomainResult()
	require.True(t, res.Success)
	assert.InDelta(t, 10, res.FilledShares, 1e-9)
	assert.InDelta(t, 0.42, res.FilledPrice, 1e-9)
}
