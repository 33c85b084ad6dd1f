package polymarket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/hedgebot/internal/domain"
)

func bookServer(t *testing.T, body string, status int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/book", r.URL.Path)
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
}

func TestEstimateSlippageWalksAskLevels(t *testing.T) {
	srv := bookServer(t, `{
		"asks": [
			{"price": "0.40", "size": "5"},
			{"price": "0.45", "size": "10"}
		],
		"bids": [{"price": "0.38", "size": "20"}]
	}`, http.StatusOK)
	defer srv.Close()

	c := NewClobClient(ClobConfig{BaseURL: srv.URL})
	est, err := c.EstimateSlippage(context.Background(), "tok", domain.OrderSideBuy, 10)
	require.NoError(t, err)
	require.True(t, est.HasData)

	// 5 @ 0.40 + 5 @ 0.45 = 4.25 for 10 shares.
	assert.InDelta(t, 0.425, est.AvgPrice, 1e-9)
	assert.InDelta(t, 0.0625, est.SlippagePct, 1e-9)
}

func TestEstimateSlippageThinBookHasNoData(t *testing.T) {
	srv := bookServer(t, `{"asks": [{"price": "0.40", "size": "2"}], "bids": []}`, http.StatusOK)
	defer srv.Close()

	c := NewClobClient(ClobConfig{BaseURL: srv.URL})
	est, err := c.EstimateSlippage(context.Background(), "tok", domain.OrderSideBuy, 10)
	require.NoError(t, err)
	assert.False(t, est.HasData)
}

func TestEstimateSlippageEmptyBookHasNoData(t *testing.T) {
	srv := bookServer(t, `{"asks": [], "bids": []}`, http.StatusOK)
	defer srv.Close()

	c := NewClobClient(ClobConfig{BaseURL: srv.URL})
	est, err := c.EstimateSlippage(context.Background(), "tok", domain.OrderSideBuy, 10)
	require.NoError(t, err)
	assert.False(t, est.HasData)
}

func TestSubmitOrderMapsVenueResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/order", r.URL.Path)
		require.Equal(t, http.MethodPost, r.Method)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success": true, "orderID": "venue-7", "takingAmount": "12", "makingAmount": "5.40"}`))
	}))
	defer srv.Close()

	c := NewClobClient(ClobConfig{BaseURL: srv.URL})
	res, err := c.SubmitOrder(context.Background(), domain.Order{
		ID: "client-1", TokenID: "tok", Side: domain.OrderSideBuy, Price: 0.45, Shares: 12,
	})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "venue-7", res.OrderID)
	assert.InDelta(t, 12, res.FilledShares, 1e-9)
	assert.InDelta(t, 0.45, res.FilledPrice, 1e-9)
}

func TestSubmitOrderServerErrorIsRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClobClient(ClobConfig{BaseURL: srv.URL})
	res, err := c.SubmitOrder(context.Background(), domain.Order{ID: "client-1", TokenID: "tok"})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.True(t, res.Retryable)
	assert.Equal(t, domain.RejectUnknown, res.Reason)
}
