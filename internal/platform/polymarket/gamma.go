package polymarket

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/alanyoungcy/hedgebot/internal/domain"
)

// Compile-time interface check.
var _ domain.MarketProvider = (*GammaClient)(nil)

// GammaConfig controls market discovery.
type GammaConfig struct {
	BaseURL string // e.g. "https://gamma-api.polymarket.com"
	Assets  []string
	// MaxMinutesToResolution bounds how far out a market may resolve to be
	// considered part of the short-horizon universe.
	MaxMinutesToResolution float64
	PageSize               int
}

// GammaClient is the REST client for the Gamma API, which provides market
// discovery and resolution state.
type GammaClient struct {
	cfg        GammaConfig
	httpClient *http.Client
	logger     *slog.Logger
}

// NewGammaClient creates a Gamma API client.
func NewGammaClient(cfg GammaConfig, logger *slog.Logger) *GammaClient {
	if cfg.PageSize <= 0 {
		cfg.PageSize = 100
	}
	if cfg.MaxMinutesToResolution <= 0 {
		cfg.MaxMinutesToResolution = 15
	}
	return &GammaClient{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger.With(slog.String("component", "gamma")),
	}
}

// ActiveMarkets returns the open up-or-down markets on the configured assets
// that resolve within the horizon. Markets the API serves in an unparsable
// shape are skipped with a log line, never fatal.
func (g *GammaClient) ActiveMarkets(ctx context.Context) ([]domain.MarketSnapshot, error) {
	params := url.Values{}
	params.Set("active", "true")
	params.Set("closed", "false")
	params.Set("limit", strconv.Itoa(g.cfg.PageSize))
	params.Set("order", "endDate")
	params.Set("ascending", "true")

	body, err := g.doGet(ctx, "/markets?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("polymarket/gamma: list markets: %w", err)
	}

	var apiMarkets []APIMarket
	if err := json.Unmarshal(body, &apiMarkets); err != nil {
		return nil, fmt.Errorf("polymarket/gamma: decode markets: %w", err)
	}

	now := time.Now().UTC()
	snapshots := make([]domain.MarketSnapshot, 0, len(apiMarkets))
	for i := range apiMarkets {
		m := &apiMarkets[i]
		if m.Closed || !isUpDown(m) {
			continue
		}
		snap, err := m.ToSnapshot(now)
		if err != nil {
			g.logger.Debug("skipping market", slog.String("error", err.Error()))
			continue
		}
		if !g.assetEnabled(snap.Asset) {
			continue
		}
		mins := snap.MinutesToResolution(now)
		if mins <= 0 || mins > g.cfg.MaxMinutesToResolution {
			continue
		}
		snapshots = append(snapshots, snap)
	}
	return snapshots, nil
}

// Resolution fetches a single market and reports its winner once closed.
// resolved is false while the market is still trading or the winner is not
// yet published.
func (g *GammaClient) Resolution(ctx context.Context, marketID string) (domain.Resolution, bool, error) {
	body, err := g.doGet(ctx, "/markets/"+url.PathEscape(marketID))
	if err != nil {
		return domain.Resolution{}, false, fmt.Errorf("polymarket/gamma: get market %s: %w", marketID, err)
	}

	var m APIMarket
	if err := json.Unmarshal(body, &m); err != nil {
		return domain.Resolution{}, false, fmt.Errorf("polymarket/gamma: decode market %s: %w", marketID, err)
	}
	if !m.Closed {
		return domain.Resolution{}, false, nil
	}

	prices, err := decodeStringArray(m.OutcomePrices)
	if err != nil || len(prices) < 2 {
		return domain.Resolution{}, false, nil
	}
	yes, errYes := strconv.ParseFloat(prices[0], 64)
	no, errNo := strconv.ParseFloat(prices[1], 64)
	if errYes != nil || errNo != nil || yes == no {
		return domain.Resolution{}, false, nil
	}

	winner := domain.SideYes
	if no > yes {
		winner = domain.SideNo
	}
	return domain.Resolution{
		MarketID:   marketID,
		Winner:     winner,
		ResolvedAt: time.Now().UTC(),
	}, true, nil
}

func (g *GammaClient) assetEnabled(asset string) bool {
	if len(g.cfg.Assets) == 0 {
		return true
	}
	for _, a := range g.cfg.Assets {
		if strings.EqualFold(a, asset) {
			return true
		}
	}
	return false
}

// isUpDown keeps only the short-horizon directional markets; everything else
// on the venue is out of scope.
func isUpDown(m *APIMarket) bool {
	q := strings.ToLower(m.Question)
	return strings.Contains(q, "up or down") || strings.Contains(strings.ToLower(m.Slug), "up-or-down")
}

// doGet sends an unauthenticated GET request to the Gamma API.
func (g *GammaClient) doGet(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.cfg.BaseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if err := checkHTTPStatus(resp.StatusCode, body); err != nil {
		return nil, err
	}
	return body, nil
}

func checkHTTPStatus(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}
	switch statusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", domain.ErrNotFound, body)
	default:
		return fmt.Errorf("HTTP %d: %s", statusCode, body)
	}
}
