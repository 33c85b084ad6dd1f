package ensemble

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/alanyoungcy/hedgebot/internal/domain"
)

// Compile-time interface checks.
var (
	_ domain.Source = (*MomentumSource)(nil)
	_ domain.Source = (*HistoricalSource)(nil)
	_ domain.Source = (*ReasonerSource)(nil)
)

// MomentumSource votes with the short-term direction of the underlying spot
// price. A move below the dead band is noise and yields a skip.
type MomentumSource struct {
	// DeadBandPct is the absolute spot change, in percent, below which the
	// source abstains.
	DeadBandPct float64
}

func (s *MomentumSource) Name() string { return "momentum" }

func (s *MomentumSource) Vote(_ context.Context, mkt domain.MarketContext, _ domain.PortfolioState) (domain.Vote, error) {
	change := mkt.SpotChange
	deadBand := s.DeadBandPct
	if deadBand <= 0 {
		deadBand = 0.05
	}
	if math.Abs(change) < deadBand {
		return domain.Vote{
			Action:     domain.ActionSkip,
			Confidence: 30,
			Reasoning:  fmt.Sprintf("spot flat (%.3f%%)", change),
		}, nil
	}

	action := domain.ActionBuyYes
	if change < 0 {
		action = domain.ActionBuyNo
	}
	// Confidence grows with momentum strength and saturates at 95; a 0.5%
	// move in a 15 minute window is already a strong signal.
	conf := math.Min(95, 50+math.Abs(change)*90)
	return domain.Vote{
		Action:     action,
		Confidence: conf,
		Reasoning:  fmt.Sprintf("spot moved %.3f%%", change),
	}, nil
}

// HistoricalSource votes from the recorded win rate of past trades on the
// same asset. It reinforces the momentum direction when the book has been
// winning and abstains when the record is poor or too thin.
type HistoricalSource struct {
	Store    domain.TradeStore
	Strategy string
	Lookback time.Duration
}

func (s *HistoricalSource) Name() string { return "historical" }

func (s *HistoricalSource) Vote(ctx context.Context, mkt domain.MarketContext, _ domain.PortfolioState) (domain.Vote, error) {
	lookback := s.Lookback
	if lookback <= 0 {
		lookback = 7 * 24 * time.Hour
	}
	winRate, n, err := s.Store.WinRate(ctx, mkt.Snapshot.Asset, s.Strategy, time.Now().UTC().Add(-lookback))
	if err != nil {
		return domain.Vote{}, fmt.Errorf("ensemble: win rate for %s: %w", mkt.Snapshot.Asset, err)
	}
	if n < 5 {
		return domain.Vote{
			Action:     domain.ActionSkip,
			Confidence: 40,
			Reasoning:  fmt.Sprintf("only %d settled trades", n),
		}, nil
	}
	if winRate < 0.5 {
		return domain.Vote{
			Action:     domain.ActionSkip,
			Confidence: 60,
			Reasoning:  fmt.Sprintf("win rate %.0f%% below break-even", winRate*100),
		}, nil
	}

	action := domain.ActionBuyYes
	if mkt.SpotChange < 0 {
		action = domain.ActionBuyNo
	}
	return domain.Vote{
		Action:     action,
		Confidence: math.Min(90, winRate*100),
		Reasoning:  fmt.Sprintf("win rate %.0f%% over %d trades", winRate*100, n),
	}, nil
}

// ReasonerSource delegates the vote to an external HTTP reasoning service.
type ReasonerSource struct {
	Endpoint string
	Client   *http.Client
}

type reasonerRequest struct {
	Question     string  `json:"question"`
	Asset        string  `json:"asset"`
	YesPrice     float64 `json:"yes_price"`
	NoPrice      float64 `json:"no_price"`
	SpotPrice    float64 `json:"spot_price"`
	SpotChange   float64 `json:"spot_change_pct"`
	MinutesLeft  float64 `json:"minutes_to_resolution"`
	Opportunity  string  `json:"opportunity"`
	DailyPnL     float64 `json:"daily_pnl"`
	OpenExposure float64 `json:"open_exposure"`
}

type reasonerResponse struct {
	Action     string  `json:"action"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}

func (s *ReasonerSource) Name() string { return "reasoner" }

func (s *ReasonerSource) Vote(ctx context.Context, mkt domain.MarketContext, pf domain.PortfolioState) (domain.Vote, error) {
	body, err := json.Marshal(reasonerRequest{
		Question:     mkt.Snapshot.Question,
		Asset:        mkt.Snapshot.Asset,
		YesPrice:     mkt.Snapshot.YesPrice,
		NoPrice:      mkt.Snapshot.NoPrice,
		SpotPrice:    mkt.SpotPrice,
		SpotChange:   mkt.SpotChange,
		MinutesLeft:  mkt.Snapshot.MinutesToResolution(time.Now().UTC()),
		Opportunity:  string(mkt.Opportunity),
		DailyPnL:     pf.DailyPnL,
		OpenExposure: pf.TotalExposure(),
	})
	if err != nil {
		return domain.Vote{}, fmt.Errorf("ensemble: marshal reasoner request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.Endpoint, bytes.NewReader(body))
	if err != nil {
		return domain.Vote{}, fmt.Errorf("ensemble: build reasoner request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	client := s.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	resp, err := client.Do(req)
	if err != nil {
		return domain.Vote{}, fmt.Errorf("ensemble: reasoner call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.Vote{}, fmt.Errorf("ensemble: reasoner returned status %d", resp.StatusCode)
	}

	var rr reasonerResponse
	if err := json.NewDecoder(resp.Body).Decode(&rr); err != nil {
		return domain.Vote{}, fmt.Errorf("ensemble: decode reasoner response: %w", err)
	}

	action := domain.VoteAction(rr.Action)
	switch action {
	case domain.ActionBuyYes, domain.ActionBuyNo, domain.ActionBuyBoth, domain.ActionSkip:
	default:
		return domain.Vote{}, fmt.Errorf("ensemble: reasoner returned unknown action %q", rr.Action)
	}
	return domain.Vote{
		Action:     action,
		Confidence: math.Max(0, math.Min(100, rr.Confidence)),
		Reasoning:  rr.Reasoning,
	}, nil
}
