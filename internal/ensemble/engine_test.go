package ensemble

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/hedgebot/internal/domain"
)

type stubSource struct {
	name string
	vote domain.Vote
	err  error
}

func (s *stubSource) Name() string { return s.name }

func (s *stubSource) Vote(context.Context, domain.MarketContext, domain.PortfolioState) (domain.Vote, error) {
	return s.vote, s.err
}

type panicSource struct{ name string }

func (s *panicSource) Name() string { return s.name }

func (s *panicSource) Vote(context.Context, domain.MarketContext, domain.PortfolioState) (domain.Vote, error) {
	panic("boom")
}

func newTestEngine(t *testing.T, cfg Config, sources ...domain.Source) *Engine {
	t.Helper()
	e, err := New(cfg, sources, slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	return e
}

func testMarket() domain.MarketContext {
	return domain.MarketContext{Snapshot: domain.MarketSnapshot{MarketID: "m1", Asset: "BTC"}}
}

func TestNewRequiresSources(t *testing.T) {
	_, err := New(Config{}, nil, slog.New(slog.DiscardHandler))
	assert.ErrorIs(t, err, domain.ErrNoSources)
}

func TestDecideMajorityWithEqualWeights(t *testing.T) {
	e := newTestEngine(t, Config{MinConsensus: 60, MinConfidence: 60},
		&stubSource{name: "a", vote: domain.Vote{Action: domain.ActionBuyYes, Confidence: 80}},
		&stubSource{name: "b", vote: domain.Vote{Action: domain.ActionBuyYes, Confidence: 60}},
		&stubSource{name: "c", vote: domain.Vote{Action: domain.ActionSkip, Confidence: 90}},
	)

	d := e.Decide(context.Background(), testMarket(), domain.PortfolioState{})

	assert.Equal(t, domain.ActionBuyYes, d.Action)
	assert.InDelta(t, 100.0/3*2, d.Consensus, 1e-9)
	// Only the agreeing votes contribute to confidence; the dissenting
	// skip at 90 must not drag it up.
	assert.InDelta(t, 70, d.Confidence, 1e-9)
	assert.True(t, e.ShouldExecute(d))
}

func TestDecideWeightedVotesOutvoteCount(t *testing.T) {
	e := newTestEngine(t, Config{Weights: map[string]float64{"heavy": 3}},
		&stubSource{name: "heavy", vote: domain.Vote{Action: domain.ActionBuyNo, Confidence: 75}},
		&stubSource{name: "a", vote: domain.Vote{Action: domain.ActionBuyYes, Confidence: 90}},
		&stubSource{name: "b", vote: domain.Vote{Action: domain.ActionBuyYes, Confidence: 90}},
	)

	d := e.Decide(context.Background(), testMarket(), domain.PortfolioState{})

	assert.Equal(t, domain.ActionBuyNo, d.Action)
	assert.InDelta(t, 60, d.Consensus, 1e-9) // 3 of 5 total weight
	assert.InDelta(t, 75, d.Confidence, 1e-9)
}

func TestDecideFailedSourceDegradesToSkip(t *testing.T) {
	e := newTestEngine(t, Config{},
		&stubSource{name: "ok", vote: domain.Vote{Action: domain.ActionBuyYes, Confidence: 85}},
		&stubSource{name: "broken", err: errors.New("timeout")},
		&panicSource{name: "wild"},
	)

	d := e.Decide(context.Background(), testMarket(), domain.PortfolioState{})

	require.Len(t, d.Votes, 3, "every source still produces a vote")
	for _, v := range d.Votes {
		if v.Source != "ok" {
			assert.Equal(t, domain.ActionSkip, v.Action)
			assert.Zero(t, v.Confidence)
		}
	}
	// Two degraded skips outweigh one buy.
	assert.Equal(t, domain.ActionSkip, d.Action)
}

func TestShouldExecuteGates(t *testing.T) {
	e := newTestEngine(t, Config{MinConsensus: 60, MinConfidence: 60},
		&stubSource{name: "a"},
	)

	cases := []struct {
		name string
		d    domain.Decision
		want bool
	}{
		{"skip never executes", domain.Decision{Action: domain.ActionSkip, Consensus: 100, Confidence: 100}, false},
		{"low consensus", domain.Decision{Action: domain.ActionBuyYes, Consensus: 59.9, Confidence: 80}, false},
		{"low confidence", domain.Decision{Action: domain.ActionBuyYes, Consensus: 80, Confidence: 59.9}, false},
		{"exactly at both minimums", domain.Decision{Action: domain.ActionBuyYes, Consensus: 60, Confidence: 60}, true},
		{"buy both clears", domain.Decision{Action: domain.ActionBuyBoth, Consensus: 75, Confidence: 70}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, e.ShouldExecute(tc.d))
		})
	}
}

func TestMomentumSourceDirectionAndDeadBand(t *testing.T) {
	src := &MomentumSource{DeadBandPct: 0.05}

	mkt := testMarket()
	mkt.SpotChange = 0.02
	v, err := src.Vote(context.Background(), mkt, domain.PortfolioState{})
	require.NoError(t, err)
	assert.Equal(t, domain.ActionSkip, v.Action)

	mkt.SpotChange = 0.4
	v, err = src.Vote(context.Background(), mkt, domain.PortfolioState{})
	require.NoError(t, err)
	assert.Equal(t, domain.ActionBuyYes, v.Action)
	assert.Greater(t, v.Confidence, 50.0)

	mkt.SpotChange = -0.4
	v, err = src.Vote(context.Background(), mkt, domain.PortfolioState{})
	require.NoError(t, err)
	assert.Equal(t, domain.ActionBuyNo, v.Action)
}
