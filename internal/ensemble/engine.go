// Package ensemble aggregates votes from independent decision sources into a
// single weighted decision.
package ensemble

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/alanyoungcy/hedgebot/internal/domain"
)

// Config holds the aggregation parameters. Weights are keyed by source name;
// a source without an entry gets weight 1.
type Config struct {
	Weights       map[string]float64
	MinConsensus  float64 // percent, 0-100
	MinConfidence float64 // percent, 0-100
}

// Engine collects votes from its sources and reduces them to a Decision.
type Engine struct {
	cfg     Config
	sources []domain.Source
	logger  *slog.Logger
}

// New creates an Engine over the given sources. At least one source is
// required.
func New(cfg Config, sources []domain.Source, logger *slog.Logger) (*Engine, error) {
	if len(sources) == 0 {
		return nil, fmt.Errorf("ensemble: %w", domain.ErrNoSources)
	}
	return &Engine{
		cfg:     cfg,
		sources: sources,
		logger:  logger.With(slog.String("component", "ensemble")),
	}, nil
}

// Decide queries every source and aggregates the votes. A source that fails
// or panics contributes a skip vote at zero confidence rather than aborting
// the round; the market itself stays eligible. The winning action is the one
// with the highest total weight, consensus is the weighted share of sources
// that voted for it, and confidence is the weighted mean confidence of the
// agreeing votes only.
func (e *Engine) Decide(ctx context.Context, mkt domain.MarketContext, pf domain.PortfolioState) domain.Decision {
	votes := make([]domain.Vote, 0, len(e.sources))
	for _, src := range e.sources {
		v, err := e.safeVote(ctx, src, mkt, pf)
		if err != nil {
			e.logger.Warn("source failed, degrading to skip",
				slog.String("source", src.Name()),
				slog.String("market", mkt.Snapshot.MarketID),
				slog.String("error", err.Error()),
			)
			v = domain.Vote{Source: src.Name(), Action: domain.ActionSkip, Confidence: 0, Reasoning: "source error"}
		}
		votes = append(votes, v)
	}
	return e.aggregate(mkt, votes)
}

// ShouldExecute reports whether a decision clears the execution gate: a
// non-skip action with both consensus and confidence at or above their
// minimums.
func (e *Engine) ShouldExecute(d domain.Decision) bool {
	return d.Action != domain.ActionSkip &&
		d.Consensus >= e.cfg.MinConsensus &&
		d.Confidence >= e.cfg.MinConfidence
}

func (e *Engine) safeVote(ctx context.Context, src domain.Source, mkt domain.MarketContext, pf domain.PortfolioState) (v domain.Vote, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("ensemble: source %s panicked: %v", src.Name(), r)
		}
	}()
	v, err = src.Vote(ctx, mkt, pf)
	if err != nil {
		return domain.Vote{}, fmt.Errorf("ensemble: source %s: %w", src.Name(), err)
	}
	v.Source = src.Name()
	return v, nil
}

func (e *Engine) aggregate(mkt domain.MarketContext, votes []domain.Vote) domain.Decision {
	var (
		totalWeight  float64
		actionWeight = make(map[domain.VoteAction]float64)
	)
	for _, v := range votes {
		w := e.weight(v.Source)
		totalWeight += w
		actionWeight[v.Action] += w
	}

	winner := domain.ActionSkip
	best := -1.0
	// Deterministic order so equal-weight ties do not flap between ticks.
	for _, a := range []domain.VoteAction{domain.ActionSkip, domain.ActionBuyYes, domain.ActionBuyNo, domain.ActionBuyBoth} {
		if w, ok := actionWeight[a]; ok && w > best {
			winner, best = a, w
		}
	}

	var (
		agreeWeight float64
		confSum     float64
		reasons     []string
	)
	for _, v := range votes {
		if v.Action != winner {
			continue
		}
		w := e.weight(v.Source)
		agreeWeight += w
		confSum += v.Confidence * w
		if v.Reasoning != "" {
			reasons = append(reasons, fmt.Sprintf("%s: %s", v.Source, v.Reasoning))
		}
	}

	d := domain.Decision{
		Action:    winner,
		Votes:     votes,
		DecidedAt: time.Now().UTC(),
	}
	if totalWeight > 0 {
		d.Consensus = agreeWeight / totalWeight * 100
	}
	if agreeWeight > 0 {
		d.Confidence = confSum / agreeWeight
	}
	sort.Strings(reasons)
	d.Reasoning = strings.Join(reasons, "; ")

	e.logger.Debug("ensemble decision",
		slog.String("market", mkt.Snapshot.MarketID),
		slog.String("action", string(d.Action)),
		slog.Float64("consensus", d.Consensus),
		slog.Float64("confidence", d.Confidence),
	)
	return d
}

func (e *Engine) weight(source string) float64 {
	if w, ok := e.cfg.Weights[source]; ok && w > 0 {
		return w
	}
	return 1
}
