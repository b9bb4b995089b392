package matching

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/Angella-Mulikatete/AmplystV2-sub001/internal/ai"
	"github.com/Angella-Mulikatete/AmplystV2-sub001/internal/logger"
	"github.com/Angella-Mulikatete/AmplystV2-sub001/internal/metrics"
)

// Invoker sends a prompt to the reasoning model. *ai.Invoker implements it.
type Invoker interface {
	Invoke(ctx context.Context, prompt string) (string, error)
}

// Ranker runs the whole pipeline for one request at a time; it keeps no
// per-request state and is safe for concurrent use.
type Ranker struct {
	invoker  Invoker
	defaultK int
	logger   *zap.Logger
}

// NewRanker creates a ranker. A nil invoker ranks with the heuristic only.
func NewRanker(invoker Invoker, defaultK int, log *zap.Logger) *Ranker {
	if defaultK <= 0 {
		defaultK = DefaultK
	}
	return &Ranker{
		invoker:  invoker,
		defaultK: defaultK,
		logger:   logger.WithFields(log),
	}
}

// Rank validates raw and returns a shortlist. Model failures are masked by
// the heuristic; only validation, overload, cancellation and
// misconfiguration errors are returned.
func (r *Ranker) Rank(ctx context.Context, raw RawRequest) (Result, error) {
	req, stats, err := Normalize(raw, r.defaultK)
	if err != nil {
		metrics.ObserveFailure("validation")
		return Result{}, err
	}

	res, err := r.rank(ctx, req)
	if err != nil {
		metrics.ObserveFailure(failureClass(err))
		return Result{}, err
	}

	res.Dropped = stats.Dropped
	metrics.ObserveMatch(string(res.Source), res.Dropped, res.Padded)

	log := logger.WithFields(r.logger, logger.RankingFields(req.Campaign.ID, len(req.Candidates), req.K)...)
	if stats.Dropped > 0 {
		log.Info("dropped duplicate candidates", zap.Int("dropped_duplicates", stats.Dropped))
	}
	log.Info("ranking completed",
		zap.String(logger.FieldSource, string(res.Source)),
		zap.Int("matches", len(res.Matches)),
		zap.Int("padded", res.Padded),
	)

	return res, nil
}

func (r *Ranker) rank(ctx context.Context, req *MatchRequest) (Result, error) {
	if len(req.Candidates) == 0 {
		return Result{Matches: []string{}, Source: SourceHeuristic}, nil
	}

	if r.invoker == nil {
		return Compose(req, nil, errors.New("no model configured")), nil
	}

	prompt, err := BuildPrompt(req)
	if err != nil {
		return Result{}, fmt.Errorf("build prompt: %w", err)
	}

	output, err := r.invoker.Invoke(ctx, prompt)
	if err != nil {
		if surfaced(err) {
			return Result{}, err
		}
		r.logger.Warn("model unavailable, falling back to heuristic ranking",
			zap.String(logger.FieldCampaignID, req.Campaign.ID),
			zap.Error(err),
		)
		return Compose(req, nil, err), nil
	}

	ranked, err := ParseRanking(output, req.IDs(), req.Limit())
	if err != nil {
		r.logger.Warn("model output rejected, falling back to heuristic ranking",
			zap.String(logger.FieldCampaignID, req.Campaign.ID),
			zap.Error(err),
		)
	}

	return Compose(req, ranked, err), nil
}

func surfaced(err error) bool {
	return errors.Is(err, ai.ErrOverloaded) ||
		errors.Is(err, ai.ErrRequestCancelled) ||
		errors.Is(err, ai.ErrMisconfigured)
}

func failureClass(err error) string {
	switch {
	case errors.Is(err, ai.ErrOverloaded):
		return "overloaded"
	case errors.Is(err, ai.ErrRequestCancelled):
		return "cancelled"
	case errors.Is(err, ai.ErrMisconfigured):
		return "misconfigured"
	default:
		return "internal"
	}
}
