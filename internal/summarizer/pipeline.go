package summarizer

import (
	"context"
	"entailsum/internal/domain"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

var _ Summarizer = (*Pipeline)(nil)

// Pipeline generates candidates with a registered strategy and ranks them by
// entailment. It keeps no state between requests.
type Pipeline struct {
	registry  *Registry
	extractor *Extractor
	scorer    *Scorer
	log       *slog.Logger
}

func NewPipeline(
	registry *Registry,
	extractor *Extractor,
	scorer *Scorer,
	log *slog.Logger,
) *Pipeline {
	return &Pipeline{
		registry:  registry,
		extractor: extractor,
		scorer:    scorer,
		log:       log,
	}
}

// Strategies lists the registered strategy names.
func (p *Pipeline) Strategies() []string {
	return p.registry.Names()
}

func (p *Pipeline) ProduceRankedSummaries(
	ctx context.Context,
	source string,
	strategyName string,
	cfg domain.DecodingConfig,
	opts ...RankOption,
) (domain.RankedResult, error) {
	// Nothing below may reach a model before the request is validated.
	strategy, err := p.registry.Lookup(strategyName)
	if err != nil {
		return nil, err
	}

	if err = validateConfig(strategy.Name(), withStrategyDefaults(strategy, cfg)); err != nil {
		return nil, err
	}

	source, ok := domain.NormalizeSource(source)
	if !ok {
		return nil, fmt.Errorf("%w: source text is empty", ErrExtraction)
	}

	requestID := uuid.NewString()
	start := time.Now()
	log := p.log.With(
		"requestID", requestID,
		"strategy", strategy.Name())

	constraintSets, err := p.extractor.Extract(ctx, source, strategy.Mode())
	if err != nil {
		log.WarnContext(ctx, "Failed to extract constraints",
			"error", err,
			"sourceLength", len(source))

		return nil, err
	}

	candidates, err := BuildCandidates(ctx, source, strategy, cfg, constraintSets)
	if err != nil {
		log.ErrorContext(ctx, "Failed to build candidates",
			"error", err,
			"constraintSetCount", len(constraintSets))

		return nil, err
	}

	texts := make([]string, len(candidates))
	for i, c := range candidates {
		texts[i] = c.Text
	}

	scores, err := p.scorer.Score(ctx, source, texts)
	if err != nil {
		log.ErrorContext(ctx, "Failed to score candidates",
			"error", err,
			"candidateCount", len(candidates))

		return nil, err
	}

	ranked, err := Rank(texts, scores, opts...)
	if err != nil {
		return nil, err
	}

	best, _ := ranked.Best()
	log.InfoContext(ctx, "Summaries are ranked",
		"constraintSetCount", len(constraintSets),
		"candidateCount", len(candidates),
		"resultCount", len(ranked),
		"bestScore", best.Score,
		"durationMs", time.Since(start).Milliseconds())

	return ranked, nil
}

// withStrategyDefaults mirrors the adjustments a strategy applies to cfg
// itself, so that early validation agrees with the strategy.
func withStrategyDefaults(strategy Strategy, cfg domain.DecodingConfig) domain.DecodingConfig {
	if strategy.Name() == StrategyVocabRestrictedBeam {
		cfg.RestrictToInputVocab = true
	}
	return cfg
}
