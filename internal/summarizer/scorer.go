package summarizer

import (
	"context"
	"entailsum/internal/domain"
	"fmt"
	"math"
)

// Scorer measures how strongly a source text entails each candidate.
type Scorer struct {
	classifier Classifier
}

func NewScorer(classifier Classifier) *Scorer {
	return &Scorer{classifier: classifier}
}

// Score returns one probability per candidate, in candidate order, using a
// single classifier call.
func (s *Scorer) Score(ctx context.Context, source string, candidates []string) ([]float64, error) {
	if len(candidates) == 0 {
		return []float64{}, nil
	}

	if s == nil || s.classifier == nil {
		return nil, fmt.Errorf("%w: entailment classifier is unavailable", ErrScoring)
	}

	pairs := make([]domain.EntailmentPair, len(candidates))
	for i, candidate := range candidates {
		pairs[i] = domain.EntailmentPair{Premise: source, Hypothesis: candidate}
	}

	scores, err := s.classifier.Classify(ctx, pairs)
	if err != nil {
		return nil, fmt.Errorf("%w: classify: %w", ErrScoring, err)
	}

	if len(scores) != len(candidates) {
		return nil, fmt.Errorf("%w: classifier returned %d scores for %d candidates",
			ErrScoring, len(scores), len(candidates))
	}

	for i, score := range scores {
		if math.IsNaN(score) || score < 0 || score > 1 {
			return nil, fmt.Errorf("%w: score %v for candidate %d is outside [0, 1]", ErrScoring, score, i)
		}
	}

	return scores, nil
}
