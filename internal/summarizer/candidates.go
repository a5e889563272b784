package summarizer

import (
	"context"
	"entailsum/internal/domain"
	"fmt"
)

// BuildCandidates runs strategy once per constraint set, in order, and
// flattens the outputs. Duplicates are kept.
func BuildCandidates(
	ctx context.Context,
	source string,
	strategy Strategy,
	cfg domain.DecodingConfig,
	constraintSets []domain.ConstraintSet,
) ([]domain.Candidate, error) {
	if len(constraintSets) == 0 {
		constraintSets = []domain.ConstraintSet{{}}
	}

	var candidates []domain.Candidate
	for i, set := range constraintSets {
		out, err := strategy.Decode(ctx, source, cfg, set)
		if err != nil {
			return nil, fmt.Errorf("constraint set %d (%q): %w", i, set.Label, err)
		}

		candidates = append(candidates, out...)
	}

	return candidates, nil
}
