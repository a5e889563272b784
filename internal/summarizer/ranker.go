package summarizer

import (
	"cmp"
	"entailsum/internal/domain"
	"fmt"
	"slices"
)

type rankOptions struct {
	deduplicate bool
	top         int
}

// RankOption adjusts ranking-time policy. Without options every candidate is kept.
type RankOption func(*rankOptions)

// Deduplicate keeps only the best-ranked occurrence of identical texts.
func Deduplicate() RankOption {
	return func(o *rankOptions) { o.deduplicate = true }
}

// Top keeps at most n results. n <= 0 keeps everything.
func Top(n int) RankOption {
	return func(o *rankOptions) { o.top = n }
}

// Rank pairs candidates with scores and sorts by score, descending. Equal
// scores keep their candidate order.
func Rank(candidates []string, scores []float64, opts ...RankOption) (domain.RankedResult, error) {
	if len(candidates) != len(scores) {
		return nil, fmt.Errorf("%w: %d candidates, %d scores", ErrScoring, len(candidates), len(scores))
	}

	var o rankOptions
	for _, opt := range opts {
		opt(&o)
	}

	ranked := make(domain.RankedResult, len(candidates))
	for i, text := range candidates {
		ranked[i] = domain.ScoredCandidate{Text: text, Score: scores[i]}
	}

	slices.SortStableFunc(ranked, func(a, b domain.ScoredCandidate) int {
		return cmp.Compare(b.Score, a.Score)
	})

	if o.deduplicate {
		seen := make(map[string]struct{}, len(ranked))
		ranked = slices.DeleteFunc(ranked, func(c domain.ScoredCandidate) bool {
			if _, ok := seen[c.Text]; ok {
				return true
			}
			seen[c.Text] = struct{}{}
			return false
		})
	}

	if o.top > 0 && len(ranked) > o.top {
		ranked = ranked[:o.top]
	}

	return ranked, nil
}
