package search

import (
	"cmp"
	"context"
	"entailsum/internal/domain"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"slices"
	"sync"
)

var (
	ErrNoHypothesis = errors.New("no hypothesis satisfied the decoding constraints")

	negInf = math.Inf(-1)
)

// StepModel scores the next token of every prefix, conditioned on the encoded
// input. Each returned row holds one log-probability per vocabulary id.
type StepModel interface {
	NextLogProbs(
		ctx context.Context,
		input domain.TokenSequence,
		prefixes []domain.TokenSequence,
	) ([][]float32, error)
}

type Search struct {
	model   StepModel
	special domain.SpecialTokens

	// rnd is only touched in sample mode.
	mu  sync.Mutex
	rnd *rand.Rand
}

type Option func(*Search)

// WithSeed makes sampling reproducible.
func WithSeed(seed uint64) Option {
	return func(s *Search) {
		s.rnd = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	}
}

func New(model StepModel, special domain.SpecialTokens, opts ...Option) *Search {
	s := &Search{
		model:   model,
		special: special,
		rnd:     rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

type hypothesis struct {
	// tokens are the generated ids including the forced prefix, without the
	// decoder start token.
	tokens domain.TokenSequence
	score  float64
}

func (h hypothesis) normalized() float64 {
	return h.score / float64(max(len(h.tokens), 1))
}

func (h hypothesis) extend(token int64, score float64) hypothesis {
	tokens := make(domain.TokenSequence, len(h.tokens), len(h.tokens)+1)
	copy(tokens, h.tokens)

	return hypothesis{tokens: append(tokens, token), score: score}
}

// Generate returns up to NumReturnSequences sequences, best first. Each
// sequence is framed by the decoder start token and EOS.
func (s *Search) Generate(
	ctx context.Context,
	input domain.TokenSequence,
	opts domain.GenerateOptions,
) ([]domain.TokenSequence, error) {
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("validate options: %w", err)
	}
	if len(opts.ForcedPrefix) > opts.MaxLength {
		return nil, fmt.Errorf("forced prefix has %d tokens, max length is %d",
			len(opts.ForcedPrefix), opts.MaxLength)
	}

	var allowed map[int64]struct{}
	if opts.AllowedTokens != nil {
		allowed = make(map[int64]struct{}, len(opts.AllowedTokens))
		for _, id := range opts.AllowedTokens {
			allowed[id] = struct{}{}
		}
	}

	root := hypothesis{tokens: slices.Clone(opts.ForcedPrefix)}
	live := []hypothesis{root}
	if opts.Sample {
		live = slices.Repeat(live, opts.BeamWidth)
	}

	var finished []hypothesis

	for len(live) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		rows, err := s.model.NextLogProbs(ctx, input, s.prefixes(live))
		if err != nil {
			return nil, fmt.Errorf("next log probs: %w", err)
		}
		if len(rows) != len(live) {
			return nil, fmt.Errorf("model returned %d rows for %d prefixes", len(rows), len(live))
		}

		if opts.Sample {
			live, finished = s.sampleStep(live, rows, opts, allowed, finished)
			continue
		}

		live, finished = s.beamStep(live, rows, opts, allowed, finished)
		if beamDone(live, finished, opts) {
			break
		}
	}

	if len(finished) == 0 {
		return nil, ErrNoHypothesis
	}

	slices.SortStableFunc(finished, func(a, b hypothesis) int {
		return cmp.Compare(b.normalized(), a.normalized())
	})

	n := min(opts.NumReturnSequences, len(finished))
	out := make([]domain.TokenSequence, n)
	for i, h := range finished[:n] {
		seq := make(domain.TokenSequence, 0, len(h.tokens)+2)
		seq = append(seq, s.special.DecoderStart)
		seq = append(seq, h.tokens...)
		out[i] = append(seq, s.special.EOS)
	}

	return out, nil
}

func (s *Search) prefixes(live []hypothesis) []domain.TokenSequence {
	prefixes := make([]domain.TokenSequence, len(live))
	for i, h := range live {
		p := make(domain.TokenSequence, 0, len(h.tokens)+1)
		p = append(p, s.special.DecoderStart)
		prefixes[i] = append(p, h.tokens...)
	}

	return prefixes
}

type expansion struct {
	parent int
	token  int64
	score  float64
}

func (s *Search) beamStep(
	live []hypothesis,
	rows [][]float32,
	opts domain.GenerateOptions,
	allowed map[int64]struct{},
	finished []hypothesis,
) ([]hypothesis, []hypothesis) {
	var expansions []expansion

	for i, h := range live {
		if len(h.tokens) >= opts.MaxLength {
			expansions = append(expansions, expansion{
				parent: i,
				token:  s.special.EOS,
				score:  h.score + s.forcedEOS(rows[i]),
			})
			continue
		}

		scores := s.stepScores(rows[i], h, opts, allowed)
		for _, id := range topK(scores, 2*opts.BeamWidth) {
			expansions = append(expansions, expansion{
				parent: i,
				token:  int64(id),
				score:  h.score + scores[id],
			})
		}
	}

	slices.SortStableFunc(expansions, func(a, b expansion) int {
		return cmp.Compare(b.score, a.score)
	})

	next := make([]hypothesis, 0, opts.BeamWidth)
	for rank, e := range expansions {
		if len(next) == opts.BeamWidth {
			break
		}

		parent := live[e.parent]
		if e.token == s.special.EOS {
			if rank < opts.BeamWidth {
				finished = append(finished, hypothesis{tokens: parent.tokens, score: e.score})
			}
			continue
		}

		next = append(next, parent.extend(e.token, e.score))
	}

	return next, finished
}

func beamDone(live []hypothesis, finished []hypothesis, opts domain.GenerateOptions) bool {
	if len(live) == 0 {
		return true
	}
	if len(finished) < opts.BeamWidth {
		return false
	}
	if opts.EarlyStopping {
		return true
	}

	kept := make([]float64, len(finished))
	for i, h := range finished {
		kept[i] = h.normalized()
	}
	slices.SortFunc(kept, func(a, b float64) int { return cmp.Compare(b, a) })
	worstKept := kept[opts.BeamWidth-1]

	bestLive := negInf
	for _, h := range live {
		bestLive = max(bestLive, h.normalized())
	}

	return bestLive <= worstKept
}

func (s *Search) sampleStep(
	live []hypothesis,
	rows [][]float32,
	opts domain.GenerateOptions,
	allowed map[int64]struct{},
	finished []hypothesis,
) ([]hypothesis, []hypothesis) {
	next := make([]hypothesis, 0, len(live))

	for i, h := range live {
		if len(h.tokens) >= opts.MaxLength {
			finished = append(finished, hypothesis{tokens: h.tokens, score: h.score + s.forcedEOS(rows[i])})
			continue
		}

		scores := s.stepScores(rows[i], h, opts, allowed)
		id, ok := s.draw(scores)
		if !ok {
			continue
		}

		if int64(id) == s.special.EOS {
			finished = append(finished, hypothesis{tokens: h.tokens, score: h.score + scores[id]})
			continue
		}

		next = append(next, h.extend(int64(id), h.score+scores[id]))
	}

	return next, finished
}

// stepScores masks the model row for hypothesis h.
func (s *Search) stepScores(
	row []float32,
	h hypothesis,
	opts domain.GenerateOptions,
	allowed map[int64]struct{},
) []float64 {
	banned := bannedTokens(h.tokens, opts.NoRepeatNgramSize)
	scores := make([]float64, len(row))

	for id, lp := range row {
		token := int64(id)
		score := float64(lp)

		switch {
		case token == s.special.EOS:
			if len(h.tokens) < opts.MinLength {
				score = negInf
			}
		case s.special.Contains(token):
			score = negInf
		case allowed != nil && !inSet(allowed, token):
			score = negInf
		case inSet(banned, token):
			score = negInf
		}

		if math.IsNaN(score) {
			score = negInf
		}
		scores[id] = score
	}

	return scores
}

func (s *Search) forcedEOS(row []float32) float64 {
	if s.special.EOS < 0 || int(s.special.EOS) >= len(row) {
		return 0
	}

	lp := float64(row[s.special.EOS])
	if math.IsInf(lp, 0) || math.IsNaN(lp) {
		return 0
	}

	return lp
}

func (s *Search) draw(scores []float64) (int, bool) {
	best := negInf
	for _, v := range scores {
		best = max(best, v)
	}
	if math.IsInf(best, -1) {
		return 0, false
	}

	var total float64
	for _, v := range scores {
		if !math.IsInf(v, -1) {
			total += math.Exp(v - best)
		}
	}

	s.mu.Lock()
	u := s.rnd.Float64() * total
	s.mu.Unlock()

	last := -1
	var acc float64
	for id, v := range scores {
		if math.IsInf(v, -1) {
			continue
		}

		last = id
		acc += math.Exp(v - best)
		if u < acc {
			return id, true
		}
	}

	return last, last >= 0
}

// topK returns the ids of the k highest finite scores, best first.
func topK(scores []float64, k int) []int {
	ids := make([]int, 0, len(scores))
	for id, v := range scores {
		if !math.IsInf(v, -1) {
			ids = append(ids, id)
		}
	}

	slices.SortStableFunc(ids, func(a, b int) int {
		return cmp.Compare(scores[b], scores[a])
	})

	if len(ids) > k {
		ids = ids[:k]
	}

	return ids
}

// bannedTokens returns the tokens that would complete an n-gram already
// present in tokens.
func bannedTokens(tokens domain.TokenSequence, n int) map[int64]struct{} {
	if n <= 0 || len(tokens)+1 < n {
		return nil
	}

	key := tokens[len(tokens)-(n-1):]
	banned := make(map[int64]struct{})

	for i := 0; i+n <= len(tokens); i++ {
		if slices.Equal(tokens[i:i+n-1], key) {
			banned[tokens[i+n-1]] = struct{}{}
		}
	}

	return banned
}

func inSet(set map[int64]struct{}, id int64) bool {
	_, ok := set[id]
	return ok
}
