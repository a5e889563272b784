package summarizer

import (
	"context"
	"entailsum/internal/domain"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"unicode"
)

const (
	bosID int64 = 0
	padID int64 = 1
	eosID int64 = 2
)

var testSpecial = domain.SpecialTokens{BOS: bosID, EOS: eosID, PAD: padID, DecoderStart: eosID}

var testVocab = map[string]int64{
	"the": 10, "cat": 11, "sat": 12, "on": 13, "mat": 14, ".": 15,
	"it": 16, "was": 17, "a": 18, "sunny": 19, "day": 20,
	"dog": 21, "ran": 22, "away": 23, "barked": 24, "at": 25,
}

const catSource = "The cat sat on the mat. It was a sunny day."

// wordTokenizer is a word-level tokenizer over testVocab.
type wordTokenizer struct {
	mu      sync.Mutex
	encodes int
	err     error
}

func splitWords(text string) []string {
	var words []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			words = append(words, strings.ToLower(cur.String()))
			cur.Reset()
		}
	}

	for _, r := range text {
		switch {
		case unicode.IsLetter(r):
			cur.WriteRune(r)
		case r == '.':
			flush()
			words = append(words, ".")
		default:
			flush()
		}
	}
	flush()

	return words
}

func (t *wordTokenizer) Encode(_ context.Context, text string, addSpecial bool) (domain.TokenSequence, error) {
	t.mu.Lock()
	t.encodes++
	t.mu.Unlock()

	if t.err != nil {
		return nil, t.err
	}

	var ids domain.TokenSequence
	if addSpecial {
		ids = append(ids, bosID)
	}

	for _, w := range splitWords(text) {
		id, ok := testVocab[w]
		if !ok {
			return nil, fmt.Errorf("unknown word %q", w)
		}
		ids = append(ids, id)
	}

	if addSpecial {
		ids = append(ids, eosID)
	}

	return ids, nil
}

func (t *wordTokenizer) Decode(_ context.Context, seqs []domain.TokenSequence) ([]string, error) {
	words := make(map[int64]string, len(testVocab))
	for w, id := range testVocab {
		words[id] = w
	}

	texts := make([]string, len(seqs))
	for i, seq := range seqs {
		var parts []string
		for _, id := range testSpecial.Strip(seq) {
			parts = append(parts, words[id])
		}
		texts[i] = strings.Join(parts, " ")
	}

	return texts, nil
}

func (t *wordTokenizer) Special() domain.SpecialTokens { return testSpecial }

func (t *wordTokenizer) encodeCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.encodes
}

// stubGenerator builds NumReturnSequences sequences that honour the forced
// prefix and the allow-list.
type stubGenerator struct {
	mu    sync.Mutex
	calls []domain.GenerateOptions
	err   error
	// leak is appended to every sequence when non-zero.
	leak int64
	// empty makes Generate return no sequences.
	empty bool
	// extra is added to the number of returned sequences.
	extra int
}

func (g *stubGenerator) Generate(
	_ context.Context,
	_ domain.TokenSequence,
	opts domain.GenerateOptions,
) ([]domain.TokenSequence, error) {
	g.mu.Lock()
	g.calls = append(g.calls, opts)
	g.mu.Unlock()

	if g.err != nil {
		return nil, g.err
	}
	if g.empty {
		return nil, nil
	}

	pool := []int64{11, 12, 13, 14, 21, 22}
	if opts.AllowedTokens != nil {
		pool = slices.DeleteFunc(slices.Clone(opts.AllowedTokens), testSpecial.Contains)
	}

	out := make([]domain.TokenSequence, max(opts.NumReturnSequences+g.extra, 0))
	for i := range out {
		seq := domain.TokenSequence{eosID}
		seq = append(seq, opts.ForcedPrefix...)
		for j := 0; len(seq)-1 < opts.MinLength+1 && j < len(pool); j++ {
			seq = append(seq, pool[(i+j)%len(pool)])
		}
		if g.leak != 0 {
			seq = append(seq, g.leak)
		}
		out[i] = append(seq, eosID)
	}

	return out, nil
}

func (g *stubGenerator) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	return len(g.calls)
}

type stubChunker struct {
	mu      sync.Mutex
	calls   int
	phrases []string
	err     error
}

func (c *stubChunker) NounPhrases(_ context.Context, _ string) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++

	return c.phrases, c.err
}

func (c *stubChunker) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.calls
}

// overlapClassifier scores a hypothesis by the share of its words found in the premise.
type overlapClassifier struct {
	mu     sync.Mutex
	calls  int
	scores []float64
	err    error
}

func (c *overlapClassifier) Classify(_ context.Context, pairs []domain.EntailmentPair) ([]float64, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()

	if c.err != nil {
		return nil, c.err
	}
	if c.scores != nil {
		return c.scores, nil
	}

	out := make([]float64, len(pairs))
	for i, p := range pairs {
		premise := splitWords(p.Premise)
		hypothesis := splitWords(p.Hypothesis)
		if len(hypothesis) == 0 {
			continue
		}

		found := 0
		for _, w := range hypothesis {
			if slices.Contains(premise, w) {
				found++
			}
		}
		out[i] = float64(found) / float64(len(hypothesis))
	}

	return out, nil
}

func (c *overlapClassifier) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.calls
}

var errModelDown = errors.New("device lost")

type testRig struct {
	tokenizer  *wordTokenizer
	generator  *stubGenerator
	chunker    *stubChunker
	classifier *overlapClassifier
	pipeline   *Pipeline
}

func newTestRig() *testRig {
	r := &testRig{
		tokenizer:  &wordTokenizer{},
		generator:  &stubGenerator{},
		chunker:    &stubChunker{phrases: []string{"cat", "mat"}},
		classifier: &overlapClassifier{},
	}

	registry, err := NewRegistry(
		NewUnconstrainedBeam(r.generator, r.tokenizer),
		NewVocabRestrictedBeam(r.generator, r.tokenizer),
		NewTokenPrependConstrained(r.generator, r.tokenizer),
	)
	if err != nil {
		panic(err)
	}

	r.pipeline = NewPipeline(
		registry,
		NewExtractor(r.tokenizer, r.chunker),
		NewScorer(r.classifier),
		slog.New(slog.DiscardHandler),
	)

	return r
}

func e2eConfig() domain.DecodingConfig {
	return domain.DecodingConfig{
		BeamWidth:          4,
		MinLength:          3,
		MaxLength:          12,
		NoRepeatNgramSize:  2,
		NumReturnSequences: 2,
	}
}
