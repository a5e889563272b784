package summarizer

import (
	"context"
	"entailsum/internal/domain"
	"fmt"
	"slices"
)

const (
	StrategyUnconstrainedBeam   = "unconstrained-beam"
	StrategyVocabRestrictedBeam = "vocabulary-restricted-beam"
	StrategyTokenPrepend        = "token-prepend-constrained"
)

// Strategy turns one source text into candidates for a single constraint set.
type Strategy interface {
	Name() string
	// Mode tells the extractor which constraints this strategy consumes.
	Mode() domain.ConstraintMode
	Decode(
		ctx context.Context,
		source string,
		cfg domain.DecodingConfig,
		constraint domain.ConstraintSet,
	) ([]domain.Candidate, error)
}

var (
	_ Strategy = (*UnconstrainedBeam)(nil)
	_ Strategy = (*VocabRestrictedBeam)(nil)
	_ Strategy = (*TokenPrependConstrained)(nil)
)

// model bundles the collaborators every strategy decodes with.
type model struct {
	generator Generator
	tokenizer Tokenizer
}

// UnconstrainedBeam is plain beam search (or sampling) over the full vocabulary.
type UnconstrainedBeam struct {
	model
}

func NewUnconstrainedBeam(generator Generator, tokenizer Tokenizer) *UnconstrainedBeam {
	return &UnconstrainedBeam{model{generator: generator, tokenizer: tokenizer}}
}

func (s *UnconstrainedBeam) Name() string { return StrategyUnconstrainedBeam }

func (s *UnconstrainedBeam) Mode() domain.ConstraintMode { return domain.ConstraintModeNone }

func (s *UnconstrainedBeam) Decode(
	ctx context.Context,
	source string,
	cfg domain.DecodingConfig,
	constraint domain.ConstraintSet,
) ([]domain.Candidate, error) {
	if err := validateConfig(s.Name(), cfg); err != nil {
		return nil, err
	}
	if !constraint.Empty() {
		return nil, fmt.Errorf("%w: %s does not accept constraints (%q)", ErrDecoding, s.Name(), constraint.Label)
	}

	candidates, err := s.run(ctx, s.Name(), source, domain.GenerateOptions{DecodingConfig: cfg}, constraint.Label)
	if err != nil {
		return nil, err
	}

	if err = checkCount(s.Name(), candidates, cfg.NumReturnSequences); err != nil {
		return nil, err
	}

	return candidates, nil
}

// VocabRestrictedBeam zeroes the probability of every token absent from the source.
type VocabRestrictedBeam struct {
	model
}

func NewVocabRestrictedBeam(generator Generator, tokenizer Tokenizer) *VocabRestrictedBeam {
	return &VocabRestrictedBeam{model{generator: generator, tokenizer: tokenizer}}
}

func (s *VocabRestrictedBeam) Name() string { return StrategyVocabRestrictedBeam }

func (s *VocabRestrictedBeam) Mode() domain.ConstraintMode { return domain.ConstraintModeFullVocab }

func (s *VocabRestrictedBeam) Decode(
	ctx context.Context,
	source string,
	cfg domain.DecodingConfig,
	constraint domain.ConstraintSet,
) ([]domain.Candidate, error) {
	cfg.RestrictToInputVocab = true
	if err := validateConfig(s.Name(), cfg); err != nil {
		return nil, err
	}

	vocab := constraint.Tokens()
	if len(vocab) == 0 {
		return nil, fmt.Errorf("%w: %s requires the input vocabulary", ErrDecoding, s.Name())
	}

	allowed := make(map[int64]struct{}, len(vocab))
	allowedIDs := make([]int64, 0, len(vocab)+4)
	for _, id := range slices.Concat(vocab, s.tokenizer.Special().IDs()) {
		if _, ok := allowed[id]; ok {
			continue
		}
		allowed[id] = struct{}{}
		allowedIDs = append(allowedIDs, id)
	}

	candidates, err := s.run(ctx, s.Name(), source, domain.GenerateOptions{
		DecodingConfig: cfg,
		AllowedTokens:  allowedIDs,
	}, constraint.Label)
	if err != nil {
		return nil, err
	}

	if err = checkCount(s.Name(), candidates, cfg.NumReturnSequences); err != nil {
		return nil, err
	}

	for _, c := range candidates {
		for _, id := range c.Tokens {
			if _, ok := allowed[id]; !ok {
				return nil, fmt.Errorf("%w: %s produced token %d outside the input vocabulary",
					ErrDecoding, s.Name(), id)
			}
		}
	}

	return candidates, nil
}

// TokenPrependConstrained seeds decoding with a forced prefix so the phrase
// appears verbatim at the start of the summary. It yields the best sequence only.
type TokenPrependConstrained struct {
	model
}

func NewTokenPrependConstrained(generator Generator, tokenizer Tokenizer) *TokenPrependConstrained {
	return &TokenPrependConstrained{model{generator: generator, tokenizer: tokenizer}}
}

func (s *TokenPrependConstrained) Name() string { return StrategyTokenPrepend }

func (s *TokenPrependConstrained) Mode() domain.ConstraintMode {
	return domain.ConstraintModeNounPhrases
}

func (s *TokenPrependConstrained) Decode(
	ctx context.Context,
	source string,
	cfg domain.DecodingConfig,
	constraint domain.ConstraintSet,
) ([]domain.Candidate, error) {
	if err := validateConfig(s.Name(), cfg); err != nil {
		return nil, err
	}

	prefix := constraint.Tokens()
	if len(prefix) > cfg.MaxLength {
		return nil, fmt.Errorf("%w: forced prefix %q has %d tokens, max_length is %d",
			ErrDecoding, constraint.Label, len(prefix), cfg.MaxLength)
	}

	candidates, err := s.run(ctx, s.Name(), source, domain.GenerateOptions{
		DecodingConfig: cfg,
		ForcedPrefix:   prefix,
	}, constraint.Label)
	if err != nil {
		return nil, err
	}

	best := candidates[0]
	if !best.Tokens.HasPrefix(prefix) {
		return nil, fmt.Errorf("%w: %s output does not start with forced prefix %q",
			ErrDecoding, s.Name(), constraint.Label)
	}

	return []domain.Candidate{best}, nil
}

func validateConfig(strategy string, cfg domain.DecodingConfig) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrDecoding, strategy, err)
	}

	if err := CheckVocabRestriction(strategy, cfg); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrDecoding, strategy, err)
	}

	return nil
}

// CheckVocabRestriction rejects restrict_to_input_vocab on any strategy other
// than vocabulary-restricted-beam.
func CheckVocabRestriction(strategy string, cfg domain.DecodingConfig) error {
	if cfg.RestrictToInputVocab && strategy != StrategyVocabRestrictedBeam {
		return fmt.Errorf("restrict_to_input_vocab requires %s", StrategyVocabRestrictedBeam)
	}

	return nil
}

// checkCount holds a beam strategy's output to the num_return_sequences it
// asked for.
func checkCount(strategy string, candidates []domain.Candidate, want int) error {
	if len(candidates) != want {
		return fmt.Errorf("%w: %s: model returned %d sequences, num_return_sequences is %d",
			ErrDecoding, strategy, len(candidates), want)
	}

	return nil
}

func (m model) run(
	ctx context.Context,
	strategy string,
	source string,
	opts domain.GenerateOptions,
	label string,
) ([]domain.Candidate, error) {
	if m.generator == nil || m.tokenizer == nil {
		return nil, fmt.Errorf("%w: %s: model is not loaded", ErrDecoding, strategy)
	}

	source, ok := domain.NormalizeSource(source)
	if !ok {
		return nil, fmt.Errorf("%w: source text is empty", ErrExtraction)
	}

	input, err := m.tokenizer.Encode(ctx, source, true)
	if err != nil {
		return nil, fmt.Errorf("%w: encode source: %w", ErrExtraction, err)
	}

	generated, err := m.generator.Generate(ctx, input, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: generate: %w", ErrDecoding, strategy, err)
	}
	if len(generated) == 0 {
		return nil, fmt.Errorf("%w: %s: model returned no sequences", ErrDecoding, strategy)
	}

	texts, err := m.tokenizer.Decode(ctx, generated)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: decode: %w", ErrDecoding, strategy, err)
	}
	if len(texts) != len(generated) {
		return nil, fmt.Errorf("%w: %s: decoded %d texts for %d sequences",
			ErrDecoding, strategy, len(texts), len(generated))
	}

	special := m.tokenizer.Special()
	candidates := make([]domain.Candidate, len(generated))
	for i, seq := range generated {
		candidates[i] = domain.Candidate{
			Text:       texts[i],
			Tokens:     special.Strip(seq),
			Strategy:   strategy,
			Constraint: label,
		}
	}

	return candidates, nil
}
