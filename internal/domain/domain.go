package domain

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"unicode"
)

// TokenSequence is an ordered list of token ids. It is never mutated after creation.
type TokenSequence []int64

// HasPrefix reports whether s starts with prefix.
func (s TokenSequence) HasPrefix(prefix TokenSequence) bool {
	return len(prefix) <= len(s) && slices.Equal(s[:len(prefix)], prefix)
}

type ConstraintMode string

const (
	ConstraintModeNone        ConstraintMode = "none"
	ConstraintModeFullVocab   ConstraintMode = "full-vocab"
	ConstraintModeNounPhrases ConstraintMode = "noun-phrases"
)

// ConstraintSet holds the lexical constraints of one decoding run.
// An empty set means unconstrained decoding.
type ConstraintSet struct {
	// Label names the constraint for diagnostics (e.g. the noun phrase).
	Label     string
	Sequences []TokenSequence
}

func (c ConstraintSet) Empty() bool {
	for _, seq := range c.Sequences {
		if len(seq) > 0 {
			return false
		}
	}
	return true
}

// Tokens flattens the set in order.
func (c ConstraintSet) Tokens() TokenSequence {
	var out TokenSequence
	for _, seq := range c.Sequences {
		out = append(out, seq...)
	}
	return out
}

// DecodingConfig is owned by a named registration and is immutable per invocation.
type DecodingConfig struct {
	BeamWidth            int
	NoRepeatNgramSize    int
	MinLength            int
	MaxLength            int
	EarlyStopping        bool
	RestrictToInputVocab bool
	Sample               bool
	NumReturnSequences   int
}

func (c DecodingConfig) Validate() error {
	var errs []error

	if c.BeamWidth <= 0 {
		errs = append(errs, fmt.Errorf("beam_width must be > 0, got %d", c.BeamWidth))
	}
	if c.NumReturnSequences <= 0 {
		errs = append(errs, fmt.Errorf("num_return_sequences must be > 0, got %d", c.NumReturnSequences))
	}
	if c.NoRepeatNgramSize < 0 {
		errs = append(errs, fmt.Errorf("no_repeat_ngram_size must be >= 0, got %d", c.NoRepeatNgramSize))
	}
	if c.MinLength < 0 {
		errs = append(errs, fmt.Errorf("min_length must be >= 0, got %d", c.MinLength))
	}
	if c.MaxLength <= c.MinLength {
		errs = append(errs, fmt.Errorf(
			"max_length must be > min_length, got max_length = %d, min_length = %d",
			c.MaxLength, c.MinLength))
	}
	if c.BeamWidth < c.NumReturnSequences {
		errs = append(errs, fmt.Errorf(
			"beam_width must be >= num_return_sequences, got beam_width = %d, num_return_sequences = %d",
			c.BeamWidth, c.NumReturnSequences))
	}

	return errors.Join(errs...)
}

// SpecialTokens are the boundary ids of a tokenizer/model pair.
type SpecialTokens struct {
	BOS          int64
	EOS          int64
	PAD          int64
	DecoderStart int64
}

func (s SpecialTokens) IDs() []int64 {
	ids := []int64{s.BOS, s.EOS, s.PAD, s.DecoderStart}
	slices.Sort(ids)
	return slices.Compact(ids)
}

func (s SpecialTokens) Contains(id int64) bool {
	return id == s.BOS || id == s.EOS || id == s.PAD || id == s.DecoderStart
}

// Strip drops special tokens from seq.
func (s SpecialTokens) Strip(seq TokenSequence) TokenSequence {
	out := make(TokenSequence, 0, len(seq))
	for _, id := range seq {
		if !s.Contains(id) {
			out = append(out, id)
		}
	}
	return out
}

// GenerateOptions is what a model provider receives for one generate call.
type GenerateOptions struct {
	DecodingConfig

	// AllowedTokens restricts every decode step when non-nil. Special tokens
	// needed to terminate a sequence are allowed implicitly.
	AllowedTokens []int64
	// ForcedPrefix seeds decoding; it counts towards the length budget.
	ForcedPrefix TokenSequence
}

type Candidate struct {
	Text   string
	Tokens TokenSequence
	// Strategy and Constraint are diagnostics only.
	Strategy   string
	Constraint string
}

type ScoredCandidate struct {
	Text  string
	Score float64
}

// RankedResult is best first.
type RankedResult []ScoredCandidate

func (r RankedResult) Best() (ScoredCandidate, bool) {
	if len(r) == 0 {
		return ScoredCandidate{}, false
	}
	return r[0], true
}

type EntailmentPair struct {
	Premise    string
	Hypothesis string
}

// NormalizeSource strips trailing whitespace. It returns false when nothing is left.
func NormalizeSource(text string) (string, bool) {
	text = strings.TrimRightFunc(text, unicode.IsSpace)
	if strings.TrimSpace(text) == "" {
		return "", false
	}
	return text, true
}
