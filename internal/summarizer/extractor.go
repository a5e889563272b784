package summarizer

import (
	"context"
	"entailsum/internal/domain"
	"fmt"
	"slices"
	"strings"
)

// Extractor derives token-level constraints from a source text.
type Extractor struct {
	tokenizer Tokenizer
	chunker   Chunker
}

func NewExtractor(tokenizer Tokenizer, chunker Chunker) *Extractor {
	return &Extractor{
		tokenizer: tokenizer,
		chunker:   chunker,
	}
}

func (e *Extractor) Extract(
	ctx context.Context,
	source string,
	mode domain.ConstraintMode,
) ([]domain.ConstraintSet, error) {
	source, ok := domain.NormalizeSource(source)
	if !ok {
		return nil, fmt.Errorf("%w: source text is empty", ErrExtraction)
	}

	switch mode {
	case domain.ConstraintModeNone:
		return []domain.ConstraintSet{{}}, nil

	case domain.ConstraintModeFullVocab:
		vocab, err := e.inputVocabulary(ctx, source)
		if err != nil {
			return nil, err
		}

		return []domain.ConstraintSet{{
			Label:     string(domain.ConstraintModeFullVocab),
			Sequences: []domain.TokenSequence{vocab},
		}}, nil

	case domain.ConstraintModeNounPhrases:
		return e.nounPhrases(ctx, source)

	default:
		return nil, fmt.Errorf("%w: unsupported constraint mode %q", ErrExtraction, mode)
	}
}

func (e *Extractor) inputVocabulary(ctx context.Context, source string) (domain.TokenSequence, error) {
	ids, err := e.tokenizer.Encode(ctx, source, true)
	if err != nil {
		return nil, fmt.Errorf("%w: encode source: %w", ErrExtraction, err)
	}

	vocab := e.tokenizer.Special().Strip(ids)
	if len(vocab) == 0 {
		return nil, fmt.Errorf("%w: source text has no tokens", ErrExtraction)
	}

	slices.Sort(vocab)

	return slices.Compact(vocab), nil
}

func (e *Extractor) nounPhrases(ctx context.Context, source string) ([]domain.ConstraintSet, error) {
	if e.chunker == nil {
		return nil, fmt.Errorf("%w: noun-phrase chunker is not configured", ErrExtraction)
	}

	// The source must be tokenizable even when no phrase is found.
	if _, err := e.inputVocabulary(ctx, source); err != nil {
		return nil, err
	}

	phrases, err := e.chunker.NounPhrases(ctx, source)
	if err != nil {
		return nil, fmt.Errorf("%w: extract noun phrases: %w", ErrExtraction, err)
	}

	sets := make([]domain.ConstraintSet, 0, len(phrases))
	for _, phrase := range phrases {
		phrase = strings.TrimSpace(phrase)
		if phrase == "" {
			continue
		}

		ids, encodeErr := e.tokenizer.Encode(ctx, phrase, false)
		if encodeErr != nil {
			return nil, fmt.Errorf("%w: encode noun phrase %q: %w", ErrExtraction, phrase, encodeErr)
		}

		ids = e.tokenizer.Special().Strip(ids)
		if len(ids) == 0 {
			continue
		}

		sets = append(sets, domain.ConstraintSet{
			Label:     phrase,
			Sequences: []domain.TokenSequence{ids},
		})
	}

	return sets, nil
}
