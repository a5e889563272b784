package summarizer

import (
	"context"
	"entailsum/internal/domain"
)

// Tokenizer is shared read-only between concurrent requests.
type Tokenizer interface {
	// Encode converts text into token ids, optionally wrapped in special tokens.
	Encode(ctx context.Context, text string, addSpecial bool) (domain.TokenSequence, error)
	// Decode converts a batch of sequences to text with special tokens removed.
	Decode(ctx context.Context, seqs []domain.TokenSequence) ([]string, error)
	Special() domain.SpecialTokens
}

// Generator runs a pre-loaded sequence-to-sequence model.
type Generator interface {
	Generate(ctx context.Context, input domain.TokenSequence, opts domain.GenerateOptions) ([]domain.TokenSequence, error)
}

type Chunker interface {
	NounPhrases(ctx context.Context, text string) ([]string, error)
}

// Classifier returns, per pair, the probability that the premise entails the hypothesis.
type Classifier interface {
	Classify(ctx context.Context, pairs []domain.EntailmentPair) ([]float64, error)
}

// Summarizer produces candidate summaries ranked by entailment.
type Summarizer interface {
	ProduceRankedSummaries(
		ctx context.Context,
		source string,
		strategyName string,
		cfg domain.DecodingConfig,
		opts ...RankOption,
	) (domain.RankedResult, error)
}
