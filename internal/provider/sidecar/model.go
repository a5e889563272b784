package sidecar

import (
	"context"
	"entailsum/internal/domain"
	"fmt"
	"net/http"
	"strings"
)

type encodeRequest struct {
	Text             string `json:"text"`
	AddSpecialTokens bool   `json:"add_special_tokens"`
}

type encodeResponse struct {
	IDs []int64 `json:"ids"`
}

func (c *Client) Encode(ctx context.Context, text string, addSpecial bool) (domain.TokenSequence, error) {
	var resp encodeResponse
	if err := c.do(ctx, http.MethodPost, "/encode", encodeRequest{
		Text:             text,
		AddSpecialTokens: addSpecial,
	}, &resp); err != nil {
		return nil, err
	}

	return resp.IDs, nil
}

type decodeRequest struct {
	Sequences         []domain.TokenSequence `json:"sequences"`
	SkipSpecialTokens bool                   `json:"skip_special_tokens"`
}

type decodeResponse struct {
	Texts []string `json:"texts"`
}

func (c *Client) Decode(ctx context.Context, seqs []domain.TokenSequence) ([]string, error) {
	var resp decodeResponse
	if err := c.do(ctx, http.MethodPost, "/decode", decodeRequest{
		Sequences:         seqs,
		SkipSpecialTokens: true,
	}, &resp); err != nil {
		return nil, err
	}

	if len(resp.Texts) != len(seqs) {
		return nil, fmt.Errorf("decoded %d texts for %d sequences", len(resp.Texts), len(seqs))
	}

	for i, t := range resp.Texts {
		resp.Texts[i] = strings.TrimSpace(t)
	}

	return resp.Texts, nil
}

type generateRequest struct {
	InputIDs           domain.TokenSequence `json:"input_ids"`
	NumBeams           int                  `json:"num_beams"`
	NoRepeatNgramSize  int                  `json:"no_repeat_ngram_size"`
	MinLength          int                  `json:"min_length"`
	MaxLength          int                  `json:"max_length"`
	EarlyStopping      bool                 `json:"early_stopping"`
	DoSample           bool                 `json:"do_sample"`
	NumReturnSequences int                  `json:"num_return_sequences"`
	AllowedTokenIDs    []int64              `json:"allowed_token_ids,omitempty"`
	ForcedPrefix       domain.TokenSequence `json:"forced_prefix,omitempty"`
}

type generateResponse struct {
	Sequences []domain.TokenSequence `json:"sequences"`
}

// Generate runs the sidecar's own search with the given options.
func (c *Client) Generate(
	ctx context.Context,
	input domain.TokenSequence,
	opts domain.GenerateOptions,
) ([]domain.TokenSequence, error) {
	var resp generateResponse
	if err := c.do(ctx, http.MethodPost, "/generate", generateRequest{
		InputIDs:           input,
		NumBeams:           opts.BeamWidth,
		NoRepeatNgramSize:  opts.NoRepeatNgramSize,
		MinLength:          opts.MinLength,
		MaxLength:          opts.MaxLength,
		EarlyStopping:      opts.EarlyStopping,
		DoSample:           opts.Sample,
		NumReturnSequences: opts.NumReturnSequences,
		AllowedTokenIDs:    opts.AllowedTokens,
		ForcedPrefix:       opts.ForcedPrefix,
	}, &resp); err != nil {
		return nil, err
	}

	return resp.Sequences, nil
}

type logitsRequest struct {
	InputIDs domain.TokenSequence   `json:"input_ids"`
	Prefixes []domain.TokenSequence `json:"prefixes"`
}

type logitsResponse struct {
	LogProbs [][]float32 `json:"log_probs"`
}

// NextLogProbs returns next-token log-probabilities for every prefix. It lets
// the in-process search drive a sidecar that only exposes a forward pass.
func (c *Client) NextLogProbs(
	ctx context.Context,
	input domain.TokenSequence,
	prefixes []domain.TokenSequence,
) ([][]float32, error) {
	var resp logitsResponse
	if err := c.do(ctx, http.MethodPost, "/logits", logitsRequest{
		InputIDs: input,
		Prefixes: prefixes,
	}, &resp); err != nil {
		return nil, err
	}

	if len(resp.LogProbs) != len(prefixes) {
		return nil, fmt.Errorf("got %d rows for %d prefixes", len(resp.LogProbs), len(prefixes))
	}

	for i, row := range resp.LogProbs {
		if len(row) != c.vocabSize {
			return nil, fmt.Errorf("row %d has %d entries, vocab size is %d", i, len(row), c.vocabSize)
		}
	}

	return resp.LogProbs, nil
}
