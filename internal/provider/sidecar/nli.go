package sidecar

import (
	"context"
	"entailsum/internal/domain"
	"fmt"
	"net/http"
)

type nounPhrasesRequest struct {
	Text string `json:"text"`
}

type nounPhrasesResponse struct {
	Phrases []string `json:"phrases"`
}

func (c *Client) NounPhrases(ctx context.Context, text string) ([]string, error) {
	var resp nounPhrasesResponse
	if err := c.do(ctx, http.MethodPost, "/noun_phrases", nounPhrasesRequest{Text: text}, &resp); err != nil {
		return nil, err
	}

	return resp.Phrases, nil
}

type pair struct {
	Premise    string `json:"premise"`
	Hypothesis string `json:"hypothesis"`
}

type classifyRequest struct {
	Pairs []pair `json:"pairs"`
}

type probabilities struct {
	Entailment    float64 `json:"entailment"`
	Neutral       float64 `json:"neutral"`
	Contradiction float64 `json:"contradiction"`
}

type classifyResponse struct {
	Probabilities []probabilities `json:"probabilities"`
}

// Classify returns the entailment probability of every pair.
func (c *Client) Classify(ctx context.Context, pairs []domain.EntailmentPair) ([]float64, error) {
	req := classifyRequest{Pairs: make([]pair, len(pairs))}
	for i, p := range pairs {
		req.Pairs[i] = pair{Premise: p.Premise, Hypothesis: p.Hypothesis}
	}

	var resp classifyResponse
	if err := c.do(ctx, http.MethodPost, "/classify", req, &resp); err != nil {
		return nil, err
	}

	if len(resp.Probabilities) != len(pairs) {
		return nil, fmt.Errorf("got %d probabilities for %d pairs", len(resp.Probabilities), len(pairs))
	}

	scores := make([]float64, len(pairs))
	for i, p := range resp.Probabilities {
		scores[i] = p.Entailment
	}

	return scores, nil
}
