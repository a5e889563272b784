package openainli

import (
	"context"
	"encoding/json"
	"entailsum/internal/domain"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/responses"
)

const (
	baseMaxOutputTokens  int64 = 512
	limitMaxOutputTokens int64 = 4096

	systemPrompt = `You are a natural language inference classifier.

For every numbered pair decide whether the PREMISE entails the HYPOTHESIS.

Rules:
- Answer with a JSON array only, one object per pair, in the input order.
- Each object is {"entailment": p, "neutral": p, "contradiction": p} with probabilities in [0, 1] summing to 1.
- Judge only what the premise states. Background knowledge does not count.
- No prose, no code fences.`
)

type Classifier struct {
	client openai.Client
	model  string
}

func New(apiKey, model string, opts ...option.RequestOption) (*Classifier, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("API key is empty")
	}

	if model == "" {
		model = openai.ChatModelGPT5Mini2025_08_07
	}

	return &Classifier{
		client: openai.NewClient(append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)...),
		model:  model,
	}, nil
}

// Classify returns the entailment probability of every pair.
func (c *Classifier) Classify(ctx context.Context, pairs []domain.EntailmentPair) ([]float64, error) {
	if len(pairs) == 0 {
		return []float64{}, nil
	}

	output, err := c.respond(ctx, buildPrompt(pairs))
	if err != nil {
		return nil, err
	}

	return parseScores(output, len(pairs))
}

func (c *Classifier) respond(ctx context.Context, prompt string) (string, error) {
	maxOutputTokens := baseMaxOutputTokens
	for {
		resp, err := c.client.Responses.New(ctx, responses.ResponseNewParams{
			Model:           c.model,
			ServiceTier:     responses.ResponseNewParamsServiceTierFlex,
			MaxOutputTokens: openai.Int(maxOutputTokens),
			Reasoning: responses.ReasoningParam{
				Effort: openai.ReasoningEffortLow,
			},
			Instructions: openai.String(systemPrompt),
			Input: responses.ResponseNewParamsInputUnion{
				OfString: openai.String(prompt),
			},
		})
		if err != nil {
			return "", fmt.Errorf("do request: %w", err)
		}

		if resp.Status == "incomplete" {
			if resp.IncompleteDetails.Reason == "max_output_tokens" && maxOutputTokens < limitMaxOutputTokens {
				maxOutputTokens = min(maxOutputTokens*2, limitMaxOutputTokens)
				continue
			}
			return "", fmt.Errorf(
				"response is incomplete (reason = %s, maxOutputTokens = %d)",
				resp.IncompleteDetails.Reason,
				maxOutputTokens,
			)
		}

		output := strings.TrimSpace(resp.OutputText())
		if output == "" {
			return "", fmt.Errorf("output text is missing (status = %s)", resp.Status)
		}
		return output, nil
	}
}

func buildPrompt(pairs []domain.EntailmentPair) string {
	var b strings.Builder
	for i, p := range pairs {
		fmt.Fprintf(&b, "Pair %d\nPREMISE:\n%s\nHYPOTHESIS:\n%s\n\n",
			i+1, strings.TrimSpace(p.Premise), strings.TrimSpace(p.Hypothesis))
	}
	return strings.TrimSpace(b.String())
}

type verdict struct {
	Entailment    float64 `json:"entailment"`
	Neutral       float64 `json:"neutral"`
	Contradiction float64 `json:"contradiction"`
}

func parseScores(output string, want int) ([]float64, error) {
	start, end := strings.Index(output, "["), strings.LastIndex(output, "]")
	if start < 0 || end < start {
		return nil, fmt.Errorf("output has no JSON array: %q", output)
	}

	var verdicts []verdict
	if err := json.Unmarshal([]byte(output[start:end+1]), &verdicts); err != nil {
		return nil, fmt.Errorf("unmarshal verdicts: %w", err)
	}

	if len(verdicts) != want {
		return nil, fmt.Errorf("got %d verdicts for %d pairs", len(verdicts), want)
	}

	scores := make([]float64, len(verdicts))
	for i, v := range verdicts {
		if v.Entailment < 0 || v.Neutral < 0 || v.Contradiction < 0 {
			return nil, fmt.Errorf("verdict %d has a negative probability", i)
		}

		total := v.Entailment + v.Neutral + v.Contradiction
		if total == 0 || math.IsInf(total, 0) || math.IsNaN(total) {
			return nil, fmt.Errorf("verdict %d has no usable probabilities", i)
		}

		scores[i] = v.Entailment / total
	}

	return scores, nil
}
