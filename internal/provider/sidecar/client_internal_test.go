package sidecar

import (
	"context"
	"encoding/json"
	"entailsum/internal/domain"
	"errors"
	"net/http"
	"net/http/httptest"
	"slices"
	"sync/atomic"
	"testing"
	"time"
)

func newSidecar(t *testing.T, routes map[string]http.HandlerFunc) *Client {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /info", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"bos_token_id":0,"eos_token_id":2,"pad_token_id":1,` +
			`"decoder_start_token_id":2,"vocab_size":4}`))
	})
	for pattern, h := range routes {
		mux.HandleFunc(pattern, h)
	}

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	c, err := Dial(context.Background(), srv.URL+"/", time.Second)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}

	return c
}

func decodeBody[T any](t *testing.T, r *http.Request) T {
	t.Helper()

	var v T
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		t.Errorf("decode request body: %v", err)
	}

	return v
}

func TestDialLoadsSpecialTokens(t *testing.T) {
	c := newSidecar(t, nil)

	want := domain.SpecialTokens{BOS: 0, EOS: 2, PAD: 1, DecoderStart: 2}
	if c.Special() != want {
		t.Fatalf("unexpected special tokens: %+v", c.Special())
	}

	if c.VocabSize() != 4 {
		t.Fatalf("unexpected vocab size: %d", c.VocabSize())
	}
}

func TestDialRejectsBrokenSidecar(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model is loading", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := Dial(context.Background(), srv.URL, time.Second)

	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected StatusError, got %v", err)
	}

	if statusErr.Status != http.StatusServiceUnavailable || statusErr.Body != "model is loading" {
		t.Fatalf("unexpected status error: %+v", statusErr)
	}
}

func TestEncodeAndDecode(t *testing.T) {
	c := newSidecar(t, map[string]http.HandlerFunc{
		"POST /encode": func(w http.ResponseWriter, r *http.Request) {
			req := decodeBody[encodeRequest](t, r)
			if req.Text != "hello" || !req.AddSpecialTokens {
				t.Errorf("unexpected encode request: %+v", req)
			}
			_, _ = w.Write([]byte(`{"ids":[0,3,2]}`))
		},
		"POST /decode": func(w http.ResponseWriter, r *http.Request) {
			req := decodeBody[decodeRequest](t, r)
			if !req.SkipSpecialTokens || len(req.Sequences) != 1 {
				t.Errorf("unexpected decode request: %+v", req)
			}
			_, _ = w.Write([]byte(`{"texts":[" hello "]}`))
		},
	})

	ids, err := c.Encode(context.Background(), "hello", true)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if !slices.Equal(ids, domain.TokenSequence{0, 3, 2}) {
		t.Fatalf("unexpected ids: %v", ids)
	}

	texts, err := c.Decode(context.Background(), []domain.TokenSequence{ids})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(texts) != 1 || texts[0] != "hello" {
		t.Fatalf("unexpected texts: %q", texts)
	}
}

func TestGenerateSendsDecodingOptions(t *testing.T) {
	c := newSidecar(t, map[string]http.HandlerFunc{
		"POST /generate": func(w http.ResponseWriter, r *http.Request) {
			req := decodeBody[generateRequest](t, r)
			if req.NumBeams != 3 || req.MaxLength != 20 || !req.DoSample ||
				!slices.Equal(req.AllowedTokenIDs, []int64{2, 3}) ||
				!slices.Equal(req.ForcedPrefix, domain.TokenSequence{3}) {
				t.Errorf("unexpected generate request: %+v", req)
			}
			_, _ = w.Write([]byte(`{"sequences":[[2,3,2]]}`))
		},
	})

	opts := domain.GenerateOptions{
		DecodingConfig: domain.DecodingConfig{
			BeamWidth: 3, MinLength: 1, MaxLength: 20, Sample: true, NumReturnSequences: 1,
		},
		AllowedTokens: []int64{2, 3},
		ForcedPrefix:  domain.TokenSequence{3},
	}

	seqs, err := c.Generate(context.Background(), domain.TokenSequence{0, 3, 2}, opts)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	if len(seqs) != 1 || !slices.Equal(seqs[0], domain.TokenSequence{2, 3, 2}) {
		t.Fatalf("unexpected sequences: %v", seqs)
	}
}

func TestNextLogProbsChecksShape(t *testing.T) {
	c := newSidecar(t, map[string]http.HandlerFunc{
		"POST /logits": func(w http.ResponseWriter, r *http.Request) {
			req := decodeBody[logitsRequest](t, r)
			if len(req.Prefixes) == 1 {
				_, _ = w.Write([]byte(`{"log_probs":[[-1,-2,-3,-4]]}`))
				return
			}
			_, _ = w.Write([]byte(`{"log_probs":[[-1,-2,-3,-4],[-1]]}`))
		},
	})

	rows, err := c.NextLogProbs(context.Background(), nil, []domain.TokenSequence{{2}})
	if err != nil {
		t.Fatalf("next log probs: %v", err)
	}
	if len(rows) != 1 || rows[0][3] != -4 {
		t.Fatalf("unexpected rows: %v", rows)
	}

	if _, err = c.NextLogProbs(context.Background(), nil, []domain.TokenSequence{{2}, {2, 3}}); err == nil {
		t.Fatalf("expected a short row to be rejected")
	}
}

func TestClassifyReturnsEntailment(t *testing.T) {
	c := newSidecar(t, map[string]http.HandlerFunc{
		"POST /classify": func(w http.ResponseWriter, r *http.Request) {
			req := decodeBody[classifyRequest](t, r)
			if len(req.Pairs) == 0 || req.Pairs[0].Premise != "p" {
				t.Errorf("unexpected classify request: %+v", req)
			}
			_, _ = w.Write([]byte(`{"probabilities":[` +
				`{"entailment":0.9,"neutral":0.05,"contradiction":0.05},` +
				`{"entailment":0.1,"neutral":0.3,"contradiction":0.6}]}`))
		},
	})

	scores, err := c.Classify(context.Background(), []domain.EntailmentPair{
		{Premise: "p", Hypothesis: "a"},
		{Premise: "p", Hypothesis: "b"},
	})
	if err != nil {
		t.Fatalf("classify: %v", err)
	}

	if !slices.Equal(scores, []float64{0.9, 0.1}) {
		t.Fatalf("unexpected scores: %v", scores)
	}

	if _, err = c.Classify(context.Background(), []domain.EntailmentPair{{Premise: "p", Hypothesis: "a"}}); err == nil {
		t.Fatalf("expected a count mismatch to fail")
	}
}

func TestNounPhrasesAndHealth(t *testing.T) {
	var unhealthy atomic.Bool
	c := newSidecar(t, map[string]http.HandlerFunc{
		"POST /noun_phrases": func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"phrases":["The cat","the mat"]}`))
		},
		"GET /health": func(w http.ResponseWriter, _ *http.Request) {
			if unhealthy.Load() {
				w.WriteHeader(http.StatusInternalServerError)
			}
		},
	})

	phrases, err := c.NounPhrases(context.Background(), "The cat sat on the mat.")
	if err != nil {
		t.Fatalf("noun phrases: %v", err)
	}
	if !slices.Equal(phrases, []string{"The cat", "the mat"}) {
		t.Fatalf("unexpected phrases: %q", phrases)
	}

	if err = c.Health(context.Background()); err != nil {
		t.Fatalf("expected healthy sidecar, got %v", err)
	}

	unhealthy.Store(true)
	if err = c.Health(context.Background()); err == nil {
		t.Fatalf("expected unhealthy sidecar to fail")
	}
}
