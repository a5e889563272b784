package summarizer

import (
	"errors"
	"testing"
)

func TestRankSortsByScoreDescending(t *testing.T) {
	ranked, err := Rank([]string{"a", "b", "c"}, []float64{0.2, 0.9, 0.5})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"b", "c", "a"}
	for i, c := range ranked {
		if c.Text != want[i] {
			t.Fatalf("rank %d: got %q want %q", i, c.Text, want[i])
		}
	}
}

func TestRankKeepsCandidateOrderOnTies(t *testing.T) {
	texts := []string{"first", "second", "top", "third", "fourth"}
	scores := []float64{0.4, 0.4, 0.8, 0.4, 0.1}

	ranked, err := Rank(texts, scores)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"top", "first", "second", "third", "fourth"}
	for i, c := range ranked {
		if c.Text != want[i] {
			t.Fatalf("rank %d: got %q want %q", i, c.Text, want[i])
		}
	}
}

func TestRankKeepsDuplicatesByDefault(t *testing.T) {
	ranked, err := Rank([]string{"x", "x", "y"}, []float64{0.3, 0.6, 0.1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(ranked) != 3 {
		t.Fatalf("expected duplicates to survive, got %+v", ranked)
	}
}

func TestRankDeduplicateAndTop(t *testing.T) {
	ranked, err := Rank(
		[]string{"x", "y", "x", "z"},
		[]float64{0.3, 0.2, 0.6, 0.1},
		Deduplicate(),
		Top(2),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(ranked) != 2 {
		t.Fatalf("expected 2 results, got %+v", ranked)
	}

	if ranked[0].Text != "x" || ranked[0].Score != 0.6 {
		t.Fatalf("expected best duplicate to be kept, got %+v", ranked[0])
	}

	if ranked[1].Text != "y" {
		t.Fatalf("unexpected second result: %+v", ranked[1])
	}
}

func TestRankRejectsMismatchedInput(t *testing.T) {
	if _, err := Rank([]string{"a"}, nil); !errors.Is(err, ErrScoring) {
		t.Fatalf("expected ErrScoring, got %v", err)
	}
}

func TestRegistryRejectsDuplicatesAndUnknownNames(t *testing.T) {
	gen, tok := &stubGenerator{}, &wordTokenizer{}

	if _, err := NewRegistry(NewUnconstrainedBeam(gen, tok), NewUnconstrainedBeam(gen, tok)); err == nil {
		t.Fatalf("expected duplicate registration to fail")
	}

	registry, err := NewRegistry(NewUnconstrainedBeam(gen, tok), NewTokenPrependConstrained(gen, tok))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if names := registry.Names(); len(names) != 2 || names[0] != StrategyTokenPrepend {
		t.Fatalf("unexpected names: %v", names)
	}

	if _, err = registry.Lookup("beam-of-light"); !errors.Is(err, ErrUnknownStrategy) {
		t.Fatalf("expected ErrUnknownStrategy, got %v", err)
	}
}
