package catalog_test

import (
	"entailsum/internal/catalog"
	"entailsum/internal/summarizer"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadDefaultCatalog(t *testing.T) {
	c, err := catalog.Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if c.Default().Name != "bart.base.vocab.input" {
		t.Fatalf("unexpected default model: %q", c.Default().Name)
	}

	known := []string{
		summarizer.StrategyUnconstrainedBeam,
		summarizer.StrategyVocabRestrictedBeam,
		summarizer.StrategyTokenPrepend,
	}
	if err = c.CheckStrategies(known); err != nil {
		t.Fatalf("default catalog references unknown strategies: %v", err)
	}

	for _, e := range c.Entries() {
		if err = e.Decoding.Config().Validate(); err != nil {
			t.Fatalf("model %q has an invalid config: %v", e.Name, err)
		}
	}
}

func TestLookup(t *testing.T) {
	c, err := catalog.Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	e, err := c.Lookup(" bart.base.np.prepend ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if e.Strategy != summarizer.StrategyTokenPrepend || e.Decoding.BeamWidth != 6 {
		t.Fatalf("unexpected entry: %+v", e)
	}

	if _, err = c.Lookup("bart.large.cnn"); !errors.Is(err, catalog.ErrUnknownModel) {
		t.Fatalf("expected ErrUnknownModel, got %v", err)
	}
}

func TestRankOptions(t *testing.T) {
	e := catalog.Entry{Deduplicate: true, Top: 2}
	if got := len(e.RankOptions()); got != 2 {
		t.Fatalf("expected 2 rank options, got %d", got)
	}

	if got := len(catalog.Entry{}.RankOptions()); got != 0 {
		t.Fatalf("expected no rank options, got %d", got)
	}
}

func TestParseRejectsInvalidCatalogs(t *testing.T) {
	valid := `
  - name: a
    strategy: unconstrained-beam
    decoding: {beam_width: 2, min_length: 1, max_length: 5, num_return_sequences: 1}
`

	tests := map[string]string{
		"empty":          "models: []",
		"unknown field":  "models:\n  - name: a\n    beams: 3\n",
		"duplicate name": "models:" + valid + valid,
		"empty name":     "models:\n  - strategy: unconstrained-beam\n",
		"bad config": "models:\n  - name: a\n    strategy: unconstrained-beam\n" +
			"    decoding: {beam_width: 1, min_length: 9, max_length: 5, num_return_sequences: 2}\n",
		"vocab restriction on another strategy": "models:\n  - name: a\n    strategy: unconstrained-beam\n" +
			"    decoding: {beam_width: 2, min_length: 1, max_length: 5, num_return_sequences: 1, restrict_to_input_vocab: true}\n",
	}

	for name, data := range tests {
		if _, err := catalog.Parse([]byte(data)); err == nil {
			t.Fatalf("%s: expected an error", name)
		}
	}

	if _, err := catalog.Parse([]byte("models:" + valid)); err != nil {
		t.Fatalf("expected a valid catalog, got %v", err)
	}
}

func TestCheckStrategiesReportsUnknown(t *testing.T) {
	c, err := catalog.Parse([]byte(`
models:
  - name: a
    strategy: nucleus
    decoding: {beam_width: 2, min_length: 1, max_length: 5, num_return_sequences: 1}
`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err = c.CheckStrategies([]string{summarizer.StrategyUnconstrainedBeam})
	if !errors.Is(err, summarizer.ErrUnknownStrategy) || !strings.Contains(err.Error(), "nucleus") {
		t.Fatalf("expected unknown strategy error, got %v", err)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	data := `
models:
  - name: custom
    strategy: unconstrained-beam
    decoding: {beam_width: 4, min_length: 2, max_length: 30, num_return_sequences: 4}
    top: 1
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("write catalog: %v", err)
	}

	c, err := catalog.Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if c.Default().Name != "custom" || c.Default().Top != 1 {
		t.Fatalf("unexpected default: %+v", c.Default())
	}

	if _, err = catalog.Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected a missing file to fail")
	}
}
