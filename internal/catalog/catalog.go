package catalog

import (
	"bytes"
	_ "embed"
	"entailsum/internal/domain"
	"entailsum/internal/summarizer"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultCatalog []byte

var ErrUnknownModel = errors.New("unknown model")

type Decoding struct {
	BeamWidth            int  `yaml:"beam_width"`
	NoRepeatNgramSize    int  `yaml:"no_repeat_ngram_size"`
	MinLength            int  `yaml:"min_length"`
	MaxLength            int  `yaml:"max_length"`
	EarlyStopping        bool `yaml:"early_stopping"`
	RestrictToInputVocab bool `yaml:"restrict_to_input_vocab"`
	Sample               bool `yaml:"sample"`
	NumReturnSequences   int  `yaml:"num_return_sequences"`
}

func (d Decoding) Config() domain.DecodingConfig {
	return domain.DecodingConfig{
		BeamWidth:            d.BeamWidth,
		NoRepeatNgramSize:    d.NoRepeatNgramSize,
		MinLength:            d.MinLength,
		MaxLength:            d.MaxLength,
		EarlyStopping:        d.EarlyStopping,
		RestrictToInputVocab: d.RestrictToInputVocab,
		Sample:               d.Sample,
		NumReturnSequences:   d.NumReturnSequences,
	}
}

// Entry maps a user-facing model name to a strategy and its decoding config.
type Entry struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Strategy    string   `yaml:"strategy"`
	Decoding    Decoding `yaml:"decoding"`
	Deduplicate bool     `yaml:"deduplicate"`
	Top         int      `yaml:"top"`
}

func (e Entry) RankOptions() []summarizer.RankOption {
	var opts []summarizer.RankOption
	if e.Deduplicate {
		opts = append(opts, summarizer.Deduplicate())
	}
	if e.Top > 0 {
		opts = append(opts, summarizer.Top(e.Top))
	}
	return opts
}

type file struct {
	Models []Entry `yaml:"models"`
}

type Catalog struct {
	entries []Entry
	byName  map[string]int
}

// Load reads the catalog at path, or the embedded default when path is empty.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Parse(defaultCatalog)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}

	return Parse(data)
}

func Parse(data []byte) (*Catalog, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var f file
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}

	if len(f.Models) == 0 {
		return nil, errors.New("catalog has no models")
	}

	c := &Catalog{byName: make(map[string]int, len(f.Models))}

	var errs []error
	for i, e := range f.Models {
		e.Name = strings.TrimSpace(e.Name)
		e.Strategy = strings.TrimSpace(e.Strategy)

		switch {
		case e.Name == "":
			errs = append(errs, fmt.Errorf("model %d: name is empty", i))
			continue
		case strings.ContainsFunc(e.Name, isSpace):
			errs = append(errs, fmt.Errorf("model %q: name contains whitespace", e.Name))
			continue
		}

		if _, ok := c.byName[e.Name]; ok {
			errs = append(errs, fmt.Errorf("model %q: duplicate name", e.Name))
			continue
		}

		if e.Strategy == "" {
			errs = append(errs, fmt.Errorf("model %q: strategy is empty", e.Name))
		}
		if err := e.Decoding.Config().Validate(); err != nil {
			errs = append(errs, fmt.Errorf("model %q: %w", e.Name, err))
		}
		if err := summarizer.CheckVocabRestriction(e.Strategy, e.Decoding.Config()); err != nil {
			errs = append(errs, fmt.Errorf("model %q: %w", e.Name, err))
		}
		if e.Top < 0 {
			errs = append(errs, fmt.Errorf("model %q: top must be >= 0, got %d", e.Name, e.Top))
		}

		c.byName[e.Name] = len(c.entries)
		c.entries = append(c.entries, e)
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	return c, nil
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r'
}

// CheckStrategies reports entries whose strategy is not in known.
func (c *Catalog) CheckStrategies(known []string) error {
	var errs []error
	for _, e := range c.entries {
		if !slices.Contains(known, e.Strategy) {
			errs = append(errs, fmt.Errorf("model %q: %w: %s", e.Name, summarizer.ErrUnknownStrategy, e.Strategy))
		}
	}
	return errors.Join(errs...)
}

func (c *Catalog) Lookup(name string) (Entry, error) {
	i, ok := c.byName[strings.TrimSpace(name)]
	if !ok {
		return Entry{}, fmt.Errorf("%w: %q (available: %s)", ErrUnknownModel, name, strings.Join(c.Names(), ", "))
	}
	return c.entries[i], nil
}

// Default is the first registered model.
func (c *Catalog) Default() Entry {
	return c.entries[0]
}

func (c *Catalog) Entries() []Entry {
	return slices.Clone(c.entries)
}

func (c *Catalog) Names() []string {
	names := make([]string, len(c.entries))
	for i, e := range c.entries {
		names[i] = e.Name
	}
	return names
}
