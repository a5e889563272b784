package chunker

import (
	"context"
	"fmt"
	"strings"

	"github.com/jdkato/prose/v2"
)

type Chunker struct {
	maxWords int
}

func New() *Chunker {
	return &Chunker{maxWords: 6}
}

// NounPhrases returns the noun phrases of text in order of first
// appearance, deduplicated case-insensitively.
func (c *Chunker) NounPhrases(ctx context.Context, text string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	doc, err := prose.NewDocument(text, prose.WithExtraction(false))
	if err != nil {
		return nil, fmt.Errorf("tag text: %w", err)
	}

	seen := make(map[string]struct{})
	var phrases []string

	for _, phrase := range c.chunk(doc.Tokens()) {
		key := strings.ToLower(phrase)
		if _, ok := seen[key]; ok {
			continue
		}

		seen[key] = struct{}{}
		phrases = append(phrases, phrase)
	}

	return phrases, nil
}

func isDeterminer(tag string) bool {
	return tag == "DT" || tag == "PDT" || tag == "PRP$"
}

func isModifier(tag string) bool {
	switch tag {
	case "JJ", "JJR", "JJS", "CD":
		return true
	}
	return false
}

func isNoun(tag string) bool {
	return strings.HasPrefix(tag, "NN")
}

// chunk cuts tagged tokens into runs of an optional determiner followed by
// modifiers and nouns, ending on a noun.
func (c *Chunker) chunk(tokens []prose.Token) []string {
	var (
		out []string
		run []prose.Token
	)

	flush := func() {
		defer func() { run = run[:0] }()

		last := len(run) - 1
		for last >= 0 && !isNoun(run[last].Tag) {
			last--
		}
		if last < 0 {
			return
		}

		first := 0
		if n := last + 1; n > c.maxWords {
			first = n - c.maxWords
		}

		words := make([]string, 0, last-first+1)
		for _, tok := range run[first : last+1] {
			words = append(words, tok.Text)
		}
		out = append(out, strings.Join(words, " "))
	}

	for _, tok := range tokens {
		switch {
		case isDeterminer(tok.Tag):
			flush()
			run = append(run, tok)
		case isModifier(tok.Tag), isNoun(tok.Tag):
			run = append(run, tok)
		default:
			flush()
		}
	}
	flush()

	return out
}
