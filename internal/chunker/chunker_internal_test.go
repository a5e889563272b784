package chunker

import (
	"context"
	"slices"
	"testing"
)

func TestNounPhrases(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "simple sentences",
			text: "The cat sat on the mat. It was a sunny day.",
			want: []string{"The cat", "the mat", "a sunny day"},
		},
		{
			name: "duplicates differ in case",
			text: "The dog barked at the cat. The Cat ran away from the dog.",
			want: []string{"The dog", "the cat"},
		},
		{
			name: "present tense main verb",
			text: "The dog barks at the cat.",
			want: []string{"The dog", "the cat"},
		},
		{
			name: "present tense verb before an object",
			text: "The company reports strong earnings.",
			want: []string{"The company", "strong earnings"},
		},
		{
			name: "past tense main verb",
			text: "The government announced new taxes.",
			want: []string{"The government", "new taxes"},
		},
		{
			name: "trailing participle is not a head",
			text: "Their plans were delayed.",
			want: []string{"Their plans"},
		},
		{
			name: "nothing to find",
			text: "It was said that they would.",
			want: nil,
		},
	}

	c := New()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.NounPhrases(context.Background(), tt.text)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if !slices.Equal(got, tt.want) {
				t.Fatalf("got %q want %q", got, tt.want)
			}
		})
	}
}

func TestNounPhrasesCapsLongRuns(t *testing.T) {
	c := &Chunker{maxWords: 2}

	got, err := c.NounPhrases(context.Background(), "It was a sunny day.")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"sunny day"}
	if !slices.Equal(got, want) {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestNounPhrasesHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := New().NounPhrases(ctx, "the cat"); err == nil {
		t.Fatalf("expected an error for a cancelled context")
	}
}
