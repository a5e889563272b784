package markdown_test

import (
	"entailsum/internal/domain"
	"entailsum/internal/markdown"
	"strings"
	"testing"
)

func TestEscapeV2(t *testing.T) {
	tests := map[string]string{
		"plain text":        "plain text",
		"a.b-c!":            `a\.b\-c\!`,
		"(x) [y] {z}":       `\(x\) \[y\] \{z\}`,
		`back\slash`:        `back\\slash`,
		"_*~`>#+=|":         "\\_\\*\\~\\`\\>\\#\\+\\=\\|",
		"кириллица, 日本語。": "кириллица, 日本語。",
	}

	for input, want := range tests {
		if got := markdown.EscapeV2(input); got != want {
			t.Fatalf("EscapeV2(%q): got %q want %q", input, got, want)
		}
	}
}

func TestCode(t *testing.T) {
	if got := markdown.Code("bart.base`x"); got != "`bart.base\\`x`" {
		t.Fatalf("unexpected code span: %q", got)
	}
}

func TestFormatRankedSingle(t *testing.T) {
	messages := markdown.FormatRanked("bart.base.beam", domain.RankedResult{{Text: "The cat sat.", Score: 0.9}})

	if len(messages) != 1 {
		t.Fatalf("expected one message, got %d", len(messages))
	}

	for _, want := range []string{"`bart.base.beam`", `The cat sat\.`, `0\.900`} {
		if !strings.Contains(messages[0], want) {
			t.Fatalf("message %q does not contain %q", messages[0], want)
		}
	}

	if strings.Contains(messages[0], "Alternatives") {
		t.Fatalf("expected no alternatives section")
	}
}

func TestFormatRankedListsAlternatives(t *testing.T) {
	messages := markdown.FormatRanked("m", domain.RankedResult{
		{Text: "best", Score: 0.8},
		{Text: "second", Score: 0.5},
	})

	if len(messages) != 1 || !strings.Contains(messages[0], `2\. second ‒ 0\.500`) {
		t.Fatalf("unexpected messages: %q", messages)
	}
}

func TestFormatRankedSplitsLongReplies(t *testing.T) {
	ranked := domain.RankedResult{{Text: "best", Score: 0.9}}
	for range 40 {
		ranked = append(ranked, domain.ScoredCandidate{Text: strings.Repeat("word ", 40), Score: 0.1})
	}

	messages := markdown.FormatRanked("m", ranked)
	if len(messages) < 2 {
		t.Fatalf("expected the reply to be split, got %d message(s)", len(messages))
	}

	for i, m := range messages {
		if len(m) > markdown.TelegramMessageMaxLength {
			t.Fatalf("message %d is %d bytes long", i, len(m))
		}
	}

	if !strings.HasPrefix(messages[1], "*Alternatives \\(continue\\)*") {
		t.Fatalf("unexpected continuation header: %q", messages[1][:40])
	}
}

func TestFormatRankedEmpty(t *testing.T) {
	if messages := markdown.FormatRanked("m", nil); len(messages) != 1 {
		t.Fatalf("expected a single placeholder message, got %q", messages)
	}
}
