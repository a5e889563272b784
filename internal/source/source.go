package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"golang.org/x/text/unicode/norm"
	"mvdan.cc/xurls/v2"
)

const (
	defaultFetchTimeout = 20 * time.Second
	maxBodyBytes        = 5 << 20

	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
		"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/127.0.0.0 Safari/537.36"
)

var (
	ErrEmptySource = errors.New("source text is empty")

	spacesRe = regexp.MustCompile(`[ \t]+`)
)

type Resolver struct {
	httpClient *http.Client
	feedParser *gofeed.Parser
	httpsURLRe *regexp.Regexp
	anyURLRe   *regexp.Regexp
	log        *slog.Logger
}

type Option func(*Resolver)

func WithHTTPClient(c *http.Client) Option {
	return func(r *Resolver) {
		r.httpClient = c
	}
}

func NewResolver(log *slog.Logger, opts ...Option) (*Resolver, error) {
	httpsURLRe, err := xurls.StrictMatchingScheme("https://")
	if err != nil {
		return nil, fmt.Errorf("create regexp: %w", err)
	}

	r := &Resolver{
		httpClient: newPublicClient(),
		feedParser: gofeed.NewParser(),
		httpsURLRe: httpsURLRe,
		anyURLRe:   xurls.Strict(),
		log:        log,
	}

	for _, opt := range opts {
		opt(r)
	}

	return r, nil
}

// Resolve returns the text to summarize for message. A message that is a
// single https URL is replaced by the text behind it; URLs embedded in longer
// messages are dropped.
func (r *Resolver) Resolve(ctx context.Context, message string) (string, error) {
	message = strings.TrimSpace(norm.NFC.String(message))
	if message == "" {
		return "", ErrEmptySource
	}

	if r.httpsURLRe.FindString(message) == message {
		text, err := r.fetch(ctx, message)
		if err != nil {
			return "", fmt.Errorf("fetch source (URL = %s): %w", message, err)
		}

		text = clean(text)
		if text == "" {
			return "", fmt.Errorf("%w (URL = %s)", ErrEmptySource, message)
		}

		r.log.InfoContext(ctx, "Source is fetched",
			"sourceURL", message,
			"textLength", len(text))

		return text, nil
	}

	text := clean(r.anyURLRe.ReplaceAllString(message, ""))
	if text == "" {
		return "", ErrEmptySource
	}

	return text, nil
}

func clean(text string) string {
	text = norm.NFC.String(text)

	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, line := range lines {
		line = strings.TrimSpace(spacesRe.ReplaceAllString(line, " "))
		if line != "" {
			kept = append(kept, line)
		}
	}

	return strings.Join(kept, "\n")
}
