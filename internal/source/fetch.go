package source

import (
	"bytes"
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"
	"github.com/mmcdole/gofeed"
)

func (r *Resolver) fetch(ctx context.Context, rawURL string) (string, error) {
	pageURL, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse URL: %w", err)
	}

	if ok, slug, postID := isTelegramChannelURL(rawURL); ok {
		return r.fetchTelegramPost(ctx, slug, postID)
	}

	body, contentType, err := r.get(ctx, rawURL)
	if err != nil {
		return "", err
	}

	if isFeed(contentType, body) {
		feed, parseErr := r.feedParser.Parse(bytes.NewReader(body))
		if parseErr != nil {
			return "", fmt.Errorf("parse feed: %w", parseErr)
		}

		return newestItemText(feed)
	}

	return articleText(body, pageURL)
}

func (r *Resolver) get(ctx context.Context, rawURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", userAgent)

	resp, err := r.httpClient.Do(req) //nolint:gosec // the default client only dials public addresses
	if err != nil {
		return nil, "", fmt.Errorf("do request: %w", err)
	}
	defer func() {
		if err = resp.Body.Close(); err != nil {
			r.log.ErrorContext(ctx, "Failed to close response body",
				"error", err,
				"sourceURL", rawURL)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("do request: unexpected status: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, "", fmt.Errorf("read body: %w", err)
	}

	return body, resp.Header.Get("Content-Type"), nil
}

func isFeed(contentType string, body []byte) bool {
	contentType = strings.ToLower(contentType)
	if strings.Contains(contentType, "rss") || strings.Contains(contentType, "atom") ||
		strings.Contains(contentType, "xml") || strings.Contains(contentType, "feed+json") {
		return true
	}

	head := bytes.ToLower(bytes.TrimSpace(body[:min(len(body), 512)]))

	return bytes.HasPrefix(head, []byte("<?xml")) ||
		bytes.HasPrefix(head, []byte("<rss")) ||
		bytes.HasPrefix(head, []byte("<feed"))
}

func newestItemText(feed *gofeed.Feed) (string, error) {
	if len(feed.Items) == 0 {
		return "", errors.New("feed has no items")
	}

	items := slices.Clone(feed.Items)
	slices.SortStableFunc(items, func(a, b *gofeed.Item) int {
		return cmp.Compare(itemTime(b).Unix(), itemTime(a).Unix())
	})

	for _, item := range items {
		for _, raw := range []string{item.Content, item.Description} {
			text, err := htmlText(raw)
			if err != nil {
				return "", err
			}
			if text != "" {
				return text, nil
			}
		}
	}

	return "", errors.New("feed items have no text")
}

func itemTime(item *gofeed.Item) time.Time {
	switch {
	case item.PublishedParsed != nil:
		return *item.PublishedParsed
	case item.UpdatedParsed != nil:
		return *item.UpdatedParsed
	default:
		return time.Time{}
	}
}

func htmlText(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("create document from reader: %w", err)
	}

	doc.Find("br").Each(func(_ int, br *goquery.Selection) {
		br.ReplaceWithHtml("\n")
	})

	return strings.TrimSpace(doc.Text()), nil
}

func articleText(body []byte, pageURL *url.URL) (string, error) {
	article, err := readability.FromReader(bytes.NewReader(body), pageURL)
	if err == nil {
		if text := strings.TrimSpace(article.TextContent); text != "" {
			return text, nil
		}
	}

	doc, docErr := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if docErr != nil {
		return "", errors.Join(err, fmt.Errorf("create document from reader: %w", docErr))
	}

	var paragraphs []string
	doc.Find("p").Each(func(_ int, p *goquery.Selection) {
		if text := strings.TrimSpace(p.Text()); text != "" {
			paragraphs = append(paragraphs, text)
		}
	})
	if len(paragraphs) > 0 {
		return strings.Join(paragraphs, "\n"), nil
	}

	if content, ok := doc.Find("meta[property='og:description']").Attr("content"); ok {
		return strings.TrimSpace(content), nil
	}

	return "", nil
}
