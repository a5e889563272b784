package source

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const (
	telegramHost = "t.me"

	minPartsForTelegramChannelSlugStartingWithS = 2
)

var (
	telegramSlugRe   = regexp.MustCompile(`^\w{5,32}$`)
	telegramPostIDRe = regexp.MustCompile(`^\d+$`)
)

func TelegramChannelCanonicalURL(slug string) string {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return ""
	}

	return fmt.Sprintf("https://%s/s/%s", telegramHost, slug)
}

// isTelegramChannelURL accepts channel (t.me/slug, t.me/s/slug) and post
// (t.me/slug/123) URLs.
func isTelegramChannelURL(raw string) (bool, string, string) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false, "", ""
	}

	if u.Host != telegramHost {
		return false, "", ""
	}

	path := strings.Trim(u.Path, "/")
	if path == "" {
		return false, "", ""
	}

	parts := strings.Split(path, "/")
	if parts[0] == "s" {
		if len(parts) < minPartsForTelegramChannelSlugStartingWithS {
			return false, "", ""
		}
		parts = parts[1:]
	}

	slug := strings.TrimSpace(parts[0])
	if !telegramSlugRe.MatchString(slug) {
		return false, "", ""
	}

	var postID string
	if len(parts) > 1 && telegramPostIDRe.MatchString(parts[1]) {
		postID = parts[1]
	}

	return true, slug, postID
}

// fetchTelegramPost returns the text of the given post of the channel's
// public page, or of its newest post when postID is empty.
func (r *Resolver) fetchTelegramPost(ctx context.Context, slug, postID string) (string, error) {
	canonicalURL := TelegramChannelCanonicalURL(slug)
	if canonicalURL == "" {
		return "", errors.New("slug is empty")
	}

	body, _, err := r.get(ctx, canonicalURL)
	if err != nil {
		return "", err
	}

	return telegramPostText(body, slug, postID)
}

func telegramPostText(body []byte, slug, postID string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create document from reader: %w", err)
	}

	var newest, wanted string
	doc.Find(".tgme_widget_message").Each(func(_ int, message *goquery.Selection) {
		text := telegramMessageText(message)
		if text == "" {
			return
		}

		newest = text
		if postID != "" && message.AttrOr("data-post", "") == slug+"/"+postID {
			wanted = text
		}
	})

	switch {
	case wanted != "":
		return wanted, nil
	case postID != "":
		return "", fmt.Errorf("post %s/%s is not on the channel page", slug, postID)
	case newest == "":
		return "", errors.New("channel page has no text posts")
	default:
		return newest, nil
	}
}

func telegramMessageText(message *goquery.Selection) string {
	var textBuilder strings.Builder
	message.Find(".tgme_widget_message_text, .tgme_widget_message_caption").Each(
		func(_ int, inner *goquery.Selection) {
			inner.Find("br").Each(func(_ int, br *goquery.Selection) {
				br.ReplaceWithHtml("\n")
			})
			fragment := strings.TrimSpace(inner.Text())
			if fragment == "" {
				return
			}
			if textBuilder.Len() > 0 {
				textBuilder.WriteString("\n")
			}
			textBuilder.WriteString(fragment)
		},
	)
	return strings.TrimSpace(textBuilder.String())
}
