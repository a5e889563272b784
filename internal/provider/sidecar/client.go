package sidecar

import (
	"bytes"
	"context"
	"encoding/json"
	"entailsum/internal/domain"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultTimeout = 60 * time.Second
	maxErrorBody   = 512
)

// StatusError is returned for non-2xx sidecar responses.
type StatusError struct {
	Path   string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("sidecar %s: status %d: %s", e.Path, e.Status, e.Body)
}

type info struct {
	BOS          int64 `json:"bos_token_id"`
	EOS          int64 `json:"eos_token_id"`
	PAD          int64 `json:"pad_token_id"`
	DecoderStart int64 `json:"decoder_start_token_id"`
	VocabSize    int   `json:"vocab_size"`
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	special    domain.SpecialTokens
	vocabSize  int
}

// Dial connects to the sidecar at baseURL and loads the model's special tokens.
func Dial(ctx context.Context, baseURL string, timeout time.Duration) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("sidecar URL is empty")
	}

	if timeout <= 0 {
		timeout = defaultTimeout
	}

	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}

	var resp info
	if err := c.do(ctx, http.MethodGet, "/info", nil, &resp); err != nil {
		return nil, fmt.Errorf("get info: %w", err)
	}

	if resp.VocabSize <= 0 {
		return nil, fmt.Errorf("sidecar reported vocab size %d", resp.VocabSize)
	}

	c.special = domain.SpecialTokens{
		BOS:          resp.BOS,
		EOS:          resp.EOS,
		PAD:          resp.PAD,
		DecoderStart: resp.DecoderStart,
	}
	c.vocabSize = resp.VocabSize

	return c, nil
}

func (c *Client) Special() domain.SpecialTokens {
	return c.special
}

func (c *Client) VocabSize() int {
	return c.vocabSize
}

// Health reports whether the sidecar answers its health endpoint.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{
			Path:   path,
			Status: resp.StatusCode,
			Body:   strings.TrimSpace(string(b)),
		}
	}

	if out == nil {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response (path = %s): %w", path, err)
	}

	return nil
}
