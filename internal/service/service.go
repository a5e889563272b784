package service

import (
	"context"
	"entailsum/internal/catalog"
	"entailsum/internal/domain"
	"entailsum/internal/summarizer"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

var ErrSource = errors.New("source is unusable")

type Resolver interface {
	Resolve(ctx context.Context, message string) (string, error)
}

type Result struct {
	Model  string
	Ranked domain.RankedResult
	Cached bool
}

type Service struct {
	catalog    *catalog.Catalog
	resolver   Resolver
	summarizer summarizer.Summarizer
	cache      *resultCache
	cacheTTL   time.Duration
	now        func() time.Time
	log        *slog.Logger
}

type Option func(*Service)

// WithCache sets the result cache size and entry lifetime. A size of zero
// disables caching.
func WithCache(maxEntries int, ttl time.Duration) Option {
	return func(s *Service) {
		s.cache = newResultCache(maxEntries)
		s.cacheTTL = ttl
	}
}

func New(
	cat *catalog.Catalog,
	resolver Resolver,
	s summarizer.Summarizer,
	log *slog.Logger,
	opts ...Option,
) *Service {
	svc := &Service{
		catalog:    cat,
		resolver:   resolver,
		summarizer: s,
		cache:      newResultCache(defaultCacheMaxEntries),
		cacheTTL:   defaultCacheTTL,
		now:        time.Now,
		log:        log,
	}

	for _, opt := range opts {
		opt(svc)
	}

	return svc
}

func (s *Service) Models() []catalog.Entry {
	return s.catalog.Entries()
}

func (s *Service) DefaultModel() string {
	return s.catalog.Default().Name
}

// Summarize runs the named model, or the default one when model is empty,
// on the text behind message.
func (s *Service) Summarize(ctx context.Context, model, message string) (Result, error) {
	if strings.TrimSpace(model) == "" {
		model = s.DefaultModel()
	}

	entry, err := s.catalog.Lookup(model)
	if err != nil {
		return Result{}, err
	}

	source, err := s.resolver.Resolve(ctx, message)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrSource, err)
	}

	now := s.now()
	key := resultCacheKey(entry.Name, source)

	if ranked, ok := s.cache.get(key, now); ok {
		s.log.InfoContext(ctx, "Summaries are served from cache",
			"model", entry.Name,
			"candidateCount", len(ranked))

		return Result{Model: entry.Name, Ranked: ranked, Cached: true}, nil
	}

	ranked, err := s.summarizer.ProduceRankedSummaries(
		ctx, source, entry.Strategy, entry.Decoding.Config(), entry.RankOptions()...)
	if err != nil {
		return Result{}, fmt.Errorf("produce ranked summaries (model = %s): %w", entry.Name, err)
	}

	s.cache.set(key, ranked, now.Add(s.cacheTTL), now)

	return Result{Model: entry.Name, Ranked: ranked}, nil
}
