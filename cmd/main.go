package main

import (
	"context"
	"entailsum/internal/api"
	"entailsum/internal/bot"
	"entailsum/internal/catalog"
	"entailsum/internal/chunker"
	"entailsum/internal/config"
	"entailsum/internal/provider/openainli"
	"entailsum/internal/provider/sidecar"
	"entailsum/internal/scheduler"
	"entailsum/internal/search"
	"entailsum/internal/service"
	"entailsum/internal/source"
	"entailsum/internal/summarizer"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
)

const shutdownTimeout = 10 * time.Second

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(log)

	start := time.Now()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.WarnContext(ctx, "Failed to load .env",
			"error", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.ErrorContext(ctx, "Failed to load config",
			"error", err)

		return
	}

	log = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(log)

	client, err := sidecar.Dial(ctx, cfg.ModelSidecarURL, cfg.SidecarTimeout)
	if err != nil {
		log.ErrorContext(ctx, "Failed to dial model sidecar",
			"error", err,
			"sidecarURL", cfg.ModelSidecarURL)

		return
	}
	log.InfoContext(ctx, "Model sidecar is dialed",
		"sidecarURL", cfg.ModelSidecarURL,
		"vocabSize", client.VocabSize())

	pipeline, err := initPipeline(ctx, cfg, client, log)
	if err != nil {
		log.ErrorContext(ctx, "Failed to initialize pipeline",
			"error", err)

		return
	}

	registrations, err := catalog.Load(cfg.CatalogPath)
	if err == nil {
		err = registrations.CheckStrategies(pipeline.Strategies())
	}
	if err != nil {
		log.ErrorContext(ctx, "Failed to load catalog",
			"error", err,
			"catalogPath", cfg.CatalogPath)

		return
	}
	log.InfoContext(ctx, "Catalog is loaded",
		"models", registrations.Names(),
		"defaultModel", registrations.Default().Name)

	resolver, err := source.NewResolver(log)
	if err != nil {
		log.ErrorContext(ctx, "Failed to initialize source resolver",
			"error", err)

		return
	}

	svc := service.New(registrations, resolver, pipeline, log,
		service.WithCache(cfg.CacheSize, cfg.CacheTTL))

	sched := scheduler.New(ctx, cfg.HealthCheckSpec, client, log)
	if err = sched.Start(); err != nil {
		log.ErrorContext(ctx, "Failed to start scheduler",
			"error", err,
			"spec", cfg.HealthCheckSpec)

		return
	}
	defer sched.Stop()
	log.InfoContext(ctx, "Scheduler is started",
		"spec", cfg.HealthCheckSpec)

	if cfg.TelegramToken != "" {
		botInst, botErr := bot.New(cfg.TelegramToken, svc, cfg.AllowedUsers, log)
		if botErr != nil {
			log.ErrorContext(ctx, "Failed to initialize bot",
				"error", botErr,
				"allowedUsersCount", len(cfg.AllowedUsers))

			return
		}

		go botInst.Start(ctx)
	} else {
		log.InfoContext(ctx, "TELEGRAM_TOKEN is missing so bot is disabled",
			"envVar", "TELEGRAM_TOKEN")
	}

	srv := api.New(svc, sched, log,
		api.WithRequestTimeout(cfg.RequestTimeout),
		api.WithRateLimit(cfg.APIRateLimit, time.Minute))

	go func() {
		log.InfoContext(ctx, "HTTP server is started",
			"addr", cfg.HTTPAddr)

		if listenErr := srv.Listen(cfg.HTTPAddr); listenErr != nil {
			log.ErrorContext(ctx, "HTTP server is stopped",
				"error", listenErr,
				"addr", cfg.HTTPAddr)
			cancel()
		}
	}()

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-c:
		log.InfoContext(ctx, "Shutdown signal is received",
			"signal", sig.String())
	case <-ctx.Done():
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err = srv.Shutdown(shutdownCtx); err != nil {
		log.ErrorContext(shutdownCtx, "Failed to shut down HTTP server",
			"error", err)
	}

	log.InfoContext(shutdownCtx, "Exiting...",
		"uptimeSeconds", time.Since(start).Seconds())
}

func initPipeline(
	ctx context.Context,
	cfg config.Config,
	client *sidecar.Client,
	log *slog.Logger,
) (*summarizer.Pipeline, error) {
	var generator summarizer.Generator = client
	if cfg.DecodeBackend == config.DecodeBackendLocal {
		var opts []search.Option
		if cfg.SampleSeed != 0 {
			opts = append(opts, search.WithSeed(cfg.SampleSeed))
		}
		generator = search.New(client, client.Special(), opts...)
	}

	var nounPhrases summarizer.Chunker = chunker.New()
	if cfg.ChunkerBackend == config.ChunkerBackendSidecar {
		nounPhrases = client
	}

	var classifier summarizer.Classifier = client
	if cfg.ClassifierBackend == config.ClassifierBackendOpenAI {
		openAIClassifier, err := openainli.New(cfg.OpenAIAPIKey, cfg.OpenAIModel)
		if err != nil {
			return nil, err
		}
		classifier = openAIClassifier
	}

	registry, err := summarizer.NewRegistry(
		summarizer.NewUnconstrainedBeam(generator, client),
		summarizer.NewVocabRestrictedBeam(generator, client),
		summarizer.NewTokenPrependConstrained(generator, client),
	)
	if err != nil {
		return nil, err
	}

	log.InfoContext(ctx, "Pipeline is initialized",
		"decodeBackend", cfg.DecodeBackend,
		"chunkerBackend", cfg.ChunkerBackend,
		"classifierBackend", cfg.ClassifierBackend,
		"strategies", registry.Names())

	return summarizer.NewPipeline(
		registry,
		summarizer.NewExtractor(client, nounPhrases),
		summarizer.NewScorer(classifier),
		log,
	), nil
}
