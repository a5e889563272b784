package api

import (
	"context"
	"entailsum/internal/catalog"
	"entailsum/internal/service"
	"entailsum/internal/summarizer"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/fiber/v2/utils"
	"github.com/google/uuid"
)

const (
	requestIDKey = "requestID"

	defaultRequestTimeout = 2 * time.Minute
	defaultBodyLimit      = 1 << 20
)

type Summarizer interface {
	Summarize(ctx context.Context, model, message string) (service.Result, error)
	Models() []catalog.Entry
	DefaultModel() string
}

type HealthChecker interface {
	Healthy() bool
}

type Server struct {
	app            *fiber.App
	summarizer     Summarizer
	health         HealthChecker
	requestTimeout time.Duration
	rateLimit      int
	rateWindow     time.Duration
	log            *slog.Logger
}

type Option func(*Server)

func WithRequestTimeout(timeout time.Duration) Option {
	return func(s *Server) {
		s.requestTimeout = timeout
	}
}

// WithRateLimit allows max summarization requests per client IP in every
// window. Zero disables the limit.
func WithRateLimit(maxRequests int, window time.Duration) Option {
	return func(s *Server) {
		s.rateLimit = maxRequests
		s.rateWindow = window
	}
}

// New builds the server; health may be nil when nothing probes the model
// backend.
func New(s Summarizer, health HealthChecker, log *slog.Logger, opts ...Option) *Server {
	srv := &Server{
		summarizer:     s,
		health:         health,
		requestTimeout: defaultRequestTimeout,
		log:            log,
	}

	for _, opt := range opts {
		opt(srv)
	}

	srv.app = fiber.New(fiber.Config{
		AppName:               "entailsum",
		BodyLimit:             defaultBodyLimit,
		DisableStartupMessage: true,
		ErrorHandler:          srv.handleError,
	})

	srv.app.Use(recover.New())
	srv.app.Use(requestid.New(requestid.Config{
		Generator:  uuid.NewString,
		ContextKey: requestIDKey,
	}))
	srv.app.Use(srv.logRequests)

	srv.app.Get("/healthz", srv.healthz)

	apiGroup := srv.app.Group("/api")
	apiGroup.Get("/models", srv.models)

	if srv.rateLimit > 0 {
		apiGroup.Post("/summaries", limiter.New(limiter.Config{
			Max:        srv.rateLimit,
			Expiration: srv.rateWindow,
			LimitReached: func(c *fiber.Ctx) error {
				return fiber.NewError(fiber.StatusTooManyRequests, "too many requests")
			},
		}), srv.summarize)
	} else {
		apiGroup.Post("/summaries", srv.summarize)
	}

	return srv
}

func (s *Server) Listen(addr string) error {
	return s.app.Listen(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

type summarizeRequest struct {
	Source    string `json:"source"     form:"source"`
	ModelType string `json:"model_type" form:"model_type"`
}

type candidateResponse struct {
	Text  string  `json:"text"`
	Score float64 `json:"score"`
}

type summarizeResponse struct {
	Summary    string              `json:"summary"`
	Score      float64             `json:"score"`
	Model      string              `json:"model"`
	Cached     bool                `json:"cached"`
	Candidates []candidateResponse `json:"candidates"`
}

type modelResponse struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Strategy    string `json:"strategy"`
	Default     bool   `json:"default"`
}

func (s *Server) summarize(c *fiber.Ctx) error {
	var req summarizeRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "request body is malformed")
	}

	if strings.TrimSpace(req.Source) == "" {
		return fiber.NewError(fiber.StatusBadRequest, "source is required")
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), s.requestTimeout)
	defer cancel()

	res, err := s.summarizer.Summarize(ctx, req.ModelType, req.Source)
	if err != nil {
		return err
	}

	best, ok := res.Ranked.Best()
	if !ok {
		return fiber.NewError(fiber.StatusBadGateway, "no summary was produced")
	}

	resp := summarizeResponse{
		Summary:    best.Text,
		Score:      best.Score,
		Model:      res.Model,
		Cached:     res.Cached,
		Candidates: make([]candidateResponse, 0, len(res.Ranked)),
	}
	for _, candidate := range res.Ranked {
		resp.Candidates = append(resp.Candidates, candidateResponse{
			Text:  candidate.Text,
			Score: candidate.Score,
		})
	}

	return c.JSON(resp)
}

func (s *Server) models(c *fiber.Ctx) error {
	defaultModel := s.summarizer.DefaultModel()

	entries := s.summarizer.Models()
	resp := make([]modelResponse, 0, len(entries))
	for _, e := range entries {
		resp = append(resp, modelResponse{
			Name:        e.Name,
			Description: e.Description,
			Strategy:    e.Strategy,
			Default:     e.Name == defaultModel,
		})
	}

	return c.JSON(resp)
}

func (s *Server) healthz(c *fiber.Ctx) error {
	if s.health != nil && !s.health.Healthy() {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "degraded"})
	}

	return c.JSON(fiber.Map{"status": "ok"})
}

func (s *Server) logRequests(c *fiber.Ctx) error {
	start := time.Now()

	if err := c.Next(); err != nil {
		if handlerErr := c.App().ErrorHandler(c, err); handlerErr != nil {
			_ = c.SendStatus(fiber.StatusInternalServerError)
		}
	}

	s.log.InfoContext(c.UserContext(), "Request is handled",
		"method", c.Method(),
		"path", c.Path(),
		"status", c.Response().StatusCode(),
		"duration", time.Since(start),
		"requestID", c.Locals(requestIDKey))

	return nil
}

func (s *Server) handleError(c *fiber.Ctx, err error) error {
	code := statusOf(err)
	if code < fiber.StatusInternalServerError {
		return c.Status(code).JSON(fiber.Map{"error": err.Error()})
	}

	s.log.ErrorContext(c.UserContext(), "Failed to handle request",
		"error", err,
		"path", c.Path(),
		"requestID", c.Locals(requestIDKey))

	// Upstream errors carry sidecar URLs and response bodies.
	return c.Status(code).JSON(fiber.Map{"error": utils.StatusMessage(code)})
}

func statusOf(err error) int {
	var fiberErr *fiber.Error

	switch {
	case errors.As(err, &fiberErr):
		return fiberErr.Code
	case errors.Is(err, catalog.ErrUnknownModel), errors.Is(err, summarizer.ErrUnknownStrategy):
		return fiber.StatusNotFound
	case errors.Is(err, service.ErrSource), errors.Is(err, summarizer.ErrExtraction):
		return fiber.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded):
		return fiber.StatusGatewayTimeout
	case errors.Is(err, summarizer.ErrDecoding), errors.Is(err, summarizer.ErrScoring):
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}
