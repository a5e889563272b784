package ratelimiter

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"golang.org/x/time/rate"
)

const (
	privateChatRate = time.Second
	groupChatRate   = 3 * time.Second

	privateRequestRate = 5 * time.Second
	groupRequestRate   = 15 * time.Second
	requestBurst       = 2
)

// API is the part of the Bot API that gets throttled.
type API interface {
	SendMessage(ctx context.Context, params *tgbot.SendMessageParams) (*models.Message, error)
	SendChatAction(ctx context.Context, params *tgbot.SendChatActionParams) (bool, error)
}

type RateLimiter struct {
	api API
	log *slog.Logger

	privateRate, groupRate               time.Duration
	privateRequestRate, groupRequestRate time.Duration

	mu       sync.Mutex
	sends    map[int64]*rate.Limiter
	requests map[int64]*rate.Limiter
}

type Option func(*RateLimiter)

// WithSendRates sets the minimum gap between two messages to the same chat.
func WithSendRates(private, group time.Duration) Option {
	return func(rl *RateLimiter) {
		rl.privateRate, rl.groupRate = private, group
	}
}

// WithRequestRates sets how often a chat may ask for a summary.
func WithRequestRates(private, group time.Duration) Option {
	return func(rl *RateLimiter) {
		rl.privateRequestRate, rl.groupRequestRate = private, group
	}
}

func New(api API, log *slog.Logger, opts ...Option) *RateLimiter {
	rl := &RateLimiter{
		api:                api,
		log:                log,
		privateRate:        privateChatRate,
		groupRate:          groupChatRate,
		privateRequestRate: privateRequestRate,
		groupRequestRate:   groupRequestRate,
		sends:              make(map[int64]*rate.Limiter),
		requests:           make(map[int64]*rate.Limiter),
	}

	for _, opt := range opts {
		opt(rl)
	}

	return rl
}

// SendMessage waits for the chat's send slot and forwards the message.
func (rl *RateLimiter) SendMessage(
	ctx context.Context,
	params *tgbot.SendMessageParams,
) (*models.Message, error) {
	chatID := getChatID(params.ChatID)
	limiter := rl.limiter(rl.sends, chatID, rl.privateRate, rl.groupRate, 1)

	reservation := limiter.Reserve()
	if delay := reservation.Delay(); delay > 0 {
		rl.log.DebugContext(ctx, "Rate limiting message",
			"chatID", chatID,
			"delay", delay)

		timer := time.NewTimer(delay)
		defer timer.Stop()

		select {
		case <-timer.C:
		case <-ctx.Done():
			reservation.Cancel()
			return nil, ctx.Err()
		}
	}

	return rl.api.SendMessage(ctx, params)
}

// SendChatAction is not throttled.
func (rl *RateLimiter) SendChatAction(
	ctx context.Context,
	params *tgbot.SendChatActionParams,
) (bool, error) {
	return rl.api.SendChatAction(ctx, params)
}

// AllowRequest reports whether the chat may start another summarization now.
func (rl *RateLimiter) AllowRequest(chatID int64) bool {
	return rl.limiter(rl.requests, chatID, rl.privateRequestRate, rl.groupRequestRate, requestBurst).Allow()
}

func (rl *RateLimiter) limiter(
	limiters map[int64]*rate.Limiter,
	chatID int64,
	private, group time.Duration,
	burst int,
) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if l, ok := limiters[chatID]; ok {
		return l
	}

	every := private
	if chatID < 0 {
		every = group
	}

	l := rate.NewLimiter(rate.Every(every), burst)
	limiters[chatID] = l

	return l
}

func getChatID(chatID any) int64 {
	switch id := chatID.(type) {
	case int64:
		return id
	case int:
		return int64(id)
	case string:
		parsed, err := strconv.ParseInt(id, 10, 64)
		if err != nil {
			return 0
		}
		return parsed
	default:
		return 0
	}
}
