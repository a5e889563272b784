package bot

import (
	"context"
	"entailsum/internal/catalog"
	"entailsum/internal/ratelimiter"
	"entailsum/internal/service"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

const updateProcessingTimeout = 3 * time.Minute

type Summarizer interface {
	Summarize(ctx context.Context, model, message string) (service.Result, error)
	Models() []catalog.Entry
	DefaultModel() string
}

// Sender is the throttled part of the Bot API.
type Sender interface {
	ratelimiter.API
	AllowRequest(chatID int64) bool
}

type CallbackAnswerer interface {
	AnswerCallbackQuery(ctx context.Context, params *tgbot.AnswerCallbackQueryParams) (bool, error)
}

type Bot struct {
	api          *tgbot.Bot
	sender       Sender
	callbacks    CallbackAnswerer
	summarizer   Summarizer
	allowedUsers []int64
	log          *slog.Logger

	mu         sync.RWMutex
	chatModels map[int64]string
}

func New(
	token string,
	s Summarizer,
	allowedUsers []int64,
	log *slog.Logger,
	opts ...ratelimiter.Option,
) (*Bot, error) {
	b := newBot(nil, nil, s, allowedUsers, log)

	api, err := tgbot.New(strings.TrimSpace(token), tgbot.WithDefaultHandler(b.handleUpdate))
	if err != nil {
		return nil, fmt.Errorf("create bot API: %w", err)
	}

	b.api = api
	b.sender = ratelimiter.New(api, log, opts...)
	b.callbacks = api

	return b, nil
}

func newBot(
	sender Sender,
	callbacks CallbackAnswerer,
	s Summarizer,
	allowedUsers []int64,
	log *slog.Logger,
) *Bot {
	return &Bot{
		sender:       sender,
		callbacks:    callbacks,
		summarizer:   s,
		allowedUsers: allowedUsers,
		log:          log,
		chatModels:   make(map[int64]string),
	}
}

// Start polls for updates until ctx is done.
func (b *Bot) Start(ctx context.Context) {
	b.log.InfoContext(ctx, "Bot is started")

	b.api.Start(ctx)

	b.log.InfoContext(ctx, "Bot context is done",
		"error", ctx.Err())
}

func (b *Bot) handleUpdate(ctx context.Context, _ *tgbot.Bot, update *models.Update) {
	updateCtx, cancel := context.WithTimeout(ctx, updateProcessingTimeout)
	defer cancel()

	switch {
	case update.Message != nil:
		message := update.Message
		if message.From == nil {
			return
		}

		if !b.userAllowed(message.From.ID) {
			b.log.DebugContext(updateCtx, "User is not allowed",
				"userID", message.From.ID,
				"chatID", message.Chat.ID,
				"username", message.From.Username,
				"chatType", message.Chat.Type)

			return
		}

		if err := b.handleMessage(updateCtx, message); err != nil {
			b.log.ErrorContext(updateCtx, "Failed to handle message",
				"error", err,
				"chatID", message.Chat.ID,
				"userID", message.From.ID,
				"chatType", message.Chat.Type,
				"messageID", message.ID)
		}

	case update.CallbackQuery != nil:
		callback := update.CallbackQuery

		if !b.userAllowed(callback.From.ID) {
			b.log.DebugContext(updateCtx, "User is not allowed",
				"userID", callback.From.ID,
				"chatID", callbackChatID(callback),
				"username", callback.From.Username,
				"data", callback.Data)

			return
		}

		if err := b.handleCallbackQuery(updateCtx, callback); err != nil {
			b.log.ErrorContext(updateCtx, "Failed to handle callback query",
				"error", err,
				"chatID", callbackChatID(callback),
				"userID", callback.From.ID,
				"data", callback.Data)
		}
	}
}

func (b *Bot) userAllowed(userID int64) bool {
	return len(b.allowedUsers) == 0 || slices.Contains(b.allowedUsers, userID)
}

func (b *Bot) chatModel(chatID int64) string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return b.chatModels[chatID]
}

func (b *Bot) setChatModel(chatID int64, model string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.chatModels[chatID] = model
}

func callbackChatID(callback *models.CallbackQuery) int64 {
	switch {
	case callback.Message.Message != nil:
		return callback.Message.Message.Chat.ID
	case callback.Message.InaccessibleMessage != nil:
		return callback.Message.InaccessibleMessage.Chat.ID
	default:
		return 0
	}
}
