package bot

import (
	"context"
	"entailsum/internal/catalog"
	"entailsum/internal/markdown"
	"errors"
	"fmt"
	"slices"
	"strings"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

func (b *Bot) handleCallbackQuery(ctx context.Context, callback *models.CallbackQuery) error {
	data := strings.TrimSpace(callback.Data)

	model, ok := strings.CutPrefix(data, modelsKeyboardCallbackPrefix)
	if !ok {
		return b.answerCallback(ctx, callback, "")
	}

	chatID := callbackChatID(callback)
	if chatID == 0 {
		return b.answerCallback(ctx, callback, "")
	}

	known := slices.ContainsFunc(b.summarizer.Models(), func(e catalog.Entry) bool {
		return e.Name == model
	})
	if !known {
		return b.answerCallback(ctx, callback, "❓ Model is unknown.")
	}

	b.setChatModel(chatID, model)

	var errs []error
	if err := b.answerCallback(ctx, callback, "✅ Model is selected."); err != nil {
		errs = append(errs, err)
	}

	if err := b.sendMessage(
		ctx,
		chatID,
		fmt.Sprintf("✅ New messages are summarized with %s\\.", markdown.Code(model)),
		nil,
	); err != nil {
		errs = append(errs, fmt.Errorf("send message: %w", err))
	}

	return errors.Join(errs...)
}

func (b *Bot) answerCallback(ctx context.Context, callback *models.CallbackQuery, text string) error {
	if _, err := b.callbacks.AnswerCallbackQuery(ctx, &tgbot.AnswerCallbackQueryParams{
		CallbackQueryID: callback.ID,
		Text:            text,
	}); err != nil {
		return fmt.Errorf("answer callback query: %w", err)
	}

	return nil
}
