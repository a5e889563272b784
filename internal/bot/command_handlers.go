package bot

import (
	"context"
	"entailsum/internal/catalog"
	"entailsum/internal/markdown"
	"entailsum/internal/service"
	"errors"
	"fmt"
	"strings"
)

const welcomeText = `🤖 *Welcome to Entailsum\!*

Send me text or a link to an article and I will summarize it\. Every summary
is checked against the source and the one it supports best comes first\.

– Pick a model with /models
– Use a model once with /summarize \<model\> \<text or link\>`

const summarizeUsageText = "✖️ Usage: /summarize \\<model\\> \\<text or link\\>\\."

func (b *Bot) handleStartCommand(ctx context.Context, chatID int64) error {
	return b.sendMessage(ctx, chatID, welcomeText, nil)
}

func (b *Bot) handleModelsCommand(ctx context.Context, chatID int64) error {
	current := b.chatModel(chatID)
	if current == "" {
		current = b.summarizer.DefaultModel()
	}

	entries := b.summarizer.Models()

	var message strings.Builder
	message.WriteString(fmt.Sprintf("🧠 *%d models:*\n\n", len(entries)))

	for _, e := range entries {
		marker := "▫️"
		if e.Name == current {
			marker = "▪️"
		}

		message.WriteString(marker + " " + markdown.Code(e.Name))
		if e.Description != "" {
			message.WriteString(" ‒ " + markdown.EscapeV2(e.Description))
		}
		message.WriteString("\n")
	}

	message.WriteString("\nChoose the model for this chat:")

	return b.sendMessage(ctx, chatID, message.String(), modelsKeyboard(entries))
}

func (b *Bot) handleSummarizeCommand(ctx context.Context, chatID int64, args string) error {
	model, text := cutSpace(args)
	if model == "" || text == "" {
		return b.sendMessage(ctx, chatID, summarizeUsageText, nil)
	}

	return b.handleSummarize(ctx, chatID, model, text)
}

func (b *Bot) handleSummarize(ctx context.Context, chatID int64, model, text string) error {
	if !b.sender.AllowRequest(chatID) {
		return b.sendMessage(ctx, chatID, "⏳ Too many requests\\. Try again in a few seconds\\.", nil)
	}

	return b.withSpinner(ctx, chatID, func() error {
		res, err := b.summarizer.Summarize(ctx, model, text)
		if err != nil {
			return b.handleSummarizeError(ctx, chatID, model, err)
		}

		b.log.InfoContext(ctx, "Summaries are produced",
			"chatID", chatID,
			"model", res.Model,
			"candidateCount", len(res.Ranked),
			"cached", res.Cached)

		var errs []error
		for _, message := range markdown.FormatRanked(res.Model, res.Ranked) {
			if err = b.sendMessage(ctx, chatID, message, nil); err != nil {
				errs = append(errs, fmt.Errorf("send message: %w", err))
			}
		}

		return errors.Join(errs...)
	})
}

// handleSummarizeError tells the user what went wrong; only failures of the
// pipeline itself are reported back to the caller.
func (b *Bot) handleSummarizeError(ctx context.Context, chatID int64, model string, err error) error {
	var text string
	switch {
	case errors.Is(err, catalog.ErrUnknownModel):
		text = fmt.Sprintf("❓ Model %s is unknown\\. See /models\\.", markdown.Code(model))
	case errors.Is(err, service.ErrSource):
		text = "✖️ Nothing to summarize\\. Send text or a link to an article\\."
	default:
		errs := []error{fmt.Errorf("summarize: %w", err)}

		if sendErr := b.sendMessage(ctx, chatID, "❌ Failed\\.", nil); sendErr != nil {
			errs = append(errs, fmt.Errorf("send message: %w", sendErr))
		}

		return errors.Join(errs...)
	}

	if sendErr := b.sendMessage(ctx, chatID, text, nil); sendErr != nil {
		return fmt.Errorf("send message: %w", sendErr)
	}

	return nil
}
