package bot

import (
	"context"
	"strings"
	"unicode"

	"github.com/go-telegram/bot/models"
)

func (b *Bot) handleMessage(ctx context.Context, message *models.Message) error {
	text := strings.TrimSpace(message.Text)
	if text == "" {
		text = strings.TrimSpace(message.Caption)
	}
	if text == "" {
		return nil
	}

	chatID := message.Chat.ID

	command, args := splitCommand(text)

	switch command {
	case "":
		return b.handleSummarize(ctx, chatID, b.chatModel(chatID), text)
	case "/start", "/help":
		return b.handleStartCommand(ctx, chatID)
	case "/models":
		return b.handleModelsCommand(ctx, chatID)
	case "/summarize":
		return b.handleSummarizeCommand(ctx, chatID, args)
	default:
		return b.sendMessage(ctx, chatID, "❔ Unknown command\\. See /help\\.", nil)
	}
}

// splitCommand separates a leading bot command, without its @botname
// suffix, from the rest of the text.
func splitCommand(text string) (string, string) {
	if !strings.HasPrefix(text, "/") {
		return "", text
	}

	command, args := cutSpace(text)
	command, _, _ = strings.Cut(command, "@")

	return strings.ToLower(command), args
}

// cutSpace splits s around its first run of white space.
func cutSpace(s string) (string, string) {
	s = strings.TrimSpace(s)

	i := strings.IndexFunc(s, unicode.IsSpace)
	if i < 0 {
		return s, ""
	}

	return s[:i], strings.TrimSpace(s[i:])
}
