package bot

import (
	"entailsum/internal/catalog"

	"github.com/go-telegram/bot/models"
)

const (
	modelsKeyboardRowSize        = 2
	modelsKeyboardCallbackPrefix = "model_"

	// Telegram rejects longer callback data.
	maxCallbackDataLength = 64
)

func modelsKeyboard(entries []catalog.Entry) [][]models.InlineKeyboardButton {
	var keyboard [][]models.InlineKeyboardButton
	var row []models.InlineKeyboardButton

	for _, e := range entries {
		data := modelsKeyboardCallbackPrefix + e.Name
		if len(data) > maxCallbackDataLength {
			continue
		}

		row = append(row, models.InlineKeyboardButton{Text: e.Name, CallbackData: data})
		if len(row) == modelsKeyboardRowSize {
			keyboard = append(keyboard, row)
			row = nil
		}
	}

	if len(row) > 0 {
		keyboard = append(keyboard, row)
	}

	return keyboard
}
