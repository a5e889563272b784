package markdown

import (
	"entailsum/internal/domain"
	"fmt"
	"strconv"
	"strings"
)

// TelegramMessageMaxLength is the Bot API limit for one text message.
const TelegramMessageMaxLength = 4096

func Score(score float64) string {
	return EscapeV2(strconv.FormatFloat(score, 'f', 3, 64))
}

// FormatRanked renders the best summary followed by the ranked alternatives,
// split into as many messages as the Telegram length limit requires.
func FormatRanked(model string, ranked domain.RankedResult) []string {
	best, ok := ranked.Best()
	if !ok {
		return []string{"🤷 *No summary was produced*"}
	}

	var messages []string
	var current strings.Builder

	current.WriteString("📝 *Summary* " + Code(model) + "\n\n")
	current.WriteString(EscapeV2(best.Text) + "\n\n")
	current.WriteString("Entailment: " + Score(best.Score))

	if len(ranked) == 1 {
		return []string{current.String()}
	}

	current.WriteString("\n\n*Alternatives*\n\n")

	for i, c := range ranked[1:] {
		line := fmt.Sprintf("%d\\. %s ‒ %s\n\n", i+2, EscapeV2(c.Text), Score(c.Score))

		if current.Len()+len(line) > TelegramMessageMaxLength {
			messages = append(messages, strings.TrimSpace(current.String()))
			current.Reset()
			current.WriteString("*Alternatives \\(continue\\)*\n\n")
		}

		current.WriteString(line)
	}

	return append(messages, strings.TrimSpace(current.String()))
}
