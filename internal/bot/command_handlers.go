package bot

import (
	"context"
	"fmt"

	"ragsearch/internal/markdown"
)

const helpText = `🔎 *ragsearch*

Send me any question and I will search the web, read the top articles and write a short answer\.

– /help shows this message
– One query per %s per chat`

func (b *Bot) handleHelpCommand(ctx context.Context, chatID int64) error {
	text := fmt.Sprintf(helpText, markdown.EscapeV2(b.rateLimiter.Interval().String()))

	if err := b.sendText(ctx, chatID, 0, text); err != nil {
		return fmt.Errorf("send help: %w", err)
	}

	return nil
}
