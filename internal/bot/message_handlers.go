package bot

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/go-telegram/bot/models"

	"ragsearch/internal/client"
	"ragsearch/internal/markdown"
)

const (
	emptyQueryText = "Please enter a query."
	throttledText  = "⏳ Too many queries. Try again in %ds."
)

func (b *Bot) handleMessage(ctx context.Context, message *models.Message) error {
	chatID := message.Chat.ID
	text := strings.TrimSpace(message.Text)

	switch {
	case strings.HasPrefix(text, "/start"), strings.HasPrefix(text, "/help"):
		return b.handleHelpCommand(ctx, chatID)
	case text == "":
		return b.sendText(ctx, chatID, message.ID, markdown.EscapeV2(emptyQueryText))
	default:
		return b.handleQuery(ctx, chatID, message.ID, text)
	}
}

func (b *Bot) handleQuery(ctx context.Context, chatID int64, messageID int, query string) error {
	if ok, delay := b.rateLimiter.Allow(chatID); !ok {
		b.log.DebugContext(ctx, "Query is throttled",
			"chatID", chatID,
			"delay", delay)

		seconds := int(math.Ceil(delay.Seconds()))

		return b.sendText(ctx, chatID, messageID, markdown.EscapeV2(fmt.Sprintf(throttledText, seconds)))
	}

	var answer string

	err := b.withSpinner(ctx, chatID, func() error {
		var askErr error
		answer, askErr = b.asker.Ask(ctx, query)

		return askErr
	})
	if err != nil {
		b.log.WarnContext(ctx, "Failed to get answer",
			"error", err,
			"chatID", chatID,
			"queryLen", len(query))

		if sendErr := b.sendText(ctx, chatID, messageID, markdown.EscapeV2(client.FormatError(err))); sendErr != nil {
			return errors.Join(fmt.Errorf("ask: %w", err), fmt.Errorf("send error: %w", sendErr))
		}

		return nil
	}

	var errs []error

	for i, part := range formatAnswer(answer) {
		replyTo := 0
		if i == 0 {
			replyTo = messageID
		}

		if err = b.sendText(ctx, chatID, replyTo, part); err != nil {
			errs = append(errs, fmt.Errorf("send answer part %d: %w", i, err))
		}
	}

	return errors.Join(errs...)
}
