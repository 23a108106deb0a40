package bot

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"ragsearch/internal/client"
	"ragsearch/internal/ratelimiter"
)

type stubSender struct {
	mu       sync.Mutex
	messages []*tgbot.SendMessageParams
	actions  int
	err      error
}

func (s *stubSender) SendMessage(_ context.Context, params *tgbot.SendMessageParams) (*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, params)

	if s.err != nil {
		return nil, s.err
	}

	return &models.Message{ID: len(s.messages)}, nil
}

func (s *stubSender) SendChatAction(context.Context, *tgbot.SendChatActionParams) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.actions++

	return true, nil
}

func (s *stubSender) texts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	texts := make([]string, len(s.messages))
	for i, m := range s.messages {
		texts[i] = m.Text
	}

	return texts
}

type stubAsker struct {
	mu      sync.Mutex
	queries []string
	answer  string
	err     error
}

func (a *stubAsker) Ask(_ context.Context, query string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.queries = append(a.queries, query)

	return a.answer, a.err
}

func (a *stubAsker) callCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()

	return len(a.queries)
}

func newTestBot(asker Asker, allowedUsers []int64) (*Bot, *stubSender) {
	sender := &stubSender{}

	return &Bot{
		sender:       sender,
		asker:        asker,
		rateLimiter:  ratelimiter.New(time.Minute),
		allowedUsers: allowedUsers,
		log:          slog.Default(),
	}, sender
}

func textUpdate(userID int64, chatID int64, text string) *models.Update {
	return &models.Update{
		Message: &models.Message{
			ID:   7,
			From: &models.User{ID: userID},
			Chat: models.Chat{ID: chatID, Type: models.ChatTypePrivate},
			Text: text,
		},
	}
}

func TestHandleUpdateAnswersQuery(t *testing.T) {
	asker := &stubAsker{answer: "Paris is the capital."}
	b, sender := newTestBot(asker, nil)

	b.handleUpdate(context.Background(), nil, textUpdate(1, 10, "  capital of France  "))

	if len(asker.queries) != 1 || asker.queries[0] != "capital of France" {
		t.Fatalf("unexpected queries: %v", asker.queries)
	}

	texts := sender.texts()
	if len(texts) != 1 {
		t.Fatalf("expected one message, got %d", len(texts))
	}

	if texts[0] != answerHeader+`Paris is the capital\.` {
		t.Fatalf("unexpected message: %q", texts[0])
	}

	msg := sender.messages[0]
	if msg.ParseMode != models.ParseModeMarkdown || msg.ReplyParameters == nil || msg.ReplyParameters.MessageID != 7 {
		t.Fatalf("unexpected params: %+v", msg)
	}

	if sender.actions == 0 {
		t.Fatalf("expected a typing action")
	}
}

func TestHandleUpdateHelp(t *testing.T) {
	for _, command := range []string{"/start", "/help", "/help@ragsearch_bot"} {
		asker := &stubAsker{}
		b, sender := newTestBot(asker, nil)

		b.handleUpdate(context.Background(), nil, textUpdate(1, 10, command))

		texts := sender.texts()
		if len(texts) != 1 || !strings.Contains(texts[0], "1m0s") {
			t.Fatalf("%s: unexpected messages: %v", command, texts)
		}

		if asker.callCount() != 0 {
			t.Fatalf("%s: expected no query", command)
		}
	}
}

func TestHandleUpdateEmptyText(t *testing.T) {
	asker := &stubAsker{}
	b, sender := newTestBot(asker, nil)

	b.handleUpdate(context.Background(), nil, textUpdate(1, 10, "   "))

	if texts := sender.texts(); len(texts) != 1 || texts[0] != `Please enter a query\.` {
		t.Fatalf("unexpected messages: %v", texts)
	}

	if asker.callCount() != 0 {
		t.Fatalf("expected no query")
	}
}

func TestHandleUpdateIgnoresDisallowedUsers(t *testing.T) {
	asker := &stubAsker{answer: "a"}
	b, sender := newTestBot(asker, []int64{42})

	b.handleUpdate(context.Background(), nil, textUpdate(1, 10, "q"))

	if asker.callCount() != 0 || len(sender.texts()) != 0 {
		t.Fatalf("expected update to be ignored")
	}

	b.handleUpdate(context.Background(), nil, textUpdate(42, 10, "q"))

	if asker.callCount() != 1 {
		t.Fatalf("expected allowed user query")
	}
}

func TestHandleUpdateThrottlesPerChat(t *testing.T) {
	asker := &stubAsker{answer: "a"}
	b, sender := newTestBot(asker, nil)

	b.handleUpdate(context.Background(), nil, textUpdate(1, 10, "first"))
	b.handleUpdate(context.Background(), nil, textUpdate(1, 10, "second"))

	if asker.callCount() != 1 {
		t.Fatalf("expected throttled second query, got %d calls", asker.callCount())
	}

	texts := sender.texts()
	if len(texts) != 2 || !strings.Contains(texts[1], "Too many queries") {
		t.Fatalf("unexpected messages: %v", texts)
	}
}

func TestHandleUpdateRendersErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "api error",
			err:  &client.APIError{StatusCode: 404, Message: "No relevant articles found"},
			want: `Error: 404 \- No relevant articles found`,
		},
		{
			name: "transport error",
			err:  errors.New("connection refused"),
			want: "Request failed: connection refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, sender := newTestBot(&stubAsker{err: tt.err}, nil)

			b.handleUpdate(context.Background(), nil, textUpdate(1, 10, "q"))

			if texts := sender.texts(); len(texts) != 1 || texts[0] != tt.want {
				t.Fatalf("unexpected messages: %v", texts)
			}
		})
	}
}

func TestHandleUpdateSplitsLongAnswers(t *testing.T) {
	line := strings.Repeat("word ", 199) + "end"
	answer := strings.Repeat(line+"\n", 10)

	b, sender := newTestBot(&stubAsker{answer: answer}, nil)

	b.handleUpdate(context.Background(), nil, textUpdate(1, 10, "q"))

	texts := sender.texts()
	if len(texts) < 2 {
		t.Fatalf("expected several messages, got %d", len(texts))
	}

	for i, text := range texts {
		if n := utf16Len(text); n > telegramMessageMaxLength {
			t.Fatalf("message %d is too long: %d", i, n)
		}
	}

	if sender.messages[1].ReplyParameters != nil {
		t.Fatalf("expected only the first part to be a reply")
	}
}

func TestSplitMessage(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		limit int
		want  []string
	}{
		{"empty", "  ", 10, nil},
		{"fits", "short", 10, []string{"short"}},
		{"line boundaries", "aaaa\nbbbb\ncccc", 9, []string{"aaaa\nbbbb", "cccc"}},
		{"long line", "abcdefghij", 4, []string{"abcd", "efgh", "ij"}},
		{"blank lines kept", "a\n\nb", 10, []string{"a\n\nb"}},
		{"surrogate pairs", "🚀🚀🚀", 4, []string{"🚀🚀", "🚀"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SplitMessage(tt.text, tt.limit)

			if len(got) != len(tt.want) {
				t.Fatalf("unexpected parts: %q", got)
			}

			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("part %d: got %q want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestFormatAnswerEmpty(t *testing.T) {
	got := formatAnswer("   ")

	if len(got) != 1 || got[0] != answerHeader+`No answer received\.` {
		t.Fatalf("unexpected messages: %q", got)
	}
}
