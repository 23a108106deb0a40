package bot

import (
	"strings"
	"unicode/utf16"

	"ragsearch/internal/markdown"
)

const (
	telegramMessageMaxLength = 4096
	answerHeader             = "💡 *Answer*\n\n"
)

// formatAnswer escapes answer and splits it into MarkdownV2 messages within
// the Telegram limit. The first message carries the header.
func formatAnswer(answer string) []string {
	budget := telegramMessageMaxLength - utf16Len(answerHeader)

	parts := splitMessage(answer, budget, markdown.EscapedLen)
	if len(parts) == 0 {
		parts = []string{"No answer received."}
	}

	messages := make([]string, len(parts))
	for i, part := range parts {
		messages[i] = markdown.EscapeV2(part)
	}
	messages[0] = answerHeader + messages[0]

	return messages
}

// SplitMessage splits text into parts of at most limit UTF-16 code units,
// breaking on line boundaries and only cutting inside a line that is longer
// than limit on its own.
func SplitMessage(text string, limit int) []string {
	return splitMessage(text, limit, utf16Len)
}

func splitMessage(text string, limit int, size func(string) int) []string {
	text = strings.TrimSpace(text)
	if text == "" || limit <= 0 {
		return nil
	}

	var parts []string
	var current strings.Builder
	currentLen := 0

	flush := func() {
		if part := strings.TrimSpace(current.String()); part != "" {
			parts = append(parts, part)
		}
		current.Reset()
		currentLen = 0
	}

	for _, line := range strings.Split(text, "\n") {
		for _, chunk := range splitLine(line, limit, size) {
			n := size(chunk)

			sep := 0
			if current.Len() > 0 {
				sep = 1
			}

			if currentLen+sep+n > limit {
				flush()
				sep = 0
			}

			if sep > 0 {
				current.WriteByte('\n')
			}
			current.WriteString(chunk)
			currentLen += sep + n
		}
	}

	flush()

	return parts
}

func splitLine(line string, limit int, size func(string) int) []string {
	if size(line) <= limit {
		return []string{line}
	}

	var chunks []string
	var current strings.Builder
	currentLen := 0

	for _, r := range line {
		s := string(r)
		n := size(s)

		if currentLen+n > limit && current.Len() > 0 {
			chunks = append(chunks, current.String())
			current.Reset()
			currentLen = 0
		}

		current.WriteRune(r)
		currentLen += n
	}

	if current.Len() > 0 {
		chunks = append(chunks, current.String())
	}

	return chunks
}

func utf16Len(s string) int {
	n := 0

	for _, r := range s {
		if l := utf16.RuneLen(r); l > 0 {
			n += l
		} else {
			n++
		}
	}

	return n
}
