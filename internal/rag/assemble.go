package rag

import (
	"strings"

	"ragsearch/internal/domain"
)

const articleSeparator = "\n\n"

// Assemble concatenates heading, snippet and content of every article in
// order. Output is deterministic for a given input.
func Assemble(articles []domain.Article) string {
	var b strings.Builder

	for _, article := range articles {
		b.WriteString(article.Heading)
		b.WriteString(" ")
		b.WriteString(article.Snippet)
		b.WriteString(" ")
		b.WriteString(article.Content)
		b.WriteString(articleSeparator)
	}

	return strings.TrimSpace(b.String())
}
