package search

import (
	"context"

	"ragsearch/internal/domain"
)

// Searcher returns articles for a query in the provider's result order.
// A query with no matches yields an empty slice and a nil error.
type Searcher interface {
	Search(ctx context.Context, query string) ([]domain.Article, error)
}
