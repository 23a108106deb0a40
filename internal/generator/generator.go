package generator

import (
	"context"
)

// Generator writes an answer to query grounded in the retrieved context.
type Generator interface {
	Generate(ctx context.Context, contextText string, query string) (string, error)
}
