package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"ragsearch/internal/database"
	"ragsearch/internal/rag"
)

const (
	kindAnswered       = "answered"
	kindInvalidRequest = "invalid_request"
	kindRateLimited    = "rate_limited"

	invalidRequestMessage = "Invalid request body"
	recordQueryTimeout    = 5 * time.Second
)

type queryRequest struct {
	Query string `json:"query"`
}

type answerResponse struct {
	Answer string `json:"answer"`
}

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

func (s *Server) handleQuery(c echo.Context) error {
	ctx := c.Request().Context()
	start := time.Now()

	req, err := decodeQueryRequest(c.Request().Body)
	if err != nil {
		s.log.InfoContext(ctx, "Invalid query request",
			"error", err)

		s.recordQuery(ctx, database.QueryRecord{
			Kind:      kindInvalidRequest,
			Status:    http.StatusBadRequest,
			Duration:  time.Since(start),
			CreatedAt: start,
		})

		return c.JSON(http.StatusBadRequest, errorResponse{Error: invalidRequestMessage, Kind: kindInvalidRequest})
	}

	res, err := s.answerer.Answer(ctx, req.Query)
	if err != nil {
		kind := rag.KindOf(err)
		status := StatusForKind(kind)

		s.recordQuery(ctx, database.QueryRecord{
			Query:        req.Query,
			Kind:         kind.String(),
			Status:       status,
			ArticleCount: len(res.Articles),
			Duration:     time.Since(start),
			CreatedAt:    start,
		})

		return c.JSON(status, errorResponse{Error: err.Error(), Kind: kind.String()})
	}

	s.recordQuery(ctx, database.QueryRecord{
		Query:        req.Query,
		Kind:         kindAnswered,
		Status:       http.StatusOK,
		ArticleCount: len(res.Articles),
		Duration:     time.Since(start),
		CreatedAt:    start,
	})

	return c.JSON(http.StatusOK, answerResponse{Answer: res.Answer})
}

// StatusForKind maps a pipeline failure kind to its HTTP status.
func StatusForKind(kind rag.Kind) int {
	switch kind {
	case rag.KindEmptyQuery:
		return http.StatusBadRequest
	case rag.KindNoResults:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// decodeQueryRequest accepts an empty body or JSON null as a request without
// a query. Anything after the first JSON value other than whitespace is
// rejected.
func decodeQueryRequest(body io.Reader) (queryRequest, error) {
	var req queryRequest

	dec := json.NewDecoder(body)

	if err := dec.Decode(&req); err != nil {
		if errors.Is(err, io.EOF) {
			return queryRequest{}, nil
		}

		return queryRequest{}, err
	}

	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return queryRequest{}, errors.New("unexpected data after JSON value")
	}

	return req, nil
}

func (s *Server) recordQuery(ctx context.Context, record database.QueryRecord) {
	if s.queryLog == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordQueryTimeout)
	defer cancel()

	if err := s.queryLog.RecordQuery(ctx, record); err != nil {
		s.log.ErrorContext(ctx, "Failed to record query",
			"error", err,
			"kind", record.Kind,
			"status", record.Status)
	}
}
