package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

type queryStub struct {
	mu      sync.Mutex
	queries []string
	status  int
	body    string
}

func (s *queryStub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost || r.URL.Path != "/query" {
		http.NotFound(w, r)
		return
	}

	var req struct {
		Query string `json:"query"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)

	s.mu.Lock()
	s.queries = append(s.queries, req.Query)
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(s.status)
	_, _ = w.Write([]byte(s.body))
}

func newTestClient(t *testing.T, stub *queryStub) *Client {
	t.Helper()

	srv := httptest.NewServer(stub)
	t.Cleanup(srv.Close)

	return New(Config{BaseURL: srv.URL + "/"}, srv.Client(), slog.Default())
}

func TestAskReturnsAnswer(t *testing.T) {
	stub := &queryStub{status: http.StatusOK, body: `{"answer": "Paris."}`}
	c := newTestClient(t, stub)

	answer, err := c.Ask(context.Background(), "capital of France")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if answer != "Paris." {
		t.Fatalf("unexpected answer: %q", answer)
	}

	if len(stub.queries) != 1 || stub.queries[0] != "capital of France" {
		t.Fatalf("unexpected queries: %v", stub.queries)
	}
}

func TestAskMissingAnswer(t *testing.T) {
	for _, body := range []string{`{}`, `{"answer": ""}`, `not json`} {
		c := newTestClient(t, &queryStub{status: http.StatusOK, body: body})

		answer, err := c.Ask(context.Background(), "q")
		if err != nil {
			t.Fatalf("body %q: unexpected error: %v", body, err)
		}

		if answer != noAnswerMessage {
			t.Fatalf("body %q: unexpected answer: %q", body, answer)
		}
	}
}

func TestAskAPIErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		message string
		kind    string
	}{
		{
			name:    "empty query",
			status:  http.StatusBadRequest,
			body:    `{"error": "No query provided", "kind": "empty_query"}`,
			message: "No query provided",
			kind:    "empty_query",
		},
		{
			name:    "no results",
			status:  http.StatusNotFound,
			body:    `{"error": "No relevant articles found", "kind": "no_results"}`,
			message: "No relevant articles found",
			kind:    "no_results",
		},
		{
			name:    "missing message",
			status:  http.StatusInternalServerError,
			body:    `{}`,
			message: unknownErrorMessage,
		},
		{
			name:    "non json body",
			status:  http.StatusBadGateway,
			body:    `<html>bad gateway</html>`,
			message: unknownErrorMessage,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, &queryStub{status: tt.status, body: tt.body})

			_, err := c.Ask(context.Background(), "q")

			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("expected *APIError, got %v", err)
			}

			if apiErr.StatusCode != tt.status || apiErr.Message != tt.message || apiErr.Kind != tt.kind {
				t.Fatalf("unexpected error: %+v", apiErr)
			}
		})
	}
}

func TestAskTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := New(Config{BaseURL: url, Timeout: time.Second}, nil, slog.Default())

	_, err := c.Ask(context.Background(), "q")
	if err == nil {
		t.Fatalf("expected transport error")
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		t.Fatalf("transport failure must not be an API error: %v", err)
	}
}

func TestAPIErrorString(t *testing.T) {
	err := &APIError{StatusCode: 404, Message: "No relevant articles found"}

	if got := err.Error(); got != "404 - No relevant articles found" {
		t.Fatalf("unexpected error string: %q", got)
	}
}

func TestFormatError(t *testing.T) {
	apiErr := &APIError{StatusCode: 400, Message: "No query provided", Kind: "empty_query"}

	if got := FormatError(fmt.Errorf("ask: %w", apiErr)); got != "Error: 400 - No query provided" {
		t.Fatalf("unexpected API error text: %q", got)
	}

	if got := FormatError(errors.New("do request: connection refused")); got != "Request failed: do request: connection refused" {
		t.Fatalf("unexpected transport error text: %q", got)
	}
}
