package client

import (
	"bytes"
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

const (
	DefaultBaseURL = "http://localhost:5001"
	DefaultTimeout = 120 * time.Second

	noAnswerMessage     = "No answer received."
	unknownErrorMessage = "Unknown error occurred."
	maxResponseBytes    = 4 << 20
)

// APIError is a non-200 reply from the query endpoint.
type APIError struct {
	StatusCode int
	Message    string
	Kind       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%d - %s", e.StatusCode, e.Message)
}

// FormatError renders a failed Ask the way users see it.
func FormatError(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return fmt.Sprintf("Error: %d - %s", apiErr.StatusCode, apiErr.Message)
	}

	return fmt.Sprintf("Request failed: %v", err)
}

type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Client talks to a running ragsearch server.
type Client struct {
	baseURL string
	http    *http.Client
	log     *slog.Logger
}

// New returns a client. A nil httpClient gets one with cfg.Timeout.
func New(cfg Config, httpClient *http.Client, log *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cmp.Or(cfg.Timeout, DefaultTimeout)}
	}

	return &Client{
		baseURL: strings.TrimRight(cmp.Or(cfg.BaseURL, DefaultBaseURL), "/"),
		http:    httpClient,
		log:     log,
	}
}

// Ask posts query and returns the answer. Non-200 replies come back as
// *APIError.
func (c *Client) Ask(ctx context.Context, query string) (string, error) {
	payload, err := json.Marshal(map[string]string{"query": query})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/query", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("do request: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.log.ErrorContext(ctx, "Failed to close response body",
				"error", err)
		}
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", parseAPIError(resp.StatusCode, body)
	}

	answer := gjson.GetBytes(body, "answer")
	if answer.Type != gjson.String || answer.Str == "" {
		return noAnswerMessage, nil
	}

	return answer.Str, nil
}

func parseAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{
		StatusCode: status,
		Message:    unknownErrorMessage,
	}

	if !gjson.ValidBytes(body) {
		return apiErr
	}

	if msg := gjson.GetBytes(body, "error"); msg.Type == gjson.String && msg.Str != "" {
		apiErr.Message = msg.Str
	}

	if kind := gjson.GetBytes(body, "kind"); kind.Type == gjson.String {
		apiErr.Kind = kind.Str
	}

	return apiErr
}
