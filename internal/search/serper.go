package search

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

	"ragsearch/internal/domain"
)

const (
	DefaultSerperBaseURL = "https://google.serper.dev"
	DefaultSerperGL      = "us"
	DefaultSerperHL      = "en"
	DefaultSerperNum     = 10

	serperSearchPath      = "/search"
	serperMaxBodyBytes    = 4 << 20
	serperErrorBodyMaxLen = 256
)

// SerperConfig holds the credentials and request defaults of the Serper
// Google Search API.
type SerperConfig struct {
	APIKey  string
	BaseURL string
	// GL is the country code, HL the interface language.
	GL      string
	HL      string
	Num     int
	Timeout time.Duration
}

// Serper implements Searcher on top of the Serper Google Search API.
type Serper struct {
	apiKey  string
	baseURL string
	gl      string
	hl      string
	num     int
	client  *http.Client
	log     *slog.Logger
}

type serperRequest struct {
	Q   string `json:"q"`
	GL  string `json:"gl,omitempty"`
	HL  string `json:"hl,omitempty"`
	Num int    `json:"num,omitempty"`
}

// NewSerper builds a Serper searcher. A nil client gets a dedicated one
// honoring cfg.Timeout.
func NewSerper(cfg SerperConfig, client *http.Client, log *slog.Logger) (*Serper, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("API key is empty")
	}

	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultSerperBaseURL
	}

	gl := cmp.Or(strings.TrimSpace(cfg.GL), DefaultSerperGL)
	hl := cmp.Or(strings.TrimSpace(cfg.HL), DefaultSerperHL)

	num := cfg.Num
	if num <= 0 {
		num = DefaultSerperNum
	}

	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}

	return &Serper{
		apiKey:  apiKey,
		baseURL: baseURL,
		gl:      gl,
		hl:      hl,
		num:     num,
		client:  client,
		log:     log,
	}, nil
}

// Search issues a single search request. It does not retry.
func (s *Serper) Search(ctx context.Context, query string) ([]domain.Article, error) {
	payload, err := json.Marshal(serperRequest{Q: query, GL: s.gl, HL: s.hl, Num: s.num})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	endpoint := s.baseURL + serperSearchPath

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("X-API-KEY", s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer func() {
		if err = resp.Body.Close(); err != nil {
			s.log.ErrorContext(ctx, "Failed to close response body",
				"error", err,
				"endpoint", endpoint,
				"operation", "Search")
		}
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, serperMaxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("do request: unexpected status: %d: %s",
			resp.StatusCode, truncate(strings.TrimSpace(string(body)), serperErrorBodyMaxLen))
	}

	articles, err := ParseSerperResults(body)
	if err != nil {
		return nil, err
	}

	s.log.DebugContext(ctx, "Search results are received",
		"resultCount", len(articles),
		"queryLen", len(query))

	return articles, nil
}

// ParseSerperResults converts a Serper response body into articles, keeping
// the order of the organic results. A missing or empty organic list is an
// empty result; any other shape is an error.
func ParseSerperResults(body []byte) ([]domain.Article, error) {
	if !gjson.ValidBytes(body) {
		return nil, errors.New("parse response: malformed JSON")
	}

	root := gjson.ParseBytes(body)
	if !root.IsObject() {
		return nil, errors.New("parse response: top level is not an object")
	}

	organic := root.Get("organic")
	if !organic.Exists() {
		return []domain.Article{}, nil
	}

	if !organic.IsArray() {
		return nil, fmt.Errorf("parse response: organic is %s, not an array", organic.Type)
	}

	results := organic.Array()
	articles := make([]domain.Article, 0, len(results))

	for i, result := range results {
		if !result.IsObject() {
			return nil, fmt.Errorf("parse response: organic[%d] is %s, not an object", i, result.Type)
		}

		articles = append(articles, domain.Article{
			URL:     stringField(result, "link"),
			Heading: stringField(result, "title"),
			Snippet: stringField(result, "snippet"),
		})
	}

	return articles, nil
}

func stringField(result gjson.Result, path string) string {
	field := result.Get(path)
	if field.Type != gjson.String {
		return ""
	}

	return field.String()
}

func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}

	return string(runes[:maxLen]) + "..."
}
