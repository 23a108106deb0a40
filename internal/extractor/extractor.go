package extractor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html/charset"
	"golang.org/x/sync/errgroup"

	"ragsearch/internal/domain"
	"ragsearch/internal/metrics"
)

const (
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
		"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/127.0.0.0 Safari/537.36"
	DefaultTimeout      = 10 * time.Second
	DefaultMaxBodyBytes = 5 << 20
	DefaultWorkers      = 10

	headingSelector   = "h1, h2"
	paragraphSelector = "p"
)

var (
	ErrEmptyURL  = errors.New("URL is empty")
	ErrNoContent = errors.New("page has no extractable text")
)

// Result is the outcome of extracting one page. Content is set only when Err
// is nil.
type Result struct {
	Content string
	Err     error
}

// OK reports whether the page produced text.
func (r Result) OK() bool {
	return r.Err == nil && r.Content != ""
}

// Status is the metrics label describing the result.
func (r Result) Status() string {
	switch {
	case r.Err == nil:
		return "ok"
	case errors.Is(r.Err, ErrEmptyURL):
		return "empty_url"
	case errors.Is(r.Err, ErrNoContent):
		return "no_content"
	case errors.Is(r.Err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "failed"
	}
}

type Config struct {
	Timeout      time.Duration
	UserAgent    string
	MaxBodyBytes int64
	Workers      int
}

// Extractor fetches article pages and reduces them to headings and
// paragraphs.
type Extractor struct {
	client       *http.Client
	userAgent    string
	timeout      time.Duration
	maxBodyBytes int64
	workers      int
	log          *slog.Logger
}

func New(cfg Config, client *http.Client, log *slog.Logger) *Extractor {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	userAgent := strings.TrimSpace(cfg.UserAgent)
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}

	maxBodyBytes := cfg.MaxBodyBytes
	if maxBodyBytes <= 0 {
		maxBodyBytes = DefaultMaxBodyBytes
	}

	workers := cfg.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}

	if client == nil {
		client = &http.Client{}
	}

	return &Extractor{
		client:       client,
		userAgent:    userAgent,
		timeout:      timeout,
		maxBodyBytes: maxBodyBytes,
		workers:      workers,
		log:          log,
	}
}

// Extract fetches pageURL and returns its text. It never panics on bad
// input and never returns a partially filled Result.
func (e *Extractor) Extract(ctx context.Context, pageURL string) Result {
	pageURL = strings.TrimSpace(pageURL)
	if pageURL == "" {
		return Result{Err: ErrEmptyURL}
	}

	content, err := e.fetchContent(ctx, pageURL)
	if err != nil {
		return Result{Err: err}
	}

	if content == "" {
		return Result{Err: ErrNoContent}
	}

	return Result{Content: content}
}

// FetchAll extracts every article concurrently and stores the text in the
// article at the same index. Results are index-aligned with articles.
func (e *Extractor) FetchAll(ctx context.Context, articles []domain.Article) []Result {
	results := make([]Result, len(articles))
	if len(articles) == 0 {
		return results
	}

	var g errgroup.Group
	g.SetLimit(min(e.workers, len(articles)))

	for i := range articles {
		g.Go(func() error {
			results[i] = e.Extract(ctx, articles[i].URL)
			return nil
		})
	}

	_ = g.Wait()

	for i, res := range results {
		metrics.RecordFetch(res.Status())

		if res.Err != nil {
			e.log.DebugContext(ctx, "Failed to fetch article content",
				"error", res.Err,
				"url", articles[i].URL,
				"articleIndex", i)

			articles[i].Content = ""
			continue
		}

		articles[i].Content = res.Content
	}

	return results
}

func (e *Extractor) fetchContent(ctx context.Context, pageURL string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", e.userAgent)

	resp, err := e.client.Do(req) //nolint:gosec // URLs come from search results
	if err != nil {
		return "", fmt.Errorf("do request: %w", err)
	}
	defer func() {
		if err = resp.Body.Close(); err != nil {
			e.log.ErrorContext(ctx, "Failed to close response body",
				"error", err,
				"url", pageURL,
				"operation", "fetchContent")
		}
	}()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return "", fmt.Errorf("do request: unexpected status: %d", resp.StatusCode)
	}

	body, err := charset.NewReader(
		io.LimitReader(resp.Body, e.maxBodyBytes),
		resp.Header.Get("Content-Type"),
	)
	if err != nil {
		return "", fmt.Errorf("create charset reader: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return "", fmt.Errorf("create document from reader: %w", err)
	}

	return ExtractText(doc), nil
}

// ExtractText joins the h1/h2 texts and then the paragraph texts of doc, one
// element per line.
func ExtractText(doc *goquery.Document) string {
	var lines []string

	lines = appendTexts(lines, doc.Find(headingSelector))
	lines = appendTexts(lines, doc.Find(paragraphSelector))

	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func appendTexts(lines []string, sel *goquery.Selection) []string {
	sel.Each(func(_ int, s *goquery.Selection) {
		if text := normalizeText(s.Text()); text != "" {
			lines = append(lines, text)
		}
	})

	return lines
}

func normalizeText(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
