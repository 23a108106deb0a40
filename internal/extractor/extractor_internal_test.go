package extractor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"

	"ragsearch/internal/domain"
)

const articlePage = `<!doctype html>
<html><head><title>ignored</title></head>
<body>
  <p>First   paragraph
     spans lines.</p>
  <h1>Main heading</h1>
  <p>   </p>
  <h3>Not extracted</h3>
  <h2>Sub <em>heading</em></h2>
  <div><p>Nested paragraph</p></div>
  <h2>  </h2>
</body></html>`

func TestExtractTextHeadingsBeforeParagraphs(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(articlePage))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := "Main heading\nSub heading\nFirst paragraph spans lines.\nNested paragraph"
	if got := ExtractText(doc); got != want {
		t.Fatalf("unexpected text:\n got %q\nwant %q", got, want)
	}
}

func TestNewDefaults(t *testing.T) {
	e := New(Config{}, nil, slog.Default())

	if DefaultTimeout != 10*time.Second || e.timeout != DefaultTimeout {
		t.Fatalf("unexpected timeout: %v", e.timeout)
	}

	if e.workers != DefaultWorkers || e.userAgent != DefaultUserAgent || e.maxBodyBytes != DefaultMaxBodyBytes {
		t.Fatalf("unexpected defaults: workers=%d userAgent=%q maxBodyBytes=%d", e.workers, e.userAgent, e.maxBodyBytes)
	}

	e = New(Config{Timeout: -time.Second, Workers: -1, UserAgent: "  "}, nil, slog.Default())
	if e.timeout != DefaultTimeout || e.workers != DefaultWorkers || e.userAgent != DefaultUserAgent {
		t.Fatalf("non-positive values must fall back to defaults: %+v", e)
	}

	e = New(Config{Timeout: 3 * time.Second, Workers: 2}, nil, slog.Default())
	if e.timeout != 3*time.Second || e.workers != 2 {
		t.Fatalf("explicit values must be kept: timeout=%v workers=%d", e.timeout, e.workers)
	}
}

func TestExtractSendsBrowserUserAgent(t *testing.T) {
	var userAgent atomic.Value

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userAgent.Store(r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte(articlePage))
	}))
	defer srv.Close()

	e := New(Config{}, srv.Client(), slog.Default())

	res := e.Extract(context.Background(), srv.URL)
	if !res.OK() {
		t.Fatalf("expected content, got error %v", res.Err)
	}

	if got, _ := userAgent.Load().(string); got != DefaultUserAgent {
		t.Fatalf("unexpected User-Agent: %q", got)
	}
}

func TestExtractEmptyURLMakesNoRequest(t *testing.T) {
	var calls atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	e := New(Config{}, srv.Client(), slog.Default())

	res := e.Extract(context.Background(), "  ")
	if !errors.Is(res.Err, ErrEmptyURL) {
		t.Fatalf("expected ErrEmptyURL, got %v", res.Err)
	}

	if res.Status() != "empty_url" {
		t.Fatalf("unexpected status: %s", res.Status())
	}

	if got := calls.Load(); got != 0 {
		t.Fatalf("expected no requests, got %d", got)
	}
}

func TestExtractFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/missing":
			http.NotFound(w, r)
		case "/empty":
			_, _ = w.Write([]byte(`<html><body><div>no paragraphs here</div></body></html>`))
		case "/slow":
			select {
			case <-time.After(2 * time.Second):
			case <-r.Context().Done():
			}
		}
	}))
	defer srv.Close()

	e := New(Config{Timeout: 50 * time.Millisecond}, srv.Client(), slog.Default())

	tests := []struct {
		path   string
		status string
	}{
		{path: "/missing", status: "failed"},
		{path: "/empty", status: "no_content"},
		{path: "/slow", status: "timeout"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			res := e.Extract(context.Background(), srv.URL+tt.path)
			if res.Err == nil {
				t.Fatalf("expected error")
			}
			if res.Content != "" {
				t.Fatalf("expected no content, got %q", res.Content)
			}
			if res.Status() != tt.status {
				t.Fatalf("unexpected status: got %s want %s", res.Status(), tt.status)
			}
		})
	}
}

func TestExtractDecodesDeclaredCharset(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=iso-8859-1")
		_, _ = w.Write([]byte("<html><body><p>Caf\xe9</p></body></html>"))
	}))
	defer srv.Close()

	e := New(Config{}, srv.Client(), slog.Default())

	res := e.Extract(context.Background(), srv.URL)
	if res.Content != "Café" {
		t.Fatalf("unexpected content: %q (err %v)", res.Content, res.Err)
	}
}

func TestFetchAllPreservesOrderAndToleratesFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/broken":
			w.WriteHeader(http.StatusInternalServerError)
			return
		case "/a":
			// Finishes last so completion order differs from article order.
			time.Sleep(100 * time.Millisecond)
		}

		_, _ = fmt.Fprintf(w, "<html><body><p>page %s</p></body></html>", strings.TrimPrefix(r.URL.Path, "/"))
	}))
	defer srv.Close()

	refused := httptest.NewServer(http.NotFoundHandler())
	refusedURL := refused.URL
	refused.Close()

	articles := []domain.Article{
		{URL: srv.URL + "/a", Heading: "A"},
		{URL: srv.URL + "/broken", Heading: "Broken"},
		{URL: "", Heading: "No URL"},
		{URL: refusedURL + "/c", Heading: "Refused"},
		{URL: srv.URL + "/d", Heading: "D"},
	}

	e := New(Config{Workers: 3}, srv.Client(), slog.Default())

	results := e.FetchAll(context.Background(), articles)
	if len(results) != len(articles) {
		t.Fatalf("expected %d results, got %d", len(articles), len(results))
	}

	wantHeadings := []string{"A", "Broken", "No URL", "Refused", "D"}
	wantContent := []string{"page a", "", "", "", "page d"}

	for i := range articles {
		if articles[i].Heading != wantHeadings[i] {
			t.Fatalf("article order changed at %d: %q", i, articles[i].Heading)
		}
		if articles[i].Content != wantContent[i] {
			t.Fatalf("unexpected content at %d: got %q want %q", i, articles[i].Content, wantContent[i])
		}
		if (results[i].Err == nil) != (wantContent[i] != "") {
			t.Fatalf("unexpected result at %d: %+v", i, results[i])
		}
	}
}

func TestFetchAllEmpty(t *testing.T) {
	e := New(Config{}, nil, slog.Default())

	if results := e.FetchAll(context.Background(), nil); len(results) != 0 {
		t.Fatalf("expected no results, got %d", len(results))
	}
}
