package rag

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"ragsearch/internal/domain"
	"ragsearch/internal/extractor"
	"ragsearch/internal/generator"
	"ragsearch/internal/metrics"
	"ragsearch/internal/search"
)

// Stage is a state of one pipeline run.
type Stage int

const (
	StageSearching Stage = iota
	StageFetching
	StageAssembling
	StageGenerating
	StageDone
)

const answeredOutcome = "answered"

func (s Stage) String() string {
	switch s {
	case StageSearching:
		return "searching"
	case StageFetching:
		return "fetching"
	case StageAssembling:
		return "assembling"
	case StageGenerating:
		return "generating"
	case StageDone:
		return "done"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

// Fetcher fills Article.Content for every article in place and reports the
// per-article outcome. It must not reorder articles.
type Fetcher interface {
	FetchAll(ctx context.Context, articles []domain.Article) []extractor.Result
}

type Options struct {
	// Timeout bounds a whole run; zero disables it.
	Timeout time.Duration
}

// Result is a successful run.
type Result struct {
	Query    string
	Answer   string
	Articles []domain.Article
}

// Pipeline answers queries by searching, scraping, assembling the context and
// generating an answer. It holds no per-request state.
type Pipeline struct {
	searcher  search.Searcher
	fetcher   Fetcher
	generator generator.Generator
	timeout   time.Duration
	log       *slog.Logger
}

func New(
	searcher search.Searcher,
	fetcher Fetcher,
	gen generator.Generator,
	opts Options,
	log *slog.Logger,
) *Pipeline {
	return &Pipeline{
		searcher:  searcher,
		fetcher:   fetcher,
		generator: gen,
		timeout:   max(opts.Timeout, 0),
		log:       log,
	}
}

// Answer runs the pipeline for query. Every non-nil error is an *Error.
func (p *Pipeline) Answer(ctx context.Context, query string) (Result, error) {
	start := time.Now()

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	st := &runState{stage: StageSearching}

	res, err := p.runRecovered(ctx, strings.TrimSpace(query), st)

	p.logOutcome(ctx, st, res, err, time.Since(start))

	return res, err
}

type runState struct {
	stage    Stage
	articles int
	fetched  int
}

func (p *Pipeline) runRecovered(ctx context.Context, query string, st *runState) (res Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			res = Result{}
			err = newErrorf(KindUnknownFailure, st.stage, "panic: %v", r)
		}
	}()

	return p.run(ctx, query, st)
}

func (p *Pipeline) run(ctx context.Context, query string, st *runState) (Result, error) {
	if query == "" {
		return Result{}, newError(KindEmptyQuery, StageSearching, ErrEmptyQuery)
	}

	p.log.InfoContext(ctx, "Searching articles",
		"queryLen", len(query))

	stageStart := time.Now()
	articles, err := p.searcher.Search(ctx, query)
	metrics.ObserveStage(StageSearching.String(), time.Since(stageStart))
	if err != nil {
		return Result{}, newError(KindSearchFailure, StageSearching, fmt.Errorf("search articles: %w", err))
	}

	metrics.ObserveSearchResults(len(articles))
	st.articles = len(articles)

	if len(articles) == 0 {
		return Result{}, newError(KindNoResults, StageSearching, ErrNoResults)
	}

	st.stage = StageFetching
	p.log.InfoContext(ctx, "Fetching and concatenating content",
		"articleCount", len(articles))

	stageStart = time.Now()
	for _, r := range p.fetcher.FetchAll(ctx, articles) {
		if r.OK() {
			st.fetched++
		}
	}
	metrics.ObserveStage(StageFetching.String(), time.Since(stageStart))

	if err = ctx.Err(); err != nil {
		return Result{}, newError(KindUnknownFailure, StageFetching, fmt.Errorf("fetch articles: %w", err))
	}

	st.stage = StageAssembling
	contextText := Assemble(articles)

	st.stage = StageGenerating
	p.log.InfoContext(ctx, "Generating an answer",
		"contextLen", len(contextText),
		"fetchedCount", st.fetched,
		"articleCount", len(articles))

	stageStart = time.Now()
	answer, err := p.generator.Generate(ctx, contextText, query)
	metrics.ObserveStage(StageGenerating.String(), time.Since(stageStart))
	if err != nil {
		return Result{}, newError(KindGenerationFailure, StageGenerating, fmt.Errorf("generate answer: %w", err))
	}

	st.stage = StageDone

	return Result{
		Query:    query,
		Answer:   answer,
		Articles: articles,
	}, nil
}

func (p *Pipeline) logOutcome(
	ctx context.Context,
	st *runState,
	res Result,
	err error,
	duration time.Duration,
) {
	if err == nil {
		metrics.RecordQuery(answeredOutcome)

		p.log.InfoContext(ctx, "Answer is generated",
			"articleCount", st.articles,
			"fetchedCount", st.fetched,
			"answerLen", len(res.Answer),
			"durationMs", duration.Milliseconds())

		return
	}

	kind := KindOf(err)
	metrics.RecordQuery(kind.String())

	fields := []any{
		"kind", kind.String(),
		"stage", st.stage.String(),
		"articleCount", st.articles,
		"durationMs", duration.Milliseconds(),
	}

	switch kind {
	case KindEmptyQuery, KindNoResults:
		p.log.InfoContext(ctx, "Query is not answered", fields...)
	default:
		p.log.ErrorContext(ctx, "Failed to answer query", append(fields, "error", err)...)
	}
}
