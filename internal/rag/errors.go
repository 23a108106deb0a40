package rag

import (
	"errors"
	"fmt"
)

// Kind classifies why a pipeline run did not produce an answer.
type Kind int

const (
	KindUnknownFailure Kind = iota
	KindEmptyQuery
	KindNoResults
	KindSearchFailure
	KindGenerationFailure
)

var (
	ErrEmptyQuery = errors.New("No query provided")        //nolint:staticcheck // Shown to users as is.
	ErrNoResults  = errors.New("No relevant articles found") //nolint:staticcheck // Shown to users as is.
)

func (k Kind) String() string {
	switch k {
	case KindEmptyQuery:
		return "empty_query"
	case KindNoResults:
		return "no_results"
	case KindSearchFailure:
		return "search_failure"
	case KindGenerationFailure:
		return "generation_failure"
	default:
		return "unknown_failure"
	}
}

// Error is returned by Pipeline.Answer for every run that did not end in
// StageDone.
type Error struct {
	Kind  Kind
	Stage Stage
	Err   error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Kind.String()
	}

	return e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf reports the kind of err. Errors that did not come from a pipeline
// run are unknown failures.
func KindOf(err error) Kind {
	var ragErr *Error
	if errors.As(err, &ragErr) {
		return ragErr.Kind
	}

	return KindUnknownFailure
}

func newError(kind Kind, stage Stage, err error) *Error {
	return &Error{Kind: kind, Stage: stage, Err: err}
}

func newErrorf(kind Kind, stage Stage, format string, args ...any) *Error {
	return &Error{Kind: kind, Stage: stage, Err: fmt.Errorf(format, args...)}
}
