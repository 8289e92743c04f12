package main

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput     = errors.New("invalid input")
	ErrPostingFailure   = errors.New("posting failure")
	ErrUnknownOperation = errors.New("unknown operation")
)

// ValidationError reports a missing or malformed required field. It matches
// ErrInvalidInput under errors.Is.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s - %s", e.Field, e.Message)
}

func (e ValidationError) Unwrap() error {
	return ErrInvalidInput
}

type PostingErrorKind string

const (
	PostingErrorNotFound     PostingErrorKind = "not-found"
	PostingErrorForbidden    PostingErrorKind = "forbidden"
	PostingErrorUnauthorized PostingErrorKind = "unauthorized"
	PostingErrorRateLimited  PostingErrorKind = "rate-limited"
	PostingErrorOther        PostingErrorKind = "other"
)

// PostingError wraps a failure from the issue-comment service.
type PostingError struct {
	Owner       string
	Repo        string
	IssueNumber int
	Kind        PostingErrorKind
	Err         error
}

func (e *PostingError) Error() string {
	return fmt.Sprintf("failed to post comment on %s/%s#%d (%s): %v", e.Owner, e.Repo, e.IssueNumber, e.Kind, e.Err)
}

func (e *PostingError) Unwrap() error {
	return e.Err
}

func (e *PostingError) Is(target error) bool {
	return target == ErrPostingFailure
}
