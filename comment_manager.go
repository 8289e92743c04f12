package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/go-github/v58/github"
)

// CommentManager posts issue comments through the GitHub REST API.
type CommentManager struct {
	client *github.Client
	logger *Logger
}

func NewCommentManager(client *github.Client, logger *Logger) *CommentManager {
	if logger == nil {
		logger = GetLogger()
	}
	return &CommentManager{
		client: client,
		logger: logger,
	}
}

func (cm *CommentManager) PostComment(ctx context.Context, owner, repo string, issueNumber int, body string) (*PostedComment, error) {
	comment, _, err := cm.client.Issues.CreateComment(ctx, owner, repo, issueNumber, &github.IssueComment{
		Body: github.String(body),
	})
	if err != nil {
		return nil, &PostingError{
			Owner:       owner,
			Repo:        repo,
			IssueNumber: issueNumber,
			Kind:        classifyPostingError(err),
			Err:         err,
		}
	}

	posted := &PostedComment{
		ID:  comment.GetID(),
		URL: comment.GetHTMLURL(),
	}

	cm.logger.WithFields(map[string]interface{}{
		"comment_id": posted.ID,
		"url":        posted.URL,
	}).Info("Posted comment on %s/%s#%d", owner, repo, issueNumber)

	return posted, nil
}

func classifyPostingError(err error) PostingErrorKind {
	var rateErr *github.RateLimitError
	if errors.As(err, &rateErr) {
		return PostingErrorRateLimited
	}
	var abuseErr *github.AbuseRateLimitError
	if errors.As(err, &abuseErr) {
		return PostingErrorRateLimited
	}

	var respErr *github.ErrorResponse
	if errors.As(err, &respErr) && respErr.Response != nil {
		switch respErr.Response.StatusCode {
		case http.StatusNotFound:
			return PostingErrorNotFound
		case http.StatusForbidden:
			return PostingErrorForbidden
		case http.StatusUnauthorized:
			return PostingErrorUnauthorized
		}
	}

	return PostingErrorOther
}

// dryRunCommenter logs comments instead of posting them.
type dryRunCommenter struct {
	logger *Logger
}

func (d dryRunCommenter) PostComment(ctx context.Context, owner, repo string, issueNumber int, body string) (*PostedComment, error) {
	d.logger.Info("Dry run, not posting comment to %s/%s#%d:\n%s", owner, repo, issueNumber, body)
	return &PostedComment{
		URL: fmt.Sprintf("https://github.com/%s/%s/issues/%d", owner, repo, issueNumber),
	}, nil
}
