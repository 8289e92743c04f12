package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// IssueCommenter posts a comment body to a GitHub issue.
type IssueCommenter interface {
	PostComment(ctx context.Context, owner, repo string, number int, body string) (*PostedComment, error)
}

type PostedComment struct {
	ID  int64
	URL string
}

type IssueRequest struct {
	Text        string
	Repository  string
	IssueNumber int
}

type PipelineStage int

const (
	StageStart PipelineStage = iota
	StageAnalyzing
	StageComposing
	StagePosting
	StageDone
)

func (s PipelineStage) String() string {
	switch s {
	case StageStart:
		return "start"
	case StageAnalyzing:
		return "analyzing"
	case StageComposing:
		return "composing"
	case StagePosting:
		return "posting"
	case StageDone:
		return "done"
	default:
		return "unknown"
	}
}

// PipelineContext is the value threaded through one pipeline run. Each step
// returns an updated copy; the receiver is never modified.
type PipelineContext struct {
	Request        IssueRequest
	Owner          string
	Repo           string
	Classification Classification
	Method         AnalysisMethod
	Comment        string
	Posted         *PostedComment
	Stage          PipelineStage
}

func (pc PipelineContext) withRepository(owner, repo string) PipelineContext {
	pc.Owner = owner
	pc.Repo = repo
	pc.Stage = StageAnalyzing
	return pc
}

func (pc PipelineContext) withAnalysis(c Classification, method AnalysisMethod) PipelineContext {
	c.Topics = append([]string{}, c.Topics...)
	pc.Classification = c
	pc.Method = method
	pc.Stage = StageComposing
	return pc
}

func (pc PipelineContext) withComment(body string) PipelineContext {
	pc.Comment = body
	pc.Stage = StagePosting
	return pc
}

func (pc PipelineContext) withPosted(posted *PostedComment) PipelineContext {
	pc.Posted = posted
	pc.Stage = StageDone
	return pc
}

type PipelineOption func(*Pipeline)

// WithCompletionClient replaces the Azure OpenAI client used in remote mode.
func WithCompletionClient(client CompletionClient) PipelineOption {
	return func(p *Pipeline) {
		p.completion = client
	}
}

func WithPipelineHTTPClient(client *http.Client) PipelineOption {
	return func(p *Pipeline) {
		p.httpClient = client
	}
}

func WithPipelineLogger(logger *Logger) PipelineOption {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// Pipeline runs analyze, compose and post for a single issue.
type Pipeline struct {
	commenter  IssueCommenter
	remote     *RemoteAnalyzer
	completion CompletionClient
	httpClient *http.Client
	logger     *Logger
}

// NewPipeline builds a pipeline that uses remote analysis when model has
// both an API key and an endpoint, and keyword analysis otherwise.
func NewPipeline(commenter IssueCommenter, model RemoteModelConfig, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{commenter: commenter}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = GetLogger()
	}

	if model.Enabled() {
		client := p.completion
		if client == nil {
			client = NewAzureOpenAIClient(model, p.httpClient, p.logger)
		}
		p.remote = NewRemoteAnalyzer(client, p.logger)
	}

	return p
}

func (p *Pipeline) RemoteEnabled() bool {
	return p.remote != nil
}

// Run processes req. The returned context reflects the last stage reached,
// also when an error is returned.
func (p *Pipeline) Run(ctx context.Context, req IssueRequest) (PipelineContext, error) {
	pc := PipelineContext{Request: req, Stage: StageStart}

	owner, repo, err := ParseRepository(req.Repository)
	if err != nil {
		return pc, err
	}
	if req.IssueNumber <= 0 {
		return pc, ValidationError{Field: "issue_number", Message: fmt.Sprintf("must be positive, got %d", req.IssueNumber)}
	}
	if p.commenter == nil {
		return pc, fmt.Errorf("no issue commenter configured")
	}

	log := p.logger.WithFields(map[string]interface{}{
		"repository": owner + "/" + repo,
		"issue":      req.IssueNumber,
	})

	pc = pc.withRepository(owner, repo)
	log.Debug("Analyzing issue (%d characters)", len(req.Text))
	pc = pc.withAnalysis(p.analyze(ctx, req.Text))
	log.Info("Classified as type=%s priority=%s topics=%v via %s",
		pc.Classification.Type, pc.Classification.Priority, pc.Classification.Topics, pc.Method)

	pc = pc.withComment(ComposeComment(pc.Classification, req.Text, pc.Method))

	log.Debug("Posting comment (%d bytes)", len(pc.Comment))
	posted, err := p.commenter.PostComment(ctx, owner, repo, req.IssueNumber, pc.Comment)
	if err != nil {
		var postingErr *PostingError
		if !errors.As(err, &postingErr) {
			err = &PostingError{Owner: owner, Repo: repo, IssueNumber: req.IssueNumber, Kind: PostingErrorOther, Err: err}
		}
		log.Error("Posting comment failed: %v", err)
		return pc, err
	}

	return pc.withPosted(posted), nil
}

func (p *Pipeline) analyze(ctx context.Context, text string) (Classification, AnalysisMethod) {
	if p.remote != nil {
		return p.remote.Analyze(ctx, text)
	}
	return ClassifyIssue(text), MethodKeyword
}

// ParseRepository splits an "owner/name" identifier.
func ParseRepository(repository string) (owner, repo string, err error) {
	parts := strings.Split(strings.TrimSpace(repository), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", ValidationError{
			Field:   "repository",
			Message: fmt.Sprintf("invalid repository %q, expected owner/name", repository),
		}
	}
	return parts[0], parts[1], nil
}
