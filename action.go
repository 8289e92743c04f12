package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/sethvargo/go-githubactions"
)

type ActionStatus string

const (
	StatusSuccess ActionStatus = "success"
	StatusError   ActionStatus = "error"
)

// ActionResult is what a run reports back to the workflow.
type ActionResult struct {
	Status ActionStatus
	Result string
	Extra  map[string]string
}

func (r ActionResult) ExitCode() int {
	if r.Status == StatusSuccess {
		return 0
	}
	return 1
}

// useCase is one mode of the Action. It returns the result text and any
// mode-specific outputs.
type useCase func(ctx context.Context) (string, map[string]string, error)

// runAction invokes uc and maps its outcome onto an ActionResult. It never
// returns an error; failures become StatusError results.
func runAction(ctx context.Context, logger *Logger, name string, uc useCase) ActionResult {
	log := logger.WithFields(map[string]interface{}{
		"mode":   name,
		"run_id": logger.RunID(),
	})
	log.Debug("Starting")

	result, extra, err := uc(ctx)
	if err != nil {
		log.Error("%v", err)
		return ActionResult{Status: StatusError, Result: err.Error()}
	}

	log.Info("Completed: %s", result)
	return ActionResult{Status: StatusSuccess, Result: result, Extra: extra}
}

type outputPair struct {
	key   string
	value string
}

func (r ActionResult) outputs() []outputPair {
	pairs := []outputPair{
		{"result", r.Result},
		{"status", string(r.Status)},
	}

	keys := make([]string, 0, len(r.Extra))
	for k := range r.Extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		pairs = append(pairs, outputPair{k, r.Extra[k]})
	}
	return pairs
}

// WriteActionOutputs sets the result as step outputs in the file named by
// GITHUB_OUTPUT, or prints key=value lines to stdout when it is unset.
func WriteActionOutputs(r ActionResult, stdout io.Writer) error {
	path := os.Getenv("GITHUB_OUTPUT")
	if path == "" {
		for _, p := range r.outputs() {
			fmt.Fprintf(stdout, "%s=%s\n", p.key, p.value)
		}
		return nil
	}

	// SetOutput has no error return; check the file is writable first.
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening GITHUB_OUTPUT: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing GITHUB_OUTPUT: %w", err)
	}

	action := githubactions.New(githubactions.WithWriter(stdout))
	for _, p := range r.outputs() {
		action.SetOutput(p.key, p.value)
	}
	return nil
}

// postNotifier is told about every successfully posted comment.
type postNotifier interface {
	NotifyPosted(pc PipelineContext) error
}

type commenterFactory func(ctx context.Context, cfg *Config, logger *Logger) (IssueCommenter, error)

func defaultCommenterFactory(ctx context.Context, cfg *Config, logger *Logger) (IssueCommenter, error) {
	if cfg.DryRun {
		return dryRunCommenter{logger: logger}, nil
	}
	client, err := NewGitHubClient(ctx, cfg.GitHub)
	if err != nil {
		return nil, err
	}
	return NewCommentManager(client, logger), nil
}

// issueUseCase analyzes one issue and posts the generated comment.
type issueUseCase struct {
	cfg          *Config
	logger       *Logger
	newCommenter commenterFactory
	notifier     postNotifier
	opts         []PipelineOption
}

func (u issueUseCase) Run(ctx context.Context) (string, map[string]string, error) {
	if err := u.cfg.ValidateIssueMode(); err != nil {
		return "", nil, err
	}

	newCommenter := u.newCommenter
	if newCommenter == nil {
		newCommenter = defaultCommenterFactory
	}
	commenter, err := newCommenter(ctx, u.cfg, u.logger)
	if err != nil {
		return "", nil, fmt.Errorf("creating GitHub client: %w", err)
	}

	opts := append([]PipelineOption{WithPipelineLogger(u.logger)}, u.opts...)
	pipeline := NewPipeline(commenter, u.cfg.Remote, opts...)

	pc, err := pipeline.Run(ctx, IssueRequest{
		Text:        u.cfg.Issue.Text,
		Repository:  u.cfg.Issue.Repository,
		IssueNumber: u.cfg.Issue.Number,
	})
	if err != nil {
		return "", nil, err
	}

	if u.notifier != nil && !u.cfg.DryRun {
		if err := u.notifier.NotifyPosted(pc); err != nil {
			u.logger.Warn("Telegram notification failed: %v", err)
		}
	}

	extra := map[string]string{
		"issue-type":      string(pc.Classification.Type),
		"priority":        string(pc.Classification.Priority),
		"topics":          strings.Join(pc.Classification.Topics, ","),
		"analysis-method": string(pc.Method),
	}
	if pc.Posted != nil {
		extra["comment-url"] = pc.Posted.URL
	}

	result := fmt.Sprintf("Posted %s analysis to %s/%s#%d", pc.Method, pc.Owner, pc.Repo, pc.Request.IssueNumber)
	if u.cfg.DryRun {
		result = fmt.Sprintf("Dry run: composed %s analysis for %s/%s#%d", pc.Method, pc.Owner, pc.Repo, pc.Request.IssueNumber)
	}
	return result, extra, nil
}

// tpmUseCase runs one simulated TPM operation.
type tpmUseCase struct {
	cfg    *Config
	logger *Logger
}

func (u tpmUseCase) Run(ctx context.Context) (string, map[string]string, error) {
	if err := u.cfg.ValidateTPMMode(); err != nil {
		return "", nil, err
	}

	sim := NewTPMSimulator(u.cfg.TPM.Delay, u.logger)
	result, err := sim.Run(ctx, TPMRequest{
		Operation: u.cfg.TPM.Operation,
		Target:    u.cfg.TPM.Target,
		Verbose:   u.cfg.TPM.Verbose,
	})
	if err != nil {
		return "", nil, err
	}
	return result, nil, nil
}
