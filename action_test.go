package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestRunAction(t *testing.T) {
	logger := newTestLogger(nil)

	ok := runAction(context.Background(), logger, "test", func(ctx context.Context) (string, map[string]string, error) {
		return "done", map[string]string{"k": "v"}, nil
	})
	if ok.Status != StatusSuccess || ok.Result != "done" || ok.Extra["k"] != "v" {
		t.Errorf("unexpected success result: %+v", ok)
	}
	if ok.ExitCode() != 0 {
		t.Errorf("ExitCode() = %d, want 0", ok.ExitCode())
	}

	failed := runAction(context.Background(), logger, "test", func(ctx context.Context) (string, map[string]string, error) {
		return "", nil, errors.New("boom")
	})
	if failed.Status != StatusError || failed.Result != "boom" {
		t.Errorf("unexpected error result: %+v", failed)
	}
	if failed.ExitCode() != 1 {
		t.Errorf("ExitCode() = %d, want 1", failed.ExitCode())
	}
}

// readOutputFile parses a GITHUB_OUTPUT file in both the key=value and the
// key<<DELIMITER heredoc forms.
func readOutputFile(t *testing.T, path string) []outputPair {
	t.Helper()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	var pairs []outputPair
	lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	for i := 0; i < len(lines); i++ {
		line := lines[i]
		if key, delimiter, ok := strings.Cut(line, "<<"); ok {
			var value []string
			for i++; i < len(lines) && lines[i] != delimiter; i++ {
				value = append(value, lines[i])
			}
			if i == len(lines) {
				t.Fatalf("unterminated heredoc for %q in:\n%s", key, data)
			}
			pairs = append(pairs, outputPair{key, strings.Join(value, "\n")})
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			t.Fatalf("malformed output line %q", line)
		}
		pairs = append(pairs, outputPair{key, value})
	}
	return pairs
}

func TestWriteActionOutputsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "output")
	if err := os.WriteFile(path, []byte("existing=1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("GITHUB_OUTPUT", path)

	result := ActionResult{
		Status: StatusSuccess,
		Result: "line one\nline two",
		Extra:  map[string]string{"priority": "high", "issue-type": "bug"},
	}
	var stdout bytes.Buffer
	if err := WriteActionOutputs(result, &stdout); err != nil {
		t.Fatalf("WriteActionOutputs() unexpected error: %v", err)
	}
	if stdout.Len() != 0 {
		t.Errorf("nothing should be printed when GITHUB_OUTPUT is set, got %q", stdout.String())
	}

	want := []outputPair{
		{"existing", "1"},
		{"result", "line one\nline two"},
		{"status", "success"},
		{"issue-type", "bug"},
		{"priority", "high"},
	}
	if got := readOutputFile(t, path); !reflect.DeepEqual(got, want) {
		t.Errorf("outputs = %q, want %q", got, want)
	}
}

func TestWriteActionOutputsUnwritableFile(t *testing.T) {
	t.Setenv("GITHUB_OUTPUT", filepath.Join(t.TempDir(), "missing", "output"))

	if err := WriteActionOutputs(ActionResult{Status: StatusSuccess}, io.Discard); err == nil {
		t.Error("WriteActionOutputs() expected error for an unwritable GITHUB_OUTPUT")
	}
}

func TestWriteActionOutputsStdout(t *testing.T) {
	t.Setenv("GITHUB_OUTPUT", "")

	var stdout bytes.Buffer
	if err := WriteActionOutputs(ActionResult{Status: StatusError, Result: "bad input"}, &stdout); err != nil {
		t.Fatalf("WriteActionOutputs() unexpected error: %v", err)
	}
	if stdout.String() != "result=bad input\nstatus=error\n" {
		t.Errorf("stdout = %q", stdout.String())
	}
}

type fakeNotifier struct {
	err   error
	calls int
}

func (f *fakeNotifier) NotifyPosted(pc PipelineContext) error {
	f.calls++
	return f.err
}

func issueTestConfig() *Config {
	return &Config{
		Mode: ModeIssue,
		Issue: IssueConfig{
			Text:       "This is a critical bug in the Docker container",
			Repository: "octo/hello",
			Number:     42,
		},
		GitHub: GitHubAuthConfig{Token: "t"},
	}
}

func TestIssueUseCase(t *testing.T) {
	commenter := &fakeCommenter{posted: &PostedComment{ID: 5, URL: "https://github.com/octo/hello/issues/42#issuecomment-5"}}
	notifier := &fakeNotifier{err: errors.New("telegram down")}

	uc := issueUseCase{
		cfg:    issueTestConfig(),
		logger: newTestLogger(nil),
		newCommenter: func(ctx context.Context, cfg *Config, logger *Logger) (IssueCommenter, error) {
			return commenter, nil
		},
		notifier: notifier,
	}

	result := runAction(context.Background(), uc.logger, ModeIssue, uc.Run)
	if result.Status != StatusSuccess {
		t.Fatalf("Status = %s, result = %q", result.Status, result.Result)
	}
	if !strings.Contains(result.Result, "octo/hello#42") {
		t.Errorf("Result = %q", result.Result)
	}

	wantExtra := map[string]string{
		"issue-type":      "bug",
		"priority":        "high",
		"topics":          "Docker,Container",
		"analysis-method": "keyword analysis",
		"comment-url":     "https://github.com/octo/hello/issues/42#issuecomment-5",
	}
	for k, v := range wantExtra {
		if result.Extra[k] != v {
			t.Errorf("Extra[%q] = %q, want %q", k, result.Extra[k], v)
		}
	}
	if notifier.calls != 1 {
		t.Errorf("notifier called %d times, want 1", notifier.calls)
	}
}

func TestIssueUseCaseValidationFailsBeforeClientCreation(t *testing.T) {
	cfg := issueTestConfig()
	cfg.Issue.Repository = "ownerrepo"

	factoryCalls := 0
	uc := issueUseCase{
		cfg:    cfg,
		logger: newTestLogger(nil),
		newCommenter: func(ctx context.Context, cfg *Config, logger *Logger) (IssueCommenter, error) {
			factoryCalls++
			return &fakeCommenter{}, nil
		},
	}

	result := runAction(context.Background(), uc.logger, ModeIssue, uc.Run)
	if result.Status != StatusError {
		t.Fatalf("Status = %s, want error", result.Status)
	}
	if factoryCalls != 0 {
		t.Errorf("commenter factory called %d times, want 0", factoryCalls)
	}
}

func TestIssueUseCasePostingFailure(t *testing.T) {
	notifier := &fakeNotifier{}
	uc := issueUseCase{
		cfg:    issueTestConfig(),
		logger: newTestLogger(nil),
		newCommenter: func(ctx context.Context, cfg *Config, logger *Logger) (IssueCommenter, error) {
			return &fakeCommenter{err: errors.New("403")}, nil
		},
		notifier: notifier,
	}

	result := runAction(context.Background(), uc.logger, ModeIssue, uc.Run)
	if result.Status != StatusError {
		t.Fatalf("Status = %s, want error", result.Status)
	}
	if !strings.Contains(result.Result, "failed to post comment") {
		t.Errorf("Result = %q", result.Result)
	}
	if notifier.calls != 0 {
		t.Error("notifier should not be called when posting fails")
	}
}

func TestIssueUseCaseDryRun(t *testing.T) {
	cfg := issueTestConfig()
	cfg.DryRun = true
	cfg.GitHub = GitHubAuthConfig{}

	var logs bytes.Buffer
	uc := issueUseCase{cfg: cfg, logger: newTestLogger(&logs)}

	result := runAction(context.Background(), uc.logger, ModeIssue, uc.Run)
	if result.Status != StatusSuccess {
		t.Fatalf("Status = %s, result = %q", result.Status, result.Result)
	}
	if !strings.HasPrefix(result.Result, "Dry run") {
		t.Errorf("Result = %q", result.Result)
	}
	if !strings.Contains(logs.String(), "## 📋 Analysis Results") {
		t.Error("dry run should log the composed comment")
	}
}

func TestTPMUseCase(t *testing.T) {
	cfg := &Config{Mode: ModeTPM, TPM: TPMConfig{Operation: "check", Target: "host-a"}}
	uc := tpmUseCase{cfg: cfg, logger: newTestLogger(nil)}

	result := runAction(context.Background(), uc.logger, ModeTPM, uc.Run)
	if result.Status != StatusSuccess {
		t.Fatalf("Status = %s, result = %q", result.Status, result.Result)
	}
	if !strings.Contains(result.Result, "host-a") {
		t.Errorf("Result = %q", result.Result)
	}

	cfg.TPM.Operation = "erase"
	result = runAction(context.Background(), uc.logger, ModeTPM, uc.Run)
	if result.Status != StatusError || !strings.Contains(result.Result, ErrUnknownOperation.Error()) {
		t.Errorf("unexpected result for unknown operation: %+v", result)
	}
}
