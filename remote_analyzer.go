package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// AnalysisMethod names the analyzer that produced a Classification.
type AnalysisMethod string

const (
	MethodRemote  AnalysisMethod = "Azure OpenAI"
	MethodKeyword AnalysisMethod = "keyword analysis"
)

const defaultRemoteSummary = "AI analysis completed"

const analysisSystemPrompt = `You are a GitHub issue triage assistant. You classify issues and reply with JSON only.`

const analysisPromptTemplate = `Analyze the following GitHub issue and classify it.

Issue:
"""
%s
"""

Respond with a single JSON object (no markdown) with exactly these keys:
- "type": one of "bug", "feature", "question"
- "priority": one of "low", "medium", "high"
- "topics": an array containing any of "TPM", "Security", "Authentication", "Encryption", "Docker", "Container", "OpenAI", "Azure"
- "summary": a one sentence summary of the issue

Example: {"type": "bug", "priority": "high", "topics": ["Docker"], "summary": "Container fails to start"}`

var (
	errEmptyCompletion = errors.New("empty completion")
	errMissingKeys     = errors.New("completion has none of the expected keys")
)

// RemoteAnalyzer classifies issues with a hosted model and falls back to the
// keyword classifier on any failure.
type RemoteAnalyzer struct {
	client CompletionClient
	logger *Logger
}

func NewRemoteAnalyzer(client CompletionClient, logger *Logger) *RemoteAnalyzer {
	if logger == nil {
		logger = GetLogger()
	}
	return &RemoteAnalyzer{
		client: client,
		logger: logger,
	}
}

// Analyze never fails: when the model call or its response is unusable the
// keyword classification of text is returned along with MethodKeyword.
func (a *RemoteAnalyzer) Analyze(ctx context.Context, text string) (Classification, AnalysisMethod) {
	classification, err := a.analyze(ctx, text)
	if err != nil {
		a.logger.WithField("reason", err.Error()).Warn("Remote analysis failed, falling back to keyword analysis")
		return ClassifyIssue(text), MethodKeyword
	}

	a.logger.WithFields(map[string]interface{}{
		"type":     classification.Type,
		"priority": classification.Priority,
	}).Info("Remote analysis succeeded")
	return classification, MethodRemote
}

func (a *RemoteAnalyzer) analyze(ctx context.Context, text string) (Classification, error) {
	if a.client == nil {
		return Classification{}, fmt.Errorf("no completion client configured")
	}

	content, err := a.client.Complete(ctx, analysisSystemPrompt, BuildAnalysisPrompt(text))
	if err != nil {
		return Classification{}, fmt.Errorf("completion call: %w", err)
	}

	return ParseRemoteClassification(content)
}

func BuildAnalysisPrompt(text string) string {
	return fmt.Sprintf(analysisPromptTemplate, text)
}

// ParseRemoteClassification converts a model completion into a
// Classification. Type and priority outside their enumerations are replaced
// by the defaults, and topics are limited to the known vocabulary.
func ParseRemoteClassification(content string) (Classification, error) {
	content = stripCodeFence(content)
	if content == "" {
		return Classification{}, errEmptyCompletion
	}

	var fields map[string]interface{}
	if err := json.Unmarshal([]byte(content), &fields); err != nil {
		return Classification{}, fmt.Errorf("parsing completion as JSON object: %w", err)
	}

	if !hasAnyKey(fields, "type", "priority", "topics", "summary") {
		return Classification{}, errMissingKeys
	}

	result := Classification{
		Type:     IssueTypeQuestion,
		Priority: PriorityMedium,
		Topics:   []string{},
		Summary:  defaultRemoteSummary,
	}

	if s, ok := fields["type"].(string); ok {
		if t := IssueType(strings.ToLower(strings.TrimSpace(s))); t.Valid() {
			result.Type = t
		}
	}

	if s, ok := fields["priority"].(string); ok {
		if p := Priority(strings.ToLower(strings.TrimSpace(s))); p.Valid() {
			result.Priority = p
		}
	}

	if raw, ok := fields["topics"].([]interface{}); ok {
		for _, item := range raw {
			label, ok := item.(string)
			if !ok || strings.TrimSpace(label) == "" {
				continue
			}
			if canonical, known := canonicalTopic(label); known {
				result.Topics = appendTopic(result.Topics, canonical)
			}
		}
	}

	if s, ok := fields["summary"].(string); ok {
		result.Summary = s
	}

	return result, nil
}

// stripCodeFence removes a Markdown fence and its language tag, whatever
// its case, from around the completion.
func stripCodeFence(content string) string {
	content = strings.TrimSpace(content)
	if !strings.HasPrefix(content, "```") {
		return content
	}

	content = strings.TrimPrefix(content, "```")
	if i := strings.IndexByte(content, '\n'); i >= 0 && !strings.ContainsAny(content[:i], "{[") {
		content = content[i+1:]
	}
	content = strings.TrimSuffix(strings.TrimSpace(content), "```")
	return strings.TrimSpace(content)
}

func hasAnyKey(fields map[string]interface{}, keys ...string) bool {
	for _, k := range keys {
		if _, ok := fields[k]; ok {
			return true
		}
	}
	return false
}
