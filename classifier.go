package main

import (
	"strings"
	"unicode/utf8"
)

// IssueType is the coarse category assigned to an issue.
type IssueType string

const (
	IssueTypeBug      IssueType = "bug"
	IssueTypeFeature  IssueType = "feature"
	IssueTypeQuestion IssueType = "question"
)

func (t IssueType) Valid() bool {
	switch t {
	case IssueTypeBug, IssueTypeFeature, IssueTypeQuestion:
		return true
	}
	return false
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

const (
	TopicTPM            = "TPM"
	TopicSecurity       = "Security"
	TopicAuthentication = "Authentication"
	TopicEncryption     = "Encryption"
	TopicDocker         = "Docker"
	TopicContainer      = "Container"
	TopicOpenAI         = "OpenAI"
	TopicAzure          = "Azure"
)

const summaryMaxLen = 100

// Classification is the structured result of analyzing issue text.
type Classification struct {
	Type     IssueType `json:"type"`
	Priority Priority  `json:"priority"`
	Topics   []string  `json:"topics"`
	Summary  string    `json:"summary"`
}

func (c Classification) HasTopic(topic string) bool {
	for _, t := range c.Topics {
		if t == topic {
			return true
		}
	}
	return false
}

type topicRule struct {
	keyword string
	label   string
}

// Table order is the order topics are reported in.
var topicRules = []topicRule{
	{"tpm", TopicTPM},
	{"security", TopicSecurity},
	{"auth", TopicAuthentication},
	{"encrypt", TopicEncryption},
	{"docker", TopicDocker},
	{"container", TopicContainer},
	{"openai", TopicOpenAI},
	{"azure", TopicAzure},
}

var (
	bugKeywords     = []string{"bug", "error", "issue"}
	featureKeywords = []string{"feature", "enhancement", "request"}
	highKeywords    = []string{"urgent", "critical", "high"}
	lowKeywords     = []string{"low", "minor"}
)

// ClassifyIssue maps raw issue text to a Classification using fixed keyword
// tables. Matching is case-insensitive substring matching.
func ClassifyIssue(text string) Classification {
	lower := strings.ToLower(text)

	return Classification{
		Type:     classifyType(lower),
		Priority: classifyPriority(lower),
		Topics:   detectTopics(lower),
		Summary:  summarize(text),
	}
}

func classifyType(lower string) IssueType {
	switch {
	case containsAny(lower, bugKeywords):
		return IssueTypeBug
	case containsAny(lower, featureKeywords):
		return IssueTypeFeature
	default:
		return IssueTypeQuestion
	}
}

func classifyPriority(lower string) Priority {
	switch {
	case containsAny(lower, highKeywords):
		return PriorityHigh
	case containsAny(lower, lowKeywords):
		return PriorityLow
	default:
		return PriorityMedium
	}
}

func detectTopics(lower string) []string {
	topics := []string{}
	for _, rule := range topicRules {
		if strings.Contains(lower, rule.keyword) {
			topics = appendTopic(topics, rule.label)
		}
	}
	return topics
}

// appendTopic adds label unless it is already present.
func appendTopic(topics []string, label string) []string {
	for _, t := range topics {
		if t == label {
			return topics
		}
	}
	return append(topics, label)
}

// canonicalTopic maps a label of any casing onto the vocabulary's display
// casing. ok is false for labels outside the vocabulary.
func canonicalTopic(label string) (string, bool) {
	for _, rule := range topicRules {
		if strings.EqualFold(strings.TrimSpace(label), rule.label) {
			return rule.label, true
		}
	}
	return "", false
}

func summarize(text string) string {
	if utf8.RuneCountInString(text) <= summaryMaxLen {
		return text
	}
	runes := []rune(text)
	return string(runes[:summaryMaxLen]) + "..."
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}
