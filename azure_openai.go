package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	openai "github.com/sashabaranov/go-openai"
)

const (
	defaultDeploymentName = "gpt-35-turbo"
	defaultAPIVersion     = "2024-02-01"
	maxErrorBodyLen       = 512
)

// RemoteModelConfig holds the hosted model credentials. All fields are
// optional; remote analysis is only attempted when Enabled reports true.
type RemoteModelConfig struct {
	APIKey         string
	Endpoint       string
	APIVersion     string
	DeploymentName string
}

func (c RemoteModelConfig) Enabled() bool {
	return strings.TrimSpace(c.APIKey) != "" && strings.TrimSpace(c.Endpoint) != ""
}

func (c RemoteModelConfig) deployment() string {
	if strings.TrimSpace(c.DeploymentName) == "" {
		return defaultDeploymentName
	}
	return c.DeploymentName
}

func (c RemoteModelConfig) apiVersion() string {
	if strings.TrimSpace(c.APIVersion) == "" {
		return defaultAPIVersion
	}
	return c.APIVersion
}

// CompletionClient turns a prompt into a text completion.
type CompletionClient interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// CompletionError is returned for non-2xx responses from the completion
// endpoint.
type CompletionError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *CompletionError) Error() string {
	return fmt.Sprintf("completion endpoint returned HTTP %d: %s", e.StatusCode, e.Body)
}

func (e *CompletionError) Unwrap() error {
	return e.Err
}

// AzureOpenAIClient calls the Azure OpenAI chat completions API.
type AzureOpenAIClient struct {
	config RemoteModelConfig
	client *openai.Client
	logger *Logger
}

func NewAzureOpenAIClient(config RemoteModelConfig, httpClient *http.Client, logger *Logger) *AzureOpenAIClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	if logger == nil {
		logger = GetLogger()
	}

	deployment := config.deployment()
	clientConfig := openai.DefaultAzureConfig(strings.TrimSpace(config.APIKey), strings.TrimSpace(config.Endpoint))
	clientConfig.APIVersion = config.apiVersion()
	clientConfig.AzureModelMapperFunc = func(string) string {
		return deployment
	}
	clientConfig.HTTPClient = httpClient

	return &AzureOpenAIClient{
		config: config,
		client: openai.NewClientWithConfig(clientConfig),
		logger: logger,
	}
}

func (c *AzureOpenAIClient) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	c.logger.WithFields(map[string]interface{}{
		"deployment":  c.config.deployment(),
		"api_version": c.config.apiVersion(),
	}).Debug("Requesting completion from Azure OpenAI")

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.config.deployment(),
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
		Temperature: 0.3,
		MaxTokens:   500,
	})
	if err != nil {
		return "", completionError(err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices in completion response")
	}

	content := resp.Choices[0].Message.Content
	c.logger.Debug("Completion received: size=%d tokens_in=%d tokens_out=%d",
		len(content), resp.Usage.PromptTokens, resp.Usage.CompletionTokens)

	return content, nil
}

// completionError maps non-2xx responses onto *CompletionError and wraps
// everything else.
func completionError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode != 0 {
		return &CompletionError{StatusCode: apiErr.HTTPStatusCode, Body: truncate(apiErr.Message, maxErrorBodyLen), Err: err}
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		body := ""
		if reqErr.Err != nil {
			body = truncate(reqErr.Err.Error(), maxErrorBodyLen)
		}
		return &CompletionError{StatusCode: reqErr.HTTPStatusCode, Body: body, Err: err}
	}

	return fmt.Errorf("azure openai request: %w", err)
}

// truncate shortens s to at most maxLen runes.
func truncate(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	runes := []rune(s)
	return string(runes[:maxLen-3]) + "..."
}
