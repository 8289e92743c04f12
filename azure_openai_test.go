package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	openai "github.com/sashabaranov/go-openai"
)

func TestRemoteModelConfigEnabled(t *testing.T) {
	tests := []struct {
		name   string
		config RemoteModelConfig
		want   bool
	}{
		{"empty", RemoteModelConfig{}, false},
		{"key only", RemoteModelConfig{APIKey: "k"}, false},
		{"endpoint only", RemoteModelConfig{Endpoint: "https://example.openai.azure.com"}, false},
		{"blank key", RemoteModelConfig{APIKey: "  ", Endpoint: "https://example.openai.azure.com"}, false},
		{"both", RemoteModelConfig{APIKey: "k", Endpoint: "https://example.openai.azure.com"}, true},
	}

	for _, tt := range tests {
		if got := tt.config.Enabled(); got != tt.want {
			t.Errorf("%s: Enabled() = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestAzureOpenAIClientComplete(t *testing.T) {
	var gotPath, gotQuery, gotKey string
	var gotBody openai.ChatCompletionRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.Query().Get("api-version")
		gotKey = r.Header.Get("api-key")
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &gotBody)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"choices": [{"message": {"role": "assistant", "content": "{\"type\":\"bug\"}"}}],
			"usage": {"prompt_tokens": 12, "completion_tokens": 5}
		}`))
	}))
	defer server.Close()

	client := NewAzureOpenAIClient(RemoteModelConfig{
		APIKey:   "secret",
		Endpoint: server.URL + "/",
	}, server.Client(), newTestLogger(nil))

	content, err := client.Complete(context.Background(), "system", "user prompt")
	if err != nil {
		t.Fatalf("Complete() unexpected error: %v", err)
	}
	if content != `{"type":"bug"}` {
		t.Errorf("content = %q", content)
	}
	if gotPath != "/openai/deployments/gpt-35-turbo/chat/completions" {
		t.Errorf("path = %q", gotPath)
	}
	if gotQuery != defaultAPIVersion {
		t.Errorf("api-version = %q, want %q", gotQuery, defaultAPIVersion)
	}
	if gotKey != "secret" {
		t.Errorf("api-key header = %q", gotKey)
	}
	if gotBody.Model != defaultDeploymentName {
		t.Errorf("model = %q, want %q", gotBody.Model, defaultDeploymentName)
	}
	if len(gotBody.Messages) != 2 || gotBody.Messages[0].Role != "system" || gotBody.Messages[1].Content != "user prompt" {
		t.Errorf("unexpected messages: %+v", gotBody.Messages)
	}
}

func TestAzureOpenAIClientCustomDeployment(t *testing.T) {
	var gotPath, gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.Query().Get("api-version")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}]}`))
	}))
	defer server.Close()

	client := NewAzureOpenAIClient(RemoteModelConfig{
		APIKey:         "k",
		Endpoint:       server.URL,
		APIVersion:     "2023-05-15",
		DeploymentName: "gpt-4o",
	}, server.Client(), newTestLogger(nil))

	if _, err := client.Complete(context.Background(), "s", "u"); err != nil {
		t.Fatalf("Complete() unexpected error: %v", err)
	}
	if gotPath != "/openai/deployments/gpt-4o/chat/completions" {
		t.Errorf("path = %q", gotPath)
	}
	if gotQuery != "2023-05-15" {
		t.Errorf("api-version = %q", gotQuery)
	}
}

func TestAzureOpenAIClientErrors(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantStatus int
		wantBody   string
	}{
		{"unauthorized", http.StatusUnauthorized, `{"error":{"code":"401","message":"Access denied"}}`, http.StatusUnauthorized, "Access denied"},
		{"server error", http.StatusInternalServerError, "boom", http.StatusInternalServerError, ""},
		{"error object with 200", http.StatusOK, `{"error":{"code":"content_filter","message":"filtered"}}`, 0, ""},
		{"no choices", http.StatusOK, `{"choices":[]}`, 0, ""},
		{"not JSON", http.StatusOK, `<html>`, 0, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client := NewAzureOpenAIClient(RemoteModelConfig{APIKey: "k", Endpoint: server.URL}, server.Client(), newTestLogger(nil))
			_, err := client.Complete(context.Background(), "s", "u")
			if err == nil {
				t.Fatal("Complete() expected error, got nil")
			}

			var completionErr *CompletionError
			if tt.wantStatus != 0 {
				if !errors.As(err, &completionErr) {
					t.Fatalf("error = %v, want *CompletionError", err)
				}
				if completionErr.StatusCode != tt.wantStatus {
					t.Errorf("StatusCode = %d, want %d", completionErr.StatusCode, tt.wantStatus)
				}
				if tt.wantBody != "" && completionErr.Body != tt.wantBody {
					t.Errorf("Body = %q, want %q", completionErr.Body, tt.wantBody)
				}
			} else if errors.As(err, &completionErr) {
				t.Errorf("unexpected *CompletionError for a 2xx response: %v", err)
			}
		})
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		input    string
		maxLen   int
		expected string
	}{
		{"short", 10, "short"},
		{"this is a very long string", 10, "this is..."},
		{"exact", 5, "exact"},
		{strings.Repeat("x", 600), maxErrorBodyLen, strings.Repeat("x", maxErrorBodyLen-3) + "..."},
		{"ошибка сервера", 8, "ошибк..."},
		{strings.Repeat("é", 600), maxErrorBodyLen, strings.Repeat("é", maxErrorBodyLen-3) + "..."},
	}

	for _, tt := range tests {
		result := truncate(tt.input, tt.maxLen)
		if result != tt.expected {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.input, tt.maxLen, result, tt.expected)
		}
		if !utf8.ValidString(result) {
			t.Errorf("truncate(%q, %d) split a UTF-8 sequence", tt.input, tt.maxLen)
		}
	}
}
