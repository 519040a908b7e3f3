package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	openai "github.com/sashabaranov/go-openai"
)

func TestFirstContent(t *testing.T) {
	tests := []struct {
		name    string
		resp    *ChatResponse
		want    string
		wantErr bool
	}{
		{name: "nil response", resp: nil, wantErr: true},
		{name: "no choices", resp: &ChatResponse{}, wantErr: true},
		{name: "empty content", resp: &ChatResponse{Choices: []Choice{{Message: Message{Content: ""}}}}, wantErr: true},
		{name: "first choice wins", resp: &ChatResponse{Choices: []Choice{
			{Message: Message{Content: "Groceries"}},
			{Message: Message{Content: "Fuel"}},
		}}, want: "Groceries"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FirstContent(tt.resp)
			if (err != nil) != tt.wantErr {
				t.Fatalf("FirstContent() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && !errors.Is(err, ErrEmptyResponse) {
				t.Errorf("FirstContent() error = %v, want ErrEmptyResponse", err)
			}
			if got != tt.want {
				t.Errorf("FirstContent() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestToGeminiContents(t *testing.T) {
	system, contents := toGeminiContents([]Message{
		{Role: RoleSystem, Content: "be terse"},
		{Role: RoleUser, Content: "classify this"},
		{Role: RoleAssistant, Content: "Groceries"},
	})

	if system != "be terse" {
		t.Errorf("system = %q", system)
	}
	if len(contents) != 2 {
		t.Fatalf("got %d contents, want 2", len(contents))
	}
	if contents[0].Role != "user" || contents[0].Parts[0].Text != "classify this" {
		t.Errorf("user content = %+v", contents[0])
	}
	if contents[1].Role != "model" {
		t.Errorf("assistant turn should map to model role, got %q", contents[1].Role)
	}
}

func TestOpenAIClient_CreateChatCompletion(t *testing.T) {
	var got struct {
		Model    string    `json:"model"`
		Messages []Message `json:"messages"`
		N        int       `json:"n"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" || r.Header.Get("Authorization") != "Bearer k" {
			w.WriteHeader(http.StatusUnauthorized)
			io.WriteString(w, `{"error":{"message":"bad key"}}`)
			return
		}
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		io.WriteString(w, `{"choices":[{"message":{"role":"assistant","content":"  Groceries\n"}}]}`)
	}))
	defer srv.Close()

	client := NewOpenAIClient(OpenAIConfig{BaseURL: srv.URL, APIKey: "k"})
	resp, err := client.CreateChatCompletion(context.Background(), ChatRequest{
		Model: "gpt-4o-mini",
		Messages: []Message{
			{Role: RoleSystem, Content: "sys"},
			{Role: RoleUser, Content: "usr"},
		},
	})
	if err != nil {
		t.Fatalf("CreateChatCompletion() error = %v", err)
	}

	content, err := FirstContent(resp)
	if err != nil {
		t.Fatalf("FirstContent() error = %v", err)
	}
	if content != "  Groceries\n" {
		t.Errorf("content = %q, want untrimmed model text", content)
	}
	if got.Model != "gpt-4o-mini" || got.N != 1 || len(got.Messages) != 2 {
		t.Errorf("request = %+v", got)
	}
	if got.Messages[0].Role != RoleSystem || got.Messages[1].Content != "usr" {
		t.Errorf("messages = %+v", got.Messages)
	}
}

func TestOpenAIClient_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		io.WriteString(w, `{"error":{"message":"rate limited"}}`)
	}))
	defer srv.Close()

	client := NewOpenAIClient(OpenAIConfig{BaseURL: srv.URL, APIKey: "k"})
	_, err := client.CreateChatCompletion(context.Background(), ChatRequest{Model: "m"})
	if err == nil || !strings.Contains(err.Error(), "rate limited") {
		t.Errorf("CreateChatCompletion() error = %v, want rate limited", err)
	}
}

func TestOpenAIClient_MalformedPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `not json`)
	}))
	defer srv.Close()

	client := NewOpenAIClient(OpenAIConfig{BaseURL: srv.URL, APIKey: "k"})
	if _, err := client.CreateChatCompletion(context.Background(), ChatRequest{Model: "m"}); err == nil {
		t.Error("expected error for malformed payload")
	}
}

func TestOpenAIClient_APIErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		io.WriteString(w, `{"error":{"message":"bad key","type":"invalid_request_error"}}`)
	}))
	defer srv.Close()

	client := NewOpenAIClient(OpenAIConfig{BaseURL: srv.URL, APIKey: "wrong"})
	_, err := client.CreateChatCompletion(context.Background(), ChatRequest{Model: "m"})

	var apiErr *openai.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("CreateChatCompletion() error = %v, want *openai.APIError", err)
	}
	if apiErr.HTTPStatusCode != http.StatusUnauthorized || apiErr.Message != "bad key" {
		t.Errorf("APIError = %+v", apiErr)
	}
}
