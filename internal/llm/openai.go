package llm

import (
	"context"
	"fmt"
	"net/http"
	"time"

	pkgerrors "github.com/pkg/errors"
	openai "github.com/sashabaranov/go-openai"
)

// OpenAIConfig configures an OpenAI-compatible chat-completions endpoint.
type OpenAIConfig struct {
	BaseURL string // e.g. https://api.openai.com/v1
	APIKey  string
	Timeout time.Duration // Default: 2 minutes

	HTTPClient *http.Client
}

// OpenAIClient is the ChatCompleter for OpenAI-compatible servers.
type OpenAIClient struct {
	client *openai.Client
}

var _ ChatCompleter = (*OpenAIClient)(nil)

// NewOpenAIClient creates a new OpenAI-compatible client. An empty BaseURL
// uses the OpenAI API.
func NewOpenAIClient(config OpenAIConfig) *OpenAIClient {
	httpClient := config.HTTPClient
	if httpClient == nil {
		timeout := config.Timeout
		if timeout == 0 {
			timeout = 2 * time.Minute
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	cfg := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		cfg.BaseURL = config.BaseURL
	}
	cfg.HTTPClient = httpClient

	return &OpenAIClient{client: openai.NewClientWithConfig(cfg)}
}

// CreateChatCompletion requests a single completion from /chat/completions.
func (o *OpenAIClient) CreateChatCompletion(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		messages = append(messages, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    req.Model,
		Messages: messages,
		N:        1,
	})
	if err != nil {
		return nil, pkgerrors.WithStack(fmt.Errorf("CreateChatCompletion: %w", err))
	}

	out := &ChatResponse{Choices: make([]Choice, 0, len(resp.Choices))}
	for _, c := range resp.Choices {
		out.Choices = append(out.Choices, Choice{Message: Message{Role: c.Message.Role, Content: c.Message.Content}})
	}
	return out, nil
}
