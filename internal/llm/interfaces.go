// Package llm provides chat-completion clients for the model service.
package llm

import (
	"context"
	"errors"
)

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ErrEmptyResponse is returned when the model answers with no choices or no text.
var ErrEmptyResponse = errors.New("llm: empty response from model")

// Message is one turn of a chat exchange.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest asks for one completion of Messages from Model.
type ChatRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
}

// Choice is one completion candidate.
type Choice struct {
	Message Message `json:"message"`
}

// ChatResponse holds the completion candidates in model order.
type ChatResponse struct {
	Choices []Choice `json:"choices"`
}

// ChatCompleter is the model service contract consumed by the classification engine.
type ChatCompleter interface {
	CreateChatCompletion(ctx context.Context, req ChatRequest) (*ChatResponse, error)
}

// FirstContent returns the text of the first choice, or ErrEmptyResponse.
func FirstContent(resp *ChatResponse) (string, error) {
	if resp == nil || len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	content := resp.Choices[0].Message.Content
	if content == "" {
		return "", ErrEmptyResponse
	}
	return content, nil
}
