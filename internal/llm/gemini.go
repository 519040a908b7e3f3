package llm

import (
	"context"
	"fmt"
	"strings"

	pkgerrors "github.com/pkg/errors"
	"google.golang.org/genai"
)

// GeminiClient is the ChatCompleter backed by the Gemini API.
type GeminiClient struct {
	client *genai.Client
}

var _ ChatCompleter = (*GeminiClient)(nil)

// NewGeminiClient creates a Gemini client authenticated with apiKey.
func NewGeminiClient(ctx context.Context, apiKey string) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("NewGeminiClient: create genai client: %w", err)
	}
	return &GeminiClient{client: client}, nil
}

// CreateChatCompletion sends system messages as the system instruction and
// the remaining turns as contents, requesting a single candidate.
func (g *GeminiClient) CreateChatCompletion(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	system, contents := toGeminiContents(req.Messages)
	if len(contents) == 0 {
		return nil, fmt.Errorf("CreateChatCompletion: no user messages")
	}

	cfg := &genai.GenerateContentConfig{
		CandidateCount: 1,
	}
	if system != "" {
		cfg.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: system}},
		}
	}

	resp, err := g.client.Models.GenerateContent(ctx, req.Model, contents, cfg)
	if err != nil {
		return nil, pkgerrors.WithStack(fmt.Errorf("CreateChatCompletion: generate content: %w", err))
	}

	out := &ChatResponse{}
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		var text strings.Builder
		for _, part := range cand.Content.Parts {
			if part != nil && !part.Thought {
				text.WriteString(part.Text)
			}
		}
		out.Choices = append(out.Choices, Choice{
			Message: Message{Role: RoleAssistant, Content: text.String()},
		})
	}
	return out, nil
}

// toGeminiContents joins system messages into one instruction and maps the
// other turns onto Gemini roles.
func toGeminiContents(messages []Message) (string, []*genai.Content) {
	var system []string
	var contents []*genai.Content

	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			system = append(system, m.Content)
		case RoleAssistant:
			contents = append(contents, &genai.Content{
				Role:  "model",
				Parts: []*genai.Part{{Text: m.Content}},
			})
		default:
			contents = append(contents, &genai.Content{
				Role:  "user",
				Parts: []*genai.Part{{Text: m.Content}},
			})
		}
	}

	return strings.Join(system, "\n\n"), contents
}
