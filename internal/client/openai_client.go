package client

import (
	"context"
	"fmt"

	"github.com/sashabaranov/go-openai"
)

// DefaultModel is used when no model is configured
const DefaultModel = "gpt-4"

// OpenAIClient is the text generation collaborator backed by the OpenAI chat
// completions API. It sets no timeout of its own; callers bound it through ctx.
type OpenAIClient struct {
	client *openai.Client
	model  string
}

// NewOpenAIClient creates a new OpenAI client. An empty apiKey yields a client
// whose calls fail without reaching the network. baseURL overrides the API
// endpoint (OpenAI-compatible gateways, tests).
func NewOpenAIClient(apiKey, baseURL, model string) *OpenAIClient {
	if model == "" {
		model = DefaultModel
	}
	c := &OpenAIClient{model: model}
	if apiKey == "" {
		return c
	}

	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	c.client = openai.NewClientWithConfig(cfg)
	return c
}

// GenerateText sends one system and one user message and returns the reply
func (c *OpenAIClient) GenerateText(ctx context.Context, systemPrompt, userPrompt string, temperature float32) (string, error) {
	return c.complete(ctx, []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
		{Role: openai.ChatMessageRoleUser, Content: userPrompt},
	}, temperature)
}

// Chat sends the system prompt followed by the whole conversation
func (c *OpenAIClient) Chat(ctx context.Context, systemPrompt string, history []ChatTurn, temperature float32) (string, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(history)+1)
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: systemPrompt})
	for _, turn := range history {
		messages = append(messages, openai.ChatCompletionMessage{Role: turn.Role, Content: turn.Content})
	}
	return c.complete(ctx, messages, temperature)
}

func (c *OpenAIClient) complete(ctx context.Context, messages []openai.ChatCompletionMessage, temperature float32) (string, error) {
	if c.client == nil {
		return "", fmt.Errorf("OpenAI API key is not configured")
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: temperature,
	})
	if err != nil {
		return "", fmt.Errorf("error communicating with OpenAI: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("OpenAI returned no choices")
	}

	return resp.Choices[0].Message.Content, nil
}
