package llm

import (
	"context"
	"fmt"
	"log/slog"

	openai "github.com/sashabaranov/go-openai"
)

// completionAPI is the slice of the OpenAI client the completer uses;
// narrowed for test substitution.
type completionAPI interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAICompleter is a Completer backed by the OpenAI chat completion
// API. One instance is bound to one model; the planner and implementer
// stages each get their own.
type OpenAICompleter struct {
	client      completionAPI
	model       string
	temperature float32
	maxTokens   int
	logger      *slog.Logger
}

func NewOpenAICompleter(apiKey, model string, logger *slog.Logger) *OpenAICompleter {
	return &OpenAICompleter{
		client:      openai.NewClient(apiKey),
		model:       model,
		temperature: 0,
		maxTokens:   8192,
		logger:      logger,
	}
}

// Complete sends one chat completion request. An empty choice list is
// an error; empty message content is returned to the caller, whose
// stage decides what an empty result means.
func (c *OpenAICompleter) Complete(ctx context.Context, prompt, system string) (string, error) {
	c.logger.Debug("requesting completion", "model", c.model, "prompt_bytes", len(prompt))

	req := openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("completion request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("completion returned no choices")
	}

	content := resp.Choices[0].Message.Content
	c.logger.Debug("received completion", "model", c.model, "finish_reason", resp.Choices[0].FinishReason, "bytes", len(content))
	return content, nil
}
