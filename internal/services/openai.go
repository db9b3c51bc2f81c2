package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/MegaGrindStone/chat-widget/internal/models"
	goopenai "github.com/sashabaranov/go-openai"
)

// OpenAI provides an implementation of the LLM interface for OpenAI's chat completion API and any
// service compatible with it, such as OpenRouter, selected through the base URL.
type OpenAI struct {
	model        string
	systemPrompt string

	params LLMParameters

	client *goopenai.Client

	logger *slog.Logger
}

// NewOpenAI creates a new OpenAI instance with the specified API key, base URL, model name, and system
// prompt. An empty baseURL keeps the client's default endpoint.
func NewOpenAI(apiKey, baseURL, model, systemPrompt string, params LLMParameters, logger *slog.Logger) OpenAI {
	cfg := goopenai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}

	return OpenAI{
		model:        model,
		systemPrompt: systemPrompt,
		params:       params,
		client:       goopenai.NewClientWithConfig(cfg),
		logger:       logger.With(slog.String("module", "openai")),
	}
}

// Reply asks the chat completion API for an answer to message, given the conversation history.
func (o OpenAI) Reply(ctx context.Context, history []models.Exchange, message string) (string, error) {
	req := o.chatRequest(models.Turns(o.systemPrompt, history, message))

	reqJSON, err := json.Marshal(req)
	if err == nil {
		o.logger.Debug("Request", slog.String("req", string(reqJSON)))
	}

	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("error sending request: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}

	return resp.Choices[0].Message.Content, nil
}

func (o OpenAI) chatRequest(turns []models.Turn) goopenai.ChatCompletionRequest {
	msgs := make([]goopenai.ChatCompletionMessage, len(turns))
	for i, turn := range turns {
		msgs[i] = goopenai.ChatCompletionMessage{
			Role:    string(turn.Role),
			Content: turn.Content,
		}
	}

	req := goopenai.ChatCompletionRequest{
		Model:    o.model,
		Messages: msgs,
	}
	if o.params.Temperature != nil {
		req.Temperature = *o.params.Temperature
	}
	if o.params.TopP != nil {
		req.TopP = *o.params.TopP
	}
	if o.params.Stop != nil {
		req.Stop = o.params.Stop
	}
	return req
}
