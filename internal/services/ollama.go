package services

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/MegaGrindStone/chat-widget/internal/models"
	"github.com/ollama/ollama/api"
)

// Ollama provides an implementation of the LLM interface for interacting with Ollama's language models.
// It manages the connection to an Ollama server instance and asks for complete, non-streamed replies.
type Ollama struct {
	host         string
	model        string
	systemPrompt string

	params LLMParameters

	client *api.Client
}

// NewOllama creates a new Ollama instance with the specified host URL and model name. The host
// parameter should be a valid URL pointing to an Ollama server.
func NewOllama(host, model, systemPrompt string, params LLMParameters) (Ollama, error) {
	u, err := url.Parse(host)
	if err != nil {
		return Ollama{}, fmt.Errorf("invalid ollama host %q: %w", host, err)
	}

	return Ollama{
		host:         host,
		model:        model,
		systemPrompt: systemPrompt,
		params:       params,
		client:       api.NewClient(u, &http.Client{}),
	}, nil
}

// Reply sends the system prompt, the conversation history and the new message to the model and returns
// the complete answer. The context can be used to cancel the request.
func (o Ollama) Reply(ctx context.Context, history []models.Exchange, message string) (string, error) {
	turns := models.Turns(o.systemPrompt, history, message)
	msgs := make([]api.Message, len(turns))
	for i, turn := range turns {
		msgs[i] = api.Message{
			Role:    string(turn.Role),
			Content: turn.Content,
		}
	}

	f := false
	req := api.ChatRequest{
		Model:    o.model,
		Messages: msgs,
		Stream:   &f,
		Options:  o.options(),
	}

	var reply string
	if err := o.client.Chat(ctx, &req, func(res api.ChatResponse) error {
		reply += res.Message.Content
		return nil
	}); err != nil {
		return "", fmt.Errorf("error sending request: %w", err)
	}

	return reply, nil
}

func (o Ollama) options() map[string]any {
	opts := map[string]any{}
	if o.params.Temperature != nil {
		opts["temperature"] = *o.params.Temperature
	}
	if o.params.TopP != nil {
		opts["top_p"] = *o.params.TopP
	}
	if len(o.params.Stop) > 0 {
		opts["stop"] = o.params.Stop
	}
	if len(opts) == 0 {
		return nil
	}
	return opts
}
