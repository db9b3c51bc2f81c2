package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/MegaGrindStone/chat-widget/internal/models"
)

// Anthropic provides an interface to the Anthropic Messages API. It implements the LLM interface and
// asks for complete, non-streamed replies from Claude models.
type Anthropic struct {
	apiKey       string
	model        string
	systemPrompt string
	maxTokens    int

	params LLMParameters

	endpoint string

	client *http.Client
}

type anthropicChatRequest struct {
	Model       string             `json:"model"`
	Messages    []anthropicMessage `json:"messages"`
	System      string             `json:"system,omitempty"`
	MaxTokens   int                `json:"max_tokens,omitempty"`
	Temperature *float32           `json:"temperature,omitempty"`
	TopP        *float32           `json:"top_p,omitempty"`
	Stop        []string           `json:"stop_sequences,omitempty"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

type anthropicError struct {
	Type  string `json:"type"`
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

const (
	anthropicAPIEndpoint = "https://api.anthropic.com/v1"
)

// NewAnthropic creates a new Anthropic instance with the specified API key, model name, system prompt and
// maximum token limit. An empty endpoint uses the public API.
func NewAnthropic(apiKey, endpoint, model, systemPrompt string, maxTokens int, params LLMParameters) Anthropic {
	if endpoint == "" {
		endpoint = anthropicAPIEndpoint
	}
	return Anthropic{
		apiKey:       apiKey,
		model:        model,
		systemPrompt: systemPrompt,
		maxTokens:    maxTokens,
		endpoint:     strings.TrimSuffix(endpoint, "/"),
		params:       params,
		client:       &http.Client{},
	}
}

// Reply sends the conversation to the Messages API and returns the concatenated text blocks of the
// answer. The system prompt travels in the dedicated system field.
func (a Anthropic) Reply(ctx context.Context, history []models.Exchange, message string) (string, error) {
	turns := models.Turns("", history, message)
	msgs := make([]anthropicMessage, len(turns))
	for i, turn := range turns {
		msgs[i] = anthropicMessage{
			Role:    string(turn.Role),
			Content: turn.Content,
		}
	}

	reqBody := anthropicChatRequest{
		Model:       a.model,
		Messages:    msgs,
		System:      a.systemPrompt,
		MaxTokens:   a.maxTokens,
		Temperature: a.params.Temperature,
		TopP:        a.params.TopP,
		Stop:        a.params.Stop,
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("error marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint+"/messages", bytes.NewBuffer(jsonBody))
	if err != nil {
		return "", fmt.Errorf("error creating request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", a.apiKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	resp, err := a.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("error sending request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("error reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var e anthropicError
		if err := json.Unmarshal(body, &e); err != nil {
			return "", fmt.Errorf("unexpected status code: %d, body: %s", resp.StatusCode, body)
		}
		return "", fmt.Errorf("anthropic error %s: %s", e.Error.Type, e.Error.Message)
	}

	var res anthropicResponse
	if err := json.Unmarshal(body, &res); err != nil {
		return "", fmt.Errorf("error unmarshaling response: %w", err)
	}

	var sb strings.Builder
	for _, block := range res.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	return sb.String(), nil
}
