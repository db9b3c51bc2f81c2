package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/tidwall/gjson"
)

// ChatClient sends widget messages to a chat backend over HTTP. It implements the widget Backend
// interface with a single POST per message and no retries.
type ChatClient struct {
	endpoint string

	client *http.Client

	logger *slog.Logger
}

type chatRequest struct {
	Message string `json:"message"`
}

var (
	// ErrExchangeFailed wraps every failure of a ChatClient round trip.
	ErrExchangeFailed = errors.New("exchange failed")
	// ErrMissingReply is returned when the backend answers with JSON that has no string reply field.
	ErrMissingReply = errors.New("response has no reply")
)

// NewChatClient creates a ChatClient posting to endpoint, the full URL of the backend chat route. A nil
// client means http.DefaultClient's settings: no timeout of its own.
func NewChatClient(endpoint string, client *http.Client, logger *slog.Logger) ChatClient {
	if client == nil {
		client = &http.Client{}
	}
	return ChatClient{
		endpoint: endpoint,
		client:   client,
		logger:   logger.With(slog.String("module", "chatclient")),
	}
}

// Send posts {"message": message} and returns the reply field of the JSON response. Transport errors,
// non-2xx statuses, bodies that are not JSON and bodies without a string reply all return an error
// wrapping ErrExchangeFailed.
func (c ChatClient) Send(ctx context.Context, message string) (string, error) {
	body, err := json.Marshal(chatRequest{Message: message})
	if err != nil {
		return "", fmt.Errorf("%w: error marshaling request: %w", ErrExchangeFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: error creating request: %w", ErrExchangeFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: error sending request: %w", ErrExchangeFailed, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: error reading response: %w", ErrExchangeFailed, err)
	}

	c.logger.Debug("Response",
		slog.Int("status", resp.StatusCode),
		slog.String("body", string(respBody)))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("%w: unexpected status code: %d, body: %s", ErrExchangeFailed, resp.StatusCode, respBody)
	}

	if !gjson.ValidBytes(respBody) {
		return "", fmt.Errorf("%w: response is not valid JSON: %s", ErrExchangeFailed, respBody)
	}

	reply := gjson.GetBytes(respBody, "reply")
	if reply.Type != gjson.String {
		return "", fmt.Errorf("%w: %w", ErrExchangeFailed, ErrMissingReply)
	}

	return reply.String(), nil
}
