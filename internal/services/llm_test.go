package services_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/MegaGrindStone/chat-widget/internal/models"
	"github.com/MegaGrindStone/chat-widget/internal/services"
)

type llm interface {
	Reply(ctx context.Context, history []models.Exchange, message string) (string, error)
}

type wireMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

var history = []models.Exchange{
	{ID: "1", Message: "What is the 50/30/20 rule?", Reply: "A budgeting rule."},
}

func TestProvidersReply(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		response   string
		newLLM     func(url string) (llm, error)
		wantSystem bool
	}{
		{
			name:     "Ollama",
			path:     "/api/chat",
			response: `{"model":"gemma3:1b","message":{"role":"assistant","content":"Save 20 percent."},"done":true}`,
			newLLM: func(url string) (llm, error) {
				return services.NewOllama(url, "gemma3:1b", "be brief", services.LLMParameters{})
			},
			wantSystem: true,
		},
		{
			name:     "OpenAI",
			path:     "/v1/chat/completions",
			response: `{"id":"x","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"Save 20 percent."},"finish_reason":"stop"}]}`,
			newLLM: func(url string) (llm, error) {
				return services.NewOpenAI("key", url+"/v1", "gpt-4o-mini", "be brief", services.LLMParameters{},
					slog.New(slog.NewTextHandler(io.Discard, nil))), nil
			},
			wantSystem: true,
		},
		{
			name:     "Anthropic",
			path:     "/v1/messages",
			response: `{"content":[{"type":"text","text":"Save "},{"type":"text","text":"20 percent."}]}`,
			newLLM: func(url string) (llm, error) {
				return services.NewAnthropic("key", url+"/v1", "claude", "be brief", 256, services.LLMParameters{}), nil
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got struct {
				Messages []wireMessage `json:"messages"`
				System   string        `json:"system"`
			}
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != tt.path {
					t.Errorf("path = %q, want %q", r.URL.Path, tt.path)
				}
				if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
					t.Errorf("failed to decode request: %v", err)
				}
				w.Header().Set("Content-Type", "application/json")
				_, _ = io.WriteString(w, tt.response)
			}))
			defer srv.Close()

			l, err := tt.newLLM(srv.URL)
			if err != nil {
				t.Fatal(err)
			}

			reply, err := l.Reply(context.Background(), history, "How much should I save?")
			if err != nil {
				t.Fatalf("Reply() error = %v", err)
			}
			if reply != "Save 20 percent." {
				t.Errorf("Reply() = %q, want %q", reply, "Save 20 percent.")
			}

			want := []wireMessage{
				{Role: "user", Content: "What is the 50/30/20 rule?"},
				{Role: "assistant", Content: "A budgeting rule."},
				{Role: "user", Content: "How much should I save?"},
			}
			if tt.wantSystem {
				want = append([]wireMessage{{Role: "system", Content: "be brief"}}, want...)
			} else if got.System != "be brief" {
				t.Errorf("system = %q, want %q", got.System, "be brief")
			}
			if len(got.Messages) != len(want) {
				t.Fatalf("messages = %+v, want %+v", got.Messages, want)
			}
			for i := range want {
				if got.Messages[i] != want[i] {
					t.Errorf("messages[%d] = %+v, want %+v", i, got.Messages[i], want[i])
				}
			}
		})
	}
}

func TestAnthropicError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"type":"error","error":{"type":"authentication_error","message":"invalid x-api-key"}}`)
	}))
	defer srv.Close()

	a := services.NewAnthropic("bad", srv.URL, "claude", "", 256, services.LLMParameters{})
	if _, err := a.Reply(context.Background(), nil, "Hi"); err == nil {
		t.Fatal("Reply() error = nil, want error")
	}
}

func TestNewOllamaInvalidHost(t *testing.T) {
	if _, err := services.NewOllama("://bad", "m", "", services.LLMParameters{}); err == nil {
		t.Fatal("NewOllama() error = nil, want error")
	}
}
