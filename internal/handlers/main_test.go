package handlers_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MegaGrindStone/chat-widget/internal/handlers"
	"github.com/MegaGrindStone/chat-widget/internal/models"
)

type mockLLM struct {
	reply string
	err   error

	mu      sync.Mutex
	history [][]models.Exchange
}

type mockStore struct {
	mu        sync.Mutex
	exchanges []models.Exchange
	err       error
}

type mockBackend struct {
	reply string
	err   error
}

func TestHandleChat(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		body       string
		llm        *mockLLM
		wantStatus int
		wantReply  string
	}{
		{
			name:       "Invalid method",
			method:     http.MethodGet,
			llm:        &mockLLM{},
			wantStatus: http.StatusMethodNotAllowed,
		},
		{
			name:       "Invalid body",
			method:     http.MethodPost,
			body:       "message=hello",
			llm:        &mockLLM{},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "Empty message",
			method:     http.MethodPost,
			body:       `{"message": "   "}`,
			llm:        &mockLLM{},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "LLM failure",
			method:     http.MethodPost,
			body:       `{"message": "Hi"}`,
			llm:        &mockLLM{err: errors.New("model not loaded")},
			wantStatus: http.StatusInternalServerError,
		},
		{
			name:       "Reply",
			method:     http.MethodPost,
			body:       `{"message": "Hi"}`,
			llm:        &mockLLM{reply: "hello"},
			wantStatus: http.StatusOK,
			wantReply:  "hello",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := handlers.NewAssistant(tt.llm, &mockStore{}, 20, discardLogger())

			req := httptest.NewRequest(tt.method, "/chat", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()

			a.HandleChat(w, req)

			if w.Code != tt.wantStatus {
				t.Fatalf("HandleChat() status = %v, want %v", w.Code, tt.wantStatus)
			}
			if tt.wantStatus != http.StatusOK {
				return
			}

			var res struct {
				Reply string `json:"reply"`
			}
			if err := json.NewDecoder(w.Body).Decode(&res); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if res.Reply != tt.wantReply {
				t.Errorf("HandleChat() reply = %q, want %q", res.Reply, tt.wantReply)
			}
		})
	}
}

func TestHandleChatKeepsConversation(t *testing.T) {
	llm := &mockLLM{reply: "ok"}
	store := &mockStore{}
	a := handlers.NewAssistant(llm, store, 2, discardLogger())

	for _, msg := range []string{"one", "two", "three"} {
		req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(`{"message": "`+msg+`"}`))
		w := httptest.NewRecorder()
		a.HandleChat(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("HandleChat(%q) status = %v", msg, w.Code)
		}
	}

	if len(store.exchanges) != 3 {
		t.Fatalf("stored exchanges = %d, want 3", len(store.exchanges))
	}
	if len(llm.history) != 3 {
		t.Fatalf("llm calls = %d, want 3", len(llm.history))
	}
	last := llm.history[2]
	if len(last) != 2 || last[0].Message != "one" || last[1].Message != "two" {
		t.Errorf("history of third call = %+v, want exchanges one and two", last)
	}

	req := httptest.NewRequest(http.MethodPost, "/chat/reset", nil)
	w := httptest.NewRecorder()
	a.HandleReset(w, req)
	if w.Code != http.StatusNoContent {
		t.Fatalf("HandleReset() status = %v, want %v", w.Code, http.StatusNoContent)
	}
	if len(store.exchanges) != 0 {
		t.Errorf("stored exchanges after reset = %d, want 0", len(store.exchanges))
	}
}

func TestNewWidget(t *testing.T) {
	wg, err := handlers.NewWidget(&mockBackend{}, handlers.WidgetOptions{}, discardLogger())
	if err != nil {
		t.Fatalf("NewWidget() error = %v", err)
	}

	if wg.Shutdown(context.Background()) != nil {
		t.Error("Shutdown() should not return error")
	}
}

func TestWidgetExchange(t *testing.T) {
	tests := []struct {
		name     string
		backend  *mockBackend
		markdown bool
		wantBody []string
	}{
		{
			name:     "Delivered",
			backend:  &mockBackend{reply: "hello <b>there</b>"},
			wantBody: []string{"message user fade-in", "Hi", "message bot fade-in", "hello &lt;b&gt;there&lt;/b&gt;"},
		},
		{
			name:     "Delivered markdown",
			backend:  &mockBackend{reply: "**bold**"},
			markdown: true,
			wantBody: []string{"<strong>bold</strong>"},
		},
		{
			name:     "Failed",
			backend:  &mockBackend{err: errors.New("connection refused")},
			wantBody: []string{"Sorry, something went wrong. Please try again."},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wg, err := handlers.NewWidget(tt.backend, handlers.WidgetOptions{Markdown: tt.markdown}, discardLogger())
			if err != nil {
				t.Fatal(err)
			}

			ctx, cancel := context.WithCancel(context.Background())
			done := make(chan struct{})
			go func() {
				defer close(done)
				_ = wg.Run(ctx)
			}()
			defer func() {
				cancel()
				<-done
				_ = wg.Shutdown(context.Background())
			}()

			req := httptest.NewRequest(http.MethodPost, "/widget/messages", strings.NewReader("message=+Hi+"))
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			w := httptest.NewRecorder()
			wg.HandleSubmit(w, req)
			if w.Code != http.StatusNoContent {
				t.Fatalf("HandleSubmit() status = %v, want %v", w.Code, http.StatusNoContent)
			}

			body := waitForBody(t, wg, "message bot fade-in")
			if strings.Contains(body, "loader-bubble") {
				t.Errorf("HandleHome() body still contains the pending indicator: %s", body)
			}
			if strings.Contains(body, "connection refused") {
				t.Errorf("HandleHome() body shows the raw error: %s", body)
			}
			for _, want := range tt.wantBody {
				if !strings.Contains(body, want) {
					t.Errorf("HandleHome() body = %v, want to contain %v", body, want)
				}
			}
		})
	}
}

func TestWidgetHandlers(t *testing.T) {
	wg, err := handlers.NewWidget(&mockBackend{reply: "hello"}, handlers.WidgetOptions{}, discardLogger())
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = wg.Shutdown(context.Background()) }()

	tests := []struct {
		name       string
		handler    http.HandlerFunc
		method     string
		url        string
		body       string
		wantStatus int
	}{
		{
			name:       "Submit invalid method",
			handler:    wg.HandleSubmit,
			method:     http.MethodGet,
			url:        "/widget/messages",
			wantStatus: http.StatusMethodNotAllowed,
		},
		{
			name:       "Submit blank message",
			handler:    wg.HandleSubmit,
			method:     http.MethodPost,
			url:        "/widget/messages",
			body:       "message=+++",
			wantStatus: http.StatusNoContent,
		},
		{
			name:       "Clear",
			handler:    wg.HandleClear,
			method:     http.MethodPost,
			url:        "/widget/clear",
			wantStatus: http.StatusNoContent,
		},
		{
			name:       "Clear invalid method",
			handler:    wg.HandleClear,
			method:     http.MethodGet,
			url:        "/widget/clear",
			wantStatus: http.StatusMethodNotAllowed,
		},
		{
			name:       "Home unknown path",
			handler:    wg.HandleHome,
			method:     http.MethodGet,
			url:        "/favicon.ico",
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "Home",
			handler:    wg.HandleHome,
			method:     http.MethodGet,
			url:        "/",
			wantStatus: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.url, strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			w := httptest.NewRecorder()

			tt.handler(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %v, want %v", w.Code, tt.wantStatus)
			}
		})
	}

	// The blank submit must not have produced any message.
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	wg.HandleHome(w, req)
	if strings.Contains(w.Body.String(), "fade-in") {
		t.Errorf("HandleHome() body = %v, want no messages", w.Body.String())
	}
	for _, id := range []string{`id="user-input"`, `id="chat-box"`, `id="send-btn"`} {
		if !strings.Contains(w.Body.String(), id) {
			t.Errorf("HandleHome() body missing %s", id)
		}
	}
}

func waitForBody(t *testing.T, wg handlers.Widget, want string) string {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		w := httptest.NewRecorder()
		wg.HandleHome(w, req)
		body := w.Body.String()
		if strings.Contains(body, want) {
			return body
		}
		if time.Now().After(deadline) {
			t.Fatalf("HandleHome() body = %v, want to contain %v", body, want)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func (m *mockLLM) Reply(_ context.Context, history []models.Exchange, _ string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history = append(m.history, history)
	if m.err != nil {
		return "", m.err
	}
	return m.reply, nil
}

func (m *mockStore) Exchanges(_ context.Context, limit int) ([]models.Exchange, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	exchanges := m.exchanges
	if limit > 0 && len(exchanges) > limit {
		exchanges = exchanges[len(exchanges)-limit:]
	}
	return append([]models.Exchange(nil), exchanges...), nil
}

func (m *mockStore) AddExchange(_ context.Context, ex models.Exchange) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return "", m.err
	}
	m.exchanges = append(m.exchanges, ex)
	return ex.ID, nil
}

func (m *mockStore) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.exchanges = nil
	return m.err
}

func (m *mockBackend) Send(_ context.Context, _ string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	return m.reply, nil
}
