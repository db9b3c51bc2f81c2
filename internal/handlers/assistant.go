package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/MegaGrindStone/chat-widget/internal/models"
	"github.com/google/uuid"
)

// Assistant is the chat backend the widget posts to. Each request is answered by the LLM with the stored
// conversation as context, and the answered exchange is appended to the store.
type Assistant struct {
	llm          LLM
	store        Store
	historyLimit int

	// mu keeps reading the history and appending the answer atomic across requests.
	mu *sync.Mutex

	logger *slog.Logger
}

type chatRequest struct {
	Message string `json:"message"`
}

type chatResponse struct {
	Reply string `json:"reply"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// NewAssistant creates an Assistant answering with llm and remembering the conversation in store.
// historyLimit bounds how many previous exchanges are replayed; zero or less replays all of them.
func NewAssistant(llm LLM, store Store, historyLimit int, logger *slog.Logger) Assistant {
	return Assistant{
		llm:          llm,
		store:        store,
		historyLimit: historyLimit,
		mu:           &sync.Mutex{},
		logger:       logger.With(slog.String("module", "assistant")),
	}
}

// HandleChat answers a POST with a JSON body {"message": "..."} with {"reply": "..."}.
//
// Invalid methods get 405, bodies that are not JSON or carry an empty message get 400, and failures of
// the LLM or the store get 500 with {"error": "..."}.
func (a Assistant) HandleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		a.logger.Error("Method not allowed", slog.String("method", r.Method))
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.logger.Error("Failed to decode request", slog.String(errLoggerKey, err.Error()))
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	msg := strings.TrimSpace(req.Message)
	if msg == "" {
		a.logger.Error("Message is required")
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "message is required"})
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	history, err := a.store.Exchanges(r.Context(), a.historyLimit)
	if err != nil {
		a.logger.Error("Failed to get exchanges", slog.String(errLoggerKey, err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}

	reply, err := a.llm.Reply(r.Context(), history, msg)
	if err != nil {
		a.logger.Error("Error from llm provider",
			slog.String("message", msg),
			slog.String(errLoggerKey, err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}

	ex := models.Exchange{
		ID:        uuid.New().String(),
		Message:   msg,
		Reply:     reply,
		Timestamp: time.Now(),
	}
	if _, err := a.store.AddExchange(r.Context(), ex); err != nil {
		// Reply anyway; only the context for later questions is lost.
		a.logger.Error("Failed to add exchange",
			slog.String("exchangeID", ex.ID),
			slog.String(errLoggerKey, err.Error()))
	}

	a.logger.Debug("Reply", slog.String("message", msg), slog.String("reply", reply))

	writeJSON(w, http.StatusOK, chatResponse{Reply: reply})
}

// HandleReset forgets the stored conversation. It only accepts POST and answers 204.
func (a Assistant) HandleReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		a.logger.Error("Method not allowed", slog.String("method", r.Method))
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.store.Reset(r.Context()); err != nil {
		a.logger.Error("Failed to reset conversation", slog.String(errLoggerKey, err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// The header is already out.
	_ = json.NewEncoder(w).Encode(v)
}
