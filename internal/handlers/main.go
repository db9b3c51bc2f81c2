// Package handlers serves the browser chat widget and the chat backend it talks to.
package handlers

import (
	"context"
	"html/template"

	chatwidget "github.com/MegaGrindStone/chat-widget"
	"github.com/MegaGrindStone/chat-widget/internal/models"
)

// LLM represents a large language model that answers one message given the conversation so far.
type LLM interface {
	Reply(ctx context.Context, history []models.Exchange, message string) (string, error)
}

// Store defines the interface for persisting the conversation the backend replays to the LLM. Exchanges
// returns at most limit of the most recent exchanges, oldest first; a non-positive limit returns all.
type Store interface {
	Exchanges(ctx context.Context, limit int) ([]models.Exchange, error)
	AddExchange(ctx context.Context, ex models.Exchange) (string, error)
	Reset(ctx context.Context) error
}

const errLoggerKey = "err"

func parseTemplates() (*template.Template, error) {
	// We parse templates from three distinct directories to separate layout, pages, and partial views
	return template.ParseFS(
		chatwidget.TemplateFS,
		"templates/layout/*.html",
		"templates/pages/*.html",
		"templates/partials/*.html",
	)
}
