package handlers

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/MegaGrindStone/chat-widget/internal/models"
	"github.com/MegaGrindStone/chat-widget/internal/widget"
	"github.com/tmaxmax/go-sse"
	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting"
)

// Widget serves the browser rendition of the chat widget. The controller runs on the server; every
// rendering step is published to the page as a Server-Sent Event carrying an HTML fragment, and the page
// script only patches the DOM.
type Widget struct {
	sseSrv    *sse.Server
	templates *template.Template

	controller *widget.Controller
	view       sseView

	logger *slog.Logger
}

// WidgetOptions tunes the browser widget.
type WidgetOptions struct {
	// Markdown renders bot replies as Markdown. User text is always escaped.
	Markdown bool
	// ExchangeTimeout bounds each exchange; zero waits indefinitely.
	ExchangeTimeout time.Duration
}

// sseView implements widget.View by publishing fragments to every connected page.
type sseView struct {
	sseSrv    *sse.Server
	templates *template.Template
	markdown  goldmark.Markdown

	logger *slog.Logger
}

type messageData struct {
	ID      string
	Sender  string
	Content template.HTML
}

type homePageData struct {
	Messages []messageData
	Pending  string
}

// SSE event types for widget updates.
var (
	messageSSEType    = sse.Type("message")
	pendingSSEType    = sse.Type("pending")
	settleSSEType     = sse.Type("settle")
	clearInputSSEType = sse.Type("clearInput")
	clearSSEType      = sse.Type("clear")
)

// NewWidget creates a Widget whose exchanges go through backend. The controller does not process
// exchanges until Run is called.
func NewWidget(backend widget.Backend, opts WidgetOptions, logger *slog.Logger) (Widget, error) {
	tmpl, err := parseTemplates()
	if err != nil {
		return Widget{}, err
	}

	logger = logger.With(slog.String("module", "widget-web"))

	view := sseView{
		sseSrv:    &sse.Server{},
		templates: tmpl,
		logger:    logger,
	}
	if opts.Markdown {
		view.markdown = goldmark.New(
			goldmark.WithExtensions(
				highlighting.NewHighlighting(highlighting.WithStyle("monokai")),
			),
		)
	}

	return Widget{
		sseSrv:     view.sseSrv,
		templates:  tmpl,
		controller: widget.New(view, backend, logger, widget.WithExchangeTimeout(opts.ExchangeTimeout)),
		view:       view,
		logger:     logger,
	}, nil
}

// Run processes submitted messages until ctx is done.
func (wg Widget) Run(ctx context.Context) error {
	return wg.controller.Run(ctx)
}

// HandleHome renders the widget page with the current transcript and, if an exchange is in flight, its
// pending indicator.
func (wg Widget) HandleHome(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	transcript := wg.controller.Transcript()
	data := homePageData{
		Messages: make([]messageData, 0, len(transcript)),
	}
	for _, msg := range transcript {
		md, err := wg.view.messageData(msg)
		if err != nil {
			wg.logger.Error("Failed to render message",
				slog.String("messageID", msg.ID),
				slog.String(errLoggerKey, err.Error()))
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		data.Messages = append(data.Messages, md)
	}
	if h, ok := wg.controller.Pending(); ok {
		data.Pending = string(h)
	}

	if err := wg.templates.ExecuteTemplate(w, "home.html", data); err != nil {
		wg.logger.Error("Failed to execute home template", slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// HandleSubmit passes the "message" form field to the controller. It answers 204 whether or not the
// message was blank; the outcome reaches the page as events.
func (wg Widget) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		wg.logger.Error("Method not allowed", slog.String("method", r.Method))
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	wg.controller.Submit(r.FormValue("message"))
	w.WriteHeader(http.StatusNoContent)
}

// HandleClear empties the transcript.
func (wg Widget) HandleClear(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		wg.logger.Error("Method not allowed", slog.String("method", r.Method))
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	wg.controller.Clear()
	w.WriteHeader(http.StatusNoContent)
}

// HandleSSE streams widget events to the page.
func (wg Widget) HandleSSE(w http.ResponseWriter, r *http.Request) {
	wg.sseSrv.ServeHTTP(w, r)
}

// Shutdown gracefully terminates the SSE server. It broadcasts a close message to all connected pages
// and waits up to 5 seconds for connections to terminate.
func (wg Widget) Shutdown(ctx context.Context) error {
	e := &sse.Message{Type: sse.Type("closeWidget")}
	// Every SSE event needs a data field
	e.AppendData("bye")

	// We ignore the error here since we're shutting down anyway
	_ = wg.sseSrv.Publish(e)

	ctx, cancel := context.WithTimeout(ctx, time.Second*5)
	defer cancel()

	return wg.sseSrv.Shutdown(ctx)
}

func (v sseView) AppendMessage(msg models.Message) {
	md, err := v.messageData(msg)
	if err != nil {
		v.logger.Error("Failed to render message",
			slog.String("messageID", msg.ID),
			slog.String(errLoggerKey, err.Error()))
		return
	}

	var sb strings.Builder
	if err := v.templates.ExecuteTemplate(&sb, "message", md); err != nil {
		v.logger.Error("Failed to execute message template", slog.String(errLoggerKey, err.Error()))
		return
	}
	v.publish(messageSSEType, sb.String())
}

func (v sseView) AppendPending(h widget.Handle) {
	var sb strings.Builder
	if err := v.templates.ExecuteTemplate(&sb, "pending", string(h)); err != nil {
		v.logger.Error("Failed to execute pending template", slog.String(errLoggerKey, err.Error()))
		return
	}
	v.publish(pendingSSEType, sb.String())
}

func (v sseView) RemovePending(h widget.Handle) {
	v.publish(settleSSEType, pendingElementID(h))
}

func (v sseView) ClearInput() {
	v.publish(clearInputSSEType, "input")
}

func (v sseView) Clear() {
	v.publish(clearSSEType, "transcript")
}

func (v sseView) publish(typ sse.EventType, data string) {
	msg := sse.Message{
		Type: typ,
	}
	msg.AppendData(data)
	if err := v.sseSrv.Publish(&msg); err != nil {
		v.logger.Error("Failed to publish event",
			slog.String("type", typ.String()),
			slog.String(errLoggerKey, err.Error()))
	}
}

func (v sseView) messageData(msg models.Message) (messageData, error) {
	content, err := v.renderContent(msg)
	if err != nil {
		return messageData{}, err
	}
	return messageData{
		ID:      msg.ID,
		Sender:  string(msg.Sender),
		Content: content,
	}, nil
}

func (v sseView) renderContent(msg models.Message) (template.HTML, error) {
	if msg.Sender != models.SenderBot || v.markdown == nil {
		return template.HTML(template.HTMLEscapeString(msg.Text)), nil
	}

	var buf bytes.Buffer
	if err := v.markdown.Convert([]byte(msg.Text), &buf); err != nil {
		return "", fmt.Errorf("failed to convert markdown: %w", err)
	}
	// goldmark drops raw HTML unless configured otherwise, so the output is safe to embed.
	return template.HTML(buf.String()), nil
}

func pendingElementID(h widget.Handle) string {
	return "pending-" + string(h)
}
