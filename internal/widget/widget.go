// Package widget implements the chat widget controller: it captures submitted text, keeps the transcript,
// and runs one request/response exchange at a time against a chat backend, rendering every step onto a
// View.
package widget

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/MegaGrindStone/chat-widget/internal/models"
	"github.com/google/uuid"
)

// FallbackText is rendered as the bot reply whenever an exchange fails, whatever the cause.
const FallbackText = "⚠️ Sorry, something went wrong. Please try again."

const errLoggerKey = "err"

// Handle identifies one pending indicator on a View.
type Handle string

// View is the rendering surface the controller drives. Implementations must be safe for use from
// multiple goroutines: Submit is called from the input side while exchanges settle on the controller's
// own goroutine. Appending anything must scroll the transcript so the newest element is visible.
type View interface {
	AppendMessage(msg models.Message)
	AppendPending(h Handle)
	RemovePending(h Handle)
	ClearInput()
	Clear()
}

// Backend performs one network round trip for a user message and returns the reply text.
type Backend interface {
	Send(ctx context.Context, message string) (string, error)
}

// Controller owns the transcript and the exchange queue of a single widget.
type Controller struct {
	view    View
	backend Backend
	logger  *slog.Logger

	exchangeTimeout time.Duration

	// mu guards the fields below and serializes every call into view, so the order of
	// rendering operations matches the order of the transcript.
	mu         sync.Mutex
	transcript []models.Message
	pending    Handle
	queue      []string

	wake chan struct{}
}

// Option configures a Controller.
type Option func(*Controller)

// WithExchangeTimeout bounds each exchange. Zero, the default, waits for the backend indefinitely.
func WithExchangeTimeout(d time.Duration) Option {
	return func(c *Controller) {
		c.exchangeTimeout = d
	}
}

// New creates a controller rendering onto view and sending through backend. Exchanges are processed
// only while Run is active.
func New(view View, backend Backend, logger *slog.Logger, opts ...Option) *Controller {
	c := &Controller{
		view:    view,
		backend: backend,
		logger:  logger.With(slog.String("module", "widget")),
		wake:    make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Submit handles the current value of the input field. Text that trims to empty is ignored entirely.
// Otherwise the user message is rendered, the input is cleared and an exchange is queued. Submit never
// waits on the network and never reports errors; failures are handled by the exchange itself.
func (c *Controller) Submit(rawText string) {
	text := strings.TrimSpace(rawText)
	if text == "" {
		return
	}

	c.mu.Lock()
	c.renderMessage(models.SenderUser, text)
	c.view.ClearInput()
	c.queue = append(c.queue, text)
	c.mu.Unlock()

	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// Run processes queued exchanges one at a time, in submission order, until ctx is done. Exchanges still
// queued at that point are settled as failures, so every user message ends with a bot message.
func (c *Controller) Run(ctx context.Context) error {
	defer c.abandon(ctx)

	for {
		if ctx.Err() != nil {
			return nil
		}
		text, ok := c.next()
		if !ok {
			select {
			case <-ctx.Done():
				return nil
			case <-c.wake:
				continue
			}
		}
		c.exchange(ctx, text)
	}
}

// Transcript returns a copy of the messages rendered so far, in display order.
func (c *Controller) Transcript() []models.Message {
	c.mu.Lock()
	defer c.mu.Unlock()

	msgs := make([]models.Message, len(c.transcript))
	copy(msgs, c.transcript)
	return msgs
}

// Pending returns the handle of the pending indicator, if an exchange is in flight.
func (c *Controller) Pending() (Handle, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.pending, c.pending != ""
}

// Clear empties the transcript and the view. An in-flight exchange keeps its pending indicator and still
// renders its reply.
func (c *Controller) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.transcript = nil
	c.view.Clear()
	if c.pending != "" {
		c.view.AppendPending(c.pending)
	}
}

func (c *Controller) next() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.queue) == 0 {
		return "", false
	}
	text := c.queue[0]
	c.queue = c.queue[1:]
	return text, true
}

func (c *Controller) exchange(ctx context.Context, text string) {
	handle := c.renderPendingIndicator()

	outcome := c.send(ctx, text)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.view.RemovePending(handle)
	c.pending = ""
	if outcome.State == StateFailed {
		c.logger.Error("Exchange failed",
			slog.String("message", text),
			slog.String(errLoggerKey, outcome.Err.Error()))
	}
	c.renderMessage(models.SenderBot, outcome.Text())
}

// abandon renders the fallback for every exchange left in the queue.
func (c *Controller) abandon(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, text := range c.queue {
		c.logger.Error("Exchange abandoned",
			slog.String("message", text),
			slog.String(errLoggerKey, context.Cause(ctx).Error()))
		c.renderMessage(models.SenderBot, Failed(context.Cause(ctx)).Text())
	}
	c.queue = nil
}

func (c *Controller) send(ctx context.Context, text string) Outcome {
	if c.exchangeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.exchangeTimeout)
		defer cancel()
	}

	reply, err := c.backend.Send(ctx, text)
	if err != nil {
		return Failed(err)
	}
	return Delivered(reply)
}

func (c *Controller) renderPendingIndicator() Handle {
	c.mu.Lock()
	defer c.mu.Unlock()

	h := Handle(uuid.New().String())
	c.pending = h
	c.view.AppendPending(h)
	return h
}

// renderMessage appends to the transcript and the view. c.mu must be held.
func (c *Controller) renderMessage(sender models.Sender, text string) {
	msg := models.Message{
		ID:        uuid.New().String(),
		Sender:    sender,
		Text:      text,
		Timestamp: time.Now(),
	}
	c.transcript = append(c.transcript, msg)
	c.view.AppendMessage(msg)
}
