package models

import "time"

// Message represents a single entry in the widget transcript. It is created either when the user submits
// text or when a reply (or the fallback apology) arrives, and it is never modified after it is rendered.
type Message struct {
	ID        string
	Sender    Sender
	Text      string
	Timestamp time.Time
}

// Sender represents the participant that produced a message.
type Sender string

const (
	// SenderUser marks a message typed by the person using the widget.
	SenderUser Sender = "user"
	// SenderBot marks a message produced in response to an exchange, including the fallback text.
	SenderBot Sender = "bot"
)
