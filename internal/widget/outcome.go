package widget

// State is the terminal state of an exchange.
type State int

const (
	// StateDelivered means the backend replied and the reply was rendered.
	StateDelivered State = iota + 1
	// StateFailed means the exchange failed and FallbackText was rendered.
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateDelivered:
		return "delivered"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Outcome is the result of one exchange.
type Outcome struct {
	State State
	Reply string
	Err   error
}

// Delivered returns a successful outcome carrying the backend reply.
func Delivered(reply string) Outcome {
	return Outcome{State: StateDelivered, Reply: reply}
}

// Failed returns a failed outcome. err is kept for diagnostics and never rendered.
func Failed(err error) Outcome {
	return Outcome{State: StateFailed, Err: err}
}

// Text is what the transcript shows for the outcome.
func (o Outcome) Text() string {
	if o.State == StateDelivered {
		return o.Reply
	}
	return FallbackText
}
