package tui

import (
	"slices"
	"sync"

	"github.com/MegaGrindStone/chat-widget/internal/models"
	"github.com/MegaGrindStone/chat-widget/internal/widget"
)

type entryKind int

const (
	entryMessage entryKind = iota
	entryPending
)

type entry struct {
	kind    entryKind
	message models.Message
	handle  widget.Handle
}

// Surface is the terminal counterpart of the page: an ordered list of transcript elements the controller
// edits from any goroutine, and the bubbletea Model renders. Every edit is signalled on a one-slot
// channel so the Model redraws without the controller ever waiting on the UI.
type Surface struct {
	mu         sync.Mutex
	entries    []entry
	clearInput bool

	changed chan struct{}
}

var _ widget.View = (*Surface)(nil)

// NewSurface creates an empty Surface.
func NewSurface() *Surface {
	return &Surface{
		changed: make(chan struct{}, 1),
	}
}

// AppendMessage adds a message bubble at the end of the transcript.
func (s *Surface) AppendMessage(msg models.Message) {
	s.edit(func() {
		s.entries = append(s.entries, entry{kind: entryMessage, message: msg})
	})
}

// AppendPending adds the loader bubble identified by h at the end of the transcript.
func (s *Surface) AppendPending(h widget.Handle) {
	s.edit(func() {
		s.entries = append(s.entries, entry{kind: entryPending, handle: h})
	})
}

// RemovePending removes the loader bubble identified by h. Unknown handles are ignored.
func (s *Surface) RemovePending(h widget.Handle) {
	s.edit(func() {
		s.entries = slices.DeleteFunc(s.entries, func(e entry) bool {
			return e.kind == entryPending && e.handle == h
		})
	})
}

// ClearInput asks the Model to empty the input field.
func (s *Surface) ClearInput() {
	s.edit(func() {
		s.clearInput = true
	})
}

// Clear removes every element of the transcript.
func (s *Surface) Clear() {
	s.edit(func() {
		s.entries = nil
	})
}

// Changes is signalled after edits. Several edits may be coalesced into one signal.
func (s *Surface) Changes() <-chan struct{} {
	return s.changed
}

func (s *Surface) snapshot() []entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	return slices.Clone(s.entries)
}

func (s *Surface) hasPending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return slices.ContainsFunc(s.entries, func(e entry) bool { return e.kind == entryPending })
}

// takeClearInput reports whether the input should be cleared and resets the request.
func (s *Surface) takeClearInput() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := s.clearInput
	s.clearInput = false
	return v
}

func (s *Surface) edit(fn func()) {
	s.mu.Lock()
	fn()
	s.mu.Unlock()

	select {
	case s.changed <- struct{}{}:
	default:
	}
}
