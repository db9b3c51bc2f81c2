// Package tui renders the chat widget in a terminal with bubbletea.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MegaGrindStone/chat-widget/internal/models"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
)

// Controller is the part of the widget controller the terminal drives.
type Controller interface {
	Submit(rawText string)
	Clear()
}

// Options tunes the terminal widget.
type Options struct {
	// Markdown renders bot replies with glamour.
	Markdown bool
	// Title is shown above the transcript.
	Title string
}

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	userStyle   = lipgloss.NewStyle().
			Foreground(lipgloss.Color("230")).
			Background(lipgloss.Color("63")).
			Padding(0, 1)
	botStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252")).
			Background(lipgloss.Color("236")).
			Padding(0, 1)
	loaderStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("246")).
			Background(lipgloss.Color("236")).
			Padding(0, 1)
)

// dots animates the loader bubble.
var dots = spinner.Spinner{
	Frames: []string{"●∙∙", "∙●∙", "∙∙●"},
	FPS:    time.Second / 4,
}

type surfaceChangedMsg struct{}

// Model is the bubbletea model of the terminal widget: an input line, a scrolling transcript and the
// loader animation.
type Model struct {
	controller Controller
	surface    *Surface
	title      string

	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model
	markdown *glamour.TermRenderer
	// markdownWidth is the word wrap markdown was built with.
	markdownWidth int

	width int
}

// New creates a Model rendering surface and sending input to controller.
func New(controller Controller, surface *Surface, opts Options) (Model, error) {
	ti := textinput.New()
	ti.Placeholder = "Type a message..."
	ti.Prompt = "> "
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = dots

	title := opts.Title
	if title == "" {
		title = "Chat"
	}

	m := Model{
		controller: controller,
		surface:    surface,
		title:      title,
		input:      ti,
		viewport:   viewport.New(80, 20),
		spinner:    sp,
		width:      80,
	}

	if opts.Markdown {
		if err := m.buildMarkdown(); err != nil {
			return Model{}, err
		}
	}

	return m, nil
}

// Run shows the widget until the user quits or ctx is done.
func Run(ctx context.Context, m Model) error {
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("error running terminal ui: %w", err)
	}
	return nil
}

func waitForChange(ch <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		<-ch
		return surfaceChangedMsg{}
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick, waitForChange(m.surface.Changes()))
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.viewport.Width = msg.Width
		// Header, input line and help line.
		m.viewport.Height = max(msg.Height-4, 1)
		m.input.Width = max(msg.Width-4, 1)
		if m.markdown != nil && m.markdownWidth != m.bubbleWidth() {
			// Keep the previous renderer if the new one cannot be built.
			_ = m.buildMarkdown()
		}
		m.refresh()
		return m, nil
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			m.controller.Submit(m.input.Value())
			if m.surface.takeClearInput() {
				m.input.Reset()
			}
			return m, nil
		case tea.KeyCtrlL:
			m.controller.Clear()
			return m, nil
		case tea.KeyPgUp, tea.KeyPgDown:
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
	case surfaceChangedMsg:
		if m.surface.takeClearInput() {
			m.input.Reset()
		}
		m.refresh()
		return m, waitForChange(m.surface.Changes())
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		if m.surface.hasPending() {
			m.refresh()
		}
		return m, cmd
	case tea.MouseMsg:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) View() string {
	var sb strings.Builder
	sb.WriteString(headerStyle.Render(m.title))
	sb.WriteString("\n")
	sb.WriteString(m.viewport.View())
	sb.WriteString("\n")
	sb.WriteString(m.input.View())
	sb.WriteString("\n")
	sb.WriteString(helpStyle.Render("enter: send • ctrl+l: clear • pgup/pgdn: scroll • esc: quit"))
	return sb.String()
}

// refresh redraws the transcript and scrolls to the newest element.
func (m *Model) refresh() {
	entries := m.surface.snapshot()
	blocks := make([]string, 0, len(entries))
	for _, e := range entries {
		blocks = append(blocks, m.renderEntry(e))
	}
	m.viewport.SetContent(strings.Join(blocks, "\n\n"))
	m.viewport.GotoBottom()
}

func (m Model) renderEntry(e entry) string {
	if e.kind == entryPending {
		return loaderStyle.Render(m.spinner.View())
	}

	width := m.bubbleWidth()
	switch e.message.Sender {
	case models.SenderUser:
		bubble := userStyle.MaxWidth(width).Render(wrap(e.message.Text, width-2))
		return lipgloss.PlaceHorizontal(m.width, lipgloss.Right, bubble)
	default:
		text := e.message.Text
		if m.markdown != nil {
			if rendered, err := m.markdown.Render(text); err == nil {
				return strings.TrimRight(rendered, "\n")
			}
		}
		return botStyle.MaxWidth(width).Render(wrap(text, width-2))
	}
}

func (m *Model) buildMarkdown() error {
	width := m.bubbleWidth()
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle("dark"),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return fmt.Errorf("failed to create markdown renderer: %w", err)
	}
	m.markdown = r
	m.markdownWidth = width
	return nil
}

func (m Model) bubbleWidth() int {
	return max(m.width*3/4, 10)
}

func wrap(text string, width int) string {
	return lipgloss.NewStyle().Width(max(width, 1)).Render(text)
}
