package tui

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"ragsody/internal/service"
)

// Session is the TUI-facing subset of the session service.
type Session interface {
	Greeting() string
	Prompt() string
	Mode() service.Mode
	Handle(ctx context.Context, line string) service.Reply
}

// replyMsg carries a session reply back into the update loop.
type replyMsg struct {
	reply service.Reply
}

// Model is the Bubble Tea model for the TUI application.
type Model struct {
	ctx        context.Context
	session    Session
	input      textinput.Model
	viewport   viewport.Model
	transcript []string
	status     string
	// mode mirrors the session between replies; the session itself is only
	// touched by the command running Handle.
	mode       service.Mode
	busy       bool
	ready      bool
}

// New creates a new TUI model instance.
func New(ctx context.Context, session Session) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask about your vault, or paste URLs to draft a note"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	m := Model{ctx: ctx, session: session, input: ti, viewport: vp, status: session.Prompt(), mode: session.Mode()}
	m.transcript = []string{systemStyle.Render(session.Greeting())}
	return m
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key, window and reply events and updates the view state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		// account for frames around transcript and input boxes
		_, th := transcriptBoxStyle.GetFrameSize()
		_, ih := inputBoxStyle.GetFrameSize()
		reserved := 1 + 1 + ih + 1 // header, status, input box, spacer
		vh := msg.Height - reserved
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, vh-th)
		m.refresh()
		return m, nil
	case replyMsg:
		m.busy = false
		if msg.reply.Text != "" {
			m.transcript = append(m.transcript, msg.reply.Text)
		}
		if msg.reply.Quit {
			return m, tea.Quit
		}
		m.status = msg.reply.Prompt
		m.mode = msg.reply.Mode
		m.refresh()
		return m, nil
	case tea.KeyMsg:
		// Global quits
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			if m.busy {
				return m, nil
			}
			line := m.input.Value()
			m.input.Reset()
			m.transcript = append(m.transcript, userStyle.Render("> "+line))
			m.busy = true
			m.status = "Working..."
			m.refresh()
			return m, m.handle(line)
		case "pgup", "pgdown":
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handle(line string) tea.Cmd {
	ctx, session := m.ctx, m.session
	return func() tea.Msg {
		return replyMsg{reply: session.Handle(ctx, line)}
	}
}

// View renders the TUI layout.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := headerStyle.Render("RAGsody") + "  " + modeStyle.Render("["+m.mode.String()+"]")
	body := transcriptBoxStyle.Render(m.viewport.View())
	input := inputBoxStyle.Render(m.input.View())
	status := statusStyle.Render(m.status)
	return header + "\n" + body + "\n" + input + "\n" + status
}

func (m *Model) refresh() {
	m.viewport.SetContent(strings.Join(m.transcript, "\n\n"))
	m.viewport.GotoBottom()
}

var (
	headerStyle        = lipgloss.NewStyle().Bold(true)
	modeStyle          = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	systemStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	userStyle          = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	statusStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	transcriptBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	inputBoxStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)
