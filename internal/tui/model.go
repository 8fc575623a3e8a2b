// Package tui is a terminal front-end for a single agent conversation.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"agent-chatter/internal/chat"
	"agent-chatter/internal/history"
)

// ConversationKey is the registry key of the terminal conversation.
const ConversationKey = "tui"

type focus int

const (
	focusPrompt focus = iota
	focusAgent
)

type transcriptChangedMsg struct{}

type turnDoneMsg struct {
	reply history.Message
	err   error
}

type theme struct {
	header    lipgloss.Style
	panel     lipgloss.Style
	user      lipgloss.Style
	assistant lipgloss.Style
	status    lipgloss.Style
	info      lipgloss.Style
	errStatus lipgloss.Style
	help      lipgloss.Style
}

func newTheme() theme {
	blue := lipgloss.Color("#01cdfe")
	mint := lipgloss.Color("#05ffa1")
	pink := lipgloss.Color("#ff71ce")
	muted := lipgloss.Color("#9ca3d8")
	return theme{
		header:    lipgloss.NewStyle().Bold(true).Padding(0, 1),
		panel:     lipgloss.NewStyle().BorderStyle(lipgloss.RoundedBorder()).BorderForeground(muted).Padding(0, 1),
		user:      lipgloss.NewStyle().Foreground(mint).Bold(true),
		assistant: lipgloss.NewStyle().Foreground(blue).Bold(true),
		status:    lipgloss.NewStyle().Foreground(blue),
		info:      lipgloss.NewStyle().Foreground(lipgloss.Color("#ffd166")),
		errStatus: lipgloss.NewStyle().Foreground(pink).Bold(true),
		help:      lipgloss.NewStyle().Foreground(muted),
	}
}

type Model struct {
	ctx        context.Context
	conv       *chat.Conversation
	dispatcher *chat.Dispatcher
	events     chan tea.Msg

	agent    textinput.Model
	prompt   textinput.Model
	timeline viewport.Model
	focus    focus

	busy       bool
	statusLine string
	statusErr  bool
	statusInfo bool

	width, height int
	theme         theme
}

func New(ctx context.Context, registry *chat.Registry, dispatcher *chat.Dispatcher) Model {
	conv := registry.Get(ConversationKey)

	agent := textinput.New()
	agent.Prompt = "agent rid: "
	agent.Placeholder = "ri.aip-agents..agent..."
	agent.SetValue(conv.AgentRID())

	prompt := textinput.New()
	prompt.Prompt = "❯ "
	prompt.Placeholder = "Your message"
	prompt.CharLimit = 4000
	prompt.Focus()

	m := Model{
		ctx:        ctx,
		conv:       conv,
		dispatcher: dispatcher,
		events:     make(chan tea.Msg, 8),
		agent:      agent,
		prompt:     prompt,
		timeline:   viewport.New(0, 0),
		statusLine: "ready",
		theme:      newTheme(),
	}
	m.renderTimeline()
	return m
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, waitEvent(m.events))
}

func waitEvent(ch <-chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-ch
		if !ok {
			return nil
		}
		return msg
	}
}

// submitCmd runs one turn off the UI goroutine. Transcript changes made
// during the turn are announced through m.events.
func (m Model) submitCmd(text string) tea.Cmd {
	ctx, conv, d, events := m.ctx, m.conv, m.dispatcher, m.events
	return func() tea.Msg {
		render := func(history.Message) {
			select {
			case events <- transcriptChangedMsg{}:
			default:
			}
		}
		reply, err := d.Submit(ctx, conv, text, render)
		return turnDoneMsg{reply: reply, err: err}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.resize()
		m.renderTimeline()
	case transcriptChangedMsg:
		m.renderTimeline()
		cmds = append(cmds, waitEvent(m.events))
	case turnDoneMsg:
		m.busy = false
		m.setStatus(msg.err)
		m.renderTimeline()
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			return m, tea.Quit
		case "tab":
			m.toggleFocus()
			return m, nil
		case "ctrl+r":
			if m.busy {
				return m, nil
			}
			m.conv.Reset()
			m.statusLine, m.statusErr, m.statusInfo = "conversation reset", false, false
			m.renderTimeline()
			return m, nil
		case "enter":
			if m.focus == focusAgent {
				m.conv.SetAgentRID(m.agent.Value())
				m.statusLine, m.statusErr, m.statusInfo = "agent set", false, false
				m.toggleFocus()
				return m, nil
			}
			text := strings.TrimSpace(m.prompt.Value())
			if text == "" || m.busy {
				return m, nil
			}
			m.prompt.Reset()
			m.busy = true
			m.statusLine, m.statusErr, m.statusInfo = "waiting for the agent...", false, false
			return m, m.submitCmd(text)
		}
		var cmd tea.Cmd
		if m.focus == focusAgent {
			m.agent, cmd = m.agent.Update(msg)
		} else {
			m.prompt, cmd = m.prompt.Update(msg)
		}
		cmds = append(cmds, cmd)
	default:
		var cmd tea.Cmd
		m.timeline, cmd = m.timeline.Update(msg)
		cmds = append(cmds, cmd)
	}
	return m, tea.Batch(cmds...)
}

func (m *Model) setStatus(err error) {
	m.statusErr, m.statusInfo = false, false
	switch {
	case err == nil:
		m.statusLine = "ready"
	case errors.Is(err, chat.ErrAgentNotConfigured):
		m.statusLine = chat.MissingAgentPrompt + " (tab to edit)"
		m.statusInfo = true
	case errors.Is(err, chat.ErrEmptyInput):
		m.statusLine = "ready"
	default:
		m.statusLine = err.Error()
		m.statusErr = true
	}
}

func (m *Model) toggleFocus() {
	if m.focus == focusPrompt {
		m.focus = focusAgent
		m.prompt.Blur()
		m.agent.Focus()
		return
	}
	m.focus = focusPrompt
	m.agent.Blur()
	m.agent.SetValue(m.conv.AgentRID())
	m.prompt.Focus()
}

func (m *Model) resize() {
	w := max(20, m.width-4)
	m.agent.Width = w - len(m.agent.Prompt) - 2
	m.prompt.Width = w - 4
	m.timeline.Width = w
	// header, agent row, prompt row, status and help
	m.timeline.Height = max(3, m.height-12)
}

func (m *Model) renderTimeline() {
	var b strings.Builder
	for msg := range m.conv.Transcript.All() {
		if msg.Role == history.RoleUser {
			b.WriteString(m.theme.user.Render("you"))
		} else {
			b.WriteString(m.theme.assistant.Render("assistant"))
		}
		b.WriteString("\n")
		width := max(20, m.timeline.Width-2)
		b.WriteString(lipgloss.NewStyle().Width(width).Render(msg.Content))
		b.WriteString("\n\n")
	}
	m.timeline.SetContent(strings.TrimRight(b.String(), "\n"))
	m.timeline.GotoBottom()
}

func (m Model) View() string {
	status := m.theme.status.Render(m.statusLine)
	switch {
	case m.statusErr:
		status = m.theme.errStatus.Render(m.statusLine)
	case m.statusInfo:
		status = m.theme.info.Render(m.statusLine)
	}
	session := string(m.conv.SessionRID())
	if session == "" {
		session = "none"
	}
	header := m.theme.header.Render(fmt.Sprintf("💬 Chatbot · session %s", session))
	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		m.theme.panel.Render(m.agent.View()),
		m.theme.panel.Render(m.timeline.View()),
		m.theme.panel.Render(m.prompt.View()),
		status,
		m.theme.help.Render("enter send · tab agent/prompt · ctrl+r new conversation · esc quit"),
	)
}
