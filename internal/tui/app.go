package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"quill-agent/internal/app"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
)

// Model is the chat UI for one document: a scrollback viewport over the
// conversation, a textarea for the next request, and a status line.
type Model struct {
	app     *app.Application
	docPath string

	messages []Message
	input    textarea.Model
	history  viewport.Model
	keys     keyMap

	loading      bool
	spinnerFrame int
	ready        bool
	width        int
	height       int
}

// Message is one rendered chat entry.
type Message struct {
	Role      string
	Content   string
	Applied   bool
	Timestamp time.Time
}

// New builds the TUI over an assembled application, bound to one document.
func New(application *app.Application, docPath string) *Model {
	ta := textarea.New()
	ta.Placeholder = "Describe an edit, or just think out loud... ([[Doc]] pulls in context)"
	ta.Focus()
	ta.CharLimit = 4000
	ta.SetWidth(80)
	ta.SetHeight(3)
	ta.Prompt = "▍ "
	ta.ShowLineNumbers = false

	m := &Model{
		app:     application,
		docPath: docPath,
		input:   ta,
		keys:    defaultKeyMap(),
		width:   80,
		height:  24,
	}
	m.restoreHistory()
	return m
}

// restoreHistory seeds the scrollback from the persisted conversation so a
// restarted session picks up where it left off.
func (m *Model) restoreHistory() {
	for _, msg := range m.app.Store.GetRecentMessages(m.docPath, m.app.Config.HistoryMessages) {
		role := string(msg.Role)
		if role == string(app.RoleSystem) {
			continue
		}
		m.messages = append(m.messages, Message{
			Role:      role,
			Content:   msg.Content,
			Applied:   msg.Result != "",
			Timestamp: msg.Timestamp,
		})
	}
}

func (m *Model) Init() tea.Cmd {
	return textarea.Blink
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.input.SetWidth(msg.Width - 4)
		historyHeight := msg.Height - m.input.Height() - 7
		if historyHeight < 3 {
			historyHeight = 3
		}
		if !m.ready {
			m.history = viewport.New(msg.Width, historyHeight)
			m.ready = true
		} else {
			m.history.Width = msg.Width
			m.history.Height = historyHeight
		}
		m.refreshHistory()
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			m.app.Close()
			return m, tea.Quit

		case key.Matches(msg, m.keys.Enter):
			text := strings.TrimSpace(m.input.Value())
			if text == "" || m.loading {
				return m, nil
			}
			m.messages = append(m.messages, Message{Role: "user", Content: text, Timestamp: time.Now()})
			m.input.Reset()
			m.loading = true
			m.spinnerFrame = 0
			m.refreshHistory()
			return m, tea.Batch(m.handle(text), m.spinTick())

		case key.Matches(msg, m.keys.Clear):
			m.app.Store.ClearConversation(m.docPath)
			m.messages = nil
			m.refreshHistory()
			return m, nil

		case key.Matches(msg, m.keys.ScrollUp):
			m.history.HalfViewUp()
			return m, nil

		case key.Matches(msg, m.keys.ScrollDn):
			m.history.HalfViewDown()
			return m, nil
		}

	case outcomeMsg:
		m.loading = false
		m.messages = append(m.messages, renderOutcome(msg))
		m.refreshHistory()
		return m, nil

	case spinMsg:
		if m.loading {
			m.spinnerFrame++
			return m, m.spinTick()
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	m.history, cmd = m.history.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

func (m *Model) View() string {
	var b strings.Builder

	title := "quill · " + m.docPath
	meta := ""
	if _, ok := m.app.Completer.(*app.MockCompleter); ok {
		meta = headerMetaStyle.Render("  (mock backend)")
	}
	b.WriteString(headerStyle.Width(m.width - 2).Render(title + meta))
	b.WriteString("\n")

	if m.ready {
		b.WriteString(m.history.View())
	}
	b.WriteString("\n")

	b.WriteString(inputStyle.Width(m.width - 2).Render(m.input.View()))
	b.WriteString("\n")

	if m.loading {
		frames := []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}
		b.WriteString(loadingStyle.Render(frames[m.spinnerFrame%len(frames)] + " Working..."))
		b.WriteString("\n")
	}

	b.WriteString(helpStyle.Render("enter send · ctrl+l clear chat · pgup/pgdn scroll · ctrl+c quit"))
	return b.String()
}

// refreshHistory re-renders the scrollback and keeps it pinned to the bottom.
func (m *Model) refreshHistory() {
	if !m.ready {
		return
	}
	var b strings.Builder
	for i, msg := range m.messages {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(renderMessage(msg))
	}
	m.history.SetContent(b.String())
	m.history.GotoBottom()
}

func renderMessage(msg Message) string {
	stamp := headerMetaStyle.Render(msg.Timestamp.Format("15:04"))
	switch msg.Role {
	case "user":
		return userLabelStyle.Render("you ") + stamp + "\n" + msg.Content
	case "error":
		return errorStyle.Render("error ") + stamp + "\n" + msg.Content
	default:
		label := assistantLabelStyle.Render("quill ") + stamp
		if msg.Applied {
			label += appliedStyle.Render("  ✓ edit applied")
		}
		return label + "\n" + msg.Content
	}
}

// handle runs one request against the application off the UI loop.
func (m *Model) handle(input string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()

		outcome, err := m.app.HandleRequest(ctx, m.docPath, input, "")
		return outcomeMsg{outcome: outcome, err: err}
	}
}

func (m *Model) spinTick() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(time.Time) tea.Msg {
		return spinMsg{}
	})
}

type outcomeMsg struct {
	outcome *app.Outcome
	err     error
}

type spinMsg struct{}

func renderOutcome(msg outcomeMsg) Message {
	now := time.Now()
	if msg.err != nil {
		return Message{Role: "error", Content: fmt.Sprintf("%v", msg.err), Timestamp: now}
	}
	out := msg.outcome
	if out.ValidationError != "" {
		return Message{Role: "error", Content: out.ValidationError, Timestamp: now}
	}
	return Message{Role: "assistant", Content: out.Response, Applied: out.Applied, Timestamp: now}
}
