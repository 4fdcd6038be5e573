package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"charm.land/bubbles/v2/spinner"
	"charm.land/bubbles/v2/textinput"
	tea "charm.land/bubbletea/v2"
	"github.com/raphaelgruber/kbchat/internal/app"
	"github.com/raphaelgruber/kbchat/internal/chat"
	"github.com/raphaelgruber/kbchat/internal/models"
)

type entryKind int

const (
	entryUser entryKind = iota
	entryAssistant
	entryNotice
	entryError
)

// entry is one block of the rendered transcript.
type entry struct {
	kind entryKind
	text string
}

// tokenMsg carries a streamed reply fragment.
type tokenMsg string

// replyMsg ends a submission.
type replyMsg struct {
	reply *models.Message
	err   error
}

// chatModel is the bubbletea model for the interactive chat.
type chatModel struct {
	ctx     context.Context
	app     *app.App
	input   textinput.Model
	spinner spinner.Model
	theme   Theme

	entries []entry
	partial strings.Builder
	pending bool
	events  <-chan tea.Msg
	cancel  context.CancelFunc
	notice  string

	width, height int
	quitting      bool
	initCmd       tea.Cmd
}

func newChatModel(ctx context.Context, a *app.App) *chatModel {
	ti := textinput.New()
	ti.Placeholder = "Ask the knowledge base... (/help for commands)"
	ti.Prompt = "> "
	ti.CharLimit = 4000
	focus := ti.Focus()

	return &chatModel{
		initCmd: focus,
		ctx:     ctx,
		app:     a,
		input:   ti,
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot)),
		theme:   defaultTheme,
	}
}

// Init focuses the input.
func (m *chatModel) Init() tea.Cmd {
	return m.initCmd
}

// Update handles messages and returns the updated model.
func (m *chatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.input.SetWidth(max(msg.Width-4, 10))
		return m, nil

	case tea.KeyPressMsg:
		switch msg.String() {
		case "ctrl+c":
			m.stop()
			m.quitting = true
			return m, tea.Quit
		case "esc":
			if m.pending {
				m.stop()
				m.notice = "Cancelling..."
			}
			return m, nil
		case "enter":
			return m, m.handleEnter()
		}

	case tokenMsg:
		m.partial.WriteString(string(msg))
		return m, waitForEvent(m.events)

	case replyMsg:
		m.finish(msg)
		return m, nil

	case spinner.TickMsg:
		if !m.pending {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *chatModel) handleEnter() tea.Cmd {
	text := m.input.Value()
	if strings.TrimSpace(text) == "" {
		return nil
	}

	if res, ok := runSlash(m.ctx, m.app, text); ok {
		m.input.Reset()
		if res.output != "" {
			m.entries = append(m.entries, entry{kind: entryNotice, text: res.output})
		}
		if res.quit {
			m.stop()
			m.quitting = true
			return tea.Quit
		}
		return nil
	}

	if m.pending {
		m.notice = "Waiting for the current reply. Press Esc to cancel it."
		return nil
	}

	m.input.Reset()
	m.notice = ""
	m.entries = append(m.entries, entry{kind: entryUser, text: strings.TrimSpace(text)})
	return tea.Batch(m.submit(text), m.spinner.Tick)
}

// submit runs the completion off the update loop and relays its events.
func (m *chatModel) submit(text string) tea.Cmd {
	ctx, cancel := context.WithCancel(m.ctx)
	events := make(chan tea.Msg, 64)
	m.events = events
	m.cancel = cancel
	m.pending = true
	m.partial.Reset()

	go func() {
		defer close(events)
		defer cancel()
		reply, err := m.app.Chat.SubmitStream(ctx, text, func(tok string) error {
			select {
			case events <- tokenMsg(tok):
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
		events <- replyMsg{reply: reply, err: err}
	}()

	return waitForEvent(events)
}

func (m *chatModel) finish(msg replyMsg) {
	m.pending = false
	m.cancel = nil
	m.partial.Reset()

	switch {
	case msg.err == nil && msg.reply != nil:
		m.entries = append(m.entries, entry{kind: entryAssistant, text: msg.reply.Content})
		m.notice = ""
	case errors.Is(msg.err, context.Canceled):
		m.entries = append(m.entries, entry{kind: entryError, text: "Request cancelled."})
	case errors.Is(msg.err, chat.ErrNotAuthenticated):
		m.entries = append(m.entries, entry{kind: entryError, text: "Session ended. Restart kbchat to sign in again."})
	case msg.err != nil:
		m.entries = append(m.entries, entry{kind: entryError, text: "Error: " + m.app.Chat.LastError()})
	}
	if m.notice == "Cancelling..." {
		m.notice = ""
	}
}

func (m *chatModel) stop() {
	if m.cancel != nil {
		m.cancel()
	}
}

func waitForEvent(events <-chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-events
		if !ok {
			return nil
		}
		return msg
	}
}

// View renders the chat.
func (m *chatModel) View() tea.View {
	v := tea.NewView(m.render())
	v.AltScreen = true
	return v
}

func (m *chatModel) render() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	ident := m.app.Session.Identity()
	header := fmt.Sprintf("kbchat · %s · folder %s", ident.DisplayName, m.app.Conversation.SelectedFolder())
	b.WriteString(m.theme.statusStyle().Render(header))
	b.WriteString("\n\n")

	var body []string
	for _, e := range m.entries {
		body = append(body, m.renderEntry(e)...)
	}
	if m.pending {
		line := m.theme.assistantStyle().Render("Assistant") + " " + m.spinner.View()
		body = append(body, line)
		if m.partial.Len() > 0 {
			body = append(body, strings.Split(m.wrap(m.partial.String()), "\n")...)
		}
		body = append(body, "")
	}

	// Keep the tail of the transcript on screen.
	if avail := m.height - 6; m.height > 0 && len(body) > avail && avail > 0 {
		body = body[len(body)-avail:]
	}
	b.WriteString(strings.Join(body, "\n"))
	b.WriteString("\n")

	if m.notice != "" {
		b.WriteString(m.theme.hintStyle().Render(m.notice))
		b.WriteString("\n")
	}
	b.WriteString(m.input.View())
	b.WriteString("\n")
	b.WriteString(m.theme.hintStyle().Render("Enter to send · Esc to cancel a reply · Ctrl+C to quit"))
	return b.String()
}

func (m *chatModel) renderEntry(e entry) []string {
	var label string
	switch e.kind {
	case entryUser:
		label = m.theme.userStyle().Render("You")
	case entryAssistant:
		label = m.theme.assistantStyle().Render("Assistant")
	case entryError:
		return append(strings.Split(m.theme.errorStyle().Render(m.wrap(e.text)), "\n"), "")
	default:
		return append(strings.Split(m.theme.hintStyle().Render(m.wrap(e.text)), "\n"), "")
	}
	lines := []string{label}
	lines = append(lines, strings.Split(m.wrap(e.text), "\n")...)
	return append(lines, "")
}

func (m *chatModel) wrap(s string) string {
	if m.width <= 0 {
		return s
	}
	return m.theme.wrapStyle(m.width - 2).Render(s)
}

// runChatUI runs the interactive chat until the user quits.
func runChatUI(ctx context.Context, a *app.App) error {
	p := tea.NewProgram(newChatModel(ctx, a), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("chat UI error: %w", err)
	}
	return nil
}
