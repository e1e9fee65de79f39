package cli

import (
	"context"
	"fmt"
	"strings"

	"charm.land/bubbles/v2/spinner"
	"charm.land/bubbles/v2/textinput"
	"charm.land/bubbles/v2/viewport"
	tea "charm.land/bubbletea/v2"
	"github.com/raphaelgruber/finchat/internal/chat"
	"github.com/raphaelgruber/finchat/internal/client"
	"github.com/raphaelgruber/finchat/internal/models"
	"github.com/spf13/cobra"
)

var chatStream bool

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Open an interactive chat with the assistant",
	Long: `Open the interactive chat screen.

Keys:
  enter    send the message
  esc      dismiss the current error
  ctrl+n   start a new conversation
  ctrl+c   quit`,
	Args: cobra.NoArgs,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().BoolVarP(&chatStream, "stream", "s", false, "stream replies as they are written")
}

// refreshMsg signals that the store, tracker or error changed.
type refreshMsg struct{}

// sendDoneMsg is returned when a send finishes.
type sendDoneMsg struct{}

// chatModel is the bubbletea model for the chat screen. All conversation
// state lives in the controller; the model only renders it.
type chatModel struct {
	ctrl    *chat.Controller
	stream  bool
	updates <-chan struct{}

	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model
	theme    Theme

	width, height int
	ready         bool
	loginRequired bool
	quitting      bool
}

const (
	headerHeight = 2
	footerHeight = 4
)

func newChatModel(ctrl *chat.Controller, stream bool, updates <-chan struct{}) chatModel {
	input := textinput.New()
	input.Placeholder = "Ask about your finances..."
	input.CharLimit = 4000
	input.Focus()

	return chatModel{
		ctrl:     ctrl,
		stream:   stream,
		updates:  updates,
		input:    input,
		viewport: viewport.New(viewport.WithWidth(80), viewport.WithHeight(20)),
		spinner:  spinner.New(spinner.WithSpinner(spinner.Dot)),
		theme:    defaultTheme,
	}
}

// Init starts the cursor blink, the spinner and the update listener.
func (m chatModel) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		m.spinner.Tick,
		waitForUpdate(m.updates),
	)
}

// Update handles messages and returns the updated model.
func (m chatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.viewport.SetWidth(msg.Width)
		m.viewport.SetHeight(max(msg.Height-headerHeight-footerHeight, 3))
		m.input.SetWidth(max(msg.Width-4, 10))
		m.ready = true
		m.refresh()
		return m, nil

	case tea.KeyPressMsg:
		switch msg.String() {
		case "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "q":
			if m.loginRequired {
				m.quitting = true
				return m, tea.Quit
			}
		case "esc":
			m.ctrl.DismissError()
			return m, nil
		case "ctrl+n":
			if !m.ctrl.Tracker().IsPending() {
				m.ctrl.Reset()
			}
			return m, nil
		case "enter":
			cmd := m.submit()
			return m, cmd
		}

	case refreshMsg:
		m.refresh()
		return m, waitForUpdate(m.updates)

	case sendDoneMsg:
		m.refresh()
		return m, nil

	case loginRequiredMsg:
		m.loginRequired = true
		m.input.Blur()
		m.refresh()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	if !m.loginRequired && !m.ctrl.Tracker().IsPending() {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		cmds = append(cmds, cmd)
	}
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

// submit hands the input to the controller. The controller's guard decides
// whether the send happens; the input is only cleared when it will.
func (m *chatModel) submit() tea.Cmd {
	if m.loginRequired || m.ctrl.Tracker().IsPending() {
		return nil
	}
	text := m.input.Value()
	if strings.TrimSpace(text) == "" {
		return nil
	}
	m.input.SetValue("")

	ctrl, stream := m.ctrl, m.stream
	return func() tea.Msg {
		ctx := context.Background()
		if stream {
			ctrl.SendStream(ctx, text)
		} else {
			ctrl.Send(ctx, text)
		}
		return sendDoneMsg{}
	}
}

// refresh re-renders the transcript and syncs the input with the tracker.
func (m *chatModel) refresh() {
	if m.ctrl.Tracker().IsPending() || m.loginRequired {
		m.input.Blur()
	} else {
		m.input.Focus()
	}
	if !m.ready {
		return
	}
	m.viewport.SetContent(m.renderTranscript())
	m.viewport.GotoBottom()
}

func (m chatModel) renderTranscript() string {
	msgs := m.ctrl.Messages().Messages()
	if len(msgs) == 0 {
		return m.theme.hintStyle().Render("Start the conversation by typing a question below.")
	}

	var b strings.Builder
	for _, msg := range msgs {
		b.WriteString(m.renderMessage(msg))
		b.WriteString("\n")
	}
	return b.String()
}

func (m chatModel) renderMessage(msg models.Message) string {
	if msg.Role == models.RoleUser {
		return m.theme.userStyle().Render(msg.AgentLabel()) + "\n" + msg.Content + "\n"
	}

	label := m.theme.assistantStyle().Render(msg.AgentLabel())
	if msg.Content == "" {
		if pending, id := m.ctrl.Tracker().Pending(); pending && id == msg.ID {
			return label + "\n" + m.spinner.View() + "\n"
		}
		return label + "\n" + m.theme.hintStyle().Render("(no reply)") + "\n"
	}
	return label + "\n" + strings.TrimRight(renderMarkdown(msg.Content), "\n") + "\n"
}

// View renders the chat screen.
func (m chatModel) View() tea.View {
	return tea.NewView(m.renderContent())
}

func (m chatModel) renderContent() string {
	if m.quitting {
		return ""
	}
	if !m.ready {
		return "Loading...\n"
	}

	var b strings.Builder
	b.WriteString(m.theme.headerStyle().Width(m.width).Render(m.header()))
	b.WriteString("\n")
	b.WriteString(m.viewport.View())
	b.WriteString("\n")

	switch {
	case m.loginRequired:
		b.WriteString(m.theme.errorStyle().Render(
			"Your session has expired. Run 'finchat login' to sign in again."))
		b.WriteString("\n")
		b.WriteString(m.theme.hintStyle().Render("Press q to quit"))
		return b.String()
	case m.ctrl.Err() != "":
		b.WriteString(m.theme.errorStyle().Render("✗ " + m.ctrl.Err()))
		b.WriteString(" ")
		b.WriteString(m.theme.hintStyle().Render("(esc to dismiss)"))
	case m.ctrl.Tracker().IsPending():
		b.WriteString(m.spinner.View() + " " + m.theme.hintStyle().Render("Thinking..."))
	}
	b.WriteString("\n")
	b.WriteString(m.input.View())
	b.WriteString("\n")
	b.WriteString(m.theme.hintStyle().Render("enter send • ctrl+n new chat • ctrl+c quit"))
	return b.String()
}

func (m chatModel) header() string {
	who := "guest"
	if u := creds.User(); u != nil && creds.IsAuthenticated() {
		who = displayName(u)
	}
	title := "finchat · " + who
	if id := m.ctrl.Messages().SessionID(); id != "" {
		title += " · " + id
	}
	return title
}

// loginRequiredMsg is sent when the transport navigates to the login path.
type loginRequiredMsg struct{}

// waitForUpdate blocks until the next change notification.
func waitForUpdate(updates <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		if _, ok := <-updates; !ok {
			return nil
		}
		return refreshMsg{}
	}
}

// notifier coalesces change notifications into a 1-slot channel so
// publishers never block on the UI.
func notifier() (chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	return ch, func() {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func runChat(cmd *cobra.Command, args []string) error {
	ctrl := chat.NewController(chat.Config{
		Sender:   apiClient,
		Identity: creds,
		Logger:   logger,
	})

	updates, notify := notifier()
	ctrl.OnErrorChange(notify)
	defer ctrl.Messages().Subscribe(notify)()
	defer ctrl.Tracker().Subscribe(notify)()

	model := newChatModel(ctrl, chatStream || cfg.Stream, updates)
	p := tea.NewProgram(model)

	restore := navigator.route(func(path string) {
		if path == client.LoginPath {
			go p.Send(loginRequiredMsg{})
		}
	})
	defer restore()

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("chat UI error: %w", err)
	}
	return nil
}
