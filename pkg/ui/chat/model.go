package chat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const (
	roleUser  = "user"
	roleBot   = "bot"
	roleError = "error"
)

type chatMessage struct {
	role    string
	content string
}

type submitDoneMsg struct {
	err error
}

type bootTickMsg struct{}

type model struct {
	ctx    context.Context
	submit SubmitFunc
	info   Info

	theme     theme
	spinner   spinner.Model
	input     textinput.Model
	viewport  viewport.Model
	messages  []chatMessage
	width     int
	height    int
	isReady   bool
	isBusy    bool
	lastErr   string
	booting   bool
	bootStep  int
	followLog bool
	sent      int
	replies   int
}

func newModel(ctx context.Context, submit SubmitFunc, info Info) *model {
	spin := spinner.New()
	spin.Spinner = spinner.Points
	spin.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))

	in := textinput.New()
	in.Prompt = ""
	in.Placeholder = "@" + strings.ToLower(displayOrNA(info.BotName)) + " give <@someone> tada"
	in.Focus()
	in.CharLimit = 0

	return &model{
		ctx:       ctx,
		submit:    submit,
		info:      info,
		theme:     defaultTheme(),
		spinner:   spin,
		input:     in,
		viewport:  viewport.New(80, 12),
		width:     100,
		height:    28,
		booting:   true,
		followLog: true,
	}
}

func (m *model) Init() tea.Cmd {
	return bootTickCmd()
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch typed := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = typed.Width
		m.height = typed.Height
		m.resizeComponents()
		m.refreshViewport(false)
		m.isReady = true
		return m, nil
	case bootTickMsg:
		if !m.booting {
			return m, nil
		}

		m.bootStep++
		if m.bootStep < len(bootScriptLines())+1 {
			return m, bootTickCmd()
		}

		m.booting = false
		return m, textinput.Blink
	case tea.MouseMsg:
		if !m.booting {
			m.handleViewportMouse(typed)
		}
		return m, nil
	case replyMsg:
		m.appendReply(typed.reply)
		return m, nil
	case submitDoneMsg:
		m.isBusy = false
		if typed.err != nil {
			m.lastErr = typed.err.Error()
			m.messages = append(m.messages, chatMessage{role: roleError, content: typed.err.Error()})
			m.refreshViewport(false)
		}
		return m, nil
	case spinner.TickMsg:
		if !m.isBusy {
			return m, nil
		}
		m.spinner, cmd = m.spinner.Update(typed)
		return m, cmd
	case tea.KeyMsg:
		switch typed.String() {
		case "ctrl+c", "esc":
			return m, tea.Quit
		}

		if m.booting {
			return m, nil
		}

		if m.handleViewportKey(typed) {
			return m, nil
		}

		if typed.String() == "enter" {
			return m, m.submitInput()
		}
	}

	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// submitInput sends the typed line unless a previous one is still being handled.
func (m *model) submitInput() tea.Cmd {
	if m.isBusy {
		return nil
	}

	text := strings.TrimSpace(m.input.Value())
	if text == "" {
		return nil
	}
	if isExitCommand(text) {
		return tea.Quit
	}

	m.lastErr = ""
	m.messages = append(m.messages, chatMessage{role: roleUser, content: text})
	m.input.SetValue("")
	m.isBusy = true
	m.sent++
	m.refreshViewport(true)

	return tea.Batch(m.spinner.Tick, submitCmd(m.ctx, m.submit, text))
}

func (m *model) appendReply(reply Reply) {
	m.replies++
	m.messages = append(m.messages, chatMessage{role: roleBot, content: formatReply(reply)})
	m.refreshViewport(false)
}

func (m *model) View() string {
	if !m.isReady {
		m.resizeComponents()
		m.refreshViewport(false)
	}
	if m.booting {
		return m.bootView()
	}

	header := m.theme.header.Width(m.width - 2).Render("📟 " + displayOrNA(m.info.BotName) + " console")
	meta := m.theme.headerMeta.Render(fmt.Sprintf(
		"channel:%s · commands:%s · sent:%d · replies:%d",
		displayOrNA(m.info.Channel),
		displayOrNA(strings.Join(m.info.Commands, ",")),
		m.sent,
		m.replies,
	))
	line := m.theme.divider.Width(m.width - 2).Render(strings.Repeat("═", max(8, m.width-2)))

	status := m.theme.status.Render("💡 Enter send  ·  PgUp/PgDn scroll  ·  End jump latest  ·  🛑 Ctrl+C/Esc quit")
	if m.isBusy {
		status = m.theme.statusBusy.Render(fmt.Sprintf("%s ⚡ waiting for %s...", m.spinner.View(), displayOrNA(m.info.BotName)))
	}
	if m.lastErr != "" {
		status = m.theme.statusErr.Render("🚨 last message failed - try again")
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		meta,
		line,
		m.theme.viewport.Width(m.width-2).Render(m.viewport.View()),
		status,
		m.theme.inputLabel.Render("👨🏻 You")+" "+m.theme.hint.Render("(type /exit, quit, or :q)"),
		m.theme.input.Width(m.width-2).Render(m.input.View()),
	)
}

func (m *model) resizeComponents() {
	w := max(50, m.width-6)
	h := max(8, m.height-10)

	m.viewport.Width = w
	m.viewport.Height = h
	m.input.Width = w - 2
}

func (m *model) refreshViewport(forceBottom bool) {
	previousOffset := m.viewport.YOffset
	sections := make([]string, 0, len(m.messages))
	for _, item := range m.messages {
		switch item.role {
		case roleUser:
			sections = append(sections, m.renderCard(
				m.theme.userTitle.Render("▛▚ [ 👨🏻 ] ▞▜"),
				m.theme.userBox.Width(m.viewport.Width).Render(strings.TrimSpace(item.content)),
			))
		case roleBot:
			sections = append(sections, m.renderCard(
				m.theme.botTitle.Render("▛▚ [ 🐶 ] ▞▜"),
				m.theme.botBox.Width(m.viewport.Width).Render(strings.TrimSpace(item.content)),
			))
		case roleError:
			sections = append(sections, m.renderCard(
				m.theme.errorTitle.Render("▛▚ [ERROR] ▞▜"),
				m.theme.errorBox.Width(m.viewport.Width).Render(strings.TrimSpace(item.content)),
			))
		}
	}

	m.viewport.SetContent(strings.Join(sections, "\n\n"))
	if m.followLog || forceBottom {
		m.viewport.GotoBottom()
		m.followLog = true
		return
	}

	maxOffset := max(0, m.viewport.TotalLineCount()-m.viewport.Height)
	m.viewport.SetYOffset(min(previousOffset, maxOffset))
}

func (m *model) renderCard(title string, body string) string {
	return lipgloss.JoinVertical(lipgloss.Left, title, body)
}

func (m *model) bootView() string {
	header := m.theme.header.Width(m.width - 2).Render("📟 " + displayOrNA(m.info.BotName) + " console")
	meta := m.theme.headerMeta.Render("boot sequence")
	line := m.theme.divider.Width(m.width - 2).Render(strings.Repeat("═", max(8, m.width-2)))

	script := bootScriptLines()
	count := min(m.bootStep, len(script))
	visible := make([]string, 0, count+1)
	for _, entry := range script[:count] {
		visible = append(visible, m.theme.bootLine.Render(entry))
	}
	if m.bootStep > len(script) {
		visible = append(visible, m.theme.bootDone.Render("✅ connected and running!"))
	}

	body := m.theme.viewport.Width(m.width - 2).Render(strings.Join(visible, "\n"))
	return lipgloss.JoinVertical(lipgloss.Left, header, meta, line, body)
}

func bootTickCmd() tea.Cmd {
	return tea.Tick(80*time.Millisecond, func(_ time.Time) tea.Msg {
		return bootTickMsg{}
	})
}

func (m *model) handleViewportKey(msg tea.KeyMsg) bool {
	switch msg.String() {
	case "pgup", "ctrl+b", "alt+up", "ctrl+up":
		m.viewport.PageUp()
		m.followLog = false
		return true
	case "pgdown", "ctrl+f", "alt+down", "ctrl+down":
		m.viewport.PageDown()
		if m.viewport.AtBottom() {
			m.followLog = true
		}
		return true
	case "home":
		m.viewport.GotoTop()
		m.followLog = false
		return true
	case "end":
		m.viewport.GotoBottom()
		m.followLog = true
		return true
	default:
		return false
	}
}

// handleViewportMouse scrolls on wheel events and reports whether it did.
func (m *model) handleViewportMouse(msg tea.MouseMsg) bool {
	if msg.Action != tea.MouseActionPress {
		return false
	}

	switch msg.Button {
	case tea.MouseButtonWheelUp:
		m.viewport.ScrollUp(3)
		m.followLog = false
		return true
	case tea.MouseButtonWheelDown:
		m.viewport.ScrollDown(3)
		if m.viewport.AtBottom() {
			m.followLog = true
		}
		return true
	default:
		return false
	}
}

func bootScriptLines() []string {
	return []string{
		"[BOOT] warming up the treat jar",
		"[BOOT] fetching a good dog",
		"[BOOT] reading the lunch menu",
	}
}

func submitCmd(ctx context.Context, submit SubmitFunc, text string) tea.Cmd {
	return func() tea.Msg {
		if submit == nil {
			return submitDoneMsg{}
		}
		return submitDoneMsg{err: submit(ctx, text)}
	}
}

// formatReply renders reply text plus an attachment line as "title: url".
func formatReply(reply Reply) string {
	lines := make([]string, 0, 2)
	if text := strings.TrimSpace(reply.Text); text != "" {
		lines = append(lines, text)
	}
	if reply.ImageURL != "" {
		lines = append(lines, strings.TrimSpace(reply.Title)+": "+reply.ImageURL)
	}

	return strings.Join(lines, "\n")
}

func displayOrNA(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "n/a"
	}

	return trimmed
}

func isExitCommand(input string) bool {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "exit", "/exit", "quit", ":q":
		return true
	default:
		return false
	}
}
