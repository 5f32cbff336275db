package chat

import (
	"context"
	"fmt"
	"io"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// SubmitFunc hands one operator message to the bot. Replies produced while it
// runs arrive through Program.Deliver.
type SubmitFunc func(ctx context.Context, text string) error

// Info describes the session shown in the header.
type Info struct {
	BotName  string
	Channel  string
	Commands []string
}

// Reply is one bot message rendered as a card.
type Reply struct {
	Text     string
	Title    string
	ImageURL string
}

type replyMsg struct {
	reply Reply
}

// Program owns one running console session.
type Program struct {
	model   *model
	program *tea.Program
	out     io.Writer
}

// NewProgram prepares a console session. Options are passed to bubbletea.
func NewProgram(ctx context.Context, submit SubmitFunc, info Info, out io.Writer, opts ...tea.ProgramOption) *Program {
	m := newModel(ctx, submit, info)
	opts = append([]tea.ProgramOption{tea.WithMouseCellMotion(), tea.WithContext(ctx)}, opts...)
	if out != nil {
		opts = append(opts, tea.WithOutput(out))
	}

	return &Program{model: m, program: tea.NewProgram(m, opts...), out: out}
}

// Run blocks until the operator quits or ctx ends.
func (p *Program) Run() error {
	if _, err := p.program.Run(); err != nil && p.model.ctx.Err() == nil {
		return err
	}

	if p.out != nil {
		fmt.Fprint(p.out, "\033[H\033[2J")
		fmt.Fprintln(p.out, renderGoodbyeBanner(p.model.info.BotName))
	}
	return nil
}

// Deliver shows a bot reply. Safe to call from any goroutine.
func (p *Program) Deliver(reply Reply) {
	p.program.Send(replyMsg{reply: reply})
}

func renderGoodbyeBanner(name string) string {
	style := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("230")).
		Background(lipgloss.Color("88")).
		Padding(1, 2)

	return style.Render("🐶 " + displayOrNA(name) + " signing off")
}
