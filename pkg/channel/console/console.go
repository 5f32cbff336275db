// Package console runs the bot against a local operator, either as a
// terminal chat or for a single message.
package console

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"regexp"
	"strings"

	"zepler/pkg/bus"
	"zepler/pkg/channel"
	"zepler/pkg/mention"
	"zepler/pkg/ui/chat"
)

const (
	channelName = "console"

	// BotID is the fixed identity of the bot in the console.
	BotID = "ZEPLER"
	// OperatorID is the user id of messages typed in the console.
	OperatorID = "OPERATOR"
)

// Adapter is the local console channel. With a prompt set, Run handles that
// one message, addressed to the bot, and returns; otherwise it starts the
// terminal chat.
type Adapter struct {
	botName  string
	prompt   string
	commands []string
	out      io.Writer
	log      *slog.Logger
}

// Option customizes the console adapter.
type Option func(*Adapter)

// WithPrompt switches the adapter to one-shot mode.
func WithPrompt(prompt string) Option {
	return func(a *Adapter) { a.prompt = strings.TrimSpace(prompt) }
}

// WithOutput redirects console output, stdout by default.
func WithOutput(out io.Writer) Option {
	return func(a *Adapter) { a.out = out }
}

// WithCommands lists the command prefixes shown in the chat header.
func WithCommands(prefixes []string) Option {
	return func(a *Adapter) { a.commands = prefixes }
}

func NewAdapter(botName string, log *slog.Logger, opts ...Option) *Adapter {
	if log == nil {
		log = slog.Default()
	}

	a := &Adapter{
		botName: strings.TrimSpace(botName),
		out:     os.Stdout,
		log:     log.With("component", "channel.console"),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.botName == "" {
		a.botName = "zepler"
	}

	return a
}

func (a *Adapter) Name() string {
	return channelName
}

func (a *Adapter) Run(ctx context.Context, handler channel.Handler) error {
	if handler == nil {
		return errors.New("handler is required")
	}

	if a.prompt != "" {
		event := a.toEvent(a.prompt)
		if _, _, ok := mention.ParseDirectMention(event.Text); !ok {
			event.Text = mention.Token(BotID) + " " + event.Text
		}
		return handler(ctx, &writerConn{out: a.out}, []bus.Event{event})
	}

	var program *chat.Program
	submit := func(ctx context.Context, text string) error {
		return handler(ctx, &programConn{program: program}, []bus.Event{a.toEvent(text)})
	}
	program = chat.NewProgram(ctx, submit, chat.Info{BotName: a.botName, Channel: channelName, Commands: a.commands}, a.out)

	a.log.Info("Console connected and running!", "bot_id", BotID)
	return program.Run()
}

func (a *Adapter) toEvent(text string) bus.Event {
	return bus.Event{
		Type:    bus.EventTypeMessage,
		Text:    a.addressBot(text),
		Channel: channelName,
		User:    OperatorID,
	}
}

// addressBot rewrites a leading @name into the bot mention token.
func (a *Adapter) addressBot(text string) string {
	trimmed := strings.TrimSpace(text)
	pattern := regexp.MustCompile(`(?i)^@` + regexp.QuoteMeta(a.botName) + `\b`)
	if loc := pattern.FindStringIndex(trimmed); loc != nil {
		return mention.Token(BotID) + trimmed[loc[1]:]
	}

	return trimmed
}

// programConn shows replies in the running terminal chat.
type programConn struct {
	program *chat.Program
}

func (c *programConn) BotID() string { return BotID }

func (c *programConn) Send(_ context.Context, reply bus.Reply) error {
	c.program.Deliver(toChatReply(reply))
	return nil
}

// writerConn prints replies as plain lines.
type writerConn struct {
	out io.Writer
}

func (c *writerConn) BotID() string { return BotID }

func (c *writerConn) Send(_ context.Context, reply bus.Reply) error {
	r := toChatReply(reply)
	if r.Text != "" {
		if _, err := fmt.Fprintln(c.out, r.Text); err != nil {
			return fmt.Errorf("write reply: %w", err)
		}
	}
	if r.ImageURL != "" {
		if _, err := fmt.Fprintf(c.out, "%s: %s\n", r.Title, r.ImageURL); err != nil {
			return fmt.Errorf("write attachment: %w", err)
		}
	}

	return nil
}

func toChatReply(reply bus.Reply) chat.Reply {
	r := chat.Reply{Text: reply.Text}
	if reply.Attachment != nil {
		r.Title = reply.Attachment.Title
		r.ImageURL = reply.Attachment.ImageURL
	}

	return r
}
