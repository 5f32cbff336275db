// Package reply shapes outbound replies and hands them to a chat platform.
package reply

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"zepler/pkg/bus"
)

// ErrEmptyReply is returned for a reply with neither text nor an image.
var ErrEmptyReply = errors.New("reply has no text and no attachment")

// Sender posts one reply to a chat platform.
type Sender interface {
	Send(ctx context.Context, reply bus.Reply) error
}

// Composer normalizes replies, logs them, and delegates to a Sender.
type Composer struct {
	log *slog.Logger
}

func NewComposer(log *slog.Logger) *Composer {
	if log == nil {
		log = slog.Default()
	}

	return &Composer{log: log.With("component", "reply.composer")}
}

// Send shapes the reply and posts it through sender.
func (c *Composer) Send(ctx context.Context, sender Sender, r bus.Reply) error {
	if sender == nil {
		return errors.New("sender is required")
	}

	r = Shape(r)
	if r.Empty() {
		return ErrEmptyReply
	}

	c.log.Info(fmt.Sprintf("#%s: %s", r.Channel, r.Text), "channel", r.Channel, "attachment", attachmentTitle(r))

	if err := sender.Send(ctx, r); err != nil {
		return fmt.Errorf("send reply to %s: %w", r.Channel, err)
	}

	return nil
}

// Shape drops an attachment without an image URL and trims its fields.
func Shape(r bus.Reply) bus.Reply {
	if r.Attachment == nil {
		return r
	}

	attachment := bus.Attachment{
		Title:    strings.TrimSpace(r.Attachment.Title),
		ImageURL: strings.TrimSpace(r.Attachment.ImageURL),
	}
	if attachment.ImageURL == "" {
		r.Attachment = nil
		return r
	}

	r.Attachment = &attachment
	return r
}

func attachmentTitle(r bus.Reply) string {
	if r.Attachment == nil {
		return ""
	}
	return r.Attachment.Title
}
