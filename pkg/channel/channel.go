package channel

import (
	"context"

	"zepler/pkg/bus"
)

// Conn is one live connection to a chat platform.
type Conn interface {
	// BotID is the platform user id assigned to the bot, resolved at connect time.
	BotID() string
	Send(ctx context.Context, reply bus.Reply) error
}

// Handler processes one polled batch of stream events.
type Handler func(ctx context.Context, conn Conn, batch []bus.Event) error

// Adapter bridges one chat platform into the command pipeline. Run resolves
// the bot identity once, then delivers batches in arrival order until ctx ends.
// Identity or stream failures are returned; handler errors are not.
type Adapter interface {
	Name() string
	Run(ctx context.Context, handler Handler) error
}
