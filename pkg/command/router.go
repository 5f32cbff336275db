// Package command routes addressed commands to the handlers that answer them.
package command

import (
	"context"
	"strings"

	"zepler/pkg/bus"
)

// NegativeReply answers unknown and malformed commands.
const NegativeReply = "No."

const (
	PrefixGive  = "give"
	PrefixWhere = "where"
)

// Handler turns one addressed command into a reply. Handlers recover from
// their own failures; a reply is always produced.
type Handler interface {
	Handle(ctx context.Context, cmd bus.Command) bus.Reply
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, cmd bus.Command) bus.Reply

func (f HandlerFunc) Handle(ctx context.Context, cmd bus.Command) bus.Reply {
	return f(ctx, cmd)
}

type route struct {
	prefix  string
	handler Handler
}

// Router selects a handler by case-insensitive prefix, in registration order.
type Router struct {
	routes   []route
	fallback Handler
}

func NewRouter() *Router {
	return &Router{fallback: HandlerFunc(negative)}
}

// NewDefaultRouter wires the give and where commands.
func NewDefaultRouter(reward Handler, recommend Handler) *Router {
	r := NewRouter()
	r.Register(PrefixGive, reward)
	r.Register(PrefixWhere, recommend)
	return r
}

// Register appends a route. Earlier routes win when prefixes overlap.
func (r *Router) Register(prefix string, handler Handler) {
	if handler == nil {
		return
	}
	r.routes = append(r.routes, route{prefix: strings.ToLower(prefix), handler: handler})
}

// Match returns the handler for a command text and whether a route matched.
func (r *Router) Match(text string) (Handler, bool) {
	lowered := strings.ToLower(text)
	for _, rt := range r.routes {
		if strings.HasPrefix(lowered, rt.prefix) {
			return rt.handler, true
		}
	}

	return r.fallback, false
}

// Dispatch answers cmd with the matching handler or the negative fallback.
func (r *Router) Dispatch(ctx context.Context, cmd bus.Command) bus.Reply {
	handler, _ := r.Match(cmd.Text)
	reply := handler.Handle(ctx, cmd)
	reply.Channel = cmd.Channel
	return reply
}

// Prefixes lists registered command prefixes in priority order.
func (r *Router) Prefixes() []string {
	prefixes := make([]string, 0, len(r.routes))
	for _, rt := range r.routes {
		prefixes = append(prefixes, rt.prefix)
	}
	return prefixes
}

func negative(_ context.Context, cmd bus.Command) bus.Reply {
	return bus.Reply{Channel: cmd.Channel, Text: NegativeReply}
}
