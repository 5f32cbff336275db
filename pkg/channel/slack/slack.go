package slack

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"

	"zepler/pkg/bus"
	"zepler/pkg/channel"
	"zepler/pkg/config"
)

const channelName = "slack"

var errInvalidAuth = errors.New("slack rejected the app token")

// Adapter connects to Slack over Socket Mode and feeds message events to the
// command pipeline.
type Adapter struct {
	cfg     config.SlackConfig
	log     *slog.Logger
	apiOpts []slack.Option
}

// acker acknowledges Socket Mode envelopes.
type acker interface {
	Ack(req socketmode.Request, payload ...interface{})
}

type conn struct {
	api   *slack.Client
	botID string
}

// NewAdapter validates Slack configuration and constructs an adapter instance.
// Extra API options are appended after the token options.
func NewAdapter(cfg config.SlackConfig, log *slog.Logger, opts ...slack.Option) (*Adapter, error) {
	if strings.TrimSpace(cfg.BotToken) == "" {
		return nil, errors.New("channels.slack.bot_token is required")
	}
	if strings.TrimSpace(cfg.AppToken) == "" {
		return nil, errors.New("channels.slack.app_token is required")
	}

	if log == nil {
		log = slog.Default()
	}

	return &Adapter{
		cfg:     cfg,
		log:     log.With("component", "channel.slack"),
		apiOpts: opts,
	}, nil
}

func (a *Adapter) Name() string {
	return channelName
}

// Run authenticates, opens the Socket Mode connection and delivers each
// message event as a batch until ctx ends.
func (a *Adapter) Run(ctx context.Context, handler channel.Handler) error {
	if handler == nil {
		return errors.New("handler is required")
	}

	api := a.newAPI()
	c, err := a.connect(ctx, api)
	if err != nil {
		return err
	}

	var clientOpts []socketmode.Option
	if a.cfg.Debug {
		clientOpts = append(clientOpts,
			socketmode.OptionDebug(true),
			socketmode.OptionLog(slog.NewLogLogger(a.log.Handler(), slog.LevelDebug)),
		)
	}
	client := socketmode.New(api, clientOpts...)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	runErr := make(chan error, 1)
	go func() {
		runErr <- client.RunContext(ctx)
	}()

	return a.consume(ctx, client, client.Events, runErr, c, handler)
}

func (a *Adapter) newAPI() *slack.Client {
	opts := []slack.Option{slack.OptionAppLevelToken(strings.TrimSpace(a.cfg.AppToken))}
	if a.cfg.Debug {
		opts = append(opts, slack.OptionDebug(true), slack.OptionLog(slog.NewLogLogger(a.log.Handler(), slog.LevelDebug)))
	}
	opts = append(opts, a.apiOpts...)

	return slack.New(strings.TrimSpace(a.cfg.BotToken), opts...)
}

// connect resolves the bot's own user id with auth.test.
func (a *Adapter) connect(ctx context.Context, api *slack.Client) (*conn, error) {
	auth, err := api.AuthTestContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve bot identity: %w", err)
	}
	if strings.TrimSpace(auth.UserID) == "" {
		return nil, errors.New("resolve bot identity: auth.test returned no user id")
	}

	return &conn{api: api, botID: auth.UserID}, nil
}

func (a *Adapter) consume(ctx context.Context, ack acker, events <-chan socketmode.Event, runErr <-chan error, c channel.Conn, handler channel.Handler) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-runErr:
			if ctx.Err() != nil {
				return nil
			}
			if err == nil {
				return errors.New("slack socket mode client stopped")
			}
			return fmt.Errorf("run socket mode: %w", err)
		case evt, ok := <-events:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return errors.New("slack event stream closed")
			}

			event, deliver, err := a.handleSocketEvent(ack, evt, c.BotID())
			if err != nil {
				return err
			}
			if !deliver {
				continue
			}

			if err := handler(ctx, c, []bus.Event{event}); err != nil {
				a.log.Error("Failed to process event", "error", err, "channel", event.Channel)
			}
		}
	}
}

// handleSocketEvent acks Events API envelopes and extracts message events.
// Connection errors and rejected auth end the adapter.
func (a *Adapter) handleSocketEvent(ack acker, evt socketmode.Event, botID string) (bus.Event, bool, error) {
	switch evt.Type {
	case socketmode.EventTypeConnecting:
		a.log.Debug("Connecting to Slack with Socket Mode")
	case socketmode.EventTypeConnected:
		a.log.Info("zepler connected and running!", "bot_id", botID)
	case socketmode.EventTypeConnectionError:
		return bus.Event{}, false, fmt.Errorf("slack connection error: %v", evt.Data)
	case socketmode.EventTypeInvalidAuth:
		return bus.Event{}, false, errInvalidAuth
	case socketmode.EventTypeEventsAPI:
		if evt.Request != nil {
			ack.Ack(*evt.Request)
		}

		apiEvent, ok := evt.Data.(slackevents.EventsAPIEvent)
		if !ok || apiEvent.Type != slackevents.CallbackEvent {
			return bus.Event{}, false, nil
		}

		message, ok := apiEvent.InnerEvent.Data.(*slackevents.MessageEvent)
		if !ok {
			return bus.Event{}, false, nil
		}

		return toEvent(message), true, nil
	}

	return bus.Event{}, false, nil
}

func toEvent(message *slackevents.MessageEvent) bus.Event {
	return bus.Event{
		Type:    bus.EventTypeMessage,
		Subtype: message.SubType,
		Text:    message.Text,
		Channel: message.Channel,
		User:    message.User,
	}
}

func (c *conn) BotID() string {
	return c.botID
}

// Send posts the reply with chat.postMessage.
func (c *conn) Send(ctx context.Context, reply bus.Reply) error {
	if _, _, err := c.api.PostMessageContext(ctx, reply.Channel, messageOptions(reply)...); err != nil {
		return fmt.Errorf("post slack message: %w", err)
	}

	return nil
}

func messageOptions(reply bus.Reply) []slack.MsgOption {
	opts := []slack.MsgOption{slack.MsgOptionText(reply.Text, false)}
	if reply.Attachment != nil {
		opts = append(opts, slack.MsgOptionAttachments(slack.Attachment{
			Title:    reply.Attachment.Title,
			ImageURL: reply.Attachment.ImageURL,
		}))
	}

	return opts
}
