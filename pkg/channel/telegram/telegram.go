package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"unicode/utf16"

	"zepler/pkg/bus"
	"zepler/pkg/channel"
	"zepler/pkg/config"
	"zepler/pkg/mention"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
)

const (
	channelName         = "telegram"
	messagePreviewLimit = 240
	subtypeEdited       = "message_changed"
)

// outgoingMention matches mention tokens in reply text, rendered back as @name.
var outgoingMention = regexp.MustCompile(`<@([^<>|\s]+)(?:\|[^<>]*)?>`)

// Adapter bridges Telegram long polling into the command pipeline.
type Adapter struct {
	cfg       config.TelegramConfig
	allowFrom map[string]struct{}
	log       *slog.Logger
}

// identity is the bot account as reported by getMe.
type identity struct {
	id       int64
	username string
}

// conn sends replies through one authenticated bot.
type conn struct {
	bot   *telego.Bot
	botID string
	log   *slog.Logger
}

// NewAdapter validates Telegram configuration and constructs an adapter instance.
func NewAdapter(cfg config.TelegramConfig, log *slog.Logger) (*Adapter, error) {
	token := strings.TrimSpace(cfg.Token)
	if token == "" {
		return nil, errors.New("channels.telegram.token is required")
	}

	if log == nil {
		log = slog.Default()
	}

	return &Adapter{
		cfg:       cfg,
		allowFrom: allowFromSet(cfg.AllowFrom),
		log:       log.With("component", "channel.telegram"),
	}, nil
}

// Name returns the channel identifier used in logs and status.
func (a *Adapter) Name() string {
	return channelName
}

// Run starts long polling and hands every poll batch to handler.
func (a *Adapter) Run(ctx context.Context, handler channel.Handler) error {
	if handler == nil {
		return errors.New("handler is required")
	}

	bot, err := telego.NewBot(strings.TrimSpace(a.cfg.Token))
	if err != nil {
		return fmt.Errorf("initialize telegram bot: %w", err)
	}

	me, err := bot.GetMe(ctx)
	if err != nil {
		return fmt.Errorf("resolve bot identity: %w", err)
	}
	self := identity{id: me.ID, username: me.Username}
	c := &conn{bot: bot, botID: strconv.FormatInt(me.ID, 10), log: a.log}

	updates, err := bot.UpdatesViaLongPolling(ctx, nil)
	if err != nil {
		return fmt.Errorf("start long polling: %w", err)
	}

	a.log.Info("Telegram channel connected and running", "bot_id", c.botID, "bot_username", me.Username)

	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return errors.New("telegram updates channel closed")
			}

			batch := a.collectBatch(update, updates, self)
			if len(batch) == 0 {
				continue
			}

			if err := handler(ctx, c, batch); err != nil {
				a.log.Error("Failed to process update batch", "error", err, "size", len(batch))
			}
		}
	}
}

// collectBatch turns the received update plus any already queued updates into
// one batch, mirroring one getUpdates response.
func (a *Adapter) collectBatch(first telego.Update, updates <-chan telego.Update, self identity) []bus.Event {
	var batch []bus.Event
	if event, ok := a.toEvent(first, self); ok {
		batch = append(batch, event)
	}

	for {
		select {
		case update, ok := <-updates:
			if !ok {
				return batch
			}
			if event, ok := a.toEvent(update, self); ok {
				batch = append(batch, event)
			}
		default:
			return batch
		}
	}
}

// toEvent maps one Telegram update to a stream event. Non-text updates and
// messages from senders outside allow_from are dropped.
func (a *Adapter) toEvent(update telego.Update, self identity) (bus.Event, bool) {
	message, subtype := update.Message, ""
	if message == nil && update.EditedMessage != nil {
		message, subtype = update.EditedMessage, subtypeEdited
	}
	if message == nil || strings.TrimSpace(message.Text) == "" {
		return bus.Event{}, false
	}
	if message.From == nil {
		a.log.Debug("Ignoring message without sender")
		return bus.Event{}, false
	}

	senderID := strconv.FormatInt(message.From.ID, 10)
	if !a.senderAllowed(senderID) {
		a.log.Debug("Ignoring message from unauthorized sender", "sender_id", senderID)
		return bus.Event{}, false
	}

	event := bus.Event{
		Type:    bus.EventTypeMessage,
		Subtype: subtype,
		Text:    normalizeMentions(message.Text, message.Entities, self),
		Channel: strconv.FormatInt(message.Chat.ID, 10),
		User:    senderID,
	}
	a.log.Debug("Received message", "channel", event.Channel, "sender_id", senderID, "content", previewText(event.Text))

	return event, true
}

func (c *conn) BotID() string {
	return c.botID
}

// Send posts reply text with sendMessage and the attachment with sendPhoto.
func (c *conn) Send(ctx context.Context, reply bus.Reply) error {
	chatID, err := strconv.ParseInt(strings.TrimSpace(reply.Channel), 10, 64)
	if err != nil {
		return fmt.Errorf("parse chat id %q: %w", reply.Channel, err)
	}

	if text := renderMentions(reply.Text); text != "" {
		if _, err := c.bot.SendMessage(ctx, tu.Message(tu.ID(chatID), text)); err != nil {
			return fmt.Errorf("send telegram message: %w", err)
		}
	}

	if reply.Attachment != nil && reply.Attachment.ImageURL != "" {
		photo := tu.Photo(tu.ID(chatID), tu.FileFromURL(reply.Attachment.ImageURL)).
			WithCaption(renderMentions(reply.Attachment.Title))
		if _, err := c.bot.SendPhoto(ctx, photo); err != nil {
			return fmt.Errorf("send telegram photo: %w", err)
		}
	}

	return nil
}

// normalizeMentions rewrites Telegram mention entities into <@id> tokens so
// the bot's own mention reads <@botID>.
func normalizeMentions(text string, entities []telego.MessageEntity, self identity) string {
	if len(entities) == 0 {
		return text
	}

	units := utf16.Encode([]rune(text))
	sorted := slices.Clone(entities)
	slices.SortFunc(sorted, func(a, b telego.MessageEntity) int { return b.Offset - a.Offset })

	for _, entity := range sorted {
		start, end := entity.Offset, entity.Offset+entity.Length
		if start < 0 || end > len(units) || start >= end {
			continue
		}

		var token string
		switch entity.Type {
		case telego.EntityTypeMention:
			username := strings.TrimPrefix(string(utf16.Decode(units[start:end])), "@")
			if strings.EqualFold(username, self.username) {
				token = mention.Token(strconv.FormatInt(self.id, 10))
			} else {
				token = mention.Token(username)
			}
		case telego.EntityTypeTextMention:
			if entity.User == nil {
				continue
			}
			token = mention.Token(strconv.FormatInt(entity.User.ID, 10))
		default:
			continue
		}

		replaced := make([]uint16, 0, len(units)-(end-start)+len(token))
		replaced = append(replaced, units[:start]...)
		replaced = append(replaced, utf16.Encode([]rune(token))...)
		replaced = append(replaced, units[end:]...)
		units = replaced
	}

	return string(utf16.Decode(units))
}

// renderMentions turns <@name> tokens back into Telegram @name mentions.
func renderMentions(text string) string {
	return strings.TrimSpace(outgoingMention.ReplaceAllString(text, "@$1"))
}

// senderAllowed checks whether a sender is permitted by allow_from config.
//
// When no allow list is configured, all senders are accepted.
func (a *Adapter) senderAllowed(senderID string) bool {
	if len(a.allowFrom) == 0 {
		return true
	}

	_, ok := a.allowFrom[strings.TrimSpace(senderID)]
	return ok
}

// allowFromSet normalizes allow_from values into a lookup set.
func allowFromSet(allowFrom []string) map[string]struct{} {
	allowed := make(map[string]struct{}, len(allowFrom))
	for _, value := range allowFrom {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			allowed[trimmed] = struct{}{}
		}
	}

	if len(allowed) == 0 {
		return nil
	}

	return allowed
}

// previewText returns a bounded log-safe preview of message text.
func previewText(text string) string {
	trimmed := strings.TrimSpace(text)
	if len(trimmed) <= messagePreviewLimit {
		return trimmed
	}

	return trimmed[:messagePreviewLimit] + "..."
}
