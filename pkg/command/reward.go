package command

import (
	"context"
	"log/slog"
	"strings"

	"github.com/kyokomi/emoji/v2"

	"zepler/pkg/bus"
	"zepler/pkg/config"
	providertypes "zepler/pkg/provider/types"
)

const dogReward = "dog"

// fillerWords are articles people put between the recipient and the reward.
var fillerWords = map[string]struct{}{
	"a":   {},
	"the": {},
}

// GlyphResolver maps a reward name such as "tada" to its display glyph.
type GlyphResolver func(name string) (string, bool)

// EmojiGlyph resolves reward names through the emoji short-code and alias table.
func EmojiGlyph(name string) (string, bool) {
	name = strings.Trim(strings.TrimSpace(name), ":")
	if name == "" {
		return "", false
	}

	glyph, ok := emoji.CodeMap()[":"+name+":"]
	glyph = strings.TrimSpace(glyph)
	return glyph, ok && glyph != ""
}

// RewardHandler answers "give <@user> [a|the] <reward>".
type RewardHandler struct {
	images      providertypes.ImageSource
	fallbackURL string
	glyph       GlyphResolver
	log         *slog.Logger
}

func NewRewardHandler(images providertypes.ImageSource, fallbackURL string, log *slog.Logger) *RewardHandler {
	if log == nil {
		log = slog.Default()
	}
	if strings.TrimSpace(fallbackURL) == "" {
		fallbackURL = config.DefaultFallbackImageURL
	}

	return &RewardHandler{
		images:      images,
		fallbackURL: fallbackURL,
		glyph:       EmojiGlyph,
		log:         log.With("component", "command.reward"),
	}
}

func (h *RewardHandler) Handle(ctx context.Context, cmd bus.Command) bus.Reply {
	reply := h.Give(ctx, cmd.Text)
	reply.Channel = cmd.Channel
	return reply
}

// Give parses the command text and builds the reward reply.
func (h *RewardHandler) Give(ctx context.Context, text string) bus.Reply {
	tokens := rewardTokens(text)
	if len(tokens) < 3 {
		return bus.Reply{Text: NegativeReply}
	}

	recipient, name := tokens[1], tokens[2]
	if !strings.HasPrefix(recipient, "<@") {
		return bus.Reply{Text: NegativeReply}
	}

	glyph, ok := h.glyph(name)
	if !ok {
		h.log.Debug("Unknown reward", "reward", name)
		return bus.Reply{Text: NegativeReply}
	}

	if name == dogReward {
		return bus.Reply{Attachment: &bus.Attachment{
			Title:    "dog for " + recipient,
			ImageURL: h.dogImageURL(ctx),
		}}
	}

	return bus.Reply{Text: recipient + " you deserved a " + glyph}
}

// dogImageURL never returns an empty string; failures fall back to a fixed image.
func (h *RewardHandler) dogImageURL(ctx context.Context) string {
	if h.images == nil {
		return h.fallbackURL
	}

	url, err := h.images.RandomImageURL(ctx)
	if err != nil || strings.TrimSpace(url) == "" {
		h.log.Warn("Dog image fetch failed, using fallback",
			"error", err,
			"category", providertypes.CategoryFromError(err),
		)
		return h.fallbackURL
	}

	return url
}

// rewardTokens splits on whitespace and drops filler articles after the verb.
func rewardTokens(text string) []string {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return nil
	}

	tokens := make([]string, 0, len(fields))
	tokens = append(tokens, fields[0])
	for _, field := range fields[1:] {
		if _, filler := fillerWords[strings.ToLower(field)]; filler {
			continue
		}
		tokens = append(tokens, field)
	}

	return tokens
}
