package command

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"zepler/pkg/bus"
	"zepler/pkg/provider"
	providertypes "zepler/pkg/provider/types"
)

const (
	// CooldownWindow is the minimum gap between two granted recommendations.
	CooldownWindow = 45 * time.Second
	// CooldownReply answers a recommendation asked for inside the window.
	CooldownReply = "I'VE ALREADY BEEN ASKED. 😠"
)

// FillerChoices are always in the running, and are the only choices when the
// listing service is down.
var FillerChoices = []string{"Mega Bites 😍", "Space Bar 🚀"}

// RecommendOption customizes a RecommendHandler.
type RecommendOption func(*RecommendHandler)

// WithClock replaces the wall clock used for the cooldown window.
func WithClock(clock clockwork.Clock) RecommendOption {
	return func(h *RecommendHandler) {
		if clock != nil {
			h.clock = clock
		}
	}
}

// WithPicker replaces the uniform random choice; pick(n) must return [0, n).
func WithPicker(pick func(n int) int) RecommendOption {
	return func(h *RecommendHandler) {
		if pick != nil {
			h.pick = pick
		}
	}
}

// RecommendHandler answers "where" with a random nearby restaurant, at most
// once per CooldownWindow across every channel and user.
type RecommendHandler struct {
	listings providertypes.ListingSource
	clock    clockwork.Clock
	pick     func(n int) int
	log      *slog.Logger

	mu            sync.Mutex
	lastGrantedAt time.Time
}

func NewRecommendHandler(listings providertypes.ListingSource, log *slog.Logger, opts ...RecommendOption) *RecommendHandler {
	if log == nil {
		log = slog.Default()
	}

	h := &RecommendHandler{
		listings: listings,
		clock:    clockwork.NewRealClock(),
		pick:     rand.IntN,
		log:      log.With("component", "command.recommend"),
	}
	for _, opt := range opts {
		opt(h)
	}

	return h
}

func (h *RecommendHandler) Handle(ctx context.Context, cmd bus.Command) bus.Reply {
	return bus.Reply{Channel: cmd.Channel, Text: h.Where(ctx)}
}

// Where returns the reply text and records the grant time when allowed.
func (h *RecommendHandler) Where(ctx context.Context) string {
	h.mu.Lock()
	defer h.mu.Unlock()

	now := h.clock.Now()
	if !h.lastGrantedAt.IsZero() {
		if elapsed := now.Sub(h.lastGrantedAt); elapsed < CooldownWindow {
			h.log.Info("Recommendation refused during cooldown", "elapsed", elapsed, "window", CooldownWindow)
			return CooldownReply
		}
	}

	choices := h.candidates(ctx)
	choice := choices[h.pick(len(choices))]
	h.lastGrantedAt = now

	return fmt.Sprintf("You will go to %s.", choice)
}

// LastGrantedAt returns when the last recommendation was granted, or the zero time.
func (h *RecommendHandler) LastGrantedAt() time.Time {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lastGrantedAt
}

// candidates merges the labelled listings with the filler choices.
func (h *RecommendHandler) candidates(ctx context.Context) []string {
	choices := make([]string, 0, provider.PageCount*provider.PageSize+len(FillerChoices))

	if h.listings != nil {
		listings, err := provider.FetchPages(ctx, h.listings)
		if err != nil {
			h.log.Warn("Listing fetch failed, recommending fillers only",
				"error", err,
				"category", providertypes.CategoryFromError(err),
			)
		} else {
			choices = append(choices, labels(listings)...)
		}
	}

	return append(choices, FillerChoices...)
}

// labels renders "<name> (<rating>⭐)" per listing, dropping duplicates.
func labels(listings []providertypes.Listing) []string {
	seen := make(map[string]struct{}, len(listings))
	out := make([]string, 0, len(listings))
	for _, listing := range listings {
		label := fmt.Sprintf("%s (%.1f⭐)", listing.Name, listing.Rating)
		if _, dup := seen[label]; dup {
			continue
		}
		seen[label] = struct{}{}
		out = append(out, label)
	}

	return out
}
