// Package mention finds commands addressed to the bot in a batch of stream events.
package mention

import (
	"regexp"
	"strings"

	"zepler/pkg/bus"
)

// directMention matches a mention token at the very start of a message. A
// display suffix such as <@U123|zepler> is accepted and dropped.
var directMention = regexp.MustCompile(`(?s)^<@([^<>|\s]*)(?:\|[^<>]*)?>(.*)$`)

// Token renders the mention token addressing a user id.
func Token(id string) string {
	return "<@" + id + ">"
}

// ParseDirectMention splits text that starts with a mention into the mentioned
// user id and the trimmed remainder.
func ParseDirectMention(text string) (string, string, bool) {
	matches := directMention.FindStringSubmatch(text)
	if matches == nil {
		return "", "", false
	}

	return matches[1], strings.TrimSpace(matches[2]), true
}

// Parse returns the first command in the batch addressed to botID. The rest of
// the batch is dropped; one poll yields at most one command.
func Parse(events []bus.Event, botID string) (bus.Command, bool) {
	if botID == "" {
		return bus.Command{}, false
	}

	for _, event := range events {
		if !event.Actionable() {
			continue
		}

		userID, rest, ok := ParseDirectMention(event.Text)
		if !ok || userID != botID {
			continue
		}

		return bus.Command{Text: rest, Channel: event.Channel}, true
	}

	return bus.Command{}, false
}
