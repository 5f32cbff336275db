package command

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"zepler/pkg/bus"
)

func recordingHandler(name string, calls *[]string) Handler {
	return HandlerFunc(func(_ context.Context, cmd bus.Command) bus.Reply {
		*calls = append(*calls, name)
		return bus.Reply{Text: name + ":" + cmd.Text}
	})
}

func TestRouterPrefixRouting(t *testing.T) {
	var calls []string
	router := NewDefaultRouter(recordingHandler("give", &calls), recordingHandler("where", &calls))

	tests := []struct {
		text string
		want string
	}{
		{text: "give <@U1> tada", want: "give:give <@U1> tada"},
		{text: "GIVE <@U1> tada", want: "give:GIVE <@U1> tada"},
		{text: "Where should we eat?", want: "where:Where should we eat?"},
		{text: "frobnicate", want: NegativeReply},
		{text: "", want: NegativeReply},
		{text: "please give <@U1> tada", want: NegativeReply},
	}

	for _, tt := range tests {
		reply := router.Dispatch(context.Background(), bus.Command{Text: tt.text, Channel: "C9"})
		require.Equal(t, tt.want, reply.Text, "text %q", tt.text)
		require.Equal(t, "C9", reply.Channel)
		require.Nil(t, reply.Attachment)
	}

	require.Equal(t, []string{"give", "give", "where"}, calls)
}

func TestRouterUnknownCommandMakesNoExternalCalls(t *testing.T) {
	images := &fakeImages{url: "https://images.dog.ceo/x.jpg"}
	listings := &fakeListings{}
	router := NewDefaultRouter(
		NewRewardHandler(images, "", discard),
		NewRecommendHandler(listings, discard),
	)

	reply := router.Dispatch(context.Background(), bus.Command{Text: "frobnicate", Channel: "C1"})
	require.Equal(t, bus.Reply{Channel: "C1", Text: NegativeReply}, reply)
	require.Zero(t, images.callCount())
	require.Zero(t, listings.requestCount())
}

func TestRouterEarlierRouteWins(t *testing.T) {
	var calls []string
	router := NewRouter()
	router.Register("where", recordingHandler("first", &calls))
	router.Register("whereabouts", recordingHandler("second", &calls))
	router.Register("ignored", nil)

	router.Dispatch(context.Background(), bus.Command{Text: "whereabouts"})
	require.Equal(t, []string{"first"}, calls)
	require.Equal(t, []string{"where", "whereabouts"}, router.Prefixes())
}

func TestRouterMatchReportsFallback(t *testing.T) {
	router := NewDefaultRouter(HandlerFunc(negative), HandlerFunc(negative))

	if _, ok := router.Match("where"); !ok {
		t.Fatal("expected where to match a route")
	}
	if _, ok := router.Match("who"); ok {
		t.Fatal("expected who to fall back")
	}
}
