package slack

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"zepler/pkg/bus"
	"zepler/pkg/channel"
	"zepler/pkg/config"
	"zepler/pkg/logger"
)

type recordingAcker struct {
	mu    sync.Mutex
	acked []string
}

func (r *recordingAcker) Ack(req socketmode.Request, _ ...interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.acked = append(r.acked, req.EnvelopeID)
}

type stubConn struct{}

func (stubConn) BotID() string { return "UBOT" }
func (stubConn) Send(context.Context, bus.Reply) error { return nil }

func newTestAdapter(t *testing.T, opts ...slack.Option) *Adapter {
	t.Helper()
	adapter, err := NewAdapter(config.SlackConfig{Enabled: true, BotToken: "xoxb-test", AppToken: "xapp-test"}, logger.Discard(), opts...)
	require.NoError(t, err)
	return adapter
}

func messageEnvelope(id string, message *slackevents.MessageEvent) socketmode.Event {
	return socketmode.Event{
		Type: socketmode.EventTypeEventsAPI,
		Data: slackevents.EventsAPIEvent{
			Type:       slackevents.CallbackEvent,
			InnerEvent: slackevents.EventsAPIInnerEvent{Type: "message", Data: message},
		},
		Request: &socketmode.Request{EnvelopeID: id},
	}
}

func TestNewAdapterRequiresTokens(t *testing.T) {
	_, err := NewAdapter(config.SlackConfig{Enabled: true, AppToken: "xapp"}, nil)
	require.Error(t, err)

	_, err = NewAdapter(config.SlackConfig{Enabled: true, BotToken: "xoxb"}, nil)
	require.Error(t, err)
}

func TestHandleSocketEventAcksAndMapsMessages(t *testing.T) {
	adapter := newTestAdapter(t)
	ack := &recordingAcker{}

	event, deliver, err := adapter.handleSocketEvent(ack, messageEnvelope("env-1", &slackevents.MessageEvent{
		Type:    "message",
		User:    "U1",
		Text:    "<@UBOT> where",
		Channel: "C1",
	}), "UBOT")
	require.NoError(t, err)
	require.True(t, deliver)
	require.Equal(t, bus.Event{Type: bus.EventTypeMessage, Text: "<@UBOT> where", Channel: "C1", User: "U1"}, event)
	require.Equal(t, []string{"env-1"}, ack.acked)
}

func TestHandleSocketEventKeepsSubtype(t *testing.T) {
	adapter := newTestAdapter(t)

	event, deliver, err := adapter.handleSocketEvent(&recordingAcker{}, messageEnvelope("env-2", &slackevents.MessageEvent{
		Type:    "message",
		SubType: "message_changed",
		Channel: "C1",
	}), "UBOT")
	require.NoError(t, err)
	require.True(t, deliver)
	require.False(t, event.Actionable())
}

func TestHandleSocketEventIgnoresOtherEvents(t *testing.T) {
	adapter := newTestAdapter(t)
	ack := &recordingAcker{}

	nonMessage := socketmode.Event{
		Type: socketmode.EventTypeEventsAPI,
		Data: slackevents.EventsAPIEvent{
			Type:       slackevents.CallbackEvent,
			InnerEvent: slackevents.EventsAPIInnerEvent{Type: "reaction_added", Data: &slackevents.ReactionAddedEvent{}},
		},
		Request: &socketmode.Request{EnvelopeID: "env-3"},
	}

	for _, evt := range []socketmode.Event{
		{Type: socketmode.EventTypeConnecting},
		{Type: socketmode.EventTypeConnected},
		{Type: socketmode.EventTypeHello},
		nonMessage,
	} {
		_, deliver, err := adapter.handleSocketEvent(ack, evt, "UBOT")
		require.NoError(t, err)
		require.False(t, deliver)
	}
	require.Equal(t, []string{"env-3"}, ack.acked)
}

func TestHandleSocketEventFailsOnConnectionProblems(t *testing.T) {
	adapter := newTestAdapter(t)

	_, _, err := adapter.handleSocketEvent(&recordingAcker{}, socketmode.Event{Type: socketmode.EventTypeInvalidAuth}, "UBOT")
	require.ErrorIs(t, err, errInvalidAuth)

	_, _, err = adapter.handleSocketEvent(&recordingAcker{}, socketmode.Event{Type: socketmode.EventTypeConnectionError, Data: errors.New("dial failed")}, "UBOT")
	require.ErrorContains(t, err, "dial failed")
}

func TestConsumeDeliversBatchesUntilCanceled(t *testing.T) {
	adapter := newTestAdapter(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events := make(chan socketmode.Event, 2)
	events <- messageEnvelope("env-1", &slackevents.MessageEvent{Type: "message", User: "U1", Text: "<@UBOT> give <@U2> tada", Channel: "C1"})
	events <- messageEnvelope("env-2", &slackevents.MessageEvent{Type: "message", User: "U1", Text: "hello", Channel: "C2"})

	var (
		mu      sync.Mutex
		batches [][]bus.Event
	)
	handler := func(_ context.Context, conn channel.Conn, batch []bus.Event) error {
		assert.Equal(t, "UBOT", conn.BotID())
		mu.Lock()
		defer mu.Unlock()
		batches = append(batches, batch)
		if len(batches) == 2 {
			cancel()
		}
		return errors.New("handler errors are not fatal")
	}

	err := adapter.consume(ctx, &recordingAcker{}, events, make(chan error), stubConn{}, handler)
	require.NoError(t, err)
	require.Len(t, batches, 2)
	require.Equal(t, "C1", batches[0][0].Channel)
	require.Equal(t, "C2", batches[1][0].Channel)
}

func TestConsumeReturnsClientFailure(t *testing.T) {
	adapter := newTestAdapter(t)
	runErr := make(chan error, 1)
	runErr <- errors.New("socket closed")

	done := make(chan error, 1)
	go func() {
		done <- adapter.consume(context.Background(), &recordingAcker{}, make(chan socketmode.Event), runErr, stubConn{}, func(context.Context, channel.Conn, []bus.Event) error { return nil })
	}()

	select {
	case err := <-done:
		require.ErrorContains(t, err, "socket closed")
	case <-time.After(2 * time.Second):
		t.Fatal("consume did not return")
	}
}

func TestConnectAndSendUseWebAPI(t *testing.T) {
	var (
		mu    sync.Mutex
		posts []map[string]string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/auth.test":
			_, _ = w.Write([]byte(`{"ok":true,"user_id":"UBOT"}`))
		case "/chat.postMessage":
			assert.NoError(t, r.ParseForm())
			mu.Lock()
			posts = append(posts, map[string]string{
				"channel":     r.FormValue("channel"),
				"text":        r.FormValue("text"),
				"attachments": r.FormValue("attachments"),
			})
			mu.Unlock()
			_, _ = w.Write([]byte(`{"ok":true,"channel":"C1","ts":"1.0"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	adapter := newTestAdapter(t, slack.OptionAPIURL(server.URL+"/"))
	c, err := adapter.connect(context.Background(), adapter.newAPI())
	require.NoError(t, err)
	require.Equal(t, "UBOT", c.BotID())

	require.NoError(t, c.Send(context.Background(), bus.Reply{Channel: "C1", Text: "You will go to Space Bar 🚀."}))
	require.NoError(t, c.Send(context.Background(), bus.Reply{
		Channel:    "C1",
		Attachment: &bus.Attachment{Title: "dog for <@U2>", ImageURL: "https://images.dog.ceo/x.jpg"},
	}))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, posts, 2)
	require.Equal(t, "You will go to Space Bar 🚀.", posts[0]["text"])
	require.Empty(t, posts[0]["attachments"])
	require.Equal(t, "dog for <@U2>", gjson.Get(posts[1]["attachments"], "0.title").String())
	require.Equal(t, "https://images.dog.ceo/x.jpg", gjson.Get(posts[1]["attachments"], "0.image_url").String())
}

func TestConnectFailsWhenAuthIsRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":false,"error":"invalid_auth"}`))
	}))
	defer server.Close()

	adapter := newTestAdapter(t, slack.OptionAPIURL(server.URL+"/"))
	_, err := adapter.connect(context.Background(), adapter.newAPI())
	require.ErrorContains(t, err, "invalid_auth")
}
