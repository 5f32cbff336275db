package console

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"zepler/pkg/bus"
	"zepler/pkg/channel"
	"zepler/pkg/logger"
)

func TestAddressBotRewritesLeadingName(t *testing.T) {
	a := NewAdapter("zepler", logger.Discard())

	require.Equal(t, "<@ZEPLER> where", a.addressBot("@zepler where"))
	require.Equal(t, "<@ZEPLER> give <@U1> tada", a.addressBot("  @Zepler give <@U1> tada "))
	require.Equal(t, "@zeplerbot where", a.addressBot("@zeplerbot where"))
	require.Equal(t, "hello @zepler", a.addressBot("hello @zepler"))
	require.Equal(t, "<@ZEPLER> where", a.addressBot("<@ZEPLER> where"))
}

func TestRunOneShotWritesReply(t *testing.T) {
	var out bytes.Buffer
	a := NewAdapter("zepler", logger.Discard(), WithPrompt(" @zepler give <@U1> dog "), WithOutput(&out))

	err := a.Run(context.Background(), func(ctx context.Context, conn channel.Conn, events []bus.Event) error {
		require.Equal(t, BotID, conn.BotID())
		require.Equal(t, []bus.Event{{Type: bus.EventTypeMessage, Text: "<@ZEPLER> give <@U1> dog", Channel: "console", User: OperatorID}}, events)

		if err := conn.Send(ctx, bus.Reply{Channel: "console", Text: "No."}); err != nil {
			return err
		}
		return conn.Send(ctx, bus.Reply{Channel: "console", Attachment: &bus.Attachment{Title: "dog for <@U1>", ImageURL: "https://x/dog.jpg"}})
	})
	require.NoError(t, err)
	require.Equal(t, "No.\ndog for <@U1>: https://x/dog.jpg\n", out.String())
}

func TestRunOneShotAddressesTheBot(t *testing.T) {
	var got []bus.Event
	a := NewAdapter("zepler", logger.Discard(), WithPrompt("give <@U1> tada"), WithOutput(&bytes.Buffer{}))

	err := a.Run(context.Background(), func(_ context.Context, _ channel.Conn, events []bus.Event) error {
		got = events
		return nil
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "<@ZEPLER> give <@U1> tada", got[0].Text)
}

func TestRunOneShotReturnsHandlerError(t *testing.T) {
	a := NewAdapter("", logger.Discard(), WithPrompt("where"), WithOutput(&bytes.Buffer{}))
	wantErr := errors.New("boom")

	err := a.Run(context.Background(), func(context.Context, channel.Conn, []bus.Event) error { return wantErr })
	require.ErrorIs(t, err, wantErr)
}

func TestRunRequiresHandler(t *testing.T) {
	require.Error(t, NewAdapter("zepler", nil).Run(context.Background(), nil))
}
