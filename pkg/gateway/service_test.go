package gateway

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"zepler/pkg/bus"
	"zepler/pkg/channel"
	"zepler/pkg/command"
	"zepler/pkg/config"
	"zepler/pkg/logger"
)

func TestNewServiceValidatesInputs(t *testing.T) {
	t.Parallel()

	adapters := []channel.Adapter{newScriptedAdapter("slack")}

	_, err := NewService(nil, command.NewRouter(), adapters, nil)
	require.Error(t, err)

	_, err = NewService(config.Default(), nil, adapters, nil)
	require.Error(t, err)

	_, err = NewService(config.Default(), command.NewRouter(), nil, nil)
	require.Error(t, err)
}

func TestNewRouterFromConfig(t *testing.T) {
	t.Parallel()

	router, err := NewRouter(config.Default(), logger.Discard())
	require.NoError(t, err)
	require.Equal(t, []string{command.PrefixGive, command.PrefixWhere}, router.Prefixes())
}

func TestIsReady(t *testing.T) {
	t.Parallel()

	svc := &Service{channelStates: map[string]channelState{"telegram": {}, "slack": {}}}
	require.False(t, svc.isReady())

	svc.setChannelState("slack", channelState{Running: true})
	require.True(t, svc.isReady())

	svc.setChannelState("slack", channelState{Error: "boom"})
	require.False(t, svc.isReady())
}

func TestStatusHandlerReportsNotReady(t *testing.T) {
	t.Parallel()

	svc, err := NewService(config.Default(), command.NewRouter(), []channel.Adapter{newScriptedAdapter("slack")}, logger.Discard())
	require.NoError(t, err)

	recorder := httptest.NewRecorder()
	svc.statusHandler().ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusServiceUnavailable, recorder.Code)
	require.Contains(t, recorder.Body.String(), `"status":"not_ready"`)

	recorder = httptest.NewRecorder()
	svc.statusHandler().ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, recorder.Code)
	require.Equal(t, "application/json", recorder.Header().Get("Content-Type"))
}

func TestStatusAddrDefaults(t *testing.T) {
	t.Parallel()

	svc := &Service{cfg: &config.Config{}}
	require.Equal(t, "127.0.0.1:18790", svc.statusAddr())

	svc.cfg.Gateway = config.GatewayConfig{Host: "0.0.0.0", Port: 9000}
	require.Equal(t, "0.0.0.0:9000", svc.statusAddr())
}

func TestHandlerIgnoresBatchesWithoutCommand(t *testing.T) {
	t.Parallel()

	svc, err := NewService(config.Default(), command.NewRouter(), []channel.Adapter{newScriptedAdapter("slack")}, logger.Discard())
	require.NoError(t, err)

	conn := &recordingConn{}
	handler := svc.handlerFor("slack")

	require.NoError(t, handler(context.Background(), conn, nil))
	require.NoError(t, handler(context.Background(), conn, []bus.Event{message("C1", "hi <@UBOT> where")}))
	require.NoError(t, handler(context.Background(), conn, []bus.Event{message("C1", "<@UOTHER> where")}))
	require.Empty(t, conn.sent())

	require.Error(t, handler(context.Background(), nil, nil))
}

func TestHandlerAnswersFirstAddressedMessage(t *testing.T) {
	t.Parallel()

	svc, err := NewService(config.Default(), command.NewRouter(), []channel.Adapter{newScriptedAdapter("slack")}, logger.Discard())
	require.NoError(t, err)

	conn := &recordingConn{}
	err = svc.handlerFor("slack")(context.Background(), conn, []bus.Event{
		message("C1", "just chatting"),
		message("C2", "<@UBOT> sing"),
		message("C3", "<@UBOT> where"),
	})
	require.NoError(t, err)
	require.Equal(t, []bus.Reply{{Channel: "C2", Text: command.NegativeReply}}, conn.sent())
}

func TestLogActivityLevels(t *testing.T) {
	t.Parallel()

	recorder := &recordingHandler{}
	log := slog.New(recorder)

	logActivity(log, bus.Activity{Type: bus.ActivityCommandReceived, RequestID: "1"})
	require.Equal(t, slog.LevelInfo, recorder.LastLevel())

	logActivity(log, bus.Activity{Type: bus.ActivityCommandReplied, RequestID: "2"})
	require.Equal(t, slog.LevelDebug, recorder.LastLevel())

	logActivity(log, bus.Activity{Type: bus.ActivityCommandFailed, RequestID: "3", Error: "boom"})
	require.Equal(t, slog.LevelError, recorder.LastLevel())
}

type recordingHandler struct {
	mu      sync.Mutex
	records []slog.Record
}

func (h *recordingHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *recordingHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = append(h.records, r.Clone())
	return nil
}

func (h *recordingHandler) WithAttrs(_ []slog.Attr) slog.Handler { return h }

func (h *recordingHandler) WithGroup(_ string) slog.Handler { return h }

func (h *recordingHandler) LastLevel() slog.Level {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.records) == 0 {
		return 0
	}
	return h.records[len(h.records)-1].Level
}
