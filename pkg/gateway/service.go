package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"zepler/pkg/bus"
	"zepler/pkg/channel"
	"zepler/pkg/command"
	"zepler/pkg/config"
	"zepler/pkg/mention"
	"zepler/pkg/provider"
	"zepler/pkg/reply"
)

const (
	defaultHealthHost = "127.0.0.1"
	defaultHealthPort = 18790
)

// Service feeds adapter batches through mention parsing, routing and reply
// composition. At most one command is dispatched at a time across all
// channels.
type Service struct {
	cfg      *config.Config
	log      *slog.Logger
	router   *command.Router
	composer *reply.Composer
	activity *bus.Bus
	channels []channel.Adapter

	dispatchMu sync.Mutex

	mu             sync.RWMutex
	startedAt      time.Time
	channelStates  map[string]channelState
	counters       counters
	lastActivityAt time.Time
}

type channelState struct {
	Running bool   `json:"running"`
	Error   string `json:"error,omitempty"`
}

type counters struct {
	Received int64 `json:"received"`
	Replied  int64 `json:"replied"`
	Failed   int64 `json:"failed"`
}

type statusResponse struct {
	Status         string                  `json:"status"`
	UptimeSeconds  int64                   `json:"uptime_seconds"`
	Channels       map[string]channelState `json:"channels"`
	Commands       counters                `json:"commands"`
	LastActivityAt string                  `json:"last_activity_at,omitempty"`
}

// NewRouter builds the give/where command table on top of the configured
// content providers.
func NewRouter(cfg *config.Config, log *slog.Logger) (*command.Router, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}

	sources, err := provider.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("initialize providers: %w", err)
	}

	reward := command.NewRewardHandler(sources.Images, cfg.Services.DogCEO.FallbackImageURL, log)
	recommend := command.NewRecommendHandler(sources.Listings, log)

	return command.NewDefaultRouter(reward, recommend), nil
}

func NewService(cfg *config.Config, router *command.Router, adapters []channel.Adapter, log *slog.Logger) (*Service, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if router == nil {
		return nil, errors.New("router is required")
	}
	if len(adapters) == 0 {
		return nil, errors.New("at least one channel adapter is required")
	}
	if log == nil {
		log = slog.Default()
	}

	channelStates := make(map[string]channelState, len(adapters))
	for _, adapter := range adapters {
		channelStates[adapter.Name()] = channelState{}
	}

	return &Service{
		cfg:           cfg,
		log:           log.With("component", "gateway.service"),
		router:        router,
		composer:      reply.NewComposer(log),
		activity:      bus.New(),
		channels:      adapters,
		channelStates: channelStates,
	}, nil
}

// Activity exposes the activity bus for observers.
func (s *Service) Activity() *bus.Bus {
	return s.activity
}

// Run starts the status server and every channel. It returns when ctx ends or
// the first channel fails.
func (s *Service) Run(ctx context.Context) error {
	return s.run(ctx, true)
}

// RunChannels runs the channels without the status server.
func (s *Service) RunChannels(ctx context.Context) error {
	return s.run(ctx, false)
}

func (s *Service) run(ctx context.Context, withStatus bool) error {
	if ctx == nil {
		ctx = context.Background()
	}

	s.mu.Lock()
	s.startedAt = time.Now().UTC()
	s.mu.Unlock()

	activities, unsubscribe := s.activity.Subscribe(ctx, 0)
	defer unsubscribe()

	observed := make(chan struct{})
	go func() {
		defer close(observed)
		s.observe(activities)
	}()

	g, gctx := errgroup.WithContext(ctx)
	if withStatus {
		g.Go(func() error {
			return s.serveStatus(gctx)
		})
	}

	for _, adapter := range s.channels {
		g.Go(func() error {
			return s.runChannel(gctx, adapter)
		})
	}

	err := g.Wait()
	unsubscribe()
	<-observed

	return err
}

func (s *Service) runChannel(ctx context.Context, adapter channel.Adapter) error {
	name := adapter.Name()
	s.setChannelState(name, channelState{Running: true})
	s.log.Info("Channel starting", "channel_name", name)

	err := adapter.Run(ctx, s.handlerFor(name))
	s.setChannelState(name, channelState{Running: false, Error: errorString(err)})
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("run %s channel: %w", name, err)
	}

	s.log.Info("Channel stopped", "channel_name", name)
	return nil
}

// handlerFor returns the batch handler given to one adapter.
func (s *Service) handlerFor(adapterName string) channel.Handler {
	return func(ctx context.Context, conn channel.Conn, events []bus.Event) error {
		if conn == nil {
			return errors.New("connection is required")
		}

		cmd, ok := mention.Parse(events, conn.BotID())
		if !ok {
			return nil
		}

		return s.dispatch(ctx, adapterName, conn, cmd)
	}
}

// dispatch routes one command and sends its reply while holding the dispatch gate.
func (s *Service) dispatch(ctx context.Context, adapterName string, conn channel.Conn, cmd bus.Command) error {
	s.dispatchMu.Lock()
	defer s.dispatchMu.Unlock()

	requestID := uuid.NewString()
	s.activity.Publish(ctx, bus.Activity{
		Type:      bus.ActivityCommandReceived,
		Adapter:   adapterName,
		Channel:   cmd.Channel,
		RequestID: requestID,
		Command:   cmd.Text,
	})

	out := s.router.Dispatch(ctx, cmd)
	if err := s.composer.Send(ctx, conn, out); err != nil {
		s.activity.Publish(ctx, bus.Activity{
			Type:      bus.ActivityCommandFailed,
			Adapter:   adapterName,
			Channel:   cmd.Channel,
			RequestID: requestID,
			Command:   cmd.Text,
			Error:     err.Error(),
		})
		return err
	}

	payload := map[string]string{"text": out.Text}
	if out.Attachment != nil {
		payload["image_url"] = out.Attachment.ImageURL
	}
	s.activity.Publish(ctx, bus.Activity{
		Type:      bus.ActivityCommandReplied,
		Adapter:   adapterName,
		Channel:   cmd.Channel,
		RequestID: requestID,
		Command:   cmd.Text,
		Payload:   payload,
	})

	return nil
}

// observe logs activities and keeps the status counters until the feed closes.
func (s *Service) observe(activities <-chan bus.Activity) {
	for activity := range activities {
		logActivity(s.log, activity)

		s.mu.Lock()
		switch activity.Type {
		case bus.ActivityCommandReceived:
			s.counters.Received++
		case bus.ActivityCommandReplied:
			s.counters.Replied++
		case bus.ActivityCommandFailed:
			s.counters.Failed++
		}
		s.lastActivityAt = activity.At
		s.mu.Unlock()
	}
}

func logActivity(log *slog.Logger, activity bus.Activity) {
	attrs := []any{
		"request_id", activity.RequestID,
		"adapter", activity.Adapter,
		"channel", activity.Channel,
		"command", activity.Command,
	}

	switch activity.Type {
	case bus.ActivityCommandReceived:
		log.Info("Command received", attrs...)
	case bus.ActivityCommandReplied:
		log.Debug("Command replied", append(attrs, "reply", activity.Payload["text"])...)
	case bus.ActivityCommandFailed:
		log.Error("Command failed", append(attrs, "error", activity.Error)...)
	default:
		log.Debug("Activity", append(attrs, "type", string(activity.Type))...)
	}
}

func (s *Service) statusAddr() string {
	host := strings.TrimSpace(s.cfg.Gateway.Host)
	if host == "" {
		host = defaultHealthHost
	}

	port := s.cfg.Gateway.Port
	if port <= 0 {
		port = defaultHealthPort
	}

	return host + ":" + strconv.Itoa(port)
}

func (s *Service) statusHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)
	return mux
}

// serveStatus runs the status server until ctx ends.
func (s *Service) serveStatus(ctx context.Context) error {
	addr := s.statusAddr()
	server := &http.Server{
		Addr:              addr,
		Handler:           s.statusHandler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	s.log.Info("Gateway status server started", "address", addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("start status server: %w", err)
	}

	return nil
}

func (s *Service) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.respondStatus(w, http.StatusOK, "ok")
}

func (s *Service) handleReady(w http.ResponseWriter, _ *http.Request) {
	statusCode := http.StatusOK
	status := "ready"
	if !s.isReady() {
		statusCode = http.StatusServiceUnavailable
		status = "not_ready"
	}

	s.respondStatus(w, statusCode, status)
}

func (s *Service) respondStatus(w http.ResponseWriter, statusCode int, status string) {
	payload := s.currentStatus(status)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log.Error("Failed to write status response", "error", err)
	}
}

func (s *Service) currentStatus(status string) statusResponse {
	s.mu.RLock()
	defer s.mu.RUnlock()

	uptime := int64(0)
	if !s.startedAt.IsZero() {
		uptime = int64(time.Since(s.startedAt).Seconds())
	}

	channels := make(map[string]channelState, len(s.channelStates))
	for name, state := range s.channelStates {
		channels[name] = state
	}

	lastActivity := ""
	if !s.lastActivityAt.IsZero() {
		lastActivity = s.lastActivityAt.Format(time.RFC3339)
	}

	return statusResponse{
		Status:         status,
		UptimeSeconds:  uptime,
		Channels:       channels,
		Commands:       s.counters,
		LastActivityAt: lastActivity,
	}
}

// isReady reports whether at least one channel is running.
func (s *Service) isReady() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, state := range s.channelStates {
		if state.Running {
			return true
		}
	}

	return false
}

func (s *Service) setChannelState(name string, state channelState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.channelStates[name] = state
}

func errorString(err error) string {
	if err == nil {
		return ""
	}

	return err.Error()
}
