package bus

import (
	"context"
	"sync"
	"time"
)

const defaultBufferSize = 100

type ActivityType string

const (
	ActivityCommandReceived ActivityType = "command_received"
	ActivityCommandReplied  ActivityType = "command_replied"
	ActivityCommandFailed   ActivityType = "command_failed"
)

// Activity describes one step of a command's trip through the gateway.
type Activity struct {
	Type      ActivityType      `json:"type"`
	At        time.Time         `json:"at"`
	Adapter   string            `json:"adapter,omitempty"`
	Channel   string            `json:"channel,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
	Command   string            `json:"command,omitempty"`
	Payload   map[string]string `json:"payload,omitempty"`
	Error     string            `json:"error,omitempty"`
}

// Bus fans activities out to subscribers without ever blocking the publisher.
type Bus struct {
	subscribers map[uint64]chan Activity
	nextID      uint64

	done      chan struct{}
	closeOnce sync.Once

	mu sync.RWMutex
}

func New() *Bus {
	return &Bus{
		subscribers: make(map[uint64]chan Activity),
		done:        make(chan struct{}),
	}
}

func (b *Bus) Publish(ctx context.Context, activity Activity) bool {
	if ctx == nil {
		ctx = context.Background()
	}

	if activity.At.IsZero() {
		activity.At = time.Now().UTC()
	}

	select {
	case <-ctx.Done():
		return false
	case <-b.done:
		return false
	default:
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subscribers {
		select {
		case ch <- activity:
		default:
			// Slow subscribers lose activities.
		}
	}

	return true
}

func (b *Bus) Subscribe(ctx context.Context, buffer int) (<-chan Activity, func()) {
	if ctx == nil {
		ctx = context.Background()
	}
	if buffer <= 0 {
		buffer = defaultBufferSize
	}

	ch := make(chan Activity, buffer)

	b.mu.Lock()
	select {
	case <-b.done:
		b.mu.Unlock()
		close(ch)
		return ch, func() {}
	default:
	}

	id := b.nextID
	b.nextID++
	b.subscribers[id] = ch
	b.mu.Unlock()

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			b.mu.Lock()
			if sub, ok := b.subscribers[id]; ok {
				delete(b.subscribers, id)
				close(sub)
			}
			b.mu.Unlock()
		})
	}

	go func() {
		select {
		case <-ctx.Done():
		case <-b.done:
		}
		unsubscribe()
	}()

	return ch, unsubscribe
}

func (b *Bus) Close() {
	b.closeOnce.Do(func() {
		close(b.done)

		b.mu.Lock()
		for id, ch := range b.subscribers {
			close(ch)
			delete(b.subscribers, id)
		}
		b.mu.Unlock()
	})
}
