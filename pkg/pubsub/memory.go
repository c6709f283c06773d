package pubsub

import (
	"context"
	"path"
	"sync"
)

type memorySubscription struct {
	key     string
	pattern bool
	ch      chan *Event
	cancel  context.CancelFunc
	once    sync.Once
}

func (s *memorySubscription) matches(channel string) bool {
	if !s.pattern {
		return s.key == channel
	}
	ok, err := path.Match(s.key, channel)
	return err == nil && ok
}

// MemoryPubSub is an in-process PubSub for single-instance deployments and
// tests. Patterns are path.Match globs, which agree with Redis PSUBSCRIBE
// for the channel names used here.
type MemoryPubSub struct {
	subs       map[string]*memorySubscription
	bufferSize int
	closed     bool
	mu         sync.RWMutex
}

// NewMemoryPubSub creates an in-process PubSub.
func NewMemoryPubSub(bufferSize int) *MemoryPubSub {
	if bufferSize <= 0 {
		bufferSize = defaultBufferSize
	}
	return &MemoryPubSub{
		subs:       make(map[string]*memorySubscription),
		bufferSize: bufferSize,
	}
}

// Publish delivers event to every matching subscription without blocking;
// full subscribers miss the event.
func (m *MemoryPubSub) Publish(ctx context.Context, channel string, event *Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return ErrClosed
	}

	for _, sub := range m.subs {
		if !sub.matches(channel) {
			continue
		}
		cp := *event
		select {
		case sub.ch <- &cp:
		default:
		}
	}
	return nil
}

// Subscribe subscribes to one channel.
func (m *MemoryPubSub) Subscribe(ctx context.Context, channel string) (<-chan *Event, error) {
	return m.add(ctx, channel, false)
}

// SubscribePattern subscribes to every channel matching pattern.
func (m *MemoryPubSub) SubscribePattern(ctx context.Context, pattern string) (<-chan *Event, error) {
	if _, err := path.Match(pattern, ""); err != nil {
		return nil, err
	}
	return m.add(ctx, pattern, true)
}

func (m *MemoryPubSub) add(ctx context.Context, key string, pattern bool) (<-chan *Event, error) {
	subCtx, cancel := context.WithCancel(ctx)
	sub := &memorySubscription{
		key:     key,
		pattern: pattern,
		ch:      make(chan *Event, m.bufferSize),
		cancel:  cancel,
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		cancel()
		return nil, ErrClosed
	}
	if existing, ok := m.subs[key]; ok {
		m.closeSub(existing)
	}
	m.subs[key] = sub
	m.mu.Unlock()

	go func() {
		<-subCtx.Done()
		m.mu.Lock()
		if cur, ok := m.subs[key]; ok && cur == sub {
			delete(m.subs, key)
		}
		m.closeSub(sub)
		m.mu.Unlock()
	}()

	return sub.ch, nil
}

// closeSub must be called with m.mu held for writing.
func (m *MemoryPubSub) closeSub(sub *memorySubscription) {
	sub.once.Do(func() {
		sub.cancel()
		close(sub.ch)
	})
}

// Unsubscribe removes a channel or pattern subscription.
func (m *MemoryPubSub) Unsubscribe(ctx context.Context, channel string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if sub, ok := m.subs[channel]; ok {
		delete(m.subs, channel)
		m.closeSub(sub)
	}
	return nil
}

// Close removes every subscription.
func (m *MemoryPubSub) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true
	for key, sub := range m.subs {
		delete(m.subs, key)
		m.closeSub(sub)
	}
	return nil
}
