package hub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/weiawesome/wes-io-social/interaction-service/internal/config"
	"github.com/weiawesome/wes-io-social/interaction-service/internal/domain"
	"github.com/weiawesome/wes-io-social/interaction-service/internal/metrics"
	"github.com/weiawesome/wes-io-social/pkg/log"
)

var (
	// ErrStopped is returned once the hub has been stopped.
	ErrStopped = errors.New("hub stopped")
	// ErrTooManyWatches is returned when a client exceeds its watch limit.
	ErrTooManyWatches = errors.New("too many watched targets")
)

// Hub tracks live subscribers on this instance: websocket clients watching
// targets, clients bound to a user for notifications, and in-process
// streams. Delivery never blocks the hub loop.
type Hub struct {
	clients  map[string]*Client                               // clientID -> client
	watchers map[string]map[string]*Client                    // targetID -> clientID -> client
	users    map[string]map[string]*Client                    // userID -> clientID -> client
	streams  map[string]map[uint64]chan domain.BroadcastEvent // targetID -> streamID -> stream
	nextID   uint64

	register   chan *Client
	unregister chan *Client
	broadcast  chan *outbound
	done       chan struct{}
	stopped    chan struct{}
	stopOnce   sync.Once

	mu           sync.RWMutex
	config       config.WebSocketConfig
	streamBuffer int
	metrics      *metrics.Metrics
}

type outbound struct {
	targetID string
	userID   string
	data     []byte
	event    *domain.BroadcastEvent
}

func NewHub(cfg config.WebSocketConfig, streamBuffer int, m *metrics.Metrics) *Hub {
	if streamBuffer <= 0 {
		streamBuffer = 64
	}
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = 256
	}
	if cfg.PongWait <= 0 {
		cfg.PongWait = 60 * time.Second
	}
	if cfg.PingInterval <= 0 || cfg.PingInterval >= cfg.PongWait {
		cfg.PingInterval = cfg.PongWait * 9 / 10
	}
	if cfg.WriteWait <= 0 {
		cfg.WriteWait = 10 * time.Second
	}
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = 4096
	}
	return &Hub{
		clients:      make(map[string]*Client),
		watchers:     make(map[string]map[string]*Client),
		users:        make(map[string]map[string]*Client),
		streams:      make(map[string]map[uint64]chan domain.BroadcastEvent),
		register:     make(chan *Client),
		unregister:   make(chan *Client),
		broadcast:    make(chan *outbound, 256),
		done:         make(chan struct{}),
		stopped:      make(chan struct{}),
		config:       cfg,
		streamBuffer: streamBuffer,
		metrics:      m,
	}
}

// Run processes registrations and deliveries until Stop is called.
func (h *Hub) Run() {
	defer close(h.stopped)
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.ID] = client
			h.mu.Unlock()
			h.metrics.SubscriberAdded()
			l := log.L()
			l.Debug().Str(log.FieldClientID, client.ID).Msg("live client registered")

		case client := <-h.unregister:
			h.mu.Lock()
			removed := h.dropClientLocked(client)
			h.mu.Unlock()
			if removed {
				h.metrics.SubscriberRemoved()
				l := log.L()
				l.Debug().Str(log.FieldClientID, client.ID).Msg("live client unregistered")
			}

		case msg := <-h.broadcast:
			h.deliver(msg)

		case <-h.done:
			h.shutdown()
			return
		}
	}
}

// Stop terminates Run, closing every client send buffer and stream.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

// Done is closed when Run has exited.
func (h *Hub) Done() <-chan struct{} { return h.stopped }

func (h *Hub) shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, client := range h.clients {
		close(client.Send)
		h.metrics.SubscriberRemoved()
	}
	for _, streams := range h.streams {
		for _, ch := range streams {
			close(ch)
			h.metrics.SubscriberRemoved()
		}
	}
	h.clients = make(map[string]*Client)
	h.watchers = make(map[string]map[string]*Client)
	h.users = make(map[string]map[string]*Client)
	h.streams = make(map[string]map[uint64]chan domain.BroadcastEvent)
}

// dropClientLocked removes client from every index. Caller holds h.mu.
func (h *Hub) dropClientLocked(client *Client) bool {
	if _, ok := h.clients[client.ID]; !ok {
		return false
	}
	for targetID := range client.watching {
		removeFrom(h.watchers, targetID, client.ID)
	}
	if client.userID != "" {
		removeFrom(h.users, client.userID, client.ID)
	}
	delete(h.clients, client.ID)
	close(client.Send)
	return true
}

func removeFrom(index map[string]map[string]*Client, key, clientID string) {
	if set, ok := index[key]; ok {
		delete(set, clientID)
		if len(set) == 0 {
			delete(index, key)
		}
	}
}

func (h *Hub) deliver(msg *outbound) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var recipients map[string]*Client
	if msg.userID != "" {
		recipients = h.users[msg.userID]
	} else {
		recipients = h.watchers[msg.targetID]
	}
	for _, client := range recipients {
		select {
		case client.Send <- msg.data:
		default:
			h.metrics.BroadcastDropped()
			go h.removeClient(client)
		}
	}

	if msg.event == nil {
		return
	}
	for _, ch := range h.streams[msg.targetID] {
		select {
		case ch <- *msg.event:
		default:
			h.metrics.BroadcastDropped()
		}
	}
}

func (h *Hub) Register(client *Client) error {
	select {
	case h.register <- client:
		return nil
	case <-h.done:
		return ErrStopped
	}
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

func (h *Hub) removeClient(client *Client) {
	l := log.L()
	l.Warn().Str(log.FieldClientID, client.ID).Msg("live client too slow, disconnecting")
	h.Unregister(client)
}

// Watch adds targetIDs to the client's watch set.
func (h *Hub) Watch(client *Client, targetIDs ...string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client.ID]; !ok {
		return fmt.Errorf("watch: client %s not registered", client.ID)
	}

	added := 0
	for _, id := range targetIDs {
		if _, ok := client.watching[id]; !ok && id != "" {
			added++
		}
	}
	if limit := h.config.MaxWatches; limit > 0 && len(client.watching)+added > limit {
		return ErrTooManyWatches
	}

	for _, id := range targetIDs {
		if id == "" {
			continue
		}
		client.watching[id] = struct{}{}
		if _, ok := h.watchers[id]; !ok {
			h.watchers[id] = make(map[string]*Client)
		}
		h.watchers[id][client.ID] = client
	}
	return nil
}

// Unwatch removes targetIDs from the client's watch set.
func (h *Hub) Unwatch(client *Client, targetIDs ...string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, id := range targetIDs {
		delete(client.watching, id)
		removeFrom(h.watchers, id, client.ID)
	}
}

// BindUser routes notifications for userID to client.
func (h *Hub) BindUser(client *Client, userID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client.ID]; !ok {
		return
	}
	if client.userID != "" {
		removeFrom(h.users, client.userID, client.ID)
	}
	client.userID = userID
	if _, ok := h.users[userID]; !ok {
		h.users[userID] = make(map[string]*Client)
	}
	h.users[userID][client.ID] = client

	l := log.L()
	l.Info().Str(log.FieldClientID, client.ID).Str(log.FieldUserID, userID).Msg("live client authenticated")
}

// Subscribe opens an in-process stream of committed updates for targetID.
// The stream is closed when ctx ends or the hub stops; events are dropped
// while its buffer is full.
func (h *Hub) Subscribe(ctx context.Context, targetID string) (<-chan domain.BroadcastEvent, error) {
	select {
	case <-h.done:
		return nil, ErrStopped
	default:
	}

	h.mu.Lock()
	h.nextID++
	id := h.nextID
	ch := make(chan domain.BroadcastEvent, h.streamBuffer)
	if _, ok := h.streams[targetID]; !ok {
		h.streams[targetID] = make(map[uint64]chan domain.BroadcastEvent)
	}
	h.streams[targetID][id] = ch
	h.mu.Unlock()
	h.metrics.SubscriberAdded()

	go func() {
		select {
		case <-ctx.Done():
		case <-h.done:
		}
		h.closeStream(targetID, id)
	}()

	return ch, nil
}

func (h *Hub) closeStream(targetID string, id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	streams, ok := h.streams[targetID]
	if !ok {
		return
	}
	ch, ok := streams[id]
	if !ok {
		return
	}
	delete(streams, id)
	if len(streams) == 0 {
		delete(h.streams, targetID)
	}
	close(ch)
	h.metrics.SubscriberRemoved()
}

// DeliverTargetUpdate queues a target update for watchers and streams.
func (h *Hub) DeliverTargetUpdate(ev domain.BroadcastEvent) error {
	data, err := json.Marshal(domain.TargetUpdateFromEvent(ev))
	if err != nil {
		return err
	}
	return h.enqueue(&outbound{targetID: ev.TargetID, data: data, event: &ev})
}

// DeliverNotification queues a notification for the user's clients.
func (h *Hub) DeliverNotification(userID string, msg *domain.NotificationMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return h.enqueue(&outbound{userID: userID, data: data})
}

func (h *Hub) enqueue(msg *outbound) error {
	select {
	case <-h.done:
		return ErrStopped
	default:
	}
	select {
	case h.broadcast <- msg:
		return nil
	case <-h.done:
		return ErrStopped
	}
}

func (h *Hub) WatcherCount(targetID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.watchers[targetID]) + len(h.streams[targetID])
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
