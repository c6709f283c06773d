package broadcast

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/weiawesome/wes-io-social/interaction-service/internal/domain"
	"github.com/weiawesome/wes-io-social/interaction-service/internal/metrics"
	pkglog "github.com/weiawesome/wes-io-social/pkg/log"
	"github.com/weiawesome/wes-io-social/pkg/pubsub"
)

const publishTimeout = 5 * time.Second

type Config struct {
	QueueSize     int
	Workers       int
	NotifyOnUnset bool
}

// Fanout publishes committed toggles to the pub/sub transport from a pool
// of workers. Publish only enqueues.
type Fanout struct {
	publisher pubsub.Publisher
	cfg       Config
	metrics   *metrics.Metrics

	queue     chan domain.BroadcastEvent
	mu        sync.RWMutex
	closed    bool
	startOnce sync.Once
	wg        sync.WaitGroup
	doneCh    chan struct{}
}

func NewFanout(publisher pubsub.Publisher, cfg Config, m *metrics.Metrics) *Fanout {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1024
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	return &Fanout{
		publisher: publisher,
		cfg:       cfg,
		metrics:   m,
		queue:     make(chan domain.BroadcastEvent, cfg.QueueSize),
		doneCh:    make(chan struct{}),
	}
}

// Start launches the workers. ctx only carries the logger; queued events
// are still delivered after it is canceled, until Stop drains the queue.
func (f *Fanout) Start(ctx context.Context) {
	f.startOnce.Do(func() {
		base := context.WithoutCancel(ctx)
		for i := 0; i < f.cfg.Workers; i++ {
			f.wg.Add(1)
			go f.worker(base)
		}
		go func() {
			f.wg.Wait()
			close(f.doneCh)
		}()
	})
}

// Done is closed when every worker has exited.
func (f *Fanout) Done() <-chan struct{} { return f.doneCh }

// Stop rejects new events and waits for the queue to drain.
func (f *Fanout) Stop() {
	f.mu.Lock()
	if !f.closed {
		f.closed = true
		close(f.queue)
	}
	f.mu.Unlock()
	f.wg.Wait()
}

// Publish enqueues event without blocking.
func (f *Fanout) Publish(ctx context.Context, event domain.BroadcastEvent) error {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.closed {
		return fmt.Errorf("%w: fan-out stopped", domain.ErrBroadcastFailure)
	}
	select {
	case f.queue <- event:
		return nil
	default:
		f.metrics.BroadcastDropped()
		return fmt.Errorf("%w: queue full", domain.ErrBroadcastFailure)
	}
}

func (f *Fanout) worker(ctx context.Context) {
	defer f.wg.Done()
	for event := range f.queue {
		f.deliver(ctx, event)
	}
}

func (f *Fanout) deliver(ctx context.Context, ev domain.BroadcastEvent) {
	ctx = pkglog.WithFields(ctx,
		pkglog.FieldTargetID, ev.TargetID,
		pkglog.FieldKind, string(ev.Kind),
		"event_id", ev.ID,
	)

	update := pubsub.TargetUpdatePayload{
		EventID:   ev.ID,
		TargetID:  ev.TargetID,
		Kind:      string(ev.Kind),
		ActorID:   ev.ActorID,
		State:     string(ev.State),
		Count:     ev.Count,
		Version:   ev.Version,
		Timestamp: ev.Timestamp,
	}
	f.publish(ctx, pubsub.EventTargetUpdate, ev.ID, ev.TargetID, pubsub.TargetUpdatesChannel(ev.TargetID), update)

	if !shouldNotify(ev, f.cfg.NotifyOnUnset) {
		return
	}

	note := pubsub.NotificationPayload{
		EventID:   ev.ID,
		UserID:    ev.TargetOwnerID,
		ActorID:   ev.ActorID,
		TargetID:  ev.TargetID,
		Kind:      string(ev.Kind),
		State:     string(ev.State),
		Text:      domain.NotificationText(ev.Kind, ev.State),
		Timestamp: ev.Timestamp,
	}
	f.publish(ctx, pubsub.EventNotification, ev.ID, ev.TargetOwnerID, pubsub.UserNotificationsChannel(ev.TargetOwnerID), note)
}

func (f *Fanout) publish(ctx context.Context, eventType, eventID, key, channel string, payload interface{}) {
	l := pkglog.Ctx(ctx)

	event, err := pubsub.NewEvent(eventType, key, payload)
	if err != nil {
		f.metrics.BroadcastFailure("encode")
		l.Error().Err(err).Str("type", eventType).Msg("failed to encode broadcast event")
		return
	}
	event.ID = eventID

	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	if err := f.publisher.Publish(pubCtx, channel, event); err != nil {
		f.metrics.BroadcastFailure(eventType)
		l.Warn().Err(err).Str(pkglog.FieldChannel, channel).Msg("failed to publish broadcast event")
		return
	}
	f.metrics.BroadcastPublished(eventType)
}

// shouldNotify reports whether the target owner hears about ev. Nobody is
// notified about their own actions, and removals only when enabled.
func shouldNotify(ev domain.BroadcastEvent, notifyOnUnset bool) bool {
	if ev.TargetOwnerID == "" || ev.TargetOwnerID == ev.ActorID {
		return false
	}
	if ev.State == domain.StateOff && !notifyOnUnset {
		return false
	}
	return true
}
