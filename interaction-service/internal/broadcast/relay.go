package broadcast

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/weiawesome/wes-io-social/interaction-service/internal/domain"
	pkglog "github.com/weiawesome/wes-io-social/pkg/log"
	"github.com/weiawesome/wes-io-social/pkg/pubsub"
)

var errSubscriptionClosed = errors.New("subscription closed")

// Sink receives relayed events on this instance.
type Sink interface {
	DeliverTargetUpdate(ev domain.BroadcastEvent) error
	DeliverNotification(userID string, msg *domain.NotificationMessage) error
}

// Relay subscribes to every target-update and notification channel and
// hands messages to the local sink, so viewers on any instance see every
// committed toggle.
type Relay struct {
	subscriber     pubsub.Subscriber
	sink           Sink
	reconnectDelay time.Duration
	readyOnce      sync.Once
	readyCh        chan struct{}
	doneCh         chan struct{}
}

func NewRelay(subscriber pubsub.Subscriber, sink Sink) *Relay {
	return &Relay{
		subscriber:     subscriber,
		sink:           sink,
		reconnectDelay: 2 * time.Second,
		readyCh:        make(chan struct{}),
		doneCh:         make(chan struct{}),
	}
}

// Ready is closed after the first subscription is established.
func (r *Relay) Ready() <-chan struct{} { return r.readyCh }

// Done returns a channel that is closed when Run() exits.
func (r *Relay) Done() <-chan struct{} { return r.doneCh }

// Run relays until ctx is done, resubscribing after failures.
func (r *Relay) Run(ctx context.Context) {
	defer close(r.doneCh)
	l := pkglog.L()

	for {
		err := r.runSubscription(ctx)
		if ctx.Err() != nil {
			return
		}
		l.Warn().Err(err).Dur("retry_in", r.reconnectDelay).Msg("relay subscription lost, reconnecting")
		select {
		case <-ctx.Done():
			return
		case <-time.After(r.reconnectDelay):
		}
	}
}

func (r *Relay) runSubscription(ctx context.Context) error {
	subCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	updates, err := r.subscriber.SubscribePattern(subCtx, pubsub.PatternTargetUpdates)
	if err != nil {
		return err
	}
	notes, err := r.subscriber.SubscribePattern(subCtx, pubsub.PatternUserNotifications)
	if err != nil {
		return err
	}
	r.readyOnce.Do(func() { close(r.readyCh) })

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-updates:
			if !ok {
				return errSubscriptionClosed
			}
			r.handleTargetUpdate(ev)
		case ev, ok := <-notes:
			if !ok {
				return errSubscriptionClosed
			}
			r.handleNotification(ev)
		}
	}
}

func (r *Relay) handleTargetUpdate(ev *pubsub.Event) {
	l := pkglog.L()

	var p pubsub.TargetUpdatePayload
	if err := ev.UnmarshalPayload(&p); err != nil {
		l.Warn().Err(err).Msg("relay: invalid target update payload")
		return
	}
	if p.TargetID == "" {
		return
	}

	err := r.sink.DeliverTargetUpdate(domain.BroadcastEvent{
		ID:        p.EventID,
		TargetID:  p.TargetID,
		Kind:      domain.InteractionKind(p.Kind),
		ActorID:   p.ActorID,
		State:     domain.State(p.State),
		Count:     p.Count,
		Version:   p.Version,
		Timestamp: p.Timestamp,
	})
	if err != nil {
		l.Debug().Err(err).Str(pkglog.FieldTargetID, p.TargetID).Msg("relay: target update not delivered")
	}
}

func (r *Relay) handleNotification(ev *pubsub.Event) {
	l := pkglog.L()

	var p pubsub.NotificationPayload
	if err := ev.UnmarshalPayload(&p); err != nil {
		l.Warn().Err(err).Msg("relay: invalid notification payload")
		return
	}
	if p.UserID == "" {
		return
	}

	err := r.sink.DeliverNotification(p.UserID, &domain.NotificationMessage{
		Type:      domain.MsgTypeNotification,
		EventID:   p.EventID,
		ActorID:   p.ActorID,
		TargetID:  p.TargetID,
		Kind:      domain.InteractionKind(p.Kind),
		Text:      p.Text,
		Timestamp: p.Timestamp,
	})
	if err != nil {
		l.Debug().Err(err).Str(pkglog.FieldUserID, p.UserID).Msg("relay: notification not delivered")
	}
}
