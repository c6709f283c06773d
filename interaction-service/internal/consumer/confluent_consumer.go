package consumer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"

	pkglog "github.com/weiawesome/wes-io-social/pkg/log"
)

const (
	pollTimeout     = 100 * time.Millisecond
	handleAttempts  = 3
	handleBaseDelay = 100 * time.Millisecond
)

// ConfluentConsumer implements CDCEventConsumer using confluent-kafka-go.
// Offsets are stored only after a message has been handled, so a crash
// replays in-flight changes; the cache's version guard absorbs the replay.
type ConfluentConsumer struct {
	consumer  *kafka.Consumer
	topic     string
	handler   CDCEventHandler
	doneCh    chan struct{}
	closeOnce sync.Once
	closeErr  error
}

// NewConfluentConsumer creates a Kafka consumer for counter CDC events.
func NewConfluentConsumer(brokers, topic, groupID string, handler CDCEventHandler) (*ConfluentConsumer, error) {
	c, err := kafka.NewConsumer(&kafka.ConfigMap{
		"bootstrap.servers":        brokers,
		"group.id":                 groupID,
		"auto.offset.reset":        "earliest",
		"enable.auto.commit":       true,
		"enable.auto.offset.store": false,
	})
	if err != nil {
		return nil, fmt.Errorf("create kafka consumer: %w", err)
	}

	return &ConfluentConsumer{
		consumer: c,
		topic:    topic,
		handler:  handler,
		doneCh:   make(chan struct{}),
	}, nil
}

// Start subscribes to the CDC topic and consumes in the background until
// ctx is cancelled.
func (cc *ConfluentConsumer) Start(ctx context.Context) error {
	if err := cc.consumer.Subscribe(cc.topic, nil); err != nil {
		return fmt.Errorf("subscribe to topic %s: %w", cc.topic, err)
	}

	go cc.consumeLoop(ctx)
	return nil
}

func (cc *ConfluentConsumer) consumeLoop(ctx context.Context) {
	defer close(cc.doneCh)
	l := pkglog.L().With().Str("topic", cc.topic).Logger()

	for ctx.Err() == nil {
		msg, err := cc.consumer.ReadMessage(pollTimeout)
		if err != nil {
			var kerr kafka.Error
			if errors.As(err, &kerr) && kerr.Code() == kafka.ErrTimedOut {
				continue
			}
			l.Error().Err(err).Msg("kafka CDC consumer error")
			continue
		}

		// Handling outlives cancellation so a message is never half applied.
		process(context.WithoutCancel(ctx), cc.handler, msg.Value)

		if _, err := cc.consumer.StoreMessage(msg); err != nil {
			l.Warn().Err(err).Int64("offset", int64(msg.TopicPartition.Offset)).Msg("failed to store CDC offset")
		}
	}
	l.Info().Msg("kafka CDC consumer shutting down")
}

// process decodes one message and hands it to the handler, retrying
// handler failures with a linear backoff. Undecodable messages and
// tombstones are skipped. It reports whether the handler accepted the event.
func process(ctx context.Context, handler CDCEventHandler, value []byte) bool {
	l := pkglog.L()

	event, ok, err := Decode(value)
	if err != nil {
		l.Error().Err(err).Msg("failed to unmarshal debezium CDC event, skipping")
		return false
	}
	if !ok {
		return false
	}

	l.Debug().
		Str("op", event.Payload.Op).
		Int64("ts_ms", event.Payload.TsMs).
		Msg("received CDC event")

	for attempt := 1; ; attempt++ {
		err := handler.HandleCDCEvent(ctx, event)
		if err == nil {
			return true
		}
		if attempt == handleAttempts {
			l.Error().Err(err).Str("op", event.Payload.Op).Int(pkglog.FieldAttempt, attempt).Msg("giving up on CDC event")
			return false
		}
		l.Warn().Err(err).Str("op", event.Payload.Op).Int(pkglog.FieldAttempt, attempt).Msg("failed to handle CDC event, retrying")
		time.Sleep(handleBaseDelay * time.Duration(attempt))
	}
}

// Close waits for the consume loop to exit, then closes the consumer,
// committing stored offsets. Start must have been called and its context
// cancelled.
func (cc *ConfluentConsumer) Close() error {
	cc.closeOnce.Do(func() {
		<-cc.doneCh
		if err := cc.consumer.Close(); err != nil {
			cc.closeErr = fmt.Errorf("close kafka consumer: %w", err)
		}
	})
	return cc.closeErr
}
