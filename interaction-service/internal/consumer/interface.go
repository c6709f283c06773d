package consumer

import (
	"context"
	"encoding/json"

	"github.com/weiawesome/wes-io-social/interaction-service/internal/domain"
)

// DebeziumCounterRecord represents a row from the interaction_counters table in a Debezium CDC event.
type DebeziumCounterRecord struct {
	TargetID  string  `json:"target_id"`
	Kind      string  `json:"kind"`
	Value     int64   `json:"value"`
	Version   int64   `json:"version"`
	UpdatedAt *string `json:"updated_at"`
}

// Aggregate converts the row to its domain form.
func (r *DebeziumCounterRecord) Aggregate() domain.CounterAggregate {
	return domain.CounterAggregate{
		TargetID: r.TargetID,
		Kind:     domain.InteractionKind(r.Kind),
		Value:    r.Value,
		Version:  r.Version,
	}
}

// DebeziumPayload is the payload field of a Debezium CDC message.
type DebeziumPayload struct {
	Before *DebeziumCounterRecord `json:"before"`
	After  *DebeziumCounterRecord `json:"after"`
	Op     string                 `json:"op"` // "c"=create, "u"=update, "d"=delete, "r"=snapshot
	TsMs   int64                  `json:"ts_ms"`
}

// DebeziumMessage is the top-level Debezium CDC message envelope.
type DebeziumMessage struct {
	Payload DebeziumPayload `json:"payload"`
}

// Decode parses a Kafka message value. Tombstones (empty values that
// follow a delete) report ok=false.
func Decode(value []byte) (msg *DebeziumMessage, ok bool, err error) {
	if len(value) == 0 {
		return nil, false, nil
	}
	var m DebeziumMessage
	if err := json.Unmarshal(value, &m); err != nil {
		return nil, false, err
	}
	return &m, true, nil
}

// CDCEventHandler processes a decoded Debezium CDC message.
type CDCEventHandler interface {
	HandleCDCEvent(ctx context.Context, event *DebeziumMessage) error
}

// CDCEventConsumer manages the Kafka consumer lifecycle.
type CDCEventConsumer interface {
	Start(ctx context.Context) error
	Close() error
}
