package service

import (
	"context"

	"github.com/weiawesome/wes-io-social/interaction-service/internal/consumer"
	"github.com/weiawesome/wes-io-social/interaction-service/internal/domain"
)

// InteractionService defines the business logic for likes, collections and follows.
type InteractionService interface {
	Toggle(ctx context.Context, actorID, targetID string, kind domain.InteractionKind) (domain.ToggleOutcome, error)
	Apply(ctx context.Context, actorID, targetID string, kind domain.InteractionKind, action domain.ToggleAction) (domain.ToggleOutcome, error)
	// BatchToggle applies items on behalf of actorID. The result maps each
	// target to the outcome of its last item.
	BatchToggle(ctx context.Context, actorID string, items []domain.BatchItem) (map[string]domain.ToggleOutcome, error)
	GetCount(ctx context.Context, targetID string, kind domain.InteractionKind) (domain.CounterAggregate, error)
	BatchStatus(ctx context.Context, actorID string, kind domain.InteractionKind, targetIDs []string) (map[string]bool, error)
	RegisterTarget(ctx context.Context, target domain.Target) (*domain.Target, error)
	HandleCDCEvent(ctx context.Context, event *consumer.DebeziumMessage) error
}

// Coordinator is the toggle engine the service delegates to.
type Coordinator interface {
	Apply(ctx context.Context, actorID, targetID string, kind domain.InteractionKind, action domain.ToggleAction) (domain.ToggleOutcome, error)
	BatchToggle(ctx context.Context, items []domain.BatchItem) map[string]domain.ToggleOutcome
}
