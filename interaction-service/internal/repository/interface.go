package repository

import (
	"context"
	"errors"

	"github.com/weiawesome/wes-io-social/interaction-service/internal/domain"
)

// ErrConflict marks a write that lost a race with a concurrent writer:
// duplicate insert, delete of a vanished row, serialization failure or
// deadlock. The whole transaction should be retried from a fresh read.
var ErrConflict = errors.New("conflicting concurrent write")

// MembershipRepository persists (actor, target, kind) membership records.
type MembershipRepository interface {
	Exists(ctx context.Context, actorID, targetID string, kind domain.InteractionKind) (bool, error)
	Insert(ctx context.Context, rec domain.MembershipRecord) error
	Delete(ctx context.Context, actorID, targetID string, kind domain.InteractionKind) error
	BatchExists(ctx context.Context, actorID string, kind domain.InteractionKind, targetIDs []string) (map[string]bool, error)
	CountByTarget(ctx context.Context, targetID string, kind domain.InteractionKind) (int64, error)
}

// CounterRepository owns the denormalized counters. The counter row is only
// ever changed through IncrementAtomic and DecrementAtomic.
type CounterRepository interface {
	// IncrementAtomic adds one in a single statement, creating the row at 1.
	IncrementAtomic(ctx context.Context, targetID string, kind domain.InteractionKind) (bool, error)
	// DecrementAtomic subtracts one in a single statement unless the value
	// is already 0, in which case it reports false and changes nothing.
	DecrementAtomic(ctx context.Context, targetID string, kind domain.InteractionKind) (bool, error)
	// Read returns the current value, 0 when no row exists.
	Read(ctx context.Context, targetID string, kind domain.InteractionKind) (int64, error)
	ReadAggregate(ctx context.Context, targetID string, kind domain.InteractionKind) (domain.CounterAggregate, error)
}

// TargetRepository resolves interactable targets and their owners.
type TargetRepository interface {
	// OwnerOf returns domain.ErrNotFound when the target does not exist.
	OwnerOf(ctx context.Context, targetID string) (string, error)
	Get(ctx context.Context, targetID string) (*domain.Target, error)
	Upsert(ctx context.Context, target domain.Target) (*domain.Target, error)
}

// Transactor runs fn inside one transaction. Repository calls made with
// the context passed to fn join that transaction.
type Transactor interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
