package service

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/weiawesome/wes-io-social/interaction-service/internal/audit"
	"github.com/weiawesome/wes-io-social/interaction-service/internal/consumer"
	"github.com/weiawesome/wes-io-social/interaction-service/internal/domain"
	"github.com/weiawesome/wes-io-social/interaction-service/internal/metrics"
	"github.com/weiawesome/wes-io-social/interaction-service/internal/repository"
	"github.com/weiawesome/wes-io-social/interaction-service/internal/store"
	pkglog "github.com/weiawesome/wes-io-social/pkg/log"
)

// sharedReadTimeout bounds a coalesced database read; it is detached from
// the caller that started it so other waiters are not failed by its cancel.
const sharedReadTimeout = 5 * time.Second

// Config bounds request sizes.
type Config struct {
	MaxBatchItems int
}

// interactionService implements InteractionService.
type interactionService struct {
	coordinator Coordinator
	members     repository.MembershipRepository
	counters    repository.CounterRepository
	targets     repository.TargetRepository
	store       store.CounterStore
	metrics     *metrics.Metrics
	cfg         Config
	group       singleflight.Group
}

// NewInteractionService creates a new InteractionService instance. store
// may be nil, in which case counts are always read from the database.
func NewInteractionService(
	coordinator Coordinator,
	members repository.MembershipRepository,
	counters repository.CounterRepository,
	targets repository.TargetRepository,
	counterStore store.CounterStore,
	cfg Config,
	m *metrics.Metrics,
) InteractionService {
	if cfg.MaxBatchItems <= 0 {
		cfg.MaxBatchItems = 100
	}
	return &interactionService{
		coordinator: coordinator,
		members:     members,
		counters:    counters,
		targets:     targets,
		store:       counterStore,
		metrics:     m,
		cfg:         cfg,
	}
}

// Toggle flips the actor's membership for (target, kind).
func (s *interactionService) Toggle(ctx context.Context, actorID, targetID string, kind domain.InteractionKind) (domain.ToggleOutcome, error) {
	return s.Apply(ctx, actorID, targetID, kind, domain.ActionToggle)
}

// Apply moves the actor's membership to the requested state.
func (s *interactionService) Apply(ctx context.Context, actorID, targetID string, kind domain.InteractionKind, action domain.ToggleAction) (domain.ToggleOutcome, error) {
	if err := domain.ValidateInteraction(actorID, targetID, kind); err != nil {
		return domain.ToggleOutcome{}, err
	}

	out, err := s.coordinator.Apply(ctx, actorID, targetID, kind, action)
	if err != nil {
		return domain.ToggleOutcome{}, err
	}

	if out.Changed {
		audit.LogTarget(ctx, audit.ActionToggle, actorID, targetID,
			fmt.Sprintf("%s:%s", kind, out.State), "interaction toggled")
	}
	return out, nil
}

// BatchToggle validates every item before any of them is applied.
func (s *interactionService) BatchToggle(ctx context.Context, actorID string, items []domain.BatchItem) (map[string]domain.ToggleOutcome, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: no items", domain.ErrInvalidArgument)
	}
	if len(items) > s.cfg.MaxBatchItems {
		return nil, fmt.Errorf("%w: %d items, limit %d", domain.ErrBatchTooLarge, len(items), s.cfg.MaxBatchItems)
	}

	normalized := make([]domain.BatchItem, len(items))
	for i, it := range items {
		it.ActorID = actorID
		if it.Action == "" {
			it.Action = domain.ActionToggle
		}
		if err := domain.ValidateInteraction(it.ActorID, it.TargetID, it.Kind); err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		if _, err := domain.ParseAction(string(it.Action)); err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		normalized[i] = it
	}

	results := s.coordinator.BatchToggle(ctx, normalized)

	audit.Log(ctx, audit.ActionBatchToggle, actorID,
		fmt.Sprintf("batch toggle of %d items on %d targets", len(items), len(results)))
	return results, nil
}

// GetCount returns the counter for (target, kind).
// It records a hot key access, checks the cache, and on miss reads the
// database once per key across concurrent callers and populates the cache.
func (s *interactionService) GetCount(ctx context.Context, targetID string, kind domain.InteractionKind) (domain.CounterAggregate, error) {
	l := pkglog.Ctx(ctx)

	if targetID == "" {
		return domain.CounterAggregate{}, fmt.Errorf("%w: target is required", domain.ErrInvalidArgument)
	}
	if !kind.Valid() {
		return domain.CounterAggregate{}, fmt.Errorf("%w: %q", domain.ErrInvalidKind, kind)
	}

	if s.store != nil {
		if err := s.store.RecordAccess(ctx, targetID, kind); err != nil {
			l.Warn().Err(err).Str(pkglog.FieldTargetID, targetID).Msg("failed to record hot key access")
		}

		agg, found, err := s.store.GetCount(ctx, targetID, kind)
		if err != nil {
			l.Warn().Err(err).Str(pkglog.FieldTargetID, targetID).Msg("redis get count failed, falling back to db")
		}
		if found {
			s.metrics.CacheLookup("hit")
			return agg, nil
		}
		s.metrics.CacheLookup("miss")
	}

	v, err, _ := s.group.Do(string(kind)+":"+targetID, func() (interface{}, error) {
		readCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sharedReadTimeout)
		defer cancel()

		agg, err := s.counters.ReadAggregate(readCtx, targetID, kind)
		if err != nil {
			return domain.CounterAggregate{}, err
		}
		if s.store != nil {
			if _, err := s.store.SetCountIfNewer(readCtx, agg); err != nil {
				l.Warn().Err(err).Str(pkglog.FieldTargetID, targetID).Msg("failed to populate count cache")
			}
		}
		return agg, nil
	})
	if err != nil {
		l.Error().Err(err).Str(pkglog.FieldTargetID, targetID).Msg("failed to read count from db")
		return domain.CounterAggregate{}, err
	}

	return v.(domain.CounterAggregate), nil
}

// BatchStatus reports, for each target, whether actorID is in the "on" state.
func (s *interactionService) BatchStatus(ctx context.Context, actorID string, kind domain.InteractionKind, targetIDs []string) (map[string]bool, error) {
	if actorID == "" {
		return nil, fmt.Errorf("%w: user is required", domain.ErrInvalidArgument)
	}
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidKind, kind)
	}
	if len(targetIDs) > s.cfg.MaxBatchItems {
		return nil, fmt.Errorf("%w: %d targets, limit %d", domain.ErrBatchTooLarge, len(targetIDs), s.cfg.MaxBatchItems)
	}
	if len(targetIDs) == 0 {
		return map[string]bool{}, nil
	}
	return s.members.BatchExists(ctx, actorID, kind, targetIDs)
}

// RegisterTarget creates or updates an interactable target.
func (s *interactionService) RegisterTarget(ctx context.Context, target domain.Target) (*domain.Target, error) {
	if target.ID == "" {
		return nil, fmt.Errorf("%w: target id is required", domain.ErrInvalidArgument)
	}

	saved, err := s.targets.Upsert(ctx, target)
	if err != nil {
		l := pkglog.Ctx(ctx)
		l.Error().Err(err).Str(pkglog.FieldTargetID, target.ID).Msg("failed to register target")
		return nil, err
	}

	audit.LogTarget(ctx, audit.ActionRegisterTarget, target.OwnerID, target.ID, target.Type, "target registered")
	return saved, nil
}

// HandleCDCEvent applies a Debezium counter change to the cache. Writes are
// version-guarded, so replays and reordering never move the cache backwards.
func (s *interactionService) HandleCDCEvent(ctx context.Context, event *consumer.DebeziumMessage) error {
	l := pkglog.Ctx(ctx)
	if s.store == nil {
		return nil
	}
	op := event.Payload.Op

	switch op {
	case "c", "u", "r":
		if event.Payload.After == nil {
			l.Warn().Str("op", op).Msg("CDC event missing 'after' field")
			return nil
		}
		agg := event.Payload.After.Aggregate()
		if !agg.Kind.Valid() || agg.TargetID == "" {
			l.Warn().Str("op", op).Str(pkglog.FieldKind, string(agg.Kind)).Msg("CDC event for unknown counter, skipping")
			return nil
		}
		if _, err := s.store.SetCountIfNewer(ctx, agg); err != nil {
			l.Error().Err(err).Str(pkglog.FieldTargetID, agg.TargetID).Msg("failed to apply CDC counter change")
			return err
		}

	case "d":
		// Reliable because REPLICA IDENTITY FULL is set on the table.
		if event.Payload.Before == nil {
			l.Warn().Msg("CDC delete event missing 'before' field")
			return nil
		}
		before := event.Payload.Before
		if err := s.store.Invalidate(ctx, before.TargetID, domain.InteractionKind(before.Kind)); err != nil {
			l.Error().Err(err).Str(pkglog.FieldTargetID, before.TargetID).Msg("failed to invalidate counter on delete")
			return err
		}

	default:
		l.Warn().Str("op", op).Msg("unknown CDC operation, skipping")
	}

	return nil
}

// Ensure interface is satisfied at compile time.
var _ InteractionService = (*interactionService)(nil)
