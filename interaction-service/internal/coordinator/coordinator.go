package coordinator

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/weiawesome/wes-io-social/interaction-service/internal/domain"
	"github.com/weiawesome/wes-io-social/interaction-service/internal/metrics"
	"github.com/weiawesome/wes-io-social/interaction-service/internal/repository"
	pkglog "github.com/weiawesome/wes-io-social/pkg/log"
)

// OwnerLookup resolves the owner of a target.
type OwnerLookup interface {
	OwnerOf(ctx context.Context, targetID string) (string, error)
}

// Broadcaster accepts committed state changes for asynchronous fan-out.
// Publish must not block on delivery.
type Broadcaster interface {
	Publish(ctx context.Context, event domain.BroadcastEvent) error
}

// CounterCache receives best-effort write-through of fresh aggregates.
type CounterCache interface {
	SetCountIfNewer(ctx context.Context, agg domain.CounterAggregate) (bool, error)
}

// Config tunes the coordinator.
type Config struct {
	Retry RetryPolicy `mapstructure:"retry"`
	// ReadBackTimeout bounds the post-commit counter read.
	ReadBackTimeout time.Duration `mapstructure:"read_back_timeout"`
	// BatchParallelism caps concurrently processed target groups.
	BatchParallelism int `mapstructure:"batch_parallelism"`
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		Retry:            DefaultRetryPolicy(),
		ReadBackTimeout:  2 * time.Second,
		BatchParallelism: 8,
	}
}

// Coordinator applies interaction toggles: it decides the transition from
// the stored membership, applies membership and counter writes in one
// transaction, retries on contention, and hands committed changes to the
// broadcaster.
type Coordinator struct {
	tx          repository.Transactor
	members     repository.MembershipRepository
	counters    repository.CounterRepository
	owners      OwnerLookup
	broadcaster Broadcaster
	cache       CounterCache
	metrics     *metrics.Metrics
	cfg         Config
	now         func() time.Time
	newID       func() string
}

// Option configures optional collaborators.
type Option func(*Coordinator)

// WithCache enables counter cache write-through after commit.
func WithCache(cache CounterCache) Option {
	return func(c *Coordinator) { c.cache = cache }
}

// WithMetrics records toggle metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Coordinator) { c.metrics = m }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// WithIDGenerator overrides broadcast event ID generation.
func WithIDGenerator(fn func() string) Option {
	return func(c *Coordinator) { c.newID = fn }
}

// New creates a Coordinator.
func New(
	tx repository.Transactor,
	members repository.MembershipRepository,
	counters repository.CounterRepository,
	owners OwnerLookup,
	broadcaster Broadcaster,
	cfg Config,
	opts ...Option,
) *Coordinator {
	if cfg.ReadBackTimeout <= 0 {
		cfg.ReadBackTimeout = 2 * time.Second
	}
	if cfg.BatchParallelism <= 0 {
		cfg.BatchParallelism = 8
	}
	cfg.Retry = cfg.Retry.normalized()

	c := &Coordinator{
		tx:          tx,
		members:     members,
		counters:    counters,
		owners:      owners,
		broadcaster: broadcaster,
		cfg:         cfg,
		now:         time.Now,
		newID:       newEventID,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func newEventID() string {
	id, err := ulid.New(ulid.Timestamp(time.Now()), rand.Reader)
	if err != nil {
		return ulid.Make().String()
	}
	return id.String()
}

// attemptResult is what one committed transaction observed.
type attemptResult struct {
	state    domain.State
	changed  bool
	observed domain.CounterAggregate
}

// Toggle flips the actor's membership for (target, kind).
func (c *Coordinator) Toggle(ctx context.Context, actorID, targetID string, kind domain.InteractionKind) (domain.ToggleOutcome, error) {
	return c.Apply(ctx, actorID, targetID, kind, domain.ActionToggle)
}

// Apply moves the actor's membership according to action. ActionOn and
// ActionOff are idempotent: when the membership is already in the
// requested state nothing is written or broadcast.
func (c *Coordinator) Apply(ctx context.Context, actorID, targetID string, kind domain.InteractionKind, action domain.ToggleAction) (domain.ToggleOutcome, error) {
	start := c.now()
	ctx = pkglog.WithFields(ctx,
		pkglog.FieldUserID, actorID,
		pkglog.FieldTargetID, targetID,
		pkglog.FieldKind, string(kind),
	)
	l := pkglog.Ctx(ctx)

	if !kind.Valid() {
		return domain.ToggleOutcome{}, fmt.Errorf("%w: %q", domain.ErrInvalidKind, kind)
	}
	if action == "" {
		action = domain.ActionToggle
	}
	switch action {
	case domain.ActionToggle, domain.ActionOn, domain.ActionOff:
	default:
		return domain.ToggleOutcome{}, fmt.Errorf("%w: %q", domain.ErrInvalidAction, action)
	}

	ownerID, err := c.owners.OwnerOf(ctx, targetID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			c.metrics.ToggleError(string(kind), "not_found")
			return domain.ToggleOutcome{}, err
		}
		return domain.ToggleOutcome{}, c.fail(ctx, kind, fmt.Errorf("resolve target owner: %w", err))
	}

	policy := c.cfg.Retry
	for attempt := 0; attempt < policy.MaxAttempts; attempt++ {
		res, err := c.attempt(ctx, actorID, targetID, kind, action)
		if err == nil {
			return c.finish(ctx, actorID, targetID, kind, ownerID, res, start), nil
		}

		if !errors.Is(err, repository.ErrConflict) {
			return domain.ToggleOutcome{}, c.fail(ctx, kind, err)
		}

		c.metrics.Conflict(string(kind))
		l.Debug().Err(err).Int(pkglog.FieldAttempt, attempt+1).Msg("toggle attempt conflicted")

		if attempt+1 < policy.MaxAttempts {
			if err := sleepCtx(ctx, policy.Delay(attempt)); err != nil {
				return domain.ToggleOutcome{}, err
			}
		}
	}

	c.metrics.ToggleError(string(kind), "conflict")
	l.Warn().Int("attempts", policy.MaxAttempts).Msg("toggle retries exhausted")
	return domain.ToggleOutcome{}, fmt.Errorf("%w after %d attempts", domain.ErrToggleConflict, policy.MaxAttempts)
}

// fail maps a non-conflict error for the caller. Context errors pass through;
// everything else is reported as storage unavailability.
func (c *Coordinator) fail(ctx context.Context, kind domain.InteractionKind, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		c.metrics.ToggleError(string(kind), "canceled")
		return err
	}
	c.metrics.ToggleError(string(kind), "storage")
	l := pkglog.Ctx(ctx)
	l.Error().Err(err).Msg("toggle failed")
	if errors.Is(err, domain.ErrStorageUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %w", domain.ErrStorageUnavailable, err)
}

// attempt runs one read-decide-write cycle in a single transaction.
func (c *Coordinator) attempt(ctx context.Context, actorID, targetID string, kind domain.InteractionKind, action domain.ToggleAction) (attemptResult, error) {
	var res attemptResult

	err := c.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		res = attemptResult{}

		exists, err := c.members.Exists(ctx, actorID, targetID, kind)
		if err != nil {
			return err
		}

		switch {
		case !exists && action != domain.ActionOff:
			if err := c.members.Insert(ctx, domain.MembershipRecord{
				ActorID:   actorID,
				TargetID:  targetID,
				Kind:      kind,
				CreatedAt: c.now(),
			}); err != nil {
				return err
			}
			if _, err := c.counters.IncrementAtomic(ctx, targetID, kind); err != nil {
				return err
			}
			res.state, res.changed = domain.StateOn, true

		case exists && action != domain.ActionOn:
			if err := c.members.Delete(ctx, actorID, targetID, kind); err != nil {
				return err
			}
			decremented, err := c.counters.DecrementAtomic(ctx, targetID, kind)
			if err != nil {
				return err
			}
			if !decremented {
				l := pkglog.Ctx(ctx)
				l.Warn().Msg("counter already at zero while removing membership")
			}
			res.state, res.changed = domain.StateOff, true

		case exists:
			res.state = domain.StateOn

		default:
			res.state = domain.StateOff
		}

		agg, err := c.counters.ReadAggregate(ctx, targetID, kind)
		if err != nil {
			return err
		}
		res.observed = agg
		return nil
	})

	return res, err
}

// finish runs the post-commit steps. None of them can fail the toggle and
// none of them observe the caller's cancellation.
func (c *Coordinator) finish(ctx context.Context, actorID, targetID string, kind domain.InteractionKind, ownerID string, res attemptResult, start time.Time) domain.ToggleOutcome {
	l := pkglog.Ctx(ctx)
	detached := context.WithoutCancel(ctx)

	agg := res.observed
	rbCtx, cancel := context.WithTimeout(detached, c.cfg.ReadBackTimeout)
	fresh, err := c.counters.ReadAggregate(rbCtx, targetID, kind)
	cancel()
	switch {
	case err != nil:
		l.Warn().Err(err).Msg("counter read-back failed, using in-transaction value")
	case fresh.Version >= agg.Version:
		agg = fresh
	}

	outcome := domain.ToggleOutcome{
		Success:  true,
		TargetID: targetID,
		Kind:     kind,
		State:    res.state,
		Changed:  res.changed,
		Count:    agg.Value,
		Version:  agg.Version,
	}
	c.metrics.ObserveToggle(string(kind), string(res.state), res.changed, c.now().Sub(start))

	if !res.changed {
		return outcome
	}

	if c.cache != nil {
		if _, err := c.cache.SetCountIfNewer(detached, agg); err != nil {
			l.Warn().Err(err).Msg("counter cache write-through failed")
		}
	}

	event := domain.BroadcastEvent{
		ID:            c.newID(),
		TargetID:      targetID,
		Kind:          kind,
		ActorID:       actorID,
		State:         res.state,
		Count:         agg.Value,
		Version:       agg.Version,
		TargetOwnerID: ownerID,
		Timestamp:     c.now().UTC(),
	}
	if err := c.broadcaster.Publish(detached, event); err != nil {
		c.metrics.BroadcastFailure("enqueue")
		l.Warn().Err(err).Str("event_id", event.ID).Msg("broadcast not queued")
	}

	return outcome
}
