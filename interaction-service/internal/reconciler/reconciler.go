package reconciler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/weiawesome/wes-io-social/interaction-service/internal/config"
	"github.com/weiawesome/wes-io-social/interaction-service/internal/domain"
	"github.com/weiawesome/wes-io-social/interaction-service/internal/metrics"
	"github.com/weiawesome/wes-io-social/interaction-service/internal/repository"
	"github.com/weiawesome/wes-io-social/interaction-service/internal/store"
	pkglog "github.com/weiawesome/wes-io-social/pkg/log"
)

// Reconciler periodically refreshes hot counters in the cache from the
// database and checks each against its membership count. Drift is logged
// and counted only when the same gap shows on two consecutive passes; the
// counter row itself is never rewritten here.
type Reconciler struct {
	tx       repository.Transactor
	store    store.CounterStore
	counters repository.CounterRepository
	members  repository.MembershipRepository
	cfg      config.ReconcilerConfig
	metrics  *metrics.Metrics
	suspects map[store.HotKey]int64
	quit     chan struct{}
	stopOnce sync.Once
	doneCh   chan struct{}
}

// New creates a new Reconciler.
func New(
	tx repository.Transactor,
	counterStore store.CounterStore,
	counters repository.CounterRepository,
	members repository.MembershipRepository,
	cfg config.ReconcilerConfig,
	m *metrics.Metrics,
) *Reconciler {
	return &Reconciler{
		tx:       tx,
		store:    counterStore,
		counters: counters,
		members:  members,
		cfg:      cfg,
		metrics:  m,
		suspects: make(map[store.HotKey]int64),
		quit:     make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start launches the reconciler in a background goroutine.
func (r *Reconciler) Start(ctx context.Context) {
	go r.run(ctx)
}

// Stop signals the reconciler to stop and returns immediately.
// Call Done() to wait for it to exit.
func (r *Reconciler) Stop() {
	r.stopOnce.Do(func() { close(r.quit) })
}

// Done returns a channel that is closed when the reconciler has fully stopped.
func (r *Reconciler) Done() <-chan struct{} {
	return r.doneCh
}

func (r *Reconciler) run(ctx context.Context) {
	defer close(r.doneCh)

	interval := r.cfg.Interval
	if interval <= 0 {
		interval = 60 * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.quit:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.reconcile(ctx)
		}
	}
}

// reconcile runs one pass and returns the number of drifted counters.
func (r *Reconciler) reconcile(ctx context.Context) int {
	l := pkglog.L()
	l.Debug().Msg("reconciler: starting hot-key reconciliation")

	topN := int64(r.cfg.TopN)
	if topN <= 0 {
		topN = 100
	}

	// 1. Fetch top-N hot keys
	keys, err := r.store.GetTopHotKeys(ctx, topN)
	if err != nil {
		l.Error().Err(err).Msg("reconciler: failed to get top hot keys")
		return 0
	}

	if len(keys) == 0 {
		l.Debug().Msg("reconciler: no hot keys to reconcile")
		return 0
	}

	// 2. Refresh the cache from the database and compare with membership
	drifted := 0
	seen := make(map[store.HotKey]int64)
	for _, key := range keys {
		kl := l.With().Str(pkglog.FieldTargetID, key.TargetID).Str(pkglog.FieldKind, string(key.Kind)).Logger()

		agg, members, err := r.snapshot(ctx, key)
		if err != nil {
			kl.Error().Err(err).Msg("reconciler: failed to read counter snapshot")
			continue
		}
		if _, err := r.store.SetCountIfNewer(ctx, agg); err != nil {
			kl.Error().Err(err).Msg("reconciler: failed to set count in redis")
		}

		gap := agg.Value - members
		if gap == 0 {
			continue
		}
		seen[key] = gap
		if prev, ok := r.suspects[key]; !ok || prev != gap {
			kl.Debug().Int64("gap", gap).Msg("reconciler: counter mismatch, rechecking next pass")
			continue
		}
		drifted++
		r.metrics.CounterDrift(string(key.Kind))
		kl.Warn().
			Int64("counter", agg.Value).
			Int64("memberships", members).
			Msg("reconciler: counter drift detected")
	}
	r.suspects = seen

	// 3. Reset hot key scores for the next cycle
	if err := r.store.ResetHotKeyScores(ctx); err != nil {
		l.Error().Err(err).Msg("reconciler: failed to reset hot key scores")
	}

	l.Info().Int("count", len(keys)).Int("drifted", drifted).Msg("reconciler: hot-key reconciliation complete")
	return drifted
}

// snapshot reads the counter and its membership count in one transaction.
func (r *Reconciler) snapshot(ctx context.Context, key store.HotKey) (domain.CounterAggregate, int64, error) {
	var (
		agg     domain.CounterAggregate
		members int64
	)
	err := r.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		var err error
		if agg, err = r.counters.ReadAggregate(ctx, key.TargetID, key.Kind); err != nil {
			return fmt.Errorf("read counter: %w", err)
		}
		if members, err = r.members.CountByTarget(ctx, key.TargetID, key.Kind); err != nil {
			return fmt.Errorf("count memberships: %w", err)
		}
		return nil
	})
	return agg, members, err
}
