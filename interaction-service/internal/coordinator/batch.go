package coordinator

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/weiawesome/wes-io-social/interaction-service/internal/domain"
	pkglog "github.com/weiawesome/wes-io-social/pkg/log"
)

// BatchToggle applies items grouped by target. Groups run concurrently up
// to the configured parallelism; items of one group run sequentially in
// input order. A failed item never stops its siblings. The result holds,
// per target, the outcome of the last item of that group.
func (c *Coordinator) BatchToggle(ctx context.Context, items []domain.BatchItem) map[string]domain.ToggleOutcome {
	order := make([]string, 0, len(items))
	groups := make(map[string][]domain.BatchItem)
	for _, it := range items {
		if _, ok := groups[it.TargetID]; !ok {
			order = append(order, it.TargetID)
		}
		groups[it.TargetID] = append(groups[it.TargetID], it)
	}

	results := make(map[string]domain.ToggleOutcome, len(order))
	var mu sync.Mutex

	var g errgroup.Group
	g.SetLimit(c.cfg.BatchParallelism)

	for _, targetID := range order {
		targetID := targetID
		group := groups[targetID]
		g.Go(func() error {
			var last domain.ToggleOutcome
			for _, it := range group {
				out, err := c.Apply(ctx, it.ActorID, it.TargetID, it.Kind, it.Action)
				if err != nil {
					l := pkglog.Ctx(ctx)
					l.Debug().Err(err).Str(pkglog.FieldTargetID, it.TargetID).Msg("batch item failed")
					out = domain.ToggleOutcome{
						Success:  false,
						TargetID: it.TargetID,
						Kind:     it.Kind,
						Error:    err.Error(),
					}
				}
				last = out
			}

			mu.Lock()
			results[targetID] = last
			mu.Unlock()
			return nil
		})
	}

	_ = g.Wait()
	return results
}
