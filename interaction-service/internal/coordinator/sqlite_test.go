package coordinator

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weiawesome/wes-io-social/interaction-service/internal/domain"
	"github.com/weiawesome/wes-io-social/interaction-service/internal/repository"
	"github.com/weiawesome/wes-io-social/pkg/database"
)

// TestToggleConcurrentActorsSQLite runs the concurrent like scenario against
// the gorm repositories on a file-backed sqlite database with a pool of
// several connections, so transactions really contend for the write lock.
func TestToggleConcurrentActorsSQLite(t *testing.T) {
	db, err := database.New(&database.Config{
		Driver:       "sqlite",
		FilePath:     filepath.Join(t.TempDir(), "interactions.db"),
		MaxOpenConns: 4,
		LogLevel:     "silent",
	})
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	require.NoError(t, repository.Migrate(db))

	ctx := context.Background()
	members := repository.NewGormMembershipRepository(db)
	counters := repository.NewGormCounterRepository(db)
	targets := repository.NewGormTargetRepository(db)
	_, err = targets.Upsert(ctx, domain.Target{ID: "post-1", OwnerID: "owner", Type: "post"})
	require.NoError(t, err)

	b := &recordingBroadcaster{}
	c := New(repository.NewGormTransactor(db), members, counters, targets, b, DefaultConfig())

	const actors = 100
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for i := 0; i < actors; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := c.Toggle(ctx, fmt.Sprintf("actor-%d", i), "post-1", domain.KindLike); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	require.Empty(t, errs)

	value, err := counters.Read(ctx, "post-1", domain.KindLike)
	require.NoError(t, err)
	count, err := members.CountByTarget(ctx, "post-1", domain.KindLike)
	require.NoError(t, err)

	assert.Equal(t, int64(actors), value)
	assert.Equal(t, int64(actors), count)
	assert.Len(t, b.snapshot(), actors)
}
