package coordinator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weiawesome/wes-io-social/interaction-service/internal/domain"
)

func TestBatchToggleGroupsByTarget(t *testing.T) {
	s := newMemStore()
	s.setCounter("post-2", domain.KindLike, 5)
	b := &recordingBroadcaster{}
	c := newTestCoordinator(s, b)

	items := []domain.BatchItem{
		{ActorID: "alice", TargetID: "post-1", Kind: domain.KindLike},
		{ActorID: "alice", TargetID: "post-2", Kind: domain.KindLike, Action: domain.ActionOn},
		{ActorID: "bob", TargetID: "post-1", Kind: domain.KindLike},
		{ActorID: "alice", TargetID: "post-1", Kind: domain.KindLike},
	}

	results := c.BatchToggle(context.Background(), items)
	require.Len(t, results, 2)

	// last item of post-1 turns alice off again, leaving bob
	p1 := results["post-1"]
	assert.True(t, p1.Success)
	assert.Equal(t, domain.StateOff, p1.State)
	assert.Equal(t, int64(1), p1.Count)

	p2 := results["post-2"]
	assert.True(t, p2.Success)
	assert.Equal(t, domain.StateOn, p2.State)
	assert.Equal(t, int64(6), p2.Count)

	assert.Len(t, b.snapshot(), 4)
}

func TestBatchToggleFailureIsIsolated(t *testing.T) {
	s := newMemStore()
	c := newTestCoordinator(s, &recordingBroadcaster{})

	items := []domain.BatchItem{
		{ActorID: "alice", TargetID: "missing", Kind: domain.KindLike},
		{ActorID: "alice", TargetID: "post-1", Kind: domain.KindCollect},
	}

	results := c.BatchToggle(context.Background(), items)
	require.Len(t, results, 2)

	assert.False(t, results["missing"].Success)
	assert.Contains(t, results["missing"].Error, domain.ErrNotFound.Error())
	assert.True(t, results["post-1"].Success)
	assert.Equal(t, int64(1), results["post-1"].Count)
}

func TestBatchToggleEmpty(t *testing.T) {
	c := newTestCoordinator(newMemStore(), &recordingBroadcaster{})

	results := c.BatchToggle(context.Background(), nil)

	assert.Empty(t, results)
}
