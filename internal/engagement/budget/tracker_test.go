package budget

import (
	"context"
	"errors"
	"testing"
	"time"

	"engagement-scheduler/internal/common/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMiniredisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewRedisStore(client, time.Hour), mr
}

func TestTracker_MayEmit_RemoteWins(t *testing.T) {
	store, mr := newMiniredisStore(t)
	ctx := context.Background()

	tracker := NewTracker(store, "sess-1", logger.NewTestLogger(t))

	// Fresh session: remote is zero, budget open.
	assert.True(t, tracker.MayEmit(ctx, 1))

	// Remote already at the cap, as after a reload mid-session.
	mr.Set("engagement:session:sess-1", "1")
	assert.False(t, tracker.MayEmit(ctx, 1))
	assert.Equal(t, 1, tracker.LocalCount())
}

func TestTracker_Commit_AdvancesBothCounters(t *testing.T) {
	store, mr := newMiniredisStore(t)
	ctx := context.Background()

	tracker := NewTracker(store, "sess-2", logger.NewTestLogger(t))
	require.True(t, tracker.MayEmit(ctx, 10))

	tracker.Commit(ctx)
	assert.Equal(t, 1, tracker.LocalCount())
	val, err := mr.Get("engagement:session:sess-2")
	require.NoError(t, err)
	assert.Equal(t, "1", val)
}

func TestTracker_BudgetMonotonicAcrossReload(t *testing.T) {
	store, _ := newMiniredisStore(t)
	ctx := context.Background()
	const maxPerSession = 3

	emitted := 0
	tracker := NewTracker(store, "sess-3", logger.NewTestLogger(t))
	for i := 0; i < 10; i++ {
		if tracker.MayEmit(ctx, maxPerSession) {
			tracker.Commit(ctx)
			emitted++
		}
	}
	assert.Equal(t, maxPerSession, emitted)

	// Simulated reload: a new tracker starts with localCount zero but the
	// remote counter is unchanged, so nothing more is emitted.
	reloaded := NewTracker(store, "sess-3", logger.NewTestLogger(t))
	for i := 0; i < 5; i++ {
		if reloaded.MayEmit(ctx, maxPerSession) {
			reloaded.Commit(ctx)
			emitted++
		}
	}
	assert.Equal(t, maxPerSession, emitted)
}

func TestTracker_MayEmit_FallsBackToLocalOnRemoteFailure(t *testing.T) {
	client, mock := redismock.NewClientMock()
	store := NewRedisStore(client, time.Hour)
	tracker := NewTracker(store, "sess-4", logger.NewTestLogger(t))
	ctx := context.Background()

	mock.ExpectGet("engagement:session:sess-4").SetErr(errors.New("connection refused"))
	assert.True(t, tracker.MayEmit(ctx, 1))

	// A commit whose remote leg fails still counts locally, so the local
	// fallback keeps enforcing the cap during the outage.
	mock.ExpectIncr("engagement:session:sess-4").SetErr(errors.New("connection refused"))
	tracker.Commit(ctx)
	assert.Equal(t, 1, tracker.LocalCount())

	mock.ExpectGet("engagement:session:sess-4").SetErr(errors.New("connection refused"))
	assert.False(t, tracker.MayEmit(ctx, 1))
}

func TestRedisStore_SessionCount_UnknownSessionIsZero(t *testing.T) {
	store, _ := newMiniredisStore(t)
	n, err := store.SessionCount(context.Background(), "never-seen")
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}
