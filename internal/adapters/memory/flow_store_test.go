package memory

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainauth "github.com/target/mmk-auth-bridge/internal/domain/auth"
	"github.com/target/mmk-auth-bridge/internal/testutil"
)

func testFlow(now time.Time) domainauth.FlowState {
	return domainauth.FlowState{
		State:        "state-1",
		Nonce:        "nonce-1",
		PKCEVerifier: "verifier-1",
		Scopes:       []string{"openid", "profile"},
		RedirectURI:  "https://bridge.example.com/redirect",
		CreatedAt:    now,
	}
}

func TestFlowStore_PutTake(t *testing.T) {
	ctx := context.Background()
	clock := testutil.NewClock(testutil.TestTime())
	store := NewFlowStore(clock.Now)

	flow := testFlow(clock.Now())
	require.NoError(t, store.Put(ctx, "key", flow, time.Minute))

	got, ok, err := store.Take(ctx, "key")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, flow, got)

	_, ok, err = store.Take(ctx, "key")
	require.NoError(t, err)
	assert.False(t, ok, "flow is consumed by the first take")
}

func TestFlowStore_PutReplacesPriorFlow(t *testing.T) {
	ctx := context.Background()
	store := NewFlowStore(nil)

	first := testFlow(time.Now())
	second := first
	second.State = "state-2"
	require.NoError(t, store.Put(ctx, "key", first, 0))
	require.NoError(t, store.Put(ctx, "key", second, 0))

	got, ok, err := store.Take(ctx, "key")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "state-2", got.State)
}

func TestFlowStore_RejectsEmptyKey(t *testing.T) {
	store := NewFlowStore(nil)
	assert.Error(t, store.Put(context.Background(), "", testFlow(time.Now()), time.Minute))
	_, ok, err := store.Take(context.Background(), "")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFlowStore_ExpiredFlowIsNotReturned(t *testing.T) {
	ctx := context.Background()
	clock := testutil.NewClock(testutil.TestTime())
	store := NewFlowStore(clock.Now)

	require.NoError(t, store.Put(ctx, "key", testFlow(clock.Now()), time.Minute))
	clock.Advance(time.Minute)

	_, ok, err := store.Take(ctx, "key")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFlowStore_ConcurrentTakeIsExactlyOnce(t *testing.T) {
	ctx := context.Background()
	store := NewFlowStore(nil)
	require.NoError(t, store.Put(ctx, "key", testFlow(time.Now()), time.Minute))

	var winners atomic.Int32
	var wg sync.WaitGroup
	start := make(chan struct{})
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if _, ok, err := store.Take(ctx, "key"); err == nil && ok {
				winners.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()
	assert.Equal(t, int32(1), winners.Load())
}

func TestFlowStore_PurgeExpired(t *testing.T) {
	ctx := context.Background()
	clock := testutil.NewClock(testutil.TestTime())
	store := NewFlowStore(clock.Now)

	require.NoError(t, store.Put(ctx, "stale", testFlow(clock.Now()), time.Minute))
	require.NoError(t, store.Put(ctx, "fresh", testFlow(clock.Now()), time.Hour))
	clock.Advance(5 * time.Minute)

	n, err := store.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, ok, err := store.Take(ctx, "fresh")
	require.NoError(t, err)
	assert.True(t, ok)
}
