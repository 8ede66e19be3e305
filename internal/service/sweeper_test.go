package service

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/mmk-auth-bridge/config"
	"github.com/target/mmk-auth-bridge/internal/adapters/memory"
	"github.com/target/mmk-auth-bridge/internal/testutil"
)

type stubSweeper struct {
	n     int64
	err   error
	calls atomic.Int32
}

func (s *stubSweeper) PurgeExpired(context.Context) (int64, error) {
	s.calls.Add(1)
	return s.n, s.err
}

func TestNewSweeperService_Validation(t *testing.T) {
	cfg := config.SweeperConfig{Interval: time.Minute}

	_, err := NewSweeperService(SweeperServiceOptions{Config: cfg})
	assert.Error(t, err)

	_, err = NewSweeperService(SweeperServiceOptions{Targets: []SweepTarget{{Name: "nil"}}, Config: cfg})
	assert.Error(t, err)

	_, err = NewSweeperService(SweeperServiceOptions{Targets: []SweepTarget{{Name: "s", Store: &stubSweeper{}}}})
	assert.Error(t, err)

	_, err = NewSweeperService(SweeperServiceOptions{Targets: []SweepTarget{{Name: "s", Store: &stubSweeper{}}}, Config: cfg})
	assert.NoError(t, err)
}

func TestSweeperService_SweepOncePurgesMemoryStores(t *testing.T) {
	clock := testutil.NewClock(testutil.TestTime())
	ctx := context.Background()
	sessions := memory.NewSessionStore(memory.SessionStoreOptions{Now: clock.Now})
	flows := memory.NewFlowStore(clock.Now)

	_, err := sessions.Create(ctx, testIdentity(), testTokens(), time.Minute)
	require.NoError(t, err)
	_, err = sessions.Create(ctx, testIdentity(), testTokens(), time.Hour)
	require.NoError(t, err)
	require.NoError(t, flows.Put(ctx, "k", testFlow(clock.Now()), time.Minute))

	svc, err := NewSweeperService(SweeperServiceOptions{
		Targets: []SweepTarget{{Name: "sessions", Store: sessions}, {Name: "flows", Store: flows}},
		Config:  config.SweeperConfig{Interval: time.Minute},
	})
	require.NoError(t, err)

	clock.Advance(2 * time.Minute)
	n, err := svc.SweepOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Equal(t, 1, sessions.Len())
}

func TestSweeperService_SweepOnceContinuesPastFailures(t *testing.T) {
	failing := &stubSweeper{err: errors.New("boom")}
	ok := &stubSweeper{n: 3}
	svc, err := NewSweeperService(SweeperServiceOptions{
		Targets: []SweepTarget{{Name: "broken", Store: failing}, {Name: "ok", Store: ok}},
		Config:  config.SweeperConfig{Interval: time.Minute},
	})
	require.NoError(t, err)

	n, err := svc.SweepOnce(context.Background())
	assert.Equal(t, int64(3), n)
	assert.ErrorContains(t, err, "sweep broken: boom")
	assert.Equal(t, int32(1), ok.calls.Load())
}

func TestSweeperService_RunStopsOnCancel(t *testing.T) {
	stub := &stubSweeper{}
	svc, err := NewSweeperService(SweeperServiceOptions{
		Targets: []SweepTarget{{Name: "stub", Store: stub}},
		Config:  config.SweeperConfig{Interval: 10 * time.Millisecond},
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	require.Eventually(t, func() bool { return stub.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}

func TestSweeperService_RunReturnsDeadline(t *testing.T) {
	svc, err := NewSweeperService(SweeperServiceOptions{
		Targets: []SweepTarget{{Name: "stub", Store: &stubSweeper{}}},
		Config:  config.SweeperConfig{Interval: time.Hour},
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, svc.Run(ctx), context.DeadlineExceeded)
}
