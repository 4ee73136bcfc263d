package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/chbarnhouse/ha-finance-assistant/internal/addon"
	"github.com/chbarnhouse/ha-finance-assistant/internal/core"
	"github.com/chbarnhouse/ha-finance-assistant/internal/log"
)

// fakeFetcher returns queued results in order, repeating the last one.
type fakeFetcher struct {
	mu      sync.Mutex
	results []fetchResult
	calls   int
	called  chan struct{}
}

type fetchResult struct {
	snap *core.Snapshot
	err  error
}

func newFakeFetcher(results ...fetchResult) *fakeFetcher {
	return &fakeFetcher{results: results, called: make(chan struct{}, 16)}
}

func (f *fakeFetcher) AllData(context.Context) (*core.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.calls
	if i >= len(f.results) {
		i = len(f.results) - 1
	}
	f.calls++
	select {
	case f.called <- struct{}{}:
	default:
	}
	return f.results[i].snap, f.results[i].err
}

func (f *fakeFetcher) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func snapshotOf(t *testing.T, raw string) *core.Snapshot {
	t.Helper()
	snap, err := core.DecodeSnapshot([]byte(raw))
	require.NoError(t, err)
	return snap
}

func TestCoordinator_FirstRefresh(t *testing.T) {
	snap := snapshotOf(t, `{"accounts": []}`)
	c := NewCoordinator(newFakeFetcher(fetchResult{snap: snap}), DefaultCoordinatorConfig(), log.Discard())

	_, err := c.Data()
	assert.ErrorIs(t, err, ErrNoData)

	require.NoError(t, c.FirstRefresh(context.Background()))
	got, err := c.Data()
	require.NoError(t, err)
	assert.Same(t, snap, got)
	assert.True(t, c.LastUpdateSuccess())
	assert.NoError(t, c.LastError())
	assert.False(t, c.LastUpdate().IsZero())
}

func TestCoordinator_FirstRefreshNotReady(t *testing.T) {
	boom := errors.New("connection refused")
	c := NewCoordinator(newFakeFetcher(fetchResult{err: boom}), DefaultCoordinatorConfig(), log.Discard())

	err := c.FirstRefresh(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, addon.ErrNotReady)
	assert.ErrorIs(t, err, boom)
	assert.False(t, c.LastUpdateSuccess())
}

func TestCoordinator_FailedRefreshKeepsData(t *testing.T) {
	first := snapshotOf(t, `{"accounts": []}`)
	boom := errors.New("502")
	c := NewCoordinator(newFakeFetcher(fetchResult{snap: first}, fetchResult{err: boom}), DefaultCoordinatorConfig(), log.Discard())

	var updates []Update
	c.Subscribe(func(u Update) { updates = append(updates, u) })

	require.NoError(t, c.Refresh(context.Background()))
	require.ErrorIs(t, c.Refresh(context.Background()), boom)

	require.Len(t, updates, 2)
	assert.True(t, updates[0].Success)
	assert.False(t, updates[1].Success)
	assert.Same(t, first, updates[1].Snapshot, "failed refresh keeps the previous snapshot")
	assert.ErrorIs(t, updates[1].Err, boom)

	got, err := c.Data()
	require.NoError(t, err)
	assert.Same(t, first, got)
	assert.ErrorIs(t, c.LastError(), boom)
}

func TestCoordinator_NilSnapshotIsFailure(t *testing.T) {
	c := NewCoordinator(newFakeFetcher(fetchResult{}), DefaultCoordinatorConfig(), log.Discard())
	assert.Error(t, c.Refresh(context.Background()))
	assert.False(t, c.LastUpdateSuccess())
}

func TestCoordinator_RequestRefreshCoalesces(t *testing.T) {
	c := NewCoordinator(newFakeFetcher(fetchResult{snap: &core.Snapshot{}}), DefaultCoordinatorConfig(), log.Discard())
	assert.True(t, c.RequestRefresh())
	assert.False(t, c.RequestRefresh(), "second request merges into the pending one")
}

func TestCoordinator_Lifecycle(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	fetcher := newFakeFetcher(fetchResult{snap: &core.Snapshot{}})
	c := NewCoordinator(fetcher, CoordinatorConfig{ScanInterval: time.Hour}, log.Discard())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	assert.False(t, c.IsRunning())
	require.NoError(t, c.Start(ctx))
	assert.True(t, c.IsRunning())
	assert.Error(t, c.Start(ctx), "second start must fail")

	c.RequestRefresh()
	select {
	case <-fetcher.called:
	case <-time.After(2 * time.Second):
		t.Fatal("requested refresh never ran")
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer stopCancel()
	require.NoError(t, c.Stop(stopCtx))
	assert.False(t, c.IsRunning())
	assert.Equal(t, 1, fetcher.Calls())
}

func TestCoordinator_StopNotRunning(t *testing.T) {
	c := NewCoordinator(newFakeFetcher(fetchResult{}), DefaultCoordinatorConfig(), log.Discard())
	assert.NoError(t, c.Stop(context.Background()))
}

func TestCoordinator_TickerRefreshes(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	fetcher := newFakeFetcher(fetchResult{snap: &core.Snapshot{}})
	c := NewCoordinator(fetcher, CoordinatorConfig{ScanInterval: 10 * time.Millisecond}, log.Discard())
	ctx, cancel := context.WithCancel(context.Background())

	require.NoError(t, c.Start(ctx))
	for i := 0; i < 2; i++ {
		select {
		case <-fetcher.called:
		case <-time.After(2 * time.Second):
			t.Fatal("ticker refresh never ran")
		}
	}
	cancel()
	require.NoError(t, c.Stop(context.Background()))
}
