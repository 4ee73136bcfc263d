package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/chbarnhouse/ha-finance-assistant/internal/log"
	"github.com/chbarnhouse/ha-finance-assistant/internal/sheets/memory"
)

func TestScheduler_RunsJobs(t *testing.T) {
	defer goleak.VerifyNone(t)

	s := NewScheduler(time.UTC, log.Discard())
	ran := make(chan struct{}, 4)
	require.NoError(t, s.Add("tick", "@every 1s", func(ctx context.Context) error {
		select {
		case ran <- struct{}{}:
		default:
		}
		return errors.New("job errors are logged, not fatal")
	}))
	assert.Equal(t, 1, s.Len())

	require.NoError(t, s.Start())
	assert.Error(t, s.Start(), "second start is rejected")

	select {
	case <-ran:
	case <-time.After(3 * time.Second):
		t.Fatal("job did not run")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
	require.NoError(t, s.Stop(ctx), "stop is idempotent")
}

func TestScheduler_RejectsBadSpec(t *testing.T) {
	s := NewScheduler(time.UTC, log.Discard())
	assert.Error(t, s.Add("bad", "every day at noon", func(context.Context) error { return nil }))
	assert.Zero(t, s.Len())
}

func TestScheduler_AddHistoryJobs(t *testing.T) {
	s := NewScheduler(time.UTC, log.Discard())
	w := NewHistoryWorker(newTestRepo(t), memory.New(), time.UTC, 48*time.Hour, log.Discard())

	require.NoError(t, s.AddHistoryJobs(w, "55 23 * * *", "0 4 * * *"))
	assert.Equal(t, 2, s.Len())

	assert.Error(t, NewScheduler(time.UTC, log.Discard()).AddHistoryJobs(w, "55 23 * * *", "nope"))
}
