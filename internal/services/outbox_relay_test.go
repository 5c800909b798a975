package services_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/julianmcancelo/grana3d2026-sub000/internal/repos"
	"github.com/julianmcancelo/grana3d2026-sub000/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mutableClock struct{ now time.Time }

func (c *mutableClock) Now() time.Time { return c.now }

func TestBackoff(t *testing.T) {
	assert.Equal(t, 2*time.Second, services.Backoff(1))
	assert.Equal(t, 8*time.Second, services.Backoff(3))
	assert.Equal(t, 5*time.Minute, services.Backoff(9))
	assert.Equal(t, 5*time.Minute, services.Backoff(40))
}

func TestRelay_RetriesThenSucceeds(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	clk := &mutableClock{now: fixedNow}
	relay := services.NewOutboxRelay(store, services.RelayConfig{MaxAttempts: 5, Clock: clk.Now})

	calls := 0
	relay.Register("order.export", services.TaskHandlerFunc(func(ctx context.Context, task repos.OutboxTask) error {
		calls++
		if calls == 1 {
			return errors.New("broker unavailable")
		}
		return nil
	}))
	require.NoError(t, store.Outbox.Enqueue(ctx, "t1", "order.export", `{}`, fixedNow))

	n, err := relay.ProcessDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	task, err := store.Outbox.Get(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, repos.OutboxPending, task.Status)
	assert.Equal(t, 1, task.Attempts)
	assert.Equal(t, "broker unavailable", task.LastError)
	assert.Equal(t, fixedNow.Add(2*time.Second).UnixMilli(), task.NextAttemptAt)

	// not due yet
	n, err = relay.ProcessDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, 1, calls)

	clk.now = fixedNow.Add(3 * time.Second)
	n, err = relay.ProcessDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	task, err = store.Outbox.Get(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, repos.OutboxDone, task.Status)
}

func TestRelay_GivesUpAfterMaxAttempts(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	clk := &mutableClock{now: fixedNow}
	relay := services.NewOutboxRelay(store, services.RelayConfig{MaxAttempts: 2, Clock: clk.Now})
	relay.Register("order.confirmation", services.TaskHandlerFunc(func(context.Context, repos.OutboxTask) error {
		return errors.New("smtp down")
	}))
	require.NoError(t, store.Outbox.Enqueue(ctx, "t1", "order.confirmation", `{}`, fixedNow))

	_, err := relay.ProcessDue(ctx)
	require.NoError(t, err)
	clk.now = clk.now.Add(time.Hour)
	_, err = relay.ProcessDue(ctx)
	require.NoError(t, err)

	failed, err := store.Outbox.List(ctx, repos.OutboxFailed, 10)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, 2, failed[0].Attempts)
	assert.Equal(t, "smtp down", failed[0].LastError)
}

func TestRelay_UnknownKindFails(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	relay := services.NewOutboxRelay(store, services.RelayConfig{Clock: clockAt(fixedNow)})
	require.NoError(t, store.Outbox.Enqueue(ctx, "t1", "mystery", `{}`, fixedNow))

	_, err := relay.ProcessDue(ctx)
	require.NoError(t, err)
	task, err := store.Outbox.Get(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, repos.OutboxFailed, task.Status)
}

func TestRelay_PanicIsAFailedAttempt(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	relay := services.NewOutboxRelay(store, services.RelayConfig{Clock: clockAt(fixedNow)})
	relay.Register("order.export", services.TaskHandlerFunc(func(context.Context, repos.OutboxTask) error {
		panic("nil map")
	}))
	require.NoError(t, store.Outbox.Enqueue(ctx, "t1", "order.export", `{}`, fixedNow))

	_, err := relay.ProcessDue(ctx)
	require.NoError(t, err)
	task, err := store.Outbox.Get(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, 1, task.Attempts)
	assert.Contains(t, task.LastError, "nil map")
}

func TestRelay_RunStopsOnCancel(t *testing.T) {
	store := newStore(t)
	relay := services.NewOutboxRelay(store, services.RelayConfig{PollInterval: 10 * time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- relay.Run(ctx) }()
	relay.Nudge()
	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("relay did not stop")
	}
}

func TestRelay_SkipsTaskClaimedElsewhere(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	clk := &mutableClock{now: fixedNow}
	relay := services.NewOutboxRelay(store, services.RelayConfig{ClaimLease: time.Minute, Clock: clk.Now})

	calls := 0
	relay.Register("order.export", services.TaskHandlerFunc(func(context.Context, repos.OutboxTask) error {
		calls++
		return nil
	}))
	require.NoError(t, store.Outbox.Enqueue(ctx, "t1", "order.export", `{}`, fixedNow))
	require.NoError(t, store.Outbox.Enqueue(ctx, "t2", "order.export", `{}`, fixedNow))

	// a second relay instance holds t1
	ok, err := store.Outbox.Claim(ctx, "t1", fixedNow, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	n, err := relay.ProcessDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, calls)

	t1, err := store.Outbox.Get(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, repos.OutboxPending, t1.Status)
	assert.Equal(t, 0, t1.Attempts)

	// the other holder never finished; its lease runs out
	clk.now = fixedNow.Add(2 * time.Minute)
	n, err = relay.ProcessDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 2, calls)
}
