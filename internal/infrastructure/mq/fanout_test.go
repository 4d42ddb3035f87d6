package mq

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"employee_chat_server/internal/config"
	"employee_chat_server/pkg/errorx"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/require"
)

func init() {
	newBackOff = func() backoff.BackOff { return &backoff.ZeroBackOff{} }
}

func newTestPool(t *testing.T, workers, queueSize int) *WorkerPool {
	t.Helper()
	pool, err := NewWorkerPool(workers, queueSize)
	require.NoError(t, err)
	return pool
}

func TestWorkerPoolRejectsWhenFull(t *testing.T) {
	pool := newTestPool(t, 1, 1)
	release := make(chan struct{})
	started := make(chan struct{})

	require.NoError(t, pool.TrySubmit(func() { close(started); <-release }))
	<-started
	require.NoError(t, pool.TrySubmit(func() {}))

	err := pool.TrySubmit(func() {})
	require.Error(t, err)
	require.True(t, errorx.IsRetryable(err))

	close(release)
	pool.Close()
	require.ErrorIs(t, pool.TrySubmit(func() {}), ErrPoolClosed)
}

func TestWorkerPoolSurvivesPanic(t *testing.T) {
	pool := newTestPool(t, 1, 4)
	var ran atomic.Int32
	require.NoError(t, pool.TrySubmit(func() { panic("boom") }))
	done := make(chan struct{})
	require.NoError(t, pool.TrySubmit(func() { ran.Add(1); close(done) }))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("pool stopped running tasks after panic")
	}
	pool.Close()
	require.EqualValues(t, 1, ran.Load())
}

func TestWorkerPoolCloseDrainsQueue(t *testing.T) {
	pool := newTestPool(t, 1, 10)
	var ran atomic.Int32
	for i := 0; i < 5; i++ {
		require.NoError(t, pool.TrySubmit(func() { ran.Add(1) }))
	}
	pool.Close()
	require.EqualValues(t, 5, ran.Load())
}

func TestSubmitWaitHonorsContext(t *testing.T) {
	pool := newTestPool(t, 1, 1)
	defer pool.Close()
	release := make(chan struct{})
	started := make(chan struct{})
	require.NoError(t, pool.SubmitWait(context.Background(), func() { close(started); <-release }))
	<-started
	// 唯一的 Worker 被占用，这个任务占住唯一的排队名额
	require.NoError(t, pool.SubmitWait(context.Background(), func() {}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, pool.SubmitWait(ctx, func() {}), context.DeadlineExceeded)
	close(release)
}

func TestChannelFanoutRetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	var wg sync.WaitGroup
	wg.Add(1)
	handler := func(ctx context.Context, ev FanoutEvent) error {
		if calls.Add(1) < 3 {
			return errors.New("transient")
		}
		wg.Done()
		return nil
	}
	f, err := NewChannelFanout(config.FanoutConfig{Workers: 2, QueueSize: 4, MaxRetries: 5}, handler)
	require.NoError(t, err)
	require.NoError(t, f.Submit(context.Background(), FanoutEvent{MessageID: 1, Action: ActionSend}))
	wg.Wait()
	f.Close()
	require.EqualValues(t, 3, calls.Load())
}

func TestChannelFanoutDoesNotRetryNotFound(t *testing.T) {
	var calls atomic.Int32
	handler := func(ctx context.Context, ev FanoutEvent) error {
		calls.Add(1)
		return errorx.New(errorx.CodeNotFound, "消息不存在")
	}
	f, err := NewChannelFanout(config.FanoutConfig{Workers: 1, QueueSize: 1, MaxRetries: 5}, handler)
	require.NoError(t, err)
	require.NoError(t, f.Submit(context.Background(), FanoutEvent{MessageID: 9, Action: ActionDelete}))
	f.Close()
	require.EqualValues(t, 1, calls.Load())
}

func TestNewFanoutRejectsUnknownMode(t *testing.T) {
	cfg := config.Default()
	cfg.FanoutConfig.Mode = "carrier-pigeon"
	_, err := NewFanout(cfg, func(context.Context, FanoutEvent) error { return nil })
	require.Error(t, err)
}

func TestWorkerPoolSubmitAfterCloseFails(t *testing.T) {
	pool := newTestPool(t, 2, 2)
	pool.Close()
	require.ErrorIs(t, pool.SubmitWait(context.Background(), func() {}), ErrPoolClosed)
	require.ErrorIs(t, pool.TrySubmit(func() {}), ErrPoolClosed)
}
