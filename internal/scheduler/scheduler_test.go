package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"messaging-service/internal/engine"
)

type countingReconciler struct {
	calls  atomic.Int32
	report engine.ReconcileReport
	err    error
}

func (c *countingReconciler) Reconcile(ctx context.Context) (engine.ReconcileReport, error) {
	c.calls.Add(1)
	return c.report, c.err
}

func TestTickerSweepsUntilCancelled(t *testing.T) {
	r := &countingReconciler{}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- NewTicker(5*time.Millisecond, r).Run(ctx) }()

	assert.Eventually(t, func() bool { return r.calls.Load() >= 3 }, time.Second, time.Millisecond)
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("ticker did not stop")
	}
}

func TestTickerKeepsRunningAfterFailure(t *testing.T) {
	r := &countingReconciler{err: errors.New("store down")}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = NewTicker(5*time.Millisecond, r).Run(ctx) }()

	assert.Eventually(t, func() bool { return r.calls.Load() >= 2 }, time.Second, time.Millisecond)
}

func TestHandleReconcile(t *testing.T) {
	task := asynq.NewTask(TaskReconcile, nil)

	ok := &countingReconciler{report: engine.ReconcileReport{Scanned: 3, Restored: 1, Failed: 1}}
	require.NoError(t, HandleReconcile(ok)(context.Background(), task))
	assert.EqualValues(t, 1, ok.calls.Load())

	failing := &countingReconciler{err: errors.New("list failed")}
	assert.ErrorContains(t, HandleReconcile(failing)(context.Background(), task), "list failed")
}

func TestNewWithoutRedisUsesTicker(t *testing.T) {
	runner, err := New("", time.Minute, &countingReconciler{})
	require.NoError(t, err)
	assert.IsType(t, &Ticker{}, runner)

	_, err = New("ftp://nowhere", time.Minute, &countingReconciler{})
	assert.Error(t, err)
}

func TestUniqueTTL(t *testing.T) {
	assert.Equal(t, time.Second, uniqueTTL(10*time.Millisecond))
	assert.Equal(t, time.Minute, uniqueTTL(time.Minute))
}
