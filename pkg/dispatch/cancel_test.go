package dispatch

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"changetrack/pkg/state"
	"changetrack/pkg/track"
)

func TestCancelPausedAtCheckpoint(t *testing.T) {
	log := &passLog{}
	sched := NewManualScheduler()
	d := New(WithScheduler(sched), WithMiddleware(log.middleware()))
	rec := state.NewRecord()

	fut := d.MutateAsync(context.Background(), func(_ context.Context, step *Step, view track.View) error {
		record(view).Set("a", 1)
		step.Checkpoint()
		record(view).Set("b", 2)
		return nil
	}, rec)
	assert.NoError(t, fut.Err())
	require.Len(t, d.ExecutingAsyncOperations(), 1)
	require.Equal(t, 1, sched.Pending())

	all := d.CancelAllAsyncOperations()
	require.NoError(t, all.Wait(waitCtx(t)))

	err := fut.Wait(waitCtx(t))
	assert.ErrorIs(t, err, ErrCancelled)
	var ce *CancelledError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, fut.Operation().ID(), ce.Operation)
	assert.Nil(t, ce.Cause)
	assert.Empty(t, d.ExecutingAsyncOperations())
	assert.False(t, rec.Has("b"))

	passes := log.snapshot()
	require.Len(t, passes, 2)
	assert.Equal(t, []any{"a"}, keysFor(passes[0], rec))
	assert.True(t, passes[1].Cancelled)
	require.Len(t, passes[1].Deltas, 1)
	assert.Empty(t, passes[1].Deltas[0])

	// A stale resume must not revive the routine.
	sched.RunPending()
	assert.False(t, rec.Has("b"))
	assert.Equal(t, 0, d.Session().Depth())
}

func TestCancelDuringWait(t *testing.T) {
	log := &passLog{}
	d := New(WithMiddleware(log.middleware()))
	rec := state.NewRecord()
	release := make(chan struct{})

	fut := d.MutateAsync(context.Background(), func(_ context.Context, step *Step, view track.View) error {
		record(view).Set("a", 1)
		if err := step.Wait(func() error {
			<-release
			return nil
		}); err != nil {
			return err
		}
		record(view).Set("b", 2)
		step.Checkpoint()
		record(view).Set("c", 3)
		return nil
	}, rec)
	require.Len(t, d.ExecutingAsyncOperations(), 1)

	all := d.CancelAllAsyncOperations()
	select {
	case <-all.Done():
		t.Fatalf("cancellation cannot finish before the wait settles")
	default:
	}
	close(release)
	require.NoError(t, all.Wait(waitCtx(t)))

	assert.ErrorIs(t, fut.Wait(waitCtx(t)), ErrCancelled)
	assert.Empty(t, d.ExecutingAsyncOperations())
	assert.False(t, rec.Has("b"))
	assert.False(t, rec.Has("c"))

	passes := log.snapshot()
	require.Len(t, passes, 1)
	assert.True(t, passes[0].Cancelled)
	assert.Equal(t, []any{"a"}, keysFor(passes[0], rec))
}

func TestCancelSingleOperation(t *testing.T) {
	sched := NewManualScheduler()
	d := New(WithScheduler(sched))
	a, b := state.NewRecord(), state.NewRecord()
	body := func(_ context.Context, step *Step, view track.View) error {
		record(view).Set("before", true)
		step.Checkpoint()
		record(view).Set("after", true)
		return nil
	}

	futA := d.MutateAsync(context.Background(), body, a)
	futB := d.MutateAsync(context.Background(), body, b)
	ops := d.ExecutingAsyncOperations()
	require.Len(t, ops, 2)
	assert.Same(t, futA.Operation(), ops[0])
	assert.Same(t, futB.Operation(), ops[1])
	assert.NotEqual(t, ops[0].ID(), ops[1].ID())

	futA.Operation().Cancel()
	assert.True(t, futA.Operation().Cancelled())
	assert.ErrorIs(t, futA.Wait(waitCtx(t)), ErrCancelled)
	require.Len(t, d.ExecutingAsyncOperations(), 1)

	sched.RunPending()
	require.NoError(t, futB.Wait(waitCtx(t)))
	assert.False(t, a.Has("after"))
	assert.True(t, b.Has("after"))
	assert.Empty(t, d.ExecutingAsyncOperations())
}

func TestCancelViaContext(t *testing.T) {
	d := New()
	ctx, cancel := context.WithCancel(context.Background())
	fut := d.MutateAsync(ctx, func(ctx context.Context, step *Step, _ track.View) error {
		return step.Wait(func() error {
			<-ctx.Done()
			return nil
		})
	}, state.NewRecord())
	cancel()

	err := fut.Wait(waitCtx(t))
	assert.ErrorIs(t, err, ErrCancelled)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCancelRequestedMidSegmentTearsDownAtCheckpoint(t *testing.T) {
	log := &passLog{}
	d := New(WithMiddleware(log.middleware()))
	rec := state.NewRecord()

	fut := d.MutateAsync(context.Background(), func(_ context.Context, step *Step, view track.View) error {
		record(view).Set("a", 1)
		step.Operation().Cancel()
		record(view).Set("b", 2)
		step.Checkpoint()
		record(view).Set("c", 3)
		return nil
	}, rec)
	assert.ErrorIs(t, fut.Wait(waitCtx(t)), ErrCancelled)
	assert.False(t, rec.Has("c"))

	passes := log.snapshot()
	require.Len(t, passes, 1)
	assert.True(t, passes[0].Cancelled)
	assert.Equal(t, []any{"a", "b"}, keysFor(passes[0], rec))
}

func TestCancelAllWithNothingExecuting(t *testing.T) {
	d := New()
	require.NoError(t, d.CancelAllAsyncOperations().Wait(waitCtx(t)))
}

func TestCancelAfterCompletionKeepsResult(t *testing.T) {
	d := New()
	fut := d.MutateAsync(context.Background(), func(_ context.Context, _ *Step, view track.View) error {
		record(view).Set("a", 1)
		return nil
	}, state.NewRecord())
	require.NoError(t, fut.Wait(waitCtx(t)))
	fut.Operation().Cancel()
	assert.NoError(t, fut.Err())
}
