package dispatch

import (
	"bytes"
	"context"
	"errors"
	"expvar"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"changetrack/pkg/state"
	"changetrack/pkg/track"
)

type captureLogger struct {
	mu    sync.Mutex
	calls []string
}

func (c *captureLogger) add(s string) {
	c.mu.Lock()
	c.calls = append(c.calls, s)
	c.mu.Unlock()
}

func (c *captureLogger) Debug(msg string, _ ...any) { c.add("d:" + msg) }
func (c *captureLogger) Info(msg string, _ ...any)  { c.add("i:" + msg) }
func (c *captureLogger) Warn(msg string, _ ...any)  { c.add("w:" + msg) }
func (c *captureLogger) Error(msg string, _ ...any) { c.add("e:" + msg) }

func (c *captureLogger) has(call string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, got := range c.calls {
		if got == call {
			return true
		}
	}
	return false
}

func runWorkload(t *testing.T, d *Dispatcher) {
	t.Helper()
	rec := state.NewRecord()
	require.NoError(t, d.Mutate(context.Background(), func(_ context.Context, view track.View) error {
		record(view).Set("a", 1)
		return nil
	}, rec))
	require.Error(t, d.Mutate(context.Background(), func(context.Context, track.View) error {
		return errors.New("boom")
	}, rec))
	fut := d.MutateAsync(context.Background(), func(_ context.Context, step *Step, view track.View) error {
		step.Checkpoint()
		step.Checkpoint()
		return nil
	}, rec)
	require.NoError(t, fut.Wait(waitCtx(t)))
}

func TestPrometheusMetricsRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec, err := NewPrometheusMetricsRecorder(reg, "test")
	require.NoError(t, err)
	runWorkload(t, New(WithMetricsRecorder(rec)))

	assert.Equal(t, 1.0, testutil.ToFloat64(rec.Operations.WithLabelValues("mutate", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.Operations.WithLabelValues("mutate", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.Operations.WithLabelValues("mutate_async", "success")))
	assert.Equal(t, 2.0, testutil.ToFloat64(rec.Operations.WithLabelValues("checkpoint", "success")))
	assert.Equal(t, 4, testutil.CollectAndCount(rec.Duration))

	again, err := NewPrometheusMetricsRecorder(reg, "test")
	require.NoError(t, err)
	assert.Same(t, rec.Operations, again.Operations)
	assert.Same(t, rec.Duration, again.Duration)
}

func TestExpvarMetricsRecorder(t *testing.T) {
	rec := NewExpvarMetricsRecorder("")
	require.True(t, strings.HasPrefix(rec.Name(), "changetrack_dispatch_metrics_"))
	runWorkload(t, New(WithMetricsRecorder(rec)))
	rec.Observe(context.Background(), "", true, time.Second)

	rec.Observe(context.Background(), "slow", true, 3*time.Millisecond)
	rec.Observe(context.Background(), "slow", false, time.Millisecond)

	snap := rec.Snapshot()
	assert.Equal(t, int64(1), snap.Operations["mutate"].Success)
	assert.Equal(t, int64(1), snap.Operations["mutate"].Error)
	assert.Equal(t, int64(2), snap.Operations["checkpoint"].Success)
	assert.Equal(t, int64(1), snap.Operations["mutate_async"].Success)
	assert.Equal(t, ExpvarOperationStats{Success: 1, Error: 1, TotalMS: 4, MaxMS: 3}, snap.Operations["slow"])
	assert.NotContains(t, snap.Operations, "")

	snap.Operations["slow"] = ExpvarOperationStats{}
	assert.Equal(t, int64(1), rec.Snapshot().Operations["slow"].Success, "snapshots are copies")

	require.NotNil(t, expvar.Get(rec.Name()))
	assert.Contains(t, expvar.Get(rec.Name()).String(), `"checkpoint":{"success":2`)
}

func TestJSONTracer(t *testing.T) {
	var buf bytes.Buffer
	tracer := NewJSONTracer(&buf)
	runWorkload(t, New(WithTracer(tracer)))

	entries := tracer.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, "mutate", entries[0].Operation)
	assert.Equal(t, "success", entries[0].Status)
	assert.Equal(t, "error", entries[1].Status)
	assert.Equal(t, "boom", entries[1].Error)
	assert.Equal(t, "mutate_async", entries[2].Operation)
	assert.Empty(t, entries[0].OperationID)
	assert.NotEmpty(t, entries[2].OperationID)
	assert.Equal(t, 3, strings.Count(buf.String(), "\n"))
}

func TestJSONTracerMarksCancelledOperations(t *testing.T) {
	tracer := NewJSONTracer(nil)
	d := New(WithTracer(tracer), WithScheduler(NewManualScheduler()))
	rec := state.NewRecord()

	var inner *Operation
	fut := d.MutateAsync(context.Background(), func(ctx context.Context, step *Step, view track.View) error {
		inner, _ = OperationFromContext(ctx)
		assert.NoError(t, d.Mutate(ctx, func(context.Context, track.View) error { return nil }, rec))
		step.Checkpoint()
		return nil
	}, rec)
	op := fut.Operation()
	require.NotNil(t, op)
	assert.Same(t, op, inner)
	op.Cancel()
	assert.ErrorIs(t, fut.Wait(waitCtx(t)), ErrCancelled)

	entries := tracer.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "mutate", entries[0].Operation)
	assert.Equal(t, op.ID().String(), entries[0].OperationID)
	assert.Equal(t, "success", entries[0].Status)
	assert.Equal(t, "mutate_async", entries[1].Operation)
	assert.Equal(t, op.ID().String(), entries[1].OperationID)
	assert.Equal(t, "cancelled", entries[1].Status)

	_, ok := OperationFromContext(context.Background())
	assert.False(t, ok)
}

func TestLoggerAndClockOptions(t *testing.T) {
	logger := &captureLogger{}
	var mu sync.Mutex
	calls := 0
	clock := ClockFunc(func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		calls++
		return time.Unix(int64(calls), 0)
	})
	d := New(
		WithLogger(logger),
		WithClock(clock),
		WithMiddleware(nil, func(context.Context, *Context, func()) {}),
		WithLogger(nil),
		WithMetricsRecorder(nil),
		WithTracer(nil),
		WithScheduler(nil),
		WithSession(nil),
	)
	rec := state.NewRecord()
	require.NoError(t, d.Mutate(context.Background(), func(context.Context, track.View) error { return nil }, rec))
	require.NoError(t, d.MutateAsync(context.Background(), func(context.Context, *Step, track.View) error { return nil }, rec).Wait(waitCtx(t)))
	d.CancelAllAsyncOperations()

	assert.True(t, logger.has("d:mutation short-circuited by middleware"))
	assert.True(t, logger.has("d:async operation started"))
	assert.True(t, logger.has("i:cancelling async operations"))
	mu.Lock()
	assert.Greater(t, calls, 0)
	mu.Unlock()
	assert.NotNil(t, d.Session())
}

func TestNoopDefaults(t *testing.T) {
	logger := noopLogger{}
	logger.Debug("debug", "k", "v")
	logger.Info("info")
	logger.Warn("warn")
	logger.Error("error")
	noopMetricsRecorder{}.Observe(context.Background(), "op", true, time.Millisecond)
	ctx, span := noopTracer{}.Start(context.Background(), "op")
	span.End(nil)
	assert.NotNil(t, ctx)
}
