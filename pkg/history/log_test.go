package history

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"changetrack/pkg/dispatch"
	"changetrack/pkg/state"
	"changetrack/pkg/track"
)

func TestLogMiddlewareRecordsDispatchedBatches(t *testing.T) {
	log := NewLog()
	d := dispatch.New(dispatch.WithMiddleware(log.Middleware()))
	rec := state.RecordOf(map[string]any{"v": 0})

	require.NoError(t, d.Mutate(context.Background(), func(_ context.Context, view track.View) error {
		view.(*track.RecordView).Set("v", 1)
		return nil
	}, rec))
	fut := d.MutateAsync(context.Background(), func(_ context.Context, step *dispatch.Step, view track.View) error {
		view.(*track.RecordView).Set("v", 2)
		step.Checkpoint()
		step.Checkpoint()
		view.(*track.RecordView).Set("w", true)
		return nil
	}, rec)
	require.NoError(t, fut.Wait(context.Background()))

	// The empty pass between the two checkpoints is not recorded.
	require.Equal(t, 3, log.Len())
	assert.Len(t, log.Timeline(rec), 3)

	require.NoError(t, log.Undo())
	assert.False(t, rec.Has("w"))
	require.NoError(t, log.Undo())
	require.NoError(t, log.Undo())
	v, _ := rec.Get("v")
	assert.Equal(t, 0, v)
}
