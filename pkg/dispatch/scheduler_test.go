package dispatch

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImmediateScheduler(t *testing.T) {
	ran := false
	ImmediateScheduler{}.Schedule(func() { ran = true })
	assert.True(t, ran)
}

func TestManualScheduler(t *testing.T) {
	s := NewManualScheduler()
	count := 0
	s.Schedule(func() { count++ })
	s.Schedule(func() {
		count++
		s.Schedule(func() { count += 10 })
	})
	require.Equal(t, 2, s.Pending())
	assert.Equal(t, 2, s.RunPending())
	assert.Equal(t, 2, count)
	assert.Equal(t, 1, s.Pending())
	assert.Equal(t, 1, s.RunPending())
	assert.Equal(t, 12, count)
	assert.Equal(t, 0, s.RunPending())
}

func TestManualSchedulerWaitPending(t *testing.T) {
	s := NewManualScheduler()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, s.WaitPending(ctx, 1), context.DeadlineExceeded)

	go s.Schedule(func() {})
	require.NoError(t, s.WaitPending(waitCtx(t), 1))
	assert.Equal(t, 1, s.Pending())
}
