package history

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"changetrack/pkg/state"
	"changetrack/pkg/track"
)

func commit(t *testing.T, sess *track.Session, fn func()) track.Batch {
	t.Helper()
	sc := sess.Begin()
	fn()
	sc.End()
	return sc.Commit()
}

func TestObjectTimeline(t *testing.T) {
	sess := track.NewSession(nil)
	a, b := state.NewRecord(), state.NewRecord()
	av, bv := sess.Record(a), sess.Record(b)

	batches := []track.Batch{
		commit(t, sess, func() { av.Set("x", 1) }),
		commit(t, sess, func() { bv.Set("x", 1) }),
		commit(t, sess, func() { av.Set("x", 2); bv.Set("y", 2) }),
	}

	timeline := ObjectTimeline(batches, av)
	require.Len(t, timeline, 2)
	assert.Equal(t, 0, timeline[0].BatchIndex)
	assert.Equal(t, 2, timeline[1].BatchIndex)
	assert.Same(t, batches[2].For(a), timeline[1].Patch)

	assert.Len(t, FindAllPatchesInHistory(batches, b), 2)
	assert.Nil(t, FindPatchForObject(batches[1], a))
	assert.NotNil(t, FindPatchForObject(batches[1], bv))
	assert.Empty(t, ObjectTimeline(batches, state.NewRecord()))
}

func TestTimelineByID(t *testing.T) {
	reg := track.NewRegistry()
	sess := track.NewSession(reg)
	src, cp := state.NewRecord(), state.NewRecord()
	id, _ := reg.StableID(src)
	require.True(t, reg.AssignID(cp, id))

	batches := []track.Batch{
		commit(t, sess, func() { sess.Record(src).Set("v", 1) }),
		commit(t, sess, func() { sess.Record(cp).Set("v", 2) }),
	}
	assert.Len(t, TimelineByID(reg, batches, id), 2)
	assert.Empty(t, TimelineByID(reg, batches, 0))
	assert.Empty(t, TimelineByID(nil, batches, id))
}

func TestLogUndoRedo(t *testing.T) {
	sess := track.NewSession(nil)
	rec := state.RecordOf(map[string]any{"v": 0})
	rv := sess.Record(rec)
	log := NewLog()

	assert.False(t, log.Append(track.Batch{}))
	for i := 1; i <= 2; i++ {
		log.Append(commit(t, sess, func() { rv.Set("v", i) }))
	}
	require.Equal(t, 2, log.Len())
	require.True(t, log.CanUndo())
	assert.False(t, log.CanRedo())

	require.NoError(t, log.Undo())
	assert.Equal(t, 1, mustGet(rec, "v"))
	require.NoError(t, log.Undo())
	assert.Equal(t, 0, mustGet(rec, "v"))
	assert.ErrorIs(t, log.Undo(), ErrNothingToUndo)

	require.NoError(t, log.Redo())
	assert.Equal(t, 1, mustGet(rec, "v"))
	require.NoError(t, log.Redo())
	assert.Equal(t, 2, mustGet(rec, "v"))
	assert.ErrorIs(t, log.Redo(), ErrNothingToRedo)

	require.NoError(t, log.Undo())
	log.Append(commit(t, sess, func() { rv.Set("v", 9) }))
	assert.False(t, log.CanRedo(), "a new batch clears the redo stack")
	assert.Len(t, log.Timeline(rec), 3)
}
