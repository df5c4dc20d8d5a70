package clone

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"changetrack/pkg/state"
	"changetrack/pkg/track"
)

func TestDeepCopiesStructure(t *testing.T) {
	shared := state.NewSequence(1, 2)
	root := state.NewRecord()
	root.Set("a", shared)
	root.Set("b", shared)
	root.Set("name", "x")
	dict := state.NewDict()
	dict.Set(shared, "keyed")
	root.Set("dict", dict)
	root.Set("set", state.NewSet(shared, "m"))

	out, err := Deep(nil, root)
	require.NoError(t, err)
	dup := out.(*state.Record)
	assert.NotSame(t, root, dup)
	assert.Equal(t, root.Keys(), dup.Keys())

	a, _ := dup.Get("a")
	b, _ := dup.Get("b")
	require.IsType(t, &state.Sequence{}, a)
	assert.Same(t, a, b, "aliasing must be preserved")
	assert.NotSame(t, shared, a)
	assert.Equal(t, []any{1, 2}, a.(*state.Sequence).Values())

	d, _ := dup.Get("dict")
	got, ok := d.(*state.Dict).Get(a)
	assert.True(t, ok, "container keys are remapped to their copies")
	assert.Equal(t, "keyed", got)
	s, _ := dup.Get("set")
	assert.True(t, s.(*state.Set).Has(a))
	assert.True(t, s.(*state.Set).Has("m"))
}

func TestDeepPreservesCycles(t *testing.T) {
	rec := state.NewRecord()
	rec.Set("self", rec)
	seq := state.NewSequence()
	seq.Append(seq, rec)
	rec.Set("seq", seq)

	out, err := Deep(nil, rec)
	require.NoError(t, err)
	dup := out.(*state.Record)
	self, _ := dup.Get("self")
	assert.Same(t, dup, self)
	dseq, _ := dup.Get("seq")
	assert.Same(t, dseq, dseq.(*state.Sequence).At(0))
	assert.Same(t, dup, dseq.(*state.Sequence).At(1))
	assert.True(t, state.Equal(rec, dup))
}

func TestDeepUnwrapsViewsAndCarriesIDs(t *testing.T) {
	reg := track.NewRegistry()
	sess := track.NewSession(reg)
	child := state.NewRecord()
	root := state.NewRecord()
	root.Set("child", child)
	view := sess.Record(root)

	out, err := Deep(reg, view)
	require.NoError(t, err)
	dup := out.(*state.Record)
	assert.False(t, reg.IsTrackingView(dup))

	srcID, ok := reg.LookupID(root)
	require.True(t, ok)
	dupID, ok := reg.LookupID(dup)
	require.True(t, ok)
	assert.Equal(t, srcID, dupID)

	c, _ := dup.Get("child")
	childID, _ := reg.LookupID(child)
	copyID, _ := reg.LookupID(c)
	assert.Equal(t, childID, copyID)
}

func TestDeepRejectsNativeAggregates(t *testing.T) {
	for _, bad := range []any{[]int{1}, map[string]int{}, [2]int{}} {
		rec := state.NewRecord()
		rec.Set("bad", bad)
		_, err := Deep(nil, rec)
		var uerr *UnsupportedContainerKindError
		require.ErrorAs(t, err, &uerr)
		assert.Contains(t, uerr.Error(), "unsupported container kind")
	}
	v, err := Deep(nil, 42)
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestStripReplacesViews(t *testing.T) {
	sess := track.NewSession(nil)
	key := state.NewRecord()
	val := state.NewSequence()
	member := state.NewSet()

	root := state.NewRecord()
	dict := state.NewDict()
	dict.Set("first", 1)
	dict.Set(sess.Record(key), sess.Sequence(val))
	dict.Set("last", 3)
	set := state.NewSet(sess.Set(member), "plain")
	seq := state.NewSequence(sess.Record(key))
	root.Set("dict", dict)
	root.Set("set", set)
	root.Set("seq", seq)
	root.Set("self", sess.Record(root))

	out, err := Strip(sess.Record(root))
	require.NoError(t, err)
	assert.Same(t, root, out)

	self, _ := root.Get("self")
	assert.Same(t, root, self)
	assert.Same(t, key, seq.At(0))
	got, ok := dict.Get(key)
	require.True(t, ok)
	assert.Same(t, val, got)
	keys := dict.Keys()
	require.Len(t, keys, 3)
	assert.Equal(t, "first", keys[0])
	assert.Same(t, key, keys[1])
	assert.Equal(t, "last", keys[2])
	assert.True(t, set.Has(member))
	assert.Equal(t, 2, set.Len())
	assert.Equal(t, []any{member, "plain"}, set.Values())
}

func TestStripKeepsFirstOfDuplicateKeys(t *testing.T) {
	sess := track.NewSession(nil)
	key := state.NewRecord()
	dict := state.NewDict()
	dict.Set(sess.Record(key), "view")
	dict.Set(key, "raw")

	_, err := Strip(dict)
	require.NoError(t, err)
	assert.Equal(t, 1, dict.Len())
	got, _ := dict.Get(key)
	assert.Equal(t, "view", got)
}

func TestStripRejectsNativeAggregates(t *testing.T) {
	rec := state.NewRecord()
	rec.Set("bad", []string{"x"})
	_, err := Strip(rec)
	var uerr *UnsupportedContainerKindError
	assert.ErrorAs(t, err, &uerr)
}
