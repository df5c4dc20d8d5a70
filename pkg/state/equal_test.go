package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEqual(t *testing.T) {
	key := NewRecord()
	build := func() *Record {
		inner := NewDict()
		inner.Set(key, NewSequence(1, 2))
		inner.Set("tags", NewSet("x", "y"))
		return RecordOf(map[string]any{"name": "a", "inner": inner})
	}

	tests := []struct {
		name string
		a, b any
		want bool
	}{
		{"scalars", 1, 1, true},
		{"scalar mismatch", 1, "1", false},
		{"same structure", build(), build(), true},
		{"container vs scalar", NewRecord(), 3, false},
		{"kind mismatch", NewDict(), NewSet(), false},
		{"sequence length", NewSequence(1), NewSequence(1, 2), false},
		{"incomparable scalars", []int{1}, []int{1}, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Equal(tc.a, tc.b))
		})
	}
}

func TestEqualDetectsNestedDifference(t *testing.T) {
	a := RecordOf(map[string]any{"s": NewSequence(1, 2)})
	b := RecordOf(map[string]any{"s": NewSequence(1, 3)})
	assert.False(t, Equal(a, b))
}

func TestEqualHandlesCycles(t *testing.T) {
	a, b := NewRecord(), NewRecord()
	a.Set("self", a)
	b.Set("self", b)
	assert.True(t, Equal(a, b))
}
