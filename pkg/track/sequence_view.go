package track

import (
	"fmt"
	"iter"

	"changetrack/pkg/state"
)

// SequenceView tracks writes to a *state.Sequence. The first mutating call in
// a scope snapshots the whole sequence; there is no per-index diffing.
type SequenceView struct {
	core
	raw *state.Sequence
}

// Kind implements state.Container.
func (v *SequenceView) Kind() state.Kind { return state.KindSequence }

// Original implements View.
func (v *SequenceView) Original() state.Container { return v.raw }

// Raw returns the wrapped sequence.
func (v *SequenceView) Raw() *state.Sequence { return v.raw }

// Len returns the number of items.
func (v *SequenceView) Len() int { return v.raw.Len() }

// At returns the item at i, wrapped when it is a container.
func (v *SequenceView) At(i int) any { return v.wrap(v.raw.At(i)) }

// SetAt replaces the item at i. Arguments are validated before anything is
// recorded, so a panicking call leaves no patch behind.
func (v *SequenceView) SetAt(i int, value any) {
	v.check(i, v.raw.Len())
	value = storable(value)
	v.snapshot()
	v.raw.SetAt(i, value)
}

// Append adds values to the end.
func (v *SequenceView) Append(values ...any) {
	if len(values) == 0 {
		return
	}
	values = unwrapAll(values)
	v.snapshot()
	v.raw.Append(values...)
}

// Insert places values before index i.
func (v *SequenceView) Insert(i int, values ...any) {
	v.check(i, v.raw.Len()+1)
	if len(values) == 0 {
		return
	}
	values = unwrapAll(values)
	v.snapshot()
	v.raw.Insert(i, values...)
}

// RemoveAt deletes the item at i and returns it.
func (v *SequenceView) RemoveAt(i int) any {
	v.check(i, v.raw.Len())
	v.snapshot()
	return v.wrap(v.raw.RemoveAt(i))
}

// Truncate drops items from index n on.
func (v *SequenceView) Truncate(n int) {
	if n < 0 {
		panic(fmt.Sprintf("track: negative truncate length %d", n))
	}
	if n >= v.raw.Len() {
		return
	}
	v.snapshot()
	v.raw.Truncate(n)
}

// Values returns the items, wrapped.
func (v *SequenceView) Values() []any {
	items := v.raw.Values()
	for i, item := range items {
		items[i] = v.wrap(item)
	}
	return items
}

// All iterates over index/item pairs with wrapped items.
func (v *SequenceView) All() iter.Seq2[int, any] {
	return func(yield func(int, any) bool) {
		for i, item := range v.raw.All() {
			if !yield(i, v.wrap(item)) {
				return
			}
		}
	}
}

func (v *SequenceView) snapshot() {
	if p := v.open(v.raw); p != nil {
		p.RecordSequence(v.raw.Values())
	}
}

func (v *SequenceView) check(i, limit int) {
	if i < 0 || i >= limit {
		panic(fmt.Sprintf("track: index %d out of range [0:%d]", i, limit))
	}
}

func unwrapAll(values []any) []any {
	out := make([]any, len(values))
	for i, val := range values {
		out[i] = storable(val)
	}
	return out
}
