package state

import (
	"fmt"
	"iter"
)

// Sequence is a mutable ordered list of values. Index arguments outside the
// valid range panic, as they do for slices.
type Sequence struct {
	items []any
}

// NewSequence returns a sequence holding a copy of items.
func NewSequence(items ...any) *Sequence {
	s := &Sequence{}
	if len(items) > 0 {
		s.items = append(make([]any, 0, len(items)), items...)
	}
	return s
}

// Kind implements Container.
func (s *Sequence) Kind() Kind { return KindSequence }

// Len returns the number of items.
func (s *Sequence) Len() int {
	return len(s.items)
}

// At returns the item at index i.
func (s *Sequence) At(i int) any {
	s.check(i, len(s.items))
	return s.items[i]
}

// SetAt replaces the item at index i.
func (s *Sequence) SetAt(i int, value any) {
	s.check(i, len(s.items))
	s.items[i] = value
}

// Append adds values to the end.
func (s *Sequence) Append(values ...any) {
	s.items = append(s.items, values...)
}

// Insert places values before index i. i may equal Len.
func (s *Sequence) Insert(i int, values ...any) {
	s.check(i, len(s.items)+1)
	tail := append([]any(nil), s.items[i:]...)
	s.items = append(append(s.items[:i], values...), tail...)
}

// RemoveAt deletes and returns the item at index i.
func (s *Sequence) RemoveAt(i int) any {
	s.check(i, len(s.items))
	v := s.items[i]
	last := len(s.items) - 1
	copy(s.items[i:], s.items[i+1:])
	s.items[last] = nil
	s.items = s.items[:last]
	return v
}

// Truncate drops every item at index n and beyond. It is a no-op when the
// sequence is already shorter than n.
func (s *Sequence) Truncate(n int) {
	if n < 0 {
		panic(fmt.Sprintf("state: negative truncate length %d", n))
	}
	if n < len(s.items) {
		clear(s.items[n:])
		s.items = s.items[:n]
	}
}

// Resize truncates or extends the sequence to exactly n items; new slots hold nil.
func (s *Sequence) Resize(n int) {
	if n <= len(s.items) {
		s.Truncate(n)
		return
	}
	s.items = append(s.items, make([]any, n-len(s.items))...)
}

// Values returns a copy of the items.
func (s *Sequence) Values() []any {
	return append([]any(nil), s.items...)
}

// All iterates over index/value pairs of a snapshot of the sequence.
func (s *Sequence) All() iter.Seq2[int, any] {
	items := s.Values()
	return func(yield func(int, any) bool) {
		for i, v := range items {
			if !yield(i, v) {
				return
			}
		}
	}
}

func (s *Sequence) check(i, limit int) {
	if i < 0 || i >= limit {
		panic(fmt.Sprintf("state: index %d out of range [0:%d]", i, limit))
	}
}
