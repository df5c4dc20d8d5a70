package state

import "iter"

// Set is an insertion-ordered set of comparable members.
type Set struct {
	members ordered[any, struct{}]
}

// NewSet returns a set holding members.
func NewSet(members ...any) *Set {
	s := &Set{}
	for _, m := range members {
		s.members.set(m, struct{}{})
	}
	return s
}

// Kind implements Container.
func (s *Set) Kind() Kind { return KindSet }

// Has reports membership.
func (s *Set) Has(member any) bool {
	return s.members.has(member)
}

// Add inserts member; adding an existing member keeps its position.
func (s *Set) Add(member any) {
	s.members.set(member, struct{}{})
}

// Delete removes member and reports whether it was present.
func (s *Set) Delete(member any) bool {
	_, ok := s.members.remove(member)
	return ok
}

// Clear removes every member.
func (s *Set) Clear() {
	s.members.clear()
}

// Len returns the number of members.
func (s *Set) Len() int {
	return s.members.len()
}

// Values returns the members in insertion order.
func (s *Set) Values() []any {
	return s.members.keyList()
}

// All iterates over the members.
func (s *Set) All() iter.Seq[any] {
	members := s.members.keyList()
	return func(yield func(any) bool) {
		for _, m := range members {
			if !yield(m) {
				return
			}
		}
	}
}

// ForEach calls fn for every member in insertion order.
func (s *Set) ForEach(fn func(member any)) {
	for _, m := range s.members.keyList() {
		fn(m)
	}
}
