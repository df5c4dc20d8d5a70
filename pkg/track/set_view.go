package track

import (
	"iter"

	"changetrack/pkg/state"
)

// SetView tracks writes to a *state.Set. Members resolve like dictionary keys.
// Patches record the prior membership of each touched member as a bool.
type SetView struct {
	core
	raw *state.Set
}

// Kind implements state.Container.
func (v *SetView) Kind() state.Kind { return state.KindSet }

// Original implements View.
func (v *SetView) Original() state.Container { return v.raw }

// Raw returns the wrapped set.
func (v *SetView) Raw() *state.Set { return v.raw }

// Has reports membership.
func (v *SetView) Has(member any) bool {
	_, found := ResolveKey(v.sess.reg, v.raw, member)
	return found
}

// Add inserts member. Adding a present member records nothing. NoEntry as a
// member panics.
func (v *SetView) Add(member any) {
	mustStore(member)
	stored, found := ResolveKey(v.sess.reg, v.raw, member)
	if found {
		return
	}
	if p := v.open(v.raw); p != nil {
		if e, seen := p.Entry(member); seen {
			stored = e.Key
		} else {
			p.RecordPrior(member, stored, false)
		}
	}
	v.raw.Add(stored)
}

// Delete removes member. Deleting a missing member records nothing.
func (v *SetView) Delete(member any) bool {
	stored, found := ResolveKey(v.sess.reg, v.raw, member)
	if !found {
		return false
	}
	if p := v.open(v.raw); p != nil {
		p.RecordPrior(member, stored, true)
	}
	return v.raw.Delete(stored)
}

// Clear records every member not yet recorded, then empties the set.
func (v *SetView) Clear() {
	if v.raw.Len() == 0 {
		return
	}
	if p := v.open(v.raw); p != nil {
		for m := range v.raw.All() {
			p.RecordPrior(m, m, true)
		}
	}
	v.raw.Clear()
}

// Len returns the number of members.
func (v *SetView) Len() int { return v.raw.Len() }

// Values returns the members, wrapped.
func (v *SetView) Values() []any {
	members := v.raw.Values()
	for i, m := range members {
		members[i] = v.wrap(m)
	}
	return members
}

// All iterates over wrapped members.
func (v *SetView) All() iter.Seq[any] {
	return func(yield func(any) bool) {
		for m := range v.raw.All() {
			if !yield(v.wrap(m)) {
				return
			}
		}
	}
}

// ForEach calls fn for every wrapped member.
func (v *SetView) ForEach(fn func(member any)) {
	for m := range v.All() {
		fn(m)
	}
}
