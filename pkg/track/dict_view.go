package track

import (
	"iter"

	"changetrack/pkg/state"
)

// DictView tracks writes to a *state.Dict.
//
// A container key can reach the dictionary two ways: as its view or as the
// raw container. Lookups try the view first and the raw container second, so
// both spellings resolve to the same entry. New keys are stored as the raw
// container.
type DictView struct {
	core
	raw *state.Dict
}

// Kind implements state.Container.
func (v *DictView) Kind() state.Kind { return state.KindDict }

// Original implements View.
func (v *DictView) Original() state.Container { return v.raw }

// Raw returns the wrapped dictionary.
func (v *DictView) Raw() *state.Dict { return v.raw }

// Get returns the value stored under key.
func (v *DictView) Get(key any) (any, bool) {
	stored, found := ResolveKey(v.sess.reg, v.raw, key)
	if !found {
		return nil, false
	}
	val, _ := v.raw.Get(stored)
	return v.wrap(val), true
}

// Has reports whether key resolves to an entry.
func (v *DictView) Has(key any) bool {
	_, found := ResolveKey(v.sess.reg, v.raw, key)
	return found
}

// Set records the pre-image of key on first write, then stores value. When the
// key was already touched in this scope under a different spelling, the
// spelling recorded first is reused so no duplicate entry appears. Setting
// NoEntry deletes the key; NoEntry as a key panics.
func (v *DictView) Set(key, value any) {
	mustStore(key)
	if value == NoEntry {
		v.Delete(key)
		return
	}
	stored, found := ResolveKey(v.sess.reg, v.raw, key)
	if p := v.open(v.raw); p != nil {
		if e, seen := p.Entry(key); seen {
			if !found {
				stored = e.Key
			}
		} else {
			var prior any = NoEntry
			if found {
				prior, _ = v.raw.Get(stored)
			}
			p.RecordPrior(key, stored, prior)
		}
	}
	v.raw.Set(stored, OriginalOf(value))
}

// Delete removes key. Deleting a missing key records nothing and returns false.
func (v *DictView) Delete(key any) bool {
	stored, found := ResolveKey(v.sess.reg, v.raw, key)
	if !found {
		return false
	}
	if p := v.open(v.raw); p != nil {
		prior, _ := v.raw.Get(stored)
		p.RecordPrior(key, stored, prior)
	}
	return v.raw.Delete(stored)
}

// Clear records every entry not yet recorded in this scope, then empties the
// dictionary.
func (v *DictView) Clear() {
	if v.raw.Len() == 0 {
		return
	}
	if p := v.open(v.raw); p != nil {
		for k, val := range v.raw.All() {
			p.RecordPrior(k, k, val)
		}
	}
	v.raw.Clear()
}

// Len returns the number of entries.
func (v *DictView) Len() int { return v.raw.Len() }

// Keys returns the keys, wrapped.
func (v *DictView) Keys() []any {
	keys := v.raw.Keys()
	for i, k := range keys {
		keys[i] = v.wrap(k)
	}
	return keys
}

// Values returns the values, wrapped.
func (v *DictView) Values() []any {
	vals := v.raw.Values()
	for i, val := range vals {
		vals[i] = v.wrap(val)
	}
	return vals
}

// All iterates over entries with wrapped keys and values.
func (v *DictView) All() iter.Seq2[any, any] {
	return func(yield func(any, any) bool) {
		for k, val := range v.raw.All() {
			if !yield(v.wrap(k), v.wrap(val)) {
				return
			}
		}
	}
}

// ForEach calls fn for every entry with wrapped key and value.
func (v *DictView) ForEach(fn func(key, value any)) {
	for k, val := range v.All() {
		fn(k, val)
	}
}

// KeyedContainer is the lookup surface ResolveKey needs; *state.Dict and
// *state.Set both provide it.
type KeyedContainer interface {
	Has(key any) bool
}

// ResolveKey returns the key under which c actually stores key: the view of
// key when c holds it, else the raw key. found is false when neither is held;
// stored is then the raw key.
func ResolveKey(reg *Registry, c KeyedContainer, key any) (stored any, found bool) {
	orig := OriginalOf(key)
	if view, ok := reg.TrackingViewOf(orig); ok && c.Has(view) {
		return view, true
	}
	if c.Has(orig) {
		return orig, true
	}
	return orig, false
}
