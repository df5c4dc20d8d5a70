package state

import "iter"

// ordered is an insertion-ordered map. The zero value is ready to use.
type ordered[K comparable, V any] struct {
	index map[K]int
	keys  []K
	vals  []V
}

func (o *ordered[K, V]) get(k K) (V, bool) {
	i, ok := o.index[k]
	if !ok {
		var zero V
		return zero, false
	}
	return o.vals[i], true
}

func (o *ordered[K, V]) has(k K) bool {
	_, ok := o.index[k]
	return ok
}

func (o *ordered[K, V]) set(k K, v V) {
	if i, ok := o.index[k]; ok {
		o.vals[i] = v
		return
	}
	if o.index == nil {
		o.index = make(map[K]int)
	}
	o.index[k] = len(o.keys)
	o.keys = append(o.keys, k)
	o.vals = append(o.vals, v)
}

func (o *ordered[K, V]) remove(k K) (V, bool) {
	i, ok := o.index[k]
	if !ok {
		var zero V
		return zero, false
	}
	v := o.vals[i]
	delete(o.index, k)
	o.keys = append(o.keys[:i], o.keys[i+1:]...)
	o.vals = append(o.vals[:i], o.vals[i+1:]...)
	for j := i; j < len(o.keys); j++ {
		o.index[o.keys[j]] = j
	}
	return v, true
}

func (o *ordered[K, V]) clear() {
	o.index = nil
	o.keys = nil
	o.vals = nil
}

func (o *ordered[K, V]) len() int {
	return len(o.keys)
}

func (o *ordered[K, V]) keyList() []K {
	out := make([]K, len(o.keys))
	copy(out, o.keys)
	return out
}

func (o *ordered[K, V]) valueList() []V {
	out := make([]V, len(o.vals))
	copy(out, o.vals)
	return out
}

// all iterates over a copy so callers may mutate the map while ranging.
func (o *ordered[K, V]) all() iter.Seq2[K, V] {
	keys := o.keyList()
	vals := o.valueList()
	return func(yield func(K, V) bool) {
		for i := range keys {
			if !yield(keys[i], vals[i]) {
				return
			}
		}
	}
}
