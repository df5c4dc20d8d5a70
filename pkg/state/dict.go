package state

import "iter"

// Dict is an insertion-ordered dictionary. Keys must be comparable; container
// keys (including tracking views) are matched by identity.
type Dict struct {
	entries ordered[any, any]
}

// NewDict returns an empty dictionary.
func NewDict() *Dict {
	return &Dict{}
}

// Kind implements Container.
func (d *Dict) Kind() Kind { return KindDict }

// Get returns the value stored under key.
func (d *Dict) Get(key any) (any, bool) {
	return d.entries.get(key)
}

// Set stores value under key.
func (d *Dict) Set(key, value any) {
	d.entries.set(key, value)
}

// Delete removes key and reports whether it was present.
func (d *Dict) Delete(key any) bool {
	_, ok := d.entries.remove(key)
	return ok
}

// Has reports whether key is present.
func (d *Dict) Has(key any) bool {
	return d.entries.has(key)
}

// Clear removes every entry.
func (d *Dict) Clear() {
	d.entries.clear()
}

// Len returns the number of entries.
func (d *Dict) Len() int {
	return d.entries.len()
}

// Keys returns the keys in insertion order.
func (d *Dict) Keys() []any {
	return d.entries.keyList()
}

// Values returns the values in insertion order.
func (d *Dict) Values() []any {
	return d.entries.valueList()
}

// All iterates over key/value pairs.
func (d *Dict) All() iter.Seq2[any, any] {
	return d.entries.all()
}

// ForEach calls fn for every entry in insertion order.
func (d *Dict) ForEach(fn func(key, value any)) {
	for k, v := range d.entries.all() {
		fn(k, v)
	}
}
