package state

import (
	"iter"
	"maps"
	"slices"
)

// Record is a mutable set of named fields. Field order follows insertion.
// The zero value is an empty record.
type Record struct {
	fields ordered[string, any]
}

// NewRecord returns an empty record.
func NewRecord() *Record {
	return &Record{}
}

// RecordOf builds a record from fields, inserting names in sorted order so the
// result is deterministic.
func RecordOf(fields map[string]any) *Record {
	r := NewRecord()
	for _, name := range slices.Sorted(maps.Keys(fields)) {
		r.fields.set(name, fields[name])
	}
	return r
}

// Kind implements Container.
func (r *Record) Kind() Kind { return KindRecord }

// Get returns the field value and whether the field exists.
func (r *Record) Get(name string) (any, bool) {
	return r.fields.get(name)
}

// Set assigns a field, creating it when absent.
func (r *Record) Set(name string, value any) {
	r.fields.set(name, value)
}

// Delete removes a field and reports whether it existed.
func (r *Record) Delete(name string) bool {
	_, ok := r.fields.remove(name)
	return ok
}

// Has reports whether the field exists.
func (r *Record) Has(name string) bool {
	return r.fields.has(name)
}

// Keys returns the field names in insertion order.
func (r *Record) Keys() []string {
	return r.fields.keyList()
}

// Len returns the number of fields.
func (r *Record) Len() int {
	return r.fields.len()
}

// All iterates over name/value pairs.
func (r *Record) All() iter.Seq2[string, any] {
	return r.fields.all()
}
