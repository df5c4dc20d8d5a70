package track

import (
	"iter"

	"changetrack/pkg/state"
)

// RecordView tracks writes to a *state.Record.
type RecordView struct {
	core
	raw *state.Record
}

// Kind implements state.Container.
func (v *RecordView) Kind() state.Kind { return state.KindRecord }

// Original implements View.
func (v *RecordView) Original() state.Container { return v.raw }

// Raw returns the wrapped record.
func (v *RecordView) Raw() *state.Record { return v.raw }

// Get returns the field value; container values come back as views.
func (v *RecordView) Get(name string) (any, bool) {
	val, ok := v.raw.Get(name)
	return v.wrap(val), ok
}

// Set records the field's pre-image on first write, then assigns it. Setting
// NoEntry deletes the field.
func (v *RecordView) Set(name string, value any) {
	if value == NoEntry {
		v.Delete(name)
		return
	}
	v.snapshot(name)
	v.raw.Set(name, OriginalOf(value))
}

// Delete removes a field. Deleting a missing field records nothing.
func (v *RecordView) Delete(name string) bool {
	if !v.raw.Has(name) {
		return false
	}
	v.snapshot(name)
	return v.raw.Delete(name)
}

// Has reports whether the field exists.
func (v *RecordView) Has(name string) bool { return v.raw.Has(name) }

// Keys returns the field names.
func (v *RecordView) Keys() []string { return v.raw.Keys() }

// Len returns the number of fields.
func (v *RecordView) Len() int { return v.raw.Len() }

// All iterates over fields with wrapped values.
func (v *RecordView) All() iter.Seq2[string, any] {
	return func(yield func(string, any) bool) {
		for name, val := range v.raw.All() {
			if !yield(name, v.wrap(val)) {
				return
			}
		}
	}
}

func (v *RecordView) snapshot(name string) {
	p := v.open(v.raw)
	if p == nil {
		return
	}
	prior, ok := v.raw.Get(name)
	if !ok {
		prior = NoEntry
	}
	p.RecordPrior(name, name, prior)
}
