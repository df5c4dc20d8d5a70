package state

import "iter"

// RecordAccess is the read/write surface of a record. Both *Record and the
// record tracking view implement it.
type RecordAccess interface {
	Container
	Get(name string) (any, bool)
	Set(name string, value any)
	Delete(name string) bool
	Has(name string) bool
	Keys() []string
	Len() int
	All() iter.Seq2[string, any]
}

// SequenceAccess is the read/write surface of a sequence.
type SequenceAccess interface {
	Container
	Len() int
	At(i int) any
	SetAt(i int, value any)
	Append(values ...any)
	Insert(i int, values ...any)
	RemoveAt(i int) any
	Truncate(n int)
	Values() []any
	All() iter.Seq2[int, any]
}

// DictAccess is the read/write surface of a dictionary.
type DictAccess interface {
	Container
	Get(key any) (any, bool)
	Set(key, value any)
	Delete(key any) bool
	Has(key any) bool
	Clear()
	Len() int
	Keys() []any
	Values() []any
	All() iter.Seq2[any, any]
	ForEach(fn func(key, value any))
}

// SetAccess is the read/write surface of a set.
type SetAccess interface {
	Container
	Has(member any) bool
	Add(member any)
	Delete(member any) bool
	Clear()
	Len() int
	Values() []any
	All() iter.Seq[any]
	ForEach(fn func(member any))
}

var (
	_ RecordAccess   = (*Record)(nil)
	_ SequenceAccess = (*Sequence)(nil)
	_ DictAccess     = (*Dict)(nil)
	_ SetAccess      = (*Set)(nil)
)
