package state

import (
	"runtime"
	"weak"
)

// Handle is a comparable, non-owning reference to a raw container. Two handles
// are equal exactly when they were taken from the same container, even after
// that container has been collected.
type Handle struct {
	rec  weak.Pointer[Record]
	seq  weak.Pointer[Sequence]
	dict weak.Pointer[Dict]
	set  weak.Pointer[Set]
}

// HandleOf returns the handle of a raw container. ok is false for any other value.
func HandleOf(c any) (h Handle, ok bool) {
	switch v := c.(type) {
	case *Record:
		if v == nil {
			return Handle{}, false
		}
		h.rec = weak.Make(v)
	case *Sequence:
		if v == nil {
			return Handle{}, false
		}
		h.seq = weak.Make(v)
	case *Dict:
		if v == nil {
			return Handle{}, false
		}
		h.dict = weak.Make(v)
	case *Set:
		if v == nil {
			return Handle{}, false
		}
		h.set = weak.Make(v)
	default:
		return Handle{}, false
	}
	return h, true
}

// Value returns the container, or nil once it has been collected.
func (h Handle) Value() Container {
	if p := h.rec.Value(); p != nil {
		return p
	}
	if p := h.seq.Value(); p != nil {
		return p
	}
	if p := h.dict.Value(); p != nil {
		return p
	}
	if p := h.set.Value(); p != nil {
		return p
	}
	return nil
}

// OnCollect arranges for fn to run on a runtime goroutine after c becomes
// unreachable. fn must not reference c, or c is never collected.
func OnCollect(c Container, fn func()) bool {
	run := func(f func()) { f() }
	switch v := c.(type) {
	case *Record:
		runtime.AddCleanup(v, run, fn)
	case *Sequence:
		runtime.AddCleanup(v, run, fn)
	case *Dict:
		runtime.AddCleanup(v, run, fn)
	case *Set:
		runtime.AddCleanup(v, run, fn)
	default:
		return false
	}
	return true
}
