package track

import (
	"changetrack/pkg/state"
)

// Scope is one recording scope. It holds at most one open patch per
// container and the modified set (patches in first-touch order) until
// Commit. A scope records only while it is on its session's active stack.
type Scope struct {
	sess    *Session
	patches map[state.Container]*Patch
	touched []*Patch
}

// Session returns the owning session.
func (sc *Scope) Session() *Session { return sc.sess }

// Commit detaches every open patch and returns them as a batch in first-touch
// order. A scope with no modifications commits an empty, non-nil batch. The
// scope stays usable and keeps its position on the stack.
func (sc *Scope) Commit() Batch {
	batch := make(Batch, len(sc.touched))
	copy(batch, sc.touched)
	sc.touched = nil
	sc.patches = nil
	return batch
}

// Modified returns the containers touched since the last commit.
func (sc *Scope) Modified() []state.Container {
	out := make([]state.Container, len(sc.touched))
	for i, p := range sc.touched {
		out[i] = p.target
	}
	return out
}

// Pending returns the number of open patches.
func (sc *Scope) Pending() int { return len(sc.touched) }

// Active reports whether the scope is on its session's stack.
func (sc *Scope) Active() bool {
	return sc.sess.contains(sc)
}

// Suspend takes the scope off the active stack without committing, so writes
// stop recording into it. Open patches are kept.
func (sc *Scope) Suspend() {
	sc.sess.remove(sc)
}

// Resume puts a suspended scope back on top of the active stack.
func (sc *Scope) Resume() {
	sc.sess.push(sc)
}

// End takes the scope off the active stack for good. Patches not yet
// committed are still returned by a later Commit.
func (sc *Scope) End() {
	sc.sess.remove(sc)
}

// patchFor returns the open patch for raw, opening it on first touch.
func (sc *Scope) patchFor(raw state.Container) *Patch {
	if p, ok := sc.patches[raw]; ok {
		return p
	}
	if sc.patches == nil {
		sc.patches = make(map[state.Container]*Patch)
	}
	p := &Patch{kind: raw.Kind(), target: raw, reg: sc.sess.reg}
	sc.patches[raw] = p
	sc.touched = append(sc.touched, p)
	return p
}
