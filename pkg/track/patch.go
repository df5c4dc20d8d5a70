package track

import (
	"changetrack/pkg/state"
)

type noEntry struct{}

func (noEntry) String() string { return "<no entry>" }

// NoEntry is the prior value recorded for a key that did not exist before its
// first write in a scope. Undo resolves it to a delete; it is never written
// into a live container.
var NoEntry any = noEntry{}

// PatchEntry is one recorded pre-image.
type PatchEntry struct {
	// Key is the key as stored in the container when it was first touched.
	Key any
	// Prior is the value before the first write: NoEntry when the key was
	// absent, the prior membership boolean for sets.
	Prior any
}

// Patch holds the pre-images of one container for one recording scope.
// Dictionary, set and record patches hold ordered entries keyed by logical
// key (the original identity of the key). Sequence patches hold the prior
// length and a full snapshot of the prior contents instead.
type Patch struct {
	kind   state.Kind
	target state.Container
	reg    *Registry

	index   map[any]int
	logical []any
	entries []PatchEntry

	snapshotted bool
	prior       []any
}

// NewPatch returns an empty patch for target. target may be a view; the patch
// always refers to the underlying container.
func NewPatch(reg *Registry, target state.Container) *Patch {
	raw, _ := OriginalOf(target).(state.Container)
	return &Patch{kind: raw.Kind(), target: raw, reg: reg}
}

// Kind returns the container kind of the target.
func (p *Patch) Kind() state.Kind { return p.kind }

// Target returns the raw container the patch was recorded against.
func (p *Patch) Target() state.Container { return p.target }

// Registry returns the identity registry used to resolve container keys.
func (p *Patch) Registry() *Registry { return p.reg }

// Len returns the number of recorded keys. Sequence patches report the length
// of the prior snapshot.
func (p *Patch) Len() int {
	if p.kind == state.KindSequence {
		return len(p.prior)
	}
	return len(p.entries)
}

// Empty reports whether nothing has been recorded.
func (p *Patch) Empty() bool {
	if p.kind == state.KindSequence {
		return !p.snapshotted
	}
	return len(p.entries) == 0
}

// Entries returns the recorded entries in first-write order.
func (p *Patch) Entries() []PatchEntry {
	return append([]PatchEntry(nil), p.entries...)
}

// LogicalKeys returns the logical key of every entry, aligned with Entries.
func (p *Patch) LogicalKeys() []any {
	return append([]any(nil), p.logical...)
}

// Prior returns the recorded pre-image for key, which may be a view or the
// original of a container key.
func (p *Patch) Prior(key any) (any, bool) {
	e, ok := p.Entry(key)
	if !ok {
		return nil, false
	}
	return e.Prior, true
}

// Entry returns the recorded entry for key.
func (p *Patch) Entry(key any) (PatchEntry, bool) {
	i, ok := p.index[OriginalOf(key)]
	if !ok {
		return PatchEntry{}, false
	}
	return p.entries[i], true
}

// PriorLength returns the recorded sequence length.
func (p *Patch) PriorLength() int { return len(p.prior) }

// PriorItems returns a copy of the recorded sequence contents.
func (p *Patch) PriorItems() []any { return append([]any(nil), p.prior...) }

// RecordPrior stores the pre-image of a key unless one was already stored.
// stored is the key as it appears in the container. It reports whether the
// entry was recorded.
func (p *Patch) RecordPrior(key, stored, prior any) bool {
	logical := OriginalOf(key)
	if _, seen := p.index[logical]; seen {
		return false
	}
	if p.index == nil {
		p.index = make(map[any]int)
	}
	p.index[logical] = len(p.entries)
	p.logical = append(p.logical, logical)
	p.entries = append(p.entries, PatchEntry{Key: stored, Prior: OriginalOf(prior)})
	return true
}

// RecordSequence stores the prior contents of a sequence once.
func (p *Patch) RecordSequence(items []any) bool {
	if p.snapshotted {
		return false
	}
	p.snapshotted = true
	p.prior = make([]any, len(items))
	for i, v := range items {
		p.prior[i] = OriginalOf(v)
	}
	return true
}

// Batch is the ordered list of patches committed at one checkpoint.
type Batch []*Patch

// For returns the patch in the batch whose target is c (or c's original).
func (b Batch) For(c any) *Patch {
	target := OriginalOf(c)
	for _, p := range b {
		if any(p.target) == target {
			return p
		}
	}
	return nil
}

// Targets returns the target containers in batch order.
func (b Batch) Targets() []state.Container {
	out := make([]state.Container, len(b))
	for i, p := range b {
		out[i] = p.target
	}
	return out
}
