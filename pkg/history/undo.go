package history

import (
	"errors"
	"fmt"

	"changetrack/pkg/state"
	"changetrack/pkg/track"
)

// ErrKindMismatch is returned when a patch's target does not match its kind.
var ErrKindMismatch = errors.New("history: patch target does not match patch kind")

// Undo writes the pre-images recorded in p back onto its target. It writes to
// the raw container directly; nothing is recorded into an active scope.
func Undo(p *track.Patch) error {
	if p == nil {
		return nil
	}
	switch p.Kind() {
	case state.KindDict:
		d, ok := p.Target().(*state.Dict)
		if !ok {
			return fmt.Errorf("undo %s: %w", p.Kind(), ErrKindMismatch)
		}
		undoDict(p, d)
	case state.KindSet:
		s, ok := p.Target().(*state.Set)
		if !ok {
			return fmt.Errorf("undo %s: %w", p.Kind(), ErrKindMismatch)
		}
		undoSet(p, s)
	case state.KindSequence:
		q, ok := p.Target().(*state.Sequence)
		if !ok {
			return fmt.Errorf("undo %s: %w", p.Kind(), ErrKindMismatch)
		}
		undoSequence(p, q)
	case state.KindRecord:
		r, ok := p.Target().(*state.Record)
		if !ok {
			return fmt.Errorf("undo %s: %w", p.Kind(), ErrKindMismatch)
		}
		undoRecord(p, r)
	default:
		return fmt.Errorf("undo %s: %w", p.Kind(), ErrKindMismatch)
	}
	return nil
}

func undoDict(p *track.Patch, d *state.Dict) {
	logical := p.LogicalKeys()
	for i, e := range p.Entries() {
		current, found := track.ResolveKey(p.Registry(), d, logical[i])
		if e.Prior == track.NoEntry {
			if found {
				d.Delete(current)
			}
			continue
		}
		if found && current != e.Key {
			d.Delete(current)
		}
		d.Set(e.Key, e.Prior)
	}
}

func undoSet(p *track.Patch, s *state.Set) {
	logical := p.LogicalKeys()
	for i, e := range p.Entries() {
		current, found := track.ResolveKey(p.Registry(), s, logical[i])
		was, _ := e.Prior.(bool)
		switch {
		case was && !found:
			s.Add(e.Key)
		case !was && found:
			s.Delete(current)
		}
	}
}

func undoSequence(p *track.Patch, q *state.Sequence) {
	if p.Empty() {
		return
	}
	items := p.PriorItems()
	q.Resize(len(items))
	for i, v := range items {
		q.SetAt(i, v)
	}
}

func undoRecord(p *track.Patch, r *state.Record) {
	for _, e := range p.Entries() {
		name, _ := e.Key.(string)
		if e.Prior == track.NoEntry {
			r.Delete(name)
			continue
		}
		r.Set(name, e.Prior)
	}
}

// UndoBatch undoes every patch of batch in reverse order and returns the batch
// that redoes it. Reverse patches are taken before each undo.
func UndoBatch(batch track.Batch) (track.Batch, error) {
	redo := make(track.Batch, 0, len(batch))
	for i := len(batch) - 1; i >= 0; i-- {
		p := batch[i]
		rev := CreateReversePatch(p)
		if err := Undo(p); err != nil {
			return redo, fmt.Errorf("undo batch entry %d: %w", i, err)
		}
		redo = append(redo, rev)
	}
	return redo, nil
}
