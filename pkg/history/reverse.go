package history

import (
	"changetrack/pkg/state"
	"changetrack/pkg/track"
)

// CreateReversePatch returns a fresh patch over the same container holding
// the container's current value for every key p touches (track.NoEntry for
// keys no longer present). Undoing it re-applies whatever p would revert, so
// call it before Undo(p).
func CreateReversePatch(p *track.Patch) *track.Patch {
	if p == nil {
		return nil
	}
	rev := track.NewPatch(p.Registry(), p.Target())
	switch target := p.Target().(type) {
	case *state.Sequence:
		if !p.Empty() {
			rev.RecordSequence(target.Values())
		}
	case *state.Dict:
		logical := p.LogicalKeys()
		for i, e := range p.Entries() {
			stored, found := track.ResolveKey(p.Registry(), target, logical[i])
			var cur any = track.NoEntry
			if found {
				cur, _ = target.Get(stored)
			} else {
				stored = e.Key
			}
			rev.RecordPrior(logical[i], stored, cur)
		}
	case *state.Set:
		logical := p.LogicalKeys()
		for i, e := range p.Entries() {
			stored, found := track.ResolveKey(p.Registry(), target, logical[i])
			if !found {
				stored = e.Key
			}
			rev.RecordPrior(logical[i], stored, found)
		}
	case *state.Record:
		for _, e := range p.Entries() {
			name, _ := e.Key.(string)
			cur, ok := target.Get(name)
			if !ok {
				cur = track.NoEntry
			}
			rev.RecordPrior(name, name, cur)
		}
	}
	return rev
}
