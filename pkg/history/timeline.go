package history

import "changetrack/pkg/track"

// TimelineEntry is one step in the history of a single container.
type TimelineEntry struct {
	// BatchIndex is the position of the batch in the history that was scanned.
	BatchIndex int
	Patch      *track.Patch
}

// ObjectTimeline returns, in history order, the patch each batch holds for c.
// c may be a view or a raw container. Batches that did not touch c are
// skipped.
func ObjectTimeline(batches []track.Batch, c any) []TimelineEntry {
	var out []TimelineEntry
	for i, batch := range batches {
		if p := batch.For(c); p != nil {
			out = append(out, TimelineEntry{BatchIndex: i, Patch: p})
		}
	}
	return out
}

// FindPatchForObject returns the patch of batch targeting c, or nil.
func FindPatchForObject(batch track.Batch, c any) *track.Patch {
	return batch.For(c)
}

// FindAllPatchesInHistory flattens batches and keeps the patches targeting c.
func FindAllPatchesInHistory(batches []track.Batch, c any) []*track.Patch {
	var out []*track.Patch
	for _, batch := range batches {
		for _, p := range batch {
			if p.Target() == track.OriginalOf(c) {
				out = append(out, p)
			}
		}
	}
	return out
}

// TimelineByID is ObjectTimeline keyed by stable identifier instead of
// container identity, so deep copies that carry the id of their source share
// its timeline. Targets without an id never match.
func TimelineByID(reg *track.Registry, batches []track.Batch, id uint64) []TimelineEntry {
	if reg == nil || id == 0 {
		return nil
	}
	var out []TimelineEntry
	for i, batch := range batches {
		for _, p := range batch {
			if got, ok := reg.LookupID(p.Target()); ok && got == id {
				out = append(out, TimelineEntry{BatchIndex: i, Patch: p})
				break
			}
		}
	}
	return out
}
