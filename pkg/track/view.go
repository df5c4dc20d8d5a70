package track

import (
	"weak"

	"changetrack/pkg/state"
)

// View is a tracking view: a wrapper with the read/write surface of its
// container that records pre-images into the active scope.
type View interface {
	state.Container
	// Original returns the wrapped raw container.
	Original() state.Container
	// Session returns the session the view records into.
	Session() *Session
	isView()
}

var (
	_ View = (*RecordView)(nil)
	_ View = (*SequenceView)(nil)
	_ View = (*DictView)(nil)
	_ View = (*SetView)(nil)

	_ state.RecordAccess   = (*RecordView)(nil)
	_ state.SequenceAccess = (*SequenceView)(nil)
	_ state.DictAccess     = (*DictView)(nil)
	_ state.SetAccess      = (*SetView)(nil)
)

// OriginalOf returns the raw container behind a view, or v itself when v is
// not a view. It never fails.
func OriginalOf(v any) any {
	if view, ok := v.(View); ok {
		return view.Original()
	}
	return v
}

// storable returns what a view writes into its container for v. NoEntry is a
// recording marker and panics here.
func storable(v any) any {
	mustStore(v)
	return OriginalOf(v)
}

func mustStore(v any) {
	if v == NoEntry {
		panic("track: NoEntry cannot be stored in a container")
	}
}

// core carries what every view variant shares.
type core struct {
	sess *Session
}

func (c *core) Session() *Session { return c.sess }

func (c *core) isView() {}

// open returns the patch of the active scope for raw, opening one on first
// touch. It returns nil when no scope is active.
func (c *core) open(raw state.Container) *Patch {
	sc := c.sess.Active()
	if sc == nil {
		return nil
	}
	return sc.patchFor(raw)
}

func (c *core) wrap(v any) any {
	return c.sess.wrap(v)
}

func newView(sess *Session, c state.Container) View {
	base := core{sess: sess}
	switch raw := c.(type) {
	case *state.Record:
		return &RecordView{core: base, raw: raw}
	case *state.Sequence:
		return &SequenceView{core: base, raw: raw}
	case *state.Dict:
		return &DictView{core: base, raw: raw}
	case *state.Set:
		return &SetView{core: base, raw: raw}
	default:
		return nil
	}
}

// viewRef is a non-owning reference to a view of any variant.
type viewRef struct {
	rec  weak.Pointer[RecordView]
	seq  weak.Pointer[SequenceView]
	dict weak.Pointer[DictView]
	set  weak.Pointer[SetView]
}

func refOf(v View) viewRef {
	var r viewRef
	switch x := v.(type) {
	case *RecordView:
		r.rec = weak.Make(x)
	case *SequenceView:
		r.seq = weak.Make(x)
	case *DictView:
		r.dict = weak.Make(x)
	case *SetView:
		r.set = weak.Make(x)
	}
	return r
}

// get returns the view, or nil once it has been collected.
func (r viewRef) get() View {
	if p := r.rec.Value(); p != nil {
		return p
	}
	if p := r.seq.Value(); p != nil {
		return p
	}
	if p := r.dict.Value(); p != nil {
		return p
	}
	if p := r.set.Value(); p != nil {
		return p
	}
	return nil
}
