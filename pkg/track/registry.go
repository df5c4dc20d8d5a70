package track

import (
	"sync"
	"sync/atomic"

	"changetrack/pkg/state"
)

// Registry associates each raw container with at most one tracking view and
// allocates stable identifiers. All associations are non-owning: an entry
// never keeps its container or view alive, and entries of collected
// containers are purged by runtime cleanups.
type Registry struct {
	mu      sync.Mutex
	views   map[state.Handle]viewRef
	ids     map[state.Handle]uint64
	watched map[state.Handle]struct{}
	nextID  atomic.Uint64
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		views:   make(map[state.Handle]viewRef),
		ids:     make(map[state.Handle]uint64),
		watched: make(map[state.Handle]struct{}),
	}
}

// TrackingViewOf returns the live view bound to c without creating one. A view
// passed as c is returned as is.
func (r *Registry) TrackingViewOf(c any) (View, bool) {
	if v, ok := c.(View); ok {
		return v, true
	}
	h, ok := state.HandleOf(c)
	if !ok {
		return nil, false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	v := r.views[h].get()
	return v, v != nil
}

// Register binds view to c. Registering the same pair again is a no-op.
func (r *Registry) Register(c state.Container, view View) error {
	if _, ok := c.(View); ok {
		return &AlreadyTrackedError{Value: c}
	}
	h, ok := state.HandleOf(c)
	if !ok || view == nil || view.Original() != c {
		return ErrUnsupportedValue
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing := r.views[h].get(); existing != nil {
		if existing == view {
			return nil
		}
		return &AlreadyTrackedError{Value: c}
	}
	r.views[h] = refOf(view)
	r.watchLocked(h, c)
	return nil
}

// IsTrackingView reports whether v is a view.
func (r *Registry) IsTrackingView(v any) bool {
	_, ok := v.(View)
	return ok
}

// OriginalOf returns the container behind a view, or v itself.
func (r *Registry) OriginalOf(v any) any {
	return OriginalOf(v)
}

// AllocateID returns the next identifier. Identifiers start at 1 and strictly
// increase for the lifetime of the registry.
func (r *Registry) AllocateID() uint64 {
	return r.nextID.Add(1)
}

// StableID returns the identifier of c, allocating one on first request. Views
// share the identifier of their container.
func (r *Registry) StableID(c any) (uint64, bool) {
	h, ok := state.HandleOf(OriginalOf(c))
	if !ok {
		return 0, false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if id, ok := r.ids[h]; ok {
		return id, true
	}
	id := r.AllocateID()
	r.ids[h] = id
	r.watchLocked(h, h.Value())
	return id, true
}

// LookupID returns the identifier of c without allocating.
func (r *Registry) LookupID(c any) (uint64, bool) {
	h, ok := state.HandleOf(OriginalOf(c))
	if !ok {
		return 0, false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.ids[h]
	return id, ok
}

// AssignID gives c an existing identifier, so a copy can share identity with
// its source. It replaces any identifier c already had.
func (r *Registry) AssignID(c any, id uint64) bool {
	h, ok := state.HandleOf(OriginalOf(c))
	if !ok || id == 0 {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids[h] = id
	r.watchLocked(h, h.Value())
	return true
}

// Len returns the number of live container to view bindings.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, ref := range r.views {
		if ref.get() != nil {
			n++
		}
	}
	return n
}

// bind returns the view bound to c, creating and registering it when absent
// or collected.
func (r *Registry) bind(c state.Container, create func() View) View {
	h, _ := state.HandleOf(c)
	r.mu.Lock()
	defer r.mu.Unlock()
	if v := r.views[h].get(); v != nil {
		return v
	}
	v := create()
	r.views[h] = refOf(v)
	r.watchLocked(h, c)
	return v
}

func (r *Registry) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	clear(r.views)
	clear(r.ids)
}

// watchLocked installs the purge cleanup for c once.
func (r *Registry) watchLocked(h state.Handle, c state.Container) {
	if c == nil {
		return
	}
	if _, ok := r.watched[h]; ok {
		return
	}
	r.watched[h] = struct{}{}
	state.OnCollect(c, func() { r.forget(h) })
}

func (r *Registry) forget(h state.Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.views, h)
	delete(r.ids, h)
	delete(r.watched, h)
}
