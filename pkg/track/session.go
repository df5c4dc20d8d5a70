package track

import (
	"slices"
	"sync"

	"changetrack/pkg/state"
)

// Session is the tracking environment: the identity registry plus the stack
// of active recording scopes. Writes through a session's views record into
// the innermost active scope. The stack is shared by everything using the
// session; callers that run mutations from several goroutines must serialise
// them (package dispatch does).
type Session struct {
	reg *Registry

	mu    sync.Mutex
	stack []*Scope
}

// NewSession returns a session over reg, or over a fresh registry when reg is nil.
func NewSession(reg *Registry) *Session {
	if reg == nil {
		reg = NewRegistry()
	}
	return &Session{reg: reg}
}

// Registry returns the identity registry.
func (s *Session) Registry() *Registry { return s.reg }

// Reset drops every active scope and every registry binding. Views obtained
// before Reset must not be used afterwards.
func (s *Session) Reset() {
	s.mu.Lock()
	s.stack = nil
	s.mu.Unlock()
	s.reg.reset()
}

// EnsureProxy returns the tracking view of c, creating it on first use. A view
// is returned unchanged, so EnsureProxy(EnsureProxy(x)) == EnsureProxy(x).
func (s *Session) EnsureProxy(c any) (View, error) {
	if v, ok := c.(View); ok {
		return v, nil
	}
	if _, ok := state.HandleOf(c); !ok {
		return nil, ErrUnsupportedValue
	}
	return s.ensureRaw(c.(state.Container)), nil
}

// Track is the strict form of EnsureProxy: wrapping a value that already is a
// view is an error.
func (s *Session) Track(c any) (View, error) {
	if _, ok := c.(View); ok {
		return nil, &AlreadyTrackedError{Value: c}
	}
	return s.EnsureProxy(c)
}

// IsTrackingView reports whether v is a tracking view.
func (s *Session) IsTrackingView(v any) bool {
	return s.reg.IsTrackingView(v)
}

// OriginalOf returns the container behind a view, or v itself.
func (s *Session) OriginalOf(v any) any {
	return OriginalOf(v)
}

// Record returns the view of r.
func (s *Session) Record(r *state.Record) *RecordView {
	return s.ensureRaw(r).(*RecordView)
}

// Sequence returns the view of q.
func (s *Session) Sequence(q *state.Sequence) *SequenceView {
	return s.ensureRaw(q).(*SequenceView)
}

// Dict returns the view of d.
func (s *Session) Dict(d *state.Dict) *DictView {
	return s.ensureRaw(d).(*DictView)
}

// Set returns the view of m.
func (s *Session) Set(m *state.Set) *SetView {
	return s.ensureRaw(m).(*SetView)
}

// Begin opens a recording scope and makes it the innermost active scope.
func (s *Session) Begin() *Scope {
	sc := &Scope{sess: s}
	s.push(sc)
	return sc
}

// CreateContext opens a recording scope for callers that bracket scopes
// themselves. Pair it with ClearContext.
func (s *Session) CreateContext() *Scope {
	return s.Begin()
}

// ClearContext ends the innermost active scope and returns the batch it held.
// It returns nil when no scope is active.
func (s *Session) ClearContext() Batch {
	sc := s.Active()
	if sc == nil {
		return nil
	}
	sc.End()
	return sc.Commit()
}

// Active returns the innermost active scope, or nil.
func (s *Session) Active() *Scope {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.stack) == 0 {
		return nil
	}
	return s.stack[len(s.stack)-1]
}

// Depth returns the number of active scopes.
func (s *Session) Depth() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.stack)
}

func (s *Session) ensureRaw(c state.Container) View {
	return s.reg.bind(c, func() View { return newView(s, c) })
}

// wrap hands container values out as views and everything else unchanged.
func (s *Session) wrap(v any) any {
	if _, ok := state.HandleOf(v); ok {
		return s.ensureRaw(v.(state.Container))
	}
	return v
}

func (s *Session) push(sc *Scope) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if slices.Contains(s.stack, sc) {
		return
	}
	s.stack = append(s.stack, sc)
}

func (s *Session) remove(sc *Scope) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := slices.Index(s.stack, sc); i >= 0 {
		s.stack = slices.Delete(s.stack, i, i+1)
	}
}

func (s *Session) contains(sc *Scope) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Contains(s.stack, sc)
}

// RecordPatches opens a scope, runs fn against the view of c, commits and
// returns the batch. The batch is returned even when fn fails.
func RecordPatches(s *Session, c any, fn func(View) error) (Batch, error) {
	sc := s.Begin()
	defer sc.End()
	v, err := s.EnsureProxy(c)
	if err != nil {
		return sc.Commit(), err
	}
	err = fn(v)
	return sc.Commit(), err
}
