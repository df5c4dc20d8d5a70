// Package clone copies and cleans container graphs that may contain tracking
// views. Both walks keep a visited map keyed by container identity, so shared
// and cyclic structure is handled.
package clone

import (
	"fmt"
	"reflect"

	"changetrack/pkg/state"
	"changetrack/pkg/track"
)

// UnsupportedContainerKindError reports a Go-native aggregate (map, slice or
// array) found where only state containers can be walked.
type UnsupportedContainerKindError struct {
	Type reflect.Type
}

func (e *UnsupportedContainerKindError) Error() string {
	return fmt.Sprintf("clone: unsupported container kind %s (%s)", e.Type.Kind(), e.Type)
}

func checkValue(v any) error {
	if v == nil {
		return nil
	}
	t := reflect.TypeOf(v)
	switch t.Kind() {
	case reflect.Map, reflect.Slice, reflect.Array:
		return &UnsupportedContainerKindError{Type: t}
	}
	return nil
}

// Deep returns a deep copy of v. Views are replaced by copies of their
// originals, aliasing and cycles in the source reappear in the copy, and
// values that are not containers are shared. When reg is non-nil every copy
// carries the stable id of its source, allocating one if needed.
func Deep(reg *track.Registry, v any) (any, error) {
	c := &copier{reg: reg, seen: make(map[state.Container]state.Container)}
	return c.value(v)
}

type copier struct {
	reg  *track.Registry
	seen map[state.Container]state.Container
}

func (c *copier) value(v any) (any, error) {
	v = track.OriginalOf(v)
	if _, ok := state.HandleOf(v); !ok {
		if err := checkValue(v); err != nil {
			return nil, err
		}
		return v, nil
	}
	src := v.(state.Container)
	if dup, ok := c.seen[src]; ok {
		return dup, nil
	}
	switch x := src.(type) {
	case *state.Record:
		dup := state.NewRecord()
		c.remember(x, dup)
		for name, val := range x.All() {
			cv, err := c.value(val)
			if err != nil {
				return nil, err
			}
			dup.Set(name, cv)
		}
		return dup, nil
	case *state.Sequence:
		dup := state.NewSequence()
		c.remember(x, dup)
		for _, item := range x.All() {
			cv, err := c.value(item)
			if err != nil {
				return nil, err
			}
			dup.Append(cv)
		}
		return dup, nil
	case *state.Dict:
		dup := state.NewDict()
		c.remember(x, dup)
		for k, val := range x.All() {
			ck, err := c.value(k)
			if err != nil {
				return nil, err
			}
			cv, err := c.value(val)
			if err != nil {
				return nil, err
			}
			dup.Set(ck, cv)
		}
		return dup, nil
	case *state.Set:
		dup := state.NewSet()
		c.remember(x, dup)
		for m := range x.All() {
			cm, err := c.value(m)
			if err != nil {
				return nil, err
			}
			dup.Add(cm)
		}
		return dup, nil
	}
	return v, nil
}

func (c *copier) remember(src, dup state.Container) {
	c.seen[src] = dup
	if c.reg == nil {
		return
	}
	if id, ok := c.reg.StableID(src); ok {
		c.reg.AssignID(dup, id)
	}
}

// Strip removes tracking views from the graph rooted at v in place: views
// stored as values, dictionary keys or set members are replaced by their
// originals. Entry order is kept. When a view key and its original are both
// present, the entry stored first wins. It returns the raw root.
func Strip(v any) (any, error) {
	s := &stripper{seen: make(map[state.Container]struct{})}
	root := track.OriginalOf(v)
	if err := s.walk(root); err != nil {
		return nil, err
	}
	return root, nil
}

type stripper struct {
	seen map[state.Container]struct{}
}

func (s *stripper) walk(v any) error {
	if _, ok := state.HandleOf(v); !ok {
		return checkValue(v)
	}
	c := v.(state.Container)
	if _, ok := s.seen[c]; ok {
		return nil
	}
	s.seen[c] = struct{}{}

	switch x := c.(type) {
	case *state.Record:
		for name, val := range x.All() {
			raw := track.OriginalOf(val)
			if err := s.walk(raw); err != nil {
				return err
			}
			if isView(val) {
				x.Set(name, raw)
			}
		}
	case *state.Sequence:
		for i, item := range x.All() {
			raw := track.OriginalOf(item)
			if err := s.walk(raw); err != nil {
				return err
			}
			if isView(item) {
				x.SetAt(i, raw)
			}
		}
	case *state.Dict:
		type entry struct{ k, v any }
		var entries []entry
		changed := false
		for k, val := range x.All() {
			rk, rv := track.OriginalOf(k), track.OriginalOf(val)
			if err := s.walk(rk); err != nil {
				return err
			}
			if err := s.walk(rv); err != nil {
				return err
			}
			changed = changed || isView(k) || isView(val)
			entries = append(entries, entry{rk, rv})
		}
		if changed {
			x.Clear()
			for _, e := range entries {
				if !x.Has(e.k) {
					x.Set(e.k, e.v)
				}
			}
		}
	case *state.Set:
		var members []any
		changed := false
		for m := range x.All() {
			rm := track.OriginalOf(m)
			if err := s.walk(rm); err != nil {
				return err
			}
			changed = changed || isView(m)
			members = append(members, rm)
		}
		if changed {
			x.Clear()
			for _, m := range members {
				x.Add(m)
			}
		}
	}
	return nil
}

func isView(v any) bool {
	_, ok := v.(track.View)
	return ok
}
