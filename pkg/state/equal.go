package state

// Equal reports whether a and b hold the same structure and values. Containers
// are compared entry by entry through their access interfaces, so a raw
// container and a tracking view over an equal container compare equal.
// Dictionary keys and set members are compared by identity. Cycles are handled.
func Equal(a, b any) bool {
	return equal(a, b, make(map[[2]any]struct{}))
}

func equal(a, b any, seen map[[2]any]struct{}) bool {
	ac, aIsC := a.(Container)
	bc, bIsC := b.(Container)
	if !aIsC || !bIsC {
		if aIsC != bIsC {
			return false
		}
		return safeEq(a, b)
	}
	if ac.Kind() != bc.Kind() {
		return false
	}
	pair := [2]any{a, b}
	if _, ok := seen[pair]; ok {
		return true
	}
	seen[pair] = struct{}{}

	switch x := a.(type) {
	case RecordAccess:
		y, ok := b.(RecordAccess)
		if !ok || x.Len() != y.Len() {
			return false
		}
		for name, v := range x.All() {
			w, ok := y.Get(name)
			if !ok || !equal(v, w, seen) {
				return false
			}
		}
		return true
	case SequenceAccess:
		y, ok := b.(SequenceAccess)
		if !ok || x.Len() != y.Len() {
			return false
		}
		for i, v := range x.All() {
			if !equal(v, y.At(i), seen) {
				return false
			}
		}
		return true
	case DictAccess:
		y, ok := b.(DictAccess)
		if !ok || x.Len() != y.Len() {
			return false
		}
		for k, v := range x.All() {
			w, ok := y.Get(k)
			if !ok || !equal(v, w, seen) {
				return false
			}
		}
		return true
	case SetAccess:
		y, ok := b.(SetAccess)
		if !ok || x.Len() != y.Len() {
			return false
		}
		for m := range x.All() {
			if !y.Has(m) {
				return false
			}
		}
		return true
	}
	return a == b
}

// safeEq compares scalar values, treating incomparable dynamic types as unequal.
func safeEq(a, b any) (eq bool) {
	defer func() {
		if recover() != nil {
			eq = false
		}
	}()
	return a == b
}
