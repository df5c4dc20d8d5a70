package state

import "fmt"

// Kind identifies the container family a value belongs to.
type Kind uint8

// Supported container kinds.
const (
	KindRecord Kind = iota + 1
	KindSequence
	KindDict
	KindSet
)

func (k Kind) String() string {
	switch k {
	case KindRecord:
		return "record"
	case KindSequence:
		return "sequence"
	case KindDict:
		return "dict"
	case KindSet:
		return "set"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Container is implemented by every raw container and every tracking view.
type Container interface {
	Kind() Kind
}

// IsRaw reports whether v is one of the raw container types of this package.
func IsRaw(v any) bool {
	switch v.(type) {
	case *Record, *Sequence, *Dict, *Set:
		return true
	default:
		return false
	}
}
