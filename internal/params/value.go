package params

import (
	"fmt"
	"sort"
	"strings"
)

// #region kind

// Kind tags which variant a Value holds.
type Kind int

const (
	KindNone   Kind = iota // absent / null
	KindScalar             // single value from an ordered scale or category set
	KindSet                // unordered collection of unique identifiers
)

func (k Kind) String() string {
	switch k {
	case KindScalar:
		return "scalar"
	case KindSet:
		return "set"
	default:
		return "none"
	}
}

// #endregion kind

// #region value

// Value is a tagged union over the shapes a parameter entry can take.
// The zero Value is absent.
type Value struct {
	kind   Kind
	scalar string
	items  []string
}

// Scalar returns a scalar Value.
func Scalar(v string) Value {
	return Value{kind: KindScalar, scalar: v}
}

// SetOf returns a set Value holding the unique items in first-seen order.
func SetOf(items ...string) Value {
	out := Value{kind: KindSet, items: make([]string, 0, len(items))}
	seen := make(map[string]bool, len(items))
	for _, it := range items {
		if seen[it] {
			continue
		}
		seen[it] = true
		out.items = append(out.items, it)
	}
	return out
}

// Kind reports the variant held by v.
func (v Value) Kind() Kind { return v.kind }

// IsZero reports whether v is absent.
func (v Value) IsZero() bool { return v.kind == KindNone }

// IsEmpty reports whether v is absent, an empty scalar, or an empty set.
func (v Value) IsEmpty() bool {
	switch v.kind {
	case KindScalar:
		return v.scalar == ""
	case KindSet:
		return len(v.items) == 0
	default:
		return true
	}
}

// Str returns the scalar payload. ok is false for non-scalar values.
func (v Value) Str() (string, bool) {
	if v.kind != KindScalar {
		return "", false
	}
	return v.scalar, true
}

// Items returns a copy of the set payload, or nil for non-set values.
func (v Value) Items() []string {
	if v.kind != KindSet {
		return nil
	}
	out := make([]string, len(v.items))
	copy(out, v.items)
	return out
}

// Contains reports set membership. Always false for non-set values.
func (v Value) Contains(item string) bool {
	if v.kind != KindSet {
		return false
	}
	for _, it := range v.items {
		if it == item {
			return true
		}
	}
	return false
}

// With returns a new set Value with item added. Absent values are treated as
// the empty set; scalars are returned unchanged.
func (v Value) With(item string) Value {
	switch v.kind {
	case KindNone:
		return SetOf(item)
	case KindSet:
		return SetOf(append(v.Items(), item)...)
	default:
		return v
	}
}

// Equal compares values by variant and content. Set order is irrelevant.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindScalar:
		return v.scalar == o.scalar
	case KindSet:
		if len(v.items) != len(o.items) {
			return false
		}
		a, b := v.sorted(), o.sorted()
		for i := range a {
			if a[i] != b[i] {
				return false
			}
		}
		return true
	default:
		return true
	}
}

// String renders v for change logs: "" when absent, the scalar itself, or
// "[a,b]" for sets.
func (v Value) String() string {
	switch v.kind {
	case KindScalar:
		return v.scalar
	case KindSet:
		return "[" + strings.Join(v.items, ",") + "]"
	default:
		return ""
	}
}

func (v Value) sorted() []string {
	out := v.Items()
	sort.Strings(out)
	return out
}

// #endregion value

// #region encoding

// raw converts v to its plain JSON/YAML representation.
func (v Value) raw() any {
	switch v.kind {
	case KindScalar:
		return v.scalar
	case KindSet:
		return v.Items()
	default:
		return nil
	}
}

// fromRaw converts a decoded JSON/YAML value into a Value.
func fromRaw(x any) (Value, error) {
	switch t := x.(type) {
	case nil:
		return Value{}, nil
	case string:
		return Scalar(t), nil
	case []string:
		return SetOf(t...), nil
	case []any:
		items := make([]string, 0, len(t))
		for _, it := range t {
			s, ok := it.(string)
			if !ok {
				return Value{}, fmt.Errorf("set item %v: expected string, got %T", it, it)
			}
			items = append(items, s)
		}
		return SetOf(items...), nil
	default:
		return Value{}, fmt.Errorf("unsupported value type %T", x)
	}
}

// #endregion encoding
