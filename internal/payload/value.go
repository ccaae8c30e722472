package payload

import (
	"sort"
	"strconv"
	"strings"
)

// Kind identifies which variant a Value holds.
type Kind int

const (
	// KindNull is an absent or JSON null value.
	KindNull Kind = iota
	// KindScalar is a leaf holding text.
	KindScalar
	// KindList is an ordered sequence of values.
	KindList
	// KindMap is a keyed set of values.
	KindMap
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindScalar:
		return "scalar"
	case KindList:
		return "list"
	case KindMap:
		return "map"
	default:
		return "null"
	}
}

// Value is a normalized provider response node. Exactly one of Text, Items
// or Fields is meaningful, selected by Kind.
type Value struct {
	Kind   Kind
	Text   string
	Items  []Value
	Fields map[string]Value
}

// Null returns the null value.
func Null() Value {
	return Value{Kind: KindNull}
}

// Scalar returns a leaf value holding s.
func Scalar(s string) Value {
	return Value{Kind: KindScalar, Text: s}
}

// List returns a list value holding items.
func List(items ...Value) Value {
	if items == nil {
		items = []Value{}
	}
	return Value{Kind: KindList, Items: items}
}

// Map returns a map value holding fields. A nil map yields an empty map.
func Map(fields map[string]Value) Value {
	if fields == nil {
		fields = map[string]Value{}
	}
	return Value{Kind: KindMap, Fields: fields}
}

// IsEmpty reports whether v is null, an empty list or an empty map.
func (v Value) IsEmpty() bool {
	switch v.Kind {
	case KindNull:
		return true
	case KindList:
		return len(v.Items) == 0
	case KindMap:
		return len(v.Fields) == 0
	default:
		return false
	}
}

// Keys returns the map keys of v in sorted order, or nil when v is not a map.
func (v Value) Keys() []string {
	if v.Kind != KindMap {
		return nil
	}
	keys := make([]string, 0, len(v.Fields))
	for k := range v.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Interface converts v into plain Go values: nil, string, []any or
// map[string]any.
func (v Value) Interface() any {
	switch v.Kind {
	case KindScalar:
		return v.Text
	case KindList:
		out := make([]any, len(v.Items))
		for i, item := range v.Items {
			out[i] = item.Interface()
		}
		return out
	case KindMap:
		out := make(map[string]any, len(v.Fields))
		for k, field := range v.Fields {
			out[k] = field.Interface()
		}
		return out
	default:
		return nil
	}
}

// Lookup descends v along a dotted path such as "User.UserID". Map segments
// select keys and list segments select zero-based indexes. It reports false
// when any segment is missing; it never fails otherwise. An empty path
// returns v itself.
func Lookup(v Value, path string) (Value, bool) {
	if path == "" {
		return v, true
	}

	current := v
	for _, segment := range strings.Split(path, ".") {
		switch current.Kind {
		case KindMap:
			next, ok := current.Fields[segment]
			if !ok {
				return Value{}, false
			}
			current = next
		case KindList:
			idx, err := strconv.Atoi(segment)
			if err != nil || idx < 0 || idx >= len(current.Items) {
				return Value{}, false
			}
			current = current.Items[idx]
		default:
			return Value{}, false
		}
	}

	return current, true
}

// LookupString is Lookup restricted to scalar leaves.
func LookupString(v Value, path string) (string, bool) {
	found, ok := Lookup(v, path)
	if !ok || found.Kind != KindScalar {
		return "", false
	}
	return found.Text, true
}
