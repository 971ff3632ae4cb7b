package state

import "reflect"

// identical reports whether a and b are the same value under Go's default
// equality. Comparable values use ==. Slices are identical when they share
// backing array, length and capacity; maps when they are the same map.
// Functions are never identical unless both are nil. Structs holding
// non-comparable fields are never identical; use Entry.WithEquals for those.
func identical(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}

	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb {
		return false
	}
	if ta.Comparable() {
		return comparableEqual(a, b)
	}

	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	switch va.Kind() {
	case reflect.Slice:
		if va.IsNil() || vb.IsNil() {
			return va.IsNil() && vb.IsNil()
		}
		return va.Pointer() == vb.Pointer() && va.Len() == vb.Len() && va.Cap() == vb.Cap()
	case reflect.Map:
		return va.Pointer() == vb.Pointer()
	case reflect.Func:
		return va.IsNil() && vb.IsNil()
	default:
		return false
	}
}

// comparableEqual compares with ==, treating the runtime panic raised by
// interfaces holding non-comparable values as inequality.
func comparableEqual(a, b any) (eq bool) {
	defer func() {
		if recover() != nil {
			eq = false
		}
	}()
	return a == b
}
