package state

// Update is a write to an entry: either a literal value or a function of the
// previous value. Construct one with Value or Func.
type Update[T any] struct {
	value T
	fn    func(T) T
}

// Value returns an Update that stores v.
func Value[T any](v T) Update[T] {
	return Update[T]{value: v}
}

// Func returns an Update that stores fn(previous).
// The previous value is the zero value of T when the entry is unset.
// fn runs while the entry is locked and must not access the same entry.
func Func[T any](fn func(T) T) Update[T] {
	return Update[T]{fn: fn}
}

// IsFunc reports whether u was built with Func.
func (u Update[T]) IsFunc() bool {
	return u.fn != nil
}

func (u Update[T]) apply(old T) T {
	if u.fn != nil {
		return u.fn(old)
	}
	return u.value
}
