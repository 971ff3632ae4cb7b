package state

import "errors"

// ErrEmptyKey is returned when a lookup is attempted with an empty key.
var ErrEmptyKey = errors.New("state: empty key")

// ErrTypeMismatch is returned when a key is looked up with a value type other
// than the one it was created with. The returned error wraps it together with
// the key and both type names.
var ErrTypeMismatch = errors.New("state: type mismatch")
