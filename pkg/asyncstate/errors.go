package asyncstate

import "errors"

// ErrLoaderPanic is wrapped into Result.Err when a loader panics.
var ErrLoaderPanic = errors.New("asyncstate: loader panicked")
