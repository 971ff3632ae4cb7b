// Package asyncstate layers asynchronous loading on top of a state.Store.
//
// An Async value lives in the store under KeyPrefix + key and moves through
// loading, ready and error states:
//
//   - A new key starts loading with no load running.
//   - The first Observe with a loader starts exactly one load for the
//     current generation. Marking the generation as started does not notify
//     anyone; it rides on the render already in progress.
//   - The load settles into Data or Err and subscribers are notified.
//   - Refetch starts the next generation. While a generation is loading,
//     Refetch does nothing.
//
// Results from a generation that is no longer current are discarded, so a
// slow load can never overwrite a newer one. Loader errors and panics are
// captured into Result.Err; they are never returned to the caller of Observe.
//
// Basic usage:
//
//	user, err := asyncstate.Bind[*User](store, "user")
//	if err != nil {
//	    return err
//	}
//
//	res := user.Observe(func(ctx context.Context) (*User, error) {
//	    return api.CurrentUser(ctx)
//	})
//	switch {
//	case res.Loading:
//	    // spinner
//	case res.Err != nil:
//	    // error view with a button calling res.Refetch
//	default:
//	    // render res.Data
//	}
package asyncstate
