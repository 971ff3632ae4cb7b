package asyncstate

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vango-dev/sharedstate/pkg/state"
)

// KeyPrefix namespaces async keys so they never collide with plain keys of
// the same name.
const KeyPrefix = "async_"

// Loader produces the value for one generation.
type Loader[T any] func(ctx context.Context) (T, error)

// Result is what callers see of an async key.
type Result[T any] struct {
	// Loading is true until the current generation settles.
	Loading bool

	// Data holds the loaded value when HasData is true.
	Data    T
	HasData bool

	// Err holds the load failure. Data and Err are never both set.
	Err error

	// Generation counts load cycles, starting at 1.
	Generation uint64

	// Refetch starts the next generation. It does nothing while loading.
	Refetch func()
}

// Ready reports whether the current generation settled successfully.
func (r Result[T]) Ready() bool {
	return !r.Loading && r.Err == nil && r.HasData
}

// snapshot is the value stored in the entry. It is never modified after being
// stored; every transition stores a new pointer, which is also what makes
// each transition a change under the store's reference equality.
type snapshot[T any] struct {
	loading     bool
	initialized bool
	generation  uint64

	data    T
	hasData bool
	err     error

	// cancel aborts the generation's in-flight load.
	cancel context.CancelFunc
}

func freshSnapshot[T any](generation uint64) *snapshot[T] {
	return &snapshot[T]{loading: true, generation: generation}
}

// Async is a handle on one async key of a store. Handles bound to the same key
// share state.
type Async[T any] struct {
	key   string
	store *state.Store
	entry *state.Entry[*snapshot[T]]
	cfg   config
}

// Bind returns the handle for key, creating the underlying entry on first use.
func Bind[T any](s *state.Store, key string, opts ...Option) (*Async[T], error) {
	if key == "" {
		return nil, state.ErrEmptyKey
	}
	entry, err := state.Lookup(s, KeyPrefix+key, freshSnapshot[T](1))
	if err != nil {
		return nil, err
	}
	return &Async[T]{
		key:   key,
		store: s,
		entry: entry,
		cfg:   applyOptions(opts),
	}, nil
}

// Key returns the store key backing the handle, including KeyPrefix.
func (a *Async[T]) Key() string {
	return a.entry.Key()
}

// Name returns the key the handle was bound with.
func (a *Async[T]) Name() string {
	return a.key
}

// Version returns the backing entry's version.
func (a *Async[T]) Version() uint64 {
	return a.entry.Version()
}

// Subscribe attaches l to the backing entry.
func (a *Async[T]) Subscribe(l state.Listener) {
	a.entry.Subscribe(l)
}

// Unsubscribe detaches l from the backing entry.
func (a *Async[T]) Unsubscribe(l state.Listener) {
	a.entry.Unsubscribe(l)
}

// Peek returns the current Result without starting a load.
func (a *Async[T]) Peek() Result[T] {
	return a.result(a.entry.Get())
}

// Observe returns the current Result. If the current generation has not
// started loading and loader is non-nil, it starts loader exactly once for
// that generation, no matter how many handles observe it concurrently.
func (a *Async[T]) Observe(loader Loader[T]) Result[T] {
	var (
		start bool
		ctx   context.Context
		gen   uint64
	)
	if loader != nil {
		a.entry.Mutate(func(cur *snapshot[T], _ bool) *snapshot[T] {
			if cur.initialized || !cur.loading {
				return cur
			}
			var cancel context.CancelFunc
			ctx, cancel = context.WithCancel(a.cfg.ctx)
			next := *cur
			next.initialized = true
			next.cancel = cancel
			start = true
			gen = next.generation
			return &next
		})
	}

	snap := a.entry.Get()
	if start {
		for _, obs := range a.cfg.observers {
			obs.LoadStarted(a.key, gen)
		}
		go a.run(ctx, loader, gen)
	}
	return a.result(snap)
}

// Refetch starts the next generation. The next Observe with a loader starts
// its load. While the current generation is loading, Refetch does nothing.
func (a *Async[T]) Refetch() {
	a.entry.Update(func(cur *snapshot[T]) *snapshot[T] {
		if cur.loading {
			return cur
		}
		return freshSnapshot[T](cur.generation + 1)
	})
}

// Restart starts the next generation even if the current one is loading.
// An in-flight load is cancelled and its result discarded.
func (a *Async[T]) Restart() {
	var cancel context.CancelFunc
	a.entry.Update(func(cur *snapshot[T]) *snapshot[T] {
		cancel = cur.cancel
		return freshSnapshot[T](cur.generation + 1)
	})
	if cancel != nil {
		cancel()
	}
}

// Fetch observes with loader and blocks until the current generation settles
// or ctx is done.
func (a *Async[T]) Fetch(ctx context.Context, loader Loader[T]) (Result[T], error) {
	changed := make(chan struct{}, 1)
	l := state.ListenerFunc(func() {
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	a.entry.Subscribe(l)
	defer a.entry.Unsubscribe(l)

	for {
		res := a.Observe(loader)
		if !res.Loading {
			return res, nil
		}
		select {
		case <-changed:
		case <-ctx.Done():
			return res, ctx.Err()
		}
	}
}

func (a *Async[T]) result(snap *snapshot[T]) Result[T] {
	if snap == nil {
		snap = freshSnapshot[T](1)
	}
	return Result[T]{
		Loading:    snap.loading,
		Data:       snap.data,
		HasData:    snap.hasData,
		Err:        snap.err,
		Generation: snap.generation,
		Refetch:    a.Refetch,
	}
}

// run executes one generation's load and hands the outcome to the store's
// dispatcher.
func (a *Async[T]) run(ctx context.Context, loader Loader[T], gen uint64) {
	start := time.Now()
	logger := a.store.Logger()

	ctx, span := a.cfg.tracer.Start(ctx, "asyncstate.load",
		trace.WithAttributes(
			attribute.String("sharedstate.key", a.key),
			attribute.Int64("sharedstate.generation", int64(gen)),
		),
	)
	if a.cfg.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.cfg.timeout)
		defer cancel()
	}

	data, err := call(ctx, loader)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Debug("async load failed", "key", a.key, "generation", gen, "error", err)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()

	a.store.Dispatch(func() {
		outcome := a.settle(gen, data, err)
		if outcome == OutcomeDiscarded {
			logger.Debug("async load discarded", "key", a.key, "generation", gen)
		}
		elapsed := time.Since(start)
		for _, obs := range a.cfg.observers {
			obs.LoadSettled(a.key, outcome, elapsed)
		}
	})
}

// settle stores the outcome of generation gen if it is still current.
func (a *Async[T]) settle(gen uint64, data T, err error) Outcome {
	outcome := OutcomeDiscarded
	var cancel context.CancelFunc
	a.entry.Update(func(cur *snapshot[T]) *snapshot[T] {
		if cur.generation != gen || !cur.loading {
			return cur
		}
		cancel = cur.cancel
		next := &snapshot[T]{initialized: true, generation: gen}
		if err != nil {
			next.err = err
			outcome = OutcomeError
		} else {
			next.data = data
			next.hasData = true
			outcome = OutcomeSuccess
		}
		return next
	})
	if cancel != nil {
		// Release the generation's context.
		cancel()
	}
	return outcome
}

// call runs loader, converting a panic into an error.
func call[T any](ctx context.Context, loader Loader[T]) (data T, err error) {
	defer func() {
		if r := recover(); r != nil {
			var zero T
			data = zero
			err = fmt.Errorf("%w: %v", ErrLoaderPanic, r)
		}
	}()
	return loader(ctx)
}
