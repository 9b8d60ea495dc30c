package tasks

import (
	"context"
	"sync"
	"time"

	"github.com/desertthunder/novelx/internal/services"
)

// WorkPromptDebounce delays work prompt searches while the user is typing.
const WorkPromptDebounce = 300 * time.Millisecond

// State is the observable result of a [Resource].
type State[T any] struct {
	Data    T
	Loading bool
	Error   string
}

// FetchFunc loads the value for key.
type FetchFunc[K comparable, T any] func(ctx context.Context, key K) (T, error)

// ResourceOption configures a [Resource].
type ResourceOption[K comparable, T any] func(*Resource[K, T])

// WithDebounce waits d before each fetch; a newer Load within d replaces the pending one.
func WithDebounce[K comparable, T any](d time.Duration) ResourceOption[K, T] {
	return func(r *Resource[K, T]) { r.debounce = d }
}

// WithSkip treats keys for which skip returns true as absent: nothing is fetched and state is cleared.
func WithSkip[K comparable, T any](skip func(K) bool) ResourceOption[K, T] {
	return func(r *Resource[K, T]) { r.skip = skip }
}

// WithErrorHandler lets handle adjust the error state before it is committed, e.g. to turn a 404 into data.
func WithErrorHandler[K comparable, T any](handle func(err error, st *State[T])) ResourceOption[K, T] {
	return func(r *Resource[K, T]) { r.onError = handle }
}

// OnChange registers fn to receive every state change.
//
// fn runs while the resource lock is held and must not block or call back into the resource.
func OnChange[K comparable, T any](fn func(State[T])) ResourceOption[K, T] {
	return func(r *Resource[K, T]) { r.onChange = fn }
}

type loadInput[K comparable] struct {
	key     K
	refresh int
}

// Resource fetches a value whenever its inputs change.
//
// Each Load cancels the in-flight fetch and bumps a generation counter; a result is committed
// only if its generation is still current. Close cancels everything and stops all commits.
type Resource[K comparable, T any] struct {
	mu       sync.Mutex
	fetch    FetchFunc[K, T]
	fallback string
	debounce time.Duration
	skip     func(K) bool
	onError  func(error, *State[T])
	onChange func(State[T])

	state   State[T]
	gen     uint64
	cancel  context.CancelFunc
	last    *loadInput[K]
	closed  bool
	pending sync.WaitGroup
}

// NewResource creates a resource around fetch. Errors are flattened with fallback.
func NewResource[K comparable, T any](fetch FetchFunc[K, T], fallback string, opts ...ResourceOption[K, T]) *Resource[K, T] {
	r := &Resource[K, T]{fetch: fetch, fallback: fallback}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Load fetches key unless the same key and refresh token are already loaded or loading.
func (r *Resource[K, T]) Load(key K, refresh int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}
	in := loadInput[K]{key: key, refresh: refresh}
	if r.last != nil && *r.last == in {
		return
	}
	r.last = &in
	r.start(key)
}

// Refresh refetches the last loaded key.
func (r *Resource[K, T]) Refresh() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed || r.last == nil {
		return
	}
	r.start(r.last.key)
}

// start must be called with r.mu held.
func (r *Resource[K, T]) start(key K) {
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
	r.gen++
	gen := r.gen

	if r.skip != nil && r.skip(key) {
		r.commit(State[T]{})
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel

	st := r.state
	st.Loading = true
	st.Error = ""
	r.commit(st)

	r.pending.Add(1)
	go r.run(ctx, gen, key)
}

func (r *Resource[K, T]) run(ctx context.Context, gen uint64, key K) {
	defer r.pending.Done()

	if r.debounce > 0 {
		timer := time.NewTimer(r.debounce)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}

	data, err := r.fetch(ctx, key)

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed || gen != r.gen || ctx.Err() != nil {
		return
	}
	r.cancel = nil

	if err != nil {
		var zero T
		st := State[T]{Data: zero, Error: services.ErrorMessage(err, r.fallback)}
		if st.Error == "" {
			st.Error = r.fallback
		}
		if r.onError != nil {
			r.onError(err, &st)
		}
		r.commit(st)
		return
	}
	r.commit(State[T]{Data: data})
}

// commit must be called with r.mu held.
func (r *Resource[K, T]) commit(st State[T]) {
	r.state = st
	if r.onChange != nil {
		r.onChange(st)
	}
}

// State returns the current state.
func (r *Resource[K, T]) State() State[T] {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Wait blocks until every started fetch has returned.
func (r *Resource[K, T]) Wait() {
	r.pending.Wait()
}

// Close cancels the in-flight fetch. No state changes are committed afterwards.
func (r *Resource[K, T]) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.closed = true
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
}
