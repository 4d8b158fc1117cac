package streams

import "context"

// defaultWindow is the demand window used by the collecting helpers.
const defaultWindow = 64

// Iterator is a pull-based view of a stream. Next blocks until a value, the
// end of the stream, or a failure is available. It returns ok=false with a
// nil error when the stream completed and ok=false with the terminal error
// when it failed. Close releases the underlying subscription and may be
// called at any time.
type Iterator[T any] interface {
	Next(ctx context.Context) (T, bool, error)
	Close() error
}

// result carries one value or terminal through the iterator buffer.
type result[T any] struct {
	val T
	ok  bool
	err error
}

// ToIterator subscribes to source and exposes it as an Iterator. window
// bounds the values requested ahead of consumption: the full window is
// requested up front and demand is topped up once half of it has been
// consumed. A source that emits beyond the window sees ErrWindowOverflow
// returned from OnNext.
//
// The subscription is driven by whichever goroutine runs the source; Next may
// be called from another goroutine and hands values across the window buffer.
func ToIterator[T any](source Publisher[T], window int64) Iterator[T] {
	if window <= 0 {
		window = defaultWindow
	}
	it := &pullIterator[T]{
		ch:        make(chan result[T], window+1),
		window:    window,
		threshold: window / 2,
	}
	if it.threshold < 1 {
		it.threshold = 1
	}
	source.Subscribe(&pullIteratorSubscriber[T]{it: it})
	return it
}

type pullIterator[T any] struct {
	ch        chan result[T]
	sub       Subscription
	window    int64
	threshold int64
	consumed  int64
	failure   error
	finished  bool
	closed    bool
}

type pullIteratorSubscriber[T any] struct {
	it   *pullIterator[T]
	done bool
}

func (s *pullIteratorSubscriber[T]) OnSubscribe(sub Subscription) {
	s.it.sub = sub
	_ = sub.Request(s.it.window)
}

func (s *pullIteratorSubscriber[T]) OnNext(v T) error {
	if s.done {
		return nil
	}
	select {
	case s.it.ch <- result[T]{val: v, ok: true}:
		return nil
	default:
		s.done = true
		return ErrWindowOverflow
	}
}

func (s *pullIteratorSubscriber[T]) OnComplete() error {
	if s.done {
		return nil
	}
	s.done = true
	close(s.it.ch)
	return nil
}

func (s *pullIteratorSubscriber[T]) OnError(err error) error {
	if s.done {
		return nil
	}
	s.done = true
	select {
	case s.it.ch <- result[T]{err: err}:
	default:
	}
	close(s.it.ch)
	return nil
}

func (it *pullIterator[T]) Next(ctx context.Context) (T, bool, error) {
	var zero T
	if it.failure != nil {
		return zero, false, it.failure
	}
	if it.finished || it.closed {
		return zero, false, nil
	}
	select {
	case <-ctx.Done():
		return zero, false, ctx.Err()
	case r, open := <-it.ch:
		if !open {
			it.finished = true
			return zero, false, nil
		}
		if r.err != nil {
			it.failure = r.err
			return zero, false, r.err
		}
		it.consumed++
		if it.consumed >= it.threshold {
			_ = it.sub.Request(it.consumed)
			it.consumed = 0
		}
		return r.val, true, nil
	}
}

func (it *pullIterator[T]) Close() error {
	if it.closed {
		return nil
	}
	it.closed = true
	if it.sub != nil {
		it.sub.Cancel()
	}
	return nil
}

// FromIterator returns a Publisher that pulls values from it as demand
// arrives. The iterator is consumed by the first subscriber and closed when
// that subscription ends for any reason. ctx bounds each pull.
func FromIterator[T any](ctx context.Context, it Iterator[T]) Publisher[T] {
	return &pullPublisher[T]{pull: func() (func() (T, bool, error), func()) {
		return func() (T, bool, error) {
			return it.Next(ctx)
		}, func() { _ = it.Close() }
	}}
}

// Collect subscribes to source and accumulates every emitted value until the
// stream terminates. It returns the collected values and the terminal error,
// if any.
//
// Example:
//
//	words, err := streams.Collect(ctx, streams.Flatten(batches))
func Collect[T any](ctx context.Context, source Publisher[T]) ([]T, error) {
	var out []T
	err := ForEach(ctx, source, func(v T) error {
		out = append(out, v)
		return nil
	})
	return out, err
}

// ForEach subscribes to source and invokes fn for every emitted value until
// the stream terminates. A non-nil error from fn cancels the subscription and
// is returned.
func ForEach[T any](ctx context.Context, source Publisher[T], fn func(T) error) error {
	it := ToIterator(source, defaultWindow)
	defer func() { _ = it.Close() }()
	for {
		v, ok, err := it.Next(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if err := fn(v); err != nil {
			return err
		}
	}
}
