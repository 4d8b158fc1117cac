package streams

import (
	"fmt"
	"iter"
)

// FromSlice returns a Publisher that emits the given values in order as
// demand arrives, then completes.
//
// Example:
//
//	nums := streams.FromSlice([]int{1, 2, 3})
func FromSlice[T any](values []T) Publisher[T] {
	return &pullPublisher[T]{pull: func() (func() (T, bool, error), func()) {
		i := 0
		next := func() (T, bool, error) {
			if i >= len(values) {
				var zero T
				return zero, false, nil
			}
			v := values[i]
			i++
			return v, true, nil
		}
		return next, nil
	}}
}

// Just returns a Publisher that emits a single value and completes.
func Just[T any](v T) Publisher[T] {
	return FromSlice([]T{v})
}

// Empty returns a Publisher that completes immediately on subscribe without
// emitting any value.
func Empty[T any]() Publisher[T] {
	return emptyPublisher[T]{}
}

type emptyPublisher[T any] struct{}

func (emptyPublisher[T]) Subscribe(s Subscriber[T]) {
	s.OnSubscribe(noopSubscription{})
	_ = s.OnComplete()
}

// Fail returns a Publisher that terminates with err immediately on subscribe.
func Fail[T any](err error) Publisher[T] {
	return failPublisher[T]{err: err}
}

type failPublisher[T any] struct{ err error }

func (p failPublisher[T]) Subscribe(s Subscriber[T]) {
	s.OnSubscribe(noopSubscription{})
	_ = s.OnError(p.err)
}

type noopSubscription struct{}

func (noopSubscription) Request(int64) error { return nil }
func (noopSubscription) Cancel()             {}

// FromSeq returns a Publisher that emits the sequence's values in order as
// demand arrives. The sequence's cleanup runs when the stream ends for any
// reason.
func FromSeq[T any](seq iter.Seq[T]) Publisher[T] {
	return &pullPublisher[T]{pull: func() (func() (T, bool, error), func()) {
		next, stop := iter.Pull(seq)
		return func() (T, bool, error) {
			v, ok := next()
			return v, ok, nil
		}, stop
	}}
}

// pullPublisher subscribes each subscriber to a fresh pull iteration. pull
// returns the next function and an optional stop function run once the
// subscription ends.
type pullPublisher[T any] struct {
	pull func() (next func() (T, bool, error), stop func())
}

func (p *pullPublisher[T]) Subscribe(s Subscriber[T]) {
	next, stop := p.pull()
	sub := &pullSubscription[T]{next: next, stop: stop, sub: s}
	s.OnSubscribe(sub)
}

// pullSubscription drives a pull-based source under subscriber demand. The
// emitting flag flattens re-entrant Request calls made from OnNext into the
// running delivery loop.
type pullSubscription[T any] struct {
	next func() (T, bool, error)
	stop func()
	sub  Subscriber[T]

	demand   int64
	emitting bool
	done     bool

	// head is the pulled-ahead value not yet delivered. Pulling one ahead
	// lets exhaustion complete the stream in the same call that delivered
	// the final value.
	head   T
	primed bool
}

func (s *pullSubscription[T]) Request(n int64) error {
	if s.done {
		return nil
	}
	if n <= 0 {
		s.finish()
		return s.sub.OnError(fmt.Errorf("%w: got %d", ErrInvalidDemand, n))
	}
	s.demand = AddDemand(s.demand, n)
	if s.emitting {
		return nil
	}
	return s.emit()
}

func (s *pullSubscription[T]) Cancel() {
	if s.done {
		return
	}
	s.finish()
}

func (s *pullSubscription[T]) emit() error {
	s.emitting = true
	defer func() { s.emitting = false }()

	for !s.done {
		if !s.primed {
			v, ok, err := s.next()
			if err != nil {
				s.finish()
				return s.sub.OnError(err)
			}
			if !ok {
				s.finish()
				return s.sub.OnComplete()
			}
			s.head, s.primed = v, true
		}
		if s.demand <= 0 {
			return nil
		}
		v := s.head
		s.primed = false
		if s.demand != Unbounded {
			s.demand--
		}
		if err := s.sub.OnNext(v); err != nil {
			// The subscriber could not process the value; convert the
			// failure into this stream's terminal.
			s.finish()
			return s.sub.OnError(err)
		}
	}
	return nil
}

func (s *pullSubscription[T]) finish() {
	s.done = true
	if s.stop != nil {
		s.stop()
	}
}
