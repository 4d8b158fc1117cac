package streamtest

import "github.com/kbukum/streamkit/streams"

// Subscriber records everything delivered to it. Take accessors return and
// clear what has accumulated, so tests can assert delivery in increments.
type Subscriber[T any] struct {
	sub       streams.Subscription
	items     []T
	completed bool
	failure   error
	failed    bool
	terminals int
}

// NewSubscriber returns an empty recording subscriber.
func NewSubscriber[T any]() *Subscriber[T] {
	return &Subscriber[T]{}
}

func (r *Subscriber[T]) OnSubscribe(s streams.Subscription) {
	r.sub = s
}

func (r *Subscriber[T]) OnNext(v T) error {
	r.items = append(r.items, v)
	return nil
}

func (r *Subscriber[T]) OnComplete() error {
	r.terminals++
	r.completed = true
	return nil
}

func (r *Subscriber[T]) OnError(err error) error {
	r.terminals++
	r.failed = true
	r.failure = err
	return nil
}

// SubscriptionReceived reports whether OnSubscribe has been called.
func (r *Subscriber[T]) SubscriptionReceived() bool { return r.sub != nil }

// Request forwards demand to the received subscription.
func (r *Subscriber[T]) Request(n int64) error { return r.sub.Request(n) }

// Cancel cancels the received subscription.
func (r *Subscriber[T]) Cancel() { r.sub.Cancel() }

// TakeItems returns the values delivered since the last call and clears them.
func (r *Subscriber[T]) TakeItems() []T {
	items := r.items
	r.items = nil
	return items
}

// Completed reports whether OnComplete has been delivered.
func (r *Subscriber[T]) Completed() bool { return r.completed }

// Failed reports whether OnError has been delivered.
func (r *Subscriber[T]) Failed() bool { return r.failed }

// Failure returns the error delivered via OnError, if any.
func (r *Subscriber[T]) Failure() error { return r.failure }

// Terminals returns how many terminal signals have been delivered in total.
func (r *Subscriber[T]) Terminals() int { return r.terminals }
