package streamtest

import "github.com/kbukum/streamkit/streams"

// Publisher is a manually driven streams.Publisher. Test code subscribes a
// subscriber under test and then emits values and terminals by hand; the
// recorded Subscription exposes the demand and cancellation the subscriber
// signalled back.
type Publisher[T any] struct {
	subscriber streams.Subscriber[T]
	sub        *Subscription
}

// NewPublisher returns an unsubscribed manual publisher.
func NewPublisher[T any]() *Publisher[T] {
	return &Publisher[T]{sub: &Subscription{}}
}

func (p *Publisher[T]) Subscribe(s streams.Subscriber[T]) {
	p.subscriber = s
	s.OnSubscribe(p.sub)
}

// Subscription returns the recording subscription handed to the subscriber.
func (p *Publisher[T]) Subscription() *Subscription { return p.sub }

// Subscribed reports whether Subscribe has been called.
func (p *Publisher[T]) Subscribed() bool { return p.subscriber != nil }

// Emit delivers one value and returns the failure the subscriber chain
// reported, if any.
func (p *Publisher[T]) Emit(v T) error {
	return p.subscriber.OnNext(v)
}

// Complete delivers the completion terminal and returns the failure the
// subscriber chain reported, if any.
func (p *Publisher[T]) Complete() error {
	return p.subscriber.OnComplete()
}

// Fail delivers the failure terminal and returns the failure the subscriber
// chain reported, if any.
func (p *Publisher[T]) Fail(err error) error {
	return p.subscriber.OnError(err)
}

// Subscription records the demand and cancellation a subscriber under test
// signals upstream.
type Subscription struct {
	requested int64
	requests  int
	cancels   int
}

func (s *Subscription) Request(n int64) error {
	s.requested = streams.AddDemand(s.requested, n)
	s.requests++
	return nil
}

func (s *Subscription) Cancel() {
	s.cancels++
}

// Requested returns the total demand signalled so far.
func (s *Subscription) Requested() int64 { return s.requested }

// Requests returns the number of Request calls observed.
func (s *Subscription) Requests() int { return s.requests }

// Cancelled reports whether Cancel has been called.
func (s *Subscription) Cancelled() bool { return s.cancels > 0 }

// Cancels returns the number of Cancel calls observed.
func (s *Subscription) Cancels() int { return s.cancels }
