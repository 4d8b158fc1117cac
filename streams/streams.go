package streams

import "errors"

// Publisher is a source of values that are delivered to a Subscriber on
// demand. Subscribe wires a subscriber to the source; the source calls
// OnSubscribe exactly once before delivering anything else.
type Publisher[T any] interface {
	Subscribe(s Subscriber[T])
}

// Subscriber consumes values and terminal signals from a Publisher.
//
// OnNext returns a non-nil error when the subscriber failed to process the
// value. The delivering publisher must stop emitting values; how the failure
// travels from there depends on the publisher (see FlattenMap for the rules
// this module follows). OnComplete and OnError return a non-nil error only
// when the callback itself failed, and that error is surfaced to whichever
// call was delivering the terminal.
type Subscriber[T any] interface {
	OnSubscribe(s Subscription)
	OnNext(v T) error
	OnComplete() error
	OnError(err error) error
}

// Subscription controls the flow of a single Publisher/Subscriber pairing.
//
// Request adds n to the outstanding demand. It returns a non-nil error only
// when a subscriber callback failed while this call was delivering; demand
// validation failures and processing failures are reported through OnError
// instead, after which Request returns nil.
//
// Cancel stops the stream without a terminal signal. It is idempotent and
// safe to call after termination.
type Subscription interface {
	Request(n int64) error
	Cancel()
}

// ErrInvalidDemand is delivered via OnError when Request is called with a
// non-positive amount.
var ErrInvalidDemand = errors.New("streams: requested demand must be positive")

// ErrWindowOverflow is reported to a publisher that emits more values than
// the iterator bridge has requested.
var ErrWindowOverflow = errors.New("streams: publisher exceeded requested window")
