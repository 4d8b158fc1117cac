package streams

import "fmt"

// FlattenMap converts each value emitted by source into a Batch and emits the
// batch's values one at a time, in order, under downstream demand. At most one
// batch is in flight: the next upstream value is requested only after the
// current batch is exhausted and unmet demand remains.
//
// An upstream terminal that arrives while batch values are still undelivered
// is buffered and delivered only once the final value has been emitted.
//
// A failure returned by the downstream's OnNext is handled according to the
// call path that was delivering the value. When delivery was driven by an
// upstream OnNext, the failure is recorded, value delivery stops, and the
// error is returned to the upstream caller; the recorded failure is then
// delivered as OnError when the upstream terminates, regardless of how it
// terminates. When delivery was driven by a downstream Request, the upstream
// is cancelled and the failure is delivered as OnError immediately, with
// Request returning nil.
//
// Example:
//
//	words := streams.FlattenMap(lines, func(line string) streams.Batch[string] {
//	    return streams.BatchOf(strings.Fields(line)...)
//	})
func FlattenMap[I, O any](source Publisher[I], toBatch func(I) Batch[O]) Publisher[O] {
	return &flattenPublisher[I, O]{source: source, toBatch: toBatch}
}

// Flatten emits the values of each Batch produced by source, one at a time
// and in order, under downstream demand. It is FlattenMap with the identity
// conversion.
func Flatten[T any](source Publisher[Batch[T]]) Publisher[T] {
	return FlattenMap(source, func(b Batch[T]) Batch[T] { return b })
}

type flattenPublisher[I, O any] struct {
	source  Publisher[I]
	toBatch func(I) Batch[O]
}

func (p *flattenPublisher[I, O]) Subscribe(s Subscriber[O]) {
	p.source.Subscribe(&flattener[I, O]{downstream: s, toBatch: p.toBatch})
}

// terminalSignal is a buffered upstream terminal. failed distinguishes
// OnError(nil) from OnComplete.
type terminalSignal struct {
	err    error
	failed bool
}

// flattener is the subscriber installed on the upstream source and the
// subscription handed to the downstream. All state is owned by the single
// goroutine driving the stream; re-entrant calls are absorbed by the
// draining flag and replayed by the drain loop.
type flattener[I, O any] struct {
	downstream Subscriber[O]
	toBatch    func(I) Batch[O]
	upstream   Subscription

	cursor  *cursor[O]
	demand  int64
	pending *terminalSignal

	// draining marks a drain loop on the stack; requested marks an upstream
	// Request(1) not yet answered. halted means value delivery failed on the
	// upstream path and only the buffered failure may still be delivered.
	draining  bool
	requested bool
	halted    bool
	done      bool
	cancelled bool
}

func (f *flattener[I, O]) OnSubscribe(s Subscription) {
	f.upstream = s
	f.downstream.OnSubscribe(f)
}

func (f *flattener[I, O]) OnNext(v I) error {
	if f.done || f.cancelled || f.halted || f.pending != nil {
		return nil
	}
	f.requested = false
	f.releaseCursor()
	c := newCursor(f.toBatch(v))
	if c.drained() {
		c = nil
	}
	f.cursor = c
	if f.draining {
		return nil
	}
	return f.drainFromSource()
}

func (f *flattener[I, O]) OnComplete() error {
	return f.terminal(terminalSignal{})
}

func (f *flattener[I, O]) OnError(err error) error {
	return f.terminal(terminalSignal{err: err, failed: true})
}

func (f *flattener[I, O]) terminal(t terminalSignal) error {
	if f.done || f.cancelled {
		return nil
	}
	if f.halted {
		// The failure recorded when value delivery broke takes the place of
		// the arriving terminal.
		return f.flush()
	}
	if f.pending == nil {
		p := t
		f.pending = &p
	}
	if f.draining {
		return nil
	}
	return f.drainFromSource()
}

func (f *flattener[I, O]) Request(n int64) error {
	if f.done || f.cancelled {
		return nil
	}
	if n <= 0 {
		f.releaseCursor()
		f.cancelUpstream()
		f.done = true
		return f.downstream.OnError(fmt.Errorf("%w: got %d", ErrInvalidDemand, n))
	}
	f.demand = AddDemand(f.demand, n)
	if f.draining {
		return nil
	}
	return f.drainFromDemand()
}

func (f *flattener[I, O]) Cancel() {
	if f.done || f.cancelled {
		return
	}
	f.cancelled = true
	f.releaseCursor()
	f.cancelUpstream()
}

func (f *flattener[I, O]) drainFromSource() error { return f.drain(true) }
func (f *flattener[I, O]) drainFromDemand() error { return f.drain(false) }

// drain delivers cursor values while demand lasts, then settles whatever is
// left: flushing a buffered terminal once the cursor is spent, or requesting
// the next upstream value when unmet demand remains. fromSource selects the
// failure handling for errors returned by the downstream's OnNext.
func (f *flattener[I, O]) drain(fromSource bool) error {
	f.draining = true
	defer func() { f.draining = false }()

	for {
		for f.live() && f.cursor != nil && f.demand > 0 {
			v := f.cursor.take()
			if f.cursor.drained() {
				f.cursor = nil
			}
			if f.demand != Unbounded {
				f.demand--
			}
			if err := f.downstream.OnNext(v); err != nil {
				f.releaseCursor()
				if fromSource {
					f.pending = &terminalSignal{err: err, failed: true}
					f.halted = true
					return err
				}
				f.cancelUpstream()
				f.done = true
				return f.downstream.OnError(err)
			}
		}
		if !f.live() {
			return nil
		}
		if f.cursor != nil {
			// Demand ran out mid-batch.
			return nil
		}
		if f.pending != nil {
			return f.flush()
		}
		if f.demand > 0 && !f.requested {
			f.requested = true
			if err := f.upstream.Request(1); err != nil {
				return err
			}
			// A synchronous upstream answers in place: OnNext clears the
			// requested flag (even for an empty batch) and a terminal sets
			// pending. Either way another pass settles the new state.
			if !f.requested || f.pending != nil {
				continue
			}
		}
		return nil
	}
}

// flush delivers the buffered terminal. done is set before the callback so a
// re-entrant signal observes the stream as terminated.
func (f *flattener[I, O]) flush() error {
	t := *f.pending
	f.pending = nil
	f.halted = false
	f.done = true
	if t.failed {
		return f.downstream.OnError(t.err)
	}
	return f.downstream.OnComplete()
}

func (f *flattener[I, O]) live() bool {
	return !f.done && !f.halted && !f.cancelled
}

func (f *flattener[I, O]) releaseCursor() {
	if f.cursor != nil {
		f.cursor.release()
		f.cursor = nil
	}
}

func (f *flattener[I, O]) cancelUpstream() {
	if f.upstream != nil {
		f.upstream.Cancel()
	}
}

// cursor reads a Batch with one value of lookahead so exhaustion is known the
// moment the last value is taken.
type cursor[T any] struct {
	batch Batch[T]
	next  T
	ready bool
}

func newCursor[T any](b Batch[T]) *cursor[T] {
	c := &cursor[T]{batch: b}
	c.advance()
	return c
}

func (c *cursor[T]) advance() {
	c.next, c.ready = c.batch.Next()
}

// take returns the buffered value and advances the lookahead. Callers check
// drained before calling.
func (c *cursor[T]) take() T {
	v := c.next
	c.advance()
	return v
}

func (c *cursor[T]) drained() bool { return !c.ready }

// release frees the underlying batch's resource when it has one. Called only
// on abandonment, never on natural exhaustion.
func (c *cursor[T]) release() {
	if r, ok := c.batch.(ReleasableBatch[T]); ok {
		r.Release()
	}
}
