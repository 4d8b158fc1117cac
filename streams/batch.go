package streams

import "iter"

// Batch is a finite, single-pass sequence of values produced as one upstream
// emission. Next returns the next value and true, or the zero value and false
// once the batch is exhausted.
type Batch[T any] interface {
	Next() (T, bool)
}

// ReleasableBatch is a Batch holding a resource that must be released when
// the batch is abandoned before exhaustion (downstream cancel, failure).
// Release is not called when the batch drains naturally.
type ReleasableBatch[T any] interface {
	Batch[T]
	Release()
}

// BatchOf returns a Batch over the given values.
func BatchOf[T any](values ...T) Batch[T] {
	return &sliceBatch[T]{values: values}
}

type sliceBatch[T any] struct {
	values []T
	index  int
}

func (b *sliceBatch[T]) Next() (T, bool) {
	if b.index >= len(b.values) {
		var zero T
		return zero, false
	}
	v := b.values[b.index]
	b.index++
	return v, true
}

// ReleasableBatchOf returns a Batch over the given values whose release
// handle invokes the supplied function.
func ReleasableBatchOf[T any](release func(), values ...T) ReleasableBatch[T] {
	return &releasableSliceBatch[T]{
		sliceBatch: sliceBatch[T]{values: values},
		release:    release,
	}
}

type releasableSliceBatch[T any] struct {
	sliceBatch[T]
	release func()
}

func (b *releasableSliceBatch[T]) Release() {
	if b.release != nil {
		b.release()
	}
}

// BatchFromSeq adapts an iter.Seq into a lazily evaluated Batch. The pull
// iterator's stop function is wired up as the release handle, so abandoning
// the batch runs the sequence's cleanup.
func BatchFromSeq[T any](seq iter.Seq[T]) ReleasableBatch[T] {
	next, stop := iter.Pull(seq)
	return &seqBatch[T]{next: next, stop: stop}
}

type seqBatch[T any] struct {
	next func() (T, bool)
	stop func()
}

func (b *seqBatch[T]) Next() (T, bool) { return b.next() }
func (b *seqBatch[T]) Release()        { b.stop() }
