package streamtest

// Batch is a streams.ReleasableBatch over fixed values that counts Release
// calls, for asserting that abandoned batches are released exactly once.
type Batch[T any] struct {
	values   []T
	index    int
	releases int
}

// NewBatch returns a releasable batch over the given values.
func NewBatch[T any](values ...T) *Batch[T] {
	return &Batch[T]{values: values}
}

func (b *Batch[T]) Next() (T, bool) {
	if b.index >= len(b.values) {
		var zero T
		return zero, false
	}
	v := b.values[b.index]
	b.index++
	return v, true
}

func (b *Batch[T]) Release() {
	b.releases++
}

// Released reports whether Release has been called at least once.
func (b *Batch[T]) Released() bool { return b.releases > 0 }

// Releases returns the number of Release calls observed.
func (b *Batch[T]) Releases() int { return b.releases }

// Taken returns how many values have been consumed from the batch.
func (b *Batch[T]) Taken() int { return b.index }
