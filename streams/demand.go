package streams

import "math"

// Unbounded is the demand value that never runs out. Once a subscription's
// accumulated demand reaches Unbounded it stays there; deliveries no longer
// decrement it.
const Unbounded int64 = math.MaxInt64

// AddDemand returns current+n saturated at Unbounded. Both inputs must be
// non-negative; Request implementations validate n before calling this.
func AddDemand(current, n int64) int64 {
	if current == Unbounded || n >= Unbounded-current {
		return Unbounded
	}
	return current + n
}
