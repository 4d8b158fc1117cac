// Package streams provides demand-driven value streams with explicit flow
// control.
//
// A Publisher delivers values to a Subscriber only as the subscriber requests
// them through its Subscription. Demand is counted per value; Unbounded
// demand never runs out. Exactly one terminal signal, OnComplete or OnError,
// ends every subscription that is not cancelled first.
//
// # Batches and flattening
//
// Sources that produce values in groups emit a Batch per upstream element.
// FlattenMap and Flatten unpack batches into individual values while keeping
// the per-value demand accounting intact: at most one batch is held at a
// time, its values are delivered in order, and an upstream terminal observed
// mid-batch is buffered until the last value is out. Batches that hold a
// resource implement ReleasableBatch and are released when abandoned.
//
// # Failure handling
//
// Subscriber callbacks return errors instead of panicking. A failure returned
// from OnNext stops value delivery; the operator that was delivering decides
// whether the failure travels back to the upstream caller or is delivered
// downstream as OnError. A failure returned from OnComplete or OnError is
// handed to whichever call was delivering that terminal.
//
// # Threading
//
// A stream is driven by one goroutine at a time. Operators tolerate
// re-entrant calls made from their own callbacks and absorb them into the
// running delivery loop. ToIterator is the hand-off point between a driving
// goroutine and a consuming one.
//
// # Usage
//
//	lines := streams.FromSlice([]string{"a b", "c"})
//	words := streams.FlattenMap(lines, func(l string) streams.Batch[string] {
//	    return streams.BatchOf(strings.Fields(l)...)
//	})
//	out, err := streams.Collect(ctx, words)
package streams
